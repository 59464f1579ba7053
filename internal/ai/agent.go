// Package ai is the back-office assistant: a Gemini chat session that can
// look up stock, expiry and sales and adjust prices through function calls.
package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const maxToolRounds = 5

type Agent struct {
	client *genai.Client
	model  string
	tools  *Tools
	log    *slog.Logger
	now    func() time.Time
}

func NewAgent(ctx context.Context, apiKey, model string, tools *Tools, log *slog.Logger) (*Agent, error) {
	if apiKey == "" {
		return nil, errors.New("gemini api key not configured")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &Agent{client: client, model: model, tools: tools, log: log, now: time.Now}, nil
}

func (a *Agent) Close() error {
	return a.client.Close()
}

func systemPrompt(today time.Time) string {
	return fmt.Sprintf(`Today is %s. You are the back-office assistant of a pharmacy point of sale.

RULES:
1. UPDATE: If a user asks to change a price by product NAME, do not ask for the ID.
   Call 'check_inventory' with the name to find the ID, then call 'update_product_price'.
2. READ: For price, cost, stock, category or expiry of a product, call 'check_inventory'
   and answer from the returned data.
3. RESTOCK: For "what should I reorder" questions use 'low_stock'.
4. EXPIRY: For expiring or expired medicine use 'expiring_soon'.
5. SALES: For revenue or sales counts use 'get_sales_report'.
6. Never invent stock levels or prices. If a tool returns an error, say so.`, today.Format(time.DateOnly))
}

// Ask sends one question and follows the model's tool calls until it
// answers in text.
func (a *Agent) Ask(ctx context.Context, message string) (string, error) {
	model := a.client.GenerativeModel(a.model)
	model.SystemInstruction = genai.NewUserContent(genai.Text(systemPrompt(a.now())))
	model.Tools = []*genai.Tool{{FunctionDeclarations: Declarations()}}

	session := model.StartChat()
	resp, err := session.SendMessage(ctx, genai.Text(message))
	if err != nil {
		return "", fmt.Errorf("gemini request: %w", err)
	}

	for round := 0; ; round++ {
		calls := functionCalls(resp)
		if len(calls) == 0 {
			return replyText(resp), nil
		}
		if round == maxToolRounds {
			return "", fmt.Errorf("assistant exceeded %d tool rounds", maxToolRounds)
		}

		parts := make([]genai.Part, 0, len(calls))
		for _, call := range calls {
			a.log.Info("assistant tool call", "tool", call.Name)
			parts = append(parts, genai.FunctionResponse{
				Name:     call.Name,
				Response: a.tools.Run(ctx, call.Name, call.Args),
			})
		}
		resp, err = session.SendMessage(ctx, parts...)
		if err != nil {
			return "", fmt.Errorf("gemini request: %w", err)
		}
	}
}

func functionCalls(resp *genai.GenerateContentResponse) []genai.FunctionCall {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil
	}
	var calls []genai.FunctionCall
	for _, part := range resp.Candidates[0].Content.Parts {
		if call, ok := part.(genai.FunctionCall); ok {
			calls = append(calls, call)
		}
	}
	return calls
}

func replyText(resp *genai.GenerateContentResponse) string {
	if resp != nil && len(resp.Candidates) > 0 && resp.Candidates[0].Content != nil {
		for _, part := range resp.Candidates[0].Content.Parts {
			if txt, ok := part.(genai.Text); ok {
				return string(txt)
			}
		}
	}
	return "I completed the action."
}
