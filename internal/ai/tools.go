package ai

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go-pharmacy-pos/internal/catalog"
	"go-pharmacy-pos/internal/dashboard"
	"go-pharmacy-pos/internal/inventory"
	"go-pharmacy-pos/internal/models"

	"github.com/google/generative-ai-go/genai"
	"github.com/shopspring/decimal"
)

// Tools executes the assistant's function calls against the store. It has
// no dependency on the model session so it can be driven directly.
type Tools struct {
	catalog   *catalog.Service
	ledger    *inventory.Ledger
	dashboard *dashboard.Service
	loc       *time.Location
}

func NewTools(c *catalog.Service, l *inventory.Ledger, d *dashboard.Service, loc *time.Location) *Tools {
	if loc == nil {
		loc = time.UTC
	}
	return &Tools{catalog: c, ledger: l, dashboard: d, loc: loc}
}

// Declarations describes the tools to the model.
func Declarations() []*genai.FunctionDeclaration {
	return []*genai.FunctionDeclaration{
		{
			Name:        "check_inventory",
			Description: "List products with ID, name, SKU, category, price, cost, stock, reorder level and expiry. Use this to find ANY product detail.",
			Parameters: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"query": {Type: genai.TypeString, Description: "Optional name or SKU fragment"},
				},
			},
		},
		{
			Name:        "low_stock",
			Description: "List products at or below their reorder level, lowest stock first.",
		},
		{
			Name:        "expiring_soon",
			Description: "List products whose expiry date falls within the given number of days, including already expired stock.",
			Parameters: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"days": {Type: genai.TypeInteger, Description: "Look-ahead window in days"},
				},
				Required: []string{"days"},
			},
		},
		{
			Name:        "get_sales_report",
			Description: "Get completed-order revenue and order count for a date range.",
			Parameters: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"start_date": {Type: genai.TypeString, Description: "Start date (YYYY-MM-DD)"},
					"end_date":   {Type: genai.TypeString, Description: "End date (YYYY-MM-DD), inclusive"},
				},
				Required: []string{"start_date", "end_date"},
			},
		},
		{
			Name:        "update_product_price",
			Description: "Update the selling price of a specific product using its ID",
			Parameters: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"product_id": {Type: genai.TypeInteger, Description: "ID of the product"},
					"new_price":  {Type: genai.TypeNumber, Description: "New price"},
				},
				Required: []string{"product_id", "new_price"},
			},
		},
	}
}

type productView struct {
	ID           uint   `json:"id"`
	Name         string `json:"name"`
	SKU          string `json:"sku"`
	Category     string `json:"category,omitempty"`
	Price        string `json:"price"`
	CostPrice    string `json:"cost_price"`
	Stock        int    `json:"stock"`
	ReorderLevel int    `json:"reorder_level"`
	LowStock     bool   `json:"low_stock"`
	ExpiryDate   string `json:"expiry_date,omitempty"`
}

func viewProducts(products []models.Product) []productView {
	out := make([]productView, 0, len(products))
	for _, p := range products {
		v := productView{
			ID:           p.ID,
			Name:         p.Name,
			SKU:          p.SKU,
			Category:     p.Category,
			Price:        p.Price.StringFixed(2),
			CostPrice:    p.CostPrice.StringFixed(2),
			Stock:        p.StockQuantity,
			ReorderLevel: p.ReorderLevel,
			LowStock:     p.IsLowStock(),
		}
		if p.ExpiryDate != nil {
			v.ExpiryDate = p.ExpiryDate.Format(time.DateOnly)
		}
		out = append(out, v)
	}
	return out
}

// Execute runs one tool call.
func (t *Tools) Execute(ctx context.Context, name string, args map[string]any) (map[string]any, error) {
	switch name {
	case "check_inventory":
		query, _ := args["query"].(string)
		products, err := t.catalog.ListProducts(ctx, catalog.ProductFilter{Search: query})
		if err != nil {
			return nil, err
		}
		return map[string]any{"inventory": viewProducts(products)}, nil

	case "low_stock":
		products, err := t.ledger.LowStock(ctx)
		if err != nil {
			return nil, err
		}
		return map[string]any{"low_stock": viewProducts(products)}, nil

	case "expiring_soon":
		days, err := intArg(args, "days")
		if err != nil {
			return nil, err
		}
		products, err := t.catalog.ExpiringWithin(ctx, days)
		if err != nil {
			return nil, err
		}
		return map[string]any{"expiring": viewProducts(products)}, nil

	case "get_sales_report":
		start, err := t.dateArg(args, "start_date")
		if err != nil {
			return nil, err
		}
		end, err := t.dateArg(args, "end_date")
		if err != nil {
			return nil, err
		}
		report, err := t.dashboard.SalesReport(ctx, start, end.AddDate(0, 0, 1).Add(-time.Nanosecond))
		if err != nil {
			return nil, err
		}
		return map[string]any{
			"revenue":     report.TotalRevenue.StringFixed(2),
			"sales_count": report.TotalCount,
		}, nil

	case "update_product_price":
		id, err := intArg(args, "product_id")
		if err != nil {
			return nil, err
		}
		price, err := decimalArg(args, "new_price")
		if err != nil {
			return nil, err
		}
		p, err := t.catalog.UpdateProduct(ctx, uint(id), catalog.ProductPatch{Price: &price})
		if err != nil {
			return nil, err
		}
		return map[string]any{"status": "updated", "product_id": p.ID, "new_price": p.Price.StringFixed(2)}, nil
	}
	return nil, fmt.Errorf("unknown tool %q", name)
}

// Run is Execute with failures reported back to the model as data.
func (t *Tools) Run(ctx context.Context, name string, args map[string]any) map[string]any {
	result, err := t.Execute(ctx, name, args)
	if err != nil {
		return map[string]any{"error": err.Error()}
	}
	return result
}

func (t *Tools) dateArg(args map[string]any, key string) (time.Time, error) {
	s, _ := args[key].(string)
	d, err := time.ParseInLocation(time.DateOnly, strings.TrimSpace(s), t.loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s must be in YYYY-MM-DD format", key)
	}
	return d, nil
}

func intArg(args map[string]any, key string) (int, error) {
	switch v := args[key].(type) {
	case float64:
		if v != float64(int(v)) || v < 0 {
			return 0, fmt.Errorf("%s must be a non-negative whole number", key)
		}
		return int(v), nil
	case int:
		if v < 0 {
			return 0, fmt.Errorf("%s must be a non-negative whole number", key)
		}
		return v, nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil || n < 0 {
			return 0, fmt.Errorf("%s must be a non-negative whole number", key)
		}
		return n, nil
	}
	return 0, fmt.Errorf("%s is required", key)
}

func decimalArg(args map[string]any, key string) (decimal.Decimal, error) {
	switch v := args[key].(type) {
	case float64:
		return decimal.NewFromFloat(v), nil
	case int:
		return decimal.NewFromInt(int64(v)), nil
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(v))
		if err != nil {
			return decimal.Zero, fmt.Errorf("%s must be a number", key)
		}
		return d, nil
	}
	return decimal.Zero, fmt.Errorf("%s is required", key)
}
