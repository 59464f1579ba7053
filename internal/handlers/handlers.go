// Package handlers exposes the order and inventory core over HTTP.
package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"go-pharmacy-pos/internal/apperr"
	"go-pharmacy-pos/internal/auth"
	"go-pharmacy-pos/internal/catalog"
	"go-pharmacy-pos/internal/dashboard"
	"go-pharmacy-pos/internal/inventory"
	"go-pharmacy-pos/internal/orders"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// Assistant answers free-text back-office questions.
type Assistant interface {
	Ask(ctx context.Context, message string) (string, error)
}

// Deps are the services the handlers delegate to. Assistant may be nil.
type Deps struct {
	Catalog   *catalog.Service
	Ledger    *inventory.Ledger
	Orders    *orders.Service
	Dashboard *dashboard.Service
	Staff     *auth.Staff
	Tokens    *auth.Tokens
	Assistant Assistant
	TaxRate   decimal.Decimal
	Location  *time.Location
	Log       *slog.Logger
}

type Handler struct {
	catalog   *catalog.Service
	ledger    *inventory.Ledger
	orders    *orders.Service
	dashboard *dashboard.Service
	staff     *auth.Staff
	tokens    *auth.Tokens
	assistant Assistant
	taxRate   decimal.Decimal
	loc       *time.Location
	log       *slog.Logger
}

func New(d Deps) *Handler {
	loc := d.Location
	if loc == nil {
		loc = time.UTC
	}
	return &Handler{
		catalog:   d.Catalog,
		ledger:    d.Ledger,
		orders:    d.Orders,
		dashboard: d.Dashboard,
		staff:     d.Staff,
		tokens:    d.Tokens,
		assistant: d.Assistant,
		taxRate:   d.TaxRate,
		loc:       loc,
		log:       d.Log,
	}
}

func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindInsufficientStock, apperr.KindInvalidTransition, apperr.KindConflict:
		return http.StatusConflict
	case apperr.KindUnauthorized:
		return http.StatusUnauthorized
	}
	return http.StatusInternalServerError
}

// fail writes err as {"error", "kind"}. Store failures are logged and their
// driver detail is kept out of the response.
func (h *Handler) fail(c *gin.Context, err error) {
	kind := apperr.KindOf(err)
	status := statusFor(kind)
	msg := err.Error()
	var ae *apperr.Error
	if errors.As(err, &ae) {
		msg = ae.Message
	}
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
		h.log.Error("request failed", "path", c.FullPath(), "error", err)
	}
	c.JSON(status, gin.H{"error": msg, "kind": kind})
}

func (h *Handler) badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg, "kind": apperr.KindValidation})
}

func (h *Handler) idParam(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 0)
	if err != nil || id == 0 {
		h.badRequest(c, "Invalid ID")
		return 0, false
	}
	return uint(id), true
}

// dateParam parses an optional YYYY-MM-DD query value in the store's zone.
func (h *Handler) dateParam(c *gin.Context, key string) (time.Time, bool) {
	raw := c.Query(key)
	if raw == "" {
		return time.Time{}, true
	}
	t, err := time.ParseInLocation(time.DateOnly, raw, h.loc)
	if err != nil {
		h.badRequest(c, key+" must be in YYYY-MM-DD format")
		return time.Time{}, false
	}
	return t, true
}
