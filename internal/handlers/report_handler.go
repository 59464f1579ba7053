package handlers

import (
	"net/http"
	"time"

	"go-pharmacy-pos/internal/dashboard"

	"github.com/gin-gonic/gin"
)

// --- GET: /api/dashboard?recent=&top=&days= ---
func (h *Handler) GetDashboard(c *gin.Context) {
	var w dashboard.Window
	if err := c.ShouldBindQuery(&w); err != nil {
		h.badRequest(c, "recent, top and days must be numbers")
		return
	}
	m, err := h.dashboard.ComputeMetrics(c.Request.Context(), w)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

// --- GET: /api/reports?start=YYYY-MM-DD&end=YYYY-MM-DD ---
// Both days are inclusive. Missing bounds default to today.
func (h *Handler) GetSalesReport(c *gin.Context) {
	start, ok := h.dateParam(c, "start")
	if !ok {
		return
	}
	end, ok := h.dateParam(c, "end")
	if !ok {
		return
	}
	now := time.Now().In(h.loc)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, h.loc)
	if start.IsZero() {
		start = today
	}
	if end.IsZero() {
		end = today
	}
	end = end.AddDate(0, 0, 1).Add(-time.Nanosecond)

	report, err := h.dashboard.SalesReport(c.Request.Context(), start, end)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// --- GET: /api/reports/valuation ---
func (h *Handler) GetStockValuation(c *gin.Context) {
	v, err := h.dashboard.StockValuation(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}
