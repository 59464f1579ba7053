package handlers

import (
	"net/http"
	"strconv"

	"go-pharmacy-pos/internal/catalog"
	"go-pharmacy-pos/internal/middleware"
	"go-pharmacy-pos/internal/models"

	"github.com/gin-gonic/gin"
)

const defaultHistoryLimit = 100

// --- GET: /api/products?search=&category= ---
func (h *Handler) GetProducts(c *gin.Context) {
	products, err := h.catalog.ListProducts(c.Request.Context(), catalog.ProductFilter{
		Search:   c.Query("search"),
		Category: c.Query("category"),
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, products)
}

func (h *Handler) GetProduct(c *gin.Context) {
	id, ok := h.idParam(c)
	if !ok {
		return
	}
	p, err := h.catalog.GetProduct(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// --- GET: /api/products/scan/:sku --- barcode scanner lookup
func (h *Handler) ScanProduct(c *gin.Context) {
	p, err := h.catalog.GetProductBySKU(c.Request.Context(), c.Param("sku"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *Handler) AddProduct(c *gin.Context) {
	var in catalog.NewProduct
	if err := c.ShouldBindJSON(&in); err != nil {
		h.badRequest(c, "Invalid input")
		return
	}
	p, err := h.catalog.CreateProduct(c.Request.Context(), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

// --- PUT: /api/products/:id --- partial update; stock is not patchable
func (h *Handler) UpdateProduct(c *gin.Context) {
	id, ok := h.idParam(c)
	if !ok {
		return
	}
	var patch catalog.ProductPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		h.badRequest(c, "Invalid input")
		return
	}
	p, err := h.catalog.UpdateProduct(c.Request.Context(), id, patch)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Product updated successfully", "product": p})
}

func (h *Handler) DeleteProduct(c *gin.Context) {
	id, ok := h.idParam(c)
	if !ok {
		return
	}
	if err := h.catalog.DeleteProduct(c.Request.Context(), id); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Product deleted successfully"})
}

// --- GET: /api/products/:id/history?limit= --- newest movement first
func (h *Handler) GetStockHistory(c *gin.Context) {
	id, ok := h.idParam(c)
	if !ok {
		return
	}
	limit := defaultHistoryLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			h.badRequest(c, "limit must be a positive number")
			return
		}
		limit = n
	}

	movements := make([]models.StockMovement, 0, min(limit, defaultHistoryLimit))
	for m, err := range h.ledger.History(c.Request.Context(), id) {
		if err != nil {
			h.fail(c, err)
			return
		}
		movements = append(movements, m)
		if len(movements) == limit {
			break
		}
	}
	c.JSON(http.StatusOK, movements)
}

type AdjustRequest struct {
	Delta  int    `json:"delta" binding:"required"`
	Reason string `json:"reason" binding:"required"`
}

// --- POST: /api/products/:id/adjust --- manual restock or write-off
func (h *Handler) AdjustStock(c *gin.Context) {
	id, ok := h.idParam(c)
	if !ok {
		return
	}
	var req AdjustRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "delta and reason are required")
		return
	}
	m, err := h.ledger.Adjust(c.Request.Context(), id, req.Delta, req.Reason)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.log.Info("stock adjusted", "product_id", id, "delta", req.Delta, "user", c.GetString(middleware.KeyUsername))
	c.JSON(http.StatusCreated, m)
}

func (h *Handler) ReconcileProduct(c *gin.Context) {
	id, ok := h.idParam(c)
	if !ok {
		return
	}
	r, err := h.ledger.Reconcile(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

// --- GET: /api/inventory/reconcile --- every product, flags drift
func (h *Handler) ReconcileAll(c *gin.Context) {
	all, err := h.ledger.ReconcileAll(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	unbalanced := 0
	for _, r := range all {
		if !r.Balanced {
			unbalanced++
		}
	}
	c.JSON(http.StatusOK, gin.H{"products": all, "unbalanced": unbalanced})
}

func (h *Handler) GetLowStock(c *gin.Context) {
	products, err := h.ledger.LowStock(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, products)
}

// --- GET: /api/inventory/expiring?days=30 ---
func (h *Handler) GetExpiring(c *gin.Context) {
	days, err := strconv.Atoi(c.DefaultQuery("days", "30"))
	if err != nil {
		h.badRequest(c, "days must be a number")
		return
	}
	products, err := h.catalog.ExpiringWithin(c.Request.Context(), days)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, products)
}
