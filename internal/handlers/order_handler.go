package handlers

import (
	"net/http"
	"strconv"

	"go-pharmacy-pos/internal/cart"
	"go-pharmacy-pos/internal/middleware"
	"go-pharmacy-pos/internal/models"
	"go-pharmacy-pos/internal/orders"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

const HeaderIdempotencyKey = "Idempotency-Key"

type CartItem struct {
	ProductID uint `json:"product_id" binding:"required"`
	Quantity  int  `json:"quantity"`
}

// CartRequest previews a cart. TaxRate defaults to the configured rate.
type CartRequest struct {
	Items    []CartItem       `json:"items"`
	Discount decimal.Decimal  `json:"discount"`
	TaxRate  *decimal.Decimal `json:"tax_rate,omitempty"`
}

// --- POST: /api/cart/totals ---
// Rebuilds the cart from live products, clamping each line to stock, and
// prices it. Nothing is reserved or written.
func (h *Handler) PreviewCart(c *gin.Context) {
	var req CartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "Invalid cart")
		return
	}
	if req.Discount.IsNegative() {
		h.badRequest(c, "discount cannot be negative")
		return
	}
	rate := h.taxRate
	if req.TaxRate != nil {
		if req.TaxRate.IsNegative() || req.TaxRate.GreaterThan(decimal.NewFromInt(1)) {
			h.badRequest(c, "tax_rate must be between 0 and 1")
			return
		}
		rate = *req.TaxRate
	}

	ctx := c.Request.Context()
	sc := cart.New()
	var clamped []uint
	for _, item := range req.Items {
		p, err := h.catalog.GetProduct(ctx, item.ProductID)
		if err != nil {
			h.fail(c, err)
			return
		}
		sc.AddItem(*p, item.Quantity)
		if item.Quantity > p.StockQuantity {
			clamped = append(clamped, p.ID)
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"items":    sc.Items(),
		"totals":   sc.Totals(rate, req.Discount),
		"tax_rate": rate,
		"clamped":  clamped,
	})
}

type CheckoutItem struct {
	ProductID uint             `json:"product_id"`
	Quantity  int              `json:"quantity"`
	UnitPrice *decimal.Decimal `json:"unit_price,omitempty"` // current catalog price when omitted
	Discount  decimal.Decimal  `json:"discount"`
}

type CheckoutRequest struct {
	CustomerID     *uint                `json:"customer_id,omitempty"`
	Items          []CheckoutItem       `json:"items"`
	PaymentMethod  models.PaymentMethod `json:"payment_method"`
	DiscountAmount decimal.Decimal      `json:"discount_amount"`
	TaxAmount      *decimal.Decimal     `json:"tax_amount,omitempty"` // subtotal x default rate when omitted
	Notes          string               `json:"notes"`
}

// --- POST: /api/checkout ---
// A repeated Idempotency-Key returns the order already placed under it.
func (h *Handler) Checkout(c *gin.Context) {
	var req CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "Invalid request body")
		return
	}
	ctx := c.Request.Context()

	lines := make([]orders.LineInput, 0, len(req.Items))
	subtotal := decimal.Zero
	for _, item := range req.Items {
		line := orders.LineInput{ProductID: item.ProductID, Quantity: item.Quantity, Discount: item.Discount}
		if item.UnitPrice != nil {
			line.UnitPrice = *item.UnitPrice
		} else if item.ProductID != 0 {
			p, err := h.catalog.GetProduct(ctx, item.ProductID)
			if err != nil {
				h.fail(c, err)
				return
			}
			line.UnitPrice = p.Price
		}
		subtotal = subtotal.Add(line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity)))).Sub(line.Discount)
		lines = append(lines, line)
	}

	tax := subtotal.Mul(h.taxRate).Round(2)
	if req.TaxAmount != nil {
		tax = *req.TaxAmount
	}

	order, err := h.orders.PlaceOrder(ctx, orders.PlaceOrderInput{
		CustomerID:     req.CustomerID,
		Items:          lines,
		PaymentMethod:  req.PaymentMethod,
		DiscountAmount: req.DiscountAmount,
		TaxAmount:      tax,
		Notes:          req.Notes,
		IdempotencyKey: c.GetHeader(HeaderIdempotencyKey),
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	h.log.Info("checkout", "order_id", order.ID, "user", c.GetString(middleware.KeyUsername), "request_id", c.GetString(middleware.KeyRequestID))
	c.JSON(http.StatusCreated, order)
}

// --- GET: /api/orders?status=&payment_status=&customer_id=&from=&to=&limit=&offset= ---
func (h *Handler) GetOrders(c *gin.Context) {
	f := orders.OrderFilter{
		Status:        models.OrderStatus(c.Query("status")),
		PaymentStatus: models.PaymentStatus(c.Query("payment_status")),
	}
	for key, dst := range map[string]*int{"limit": &f.Limit, "offset": &f.Offset} {
		if raw := c.Query(key); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil {
				h.badRequest(c, key+" must be a number")
				return
			}
			*dst = n
		}
	}
	if raw := c.Query("customer_id"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 0)
		if err != nil {
			h.badRequest(c, "customer_id must be a number")
			return
		}
		f.CustomerID = uint(id)
	}
	var ok bool
	if f.From, ok = h.dateParam(c, "from"); !ok {
		return
	}
	if f.To, ok = h.dateParam(c, "to"); !ok {
		return
	}
	if !f.To.IsZero() {
		f.To = f.To.AddDate(0, 0, 1)
	}

	list, err := h.orders.ListOrders(c.Request.Context(), f)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *Handler) GetOrder(c *gin.Context) {
	id, ok := h.idParam(c)
	if !ok {
		return
	}
	order, err := h.orders.GetOrder(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

type StatusRequest struct {
	Status models.OrderStatus `json:"status" binding:"required"`
}

// --- PUT: /api/orders/:id/status ---
func (h *Handler) UpdateOrderStatus(c *gin.Context) {
	id, ok := h.idParam(c)
	if !ok {
		return
	}
	var req StatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "status is required")
		return
	}
	order, err := h.orders.UpdateOrderStatus(c.Request.Context(), id, req.Status)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

type PaymentRequest struct {
	PaymentStatus models.PaymentStatus `json:"payment_status" binding:"required"`
}

// --- PUT: /api/orders/:id/payment ---
func (h *Handler) UpdatePaymentStatus(c *gin.Context) {
	id, ok := h.idParam(c)
	if !ok {
		return
	}
	var req PaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "payment_status is required")
		return
	}
	order, err := h.orders.UpdatePaymentStatus(c.Request.Context(), id, req.PaymentStatus)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// --- POST: /api/orders/:id/restock --- explicit restock of a refunded sale
func (h *Handler) RestockRefund(c *gin.Context) {
	id, ok := h.idParam(c)
	if !ok {
		return
	}
	order, err := h.orders.RestockRefund(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *Handler) DeleteOrder(c *gin.Context) {
	id, ok := h.idParam(c)
	if !ok {
		return
	}
	if err := h.orders.DeleteOrder(c.Request.Context(), id); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Order deleted successfully"})
}
