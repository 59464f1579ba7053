package handlers

import (
	"net/http"

	"go-pharmacy-pos/internal/auth"
	"go-pharmacy-pos/internal/middleware"

	"github.com/gin-gonic/gin"
)

// Routes mounts the public, staff and admin routes on r.
func (h *Handler) Routes(r *gin.Engine) {
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "online"}) })
	r.POST("/login", h.Login)

	api := r.Group("/api")
	api.Use(middleware.AuthMiddleware(h.tokens))
	{
		// STAFF & ADMIN
		api.GET("/products", h.GetProducts)
		api.GET("/products/:id", h.GetProduct)
		api.GET("/products/scan/:sku", h.ScanProduct)
		api.GET("/customers", h.GetCustomers)
		api.GET("/customers/:id", h.GetCustomer)
		api.POST("/customers", h.AddCustomer)
		api.PUT("/customers/:id", h.UpdateCustomer)
		api.GET("/inventory/low-stock", h.GetLowStock)
		api.GET("/inventory/expiring", h.GetExpiring)
		api.POST("/cart/totals", h.PreviewCart)
		api.POST("/checkout", h.Checkout)
		api.GET("/orders", h.GetOrders)
		api.GET("/orders/:id", h.GetOrder)
		api.PUT("/orders/:id/status", h.UpdateOrderStatus)
		api.PUT("/orders/:id/payment", h.UpdatePaymentStatus)

		// ADMIN ONLY
		admin := api.Group("/")
		admin.Use(middleware.RequireRole(auth.RoleAdmin))
		{
			admin.POST("/products", h.AddProduct)
			admin.PUT("/products/:id", h.UpdateProduct)
			admin.DELETE("/products/:id", h.DeleteProduct)
			admin.GET("/products/:id/history", h.GetStockHistory)
			admin.POST("/products/:id/adjust", h.AdjustStock)
			admin.GET("/products/:id/reconcile", h.ReconcileProduct)
			admin.GET("/inventory/reconcile", h.ReconcileAll)
			admin.POST("/orders/:id/restock", h.RestockRefund)
			admin.DELETE("/orders/:id", h.DeleteOrder)
			admin.GET("/dashboard", h.GetDashboard)
			admin.GET("/reports", h.GetSalesReport)
			admin.GET("/reports/valuation", h.GetStockValuation)
			admin.POST("/ask", h.AskAI)
		}
	}
}
