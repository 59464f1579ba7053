package handlers

import (
	"net/http"

	"go-pharmacy-pos/internal/catalog"

	"github.com/gin-gonic/gin"
)

func (h *Handler) GetCustomers(c *gin.Context) {
	customers, err := h.catalog.ListCustomers(c.Request.Context(), c.Query("search"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, customers)
}

func (h *Handler) GetCustomer(c *gin.Context) {
	id, ok := h.idParam(c)
	if !ok {
		return
	}
	customer, err := h.catalog.GetCustomer(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, customer)
}

func (h *Handler) AddCustomer(c *gin.Context) {
	var in catalog.NewCustomer
	if err := c.ShouldBindJSON(&in); err != nil {
		h.badRequest(c, "Invalid input")
		return
	}
	customer, err := h.catalog.CreateCustomer(c.Request.Context(), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, customer)
}

func (h *Handler) UpdateCustomer(c *gin.Context) {
	id, ok := h.idParam(c)
	if !ok {
		return
	}
	var patch catalog.CustomerPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		h.badRequest(c, "Invalid input")
		return
	}
	customer, err := h.catalog.UpdateCustomer(c.Request.Context(), id, patch)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, customer)
}
