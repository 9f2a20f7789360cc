package handlers

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/athena-api/athena/internal/sales"
)

const (
	customersCacheKey   = "athena:customers:all"
	salesOrdersCacheKey = "athena:sales-orders:all"
)

// ListCustomers returns all customers ordered by name.
func (h *Handler) ListCustomers(c *gin.Context) {
	ctx := c.Request.Context()

	var cached []sales.Customer
	if hit, err := h.Cache.GetJSON(ctx, customersCacheKey, &cached); err != nil {
		log.Printf("[sales] customer cache read failed: %v", err)
	} else if hit {
		c.JSON(http.StatusOK, cached)
		return
	}

	customers, err := h.Sales.ListCustomers(ctx)
	if err != nil {
		log.Printf("[sales] list customers failed: %v", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	if err := h.Cache.SetJSON(ctx, customersCacheKey, customers); err != nil {
		log.Printf("[sales] customer cache write failed: %v", err)
	}
	c.JSON(http.StatusOK, customers)
}

// GetCustomer returns one customer by business key, or 404.
func (h *Handler) GetCustomer(c *gin.Context) {
	customer, err := h.Sales.GetCustomer(c.Request.Context(), c.Param("customerId"))
	if err != nil {
		log.Printf("[sales] get customer failed: %v", err)
		c.Status(http.StatusInternalServerError)
		return
	}
	if customer == nil {
		c.Status(http.StatusNotFound)
		return
	}
	c.JSON(http.StatusOK, customer)
}

// ListSalesOrders returns all sales orders, newest order date first.
func (h *Handler) ListSalesOrders(c *gin.Context) {
	ctx := c.Request.Context()

	var cached []sales.SalesOrder
	if hit, err := h.Cache.GetJSON(ctx, salesOrdersCacheKey, &cached); err != nil {
		log.Printf("[sales] order cache read failed: %v", err)
	} else if hit {
		c.JSON(http.StatusOK, cached)
		return
	}

	orders, err := h.Sales.ListSalesOrders(ctx)
	if err != nil {
		log.Printf("[sales] list sales orders failed: %v", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	if err := h.Cache.SetJSON(ctx, salesOrdersCacheKey, orders); err != nil {
		log.Printf("[sales] order cache write failed: %v", err)
	}
	c.JSON(http.StatusOK, orders)
}

// SalesOrdersForCustomer returns one customer's orders, newest first.
func (h *Handler) SalesOrdersForCustomer(c *gin.Context) {
	orders, err := h.Sales.SalesOrdersForCustomer(c.Request.Context(), c.Param("customerId"))
	if err != nil {
		log.Printf("[sales] list customer sales orders failed: %v", err)
		c.Status(http.StatusInternalServerError)
		return
	}
	c.JSON(http.StatusOK, orders)
}
