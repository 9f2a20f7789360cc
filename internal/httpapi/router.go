package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/athena-api/athena/internal/common"
	"github.com/athena-api/athena/internal/httpapi/handlers"
	"github.com/athena-api/athena/internal/httpapi/middleware"
)

func NewRouter(h *handlers.Handler) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(gin.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.RequestID())

	r.NoRoute(func(c *gin.Context) {
		common.Fail(c, http.StatusNotFound, 40400, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		common.Fail(c, http.StatusMethodNotAllowed, 40500, "method not allowed")
	})

	r.GET("/", h.Welcome)
	r.GET("/ping", h.Ping)

	api := r.Group("/api")
	api.GET("/customers", h.ListCustomers)
	api.GET("/customers/:customerId", h.GetCustomer)
	api.GET("/sales-orders", h.ListSalesOrders)
	api.GET("/sales-orders/customer/:customerId", h.SalesOrdersForCustomer)
	api.POST("/chat", h.Chat)

	return r
}
