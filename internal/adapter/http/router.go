package http

import (
	"log/slog"
	"net/http"

	"github.com/gooseberrytechnovision/schooniverse-checkout/internal/adapter/http/middleware"
	"github.com/gooseberrytechnovision/schooniverse-checkout/internal/logging"
	"github.com/gooseberrytechnovision/schooniverse-checkout/internal/security"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Handlers struct {
	Token    *TokenHandler
	Checkout *CheckoutHandler
	Cart     *CartHandler
	Orders   *OrderHandler
}

func NewRouter(h Handlers, authz *middleware.Authz, log *slog.Logger) *gin.Engine {
	RegisterValidators()

	r := gin.New()
	r.Use(gin.Recovery(), middleware.Metrics())
	if log == nil {
		log = logging.New("http")
	}
	r.Use(middleware.Logging(log))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	// Prometheus endpoint (scraped by Prometheus)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/v1")
	{
		v1.POST("/token", h.Token.IssueToken)

		read := authz.Require(security.PermCheckoutRead)
		write := authz.Require(security.PermCheckoutWrite)

		v1.POST("/cart/bundles", write, h.Cart.AddBundle)
		v1.GET("/cart/:parentId", read, h.Cart.GetCart)
		v1.DELETE("/cart/:parentId/bundles/:bundleId", write, h.Cart.RemoveBundle)

		v1.POST("/checkout", write, h.Checkout.PlaceOrder)
		v1.POST("/checkout/:orderId/events", write, h.Checkout.RelayEvent)
		v1.GET("/checkout/:orderId", read, h.Checkout.Session)

		v1.GET("/orders/:id", read, h.Orders.GetOrderByID)
		v1.GET("/parents/:parentId/orders", read, h.Orders.ListByParent)
		v1.GET("/payments/:orderId", read, h.Orders.Payments)
	}

	return r
}
