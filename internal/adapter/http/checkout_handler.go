package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	domain "github.com/gooseberrytechnovision/schooniverse-checkout/internal/entity"
	"github.com/gooseberrytechnovision/schooniverse-checkout/internal/logging"
	"github.com/gooseberrytechnovision/schooniverse-checkout/internal/usecase"
	"github.com/gin-gonic/gin"
)

type CheckoutService interface {
	Begin(ctx context.Context, in usecase.BeginCheckoutInput) (usecase.SessionView, error)
	Deliver(ctx context.Context, ev domain.PaymentEvent) error
	View(orderID string) (usecase.SessionView, bool)
}

type CheckoutHandler struct {
	svc     CheckoutService
	timeout time.Duration
}

func NewCheckoutHandler(svc CheckoutService, timeout time.Duration) *CheckoutHandler {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &CheckoutHandler{svc: svc, timeout: timeout}
}

type placeOrderReq struct {
	ParentID        string `json:"parentId" binding:"required"`
	CustomerMobile  string `json:"customerMobile"`
	ShippingMethod  string `json:"shippingMethod" binding:"required,shipping"`
	DeliveryAddress string `json:"deliveryAddress" binding:"max=500"`
}

// PlaceOrder handles POST /v1/checkout.
func (h *CheckoutHandler) PlaceOrder(c *gin.Context) {
	var req placeOrderReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	ctx, cancel := context.WithTimeout(logging.Ctx(c), h.timeout)
	defer cancel()

	view, err := h.svc.Begin(ctx, usecase.BeginCheckoutInput{
		ParentID:       req.ParentID,
		CustomerMobile: req.CustomerMobile,
		PlaceOrderInput: usecase.PlaceOrderInput{
			Shipping:       domain.ShippingMethod(req.ShippingMethod),
			Address:        req.DeliveryAddress,
			IdempotencyKey: c.GetHeader("X-Idempotency-Key"),
		},
	})

	var sessErr *usecase.PaymentSessionError
	switch {
	case err == nil:
		c.JSON(http.StatusCreated, view)
	case errors.As(err, &sessErr) && view.OrderID != "":
		// The order exists; the widget could not be configured.
		_ = c.Error(err)
		c.JSON(http.StatusAccepted, gin.H{"session": view, "error": err.Error()})
	default:
		fail(c, err)
	}
}

type paymentEventReq struct {
	Kind string                `json:"kind" binding:"required,eventkind"`
	Data domain.PaymentPayload `json:"data"`
}

// RelayEvent handles POST /v1/checkout/:orderId/events, the browser relay
// for the hosted widget's callbacks.
func (h *CheckoutHandler) RelayEvent(c *gin.Context) {
	var req paymentEventReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	ctx, cancel := context.WithTimeout(logging.Ctx(c), h.timeout)
	defer cancel()

	err := h.svc.Deliver(ctx, domain.PaymentEvent{
		Kind:    domain.PaymentEventKind(req.Kind),
		OrderID: c.Param("orderId"),
		Payload: req.Data,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"accepted": true})
}

// Session handles GET /v1/checkout/:orderId.
func (h *CheckoutHandler) Session(c *gin.Context) {
	view, ok := h.svc.View(c.Param("orderId"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
		return
	}
	c.JSON(http.StatusOK, view)
}
