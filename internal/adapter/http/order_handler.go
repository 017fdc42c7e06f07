package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gooseberrytechnovision/schooniverse-checkout/internal/logging"
	"github.com/gooseberrytechnovision/schooniverse-checkout/internal/usecase"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type OrderQueries interface {
	GetOrder(ctx context.Context, id string) (*usecase.OrderRecord, error)
	ParentOrders(ctx context.Context, parentID string) ([]usecase.OrderRecord, error)
	Payments(ctx context.Context, orderID string) ([]usecase.PaymentRecord, error)
}

type OrderHandler struct {
	query   OrderQueries
	timeout time.Duration
}

func NewOrderHandler(query OrderQueries, timeout time.Duration) *OrderHandler {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &OrderHandler{query: query, timeout: timeout}
}

type orderResp struct {
	ID              string          `json:"id"`
	ParentID        string          `json:"parentId"`
	Status          string          `json:"status"`
	ShippingMethod  string          `json:"shippingMethod"`
	PaymentMethod   string          `json:"paymentMethod"`
	DeliveryAddress string          `json:"deliveryAddress,omitempty"`
	IsAddressEdited bool            `json:"isAddressEdited"`
	Total           string          `json:"total"`
	Items           json.RawMessage `json:"items,omitempty"`
}

func toOrderResp(rec usecase.OrderRecord) orderResp {
	out := orderResp{
		ID:              rec.ID,
		ParentID:        rec.ParentID,
		Status:          rec.Status,
		ShippingMethod:  rec.ShippingMethod,
		PaymentMethod:   rec.PaymentMethod,
		DeliveryAddress: rec.DeliveryAddress,
		IsAddressEdited: rec.IsAddressEdited,
		Total:           decimal.New(rec.TotalPaise, -2).StringFixed(2),
	}
	if json.Valid([]byte(rec.ItemsJSON)) {
		out.Items = json.RawMessage(rec.ItemsJSON)
	}
	return out
}

func (h *OrderHandler) GetOrderByID(c *gin.Context) {
	ctx, cancel := context.WithTimeout(logging.Ctx(c), h.timeout)
	defer cancel()

	rec, err := h.query.GetOrder(ctx, c.Param("id"))
	if err != nil || rec == nil {
		if err != nil && !errors.Is(err, usecase.ErrOrderNotFound) {
			fail(c, err)
			return
		}
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
		return
	}
	c.JSON(http.StatusOK, toOrderResp(*rec))
}

func (h *OrderHandler) ListByParent(c *gin.Context) {
	ctx, cancel := context.WithTimeout(logging.Ctx(c), h.timeout)
	defer cancel()

	recs, err := h.query.ParentOrders(ctx, c.Param("parentId"))
	if err != nil {
		fail(c, err)
		return
	}
	out := make([]orderResp, 0, len(recs))
	for _, r := range recs {
		out = append(out, toOrderResp(r))
	}
	c.JSON(http.StatusOK, gin.H{"orders": out})
}

func (h *OrderHandler) Payments(c *gin.Context) {
	ctx, cancel := context.WithTimeout(logging.Ctx(c), h.timeout)
	defer cancel()

	recs, err := h.query.Payments(ctx, c.Param("orderId"))
	if err != nil {
		fail(c, err)
		return
	}
	if recs == nil {
		recs = []usecase.PaymentRecord{}
	}
	c.JSON(http.StatusOK, gin.H{"payments": recs})
}
