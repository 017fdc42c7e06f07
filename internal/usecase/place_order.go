package usecase

import (
	"context"
	"errors"
	"time"

	domain "github.com/gooseberrytechnovision/schooniverse-checkout/internal/entity"
	"github.com/gooseberrytechnovision/schooniverse-checkout/internal/logging"
	"github.com/shopspring/decimal"
)

// OrderCreationError aborts the checkout attempt. The cart is untouched.
type OrderCreationError struct {
	Err error
}

func (e *OrderCreationError) Error() string { return domain.MsgTryAgainLater }
func (e *OrderCreationError) Unwrap() error { return e.Err }

// PaymentSessionError means the order exists but the widget could not be
// initialized for it.
type PaymentSessionError struct {
	OrderID string
	Err     error
}

func (e *PaymentSessionError) Error() string { return domain.MsgTryAgainLater }
func (e *PaymentSessionError) Unwrap() error { return e.Err }

type PlaceOrderInput struct {
	Shipping       domain.ShippingMethod
	Address        string
	IdempotencyKey string
}

type PlaceOrder struct {
	orders         OrderAPI
	shippingCharge decimal.Decimal
}

func NewPlaceOrder(orders OrderAPI, shippingCharge decimal.Decimal) *PlaceOrder {
	return &PlaceOrder{orders: orders, shippingCharge: shippingCharge}
}

// Execute validates the session cart, creates the order and hands the
// payment session to the widget. It returns as soon as the widget has the
// configuration; payment progress arrives later as events.
func (uc *PlaceOrder) Execute(ctx context.Context, sess *Session, in PlaceOrderInput) (domain.PendingOrder, error) {
	cart := sess.Cart()
	address, edited, err := domain.Delivery(in.Shipping, in.Address, cart)
	if err != nil {
		return domain.PendingOrder{}, err
	}
	if cart.IsEmpty() {
		return domain.PendingOrder{}, domain.ErrEmptyCart
	}
	if _, bound := sess.Order(); bound {
		return domain.PendingOrder{}, ErrSessionBound
	}

	log := logging.FromCtx(ctx).With("parent_id", sess.ParentID)

	orderID, err := uc.orders.CreateOrder(ctx, CreateOrderRequest{
		ParentID:        sess.ParentID,
		ShippingMethod:  in.Shipping,
		PaymentMethod:   domain.PaymentMethodDirect,
		IsAddressEdited: edited,
		DeliveryAddress: address,
		IdempotencyKey:  in.IdempotencyKey,
	})
	if err != nil {
		log.Error("create order failed", "err", err)
		if errors.Is(err, domain.ErrEmptyCart) || errors.Is(err, ErrDuplicate) {
			return domain.PendingOrder{}, err
		}
		return domain.PendingOrder{}, &OrderCreationError{Err: err}
	}

	order := domain.PendingOrder{
		OrderID:         orderID,
		ParentID:        sess.ParentID,
		ShippingMethod:  in.Shipping,
		PaymentMethod:   domain.PaymentMethodDirect,
		DeliveryAddress: address,
		IsAddressEdited: edited,
		Total:           cart.GrandTotal(in.Shipping, uc.shippingCharge),
		CreatedAt:       time.Now().UTC(),
	}
	if err := sess.BindOrder(order); err != nil {
		return domain.PendingOrder{}, err
	}
	log = log.With("order_id", orderID)

	cfg, err := uc.orders.PaymentSessionConfig(ctx, orderID)
	if err != nil {
		log.Error("payment session config failed", "err", err)
		sess.AddNotice(domain.Notice{Level: domain.NoticeError, Message: domain.MsgTryAgainLater})
		return order, &PaymentSessionError{OrderID: orderID, Err: err}
	}

	if err := sess.Open(ctx, WidgetOptions{
		OrderID:        orderID,
		Config:         cfg,
		CustomerMobile: sess.CustomerMobile,
	}); err != nil {
		return order, &PaymentSessionError{OrderID: orderID, Err: err}
	}

	log.Info("order placed, awaiting payment", "total", order.Total.StringFixed(2), "shipping", string(in.Shipping))
	return order, nil
}
