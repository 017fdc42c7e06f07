package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	domain "github.com/gooseberrytechnovision/schooniverse-checkout/internal/entity"
	"github.com/gooseberrytechnovision/schooniverse-checkout/internal/logging"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrDuplicate     = errors.New("duplicate idempotency key")
	ErrOrderNotFound = errors.New("order not found")
)

// Audit routing keys.
const (
	RoutingPaymentSuccess = "payment.success"
	RoutingPaymentError   = "payment.error"
	RoutingPaymentClosed  = "payment.closed"
)

type GatewaySettings struct {
	ClientID       string
	Env            string
	Currency       string
	CallbackURL    string
	ShippingCharge decimal.Decimal
}

// OrderBackend is the order API the checkout flow talks to: it turns a
// cart into an order row and keeps the payment audit trail.
type OrderBackend struct {
	repo     OrderRepo
	payments PaymentRepo
	carts    CartStore
	idem     IdempotencyStore
	audit    AuditPublisher
	gateway  GatewaySettings
}

func NewOrderBackend(repo OrderRepo, payments PaymentRepo, carts CartStore, idem IdempotencyStore, audit AuditPublisher, gw GatewaySettings) *OrderBackend {
	return &OrderBackend{repo: repo, payments: payments, carts: carts, idem: idem, audit: audit, gateway: gw}
}

func (b *OrderBackend) CreateOrder(ctx context.Context, in CreateOrderRequest) (string, error) {
	if in.IdempotencyKey == "" {
		return b.createOrder(ctx, in)
	}
	if id, ok, _ := b.idem.Recall(ctx, in.ParentID, in.IdempotencyKey); ok {
		return id, nil
	}
	locked, err := b.idem.TryLock(ctx, in.ParentID, in.IdempotencyKey)
	if err != nil {
		return "", fmt.Errorf("idempotency lock: %w", err)
	}
	if !locked {
		return "", ErrDuplicate
	}

	orderID, err := b.createOrder(ctx, in)
	if err != nil {
		if relErr := b.idem.Release(ctx, in.ParentID, in.IdempotencyKey); relErr != nil {
			logging.FromCtx(ctx).Warn("release idempotency lock", "parent_id", in.ParentID, "err", relErr)
		}
		return "", err
	}
	if err := b.idem.Remember(ctx, in.ParentID, in.IdempotencyKey, orderID); err != nil {
		logging.FromCtx(ctx).Warn("remember idempotency key", "order_id", orderID, "err", err)
	}
	return orderID, nil
}

func (b *OrderBackend) createOrder(ctx context.Context, in CreateOrderRequest) (string, error) {
	cart, err := b.carts.Snapshot(ctx, in.ParentID)
	if err != nil {
		return "", fmt.Errorf("load cart: %w", err)
	}
	if cart.IsEmpty() {
		return "", domain.ErrEmptyCart
	}
	items, err := json.Marshal(cart.Items)
	if err != nil {
		return "", fmt.Errorf("marshal items: %w", err)
	}

	rec := &OrderRecord{
		ID:              uuid.NewString(),
		ParentID:        in.ParentID,
		Status:          string(domain.StatusPending),
		ShippingMethod:  string(in.ShippingMethod),
		PaymentMethod:   in.PaymentMethod,
		DeliveryAddress: in.DeliveryAddress,
		IsAddressEdited: in.IsAddressEdited,
		TotalPaise:      cart.GrandTotal(in.ShippingMethod, b.gateway.ShippingCharge).Shift(2).IntPart(),
		ItemsJSON:       string(items),
		IdempotencyKey:  in.IdempotencyKey,
	}
	if err := b.repo.Create(ctx, rec); err != nil {
		return "", err
	}
	return rec.ID, nil
}

func (b *OrderBackend) PaymentSessionConfig(ctx context.Context, orderID string) (PaymentSessionConfig, error) {
	rec, err := b.repo.GetByID(ctx, orderID)
	if err != nil {
		return PaymentSessionConfig{}, err
	}
	if rec == nil {
		return PaymentSessionConfig{}, ErrOrderNotFound
	}
	return PaymentSessionConfig{
		ClientID:    b.gateway.ClientID,
		Env:         b.gateway.Env,
		OrderCode:   rec.ID,
		Amount:      decimal.New(rec.TotalPaise, -2).StringFixed(2),
		Currency:    b.gateway.Currency,
		CallbackURL: b.gateway.CallbackURL,
	}, nil
}

func (b *OrderBackend) MarkPaymentSuccess(ctx context.Context, msg PaymentAuditMsg) error {
	return b.record(ctx, msg, domain.StatusPaid, RoutingPaymentSuccess,
		domain.StatusPending, domain.StatusFailed, domain.StatusCancelled)
}

func (b *OrderBackend) MarkPaymentError(ctx context.Context, msg PaymentAuditMsg) error {
	return b.record(ctx, msg, domain.StatusFailed, RoutingPaymentError,
		domain.StatusPending, domain.StatusCancelled)
}

func (b *OrderBackend) MarkPaymentClosed(ctx context.Context, msg PaymentAuditMsg) error {
	return b.record(ctx, msg, domain.StatusCancelled, RoutingPaymentClosed,
		domain.StatusPending)
}

func (b *OrderBackend) record(ctx context.Context, msg PaymentAuditMsg, to domain.Status, routingKey string, from ...domain.Status) error {
	if err := b.payments.Upsert(ctx, PaymentRecord{
		OrderID:              msg.OrderCode,
		Status:               string(to),
		ApplicationCode:      msg.ApplicationCode,
		BankReferenceID:      msg.BankReferenceID,
		TransactionTimestamp: msg.TransactionTimestamp,
		PaymentGroup:         msg.PaymentGroup,
		Event:                msg.Event,
		Error:                msg.Error,
	}); err != nil {
		return fmt.Errorf("record payment: %w", err)
	}

	fromStatuses := make([]string, len(from))
	for i, s := range from {
		fromStatuses[i] = string(s)
	}
	changed, err := b.repo.TransitionStatus(ctx, msg.OrderCode, string(to), fromStatuses...)
	if err != nil {
		return fmt.Errorf("transition order: %w", err)
	}
	// Consumers act on these events, so only a real transition publishes.
	if !changed {
		return nil
	}

	// Publish best-effort; the audit row above is the record of truth.
	if b.audit != nil {
		if msg.ParentID == "" || len(msg.CartItems) == 0 {
			if rec, err := b.repo.GetByID(ctx, msg.OrderCode); err == nil && rec != nil {
				fillFromOrder(&msg, rec)
			}
		}
		if err := b.audit.PublishPayment(ctx, routingKey, msg); err != nil {
			logging.FromCtx(ctx).Warn("audit publish failed", "order_id", msg.OrderCode, "routing_key", routingKey, "err", err)
		}
	}
	return nil
}

// fillFromOrder completes a message that arrived without a live session,
// so consumers still see who paid and for which bundles.
func fillFromOrder(msg *PaymentAuditMsg, rec *OrderRecord) {
	if msg.ParentID == "" {
		msg.ParentID = rec.ParentID
	}
	if len(msg.CartItems) == 0 && rec.ItemsJSON != "" {
		var items []domain.CartItem
		if json.Unmarshal([]byte(rec.ItemsJSON), &items) == nil {
			msg.CartItems = items
		}
	}
}

func (b *OrderBackend) GetOrder(ctx context.Context, id string) (*OrderRecord, error) {
	return b.repo.GetByID(ctx, id)
}

func (b *OrderBackend) ParentOrders(ctx context.Context, parentID string) ([]OrderRecord, error) {
	return b.repo.ListByParent(ctx, parentID)
}

func (b *OrderBackend) Payments(ctx context.Context, orderID string) ([]PaymentRecord, error) {
	return b.payments.ListByOrder(ctx, orderID)
}

var _ OrderAPI = (*OrderBackend)(nil)
