package usecase

import (
	"context"

	domain "github.com/gooseberrytechnovision/schooniverse-checkout/internal/entity"
)

// Persistence shape (kept out of domain).
type OrderRecord struct {
	ID, ParentID, Status, ShippingMethod, PaymentMethod string
	DeliveryAddress                                     string
	IsAddressEdited                                     bool
	TotalPaise                                          int64
	ItemsJSON                                           string
	IdempotencyKey                                      string
}

// PaymentRecord is one audit row per (order, outcome).
type PaymentRecord struct {
	OrderID              string `json:"orderId"`
	Status               string `json:"status"`
	ApplicationCode      string `json:"applicationCode"`
	BankReferenceID      string `json:"bankReferenceId"`
	TransactionTimestamp string `json:"transactionTimestamp"`
	PaymentGroup         string `json:"paymentGroup"`
	Event                string `json:"event"`
	Error                string `json:"error"`
}

type OrderRepo interface {
	Create(ctx context.Context, o *OrderRecord) error
	GetByID(ctx context.Context, id string) (*OrderRecord, error)
	ListByParent(ctx context.Context, parentID string) ([]OrderRecord, error)
	// TransitionStatus moves an order to toStatus only from one of the
	// listed statuses and reports whether a row changed.
	TransitionStatus(ctx context.Context, id, toStatus string, from ...string) (bool, error)
}

type PaymentRepo interface {
	// Upsert is keyed on (order_id, status); repeating a write overwrites
	// the same row.
	Upsert(ctx context.Context, p PaymentRecord) error
	ListByOrder(ctx context.Context, orderID string) ([]PaymentRecord, error)
}

type CartStore interface {
	Snapshot(ctx context.Context, parentID string) (domain.CartSnapshot, error)
	AddBundle(ctx context.Context, parentID string, item domain.CartItem) (domain.CartSnapshot, error)
	RemoveBundle(ctx context.Context, parentID string, bundleID int64) (domain.CartSnapshot, error)
	Clear(ctx context.Context, parentID string) error
}

// IdempotencyStore dedupes order placement per (parent, key). Release
// frees a lock whose order was never created.
type IdempotencyStore interface {
	TryLock(ctx context.Context, scope, key string) (bool, error)
	Release(ctx context.Context, scope, key string) error
	Remember(ctx context.Context, scope, key, value string) error
	Recall(ctx context.Context, scope, key string) (string, bool, error)
}

// OutcomeStore applies domain.ResolveOutcome atomically per order.
type OutcomeStore interface {
	Apply(ctx context.Context, orderID string, next domain.Outcome) (prev domain.Outcome, applied bool, err error)
	Get(ctx context.Context, orderID string) (domain.Outcome, error)
}

// AuditPublisher fans payment audit records out to other services.
type AuditPublisher interface {
	PublishPayment(ctx context.Context, routingKey string, msg PaymentAuditMsg) error
}

// OrderAPI is what the checkout flow needs from the order backend.
type OrderAPI interface {
	CreateOrder(ctx context.Context, in CreateOrderRequest) (string, error)
	PaymentSessionConfig(ctx context.Context, orderID string) (PaymentSessionConfig, error)
	MarkPaymentSuccess(ctx context.Context, msg PaymentAuditMsg) error
	MarkPaymentError(ctx context.Context, msg PaymentAuditMsg) error
	MarkPaymentClosed(ctx context.Context, msg PaymentAuditMsg) error
}

// PaymentAuthority returns nil, nil when it has no successful record.
type PaymentAuthority interface {
	FetchPayment(ctx context.Context, applicationCode string) (*domain.ReconciledPaymentStatus, error)
}

// PaymentWidget hands a session configuration to the hosted widget.
type PaymentWidget interface {
	Open(ctx context.Context, opts WidgetOptions) error
}

type Navigator interface {
	Navigate(ctx context.Context, orderID, path string)
}
