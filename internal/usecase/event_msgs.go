package usecase

import domain "github.com/gooseberrytechnovision/schooniverse-checkout/internal/entity"

type CreateOrderRequest struct {
	ParentID        string
	ShippingMethod  domain.ShippingMethod
	PaymentMethod   string
	IsAddressEdited bool
	DeliveryAddress string
	IdempotencyKey  string
}

// PaymentSessionConfig is passed through to the hosted widget untouched.
type PaymentSessionConfig struct {
	ClientID    string `json:"client_id"`
	Env         string `json:"env"`
	OrderCode   string `json:"order_code"`
	Amount      string `json:"amount"`
	Currency    string `json:"currency"`
	CallbackURL string `json:"callback_url,omitempty"`
}

type WidgetOptions struct {
	OrderID        string               `json:"orderId"`
	Config         PaymentSessionConfig `json:"config"`
	CustomerMobile string               `json:"customer_mobile"`
}

// PaymentAuditMsg is published on payment.success / payment.error /
// payment.closed and persisted as a PaymentRecord.
type PaymentAuditMsg struct {
	OrderCode            string            `json:"order_code"`
	ParentID             string            `json:"parent_id"`
	Event                string            `json:"event,omitempty"`
	ApplicationCode      string            `json:"application_code,omitempty"`
	BankReferenceID      string            `json:"bank_reference_id,omitempty"`
	TransactionTimestamp string            `json:"transaction_timestamp,omitempty"`
	PaymentGroup         string            `json:"payment_group,omitempty"`
	Error                string            `json:"error,omitempty"`
	CartItems            []domain.CartItem `json:"cartItems"`
}

// Sent by the payment gateway on Kafka
type PaymentStatusChangedMsg struct {
	OrderID              string `json:"orderId"`
	ApplicationCode      string `json:"applicationCode"`
	Status               string `json:"status"` // e.g. "PAID"
	BankReferenceID      string `json:"bankReferenceId"`
	TransactionTimestamp string `json:"transactionTimestamp"`
}
