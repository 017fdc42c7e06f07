package domain

import (
	"bytes"
	"cmp"
	"encoding/json"
	"fmt"
)

// Discriminators carried in the widget payload's "event" field.
const (
	EventPaymentCaptured = "dt.payment.captured"
	EventPaymentFailed   = "dt.payment.failed"
)

type PaymentEventKind string

const (
	PaymentCaptured    PaymentEventKind = "captured"
	PaymentFailed      PaymentEventKind = "failed"
	PaymentPopupClosed PaymentEventKind = "popup_closed"
)

func (k PaymentEventKind) Valid() bool {
	switch k {
	case PaymentCaptured, PaymentFailed, PaymentPopupClosed:
		return true
	}
	return false
}

// PaymentPayload is the vendor-defined body of a widget notification.
type PaymentPayload struct {
	Event                string `json:"event"`
	ApplicationCode      string `json:"application_code"`
	BankReferenceID      string `json:"bank_reference_id,omitempty"`
	TransactionTimestamp string `json:"transaction_timestamp,omitempty"`
	PaymentGroup         string `json:"payment_group,omitempty"`
	Error                string `json:"error,omitempty"`
}

// UnmarshalJSON accepts "event" either as the discriminator string or as
// the nested object the widget sends on popup close, whose fields fill in
// anything missing at the top level.
func (p *PaymentPayload) UnmarshalJSON(data []byte) error {
	type plain PaymentPayload
	var raw struct {
		plain
		Event json.RawMessage `json:"event"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*p = PaymentPayload(raw.plain)
	p.Event = ""

	ev := bytes.TrimSpace(raw.Event)
	switch {
	case len(ev) == 0 || bytes.Equal(ev, []byte("null")):
		return nil
	case ev[0] == '"':
		return json.Unmarshal(ev, &p.Event)
	case ev[0] == '{':
		var nested PaymentPayload
		if err := json.Unmarshal(ev, &nested); err != nil {
			return fmt.Errorf("payment payload event: %w", err)
		}
		p.Event = nested.Event
		p.ApplicationCode = cmp.Or(p.ApplicationCode, nested.ApplicationCode)
		p.BankReferenceID = cmp.Or(p.BankReferenceID, nested.BankReferenceID)
		p.TransactionTimestamp = cmp.Or(p.TransactionTimestamp, nested.TransactionTimestamp)
		p.PaymentGroup = cmp.Or(p.PaymentGroup, nested.PaymentGroup)
		p.Error = cmp.Or(p.Error, nested.Error)
		return nil
	}
	return fmt.Errorf("payment payload event: unexpected %s", ev)
}

type PaymentEvent struct {
	Kind    PaymentEventKind
	OrderID string
	Payload PaymentPayload
}

type PaymentStatus string

const (
	PaymentPaid    PaymentStatus = "PAID"
	PaymentPending PaymentStatus = "PENDING"
	PaymentFail    PaymentStatus = "FAILED"
	PaymentUnknown PaymentStatus = "UNKNOWN"
)

func ParsePaymentStatus(s string) PaymentStatus {
	switch PaymentStatus(s) {
	case PaymentPaid, PaymentPending, PaymentFail:
		return PaymentStatus(s)
	}
	return PaymentUnknown
}

// ReconciledPaymentStatus is what the payment authority reports for an
// application code. It wins over any widget notification.
type ReconciledPaymentStatus struct {
	ApplicationCode      string        `json:"application_code"`
	PaymentStatus        PaymentStatus `json:"payment_status"`
	BankReferenceID      string        `json:"bank_reference_id,omitempty"`
	TransactionTimestamp string        `json:"transaction_timestamp,omitempty"`
	PaymentGroup         string        `json:"payment_group,omitempty"`
}

func (r *ReconciledPaymentStatus) IsPaid() bool {
	return r != nil && r.PaymentStatus == PaymentPaid
}

type Outcome string

const (
	OutcomeNone      Outcome = ""
	OutcomePaid      Outcome = "PAID"
	OutcomeFailed    Outcome = "FAILED"
	OutcomeCancelled Outcome = "CANCELLED"
)

func (o Outcome) Valid() bool {
	return o == OutcomePaid || o == OutcomeFailed || o == OutcomeCancelled
}

// OrderStatus maps a finalized outcome onto the persisted order status.
func (o Outcome) OrderStatus() Status {
	switch o {
	case OutcomePaid:
		return StatusPaid
	case OutcomeFailed:
		return StatusFailed
	case OutcomeCancelled:
		return StatusCancelled
	}
	return StatusPending
}

// ResolveOutcome decides whether next replaces prev. PAID is terminal:
// nothing replaces it. Re-applying the stored outcome is a no-op.
func ResolveOutcome(prev, next Outcome) (Outcome, bool) {
	if prev == OutcomePaid || prev == next {
		return prev, false
	}
	return next, true
}

// Notice is a user-facing message (what the portal shows as a toast).
type Notice struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}

const (
	NoticeSuccess = "success"
	NoticeError   = "error"
	NoticeInfo    = "info"
)

const (
	MsgOrderPlaced      = "Order placed successfully!"
	MsgPaymentFailed    = "Payment failed. Please try again."
	MsgPaymentCancelled = "Payment cancelled by user."
	MsgTryAgainLater    = "Something went wrong on our end. Please try again later."
)
