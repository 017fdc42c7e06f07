package usecase

import (
	"context"
	"errors"

	domain "github.com/gooseberrytechnovision/schooniverse-checkout/internal/entity"
)

var ErrMissingOrderID = errors.New("payment status message without order id")

// SettlePayment applies gateway-pushed payment statuses. It reaches orders
// whose browser session is gone, and goes through the same Finalizer.
type SettlePayment struct {
	finalizer *Finalizer
	registry  *SessionRegistry
}

func NewSettlePayment(finalizer *Finalizer, registry *SessionRegistry) *SettlePayment {
	return &SettlePayment{finalizer: finalizer, registry: registry}
}

func (uc *SettlePayment) Execute(ctx context.Context, msg PaymentStatusChangedMsg) error {
	if msg.OrderID == "" {
		return ErrMissingOrderID
	}

	// Map external status -> outcome; pending/unknown leave the order alone.
	var outcome domain.Outcome
	switch domain.ParsePaymentStatus(msg.Status) {
	case domain.PaymentPaid:
		outcome = domain.OutcomePaid
	case domain.PaymentFail:
		outcome = domain.OutcomeFailed
	default:
		return nil
	}

	req := FinalizeRequest{
		OrderID: msg.OrderID,
		Outcome: outcome,
		Payment: domain.PaymentPayload{
			Event:                gatewayEvent(outcome),
			ApplicationCode:      msg.ApplicationCode,
			BankReferenceID:      msg.BankReferenceID,
			TransactionTimestamp: msg.TransactionTimestamp,
		},
	}
	if sess, ok := uc.registry.Get(msg.OrderID); ok {
		req.ParentID = sess.ParentID
		req.Cart = sess.Cart()
		if outcome == domain.OutcomePaid {
			sess.MarkDone()
		}
	}
	applied, err := uc.finalizer.Finalize(ctx, req)
	if err != nil || applied || outcome != domain.OutcomePaid {
		return err
	}
	return uc.finalizer.Reconfirm(ctx, req)
}

func gatewayEvent(o domain.Outcome) string {
	if o == domain.OutcomePaid {
		return domain.EventPaymentCaptured
	}
	return domain.EventPaymentFailed
}
