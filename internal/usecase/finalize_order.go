package usecase

import (
	"context"
	"fmt"
	"strconv"

	domain "github.com/gooseberrytechnovision/schooniverse-checkout/internal/entity"
	"github.com/gooseberrytechnovision/schooniverse-checkout/internal/logging"
	"github.com/gooseberrytechnovision/schooniverse-checkout/internal/observ"
)

type FinalizeRequest struct {
	OrderID  string
	ParentID string
	Outcome  domain.Outcome
	Payment  domain.PaymentPayload
	Cart     domain.CartSnapshot
}

// Finalizer is the single entry point for terminal order outcomes. All
// idempotency comes from OutcomeStore.Apply being atomic per order id.
type Finalizer struct {
	outcomes OutcomeStore
	orders   OrderAPI
	nav      Navigator
}

func NewFinalizer(outcomes OutcomeStore, orders OrderAPI, nav Navigator) *Finalizer {
	return &Finalizer{outcomes: outcomes, orders: orders, nav: nav}
}

// ConfirmationPath is the view the parent lands on after payment.
func ConfirmationPath(orderID string) string {
	return "/thankyou/" + orderID
}

// Finalize reports whether this call changed the stored outcome. Only the
// call that applies PAID persists success details and navigates.
func (f *Finalizer) Finalize(ctx context.Context, req FinalizeRequest) (bool, error) {
	if req.OrderID == "" || !req.Outcome.Valid() {
		return false, fmt.Errorf("finalize: invalid request order=%q outcome=%q", req.OrderID, req.Outcome)
	}
	log := logging.FromCtx(ctx).With("order_id", req.OrderID, "outcome", string(req.Outcome))

	prev, applied, err := f.outcomes.Apply(ctx, req.OrderID, req.Outcome)
	observ.Finalizations.WithLabelValues(string(req.Outcome), strconv.FormatBool(applied)).Inc()
	if err != nil {
		return false, fmt.Errorf("apply outcome: %w", err)
	}
	if !applied {
		log.Debug("finalize no-op", "stored", string(prev))
		return false, nil
	}

	msg := auditMsg(req)

	switch req.Outcome {
	case domain.OutcomePaid:
		// PAID is already sticky in the store; a failed write here is
		// logged and left for the gateway status stream to repair.
		if err := f.orders.MarkPaymentSuccess(ctx, msg); err != nil {
			log.Error("persist payment success failed", "err", err)
		}
		if f.nav != nil {
			f.nav.Navigate(ctx, req.OrderID, ConfirmationPath(req.OrderID))
		}
	case domain.OutcomeFailed:
		if err := f.orders.MarkPaymentError(ctx, msg); err != nil {
			log.Error("persist payment error failed", "err", err)
		}
	case domain.OutcomeCancelled:
		if err := f.orders.MarkPaymentClosed(ctx, msg); err != nil {
			log.Warn("persist payment closed failed", "err", err)
		}
	}

	log.Info("order finalized", "previous", string(prev))
	return true, nil
}

// Reconfirm writes payment success again for an order whose stored outcome
// is already PAID. It repairs a success that was stored but never
// persisted; the order API publishes only if the order row actually moves.
func (f *Finalizer) Reconfirm(ctx context.Context, req FinalizeRequest) error {
	stored, err := f.outcomes.Get(ctx, req.OrderID)
	if err != nil {
		return fmt.Errorf("load outcome: %w", err)
	}
	if stored != domain.OutcomePaid {
		return nil
	}
	return f.orders.MarkPaymentSuccess(ctx, auditMsg(req))
}

func auditMsg(req FinalizeRequest) PaymentAuditMsg {
	return PaymentAuditMsg{
		OrderCode:            req.OrderID,
		ParentID:             req.ParentID,
		Event:                req.Payment.Event,
		ApplicationCode:      req.Payment.ApplicationCode,
		BankReferenceID:      req.Payment.BankReferenceID,
		TransactionTimestamp: req.Payment.TransactionTimestamp,
		PaymentGroup:         req.Payment.PaymentGroup,
		Error:                req.Payment.Error,
		CartItems:            req.Cart.Items,
	}
}
