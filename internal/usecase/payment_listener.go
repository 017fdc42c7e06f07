package usecase

import (
	"context"
	"log/slog"

	domain "github.com/gooseberrytechnovision/schooniverse-checkout/internal/entity"
	"github.com/gooseberrytechnovision/schooniverse-checkout/internal/logging"
	"github.com/gooseberrytechnovision/schooniverse-checkout/internal/observ"
	"golang.org/x/sync/errgroup"
)

// PaymentListener consumes widget notifications for one checkout session.
// Every path that can confirm payment goes through Finalizer, so duplicate
// or reordered notifications are harmless.
type PaymentListener struct {
	sess      *Session
	finalizer *Finalizer
	verifier  *Verifier
	inflight  errgroup.Group
}

func NewPaymentListener(sess *Session, finalizer *Finalizer, verifier *Verifier, maxReconciles int) *PaymentListener {
	l := &PaymentListener{sess: sess, finalizer: finalizer, verifier: verifier}
	if maxReconciles > 0 {
		l.inflight.SetLimit(maxReconciles)
	}
	return l
}

// Run handles events until the channel is closed or ctx is done, then
// waits for reconciliations still in flight.
func (l *PaymentListener) Run(ctx context.Context, events <-chan domain.PaymentEvent) error {
	defer l.inflight.Wait()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			l.Handle(ctx, ev)
		}
	}
}

func (l *PaymentListener) Handle(ctx context.Context, ev domain.PaymentEvent) {
	orderID := l.sess.OrderID()
	log := logging.FromCtx(ctx).With("order_id", orderID, "kind", string(ev.Kind), "event", ev.Payload.Event)
	if ev.OrderID != orderID {
		log.Warn("dropping payment event for another order", "event_order_id", ev.OrderID)
		return
	}
	observ.PaymentEvents.WithLabelValues(string(ev.Kind)).Inc()
	ctx = logging.WithCtx(ctx, log)

	switch ev.Kind {
	case domain.PaymentCaptured:
		l.onCaptured(ctx, ev.Payload)
	case domain.PaymentFailed:
		l.onFailed(ctx, ev.Payload)
	case domain.PaymentPopupClosed:
		l.onPopupClosed(ctx, ev.Payload)
	default:
		log.Warn("unknown payment event kind")
	}
}

func (l *PaymentListener) onCaptured(ctx context.Context, p domain.PaymentPayload) {
	if p.Event == domain.EventPaymentCaptured {
		l.sess.MarkDone()
		l.finalize(ctx, domain.OutcomePaid, p)
	}
	// A capture notification is not proof of payment on its own.
	l.reconcile(ctx, p.ApplicationCode)
}

func (l *PaymentListener) onFailed(ctx context.Context, p domain.PaymentPayload) {
	if p.Event == domain.EventPaymentFailed {
		l.sess.MarkFailed()
		l.finalize(ctx, domain.OutcomeFailed, p)
	} else {
		l.sess.AddNotice(domain.Notice{Level: domain.NoticeError, Message: domain.MsgPaymentFailed})
	}
	// The widget has been seen to report failure after a capture.
	if p.ApplicationCode != "" {
		l.reconcile(ctx, p.ApplicationCode)
	}
}

func (l *PaymentListener) onPopupClosed(ctx context.Context, p domain.PaymentPayload) {
	done, failed := l.sess.Flags()
	switch {
	case done:
		l.sess.AddNotice(domain.Notice{Level: domain.NoticeSuccess, Message: domain.MsgOrderPlaced})
		l.finalize(ctx, domain.OutcomePaid, p)
	case failed:
		l.sess.AddNotice(domain.Notice{Level: domain.NoticeError, Message: domain.MsgPaymentFailed})
	default:
		l.sess.MarkClosed()
		l.finalize(ctx, domain.OutcomeCancelled, p)
		l.sess.AddNotice(domain.Notice{Level: domain.NoticeInfo, Message: domain.MsgPaymentCancelled})
	}
	if p.ApplicationCode != "" {
		l.reconcile(ctx, p.ApplicationCode)
	}
}

func (l *PaymentListener) reconcile(ctx context.Context, applicationCode string) {
	if applicationCode == "" || l.verifier == nil {
		return
	}
	l.inflight.Go(func() error {
		status := l.verifier.Verify(ctx, applicationCode)
		if !status.IsPaid() {
			return nil
		}
		l.sess.MarkDone()
		l.finalize(ctx, domain.OutcomePaid, domain.PaymentPayload{
			Event:                domain.EventPaymentCaptured,
			ApplicationCode:      status.ApplicationCode,
			BankReferenceID:      status.BankReferenceID,
			TransactionTimestamp: status.TransactionTimestamp,
			PaymentGroup:         status.PaymentGroup,
		})
		return nil
	})
}

func (l *PaymentListener) finalize(ctx context.Context, outcome domain.Outcome, p domain.PaymentPayload) {
	_, err := l.finalizer.Finalize(ctx, FinalizeRequest{
		OrderID:  l.sess.OrderID(),
		ParentID: l.sess.ParentID,
		Outcome:  outcome,
		Payment:  p,
		Cart:     l.sess.Cart(),
	})
	if err != nil {
		logging.FromCtx(ctx).Error("finalize failed", slog.String("outcome", string(outcome)), slog.Any("err", err))
		l.sess.AddNotice(domain.Notice{Level: domain.NoticeError, Message: domain.MsgTryAgainLater})
	}
}
