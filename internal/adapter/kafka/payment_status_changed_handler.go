package kafka

import (
	"context"
	"errors"
	"fmt"

	"github.com/gooseberrytechnovision/schooniverse-checkout/internal/usecase"
)

// PaymentStatusChangedHandler settles orders from gateway status pushes.
type PaymentStatusChangedHandler struct {
	settle *usecase.SettlePayment
}

func NewPaymentStatusChangedHandler(settle *usecase.SettlePayment) *PaymentStatusChangedHandler {
	return &PaymentStatusChangedHandler{settle: settle}
}

func (h *PaymentStatusChangedHandler) Handle(ctx context.Context, ev usecase.PaymentStatusChangedMsg) error {
	err := h.settle.Execute(ctx, ev)
	if errors.Is(err, usecase.ErrMissingOrderID) {
		return fmt.Errorf("%w: %v", ErrSkip, err)
	}
	return err
}
