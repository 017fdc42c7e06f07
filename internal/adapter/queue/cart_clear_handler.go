package queue

import (
	"context"
	"fmt"

	"github.com/gooseberrytechnovision/schooniverse-checkout/internal/logging"
	"github.com/gooseberrytechnovision/schooniverse-checkout/internal/usecase"
)

// CartClearHandler takes paid bundles out of a parent's cart. When the
// message lists the paid lines only those go, so bundles added after
// checkout survive; otherwise the whole cart is cleared.
type CartClearHandler struct {
	carts usecase.CartStore
}

func NewCartClearHandler(carts usecase.CartStore) *CartClearHandler {
	return &CartClearHandler{carts: carts}
}

// HandleSuccess is wrapped with Decode[usecase.PaymentAuditMsg].
func (h *CartClearHandler) HandleSuccess(ctx context.Context, msg usecase.PaymentAuditMsg) error {
	if msg.ParentID == "" {
		logging.FromCtx(ctx).Warn("payment success without parent id", "order_id", msg.OrderCode)
		return nil
	}
	if len(msg.CartItems) == 0 {
		return h.carts.Clear(ctx, msg.ParentID)
	}
	seen := make(map[int64]struct{}, len(msg.CartItems))
	for _, it := range msg.CartItems {
		if _, dup := seen[it.BundleID]; dup {
			continue
		}
		seen[it.BundleID] = struct{}{}
		if _, err := h.carts.RemoveBundle(ctx, msg.ParentID, it.BundleID); err != nil {
			return fmt.Errorf("remove bundle %d: %w", it.BundleID, err)
		}
	}
	return nil
}
