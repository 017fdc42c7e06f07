package usecase

import (
	"context"
	"testing"
	"time"

	domain "github.com/gooseberrytechnovision/schooniverse-checkout/internal/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type checkoutFixture struct {
	carts    *memCarts
	api      *fakeOrderAPI
	outcomes *memOutcomes
	auth     *fakeAuthority
	bus      *EventBus
	registry *SessionRegistry
	svc      *CheckoutService
}

func newCheckoutFixture(t *testing.T, cfg CheckoutConfig) *checkoutFixture {
	t.Helper()
	f := &checkoutFixture{
		carts:    newMemCarts(),
		api:      &fakeOrderAPI{},
		outcomes: newMemOutcomes(),
		auth:     &fakeAuthority{},
		bus:      NewEventBus(4),
		registry: NewSessionRegistry(),
	}
	finalizer := NewFinalizer(f.outcomes, f.api, f.registry)
	f.svc = NewCheckoutService(f.carts, NewPlaceOrder(f.api, shippingCharge), finalizer,
		NewVerifier(f.auth, fastPolicy()), f.bus, f.registry, cfg)
	t.Cleanup(f.svc.Close)
	return f
}

func beginInput() BeginCheckoutInput {
	return BeginCheckoutInput{
		ParentID:        "parent-1",
		CustomerMobile:  "9999999999",
		PlaceOrderInput: PlaceOrderInput{Shipping: domain.ShippingSchool},
	}
}

func TestCheckout_CaptureRedirectsToConfirmation(t *testing.T) {
	f := newCheckoutFixture(t, CheckoutConfig{})
	_, err := f.carts.AddBundle(context.Background(), "parent-1", item(7, 1, 1200, ""))
	require.NoError(t, err)

	view, err := f.svc.Begin(context.Background(), beginInput())
	require.NoError(t, err)
	assert.Equal(t, "order-1", view.OrderID)
	assert.Equal(t, StateAwaitingPayment, view.State)
	require.NotNil(t, view.Widget)

	err = f.svc.Deliver(context.Background(), domain.PaymentEvent{
		Kind:    domain.PaymentCaptured,
		OrderID: "order-1",
		Payload: domain.PaymentPayload{Event: domain.EventPaymentCaptured},
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		v, ok := f.svc.View("order-1")
		return ok && v.Redirect == "/thankyou/order-1"
	}, time.Second, 5*time.Millisecond)

	_, success, _, _ := f.api.counts()
	assert.Equal(t, 1, success)
	assert.Equal(t, "parent-1", f.api.success[0].ParentID)
}

func TestCheckout_EmptyCart(t *testing.T) {
	f := newCheckoutFixture(t, CheckoutConfig{})

	_, err := f.svc.Begin(context.Background(), beginInput())
	assert.ErrorIs(t, err, domain.ErrEmptyCart)
	assert.Zero(t, f.bus.Len())
}

func TestCheckout_ReplayReturnsLiveSession(t *testing.T) {
	f := newCheckoutFixture(t, CheckoutConfig{})
	_, _ = f.carts.AddBundle(context.Background(), "parent-1", item(7, 1, 1200, ""))

	first, err := f.svc.Begin(context.Background(), beginInput())
	require.NoError(t, err)
	second, err := f.svc.Begin(context.Background(), beginInput())
	require.NoError(t, err)

	assert.Equal(t, first.OrderID, second.OrderID)
	assert.Equal(t, 1, f.bus.Len())
}

func TestCheckout_DeliverWithoutSession(t *testing.T) {
	f := newCheckoutFixture(t, CheckoutConfig{})
	err := f.svc.Deliver(context.Background(), domain.PaymentEvent{Kind: domain.PaymentCaptured, OrderID: "ghost"})
	assert.ErrorIs(t, err, ErrNoSubscriber)
}

func TestCheckout_SessionExpiresAndTearsDown(t *testing.T) {
	f := newCheckoutFixture(t, CheckoutConfig{SessionTTL: 20 * time.Millisecond})
	_, _ = f.carts.AddBundle(context.Background(), "parent-1", item(7, 1, 1200, ""))

	_, err := f.svc.Begin(context.Background(), beginInput())
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		_, ok := f.svc.View("order-1")
		return !ok && f.bus.Len() == 0
	}, time.Second, 5*time.Millisecond)
}

func TestCheckout_CloseEndsSessions(t *testing.T) {
	f := newCheckoutFixture(t, CheckoutConfig{})
	_, _ = f.carts.AddBundle(context.Background(), "parent-1", item(7, 1, 1200, ""))

	_, err := f.svc.Begin(context.Background(), beginInput())
	require.NoError(t, err)

	f.svc.Close()
	_, ok := f.svc.View("order-1")
	assert.False(t, ok)
	assert.Zero(t, f.bus.Len())
}

func TestCheckout_PaymentSessionFailureStillListens(t *testing.T) {
	f := newCheckoutFixture(t, CheckoutConfig{})
	f.api.configErr = errBackend
	_, _ = f.carts.AddBundle(context.Background(), "parent-1", item(7, 1, 1200, ""))

	view, err := f.svc.Begin(context.Background(), beginInput())
	var sessErr *PaymentSessionError
	require.ErrorAs(t, err, &sessErr)
	assert.Equal(t, "order-1", view.OrderID)
	assert.Equal(t, 1, f.bus.Len())
}
