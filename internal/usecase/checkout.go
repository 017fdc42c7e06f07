package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	domain "github.com/gooseberrytechnovision/schooniverse-checkout/internal/entity"
	"github.com/gooseberrytechnovision/schooniverse-checkout/internal/logging"
	"github.com/gooseberrytechnovision/schooniverse-checkout/internal/observ"
)

// SessionRegistry indexes live sessions by order id. It is the Navigator
// the finalizer uses: navigation lands on the session's redirect.
type SessionRegistry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{sessions: map[string]*Session{}}
}

func (r *SessionRegistry) Get(orderID string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[orderID]
	return s, ok
}

func (r *SessionRegistry) put(orderID string, s *Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[orderID]; ok {
		return false
	}
	r.sessions[orderID] = s
	return true
}

func (r *SessionRegistry) remove(orderID string) {
	r.mu.Lock()
	delete(r.sessions, orderID)
	r.mu.Unlock()
}

func (r *SessionRegistry) Navigate(ctx context.Context, orderID, path string) {
	s, ok := r.Get(orderID)
	if !ok {
		logging.FromCtx(ctx).Info("no live session to navigate", "order_id", orderID, "path", path)
		return
	}
	s.SetRedirect(path)
}

var _ Navigator = (*SessionRegistry)(nil)

type CheckoutConfig struct {
	SessionTTL    time.Duration
	MaxReconciles int
}

type BeginCheckoutInput struct {
	ParentID       string
	CustomerMobile string
	PlaceOrderInput
}

// CheckoutService owns live checkout sessions: one per placed order, each
// with a single event subscription torn down when the session ends.
type CheckoutService struct {
	carts     CartStore
	place     *PlaceOrder
	finalizer *Finalizer
	verifier  *Verifier
	bus       *EventBus
	registry  *SessionRegistry
	cfg       CheckoutConfig

	baseCtx context.Context
	stop    context.CancelFunc
	wg      sync.WaitGroup
}

func NewCheckoutService(carts CartStore, place *PlaceOrder, finalizer *Finalizer, verifier *Verifier, bus *EventBus, registry *SessionRegistry, cfg CheckoutConfig) *CheckoutService {
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 30 * time.Minute
	}
	ctx, stop := context.WithCancel(context.Background())
	return &CheckoutService{
		carts:     carts,
		place:     place,
		finalizer: finalizer,
		verifier:  verifier,
		bus:       bus,
		registry:  registry,
		cfg:       cfg,
		baseCtx:   ctx,
		stop:      stop,
	}
}

// Begin places an order from the parent's cart and starts listening for
// its payment events. A PaymentSessionError still returns the session view
// because the order exists.
func (s *CheckoutService) Begin(ctx context.Context, in BeginCheckoutInput) (SessionView, error) {
	sess := NewSession(in.ParentID, in.CustomerMobile)
	if err := sess.LoadCart(ctx, s.carts); err != nil {
		return SessionView{}, err
	}

	order, err := s.place.Execute(ctx, sess, in.PlaceOrderInput)
	if order.OrderID == "" {
		return SessionView{}, err
	}

	// A replayed idempotency key resolves to an order that is already live.
	if live, ok := s.registry.Get(order.OrderID); ok {
		return live.View(), nil
	}
	if startErr := s.start(ctx, sess); startErr != nil {
		return SessionView{}, startErr
	}

	return sess.View(), err
}

func (s *CheckoutService) start(ctx context.Context, sess *Session) error {
	orderID := sess.OrderID()
	events, unsubscribe, err := s.bus.Subscribe(orderID)
	if err != nil {
		return err
	}
	if !s.registry.put(orderID, sess) {
		unsubscribe()
		return ErrAlreadySubscribed
	}

	log := logging.FromCtx(ctx).With("order_id", orderID, "parent_id", sess.ParentID)
	lctx, cancel := context.WithTimeout(logging.WithCtx(s.baseCtx, log), s.cfg.SessionTTL)
	listener := NewPaymentListener(sess, s.finalizer, s.verifier, s.cfg.MaxReconciles)

	s.wg.Add(1)
	observ.ActiveSessions.Inc()
	go func() {
		defer s.wg.Done()
		defer observ.ActiveSessions.Dec()
		defer cancel()
		defer s.registry.remove(orderID)
		defer unsubscribe()

		if err := listener.Run(lctx, events); err != nil && !errors.Is(err, context.Canceled) {
			log.Info("checkout session ended", "reason", err.Error())
		}
	}()
	return nil
}

// Deliver relays a widget notification to the order's session.
func (s *CheckoutService) Deliver(ctx context.Context, ev domain.PaymentEvent) error {
	return s.bus.Publish(ctx, ev)
}

func (s *CheckoutService) View(orderID string) (SessionView, bool) {
	sess, ok := s.registry.Get(orderID)
	if !ok {
		return SessionView{}, false
	}
	return sess.View(), true
}

// Close ends every live session and waits for their listeners.
func (s *CheckoutService) Close() {
	s.stop()
	s.wg.Wait()
}
