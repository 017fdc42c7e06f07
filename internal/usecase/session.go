package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	domain "github.com/gooseberrytechnovision/schooniverse-checkout/internal/entity"
)

var ErrSessionBound = errors.New("checkout session already has an order")

type SessionState string

const (
	StateCart            SessionState = "CART"
	StateAwaitingPayment SessionState = "AWAITING_PAYMENT"
	StateCaptured        SessionState = "CAPTURED"
	StateFailed          SessionState = "FAILED"
	StateClosed          SessionState = "CLOSED"
)

// Session is the per-checkout state shared by the coordinator and the
// payment listener. The order id is fixed on first bind.
type Session struct {
	ParentID       string
	CustomerMobile string
	StartedAt      time.Time

	mu            sync.Mutex
	cart          domain.CartSnapshot
	order         *domain.PendingOrder
	state         SessionState
	paymentDone   bool
	paymentFailed bool
	notices       []domain.Notice
	redirect      string
	widget        *WidgetOptions
}

func NewSession(parentID, customerMobile string) *Session {
	return &Session{
		ParentID:       parentID,
		CustomerMobile: customerMobile,
		StartedAt:      time.Now(),
		state:          StateCart,
	}
}

// LoadCart refreshes the snapshot from the store. It is skipped once a
// payment has been captured so the confirmed cart is kept.
func (s *Session) LoadCart(ctx context.Context, store CartStore) error {
	if done, _ := s.Flags(); done {
		return nil
	}
	snap, err := store.Snapshot(ctx, s.ParentID)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.cart = snap.Clone()
	s.mu.Unlock()
	return nil
}

func (s *Session) SetCart(c domain.CartSnapshot) {
	s.mu.Lock()
	s.cart = c.Clone()
	s.mu.Unlock()
}

func (s *Session) Cart() domain.CartSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.Clone()
}

func (s *Session) BindOrder(o domain.PendingOrder) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.order != nil {
		return ErrSessionBound
	}
	s.order = &o
	return nil
}

func (s *Session) OrderID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.order == nil {
		return ""
	}
	return s.order.OrderID
}

func (s *Session) Order() (domain.PendingOrder, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.order == nil {
		return domain.PendingOrder{}, false
	}
	return *s.order, true
}

// Open records the widget hand-off; the browser renders the hosted widget
// from these options.
func (s *Session) Open(_ context.Context, opts WidgetOptions) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.widget = &opts
	s.state = StateAwaitingPayment
	return nil
}

func (s *Session) MarkDone() {
	s.mu.Lock()
	s.paymentDone = true
	s.state = StateCaptured
	s.mu.Unlock()
}

func (s *Session) MarkFailed() {
	s.mu.Lock()
	s.paymentFailed = true
	if !s.paymentDone {
		s.state = StateFailed
	}
	s.mu.Unlock()
}

func (s *Session) MarkClosed() {
	s.mu.Lock()
	if !s.paymentDone && !s.paymentFailed {
		s.state = StateClosed
	}
	s.mu.Unlock()
}

func (s *Session) Flags() (done, failed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paymentDone, s.paymentFailed
}

func (s *Session) AddNotice(n domain.Notice) {
	s.mu.Lock()
	s.notices = append(s.notices, n)
	s.mu.Unlock()
}

// SetRedirect keeps the first navigation target; later calls are ignored.
func (s *Session) SetRedirect(path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.redirect != "" {
		return false
	}
	s.redirect = path
	return true
}

type SessionView struct {
	OrderID       string          `json:"orderId"`
	ParentID      string          `json:"parentId"`
	State         SessionState    `json:"state"`
	PaymentDone   bool            `json:"paymentDone"`
	PaymentFailed bool            `json:"paymentFailed"`
	Redirect      string          `json:"redirect,omitempty"`
	Notices       []domain.Notice `json:"notices"`
	Widget        *WidgetOptions  `json:"widget,omitempty"`
}

func (s *Session) View() SessionView {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := SessionView{
		ParentID:      s.ParentID,
		State:         s.state,
		PaymentDone:   s.paymentDone,
		PaymentFailed: s.paymentFailed,
		Redirect:      s.redirect,
		Notices:       append(make([]domain.Notice, 0, len(s.notices)), s.notices...),
		Widget:        s.widget,
	}
	if s.order != nil {
		v.OrderID = s.order.OrderID
	}
	return v
}

var _ PaymentWidget = (*Session)(nil)
