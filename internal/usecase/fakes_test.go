package usecase

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	domain "github.com/gooseberrytechnovision/schooniverse-checkout/internal/entity"
	"github.com/shopspring/decimal"
)

var errBackend = errors.New("backend unavailable")

type fakeOrderAPI struct {
	mu        sync.Mutex
	created   []CreateOrderRequest
	createErr error
	configErr error
	markErr   error
	success   []PaymentAuditMsg
	errored   []PaymentAuditMsg
	closed    []PaymentAuditMsg
	nextID    string
}

func (f *fakeOrderAPI) CreateOrder(_ context.Context, in CreateOrderRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, in)
	if f.createErr != nil {
		return "", f.createErr
	}
	if f.nextID == "" {
		return "order-1", nil
	}
	return f.nextID, nil
}

func (f *fakeOrderAPI) PaymentSessionConfig(_ context.Context, orderID string) (PaymentSessionConfig, error) {
	if f.configErr != nil {
		return PaymentSessionConfig{}, f.configErr
	}
	return PaymentSessionConfig{ClientID: "gq-client", Env: "test", OrderCode: orderID, Amount: "1200.00", Currency: "INR"}, nil
}

func (f *fakeOrderAPI) MarkPaymentSuccess(_ context.Context, msg PaymentAuditMsg) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.success = append(f.success, msg)
	return f.markErr
}

func (f *fakeOrderAPI) MarkPaymentError(_ context.Context, msg PaymentAuditMsg) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errored = append(f.errored, msg)
	return f.markErr
}

func (f *fakeOrderAPI) MarkPaymentClosed(_ context.Context, msg PaymentAuditMsg) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = append(f.closed, msg)
	return f.markErr
}

func (f *fakeOrderAPI) counts() (created, success, errored, closed int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.created), len(f.success), len(f.errored), len(f.closed)
}

// memOutcomes is the in-process OutcomeStore used by use case tests.
type memOutcomes struct {
	mu sync.Mutex
	m  map[string]domain.Outcome
}

func newMemOutcomes() *memOutcomes { return &memOutcomes{m: map[string]domain.Outcome{}} }

func (s *memOutcomes) Apply(_ context.Context, orderID string, next domain.Outcome) (domain.Outcome, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.m[orderID]
	out, applied := domain.ResolveOutcome(prev, next)
	s.m[orderID] = out
	return prev, applied, nil
}

func (s *memOutcomes) Get(_ context.Context, orderID string) (domain.Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.m[orderID], nil
}

type recordingNav struct {
	mu    sync.Mutex
	paths []string
}

func (n *recordingNav) Navigate(_ context.Context, _ string, path string) {
	n.mu.Lock()
	n.paths = append(n.paths, path)
	n.mu.Unlock()
}

func (n *recordingNav) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.paths)
}

type fakeAuthority struct {
	calls atomic.Int32
	fetch func(call int, code string) (*domain.ReconciledPaymentStatus, error)
}

func (a *fakeAuthority) FetchPayment(_ context.Context, code string) (*domain.ReconciledPaymentStatus, error) {
	n := int(a.calls.Add(1))
	if a.fetch == nil {
		return nil, nil
	}
	return a.fetch(n, code)
}

func paidStatus(code string) *domain.ReconciledPaymentStatus {
	return &domain.ReconciledPaymentStatus{ApplicationCode: code, PaymentStatus: domain.PaymentPaid, BankReferenceID: "BR-" + code}
}

type memCarts struct {
	mu       sync.Mutex
	snaps    map[string]domain.CartSnapshot
	snapshot atomic.Int32
}

func newMemCarts() *memCarts { return &memCarts{snaps: map[string]domain.CartSnapshot{}} }

func (c *memCarts) Snapshot(_ context.Context, parentID string) (domain.CartSnapshot, error) {
	c.snapshot.Add(1)
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.snaps[parentID]
	s.ParentID = parentID
	return s.Clone(), nil
}

func (c *memCarts) AddBundle(ctx context.Context, parentID string, it domain.CartItem) (domain.CartSnapshot, error) {
	c.mu.Lock()
	s := c.snaps[parentID]
	s.Items = append(s.Items, it)
	c.snaps[parentID] = s
	c.mu.Unlock()
	return c.Snapshot(ctx, parentID)
}

func (c *memCarts) RemoveBundle(ctx context.Context, parentID string, bundleID int64) (domain.CartSnapshot, error) {
	c.mu.Lock()
	s := c.snaps[parentID]
	kept := s.Items[:0]
	for _, it := range s.Items {
		if it.BundleID != bundleID {
			kept = append(kept, it)
		}
	}
	s.Items = kept
	c.snaps[parentID] = s
	c.mu.Unlock()
	return c.Snapshot(ctx, parentID)
}

func (c *memCarts) Clear(_ context.Context, parentID string) error {
	c.mu.Lock()
	delete(c.snaps, parentID)
	c.mu.Unlock()
	return nil
}

func item(bundleID int64, qty int, price int64, address string) domain.CartItem {
	return domain.CartItem{
		BundleID:  bundleID,
		Quantity:  qty,
		UnitPrice: decimal.NewFromInt(price),
		StudentID: 11,
		Bundle:    domain.BundleMeta{Name: "Kit"},
		Student:   domain.StudentMeta{Name: "Asha", Address: address},
	}
}

func sessionWith(items ...domain.CartItem) *Session {
	s := NewSession("parent-1", "9999999999")
	s.SetCart(domain.CartSnapshot{ParentID: "parent-1", Items: items})
	return s
}
