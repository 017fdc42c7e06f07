package usecase

import (
	"context"
	"errors"
	"sync"

	domain "github.com/gooseberrytechnovision/schooniverse-checkout/internal/entity"
)

var (
	ErrNoSubscriber      = errors.New("no checkout session is listening for this order")
	ErrAlreadySubscribed = errors.New("order already has a payment listener")
)

// EventBus routes widget notifications to the one listener registered for
// each order id. The bus lock only guards the lookup table; a send that
// waits on a full channel holds its own subscription, never the bus.
type EventBus struct {
	mu     sync.RWMutex
	subs   map[string]*subscriber
	buffer int
}

type subscriber struct {
	ch   chan domain.PaymentEvent
	done chan struct{}
	// senders hold RLock while sending; teardown takes Lock to close ch.
	sending sync.RWMutex
}

func NewEventBus(buffer int) *EventBus {
	if buffer <= 0 {
		buffer = 8
	}
	return &EventBus{subs: map[string]*subscriber{}, buffer: buffer}
}

// Subscribe returns the event channel for orderID and its teardown. The
// channel is closed by the teardown, which is safe to call more than once.
func (b *EventBus) Subscribe(orderID string) (<-chan domain.PaymentEvent, func(), error) {
	b.mu.Lock()
	if _, ok := b.subs[orderID]; ok {
		b.mu.Unlock()
		return nil, nil, ErrAlreadySubscribed
	}
	sub := &subscriber{ch: make(chan domain.PaymentEvent, b.buffer), done: make(chan struct{})}
	b.subs[orderID] = sub
	b.mu.Unlock()

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			b.mu.Lock()
			if b.subs[orderID] == sub {
				delete(b.subs, orderID)
			}
			b.mu.Unlock()

			close(sub.done)
			sub.sending.Lock()
			close(sub.ch)
			sub.sending.Unlock()
		})
	}
	return sub.ch, unsubscribe, nil
}

func (b *EventBus) Publish(ctx context.Context, ev domain.PaymentEvent) error {
	b.mu.RLock()
	sub, ok := b.subs[ev.OrderID]
	b.mu.RUnlock()
	if !ok {
		return ErrNoSubscriber
	}

	sub.sending.RLock()
	defer sub.sending.RUnlock()
	select {
	case <-sub.done:
		return ErrNoSubscriber
	default:
	}
	select {
	case sub.ch <- ev:
		return nil
	case <-sub.done:
		return ErrNoSubscriber
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *EventBus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
