package queue

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/gooseberrytechnovision/schooniverse-checkout/internal/logging"
	amqp "github.com/rabbitmq/amqp091-go"
)

// consumerChannel is the part of *amqp.Channel the Router uses.
type consumerChannel interface {
	Qos(prefetchCount, prefetchSize int, global bool) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
}

type subscription struct {
	queue   string
	tag     string
	handler Handler
}

// Router runs one consumer per subscribed queue on a shared channel.
type Router struct {
	ch          consumerChannel
	prefetch    int
	callTimeout time.Duration
	retryOnce   bool
	log         *slog.Logger
	subs        []subscription
}

type RouterOption func(*Router)

func WithPrefetch(n int) RouterOption          { return func(r *Router) { r.prefetch = n } }
func WithTimeout(d time.Duration) RouterOption { return func(r *Router) { r.callTimeout = d } }

// WithRetryOnce controls whether a failed delivery goes back on the queue
// for one more attempt. On by default.
func WithRetryOnce(b bool) RouterOption { return func(r *Router) { r.retryOnce = b } }

func NewRouter(ch *amqp.Channel, opts ...RouterOption) *Router {
	r := &Router{
		ch:          ch,
		prefetch:    50,
		callTimeout: 10 * time.Second,
		retryOnce:   true,
		log:         logging.New("amqp-router"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Router) Subscribe(queue string, h Handler) {
	r.subs = append(r.subs, subscription{queue: queue, tag: "checkout." + queue, handler: h})
}

// Start opens every consumer and returns. Each consumer runs until ctx is
// done or the channel closes.
func (r *Router) Start(ctx context.Context) error {
	if err := r.ch.Qos(r.prefetch, 0, false); err != nil {
		return err
	}
	for _, sub := range r.subs {
		deliveries, err := r.ch.Consume(sub.queue, sub.tag, false, false, false, false, nil)
		if err != nil {
			return err
		}
		go r.consume(ctx, sub, deliveries)
	}
	return nil
}

func (r *Router) consume(ctx context.Context, sub subscription, deliveries <-chan amqp.Delivery) {
	log := r.log.With("queue", sub.queue)
	defer log.Info("consumer stopped")
	for {
		select {
		case <-ctx.Done():
			return
		case d, ok := <-deliveries:
			if !ok {
				return
			}
			r.dispatch(ctx, log, sub.handler, d)
		}
	}
}

// dispatch settles d. Poison and already-redelivered failures are dropped
// so one bad message cannot spin on the queue.
func (r *Router) dispatch(ctx context.Context, log *slog.Logger, h Handler, d amqp.Delivery) {
	log = log.With("routing_key", d.RoutingKey, "message_id", d.MessageId)
	hctx, cancel := context.WithTimeout(logging.WithCtx(ctx, log), r.callTimeout)
	defer cancel()

	err := h.Handle(hctx, d)
	if err == nil {
		if ackErr := d.Ack(false); ackErr != nil {
			log.Warn("ack failed", "err", ackErr)
		}
		return
	}

	requeue := r.retryOnce && !d.Redelivered && !errors.Is(err, ErrPoison)
	if requeue {
		log.Warn("delivery failed, requeueing", "err", err)
	} else {
		log.Error("delivery dropped", "err", err, "redelivered", d.Redelivered)
	}
	if nackErr := d.Nack(false, requeue); nackErr != nil {
		log.Warn("nack failed", "err", nackErr)
	}
}
