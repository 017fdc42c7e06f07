package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	amqp "github.com/rabbitmq/amqp091-go"
)

// ErrPoison marks a delivery that can never succeed. The Router drops it.
var ErrPoison = errors.New("poison message")

// Handler processes one delivery and must tolerate seeing it twice.
// nil acks; an error nacks.
type Handler interface {
	Handle(ctx context.Context, d amqp.Delivery) error
}

type HandlerFunc func(ctx context.Context, d amqp.Delivery) error

func (f HandlerFunc) Handle(ctx context.Context, d amqp.Delivery) error { return f(ctx, d) }

// Decode wraps a typed handler. Bodies with a non-JSON content type or
// that do not unmarshal into T are poison.
func Decode[T any](fn func(ctx context.Context, msg T) error) Handler {
	return HandlerFunc(func(ctx context.Context, d amqp.Delivery) error {
		if d.ContentType != "" && !strings.HasPrefix(d.ContentType, "application/json") {
			return fmt.Errorf("%w: content type %q", ErrPoison, d.ContentType)
		}
		var msg T
		if err := json.Unmarshal(d.Body, &msg); err != nil {
			return fmt.Errorf("%w: %v", ErrPoison, err)
		}
		return fn(ctx, msg)
	})
}
