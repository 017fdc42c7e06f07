package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gooseberrytechnovision/schooniverse-checkout/internal/usecase"
	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	ExchangeName   = "payment.events"
	CartClearQueue = "cart.clear.q"
	appID          = "schooniverse-checkout"
)

var ErrNotConfirmed = errors.New("broker did not confirm publish")

type confirmPublisher interface {
	PublishWithDeferredConfirmWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) (*amqp.DeferredConfirmation, error)
}

// RabbitProducer publishes payment audit records on the topic exchange and
// waits for the broker's confirm.
type RabbitProducer struct {
	pub      confirmPublisher
	exchange string
	now      func() time.Time
}

func NewRabbitProducer(ch *amqp.Channel) (*RabbitProducer, error) {
	if err := DeclareTopology(ch); err != nil {
		return nil, err
	}
	if err := ch.Confirm(false); err != nil {
		return nil, fmt.Errorf("enable confirm mode: %w", err)
	}
	return &RabbitProducer{pub: ch, exchange: ExchangeName, now: time.Now}, nil
}

// DeclareTopology declares the durable audit exchange and the cart-clear
// queue, which only sees payment.success.
func DeclareTopology(ch *amqp.Channel) error {
	if err := ch.ExchangeDeclare(ExchangeName, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange %s: %w", ExchangeName, err)
	}
	if _, err := ch.QueueDeclare(CartClearQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue %s: %w", CartClearQueue, err)
	}
	if err := ch.QueueBind(CartClearQueue, usecase.RoutingPaymentSuccess, ExchangeName, false, nil); err != nil {
		return fmt.Errorf("bind %s: %w", CartClearQueue, err)
	}
	return nil
}

func (p *RabbitProducer) PublishPayment(ctx context.Context, routingKey string, msg usecase.PaymentAuditMsg) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode audit %s: %w", msg.OrderCode, err)
	}

	confirm, err := p.pub.PublishWithDeferredConfirmWithContext(ctx, p.exchange, routingKey, false, false, amqp.Publishing{
		AppId:        appID,
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		// Same id for a repeated audit write, so consumers can dedupe.
		MessageId: msg.OrderCode + ":" + routingKey,
		Timestamp: p.now().UTC(),
		Body:      body,
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", routingKey, err)
	}
	// nil when the channel is not in confirm mode.
	if confirm == nil {
		return nil
	}
	acked, err := confirm.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("await confirm %s: %w", routingKey, err)
	}
	if !acked {
		return ErrNotConfirmed
	}
	return nil
}

var _ usecase.AuditPublisher = (*RabbitProducer)(nil)
