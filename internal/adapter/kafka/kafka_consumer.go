package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/IBM/sarama"
	"github.com/gooseberrytechnovision/schooniverse-checkout/internal/logging"
	"github.com/gooseberrytechnovision/schooniverse-checkout/internal/usecase"
)

type HandlerFunc func(ctx context.Context, ev usecase.PaymentStatusChangedMsg) error

// ErrSkip tells the consumer to commit past a message it cannot process.
var ErrSkip = errors.New("skip message")

// Retry bounds for a message whose handler keeps failing. When they run
// out the claim stops without marking, so the group resumes from that
// message.
type Retry struct {
	Attempts int
	Backoff  time.Duration
}

// Consumer feeds gateway payment status pushes to one handler.
type Consumer struct {
	group  sarama.ConsumerGroup
	topics []string
	claims *claimHandler
}

func NewConsumer(group sarama.ConsumerGroup, topics []string, h HandlerFunc, retry Retry) *Consumer {
	if retry.Attempts <= 0 {
		retry.Attempts = 3
	}
	if retry.Backoff <= 0 {
		retry.Backoff = 500 * time.Millisecond
	}
	return &Consumer{
		group:  group,
		topics: topics,
		claims: &claimHandler{handle: h, retry: retry, log: logging.New("kafka-consumer")},
	}
}

// Start joins the group and consumes until ctx ends or the group closes.
// A failed claim ends the session; the loop rejoins after a pause.
func (c *Consumer) Start(ctx context.Context) error {
	for {
		err := c.group.Consume(ctx, c.topics, c.claims)
		switch {
		case errors.Is(err, sarama.ErrClosedConsumerGroup):
			return nil
		case ctx.Err() != nil:
			return ctx.Err()
		case err != nil:
			c.claims.log.Warn("consumer session ended", "err", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.claims.retry.Backoff):
			}
		}
	}
}

type claimHandler struct {
	handle HandlerFunc
	retry  Retry
	log    *slog.Logger
}

func (h *claimHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h *claimHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (h *claimHandler) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for msg := range claim.Messages() {
		if err := h.process(sess.Context(), msg); err != nil {
			return err
		}
		sess.MarkMessage(msg, "")
	}
	return nil
}

// process returns an error only when msg must be consumed again.
func (h *claimHandler) process(ctx context.Context, msg *sarama.ConsumerMessage) error {
	log := h.log.With("topic", msg.Topic, "partition", msg.Partition, "offset", msg.Offset)

	var ev usecase.PaymentStatusChangedMsg
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		log.Warn("dropping undecodable payment status", "err", err)
		return nil
	}
	log = log.With("order_id", ev.OrderID, "status", ev.Status)
	ctx = logging.WithCtx(ctx, log)

	var err error
	for attempt := 1; attempt <= h.retry.Attempts; attempt++ {
		if err = h.handle(ctx, ev); err == nil {
			return nil
		}
		if errors.Is(err, ErrSkip) {
			log.Warn("skipping payment status", "err", err)
			return nil
		}
		log.Warn("payment status not applied", "attempt", attempt, "err", err)
		if attempt == h.retry.Attempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(h.retry.Backoff * time.Duration(attempt)):
		}
	}
	log.Error("giving up on payment status for this session", "err", err)
	return fmt.Errorf("offset %d: %w", msg.Offset, err)
}
