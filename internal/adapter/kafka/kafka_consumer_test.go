package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/gooseberrytechnovision/schooniverse-checkout/internal/logging"
	"github.com/gooseberrytechnovision/schooniverse-checkout/internal/usecase"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSession struct {
	sarama.ConsumerGroupSession
	marked []int64
}

func (s *fakeSession) Context() context.Context { return context.Background() }
func (s *fakeSession) MarkMessage(msg *sarama.ConsumerMessage, _ string) {
	s.marked = append(s.marked, msg.Offset)
}

type fakeClaim struct {
	sarama.ConsumerGroupClaim
	msgs chan *sarama.ConsumerMessage
}

func (c *fakeClaim) Messages() <-chan *sarama.ConsumerMessage { return c.msgs }

func claimOf(values ...string) *fakeClaim {
	ch := make(chan *sarama.ConsumerMessage, len(values))
	for i, v := range values {
		ch <- &sarama.ConsumerMessage{Topic: "payment-status", Offset: int64(i), Value: []byte(v)}
	}
	close(ch)
	return &fakeClaim{msgs: ch}
}

func testHandler(h HandlerFunc) *claimHandler {
	return &claimHandler{handle: h, retry: Retry{Attempts: 3, Backoff: time.Millisecond}, log: logging.New("test")}
}

func TestConsumeClaim_MarksHandledSkippedAndPoison(t *testing.T) {
	var seen []usecase.PaymentStatusChangedMsg
	h := testHandler(func(_ context.Context, ev usecase.PaymentStatusChangedMsg) error {
		seen = append(seen, ev)
		if ev.OrderID == "" {
			return ErrSkip
		}
		return nil
	})
	sess := &fakeSession{}

	err := h.ConsumeClaim(sess, claimOf(
		`{"orderId":"o1","status":"PAID","applicationCode":"AC1"}`,
		`garbage`,
		`{"status":"PAID"}`,
	))

	require.NoError(t, err)
	assert.Len(t, seen, 2)
	assert.Equal(t, "AC1", seen[0].ApplicationCode)
	assert.Equal(t, []int64{0, 1, 2}, sess.marked)
}

func TestConsumeClaim_TransientErrorRetriesInPlace(t *testing.T) {
	calls := 0
	h := testHandler(func(context.Context, usecase.PaymentStatusChangedMsg) error {
		calls++
		if calls < 3 {
			return errors.New("db down")
		}
		return nil
	})
	sess := &fakeSession{}

	require.NoError(t, h.ConsumeClaim(sess, claimOf(`{"orderId":"o1","status":"PAID"}`)))
	assert.Equal(t, 3, calls)
	assert.Equal(t, []int64{0}, sess.marked)
}

func TestConsumeClaim_StopsBeforeCommittingPastFailure(t *testing.T) {
	h := testHandler(func(_ context.Context, ev usecase.PaymentStatusChangedMsg) error {
		if ev.OrderID == "stuck" {
			return errors.New("db down")
		}
		return nil
	})
	sess := &fakeSession{}

	err := h.ConsumeClaim(sess, claimOf(
		`{"orderId":"o1","status":"PAID"}`,
		`{"orderId":"stuck","status":"PAID"}`,
		`{"orderId":"o3","status":"PAID"}`,
	))

	assert.ErrorContains(t, err, "offset 1")
	assert.Equal(t, []int64{0}, sess.marked, "nothing after the failed offset may be marked")
}
