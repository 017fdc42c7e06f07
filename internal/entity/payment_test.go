package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveOutcome(t *testing.T) {
	cases := []struct {
		prev, next, want Outcome
		applied          bool
	}{
		{OutcomeNone, OutcomePaid, OutcomePaid, true},
		{OutcomeNone, OutcomeCancelled, OutcomeCancelled, true},
		{OutcomeCancelled, OutcomePaid, OutcomePaid, true},
		{OutcomeFailed, OutcomePaid, OutcomePaid, true},
		{OutcomeCancelled, OutcomeFailed, OutcomeFailed, true},
		{OutcomePaid, OutcomePaid, OutcomePaid, false},
		{OutcomePaid, OutcomeFailed, OutcomePaid, false},
		{OutcomePaid, OutcomeCancelled, OutcomePaid, false},
		{OutcomeFailed, OutcomeFailed, OutcomeFailed, false},
	}
	for _, tc := range cases {
		got, applied := ResolveOutcome(tc.prev, tc.next)
		assert.Equal(t, tc.want, got, "%q -> %q", tc.prev, tc.next)
		assert.Equal(t, tc.applied, applied, "%q -> %q", tc.prev, tc.next)
	}
}

func TestParsePaymentStatus(t *testing.T) {
	assert.Equal(t, PaymentPaid, ParsePaymentStatus("PAID"))
	assert.Equal(t, PaymentPending, ParsePaymentStatus("PENDING"))
	assert.Equal(t, PaymentFail, ParsePaymentStatus("FAILED"))
	assert.Equal(t, PaymentUnknown, ParsePaymentStatus("paid"))
	assert.Equal(t, PaymentUnknown, ParsePaymentStatus(""))
}

func TestReconciledStatusIsPaid(t *testing.T) {
	var missing *ReconciledPaymentStatus
	assert.False(t, missing.IsPaid())
	assert.False(t, (&ReconciledPaymentStatus{PaymentStatus: PaymentPending}).IsPaid())
	assert.True(t, (&ReconciledPaymentStatus{PaymentStatus: PaymentPaid}).IsPaid())
}

func TestOutcomeOrderStatus(t *testing.T) {
	assert.Equal(t, StatusPaid, OutcomePaid.OrderStatus())
	assert.Equal(t, StatusFailed, OutcomeFailed.OrderStatus())
	assert.Equal(t, StatusCancelled, OutcomeCancelled.OrderStatus())
	assert.Equal(t, StatusPending, OutcomeNone.OrderStatus())
	assert.False(t, OutcomeNone.Valid())
	assert.True(t, PaymentPopupClosed.Valid())
	assert.False(t, PaymentEventKind("opened").Valid())
}

func TestPaymentPayload_EventShapes(t *testing.T) {
	cases := []struct {
		name string
		body string
		want PaymentPayload
	}{
		{"flat", `{"event":"dt.payment.captured","application_code":"AC1"}`,
			PaymentPayload{Event: EventPaymentCaptured, ApplicationCode: "AC1"}},
		{"nested close", `{"event":{"application_code":"AC3","bank_reference_id":"BR3"}}`,
			PaymentPayload{ApplicationCode: "AC3", BankReferenceID: "BR3"}},
		{"top level wins", `{"application_code":"AC1","event":{"event":"dt.payment.failed","application_code":"AC9"}}`,
			PaymentPayload{Event: EventPaymentFailed, ApplicationCode: "AC1"}},
		{"no event", `{"application_code":"AC2"}`, PaymentPayload{ApplicationCode: "AC2"}},
		{"null event", `{"event":null}`, PaymentPayload{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var got PaymentPayload
			require.NoError(t, json.Unmarshal([]byte(tc.body), &got))
			assert.Equal(t, tc.want, got)
		})
	}

	var bad PaymentPayload
	assert.Error(t, json.Unmarshal([]byte(`{"event":42}`), &bad))
}
