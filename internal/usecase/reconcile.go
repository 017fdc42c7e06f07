package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	domain "github.com/gooseberrytechnovision/schooniverse-checkout/internal/entity"
	"github.com/gooseberrytechnovision/schooniverse-checkout/internal/logging"
	"github.com/gooseberrytechnovision/schooniverse-checkout/internal/observ"
	"golang.org/x/sync/singleflight"
)

type RetryPolicy struct {
	Attempts       int
	BaseDelay      time.Duration
	Multiplier     float64
	MaxDelay       time.Duration
	AttemptTimeout time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Attempts:       3,
		BaseDelay:      200 * time.Millisecond,
		Multiplier:     1.6,
		MaxDelay:       2 * time.Second,
		AttemptTimeout: 5 * time.Second,
	}
}

// backOff spaces the tries out exponentially from BaseDelay up to MaxDelay,
// without jitter, and stops early when ctx ends.
func (p RetryPolicy) backOff(ctx context.Context) backoff.BackOff {
	if p.Attempts <= 1 {
		// WithMaxRetries treats zero as unlimited.
		return backoff.WithContext(&backoff.StopBackOff{}, ctx)
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.BaseDelay
	b.Multiplier = p.Multiplier
	if p.Multiplier < 1 {
		b.Multiplier = 1
	}
	if p.MaxDelay > 0 {
		b.MaxInterval = p.MaxDelay
	}
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	b.Reset()
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(p.Attempts-1)), ctx)
}

// Verifier asks the payment authority for the real status of a payment.
// A nil result is inconclusive and must not change any stored outcome.
type Verifier struct {
	authority PaymentAuthority
	policy    RetryPolicy
	group     singleflight.Group

	mu      sync.Mutex
	flights map[string]*flight
}

// flight is the shared lookup for one application code. It outlives any
// single caller and is cancelled once the last waiter leaves.
type flight struct {
	ctx     context.Context
	cancel  context.CancelFunc
	waiters int
}

func NewVerifier(authority PaymentAuthority, policy RetryPolicy) *Verifier {
	if policy.Attempts <= 0 {
		policy.Attempts = 1
	}
	return &Verifier{authority: authority, policy: policy, flights: map[string]*flight{}}
}

func (v *Verifier) Verify(ctx context.Context, applicationCode string) *domain.ReconciledPaymentStatus {
	if applicationCode == "" {
		return nil
	}
	start := time.Now()
	f := v.join(ctx, applicationCode)
	defer v.leave(applicationCode, f)

	results := v.group.DoChan(applicationCode, func() (any, error) {
		return v.fetch(f.ctx, applicationCode), nil
	})
	var status *domain.ReconciledPaymentStatus
	select {
	case res := <-results:
		status, _ = res.Val.(*domain.ReconciledPaymentStatus)
	case <-ctx.Done():
	}
	observ.ReconcileDuration.Observe(float64(time.Since(start).Milliseconds()))

	switch {
	case status == nil:
		observ.Reconciliations.WithLabelValues("inconclusive").Inc()
	case status.IsPaid():
		observ.Reconciliations.WithLabelValues("paid").Inc()
	default:
		observ.Reconciliations.WithLabelValues("unpaid").Inc()
	}
	return status
}

func (v *Verifier) join(ctx context.Context, code string) *flight {
	v.mu.Lock()
	defer v.mu.Unlock()
	f, ok := v.flights[code]
	if !ok {
		fctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		f = &flight{ctx: fctx, cancel: cancel}
		v.flights[code] = f
	}
	f.waiters++
	return f
}

func (v *Verifier) leave(code string, f *flight) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if f.waiters--; f.waiters > 0 {
		return
	}
	f.cancel()
	if v.flights[code] == f {
		delete(v.flights, code)
	}
}

func (v *Verifier) fetch(ctx context.Context, code string) *domain.ReconciledPaymentStatus {
	log := logging.FromCtx(ctx).With("application_code", code)
	attempt := 0
	status, err := backoff.RetryNotifyWithData(func() (*domain.ReconciledPaymentStatus, error) {
		attempt++
		actx, cancel := v.attemptContext(ctx)
		defer cancel()
		return v.authority.FetchPayment(actx, code)
	}, v.policy.backOff(ctx), func(err error, wait time.Duration) {
		log.Warn("payment verification failed", "attempt", attempt, "retry_in", wait, "err", err)
	})
	if err != nil {
		log.Warn("payment verification gave up", "attempts", attempt, "err", err)
		return nil
	}
	return status
}

func (v *Verifier) attemptContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if v.policy.AttemptTimeout > 0 {
		return context.WithTimeout(ctx, v.policy.AttemptTimeout)
	}
	return context.WithCancel(ctx)
}
