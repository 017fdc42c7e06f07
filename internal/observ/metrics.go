package observ

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PaymentEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkout_payment_events_total",
			Help: "Payment widget notifications received, by kind",
		},
		[]string{"kind"},
	)

	Finalizations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkout_finalizations_total",
			Help: "Finalize calls by requested outcome and whether they changed state",
		},
		[]string{"outcome", "applied"},
	)

	Reconciliations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkout_reconciliations_total",
			Help: "Payment authority checks by result (paid, unpaid, inconclusive)",
		},
		[]string{"result"},
	)

	ReconcileDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "checkout_reconcile_duration_ms",
			Help:    "Duration of payment authority checks in ms, retries included",
			Buckets: []float64{25, 50, 100, 200, 400, 800, 1600, 3200, 6400},
		},
	)

	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "checkout_active_sessions",
			Help: "Checkout sessions currently listening for payment events",
		},
	)
)
