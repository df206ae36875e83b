package obs

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// SessionTotal counts session open/close outcomes.
	SessionTotal *prometheus.CounterVec
	// MovementTotal counts recorded cash movements by kind.
	MovementTotal *prometheus.CounterVec
	// PaymentTotal counts payment entry attempts by outcome.
	PaymentTotal *prometheus.CounterVec
	// FinalizeTotal counts checkout finalize attempts by trigger and outcome.
	FinalizeTotal *prometheus.CounterVec
	// ReconcileDiscrepancy records the absolute close-time discrepancy in cents.
	ReconcileDiscrepancy prometheus.Histogram
	// PrintRetryTotal counts failed print job retry outcomes.
	PrintRetryTotal *prometheus.CounterVec
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		SessionTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_total",
			Help:      "Count of cash session open and close outcomes.",
		}, []string{"op", "result"})
		MovementTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "movement_total",
			Help:      "Count of recorded cash movements by kind.",
		}, []string{"kind", "result"})
		PaymentTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_total",
			Help:      "Count of payment entry attempts by outcome.",
		}, []string{"result"})
		FinalizeTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "finalize_total",
			Help:      "Count of checkout finalize attempts by trigger and outcome.",
		}, []string{"trigger", "result"})
		ReconcileDiscrepancy = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "reconcile_discrepancy_cents",
			Help:      "Absolute discrepancy between counted and expected cash at close, in cents.",
			Buckets:   []float64{0, 1, 10, 100, 500, 1000, 5000, 10000, 50000},
		})
		PrintRetryTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "print_retry_total",
			Help:      "Count of failed print job retry outcomes.",
		}, []string{"result"})

		mustRegisterCollector(reg, SessionTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				SessionTotal = v
			}
		})
		mustRegisterCollector(reg, MovementTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				MovementTotal = v
			}
		})
		mustRegisterCollector(reg, PaymentTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				PaymentTotal = v
			}
		})
		mustRegisterCollector(reg, FinalizeTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				FinalizeTotal = v
			}
		})
		mustRegisterCollector(reg, ReconcileDiscrepancy, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Histogram); ok {
				ReconcileDiscrepancy = v
			}
		})
		mustRegisterCollector(reg, PrintRetryTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				PrintRetryTotal = v
			}
		})
	})
}

func mustRegisterCollector(reg prometheus.Registerer, collector prometheus.Collector, replace func(prometheus.Collector)) {
	if err := reg.Register(collector); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			replace(are.ExistingCollector)
			return
		}
		panic(fmt.Errorf("register collector: %w", err))
	}
}
