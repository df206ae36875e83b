package resilience

import "github.com/prometheus/client_golang/prometheus"

// Breaker metrics are labeled by target so the register can watch the POS
// backend path (reads and writes share the "pos-backend" breaker).
var (
	BreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "caixa",
			Name:      "breaker_state",
			Help:      "Breaker state per upstream target: 0=closed,1=open,2=half-open",
		},
		[]string{"target"},
	)
	BreakerTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "caixa",
			Name:      "breaker_transition_total",
			Help:      "Count of breaker state transitions per upstream target",
		},
		[]string{"target", "from", "to"},
	)
	BreakerOpenedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "caixa",
			Name:      "breaker_open_total",
			Help:      "Number of times an upstream breaker tripped open",
		},
		[]string{"target"},
	)
)

func init() {
	prometheus.MustRegister(BreakerState, BreakerTransitions, BreakerOpenedTotal)
}
