package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	gobreaker "github.com/sony/gobreaker/v2"
)

// Pipeline metrics.
var (
	RecommendationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recommendations_total",
			Help:      "Recommendations served, by the stage that produced them",
		},
		[]string{"source"},
	)

	LookupTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lookup_total",
			Help:      "Seed lookups, by outcome",
		},
		[]string{"result"}, // found / not_found / error
	)

	BreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "lookup_breaker_state",
			Help:      "Lookup circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)
)

func init() {
	prometheus.MustRegister(RecommendationsTotal)
	prometheus.MustRegister(LookupTotal)
	prometheus.MustRegister(BreakerState)
}

// Recorder reports pipeline events to the package metrics.
type Recorder struct{}

// ObserveRecommendation counts a served recommendation set.
func (Recorder) ObserveRecommendation(source string) {
	RecommendationsTotal.WithLabelValues(source).Inc()
}

// ObserveLookup counts a seed lookup outcome.
func (Recorder) ObserveLookup(result string) {
	LookupTotal.WithLabelValues(result).Inc()
}

// ObserveBreakerState can be used as a breaker state-change callback.
func ObserveBreakerState(name string, _, to gobreaker.State) {
	var v float64
	switch to {
	case gobreaker.StateHalfOpen:
		v = 1
	case gobreaker.StateOpen:
		v = 2
	}
	BreakerState.WithLabelValues(name).Set(v)
}
