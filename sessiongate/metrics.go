package sessiongate

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for the gate
type Metrics struct {
	decisions *prometheus.CounterVec
	refreshes prometheus.Counter
	latency   *prometheus.HistogramVec
}

// NewMetrics registers gate collectors on reg under the given namespace.
// A nil registerer means prometheus.DefaultRegisterer.
func NewMetrics(reg prometheus.Registerer, namespace string) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if namespace == "" {
		namespace = "sessiongate"
	}
	factory := promauto.With(reg)

	return &Metrics{
		decisions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decisions_total",
			Help:      "Gate decisions by outcome, verdict and route class",
		}, []string{"outcome", "verdict", "route"}),

		refreshes: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cookie_refreshes_total",
			Help:      "Requests whose claims verification produced cookie mutations",
		}),

		latency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "decision_duration_seconds",
			Help:      "Gate decision latency including claims verification",
			Buckets:   prometheus.DefBuckets,
		}, []string{"verdict"}),
	}
}

func (m *Metrics) observe(res Result) {
	if m == nil || res.Outcome == OutcomeSkipped {
		return
	}
	m.decisions.WithLabelValues(res.Outcome.String(), res.Verdict.String(), res.Class.String()).Inc()
	if len(res.Cookies) > 0 {
		m.refreshes.Inc()
	}
	m.latency.WithLabelValues(res.Verdict.String()).Observe(res.Latency.Seconds())
}
