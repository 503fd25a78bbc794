package enrichment

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts adapter fallbacks and reflection attempts. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	Fallbacks          *prometheus.CounterVec
	ReflectionAttempts *prometheus.CounterVec
	EnrichDuration     prometheus.Histogram
}

func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		Fallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "anchor",
			Subsystem: "enrichment",
			Name:      "fallbacks_total",
			Help:      "Enrichment results replaced by a static fallback, partitioned by stage.",
		}, []string{"stage"}),
		ReflectionAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "anchor",
			Subsystem: "enrichment",
			Name:      "reflection_attempts_total",
			Help:      "Reflection model attempts partitioned by model and outcome.",
		}, []string{"model", "outcome"}),
		EnrichDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "anchor",
			Subsystem: "enrichment",
			Name:      "duration_seconds",
			Help:      "Wall time of a full enrichment run.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32},
		}),
	}
	for _, c := range []prometheus.Collector{m.Fallbacks, m.ReflectionAttempts, m.EnrichDuration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) fallback(stage string) {
	if m == nil {
		return
	}
	m.Fallbacks.WithLabelValues(stage).Inc()
}

func (m *Metrics) attempt(model, outcome string) {
	if m == nil {
		return
	}
	m.ReflectionAttempts.WithLabelValues(model, outcome).Inc()
}

func (m *Metrics) observeEnrich(started time.Time) {
	if m == nil {
		return
	}
	m.EnrichDuration.Observe(time.Since(started).Seconds())
}
