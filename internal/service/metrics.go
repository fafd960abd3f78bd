package service

import "github.com/prometheus/client_golang/prometheus"

// Metrics counts the engine's concurrency outcomes. Methods are nil-safe so
// the service can run without a registry (tests, one-off tools).
type Metrics struct {
	revisionConflicts prometheus.Counter
	retriesExhausted  prometheus.Counter
}

// NewMetrics creates and registers the engine metrics.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		revisionConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "passport_revision_conflicts_total",
			Help: "Conditional writes that lost a revision race and were retried.",
		}),
		retriesExhausted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "passport_retries_exhausted_total",
			Help: "Mutations that gave up after the retry bound.",
		}),
	}
	if err := reg.Register(m.revisionConflicts); err != nil {
		return nil, err
	}
	if err := reg.Register(m.retriesExhausted); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Metrics) conflict() {
	if m != nil {
		m.revisionConflicts.Inc()
	}
}

func (m *Metrics) exhausted() {
	if m != nil {
		m.retriesExhausted.Inc()
	}
}
