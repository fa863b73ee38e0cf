package provisioning

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts provisioning legs by role and outcome.
type Metrics struct {
	Legs *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		Legs: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "educa_provisioning_legs_total",
			Help: "Account provisioning legs by role and outcome",
		}, []string{"role", "outcome"}),
	}
}

func (m *Metrics) observe(role Role, outcome Outcome) {
	if m == nil {
		return
	}
	m.Legs.WithLabelValues(string(role), string(outcome)).Inc()
}
