package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks enrollment writes and reconciliation latency.
type Metrics struct {
	EnrollmentsCreated prometheus.Counter
	EnrollmentsUpdated prometheus.Counter
	EnrollmentsDeleted prometheus.Counter
	DocumentsAttached  prometheus.Counter
	Conflicts          *prometheus.CounterVec
	ReconcileDuration  *prometheus.HistogramVec
}

// New registers the enrollment metrics on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		EnrollmentsCreated: f.NewCounter(prometheus.CounterOpts{
			Name: "educa_enrollments_created_total",
			Help: "Total number of enrollments created",
		}),
		EnrollmentsUpdated: f.NewCounter(prometheus.CounterOpts{
			Name: "educa_enrollments_updated_total",
			Help: "Total number of enrollments updated",
		}),
		EnrollmentsDeleted: f.NewCounter(prometheus.CounterOpts{
			Name: "educa_enrollments_deleted_total",
			Help: "Total number of enrollments deleted",
		}),
		DocumentsAttached: f.NewCounter(prometheus.CounterOpts{
			Name: "educa_enrollment_documents_attached_total",
			Help: "Total number of document sets attached",
		}),
		Conflicts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "educa_enrollment_conflicts_total",
			Help: "Reconciliation conflicts by entity",
		}, []string{"entity"}),
		ReconcileDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "educa_enrollment_reconcile_duration_seconds",
			Help:    "Duration of create and update units of work",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"operation"}),
	}
}

// ObserveReconcile records the duration of op. Call with time.Now() at the
// start of the operation.
func (m *Metrics) ObserveReconcile(op string, start time.Time) {
	m.ReconcileDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

func (m *Metrics) IncrementConflict(entity string) {
	m.Conflicts.WithLabelValues(entity).Inc()
}
