package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the attendance module.
type Metrics struct {
	MarksApplied      prometheus.Counter
	Broadcasts        prometheus.Counter
	BroadcastPartials prometheus.Counter
	ReconcileDuration prometheus.Histogram
}

// New creates a Metrics instance with all attendance module metrics registered.
func New() *Metrics {
	return &Metrics{
		MarksApplied: promauto.NewCounter(prometheus.CounterOpts{
			Name: "rollcall_attendance_marks_total",
			Help: "Total number of attendance status transitions applied",
		}),
		Broadcasts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "rollcall_attendance_broadcasts_total",
			Help: "Total number of manager group broadcasts",
		}),
		BroadcastPartials: promauto.NewCounter(prometheus.CounterOpts{
			Name: "rollcall_attendance_broadcast_partials_total",
			Help: "Broadcasts that completed with at least one failed sub-step",
		}),
		ReconcileDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "rollcall_attendance_reconcile_duration_seconds",
			Help:    "Duration of attendance reconciliation operations",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
	}
}

// ObserveReconcile records the duration of a reconciliation.
// Call with time.Now() captured at the start of the operation.
func (m *Metrics) ObserveReconcile(start time.Time) {
	m.ReconcileDuration.Observe(time.Since(start).Seconds())
}
