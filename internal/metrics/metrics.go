package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for registry operations.
//
// All methods are safe to call on a nil *Metrics, which records nothing.
type Metrics struct {
	// Registrations created and soft-deleted, by category
	RegistrationsCreated *prometheus.CounterVec
	RegistrationsDeleted prometheus.Counter

	// Numbers handed out, by sequence kind and category
	NumbersAllocated *prometheus.CounterVec

	// Requests rejected before reaching storage, by field
	ValidationFailures *prometheus.CounterVec

	// Archive runs by outcome, rows moved, and run latency
	ArchiveRuns     *prometheus.CounterVec
	ArchiveMoved    prometheus.Counter
	ArchiveDuration prometheus.Histogram
}

// New creates a Metrics instance registered with reg. Passing a fresh
// prometheus.NewRegistry() keeps tests from colliding on the default registry.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RegistrationsCreated: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "registry_registrations_created_total",
			Help: "Total registrations created by category",
		}, []string{"category"}),

		RegistrationsDeleted: factory.NewCounter(prometheus.CounterOpts{
			Name: "registry_registrations_deleted_total",
			Help: "Total registrations soft-deleted",
		}),

		NumbersAllocated: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "registry_numbers_allocated_total",
			Help: "Total protocol and draft numbers allocated",
		}, []string{"kind", "category"}), // kind: "protocol", "draft"

		ValidationFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "registry_validation_failures_total",
			Help: "Total requests rejected by validation, by field",
		}, []string{"field"}),

		ArchiveRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "registry_archive_runs_total",
			Help: "Total archive runs by outcome",
		}, []string{"outcome"}), // outcome: "moved", "empty", "error"

		ArchiveMoved: factory.NewCounter(prometheus.CounterOpts{
			Name: "registry_archive_items_moved_total",
			Help: "Total registrations relocated into archive stores",
		}),

		ArchiveDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "registry_archive_duration_seconds",
			Help:    "Duration of archive runs including the archive store commit",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
	}
}

// IncrementCreated records a created registration and the numbers it consumed.
func (m *Metrics) IncrementCreated(category string, withDraft bool) {
	if m == nil {
		return
	}
	m.RegistrationsCreated.WithLabelValues(category).Inc()
	m.NumbersAllocated.WithLabelValues("protocol", category).Inc()
	if withDraft {
		m.NumbersAllocated.WithLabelValues("draft", category).Inc()
	}
}

// IncrementDeleted records a soft delete.
func (m *Metrics) IncrementDeleted() {
	if m != nil {
		m.RegistrationsDeleted.Inc()
	}
}

// IncrementValidationFailure records a rejected request.
func (m *Metrics) IncrementValidationFailure(field string) {
	if m != nil {
		if field == "" {
			field = "payload"
		}
		m.ValidationFailures.WithLabelValues(field).Inc()
	}
}

// ObserveArchive records a finished archive run. err is the run's error, if any.
func (m *Metrics) ObserveArchive(moved int64, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.ArchiveDuration.Observe(d.Seconds())
	switch {
	case err != nil:
		m.ArchiveRuns.WithLabelValues("error").Inc()
	case moved == 0:
		m.ArchiveRuns.WithLabelValues("empty").Inc()
	default:
		m.ArchiveRuns.WithLabelValues("moved").Inc()
		m.ArchiveMoved.Add(float64(moved))
	}
}
