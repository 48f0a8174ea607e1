package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.IncrementCreated("common_incoming", false)
		m.IncrementDeleted()
		m.IncrementValidationFailure("issuer")
		m.ObserveArchive(3, time.Second, nil)
	})
}

func TestMetrics_IncrementCreated(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.IncrementCreated("common_outgoing", true)
	m.IncrementCreated("common_incoming", false)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RegistrationsCreated.WithLabelValues("common_outgoing")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.NumbersAllocated.WithLabelValues("draft", "common_outgoing")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.NumbersAllocated.WithLabelValues("draft", "common_incoming")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.NumbersAllocated.WithLabelValues("protocol", "common_incoming")))
}

func TestMetrics_ObserveArchive(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveArchive(4, 10*time.Millisecond, nil)
	m.ObserveArchive(0, time.Millisecond, nil)
	m.ObserveArchive(0, time.Millisecond, errors.New("locked"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ArchiveRuns.WithLabelValues("moved")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ArchiveRuns.WithLabelValues("empty")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ArchiveRuns.WithLabelValues("error")))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.ArchiveMoved))
}

func TestMetrics_ValidationFailureDefaultsField(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.IncrementValidationFailure("")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ValidationFailures.WithLabelValues("payload")))
}

func TestNew_SeparateRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		New(prometheus.NewRegistry())
		New(prometheus.NewRegistry())
	})
}
