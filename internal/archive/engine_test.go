package archive

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/registry/internal/domain"
	"github.com/roach88/registry/internal/metrics"
	"github.com/roach88/registry/internal/store"
	"github.com/roach88/registry/internal/testutil"
)

func setupEngine(t *testing.T, now time.Time) (*Engine, *store.Store, *testutil.FixedClock, *metrics.Metrics) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "app.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	clock := testutil.NewFixedClock(now)
	m := metrics.New(prometheus.NewRegistry())
	e := New(st,
		WithClock(clock),
		WithRunIDs(testutil.NewSequentialRunIDs("")),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithMetrics(m),
	)
	return e, st, clock, m
}

func seed(t *testing.T, st *store.Store, c domain.Category, date string) domain.Registration {
	t.Helper()
	in := domain.RegistrationInput{
		Issuer: "Issuer", ReferenceNumber: "R-1", Subject: "Subject", EntryDate: date,
	}
	if c.IsIncoming() {
		in.Offices = []string{"OFF-1"}
	} else {
		in.Recipient = "Recipient"
	}
	reg, err := st.CreateRegistration(context.Background(), store.NewRegistration{
		Category: c, Input: in, Username: "clerk", At: time.Now(),
	})
	require.NoError(t, err)
	return reg
}

func TestTargetMonth(t *testing.T) {
	tests := []struct {
		now  time.Time
		want string
	}{
		{time.Date(2025, 10, 3, 9, 0, 0, 0, time.UTC), "2025-09"},
		{time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), "2025-12"},
		{time.Date(2024, 3, 31, 23, 59, 0, 0, time.UTC), "2024-02"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			e, _, _, _ := setupEngine(t, tt.now)
			assert.Equal(t, tt.want, e.TargetMonth())
		})
	}
}

func TestRunMonthlyArchive(t *testing.T) {
	e, st, _, m := setupEngine(t, time.Date(2025, 10, 3, 9, 0, 0, 0, time.UTC))
	ctx := context.Background()

	seed(t, st, domain.CommonIncoming, "2025-09-01")
	seed(t, st, domain.CommonOutgoing, "2025-09-20")
	current := seed(t, st, domain.CommonIncoming, "2025-10-01")

	result, err := e.RunMonthlyArchive(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.ArchiveResult{Month: "2025-09", ItemsMoved: 2, RunID: "run-0001"}, result)

	_, err = st.GetRegistration(ctx, current.ID)
	assert.NoError(t, err, "current month stays in the primary store")

	assert.Equal(t, 1.0, promtest.ToFloat64(m.ArchiveRuns.WithLabelValues("moved")))
	assert.Equal(t, 2.0, promtest.ToFloat64(m.ArchiveMoved))
}

func TestRunMonthlyArchive_Idempotent(t *testing.T) {
	e, st, _, m := setupEngine(t, time.Date(2025, 10, 3, 9, 0, 0, 0, time.UTC))
	ctx := context.Background()

	seed(t, st, domain.SignalsIncoming, "2025-09-01")

	first, err := e.RunMonthlyArchive(ctx)
	require.NoError(t, err)
	second, err := e.RunMonthlyArchive(ctx)
	require.NoError(t, err)

	assert.Equal(t, int64(1), first.ItemsMoved)
	assert.Equal(t, int64(0), second.ItemsMoved)
	assert.Equal(t, "run-0002", second.RunID)

	batches, err := st.ListArchiveBatches(ctx, "2025-09")
	require.NoError(t, err)
	require.Len(t, batches, 2)
	assert.Equal(t, []int64{1, 0}, []int64{batches[0].ItemsMoved, batches[1].ItemsMoved})
	assert.Equal(t, 1.0, promtest.ToFloat64(m.ArchiveRuns.WithLabelValues("empty")))
}

func TestRunMonthlyArchive_FollowsClock(t *testing.T) {
	e, st, clock, _ := setupEngine(t, time.Date(2025, 10, 3, 9, 0, 0, 0, time.UTC))
	ctx := context.Background()

	seed(t, st, domain.CommonIncoming, "2025-10-15")

	clock.Set(time.Date(2025, 11, 1, 8, 0, 0, 0, time.UTC))
	result, err := e.RunMonthlyArchive(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2025-10", result.Month)
	assert.Equal(t, int64(1), result.ItemsMoved)
}

func TestArchiveMonth_Explicit(t *testing.T) {
	e, st, _, _ := setupEngine(t, time.Date(2025, 10, 3, 9, 0, 0, 0, time.UTC))
	ctx := context.Background()

	seed(t, st, domain.CommonIncoming, "2025-07-04")

	result, err := e.ArchiveMonth(ctx, "2025-07")
	require.NoError(t, err)
	assert.Equal(t, "2025-07", result.Month)
	assert.Equal(t, int64(1), result.ItemsMoved)
}

func TestArchiveMonth_RejectsIncompleteMonths(t *testing.T) {
	e, _, _, _ := setupEngine(t, time.Date(2025, 10, 3, 9, 0, 0, 0, time.UTC))
	ctx := context.Background()

	for _, month := range []string{"2025-10", "2025-11", "2026-01"} {
		_, err := e.ArchiveMonth(ctx, month)
		require.Error(t, err, month)
		assert.True(t, domain.IsValidation(err), month)
	}

	_, err := e.ArchiveMonth(ctx, "October")
	assert.True(t, domain.IsValidation(err))
}

func TestPending_CountsWithoutMoving(t *testing.T) {
	e, st, _, _ := setupEngine(t, time.Date(2025, 10, 3, 9, 0, 0, 0, time.UTC))
	ctx := context.Background()

	seed(t, st, domain.CommonIncoming, "2025-09-04")
	deleted := seed(t, st, domain.CommonOutgoing, "2025-09-05")
	seed(t, st, domain.CommonIncoming, "2025-10-01")
	require.NoError(t, st.DeleteRegistration(ctx, deleted.ID, time.Now(), "clerk"))

	result, err := e.Pending(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, "2025-09", result.Month)
	assert.Equal(t, int64(2), result.ItemsMoved, "deleted rows are archived too")
	assert.Empty(t, result.RunID)

	n, err := st.CountMonth(ctx, "2025-09")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n, "nothing moved")

	batches, err := st.ListArchiveBatches(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, batches)

	_, err = e.Pending(ctx, "2025-10")
	assert.True(t, domain.IsValidation(err))
}

func TestRun_StorageFailureIsTyped(t *testing.T) {
	e, st, _, m := setupEngine(t, time.Date(2025, 10, 3, 9, 0, 0, 0, time.UTC))

	require.NoError(t, st.Close())

	_, err := e.RunMonthlyArchive(context.Background())
	require.Error(t, err)
	assert.True(t, domain.IsStorage(err))
	assert.Equal(t, 1.0, promtest.ToFloat64(m.ArchiveRuns.WithLabelValues("error")))
}

func TestUUIDv7Generator(t *testing.T) {
	id := UUIDv7Generator{}.Generate()

	parsed, err := uuid.Parse(id)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), parsed.Version())
}
