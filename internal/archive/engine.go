// Package archive relocates completed months of registrations into per-month
// archive stores.
package archive

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/registry/internal/domain"
	"github.com/roach88/registry/internal/metrics"
	"github.com/roach88/registry/internal/store"
)

// Engine runs archive passes against a store.
//
// Thread-safety: Engine holds no mutable state. Concurrent runs serialize on
// the store's write lock.
type Engine struct {
	store   *store.Store
	clock   domain.Clock
	runIDs  RunIDGenerator
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock sets the clock used to pick the target month and stamp receipts.
func WithClock(c domain.Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithRunIDs sets the run id generator. Default: UUIDv7Generator.
func WithRunIDs(g RunIDGenerator) Option {
	return func(e *Engine) { e.runIDs = g }
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithMetrics sets the metrics sink. A nil sink records nothing.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// New creates an Engine over s.
func New(s *store.Store, opts ...Option) *Engine {
	e := &Engine{
		store:  s,
		clock:  domain.SystemClock{},
		runIDs: UUIDv7Generator{},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// TargetMonth is the calendar month immediately preceding the clock's
// current date, as YYYY-MM.
func (e *Engine) TargetMonth() string {
	return domain.PreviousMonth(e.clock.Now())
}

// RunMonthlyArchive archives TargetMonth. Running it again for the same month
// moves nothing and records a second receipt with itemsMoved 0.
func (e *Engine) RunMonthlyArchive(ctx context.Context) (domain.ArchiveResult, error) {
	return e.run(ctx, e.TargetMonth())
}

// ArchiveMonth archives an explicit month. Only completed months qualify:
// the current month and any future month are rejected, since rows could
// still be added to them.
func (e *Engine) ArchiveMonth(ctx context.Context, month string) (domain.ArchiveResult, error) {
	if err := e.checkComplete(month); err != nil {
		return domain.ArchiveResult{}, err
	}
	return e.run(ctx, month)
}

// Pending reports how many registrations archiving month would move, without
// moving anything. An empty month means TargetMonth. RunID stays empty.
func (e *Engine) Pending(ctx context.Context, month string) (domain.ArchiveResult, error) {
	if month == "" {
		month = e.TargetMonth()
	}
	if err := e.checkComplete(month); err != nil {
		return domain.ArchiveResult{}, err
	}

	n, err := e.store.CountMonth(ctx, month)
	if err != nil {
		return domain.ArchiveResult{}, domain.NewStorageError("count month", err)
	}
	return domain.ArchiveResult{Month: month, ItemsMoved: n}, nil
}

func (e *Engine) checkComplete(month string) error {
	target, err := domain.ParseMonth(month)
	if err != nil {
		return err
	}
	current, _ := domain.ParseMonth(domain.CurrentMonth(e.clock.Now()))
	if !target.Before(current) {
		return domain.NewValidationError("month", fmt.Sprintf("month %s is not complete yet", month))
	}
	return nil
}

func (e *Engine) run(ctx context.Context, month string) (domain.ArchiveResult, error) {
	runID := e.runIDs.Generate()
	logger := e.logger.With("month", month, "run_id", runID)
	logger.Debug("archive run starting", "archive_path", e.store.ArchivePath(month))

	start := time.Now()
	moved, err := e.store.ArchiveMonth(ctx, month, e.clock.Now(), runID)
	e.metrics.ObserveArchive(moved, time.Since(start), err)
	if err != nil {
		logger.Error("archive run failed", "error", err)
		var derr *domain.Error
		if errors.As(err, &derr) {
			return domain.ArchiveResult{}, err
		}
		return domain.ArchiveResult{}, domain.NewStorageError("archive month", err)
	}

	logger.Info("archive run complete", "items_moved", moved)
	return domain.ArchiveResult{Month: month, ItemsMoved: moved, RunID: runID}, nil
}
