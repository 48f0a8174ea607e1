// Package service is the registry's application layer: it normalizes and
// validates input, attributes mutations to a user, maps storage failures to
// typed errors, and records metrics. Both the CLI and the HTTP API call it.
package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/roach88/registry/internal/archive"
	"github.com/roach88/registry/internal/domain"
	"github.com/roach88/registry/internal/metrics"
	"github.com/roach88/registry/internal/store"
)

// Service wraps a store with the registry's operations.
type Service struct {
	store   *store.Store
	archive *archive.Engine
	clock   domain.Clock
	runIDs  archive.RunIDGenerator
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// Option configures a Service.
type Option func(*Service)

// WithClock sets the clock for timestamps, default entry dates and the
// archive target month.
func WithClock(c domain.Clock) Option {
	return func(s *Service) { s.clock = c }
}

// WithRunIDs sets the archive run id generator.
func WithRunIDs(g archive.RunIDGenerator) Option {
	return func(s *Service) { s.runIDs = g }
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithMetrics sets the metrics sink. A nil sink records nothing.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// New creates a Service over st.
func New(st *store.Store, opts ...Option) *Service {
	s := &Service{
		store:  st,
		clock:  domain.SystemClock{},
		runIDs: archive.UUIDv7Generator{},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.archive = archive.New(st,
		archive.WithClock(s.clock),
		archive.WithRunIDs(s.runIDs),
		archive.WithLogger(s.logger),
		archive.WithMetrics(s.metrics),
	)
	return s
}

// CreateRegistration validates in for the category identifier and stores it,
// allocating its protocol number and, for outgoing categories, its draft
// number. The entry date defaults to today in the clock's location. The
// audit event is attributed to domain.UsernameFrom(ctx).
func (s *Service) CreateRegistration(ctx context.Context, category string, in domain.RegistrationInput) (domain.Registration, error) {
	c, err := domain.ParseCategory(category)
	if err != nil {
		s.rejected(err)
		return domain.Registration{}, err
	}

	in = in.Normalize()
	if err := in.Validate(c); err != nil {
		s.rejected(err)
		return domain.Registration{}, err
	}

	now := s.clock.Now()
	if in.EntryDate == "" {
		in.EntryDate = now.Format(domain.DateLayout)
	}

	reg, err := s.store.CreateRegistration(ctx, store.NewRegistration{
		Category: c,
		Input:    in,
		Username: domain.UsernameFrom(ctx),
		At:       now,
	})
	if err != nil {
		return domain.Registration{}, s.storageError("create registration", err)
	}

	s.metrics.IncrementCreated(string(c), reg.DraftNumber != nil)
	s.logger.Info("registration created",
		"id", reg.ID,
		"category", reg.Category,
		"protocol_number", reg.ProtocolNumber,
		"entry_date", reg.EntryDate,
	)
	return reg, nil
}

// DeleteRegistration soft-deletes an active registration. Deleting a missing
// or already deleted id returns a NOT_FOUND error and changes nothing.
func (s *Service) DeleteRegistration(ctx context.Context, id int64) error {
	err := s.store.DeleteRegistration(ctx, id, s.clock.Now(), domain.UsernameFrom(ctx))
	if errors.Is(err, store.ErrNotFound) {
		return domain.NewNotFoundError(id)
	}
	if err != nil {
		return s.storageError("delete registration", err)
	}

	s.metrics.IncrementDeleted()
	s.logger.Info("registration deleted", "id", id)
	return nil
}

// GetRegistration returns a registration still in the primary store,
// including soft-deleted ones.
func (s *Service) GetRegistration(ctx context.Context, id int64) (domain.Registration, error) {
	reg, err := s.store.GetRegistration(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return domain.Registration{}, domain.NewNotFoundError(id)
	}
	if err != nil {
		return domain.Registration{}, s.storageError("get registration", err)
	}
	return reg, nil
}

// ListRegistrations returns one page (1-based, domain.PageSize items) of the
// active registrations with an entry date in month, optionally restricted to
// one category.
func (s *Service) ListRegistrations(ctx context.Context, month, category string, page int) (domain.Page, error) {
	if _, err := domain.ParseMonth(month); err != nil {
		return domain.Page{}, err
	}
	var c domain.Category
	if category != "" {
		parsed, err := domain.ParseCategory(category)
		if err != nil {
			return domain.Page{}, err
		}
		c = parsed
	}
	if page < 1 {
		return domain.Page{}, domain.NewValidationError("page", "page must be 1 or greater")
	}

	items, total, err := s.store.ListRegistrations(ctx, store.ListFilter{
		Month:    month,
		Category: c,
		Limit:    domain.PageSize,
		Offset:   (page - 1) * domain.PageSize,
	})
	if err != nil {
		return domain.Page{}, s.storageError("list registrations", err)
	}

	return domain.Page{Items: items, Page: page, PageSize: domain.PageSize, Total: total}, nil
}

// AuditTrail returns the audit events of a registration still in the
// primary store.
func (s *Service) AuditTrail(ctx context.Context, id int64) ([]domain.AuditEvent, error) {
	events, err := s.store.ListAuditEvents(ctx, id)
	if err != nil {
		return nil, s.storageError("list audit events", err)
	}
	return events, nil
}

// RunMonthlyArchive archives the month before the current one.
func (s *Service) RunMonthlyArchive(ctx context.Context) (domain.ArchiveResult, error) {
	return s.archive.RunMonthlyArchive(ctx)
}

// ArchiveMonth archives an explicit completed month.
func (s *Service) ArchiveMonth(ctx context.Context, month string) (domain.ArchiveResult, error) {
	return s.archive.ArchiveMonth(ctx, month)
}

// PendingArchive counts what archiving month would move. An empty month
// means the month before the current one.
func (s *Service) PendingArchive(ctx context.Context, month string) (domain.ArchiveResult, error) {
	return s.archive.Pending(ctx, month)
}

// ArchiveBatches lists archive receipts, optionally for one month.
func (s *Service) ArchiveBatches(ctx context.Context, month string) ([]domain.ArchiveBatch, error) {
	if month != "" {
		if _, err := domain.ParseMonth(month); err != nil {
			return nil, err
		}
	}
	batches, err := s.store.ListArchiveBatches(ctx, month)
	if err != nil {
		return nil, s.storageError("list archive batches", err)
	}
	return batches, nil
}

// Sequences lists every numbering counter.
func (s *Service) Sequences(ctx context.Context) ([]domain.SequenceCounter, error) {
	counters, err := s.store.ListSequences(ctx)
	if err != nil {
		return nil, s.storageError("list sequences", err)
	}
	return counters, nil
}

// ReadArchive returns the contents of a month's archive store.
func (s *Service) ReadArchive(ctx context.Context, month string) (*store.ArchiveContents, error) {
	if _, err := domain.ParseMonth(month); err != nil {
		return nil, err
	}
	contents, err := s.store.ReadArchive(ctx, month)
	if errors.Is(err, store.ErrNotFound) {
		return nil, &domain.Error{Code: domain.ErrCodeNotFound, Message: "no archive for " + month}
	}
	if err != nil {
		return nil, s.storageError("read archive", err)
	}
	return contents, nil
}

// rejected counts a validation failure.
func (s *Service) rejected(err error) {
	var derr *domain.Error
	if errors.As(err, &derr) && derr.Code == domain.ErrCodeValidation {
		s.metrics.IncrementValidationFailure(derr.Field)
	}
}

// storageError passes typed errors through and wraps everything else as
// STORAGE. The caller may retry the whole operation; nothing was applied.
func (s *Service) storageError(op string, err error) error {
	var derr *domain.Error
	if errors.As(err, &derr) {
		return err
	}
	s.logger.Error(op+" failed", "error", err)
	return domain.NewStorageError(op, err)
}
