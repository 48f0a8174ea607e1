package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"

	"github.com/roach88/registry/internal/domain"
)

// ListFilter selects registrations for a listing.
type ListFilter struct {
	Month    string          // YYYY-MM, required
	Category domain.Category // empty for all categories
	Limit    int
	Offset   int
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

const selectRegistration = `SELECT ` + registrationColumns + ` FROM registrations`

// GetRegistration returns a registration by id, including soft-deleted rows.
// Returns ErrNotFound if the id is absent (never created or already archived).
func (s *Store) GetRegistration(ctx context.Context, id int64) (domain.Registration, error) {
	row := s.db.QueryRowContext(ctx, selectRegistration+` WHERE id = ?`, id)
	reg, err := scanRegistration(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Registration{}, ErrNotFound
	}
	if err != nil {
		return domain.Registration{}, fmt.Errorf("get registration: %w", err)
	}
	return reg, nil
}

// ListRegistrations returns non-deleted registrations whose entry date falls
// in f.Month, ordered by id, plus the total number of matching rows.
//
// Returns an empty slice (not nil) if nothing matches.
func (s *Store) ListRegistrations(ctx context.Context, f ListFilter) ([]domain.Registration, int64, error) {
	where := `WHERE deleted_flag = 0 AND entry_date LIKE ?`
	args := []any{domain.MonthPrefix(f.Month)}
	if f.Category != "" {
		where += ` AND category = ?`
		args = append(args, string(f.Category))
	}

	var total int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM registrations `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count registrations: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		selectRegistration+` `+where+` ORDER BY id ASC LIMIT ? OFFSET ?`,
		append(args, f.Limit, f.Offset)...,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("query registrations: %w", err)
	}
	defer rows.Close()

	items := []domain.Registration{}
	for rows.Next() {
		reg, err := scanRegistration(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan registration: %w", err)
		}
		items = append(items, reg)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate registrations: %w", err)
	}

	return items, total, nil
}

// ListAuditEvents returns the audit trail of a registration in id order.
func (s *Store) ListAuditEvents(ctx context.Context, registrationID int64) ([]domain.AuditEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+auditColumns+`
		FROM audit_events
		WHERE registration_id = ?
		ORDER BY id ASC
	`, registrationID)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	events := []domain.AuditEvent{}
	for rows.Next() {
		ev, err := scanAuditEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return events, nil
}

// ListArchiveBatches returns archive receipts in id order. An empty month
// returns every batch.
func (s *Store) ListArchiveBatches(ctx context.Context, month string) ([]domain.ArchiveBatch, error) {
	query := `SELECT id, month, created_at, items_moved, run_id FROM archive_batches`
	var args []any
	if month != "" {
		query += ` WHERE month = ?`
		args = append(args, month)
	}
	query += ` ORDER BY id ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query archive batches: %w", err)
	}
	defer rows.Close()

	batches := []domain.ArchiveBatch{}
	for rows.Next() {
		var (
			b         domain.ArchiveBatch
			createdAt string
		)
		if err := rows.Scan(&b.ID, &b.Month, &createdAt, &b.ItemsMoved, &b.RunID); err != nil {
			return nil, fmt.Errorf("scan archive batch: %w", err)
		}
		if b.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		batches = append(batches, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate archive batches: %w", err)
	}
	return batches, nil
}

// CountMonth counts every registration (deleted or not) with an entry date
// in month that is still in the primary store.
func (s *Store) CountMonth(ctx context.Context, month string) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM registrations WHERE entry_date LIKE ?`,
		domain.MonthPrefix(month),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count month: %w", err)
	}
	return n, nil
}

// ArchiveContents summarizes one month's archive store.
type ArchiveContents struct {
	Month         string                `json:"month"`
	Registrations []domain.Registration `json:"registrations"`
	AuditEvents   int64                 `json:"auditEvents"`
}

// ReadArchive opens the archive store for month read-only and returns its
// registrations and audit event count. Returns ErrNotFound if no archive
// exists for the month.
func (s *Store) ReadArchive(ctx context.Context, month string) (*ArchiveContents, error) {
	path := s.ArchivePath(month)
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}

	db, err := sql.Open("sqlite3", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	defer db.Close()

	contents := &ArchiveContents{Month: month, Registrations: []domain.Registration{}}

	rows, err := db.QueryContext(ctx, selectRegistration+` ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("query archived registrations: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		reg, err := scanRegistration(rows)
		if err != nil {
			return nil, fmt.Errorf("scan archived registration: %w", err)
		}
		contents.Registrations = append(contents.Registrations, reg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate archived registrations: %w", err)
	}

	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM audit_events`).Scan(&contents.AuditEvents); err != nil {
		return nil, fmt.Errorf("count archived audit events: %w", err)
	}

	return contents, nil
}

func scanRegistration(row rowScanner) (domain.Registration, error) {
	var (
		reg       domain.Registration
		category  string
		recipient sql.NullString
		offices   sql.NullString
		draft     sql.NullInt64
		createdAt string
		deleted   int
		deletedAt sql.NullString
	)

	err := row.Scan(
		&reg.ID, &category, &reg.Issuer, &reg.ReferenceNumber, &reg.Subject,
		&recipient, &offices, &reg.ProtocolNumber, &draft, &reg.EntryDate,
		&createdAt, &deleted, &deletedAt,
	)
	if err != nil {
		return domain.Registration{}, err
	}

	reg.Category = domain.Category(category)
	reg.Recipient = recipient.String
	reg.Offices = unmarshalOffices(offices)
	if draft.Valid {
		d := draft.Int64
		reg.DraftNumber = &d
	}
	if reg.CreatedAt, err = parseTime(createdAt); err != nil {
		return domain.Registration{}, err
	}
	reg.DeletedFlag = deleted == 1
	if deletedAt.Valid {
		t, err := parseTime(deletedAt.String)
		if err != nil {
			return domain.Registration{}, err
		}
		reg.DeletedAt = &t
	}

	return reg, nil
}

func scanAuditEvent(row rowScanner) (domain.AuditEvent, error) {
	var (
		ev        domain.AuditEvent
		action    string
		timestamp string
	)
	if err := row.Scan(&ev.ID, &action, &ev.RegistrationID, &timestamp, &ev.Username); err != nil {
		return domain.AuditEvent{}, err
	}
	ev.Action = domain.AuditAction(action)
	t, err := parseTime(timestamp)
	if err != nil {
		return domain.AuditEvent{}, err
	}
	ev.Timestamp = t
	return ev, nil
}
