package store

import (
	"context"
	"fmt"
	"time"

	"github.com/roach88/registry/internal/domain"
)

// NewRegistration carries a validated, normalized registration to the store.
// EntryDate must already be resolved (YYYY-MM-DD).
type NewRegistration struct {
	Category domain.Category
	Input    domain.RegistrationInput
	Username string
	At       time.Time
}

// CreateRegistration allocates numbers and inserts a registration plus its
// create audit event in one transaction:
//
//	allocate protocol -> allocate draft (outgoing) -> insert row -> insert audit -> commit
//
// Any failure rolls back every step, counters included.
func (s *Store) CreateRegistration(ctx context.Context, nr NewRegistration) (domain.Registration, error) {
	entry, err := domain.ParseDate(nr.Input.EntryDate)
	if err != nil {
		return domain.Registration{}, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Registration{}, fmt.Errorf("create registration: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	reg := domain.Registration{
		Category:        nr.Category,
		Issuer:          nr.Input.Issuer,
		ReferenceNumber: nr.Input.ReferenceNumber,
		Subject:         nr.Input.Subject,
		Recipient:       nr.Input.Recipient,
		Offices:         nr.Input.Offices,
		EntryDate:       nr.Input.EntryDate,
		CreatedAt:       nr.At.UTC().Truncate(time.Second),
	}

	// Step 1: protocol number, scoped by category and entry year
	reg.ProtocolNumber, err = allocate(ctx, tx, domain.ProtocolKey(nr.Category, entry.Year()), nr.At)
	if err != nil {
		return domain.Registration{}, fmt.Errorf("create registration: %w", err)
	}

	// Step 2: draft number, outgoing only, never reset
	if nr.Category.IsOutgoing() {
		draft, err := allocate(ctx, tx, domain.DraftKey(nr.Category), nr.At)
		if err != nil {
			return domain.Registration{}, fmt.Errorf("create registration: %w", err)
		}
		reg.DraftNumber = &draft
	}

	// Step 3: registration row
	var draftArg any
	if reg.DraftNumber != nil {
		draftArg = *reg.DraftNumber
	}
	result, err := tx.ExecContext(ctx, `
		INSERT INTO registrations
		(category, issuer, reference_number, subject, recipient, offices,
		 protocol_number, draft_number, entry_date, created_at, deleted_flag)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0)
	`,
		string(reg.Category),
		reg.Issuer,
		reg.ReferenceNumber,
		reg.Subject,
		nullString(reg.Recipient),
		marshalOffices(reg.Offices),
		reg.ProtocolNumber,
		draftArg,
		reg.EntryDate,
		formatTime(reg.CreatedAt),
	)
	if err != nil {
		return domain.Registration{}, fmt.Errorf("create registration: insert: %w", err)
	}
	if reg.ID, err = result.LastInsertId(); err != nil {
		return domain.Registration{}, fmt.Errorf("create registration: last insert id: %w", err)
	}

	// Step 4: audit event
	if err := insertAuditEvent(ctx, tx, domain.AuditCreate, reg.ID, nr.At, nr.Username); err != nil {
		return domain.Registration{}, fmt.Errorf("create registration: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return domain.Registration{}, fmt.Errorf("create registration: commit: %w", err)
	}

	return reg, nil
}

// DeleteRegistration soft-deletes an active registration and records a
// delete audit event in the same transaction. Returns ErrNotFound if the id
// does not exist or is already deleted.
func (s *Store) DeleteRegistration(ctx context.Context, id int64, at time.Time, username string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("delete registration: begin tx: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		UPDATE registrations
		SET deleted_flag = 1, deleted_at = ?
		WHERE id = ? AND deleted_flag = 0
	`, formatTime(at), id)
	if err != nil {
		return fmt.Errorf("delete registration: update: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete registration: rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	if err := insertAuditEvent(ctx, tx, domain.AuditDelete, id, at, username); err != nil {
		return fmt.Errorf("delete registration: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("delete registration: commit: %w", err)
	}
	return nil
}

func insertAuditEvent(ctx context.Context, q querier, action domain.AuditAction, registrationID int64, at time.Time, username string) error {
	if username == "" {
		username = domain.UnknownUser
	}
	_, err := q.ExecContext(ctx, `
		INSERT INTO audit_events (action, registration_id, timestamp, username)
		VALUES (?, ?, ?, ?)
	`, string(action), registrationID, formatTime(at), username)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}
