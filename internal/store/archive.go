package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	"github.com/roach88/registry/internal/domain"
)

// stageArchiveCommitted is reported to the test hook once the archive store
// has committed and before the primary store deletes anything.
const stageArchiveCommitted = "archive-committed"

// ArchiveMonth relocates every registration whose entry date falls in month,
// together with its audit events, into the month's archive store, then
// records an ArchiveBatch receipt in the primary store. Returns the number of
// registrations moved, which is 0 when nothing matched.
//
// The two stores are separate SQLite files, so the move is a two-phase
// transfer rather than a single cross-file transaction:
//
//  1. BEGIN IMMEDIATE on the primary store and read the month's rows.
//     The primary write lock is held until step 4.
//  2. Copy the rows into the archive store in its own transaction. Copies
//     are keyed by id and overwrite rows already present, so a rerun after
//     an interrupted transfer converges on the primary's current state
//     instead of duplicating.
//  3. Verify the archive holds every staged id, then commit the archive.
//  4. Delete audit events, then registrations, from the primary store,
//     insert the batch receipt and commit.
//
// If step 4 fails the rows step 2 added are removed from the archive again,
// and the primary store keeps every row.
func (s *Store) ArchiveMonth(ctx context.Context, month string, at time.Time, runID string) (int64, error) {
	if _, err := domain.ParseMonth(month); err != nil {
		return 0, err
	}
	prefix := domain.MonthPrefix(month)

	if err := os.MkdirAll(s.ArchiveDir(), 0o755); err != nil {
		return 0, fmt.Errorf("archive %s: create archive dir: %w", month, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("archive %s: begin tx: %w", month, err)
	}
	defer tx.Rollback() // No-op if committed

	// Step 1: stage the month's rows under the primary write lock
	regs, events, err := stageMonth(ctx, tx, prefix)
	if err != nil {
		return 0, fmt.Errorf("archive %s: %w", month, err)
	}
	moved := int64(len(regs))

	// The archive store is created even for an empty month so that every
	// archived month has a store on disk.
	archive, err := openArchive(s.ArchivePath(month))
	if err != nil {
		return 0, fmt.Errorf("archive %s: %w", month, err)
	}
	defer archive.Close()

	// Steps 2-3: copy and verify
	var copied archiveCopy
	if moved > 0 {
		copied, err = copyToArchive(ctx, archive, regs, events)
		if err != nil {
			return 0, fmt.Errorf("archive %s: %w", month, err)
		}
	}

	if err := s.hook(stageArchiveCommitted); err != nil {
		return 0, s.compensate(archive, month, copied, err)
	}

	// Step 4: children before parents, then the receipt
	if moved > 0 {
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM audit_events
			WHERE registration_id IN (SELECT id FROM registrations WHERE entry_date LIKE ?)
		`, prefix); err != nil {
			return 0, s.compensate(archive, month, copied, fmt.Errorf("delete audit events: %w", err))
		}

		result, err := tx.ExecContext(ctx, `DELETE FROM registrations WHERE entry_date LIKE ?`, prefix)
		if err != nil {
			return 0, s.compensate(archive, month, copied, fmt.Errorf("delete registrations: %w", err))
		}
		deleted, err := result.RowsAffected()
		if err != nil {
			return 0, s.compensate(archive, month, copied, fmt.Errorf("rows affected: %w", err))
		}
		if deleted != moved {
			return 0, s.compensate(archive, month, copied,
				fmt.Errorf("deleted %d registrations, staged %d", deleted, moved))
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO archive_batches (month, created_at, items_moved, run_id)
		VALUES (?, ?, ?, ?)
	`, month, formatTime(at), moved, runID); err != nil {
		return 0, s.compensate(archive, month, copied, fmt.Errorf("insert batch: %w", err))
	}

	if err := tx.Commit(); err != nil {
		return 0, s.compensate(archive, month, copied, fmt.Errorf("commit: %w", err))
	}

	return moved, nil
}

// stageMonth reads the registrations matching prefix and every audit event
// that references them.
func stageMonth(ctx context.Context, q querier, prefix string) ([]domain.Registration, []domain.AuditEvent, error) {
	rows, err := q.QueryContext(ctx, selectRegistration+` WHERE entry_date LIKE ? ORDER BY id ASC`, prefix)
	if err != nil {
		return nil, nil, fmt.Errorf("stage registrations: %w", err)
	}
	var regs []domain.Registration
	for rows.Next() {
		reg, err := scanRegistration(rows)
		if err != nil {
			rows.Close()
			return nil, nil, fmt.Errorf("scan staged registration: %w", err)
		}
		regs = append(regs, reg)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate staged registrations: %w", err)
	}

	rows, err = q.QueryContext(ctx, `
		SELECT `+auditColumns+`
		FROM audit_events
		WHERE registration_id IN (SELECT id FROM registrations WHERE entry_date LIKE ?)
		ORDER BY id ASC
	`, prefix)
	if err != nil {
		return nil, nil, fmt.Errorf("stage audit events: %w", err)
	}
	defer rows.Close()
	var events []domain.AuditEvent
	for rows.Next() {
		ev, err := scanAuditEvent(rows)
		if err != nil {
			return nil, nil, fmt.Errorf("scan staged audit event: %w", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate staged audit events: %w", err)
	}

	return regs, events, nil
}

// openArchive opens (or creates) a month's archive store with the same
// registration and audit tables as the primary store. Archive stores are
// written once and then only read, so they use a rollback journal instead of
// WAL and can be opened read-only later.
func openArchive(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", archiveDSN(path))
	if err != nil {
		return nil, fmt.Errorf("open archive store: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect archive store: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(registrationsDDL); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply archive schema: %w", err)
	}
	return db, nil
}

// archiveCopy records what one copyToArchive call changed in the archive
// store, so a failed primary commit can take exactly that back out.
type archiveCopy struct {
	inserted    []int64 // registrations new to the archive
	overwritten []int64 // registrations an interrupted run had already copied
	events      []int64 // audit events new to the archive
}

func (c archiveCopy) empty() bool {
	return len(c.inserted) == 0 && len(c.events) == 0
}

// copyToArchive writes the staged rows into the archive store and commits.
// A registration an earlier interrupted run already copied is overwritten:
// the staged row was read under the primary write lock and is authoritative.
func copyToArchive(ctx context.Context, archive *sql.DB, regs []domain.Registration, events []domain.AuditEvent) (archiveCopy, error) {
	var c archiveCopy

	tx, err := archive.BeginTx(ctx, nil)
	if err != nil {
		return c, fmt.Errorf("archive store: begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, reg := range regs {
		exists, err := rowExists(ctx, tx, "registrations", reg.ID)
		if err != nil {
			return c, fmt.Errorf("check registration %d: %w", reg.ID, err)
		}

		var draft, deletedAt any
		if reg.DraftNumber != nil {
			draft = *reg.DraftNumber
		}
		if reg.DeletedAt != nil {
			deletedAt = formatTime(*reg.DeletedAt)
		}
		deleted := 0
		if reg.DeletedFlag {
			deleted = 1
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO registrations (`+registrationColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				category = excluded.category,
				issuer = excluded.issuer,
				reference_number = excluded.reference_number,
				subject = excluded.subject,
				recipient = excluded.recipient,
				offices = excluded.offices,
				protocol_number = excluded.protocol_number,
				draft_number = excluded.draft_number,
				entry_date = excluded.entry_date,
				created_at = excluded.created_at,
				deleted_flag = excluded.deleted_flag,
				deleted_at = excluded.deleted_at
		`,
			reg.ID,
			string(reg.Category),
			reg.Issuer,
			reg.ReferenceNumber,
			reg.Subject,
			nullString(reg.Recipient),
			marshalOffices(reg.Offices),
			reg.ProtocolNumber,
			draft,
			reg.EntryDate,
			formatTime(reg.CreatedAt),
			deleted,
			deletedAt,
		); err != nil {
			return c, fmt.Errorf("copy registration %d: %w", reg.ID, err)
		}
		if exists {
			c.overwritten = append(c.overwritten, reg.ID)
		} else {
			c.inserted = append(c.inserted, reg.ID)
		}
	}

	// Audit events are append-only, so an existing copy is already current.
	for _, ev := range events {
		result, err := tx.ExecContext(ctx, `
			INSERT INTO audit_events (`+auditColumns+`)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(id) DO NOTHING
		`, ev.ID, string(ev.Action), ev.RegistrationID, formatTime(ev.Timestamp), ev.Username)
		if err != nil {
			return c, fmt.Errorf("copy audit event %d: %w", ev.ID, err)
		}
		if n, _ := result.RowsAffected(); n == 1 {
			c.events = append(c.events, ev.ID)
		}
	}

	// Every staged registration must be present before the primary rows go.
	for _, reg := range regs {
		ok, err := rowExists(ctx, tx, "registrations", reg.ID)
		if err != nil {
			return c, fmt.Errorf("verify registration %d: %w", reg.ID, err)
		}
		if !ok {
			return c, fmt.Errorf("verify archive: registration %d missing", reg.ID)
		}
	}

	if err := tx.Commit(); err != nil {
		return archiveCopy{}, fmt.Errorf("archive store: commit: %w", err)
	}
	return c, nil
}

func rowExists(ctx context.Context, q querier, table string, id int64) (bool, error) {
	var n int64
	if err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+table+` WHERE id = ?`, id).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

// compensate takes the rows this run added back out of the archive after the
// primary store failed to commit, and returns cause wrapped for the caller.
// Overwritten registrations stay: they now match the primary rows, which are
// still in place and will be copied again by the next run.
func (s *Store) compensate(archive *sql.DB, month string, copied archiveCopy, cause error) error {
	if copied.empty() {
		return fmt.Errorf("archive %s: %w", month, cause)
	}

	ctx := context.Background()
	tx, err := archive.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("archive %s: %w (compensation failed: %v)", month, cause, err)
	}
	defer tx.Rollback()

	for _, id := range copied.events {
		if _, err := tx.ExecContext(ctx, `DELETE FROM audit_events WHERE id = ?`, id); err != nil {
			return fmt.Errorf("archive %s: %w (compensation failed: %v)", month, cause, err)
		}
	}
	for _, id := range copied.inserted {
		if _, err := tx.ExecContext(ctx, `DELETE FROM audit_events WHERE registration_id = ?`, id); err != nil {
			return fmt.Errorf("archive %s: %w (compensation failed: %v)", month, cause, err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM registrations WHERE id = ?`, id); err != nil {
			return fmt.Errorf("archive %s: %w (compensation failed: %v)", month, cause, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("archive %s: %w (compensation failed: %v)", month, cause, err)
	}

	return fmt.Errorf("archive %s: %w", month, cause)
}

func (s *Store) hook(stage string) error {
	if s.archiveHook == nil {
		return nil
	}
	return s.archiveHook(stage)
}
