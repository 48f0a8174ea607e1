package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/roach88/registry/internal/domain"
)

// querier is satisfied by *sql.DB, *sql.Conn and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// allocate hands out the next value of the counter identified by key and
// advances it by one, inside the caller's transaction.
//
// The counter row is created lazily with key.Start() on first use. The
// insert-or-increment is a single statement, and the surrounding transaction
// already holds the database write lock (BEGIN IMMEDIATE), so two
// allocations for the same key can never observe the same value.
func allocate(ctx context.Context, q querier, key domain.SequenceKey, now time.Time) (int64, error) {
	if err := key.Validate(); err != nil {
		return 0, err
	}

	var next int64
	err := q.QueryRowContext(ctx, `
		INSERT INTO numbering_sequences (kind, category, year, next_value, last_updated)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(kind, category, year) DO UPDATE
		SET next_value = next_value + 1, last_updated = excluded.last_updated
		RETURNING next_value - 1
	`,
		string(key.Kind),
		string(key.Category),
		key.Year,
		key.Start()+1,
		formatTime(now),
	).Scan(&next)
	if err != nil {
		return 0, fmt.Errorf("allocate %s: %w", key, err)
	}

	return next, nil
}

// ListSequences returns every counter, ordered by kind, category and year.
func (s *Store) ListSequences(ctx context.Context) ([]domain.SequenceCounter, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT kind, category, year, next_value, last_updated
		FROM numbering_sequences
		ORDER BY kind ASC, category ASC, year ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query sequences: %w", err)
	}
	defer rows.Close()

	counters := []domain.SequenceCounter{}
	for rows.Next() {
		var (
			c           domain.SequenceCounter
			kind, cat   string
			lastUpdated string
		)
		if err := rows.Scan(&kind, &cat, &c.Year, &c.NextValue, &lastUpdated); err != nil {
			return nil, fmt.Errorf("scan sequence: %w", err)
		}
		c.Kind = domain.SequenceKind(kind)
		c.Category = domain.Category(cat)
		if c.LastUpdated, err = parseTime(lastUpdated); err != nil {
			return nil, err
		}
		counters = append(counters, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sequences: %w", err)
	}

	return counters, nil
}
