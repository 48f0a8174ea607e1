package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/registry/internal/domain"
)

// createTestStore creates a new store in a temp directory for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

var testNow = time.Date(2025, 10, 3, 9, 30, 0, 0, time.UTC)

// createTestRegistration inserts a valid registration for category on date.
func createTestRegistration(t *testing.T, s *Store, c domain.Category, date string) domain.Registration {
	t.Helper()
	in := domain.RegistrationInput{
		Issuer:          "Ministry of Transport",
		ReferenceNumber: "REF-1",
		Subject:         "Road works",
		EntryDate:       date,
	}
	if c.IsIncoming() {
		in.Offices = []string{"OFF-1", "OFF-2"}
	} else {
		in.Recipient = "Port Authority"
	}
	reg, err := s.CreateRegistration(context.Background(), NewRegistration{
		Category: c,
		Input:    in,
		Username: "clerk",
		At:       testNow,
	})
	if err != nil {
		t.Fatalf("CreateRegistration() failed: %v", err)
	}
	return reg
}

// allocateOnce runs allocate in a transaction of its own.
func allocateOnce(ctx context.Context, s *Store, key domain.SequenceKey, now time.Time) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	next, err := allocate(ctx, tx, key, now)
	if err != nil {
		return 0, err
	}
	return next, tx.Commit()
}
