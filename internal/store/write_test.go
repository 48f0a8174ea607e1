package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/registry/internal/domain"
)

func TestCreateRegistration_Incoming(t *testing.T) {
	s := createTestStore(t)

	reg := createTestRegistration(t, s, domain.CommonIncoming, "2025-10-01")

	assert.Equal(t, int64(1), reg.ID)
	assert.Equal(t, int64(40001), reg.ProtocolNumber)
	assert.Nil(t, reg.DraftNumber, "incoming registrations have no draft number")
	assert.Equal(t, []string{"OFF-1", "OFF-2"}, reg.Offices)
	assert.False(t, reg.DeletedFlag)

	got, err := s.GetRegistration(context.Background(), reg.ID)
	require.NoError(t, err)
	assert.Equal(t, reg, got)
}

func TestCreateRegistration_OutgoingGetsDraftNumber(t *testing.T) {
	s := createTestStore(t)

	first := createTestRegistration(t, s, domain.SignalsOutgoing, "2025-10-01")
	second := createTestRegistration(t, s, domain.SignalsOutgoing, "2025-10-02")

	assert.Equal(t, int64(1), first.ProtocolNumber)
	assert.Equal(t, int64(2), second.ProtocolNumber)
	require.NotNil(t, first.DraftNumber)
	require.NotNil(t, second.DraftNumber)
	assert.Equal(t, int64(1), *first.DraftNumber)
	assert.Equal(t, int64(2), *second.DraftNumber)
	assert.Equal(t, "Port Authority", second.Recipient)
}

func TestCreateRegistration_ProtocolYearFollowsEntryDate(t *testing.T) {
	s := createTestStore(t)

	createTestRegistration(t, s, domain.SignalsIncoming, "2025-12-31")
	next := createTestRegistration(t, s, domain.SignalsIncoming, "2026-01-01")
	outgoing := createTestRegistration(t, s, domain.SignalsOutgoing, "2026-01-01")

	assert.Equal(t, int64(1), next.ProtocolNumber, "protocol numbers restart each year")
	assert.Equal(t, int64(1), outgoing.ProtocolNumber, "categories do not share counters")
}

func TestCreateRegistration_WritesAuditEvent(t *testing.T) {
	s := createTestStore(t)

	reg := createTestRegistration(t, s, domain.ConfidentialIncoming, "2025-10-01")

	events, err := s.ListAuditEvents(context.Background(), reg.ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, domain.AuditCreate, events[0].Action)
	assert.Equal(t, "clerk", events[0].Username)
	assert.Equal(t, testNow, events[0].Timestamp)
}

func TestCreateRegistration_FailureRollsBackCounters(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := s.db.Exec(`CREATE TRIGGER reject_insert BEFORE INSERT ON registrations
		BEGIN SELECT RAISE(ABORT, 'rejected'); END`)
	require.NoError(t, err)

	_, err = s.CreateRegistration(ctx, NewRegistration{
		Category: domain.CommonOutgoing,
		Input: domain.RegistrationInput{
			Issuer: "a", ReferenceNumber: "b", Subject: "c",
			Recipient: "d", EntryDate: "2025-10-01",
		},
		At: testNow,
	})
	require.Error(t, err)

	counters, err := s.ListSequences(ctx)
	require.NoError(t, err)
	assert.Empty(t, counters, "a failed creation must not consume numbers")

	_, err = s.db.Exec(`DROP TRIGGER reject_insert`)
	require.NoError(t, err)

	reg := createTestRegistration(t, s, domain.CommonOutgoing, "2025-10-01")
	assert.Equal(t, int64(40001), reg.ProtocolNumber)
	assert.Equal(t, int64(1), *reg.DraftNumber)
}

func TestCreateRegistration_InvalidEntryDate(t *testing.T) {
	s := createTestStore(t)

	_, err := s.CreateRegistration(context.Background(), NewRegistration{
		Category: domain.CommonIncoming,
		Input:    domain.RegistrationInput{EntryDate: "2025-13-01"},
		At:       testNow,
	})
	require.Error(t, err)
	assert.True(t, domain.IsValidation(err))
}

func TestCreateRegistration_UnknownUserPlaceholder(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	reg, err := s.CreateRegistration(ctx, NewRegistration{
		Category: domain.CommonIncoming,
		Input: domain.RegistrationInput{
			Issuer: "a", ReferenceNumber: "b", Subject: "c",
			Offices: []string{"OFF-1"}, EntryDate: "2025-10-01",
		},
		At: testNow,
	})
	require.NoError(t, err)

	events, err := s.ListAuditEvents(ctx, reg.ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, domain.UnknownUser, events[0].Username)
}

func TestDeleteRegistration(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	reg := createTestRegistration(t, s, domain.CommonIncoming, "2025-10-01")

	deletedAt := testNow.Add(time.Hour)
	require.NoError(t, s.DeleteRegistration(ctx, reg.ID, deletedAt, "supervisor"))

	got, err := s.GetRegistration(ctx, reg.ID)
	require.NoError(t, err)
	assert.True(t, got.DeletedFlag)
	require.NotNil(t, got.DeletedAt)
	assert.Equal(t, deletedAt, *got.DeletedAt)

	events, err := s.ListAuditEvents(ctx, reg.ID)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, domain.AuditDelete, events[1].Action)
	assert.Equal(t, "supervisor", events[1].Username)
}

func TestDeleteRegistration_NotFound(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	err := s.DeleteRegistration(ctx, 42, testNow, "clerk")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteRegistration_AlreadyDeleted(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	reg := createTestRegistration(t, s, domain.CommonIncoming, "2025-10-01")

	require.NoError(t, s.DeleteRegistration(ctx, reg.ID, testNow, "clerk"))
	err := s.DeleteRegistration(ctx, reg.ID, testNow, "clerk")
	assert.ErrorIs(t, err, ErrNotFound)

	events, err := s.ListAuditEvents(ctx, reg.ID)
	require.NoError(t, err)
	assert.Len(t, events, 2, "a rejected delete writes no audit event")
}
