package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var t0 = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func newTestSessions(repo SessionRepository, presence PresenceCache) *SessionsService {
	return NewSessionsService(repo, presence, DefaultTariff(), zap.NewNop())
}

func TestBeginThenEndRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	svc := newTestSessions(repo, NewMemoryPresence())

	entry, err := svc.BeginSession(ctx, "ABC123", t0)
	require.NoError(t, err)
	assert.Equal(t, "ABC123", entry.LicensePlate)
	assert.Equal(t, int64(40), entry.MinimumCharge)

	row := repo.snapshot()[entry.SessionID]
	assert.Equal(t, "ABC123", row.LicensePlate)
	assert.True(t, row.EntryTime.Equal(t0))
	assert.Nil(t, row.ExitTime)
	assert.Nil(t, row.AmountDue)

	t1 := t0.Add(4 * time.Hour)
	exit, err := svc.EndSession(ctx, "ABC123", t1)
	require.NoError(t, err)
	assert.Equal(t, entry.SessionID, exit.SessionID)
	assert.True(t, exit.EntryTime.Equal(t0))
	assert.Equal(t, int64(50), exit.AmountDue)

	row = repo.snapshot()[entry.SessionID]
	require.NotNil(t, row.ExitTime)
	require.NotNil(t, row.AmountDue)
	assert.True(t, row.ExitTime.Equal(t1))
	assert.Equal(t, int64(50), *row.AmountDue)
}

func TestZeroDurationChargesMinimum(t *testing.T) {
	ctx := context.Background()
	svc := newTestSessions(newFakeRepo(), nil)

	_, err := svc.BeginSession(ctx, "ZERO1", t0)
	require.NoError(t, err)
	exit, err := svc.EndSession(ctx, "ZERO1", t0)
	require.NoError(t, err)
	assert.Equal(t, int64(40), exit.AmountDue)
	assert.Zero(t, exit.Duration)
}

func TestEndWithoutEntryIsNotFound(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestSessions(repo, NewMemoryPresence())

	_, err := svc.EndSession(context.Background(), "GHOST", t0)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.Empty(t, repo.snapshot())
	assert.Zero(t, repo.writes)
}

func TestSecondEndIsNotFound(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	svc := newTestSessions(repo, nil)

	_, err := svc.BeginSession(ctx, "TWICE", t0)
	require.NoError(t, err)
	first, err := svc.EndSession(ctx, "TWICE", t0.Add(time.Hour))
	require.NoError(t, err)

	_, err = svc.EndSession(ctx, "TWICE", t0.Add(10*time.Hour))
	assert.ErrorIs(t, err, ErrSessionNotFound)

	row := repo.snapshot()[first.SessionID]
	assert.Equal(t, int64(40), *row.AmountDue)
	assert.True(t, row.ExitTime.Equal(t0.Add(time.Hour)))
}

func TestClockSkewLeavesSessionOpen(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	svc := newTestSessions(repo, NewMemoryPresence())

	entry, err := svc.BeginSession(ctx, "SKEW", t0)
	require.NoError(t, err)

	_, err = svc.EndSession(ctx, "SKEW", t0.Add(-time.Minute))
	var skew *ClockSkewError
	require.ErrorAs(t, err, &skew)
	assert.Equal(t, "SKEW", skew.Plate)
	assert.True(t, skew.EntryTime.Equal(t0))

	row := repo.snapshot()[entry.SessionID]
	assert.True(t, row.IsOpen())
	assert.Nil(t, row.AmountDue)
}

func TestBlankPlateIsInvalid(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestSessions(repo, nil)

	for _, plate := range []string{"", "   ", "\t\n"} {
		_, err := svc.BeginSession(context.Background(), plate, t0)
		assert.ErrorIs(t, err, ErrInvalidPlate)
		_, err = svc.EndSession(context.Background(), plate, t0)
		assert.ErrorIs(t, err, ErrInvalidPlate)
	}
	assert.Empty(t, repo.snapshot())
}

func TestPlateIsNormalized(t *testing.T) {
	ctx := context.Background()
	svc := newTestSessions(newFakeRepo(), nil)

	entry, err := svc.BeginSession(ctx, "  KA 01   AB 1234 ", t0)
	require.NoError(t, err)
	assert.Equal(t, "KA 01 AB 1234", entry.LicensePlate)

	exit, err := svc.EndSession(ctx, "KA 01 AB 1234", t0.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, entry.SessionID, exit.SessionID)
}

func TestDuplicateOpenSessionsCloseFIFO(t *testing.T) {
	ctx := context.Background()
	svc := newTestSessions(newFakeRepo(), nil)

	first, err := svc.BeginSession(ctx, "DUP", t0)
	require.NoError(t, err)
	second, err := svc.BeginSession(ctx, "DUP", t0.Add(30*time.Minute))
	require.NoError(t, err)

	exit, err := svc.EndSession(ctx, "DUP", t0.Add(5*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, first.SessionID, exit.SessionID)
	assert.Equal(t, int64(60), exit.AmountDue)

	exit, err = svc.EndSession(ctx, "DUP", t0.Add(5*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, second.SessionID, exit.SessionID)
	assert.Equal(t, int64(50), exit.AmountDue)
}

func TestStoreFailureIsUnavailable(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	svc := newTestSessions(repo, NewMemoryPresence())
	repo.failWith = errDiskFull

	_, err := svc.BeginSession(ctx, "DOWN", t0)
	assert.ErrorIs(t, err, ErrStoreUnavailable)
	assert.ErrorIs(t, err, errDiskFull)

	_, err = svc.EndSession(ctx, "DOWN", t0)
	assert.ErrorIs(t, err, ErrStoreUnavailable)

	assert.ErrorIs(t, svc.Warm(ctx), ErrStoreUnavailable)
	_, err = svc.History(ctx, 10)
	assert.ErrorIs(t, err, ErrStoreUnavailable)
}

func TestPresenceTracksLifecycleAndOccupancy(t *testing.T) {
	ctx := context.Background()
	presence := NewMemoryPresence()
	svc := newTestSessions(newFakeRepo(), presence)

	_, err := svc.BeginSession(ctx, "P1", t0)
	require.NoError(t, err)
	_, err = svc.BeginSession(ctx, "P2", t0.Add(time.Hour))
	require.NoError(t, err)

	occ, err := svc.Occupancy(ctx, t0.Add(3*time.Hour))
	require.NoError(t, err)
	require.Len(t, occ.Vehicles, 2)
	assert.Equal(t, "P1", occ.Vehicles[0].LicensePlate)
	assert.Equal(t, 5*time.Hour, occ.TotalDuration)
	assert.Equal(t, int64(5), occ.TotalHours())

	_, err = svc.EndSession(ctx, "P1", t0.Add(3*time.Hour))
	require.NoError(t, err)

	occ, err = svc.Occupancy(ctx, t0.Add(3*time.Hour+30*time.Minute))
	require.NoError(t, err)
	require.Len(t, occ.Vehicles, 1)
	assert.Equal(t, "P2", occ.Vehicles[0].LicensePlate)
	assert.Equal(t, int64(2), occ.TotalHours())
}

func TestWarmRebuildsPresenceFromStore(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	seed := newTestSessions(repo, nil)
	_, err := seed.BeginSession(ctx, "OLD1", t0)
	require.NoError(t, err)
	_, err = seed.BeginSession(ctx, "OLD2", t0)
	require.NoError(t, err)
	_, err = seed.EndSession(ctx, "OLD2", t0.Add(time.Hour))
	require.NoError(t, err)

	presence := NewMemoryPresence()
	svc := newTestSessions(repo, presence)
	require.NoError(t, svc.Warm(ctx))

	listed, err := presence.List(ctx)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, "OLD1", listed[0].LicensePlate)
}

func TestOccupancyFallsBackToStore(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	svc := newTestSessions(repo, failingPresence{NewMemoryPresence()})

	_, err := svc.BeginSession(ctx, "FB1", t0)
	require.NoError(t, err)

	occ, err := svc.Occupancy(ctx, t0.Add(2*time.Hour))
	require.NoError(t, err)
	require.Len(t, occ.Vehicles, 1)
	assert.Equal(t, 2*time.Hour, occ.TotalDuration)
}

func TestSessionLookup(t *testing.T) {
	ctx := context.Background()
	svc := newTestSessions(newFakeRepo(), nil)

	entry, err := svc.BeginSession(ctx, "LOOK", t0)
	require.NoError(t, err)

	s, err := svc.Session(ctx, entry.SessionID)
	require.NoError(t, err)
	assert.Equal(t, "LOOK", s.LicensePlate)

	_, err = svc.Session(ctx, 404)
	assert.True(t, errors.Is(err, ErrSessionNotFound))
}

func TestFailedCacheWriteRebuildsOnNextOccupancy(t *testing.T) {
	ctx := context.Background()
	presence := &flakyPresence{MemoryPresence: NewMemoryPresence(), failWrites: 1}
	svc := newTestSessions(newFakeRepo(), presence)

	_, err := svc.BeginSession(ctx, "MISSED", t0)
	require.NoError(t, err)
	cached, err := presence.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, cached)

	occ, err := svc.Occupancy(ctx, t0.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, occ.Vehicles, 1)
	assert.Equal(t, "MISSED", occ.Vehicles[0].LicensePlate)

	cached, err = presence.List(ctx)
	require.NoError(t, err)
	assert.Len(t, cached, 1)

	presence.failWrites = 1
	_, err = svc.EndSession(ctx, "MISSED", t0.Add(2*time.Hour))
	require.NoError(t, err)

	occ, err = svc.Occupancy(ctx, t0.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Empty(t, occ.Vehicles)
}
