package service

import (
	"context"
	"path/filepath"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	libdb "parkledger/backend/libs/db"
	"parkledger/backend/services/parking-service/internal/repository"
)

func newStoreSessions(t *testing.T, loc *time.Location) *SessionsService {
	t.Helper()
	conn, err := libdb.Open(libdb.DriverSQLite, filepath.Join(t.TempDir(), "parking.db"))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	repo := repository.NewSessionRepository(conn, libdb.DriverSQLite, loc)
	require.NoError(t, repo.Migrate(context.Background()))
	return NewSessionsService(repo, NewMemoryPresence(), DefaultTariff(), zap.NewNop())
}

// 2024-11-03 01:00-02:00 happens twice in New York.
func TestFeeAcrossRepeatedHourUsesStoredClock(t *testing.T) {
	ctx := context.Background()
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	svc := newStoreSessions(t, ny)

	entry := time.Date(2024, 11, 3, 6, 50, 0, 0, time.UTC) // 01:50 EST, second pass
	_, err = svc.BeginSession(ctx, "NY1", entry)
	require.NoError(t, err)

	exit, err := svc.EndSession(ctx, "NY1", entry.Add(3*time.Hour+5*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 3*time.Hour+5*time.Minute, exit.Duration)
	assert.Equal(t, int64(40), exit.AmountDue)
}

func TestExitInsideRepeatedHourIsNotSkew(t *testing.T) {
	ctx := context.Background()
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	svc := newStoreSessions(t, ny)

	entry := time.Date(2024, 11, 3, 5, 50, 0, 0, time.UTC) // 01:50 EDT
	_, err = svc.BeginSession(ctx, "NY2", entry)
	require.NoError(t, err)

	// 01:10 EST reads earlier on the wall clock than the entry.
	exit, err := svc.EndSession(ctx, "NY2", entry.Add(20*time.Minute))
	require.NoError(t, err)
	assert.Zero(t, exit.Duration)
	assert.Equal(t, int64(40), exit.AmountDue)
}
