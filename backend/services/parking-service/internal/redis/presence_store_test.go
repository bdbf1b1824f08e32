package redisstore

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parkledger/backend/services/parking-service/internal/models"
)

func TestDecodeVehiclesSorts(t *testing.T) {
	raw := map[string]string{
		"2": `{"session_id":2,"license_plate":"B","entry_time":"2024-03-01T10:00:00Z"}`,
		"1": `{"session_id":1,"license_plate":"A","entry_time":"2024-03-01T09:00:00Z"}`,
	}
	vehicles, err := decodeVehicles(raw)
	require.NoError(t, err)
	require.Len(t, vehicles, 2)
	assert.Equal(t, "A", vehicles[0].LicensePlate)
	assert.Equal(t, "B", vehicles[1].LicensePlate)

	_, err = decodeVehicles(map[string]string{"3": "{"})
	assert.Error(t, err)
}

// Needs a disposable redis, e.g. PARKING_TEST_REDIS_ADDR=localhost:6379.
func TestPresenceStoreAgainstRedis(t *testing.T) {
	addr := os.Getenv("PARKING_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("PARKING_TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()

	key := "parking:present:test:" + time.Now().Format("150405.000000")
	store := NewPresenceStore(client, key)
	defer client.Del(ctx, key)

	entry := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, store.Add(ctx, models.PresentVehicle{SessionID: 1, LicensePlate: "A", EntryTime: entry}))
	require.NoError(t, store.Add(ctx, models.PresentVehicle{SessionID: 2, LicensePlate: "B", EntryTime: entry.Add(time.Hour)}))
	require.NoError(t, store.Remove(ctx, 1))

	listed, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, "B", listed[0].LicensePlate)

	require.NoError(t, store.Replace(ctx, nil))
	listed, err = store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, listed)
}
