package redisstore

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/redis/go-redis/v9"

	"parkledger/backend/services/parking-service/internal/models"
	"parkledger/backend/services/parking-service/internal/service"
)

// DefaultKey is the hash holding present vehicles, one field per session id.
const DefaultKey = "parking:present"

// PresenceStore keeps the vehicles on the premises in a redis hash so that several
// gate processes share one board.
type PresenceStore struct {
	client *redis.Client
	key    string
}

// NewPresenceStore returns redis-backed presence cache. Blank key uses DefaultKey.
func NewPresenceStore(client *redis.Client, key string) *PresenceStore {
	if key == "" {
		key = DefaultKey
	}
	return &PresenceStore{client: client, key: key}
}

func field(sessionID int64) string {
	return strconv.FormatInt(sessionID, 10)
}

// Add caches a vehicle.
func (s *PresenceStore) Add(ctx context.Context, vehicle models.PresentVehicle) error {
	data, err := json.Marshal(vehicle)
	if err != nil {
		return err
	}
	return s.client.HSet(ctx, s.key, field(vehicle.SessionID), data).Err()
}

// Remove evicts a vehicle.
func (s *PresenceStore) Remove(ctx context.Context, sessionID int64) error {
	return s.client.HDel(ctx, s.key, field(sessionID)).Err()
}

// Replace swaps the whole hash atomically.
func (s *PresenceStore) Replace(ctx context.Context, vehicles []models.PresentVehicle) error {
	values := make(map[string]interface{}, len(vehicles))
	for _, v := range vehicles {
		data, err := json.Marshal(v)
		if err != nil {
			return err
		}
		values[field(v.SessionID)] = data
	}

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.key)
		if len(values) > 0 {
			pipe.HSet(ctx, s.key, values)
		}
		return nil
	})
	return err
}

// List returns cached vehicles ordered by entry time.
func (s *PresenceStore) List(ctx context.Context) ([]models.PresentVehicle, error) {
	raw, err := s.client.HGetAll(ctx, s.key).Result()
	if err != nil {
		return nil, err
	}
	return decodeVehicles(raw)
}

func decodeVehicles(raw map[string]string) ([]models.PresentVehicle, error) {
	vehicles := make([]models.PresentVehicle, 0, len(raw))
	for _, data := range raw {
		var v models.PresentVehicle
		if err := json.Unmarshal([]byte(data), &v); err != nil {
			return nil, err
		}
		vehicles = append(vehicles, v)
	}
	service.SortPresent(vehicles)
	return vehicles, nil
}

var _ service.PresenceCache = (*PresenceStore)(nil)
