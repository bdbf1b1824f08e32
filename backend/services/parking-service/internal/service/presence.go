package service

import (
	"context"
	"sort"
	"sync"

	"parkledger/backend/services/parking-service/internal/models"
)

// PresenceCache holds the vehicles currently on the premises. It is rebuilt from the
// record store and never consulted for billing.
type PresenceCache interface {
	Add(ctx context.Context, vehicle models.PresentVehicle) error
	Remove(ctx context.Context, sessionID int64) error
	Replace(ctx context.Context, vehicles []models.PresentVehicle) error
	List(ctx context.Context) ([]models.PresentVehicle, error)
}

// MemoryPresence is the in-process PresenceCache.
type MemoryPresence struct {
	mu       sync.RWMutex
	vehicles map[int64]models.PresentVehicle
}

// NewMemoryPresence returns an empty cache.
func NewMemoryPresence() *MemoryPresence {
	return &MemoryPresence{vehicles: make(map[int64]models.PresentVehicle)}
}

func (m *MemoryPresence) Add(_ context.Context, vehicle models.PresentVehicle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vehicles[vehicle.SessionID] = vehicle
	return nil
}

func (m *MemoryPresence) Remove(_ context.Context, sessionID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.vehicles, sessionID)
	return nil
}

func (m *MemoryPresence) Replace(_ context.Context, vehicles []models.PresentVehicle) error {
	next := make(map[int64]models.PresentVehicle, len(vehicles))
	for _, v := range vehicles {
		next[v.SessionID] = v
	}
	m.mu.Lock()
	m.vehicles = next
	m.mu.Unlock()
	return nil
}

// List returns vehicles ordered by entry time.
func (m *MemoryPresence) List(_ context.Context) ([]models.PresentVehicle, error) {
	m.mu.RLock()
	out := make([]models.PresentVehicle, 0, len(m.vehicles))
	for _, v := range m.vehicles {
		out = append(out, v)
	}
	m.mu.RUnlock()

	SortPresent(out)
	return out, nil
}

// SortPresent orders vehicles by entry time, then session id.
func SortPresent(vehicles []models.PresentVehicle) {
	sort.Slice(vehicles, func(i, j int) bool {
		if vehicles[i].EntryTime.Equal(vehicles[j].EntryTime) {
			return vehicles[i].SessionID < vehicles[j].SessionID
		}
		return vehicles[i].EntryTime.Before(vehicles[j].EntryTime)
	})
}
