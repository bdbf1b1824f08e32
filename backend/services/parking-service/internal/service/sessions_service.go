package service

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"parkledger/backend/libs/metrics"
	"parkledger/backend/services/parking-service/internal/models"
	"parkledger/backend/services/parking-service/internal/repository"
)

// SessionRepository is the record store contract used by the engine.
type SessionRepository interface {
	InsertOpen(ctx context.Context, plate string, entryTime time.Time) (*models.ParkingSession, error)
	FindOpenByPlate(ctx context.Context, plate string) (*models.ParkingSession, error)
	Close(ctx context.Context, id int64, exitTime time.Time, amountDue int64) error
	GetByID(ctx context.Context, id int64) (*models.ParkingSession, error)
	ListOpen(ctx context.Context) ([]models.ParkingSession, error)
	ListRecent(ctx context.Context, limit int) ([]models.ParkingSession, error)
	// WallClock maps an instant onto the store's zone-less clock.
	WallClock(t time.Time) time.Time
}

// EntryResult describes a freshly opened session. MinimumCharge is an estimate for
// display only; the real amount is known at exit.
type EntryResult struct {
	SessionID     int64     `json:"session_id"`
	LicensePlate  string    `json:"license_plate"`
	EntryTime     time.Time `json:"entry_time"`
	MinimumCharge int64     `json:"estimated_minimum_charge"`
}

// ExitResult describes a closed session.
type ExitResult struct {
	SessionID    int64         `json:"session_id"`
	LicensePlate string        `json:"license_plate"`
	EntryTime    time.Time     `json:"entry_time"`
	ExitTime     time.Time     `json:"exit_time"`
	Duration     time.Duration `json:"-"`
	AmountDue    int64         `json:"amount_due"`
}

// Occupancy is the display statistic over every vehicle still parked.
type Occupancy struct {
	Vehicles      []models.PresentVehicle `json:"vehicles"`
	TotalDuration time.Duration           `json:"-"`
}

// TotalHours is the aggregate parked time truncated to whole hours.
func (o Occupancy) TotalHours() int64 {
	return int64(o.TotalDuration / time.Hour)
}

// SessionsService opens and closes parking sessions against the record store and
// keeps the presence cache in step with it. A failed cache write marks the cache
// stale; the next Occupancy rebuilds it from the store.
type SessionsService struct {
	repo     SessionRepository
	presence PresenceCache
	stale    atomic.Bool
	tariff   Tariff
	logger   *zap.Logger
}

// NewSessionsService builds the lifecycle engine. presence may be nil.
func NewSessionsService(repo SessionRepository, presence PresenceCache, tariff Tariff, logger *zap.Logger) *SessionsService {
	return &SessionsService{
		repo:     repo,
		presence: presence,
		tariff:   tariff,
		logger:   logger,
	}
}

// Tariff returns the active price list.
func (s *SessionsService) Tariff() Tariff {
	return s.tariff
}

// NormalizePlate trims recognizer output; an empty result is not a plate.
func NormalizePlate(plate string) string {
	return strings.Join(strings.Fields(plate), " ")
}

// BeginSession opens a session for plate at now.
func (s *SessionsService) BeginSession(ctx context.Context, plate string, now time.Time) (result *EntryResult, err error) {
	defer func() { metrics.RecordSession("entry", err) }()

	plate = NormalizePlate(plate)
	if plate == "" {
		return nil, ErrInvalidPlate
	}

	session, err := s.repo.InsertOpen(ctx, plate, now)
	if err != nil {
		return nil, storeError("begin session", err)
	}

	if s.presence != nil {
		cacheErr := s.presence.Add(ctx, models.PresentVehicle{
			SessionID:    session.ID,
			LicensePlate: session.LicensePlate,
			EntryTime:    session.EntryTime,
		})
		if cacheErr != nil {
			s.stale.Store(true)
			s.logger.Warn("failed to cache present vehicle", zap.Int64("session_id", session.ID), zap.Error(cacheErr))
		}
	}
	metrics.VehiclesPresent.Inc()

	s.logger.Info("parking session opened",
		zap.Int64("session_id", session.ID),
		zap.String("plate", session.LicensePlate),
		zap.Time("entry_time", session.EntryTime),
	)

	return &EntryResult{
		SessionID:     session.ID,
		LicensePlate:  session.LicensePlate,
		EntryTime:     session.EntryTime,
		MinimumCharge: s.tariff.MinimumCharge(),
	}, nil
}

// EndSession closes the oldest open session for plate at now and charges it.
func (s *SessionsService) EndSession(ctx context.Context, plate string, now time.Time) (result *ExitResult, err error) {
	defer func() { metrics.RecordSession("exit", err) }()

	plate = NormalizePlate(plate)
	if plate == "" {
		return nil, ErrInvalidPlate
	}

	session, err := s.repo.FindOpenByPlate(ctx, plate)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, storeError("end session", err)
	}

	exitTime := now.Truncate(time.Microsecond)
	if exitTime.Before(session.EntryTime) {
		return nil, &ClockSkewError{Plate: plate, EntryTime: session.EntryTime, ExitTime: exitTime}
	}

	// Stored times carry no zone, so the stay is measured on the store's wall clock.
	// Inside a repeated DST hour that reading can run backwards; it bills as zero.
	duration := s.repo.WallClock(exitTime).Sub(s.repo.WallClock(session.EntryTime))
	if duration < 0 {
		duration = 0
	}
	amount, err := s.tariff.Fee(duration)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Close(ctx, session.ID, exitTime, amount); err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, storeError("end session", err)
	}

	if s.presence != nil {
		if cacheErr := s.presence.Remove(ctx, session.ID); cacheErr != nil {
			s.stale.Store(true)
			s.logger.Warn("failed to evict present vehicle", zap.Int64("session_id", session.ID), zap.Error(cacheErr))
		}
	}
	metrics.VehiclesPresent.Dec()
	metrics.AmountChargedTotal.Add(float64(amount))

	s.logger.Info("parking session closed",
		zap.Int64("session_id", session.ID),
		zap.String("plate", plate),
		zap.Duration("duration", duration),
		zap.Int64("amount_due", amount),
	)

	return &ExitResult{
		SessionID:    session.ID,
		LicensePlate: session.LicensePlate,
		EntryTime:    session.EntryTime,
		ExitTime:     exitTime,
		Duration:     duration,
		AmountDue:    amount,
	}, nil
}

// Warm rebuilds the presence cache from the open sessions in the store.
func (s *SessionsService) Warm(ctx context.Context) error {
	open, err := s.repo.ListOpen(ctx)
	if err != nil {
		return storeError("warm presence", err)
	}
	vehicles := presentFromSessions(open)
	metrics.VehiclesPresent.Set(float64(len(vehicles)))

	if s.presence == nil {
		return nil
	}
	if err := s.presence.Replace(ctx, vehicles); err != nil {
		return err
	}
	s.logger.Info("presence cache rebuilt", zap.Int("vehicles", len(vehicles)))
	return nil
}

// Occupancy reports present vehicles and their summed parked time at now. The
// store is used when the cache is missing or failing.
func (s *SessionsService) Occupancy(ctx context.Context, now time.Time) (*Occupancy, error) {
	var (
		vehicles []models.PresentVehicle
		err      error
	)
	useStore := s.presence == nil
	if !useStore && s.stale.CompareAndSwap(true, false) {
		if warmErr := s.Warm(ctx); warmErr != nil {
			s.stale.Store(true)
			s.logger.Warn("failed to rebuild stale presence cache, reading store", zap.Error(warmErr))
			useStore = true
		}
	}
	if !useStore {
		vehicles, err = s.presence.List(ctx)
		if err != nil {
			s.logger.Warn("presence cache unavailable, reading store", zap.Error(err))
			useStore = true
		}
	}
	if useStore {
		open, storeErr := s.repo.ListOpen(ctx)
		if storeErr != nil {
			return nil, storeError("occupancy", storeErr)
		}
		vehicles = presentFromSessions(open)
	}

	occ := &Occupancy{Vehicles: vehicles}
	for _, v := range vehicles {
		if parked := now.Sub(v.EntryTime); parked > 0 {
			occ.TotalDuration += parked
		}
	}
	return occ, nil
}

// Session returns one stored session.
func (s *SessionsService) Session(ctx context.Context, id int64) (*models.ParkingSession, error) {
	session, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, storeError("get session", err)
	}
	return session, nil
}

// History returns the latest sessions, newest first.
func (s *SessionsService) History(ctx context.Context, limit int) ([]models.ParkingSession, error) {
	sessions, err := s.repo.ListRecent(ctx, limit)
	if err != nil {
		return nil, storeError("history", err)
	}
	return sessions, nil
}

func presentFromSessions(sessions []models.ParkingSession) []models.PresentVehicle {
	vehicles := make([]models.PresentVehicle, 0, len(sessions))
	for _, s := range sessions {
		vehicles = append(vehicles, models.PresentVehicle{
			SessionID:    s.ID,
			LicensePlate: s.LicensePlate,
			EntryTime:    s.EntryTime,
		})
	}
	return vehicles
}
