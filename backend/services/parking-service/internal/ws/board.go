package ws

import (
	"context"
	"time"

	"go.uber.org/zap"

	"parkledger/backend/services/parking-service/internal/service"
)

// DefaultRefreshInterval is how often the occupancy line is refreshed.
const DefaultRefreshInterval = time.Minute

// OccupancySource supplies the board statistic.
type OccupancySource interface {
	Occupancy(ctx context.Context, now time.Time) (*service.Occupancy, error)
}

// Board pushes gate messages and the periodic occupancy line to every connected
// display. It implements service.Notifier.
type Board struct {
	hub      *Hub
	source   OccupancySource
	interval time.Duration
	now      func() time.Time
	logger   *zap.Logger
}

// NewBoard builds the board publisher.
func NewBoard(hub *Hub, source OccupancySource, interval time.Duration, logger *zap.Logger) *Board {
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}
	return &Board{hub: hub, source: source, interval: interval, now: time.Now, logger: logger}
}

func (b *Board) Inform(_ context.Context, message string) {
	b.hub.Broadcast(encode(Message{Type: TypeInform, Message: message}))
}

func (b *Board) Announce(_ context.Context, message string) {
	b.hub.Broadcast(encode(Message{Type: TypeAnnounce, Message: message}))
}

// Snapshot returns the current occupancy frame.
func (b *Board) Snapshot(ctx context.Context) ([]byte, error) {
	occ, err := b.source.Occupancy(ctx, b.now())
	if err != nil {
		return nil, err
	}
	return encode(occupancyMessage(occ)), nil
}

// Refresh broadcasts the occupancy frame once.
func (b *Board) Refresh(ctx context.Context) {
	frame, err := b.Snapshot(ctx)
	if err != nil {
		b.logger.Warn("failed to compute occupancy", zap.Error(err))
		return
	}
	b.hub.Broadcast(frame)
}

// Run refreshes every interval until ctx is done.
func (b *Board) Run(ctx context.Context) error {
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	b.Refresh(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			b.Refresh(ctx)
		}
	}
}

var _ service.Notifier = (*Board)(nil)
