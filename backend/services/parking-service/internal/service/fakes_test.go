package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"parkledger/backend/services/parking-service/internal/models"
	"parkledger/backend/services/parking-service/internal/receipt"
	"parkledger/backend/services/parking-service/internal/repository"
)

var errDiskFull = errors.New("disk I/O error")

type fakeRepo struct {
	mu       sync.Mutex
	nextID   int64
	rows     map[int64]models.ParkingSession
	failWith error
	writes   int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{rows: make(map[int64]models.ParkingSession)}
}

func (f *fakeRepo) InsertOpen(_ context.Context, plate string, entryTime time.Time) (*models.ParkingSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	f.nextID++
	f.writes++
	s := models.ParkingSession{ID: f.nextID, LicensePlate: plate, EntryTime: entryTime.Truncate(time.Microsecond)}
	f.rows[s.ID] = s
	return &s, nil
}

func (f *fakeRepo) FindOpenByPlate(_ context.Context, plate string) (*models.ParkingSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	var open []models.ParkingSession
	for _, s := range f.rows {
		if s.LicensePlate == plate && s.IsOpen() {
			open = append(open, s)
		}
	}
	if len(open) == 0 {
		return nil, repository.ErrSessionNotFound
	}
	sortSessions(open)
	s := open[0]
	return &s, nil
}

func (f *fakeRepo) Close(_ context.Context, id int64, exitTime time.Time, amountDue int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return f.failWith
	}
	s, ok := f.rows[id]
	if !ok || !s.IsOpen() {
		return repository.ErrSessionNotFound
	}
	f.writes++
	s.ExitTime = &exitTime
	s.AmountDue = &amountDue
	f.rows[id] = s
	return nil
}

func (f *fakeRepo) GetByID(_ context.Context, id int64) (*models.ParkingSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	s, ok := f.rows[id]
	if !ok {
		return nil, repository.ErrSessionNotFound
	}
	return &s, nil
}

func (f *fakeRepo) ListOpen(_ context.Context) ([]models.ParkingSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	var open []models.ParkingSession
	for _, s := range f.rows {
		if s.IsOpen() {
			open = append(open, s)
		}
	}
	sortSessions(open)
	return open, nil
}

func (f *fakeRepo) ListRecent(_ context.Context, limit int) ([]models.ParkingSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	all := make([]models.ParkingSession, 0, len(f.rows))
	for _, s := range f.rows {
		all = append(all, s)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID > all[j].ID })
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (f *fakeRepo) WallClock(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

func (f *fakeRepo) snapshot() map[int64]models.ParkingSession {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[int64]models.ParkingSession, len(f.rows))
	for k, v := range f.rows {
		out[k] = v
	}
	return out
}

func sortSessions(s []models.ParkingSession) {
	sort.Slice(s, func(i, j int) bool {
		if s[i].EntryTime.Equal(s[j].EntryTime) {
			return s[i].ID < s[j].ID
		}
		return s[i].EntryTime.Before(s[j].EntryTime)
	})
}

type failingPresence struct {
	*MemoryPresence
}

func (failingPresence) List(context.Context) ([]models.PresentVehicle, error) {
	return nil, errors.New("redis: connection refused")
}

// flakyPresence fails the next failWrites Add or Remove calls.
type flakyPresence struct {
	*MemoryPresence
	mu         sync.Mutex
	failWrites int
}

func (p *flakyPresence) fail() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failWrites > 0 {
		p.failWrites--
		return true
	}
	return false
}

func (p *flakyPresence) Add(ctx context.Context, v models.PresentVehicle) error {
	if p.fail() {
		return errors.New("redis: i/o timeout")
	}
	return p.MemoryPresence.Add(ctx, v)
}

func (p *flakyPresence) Remove(ctx context.Context, id int64) error {
	if p.fail() {
		return errors.New("redis: i/o timeout")
	}
	return p.MemoryPresence.Remove(ctx, id)
}

type fakeNotifier struct {
	mu        sync.Mutex
	informed  []string
	announced []string
}

func (n *fakeNotifier) Inform(_ context.Context, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.informed = append(n.informed, message)
}

func (n *fakeNotifier) Announce(_ context.Context, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.announced = append(n.announced, message)
}

func (n *fakeNotifier) lastInform() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.informed) == 0 {
		return ""
	}
	return n.informed[len(n.informed)-1]
}

type fakeRecognizer struct {
	text string
	err  error
}

func (r fakeRecognizer) Recognize(context.Context, []byte) (string, error) {
	return r.text, r.err
}

type fakePublisher struct {
	mu       sync.Mutex
	receipts []receipt.Receipt
	err      error
}

func (p *fakePublisher) Publish(_ context.Context, r receipt.Receipt) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.receipts = append(p.receipts, r)
	return nil
}

// stallingPublisher blocks publishes for one plate until release is closed or the
// context ends.
type stallingPublisher struct {
	plate   string
	once    sync.Once
	started chan struct{}
	release chan struct{}
}

func (p *stallingPublisher) Publish(ctx context.Context, r receipt.Receipt) error {
	if r.Plate != p.plate {
		return nil
	}
	p.once.Do(func() { close(p.started) })
	select {
	case <-p.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
