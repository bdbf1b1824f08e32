package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"parkledger/backend/libs/metrics"
	"parkledger/backend/services/parking-service/internal/models"
	"parkledger/backend/services/parking-service/internal/receipt"
)

// Prompts spoken at the gate.
const (
	PromptEntryWelcome = "Welcome! Please wait while we scan your license plate."
	PromptExitScan     = "Please wait while we scan your license plate."
	PromptSlipChoice   = "Would you like a digital or manual slip?"
	PromptPayment      = "Please wait while we process your payment."
)

// PlateRecognizer reads a license plate from a photo. An empty string means nothing
// usable was found.
type PlateRecognizer interface {
	Recognize(ctx context.Context, image []byte) (string, error)
}

// ReceiptPublisher hands completed events to external receipt renderers.
type ReceiptPublisher interface {
	Publish(ctx context.Context, r receipt.Receipt) error
}

// GateInput is what the gate terminal submits: a typed plate or a photo of it.
type GateInput struct {
	Plate string
	Image []byte
}

// EntryOutcome is returned after a successful entry.
type EntryOutcome struct {
	Result  EntryResult     `json:"result"`
	Message string          `json:"message"`
	Receipt receipt.Receipt `json:"receipt"`
}

// ExitOutcome is returned after a successful exit.
type ExitOutcome struct {
	Result        ExitResult      `json:"result"`
	DurationHours int64           `json:"duration_hours"`
	Message       string          `json:"message"`
	Receipt       receipt.Receipt `json:"receipt"`
}

// DefaultPublishTimeout bounds a receipt publish once the session is committed.
const DefaultPublishTimeout = 5 * time.Second

// GateService is the single-lane boundary in front of the lifecycle engine. It runs
// one entry or exit at a time, reports every outcome through the Notifier and turns
// failures into *GateError values. Receipts are published after the lane is released.
type GateService struct {
	mu             sync.Mutex
	sessions       *SessionsService
	recognizer     PlateRecognizer
	notifier       Notifier
	publisher      ReceiptPublisher
	publishTimeout time.Duration
	issuer         *receipt.Issuer
	now            func() time.Time
	logger         *zap.Logger
}

// GateOption customises a GateService.
type GateOption func(*GateService)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) GateOption {
	return func(g *GateService) { g.now = now }
}

// WithPublisher enables receipt events.
func WithPublisher(p ReceiptPublisher) GateOption {
	return func(g *GateService) { g.publisher = p }
}

// WithPublishTimeout overrides DefaultPublishTimeout.
func WithPublishTimeout(d time.Duration) GateOption {
	return func(g *GateService) {
		if d > 0 {
			g.publishTimeout = d
		}
	}
}

// WithRecognizer enables photo input.
func WithRecognizer(r PlateRecognizer) GateOption {
	return func(g *GateService) { g.recognizer = r }
}

// NewGateService builds the gate boundary.
func NewGateService(sessions *SessionsService, notifier Notifier, issuer *receipt.Issuer, logger *zap.Logger, opts ...GateOption) *GateService {
	g := &GateService{
		sessions:       sessions,
		notifier:       notifier,
		publishTimeout: DefaultPublishTimeout,
		issuer:         issuer,
		now:            time.Now,
		logger:         logger,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Entry admits a vehicle.
func (g *GateService) Entry(ctx context.Context, in GateInput) (*EntryOutcome, error) {
	out, err := g.admit(ctx, in)
	if err != nil {
		return nil, err
	}
	g.issue(ctx, out.Receipt)
	return out, nil
}

func (g *GateService) admit(ctx context.Context, in GateInput) (*EntryOutcome, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.notifier.Announce(ctx, PromptEntryWelcome)
	plate, err := g.resolvePlate(ctx, in)
	if err != nil {
		return nil, g.fail(ctx, "entry", plate, err)
	}

	result, err := g.sessions.BeginSession(ctx, plate, g.now())
	if err != nil {
		return nil, g.fail(ctx, "entry", plate, err)
	}

	out := &EntryOutcome{
		Result:  *result,
		Message: g.issuer.EntryMessage(result.LicensePlate, result.EntryTime, result.MinimumCharge),
		Receipt: g.issuer.ForSession(models.ParkingSession{
			ID:           result.SessionID,
			LicensePlate: result.LicensePlate,
			EntryTime:    result.EntryTime,
		}),
	}
	g.notifier.Inform(ctx, out.Message)
	return out, nil
}

// Exit lets a vehicle out and charges it.
func (g *GateService) Exit(ctx context.Context, in GateInput) (*ExitOutcome, error) {
	out, err := g.release(ctx, in)
	if err != nil {
		return nil, err
	}
	g.issue(ctx, out.Receipt)
	return out, nil
}

func (g *GateService) release(ctx context.Context, in GateInput) (*ExitOutcome, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.notifier.Announce(ctx, PromptExitScan)
	plate, err := g.resolvePlate(ctx, in)
	if err != nil {
		return nil, g.fail(ctx, "exit", plate, err)
	}

	result, err := g.sessions.EndSession(ctx, plate, g.now())
	if err != nil {
		return nil, g.fail(ctx, "exit", plate, err)
	}

	amount := result.AmountDue
	exitTime := result.ExitTime
	out := &ExitOutcome{
		Result:        *result,
		DurationHours: int64(result.Duration / time.Hour),
		Message:       g.issuer.ExitMessage(result.LicensePlate, result.EntryTime, result.ExitTime, result.AmountDue),
		Receipt: g.issuer.ForSession(models.ParkingSession{
			ID:           result.SessionID,
			LicensePlate: result.LicensePlate,
			EntryTime:    result.EntryTime,
			ExitTime:     &exitTime,
			AmountDue:    &amount,
		}),
	}
	g.notifier.Inform(ctx, out.Message)
	return out, nil
}

// Payment is a placeholder until a payment provider is integrated.
func (g *GateService) Payment(ctx context.Context) error {
	g.notifier.Announce(ctx, PromptPayment)
	return g.fail(ctx, "payment", "", ErrPaymentNotImplemented)
}

// Receipt re-issues the receipt for a stored session in the requested format.
func (g *GateService) Receipt(ctx context.Context, sessionID int64, format receipt.Format) (*receipt.Document, error) {
	session, err := g.sessions.Session(ctx, sessionID)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return nil, &GateError{Message: fmt.Sprintf("No session found with id %d", sessionID), Err: err}
		}
		return nil, err
	}
	doc, err := g.issuer.Render(g.issuer.ForSession(*session), format)
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

func (g *GateService) resolvePlate(ctx context.Context, in GateInput) (string, error) {
	if plate := NormalizePlate(in.Plate); plate != "" {
		return plate, nil
	}
	if len(in.Image) == 0 || g.recognizer == nil {
		return "", ErrInvalidPlate
	}

	text, err := g.recognizer.Recognize(ctx, in.Image)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidPlate, err)
	}
	plate := NormalizePlate(text)
	if plate == "" {
		return "", ErrInvalidPlate
	}
	return plate, nil
}

func (g *GateService) issue(ctx context.Context, r receipt.Receipt) {
	g.notifier.Announce(ctx, PromptSlipChoice)
	if g.publisher == nil {
		return
	}
	// The session is already committed; a caller hanging up must not drop the event.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), g.publishTimeout)
	defer cancel()

	err := g.publisher.Publish(ctx, r)
	metrics.RecordReceiptPublish(string(r.Action), err)
	if err != nil {
		g.logger.Warn("failed to publish receipt event",
			zap.Int64("session_id", r.SessionID),
			zap.String("action", string(r.Action)),
			zap.Error(err),
		)
	}
}

func (g *GateService) fail(ctx context.Context, op, plate string, err error) error {
	msg := UserMessage(err, plate)
	g.notifier.Inform(ctx, msg)
	g.logger.Warn("gate operation rejected",
		zap.String("op", op),
		zap.String("plate", plate),
		zap.Error(err),
	)
	return &GateError{Plate: plate, Message: msg, Err: err}
}
