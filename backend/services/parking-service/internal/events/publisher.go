package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"parkledger/backend/services/parking-service/internal/receipt"
)

// DefaultExchange is the topic exchange receipt printers and kiosks bind to.
const DefaultExchange = "parking_topic"

// Broker is the part of the rabbit client used here.
type Broker interface {
	Publish(ctx context.Context, routingKey string, body []byte) error
}

// ReceiptEvent is the message body.
type ReceiptEvent struct {
	receipt.Receipt
	PublishedAt time.Time `json:"published_at"`
}

// ReceiptPublisher sends receipts as parking.entry / parking.exit events.
type ReceiptPublisher struct {
	broker Broker
	now    func() time.Time
}

func NewReceiptPublisher(broker Broker) *ReceiptPublisher {
	return &ReceiptPublisher{broker: broker, now: time.Now}
}

// RoutingKey maps an action to its topic.
func RoutingKey(action receipt.Action) string {
	return "parking." + strings.ToLower(string(action))
}

func (p *ReceiptPublisher) Publish(ctx context.Context, r receipt.Receipt) error {
	body, err := json.Marshal(ReceiptEvent{Receipt: r, PublishedAt: p.now().UTC()})
	if err != nil {
		return fmt.Errorf("marshal receipt event: %w", err)
	}
	return p.broker.Publish(ctx, RoutingKey(r.Action), body)
}
