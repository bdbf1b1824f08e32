package service

import (
	"context"

	"go.uber.org/zap"
)

// Notifier reaches the driver at the gate. Inform shows a message, Announce speaks one.
type Notifier interface {
	Inform(ctx context.Context, message string)
	Announce(ctx context.Context, message string)
}

// LogNotifier records gate messages in the service log.
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Inform(_ context.Context, message string) {
	n.logger.Info("gate message", zap.String("message", message))
}

func (n *LogNotifier) Announce(_ context.Context, message string) {
	n.logger.Info("gate announcement", zap.String("message", message))
}

// MultiNotifier fans messages out to every notifier.
type MultiNotifier []Notifier

func (m MultiNotifier) Inform(ctx context.Context, message string) {
	for _, n := range m {
		n.Inform(ctx, message)
	}
}

func (m MultiNotifier) Announce(ctx context.Context, message string) {
	for _, n := range m {
		n.Announce(ctx, message)
	}
}
