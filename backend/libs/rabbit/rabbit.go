package rabbit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const (
	heartbeat        = 10 * time.Second
	dialTimeout      = 5 * time.Second
	reconnectRetries = 5
)

// ErrClosed is returned when publishing on a client that was closed.
var ErrClosed = errors.New("rabbit: client closed")

// Client owns one AMQP connection and channel with a declared topic exchange.
type Client struct {
	mu       sync.Mutex
	conn     *amqp.Connection
	channel  *amqp.Channel
	dsn      string
	exchange string
	closed   bool
	logger   *zap.Logger
}

// New dials the broker and declares exchange as a durable topic exchange.
func New(dsn, exchange string, logger *zap.Logger) (*Client, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("rabbit: dsn is empty")
	}
	if strings.TrimSpace(exchange) == "" {
		return nil, errors.New("rabbit: exchange is empty")
	}

	c := &Client{dsn: dsn, exchange: exchange, logger: logger}
	if err := c.connect(context.Background()); err != nil {
		return nil, err
	}
	logger.Info("connected to rabbitmq", zap.String("exchange", exchange))
	return c, nil
}

// connect dials with a deadline covering TCP connect and the AMQP handshake: the
// shorter of dialTimeout and whatever is left of ctx.
func (c *Client) connect(ctx context.Context) error {
	timeout := dialTimeout
	if deadline, ok := ctx.Deadline(); ok {
		left := time.Until(deadline)
		if left <= 0 {
			return ctx.Err()
		}
		if left < timeout {
			timeout = left
		}
	}

	conn, err := amqp.DialConfig(c.dsn, amqp.Config{
		Heartbeat: heartbeat,
		Dial:      amqp.DefaultDial(timeout),
	})
	if err != nil {
		return fmt.Errorf("rabbit: dial: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("rabbit: open channel: %w", err)
	}

	if err := ch.ExchangeDeclare(c.exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return fmt.Errorf("rabbit: declare exchange %s: %w", c.exchange, err)
	}

	c.conn = conn
	c.channel = ch
	return nil
}

func (c *Client) ensureConnection(ctx context.Context) error {
	if c.conn != nil && !c.conn.IsClosed() && c.channel != nil && !c.channel.IsClosed() {
		return nil
	}

	c.logger.Warn("rabbit connection closed, reconnecting")
	var err error
	for i := 0; i < reconnectRetries; i++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err = c.connect(ctx); err == nil {
			c.logger.Info("rabbit reconnected")
			return nil
		}
		wait := time.Duration(i+1) * time.Second
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
	return err
}

// Publish sends a persistent JSON message with the given routing key.
func (c *Client) Publish(ctx context.Context, routingKey string, body []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	if err := c.ensureConnection(ctx); err != nil {
		return err
	}

	return c.channel.PublishWithContext(ctx, c.exchange, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Body:         body,
	})
}

// Close shuts down channel and connection. It is safe to call more than once.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	if c.channel != nil {
		if err := c.channel.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
			c.logger.Warn("failed to close rabbit channel", zap.Error(err))
		}
	}
	if c.conn != nil {
		if err := c.conn.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
			return fmt.Errorf("rabbit: close connection: %w", err)
		}
	}
	return nil
}
