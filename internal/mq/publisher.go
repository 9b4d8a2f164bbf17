// Package mq publishes activity events to RabbitMQ.
package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"showroom/internal/activity"
)

// Channel is the subset of *amqp.Channel used for publishing.
type Channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Publisher publishes JSON messages to a topic exchange.
type Publisher struct {
	conn     *amqp.Connection
	mu       sync.Mutex
	ch       Channel
	exchange string
	logger   *slog.Logger
}

// NewPublisher dials url and declares exchange as a durable topic exchange.
func NewPublisher(url, exchange string, logger *slog.Logger) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	p := NewPublisherWithChannel(ch, exchange, logger)
	p.conn = conn
	return p, nil
}

// NewPublisherWithChannel wraps an already open channel.
func NewPublisherWithChannel(ch Channel, exchange string, logger *slog.Logger) *Publisher {
	return &Publisher{ch: ch, exchange: exchange, logger: logger}
}

// PublishJSON marshals v and publishes it with routing key key.
func (p *Publisher) PublishJSON(ctx context.Context, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	// amqp channels are not safe for concurrent publishing.
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ch.PublishWithContext(ctx, p.exchange, key, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         b,
	})
}

// Record publishes e with routing key "activity.<type>". Failures are logged.
func (p *Publisher) Record(ctx context.Context, e activity.Event) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := p.PublishJSON(ctx, RoutingKey(e.Type), e); err != nil {
		p.logger.Warn("failed to publish activity", "type", e.Type, "error", err)
	}
}

// RoutingKey returns the routing key for an activity type.
func RoutingKey(t activity.Type) string {
	return "activity." + string(t)
}

// Close closes the channel and the connection.
func (p *Publisher) Close() error {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
