// Package events carries per-identity session changes between server
// instances over Redis pub/sub.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"showroom/internal/cache"
	"showroom/internal/session"
)

const channelPrefix = "session:events:"

// Notification tells an identity's clients that their session changed.
type Notification struct {
	Kind       session.ChangeKind `json:"kind"`
	IdentityID string             `json:"identity_id"`
	OccurredAt time.Time          `json:"occurred_at"`
}

// Publisher sends notifications.
type Publisher interface {
	Publish(ctx context.Context, n Notification) error
}

// Broker publishes and subscribes through the cache client.
type Broker struct {
	cache  *cache.Client
	logger *slog.Logger
}

// NewBroker creates a broker.
func NewBroker(c *cache.Client, logger *slog.Logger) *Broker {
	return &Broker{cache: c, logger: logger}
}

// Channel returns the pub/sub channel of an identity.
func Channel(identityID string) string {
	return channelPrefix + identityID
}

// Publish sends n to the identity's channel. Without redis it does nothing.
func (b *Broker) Publish(ctx context.Context, n Notification) error {
	if n.OccurredAt.IsZero() {
		n.OccurredAt = time.Now().UTC()
	}
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	return b.cache.Publish(ctx, Channel(n.IdentityID), payload)
}

// Subscribe streams notifications for identityID until ctx is done or the
// returned cancel function is called. The channel is closed at the end.
func (b *Broker) Subscribe(ctx context.Context, identityID string) (<-chan Notification, func(), error) {
	sub, err := b.cache.Subscribe(ctx, Channel(identityID))
	if err != nil {
		return nil, nil, fmt.Errorf("subscribe %s: %w", identityID, err)
	}

	ctx, cancel := context.WithCancel(ctx)
	out := make(chan Notification)
	go func() {
		defer close(out)
		defer sub.Close()
		messages := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-messages:
				if !ok {
					return
				}
				n, err := Decode([]byte(msg.Payload))
				if err != nil {
					b.logger.Warn("dropping malformed session event", "channel", msg.Channel, "error", err)
					continue
				}
				select {
				case out <- n:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, cancel, nil
}

// Decode parses a published notification.
func Decode(payload []byte) (Notification, error) {
	var n Notification
	if err := json.Unmarshal(payload, &n); err != nil {
		return Notification{}, err
	}
	if n.Kind == "" {
		return Notification{}, fmt.Errorf("notification without kind")
	}
	return n, nil
}
