// Package notify broadcasts video status transitions over Redis pub/sub.
package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/vidshare/backend/internal/models"
)

// DefaultChannel carries every status transition.
const DefaultChannel = "video:status"

// Notification is the published message.
type Notification struct {
	ID     string        `json:"id"`
	Status models.Status `json:"status"`
}

// Publisher publishes transitions to a Redis channel.
type Publisher struct {
	rdb     *redis.Client
	channel string
	logger  *zap.Logger
}

// NewPublisher creates a publisher on channel (DefaultChannel when empty).
func NewPublisher(rdb *redis.Client, channel string, logger *zap.Logger) *Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if channel == "" {
		channel = DefaultChannel
	}
	return &Publisher{rdb: rdb, channel: channel, logger: logger}
}

// Publish sends {id, status} to the channel.
func (p *Publisher) Publish(ctx context.Context, id string, status models.Status) error {
	payload, err := json.Marshal(Notification{ID: id, Status: status})
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	n, err := p.rdb.Publish(ctx, p.channel, payload).Result()
	if err != nil {
		return fmt.Errorf("publish %s: %w", p.channel, err)
	}
	p.logger.Debug("status published", zap.String("video_id", id), zap.String("status", string(status)), zap.Int64("receivers", n))
	return nil
}

// Subscribe streams notifications until ctx is done. Undecodable messages are skipped.
func Subscribe(ctx context.Context, rdb *redis.Client, channel string, logger *zap.Logger) (<-chan Notification, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if channel == "" {
		channel = DefaultChannel
	}
	sub := rdb.Subscribe(ctx, channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", channel, err)
	}
	out := make(chan Notification)
	go func() {
		defer close(out)
		defer sub.Close()
		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-msgs:
				if !ok {
					return
				}
				var n Notification
				if err := json.Unmarshal([]byte(m.Payload), &n); err != nil {
					logger.Warn("undecodable notification", zap.Error(err))
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
	return out, nil
}
