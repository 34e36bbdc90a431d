package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DefaultChannel carries notifications between API instances.
const DefaultChannel = "complaints:notifications"

// RedisBridge publishes notifications to a Redis channel and relays the
// channel back into a local Notifier, so every instance's WebSocket
// subscribers see every notification exactly once per instance.
type RedisBridge struct {
	Redis   *redis.Client
	Channel string
	logger  *zap.Logger
}

func NewRedisBridge(client *redis.Client, channel string, logger *zap.Logger) *RedisBridge {
	if channel == "" {
		channel = DefaultChannel
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisBridge{Redis: client, Channel: channel, logger: logger}
}

func (b *RedisBridge) Notify(ctx context.Context, n Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	if err := b.Redis.Publish(ctx, b.Channel, payload).Err(); err != nil {
		return fmt.Errorf("publish to %s: %w", b.Channel, err)
	}
	return nil
}

// Listen subscribes to the channel and forwards every decoded message to
// local until ctx is cancelled.
func (b *RedisBridge) Listen(ctx context.Context, local Notifier) error {
	pubsub := b.Redis.Subscribe(ctx, b.Channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe to %s: %w", b.Channel, err)
	}
	b.logger.Info("listening for notifications", zap.String("channel", b.Channel))

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			n, err := decodeNotification(msg.Payload)
			if err != nil {
				b.logger.Warn("skipping undecodable notification", zap.Error(err))
				continue
			}
			if err := local.Notify(ctx, n); err != nil {
				b.logger.Warn("local delivery failed",
					zap.Int64("complaint_id", n.ComplaintID), zap.Error(err))
			}
		}
	}
}

func decodeNotification(payload string) (Notification, error) {
	var n Notification
	if err := json.Unmarshal([]byte(payload), &n); err != nil {
		return Notification{}, fmt.Errorf("decode notification: %w", err)
	}
	if n.Kind == "" || n.ComplaintID == 0 {
		return Notification{}, fmt.Errorf("notification without kind or complaint id")
	}
	return n, nil
}
