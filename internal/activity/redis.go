package activity

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DefaultChannel is the Redis channel worker processes publish on
const DefaultChannel = "recruitops:activity"

// RedisPublisher forwards events to a Redis channel so a separate API
// process can relay them to its feed.
type RedisPublisher struct {
	client  *redis.Client
	channel string
	logger  *zap.Logger
}

// NewRedisPublisher creates a publisher on channel
func NewRedisPublisher(client *redis.Client, channel string, logger *zap.Logger) *RedisPublisher {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisPublisher{client: client, channel: channel, logger: logger}
}

// Publish sends e in the background. Failures are logged, never returned.
func (p *RedisPublisher) Publish(e Event) {
	data, err := json.Marshal(e)
	if err != nil {
		p.logger.Error("failed to encode activity event", zap.Error(err))
		return
	}
	go func() {
		if err := p.client.Publish(context.Background(), p.channel, data).Err(); err != nil {
			p.logger.Warn("failed to publish activity event", zap.String("type", e.Type), zap.Error(err))
		}
	}()
}

// Relay subscribes to channel and hands every decoded event to dst until ctx
// is cancelled.
func Relay(ctx context.Context, client *redis.Client, channel string, dst Publisher, logger *zap.Logger) error {
	if channel == "" {
		channel = DefaultChannel
	}
	sub := client.Subscribe(ctx, channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return err
	}

	msgs := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			var e Event
			if err := json.Unmarshal([]byte(msg.Payload), &e); err != nil {
				logger.Warn("dropping malformed activity event", zap.Error(err))
				continue
			}
			dst.Publish(e)
		}
	}
}

// Multi publishes to every non-nil publisher
func Multi(pubs ...Publisher) Publisher {
	var live []Publisher
	for _, p := range pubs {
		if p != nil {
			live = append(live, p)
		}
	}
	return PublisherFunc(func(e Event) {
		for _, p := range live {
			p.Publish(e)
		}
	})
}
