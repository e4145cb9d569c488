package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisChannel is the pub/sub channel events are relayed through.
const DefaultRedisChannel = "sentinel-events"

// RedisPublisher publishes events to a Redis pub/sub channel so that a hub in
// another process can deliver them.
type RedisPublisher struct {
	client  *redis.Client
	channel string
}

// NewRedisPublisher creates a publisher on channel.
func NewRedisPublisher(client *redis.Client, channel string) *RedisPublisher {
	if channel == "" {
		channel = DefaultRedisChannel
	}
	return &RedisPublisher{client: client, channel: channel}
}

// Emit publishes the event as JSON.
func (p *RedisPublisher) Emit(ctx context.Context, event Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	if err := p.client.Publish(ctx, p.channel, body).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

// Relay subscribes to channel and forwards every event it receives to
// emitter until ctx is cancelled. Undecodable messages are logged and dropped.
func Relay(
	ctx context.Context,
	client *redis.Client,
	channel string,
	emitter EventEmitter,
	logger *slog.Logger,
) error {
	if channel == "" {
		channel = DefaultRedisChannel
	}
	log := logger.With("component", "event_relay", "channel", channel)

	pubsub := client.Subscribe(ctx, channel)
	defer func() { _ = pubsub.Close() }()

	// Wait for the subscription to be confirmed before reporting readiness.
	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", channel, err)
	}
	log.Info("event relay subscribed")

	messages := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}

			var event Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				log.Warn("dropping undecodable event", "error", err)
				continue
			}
			if err := emitter.Emit(ctx, event); err != nil {
				log.Warn("failed to relay event", "event", event.Type, "job_id", event.JobID, "error", err)
			}
		}
	}
}
