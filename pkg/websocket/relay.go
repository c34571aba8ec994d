package websocket

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"sosalert/pkg/logger"
)

// PubSub is the subset of the Redis client the relay needs.
type PubSub interface {
	Publish(ctx context.Context, channel string, message []byte) error
	Subscribe(ctx context.Context, channels ...string) *redis.PubSub
}

// RedisRelay fans events out through a Redis channel so every server
// instance delivers them to its own connections.
type RedisRelay struct {
	hub     *Hub
	bus     PubSub
	channel string
	log     *logger.Logger
}

func NewRedisRelay(hub *Hub, bus PubSub, channel string, log *logger.Logger) *RedisRelay {
	if log == nil {
		log = logger.NewNop()
	}
	return &RedisRelay{hub: hub, bus: bus, channel: channel, log: log}
}

func (r *RedisRelay) Publish(ctx context.Context, room, event string, data interface{}) error {
	env, err := r.hub.newEnvelope(room, event, data)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(env)
	if err != nil {
		return err
	}
	if err := r.bus.Publish(ctx, r.channel, raw); err != nil {
		return fmt.Errorf("failed to publish to relay: %w", err)
	}
	return nil
}

// Run forwards relay messages to the local hub until ctx is cancelled.
func (r *RedisRelay) Run(ctx context.Context) error {
	sub := r.bus.Subscribe(ctx, r.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to relay: %w", err)
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			r.forward(ctx, []byte(msg.Payload))
		}
	}
}

func (r *RedisRelay) forward(ctx context.Context, raw []byte) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		r.log.WithError(err).Warn("Dropping malformed relay message")
		return
	}
	if err := r.hub.enqueue(ctx, env); err != nil {
		r.log.WithError(err).Warn("Failed to deliver relay message")
	}
}
