package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/redis/go-redis/v9"
)

// EventsChannel is the Redis channel every instance publishes to.
const EventsChannel = "party-events"

// Relay carries envelopes to every hub instance.
type Relay interface {
	Publish(ctx context.Context, env Envelope) error
	// Subscribe blocks, handing each envelope to fn, until ctx is done.
	Subscribe(ctx context.Context, fn func(Envelope)) error
}

// LocalRelay is the single-instance relay.
type LocalRelay struct {
	ch chan Envelope
}

func NewLocalRelay() *LocalRelay {
	return &LocalRelay{ch: make(chan Envelope, 256)}
}

func (l *LocalRelay) Publish(ctx context.Context, env Envelope) error {
	select {
	case l.ch <- env:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *LocalRelay) Subscribe(ctx context.Context, fn func(Envelope)) error {
	for {
		select {
		case env := <-l.ch:
			fn(env)
		case <-ctx.Done():
			return nil
		}
	}
}

// RedisRelay fans envelopes out to every instance over Redis pub/sub.
type RedisRelay struct {
	redis   *redis.Client
	channel string
}

func NewRedisRelay(client *redis.Client) *RedisRelay {
	return &RedisRelay{redis: client, channel: EventsChannel}
}

func (r *RedisRelay) Publish(ctx context.Context, env Envelope) error {
	payload, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	return r.redis.Publish(ctx, r.channel, payload).Err()
}

func (r *RedisRelay) Subscribe(ctx context.Context, fn func(Envelope)) error {
	pubsub := r.redis.Subscribe(ctx, r.channel)
	defer pubsub.Close()

	// Wait for the subscription to be confirmed before reading.
	if _, err := pubsub.Receive(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("subscribe %s: %w", r.channel, err)
	}

	ch := pubsub.Channel()
	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var env Envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				log.Printf("❌ Redis relay: bad envelope: %v", err)
				continue
			}
			fn(env)
		case <-ctx.Done():
			return nil
		}
	}
}
