package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/littleexplorer/explorer/internal/logger"
)

// Envelope is the wire form of an event mirrored through Redis.
type Envelope struct {
	Origin  string          `json:"origin"`
	Name    string          `json:"name"`
	Payload json.RawMessage `json:"payload"`
	SentAt  time.Time       `json:"sent_at"`
}

// Decode turns the envelope back into a typed event.
func (e Envelope) Decode() (Event, error) {
	switch e.Name {
	case GameWon{}.EventName():
		return decodeAs[GameWon](e)
	case StarsEarned{}.EventName():
		return decodeAs[StarsEarned](e)
	case WordsDiscovered{}.EventName():
		return decodeAs[WordsDiscovered](e)
	case PronunciationMatched{}.EventName():
		return decodeAs[PronunciationMatched](e)
	case ItemPurchased{}.EventName():
		return decodeAs[ItemPurchased](e)
	case StickerUnlocked{}.EventName():
		return decodeAs[StickerUnlocked](e)
	}
	return nil, fmt.Errorf("unknown event %q", e.Name)
}

func decodeAs[T Event](e Envelope) (Event, error) {
	var v T
	if err := json.Unmarshal(e.Payload, &v); err != nil {
		return nil, fmt.Errorf("decode %s: %w", e.Name, err)
	}
	return v, nil
}

// RedisBridge mirrors local bus events to a Redis channel so other
// front-ends on the same account can show celebrations.
type RedisBridge struct {
	log     *logger.Logger
	rdb     *redis.Client
	channel string
	origin  string
}

// NewRedisBridge connects to addr and verifies the connection
func NewRedisBridge(ctx context.Context, addr, channel string, log *logger.Logger) (*RedisBridge, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}
	channel = strings.TrimSpace(channel)
	if channel == "" {
		channel = "explorer-events"
	}
	if log == nil {
		log = logger.NewNop()
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &RedisBridge{
		log:     log.With("service", "RedisBridge"),
		rdb:     rdb,
		channel: channel,
		origin:  uuid.NewString(),
	}, nil
}

// Publish sends e to the channel
func (b *RedisBridge) Publish(ctx context.Context, e Event) error {
	env, err := NewEnvelope(b.origin, e)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, b.channel, raw).Err()
}

// Mirror subscribes to bus and forwards every event until the returned
// function is called.
func (b *RedisBridge) Mirror(bus *Bus) func() {
	return bus.Subscribe(func(ctx context.Context, e Event) {
		pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		if err := b.Publish(pubCtx, e); err != nil {
			b.log.Warn("failed to mirror event", "event", e.EventName(), "error", err)
		}
	})
}

// StartForwarder delivers envelopes published by other origins to onMsg
// until ctx is cancelled.
func (b *RedisBridge) StartForwarder(ctx context.Context, onMsg func(Envelope)) error {
	sub := b.rdb.Subscribe(ctx, b.channel)

	// ensures subscription actually started
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("redis subscribe: %w", err)
	}

	go func() {
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				_ = sub.Close()
				return
			case m, ok := <-ch:
				if !ok || m == nil {
					return
				}
				var env Envelope
				if err := json.Unmarshal([]byte(m.Payload), &env); err != nil {
					b.log.Warn("bad redis event payload", "error", err)
					continue
				}
				if env.Origin == b.origin {
					continue
				}
				onMsg(env)
			}
		}
	}()

	return nil
}

// Close closes the Redis connection
func (b *RedisBridge) Close() error {
	if b == nil || b.rdb == nil {
		return nil
	}
	return b.rdb.Close()
}

// NewEnvelope wraps e for the wire
func NewEnvelope(origin string, e Event) (Envelope, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return Envelope{}, fmt.Errorf("encode %s: %w", e.EventName(), err)
	}
	return Envelope{
		Origin:  origin,
		Name:    e.EventName(),
		Payload: payload,
		SentAt:  time.Now().UTC(),
	}, nil
}
