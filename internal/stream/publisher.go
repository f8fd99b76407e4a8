package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ticketblitz/ticketblitz-backend/pkg/logger"
	"github.com/ticketblitz/ticketblitz-backend/pkg/types"
)

const stockCacheTTL = 24 * time.Hour

type redisPublisher interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Publish(ctx context.Context, channel string, payload any) error
	StockKey(eventID, tierID string) string
	StockChannel(eventID string) string
}

// Publisher pushes committed deltas to Redis: the cache key so availability
// reads see the new count, and the pub/sub channel so every instance's relay
// can fan out to its subscribers.
type Publisher struct {
	redis redisPublisher
	logg  *logger.Logger
}

// NewPublisher builds the dispatcher sink.
func NewPublisher(redis redisPublisher, logg *logger.Logger) (*Publisher, error) {
	if redis == nil {
		return nil, fmt.Errorf("redis client required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Publisher{redis: redis, logg: logg}, nil
}

// PublishDelta writes the cache key and broadcasts the delta. An error leaves
// the outbox row unpublished so the dispatcher retries.
func (p *Publisher) PublishDelta(ctx context.Context, delta types.StockDelta) error {
	payload, err := json.Marshal(delta)
	if err != nil {
		return fmt.Errorf("encode stock delta: %w", err)
	}

	key := p.redis.StockKey(delta.EventID.String(), delta.TierID.String())
	if err := p.redis.Set(ctx, key, delta.Remaining, stockCacheTTL); err != nil {
		return fmt.Errorf("cache stock count: %w", err)
	}

	channel := p.redis.StockChannel(delta.EventID.String())
	if err := p.redis.Publish(ctx, channel, payload); err != nil {
		return fmt.Errorf("publish stock delta: %w", err)
	}
	return nil
}
