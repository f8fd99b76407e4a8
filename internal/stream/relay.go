package stream

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/ticketblitz/ticketblitz-backend/pkg/logger"
	"github.com/ticketblitz/ticketblitz-backend/pkg/types"
)

type deltaSource interface {
	PSubscribe(ctx context.Context, patterns ...string) (*redis.PubSub, error)
	StockChannelPattern() string
}

// Relay bridges the Redis stock channels into the in-process hub. Every API
// instance runs one, so subscribers see deltas no matter which instance
// committed the purchase.
type Relay struct {
	source deltaSource
	hub    *Hub
	logg   *logger.Logger
}

// NewRelay builds the Redis-to-hub bridge.
func NewRelay(source deltaSource, hub *Hub, logg *logger.Logger) (*Relay, error) {
	if source == nil {
		return nil, fmt.Errorf("redis client required")
	}
	if hub == nil {
		return nil, fmt.Errorf("hub required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Relay{source: source, hub: hub, logg: logg}, nil
}

// Run consumes the stock channels until the context is canceled.
func (r *Relay) Run(ctx context.Context) error {
	pubsub, err := r.source.PSubscribe(ctx, r.source.StockChannelPattern())
	if err != nil {
		return fmt.Errorf("subscribe stock channels: %w", err)
	}
	defer func() {
		if err := pubsub.Close(); err != nil {
			r.logg.Warn(r.logg.WithField(ctx, "error", err.Error()), "closing stock subscription")
		}
	}()

	r.logg.Info(ctx, "stock delta relay started")

	messages := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-messages:
			if !ok {
				return fmt.Errorf("stock subscription closed")
			}
			r.dispatch(ctx, msg.Payload)
		}
	}
}

func (r *Relay) dispatch(ctx context.Context, payload string) {
	var delta types.StockDelta
	if err := json.Unmarshal([]byte(payload), &delta); err != nil {
		r.logg.Warn(r.logg.WithField(ctx, "payload", payload), "dropping malformed stock delta")
		return
	}
	r.hub.Publish(delta)
}
