package ledger

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	pkgerrors "github.com/ticketblitz/ticketblitz-backend/pkg/errors"
	"github.com/ticketblitz/ticketblitz-backend/pkg/logger"
)

// cache TTL guards against orphaned keys; the dispatcher refreshes hot keys
// on every stock change.
const cacheTTL = 24 * time.Hour

type stockCache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	StockKey(eventID, tierID string) string
}

// TierAvailability pairs a tier with its live remaining count.
type TierAvailability struct {
	TierID    uuid.UUID `json:"tier_id"`
	Name      string    `json:"name"`
	Remaining int       `json:"remaining"`
}

// Service answers availability reads. Counts come from the Redis cache when
// present and fall back to the ledger rows, re-priming the cache on the way
// out.
type Service interface {
	TierAvailability(ctx context.Context, eventID, tierID uuid.UUID) (int, error)
	EventAvailability(ctx context.Context, eventID uuid.UUID) ([]TierAvailability, error)
	PrimeEvent(ctx context.Context, eventID uuid.UUID) error
	DropEvent(ctx context.Context, eventID uuid.UUID) error
}

type service struct {
	repo  Repository
	cache stockCache
	logg  *logger.Logger
}

// NewService builds the availability read service.
func NewService(repo Repository, cache stockCache, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	if cache == nil {
		return nil, fmt.Errorf("stock cache required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, cache: cache, logg: logg}, nil
}

func (s *service) TierAvailability(ctx context.Context, eventID, tierID uuid.UUID) (int, error) {
	key := s.cache.StockKey(eventID.String(), tierID.String())
	raw, err := s.cache.Get(ctx, key)
	if err == nil {
		if count, parseErr := strconv.Atoi(raw); parseErr == nil {
			return count, nil
		}
		// unparseable value: fall through to the ledger and rewrite it
	} else if err != redis.Nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "stock cache read failed")
	}

	tier, err := s.repo.FindTier(ctx, tierID)
	if err != nil {
		// an unknown tier simply has nothing left to sell
		if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeNotFound {
			return 0, nil
		}
		return 0, err
	}
	s.prime(ctx, eventID, tier.ID, tier.AvailableStock)
	return tier.AvailableStock, nil
}

func (s *service) EventAvailability(ctx context.Context, eventID uuid.UUID) ([]TierAvailability, error) {
	tiers, err := s.repo.ListTiersByEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}

	out := make([]TierAvailability, 0, len(tiers))
	for _, tier := range tiers {
		out = append(out, TierAvailability{
			TierID:    tier.ID,
			Name:      tier.Name,
			Remaining: tier.AvailableStock,
		})
		s.prime(ctx, eventID, tier.ID, tier.AvailableStock)
	}
	return out, nil
}

// PrimeEvent seeds the cache with the current ledger counts for every tier of
// the event.
func (s *service) PrimeEvent(ctx context.Context, eventID uuid.UUID) error {
	tiers, err := s.repo.ListTiersByEvent(ctx, eventID)
	if err != nil {
		return err
	}
	for _, tier := range tiers {
		key := s.cache.StockKey(eventID.String(), tier.ID.String())
		if err := s.cache.Set(ctx, key, tier.AvailableStock, cacheTTL); err != nil {
			return fmt.Errorf("prime stock cache for tier %s: %w", tier.ID, err)
		}
	}
	return nil
}

// DropEvent removes the cached counts for every tier of the event.
func (s *service) DropEvent(ctx context.Context, eventID uuid.UUID) error {
	tiers, err := s.repo.ListTiersByEvent(ctx, eventID)
	if err != nil {
		return err
	}
	keys := make([]string, 0, len(tiers))
	for _, tier := range tiers {
		keys = append(keys, s.cache.StockKey(eventID.String(), tier.ID.String()))
	}
	if len(keys) == 0 {
		return nil
	}
	return s.cache.Del(ctx, keys...)
}

// prime is best-effort: a cache write failure never fails the read path.
func (s *service) prime(ctx context.Context, eventID, tierID uuid.UUID, remaining int) {
	key := s.cache.StockKey(eventID.String(), tierID.String())
	if err := s.cache.Set(ctx, key, remaining, cacheTTL); err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "stock cache write failed")
	}
}
