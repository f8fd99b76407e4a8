package outbox

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ticketblitz/ticketblitz-backend/pkg/config"
	"github.com/ticketblitz/ticketblitz-backend/pkg/db/models"
	"github.com/ticketblitz/ticketblitz-backend/pkg/logger"
	"github.com/ticketblitz/ticketblitz-backend/pkg/metrics"
	"github.com/ticketblitz/ticketblitz-backend/pkg/types"
)

const (
	defaultBatchSize   = 50
	defaultPoll        = 250 * time.Millisecond
	defaultMaxAttempts = 10
	defaultBaseBackoff = 500 * time.Millisecond
	defaultMaxBackoff  = time.Minute
	jitterWindow       = 100 * time.Millisecond
)

var jitterSource = rand.New(rand.NewSource(time.Now().UnixNano()))

type dbClient interface {
	Ping(context.Context) error
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

type dispatcherRepository interface {
	FetchDueTx(tx *gorm.DB, limit, maxAttempts int, now time.Time) ([]models.StockDeltaEvent, error)
	MarkPublishedTx(tx *gorm.DB, id int64) error
	MarkFailedTx(tx *gorm.DB, id int64, cause error, nextAttempt time.Time) error
}

// Sink receives committed stock deltas for fanout.
type Sink interface {
	PublishDelta(ctx context.Context, delta types.StockDelta) error
}

type DispatcherParams struct {
	Config     *config.Config
	Logger     *logger.Logger
	DB         dbClient
	Repository dispatcherRepository
	Sink       Sink
	Metrics    *metrics.StreamMetrics
}

// Dispatcher polls the outbox and pushes queued deltas to the sink. FetchDueTx
// only ever serves the head of each tier's queue, so a tier's counts arrive in
// the order they were committed even across retry batches.
type Dispatcher struct {
	logg         *logger.Logger
	db           dbClient
	repo         dispatcherRepository
	sink         Sink
	metrics      *metrics.StreamMetrics
	batchSize    int
	maxAttempts  int
	pollInterval time.Duration
	baseBackoff  time.Duration
	maxBackoff   time.Duration
}

func NewDispatcher(params DispatcherParams) (*Dispatcher, error) {
	if params.Config == nil {
		return nil, errors.New("config is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.DB == nil {
		return nil, errors.New("database client is required")
	}
	if params.Repository == nil {
		return nil, errors.New("outbox repository is required")
	}
	if params.Sink == nil {
		return nil, errors.New("delta sink is required")
	}

	cfg := params.Config.Outbox
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}
	poll := cfg.PollInterval
	if poll <= 0 {
		poll = defaultPoll
	}
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	base := cfg.BaseBackoff
	if base <= 0 {
		base = defaultBaseBackoff
	}
	maxBackoff := cfg.MaxBackoff
	if maxBackoff <= 0 {
		maxBackoff = defaultMaxBackoff
	}

	return &Dispatcher{
		logg:         params.Logger,
		db:           params.DB,
		repo:         params.Repository,
		sink:         params.Sink,
		metrics:      params.Metrics,
		batchSize:    batch,
		maxAttempts:  maxAttempts,
		pollInterval: poll,
		baseBackoff:  base,
		maxBackoff:   maxBackoff,
	}, nil
}

// Run polls until the context is canceled.
func (d *Dispatcher) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := d.db.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	backoff := d.pollInterval
	for {
		select {
		case <-ctx.Done():
			d.logg.Info(ctx, "stock delta dispatcher context canceled")
			return ctx.Err()
		default:
		}

		processed, err := d.ProcessBatch(ctx)
		if err != nil {
			d.logg.Error(ctx, "stock delta dispatch batch error", err)
			backoff = nextBackoff(backoff, d.pollInterval, d.maxBackoff)
			if err := d.sleep(ctx, withJitter(backoff)); err != nil {
				return err
			}
			continue
		}

		backoff = d.pollInterval

		if processed {
			continue
		}
		if err := d.sleep(ctx, withJitter(d.pollInterval)); err != nil {
			return err
		}
	}
}

// ProcessBatch dispatches one batch of due deltas. It reports whether any row
// was handled so the caller can skip the idle sleep.
func (d *Dispatcher) ProcessBatch(ctx context.Context) (bool, error) {
	processed := false
	err := d.db.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := d.repo.FetchDueTx(tx, d.batchSize, d.maxAttempts, time.Now().UTC())
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}

		processed = true
		held := make(map[uuid.UUID]bool)
		for _, row := range rows {
			if held[row.TierID] {
				continue
			}
			delta := types.StockDelta{
				EventID:   row.EventID,
				TierID:    row.TierID,
				Remaining: row.Remaining,
			}
			if err := d.sink.PublishDelta(ctx, delta); err != nil {
				d.metrics.IncDispatched("failed")
				next := time.Now().UTC().Add(d.backoffFor(row.AttemptCount + 1))
				logCtx := d.logg.WithFields(ctx, map[string]any{
					"outbox_id":     row.ID,
					"tier_id":       row.TierID.String(),
					"attempt_count": row.AttemptCount + 1,
					"error":         err.Error(),
				})
				d.logg.Warn(logCtx, "stock delta publish failed")
				if markErr := d.repo.MarkFailedTx(tx, row.ID, err, next); markErr != nil {
					return fmt.Errorf("mark failed %d: %w", row.ID, markErr)
				}
				// this tier's later deltas must wait for the retry; the
				// fetch query keeps holding them on the next poll too
				held[row.TierID] = true
				continue
			}
			if markErr := d.repo.MarkPublishedTx(tx, row.ID); markErr != nil {
				return fmt.Errorf("mark published %d: %w", row.ID, markErr)
			}
			d.metrics.IncDispatched("published")
		}
		return nil
	})
	return processed, err
}

func (d *Dispatcher) backoffFor(attempt int) time.Duration {
	backoff := d.baseBackoff
	for i := 1; i < attempt; i++ {
		backoff *= 2
		if backoff >= d.maxBackoff {
			return d.maxBackoff
		}
	}
	if backoff > d.maxBackoff {
		return d.maxBackoff
	}
	return backoff
}

func (d *Dispatcher) sleep(ctx context.Context, duration time.Duration) error {
	timer := time.NewTimer(duration)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func nextBackoff(current, floor, ceiling time.Duration) time.Duration {
	next := current * 2
	if next < floor {
		next = floor
	}
	if next > ceiling {
		next = ceiling
	}
	return next
}

func withJitter(duration time.Duration) time.Duration {
	return duration + time.Duration(jitterSource.Int63n(int64(jitterWindow)))
}
