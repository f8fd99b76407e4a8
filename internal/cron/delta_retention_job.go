package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/ticketblitz/ticketblitz-backend/pkg/logger"
)

const deltaRetentionDays = 7

type deltaRetentionRepo interface {
	PurgePublished(cutoff time.Time) (int64, error)
}

type DeltaRetentionJobParams struct {
	Logger     *logger.Logger
	Repository deltaRetentionRepo
	Retention  int
}

// NewDeltaRetentionJob removes published stock-delta outbox rows past the
// retention window. Unpublished rows are never touched.
func NewDeltaRetentionJob(params DeltaRetentionJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Repository == nil {
		return nil, fmt.Errorf("outbox repository required")
	}
	retention := params.Retention
	if retention <= 0 {
		retention = deltaRetentionDays
	}
	return &deltaRetentionJob{
		logg:      params.Logger,
		repo:      params.Repository,
		retention: retention,
		now:       time.Now,
	}, nil
}

type deltaRetentionJob struct {
	logg      *logger.Logger
	repo      deltaRetentionRepo
	retention int
	now       func() time.Time
}

func (j *deltaRetentionJob) Name() string { return "delta-retention" }

func (j *deltaRetentionJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-time.Duration(j.retention) * 24 * time.Hour)
	deleted, err := j.repo.PurgePublished(cutoff)
	if err != nil {
		return fmt.Errorf("delta retention: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":         cutoff,
		"retention_days": j.retention,
		"rows_deleted":   deleted,
	})
	j.logg.Info(logCtx, "stock delta retention cleanup complete")
	return nil
}
