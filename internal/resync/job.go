package resync

import (
	"context"
	"fmt"

	"github.com/ticketblitz/ticketblitz-backend/internal/cron"
	"github.com/ticketblitz/ticketblitz-backend/pkg/logger"
)

// NewJob wraps the resync sweep as a cron job.
func NewJob(svc Service, logg *logger.Logger) (cron.Job, error) {
	if svc == nil {
		return nil, fmt.Errorf("resync service required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &job{svc: svc, logg: logg}, nil
}

type job struct {
	svc  Service
	logg *logger.Logger
}

func (j *job) Name() string { return "stock-resync" }

func (j *job) Run(ctx context.Context) error {
	report, err := j.svc.ResyncAll(ctx)
	if err != nil {
		return err
	}
	for _, entry := range report {
		logCtx := j.logg.WithFields(ctx, map[string]any{
			"tier_id":   entry.TierID.String(),
			"previous":  entry.Previous,
			"corrected": entry.Corrected,
		})
		j.logg.Warn(logCtx, "stock drift corrected")
	}
	return nil
}
