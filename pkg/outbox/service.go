package outbox

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/ticketblitz/ticketblitz-backend/pkg/db/models"
	"github.com/ticketblitz/ticketblitz-backend/pkg/logger"
	"github.com/ticketblitz/ticketblitz-backend/pkg/types"
)

// Service queues stock deltas transactionally with the mutation that caused
// them. The dispatcher picks them up after commit, so a delta is never
// announced for a purchase that rolled back.
type Service struct {
	repo *Repository
	logg *logger.Logger
}

func NewService(repo *Repository, logg *logger.Logger) *Service {
	return &Service{repo: repo, logg: logg}
}

// Emit records the absolute remaining count for a tier in the outbox. It must
// run inside the same transaction as the stock mutation.
func (s *Service) Emit(ctx context.Context, tx *gorm.DB, delta types.StockDelta) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	row := models.StockDeltaEvent{
		EventID:   delta.EventID,
		TierID:    delta.TierID,
		Remaining: delta.Remaining,
	}
	if err := s.repo.Insert(tx, &row); err != nil {
		return err
	}
	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"event_id":  delta.EventID.String(),
			"tier_id":   delta.TierID.String(),
			"remaining": delta.Remaining,
		})
		s.logg.Info(logCtx, "stock delta queued")
	}
	return nil
}
