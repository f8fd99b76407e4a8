package outbox

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/ticketblitz/ticketblitz-backend/pkg/db/models"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Insert queues a stock delta inside the caller's transaction.
func (r *Repository) Insert(tx *gorm.DB, row *models.StockDeltaEvent) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	return tx.Create(row).Error
}

// FetchDueTx returns unpublished deltas whose backoff window has elapsed,
// oldest first. A row whose tier has an earlier unpublished delta stuck in
// backoff (or out of attempts) is held back too: publishing it would hand
// subscribers that tier's counts out of commit order.
func (r *Repository) FetchDueTx(tx *gorm.DB, limit, maxAttempts int, now time.Time) ([]models.StockDeltaEvent, error) {
	var rows []models.StockDeltaEvent
	err := tx.Where("published_at IS NULL").
		Where("attempt_count < ?", maxAttempts).
		Where("next_attempt_at IS NULL OR next_attempt_at <= ?", now).
		Where(`NOT EXISTS (
			SELECT 1 FROM stock_delta_events prior
			WHERE prior.tier_id = stock_delta_events.tier_id
			  AND prior.id < stock_delta_events.id
			  AND prior.published_at IS NULL
			  AND (prior.attempt_count >= ? OR (prior.next_attempt_at IS NOT NULL AND prior.next_attempt_at > ?))
		)`, maxAttempts, now).
		Order("id ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (r *Repository) MarkPublishedTx(tx *gorm.DB, id int64) error {
	return tx.Model(&models.StockDeltaEvent{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"published_at": time.Now().UTC(),
		}).Error
}

func (r *Repository) MarkFailedTx(tx *gorm.DB, id int64, cause error, nextAttempt time.Time) error {
	return tx.Model(&models.StockDeltaEvent{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"last_error":      cause.Error(),
			"attempt_count":   gorm.Expr("attempt_count + 1"),
			"next_attempt_at": nextAttempt,
		}).Error
}

// PurgePublished deletes published rows older than the cutoff and returns the
// number removed.
func (r *Repository) PurgePublished(cutoff time.Time) (int64, error) {
	res := r.db.Where("published_at IS NOT NULL AND published_at < ?", cutoff).
		Delete(&models.StockDeltaEvent{})
	return res.RowsAffected, res.Error
}
