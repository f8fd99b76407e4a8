package models

import (
	"time"

	"github.com/google/uuid"
)

// StockDeltaEvent is an outbox row queued in the same transaction as a stock
// mutation and dispatched after commit. The serial primary key preserves
// per-tier publish order.
type StockDeltaEvent struct {
	ID            int64      `gorm:"column:id;primaryKey;autoIncrement"`
	EventID       uuid.UUID  `gorm:"column:event_id;type:uuid;not null;index"`
	TierID        uuid.UUID  `gorm:"column:tier_id;type:uuid;not null"`
	Remaining     int        `gorm:"column:remaining;not null"`
	CreatedAt     time.Time  `gorm:"column:created_at;autoCreateTime"`
	PublishedAt   *time.Time `gorm:"column:published_at;index"`
	AttemptCount  int        `gorm:"column:attempt_count;not null;default:0"`
	NextAttemptAt *time.Time `gorm:"column:next_attempt_at"`
	LastError     *string    `gorm:"column:last_error"`
}

func (StockDeltaEvent) TableName() string {
	return "stock_delta_events"
}
