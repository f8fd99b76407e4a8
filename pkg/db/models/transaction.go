package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ticketblitz/ticketblitz-backend/pkg/enums"
)

// Transaction is the append-only record of a committed purchase. ClientRef is
// the caller-supplied idempotency key; the unique index on it is what makes
// replays return the original row instead of double-charging.
type Transaction struct {
	ID          uuid.UUID               `gorm:"column:id;type:uuid;primaryKey"`
	EventID     uuid.UUID               `gorm:"column:event_id;type:uuid;not null;index"`
	TierID      uuid.UUID               `gorm:"column:tier_id;type:uuid;not null;index"`
	PurchaserID string                  `gorm:"column:purchaser_id;not null;index"`
	TierName    string                  `gorm:"column:tier_name;not null"`
	Quantity    int                     `gorm:"column:quantity;not null"`
	UnitPrice   decimal.Decimal         `gorm:"column:unit_price;type:numeric(10,2);not null"`
	TotalAmount decimal.Decimal         `gorm:"column:total_amount;type:numeric(12,2);not null"`
	Reference   string                  `gorm:"column:reference;not null"`
	ClientRef   string                  `gorm:"column:client_ref;not null;uniqueIndex:ux_transactions_client_ref"`
	Status      enums.TransactionStatus `gorm:"column:status;not null;default:confirmed"`
	CreatedAt   time.Time               `gorm:"column:created_at;autoCreateTime"`
	CancelledAt *time.Time              `gorm:"column:cancelled_at"`
}

func (Transaction) TableName() string {
	return "transactions"
}
