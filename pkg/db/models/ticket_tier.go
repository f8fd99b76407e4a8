package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TicketTier is one priced stock pool of an event. AvailableStock is mutated
// only through the ledger's conditional updates; 0 <= available <= total holds
// at all times.
type TicketTier struct {
	ID             uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	EventID        uuid.UUID       `gorm:"column:event_id;type:uuid;not null;index"`
	Name           string          `gorm:"column:name;not null"`
	Price          decimal.Decimal `gorm:"column:price;type:numeric(10,2);not null"`
	Benefits       string          `gorm:"column:benefits"`
	TotalStock     int             `gorm:"column:total_stock;not null"`
	AvailableStock int             `gorm:"column:available_stock;not null"`
	UpdatedAt      time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (TicketTier) TableName() string {
	return "ticket_tiers"
}
