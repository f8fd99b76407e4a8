package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/ticketblitz/ticketblitz-backend/pkg/enums"
)

// Event is a listed happening with one or more priced ticket tiers.
// Non-stock metadata stays editable; tier stock is owned by the ledger.
type Event struct {
	ID          uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	Name        string              `gorm:"column:name;not null"`
	Description string              `gorm:"column:description"`
	Category    enums.EventCategory `gorm:"column:category;not null"`
	EventDate   time.Time           `gorm:"column:event_date;not null"`
	EventTime   string              `gorm:"column:event_time"`
	ImageURL    *string             `gorm:"column:image_url"`
	VenueName   string              `gorm:"column:venue_name"`
	VenueCity   string              `gorm:"column:venue_city"`
	Tiers       []TicketTier        `gorm:"foreignKey:EventID;constraint:OnDelete:CASCADE"`
	CreatedAt   time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (Event) TableName() string {
	return "events"
}
