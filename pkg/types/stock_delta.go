package types

import "github.com/google/uuid"

// StockDelta announces the absolute remaining stock for one tier. Consumers
// replace their displayed count with Remaining; values are never accumulated.
type StockDelta struct {
	EventID   uuid.UUID `json:"event_id"`
	TierID    uuid.UUID `json:"tier_id"`
	Remaining int       `json:"remaining"`
}
