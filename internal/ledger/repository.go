package ledger

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ticketblitz/ticketblitz-backend/pkg/db/models"
	pkgerrors "github.com/ticketblitz/ticketblitz-backend/pkg/errors"
)

// Repository owns the available_stock column. Every mutation is a single
// conditional UPDATE so concurrent purchases serialize on the row without
// an explicit lock, and available_stock can never leave [0, total_stock].
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindTier(ctx context.Context, tierID uuid.UUID) (*models.TicketTier, error)
	ListTiersByEvent(ctx context.Context, eventID uuid.UUID) ([]models.TicketTier, error)
	ListAllTiers(ctx context.Context) ([]models.TicketTier, error)
	TryDecrement(ctx context.Context, tierID uuid.UUID, quantity int) (remaining int, ok bool, err error)
	Restore(ctx context.Context, tierID uuid.UUID, quantity int) (remaining int, err error)
	SetAvailable(ctx context.Context, tierID uuid.UUID, corrected int) (remaining int, err error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a stock ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindTier(ctx context.Context, tierID uuid.UUID) (*models.TicketTier, error) {
	var tier models.TicketTier
	err := r.db.WithContext(ctx).First(&tier, "id = ?", tierID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "ticket tier not found")
		}
		return nil, err
	}
	return &tier, nil
}

func (r *repository) ListTiersByEvent(ctx context.Context, eventID uuid.UUID) ([]models.TicketTier, error) {
	var tiers []models.TicketTier
	err := r.db.WithContext(ctx).
		Where("event_id = ?", eventID).
		Order("price ASC").
		Find(&tiers).Error
	if err != nil {
		return nil, err
	}
	return tiers, nil
}

func (r *repository) ListAllTiers(ctx context.Context) ([]models.TicketTier, error) {
	var tiers []models.TicketTier
	err := r.db.WithContext(ctx).
		Order("event_id ASC, price ASC").
		Find(&tiers).Error
	if err != nil {
		return nil, err
	}
	return tiers, nil
}

// TryDecrement atomically takes quantity units from the tier. ok is false when
// the tier holds fewer than quantity units; stock is untouched in that case.
func (r *repository) TryDecrement(ctx context.Context, tierID uuid.UUID, quantity int) (int, bool, error) {
	if quantity <= 0 {
		return 0, false, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}

	var remaining int
	res := r.db.WithContext(ctx).Raw(
		`UPDATE ticket_tiers
		    SET available_stock = available_stock - ?, updated_at = CURRENT_TIMESTAMP
		  WHERE id = ? AND available_stock >= ?
		  RETURNING available_stock`,
		quantity, tierID, quantity,
	).Scan(&remaining)
	if res.Error != nil {
		return 0, false, res.Error
	}
	if res.RowsAffected == 0 {
		// distinguish a missing tier from an insufficient one
		if _, err := r.FindTier(ctx, tierID); err != nil {
			return 0, false, err
		}
		return 0, false, nil
	}
	return remaining, true, nil
}

// Restore returns quantity units to the tier, clamped at total_stock.
func (r *repository) Restore(ctx context.Context, tierID uuid.UUID, quantity int) (int, error) {
	if quantity <= 0 {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}

	var remaining int
	res := r.db.WithContext(ctx).Raw(
		`UPDATE ticket_tiers
		    SET available_stock = CASE
		          WHEN available_stock + ? > total_stock THEN total_stock
		          ELSE available_stock + ?
		        END,
		        updated_at = CURRENT_TIMESTAMP
		  WHERE id = ?
		  RETURNING available_stock`,
		quantity, quantity, tierID,
	).Scan(&remaining)
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		return 0, pkgerrors.New(pkgerrors.CodeNotFound, "ticket tier not found")
	}
	return remaining, nil
}

// SetAvailable overwrites available_stock with the corrected count, clamped
// into [0, total_stock].
func (r *repository) SetAvailable(ctx context.Context, tierID uuid.UUID, corrected int) (int, error) {
	var remaining int
	res := r.db.WithContext(ctx).Raw(
		`UPDATE ticket_tiers
		    SET available_stock = CASE
		          WHEN ? < 0 THEN 0
		          WHEN ? > total_stock THEN total_stock
		          ELSE ?
		        END,
		        updated_at = CURRENT_TIMESTAMP
		  WHERE id = ?
		  RETURNING available_stock`,
		corrected, corrected, corrected, tierID,
	).Scan(&remaining)
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		return 0, pkgerrors.New(pkgerrors.CodeNotFound, "ticket tier not found")
	}
	return remaining, nil
}
