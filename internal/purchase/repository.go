package purchase

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/ticketblitz/ticketblitz-backend/pkg/db/models"
	"github.com/ticketblitz/ticketblitz-backend/pkg/enums"
)

// Stats aggregates the confirmed marketplace totals for the admin dashboard.
type Stats struct {
	TicketsSold int             `json:"tickets_sold"`
	Revenue     decimal.Decimal `json:"revenue"`
	Confirmed   int64           `json:"confirmed_transactions"`
	Cancelled   int64           `json:"cancelled_transactions"`
}

// Repository manages persistence for purchase transactions.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, record *models.Transaction) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error)
	FindByClientRef(ctx context.Context, clientRef string) (*models.Transaction, error)
	ListByPurchaser(ctx context.Context, purchaserID string) ([]models.Transaction, error)
	ListAll(ctx context.Context) ([]models.Transaction, error)
	MarkCancelled(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
	Delete(ctx context.Context, id uuid.UUID) error
	SumActiveQuantityByTier(ctx context.Context, tierID uuid.UUID) (int, error)
	Stats(ctx context.Context) (*Stats, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a transaction repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, record *models.Transaction) error {
	return r.db.WithContext(ctx).Create(record).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	var record models.Transaction
	err := r.db.WithContext(ctx).First(&record, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

func (r *repository) FindByClientRef(ctx context.Context, clientRef string) (*models.Transaction, error) {
	var record models.Transaction
	err := r.db.WithContext(ctx).First(&record, "client_ref = ?", clientRef).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

func (r *repository) ListByPurchaser(ctx context.Context, purchaserID string) ([]models.Transaction, error) {
	var records []models.Transaction
	err := r.db.WithContext(ctx).
		Where("purchaser_id = ?", purchaserID).
		Order("created_at DESC").
		Find(&records).Error
	return records, err
}

func (r *repository) ListAll(ctx context.Context) ([]models.Transaction, error) {
	var records []models.Transaction
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Find(&records).Error
	return records, err
}

// MarkCancelled flips a confirmed transaction to cancelled. It reports false
// when the row was not confirmed, so refund replays detect the earlier cancel.
func (r *repository) MarkCancelled(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Transaction{}).
		Where("id = ? AND status = ?", id, enums.TransactionStatusConfirmed).
		Updates(map[string]any{
			"status":       enums.TransactionStatusCancelled,
			"cancelled_at": at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&models.Transaction{}, "id = ?", id).Error
}

// SumActiveQuantityByTier totals the quantity of non-cancelled transactions,
// the ground truth a resync replays against total_stock.
func (r *repository) SumActiveQuantityByTier(ctx context.Context, tierID uuid.UUID) (int, error) {
	var total int
	err := r.db.WithContext(ctx).Model(&models.Transaction{}).
		Select("COALESCE(SUM(quantity), 0)").
		Where("tier_id = ? AND status <> ?", tierID, enums.TransactionStatusCancelled).
		Scan(&total).Error
	return total, err
}

func (r *repository) Stats(ctx context.Context) (*Stats, error) {
	var row struct {
		TicketsSold int
		Revenue     decimal.Decimal
		Confirmed   int64
	}
	err := r.db.WithContext(ctx).Model(&models.Transaction{}).
		Select("COALESCE(SUM(quantity), 0) AS tickets_sold, COALESCE(SUM(total_amount), 0) AS revenue, COUNT(*) AS confirmed").
		Where("status = ?", enums.TransactionStatusConfirmed).
		Scan(&row).Error
	if err != nil {
		return nil, err
	}

	var cancelled int64
	err = r.db.WithContext(ctx).Model(&models.Transaction{}).
		Where("status = ?", enums.TransactionStatusCancelled).
		Count(&cancelled).Error
	if err != nil {
		return nil, err
	}

	return &Stats{
		TicketsSold: row.TicketsSold,
		Revenue:     row.Revenue,
		Confirmed:   row.Confirmed,
		Cancelled:   cancelled,
	}, nil
}
