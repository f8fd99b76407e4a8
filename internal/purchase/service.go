package purchase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/ticketblitz/ticketblitz-backend/internal/ledger"
	"github.com/ticketblitz/ticketblitz-backend/pkg/config"
	dbpkg "github.com/ticketblitz/ticketblitz-backend/pkg/db"
	"github.com/ticketblitz/ticketblitz-backend/pkg/db/models"
	"github.com/ticketblitz/ticketblitz-backend/pkg/enums"
	pkgerrors "github.com/ticketblitz/ticketblitz-backend/pkg/errors"
	"github.com/ticketblitz/ticketblitz-backend/pkg/logger"
	"github.com/ticketblitz/ticketblitz-backend/pkg/metrics"
	"github.com/ticketblitz/ticketblitz-backend/pkg/types"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type deltaEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, delta types.StockDelta) error
}

// PurchaseInput is one purchase attempt. ClientRef is the caller-generated
// idempotency key; retries must reuse it.
type PurchaseInput struct {
	EventID   uuid.UUID
	TierID    uuid.UUID
	Purchaser string
	Quantity  int
	ClientRef string
}

// Service executes purchase and refund orchestration.
type Service interface {
	Purchase(ctx context.Context, input PurchaseInput) (*models.Transaction, error)
	Refund(ctx context.Context, transactionID uuid.UUID) (*models.Transaction, error)
	Purge(ctx context.Context, transactionID uuid.UUID) error
	ListByPurchaser(ctx context.Context, purchaserID string) ([]models.Transaction, error)
	ListAll(ctx context.Context) ([]models.Transaction, error)
	Stats(ctx context.Context) (*Stats, error)
}

type service struct {
	tx          txRunner
	repo        Repository
	ledgerRepo  ledger.Repository
	emitter     deltaEmitter
	logg        *logger.Logger
	metrics     *metrics.PurchaseMetrics
	maxQuantity int
}

// NewService builds the purchase service.
func NewService(
	tx txRunner,
	repo Repository,
	ledgerRepo ledger.Repository,
	emitter deltaEmitter,
	cfg config.PurchaseConfig,
	logg *logger.Logger,
	purchaseMetrics *metrics.PurchaseMetrics,
) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("transaction repository required")
	}
	if ledgerRepo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	if emitter == nil {
		return nil, fmt.Errorf("delta emitter required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	maxQuantity := cfg.MaxQuantity
	if maxQuantity <= 0 {
		maxQuantity = 10
	}
	return &service{
		tx:          tx,
		repo:        repo,
		ledgerRepo:  ledgerRepo,
		emitter:     emitter,
		logg:        logg,
		metrics:     purchaseMetrics,
		maxQuantity: maxQuantity,
	}, nil
}

// Purchase reserves stock and records the transaction atomically. Replaying a
// client_ref returns the original transaction without touching stock.
func (s *service) Purchase(ctx context.Context, input PurchaseInput) (*models.Transaction, error) {
	started := time.Now()
	record, replay, err := s.purchase(ctx, input)
	s.observe(started, record, replay, err)
	return record, err
}

func (s *service) purchase(ctx context.Context, input PurchaseInput) (*models.Transaction, bool, error) {
	if input.Quantity < 1 || input.Quantity > s.maxQuantity {
		return nil, false, pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("quantity must be between 1 and %d", s.maxQuantity))
	}
	if strings.TrimSpace(input.ClientRef) == "" {
		return nil, false, pkgerrors.New(pkgerrors.CodeValidation, "client_ref is required")
	}
	if strings.TrimSpace(input.Purchaser) == "" {
		return nil, false, pkgerrors.New(pkgerrors.CodeValidation, "purchaser is required")
	}

	// replay fast path before opening a transaction
	if existing, err := s.repo.FindByClientRef(ctx, input.ClientRef); err != nil {
		return nil, false, err
	} else if existing != nil {
		return existing, true, nil
	}

	var record *models.Transaction
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		ledgerRepo := s.ledgerRepo.WithTx(tx)

		tier, err := ledgerRepo.FindTier(ctx, input.TierID)
		if err != nil {
			return err
		}
		if tier.EventID != input.EventID {
			return pkgerrors.New(pkgerrors.CodeNotFound, "ticket tier does not belong to event")
		}

		remaining, ok, err := ledgerRepo.TryDecrement(ctx, tier.ID, input.Quantity)
		if err != nil {
			return err
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeOutOfStock, "requested quantity exceeds remaining stock").
				WithDetails(map[string]any{"tier_id": tier.ID, "remaining": tier.AvailableStock})
		}

		unitPrice := tier.Price
		record = &models.Transaction{
			ID:          uuid.New(),
			EventID:     tier.EventID,
			TierID:      tier.ID,
			PurchaserID: input.Purchaser,
			TierName:    tier.Name,
			Quantity:    input.Quantity,
			UnitPrice:   unitPrice,
			TotalAmount: unitPrice.Mul(decimal.NewFromInt(int64(input.Quantity))),
			Reference:   newReference(),
			ClientRef:   input.ClientRef,
			Status:      enums.TransactionStatusConfirmed,
		}
		if err := s.repo.WithTx(tx).Create(ctx, record); err != nil {
			return err
		}

		return s.emitter.Emit(ctx, tx, types.StockDelta{
			EventID:   tier.EventID,
			TierID:    tier.ID,
			Remaining: remaining,
		})
	})
	if err != nil {
		// a concurrent request with the same client_ref won the insert race;
		// its committed transaction is the answer
		if dbpkg.IsUniqueViolation(err, "client_ref") {
			existing, findErr := s.repo.FindByClientRef(ctx, input.ClientRef)
			if findErr != nil {
				return nil, false, findErr
			}
			if existing != nil {
				return existing, true, nil
			}
		}
		return nil, false, err
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"transaction_id": record.ID.String(),
		"tier_id":        record.TierID.String(),
		"quantity":       record.Quantity,
	})
	s.logg.Info(logCtx, "purchase confirmed")
	return record, false, nil
}

// Refund cancels a confirmed transaction and restores its stock. Refunding an
// already-cancelled transaction returns it unchanged.
func (s *service) Refund(ctx context.Context, transactionID uuid.UUID) (*models.Transaction, error) {
	var record *models.Transaction
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		existing, err := repo.FindByID(ctx, transactionID)
		if err != nil {
			return err
		}
		if existing == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "transaction not found")
		}

		cancelled, err := repo.MarkCancelled(ctx, existing.ID, time.Now().UTC())
		if err != nil {
			return err
		}
		if !cancelled {
			// already cancelled: idempotent no-op
			record = existing
			return nil
		}

		remaining, err := s.ledgerRepo.WithTx(tx).Restore(ctx, existing.TierID, existing.Quantity)
		if err != nil {
			return err
		}
		if err := s.emitter.Emit(ctx, tx, types.StockDelta{
			EventID:   existing.EventID,
			TierID:    existing.TierID,
			Remaining: remaining,
		}); err != nil {
			return err
		}

		record, err = repo.FindByID(ctx, existing.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logg.Info(s.logg.WithField(ctx, "transaction_id", transactionID.String()), "refund processed")
	return record, nil
}

// Purge deletes a transaction outright and, when it was still confirmed,
// returns its tickets to the pool.
func (s *service) Purge(ctx context.Context, transactionID uuid.UUID) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		existing, err := repo.FindByID(ctx, transactionID)
		if err != nil {
			return err
		}
		if existing == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "transaction not found")
		}

		if existing.Status == enums.TransactionStatusConfirmed {
			remaining, err := s.ledgerRepo.WithTx(tx).Restore(ctx, existing.TierID, existing.Quantity)
			if err != nil {
				return err
			}
			if err := s.emitter.Emit(ctx, tx, types.StockDelta{
				EventID:   existing.EventID,
				TierID:    existing.TierID,
				Remaining: remaining,
			}); err != nil {
				return err
			}
		}

		return repo.Delete(ctx, existing.ID)
	})
}

func (s *service) ListByPurchaser(ctx context.Context, purchaserID string) ([]models.Transaction, error) {
	if strings.TrimSpace(purchaserID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "purchaser is required")
	}
	return s.repo.ListByPurchaser(ctx, purchaserID)
}

func (s *service) ListAll(ctx context.Context) ([]models.Transaction, error) {
	return s.repo.ListAll(ctx)
}

func (s *service) Stats(ctx context.Context) (*Stats, error) {
	return s.repo.Stats(ctx)
}

func (s *service) observe(started time.Time, record *models.Transaction, replay bool, err error) {
	elapsed := time.Since(started)
	switch {
	case err == nil && replay:
		s.metrics.ObserveAttempt(metrics.OutcomeDuplicate, elapsed)
	case err == nil:
		s.metrics.ObserveAttempt(metrics.OutcomeConfirmed, elapsed)
		s.metrics.AddTicketsSold(record.EventID.String(), record.Quantity)
	default:
		typed := pkgerrors.As(err)
		switch {
		case typed != nil && typed.Code() == pkgerrors.CodeOutOfStock:
			s.metrics.ObserveAttempt(metrics.OutcomeOutOfStock, elapsed)
		case typed != nil && typed.Code() == pkgerrors.CodeValidation:
			s.metrics.ObserveAttempt(metrics.OutcomeInvalid, elapsed)
		default:
			s.metrics.ObserveAttempt(metrics.OutcomeError, elapsed)
		}
	}
}

func newReference() string {
	return "TB-" + strings.ToUpper(uuid.NewString()[:8])
}
