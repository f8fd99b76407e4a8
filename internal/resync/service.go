package resync

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/ticketblitz/ticketblitz-backend/internal/ledger"
	"github.com/ticketblitz/ticketblitz-backend/internal/purchase"
	pkgerrors "github.com/ticketblitz/ticketblitz-backend/pkg/errors"
	"github.com/ticketblitz/ticketblitz-backend/pkg/logger"
	"github.com/ticketblitz/ticketblitz-backend/pkg/types"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type deltaEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, delta types.StockDelta) error
}

// ReportEntry records one tier whose stored availability drifted from the
// count its transactions imply.
type ReportEntry struct {
	EventID   uuid.UUID `json:"event_id"`
	TierID    uuid.UUID `json:"tier_id"`
	TierName  string    `json:"tier_name"`
	Previous  int       `json:"previous"`
	Corrected int       `json:"corrected"`
}

// Service rebuilds availability from the transaction log.
type Service interface {
	ResyncAll(ctx context.Context) ([]ReportEntry, error)
	ForceSet(ctx context.Context, eventID, tierID uuid.UUID, quantity int) (*ReportEntry, error)
}

type service struct {
	tx           txRunner
	ledgerRepo   ledger.Repository
	purchaseRepo purchase.Repository
	emitter      deltaEmitter
	logg         *logger.Logger
}

// NewService builds the resync service.
func NewService(
	tx txRunner,
	ledgerRepo ledger.Repository,
	purchaseRepo purchase.Repository,
	emitter deltaEmitter,
	logg *logger.Logger,
) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if ledgerRepo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	if purchaseRepo == nil {
		return nil, fmt.Errorf("transaction repository required")
	}
	if emitter == nil {
		return nil, fmt.Errorf("delta emitter required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		tx:           tx,
		ledgerRepo:   ledgerRepo,
		purchaseRepo: purchaseRepo,
		emitter:      emitter,
		logg:         logg,
	}, nil
}

// ResyncAll sweeps every tier and overwrites availability where it disagrees
// with total_stock minus the non-cancelled quantity sum. Each tier gets its
// own short transaction, so purchases keep flowing while the sweep runs; a
// purchase landing between the sum and the overwrite is absorbed by the next
// sweep. Per-tier failures are collected and do not stop the run.
func (s *service) ResyncAll(ctx context.Context) ([]ReportEntry, error) {
	tiers, err := s.ledgerRepo.ListAllTiers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tiers: %w", err)
	}

	var report []ReportEntry
	var errs error
	for _, tier := range tiers {
		entry, err := s.resyncTier(ctx, tier.ID)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("tier %s: %w", tier.ID, err))
			continue
		}
		if entry != nil {
			report = append(report, *entry)
		}
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"tiers_checked": len(tiers),
		"tiers_drifted": len(report),
	})
	s.logg.Info(logCtx, "stock resync sweep complete")
	return report, errs
}

func (s *service) resyncTier(ctx context.Context, tierID uuid.UUID) (*ReportEntry, error) {
	var entry *ReportEntry
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		ledgerRepo := s.ledgerRepo.WithTx(tx)

		tier, err := ledgerRepo.FindTier(ctx, tierID)
		if err != nil {
			return err
		}
		sold, err := s.purchaseRepo.WithTx(tx).SumActiveQuantityByTier(ctx, tier.ID)
		if err != nil {
			return err
		}

		corrected := tier.TotalStock - sold
		if corrected < 0 {
			corrected = 0
		}
		if corrected == tier.AvailableStock {
			return nil
		}

		remaining, err := ledgerRepo.SetAvailable(ctx, tier.ID, corrected)
		if err != nil {
			return err
		}
		if err := s.emitter.Emit(ctx, tx, types.StockDelta{
			EventID:   tier.EventID,
			TierID:    tier.ID,
			Remaining: remaining,
		}); err != nil {
			return err
		}

		entry = &ReportEntry{
			EventID:   tier.EventID,
			TierID:    tier.ID,
			TierName:  tier.Name,
			Previous:  tier.AvailableStock,
			Corrected: remaining,
		}
		return nil
	})
	return entry, err
}

// ForceSet overwrites one tier's availability by hand. The back office uses
// it to seed stock or repair a tier without waiting for a sweep; the value is
// clamped into [0, total_stock] and broadcast like any other change.
func (s *service) ForceSet(ctx context.Context, eventID, tierID uuid.UUID, quantity int) (*ReportEntry, error) {
	if quantity < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must not be negative")
	}

	var entry *ReportEntry
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		ledgerRepo := s.ledgerRepo.WithTx(tx)

		tier, err := ledgerRepo.FindTier(ctx, tierID)
		if err != nil {
			return err
		}
		if tier.EventID != eventID {
			return pkgerrors.New(pkgerrors.CodeNotFound, "ticket tier does not belong to event")
		}

		remaining, err := ledgerRepo.SetAvailable(ctx, tier.ID, quantity)
		if err != nil {
			return err
		}
		if err := s.emitter.Emit(ctx, tx, types.StockDelta{
			EventID:   tier.EventID,
			TierID:    tier.ID,
			Remaining: remaining,
		}); err != nil {
			return err
		}

		entry = &ReportEntry{
			EventID:   tier.EventID,
			TierID:    tier.ID,
			TierName:  tier.Name,
			Previous:  tier.AvailableStock,
			Corrected: remaining,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"tier_id":   tierID,
		"previous":  entry.Previous,
		"corrected": entry.Corrected,
	})
	s.logg.Info(logCtx, "tier stock force-set")
	return entry, nil
}
