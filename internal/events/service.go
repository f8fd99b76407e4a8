package events

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/ticketblitz/ticketblitz-backend/pkg/db/models"
	"github.com/ticketblitz/ticketblitz-backend/pkg/enums"
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

type cacheDropper interface {
	DropEvent(ctx context.Context, eventID uuid.UUID) error
}

// TierInput describes one tier at event creation. TotalStock is fixed for the
// life of the tier.
type TierInput struct {
	Name       string
	Price      decimal.Decimal
	Benefits   string
	TotalStock int
}

// CreateEventInput carries the catalog fields for a new event.
type CreateEventInput struct {
	Name        string
	Description string
	Category    enums.EventCategory
	EventDate   time.Time
	EventTime   string
	ImageURL    *string
	VenueName   string
	VenueCity   string
	Tiers       []TierInput
}

// UpdateEventInput carries the metadata fields an admin may change after
// creation. Stock fields are deliberately absent.
type UpdateEventInput struct {
	Name        *string
	Description *string
	Category    *enums.EventCategory
	EventDate   *time.Time
	EventTime   *string
	ImageURL    *string
	VenueName   *string
	VenueCity   *string
}

// Service manages the event catalog.
type Service interface {
	Create(ctx context.Context, input CreateEventInput) (*models.Event, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Event, error)
	List(ctx context.Context) ([]models.Event, error)
	UpdateMeta(ctx context.Context, id uuid.UUID, input UpdateEventInput) (*models.Event, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type service struct {
	tx      txRunner
	repo    Repository
	emitter deltaEmitter
	cache   cacheDropper
	logg    *logger.Logger
}

// NewService builds the catalog service.
func NewService(tx txRunner, repo Repository, emitter deltaEmitter, cache cacheDropper, logg *logger.Logger) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("event repository required")
	}
	if emitter == nil {
		return nil, fmt.Errorf("delta emitter required")
	}
	if cache == nil {
		return nil, fmt.Errorf("stock cache required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{tx: tx, repo: repo, emitter: emitter, cache: cache, logg: logg}, nil
}

// Create persists the event with its tiers and queues the opening stock
// counts, so caches and subscribers learn about the new tiers the same way
// they learn about purchases.
func (s *service) Create(ctx context.Context, input CreateEventInput) (*models.Event, error) {
	if err := validateCreate(input); err != nil {
		return nil, err
	}

	event := &models.Event{
		ID:          uuid.New(),
		Name:        strings.TrimSpace(input.Name),
		Description: input.Description,
		Category:    input.Category,
		EventDate:   input.EventDate,
		EventTime:   input.EventTime,
		ImageURL:    input.ImageURL,
		VenueName:   input.VenueName,
		VenueCity:   input.VenueCity,
	}
	for _, tier := range input.Tiers {
		event.Tiers = append(event.Tiers, models.TicketTier{
			ID:             uuid.New(),
			EventID:        event.ID,
			Name:           strings.TrimSpace(tier.Name),
			Price:          tier.Price,
			Benefits:       tier.Benefits,
			TotalStock:     tier.TotalStock,
			AvailableStock: tier.TotalStock,
		})
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Create(ctx, event); err != nil {
			return err
		}
		for _, tier := range event.Tiers {
			if err := s.emitter.Emit(ctx, tx, types.StockDelta{
				EventID:   event.ID,
				TierID:    tier.ID,
				Remaining: tier.AvailableStock,
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logg.Info(s.logg.WithField(ctx, "event_id", event.ID.String()), "event created")
	return event, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	event, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if event == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "event not found")
	}
	return event, nil
}

func (s *service) List(ctx context.Context) ([]models.Event, error) {
	return s.repo.List(ctx)
}

func (s *service) UpdateMeta(ctx context.Context, id uuid.UUID, input UpdateEventInput) (*models.Event, error) {
	fields := map[string]any{}
	if input.Name != nil {
		if strings.TrimSpace(*input.Name) == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "name cannot be empty")
		}
		fields["name"] = strings.TrimSpace(*input.Name)
	}
	if input.Description != nil {
		fields["description"] = *input.Description
	}
	if input.Category != nil {
		if !input.Category.IsValid() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown event category")
		}
		fields["category"] = *input.Category
	}
	if input.EventDate != nil {
		fields["event_date"] = *input.EventDate
	}
	if input.EventTime != nil {
		fields["event_time"] = *input.EventTime
	}
	if input.ImageURL != nil {
		fields["image_url"] = *input.ImageURL
	}
	if input.VenueName != nil {
		fields["venue_name"] = *input.VenueName
	}
	if input.VenueCity != nil {
		fields["venue_city"] = *input.VenueCity
	}

	if len(fields) > 0 {
		updated, err := s.repo.UpdateMeta(ctx, id, fields)
		if err != nil {
			return nil, err
		}
		if !updated {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "event not found")
		}
	}
	return s.Get(ctx, id)
}

// Delete removes the event, its tiers and transactions, then drops the cached
// counts so stale numbers cannot be served for a dead event.
func (s *service) Delete(ctx context.Context, id uuid.UUID) error {
	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if existing == nil {
		return pkgerrors.New(pkgerrors.CodeNotFound, "event not found")
	}

	// drop cache keys while the tier rows still exist
	if err := s.cache.DropEvent(ctx, id); err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "dropping stock cache for deleted event")
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return s.repo.WithTx(tx).Delete(ctx, id)
	})
	if err != nil {
		return err
	}

	s.logg.Info(s.logg.WithField(ctx, "event_id", id.String()), "event deleted")
	return nil
}

func validateCreate(input CreateEventInput) error {
	if strings.TrimSpace(input.Name) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}
	if !input.Category.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "unknown event category")
	}
	if input.EventDate.IsZero() {
		return pkgerrors.New(pkgerrors.CodeValidation, "event date is required")
	}
	if len(input.Tiers) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "at least one ticket tier is required")
	}
	for _, tier := range input.Tiers {
		if strings.TrimSpace(tier.Name) == "" {
			return pkgerrors.New(pkgerrors.CodeValidation, "tier name is required")
		}
		if tier.TotalStock < 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "tier stock cannot be negative")
		}
		if tier.Price.IsNegative() {
			return pkgerrors.New(pkgerrors.CodeValidation, "tier price cannot be negative")
		}
	}
	return nil
}
