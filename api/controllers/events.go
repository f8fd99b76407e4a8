package controllers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ticketblitz/ticketblitz-backend/api/responses"
	"github.com/ticketblitz/ticketblitz-backend/api/validators"
	eventsvc "github.com/ticketblitz/ticketblitz-backend/internal/events"
	"github.com/ticketblitz/ticketblitz-backend/pkg/db/models"
	"github.com/ticketblitz/ticketblitz-backend/pkg/enums"
	pkgerrors "github.com/ticketblitz/ticketblitz-backend/pkg/errors"
	"github.com/ticketblitz/ticketblitz-backend/pkg/logger"
)

// EventList returns the public event catalog ordered by date.
func EventList(svc eventsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "event service unavailable"))
			return
		}

		events, err := svc.List(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out := make([]eventResponse, 0, len(events))
		for i := range events {
			out = append(out, newEventResponse(&events[i]))
		}
		responses.WriteSuccess(w, out)
	}
}

// EventDetail returns one event with its tiers.
func EventDetail(svc eventsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "event service unavailable"))
			return
		}

		eventID, err := parseUUIDParam(r, "eventId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		event, err := svc.Get(r.Context(), eventID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newEventResponse(event))
	}
}

// AdminEventCreate lists a new event with its ticket tiers.
func AdminEventCreate(svc eventsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "event service unavailable"))
			return
		}

		var payload createEventRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input, err := payload.toInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		event, err := svc.Create(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newEventResponse(event))
	}
}

// AdminEventUpdate edits non-stock event metadata.
func AdminEventUpdate(svc eventsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "event service unavailable"))
			return
		}

		eventID, err := parseUUIDParam(r, "eventId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload updateEventRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input, err := payload.toInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		event, err := svc.UpdateMeta(r.Context(), eventID, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newEventResponse(event))
	}
}

// AdminEventDelete removes an event, its tiers, and their history.
func AdminEventDelete(svc eventsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "event service unavailable"))
			return
		}

		eventID, err := parseUUIDParam(r, "eventId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Delete(r.Context(), eventID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "deleted"})
	}
}

type createEventRequest struct {
	Name        string             `json:"name" validate:"required"`
	Description string             `json:"description"`
	Category    string             `json:"category" validate:"required"`
	EventDate   time.Time          `json:"event_date" validate:"required"`
	EventTime   string             `json:"event_time"`
	ImageURL    *string            `json:"image_url"`
	VenueName   string             `json:"venue_name"`
	VenueCity   string             `json:"venue_city"`
	Tiers       []tierPayload      `json:"tiers" validate:"required,min=1,dive"`
}

type tierPayload struct {
	Name       string          `json:"name" validate:"required"`
	Price      decimal.Decimal `json:"price"`
	Benefits   string          `json:"benefits"`
	TotalStock int             `json:"total_stock" validate:"min=0"`
}

func (req createEventRequest) toInput() (eventsvc.CreateEventInput, error) {
	category, err := enums.ParseEventCategory(req.Category)
	if err != nil {
		return eventsvc.CreateEventInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid event category")
	}

	tiers := make([]eventsvc.TierInput, 0, len(req.Tiers))
	for _, tier := range req.Tiers {
		tiers = append(tiers, eventsvc.TierInput{
			Name:       validators.SanitizeString(tier.Name, 120),
			Price:      tier.Price,
			Benefits:   validators.SanitizeString(tier.Benefits, 500),
			TotalStock: tier.TotalStock,
		})
	}

	return eventsvc.CreateEventInput{
		Name:        validators.SanitizeString(req.Name, 200),
		Description: validators.SanitizeString(req.Description, 2000),
		Category:    category,
		EventDate:   req.EventDate,
		EventTime:   validators.SanitizeString(req.EventTime, 40),
		ImageURL:    req.ImageURL,
		VenueName:   validators.SanitizeString(req.VenueName, 200),
		VenueCity:   validators.SanitizeString(req.VenueCity, 120),
		Tiers:       tiers,
	}, nil
}

type updateEventRequest struct {
	Name        *string    `json:"name"`
	Description *string    `json:"description"`
	Category    *string    `json:"category"`
	EventDate   *time.Time `json:"event_date"`
	EventTime   *string    `json:"event_time"`
	ImageURL    *string    `json:"image_url"`
	VenueName   *string    `json:"venue_name"`
	VenueCity   *string    `json:"venue_city"`
}

func (req updateEventRequest) toInput() (eventsvc.UpdateEventInput, error) {
	input := eventsvc.UpdateEventInput{
		Name:        req.Name,
		Description: req.Description,
		EventDate:   req.EventDate,
		EventTime:   req.EventTime,
		ImageURL:    req.ImageURL,
		VenueName:   req.VenueName,
		VenueCity:   req.VenueCity,
	}
	if req.Category != nil {
		category, err := enums.ParseEventCategory(*req.Category)
		if err != nil {
			return eventsvc.UpdateEventInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid event category")
		}
		input.Category = &category
	}
	return input, nil
}

type eventResponse struct {
	ID          uuid.UUID      `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Category    string         `json:"category"`
	EventDate   time.Time      `json:"event_date"`
	EventTime   string         `json:"event_time,omitempty"`
	ImageURL    *string        `json:"image_url,omitempty"`
	VenueName   string         `json:"venue_name,omitempty"`
	VenueCity   string         `json:"venue_city,omitempty"`
	Tiers       []tierResponse `json:"tiers,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

type tierResponse struct {
	ID             uuid.UUID       `json:"id"`
	Name           string          `json:"name"`
	Price          decimal.Decimal `json:"price"`
	Benefits       string          `json:"benefits,omitempty"`
	TotalStock     int             `json:"total_stock"`
	AvailableStock int             `json:"available_stock"`
}

func newEventResponse(event *models.Event) eventResponse {
	if event == nil {
		return eventResponse{}
	}
	tiers := make([]tierResponse, 0, len(event.Tiers))
	for _, tier := range event.Tiers {
		tiers = append(tiers, tierResponse{
			ID:             tier.ID,
			Name:           tier.Name,
			Price:          tier.Price,
			Benefits:       tier.Benefits,
			TotalStock:     tier.TotalStock,
			AvailableStock: tier.AvailableStock,
		})
	}
	return eventResponse{
		ID:          event.ID,
		Name:        event.Name,
		Description: event.Description,
		Category:    event.Category.String(),
		EventDate:   event.EventDate,
		EventTime:   event.EventTime,
		ImageURL:    event.ImageURL,
		VenueName:   event.VenueName,
		VenueCity:   event.VenueCity,
		Tiers:       tiers,
		CreatedAt:   event.CreatedAt,
	}
}

func parseUUIDParam(r *http.Request, name string) (uuid.UUID, error) {
	raw := chi.URLParam(r, name)
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid "+name)
	}
	return id, nil
}
