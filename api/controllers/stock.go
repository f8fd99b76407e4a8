package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ticketblitz/ticketblitz-backend/api/middleware"
	"github.com/ticketblitz/ticketblitz-backend/api/responses"
	"github.com/ticketblitz/ticketblitz-backend/api/validators"
	"github.com/ticketblitz/ticketblitz-backend/internal/ledger"
	purchasesvc "github.com/ticketblitz/ticketblitz-backend/internal/purchase"
	"github.com/ticketblitz/ticketblitz-backend/pkg/db/models"
	pkgerrors "github.com/ticketblitz/ticketblitz-backend/pkg/errors"
	"github.com/ticketblitz/ticketblitz-backend/pkg/logger"
)

// StockPurchase reserves and confirms tickets in one atomic step. Replays of
// the same client_ref return the original transaction.
func StockPurchase(svc purchasesvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "purchase service unavailable"))
			return
		}

		purchaserID := middleware.PurchaserFromContext(r.Context())
		if purchaserID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "purchaser context missing"))
			return
		}

		var payload purchaseRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		record, err := svc.Purchase(r.Context(), purchasesvc.PurchaseInput{
			EventID:   payload.EventID,
			TierID:    payload.TierID,
			Purchaser: purchaserID,
			Quantity:  payload.Quantity,
			ClientRef: validators.SanitizeString(payload.ClientRef, 128),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newTransactionResponse(record))
	}
}

// StockCount answers the remaining count for one tier, cache first.
func StockCount(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ledger service unavailable"))
			return
		}

		eventID, err := parseUUIDParam(r, "eventId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		tierID, err := parseUUIDParam(r, "tierId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		remaining, err := svc.TierAvailability(r.Context(), eventID, tierID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"event_id":  eventID,
			"tier_id":   tierID,
			"remaining": remaining,
		})
	}
}

// EventAvailability answers remaining counts for every tier of an event.
func EventAvailability(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ledger service unavailable"))
			return
		}

		eventID, err := parseUUIDParam(r, "eventId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		tiers, err := svc.EventAvailability(r.Context(), eventID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"event_id": eventID,
			"tiers":    tiers,
		})
	}
}

// MyTickets lists the caller's transactions, newest first.
func MyTickets(svc purchasesvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "purchase service unavailable"))
			return
		}

		purchaserID := middleware.PurchaserFromContext(r.Context())
		if purchaserID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "purchaser context missing"))
			return
		}

		records, err := svc.ListByPurchaser(r.Context(), purchaserID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out := make([]transactionResponse, 0, len(records))
		for i := range records {
			out = append(out, newTransactionResponse(&records[i]))
		}
		responses.WriteSuccess(w, out)
	}
}

type purchaseRequest struct {
	EventID   uuid.UUID `json:"event_id" validate:"required"`
	TierID    uuid.UUID `json:"tier_id" validate:"required"`
	Quantity  int       `json:"quantity" validate:"required"`
	ClientRef string    `json:"client_ref" validate:"required"`
}

type transactionResponse struct {
	ID          uuid.UUID       `json:"id"`
	EventID     uuid.UUID       `json:"event_id"`
	TierID      uuid.UUID       `json:"tier_id"`
	TierName    string          `json:"tier_name"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Reference   string          `json:"reference"`
	ClientRef   string          `json:"client_ref"`
	Status      string          `json:"status"`
	CreatedAt   time.Time       `json:"created_at"`
	CancelledAt *time.Time      `json:"cancelled_at,omitempty"`
}

func newTransactionResponse(record *models.Transaction) transactionResponse {
	if record == nil {
		return transactionResponse{}
	}
	return transactionResponse{
		ID:          record.ID,
		EventID:     record.EventID,
		TierID:      record.TierID,
		TierName:    record.TierName,
		Quantity:    record.Quantity,
		UnitPrice:   record.UnitPrice,
		TotalAmount: record.TotalAmount,
		Reference:   record.Reference,
		ClientRef:   record.ClientRef,
		Status:      record.Status.String(),
		CreatedAt:   record.CreatedAt,
		CancelledAt: record.CancelledAt,
	}
}
