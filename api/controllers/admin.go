package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/ticketblitz/ticketblitz-backend/api/responses"
	"github.com/ticketblitz/ticketblitz-backend/api/validators"
	purchasesvc "github.com/ticketblitz/ticketblitz-backend/internal/purchase"
	resyncsvc "github.com/ticketblitz/ticketblitz-backend/internal/resync"
	pkgerrors "github.com/ticketblitz/ticketblitz-backend/pkg/errors"
	"github.com/ticketblitz/ticketblitz-backend/pkg/logger"
)

// AdminStockResync rebuilds every tier's availability from the transaction
// log and returns the drift report.
func AdminStockResync(svc resyncsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "resync service unavailable"))
			return
		}

		report, err := svc.ResyncAll(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if report == nil {
			report = []resyncsvc.ReportEntry{}
		}
		responses.WriteSuccess(w, map[string]any{
			"drifted": len(report),
			"report":  report,
		})
	}
}

// AdminStockInit force-sets one tier's availability.
func AdminStockInit(svc resyncsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "resync service unavailable"))
			return
		}

		var payload stockInitRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		entry, err := svc.ForceSet(r.Context(), payload.EventID, payload.TierID, payload.Quantity)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, entry)
	}
}

// AdminRefund cancels a transaction and returns its tickets to the pool.
// Refunding an already-cancelled transaction returns the record unchanged.
func AdminRefund(svc purchasesvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "purchase service unavailable"))
			return
		}

		transactionID, err := parseUUIDParam(r, "transactionId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		record, err := svc.Refund(r.Context(), transactionID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newTransactionResponse(record))
	}
}

// AdminTransactionPurge deletes a transaction outright, restoring its
// tickets first if it was still confirmed.
func AdminTransactionPurge(svc purchasesvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "purchase service unavailable"))
			return
		}

		transactionID, err := parseUUIDParam(r, "transactionId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Purge(r.Context(), transactionID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "purged"})
	}
}

// AdminTransactionList returns the full transaction log, newest first.
func AdminTransactionList(svc purchasesvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "purchase service unavailable"))
			return
		}

		records, err := svc.ListAll(r.Context())
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

// AdminStats summarises sales across the marketplace.
func AdminStats(svc purchasesvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "purchase service unavailable"))
			return
		}

		stats, err := svc.Stats(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, stats)
	}
}

type stockInitRequest struct {
	EventID  uuid.UUID `json:"event_id" validate:"required"`
	TierID   uuid.UUID `json:"tier_id" validate:"required"`
	Quantity int       `json:"quantity" validate:"min=0"`
}
