package controllers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/ticketblitz/ticketblitz-backend/api/responses"
	"github.com/ticketblitz/ticketblitz-backend/internal/stream"
	"github.com/ticketblitz/ticketblitz-backend/pkg/config"
	pkgerrors "github.com/ticketblitz/ticketblitz-backend/pkg/errors"
	"github.com/ticketblitz/ticketblitz-backend/pkg/logger"
)

// StockStream serves an event's stock changes over SSE. The client first
// receives a snapshot of every tier, then one delta event per committed
// change; each delta carries the absolute remaining count, so the client
// overwrites rather than accumulates.
func StockStream(hub *stream.Hub, cfg config.StreamConfig, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if hub == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "stream hub unavailable"))
			return
		}

		eventID, err := parseUUIDParam(r, "eventId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		flusher, ok := w.(http.Flusher)
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "streaming unsupported"))
			return
		}

		sub, err := hub.Subscribe(r.Context(), eventID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		defer sub.Close()

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)

		if err := writeSSE(w, "snapshot", sub.Snapshot); err != nil {
			return
		}
		flusher.Flush()

		heartbeat := cfg.HeartbeatInterval
		if heartbeat <= 0 {
			heartbeat = 15 * time.Second
		}
		ticker := time.NewTicker(heartbeat)
		defer ticker.Stop()

		for {
			select {
			case <-r.Context().Done():
				return
			case delta, open := <-sub.Deltas():
				if !open {
					return
				}
				if err := writeSSE(w, "delta", delta); err != nil {
					return
				}
				flusher.Flush()
			case <-ticker.C:
				// comment line keeps proxies from reaping an idle stream
				if _, err := fmt.Fprint(w, ": heartbeat\n\n"); err != nil {
					return
				}
				flusher.Flush()
			}
		}
	}
}

func writeSSE(w http.ResponseWriter, event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	return err
}
