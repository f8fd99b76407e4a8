package controllers

import (
	"net/http"

	"github.com/ticketblitz/ticketblitz-backend/api/responses"
	"github.com/ticketblitz/ticketblitz-backend/pkg/config"
	"github.com/ticketblitz/ticketblitz-backend/pkg/db"
	pkgerrors "github.com/ticketblitz/ticketblitz-backend/pkg/errors"
	"github.com/ticketblitz/ticketblitz-backend/pkg/logger"
	pkgredis "github.com/ticketblitz/ticketblitz-backend/pkg/redis"
)

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-TicketBlitz-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady reports ready only when both backing stores answer a ping.
func HealthReady(cfg *config.Config, logg *logger.Logger, dbP db.Pinger, redisP pkgredis.Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-TicketBlitz-Env", cfg.App.Env)

		checks := map[string]string{"database": "ok", "redis": "ok"}
		healthy := true

		if dbP == nil {
			checks["database"] = "not configured"
			healthy = false
		} else if err := dbP.Ping(r.Context()); err != nil {
			checks["database"] = "unreachable"
			healthy = false
			logFailure(r, logg, "database", err)
		}

		if redisP == nil {
			checks["redis"] = "not configured"
			healthy = false
		} else if err := redisP.Ping(r.Context()); err != nil {
			checks["redis"] = "unreachable"
			healthy = false
			logFailure(r, logg, "redis", err)
		}

		if !healthy {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.New(pkgerrors.CodeDependency, "dependencies unavailable").WithDetails(checks))
			return
		}
		responses.WriteSuccess(w, map[string]any{"status": "ready", "checks": checks})
	}
}

func logFailure(r *http.Request, logg *logger.Logger, dependency string, err error) {
	if logg == nil {
		return
	}
	ctx := logg.WithField(r.Context(), "dependency", dependency)
	logg.Error(ctx, "health.dependency_unreachable", err)
}
