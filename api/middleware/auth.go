package middleware

import (
	"net/http"
	"strings"

	"github.com/ticketblitz/ticketblitz-backend/api/responses"
	pkgAuth "github.com/ticketblitz/ticketblitz-backend/pkg/auth"
	"github.com/ticketblitz/ticketblitz-backend/pkg/config"
	"github.com/ticketblitz/ticketblitz-backend/pkg/enums"
	pkgerrors "github.com/ticketblitz/ticketblitz-backend/pkg/errors"
	"github.com/ticketblitz/ticketblitz-backend/pkg/logger"
)

// Auth validates a bearer token and seeds the request context with the
// purchaser identity carried in the claims. The identity is opaque to this
// service; tokens come from the upstream identity provider.
func Auth(cfg config.JWTConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimSpace(r.Header.Get("Authorization"))
			if raw == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			token := raw
			if strings.HasPrefix(strings.ToLower(token), "bearer ") {
				token = strings.TrimSpace(token[7:])
			}
			if token == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			claims, err := pkgAuth.ParseAccessToken(cfg, token)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
				return
			}

			role := claims.Role
			if !role.IsValid() {
				role = enums.ActorRoleUser
			}

			ctx := WithPurchaser(r.Context(), claims.PurchaserID(), role)

			if logg != nil {
				ctx = logg.WithFields(ctx, map[string]any{
					"purchaser_id": claims.PurchaserID(),
					"actor_role":   role.String(),
				})
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
