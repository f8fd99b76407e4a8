package middleware

import (
	"context"

	"github.com/ticketblitz/ticketblitz-backend/pkg/enums"
)

type contextKey string

const (
	ctxPurchaserID contextKey = "purchaser_id"
	ctxRole        contextKey = "actor_role"
)

func PurchaserFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxPurchaserID).(string); ok {
		return v
	}
	return ""
}

func RoleFromContext(ctx context.Context) enums.ActorRole {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxRole).(enums.ActorRole); ok {
		return v
	}
	return ""
}

// WithPurchaser injects the purchaser identity and role into the context.
func WithPurchaser(ctx context.Context, purchaserID string, role enums.ActorRole) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = context.WithValue(ctx, ctxPurchaserID, purchaserID)
	return context.WithValue(ctx, ctxRole, role)
}
