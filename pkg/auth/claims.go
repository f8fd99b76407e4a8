package auth

import (
	"github.com/golang-jwt/jwt/v5"

	"github.com/ticketblitz/ticketblitz-backend/pkg/enums"
)

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	PurchaserID string
	Role        enums.ActorRole
	JTI         string
}

// AccessTokenClaims represents the typed JWT presented by clients. The
// registered subject carries the purchaser identity; the service never
// resolves it to a local account.
type AccessTokenClaims struct {
	Role enums.ActorRole `json:"role"`
	jwt.RegisteredClaims
}

// PurchaserID returns the opaque purchaser identity from the token subject.
func (c *AccessTokenClaims) PurchaserID() string {
	return c.Subject
}
