package auth

import (
	"github.com/golang-jwt/jwt/v5"

	"github.com/marketsideco/marketside-backend/pkg/enums"
)

// IdentityPayload captures the data available when minting a token, used by
// tests and local tooling. Production tokens come from the identity provider.
type IdentityPayload struct {
	ExternalID string
	Email      string
	Name       string
	Role       enums.UserRole
}

// IdentityClaims is the typed JWT presented by clients. The registered
// Subject carries the identity provider's stable external id.
type IdentityClaims struct {
	Email string         `json:"email"`
	Name  string         `json:"name"`
	Role  enums.UserRole `json:"role"`
	jwt.RegisteredClaims
}
