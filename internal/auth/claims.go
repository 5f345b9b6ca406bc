package auth

import (
	"slices"
	"time"

	"github.com/asylumproject/asylum-server/internal/domain"
)

// AccessClaims represents the claims stored in a PASETO access token.
// These are encrypted in v4.local tokens, so they're not readable without the key.
type AccessClaims struct {
	UserID      int64               `json:"user_id"`
	Username    string              `json:"username"`
	SessionID   string              `json:"sid"`
	Permissions []domain.Permission `json:"permissions"`

	// Standard PASETO claims
	Issuer     string    `json:"iss"`
	Subject    string    `json:"sub"`
	Audience   string    `json:"aud"`
	Expiration time.Time `json:"exp"`
	NotBefore  time.Time `json:"nbf"`
	IssuedAt   time.Time `json:"iat"`
	TokenID    string    `json:"jti"`
}

// Has reports whether the token grants the permission.
func (c *AccessClaims) Has(p domain.Permission) bool {
	return slices.Contains(c.Permissions, p)
}

// HasAny reports whether the token grants at least one of the permissions.
func (c *AccessClaims) HasAny(perms ...domain.Permission) bool {
	return slices.ContainsFunc(perms, c.Has)
}

// ClientInfo describes where a sign-in came from. It is stored on the session.
type ClientInfo struct {
	IPAddress string
	UserAgent string
}
