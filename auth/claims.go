package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Token scopes. A token carries exactly one.
const (
	ScopeAccess        = "access"
	ScopeAttendee      = "attendee"
	ScopeHost          = "host"
	ScopeOTP           = "otp"
	ScopeVerifyAccount = "verify_account"
)

// SessionScopes are the scopes minted for long lived session tokens
var SessionScopes = []string{ScopeAccess, ScopeAttendee, ScopeHost}

// Claims are the signed contents of a token
type Claims struct {
	jwt.RegisteredClaims
	Scope string `json:"scope,omitempty"`
}

// UserID returns the subject as a UUID
func (c *Claims) UserID() (uuid.UUID, error) {
	return uuid.Parse(c.Subject)
}

// Remaining is how long the token stays valid after now, zero once expired.
func (c *Claims) Remaining(now time.Time) time.Duration {
	if c.ExpiresAt == nil {
		return 0
	}
	d := c.ExpiresAt.Time.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// Lifetime is the designed validity window, exp - iat
func (c *Claims) Lifetime() time.Duration {
	if c.ExpiresAt == nil || c.IssuedAt == nil {
		return 0
	}
	return c.ExpiresAt.Time.Sub(c.IssuedAt.Time)
}

func containsScope(scopes []string, scope string) bool {
	for _, s := range scopes {
		if s == scope {
			return true
		}
	}
	return false
}
