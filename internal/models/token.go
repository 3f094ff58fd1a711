package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// RefreshToken is a long-lived opaque credential tied to one account.
// It is valid iff the row exists, is unexpired, and the account still exists.
type RefreshToken struct {
	ID        string
	AccountID string
	Token     string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// PasswordReset is a short-lived, single-use credential for resetting a
// password. Consumed rows keep their used_at stamp as an audit trail.
type PasswordReset struct {
	ID        string
	AccountID string
	Token     string
	ExpiresAt time.Time
	UsedAt    *time.Time
	CreatedAt time.Time
}

// AccessClaims are the JWT claims carried by access tokens. Subject holds
// the account id; downstream verifiers only need the shared secret.
type AccessClaims struct {
	Email          string  `json:"email"`
	OrganizationID *string `json:"organization_id,omitempty"`
	Role           string  `json:"role"`
	jwt.RegisteredClaims
}
