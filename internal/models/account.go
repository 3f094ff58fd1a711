package models

import (
	"time"
)

// Account represents a registered principal in the auth store.
type Account struct {
	ID             string
	Email          string
	PasswordHash   string // never serialized; stripped before crossing the service boundary
	Name           string
	OrganizationID *string // nullable; accounts may exist before joining an organization
	Role           string  // e.g., "user", "admin"
	SchoolLevels   []string
	Permissions    []string
	IsActive       bool
	LastLogin      *time.Time
	FailedAttempts int
	LockedUntil    *time.Time // temporary lockout expiration
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Sanitized returns a copy of the account with the password hash stripped.
// Service results are built from this copy so the hash can never leak into
// a response payload.
func (a *Account) Sanitized() *Account {
	clone := *a
	clone.PasswordHash = ""
	return &clone
}
