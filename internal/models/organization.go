package models

import (
	"time"
)

// Organization is a tenant of the platform.
type Organization struct {
	ID                  string
	Name                string
	Email               string
	Phone               *string
	Address             *string
	Country             *string
	State               *string
	City                *string
	OnboardingCompleted bool
	Status              string // "active", "suspended"
	SchoolLevels        []SchoolLevel
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// SchoolLevel is one grade band offered by an organization.
type SchoolLevel struct {
	ID             string
	OrganizationID string
	Level          string
	IsActive       bool
	CreatedAt      time.Time
}

// OnboardingLink is a single-use invite URL for an organization to complete
// its onboarding flow.
type OnboardingLink struct {
	ID             string
	OrganizationID string
	Token          string
	URL            string
	IsActive       bool
	ExpiresAt      time.Time
	UsedAt         *time.Time
	CreatedAt      time.Time
}
