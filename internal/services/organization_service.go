package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gatehouse/internal/config"
	"gatehouse/internal/models"
	pkgauth "gatehouse/pkg/auth"
)

// OrganizationRepository defines the persistence operations for organizations
type OrganizationRepository interface {
	GetByID(ctx context.Context, id string) (*models.Organization, error)
	GetByEmail(ctx context.Context, email string) (*models.Organization, error)
	List(ctx context.Context) ([]*models.Organization, error)
	Create(ctx context.Context, org *models.Organization, levels []string) (*models.Organization, error)
	Update(ctx context.Context, id string, org *models.Organization) (*models.Organization, error)
	Delete(ctx context.Context, id string) error
}

// OnboardingRepository defines onboarding-link row operations
type OnboardingRepository interface {
	Create(ctx context.Context, link *models.OnboardingLink) (*models.OnboardingLink, error)
	GetByToken(ctx context.Context, token string) (*models.OnboardingLink, error)
	MarkUsed(ctx context.Context, token string, at time.Time) error
}

const onboardingTokenLength = 64

// OrganizationService handles tenant CRUD and onboarding-link issuance
type OrganizationService struct {
	orgs       OrganizationRepository
	onboarding OnboardingRepository
	cfg        config.OrgConfig
	logger     *slog.Logger
}

// NewOrganizationService creates a new OrganizationService
func NewOrganizationService(orgs OrganizationRepository, onboarding OnboardingRepository, cfg config.OrgConfig, logger *slog.Logger) *OrganizationService {
	return &OrganizationService{
		orgs:       orgs,
		onboarding: onboarding,
		cfg:        cfg,
		logger:     logger,
	}
}

// CreateOrganizationParams are the fields accepted when creating a tenant
type CreateOrganizationParams struct {
	Name         string
	Email        string
	Phone        *string
	Address      *string
	Country      *string
	State        *string
	City         *string
	SchoolLevels []string
}

// OnboardingLinkResponse is returned when a link is issued
type OnboardingLinkResponse struct {
	URL   string `json:"url"`
	Token string `json:"token"`
}

// Create registers a new organization with its school levels
func (s *OrganizationService) Create(ctx context.Context, params CreateOrganizationParams) (*models.Organization, error) {
	_, err := s.orgs.GetByEmail(ctx, params.Email)
	if err == nil {
		s.logger.Info("organization creation failed: email already registered")
		return nil, models.ErrDuplicateEmail
	}
	if !errors.Is(err, models.ErrNotFound) {
		s.logger.Error("failed to check for existing organization", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	org := &models.Organization{
		Name:    params.Name,
		Email:   params.Email,
		Phone:   params.Phone,
		Address: params.Address,
		Country: params.Country,
		State:   params.State,
		City:    params.City,
		Status:  "active",
	}

	created, err := s.orgs.Create(ctx, org, params.SchoolLevels)
	if err != nil {
		if errors.Is(err, models.ErrConflict) {
			return nil, models.ErrDuplicateEmail
		}
		s.logger.Error("failed to create organization", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.logger.Info("organization created", slog.String("organization_id", created.ID))
	return created, nil
}

// List returns all organizations with their school levels
func (s *OrganizationService) List(ctx context.Context) ([]*models.Organization, error) {
	orgs, err := s.orgs.List(ctx)
	if err != nil {
		s.logger.Error("failed to list organizations", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	return orgs, nil
}

// Get returns one organization by id
func (s *OrganizationService) Get(ctx context.Context, id string) (*models.Organization, error) {
	org, err := s.orgs.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrNotFound
		}
		s.logger.Error("failed to get organization", slog.String("organization_id", id), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	return org, nil
}

// UpdateOrganizationParams are the mutable organization fields
type UpdateOrganizationParams struct {
	Name                *string
	Email               *string
	Phone               *string
	Address             *string
	Country             *string
	State               *string
	City                *string
	OnboardingCompleted *bool
	Status              *string
}

// Update applies the supplied fields to an existing organization
func (s *OrganizationService) Update(ctx context.Context, id string, params UpdateOrganizationParams) (*models.Organization, error) {
	org, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if params.Name != nil {
		org.Name = *params.Name
	}
	if params.Email != nil {
		org.Email = *params.Email
	}
	if params.Phone != nil {
		org.Phone = params.Phone
	}
	if params.Address != nil {
		org.Address = params.Address
	}
	if params.Country != nil {
		org.Country = params.Country
	}
	if params.State != nil {
		org.State = params.State
	}
	if params.City != nil {
		org.City = params.City
	}
	if params.OnboardingCompleted != nil {
		org.OnboardingCompleted = *params.OnboardingCompleted
	}
	if params.Status != nil {
		org.Status = *params.Status
	}

	updated, err := s.orgs.Update(ctx, id, org)
	if err != nil {
		if errors.Is(err, models.ErrConflict) {
			return nil, models.ErrDuplicateEmail
		}
		s.logger.Error("failed to update organization", slog.String("organization_id", id), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	return updated, nil
}

// Delete removes an organization
func (s *OrganizationService) Delete(ctx context.Context, id string) error {
	if err := s.orgs.Delete(ctx, id); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrNotFound
		}
		s.logger.Error("failed to delete organization", slog.String("organization_id", id), slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.logger.Info("organization deleted", slog.String("organization_id", id))
	return nil
}

// GenerateOnboardingLink issues a single-use invite URL for an organization
func (s *OrganizationService) GenerateOnboardingLink(ctx context.Context, organizationID string) (*OnboardingLinkResponse, error) {
	org, err := s.Get(ctx, organizationID)
	if err != nil {
		return nil, err
	}

	token, err := pkgauth.GenerateSecureToken(onboardingTokenLength)
	if err != nil {
		s.logger.Error("failed to generate onboarding token", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	link := &models.OnboardingLink{
		OrganizationID: org.ID,
		Token:          token,
		URL:            fmt.Sprintf("%s/onboarding/school/%s", s.cfg.FrontendURL, token),
		IsActive:       true,
		ExpiresAt:      time.Now().Add(s.cfg.OnboardingExpiry),
	}

	created, err := s.onboarding.Create(ctx, link)
	if err != nil {
		s.logger.Error("failed to persist onboarding link", slog.String("organization_id", org.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.logger.Info("onboarding link issued", slog.String("organization_id", org.ID))

	return &OnboardingLinkResponse{URL: created.URL, Token: created.Token}, nil
}

// GetByOnboardingToken resolves an onboarding token to its organization.
// Missing, inactive, expired, and used links collapse into one error kind.
func (s *OrganizationService) GetByOnboardingToken(ctx context.Context, token string) (*models.Organization, error) {
	link, err := s.onboarding.GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrInvalidOrExpiredToken
		}
		s.logger.Error("failed to look up onboarding token", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if !link.IsActive || time.Now().After(link.ExpiresAt) || link.UsedAt != nil {
		return nil, models.ErrInvalidOrExpiredToken
	}

	return s.Get(ctx, link.OrganizationID)
}

// CompleteOnboarding consumes an onboarding link and marks its organization
// as onboarded. The link is single-use; completing twice fails the second
// caller.
func (s *OrganizationService) CompleteOnboarding(ctx context.Context, token string) (*models.Organization, error) {
	org, err := s.GetByOnboardingToken(ctx, token)
	if err != nil {
		return nil, err
	}

	if err := s.onboarding.MarkUsed(ctx, token, time.Now()); err != nil {
		s.logger.Error("failed to mark onboarding link used", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	completed := true
	updated, err := s.Update(ctx, org.ID, UpdateOrganizationParams{OnboardingCompleted: &completed})
	if err != nil {
		return nil, err
	}

	s.logger.Info("organization onboarding completed", slog.String("organization_id", org.ID))
	return updated, nil
}
