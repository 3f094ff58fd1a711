package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"gatehouse/internal/models"
	"gatehouse/internal/services"
	pkghttp "gatehouse/pkg/http"
)

// OrganizationServiceInterface defines the interface for tenant logic
type OrganizationServiceInterface interface {
	Create(ctx context.Context, params services.CreateOrganizationParams) (*models.Organization, error)
	List(ctx context.Context) ([]*models.Organization, error)
	Get(ctx context.Context, id string) (*models.Organization, error)
	Update(ctx context.Context, id string, params services.UpdateOrganizationParams) (*models.Organization, error)
	Delete(ctx context.Context, id string) error
	GenerateOnboardingLink(ctx context.Context, organizationID string) (*services.OnboardingLinkResponse, error)
	GetByOnboardingToken(ctx context.Context, token string) (*models.Organization, error)
	CompleteOnboarding(ctx context.Context, token string) (*models.Organization, error)
}

// OrganizationHandler handles organization HTTP requests
type OrganizationHandler struct {
	service OrganizationServiceInterface
}

// NewOrganizationHandler creates a new OrganizationHandler
func NewOrganizationHandler(service OrganizationServiceInterface) *OrganizationHandler {
	return &OrganizationHandler{service: service}
}

// CreateOrganizationRequest represents the request body for tenant creation
type CreateOrganizationRequest struct {
	Name         string   `json:"name" validate:"required,min=1,max=255"`
	Email        string   `json:"email" validate:"required,email"`
	Phone        *string  `json:"phone,omitempty"`
	Address      *string  `json:"address,omitempty"`
	Country      *string  `json:"country,omitempty"`
	State        *string  `json:"state,omitempty"`
	City         *string  `json:"city,omitempty"`
	SchoolLevels []string `json:"school_levels,omitempty" validate:"omitempty,dive,oneof=creche primary secondary tertiary"`
}

// UpdateOrganizationRequest represents the request body for tenant updates
type UpdateOrganizationRequest struct {
	Name                *string `json:"name,omitempty" validate:"omitempty,min=1,max=255"`
	Email               *string `json:"email,omitempty" validate:"omitempty,email"`
	Phone               *string `json:"phone,omitempty"`
	Address             *string `json:"address,omitempty"`
	Country             *string `json:"country,omitempty"`
	State               *string `json:"state,omitempty"`
	City                *string `json:"city,omitempty"`
	OnboardingCompleted *bool   `json:"onboarding_completed,omitempty"`
	Status              *string `json:"status,omitempty" validate:"omitempty,oneof=active suspended"`
}

// SchoolLevelResponse represents one grade band in responses
type SchoolLevelResponse struct {
	ID       string `json:"id"`
	Level    string `json:"level"`
	IsActive bool   `json:"is_active"`
}

// OrganizationResponse represents an organization in responses
type OrganizationResponse struct {
	ID                  string                `json:"id"`
	Name                string                `json:"name"`
	Email               string                `json:"email"`
	Phone               *string               `json:"phone,omitempty"`
	Address             *string               `json:"address,omitempty"`
	Country             *string               `json:"country,omitempty"`
	State               *string               `json:"state,omitempty"`
	City                *string               `json:"city,omitempty"`
	OnboardingCompleted bool                  `json:"onboarding_completed"`
	Status              string                `json:"status"`
	SchoolLevels        []SchoolLevelResponse `json:"school_levels"`
	CreatedAt           string                `json:"created_at"`
	UpdatedAt           string                `json:"updated_at"`
}

func organizationToResponse(org *models.Organization) *OrganizationResponse {
	levels := make([]SchoolLevelResponse, 0, len(org.SchoolLevels))
	for _, sl := range org.SchoolLevels {
		levels = append(levels, SchoolLevelResponse{
			ID:       sl.ID,
			Level:    sl.Level,
			IsActive: sl.IsActive,
		})
	}

	return &OrganizationResponse{
		ID:                  org.ID,
		Name:                org.Name,
		Email:               org.Email,
		Phone:               org.Phone,
		Address:             org.Address,
		Country:             org.Country,
		State:               org.State,
		City:                org.City,
		OnboardingCompleted: org.OnboardingCompleted,
		Status:              org.Status,
		SchoolLevels:        levels,
		CreatedAt:           org.CreatedAt.Format(time.RFC3339),
		UpdatedAt:           org.UpdatedAt.Format(time.RFC3339),
	}
}

// Create handles tenant creation
func (h *OrganizationHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateOrganizationRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	org, err := h.service.Create(r.Context(), services.CreateOrganizationParams{
		Name:         req.Name,
		Email:        req.Email,
		Phone:        req.Phone,
		Address:      req.Address,
		Country:      req.Country,
		State:        req.State,
		City:         req.City,
		SchoolLevels: req.SchoolLevels,
	})
	if err != nil {
		if errors.Is(err, models.ErrDuplicateEmail) {
			pkghttp.WriteConflict(w, "An organization with this email already exists")
			return
		}
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	pkghttp.WriteJSON(w, http.StatusCreated, organizationToResponse(org))
}

// List returns all organizations
func (h *OrganizationHandler) List(w http.ResponseWriter, r *http.Request) {
	orgs, err := h.service.List(r.Context())
	if err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	resp := make([]*OrganizationResponse, 0, len(orgs))
	for _, org := range orgs {
		resp = append(resp, organizationToResponse(org))
	}

	pkghttp.WriteJSON(w, http.StatusOK, resp)
}

// Get returns one organization by id
func (h *OrganizationHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	org, err := h.service.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			pkghttp.WriteNotFound(w, "Organization not found")
			return
		}
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, organizationToResponse(org))
}

// Update applies partial changes to an organization
func (h *OrganizationHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req UpdateOrganizationRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	org, err := h.service.Update(r.Context(), id, services.UpdateOrganizationParams{
		Name:                req.Name,
		Email:               req.Email,
		Phone:               req.Phone,
		Address:             req.Address,
		Country:             req.Country,
		State:               req.State,
		City:                req.City,
		OnboardingCompleted: req.OnboardingCompleted,
		Status:              req.Status,
	})
	if err != nil {
		switch {
		case errors.Is(err, models.ErrNotFound):
			pkghttp.WriteNotFound(w, "Organization not found")
		case errors.Is(err, models.ErrDuplicateEmail):
			pkghttp.WriteConflict(w, "An organization with this email already exists")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, organizationToResponse(org))
}

// Delete removes an organization
func (h *OrganizationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.service.Delete(r.Context(), id); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			pkghttp.WriteNotFound(w, "Organization not found")
			return
		}
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GenerateOnboardingLink issues a single-use invite URL for an organization
func (h *OrganizationHandler) GenerateOnboardingLink(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	link, err := h.service.GenerateOnboardingLink(r.Context(), id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			pkghttp.WriteNotFound(w, "Organization not found")
			return
		}
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	pkghttp.WriteJSON(w, http.StatusCreated, link)
}

// GetByOnboardingToken resolves a public onboarding token to its organization.
// Every invalid-token shape gets the same response.
func (h *OrganizationHandler) GetByOnboardingToken(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	org, err := h.service.GetByOnboardingToken(r.Context(), token)
	if err != nil {
		if errors.Is(err, models.ErrInvalidOrExpiredToken) || errors.Is(err, models.ErrNotFound) {
			pkghttp.WriteNotFound(w, "Invalid or expired onboarding link")
			return
		}
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, organizationToResponse(org))
}

// CompleteOnboarding consumes a public onboarding token and marks the
// organization as onboarded. Invalid-token shapes get the same response
// as the resolve endpoint.
func (h *OrganizationHandler) CompleteOnboarding(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	org, err := h.service.CompleteOnboarding(r.Context(), token)
	if err != nil {
		if errors.Is(err, models.ErrInvalidOrExpiredToken) || errors.Is(err, models.ErrNotFound) {
			pkghttp.WriteNotFound(w, "Invalid or expired onboarding link")
			return
		}
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, organizationToResponse(org))
}
