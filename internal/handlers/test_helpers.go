package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"

	"gatehouse/internal/auth"
	"gatehouse/internal/models"
	"gatehouse/internal/services"
	pkghttp "gatehouse/pkg/http"
)

// MockAuthService implements AuthServiceInterface for testing
type MockAuthService struct {
	LoginFunc          func(ctx context.Context, email, password, ipAddress string) (*services.AuthResponse, error)
	RegisterFunc       func(ctx context.Context, params services.RegisterParams) (*services.AuthResponse, error)
	RefreshFunc        func(ctx context.Context, refreshToken string) (*services.RefreshResponse, error)
	LogoutFunc         func(ctx context.Context, accountID, refreshToken string) error
	ForgotPasswordFunc func(ctx context.Context, email string) error
	ResetPasswordFunc  func(ctx context.Context, token, newPassword string) error
	MeFunc             func(ctx context.Context, accountID string) (*services.AccountResponse, error)
}

func (m *MockAuthService) Login(ctx context.Context, email, password, ipAddress string) (*services.AuthResponse, error) {
	if m.LoginFunc != nil {
		return m.LoginFunc(ctx, email, password, ipAddress)
	}
	return nil, models.ErrInvalidCredentials
}

func (m *MockAuthService) Register(ctx context.Context, params services.RegisterParams) (*services.AuthResponse, error) {
	if m.RegisterFunc != nil {
		return m.RegisterFunc(ctx, params)
	}
	return nil, models.ErrInternalServer
}

func (m *MockAuthService) Refresh(ctx context.Context, refreshToken string) (*services.RefreshResponse, error) {
	if m.RefreshFunc != nil {
		return m.RefreshFunc(ctx, refreshToken)
	}
	return nil, models.ErrInvalidOrExpiredToken
}

func (m *MockAuthService) Logout(ctx context.Context, accountID, refreshToken string) error {
	if m.LogoutFunc != nil {
		return m.LogoutFunc(ctx, accountID, refreshToken)
	}
	return nil
}

func (m *MockAuthService) ForgotPassword(ctx context.Context, email string) error {
	if m.ForgotPasswordFunc != nil {
		return m.ForgotPasswordFunc(ctx, email)
	}
	return nil
}

func (m *MockAuthService) ResetPassword(ctx context.Context, token, newPassword string) error {
	if m.ResetPasswordFunc != nil {
		return m.ResetPasswordFunc(ctx, token, newPassword)
	}
	return models.ErrInvalidOrExpiredToken
}

func (m *MockAuthService) Me(ctx context.Context, accountID string) (*services.AccountResponse, error) {
	if m.MeFunc != nil {
		return m.MeFunc(ctx, accountID)
	}
	return nil, models.ErrAccountNotFound
}

// MockOrganizationService implements OrganizationServiceInterface for testing
type MockOrganizationService struct {
	CreateFunc                 func(ctx context.Context, params services.CreateOrganizationParams) (*models.Organization, error)
	ListFunc                   func(ctx context.Context) ([]*models.Organization, error)
	GetFunc                    func(ctx context.Context, id string) (*models.Organization, error)
	UpdateFunc                 func(ctx context.Context, id string, params services.UpdateOrganizationParams) (*models.Organization, error)
	DeleteFunc                 func(ctx context.Context, id string) error
	GenerateOnboardingLinkFunc func(ctx context.Context, organizationID string) (*services.OnboardingLinkResponse, error)
	GetByOnboardingTokenFunc   func(ctx context.Context, token string) (*models.Organization, error)
	CompleteOnboardingFunc     func(ctx context.Context, token string) (*models.Organization, error)
}

func (m *MockOrganizationService) Create(ctx context.Context, params services.CreateOrganizationParams) (*models.Organization, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, params)
	}
	return nil, models.ErrInternalServer
}

func (m *MockOrganizationService) List(ctx context.Context) ([]*models.Organization, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx)
	}
	return []*models.Organization{}, nil
}

func (m *MockOrganizationService) Get(ctx context.Context, id string) (*models.Organization, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockOrganizationService) Update(ctx context.Context, id string, params services.UpdateOrganizationParams) (*models.Organization, error) {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, id, params)
	}
	return nil, models.ErrNotFound
}

func (m *MockOrganizationService) Delete(ctx context.Context, id string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, id)
	}
	return nil
}

func (m *MockOrganizationService) GenerateOnboardingLink(ctx context.Context, organizationID string) (*services.OnboardingLinkResponse, error) {
	if m.GenerateOnboardingLinkFunc != nil {
		return m.GenerateOnboardingLinkFunc(ctx, organizationID)
	}
	return nil, models.ErrNotFound
}

func (m *MockOrganizationService) GetByOnboardingToken(ctx context.Context, token string) (*models.Organization, error) {
	if m.GetByOnboardingTokenFunc != nil {
		return m.GetByOnboardingTokenFunc(ctx, token)
	}
	return nil, models.ErrInvalidOrExpiredToken
}

func (m *MockOrganizationService) CompleteOnboarding(ctx context.Context, token string) (*models.Organization, error) {
	if m.CompleteOnboardingFunc != nil {
		return m.CompleteOnboardingFunc(ctx, token)
	}
	return nil, models.ErrInvalidOrExpiredToken
}

// NewTestRequest creates an HTTP request with a JSON body for testing
func NewTestRequest(t *testing.T, method, url string, body interface{}) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, url, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// WithAuthContext injects access claims for testing bearer-guarded endpoints
func WithAuthContext(req *http.Request, accountID, email, role string) *http.Request {
	claims := &models.AccessClaims{
		Email: email,
		Role:  role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject: accountID,
		},
	}
	ctx := context.WithValue(req.Context(), auth.ClaimsContextKey, claims)
	return req.WithContext(ctx)
}

// WithURLParam injects a chi route parameter so handlers can be called
// without a router
func WithURLParam(req *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

// AssertJSONResponse checks status and decodes the JSON body into target
func AssertJSONResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, target interface{}) {
	t.Helper()

	assert.Equal(t, expectedStatus, w.Code, "response status mismatch")
	assert.Contains(t, w.Header().Get("Content-Type"), "application/json")

	if target != nil {
		if err := json.Unmarshal(w.Body.Bytes(), target); err != nil {
			t.Fatalf("failed to decode response body: %v", err)
		}
	}
}

// AssertErrorResponse checks status and the machine-readable error code
func AssertErrorResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, expectedCode string) {
	t.Helper()

	assert.Equal(t, expectedStatus, w.Code, "response status mismatch")

	var resp pkghttp.ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	assert.Equal(t, expectedCode, resp.Error)
}
