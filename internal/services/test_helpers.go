package services

import (
	"context"
	"time"

	"gatehouse/internal/models"
)

// MockAccountRepository implements AccountRepository for testing
type MockAccountRepository struct {
	GetByIDFunc             func(ctx context.Context, id string) (*models.Account, error)
	GetByEmailFunc          func(ctx context.Context, email string) (*models.Account, error)
	CreateFunc              func(ctx context.Context, account *models.Account) (*models.Account, error)
	UpdateFunc              func(ctx context.Context, id string, account *models.Account) (*models.Account, error)
	RecordLoginFunc         func(ctx context.Context, id string, at time.Time) error
	RecordFailedAttemptFunc func(ctx context.Context, id string, attempts int, lockedUntil *time.Time) error
}

func (m *MockAccountRepository) GetByID(ctx context.Context, id string) (*models.Account, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockAccountRepository) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	if m.GetByEmailFunc != nil {
		return m.GetByEmailFunc(ctx, email)
	}
	return nil, models.ErrNotFound
}

func (m *MockAccountRepository) Create(ctx context.Context, account *models.Account) (*models.Account, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, account)
	}
	return nil, models.ErrInternalServer
}

func (m *MockAccountRepository) Update(ctx context.Context, id string, account *models.Account) (*models.Account, error) {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, id, account)
	}
	return nil, models.ErrInternalServer
}

func (m *MockAccountRepository) RecordLogin(ctx context.Context, id string, at time.Time) error {
	if m.RecordLoginFunc != nil {
		return m.RecordLoginFunc(ctx, id, at)
	}
	return nil
}

func (m *MockAccountRepository) RecordFailedAttempt(ctx context.Context, id string, attempts int, lockedUntil *time.Time) error {
	if m.RecordFailedAttemptFunc != nil {
		return m.RecordFailedAttemptFunc(ctx, id, attempts, lockedUntil)
	}
	return nil
}

// MockRefreshTokenRepository implements RefreshTokenRepository for testing
type MockRefreshTokenRepository struct {
	CreateFunc         func(ctx context.Context, accountID, token string, expiresAt time.Time) (*models.RefreshToken, error)
	GetWithAccountFunc func(ctx context.Context, token string) (*models.RefreshToken, *models.Account, error)
	DeleteFunc         func(ctx context.Context, accountID, token string) error
}

func (m *MockRefreshTokenRepository) Create(ctx context.Context, accountID, token string, expiresAt time.Time) (*models.RefreshToken, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, accountID, token, expiresAt)
	}
	return &models.RefreshToken{AccountID: accountID, Token: token, ExpiresAt: expiresAt}, nil
}

func (m *MockRefreshTokenRepository) GetWithAccount(ctx context.Context, token string) (*models.RefreshToken, *models.Account, error) {
	if m.GetWithAccountFunc != nil {
		return m.GetWithAccountFunc(ctx, token)
	}
	return nil, nil, models.ErrNotFound
}

func (m *MockRefreshTokenRepository) Delete(ctx context.Context, accountID, token string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, accountID, token)
	}
	return nil
}

// MockPasswordResetRepository implements PasswordResetRepository for testing
type MockPasswordResetRepository struct {
	CreateFunc     func(ctx context.Context, accountID, token string, expiresAt time.Time) (*models.PasswordReset, error)
	GetByTokenFunc func(ctx context.Context, token string) (*models.PasswordReset, error)
	ConsumeFunc    func(ctx context.Context, reset *models.PasswordReset, newPasswordHash string) error
}

func (m *MockPasswordResetRepository) Create(ctx context.Context, accountID, token string, expiresAt time.Time) (*models.PasswordReset, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, accountID, token, expiresAt)
	}
	return &models.PasswordReset{AccountID: accountID, Token: token, ExpiresAt: expiresAt}, nil
}

func (m *MockPasswordResetRepository) GetByToken(ctx context.Context, token string) (*models.PasswordReset, error) {
	if m.GetByTokenFunc != nil {
		return m.GetByTokenFunc(ctx, token)
	}
	return nil, models.ErrNotFound
}

func (m *MockPasswordResetRepository) Consume(ctx context.Context, reset *models.PasswordReset, newPasswordHash string) error {
	if m.ConsumeFunc != nil {
		return m.ConsumeFunc(ctx, reset, newPasswordHash)
	}
	return nil
}

// MockMailer implements ResetMailer for testing
type MockMailer struct {
	SendPasswordResetEmailFunc func(ctx context.Context, email, token string, expiresAt time.Time) error
	Sent                       []string // tokens handed to the mailer
}

func (m *MockMailer) SendPasswordResetEmail(ctx context.Context, email, token string, expiresAt time.Time) error {
	m.Sent = append(m.Sent, token)
	if m.SendPasswordResetEmailFunc != nil {
		return m.SendPasswordResetEmailFunc(ctx, email, token, expiresAt)
	}
	return nil
}

// MockOrganizationRepository implements OrganizationRepository for testing
type MockOrganizationRepository struct {
	GetByIDFunc    func(ctx context.Context, id string) (*models.Organization, error)
	GetByEmailFunc func(ctx context.Context, email string) (*models.Organization, error)
	ListFunc       func(ctx context.Context) ([]*models.Organization, error)
	CreateFunc     func(ctx context.Context, org *models.Organization, levels []string) (*models.Organization, error)
	UpdateFunc     func(ctx context.Context, id string, org *models.Organization) (*models.Organization, error)
	DeleteFunc     func(ctx context.Context, id string) error
}

func (m *MockOrganizationRepository) GetByID(ctx context.Context, id string) (*models.Organization, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockOrganizationRepository) GetByEmail(ctx context.Context, email string) (*models.Organization, error) {
	if m.GetByEmailFunc != nil {
		return m.GetByEmailFunc(ctx, email)
	}
	return nil, models.ErrNotFound
}

func (m *MockOrganizationRepository) List(ctx context.Context) ([]*models.Organization, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx)
	}
	return []*models.Organization{}, nil
}

func (m *MockOrganizationRepository) Create(ctx context.Context, org *models.Organization, levels []string) (*models.Organization, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, org, levels)
	}
	return nil, models.ErrInternalServer
}

func (m *MockOrganizationRepository) Update(ctx context.Context, id string, org *models.Organization) (*models.Organization, error) {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, id, org)
	}
	return nil, models.ErrInternalServer
}

func (m *MockOrganizationRepository) Delete(ctx context.Context, id string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, id)
	}
	return nil
}

// MockOnboardingRepository implements OnboardingRepository for testing
type MockOnboardingRepository struct {
	CreateFunc     func(ctx context.Context, link *models.OnboardingLink) (*models.OnboardingLink, error)
	GetByTokenFunc func(ctx context.Context, token string) (*models.OnboardingLink, error)
	MarkUsedFunc   func(ctx context.Context, token string, at time.Time) error
}

func (m *MockOnboardingRepository) Create(ctx context.Context, link *models.OnboardingLink) (*models.OnboardingLink, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, link)
	}
	link.ID = "link-1"
	return link, nil
}

func (m *MockOnboardingRepository) GetByToken(ctx context.Context, token string) (*models.OnboardingLink, error) {
	if m.GetByTokenFunc != nil {
		return m.GetByTokenFunc(ctx, token)
	}
	return nil, models.ErrNotFound
}

func (m *MockOnboardingRepository) MarkUsed(ctx context.Context, token string, at time.Time) error {
	if m.MarkUsedFunc != nil {
		return m.MarkUsedFunc(ctx, token, at)
	}
	return nil
}

// NewTestAccount builds an active account with a usable id
func NewTestAccount(id, email, name string) *models.Account {
	now := time.Now()
	return &models.Account{
		ID:        id,
		Email:     email,
		Name:      name,
		Role:      "user",
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
