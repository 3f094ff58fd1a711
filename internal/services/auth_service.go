package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"gatehouse/internal/auth"
	"gatehouse/internal/cache"
	"gatehouse/internal/config"
	"gatehouse/internal/models"
	pkgauth "gatehouse/pkg/auth"
	pkglogger "gatehouse/pkg/logger"
)

// AccountRepository defines the persistence operations the auth flows consume
type AccountRepository interface {
	GetByID(ctx context.Context, id string) (*models.Account, error)
	GetByEmail(ctx context.Context, email string) (*models.Account, error)
	Create(ctx context.Context, account *models.Account) (*models.Account, error)
	Update(ctx context.Context, id string, account *models.Account) (*models.Account, error)
	RecordLogin(ctx context.Context, id string, at time.Time) error
	RecordFailedAttempt(ctx context.Context, id string, attempts int, lockedUntil *time.Time) error
}

// RefreshTokenRepository defines refresh-token row operations
type RefreshTokenRepository interface {
	Create(ctx context.Context, accountID, token string, expiresAt time.Time) (*models.RefreshToken, error)
	GetWithAccount(ctx context.Context, token string) (*models.RefreshToken, *models.Account, error)
	Delete(ctx context.Context, accountID, token string) error
}

// PasswordResetRepository defines password-reset row operations. Consume
// must commit the credential update and the used_at stamp atomically.
type PasswordResetRepository interface {
	Create(ctx context.Context, accountID, token string, expiresAt time.Time) (*models.PasswordReset, error)
	GetByToken(ctx context.Context, token string) (*models.PasswordReset, error)
	Consume(ctx context.Context, reset *models.PasswordReset, newPasswordHash string) error
}

// ResetMailer delivers password-reset links
type ResetMailer interface {
	SendPasswordResetEmail(ctx context.Context, email, token string, expiresAt time.Time) error
}

// AuthService implements the credential & session lifecycle: login, refresh,
// logout, and the password-reset state machine. All collaborators are
// constructor-injected; there is no ambient state.
type AuthService struct {
	accounts      AccountRepository
	refreshTokens RefreshTokenRepository
	resets        PasswordResetRepository
	sessions      cache.SessionStore
	tm            *auth.TokenManager
	mailer        ResetMailer
	timing        *auth.TimingDelay
	cfg           config.AuthConfig
	logger        *slog.Logger
	auditLogger   *pkglogger.AuditLogger
}

// NewAuthService creates a new AuthService
func NewAuthService(
	accounts AccountRepository,
	refreshTokens RefreshTokenRepository,
	resets PasswordResetRepository,
	sessions cache.SessionStore,
	tm *auth.TokenManager,
	mailer ResetMailer,
	timing *auth.TimingDelay,
	cfg config.AuthConfig,
	logger *slog.Logger,
	auditLogger *pkglogger.AuditLogger,
) *AuthService {
	return &AuthService{
		accounts:      accounts,
		refreshTokens: refreshTokens,
		resets:        resets,
		sessions:      sessions,
		tm:            tm,
		mailer:        mailer,
		timing:        timing,
		cfg:           cfg,
		logger:        logger,
		auditLogger:   auditLogger,
	}
}

// AccountResponse represents an account in HTTP responses. The password
// hash never appears here.
type AccountResponse struct {
	ID             string   `json:"id"`
	Email          string   `json:"email"`
	Name           string   `json:"name"`
	Role           string   `json:"role"`
	OrganizationID *string  `json:"organization_id,omitempty"`
	SchoolLevels   []string `json:"school_levels,omitempty"`
	Permissions    []string `json:"permissions,omitempty"`
	IsActive       bool     `json:"is_active"`
	CreatedAt      string   `json:"created_at"`
	UpdatedAt      string   `json:"updated_at"`
}

// AuthResponse represents the response from login/register
type AuthResponse struct {
	AccessToken  string           `json:"access_token"`
	RefreshToken string           `json:"refresh_token"`
	Account      *AccountResponse `json:"account"`
}

// RefreshResponse carries the newly minted access token
type RefreshResponse struct {
	AccessToken string `json:"access_token"`
}

// RegisterParams are the fields accepted at registration
type RegisterParams struct {
	Email          string
	Password       string
	Name           string
	OrganizationID *string
	Role           string
	SchoolLevels   []string
	Permissions    []string
}

// sessionKey is the cache key for an account's session marker
func sessionKey(accountID string) string {
	return "session:" + accountID
}

// verifyCredentials authenticates an email/password pair and enforces the
// lockout policy. The no-such-account and wrong-password paths return the
// same ErrInvalidCredentials; the returned account still carries its hash
// and must be sanitized before leaving the service.
func (s *AuthService) verifyCredentials(ctx context.Context, email, password, ipAddress string) (*models.Account, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, models.ErrInvalidCredentials
	}

	account, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.logger.Info("login failed: invalid credentials")
			s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
				EventType:     "login_failed",
				IPAddress:     ipAddress,
				FailureReason: "invalid_credentials",
				Success:       false,
			})
			return nil, models.ErrInvalidCredentials
		}
		s.logger.Error("failed to get account by email", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if account.LockedUntil != nil && time.Now().Before(*account.LockedUntil) {
		s.logger.Info("login blocked: account locked", slog.String("account_id", account.ID))
		s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
			EventType:     "login_failed",
			AccountID:     account.ID,
			IPAddress:     ipAddress,
			FailureReason: "account_locked",
			Success:       false,
		})
		return nil, models.ErrAccountLocked
	}

	if err := pkgauth.ComparePassword(account.PasswordHash, password); err != nil {
		s.recordFailure(ctx, account)
		s.logger.Info("login failed: invalid credentials")
		s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
			EventType:     "login_failed",
			AccountID:     account.ID,
			IPAddress:     ipAddress,
			FailureReason: "invalid_credentials",
			Success:       false,
		})
		return nil, models.ErrInvalidCredentials
	}

	if !account.IsActive {
		s.logger.Info("login blocked: account inactive", slog.String("account_id", account.ID))
		s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
			EventType:     "login_failed",
			AccountID:     account.ID,
			IPAddress:     ipAddress,
			FailureReason: "account_inactive",
			Success:       false,
		})
		return nil, models.ErrAccountInactive
	}

	return account, nil
}

// recordFailure increments the failure counter and locks the account when
// the threshold is crossed. Persistence failures here are logged, not
// surfaced: the caller is already on the invalid-credentials path.
func (s *AuthService) recordFailure(ctx context.Context, account *models.Account) {
	attempts := account.FailedAttempts + 1

	var lockedUntil *time.Time
	if s.cfg.MaxFailedAttempts > 0 && attempts >= s.cfg.MaxFailedAttempts {
		until := time.Now().Add(s.cfg.LockoutDuration)
		lockedUntil = &until
		s.logger.Warn("account locked after repeated failures",
			slog.String("account_id", account.ID),
			slog.Int("attempts", attempts))
	}

	if err := s.accounts.RecordFailedAttempt(ctx, account.ID, attempts, lockedUntil); err != nil {
		s.logger.Error("failed to record failed attempt",
			slog.String("account_id", account.ID),
			slog.Any("error", err))
	}
}

// issueTokens mints the access token, persists a fresh refresh token, and
// writes the best-effort session marker.
func (s *AuthService) issueTokens(ctx context.Context, account *models.Account) (string, string, error) {
	accessToken, err := s.tm.GenerateAccessToken(account)
	if err != nil {
		s.logger.Error("failed to generate access token", slog.String("account_id", account.ID), slog.Any("error", err))
		return "", "", models.ErrInternalServer
	}

	refreshValue, err := pkgauth.GenerateSecureToken(pkgauth.RefreshTokenLength)
	if err != nil {
		s.logger.Error("failed to generate refresh token", slog.String("account_id", account.ID), slog.Any("error", err))
		return "", "", models.ErrInternalServer
	}

	expiresAt := time.Now().Add(s.cfg.RefreshTokenExpiry)
	if _, err := s.refreshTokens.Create(ctx, account.ID, refreshValue, expiresAt); err != nil {
		s.logger.Error("failed to persist refresh token", slog.String("account_id", account.ID), slog.Any("error", err))
		return "", "", models.ErrInternalServer
	}

	// Session marker is best-effort; a cache failure never fails the login
	if err := s.sessions.SetWithTTL(ctx, sessionKey(account.ID), accessToken, s.cfg.SessionTTL); err != nil {
		s.logger.Warn("failed to write session marker", slog.String("account_id", account.ID), slog.Any("error", err))
	}

	return accessToken, refreshValue, nil
}

// Login authenticates an account and returns tokens. ipAddress feeds the
// audit trail only; it plays no part in the decision.
func (s *AuthService) Login(ctx context.Context, email, password, ipAddress string) (*AuthResponse, error) {
	start := time.Now()

	account, err := s.verifyCredentials(ctx, email, password, ipAddress)
	if err != nil {
		if s.timing != nil {
			s.timing.WaitFrom(start, false)
		}
		return nil, err
	}

	now := time.Now()
	if err := s.accounts.RecordLogin(ctx, account.ID, now); err != nil {
		s.logger.Error("failed to record login", slog.String("account_id", account.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	account.LastLogin = &now

	accessToken, refreshToken, err := s.issueTokens(ctx, account)
	if err != nil {
		return nil, err
	}

	s.logger.Info("account logged in", slog.String("account_id", account.ID))
	s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
		EventType: "login_success",
		AccountID: account.ID,
		IPAddress: ipAddress,
		Success:   true,
	})

	return &AuthResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		Account:      accountModelToResponse(account),
	}, nil
}

// Register creates a new account and performs the same token-minting
// sequence as Login.
func (s *AuthService) Register(ctx context.Context, params RegisterParams) (*AuthResponse, error) {
	email := strings.ToLower(strings.TrimSpace(params.Email))
	name := strings.TrimSpace(params.Name)

	if email == "" {
		return nil, fmt.Errorf("email is required")
	}
	if name == "" {
		return nil, fmt.Errorf("name is required")
	}

	if err := pkgauth.ValidatePassword(params.Password); err != nil {
		return nil, err
	}

	// Advisory pre-check; the unique constraint is the final authority
	_, err := s.accounts.GetByEmail(ctx, email)
	if err == nil {
		s.logger.Info("registration failed: email already registered")
		return nil, models.ErrDuplicateEmail
	}
	if !errors.Is(err, models.ErrNotFound) {
		s.logger.Error("failed to check for existing account", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	hashedPassword, err := pkgauth.HashPassword(params.Password, s.cfg.BcryptCost)
	if err != nil {
		s.logger.Error("failed to hash password", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	role := params.Role
	if role == "" {
		role = "user"
	}

	account := &models.Account{
		Email:          email,
		PasswordHash:   hashedPassword,
		Name:           name,
		OrganizationID: params.OrganizationID,
		Role:           role,
		SchoolLevels:   params.SchoolLevels,
		Permissions:    params.Permissions,
		IsActive:       true,
	}

	created, err := s.accounts.Create(ctx, account)
	if err != nil {
		// A concurrent registration can slip past the pre-check; the store's
		// unique constraint converts the race into the same typed failure
		if errors.Is(err, models.ErrConflict) {
			return nil, models.ErrDuplicateEmail
		}
		s.logger.Error("failed to create account", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	accessToken, refreshToken, err := s.issueTokens(ctx, created)
	if err != nil {
		return nil, err
	}

	s.logger.Info("account registered", slog.String("account_id", created.ID))
	s.auditLogger.LogAccountAction("account_registered", created.ID)

	return &AuthResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		Account:      accountModelToResponse(created),
	}, nil
}

// Refresh exchanges a refresh token for a new access token. The refresh
// token itself is not rotated; it stays valid until its own expiry or a
// logout that names it.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*RefreshResponse, error) {
	if refreshToken = strings.TrimSpace(refreshToken); refreshToken == "" {
		return nil, models.ErrInvalidOrExpiredToken
	}

	row, account, err := s.refreshTokens.GetWithAccount(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.logger.Info("refresh failed: unknown token")
			return nil, models.ErrInvalidOrExpiredToken
		}
		s.logger.Error("failed to look up refresh token", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if time.Now().After(row.ExpiresAt) {
		s.logger.Info("refresh failed: token expired", slog.String("account_id", account.ID))
		return nil, models.ErrInvalidOrExpiredToken
	}

	// Claims come from the current account row, not the original login
	accessToken, err := s.tm.GenerateAccessToken(account)
	if err != nil {
		s.logger.Error("failed to generate access token", slog.String("account_id", account.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if err := s.sessions.SetWithTTL(ctx, sessionKey(account.ID), accessToken, s.cfg.SessionTTL); err != nil {
		s.logger.Warn("failed to write session marker", slog.String("account_id", account.ID), slog.Any("error", err))
	}

	s.logger.Info("access token refreshed", slog.String("account_id", account.ID))

	return &RefreshResponse{AccessToken: accessToken}, nil
}

// Logout deletes the session marker and the named refresh token. Both
// deletes are idempotent; logging out twice is not an error.
func (s *AuthService) Logout(ctx context.Context, accountID, refreshToken string) error {
	if err := s.sessions.Delete(ctx, sessionKey(accountID)); err != nil {
		s.logger.Warn("failed to delete session marker", slog.String("account_id", accountID), slog.Any("error", err))
	}

	if err := s.refreshTokens.Delete(ctx, accountID, refreshToken); err != nil {
		s.logger.Error("failed to delete refresh token", slog.String("account_id", accountID), slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.logger.Info("account logged out", slog.String("account_id", accountID))
	return nil
}

// ForgotPassword issues a reset token when the account exists. The caller
// always receives the same acknowledgment, so the response never discloses
// whether an email is registered.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))

	account, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.logger.Info("password reset requested for unknown email")
			return nil
		}
		s.logger.Error("failed to get account by email", slog.Any("error", err))
		return models.ErrInternalServer
	}

	token, err := pkgauth.GenerateSecureToken(pkgauth.ResetTokenLength)
	if err != nil {
		s.logger.Error("failed to generate reset token", slog.Any("error", err))
		return models.ErrInternalServer
	}

	expiresAt := time.Now().Add(s.cfg.ResetTokenExpiry)
	if _, err := s.resets.Create(ctx, account.ID, token, expiresAt); err != nil {
		s.logger.Error("failed to persist reset request", slog.String("account_id", account.ID), slog.Any("error", err))
		return models.ErrInternalServer
	}

	// Delivery is best-effort; the token row exists either way and the
	// response shape must not change
	if s.mailer != nil {
		if err := s.mailer.SendPasswordResetEmail(ctx, account.Email, token, expiresAt); err != nil {
			s.logger.Error("failed to send reset email",
				slog.String("account_id", account.ID),
				slog.String("email", pkglogger.SanitizedEmail(account.Email)),
				slog.Any("error", err))
		}
	}

	s.auditLogger.LogAccountAction("password_reset_requested", account.ID)
	return nil
}

// ResetPassword consumes a reset token and installs the new credential.
// Missing, expired, and already-used tokens collapse into one error kind.
func (s *AuthService) ResetPassword(ctx context.Context, token, newPassword string) error {
	reset, err := s.resets.GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrInvalidOrExpiredToken
		}
		s.logger.Error("failed to look up reset token", slog.Any("error", err))
		return models.ErrInternalServer
	}

	if time.Now().After(reset.ExpiresAt) || reset.UsedAt != nil {
		return models.ErrInvalidOrExpiredToken
	}

	if err := pkgauth.ValidatePassword(newPassword); err != nil {
		return err
	}

	hashedPassword, err := pkgauth.HashPassword(newPassword, s.cfg.BcryptCost)
	if err != nil {
		s.logger.Error("failed to hash password", slog.Any("error", err))
		return models.ErrInternalServer
	}

	if err := s.resets.Consume(ctx, reset, hashedPassword); err != nil {
		if errors.Is(err, models.ErrInvalidOrExpiredToken) {
			return models.ErrInvalidOrExpiredToken
		}
		s.logger.Error("failed to consume reset token", slog.String("account_id", reset.AccountID), slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.logger.Info("password reset", slog.String("account_id", reset.AccountID))
	s.auditLogger.LogAccountAction("password_reset_completed", reset.AccountID)
	return nil
}

// Me returns the sanitized account for the given id
func (s *AuthService) Me(ctx context.Context, accountID string) (*AccountResponse, error) {
	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrAccountNotFound
		}
		s.logger.Error("failed to get account", slog.String("account_id", accountID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	return accountModelToResponse(account), nil
}

// accountModelToResponse converts an account model to its response DTO
func accountModelToResponse(account *models.Account) *AccountResponse {
	sanitized := account.Sanitized()
	return &AccountResponse{
		ID:             sanitized.ID,
		Email:          sanitized.Email,
		Name:           sanitized.Name,
		Role:           sanitized.Role,
		OrganizationID: sanitized.OrganizationID,
		SchoolLevels:   sanitized.SchoolLevels,
		Permissions:    sanitized.Permissions,
		IsActive:       sanitized.IsActive,
		CreatedAt:      sanitized.CreatedAt.Format(time.RFC3339),
		UpdatedAt:      sanitized.UpdatedAt.Format(time.RFC3339),
	}
}
