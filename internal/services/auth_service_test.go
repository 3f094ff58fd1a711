package services

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"gatehouse/internal/auth"
	"gatehouse/internal/cache"
	"gatehouse/internal/config"
	"gatehouse/internal/models"
	pkgauth "gatehouse/pkg/auth"
	pkglogger "gatehouse/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testAuthConfig() config.AuthConfig {
	return config.AuthConfig{
		JWTSecret:          "test-secret-32-characters-long!",
		AccessTokenExpiry:  15 * time.Minute,
		RefreshTokenExpiry: 7 * 24 * time.Hour,
		ResetTokenExpiry:   1 * time.Hour,
		SessionTTL:         900 * time.Second,
		BcryptCost:         4, // minimum cost keeps the suite fast
		MaxFailedAttempts:  3,
		LockoutDuration:    15 * time.Minute,
	}
}

type authFixture struct {
	service  *AuthService
	accounts *MockAccountRepository
	refresh  *MockRefreshTokenRepository
	resets   *MockPasswordResetRepository
	sessions *cache.MemorySessionStore
	mailer   *MockMailer
}

func newAuthFixture(t *testing.T, accounts *MockAccountRepository, refresh *MockRefreshTokenRepository, resets *MockPasswordResetRepository) *authFixture {
	t.Helper()

	cfg := testAuthConfig()
	sessions := cache.NewMemorySessionStore()
	t.Cleanup(sessions.Close)

	mailer := &MockMailer{}
	logger := slog.Default()

	service := NewAuthService(
		accounts,
		refresh,
		resets,
		sessions,
		auth.NewTokenManager(cfg.JWTSecret, cfg.AccessTokenExpiry),
		mailer,
		nil, // no timing delay in tests
		cfg,
		logger,
		pkglogger.NewAuditLogger(logger),
	)

	return &authFixture{
		service:  service,
		accounts: accounts,
		refresh:  refresh,
		resets:   resets,
		sessions: sessions,
		mailer:   mailer,
	}
}

func hashedTestAccount(t *testing.T, password string) *models.Account {
	t.Helper()
	account := NewTestAccount("acct-1", "a@x.com", "Test Account")
	hash, err := pkgauth.HashPassword(password, 4)
	require.NoError(t, err)
	account.PasswordHash = hash
	return account
}

// ============================================================================
// Login
// ============================================================================

func TestAuthService_Login_Success(t *testing.T) {
	account := hashedTestAccount(t, "password123")

	var recordedLogin bool
	accounts := &MockAccountRepository{
		GetByEmailFunc: func(ctx context.Context, email string) (*models.Account, error) {
			assert.Equal(t, "a@x.com", email)
			return account, nil
		},
		RecordLoginFunc: func(ctx context.Context, id string, at time.Time) error {
			recordedLogin = true
			return nil
		},
	}

	f := newAuthFixture(t, accounts, &MockRefreshTokenRepository{}, &MockPasswordResetRepository{})

	resp, err := f.service.Login(context.Background(), "A@X.com ", "password123", "203.0.113.9")
	require.NoError(t, err)
	require.NotNil(t, resp)

	assert.NotEmpty(t, resp.AccessToken)
	assert.Len(t, resp.RefreshToken, pkgauth.RefreshTokenLength)
	assert.True(t, recordedLogin, "last_login should be stamped")
	assert.Equal(t, "acct-1", resp.Account.ID)

	// session marker written
	value, ok, err := f.sessions.Get(context.Background(), "session:acct-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, resp.AccessToken, value)
}

func TestAuthService_Login_UnknownAndWrongPasswordIndistinguishable(t *testing.T) {
	account := hashedTestAccount(t, "password123")

	unknown := &MockAccountRepository{
		GetByEmailFunc: func(ctx context.Context, email string) (*models.Account, error) {
			return nil, models.ErrNotFound
		},
	}
	wrongPw := &MockAccountRepository{
		GetByEmailFunc: func(ctx context.Context, email string) (*models.Account, error) {
			return account, nil
		},
	}

	f1 := newAuthFixture(t, unknown, &MockRefreshTokenRepository{}, &MockPasswordResetRepository{})
	f2 := newAuthFixture(t, wrongPw, &MockRefreshTokenRepository{}, &MockPasswordResetRepository{})

	resp1, err1 := f1.service.Login(context.Background(), "nobody@x.com", "password123", "203.0.113.9")
	resp2, err2 := f2.service.Login(context.Background(), "a@x.com", "wrong-password", "203.0.113.9")

	assert.Nil(t, resp1)
	assert.Nil(t, resp2)
	assert.ErrorIs(t, err1, models.ErrInvalidCredentials)
	assert.ErrorIs(t, err2, models.ErrInvalidCredentials)
}

func TestAuthService_Login_InactiveAccount(t *testing.T) {
	account := hashedTestAccount(t, "password123")
	account.IsActive = false

	accounts := &MockAccountRepository{
		GetByEmailFunc: func(ctx context.Context, email string) (*models.Account, error) {
			return account, nil
		},
	}

	f := newAuthFixture(t, accounts, &MockRefreshTokenRepository{}, &MockPasswordResetRepository{})

	resp, err := f.service.Login(context.Background(), "a@x.com", "password123", "203.0.113.9")
	assert.Nil(t, resp)
	assert.ErrorIs(t, err, models.ErrAccountInactive)
}

func TestAuthService_Login_LockoutAfterRepeatedFailures(t *testing.T) {
	account := hashedTestAccount(t, "password123")
	account.FailedAttempts = 2 // threshold is 3

	var gotAttempts int
	var gotLockedUntil *time.Time
	accounts := &MockAccountRepository{
		GetByEmailFunc: func(ctx context.Context, email string) (*models.Account, error) {
			return account, nil
		},
		RecordFailedAttemptFunc: func(ctx context.Context, id string, attempts int, lockedUntil *time.Time) error {
			gotAttempts = attempts
			gotLockedUntil = lockedUntil
			return nil
		},
	}

	f := newAuthFixture(t, accounts, &MockRefreshTokenRepository{}, &MockPasswordResetRepository{})

	_, err := f.service.Login(context.Background(), "a@x.com", "wrong-password", "203.0.113.9")
	assert.ErrorIs(t, err, models.ErrInvalidCredentials)
	assert.Equal(t, 3, gotAttempts)
	require.NotNil(t, gotLockedUntil, "third failure should lock the account")
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), *gotLockedUntil, 5*time.Second)
}

func TestAuthService_Login_LockedAccountRejected(t *testing.T) {
	account := hashedTestAccount(t, "password123")
	until := time.Now().Add(10 * time.Minute)
	account.LockedUntil = &until

	accounts := &MockAccountRepository{
		GetByEmailFunc: func(ctx context.Context, email string) (*models.Account, error) {
			return account, nil
		},
	}

	f := newAuthFixture(t, accounts, &MockRefreshTokenRepository{}, &MockPasswordResetRepository{})

	// even with the correct password
	_, err := f.service.Login(context.Background(), "a@x.com", "password123", "203.0.113.9")
	assert.ErrorIs(t, err, models.ErrAccountLocked)
}

func TestAuthService_Login_ExpiredLockIgnored(t *testing.T) {
	account := hashedTestAccount(t, "password123")
	until := time.Now().Add(-1 * time.Minute)
	account.LockedUntil = &until

	accounts := &MockAccountRepository{
		GetByEmailFunc: func(ctx context.Context, email string) (*models.Account, error) {
			return account, nil
		},
	}

	f := newAuthFixture(t, accounts, &MockRefreshTokenRepository{}, &MockPasswordResetRepository{})

	resp, err := f.service.Login(context.Background(), "a@x.com", "password123", "203.0.113.9")
	require.NoError(t, err)
	assert.NotNil(t, resp)
}

func TestAuthService_Login_NeverExposesPasswordHash(t *testing.T) {
	account := hashedTestAccount(t, "password123")

	accounts := &MockAccountRepository{
		GetByEmailFunc: func(ctx context.Context, email string) (*models.Account, error) {
			return account, nil
		},
	}

	f := newAuthFixture(t, accounts, &MockRefreshTokenRepository{}, &MockPasswordResetRepository{})

	resp, err := f.service.Login(context.Background(), "a@x.com", "password123", "203.0.113.9")
	require.NoError(t, err)

	// the DTO has no hash field at all; make sure the model copy used to
	// build it was sanitized rather than aliased
	sanitized := account.Sanitized()
	assert.Empty(t, sanitized.PasswordHash)
	assert.NotEmpty(t, account.PasswordHash, "source model must keep its hash")
	assert.Equal(t, account.ID, resp.Account.ID)
}

// ============================================================================
// Register
// ============================================================================

func TestAuthService_Register_Success(t *testing.T) {
	accounts := &MockAccountRepository{
		GetByEmailFunc: func(ctx context.Context, email string) (*models.Account, error) {
			return nil, models.ErrNotFound
		},
		CreateFunc: func(ctx context.Context, account *models.Account) (*models.Account, error) {
			account.ID = "acct-1"
			account.CreatedAt = time.Now()
			account.UpdatedAt = time.Now()
			return account, nil
		},
	}

	f := newAuthFixture(t, accounts, &MockRefreshTokenRepository{}, &MockPasswordResetRepository{})

	resp, err := f.service.Register(context.Background(), RegisterParams{
		Email:    "New@X.com",
		Password: "password123",
		Name:     "New Account",
	})
	require.NoError(t, err)
	require.NotNil(t, resp)

	assert.Equal(t, "new@x.com", resp.Account.Email, "email should be normalized")
	assert.Equal(t, "user", resp.Account.Role, "role should default to user")
	assert.True(t, resp.Account.IsActive)
	assert.NotEmpty(t, resp.AccessToken)
	assert.Len(t, resp.RefreshToken, pkgauth.RefreshTokenLength)
}

func TestAuthService_Register_DuplicateEmail(t *testing.T) {
	existing := NewTestAccount("acct-1", "a@x.com", "Existing")

	accounts := &MockAccountRepository{
		GetByEmailFunc: func(ctx context.Context, email string) (*models.Account, error) {
			return existing, nil
		},
	}

	f := newAuthFixture(t, accounts, &MockRefreshTokenRepository{}, &MockPasswordResetRepository{})

	resp, err := f.service.Register(context.Background(), RegisterParams{
		Email:    "a@x.com",
		Password: "password123",
		Name:     "Someone Else",
	})
	assert.Nil(t, resp)
	assert.ErrorIs(t, err, models.ErrDuplicateEmail)
}

func TestAuthService_Register_UniqueConstraintRace(t *testing.T) {
	accounts := &MockAccountRepository{
		GetByEmailFunc: func(ctx context.Context, email string) (*models.Account, error) {
			return nil, models.ErrNotFound // pre-check passes
		},
		CreateFunc: func(ctx context.Context, account *models.Account) (*models.Account, error) {
			return nil, models.ErrConflict // store says otherwise
		},
	}

	f := newAuthFixture(t, accounts, &MockRefreshTokenRepository{}, &MockPasswordResetRepository{})

	_, err := f.service.Register(context.Background(), RegisterParams{
		Email:    "a@x.com",
		Password: "password123",
		Name:     "Racer",
	})
	assert.ErrorIs(t, err, models.ErrDuplicateEmail)
}

func TestAuthService_Register_HashesPassword(t *testing.T) {
	var created *models.Account
	accounts := &MockAccountRepository{
		GetByEmailFunc: func(ctx context.Context, email string) (*models.Account, error) {
			return nil, models.ErrNotFound
		},
		CreateFunc: func(ctx context.Context, account *models.Account) (*models.Account, error) {
			created = account
			account.ID = "acct-1"
			return account, nil
		},
	}

	f := newAuthFixture(t, accounts, &MockRefreshTokenRepository{}, &MockPasswordResetRepository{})

	_, err := f.service.Register(context.Background(), RegisterParams{
		Email:    "a@x.com",
		Password: "password123",
		Name:     "Test",
	})
	require.NoError(t, err)
	require.NotNil(t, created)

	assert.NotEqual(t, "password123", created.PasswordHash)
	assert.NoError(t, pkgauth.ComparePassword(created.PasswordHash, "password123"))
}

func TestAuthService_Register_ShortPassword(t *testing.T) {
	f := newAuthFixture(t, &MockAccountRepository{}, &MockRefreshTokenRepository{}, &MockPasswordResetRepository{})

	_, err := f.service.Register(context.Background(), RegisterParams{
		Email:    "a@x.com",
		Password: "short",
		Name:     "Test",
	})
	assert.Error(t, err)
}

// ============================================================================
// Refresh
// ============================================================================

func TestAuthService_Refresh_Success(t *testing.T) {
	account := NewTestAccount("acct-1", "a@x.com", "Test")

	refresh := &MockRefreshTokenRepository{
		GetWithAccountFunc: func(ctx context.Context, token string) (*models.RefreshToken, *models.Account, error) {
			return &models.RefreshToken{
				AccountID: account.ID,
				Token:     token,
				ExpiresAt: time.Now().Add(time.Hour),
			}, account, nil
		},
	}

	f := newAuthFixture(t, &MockAccountRepository{}, refresh, &MockPasswordResetRepository{})

	resp, err := f.service.Refresh(context.Background(), "some-refresh-token")
	require.NoError(t, err)
	require.NotNil(t, resp)
	assert.NotEmpty(t, resp.AccessToken)

	// new access token carries the same subject
	tm := auth.NewTokenManager(testAuthConfig().JWTSecret, 15*time.Minute)
	claims, err := tm.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "acct-1", claims.Subject)
}

func TestAuthService_Refresh_UnknownToken(t *testing.T) {
	f := newAuthFixture(t, &MockAccountRepository{}, &MockRefreshTokenRepository{}, &MockPasswordResetRepository{})

	resp, err := f.service.Refresh(context.Background(), "no-such-token")
	assert.Nil(t, resp)
	assert.ErrorIs(t, err, models.ErrInvalidOrExpiredToken)
}

func TestAuthService_Refresh_ExpiredToken(t *testing.T) {
	account := NewTestAccount("acct-1", "a@x.com", "Test")

	refresh := &MockRefreshTokenRepository{
		GetWithAccountFunc: func(ctx context.Context, token string) (*models.RefreshToken, *models.Account, error) {
			return &models.RefreshToken{
				AccountID: account.ID,
				Token:     token,
				ExpiresAt: time.Now().Add(-time.Minute),
			}, account, nil
		},
	}

	f := newAuthFixture(t, &MockAccountRepository{}, refresh, &MockPasswordResetRepository{})

	resp, err := f.service.Refresh(context.Background(), "stale-token")
	assert.Nil(t, resp)
	assert.ErrorIs(t, err, models.ErrInvalidOrExpiredToken)
}

func TestAuthService_Refresh_EmptyToken(t *testing.T) {
	f := newAuthFixture(t, &MockAccountRepository{}, &MockRefreshTokenRepository{}, &MockPasswordResetRepository{})

	_, err := f.service.Refresh(context.Background(), "   ")
	assert.ErrorIs(t, err, models.ErrInvalidOrExpiredToken)
}

// ============================================================================
// Logout
// ============================================================================

func TestAuthService_Logout_DeletesMarkerAndToken(t *testing.T) {
	var deletedAccountID, deletedToken string
	refresh := &MockRefreshTokenRepository{
		DeleteFunc: func(ctx context.Context, accountID, token string) error {
			deletedAccountID = accountID
			deletedToken = token
			return nil
		},
	}

	f := newAuthFixture(t, &MockAccountRepository{}, refresh, &MockPasswordResetRepository{})

	ctx := context.Background()
	require.NoError(t, f.sessions.SetWithTTL(ctx, "session:acct-1", "access-token", time.Minute))

	require.NoError(t, f.service.Logout(ctx, "acct-1", "refresh-token"))

	assert.Equal(t, "acct-1", deletedAccountID)
	assert.Equal(t, "refresh-token", deletedToken)

	_, ok, err := f.sessions.Get(ctx, "session:acct-1")
	require.NoError(t, err)
	assert.False(t, ok, "session marker should be gone")
}

func TestAuthService_Logout_Idempotent(t *testing.T) {
	f := newAuthFixture(t, &MockAccountRepository{}, &MockRefreshTokenRepository{}, &MockPasswordResetRepository{})

	ctx := context.Background()
	require.NoError(t, f.service.Logout(ctx, "acct-1", "refresh-token"))
	require.NoError(t, f.service.Logout(ctx, "acct-1", "refresh-token"))
}

// ============================================================================
// ForgotPassword / ResetPassword
// ============================================================================

func TestAuthService_ForgotPassword_UnknownEmailSameAck(t *testing.T) {
	f := newAuthFixture(t, &MockAccountRepository{}, &MockRefreshTokenRepository{}, &MockPasswordResetRepository{})

	err := f.service.ForgotPassword(context.Background(), "nobody@x.com")
	assert.NoError(t, err, "unknown email must return the same ack")
	assert.Empty(t, f.mailer.Sent)
}

func TestAuthService_ForgotPassword_IssuesToken(t *testing.T) {
	account := NewTestAccount("acct-1", "a@x.com", "Test")

	var createdToken string
	var createdExpiry time.Time
	accounts := &MockAccountRepository{
		GetByEmailFunc: func(ctx context.Context, email string) (*models.Account, error) {
			return account, nil
		},
	}
	resets := &MockPasswordResetRepository{
		CreateFunc: func(ctx context.Context, accountID, token string, expiresAt time.Time) (*models.PasswordReset, error) {
			createdToken = token
			createdExpiry = expiresAt
			return &models.PasswordReset{ID: "reset-1", AccountID: accountID, Token: token, ExpiresAt: expiresAt}, nil
		},
	}

	f := newAuthFixture(t, accounts, &MockRefreshTokenRepository{}, resets)

	require.NoError(t, f.service.ForgotPassword(context.Background(), "a@x.com"))

	assert.Len(t, createdToken, pkgauth.ResetTokenLength)
	assert.WithinDuration(t, time.Now().Add(time.Hour), createdExpiry, 5*time.Second)
	require.Len(t, f.mailer.Sent, 1)
	assert.Equal(t, createdToken, f.mailer.Sent[0])
}

func TestAuthService_ForgotPassword_MailerFailureStillAcks(t *testing.T) {
	account := NewTestAccount("acct-1", "a@x.com", "Test")

	accounts := &MockAccountRepository{
		GetByEmailFunc: func(ctx context.Context, email string) (*models.Account, error) {
			return account, nil
		},
	}

	f := newAuthFixture(t, accounts, &MockRefreshTokenRepository{}, &MockPasswordResetRepository{})
	f.mailer.SendPasswordResetEmailFunc = func(ctx context.Context, email, token string, expiresAt time.Time) error {
		return assert.AnError
	}

	assert.NoError(t, f.service.ForgotPassword(context.Background(), "a@x.com"))
}

func TestAuthService_ResetPassword_Success(t *testing.T) {
	reset := &models.PasswordReset{
		ID:        "reset-1",
		AccountID: "acct-1",
		Token:     "reset-token",
		ExpiresAt: time.Now().Add(time.Hour),
	}

	var consumedHash string
	resets := &MockPasswordResetRepository{
		GetByTokenFunc: func(ctx context.Context, token string) (*models.PasswordReset, error) {
			return reset, nil
		},
		ConsumeFunc: func(ctx context.Context, r *models.PasswordReset, newPasswordHash string) error {
			consumedHash = newPasswordHash
			return nil
		},
	}

	f := newAuthFixture(t, &MockAccountRepository{}, &MockRefreshTokenRepository{}, resets)

	require.NoError(t, f.service.ResetPassword(context.Background(), "reset-token", "new-password-1"))
	assert.NoError(t, pkgauth.ComparePassword(consumedHash, "new-password-1"))
}

func TestAuthService_ResetPassword_SingleUse(t *testing.T) {
	used := time.Now().Add(-time.Minute)
	reset := &models.PasswordReset{
		ID:        "reset-1",
		AccountID: "acct-1",
		Token:     "reset-token",
		ExpiresAt: time.Now().Add(time.Hour),
		UsedAt:    &used,
	}

	resets := &MockPasswordResetRepository{
		GetByTokenFunc: func(ctx context.Context, token string) (*models.PasswordReset, error) {
			return reset, nil
		},
	}

	f := newAuthFixture(t, &MockAccountRepository{}, &MockRefreshTokenRepository{}, resets)

	err := f.service.ResetPassword(context.Background(), "reset-token", "new-password-1")
	assert.ErrorIs(t, err, models.ErrInvalidOrExpiredToken)
}

func TestAuthService_ResetPassword_ExpiredOrMissing(t *testing.T) {
	expired := &models.PasswordReset{
		ID:        "reset-1",
		AccountID: "acct-1",
		Token:     "reset-token",
		ExpiresAt: time.Now().Add(-time.Minute),
	}

	withExpired := &MockPasswordResetRepository{
		GetByTokenFunc: func(ctx context.Context, token string) (*models.PasswordReset, error) {
			return expired, nil
		},
	}

	f1 := newAuthFixture(t, &MockAccountRepository{}, &MockRefreshTokenRepository{}, withExpired)
	f2 := newAuthFixture(t, &MockAccountRepository{}, &MockRefreshTokenRepository{}, &MockPasswordResetRepository{})

	err1 := f1.service.ResetPassword(context.Background(), "reset-token", "new-password-1")
	err2 := f2.service.ResetPassword(context.Background(), "missing-token", "new-password-1")

	// expired, missing and used all collapse into one error kind
	assert.ErrorIs(t, err1, models.ErrInvalidOrExpiredToken)
	assert.ErrorIs(t, err2, models.ErrInvalidOrExpiredToken)
}

func TestAuthService_ResetPassword_ConcurrentConsumeLoses(t *testing.T) {
	reset := &models.PasswordReset{
		ID:        "reset-1",
		AccountID: "acct-1",
		Token:     "reset-token",
		ExpiresAt: time.Now().Add(time.Hour),
	}

	resets := &MockPasswordResetRepository{
		GetByTokenFunc: func(ctx context.Context, token string) (*models.PasswordReset, error) {
			return reset, nil
		},
		ConsumeFunc: func(ctx context.Context, r *models.PasswordReset, newPasswordHash string) error {
			return models.ErrInvalidOrExpiredToken // another request got there first
		},
	}

	f := newAuthFixture(t, &MockAccountRepository{}, &MockRefreshTokenRepository{}, resets)

	err := f.service.ResetPassword(context.Background(), "reset-token", "new-password-1")
	assert.ErrorIs(t, err, models.ErrInvalidOrExpiredToken)
}

// ============================================================================
// Me
// ============================================================================

func TestAuthService_Me(t *testing.T) {
	account := hashedTestAccount(t, "password123")

	accounts := &MockAccountRepository{
		GetByIDFunc: func(ctx context.Context, id string) (*models.Account, error) {
			if id == "acct-1" {
				return account, nil
			}
			return nil, models.ErrNotFound
		},
	}

	f := newAuthFixture(t, accounts, &MockRefreshTokenRepository{}, &MockPasswordResetRepository{})

	resp, err := f.service.Me(context.Background(), "acct-1")
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", resp.Email)

	_, err = f.service.Me(context.Background(), "acct-2")
	assert.ErrorIs(t, err, models.ErrAccountNotFound)
}
