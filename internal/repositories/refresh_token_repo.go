package repositories

import (
	"context"
	"time"

	"gatehouse/internal/database"
	"gatehouse/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lib/pq"
)

type RefreshTokenRepository struct {
	pool *pgxpool.Pool
}

func NewRefreshTokenRepository(db *database.DB) *RefreshTokenRepository {
	return &RefreshTokenRepository{pool: db.Pool}
}

// Create persists a new refresh token row
func (r *RefreshTokenRepository) Create(ctx context.Context, accountID, token string, expiresAt time.Time) (*models.RefreshToken, error) {
	row := &models.RefreshToken{
		ID:        uuid.New().String(),
		AccountID: accountID,
		Token:     token,
		ExpiresAt: expiresAt,
		CreatedAt: time.Now(),
	}

	query := `
		INSERT INTO refresh_tokens (id, account_id, token, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.pool.Exec(ctx, query, row.ID, row.AccountID, row.Token, row.ExpiresAt, row.CreatedAt)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return row, nil
}

// GetWithAccount looks up a refresh token by value along with its owning
// account in one round-trip. Returns ErrNotFound when the token does not
// exist or the account is gone.
func (r *RefreshTokenRepository) GetWithAccount(ctx context.Context, token string) (*models.RefreshToken, *models.Account, error) {
	query := `
		SELECT rt.id, rt.account_id, rt.token, rt.expires_at, rt.created_at,
		       a.id, a.email, a.password_hash, a.name, a.organization_id, a.role,
		       a.school_levels, a.permissions, a.is_active, a.last_login,
		       a.failed_attempts, a.locked_until, a.created_at, a.updated_at
		FROM refresh_tokens rt
		JOIN accounts a ON a.id = rt.account_id
		WHERE rt.token = $1
	`

	var row models.RefreshToken
	var account models.Account
	var organizationID *string
	var lastLogin, lockedUntil *time.Time

	err := r.pool.QueryRow(ctx, query, token).Scan(
		&row.ID, &row.AccountID, &row.Token, &row.ExpiresAt, &row.CreatedAt,
		&account.ID, &account.Email, &account.PasswordHash, &account.Name,
		&organizationID, &account.Role,
		pq.Array(&account.SchoolLevels), pq.Array(&account.Permissions),
		&account.IsActive, &lastLogin,
		&account.FailedAttempts, &lockedUntil,
		&account.CreatedAt, &account.UpdatedAt,
	)
	if err != nil {
		return nil, nil, database.MapPostgresError(err)
	}

	account.OrganizationID = organizationID
	account.LastLogin = lastLogin
	account.LockedUntil = lockedUntil

	return &row, &account, nil
}

// Delete removes the refresh token matching (accountID, token). Deleting a
// non-existent row is not an error: logout is idempotent.
func (r *RefreshTokenRepository) Delete(ctx context.Context, accountID, token string) error {
	query := `DELETE FROM refresh_tokens WHERE account_id = $1 AND token = $2`

	_, err := r.pool.Exec(ctx, query, accountID, token)
	return database.MapPostgresError(err)
}

// DeleteExpired removes rows past their expiry (call periodically). Expired
// tokens are already invalid; this only reclaims storage.
func (r *RefreshTokenRepository) DeleteExpired(ctx context.Context) (int64, error) {
	query := `DELETE FROM refresh_tokens WHERE expires_at < $1`

	result, err := r.pool.Exec(ctx, query, time.Now())
	if err != nil {
		return 0, database.MapPostgresError(err)
	}

	return result.RowsAffected(), nil
}
