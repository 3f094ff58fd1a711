package repositories

import (
	"context"
	"time"

	"gatehouse/internal/database"
	"gatehouse/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type PasswordResetRepository struct {
	db *database.DB
}

func NewPasswordResetRepository(db *database.DB) *PasswordResetRepository {
	return &PasswordResetRepository{db: db}
}

// Create persists a new reset request
func (r *PasswordResetRepository) Create(ctx context.Context, accountID, token string, expiresAt time.Time) (*models.PasswordReset, error) {
	row := &models.PasswordReset{
		ID:        uuid.New().String(),
		AccountID: accountID,
		Token:     token,
		ExpiresAt: expiresAt,
		CreatedAt: time.Now(),
	}

	query := `
		INSERT INTO password_resets (id, account_id, token, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.db.Pool.Exec(ctx, query, row.ID, row.AccountID, row.Token, row.ExpiresAt, row.CreatedAt)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return row, nil
}

func (r *PasswordResetRepository) GetByToken(ctx context.Context, token string) (*models.PasswordReset, error) {
	query := `
		SELECT id, account_id, token, expires_at, used_at, created_at
		FROM password_resets WHERE token = $1
	`

	var row models.PasswordReset
	var usedAt *time.Time

	err := r.db.Pool.QueryRow(ctx, query, token).Scan(
		&row.ID, &row.AccountID, &row.Token, &row.ExpiresAt, &usedAt, &row.CreatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	row.UsedAt = usedAt
	return &row, nil
}

// Consume updates the account's credential and stamps used_at in a single
// transaction. A crash cannot leave a reusable token alongside an
// already-changed password. The used_at guard in the UPDATE makes
// concurrent consumption of the same token fail for the loser.
func (r *PasswordResetRepository) Consume(ctx context.Context, reset *models.PasswordReset, newPasswordHash string) error {
	now := time.Now()

	return r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		result, err := tx.Exec(ctx,
			`UPDATE password_resets SET used_at = $1 WHERE id = $2 AND used_at IS NULL`,
			now, reset.ID,
		)
		if err != nil {
			return database.MapPostgresError(err)
		}
		if result.RowsAffected() == 0 {
			return models.ErrInvalidOrExpiredToken
		}

		result, err = tx.Exec(ctx,
			`UPDATE accounts SET password_hash = $1, updated_at = $2 WHERE id = $3`,
			newPasswordHash, now, reset.AccountID,
		)
		if err != nil {
			return database.MapPostgresError(err)
		}
		if result.RowsAffected() == 0 {
			return models.ErrAccountNotFound
		}

		return nil
	})
}
