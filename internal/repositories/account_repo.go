package repositories

import (
	"context"
	"fmt"
	"time"

	"gatehouse/internal/database"
	"gatehouse/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lib/pq"
)

type AccountRepository struct {
	pool *pgxpool.Pool
}

func NewAccountRepository(db *database.DB) *AccountRepository {
	return &AccountRepository{pool: db.Pool}
}

// rowScanner interface for scanning account rows (single row or rows)
type rowScanner interface {
	Scan(dest ...interface{}) error
}

const accountColumns = `id, email, password_hash, name, organization_id, role, school_levels, permissions, is_active, last_login, failed_attempts, locked_until, created_at, updated_at`

// scanAccountRow handles nullable fields and populates an Account model
func scanAccountRow(scanner rowScanner) (*models.Account, error) {
	var account models.Account
	var organizationID *string
	var lastLogin, lockedUntil *time.Time

	err := scanner.Scan(
		&account.ID, &account.Email, &account.PasswordHash, &account.Name,
		&organizationID, &account.Role,
		pq.Array(&account.SchoolLevels), pq.Array(&account.Permissions),
		&account.IsActive, &lastLogin, &account.FailedAttempts, &lockedUntil,
		&account.CreatedAt, &account.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	account.OrganizationID = organizationID
	account.LastLogin = lastLogin
	account.LockedUntil = lockedUntil

	return &account, nil
}

func (r *AccountRepository) GetByID(ctx context.Context, id string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`

	return scanAccountRow(r.pool.QueryRow(ctx, query, id))
}

func (r *AccountRepository) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE email = $1`

	return scanAccountRow(r.pool.QueryRow(ctx, query, email))
}

func (r *AccountRepository) Create(ctx context.Context, account *models.Account) (*models.Account, error) {
	account.ID = uuid.New().String()

	now := time.Now()
	account.CreatedAt = now
	account.UpdatedAt = now

	if account.Role == "" {
		account.Role = "user"
	}

	query := `
		INSERT INTO accounts (id, email, password_hash, name, organization_id, role, school_levels, permissions, is_active, failed_attempts, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING ` + accountColumns

	return scanAccountRow(r.pool.QueryRow(ctx, query,
		account.ID, account.Email, account.PasswordHash, account.Name,
		account.OrganizationID, account.Role,
		pq.Array(account.SchoolLevels), pq.Array(account.Permissions),
		account.IsActive, account.FailedAttempts,
		account.CreatedAt, account.UpdatedAt,
	))
}

func (r *AccountRepository) Update(ctx context.Context, id string, account *models.Account) (*models.Account, error) {
	account.UpdatedAt = time.Now()

	query := `
		UPDATE accounts
		SET name = $1, organization_id = $2, role = $3, school_levels = $4, permissions = $5, is_active = $6, updated_at = $7
		WHERE id = $8
		RETURNING ` + accountColumns

	return scanAccountRow(r.pool.QueryRow(ctx, query,
		account.Name, account.OrganizationID, account.Role,
		pq.Array(account.SchoolLevels), pq.Array(account.Permissions),
		account.IsActive, account.UpdatedAt, id,
	))
}

// RecordLogin stamps last_login and clears the failure counter and any lock.
// Mutated only by the authentication flow.
func (r *AccountRepository) RecordLogin(ctx context.Context, id string, at time.Time) error {
	query := `
		UPDATE accounts
		SET last_login = $1, failed_attempts = 0, locked_until = NULL, updated_at = $1
		WHERE id = $2
	`

	result, err := r.pool.Exec(ctx, query, at, id)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// RecordFailedAttempt stores the failure counter and, when the lockout
// threshold is crossed, the lock expiry.
func (r *AccountRepository) RecordFailedAttempt(ctx context.Context, id string, attempts int, lockedUntil *time.Time) error {
	query := `
		UPDATE accounts
		SET failed_attempts = $1, locked_until = $2, updated_at = $3
		WHERE id = $4
	`

	_, err := r.pool.Exec(ctx, query, attempts, lockedUntil, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to record login attempt: %w", database.MapPostgresError(err))
	}
	return nil
}
