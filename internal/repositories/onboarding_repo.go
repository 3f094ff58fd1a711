package repositories

import (
	"context"
	"time"

	"gatehouse/internal/database"
	"gatehouse/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type OnboardingRepository struct {
	pool *pgxpool.Pool
}

func NewOnboardingRepository(db *database.DB) *OnboardingRepository {
	return &OnboardingRepository{pool: db.Pool}
}

// Create persists a new onboarding link
func (r *OnboardingRepository) Create(ctx context.Context, link *models.OnboardingLink) (*models.OnboardingLink, error) {
	link.ID = uuid.New().String()
	link.CreatedAt = time.Now()

	query := `
		INSERT INTO onboarding_links (id, organization_id, token, url, is_active, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.pool.Exec(ctx, query,
		link.ID, link.OrganizationID, link.Token, link.URL,
		link.IsActive, link.ExpiresAt, link.CreatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return link, nil
}

func (r *OnboardingRepository) GetByToken(ctx context.Context, token string) (*models.OnboardingLink, error) {
	query := `
		SELECT id, organization_id, token, url, is_active, expires_at, used_at, created_at
		FROM onboarding_links WHERE token = $1
	`

	var link models.OnboardingLink
	var usedAt *time.Time

	err := r.pool.QueryRow(ctx, query, token).Scan(
		&link.ID, &link.OrganizationID, &link.Token, &link.URL,
		&link.IsActive, &link.ExpiresAt, &usedAt, &link.CreatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	link.UsedAt = usedAt
	return &link, nil
}

// MarkUsed stamps used_at on the link. A missing row is not an error.
func (r *OnboardingRepository) MarkUsed(ctx context.Context, token string, at time.Time) error {
	query := `UPDATE onboarding_links SET used_at = $1 WHERE token = $2 AND used_at IS NULL`

	_, err := r.pool.Exec(ctx, query, at, token)
	return database.MapPostgresError(err)
}

// DeactivateExpired flags links past their expiry (call periodically)
func (r *OnboardingRepository) DeactivateExpired(ctx context.Context) (int64, error) {
	query := `UPDATE onboarding_links SET is_active = false WHERE is_active = true AND expires_at < $1`

	result, err := r.pool.Exec(ctx, query, time.Now())
	if err != nil {
		return 0, database.MapPostgresError(err)
	}

	return result.RowsAffected(), nil
}
