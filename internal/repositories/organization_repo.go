package repositories

import (
	"context"
	"fmt"
	"time"

	"gatehouse/internal/database"
	"gatehouse/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type OrganizationRepository struct {
	db *database.DB
}

func NewOrganizationRepository(db *database.DB) *OrganizationRepository {
	return &OrganizationRepository{db: db}
}

const organizationColumns = `id, name, email, phone, address, country, state, city, onboarding_completed, status, created_at, updated_at`

func scanOrganizationRow(scanner rowScanner) (*models.Organization, error) {
	var org models.Organization

	err := scanner.Scan(
		&org.ID, &org.Name, &org.Email, &org.Phone, &org.Address,
		&org.Country, &org.State, &org.City,
		&org.OnboardingCompleted, &org.Status,
		&org.CreatedAt, &org.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &org, nil
}

func (r *OrganizationRepository) GetByID(ctx context.Context, id string) (*models.Organization, error) {
	query := `SELECT ` + organizationColumns + ` FROM organizations WHERE id = $1`

	org, err := scanOrganizationRow(r.db.Pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, err
	}

	if err := r.attachSchoolLevels(ctx, org); err != nil {
		return nil, err
	}

	return org, nil
}

func (r *OrganizationRepository) GetByEmail(ctx context.Context, email string) (*models.Organization, error) {
	query := `SELECT ` + organizationColumns + ` FROM organizations WHERE email = $1`

	return scanOrganizationRow(r.db.Pool.QueryRow(ctx, query, email))
}

func (r *OrganizationRepository) List(ctx context.Context) ([]*models.Organization, error) {
	query := `SELECT ` + organizationColumns + ` FROM organizations ORDER BY created_at DESC`

	rows, err := r.db.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query organizations: %w", err)
	}
	defer rows.Close()

	orgs := make([]*models.Organization, 0)
	for rows.Next() {
		org, err := scanOrganizationRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan organization: %w", err)
		}
		orgs = append(orgs, org)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	for _, org := range orgs {
		if err := r.attachSchoolLevels(ctx, org); err != nil {
			return nil, err
		}
	}

	return orgs, nil
}

// Create inserts the organization and its school levels in one transaction.
func (r *OrganizationRepository) Create(ctx context.Context, org *models.Organization, levels []string) (*models.Organization, error) {
	org.ID = uuid.New().String()

	now := time.Now()
	org.CreatedAt = now
	org.UpdatedAt = now

	if org.Status == "" {
		org.Status = "active"
	}

	err := r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO organizations (id, name, email, phone, address, country, state, city, onboarding_completed, status, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
			org.ID, org.Name, org.Email, org.Phone, org.Address,
			org.Country, org.State, org.City,
			org.OnboardingCompleted, org.Status, org.CreatedAt, org.UpdatedAt,
		)
		if err != nil {
			return database.MapPostgresError(err)
		}

		for _, level := range levels {
			_, err := tx.Exec(ctx, `
				INSERT INTO organization_school_levels (id, organization_id, school_level, is_active, created_at)
				VALUES ($1, $2, $3, true, $4)`,
				uuid.New().String(), org.ID, level, now,
			)
			if err != nil {
				return database.MapPostgresError(err)
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return r.GetByID(ctx, org.ID)
}

func (r *OrganizationRepository) Update(ctx context.Context, id string, org *models.Organization) (*models.Organization, error) {
	org.UpdatedAt = time.Now()

	query := `
		UPDATE organizations
		SET name = $1, email = $2, phone = $3, address = $4, country = $5, state = $6, city = $7, onboarding_completed = $8, status = $9, updated_at = $10
		WHERE id = $11
		RETURNING ` + organizationColumns

	updated, err := scanOrganizationRow(r.db.Pool.QueryRow(ctx, query,
		org.Name, org.Email, org.Phone, org.Address,
		org.Country, org.State, org.City,
		org.OnboardingCompleted, org.Status, org.UpdatedAt, id,
	))
	if err != nil {
		return nil, err
	}

	if err := r.attachSchoolLevels(ctx, updated); err != nil {
		return nil, err
	}

	return updated, nil
}

func (r *OrganizationRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM organizations WHERE id = $1`

	result, err := r.db.Pool.Exec(ctx, query, id)
	if err != nil {
		return database.MapPostgresError(err)
	}

	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}

	return nil
}

func (r *OrganizationRepository) attachSchoolLevels(ctx context.Context, org *models.Organization) error {
	query := `
		SELECT id, organization_id, school_level, is_active, created_at
		FROM organization_school_levels
		WHERE organization_id = $1
		ORDER BY created_at
	`

	rows, err := r.db.Pool.Query(ctx, query, org.ID)
	if err != nil {
		return fmt.Errorf("failed to query school levels: %w", err)
	}
	defer rows.Close()

	levels := make([]models.SchoolLevel, 0)
	for rows.Next() {
		var level models.SchoolLevel
		if err := rows.Scan(&level.ID, &level.OrganizationID, &level.Level, &level.IsActive, &level.CreatedAt); err != nil {
			return fmt.Errorf("failed to scan school level: %w", err)
		}
		levels = append(levels, level)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating rows: %w", err)
	}

	org.SchoolLevels = levels
	return nil
}
