// Package repositories implements PostgreSQL data access for the domain
// entities. Repositories rehydrate entities through the models.Rehydrate*
// constructors and enforce optimistic concurrency on updates: every UPDATE
// carries the version the caller loaded, and a mismatch surfaces as
// apperrors.ErrConcurrentModification.
package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/vigilo-inc/vigilo-engine/pkg/apperrors"
	"github.com/vigilo-inc/vigilo-engine/pkg/database"
	"github.com/vigilo-inc/vigilo-engine/pkg/models"
)

// CompanyRepository defines the interface for company data access.
type CompanyRepository interface {
	Create(ctx context.Context, company *models.Company) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Company, error)
	List(ctx context.Context, activeOnly bool) ([]*models.Company, error)
	// Update persists the company, expecting the given version in storage.
	Update(ctx context.Context, company *models.Company, expectedVersion int64) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// companyRepository implements CompanyRepository using PostgreSQL.
type companyRepository struct {
	db *database.DB
}

// NewCompanyRepository creates a new company repository.
func NewCompanyRepository(db *database.DB) CompanyRepository {
	return &companyRepository{db: db}
}

const companyColumns = `id, name, cnpj, is_active, drive_folder_id, created_at, updated_at, version`

func scanCompany(row pgx.Row) (*models.Company, error) {
	var (
		base          models.Entity
		name, cnpj    string
		isActive      bool
		driveFolderID string
	)
	err := row.Scan(&base.ID, &name, &cnpj, &isActive, &driveFolderID,
		&base.CreatedAt, &base.UpdatedAt, &base.Version)
	if err != nil {
		return nil, err
	}
	return models.RehydrateCompany(base, name, cnpj, isActive, driveFolderID), nil
}

func (r *companyRepository) Create(ctx context.Context, company *models.Company) error {
	query := `
		INSERT INTO companies (id, name, cnpj, is_active, drive_folder_id, created_at, updated_at, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.db.Exec(ctx, query,
		company.ID,
		company.Name,
		company.CNPJ,
		company.IsActive,
		company.DriveFolderID,
		company.CreatedAt,
		company.UpdatedAt,
		company.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to create company: %w", err)
	}
	return nil
}

func (r *companyRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Company, error) {
	query := `
		SELECT ` + companyColumns + `,
		       (SELECT COUNT(*) FROM establishments e WHERE e.company_id = c.id),
		       (SELECT COUNT(*) FROM users u WHERE u.company_id = c.id)
		FROM companies c
		WHERE id = $1`

	var (
		base               models.Entity
		name, cnpj         string
		isActive           bool
		driveFolderID      string
		estCount, usrCount int
	)
	err := r.db.QueryRow(ctx, query, id).Scan(
		&base.ID, &name, &cnpj, &isActive, &driveFolderID,
		&base.CreatedAt, &base.UpdatedAt, &base.Version,
		&estCount, &usrCount,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewCompanyNotFound(id.String())
		}
		return nil, fmt.Errorf("failed to get company: %w", err)
	}

	company := models.RehydrateCompany(base, name, cnpj, isActive, driveFolderID)
	company.EstablishmentCount = estCount
	company.UserCount = usrCount
	return company, nil
}

func (r *companyRepository) List(ctx context.Context, activeOnly bool) ([]*models.Company, error) {
	query := `SELECT ` + companyColumns + ` FROM companies`
	if activeOnly {
		query += ` WHERE is_active`
	}
	query += ` ORDER BY name`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list companies: %w", err)
	}
	defer rows.Close()

	var companies []*models.Company
	for rows.Next() {
		company, err := scanCompany(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan company: %w", err)
		}
		companies = append(companies, company)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating companies: %w", err)
	}
	return companies, nil
}

func (r *companyRepository) Update(ctx context.Context, company *models.Company, expectedVersion int64) error {
	query := `
		UPDATE companies
		SET name = $1, cnpj = $2, is_active = $3, drive_folder_id = $4,
		    updated_at = $5, version = $6
		WHERE id = $7 AND version = $8`

	result, err := r.db.Exec(ctx, query,
		company.Name,
		company.CNPJ,
		company.IsActive,
		company.DriveFolderID,
		company.UpdatedAt,
		company.Version,
		company.ID,
		expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("failed to update company: %w", err)
	}
	if result.RowsAffected() == 0 {
		return r.classifyMissedUpdate(ctx, company.ID)
	}
	return nil
}

// classifyMissedUpdate distinguishes a version conflict from a missing row.
func (r *companyRepository) classifyMissedUpdate(ctx context.Context, id uuid.UUID) error {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM companies WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check company existence: %w", err)
	}
	if exists {
		return apperrors.ErrConcurrentModification
	}
	return apperrors.NewCompanyNotFound(id.String())
}

func (r *companyRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.Exec(ctx, `DELETE FROM companies WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete company: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.NewCompanyNotFound(id.String())
	}
	return nil
}

// Ensure companyRepository implements CompanyRepository at compile time.
var _ CompanyRepository = (*companyRepository)(nil)
