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

// UserRepository defines the interface for user data access.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByEmail(ctx context.Context, email models.Email) (*models.User, error)
	ListByCompany(ctx context.Context, companyID uuid.UUID) ([]*models.User, error)
	// Update persists the user and its establishment assignments, expecting
	// the given version in storage.
	Update(ctx context.Context, user *models.User, expectedVersion int64) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// userRepository implements UserRepository using PostgreSQL.
type userRepository struct {
	db *database.DB
}

// NewUserRepository creates a new user repository.
func NewUserRepository(db *database.DB) UserRepository {
	return &userRepository{db: db}
}

const userColumns = `id, email, name, role, is_active, must_change_password, company_id, whatsapp, created_at, updated_at, version`

func (r *userRepository) scanUser(ctx context.Context, row pgx.Row) (*models.User, error) {
	var (
		base               models.Entity
		emailStr, name     string
		role               models.UserRole
		isActive           bool
		mustChangePassword bool
		companyID          *uuid.UUID
		whatsappStr        *string
	)
	err := row.Scan(&base.ID, &emailStr, &name, &role, &isActive, &mustChangePassword,
		&companyID, &whatsappStr, &base.CreatedAt, &base.UpdatedAt, &base.Version)
	if err != nil {
		return nil, err
	}

	email, err := models.NewEmail(emailStr)
	if err != nil {
		return nil, fmt.Errorf("stored email is invalid: %w", err)
	}

	var whatsapp *models.Phone
	if whatsappStr != nil {
		whatsapp = models.PhoneFromString(*whatsappStr)
	}

	company := uuid.Nil
	if companyID != nil {
		company = *companyID
	}

	establishmentIDs, err := r.loadEstablishments(ctx, base.ID)
	if err != nil {
		return nil, err
	}

	return models.RehydrateUser(base, email, name, role, isActive, mustChangePassword,
		company, whatsapp, establishmentIDs), nil
}

func (r *userRepository) loadEstablishments(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := r.db.Query(ctx,
		`SELECT establishment_id FROM user_establishments WHERE user_id = $1 ORDER BY establishment_id`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user establishments: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan establishment id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO users (id, email, name, role, is_active, must_change_password, company_id, whatsapp, created_at, updated_at, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err = tx.Exec(ctx, query,
		user.ID,
		user.Email.Value(),
		user.Name,
		user.Role,
		user.IsActive,
		user.MustChangePassword,
		nullableUUID(user.CompanyID),
		nullablePhone(user.WhatsApp),
		user.CreatedAt,
		user.UpdatedAt,
		user.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	if err := r.replaceEstablishments(ctx, tx, user.ID, user.EstablishmentIDs()); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (r *userRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	row := r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	user, err := r.scanUser(ctx, row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewUserNotFound(id.String())
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email models.Email) (*models.User, error) {
	row := r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email.Value())
	user, err := r.scanUser(ctx, row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewUserNotFound(email.Value())
		}
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}
	return user, nil
}

func (r *userRepository) ListByCompany(ctx context.Context, companyID uuid.UUID) ([]*models.User, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+userColumns+` FROM users WHERE company_id = $1 ORDER BY name`, companyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		user, err := r.scanUser(ctx, rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}
	return users, nil
}

func (r *userRepository) Update(ctx context.Context, user *models.User, expectedVersion int64) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		UPDATE users
		SET email = $1, name = $2, role = $3, is_active = $4, must_change_password = $5,
		    company_id = $6, whatsapp = $7, updated_at = $8, version = $9
		WHERE id = $10 AND version = $11`

	result, err := tx.Exec(ctx, query,
		user.Email.Value(),
		user.Name,
		user.Role,
		user.IsActive,
		user.MustChangePassword,
		nullableUUID(user.CompanyID),
		nullablePhone(user.WhatsApp),
		user.UpdatedAt,
		user.Version,
		user.ID,
		expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	if result.RowsAffected() == 0 {
		var exists bool
		if err := r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)`, user.ID).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check user existence: %w", err)
		}
		if exists {
			return apperrors.ErrConcurrentModification
		}
		return apperrors.NewUserNotFound(user.ID.String())
	}

	if err := r.replaceEstablishments(ctx, tx, user.ID, user.EstablishmentIDs()); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// replaceEstablishments rewrites the assignment join rows to match the
// entity's current set.
func (r *userRepository) replaceEstablishments(ctx context.Context, tx pgx.Tx, userID uuid.UUID, ids []uuid.UUID) error {
	if _, err := tx.Exec(ctx, `DELETE FROM user_establishments WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("failed to clear user establishments: %w", err)
	}
	for _, estID := range ids {
		_, err := tx.Exec(ctx,
			`INSERT INTO user_establishments (user_id, establishment_id) VALUES ($1, $2)`, userID, estID)
		if err != nil {
			return fmt.Errorf("failed to insert user establishment: %w", err)
		}
	}
	return nil
}

func (r *userRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.NewUserNotFound(id.String())
	}
	return nil
}

// nullableUUID maps uuid.Nil to SQL NULL.
func nullableUUID(id uuid.UUID) *uuid.UUID {
	if id == uuid.Nil {
		return nil
	}
	return &id
}

// nullablePhone maps a nil phone to SQL NULL, otherwise its digit string.
func nullablePhone(p *models.Phone) *string {
	if p == nil {
		return nil
	}
	v := p.Value()
	return &v
}

// Ensure userRepository implements UserRepository at compile time.
var _ UserRepository = (*userRepository)(nil)
