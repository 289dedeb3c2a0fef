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

// EstablishmentRepository defines the interface for establishment data access.
type EstablishmentRepository interface {
	Create(ctx context.Context, establishment *models.Establishment) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Establishment, error)
	ListByCompany(ctx context.Context, companyID uuid.UUID) ([]*models.Establishment, error)
	ListByConsultant(ctx context.Context, consultantID uuid.UUID) ([]*models.Establishment, error)
	// Update persists the establishment with its contacts and consultant
	// assignments, expecting the given version in storage.
	Update(ctx context.Context, establishment *models.Establishment, expectedVersion int64) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// establishmentRepository implements EstablishmentRepository using PostgreSQL.
type establishmentRepository struct {
	db *database.DB
}

// NewEstablishmentRepository creates a new establishment repository.
func NewEstablishmentRepository(db *database.DB) EstablishmentRepository {
	return &establishmentRepository{db: db}
}

const establishmentColumns = `id, name, company_id, code, drive_folder_id, is_active,
	responsible_name, responsible_email, responsible_phone, created_at, updated_at, version`

func (r *establishmentRepository) scanEstablishment(ctx context.Context, row pgx.Row) (*models.Establishment, error) {
	var (
		base                 models.Entity
		name                 string
		companyID            uuid.UUID
		code, driveFolderID  string
		isActive             bool
		responsibleName      string
		respEmail, respPhone *string
	)
	err := row.Scan(&base.ID, &name, &companyID, &code, &driveFolderID, &isActive,
		&responsibleName, &respEmail, &respPhone, &base.CreatedAt, &base.UpdatedAt, &base.Version)
	if err != nil {
		return nil, err
	}

	var email *models.Email
	if respEmail != nil && *respEmail != "" {
		addr, err := models.NewEmail(*respEmail)
		if err != nil {
			return nil, fmt.Errorf("stored responsible email is invalid: %w", err)
		}
		email = &addr
	}
	var phone *models.Phone
	if respPhone != nil {
		phone = models.PhoneFromString(*respPhone)
	}

	contacts, err := r.loadContacts(ctx, base.ID)
	if err != nil {
		return nil, err
	}
	consultantIDs, err := r.loadConsultants(ctx, base.ID)
	if err != nil {
		return nil, err
	}

	return models.RehydrateEstablishment(base, name, companyID, code, driveFolderID,
		isActive, responsibleName, email, phone, contacts, consultantIDs), nil
}

func (r *establishmentRepository) loadContacts(ctx context.Context, establishmentID uuid.UUID) ([]models.Contact, error) {
	rows, err := r.db.Query(ctx, `
		SELECT name, phone, email, role, is_active
		FROM establishment_contacts
		WHERE establishment_id = $1
		ORDER BY id`, establishmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to load contacts: %w", err)
	}
	defer rows.Close()

	var contacts []models.Contact
	for rows.Next() {
		var (
			name, phoneStr, role string
			emailStr             *string
			isActive             bool
		)
		if err := rows.Scan(&name, &phoneStr, &emailStr, &role, &isActive); err != nil {
			return nil, fmt.Errorf("failed to scan contact: %w", err)
		}

		phone := models.PhoneFromString(phoneStr)
		if phone == nil {
			return nil, fmt.Errorf("stored contact phone is invalid: %q", phoneStr)
		}
		var email *models.Email
		if emailStr != nil && *emailStr != "" {
			addr, err := models.NewEmail(*emailStr)
			if err != nil {
				return nil, fmt.Errorf("stored contact email is invalid: %w", err)
			}
			email = &addr
		}

		contact, err := models.NewContact(name, *phone, email, role)
		if err != nil {
			return nil, fmt.Errorf("stored contact is invalid: %w", err)
		}
		contact.IsActive = isActive
		contacts = append(contacts, contact)
	}
	return contacts, rows.Err()
}

func (r *establishmentRepository) loadConsultants(ctx context.Context, establishmentID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := r.db.Query(ctx,
		`SELECT consultant_id FROM establishment_consultants WHERE establishment_id = $1 ORDER BY consultant_id`,
		establishmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to load consultants: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan consultant id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *establishmentRepository) Create(ctx context.Context, establishment *models.Establishment) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO establishments (id, name, company_id, code, drive_folder_id, is_active,
			responsible_name, responsible_email, responsible_phone, created_at, updated_at, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err = tx.Exec(ctx, query,
		establishment.ID,
		establishment.Name,
		establishment.CompanyID,
		establishment.Code,
		establishment.DriveFolderID,
		establishment.IsActive,
		establishment.ResponsibleName,
		nullableEmail(establishment.ResponsibleEmail),
		nullablePhone(establishment.ResponsiblePhone),
		establishment.CreatedAt,
		establishment.UpdatedAt,
		establishment.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to create establishment: %w", err)
	}

	if err := r.replaceOwned(ctx, tx, establishment); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (r *establishmentRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Establishment, error) {
	row := r.db.QueryRow(ctx, `SELECT `+establishmentColumns+` FROM establishments WHERE id = $1`, id)
	establishment, err := r.scanEstablishment(ctx, row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewEstablishmentNotFound(id.String())
		}
		return nil, fmt.Errorf("failed to get establishment: %w", err)
	}
	return establishment, nil
}

func (r *establishmentRepository) ListByCompany(ctx context.Context, companyID uuid.UUID) ([]*models.Establishment, error) {
	return r.list(ctx,
		`SELECT `+establishmentColumns+` FROM establishments WHERE company_id = $1 ORDER BY name`, companyID)
}

func (r *establishmentRepository) ListByConsultant(ctx context.Context, consultantID uuid.UUID) ([]*models.Establishment, error) {
	return r.list(ctx, `
		SELECT `+establishmentColumns+`
		FROM establishments e
		JOIN establishment_consultants ec ON ec.establishment_id = e.id
		WHERE ec.consultant_id = $1
		ORDER BY e.name`, consultantID)
}

func (r *establishmentRepository) list(ctx context.Context, query string, arg any) ([]*models.Establishment, error) {
	rows, err := r.db.Query(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to list establishments: %w", err)
	}
	defer rows.Close()

	var establishments []*models.Establishment
	for rows.Next() {
		establishment, err := r.scanEstablishment(ctx, rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan establishment: %w", err)
		}
		establishments = append(establishments, establishment)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating establishments: %w", err)
	}
	return establishments, nil
}

func (r *establishmentRepository) Update(ctx context.Context, establishment *models.Establishment, expectedVersion int64) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		UPDATE establishments
		SET name = $1, code = $2, drive_folder_id = $3, is_active = $4,
		    responsible_name = $5, responsible_email = $6, responsible_phone = $7,
		    updated_at = $8, version = $9
		WHERE id = $10 AND version = $11`

	result, err := tx.Exec(ctx, query,
		establishment.Name,
		establishment.Code,
		establishment.DriveFolderID,
		establishment.IsActive,
		establishment.ResponsibleName,
		nullableEmail(establishment.ResponsibleEmail),
		nullablePhone(establishment.ResponsiblePhone),
		establishment.UpdatedAt,
		establishment.Version,
		establishment.ID,
		expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("failed to update establishment: %w", err)
	}
	if result.RowsAffected() == 0 {
		var exists bool
		if err := r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM establishments WHERE id = $1)`, establishment.ID).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check establishment existence: %w", err)
		}
		if exists {
			return apperrors.ErrConcurrentModification
		}
		return apperrors.NewEstablishmentNotFound(establishment.ID.String())
	}

	if err := r.replaceOwned(ctx, tx, establishment); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// replaceOwned rewrites the contact and consultant rows to match the entity's
// owned collections.
func (r *establishmentRepository) replaceOwned(ctx context.Context, tx pgx.Tx, establishment *models.Establishment) error {
	if _, err := tx.Exec(ctx, `DELETE FROM establishment_contacts WHERE establishment_id = $1`, establishment.ID); err != nil {
		return fmt.Errorf("failed to clear contacts: %w", err)
	}
	for _, contact := range establishment.Contacts() {
		_, err := tx.Exec(ctx, `
			INSERT INTO establishment_contacts (establishment_id, name, phone, email, role, is_active)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			establishment.ID, contact.Name, contact.Phone.Value(),
			nullableEmail(contact.Email), contact.Role, contact.IsActive)
		if err != nil {
			return fmt.Errorf("failed to insert contact: %w", err)
		}
	}

	if _, err := tx.Exec(ctx, `DELETE FROM establishment_consultants WHERE establishment_id = $1`, establishment.ID); err != nil {
		return fmt.Errorf("failed to clear consultants: %w", err)
	}
	for _, consultantID := range establishment.ConsultantIDs() {
		_, err := tx.Exec(ctx,
			`INSERT INTO establishment_consultants (establishment_id, consultant_id) VALUES ($1, $2)`,
			establishment.ID, consultantID)
		if err != nil {
			return fmt.Errorf("failed to insert consultant: %w", err)
		}
	}
	return nil
}

func (r *establishmentRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.Exec(ctx, `DELETE FROM establishments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete establishment: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.NewEstablishmentNotFound(id.String())
	}
	return nil
}

// nullableEmail maps a nil email to SQL NULL, otherwise its normalized string.
func nullableEmail(e *models.Email) *string {
	if e == nil {
		return nil
	}
	v := e.Value()
	return &v
}

// Ensure establishmentRepository implements EstablishmentRepository at compile time.
var _ EstablishmentRepository = (*establishmentRepository)(nil)
