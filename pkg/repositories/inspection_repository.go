package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/vigilo-inc/vigilo-engine/pkg/apperrors"
	"github.com/vigilo-inc/vigilo-engine/pkg/database"
	"github.com/vigilo-inc/vigilo-engine/pkg/models"
)

// InspectionRepository defines the interface for inspection data access.
type InspectionRepository interface {
	Create(ctx context.Context, inspection *models.Inspection) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Inspection, error)
	// GetByFileHash returns the inspection holding the given content hash,
	// or a not-found error. Used for duplicate upload detection.
	GetByFileHash(ctx context.Context, fileHash string) (*models.Inspection, error)
	ListByEstablishment(ctx context.Context, establishmentID uuid.UUID) ([]*models.Inspection, error)
	ListByStatus(ctx context.Context, status models.InspectionStatus) ([]*models.Inspection, error)
	// Update persists the inspection, expecting the given version in storage.
	Update(ctx context.Context, inspection *models.Inspection, expectedVersion int64) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// inspectionRepository implements InspectionRepository using PostgreSQL.
type inspectionRepository struct {
	db *database.DB
}

// NewInspectionRepository creates a new inspection repository.
func NewInspectionRepository(db *database.DB) InspectionRepository {
	return &inspectionRepository{db: db}
}

const inspectionColumns = `id, drive_file_id, establishment_id, status, drive_web_link,
	file_hash, ai_raw_response, processed_filename, processing_logs, created_at, updated_at, version`

func scanInspection(row pgx.Row) (*models.Inspection, error) {
	var (
		base              models.Entity
		driveFileID       string
		establishmentID   uuid.UUID
		status            models.InspectionStatus
		driveWebLink      string
		fileHash          string
		aiRawResponse     models.JSONBMap
		processedFilename string
		logsJSON          []byte
	)
	err := row.Scan(&base.ID, &driveFileID, &establishmentID, &status, &driveWebLink,
		&fileHash, &aiRawResponse, &processedFilename, &logsJSON,
		&base.CreatedAt, &base.UpdatedAt, &base.Version)
	if err != nil {
		return nil, err
	}

	var logs []models.ProcessingLogEntry
	if len(logsJSON) > 0 {
		if err := json.Unmarshal(logsJSON, &logs); err != nil {
			return nil, fmt.Errorf("failed to decode processing logs: %w", err)
		}
	}

	return models.RehydrateInspection(base, driveFileID, establishmentID, status,
		driveWebLink, fileHash, aiRawResponse, processedFilename, logs), nil
}

func encodeLogs(logs []models.ProcessingLogEntry) ([]byte, error) {
	if len(logs) == 0 {
		return []byte("[]"), nil
	}
	return json.Marshal(logs)
}

func (r *inspectionRepository) Create(ctx context.Context, inspection *models.Inspection) error {
	logsJSON, err := encodeLogs(inspection.ProcessingLogs())
	if err != nil {
		return fmt.Errorf("failed to encode processing logs: %w", err)
	}

	query := `
		INSERT INTO inspections (id, drive_file_id, establishment_id, status, drive_web_link,
			file_hash, ai_raw_response, processed_filename, processing_logs, created_at, updated_at, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err = r.db.Exec(ctx, query,
		inspection.ID,
		inspection.DriveFileID,
		inspection.EstablishmentID,
		inspection.Status,
		inspection.DriveWebLink,
		inspection.FileHash,
		inspection.AIRawResponse,
		inspection.ProcessedFilename,
		logsJSON,
		inspection.CreatedAt,
		inspection.UpdatedAt,
		inspection.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to create inspection: %w", err)
	}
	return nil
}

func (r *inspectionRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Inspection, error) {
	row := r.db.QueryRow(ctx, `SELECT `+inspectionColumns+` FROM inspections WHERE id = $1`, id)
	inspection, err := scanInspection(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewInspectionNotFound(id.String())
		}
		return nil, fmt.Errorf("failed to get inspection: %w", err)
	}
	return inspection, nil
}

func (r *inspectionRepository) GetByFileHash(ctx context.Context, fileHash string) (*models.Inspection, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+inspectionColumns+` FROM inspections WHERE file_hash = $1 ORDER BY created_at LIMIT 1`, fileHash)
	inspection, err := scanInspection(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewInspectionNotFound(fileHash)
		}
		return nil, fmt.Errorf("failed to get inspection by hash: %w", err)
	}
	return inspection, nil
}

func (r *inspectionRepository) ListByEstablishment(ctx context.Context, establishmentID uuid.UUID) ([]*models.Inspection, error) {
	return r.list(ctx,
		`SELECT `+inspectionColumns+` FROM inspections WHERE establishment_id = $1 ORDER BY created_at DESC`,
		establishmentID)
}

func (r *inspectionRepository) ListByStatus(ctx context.Context, status models.InspectionStatus) ([]*models.Inspection, error) {
	return r.list(ctx,
		`SELECT `+inspectionColumns+` FROM inspections WHERE status = $1 ORDER BY created_at DESC`, status)
}

func (r *inspectionRepository) list(ctx context.Context, query string, arg any) ([]*models.Inspection, error) {
	rows, err := r.db.Query(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to list inspections: %w", err)
	}
	defer rows.Close()

	var inspections []*models.Inspection
	for rows.Next() {
		inspection, err := scanInspection(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan inspection: %w", err)
		}
		inspections = append(inspections, inspection)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating inspections: %w", err)
	}
	return inspections, nil
}

func (r *inspectionRepository) Update(ctx context.Context, inspection *models.Inspection, expectedVersion int64) error {
	logsJSON, err := encodeLogs(inspection.ProcessingLogs())
	if err != nil {
		return fmt.Errorf("failed to encode processing logs: %w", err)
	}

	query := `
		UPDATE inspections
		SET status = $1, drive_web_link = $2, file_hash = $3, ai_raw_response = $4,
		    processed_filename = $5, processing_logs = $6, updated_at = $7, version = $8
		WHERE id = $9 AND version = $10`

	result, err := r.db.Exec(ctx, query,
		inspection.Status,
		inspection.DriveWebLink,
		inspection.FileHash,
		inspection.AIRawResponse,
		inspection.ProcessedFilename,
		logsJSON,
		inspection.UpdatedAt,
		inspection.Version,
		inspection.ID,
		expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("failed to update inspection: %w", err)
	}
	if result.RowsAffected() == 0 {
		var exists bool
		if err := r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM inspections WHERE id = $1)`, inspection.ID).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check inspection existence: %w", err)
		}
		if exists {
			return apperrors.ErrConcurrentModification
		}
		return apperrors.NewInspectionNotFound(inspection.ID.String())
	}
	return nil
}

func (r *inspectionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.Exec(ctx, `DELETE FROM inspections WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete inspection: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.NewInspectionNotFound(id.String())
	}
	return nil
}

// Ensure inspectionRepository implements InspectionRepository at compile time.
var _ InspectionRepository = (*inspectionRepository)(nil)
