package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/vigilo-inc/vigilo-engine/pkg/apperrors"
	"github.com/vigilo-inc/vigilo-engine/pkg/database"
	"github.com/vigilo-inc/vigilo-engine/pkg/models"
)

// ActionPlanRepository defines the interface for action plan data access.
// Items are persisted with the plan aggregate: every write replaces the item
// rows to match the entity's owned collection.
type ActionPlanRepository interface {
	Create(ctx context.Context, plan *models.ActionPlan) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.ActionPlan, error)
	GetByInspectionID(ctx context.Context, inspectionID uuid.UUID) (*models.ActionPlan, error)
	// Update persists the plan and its items, expecting the given version in
	// storage.
	Update(ctx context.Context, plan *models.ActionPlan, expectedVersion int64) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// actionPlanRepository implements ActionPlanRepository using PostgreSQL.
type actionPlanRepository struct {
	db *database.DB
}

// NewActionPlanRepository creates a new action plan repository.
func NewActionPlanRepository(db *database.DB) ActionPlanRepository {
	return &actionPlanRepository{db: db}
}

const planColumns = `id, inspection_id, summary_text, strengths_text, stats_json,
	approved_by_id, approved_at, final_pdf_url, created_at, updated_at, version`

func (r *actionPlanRepository) scanPlan(ctx context.Context, row pgx.Row) (*models.ActionPlan, error) {
	var (
		base          models.Entity
		inspectionID  uuid.UUID
		summaryText   string
		strengthsText string
		statsJSON     []byte
		approvedByID  *uuid.UUID
		approvedAt    *time.Time
		finalPDFURL   string
	)
	err := row.Scan(&base.ID, &inspectionID, &summaryText, &strengthsText, &statsJSON,
		&approvedByID, &approvedAt, &finalPDFURL,
		&base.CreatedAt, &base.UpdatedAt, &base.Version)
	if err != nil {
		return nil, err
	}

	var stats *models.ActionPlanStats
	if len(statsJSON) > 0 {
		stats = &models.ActionPlanStats{}
		if err := json.Unmarshal(statsJSON, stats); err != nil {
			return nil, fmt.Errorf("failed to decode plan stats: %w", err)
		}
	}

	items, err := r.loadItems(ctx, base.ID)
	if err != nil {
		return nil, err
	}

	return models.RehydrateActionPlan(base, inspectionID, summaryText, strengthsText,
		stats, approvedByID, approvedAt, finalPDFURL, items), nil
}

const itemColumns = `id, problem_description, corrective_action, legal_basis,
	deadline_date, deadline_text, ai_suggested_deadline, severity, sector, order_index,
	status, current_status, original_status, original_score, manager_notes, evidence_image_url`

func (r *actionPlanRepository) loadItems(ctx context.Context, planID uuid.UUID) ([]*models.ActionPlanItem, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+itemColumns+` FROM action_plan_items WHERE plan_id = $1 ORDER BY order_index`, planID)
	if err != nil {
		return nil, fmt.Errorf("failed to load plan items: %w", err)
	}
	defer rows.Close()

	var items []*models.ActionPlanItem
	for rows.Next() {
		var item models.ActionPlanItem
		err := rows.Scan(
			&item.ID,
			&item.ProblemDescription,
			&item.CorrectiveAction,
			&item.LegalBasis,
			&item.DeadlineDate,
			&item.DeadlineText,
			&item.AISuggestedDeadline,
			&item.Severity,
			&item.Sector,
			&item.OrderIndex,
			&item.Status,
			&item.CurrentStatus,
			&item.OriginalStatus,
			&item.OriginalScore,
			&item.ManagerNotes,
			&item.EvidenceImageURL,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan plan item: %w", err)
		}
		items = append(items, &item)
	}
	return items, rows.Err()
}

func (r *actionPlanRepository) Create(ctx context.Context, plan *models.ActionPlan) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	statsJSON, err := encodeStats(plan.Stats)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO action_plans (id, inspection_id, summary_text, strengths_text, stats_json,
			approved_by_id, approved_at, final_pdf_url, created_at, updated_at, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err = tx.Exec(ctx, query,
		plan.ID,
		plan.InspectionID,
		plan.SummaryText,
		plan.StrengthsText,
		statsJSON,
		plan.ApprovedByID,
		plan.ApprovedAt,
		plan.FinalPDFURL,
		plan.CreatedAt,
		plan.UpdatedAt,
		plan.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to create action plan: %w", err)
	}

	if err := r.replaceItems(ctx, tx, plan); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (r *actionPlanRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.ActionPlan, error) {
	row := r.db.QueryRow(ctx, `SELECT `+planColumns+` FROM action_plans WHERE id = $1`, id)
	plan, err := r.scanPlan(ctx, row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewActionPlanNotFound(id.String())
		}
		return nil, fmt.Errorf("failed to get action plan: %w", err)
	}
	return plan, nil
}

func (r *actionPlanRepository) GetByInspectionID(ctx context.Context, inspectionID uuid.UUID) (*models.ActionPlan, error) {
	row := r.db.QueryRow(ctx, `SELECT `+planColumns+` FROM action_plans WHERE inspection_id = $1`, inspectionID)
	plan, err := r.scanPlan(ctx, row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewActionPlanNotFound(inspectionID.String())
		}
		return nil, fmt.Errorf("failed to get action plan by inspection: %w", err)
	}
	return plan, nil
}

func (r *actionPlanRepository) Update(ctx context.Context, plan *models.ActionPlan, expectedVersion int64) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	statsJSON, err := encodeStats(plan.Stats)
	if err != nil {
		return err
	}

	query := `
		UPDATE action_plans
		SET summary_text = $1, strengths_text = $2, stats_json = $3,
		    approved_by_id = $4, approved_at = $5, final_pdf_url = $6,
		    updated_at = $7, version = $8
		WHERE id = $9 AND version = $10`

	result, err := tx.Exec(ctx, query,
		plan.SummaryText,
		plan.StrengthsText,
		statsJSON,
		plan.ApprovedByID,
		plan.ApprovedAt,
		plan.FinalPDFURL,
		plan.UpdatedAt,
		plan.Version,
		plan.ID,
		expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("failed to update action plan: %w", err)
	}
	if result.RowsAffected() == 0 {
		var exists bool
		if err := r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM action_plans WHERE id = $1)`, plan.ID).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check action plan existence: %w", err)
		}
		if exists {
			return apperrors.ErrConcurrentModification
		}
		return apperrors.NewActionPlanNotFound(plan.ID.String())
	}

	if err := r.replaceItems(ctx, tx, plan); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// replaceItems rewrites the item rows to match the plan's owned collection.
func (r *actionPlanRepository) replaceItems(ctx context.Context, tx pgx.Tx, plan *models.ActionPlan) error {
	if _, err := tx.Exec(ctx, `DELETE FROM action_plan_items WHERE plan_id = $1`, plan.ID); err != nil {
		return fmt.Errorf("failed to clear plan items: %w", err)
	}

	for _, item := range plan.Items() {
		_, err := tx.Exec(ctx, `
			INSERT INTO action_plan_items (plan_id, `+itemColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
			plan.ID,
			item.ID,
			item.ProblemDescription,
			item.CorrectiveAction,
			item.LegalBasis,
			item.DeadlineDate,
			item.DeadlineText,
			item.AISuggestedDeadline,
			item.Severity,
			item.Sector,
			item.OrderIndex,
			item.Status,
			item.CurrentStatus,
			item.OriginalStatus,
			item.OriginalScore,
			item.ManagerNotes,
			item.EvidenceImageURL,
		)
		if err != nil {
			return fmt.Errorf("failed to insert plan item: %w", err)
		}
	}
	return nil
}

func (r *actionPlanRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.Exec(ctx, `DELETE FROM action_plans WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete action plan: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.NewActionPlanNotFound(id.String())
	}
	return nil
}

func encodeStats(stats *models.ActionPlanStats) ([]byte, error) {
	if stats == nil {
		return nil, nil
	}
	data, err := json.Marshal(stats)
	if err != nil {
		return nil, fmt.Errorf("failed to encode plan stats: %w", err)
	}
	return data, nil
}

// Ensure actionPlanRepository implements ActionPlanRepository at compile time.
var _ ActionPlanRepository = (*actionPlanRepository)(nil)
