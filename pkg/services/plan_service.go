package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vigilo-inc/vigilo-engine/pkg/apperrors"
	"github.com/vigilo-inc/vigilo-engine/pkg/jsonutil"
	"github.com/vigilo-inc/vigilo-engine/pkg/models"
	"github.com/vigilo-inc/vigilo-engine/pkg/repositories"
)

// ItemUpdateInput carries the optional fields of an item edit; nil leaves a
// field unchanged.
type ItemUpdateInput struct {
	Problem      *string
	Action       *string
	DeadlineText *string
	ManagerNotes *string
}

// PlanService builds action plans from extraction output and manages their
// items while the inspection is still editable.
type PlanService interface {
	// BuildPlan creates the plan for an inspection from its stored
	// extraction payload. Returns InspectionAlreadyProcessedError when a
	// plan already exists.
	BuildPlan(ctx context.Context, inspectionID uuid.UUID) (*models.ActionPlan, error)
	GetPlan(ctx context.Context, planID uuid.UUID) (*models.ActionPlan, error)
	GetPlanByInspection(ctx context.Context, inspectionID uuid.UUID) (*models.ActionPlan, error)
	AddItem(ctx context.Context, planID uuid.UUID, finding models.AIFinding) (*models.ActionPlanItem, error)
	RemoveItem(ctx context.Context, planID, itemID uuid.UUID) error
	UpdateItem(ctx context.Context, planID, itemID uuid.UUID, in ItemUpdateInput) (*models.ActionPlanItem, error)
	// RecalculateStats recomputes and persists the plan's statistics.
	RecalculateStats(ctx context.Context, planID uuid.UUID) (*models.ActionPlanStats, error)
	// SetFinalPDF records the public link of the rendered report.
	SetFinalPDF(ctx context.Context, planID uuid.UUID, url string) error
}

type planService struct {
	planRepo       repositories.ActionPlanRepository
	inspectionRepo repositories.InspectionRepository
	logger         *zap.Logger
}

// NewPlanService creates a new plan service with dependencies.
func NewPlanService(
	planRepo repositories.ActionPlanRepository,
	inspectionRepo repositories.InspectionRepository,
	logger *zap.Logger,
) PlanService {
	return &planService{
		planRepo:       planRepo,
		inspectionRepo: inspectionRepo,
		logger:         logger,
	}
}

var _ PlanService = (*planService)(nil)

// aiReport mirrors the extraction payload. All leaf fields are raw so the
// flexible decoders can absorb the model's type drift (numbers as strings,
// comma decimals).
type aiReport struct {
	Summary    json.RawMessage `json:"resumo_geral"`
	Strengths  json.RawMessage `json:"pontos_fortes"`
	Score      json.RawMessage `json:"pontuacao_geral"`
	MaxScore   json.RawMessage `json:"pontuacao_maxima_geral"`
	Percentage json.RawMessage `json:"aproveitamento_geral"`
	Areas      []aiArea        `json:"areas_inspecionadas"`
}

type aiArea struct {
	Name  json.RawMessage `json:"nome_area"`
	Items []aiItem        `json:"itens"`
}

type aiItem struct {
	Checked     json.RawMessage `json:"item_verificado"`
	Observation json.RawMessage `json:"observacao"`
	Status      json.RawMessage `json:"status"`
	LegalBasis  json.RawMessage `json:"fundamento_legal"`
	Action      json.RawMessage `json:"acao_corretiva_sugerida"`
	Deadline    json.RawMessage `json:"prazo_sugerido"`
	Score       json.RawMessage `json:"pontuacao"`
}

// isNonConforming matches the statuses the extraction step emits for
// findings that need correction ("Não Conforme", "Parcialmente Conforme").
func isNonConforming(status string) bool {
	lower := strings.ToLower(status)
	return strings.Contains(lower, "não conforme") || strings.Contains(lower, "parcialmente")
}

// parseReport converts the stored payload into findings plus the plan-level
// summary fields. Findings keep their area's name as sector and a running
// order index across areas.
func parseReport(payload models.JSONBMap) (*aiReport, []models.AIFinding, error) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode extraction payload: %w", err)
	}

	var report aiReport
	if err := json.Unmarshal(encoded, &report); err != nil {
		return nil, nil, apperrors.NewValidationError(
			fmt.Sprintf("malformed extraction payload: %v", err), "ai_raw_response")
	}
	if len(report.Areas) == 0 {
		return nil, nil, apperrors.NewValidationError("extraction payload contains no inspected areas", "ai_raw_response")
	}

	var findings []models.AIFinding
	order := 0
	for _, area := range report.Areas {
		sector := jsonutil.FlexibleStringValue(area.Name)
		for _, item := range area.Items {
			checked := jsonutil.FlexibleStringValue(item.Checked)
			observation := jsonutil.FlexibleStringValue(item.Observation)
			problem := checked
			if observation != "" {
				problem = fmt.Sprintf("%s: %s", checked, observation)
			}

			findings = append(findings, models.AIFinding{
				Problem:    problem,
				Action:     jsonutil.FlexibleStringValue(item.Action),
				Sector:     sector,
				LegalBasis: jsonutil.FlexibleStringValue(item.LegalBasis),
				Deadline:   jsonutil.FlexibleStringValue(item.Deadline),
				Status:     jsonutil.FlexibleStringValue(item.Status),
				Score:      jsonutil.FlexibleFloatValue(item.Score),
				Order:      order,
			})
			order++
		}
	}
	return &report, findings, nil
}

func (s *planService) BuildPlan(ctx context.Context, inspectionID uuid.UUID) (*models.ActionPlan, error) {
	inspection, err := s.inspectionRepo.GetByID(ctx, inspectionID)
	if err != nil {
		return nil, err
	}

	if existing, err := s.planRepo.GetByInspectionID(ctx, inspectionID); err == nil {
		s.logger.Warn("plan already exists for inspection",
			zap.String("inspection_id", inspectionID.String()),
			zap.String("plan_id", existing.ID.String()))
		return nil, apperrors.NewInspectionAlreadyProcessed(inspectionID.String())
	} else if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, err
	}

	if len(inspection.AIRawResponse) == 0 {
		return nil, apperrors.NewValidationError("inspection has no extraction payload", "ai_raw_response")
	}

	report, findings, err := parseReport(inspection.AIRawResponse)
	if err != nil {
		return nil, err
	}

	plan, err := models.NewActionPlan(inspectionID)
	if err != nil {
		return nil, err
	}
	plan.SetSummary(
		jsonutil.FlexibleStringValue(report.Summary),
		jsonutil.FlexibleStringValue(report.Strengths),
	)

	for _, finding := range findings {
		if finding.Action == "" {
			finding.Action = "Manter conformidade"
		}
		item, err := models.NewActionPlanItemFromAIFinding(finding)
		if err != nil {
			return nil, err
		}
		// Conforming findings enter the plan already resolved; only
		// non-conformities need tracking.
		if !isNonConforming(finding.Status) {
			item.Status = models.ItemStatusResolved
		}
		plan.AddItem(item)
	}

	stats := plan.CalculateStats()
	if stats != nil {
		stats.Score = jsonutil.FlexibleFloatValue(report.Score)
		stats.Percentage = jsonutil.FlexibleFloatValue(report.Percentage)
		plan.SetStats(stats)
	}

	if err := s.planRepo.Create(ctx, plan); err != nil {
		return nil, err
	}

	s.logger.Info("action plan built",
		zap.String("inspection_id", inspectionID.String()),
		zap.String("plan_id", plan.ID.String()),
		zap.Int("items", plan.ItemCount()),
		zap.Int("open_items", plan.OpenItemsCount()))

	return plan, nil
}

func (s *planService) GetPlan(ctx context.Context, planID uuid.UUID) (*models.ActionPlan, error) {
	return s.planRepo.GetByID(ctx, planID)
}

func (s *planService) GetPlanByInspection(ctx context.Context, inspectionID uuid.UUID) (*models.ActionPlan, error) {
	return s.planRepo.GetByInspectionID(ctx, inspectionID)
}

// editablePlan loads the plan and verifies its inspection still accepts
// edits.
func (s *planService) editablePlan(ctx context.Context, planID uuid.UUID) (*models.ActionPlan, error) {
	plan, err := s.planRepo.GetByID(ctx, planID)
	if err != nil {
		return nil, err
	}
	inspection, err := s.inspectionRepo.GetByID(ctx, plan.InspectionID)
	if err != nil {
		return nil, err
	}
	if !inspection.CanBeEdited() {
		return nil, apperrors.NewBusinessRuleViolation(
			fmt.Sprintf("inspection in status %s cannot have its plan edited", inspection.Status),
			"inspection_editable")
	}
	return plan, nil
}

func (s *planService) AddItem(ctx context.Context, planID uuid.UUID, finding models.AIFinding) (*models.ActionPlanItem, error) {
	plan, err := s.editablePlan(ctx, planID)
	if err != nil {
		return nil, err
	}
	expected := plan.Version

	item, err := models.NewActionPlanItemFromAIFinding(finding)
	if err != nil {
		return nil, err
	}
	plan.AddItem(item)
	plan.CalculateStats()

	if err := s.planRepo.Update(ctx, plan, expected); err != nil {
		return nil, err
	}
	return item, nil
}

func (s *planService) RemoveItem(ctx context.Context, planID, itemID uuid.UUID) error {
	plan, err := s.editablePlan(ctx, planID)
	if err != nil {
		return err
	}
	expected := plan.Version

	if plan.GetItem(itemID) == nil {
		return apperrors.NewNotFoundError("ActionPlanItem", itemID.String())
	}
	plan.RemoveItem(itemID)
	plan.CalculateStats()

	return s.planRepo.Update(ctx, plan, expected)
}

func (s *planService) UpdateItem(ctx context.Context, planID, itemID uuid.UUID, in ItemUpdateInput) (*models.ActionPlanItem, error) {
	plan, err := s.editablePlan(ctx, planID)
	if err != nil {
		return nil, err
	}
	expected := plan.Version

	item := plan.GetItem(itemID)
	if item == nil {
		return nil, apperrors.NewNotFoundError("ActionPlanItem", itemID.String())
	}
	if err := item.UpdateContent(in.Problem, in.Action, in.DeadlineText, in.ManagerNotes); err != nil {
		return nil, err
	}
	plan.MarkUpdated()

	if err := s.planRepo.Update(ctx, plan, expected); err != nil {
		return nil, err
	}
	return item, nil
}

func (s *planService) RecalculateStats(ctx context.Context, planID uuid.UUID) (*models.ActionPlanStats, error) {
	plan, err := s.planRepo.GetByID(ctx, planID)
	if err != nil {
		return nil, err
	}
	expected := plan.Version

	prior := plan.Stats
	stats := plan.CalculateStats()
	if stats != nil && prior != nil {
		// The external overall score is not derivable from items; keep it.
		stats.Score = prior.Score
		stats.Percentage = prior.Percentage
	}
	plan.MarkUpdated()

	if err := s.planRepo.Update(ctx, plan, expected); err != nil {
		return nil, err
	}
	return stats, nil
}

func (s *planService) SetFinalPDF(ctx context.Context, planID uuid.UUID, url string) error {
	if url == "" {
		return apperrors.NewValidationError("pdf url cannot be empty", "final_pdf_url")
	}
	plan, err := s.planRepo.GetByID(ctx, planID)
	if err != nil {
		return err
	}
	expected := plan.Version

	plan.SetPDFURL(url)

	return s.planRepo.Update(ctx, plan, expected)
}
