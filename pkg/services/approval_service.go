package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vigilo-inc/vigilo-engine/pkg/apperrors"
	"github.com/vigilo-inc/vigilo-engine/pkg/logging"
	"github.com/vigilo-inc/vigilo-engine/pkg/models"
	"github.com/vigilo-inc/vigilo-engine/pkg/repositories"
)

// ApprovalService drives the review stage of an inspection: manager approval
// or rejection, the optional consultant verification round, and final
// completion.
type ApprovalService interface {
	// Approve records the approver on the plan and moves the inspection to
	// APPROVED. Only manager and admin roles may approve. A retry after a
	// partial failure is safe: a plan already approved by the same approver
	// is accepted and the inspection transition is completed.
	Approve(ctx context.Context, inspectionID, approverID uuid.UUID) error
	// Reject discards the inspection with a reason logged for audit.
	Reject(ctx context.Context, inspectionID, reviewerID uuid.UUID, reason string) error
	// SendForVerification hands the approved inspection to the consultant.
	SendForVerification(ctx context.Context, inspectionID uuid.UUID) error
	// Complete closes the inspection, with or without a verification round.
	Complete(ctx context.Context, inspectionID uuid.UUID) error
}

type approvalService struct {
	inspectionRepo repositories.InspectionRepository
	planRepo       repositories.ActionPlanRepository
	userRepo       repositories.UserRepository
	logger         *zap.Logger
}

// NewApprovalService creates a new approval service with dependencies.
func NewApprovalService(
	inspectionRepo repositories.InspectionRepository,
	planRepo repositories.ActionPlanRepository,
	userRepo repositories.UserRepository,
	logger *zap.Logger,
) ApprovalService {
	return &approvalService{
		inspectionRepo: inspectionRepo,
		planRepo:       planRepo,
		userRepo:       userRepo,
		logger:         logger,
	}
}

var _ ApprovalService = (*approvalService)(nil)

func (s *approvalService) Approve(ctx context.Context, inspectionID, approverID uuid.UUID) error {
	approver, err := s.userRepo.GetByID(ctx, approverID)
	if err != nil {
		return err
	}
	if !approver.Role.CanApprovePlans() {
		return apperrors.NewUnauthorizedError(
			fmt.Sprintf("role %s cannot approve action plans", approver.Role))
	}

	inspection, err := s.inspectionRepo.GetByID(ctx, inspectionID)
	if err != nil {
		return err
	}
	expectedInspection := inspection.Version

	plan, err := s.planRepo.GetByInspectionID(ctx, inspectionID)
	if err != nil {
		return err
	}
	expectedPlan := plan.Version

	// The plan and inspection are written separately, so a failure between
	// the two writes leaves the plan approved with the inspection still in
	// review. A retry by the same approver resumes from the inspection
	// transition instead of dying on the plan's single-use rule.
	planAlreadyApproved := plan.IsApproved()
	if planAlreadyApproved && *plan.ApprovedByID != approverID {
		return apperrors.NewBusinessRuleViolation("plan has already been approved", "approval")
	}

	if err := inspection.Approve(); err != nil {
		return err
	}
	inspection.AddProcessingLog(fmt.Sprintf("approved by %s", approver.DisplayName()), "review")

	if !planAlreadyApproved {
		if err := plan.Approve(approverID); err != nil {
			return err
		}
		if err := s.planRepo.Update(ctx, plan, expectedPlan); err != nil {
			return err
		}
	}
	if err := s.inspectionRepo.Update(ctx, inspection, expectedInspection); err != nil {
		return err
	}

	s.logger.Info("inspection approved",
		zap.String("inspection_id", inspectionID.String()),
		zap.String("approver_id", approverID.String()),
		zap.String("approver_email", logging.MaskEmail(approver.Email.String())))
	return nil
}

func (s *approvalService) Reject(ctx context.Context, inspectionID, reviewerID uuid.UUID, reason string) error {
	reviewer, err := s.userRepo.GetByID(ctx, reviewerID)
	if err != nil {
		return err
	}
	if !reviewer.Role.CanApprovePlans() {
		return apperrors.NewUnauthorizedError(
			fmt.Sprintf("role %s cannot reject inspections", reviewer.Role))
	}

	inspection, err := s.inspectionRepo.GetByID(ctx, inspectionID)
	if err != nil {
		return err
	}
	expected := inspection.Version

	if err := inspection.Reject(); err != nil {
		return err
	}
	message := "rejected"
	if reason != "" {
		message = "rejected: " + reason
	}
	inspection.AddProcessingLog(message, "review")

	if err := s.inspectionRepo.Update(ctx, inspection, expected); err != nil {
		return err
	}

	s.logger.Info("inspection rejected",
		zap.String("inspection_id", inspectionID.String()),
		zap.String("reviewer_id", reviewerID.String()),
		zap.String("reason", reason))
	return nil
}

func (s *approvalService) SendForVerification(ctx context.Context, inspectionID uuid.UUID) error {
	inspection, err := s.inspectionRepo.GetByID(ctx, inspectionID)
	if err != nil {
		return err
	}
	expected := inspection.Version

	if err := inspection.SendForVerification(); err != nil {
		return err
	}
	inspection.AddProcessingLog("sent for consultant verification", "review")

	if err := s.inspectionRepo.Update(ctx, inspection, expected); err != nil {
		return err
	}

	s.logger.Info("inspection sent for verification",
		zap.String("inspection_id", inspectionID.String()))
	return nil
}

func (s *approvalService) Complete(ctx context.Context, inspectionID uuid.UUID) error {
	inspection, err := s.inspectionRepo.GetByID(ctx, inspectionID)
	if err != nil {
		return err
	}
	expected := inspection.Version

	if err := inspection.Complete(); err != nil {
		return err
	}
	inspection.AddProcessingLog("inspection completed", "review")

	if err := s.inspectionRepo.Update(ctx, inspection, expected); err != nil {
		return err
	}

	s.logger.Info("inspection completed",
		zap.String("inspection_id", inspectionID.String()),
		zap.String("status", string(models.InspectionStatusCompleted)))
	return nil
}
