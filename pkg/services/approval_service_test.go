package services

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vigilo-inc/vigilo-engine/pkg/apperrors"
	"github.com/vigilo-inc/vigilo-engine/pkg/models"
)

// reviewFixture wires an inspection in PENDING_MANAGER_REVIEW with its built
// plan and a manager allowed to approve it.
type reviewFixture struct {
	service    ApprovalService
	inspRepo   *fakeInspectionRepo
	planRepo   *fakePlanRepo
	inspection *models.Inspection
	plan       *models.ActionPlan
	manager    *models.User
	consultant *models.User
}

func newReviewFixture(t *testing.T) *reviewFixture {
	t.Helper()

	companyID := uuid.New()
	manager, err := models.NewManager("gestor@empresa.com.br", "Gestor", companyID)
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	consultant, err := models.NewConsultant("consultor@empresa.com.br", "Consultor", companyID, nil)
	if err != nil {
		t.Fatalf("NewConsultant failed: %v", err)
	}

	inspection, err := models.NewInspection("drive-file-1", uuid.New(), "hash", "")
	if err != nil {
		t.Fatalf("NewInspection failed: %v", err)
	}
	if err := inspection.MarkProcessingComplete(); err != nil {
		t.Fatalf("MarkProcessingComplete failed: %v", err)
	}

	plan, err := models.NewActionPlan(inspection.ID)
	if err != nil {
		t.Fatalf("NewActionPlan failed: %v", err)
	}
	item, err := models.NewActionPlanItem("Piso danificado", "Reparar piso")
	if err != nil {
		t.Fatalf("NewActionPlanItem failed: %v", err)
	}
	plan.AddItem(item)

	inspRepo := newFakeInspectionRepo()
	inspRepo.put(inspection)
	planRepo := newFakePlanRepo()
	planRepo.put(plan)
	userRepo := newFakeUserRepo(manager, consultant)

	return &reviewFixture{
		service:    NewApprovalService(inspRepo, planRepo, userRepo, zap.NewNop()),
		inspRepo:   inspRepo,
		planRepo:   planRepo,
		inspection: inspection,
		plan:       plan,
		manager:    manager,
		consultant: consultant,
	}
}

func TestApprovalService_Approve_Success(t *testing.T) {
	f := newReviewFixture(t)

	if err := f.service.Approve(context.Background(), f.inspection.ID, f.manager.ID); err != nil {
		t.Fatalf("Approve failed: %v", err)
	}

	if f.inspection.Status != models.InspectionStatusApproved {
		t.Errorf("expected APPROVED, got %s", f.inspection.Status)
	}
	if !f.plan.IsApproved() {
		t.Error("expected plan approved")
	}
	if f.plan.ApprovedByID == nil || *f.plan.ApprovedByID != f.manager.ID {
		t.Errorf("expected approver %v recorded, got %v", f.manager.ID, f.plan.ApprovedByID)
	}
	logs := f.inspection.ProcessingLogs()
	if len(logs) == 0 || logs[len(logs)-1].Stage != "review" {
		t.Errorf("expected review log entry, got %+v", logs)
	}
}

func TestApprovalService_Approve_ConsultantForbidden(t *testing.T) {
	f := newReviewFixture(t)

	err := f.service.Approve(context.Background(), f.inspection.ID, f.consultant.ID)
	if !errors.Is(err, apperrors.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	if f.inspection.Status != models.InspectionStatusPendingManagerReview {
		t.Errorf("status should be unchanged, got %s", f.inspection.Status)
	}
}

func TestApprovalService_Approve_Twice(t *testing.T) {
	f := newReviewFixture(t)

	if err := f.service.Approve(context.Background(), f.inspection.ID, f.manager.ID); err != nil {
		t.Fatalf("first Approve failed: %v", err)
	}
	err := f.service.Approve(context.Background(), f.inspection.ID, f.manager.ID)
	if !errors.Is(err, apperrors.ErrInvalidStatusTransition) {
		t.Fatalf("expected invalid transition on second approve, got %v", err)
	}
}

func TestApprovalService_Approve_ResumesAfterPartialWrite(t *testing.T) {
	// A failure between the plan write and the inspection write leaves the
	// plan approved while the inspection is still in review. A retry by the
	// same approver must finish the inspection transition rather than fail
	// on the plan's single-use approval.
	f := newReviewFixture(t)
	if err := f.plan.Approve(f.manager.ID); err != nil {
		t.Fatalf("seeding approved plan failed: %v", err)
	}
	f.planRepo.put(f.plan)

	if err := f.service.Approve(context.Background(), f.inspection.ID, f.manager.ID); err != nil {
		t.Fatalf("retried Approve failed: %v", err)
	}

	if f.inspection.Status != models.InspectionStatusApproved {
		t.Errorf("expected APPROVED after retry, got %s", f.inspection.Status)
	}
	if f.inspRepo.updateCalls != 1 {
		t.Errorf("expected the inspection write to happen, got %d update calls", f.inspRepo.updateCalls)
	}
	if f.planRepo.updateCalls != 0 {
		t.Errorf("plan should not be rewritten on retry, got %d update calls", f.planRepo.updateCalls)
	}
	if f.plan.ApprovedByID == nil || *f.plan.ApprovedByID != f.manager.ID {
		t.Errorf("approver should be unchanged, got %v", f.plan.ApprovedByID)
	}
}

func TestApprovalService_Approve_ResumeRequiresSameApprover(t *testing.T) {
	f := newReviewFixture(t)
	other, err := models.NewManager("outro.gestor@empresa.com.br", "Outro Gestor", f.manager.CompanyID)
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	if err := f.plan.Approve(other.ID); err != nil {
		t.Fatalf("seeding approved plan failed: %v", err)
	}
	f.planRepo.put(f.plan)

	err = f.service.Approve(context.Background(), f.inspection.ID, f.manager.ID)
	if !errors.Is(err, apperrors.ErrBusinessRule) {
		t.Fatalf("expected business rule violation for a different approver, got %v", err)
	}
	if f.inspection.Status != models.InspectionStatusPendingManagerReview {
		t.Errorf("status should be unchanged, got %s", f.inspection.Status)
	}
}

func TestApprovalService_Approve_UnknownApprover(t *testing.T) {
	f := newReviewFixture(t)

	err := f.service.Approve(context.Background(), f.inspection.ID, uuid.New())
	if !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestApprovalService_Reject(t *testing.T) {
	f := newReviewFixture(t)

	if err := f.service.Reject(context.Background(), f.inspection.ID, f.manager.ID, "relatório ilegível"); err != nil {
		t.Fatalf("Reject failed: %v", err)
	}

	if f.inspection.Status != models.InspectionStatusRejected {
		t.Errorf("expected REJECTED, got %s", f.inspection.Status)
	}
	logs := f.inspection.ProcessingLogs()
	if logs[len(logs)-1].Message != "rejected: relatório ilegível" {
		t.Errorf("expected reason in log, got %q", logs[len(logs)-1].Message)
	}
}

func TestApprovalService_Reject_ConsultantForbidden(t *testing.T) {
	f := newReviewFixture(t)

	err := f.service.Reject(context.Background(), f.inspection.ID, f.consultant.ID, "x")
	if !errors.Is(err, apperrors.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}

func TestApprovalService_VerificationRoundTrip(t *testing.T) {
	f := newReviewFixture(t)

	if err := f.service.Approve(context.Background(), f.inspection.ID, f.manager.ID); err != nil {
		t.Fatalf("Approve failed: %v", err)
	}
	if err := f.service.SendForVerification(context.Background(), f.inspection.ID); err != nil {
		t.Fatalf("SendForVerification failed: %v", err)
	}
	if f.inspection.Status != models.InspectionStatusPendingConsultantVerification {
		t.Errorf("expected PENDING_CONSULTANT_VERIFICATION, got %s", f.inspection.Status)
	}
	if err := f.service.Complete(context.Background(), f.inspection.ID); err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if f.inspection.Status != models.InspectionStatusCompleted {
		t.Errorf("expected COMPLETED, got %s", f.inspection.Status)
	}
}

func TestApprovalService_CompleteWithoutVerification(t *testing.T) {
	f := newReviewFixture(t)

	if err := f.service.Approve(context.Background(), f.inspection.ID, f.manager.ID); err != nil {
		t.Fatalf("Approve failed: %v", err)
	}
	// Skipping the verification round is allowed.
	if err := f.service.Complete(context.Background(), f.inspection.ID); err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if f.inspection.Status != models.InspectionStatusCompleted {
		t.Errorf("expected COMPLETED, got %s", f.inspection.Status)
	}
}

func TestApprovalService_CompleteFromReviewForbidden(t *testing.T) {
	f := newReviewFixture(t)

	err := f.service.Complete(context.Background(), f.inspection.ID)
	if !errors.Is(err, apperrors.ErrInvalidStatusTransition) {
		t.Fatalf("expected invalid transition, got %v", err)
	}
}
