package models

import (
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/vigilo-inc/vigilo-engine/pkg/apperrors"
)

func TestInspectionStatus_TransitionTable(t *testing.T) {
	// Every edge not explicitly allowed must be rejected, including
	// self-transitions and anything out of a terminal status.
	allowed := map[InspectionStatus]map[InspectionStatus]bool{
		InspectionStatusProcessing: {
			InspectionStatusPendingManagerReview: true,
			InspectionStatusRejected:             true,
		},
		InspectionStatusPendingManagerReview: {
			InspectionStatusApproved: true,
			InspectionStatusRejected: true,
		},
		InspectionStatusApproved: {
			InspectionStatusPendingConsultantVerification: true,
			InspectionStatusCompleted:                     true,
		},
		InspectionStatusPendingConsultantVerification: {
			InspectionStatusCompleted: true,
		},
		InspectionStatusCompleted: {},
		InspectionStatusRejected:  {},
	}

	for _, from := range ValidInspectionStatuses {
		for _, to := range ValidInspectionStatuses {
			want := allowed[from][to]
			if got := from.CanTransitionTo(to); got != want {
				t.Errorf("CanTransitionTo(%s -> %s) = %v, want %v", from, to, got, want)
			}
		}
	}
}

func TestInspectionStatus_Predicates(t *testing.T) {
	tests := []struct {
		status   InspectionStatus
		terminal bool
		editable bool
	}{
		{InspectionStatusProcessing, false, false},
		{InspectionStatusPendingManagerReview, false, true},
		{InspectionStatusApproved, false, true},
		{InspectionStatusPendingConsultantVerification, false, false},
		{InspectionStatusCompleted, true, false},
		{InspectionStatusRejected, true, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			if got := tt.status.IsTerminal(); got != tt.terminal {
				t.Errorf("IsTerminal() = %v, want %v", got, tt.terminal)
			}
			if got := tt.status.IsEditable(); got != tt.editable {
				t.Errorf("IsEditable() = %v, want %v", got, tt.editable)
			}
		})
	}
}

func TestNewInspection(t *testing.T) {
	insp, err := NewInspection("drive-file-1", uuid.New(), "hash-abc", "https://drive/link")
	if err != nil {
		t.Fatalf("NewInspection() error = %v", err)
	}
	if insp.Status != InspectionStatusProcessing {
		t.Errorf("Status = %s, want PROCESSING", insp.Status)
	}
	if !insp.IsProcessing() {
		t.Error("IsProcessing() = false for new inspection")
	}

	if _, err := NewInspection("", uuid.New(), "", ""); !errors.Is(err, apperrors.ErrValidation) {
		t.Errorf("NewInspection(no file id) error = %v, want ErrValidation", err)
	}
}

func TestInspection_FullLifecycle(t *testing.T) {
	insp, err := NewInspection("drive-file-1", uuid.New(), "hash-abc", "")
	if err != nil {
		t.Fatalf("NewInspection() error = %v", err)
	}

	if err := insp.MarkProcessingComplete(); err != nil {
		t.Fatalf("MarkProcessingComplete() error = %v", err)
	}
	if !insp.IsPendingReview() {
		t.Errorf("Status = %s, want PENDING_MANAGER_REVIEW", insp.Status)
	}

	if err := insp.Approve(); err != nil {
		t.Fatalf("Approve() error = %v", err)
	}
	if err := insp.SendForVerification(); err != nil {
		t.Fatalf("SendForVerification() error = %v", err)
	}
	if err := insp.Complete(); err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if !insp.IsCompleted() || !insp.IsTerminal() {
		t.Errorf("Status = %s, want terminal COMPLETED", insp.Status)
	}

	// Nothing leaves a terminal status.
	if err := insp.Approve(); !errors.Is(err, apperrors.ErrInvalidStatusTransition) {
		t.Errorf("Approve() after completion error = %v, want ErrInvalidStatusTransition", err)
	}
}

func TestInspection_CompleteSkipsVerification(t *testing.T) {
	insp, _ := NewInspection("drive-file-1", uuid.New(), "", "")
	if err := insp.MarkProcessingComplete(); err != nil {
		t.Fatal(err)
	}
	if err := insp.Approve(); err != nil {
		t.Fatal(err)
	}
	// APPROVED can complete directly without a verification round.
	if err := insp.Complete(); err != nil {
		t.Fatalf("Complete() from APPROVED error = %v", err)
	}
	if !insp.IsCompleted() {
		t.Errorf("Status = %s, want COMPLETED", insp.Status)
	}
}

func TestInspection_InvalidTransitions(t *testing.T) {
	insp, _ := NewInspection("drive-file-1", uuid.New(), "", "")

	// Approve straight out of PROCESSING skips the review step.
	if err := insp.Approve(); !errors.Is(err, apperrors.ErrInvalidStatusTransition) {
		t.Errorf("Approve() from PROCESSING error = %v, want ErrInvalidStatusTransition", err)
	}
	if err := insp.Complete(); !errors.Is(err, apperrors.ErrInvalidStatusTransition) {
		t.Errorf("Complete() from PROCESSING error = %v, want ErrInvalidStatusTransition", err)
	}
	// Status untouched after rejected transitions.
	if insp.Status != InspectionStatusProcessing {
		t.Errorf("Status = %s after failed transitions, want PROCESSING", insp.Status)
	}

	if err := insp.Reject(); err != nil {
		t.Fatalf("Reject() error = %v", err)
	}
	if err := insp.MarkProcessingComplete(); !errors.Is(err, apperrors.ErrInvalidStatusTransition) {
		t.Errorf("transition out of REJECTED error = %v, want ErrInvalidStatusTransition", err)
	}
}

func TestInspection_ProcessingLogs(t *testing.T) {
	insp, _ := NewInspection("drive-file-1", uuid.New(), "", "")

	insp.AddProcessingLog("download started", "download")
	insp.AddProcessingLog("scoring finished", "scoring")

	logs := insp.ProcessingLogs()
	if len(logs) != 2 {
		t.Fatalf("len(ProcessingLogs()) = %d, want 2", len(logs))
	}
	if logs[0].Message != "download started" || logs[1].Stage != "scoring" {
		t.Errorf("ProcessingLogs() = %v, want append order preserved", logs)
	}
	if logs[0].Timestamp.IsZero() {
		t.Error("log entry timestamp not set")
	}

	// The returned slice is a copy.
	logs[0].Message = "mutated"
	if insp.ProcessingLogs()[0].Message != "download started" {
		t.Error("ProcessingLogs() must return a copy")
	}
}

func TestInspection_IsDuplicateOf(t *testing.T) {
	withHash, _ := NewInspection("drive-file-1", uuid.New(), "hash-abc", "")
	if !withHash.IsDuplicateOf("hash-abc") {
		t.Error("IsDuplicateOf(same hash) = false")
	}
	if withHash.IsDuplicateOf("hash-other") {
		t.Error("IsDuplicateOf(other hash) = true")
	}

	// Without a stored hash nothing ever matches, not even empty-vs-empty.
	noHash, _ := NewInspection("drive-file-2", uuid.New(), "", "")
	if noHash.IsDuplicateOf("") {
		t.Error("IsDuplicateOf() on hashless inspection = true")
	}
}

func TestInspection_SetAIResponse(t *testing.T) {
	insp, _ := NewInspection("drive-file-1", uuid.New(), "", "")
	insp.SetAIResponse(JSONBMap{"score": 8.5})
	if insp.AIRawResponse["score"] != 8.5 {
		t.Errorf("AIRawResponse = %v", insp.AIRawResponse)
	}
	if insp.Version != 1 {
		t.Errorf("Version = %d after SetAIResponse, want 1", insp.Version)
	}
}
