package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vigilo-inc/vigilo-engine/pkg/apperrors"
)

// ============================================================================
// Inspection Status
// ============================================================================

// InspectionStatus represents the workflow state of an inspection report.
// State machine:
//
//	PROCESSING → PENDING_MANAGER_REVIEW → APPROVED → PENDING_CONSULTANT_VERIFICATION → COMPLETED
//	                                          └──────────────────────────────────────→ COMPLETED
//	PROCESSING, PENDING_MANAGER_REVIEW → REJECTED
//
// COMPLETED and REJECTED are terminal.
type InspectionStatus string

const (
	InspectionStatusProcessing                    InspectionStatus = "PROCESSING"
	InspectionStatusPendingManagerReview          InspectionStatus = "PENDING_MANAGER_REVIEW"
	InspectionStatusApproved                      InspectionStatus = "APPROVED"
	InspectionStatusPendingConsultantVerification InspectionStatus = "PENDING_CONSULTANT_VERIFICATION"
	InspectionStatusCompleted                     InspectionStatus = "COMPLETED"
	InspectionStatusRejected                      InspectionStatus = "REJECTED"
)

// ValidInspectionStatuses contains all valid status values.
var ValidInspectionStatuses = []InspectionStatus{
	InspectionStatusProcessing,
	InspectionStatusPendingManagerReview,
	InspectionStatusApproved,
	InspectionStatusPendingConsultantVerification,
	InspectionStatusCompleted,
	InspectionStatusRejected,
}

// IsValidInspectionStatus checks if the given status is valid.
func IsValidInspectionStatus(s InspectionStatus) bool {
	for _, v := range ValidInspectionStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// inspectionTransitions is the closed transition table. Any edge not listed
// here is rejected.
var inspectionTransitions = map[InspectionStatus][]InspectionStatus{
	InspectionStatusProcessing:                    {InspectionStatusPendingManagerReview, InspectionStatusRejected},
	InspectionStatusPendingManagerReview:          {InspectionStatusApproved, InspectionStatusRejected},
	InspectionStatusApproved:                      {InspectionStatusPendingConsultantVerification, InspectionStatusCompleted},
	InspectionStatusPendingConsultantVerification: {InspectionStatusCompleted},
	InspectionStatusCompleted:                     {},
	InspectionStatusRejected:                      {},
}

// AllowedTransitions returns the valid successor statuses.
func (s InspectionStatus) AllowedTransitions() []InspectionStatus {
	targets := inspectionTransitions[s]
	out := make([]InspectionStatus, len(targets))
	copy(out, targets)
	return out
}

// CanTransitionTo returns true if moving from this status to the target is
// a listed edge.
func (s InspectionStatus) CanTransitionTo(target InspectionStatus) bool {
	for _, t := range inspectionTransitions[s] {
		if t == target {
			return true
		}
	}
	return false
}

// IsTerminal returns true for COMPLETED and REJECTED.
func (s InspectionStatus) IsTerminal() bool {
	return s == InspectionStatusCompleted || s == InspectionStatusRejected
}

// IsEditable returns true for the statuses in which the inspection's plan may
// still be edited.
func (s InspectionStatus) IsEditable() bool {
	return s == InspectionStatusPendingManagerReview || s == InspectionStatusApproved
}

// LabelPT returns the Portuguese display label.
func (s InspectionStatus) LabelPT() string {
	switch s {
	case InspectionStatusProcessing:
		return "Processando"
	case InspectionStatusPendingManagerReview:
		return "Aguardando Revisão"
	case InspectionStatusApproved:
		return "Aprovado"
	case InspectionStatusPendingConsultantVerification:
		return "Aguardando Verificação"
	case InspectionStatusCompleted:
		return "Concluído"
	case InspectionStatusRejected:
		return "Rejeitado"
	default:
		return string(s)
	}
}

// ============================================================================
// Supporting types
// ============================================================================

// JSONBMap holds an opaque structured payload and handles PostgreSQL JSONB
// serialization.
type JSONBMap map[string]any

// Value implements driver.Valuer for database serialization.
func (j JSONBMap) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

// Scan implements sql.Scanner for database deserialization.
func (j *JSONBMap) Scan(value any) error {
	if value == nil {
		*j = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("cannot scan %T into JSONBMap", value)
	}
	return json.Unmarshal(bytes, j)
}

// ProcessingLogEntry is one timestamped entry in an inspection's processing
// log. Entries are append-only, never removed or reordered.
type ProcessingLogEntry struct {
	Message   string    `json:"message"`
	Stage     string    `json:"stage,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ============================================================================
// Inspection
// ============================================================================

// Inspection represents a single uploaded sanitary inspection report moving
// through the review workflow. The external ingestion process creates it in
// PROCESSING; every later status change is validated against the transition
// table.
type Inspection struct {
	Entity
	DriveFileID     string           `json:"drive_file_id"`
	EstablishmentID uuid.UUID        `json:"establishment_id"`
	Status          InspectionStatus `json:"status"`

	DriveWebLink string `json:"drive_web_link,omitempty"`
	FileHash     string `json:"file_hash,omitempty"` // duplicate-detection key

	// Opaque payload from the external scoring step, kept verbatim.
	AIRawResponse JSONBMap `json:"ai_raw_response,omitempty"`

	ProcessedFilename string `json:"processed_filename,omitempty"`

	processingLogs []ProcessingLogEntry
}

// NewInspection creates an inspection in PROCESSING. The caller (the
// ingestion collaborator) supplies the external document reference and is
// responsible for computing the file hash beforehand.
func NewInspection(driveFileID string, establishmentID uuid.UUID, fileHash, driveWebLink string) (*Inspection, error) {
	if driveFileID == "" {
		return nil, apperrors.NewValidationError("drive file id is required", "drive_file_id")
	}
	return &Inspection{
		Entity:          NewEntity(),
		DriveFileID:     driveFileID,
		EstablishmentID: establishmentID,
		Status:          InspectionStatusProcessing,
		FileHash:        fileHash,
		DriveWebLink:    driveWebLink,
	}, nil
}

// RehydrateInspection reconstructs an inspection from persisted state. Only
// the persistence layer calls this.
func RehydrateInspection(base Entity, driveFileID string, establishmentID uuid.UUID, status InspectionStatus, driveWebLink, fileHash string, aiRawResponse JSONBMap, processedFilename string, logs []ProcessingLogEntry) *Inspection {
	i := &Inspection{
		Entity:            base,
		DriveFileID:       driveFileID,
		EstablishmentID:   establishmentID,
		Status:            status,
		DriveWebLink:      driveWebLink,
		FileHash:          fileHash,
		AIRawResponse:     aiRawResponse,
		ProcessedFilename: processedFilename,
	}
	i.processingLogs = append(i.processingLogs, logs...)
	return i
}

// IsProcessing reports whether the inspection is still being processed.
func (i *Inspection) IsProcessing() bool { return i.Status == InspectionStatusProcessing }

// IsPendingReview reports whether the inspection awaits manager review.
func (i *Inspection) IsPendingReview() bool {
	return i.Status == InspectionStatusPendingManagerReview
}

// IsApproved reports whether the inspection has been approved.
func (i *Inspection) IsApproved() bool { return i.Status == InspectionStatusApproved }

// IsCompleted reports whether the inspection has completed.
func (i *Inspection) IsCompleted() bool { return i.Status == InspectionStatusCompleted }

// IsRejected reports whether the inspection was rejected.
func (i *Inspection) IsRejected() bool { return i.Status == InspectionStatusRejected }

// CanBeEdited reports whether the inspection's plan may still be edited.
func (i *Inspection) CanBeEdited() bool { return i.Status.IsEditable() }

// IsTerminal reports whether the inspection reached a terminal status.
func (i *Inspection) IsTerminal() bool { return i.Status.IsTerminal() }

func (i *Inspection) validateTransition(target InspectionStatus) error {
	if !i.Status.CanTransitionTo(target) {
		return apperrors.NewInvalidStatusTransition("inspection", string(i.Status), string(target))
	}
	return nil
}

// TransitionTo moves the inspection to a new status, validating the edge
// against the transition table.
func (i *Inspection) TransitionTo(target InspectionStatus) error {
	if err := i.validateTransition(target); err != nil {
		return err
	}
	i.Status = target
	i.MarkUpdated()
	return nil
}

// MarkProcessingComplete moves the inspection to PENDING_MANAGER_REVIEW once
// scoring has finished.
func (i *Inspection) MarkProcessingComplete() error {
	return i.TransitionTo(InspectionStatusPendingManagerReview)
}

// Approve moves the inspection to APPROVED.
func (i *Inspection) Approve() error {
	return i.TransitionTo(InspectionStatusApproved)
}

// Reject moves the inspection to REJECTED.
func (i *Inspection) Reject() error {
	return i.TransitionTo(InspectionStatusRejected)
}

// SendForVerification moves the inspection to
// PENDING_CONSULTANT_VERIFICATION for field verification.
func (i *Inspection) SendForVerification() error {
	return i.TransitionTo(InspectionStatusPendingConsultantVerification)
}

// Complete moves the inspection to COMPLETED. Completion is reachable from
// both APPROVED (skip-verification fast path) and
// PENDING_CONSULTANT_VERIFICATION.
func (i *Inspection) Complete() error {
	if i.Status != InspectionStatusApproved && i.Status != InspectionStatusPendingConsultantVerification {
		return apperrors.NewInvalidStatusTransition("inspection", string(i.Status), string(InspectionStatusCompleted))
	}
	i.Status = InspectionStatusCompleted
	i.MarkUpdated()
	return nil
}

// AddProcessingLog appends a timestamped log entry. Logs are append-only.
func (i *Inspection) AddProcessingLog(message, stage string) {
	i.processingLogs = append(i.processingLogs, ProcessingLogEntry{
		Message:   message,
		Stage:     stage,
		Timestamp: time.Now().UTC(),
	})
}

// ProcessingLogs returns a copy of the log entries, in append order.
func (i *Inspection) ProcessingLogs() []ProcessingLogEntry {
	logs := make([]ProcessingLogEntry, len(i.processingLogs))
	copy(logs, i.processingLogs)
	return logs
}

// SetAIResponse stores the raw scoring payload.
func (i *Inspection) SetAIResponse(response JSONBMap) {
	i.AIRawResponse = response
	i.MarkUpdated()
}

// IsDuplicateOf reports whether the given content hash matches this
// inspection's file hash. An inspection without a hash never matches.
func (i *Inspection) IsDuplicateOf(fileHash string) bool {
	if i.FileHash == "" {
		return false
	}
	return i.FileHash == fileHash
}

func (i *Inspection) String() string {
	fileRef := i.DriveFileID
	if len(fileRef) > 8 {
		fileRef = fileRef[:8] + "..."
	}
	return fmt.Sprintf("Inspection(%s, %s)", fileRef, i.Status.LabelPT())
}
