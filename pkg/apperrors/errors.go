// Package apperrors defines the domain error taxonomy for vigilo-engine.
//
// Every domain failure carries a human-readable message and a stable
// machine-readable code. Callers match error kinds with errors.Is against the
// sentinel values below, or extract details with errors.As against the typed
// errors. Domain code never swallows these; the application layer translates
// them into user-facing responses.
package apperrors

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel kinds for errors.Is matching.
var (
	ErrValidation              = errors.New("validation failed")
	ErrNotFound                = errors.New("not found")
	ErrUnauthorized            = errors.New("unauthorized")
	ErrBusinessRule            = errors.New("business rule violated")
	ErrInvalidStatusTransition = errors.New("invalid status transition")
	ErrAlreadyProcessed        = errors.New("already processed")
	ErrDuplicateFile           = errors.New("duplicate file")
	ErrConcurrentModification  = errors.New("concurrent modification")
)

// Coded is implemented by every error in the taxonomy.
type Coded interface {
	error
	ErrorCode() string
}

// CodeOf returns the machine-readable code for a taxonomy error, or
// "DOMAIN_ERROR" for anything else.
func CodeOf(err error) string {
	var coded Coded
	if errors.As(err, &coded) {
		return coded.ErrorCode()
	}
	return "DOMAIN_ERROR"
}

// ============================================================================
// Validation
// ============================================================================

// ValidationError reports malformed input to a constructor or setter.
// Field names the offending field so callers can surface it without parsing
// the message.
type ValidationError struct {
	Message string
	Field   string
}

// NewValidationError creates a field-tagged validation error.
func NewValidationError(message, field string) *ValidationError {
	return &ValidationError{Message: message, Field: field}
}

func (e *ValidationError) Error() string { return e.Message }

// ErrorCode returns VALIDATION_ERROR_<FIELD>, or VALIDATION_ERROR when no
// field was tagged.
func (e *ValidationError) ErrorCode() string {
	if e.Field == "" {
		return "VALIDATION_ERROR"
	}
	return "VALIDATION_ERROR_" + strings.ToUpper(e.Field)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// ============================================================================
// Not found
// ============================================================================

// NotFoundError reports a missing entity. Entities never raise this
// themselves; it belongs to lookup collaborators (repositories, services).
type NotFoundError struct {
	EntityType string
	Identifier string
}

// NewNotFoundError creates a not-found error for the given entity type and
// optional identifier.
func NewNotFoundError(entityType, identifier string) *NotFoundError {
	return &NotFoundError{EntityType: entityType, Identifier: identifier}
}

func (e *NotFoundError) Error() string {
	if e.Identifier == "" {
		return fmt.Sprintf("%s not found", e.EntityType)
	}
	return fmt.Sprintf("%s %q not found", e.EntityType, e.Identifier)
}

func (e *NotFoundError) ErrorCode() string {
	return strings.ToUpper(strings.ReplaceAll(e.EntityType, " ", "_")) + "_NOT_FOUND"
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// Per-entity constructors used across the application layer.

func NewInspectionNotFound(id string) *NotFoundError {
	return NewNotFoundError("inspection", id)
}

func NewEstablishmentNotFound(id string) *NotFoundError {
	return NewNotFoundError("establishment", id)
}

func NewUserNotFound(id string) *NotFoundError {
	return NewNotFoundError("user", id)
}

func NewCompanyNotFound(id string) *NotFoundError {
	return NewNotFoundError("company", id)
}

func NewActionPlanNotFound(id string) *NotFoundError {
	return NewNotFoundError("action plan", id)
}

// ============================================================================
// Authorization
// ============================================================================

// UnauthorizedError reports an access-control decision made by calling code
// using the role capability predicates on models.UserRole. Entities expose
// the predicates but never raise this themselves.
type UnauthorizedError struct {
	Message string
}

// NewUnauthorizedError creates an unauthorized error. An empty message
// defaults to a generic one.
func NewUnauthorizedError(message string) *UnauthorizedError {
	if message == "" {
		message = "access denied"
	}
	return &UnauthorizedError{Message: message}
}

func (e *UnauthorizedError) Error() string     { return e.Message }
func (e *UnauthorizedError) ErrorCode() string { return "UNAUTHORIZED" }

func (e *UnauthorizedError) Is(target error) bool { return target == ErrUnauthorized }

// ============================================================================
// Business rules
// ============================================================================

// BusinessRuleViolationError reports a state-dependent rule break: double
// approval, double (de)activation, assigning an establishment to a
// non-consultant, and the like.
type BusinessRuleViolationError struct {
	Message string
	Rule    string
}

// NewBusinessRuleViolation creates a business-rule error. Rule is a short
// identifier for the violated rule; empty defaults to GENERAL.
func NewBusinessRuleViolation(message, rule string) *BusinessRuleViolationError {
	if rule == "" {
		rule = "GENERAL"
	}
	return &BusinessRuleViolationError{Message: message, Rule: rule}
}

func (e *BusinessRuleViolationError) Error() string { return e.Message }

func (e *BusinessRuleViolationError) ErrorCode() string {
	return "BUSINESS_RULE_" + strings.ToUpper(e.Rule)
}

func (e *BusinessRuleViolationError) Is(target error) bool { return target == ErrBusinessRule }

// InvalidStatusTransitionError reports an illegal jump in a status state
// machine, naming the entity and both endpoints of the rejected edge.
type InvalidStatusTransitionError struct {
	EntityType    string
	CurrentStatus string
	NewStatus     string
}

// NewInvalidStatusTransition creates an invalid-transition error.
func NewInvalidStatusTransition(entityType, currentStatus, newStatus string) *InvalidStatusTransitionError {
	return &InvalidStatusTransitionError{
		EntityType:    entityType,
		CurrentStatus: currentStatus,
		NewStatus:     newStatus,
	}
}

func (e *InvalidStatusTransitionError) Error() string {
	return fmt.Sprintf("cannot transition %s from %q to %q", e.EntityType, e.CurrentStatus, e.NewStatus)
}

func (e *InvalidStatusTransitionError) ErrorCode() string { return "BUSINESS_RULE_STATUS_TRANSITION" }

func (e *InvalidStatusTransitionError) Is(target error) bool {
	return target == ErrInvalidStatusTransition || target == ErrBusinessRule
}

// InspectionAlreadyProcessedError reports an attempt to process an inspection
// that already holds processing results.
type InspectionAlreadyProcessedError struct {
	InspectionID string
}

// NewInspectionAlreadyProcessed creates an already-processed error.
func NewInspectionAlreadyProcessed(inspectionID string) *InspectionAlreadyProcessedError {
	return &InspectionAlreadyProcessedError{InspectionID: inspectionID}
}

func (e *InspectionAlreadyProcessedError) Error() string {
	return fmt.Sprintf("inspection %q has already been processed", e.InspectionID)
}

func (e *InspectionAlreadyProcessedError) ErrorCode() string {
	return "BUSINESS_RULE_ALREADY_PROCESSED"
}

func (e *InspectionAlreadyProcessedError) Is(target error) bool {
	return target == ErrAlreadyProcessed || target == ErrBusinessRule
}

// DuplicateFileError reports an upload whose content hash matches an
// inspection that was already ingested.
type DuplicateFileError struct {
	FileHash string
}

// NewDuplicateFile creates a duplicate-file error.
func NewDuplicateFile(fileHash string) *DuplicateFileError {
	return &DuplicateFileError{FileHash: fileHash}
}

func (e *DuplicateFileError) Error() string {
	return "this file has already been uploaded"
}

func (e *DuplicateFileError) ErrorCode() string { return "BUSINESS_RULE_DUPLICATE_FILE" }

func (e *DuplicateFileError) Is(target error) bool {
	return target == ErrDuplicateFile || target == ErrBusinessRule
}
