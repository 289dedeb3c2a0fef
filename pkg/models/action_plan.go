package models

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vigilo-inc/vigilo-engine/pkg/apperrors"
)

// ============================================================================
// Item Status
// ============================================================================

// ActionPlanItemStatus represents the resolution state of a single item.
// Unlike InspectionStatus there is no transition table: item status is
// operator-driven free correction, and any state may move to any other.
type ActionPlanItemStatus string

const (
	ItemStatusOpen       ActionPlanItemStatus = "OPEN"
	ItemStatusInProgress ActionPlanItemStatus = "IN_PROGRESS"
	ItemStatusResolved   ActionPlanItemStatus = "RESOLVED"
)

// ValidActionPlanItemStatuses contains all valid item status values.
var ValidActionPlanItemStatuses = []ActionPlanItemStatus{
	ItemStatusOpen,
	ItemStatusInProgress,
	ItemStatusResolved,
}

// IsValidActionPlanItemStatus checks if the given status is valid.
func IsValidActionPlanItemStatus(s ActionPlanItemStatus) bool {
	for _, v := range ValidActionPlanItemStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// LabelPT returns the Portuguese display label.
func (s ActionPlanItemStatus) LabelPT() string {
	switch s {
	case ItemStatusOpen:
		return "Pendente"
	case ItemStatusInProgress:
		return "Em Andamento"
	case ItemStatusResolved:
		return "Corrigido"
	default:
		return string(s)
	}
}

// ============================================================================
// Action Plan Item
// ============================================================================

// AIFinding is the input contract for a single scored finding produced by the
// external extraction step. This is the only place unvalidated scoring output
// enters the domain; out-of-range values are rejected by the constructors,
// never coerced.
type AIFinding struct {
	Problem    string   `json:"problem"`
	Action     string   `json:"action"`
	Sector     string   `json:"sector,omitempty"`
	LegalBasis string   `json:"legal_basis,omitempty"`
	Deadline   string   `json:"deadline,omitempty"`
	Status     string   `json:"status,omitempty"`
	Score      *float64 `json:"score,omitempty"`
	Order      int      `json:"order"`
}

// ActionPlanItem is one non-compliance finding plus its prescribed corrective
// action. The original AI-provided status and score are preserved verbatim
// for downstream model retraining and audit; status changes never overwrite
// them.
type ActionPlanItem struct {
	ID uuid.UUID `json:"id"`

	ProblemDescription string `json:"problem_description"`
	CorrectiveAction   string `json:"corrective_action"`
	LegalBasis         string `json:"legal_basis,omitempty"`

	DeadlineDate        *time.Time `json:"deadline_date,omitempty"`
	DeadlineText        string     `json:"deadline_text,omitempty"`
	AISuggestedDeadline string     `json:"ai_suggested_deadline,omitempty"`

	Severity   SeverityLevel `json:"severity"`
	Sector     string        `json:"sector,omitempty"`
	OrderIndex int           `json:"order_index"` // position within the plan, sector-independent

	Status        ActionPlanItemStatus `json:"status"`
	CurrentStatus string               `json:"current_status,omitempty"` // free-text UI label

	OriginalStatus string   `json:"original_status,omitempty"`
	OriginalScore  *float64 `json:"original_score,omitempty"`

	ManagerNotes     string `json:"manager_notes,omitempty"`
	EvidenceImageURL string `json:"evidence_image_url,omitempty"`
}

// NewActionPlanItem creates an item with the required problem and corrective
// action.
func NewActionPlanItem(problem, action string) (*ActionPlanItem, error) {
	if problem == "" {
		return nil, apperrors.NewValidationError("problem description is required", "problem_description")
	}
	if action == "" {
		return nil, apperrors.NewValidationError("corrective action is required", "corrective_action")
	}
	return &ActionPlanItem{
		ID:                 uuid.New(),
		ProblemDescription: problem,
		CorrectiveAction:   action,
		Severity:           SeverityMedium,
		Status:             ItemStatusOpen,
	}, nil
}

// NewActionPlanItemFromAIFinding creates an item from an external scored
// finding, deriving severity from the score when one is present (MEDIUM
// otherwise) and preserving the original status and score verbatim.
func NewActionPlanItemFromAIFinding(f AIFinding) (*ActionPlanItem, error) {
	item, err := NewActionPlanItem(f.Problem, f.Action)
	if err != nil {
		return nil, err
	}

	if f.Score != nil {
		if *f.Score < 0 || *f.Score > 10 {
			return nil, apperrors.NewValidationError(
				fmt.Sprintf("score must be between 0 and 10, got: %g", *f.Score), "score")
		}
		item.Severity = SeverityFromScore(*f.Score)
		score := *f.Score
		item.OriginalScore = &score
	}

	item.Sector = f.Sector
	item.LegalBasis = f.LegalBasis
	item.AISuggestedDeadline = f.Deadline
	item.DeadlineText = f.Deadline
	item.OriginalStatus = f.Status
	item.OrderIndex = f.Order
	return item, nil
}

// IsResolved reports whether the item has been resolved.
func (i *ActionPlanItem) IsResolved() bool { return i.Status == ItemStatusResolved }

// IsOpen reports whether the item is open.
func (i *ActionPlanItem) IsOpen() bool { return i.Status == ItemStatusOpen }

// HasEvidence reports whether an evidence image is attached.
func (i *ActionPlanItem) HasEvidence() bool { return i.EvidenceImageURL != "" }

// Score wraps the preserved (original score, original status) pair into a
// Score value object, or nil when no score was recorded. An out-of-range
// legacy value fails here rather than being silently clamped.
func (i *ActionPlanItem) Score() (*Score, error) {
	if i.OriginalScore == nil {
		return nil, nil
	}
	score, err := NewScore(*i.OriginalScore, i.OriginalStatus)
	if err != nil {
		return nil, err
	}
	return &score, nil
}

// Resolve marks the item resolved, optionally recording manager notes.
func (i *ActionPlanItem) Resolve(notes string) {
	i.Status = ItemStatusResolved
	i.CurrentStatus = "Corrigido"
	if notes != "" {
		i.ManagerNotes = notes
	}
}

// Reopen returns the item to open.
func (i *ActionPlanItem) Reopen() {
	i.Status = ItemStatusOpen
	i.CurrentStatus = "Reaberto"
}

// StartProgress marks the item as being verified.
func (i *ActionPlanItem) StartProgress() {
	i.Status = ItemStatusInProgress
	i.CurrentStatus = "Em Verificação"
}

// AddEvidence attaches an evidence image URL.
func (i *ActionPlanItem) AddEvidence(imageURL string) error {
	if imageURL == "" {
		return apperrors.NewValidationError("evidence url cannot be empty", "evidence_image_url")
	}
	i.EvidenceImageURL = imageURL
	return nil
}

// UpdateContent updates only the supplied fields; nil leaves a field
// unchanged. An all-whitespace problem or action is rejected and the existing
// value preserved.
func (i *ActionPlanItem) UpdateContent(problem, action, deadlineText, notes *string) error {
	if problem != nil {
		trimmed := strings.TrimSpace(*problem)
		if trimmed == "" {
			return apperrors.NewValidationError("problem description cannot be empty", "problem_description")
		}
		i.ProblemDescription = trimmed
	}
	if action != nil {
		trimmed := strings.TrimSpace(*action)
		if trimmed == "" {
			return apperrors.NewValidationError("corrective action cannot be empty", "corrective_action")
		}
		i.CorrectiveAction = trimmed
	}
	if deadlineText != nil {
		i.DeadlineText = *deadlineText
	}
	if notes != nil {
		i.ManagerNotes = *notes
	}
	return nil
}

func (i *ActionPlanItem) String() string {
	desc := i.ProblemDescription
	if len(desc) > 30 {
		desc = desc[:30] + "..."
	}
	if i.Sector != "" {
		return fmt.Sprintf("ActionPlanItem([%s] %s)", i.Sector, desc)
	}
	return fmt.Sprintf("ActionPlanItem(%s)", desc)
}

// ============================================================================
// Statistics
// ============================================================================

// SeverityStats is the per-severity breakdown in plan statistics.
type SeverityStats struct {
	Total    int `json:"total"`
	Resolved int `json:"resolved"`
}

// SectorStats is the per-sector breakdown in plan statistics. AvgScore is the
// mean of the sector's original item scores, nil when no item carries one.
type SectorStats struct {
	Total    int      `json:"total"`
	Resolved int      `json:"resolved"`
	AvgScore *float64 `json:"avg_score"`
}

// ActionPlanStats is the derived statistics contract consumed by reporting.
// Renderers depend on these exact JSON keys.
type ActionPlanStats struct {
	TotalItems           int                      `json:"total_items"`
	ResolvedItems        int                      `json:"resolved_items"`
	ResolutionPercentage float64                  `json:"resolution_percentage"`
	BySeverity           map[string]SeverityStats `json:"by_severity"`
	BySector             map[string]SectorStats   `json:"by_sector"`

	// Overall score and percentage supplied by the external scoring step,
	// carried through when present; CalculateStats never sets them.
	Score      *float64 `json:"score,omitempty"`
	Percentage *float64 `json:"percentage,omitempty"`
}

// ============================================================================
// Action Plan
// ============================================================================

// generalSector buckets items that carry no sector.
const generalSector = "Geral"

// ActionPlan is the corrective-action aggregate owned 1:1 by an inspection.
// It exclusively owns its items: external code goes through AddItem,
// RemoveItem and GetItem, never the underlying storage.
type ActionPlan struct {
	Entity
	InspectionID uuid.UUID `json:"inspection_id"`

	SummaryText   string `json:"summary_text,omitempty"`
	StrengthsText string `json:"strengths_text,omitempty"`

	// Cached statistics, replaced only by an explicit CalculateStats call
	// and never recomputed implicitly on item mutation.
	Stats *ActionPlanStats `json:"stats_json,omitempty"`

	ApprovedByID *uuid.UUID `json:"approved_by_id,omitempty"`
	ApprovedAt   *time.Time `json:"approved_at,omitempty"`

	FinalPDFURL string `json:"final_pdf_url,omitempty"`

	items []*ActionPlanItem
}

// NewActionPlan creates a plan for an inspection.
func NewActionPlan(inspectionID uuid.UUID) (*ActionPlan, error) {
	if inspectionID == uuid.Nil {
		return nil, apperrors.NewValidationError("inspection id is required", "inspection_id")
	}
	return &ActionPlan{
		Entity:       NewEntity(),
		InspectionID: inspectionID,
	}, nil
}

// RehydrateActionPlan reconstructs a plan from persisted state. Only the
// persistence layer calls this.
func RehydrateActionPlan(base Entity, inspectionID uuid.UUID, summaryText, strengthsText string, stats *ActionPlanStats, approvedByID *uuid.UUID, approvedAt *time.Time, finalPDFURL string, items []*ActionPlanItem) *ActionPlan {
	p := &ActionPlan{
		Entity:        base,
		InspectionID:  inspectionID,
		SummaryText:   summaryText,
		StrengthsText: strengthsText,
		Stats:         stats,
		ApprovedByID:  approvedByID,
		ApprovedAt:    approvedAt,
		FinalPDFURL:   finalPDFURL,
	}
	p.items = append(p.items, items...)
	return p
}

// Items returns a view of the items sorted by (sector, order index). Items
// without a sector sort first.
func (p *ActionPlan) Items() []*ActionPlanItem {
	items := make([]*ActionPlanItem, len(p.items))
	copy(items, p.items)
	sort.SliceStable(items, func(a, b int) bool {
		if items[a].Sector != items[b].Sector {
			return items[a].Sector < items[b].Sector
		}
		return items[a].OrderIndex < items[b].OrderIndex
	})
	return items
}

// ItemCount returns the total number of items.
func (p *ActionPlan) ItemCount() int { return len(p.items) }

// OpenItemsCount returns the number of open items.
func (p *ActionPlan) OpenItemsCount() int {
	count := 0
	for _, item := range p.items {
		if item.IsOpen() {
			count++
		}
	}
	return count
}

// ResolvedItemsCount returns the number of resolved items.
func (p *ActionPlan) ResolvedItemsCount() int {
	count := 0
	for _, item := range p.items {
		if item.IsResolved() {
			count++
		}
	}
	return count
}

// ResolutionPercentage returns resolved/total*100 over the live item
// collection, independent of the cached statistics. Zero when empty.
func (p *ActionPlan) ResolutionPercentage() float64 {
	if len(p.items) == 0 {
		return 0
	}
	return float64(p.ResolvedItemsCount()) / float64(len(p.items)) * 100
}

// IsApproved reports whether the plan has been approved.
func (p *ActionPlan) IsApproved() bool { return p.ApprovedByID != nil }

// HasPDF reports whether the final PDF has been generated.
func (p *ActionPlan) HasPDF() bool { return p.FinalPDFURL != "" }

// Sectors returns the sorted unique sector names across items.
func (p *ActionPlan) Sectors() []string {
	seen := make(map[string]struct{})
	var sectors []string
	for _, item := range p.items {
		if item.Sector == "" {
			continue
		}
		if _, ok := seen[item.Sector]; !ok {
			seen[item.Sector] = struct{}{}
			sectors = append(sectors, item.Sector)
		}
	}
	sort.Strings(sectors)
	return sectors
}

// ItemsBySector groups the sorted items by sector name, bucketing unsectored
// items under "Geral".
func (p *ActionPlan) ItemsBySector() map[string][]*ActionPlanItem {
	grouped := make(map[string][]*ActionPlanItem)
	for _, item := range p.Items() {
		sector := item.Sector
		if sector == "" {
			sector = generalSector
		}
		grouped[sector] = append(grouped[sector], item)
	}
	return grouped
}

// AddItem assigns the item the next sequential order index and appends it.
func (p *ActionPlan) AddItem(item *ActionPlanItem) {
	item.OrderIndex = len(p.items)
	p.items = append(p.items, item)
	p.MarkUpdated()
}

// RemoveItem removes an item by id and reindexes the remaining items to a
// contiguous 0-based sequence. Removing an absent id is a no-op.
func (p *ActionPlan) RemoveItem(itemID uuid.UUID) {
	kept := p.items[:0]
	for _, item := range p.items {
		if item.ID != itemID {
			kept = append(kept, item)
		}
	}
	p.items = kept
	for idx, item := range p.items {
		item.OrderIndex = idx
	}
	p.MarkUpdated()
}

// GetItem returns the item with the given id, or nil.
func (p *ActionPlan) GetItem(itemID uuid.UUID) *ActionPlanItem {
	for _, item := range p.items {
		if item.ID == itemID {
			return item
		}
	}
	return nil
}

// Approve records manager approval. Approval is single-use: a second call is
// rejected regardless of approver.
func (p *ActionPlan) Approve(approverID uuid.UUID) error {
	if p.IsApproved() {
		return apperrors.NewBusinessRuleViolation("plan has already been approved", "approval")
	}
	now := time.Now().UTC()
	p.ApprovedByID = &approverID
	p.ApprovedAt = &now
	p.MarkUpdated()
	return nil
}

// SetStats replaces the cached statistics, e.g. with the scoring step's own
// aggregate payload.
func (p *ActionPlan) SetStats(stats *ActionPlanStats) {
	p.Stats = stats
	p.MarkUpdated()
}

// SetSummary sets the summary and, when given, strengths text.
func (p *ActionPlan) SetSummary(summary, strengths string) {
	p.SummaryText = summary
	if strengths != "" {
		p.StrengthsText = strengths
	}
	p.MarkUpdated()
}

// SetPDFURL records the generated final PDF location.
func (p *ActionPlan) SetPDFURL(url string) {
	p.FinalPDFURL = url
	p.MarkUpdated()
}

// OverallScore returns the scoring step's overall score from the cached
// statistics, if present.
func (p *ActionPlan) OverallScore() *float64 {
	if p.Stats == nil {
		return nil
	}
	return p.Stats.Score
}

// OverallPercentage returns the scoring step's overall percentage from the
// cached statistics, if present.
func (p *ActionPlan) OverallPercentage() *float64 {
	if p.Stats == nil {
		return nil
	}
	return p.Stats.Percentage
}

// CalculateStats recomputes statistics from current item state, returning the
// result and replacing the cached Stats. The cache is invalidated only by
// calling this again — item mutators never recompute it; callers that need
// fresh numbers after edits must call this themselves. On a plan with no
// items it returns nil and leaves the cache untouched.
func (p *ActionPlan) CalculateStats() *ActionPlanStats {
	if len(p.items) == 0 {
		return nil
	}

	stats := &ActionPlanStats{
		TotalItems: len(p.items),
		BySeverity: make(map[string]SeverityStats),
		BySector:   make(map[string]SectorStats),
	}

	sectorScores := make(map[string][]float64)

	for _, item := range p.items {
		if item.IsResolved() {
			stats.ResolvedItems++
		}

		sev := stats.BySeverity[string(item.Severity)]
		sev.Total++
		if item.IsResolved() {
			sev.Resolved++
		}
		stats.BySeverity[string(item.Severity)] = sev

		sector := item.Sector
		if sector == "" {
			sector = generalSector
		}
		sec := stats.BySector[sector]
		sec.Total++
		if item.IsResolved() {
			sec.Resolved++
		}
		stats.BySector[sector] = sec

		if item.OriginalScore != nil {
			sectorScores[sector] = append(sectorScores[sector], *item.OriginalScore)
		}
	}

	for sector, sec := range stats.BySector {
		if scores := sectorScores[sector]; len(scores) > 0 {
			sum := 0.0
			for _, s := range scores {
				sum += s
			}
			avg := sum / float64(len(scores))
			sec.AvgScore = &avg
			stats.BySector[sector] = sec
		}
	}

	stats.ResolutionPercentage = float64(stats.ResolvedItems) / float64(stats.TotalItems) * 100

	p.Stats = stats
	return stats
}

func (p *ActionPlan) String() string {
	status := "Pendente"
	if p.IsApproved() {
		status = "Aprovado"
	}
	return fmt.Sprintf("ActionPlan(%d itens, %s)", len(p.items), status)
}
