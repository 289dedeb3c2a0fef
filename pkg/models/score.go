package models

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/vigilo-inc/vigilo-engine/pkg/apperrors"
)

// ============================================================================
// Severity Levels
// ============================================================================

// SeverityLevel classifies the urgency of an action plan item.
type SeverityLevel string

const (
	SeverityLow      SeverityLevel = "LOW"
	SeverityMedium   SeverityLevel = "MEDIUM"
	SeverityHigh     SeverityLevel = "HIGH"
	SeverityCritical SeverityLevel = "CRITICAL"
)

// ValidSeverityLevels contains all valid severity values.
var ValidSeverityLevels = []SeverityLevel{
	SeverityLow,
	SeverityMedium,
	SeverityHigh,
	SeverityCritical,
}

// IsValidSeverityLevel checks if the given severity is valid.
func IsValidSeverityLevel(s SeverityLevel) bool {
	for _, v := range ValidSeverityLevels {
		if v == s {
			return true
		}
	}
	return false
}

// SeverityFromScore maps a 0-10 compliance score to a severity tier:
// >=8 LOW, >=5 MEDIUM, >=2 HIGH, else CRITICAL.
func SeverityFromScore(score float64) SeverityLevel {
	switch {
	case score >= 8:
		return SeverityLow
	case score >= 5:
		return SeverityMedium
	case score >= 2:
		return SeverityHigh
	default:
		return SeverityCritical
	}
}

// Weight returns the ordinal weight used in calculations (LOW=1 .. CRITICAL=4).
func (s SeverityLevel) Weight() int {
	switch s {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	case SeverityCritical:
		return 4
	default:
		return 0
	}
}

// LabelPT returns the Portuguese display label.
func (s SeverityLevel) LabelPT() string {
	switch s {
	case SeverityLow:
		return "Baixa"
	case SeverityMedium:
		return "Média"
	case SeverityHigh:
		return "Alta"
	case SeverityCritical:
		return "Crítica"
	default:
		return string(s)
	}
}

// ============================================================================
// Score
// ============================================================================

// Free-text status vocabularies the AI scoring step emits. Compliance checks
// prefer these over the numeric threshold.
var compliantStatuses = map[string]struct{}{
	"conforme":     {},
	"ok":           {},
	"adequado":     {},
	"atende":       {},
	"regular":      {},
	"satisfatório": {},
	"satisfatorio": {},
	"aprovado":     {},
}

var nonCompliantStatuses = map[string]struct{}{
	"não conforme": {},
	"nao conforme": {},
	"inadequado":   {},
	"irregular":    {},
	"reprovado":    {},
	"crítico":      {},
	"critico":      {},
	"grave":        {},
}

// Score is an immutable 0-10 compliance score with an optional free-text
// status label. Severity and compliance are pure derivations of
// (value, status), never stored state.
type Score struct {
	value  float64
	status string
}

// NewScore validates the range and creates a score.
func NewScore(value float64, status string) (Score, error) {
	if value < 0 || value > 10 {
		return Score{}, apperrors.NewValidationError(
			fmt.Sprintf("score must be between 0 and 10, got: %g", value), "score")
	}
	return Score{value: value, status: status}, nil
}

// PerfectScore returns a 10/10 compliant score.
func PerfectScore() Score {
	return Score{value: 10, status: "Conforme"}
}

// ZeroScore returns a 0/10 non-compliant score.
func ZeroScore() Score {
	return Score{value: 0, status: "Não Conforme"}
}

// ScoreFromPercentage creates a score from a 0-100 percentage.
func ScoreFromPercentage(percentage float64, status string) (Score, error) {
	return NewScore(percentage/10, status)
}

// Value returns the 0-10 score value.
func (s Score) Value() float64 { return s.value }

// Status returns the free-text status label, if any.
func (s Score) Status() string { return s.status }

// Percentage returns the score on a 0-100 scale.
func (s Score) Percentage() float64 { return s.value * 10 }

// Severity returns the severity tier derived from the value.
func (s Score) Severity() SeverityLevel { return SeverityFromScore(s.value) }

// IsCompliant reports compliance. The text status takes precedence when it
// matches a known vocabulary; otherwise a >=7.0 threshold applies.
func (s Score) IsCompliant() bool {
	if s.status != "" {
		normalized := strings.ToLower(strings.TrimSpace(s.status))
		if _, ok := compliantStatuses[normalized]; ok {
			return true
		}
		if _, ok := nonCompliantStatuses[normalized]; ok {
			return false
		}
	}
	return s.value >= 7.0
}

// StatusNormalized returns a canonical status label derived from the
// compliance check.
func (s Score) StatusNormalized() string {
	if s.IsCompliant() {
		return "Conforme"
	}
	if strings.Contains(strings.ToLower(s.status), "parcial") {
		return "Parcialmente Conforme"
	}
	return "Não Conforme"
}

// Equals compares two scores by value only, matching the original model's
// equality semantics.
func (s Score) Equals(other Score) bool { return s.value == other.value }

// LessThan orders scores by value.
func (s Score) LessThan(other Score) bool { return s.value < other.value }

func (s Score) String() string { return fmt.Sprintf("%.1f/10", s.value) }

// scoreJSON is the serialized shape of a Score.
type scoreJSON struct {
	Value  float64 `json:"value"`
	Status string  `json:"status,omitempty"`
}

// MarshalJSON serializes the score with its status label.
func (s Score) MarshalJSON() ([]byte, error) {
	return json.Marshal(scoreJSON{Value: s.value, Status: s.status})
}

// UnmarshalJSON deserializes and re-validates; unmarshalling is construction.
func (s *Score) UnmarshalJSON(data []byte) error {
	var raw scoreJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := NewScore(raw.Value, raw.Status)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
