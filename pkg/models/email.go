package models

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/vigilo-inc/vigilo-engine/pkg/apperrors"
)

// Simplified RFC 5322 pattern, matched after trimming and lower-casing.
var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// Email is an immutable, validated email address. Normalization (trim +
// lower-case) happens once at construction and is idempotent; accessors never
// re-validate.
type Email struct {
	value string
}

// NewEmail validates and normalizes a raw email address.
func NewEmail(raw string) (Email, error) {
	if strings.TrimSpace(raw) == "" {
		return Email{}, apperrors.NewValidationError("email is required", "email")
	}

	normalized := strings.ToLower(strings.TrimSpace(raw))
	if !emailPattern.MatchString(normalized) {
		return Email{}, apperrors.NewValidationError(fmt.Sprintf("invalid email: %s", raw), "email")
	}

	return Email{value: normalized}, nil
}

// Value returns the normalized address.
func (e Email) Value() string { return e.value }

// Domain returns the part after the "@".
func (e Email) Domain() string {
	_, domain, _ := strings.Cut(e.value, "@")
	return domain
}

// LocalPart returns the part before the "@".
func (e Email) LocalPart() string {
	local, _, _ := strings.Cut(e.value, "@")
	return local
}

// IsZero reports whether the email is the unset zero value.
func (e Email) IsZero() bool { return e.value == "" }

// Equals compares two emails by normalized value.
func (e Email) Equals(other Email) bool { return e.value == other.value }

// EqualsString compares against a plain string, case-insensitively.
func (e Email) EqualsString(s string) bool {
	return e.value == strings.ToLower(strings.TrimSpace(s))
}

func (e Email) String() string { return e.value }

// MarshalJSON serializes the email as its normalized string.
func (e Email) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.value)
}

// UnmarshalJSON deserializes and re-validates; unmarshalling is construction.
func (e *Email) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := NewEmail(raw)
	if err != nil {
		return err
	}
	*e = parsed
	return nil
}
