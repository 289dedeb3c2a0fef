package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/vigilo-inc/vigilo-engine/pkg/apperrors"
)

// Phone is an immutable Brazilian phone number. Construction strips all
// non-digits, removes a leading "55" country code, and validates the area
// code (DDD); the normalized digit string is stored once and accessors never
// recompute it.
//
// Accepted input shapes include "11999999999", "5511999999999",
// "(11) 99999-9999" and "+55 11 99999-9999".
type Phone struct {
	value string
}

// NewPhone validates and normalizes a raw phone number.
func NewPhone(raw string) (Phone, error) {
	if raw == "" {
		return Phone{}, apperrors.NewValidationError("phone is required", "phone")
	}

	digits := stripNonDigits(raw)
	if len(digits) < 10 || len(digits) > 13 {
		return Phone{}, apperrors.NewValidationError(
			fmt.Sprintf("invalid phone: %s (expected format: 11999999999)", raw), "phone")
	}

	// Normalize to DDD + number when a country code is present.
	if (len(digits) == 13 || len(digits) == 12) && strings.HasPrefix(digits, "55") {
		digits = digits[2:]
	}

	// Brazilian area codes run from 11 to 99.
	ddd, err := strconv.Atoi(digits[:2])
	if err != nil || ddd < 11 || ddd > 99 {
		return Phone{}, apperrors.NewValidationError(
			fmt.Sprintf("invalid area code: %s", digits[:2]), "phone")
	}

	return Phone{value: digits}, nil
}

// PhoneFromString creates a Phone from a raw string, returning nil when the
// input is empty or invalid.
func PhoneFromString(raw string) *Phone {
	if raw == "" {
		return nil
	}
	phone, err := NewPhone(raw)
	if err != nil {
		return nil
	}
	return &phone
}

// Value returns the normalized digit string (DDD + local number).
func (p Phone) Value() string { return p.value }

// DDD returns the two-digit area code.
func (p Phone) DDD() string { return p.value[:2] }

// Number returns the local number without the area code.
func (p Phone) Number() string { return p.value[2:] }

// Formatted returns the human-readable form, "(XX) XXXXX-XXXX" for mobiles
// and "(XX) XXXX-XXXX" for landlines.
func (p Phone) Formatted() string {
	if len(p.value) == 11 {
		return fmt.Sprintf("(%s) %s-%s", p.value[:2], p.value[2:7], p.value[7:])
	}
	return fmt.Sprintf("(%s) %s-%s", p.value[:2], p.value[2:6], p.value[6:])
}

// WhatsApp returns the messaging form with the country code prefixed.
func (p Phone) WhatsApp() string { return "55" + p.value }

// IsMobile reports whether the number is a mobile (11 digits, local part
// starting with 9).
func (p Phone) IsMobile() bool {
	return len(p.value) == 11 && p.value[2] == '9'
}

// IsZero reports whether the phone is the unset zero value.
func (p Phone) IsZero() bool { return p.value == "" }

// Equals compares two phones by normalized value.
func (p Phone) Equals(other Phone) bool { return p.value == other.value }

// EqualsString compares against a raw string, degrading foreign
// representations (formatting, country code) to the normalized form first.
func (p Phone) EqualsString(s string) bool {
	digits := stripNonDigits(s)
	if len(digits) == 13 && strings.HasPrefix(digits, "55") {
		digits = digits[2:]
	}
	return p.value == digits
}

func (p Phone) String() string { return p.Formatted() }

// MarshalJSON serializes the phone as its normalized digit string.
func (p Phone) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.value)
}

// UnmarshalJSON deserializes and re-validates; unmarshalling is construction.
func (p *Phone) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := NewPhone(raw)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

func stripNonDigits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
