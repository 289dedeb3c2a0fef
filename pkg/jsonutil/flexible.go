// Package jsonutil tolerantly decodes loosely-typed JSON produced by the
// external extraction step. Scoring payloads routinely mix types: scores
// arrive as numbers, numeric strings or Brazilian comma decimals, and text
// fields occasionally arrive as numbers.
package jsonutil

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// FlexibleStringValue converts a json.RawMessage to a string, handling cases
// where the extraction step returns numbers or booleans instead of strings.
// Returns empty string for null/empty.
func FlexibleStringValue(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}

	// Try string first
	var strVal string
	if err := json.Unmarshal(raw, &strVal); err == nil {
		return strVal
	}

	// Try number
	var numVal float64
	if err := json.Unmarshal(raw, &numVal); err == nil {
		if numVal == float64(int64(numVal)) {
			return fmt.Sprintf("%d", int64(numVal))
		}
		return fmt.Sprintf("%g", numVal)
	}

	// Try boolean
	var boolVal bool
	if err := json.Unmarshal(raw, &boolVal); err == nil {
		return fmt.Sprintf("%t", boolVal)
	}

	// Fallback: return raw string representation
	return string(raw)
}

// FlexibleFloatValue converts a json.RawMessage to a float pointer, accepting
// numbers, numeric strings and comma-decimal strings ("7,5"). Returns nil for
// null, empty or unparseable values.
func FlexibleFloatValue(raw json.RawMessage) *float64 {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}

	var numVal float64
	if err := json.Unmarshal(raw, &numVal); err == nil {
		return &numVal
	}

	var strVal string
	if err := json.Unmarshal(raw, &strVal); err == nil {
		strVal = strings.TrimSpace(strings.ReplaceAll(strVal, ",", "."))
		if strVal == "" {
			return nil
		}
		if parsed, err := strconv.ParseFloat(strVal, 64); err == nil {
			return &parsed
		}
	}

	return nil
}
