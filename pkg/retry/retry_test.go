package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vigilo-inc/vigilo-engine/pkg/apperrors"
)

func fastConfig() *Config {
	return &Config{
		MaxRetries:   3,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2.0,
	}
}

func TestDo_SucceedsAfterRetries(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), fastConfig(), func() error {
		attempts++
		if attempts < 3 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestDo_ExhaustsRetries(t *testing.T) {
	attempts := 0
	wantErr := errors.New("still failing")
	err := Do(context.Background(), fastConfig(), func() error {
		attempts++
		return wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Errorf("Do() error = %v, want %v", err, wantErr)
	}
	// MaxRetries retries plus the initial attempt.
	if attempts != 4 {
		t.Errorf("attempts = %d, want 4", attempts)
	}
}

func TestDo_RespectsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Do(ctx, &Config{MaxRetries: 5, InitialDelay: time.Minute, Multiplier: 2}, func() error {
		return errors.New("fail")
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Do() error = %v, want context.Canceled", err)
	}
}

func TestDoWithResult(t *testing.T) {
	attempts := 0
	got, err := DoWithResult(context.Background(), fastConfig(), func() (int, error) {
		attempts++
		if attempts < 2 {
			return 0, errors.New("transient")
		}
		return 42, nil
	})
	if err != nil || got != 42 {
		t.Errorf("DoWithResult() = (%d, %v), want (42, nil)", got, err)
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "concurrent modification", err: apperrors.ErrConcurrentModification, want: true},
		{name: "wrapped concurrent modification", err: errors.Join(errors.New("save user"), apperrors.ErrConcurrentModification), want: true},
		{name: "validation is permanent", err: apperrors.NewValidationError("bad email", "email"), want: false},
		{name: "business rule is permanent", err: apperrors.NewBusinessRuleViolation("already approved", "approval"), want: false},
		{name: "not found is permanent", err: apperrors.NewInspectionNotFound("abc"), want: false},
		{name: "connection refused", err: errors.New("dial tcp: connection refused"), want: true},
		{name: "deadlock", err: errors.New("ERROR: deadlock detected"), want: true},
		{name: "arbitrary error", err: errors.New("boom"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestDoIfRetryable_PermanentErrorStopsImmediately(t *testing.T) {
	attempts := 0
	err := DoIfRetryable(context.Background(), fastConfig(), func() error {
		attempts++
		return apperrors.NewValidationError("bad input", "field")
	})
	if !errors.Is(err, apperrors.ErrValidation) {
		t.Errorf("DoIfRetryable() error = %v, want ErrValidation", err)
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1 for a permanent error", attempts)
	}
}

func TestDoIfRetryable_RetriesConflicts(t *testing.T) {
	attempts := 0
	err := DoIfRetryable(context.Background(), fastConfig(), func() error {
		attempts++
		if attempts < 3 {
			return apperrors.ErrConcurrentModification
		}
		return nil
	})
	if err != nil {
		t.Fatalf("DoIfRetryable() error = %v", err)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}
