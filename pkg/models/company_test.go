package models

import (
	"errors"
	"testing"

	"github.com/vigilo-inc/vigilo-engine/pkg/apperrors"
)

func TestNewCompany(t *testing.T) {
	tests := []struct {
		name     string
		company  string
		cnpj     string
		wantErr  bool
		wantCNPJ string
	}{
		{name: "plain name", company: "Acme Alimentos", cnpj: "", wantErr: false, wantCNPJ: ""},
		{name: "masked cnpj normalized", company: "Acme", cnpj: "12.345.678/0001-90", wantErr: false, wantCNPJ: "12345678000190"},
		{name: "digits-only cnpj kept", company: "Acme", cnpj: "12345678000190", wantErr: false, wantCNPJ: "12345678000190"},
		{name: "name trimmed", company: "  Acme  ", cnpj: "", wantErr: false},
		{name: "empty name rejected", company: "", wantErr: true},
		{name: "whitespace name rejected", company: "   ", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewCompany(tt.company, tt.cnpj)
			if tt.wantErr {
				if !errors.Is(err, apperrors.ErrValidation) {
					t.Errorf("NewCompany() error = %v, want ErrValidation", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewCompany() error = %v", err)
			}
			if c.CNPJ != tt.wantCNPJ {
				t.Errorf("CNPJ = %q, want %q", c.CNPJ, tt.wantCNPJ)
			}
			if !c.IsActive {
				t.Error("new company should be active")
			}
		})
	}
}

func TestCompany_CNPJFormatted(t *testing.T) {
	tests := []struct {
		name string
		cnpj string
		want string
	}{
		{name: "full cnpj masked", cnpj: "12345678000190", want: "12.345.678/0001-90"},
		{name: "short value as-is", cnpj: "12345", want: "12345"},
		{name: "unset", cnpj: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewCompany("Acme", tt.cnpj)
			if err != nil {
				t.Fatalf("NewCompany() error = %v", err)
			}
			if got := c.CNPJFormatted(); got != tt.want {
				t.Errorf("CNPJFormatted() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCompany_CNPJRoundTrip(t *testing.T) {
	c, err := NewCompany("Acme", "12.345.678/0001-90")
	if err != nil {
		t.Fatalf("NewCompany() error = %v", err)
	}
	// Normalize then format reproduces the canonical mask.
	if got := c.CNPJFormatted(); got != "12.345.678/0001-90" {
		t.Errorf("CNPJFormatted() = %q, want canonical mask", got)
	}
}

func TestCompany_DriveFolder(t *testing.T) {
	c, _ := NewCompany("Acme", "")
	if c.HasDriveFolder() {
		t.Error("new company should have no drive folder")
	}
	if err := c.SetDriveFolder(""); !errors.Is(err, apperrors.ErrValidation) {
		t.Errorf("SetDriveFolder(empty) error = %v, want ErrValidation", err)
	}
	if err := c.SetDriveFolder("folder-abc"); err != nil {
		t.Fatalf("SetDriveFolder() error = %v", err)
	}
	if !c.HasDriveFolder() {
		t.Error("HasDriveFolder() = false after set")
	}
}

func TestCompany_ActivationIdempotencyRejected(t *testing.T) {
	c, _ := NewCompany("Acme", "")
	if err := c.Activate(); !errors.Is(err, apperrors.ErrBusinessRule) {
		t.Errorf("Activate() on active company error = %v, want ErrBusinessRule", err)
	}
	if err := c.Deactivate(); err != nil {
		t.Fatalf("Deactivate() error = %v", err)
	}
	if err := c.Deactivate(); !errors.Is(err, apperrors.ErrBusinessRule) {
		t.Errorf("second Deactivate() error = %v, want ErrBusinessRule", err)
	}
}

func TestCompany_UpdateInfo(t *testing.T) {
	c, _ := NewCompany("Acme", "12345678000190")

	newName := "Acme Alimentos LTDA"
	if err := c.UpdateInfo(&newName, nil); err != nil {
		t.Fatalf("UpdateInfo(name) error = %v", err)
	}
	if c.Name != newName || c.CNPJ != "12345678000190" {
		t.Errorf("UpdateInfo(name) = (%q, %q)", c.Name, c.CNPJ)
	}

	// Explicit empty CNPJ clears it; nil leaves it alone.
	empty := ""
	if err := c.UpdateInfo(nil, &empty); err != nil {
		t.Fatalf("UpdateInfo(cnpj) error = %v", err)
	}
	if c.CNPJ != "" {
		t.Errorf("CNPJ = %q after clearing, want empty", c.CNPJ)
	}

	blank := "   "
	if err := c.UpdateInfo(&blank, nil); !errors.Is(err, apperrors.ErrValidation) {
		t.Errorf("UpdateInfo(blank name) error = %v, want ErrValidation", err)
	}
}

func TestCompany_CanBeDeleted(t *testing.T) {
	c, _ := NewCompany("Acme", "")
	if !c.CanBeDeleted() {
		t.Error("company with zero counts should be deletable")
	}
	c.EstablishmentCount = 1
	if c.CanBeDeleted() {
		t.Error("company with establishments should not be deletable")
	}
	c.EstablishmentCount = 0
	c.UserCount = 2
	if c.CanBeDeleted() {
		t.Error("company with users should not be deletable")
	}
}
