package models

import (
	"fmt"
	"strings"

	"github.com/vigilo-inc/vigilo-engine/pkg/apperrors"
)

// Company is a client organization. Companies own establishments and users
// and hold a dedicated Drive folder for inspection documents.
type Company struct {
	Entity
	Name          string `json:"name"`
	CNPJ          string `json:"cnpj,omitempty"` // digits-only, empty when unset
	IsActive      bool   `json:"is_active"`
	DriveFolderID string `json:"drive_folder_id,omitempty"`

	// Informational counts populated by the persistence layer, never
	// computed here.
	EstablishmentCount int `json:"-"`
	UserCount          int `json:"-"`
}

// NewCompany creates a company. The name is required and trimmed; a CNPJ, if
// given, is normalized to digits only.
func NewCompany(name, cnpj string) (*Company, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return nil, apperrors.NewValidationError("company name is required", "name")
	}
	return &Company{
		Entity:   NewEntity(),
		Name:     trimmed,
		CNPJ:     normalizeCNPJ(cnpj),
		IsActive: true,
	}, nil
}

// RehydrateCompany reconstructs a company from persisted state. Only the
// persistence layer calls this.
func RehydrateCompany(base Entity, name, cnpj string, isActive bool, driveFolderID string) *Company {
	return &Company{
		Entity:        base,
		Name:          name,
		CNPJ:          cnpj,
		IsActive:      isActive,
		DriveFolderID: driveFolderID,
	}
}

func normalizeCNPJ(cnpj string) string {
	return stripNonDigits(cnpj)
}

// formatCNPJ applies the standard Brazilian mask; anything other than 14
// digits is returned as-is.
func formatCNPJ(cnpj string) string {
	if len(cnpj) != 14 {
		return cnpj
	}
	return fmt.Sprintf("%s.%s.%s/%s-%s", cnpj[:2], cnpj[2:5], cnpj[5:8], cnpj[8:12], cnpj[12:])
}

// CNPJFormatted returns the CNPJ with the standard NN.NNN.NNN/NNNN-NN mask,
// or empty when unset.
func (c *Company) CNPJFormatted() string {
	if c.CNPJ == "" {
		return ""
	}
	return formatCNPJ(c.CNPJ)
}

// HasDriveFolder reports whether a Drive folder is configured.
func (c *Company) HasDriveFolder() bool { return c.DriveFolderID != "" }

// SetDriveFolder sets the Drive folder id, rejecting an empty value.
func (c *Company) SetDriveFolder(folderID string) error {
	if folderID == "" {
		return apperrors.NewValidationError("drive folder id cannot be empty", "drive_folder_id")
	}
	c.DriveFolderID = folderID
	c.MarkUpdated()
	return nil
}

// Deactivate marks the company inactive, rejecting a redundant call.
func (c *Company) Deactivate() error {
	if !c.IsActive {
		return apperrors.NewBusinessRuleViolation("company is already inactive", "company_state")
	}
	c.IsActive = false
	c.MarkUpdated()
	return nil
}

// Activate marks the company active, rejecting a redundant call.
func (c *Company) Activate() error {
	if c.IsActive {
		return apperrors.NewBusinessRuleViolation("company is already active", "company_state")
	}
	c.IsActive = true
	c.MarkUpdated()
	return nil
}

// UpdateInfo updates only the supplied fields. A nil pointer leaves the field
// unchanged; an explicit empty CNPJ clears it. An empty name is rejected.
func (c *Company) UpdateInfo(name, cnpj *string) error {
	if name != nil {
		trimmed := strings.TrimSpace(*name)
		if trimmed == "" {
			return apperrors.NewValidationError("company name cannot be empty", "name")
		}
		c.Name = trimmed
	}
	if cnpj != nil {
		c.CNPJ = normalizeCNPJ(*cnpj)
	}
	c.MarkUpdated()
	return nil
}

// CanBeDeleted reports whether the company holds no establishments and no
// users, based on the counts cached by the persistence layer.
func (c *Company) CanBeDeleted() bool {
	return c.EstablishmentCount == 0 && c.UserCount == 0
}

func (c *Company) String() string {
	status := "Ativa"
	if !c.IsActive {
		status = "Inativa"
	}
	return fmt.Sprintf("Company(%s, %s)", c.Name, status)
}
