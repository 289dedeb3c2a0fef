package models

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/vigilo-inc/vigilo-engine/pkg/apperrors"
)

// ============================================================================
// Contact
// ============================================================================

// Contact is a notification target owned by an establishment.
type Contact struct {
	Name     string `json:"name"`
	Phone    Phone  `json:"phone"`
	Email    *Email `json:"email,omitempty"`
	Role     string `json:"role,omitempty"` // e.g. Gerente, Dono
	IsActive bool   `json:"is_active"`
}

// NewContact creates a contact. The name is required and trimmed; the phone
// is required.
func NewContact(name string, phone Phone, email *Email, role string) (Contact, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return Contact{}, apperrors.NewValidationError("contact name is required", "name")
	}
	if phone.IsZero() {
		return Contact{}, apperrors.NewValidationError("contact phone is required", "phone")
	}
	return Contact{
		Name:     trimmed,
		Phone:    phone,
		Email:    email,
		Role:     role,
		IsActive: true,
	}, nil
}

// ============================================================================
// Establishment
// ============================================================================

// Establishment is a single physical food-service unit of a company, subject
// to inspection. It exclusively owns its contact list and consultant
// assignments; callers mutate them only through the add/remove operations.
type Establishment struct {
	Entity
	Name          string    `json:"name"`
	CompanyID     uuid.UUID `json:"company_id"`
	Code          string    `json:"code,omitempty"` // internal identifier, upper-cased
	DriveFolderID string    `json:"drive_folder_id,omitempty"`
	IsActive      bool      `json:"is_active"`

	// Primary responsible person.
	ResponsibleName  string `json:"responsible_name,omitempty"`
	ResponsibleEmail *Email `json:"responsible_email,omitempty"`
	ResponsiblePhone *Phone `json:"responsible_phone,omitempty"`

	contacts      []Contact
	consultantIDs []uuid.UUID
}

// NewEstablishment creates an establishment. Responsible email and phone are
// validated when non-empty.
func NewEstablishment(name string, companyID uuid.UUID, code, responsibleName, responsibleEmail, responsiblePhone string) (*Establishment, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return nil, apperrors.NewValidationError("establishment name is required", "name")
	}

	e := &Establishment{
		Entity:          NewEntity(),
		Name:            trimmed,
		CompanyID:       companyID,
		Code:            strings.ToUpper(strings.TrimSpace(code)),
		IsActive:        true,
		ResponsibleName: responsibleName,
	}

	if responsibleEmail != "" {
		addr, err := NewEmail(responsibleEmail)
		if err != nil {
			return nil, err
		}
		e.ResponsibleEmail = &addr
	}
	if responsiblePhone != "" {
		phone, err := NewPhone(responsiblePhone)
		if err != nil {
			return nil, err
		}
		e.ResponsiblePhone = &phone
	}

	return e, nil
}

// RehydrateEstablishment reconstructs an establishment from persisted state.
// Only the persistence layer calls this.
func RehydrateEstablishment(base Entity, name string, companyID uuid.UUID, code, driveFolderID string, isActive bool, responsibleName string, responsibleEmail *Email, responsiblePhone *Phone, contacts []Contact, consultantIDs []uuid.UUID) *Establishment {
	e := &Establishment{
		Entity:           base,
		Name:             name,
		CompanyID:        companyID,
		Code:             code,
		DriveFolderID:    driveFolderID,
		IsActive:         isActive,
		ResponsibleName:  responsibleName,
		ResponsibleEmail: responsibleEmail,
		ResponsiblePhone: responsiblePhone,
	}
	e.contacts = append(e.contacts, contacts...)
	e.consultantIDs = append(e.consultantIDs, consultantIDs...)
	return e
}

// HasDriveFolder reports whether a Drive folder is configured.
func (e *Establishment) HasDriveFolder() bool { return e.DriveFolderID != "" }

// HasResponsible reports whether a responsible person is defined.
func (e *Establishment) HasResponsible() bool { return e.ResponsibleName != "" }

// CanSendWhatsApp reports whether the establishment can receive WhatsApp
// messages.
func (e *Establishment) CanSendWhatsApp() bool { return e.ResponsiblePhone != nil }

// CanSendEmail reports whether the establishment can receive emails.
func (e *Establishment) CanSendEmail() bool { return e.ResponsibleEmail != nil }

// Contacts returns a copy of the contact list.
func (e *Establishment) Contacts() []Contact {
	contacts := make([]Contact, len(e.contacts))
	copy(contacts, e.contacts)
	return contacts
}

// ActiveContacts returns only the contacts flagged active.
func (e *Establishment) ActiveContacts() []Contact {
	var active []Contact
	for _, c := range e.contacts {
		if c.IsActive {
			active = append(active, c)
		}
	}
	return active
}

// ConsultantIDs returns a copy of the assigned consultant ids.
func (e *Establishment) ConsultantIDs() []uuid.UUID {
	ids := make([]uuid.UUID, len(e.consultantIDs))
	copy(ids, e.consultantIDs)
	return ids
}

// SetDriveFolder sets the Drive folder id, rejecting an empty value.
func (e *Establishment) SetDriveFolder(folderID string) error {
	if folderID == "" {
		return apperrors.NewValidationError("drive folder id cannot be empty", "drive_folder_id")
	}
	e.DriveFolderID = folderID
	e.MarkUpdated()
	return nil
}

// UpdateResponsible replaces only the fields given: a nil pointer leaves a
// field unchanged, an explicit empty string clears it.
func (e *Establishment) UpdateResponsible(name, email, phone *string) error {
	if name != nil {
		e.ResponsibleName = strings.TrimSpace(*name)
	}
	if email != nil {
		if *email == "" {
			e.ResponsibleEmail = nil
		} else {
			addr, err := NewEmail(*email)
			if err != nil {
				return err
			}
			e.ResponsibleEmail = &addr
		}
	}
	if phone != nil {
		if *phone == "" {
			e.ResponsiblePhone = nil
		} else {
			parsed, err := NewPhone(*phone)
			if err != nil {
				return err
			}
			e.ResponsiblePhone = &parsed
		}
	}
	e.MarkUpdated()
	return nil
}

// AddContact appends a contact to the establishment.
func (e *Establishment) AddContact(contact Contact) {
	e.contacts = append(e.contacts, contact)
	e.MarkUpdated()
}

// RemoveContact removes the first contact matching by name and phone;
// removing an absent contact is a no-op.
func (e *Establishment) RemoveContact(contact Contact) {
	for i, c := range e.contacts {
		if c.Name == contact.Name && c.Phone.Equals(contact.Phone) {
			e.contacts = append(e.contacts[:i], e.contacts[i+1:]...)
			e.MarkUpdated()
			return
		}
	}
}

// AssignConsultant assigns a consultant; assigning twice is a no-op.
func (e *Establishment) AssignConsultant(consultantID uuid.UUID) {
	for _, id := range e.consultantIDs {
		if id == consultantID {
			return
		}
	}
	e.consultantIDs = append(e.consultantIDs, consultantID)
	e.MarkUpdated()
}

// RemoveConsultant removes an assignment; removing an absent id is a no-op.
func (e *Establishment) RemoveConsultant(consultantID uuid.UUID) {
	for i, id := range e.consultantIDs {
		if id == consultantID {
			e.consultantIDs = append(e.consultantIDs[:i], e.consultantIDs[i+1:]...)
			e.MarkUpdated()
			return
		}
	}
}

// Deactivate marks the establishment inactive, rejecting a redundant call.
func (e *Establishment) Deactivate() error {
	if !e.IsActive {
		return apperrors.NewBusinessRuleViolation("establishment is already inactive", "establishment_state")
	}
	e.IsActive = false
	e.MarkUpdated()
	return nil
}

// Activate marks the establishment active, rejecting a redundant call.
func (e *Establishment) Activate() error {
	if e.IsActive {
		return apperrors.NewBusinessRuleViolation("establishment is already active", "establishment_state")
	}
	e.IsActive = true
	e.MarkUpdated()
	return nil
}

// UpdateInfo updates only the supplied fields. A nil pointer leaves the field
// unchanged; an explicit empty code clears it. An empty name is rejected.
func (e *Establishment) UpdateInfo(name, code *string) error {
	if name != nil {
		trimmed := strings.TrimSpace(*name)
		if trimmed == "" {
			return apperrors.NewValidationError("establishment name cannot be empty", "name")
		}
		e.Name = trimmed
	}
	if code != nil {
		e.Code = strings.ToUpper(strings.TrimSpace(*code))
	}
	e.MarkUpdated()
	return nil
}

func (e *Establishment) String() string {
	if e.Code != "" {
		return fmt.Sprintf("Establishment(%s (%s))", e.Name, e.Code)
	}
	return fmt.Sprintf("Establishment(%s)", e.Name)
}
