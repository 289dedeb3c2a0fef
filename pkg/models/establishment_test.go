package models

import (
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/vigilo-inc/vigilo-engine/pkg/apperrors"
)

func TestNewEstablishment(t *testing.T) {
	companyID := uuid.New()

	tests := []struct {
		name    string
		estName string
		code    string
		email   string
		phone   string
		wantErr bool
	}{
		{name: "minimal", estName: "Cozinha Central", wantErr: false},
		{name: "code upper-cased", estName: "Filial", code: "fil-01", wantErr: false},
		{name: "with responsible contacts", estName: "Filial", email: "resp@loja.com", phone: "(11) 98765-4321", wantErr: false},
		{name: "empty name rejected", estName: "   ", wantErr: true},
		{name: "bad email rejected", estName: "Filial", email: "not-email", wantErr: true},
		{name: "bad phone rejected", estName: "Filial", phone: "123", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := NewEstablishment(tt.estName, companyID, tt.code, "Resp", tt.email, tt.phone)
			if tt.wantErr {
				if !errors.Is(err, apperrors.ErrValidation) {
					t.Errorf("NewEstablishment() error = %v, want ErrValidation", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewEstablishment() error = %v", err)
			}
			if tt.code != "" && e.Code != "FIL-01" {
				t.Errorf("Code = %q, want FIL-01", e.Code)
			}
			if tt.email != "" && !e.CanSendEmail() {
				t.Error("CanSendEmail() = false with responsible email set")
			}
			if tt.phone != "" && !e.CanSendWhatsApp() {
				t.Error("CanSendWhatsApp() = false with responsible phone set")
			}
		})
	}
}

func TestEstablishment_UpdateResponsible(t *testing.T) {
	e, err := NewEstablishment("Filial", uuid.New(), "", "Maria", "maria@loja.com", "11987654321")
	if err != nil {
		t.Fatalf("NewEstablishment() error = %v", err)
	}

	// Nil pointers leave the fields untouched.
	if err := e.UpdateResponsible(nil, nil, nil); err != nil {
		t.Fatalf("UpdateResponsible(nil...) error = %v", err)
	}
	if e.ResponsibleName != "Maria" || e.ResponsibleEmail == nil || e.ResponsiblePhone == nil {
		t.Error("UpdateResponsible(nil...) must not change any field")
	}

	// Explicit empty strings clear the optional fields.
	empty := ""
	if err := e.UpdateResponsible(nil, &empty, &empty); err != nil {
		t.Fatalf("UpdateResponsible(clear) error = %v", err)
	}
	if e.ResponsibleEmail != nil || e.ResponsiblePhone != nil {
		t.Error("empty email/phone must clear the fields")
	}
	if !e.HasResponsible() {
		t.Error("clearing email/phone must not clear the name")
	}

	// New values replace.
	newName := "João"
	newEmail := "joao@loja.com"
	if err := e.UpdateResponsible(&newName, &newEmail, nil); err != nil {
		t.Fatalf("UpdateResponsible(replace) error = %v", err)
	}
	if e.ResponsibleName != "João" || e.ResponsibleEmail == nil || !e.ResponsibleEmail.EqualsString("joao@loja.com") {
		t.Errorf("UpdateResponsible(replace) = (%q, %v)", e.ResponsibleName, e.ResponsibleEmail)
	}

	bad := "not-email"
	if err := e.UpdateResponsible(nil, &bad, nil); !errors.Is(err, apperrors.ErrValidation) {
		t.Errorf("UpdateResponsible(bad email) error = %v, want ErrValidation", err)
	}
}

func TestEstablishment_Contacts(t *testing.T) {
	e, _ := NewEstablishment("Filial", uuid.New(), "", "", "", "")

	phone1, _ := NewPhone("11987654321")
	phone2, _ := NewPhone("21912345678")

	c1, err := NewContact("Ana", phone1, nil, "Gerente")
	if err != nil {
		t.Fatalf("NewContact() error = %v", err)
	}
	c2, err := NewContact("Beto", phone2, nil, "Dono")
	if err != nil {
		t.Fatalf("NewContact() error = %v", err)
	}
	c2.IsActive = false

	e.AddContact(c1)
	e.AddContact(c2)

	if got := len(e.Contacts()); got != 2 {
		t.Fatalf("len(Contacts()) = %d, want 2", got)
	}
	active := e.ActiveContacts()
	if len(active) != 1 || active[0].Name != "Ana" {
		t.Errorf("ActiveContacts() = %v, want just Ana", active)
	}

	// Returned slice is a copy; mutating it must not leak back.
	e.Contacts()[0].Name = "mutated"
	if e.Contacts()[0].Name != "Ana" {
		t.Error("Contacts() must return a copy")
	}

	e.RemoveContact(c1)
	if got := len(e.Contacts()); got != 1 {
		t.Errorf("len(Contacts()) = %d after removal, want 1", got)
	}
	// Removing an absent contact is a no-op.
	e.RemoveContact(c1)
	if got := len(e.Contacts()); got != 1 {
		t.Errorf("len(Contacts()) = %d after no-op removal, want 1", got)
	}
}

func TestNewContact_Validation(t *testing.T) {
	phone, _ := NewPhone("11987654321")
	if _, err := NewContact("  ", phone, nil, ""); !errors.Is(err, apperrors.ErrValidation) {
		t.Errorf("NewContact(blank name) error = %v, want ErrValidation", err)
	}
	if _, err := NewContact("Ana", Phone{}, nil, ""); !errors.Is(err, apperrors.ErrValidation) {
		t.Errorf("NewContact(zero phone) error = %v, want ErrValidation", err)
	}
}

func TestEstablishment_ConsultantAssignment(t *testing.T) {
	e, _ := NewEstablishment("Filial", uuid.New(), "", "", "", "")
	consultantID := uuid.New()

	e.AssignConsultant(consultantID)
	e.AssignConsultant(consultantID)
	if got := len(e.ConsultantIDs()); got != 1 {
		t.Errorf("len(ConsultantIDs()) = %d after double assign, want 1", got)
	}

	e.RemoveConsultant(uuid.New())
	if got := len(e.ConsultantIDs()); got != 1 {
		t.Errorf("len(ConsultantIDs()) = %d after no-op removal, want 1", got)
	}
	e.RemoveConsultant(consultantID)
	if got := len(e.ConsultantIDs()); got != 0 {
		t.Errorf("len(ConsultantIDs()) = %d after removal, want 0", got)
	}
}

func TestEstablishment_UpdateInfo(t *testing.T) {
	e, _ := NewEstablishment("Filial", uuid.New(), "ABC", "", "", "")

	newCode := "xyz-9"
	if err := e.UpdateInfo(nil, &newCode); err != nil {
		t.Fatalf("UpdateInfo(code) error = %v", err)
	}
	if e.Code != "XYZ-9" || e.Name != "Filial" {
		t.Errorf("UpdateInfo(code) = (%q, %q)", e.Name, e.Code)
	}

	blank := "  "
	if err := e.UpdateInfo(&blank, nil); !errors.Is(err, apperrors.ErrValidation) {
		t.Errorf("UpdateInfo(blank name) error = %v, want ErrValidation", err)
	}
}
