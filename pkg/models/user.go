package models

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/vigilo-inc/vigilo-engine/pkg/apperrors"
)

// ============================================================================
// User Roles
// ============================================================================

// UserRole represents a user's role in the system.
type UserRole string

const (
	RoleConsultant UserRole = "CONSULTANT"
	RoleManager    UserRole = "MANAGER"
	RoleAdmin      UserRole = "ADMIN"
)

// ValidUserRoles contains all valid role values.
var ValidUserRoles = []UserRole{RoleConsultant, RoleManager, RoleAdmin}

// IsValidUserRole checks if the given role is valid.
func IsValidUserRole(r UserRole) bool {
	for _, v := range ValidUserRoles {
		if v == r {
			return true
		}
	}
	return false
}

// LabelPT returns the Portuguese display label.
func (r UserRole) LabelPT() string {
	switch r {
	case RoleConsultant:
		return "Consultor"
	case RoleManager:
		return "Gestor"
	case RoleAdmin:
		return "Administrador"
	default:
		return string(r)
	}
}

// CanApprovePlans reports whether the role may approve action plans.
func (r UserRole) CanApprovePlans() bool {
	return r == RoleManager || r == RoleAdmin
}

// CanManageUsers reports whether the role may manage other users.
func (r UserRole) CanManageUsers() bool {
	return r == RoleManager || r == RoleAdmin
}

// CanAccessAdmin reports whether the role may access the admin panel.
func (r UserRole) CanAccessAdmin() bool {
	return r == RoleAdmin
}

// ============================================================================
// User
// ============================================================================

// User is an actor in the inspection workflow: a consultant performing
// inspections, a manager approving plans, or an admin. Users belong to a
// company; consultants additionally carry the set of establishments they are
// assigned to.
type User struct {
	Entity
	Email              Email     `json:"email"`
	Name               string    `json:"name"`
	Role               UserRole  `json:"role"`
	IsActive           bool      `json:"is_active"`
	MustChangePassword bool      `json:"must_change_password"`
	CompanyID          uuid.UUID `json:"company_id,omitempty"`
	WhatsApp           *Phone    `json:"whatsapp,omitempty"`

	// Meaningful only for consultants; owned by the entity and mutated
	// only through Assign/RemoveEstablishment.
	establishmentIDs []uuid.UUID
}

// NewConsultant creates a consultant user. Consultants must change their
// password on first login.
func NewConsultant(email, name string, companyID uuid.UUID, establishmentIDs []uuid.UUID) (*User, error) {
	addr, err := NewEmail(email)
	if err != nil {
		return nil, err
	}
	u := &User{
		Entity:             NewEntity(),
		Email:              addr,
		Name:               name,
		Role:               RoleConsultant,
		IsActive:           true,
		MustChangePassword: true,
		CompanyID:          companyID,
	}
	if len(establishmentIDs) > 0 {
		u.establishmentIDs = append(u.establishmentIDs, establishmentIDs...)
	}
	return u, nil
}

// NewManager creates a manager user. Managers must change their password on
// first login.
func NewManager(email, name string, companyID uuid.UUID) (*User, error) {
	addr, err := NewEmail(email)
	if err != nil {
		return nil, err
	}
	return &User{
		Entity:             NewEntity(),
		Email:              addr,
		Name:               name,
		Role:               RoleManager,
		IsActive:           true,
		MustChangePassword: true,
		CompanyID:          companyID,
	}, nil
}

// NewAdmin creates an admin user. Admins are created outside the normal
// onboarding flow and are not forced through a password change.
func NewAdmin(email, name string) (*User, error) {
	addr, err := NewEmail(email)
	if err != nil {
		return nil, err
	}
	return &User{
		Entity:   NewEntity(),
		Email:    addr,
		Name:     name,
		Role:     RoleAdmin,
		IsActive: true,
	}, nil
}

// RehydrateUser reconstructs a user from persisted state. Only the
// persistence layer calls this.
func RehydrateUser(base Entity, email Email, name string, role UserRole, isActive, mustChangePassword bool, companyID uuid.UUID, whatsapp *Phone, establishmentIDs []uuid.UUID) *User {
	u := &User{
		Entity:             base,
		Email:              email,
		Name:               name,
		Role:               role,
		IsActive:           isActive,
		MustChangePassword: mustChangePassword,
		CompanyID:          companyID,
		WhatsApp:           whatsapp,
	}
	u.establishmentIDs = append(u.establishmentIDs, establishmentIDs...)
	return u
}

// IsConsultant reports whether the user is a consultant.
func (u *User) IsConsultant() bool { return u.Role == RoleConsultant }

// IsManager reports whether the user is a manager.
func (u *User) IsManager() bool { return u.Role == RoleManager }

// IsAdmin reports whether the user is an admin.
func (u *User) IsAdmin() bool { return u.Role == RoleAdmin }

// DisplayName returns the name, falling back to the email address.
func (u *User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	return u.Email.Value()
}

// Deactivate marks the user inactive. Deactivating an already inactive user
// is rejected, not silently accepted.
func (u *User) Deactivate() error {
	if !u.IsActive {
		return apperrors.NewBusinessRuleViolation("user is already inactive", "user_state")
	}
	u.IsActive = false
	u.MarkUpdated()
	return nil
}

// Activate marks the user active, rejecting a redundant call.
func (u *User) Activate() error {
	if u.IsActive {
		return apperrors.NewBusinessRuleViolation("user is already active", "user_state")
	}
	u.IsActive = true
	u.MarkUpdated()
	return nil
}

// RequirePasswordChange flags the user for a forced password change.
func (u *User) RequirePasswordChange() {
	u.MustChangePassword = true
	u.MarkUpdated()
}

// PasswordChanged clears the forced password change flag.
func (u *User) PasswordChanged() {
	u.MustChangePassword = false
	u.MarkUpdated()
}

// CanAccessEstablishment reports whether the user may act on the given
// establishment: unconditionally for admins, by assignment otherwise.
func (u *User) CanAccessEstablishment(establishmentID uuid.UUID) bool {
	if u.IsAdmin() {
		return true
	}
	for _, id := range u.establishmentIDs {
		if id == establishmentID {
			return true
		}
	}
	return false
}

// AssignEstablishment assigns the user to an establishment. Only consultants
// can carry assignments; assigning an already assigned establishment is a
// no-op.
func (u *User) AssignEstablishment(establishmentID uuid.UUID) error {
	if !u.IsConsultant() {
		return apperrors.NewBusinessRuleViolation(
			"only consultants can be assigned to establishments", "user_role")
	}
	for _, id := range u.establishmentIDs {
		if id == establishmentID {
			return nil
		}
	}
	u.establishmentIDs = append(u.establishmentIDs, establishmentID)
	u.MarkUpdated()
	return nil
}

// RemoveEstablishment removes an assignment; removing an absent id is a no-op.
func (u *User) RemoveEstablishment(establishmentID uuid.UUID) {
	for i, id := range u.establishmentIDs {
		if id == establishmentID {
			u.establishmentIDs = append(u.establishmentIDs[:i], u.establishmentIDs[i+1:]...)
			u.MarkUpdated()
			return
		}
	}
}

// ChangeRole changes the user's role. An unchanged role is a no-op that does
// not touch the update timestamp; moving away from consultant clears the
// establishment assignments.
func (u *User) ChangeRole(newRole UserRole) error {
	if !IsValidUserRole(newRole) {
		return apperrors.NewValidationError(fmt.Sprintf("invalid role: %s", newRole), "role")
	}
	if u.Role == newRole {
		return nil
	}
	if u.Role == RoleConsultant && newRole != RoleConsultant {
		u.establishmentIDs = nil
	}
	u.Role = newRole
	u.MarkUpdated()
	return nil
}

// EstablishmentIDs returns a copy of the assigned establishment ids.
func (u *User) EstablishmentIDs() []uuid.UUID {
	ids := make([]uuid.UUID, len(u.establishmentIDs))
	copy(ids, u.establishmentIDs)
	return ids
}

func (u *User) String() string {
	return fmt.Sprintf("User(%s, %s)", u.DisplayName(), u.Role.LabelPT())
}
