package services

import (
	"context"

	"github.com/google/uuid"

	"github.com/vigilo-inc/vigilo-engine/pkg/apperrors"
	"github.com/vigilo-inc/vigilo-engine/pkg/models"
	"github.com/vigilo-inc/vigilo-engine/pkg/repositories"
)

// fakeInspectionRepo is an in-memory InspectionRepository. Concurrent
// modification is simulated through conflictsRemaining rather than real
// version bookkeeping, since fakes hand out shared pointers.
type fakeInspectionRepo struct {
	inspections map[uuid.UUID]*models.Inspection
	versions    map[uuid.UUID]int64

	createErr error
	getErr    error
	updateErr error

	updateCalls int
	// conflictsRemaining makes the next N updates fail with a concurrent
	// modification error before writing anything.
	conflictsRemaining int
}

var _ repositories.InspectionRepository = (*fakeInspectionRepo)(nil)

func newFakeInspectionRepo() *fakeInspectionRepo {
	return &fakeInspectionRepo{
		inspections: make(map[uuid.UUID]*models.Inspection),
		versions:    make(map[uuid.UUID]int64),
	}
}

func (f *fakeInspectionRepo) put(inspection *models.Inspection) {
	f.inspections[inspection.ID] = inspection
	f.versions[inspection.ID] = inspection.Version
}

func (f *fakeInspectionRepo) Create(ctx context.Context, inspection *models.Inspection) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.put(inspection)
	return nil
}

func (f *fakeInspectionRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Inspection, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	inspection, ok := f.inspections[id]
	if !ok {
		return nil, apperrors.NewInspectionNotFound(id.String())
	}
	return inspection, nil
}

func (f *fakeInspectionRepo) GetByFileHash(ctx context.Context, fileHash string) (*models.Inspection, error) {
	for _, inspection := range f.inspections {
		if inspection.FileHash == fileHash {
			return inspection, nil
		}
	}
	return nil, apperrors.NewInspectionNotFound(fileHash)
}

func (f *fakeInspectionRepo) ListByEstablishment(ctx context.Context, establishmentID uuid.UUID) ([]*models.Inspection, error) {
	var out []*models.Inspection
	for _, inspection := range f.inspections {
		if inspection.EstablishmentID == establishmentID {
			out = append(out, inspection)
		}
	}
	return out, nil
}

func (f *fakeInspectionRepo) ListByStatus(ctx context.Context, status models.InspectionStatus) ([]*models.Inspection, error) {
	var out []*models.Inspection
	for _, inspection := range f.inspections {
		if inspection.Status == status {
			out = append(out, inspection)
		}
	}
	return out, nil
}

func (f *fakeInspectionRepo) Update(ctx context.Context, inspection *models.Inspection, expectedVersion int64) error {
	f.updateCalls++
	if f.updateErr != nil {
		return f.updateErr
	}
	if f.conflictsRemaining > 0 {
		f.conflictsRemaining--
		return apperrors.ErrConcurrentModification
	}
	if _, ok := f.inspections[inspection.ID]; !ok {
		return apperrors.NewInspectionNotFound(inspection.ID.String())
	}
	f.put(inspection)
	return nil
}

func (f *fakeInspectionRepo) Delete(ctx context.Context, id uuid.UUID) error {
	delete(f.inspections, id)
	delete(f.versions, id)
	return nil
}

// fakePlanRepo is an in-memory ActionPlanRepository.
type fakePlanRepo struct {
	plans    map[uuid.UUID]*models.ActionPlan
	versions map[uuid.UUID]int64

	createErr error
	getErr    error
	updateErr error

	updateCalls        int
	conflictsRemaining int
}

var _ repositories.ActionPlanRepository = (*fakePlanRepo)(nil)

func newFakePlanRepo() *fakePlanRepo {
	return &fakePlanRepo{
		plans:    make(map[uuid.UUID]*models.ActionPlan),
		versions: make(map[uuid.UUID]int64),
	}
}

func (f *fakePlanRepo) put(plan *models.ActionPlan) {
	f.plans[plan.ID] = plan
	f.versions[plan.ID] = plan.Version
}

func (f *fakePlanRepo) Create(ctx context.Context, plan *models.ActionPlan) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.put(plan)
	return nil
}

func (f *fakePlanRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.ActionPlan, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	plan, ok := f.plans[id]
	if !ok {
		return nil, apperrors.NewActionPlanNotFound(id.String())
	}
	return plan, nil
}

func (f *fakePlanRepo) GetByInspectionID(ctx context.Context, inspectionID uuid.UUID) (*models.ActionPlan, error) {
	for _, plan := range f.plans {
		if plan.InspectionID == inspectionID {
			return plan, nil
		}
	}
	return nil, apperrors.NewActionPlanNotFound(inspectionID.String())
}

func (f *fakePlanRepo) Update(ctx context.Context, plan *models.ActionPlan, expectedVersion int64) error {
	f.updateCalls++
	if f.updateErr != nil {
		return f.updateErr
	}
	if f.conflictsRemaining > 0 {
		f.conflictsRemaining--
		return apperrors.ErrConcurrentModification
	}
	if _, ok := f.plans[plan.ID]; !ok {
		return apperrors.NewActionPlanNotFound(plan.ID.String())
	}
	f.put(plan)
	return nil
}

func (f *fakePlanRepo) Delete(ctx context.Context, id uuid.UUID) error {
	delete(f.plans, id)
	delete(f.versions, id)
	return nil
}

// fakeUserRepo is an in-memory UserRepository; services only read from it.
type fakeUserRepo struct {
	users  map[uuid.UUID]*models.User
	getErr error
}

var _ repositories.UserRepository = (*fakeUserRepo)(nil)

func newFakeUserRepo(users ...*models.User) *fakeUserRepo {
	f := &fakeUserRepo{users: make(map[uuid.UUID]*models.User)}
	for _, u := range users {
		f.users[u.ID] = u
	}
	return f
}

func (f *fakeUserRepo) Create(ctx context.Context, user *models.User) error {
	f.users[user.ID] = user
	return nil
}

func (f *fakeUserRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	user, ok := f.users[id]
	if !ok {
		return nil, apperrors.NewUserNotFound(id.String())
	}
	return user, nil
}

func (f *fakeUserRepo) GetByEmail(ctx context.Context, email models.Email) (*models.User, error) {
	for _, user := range f.users {
		if user.Email == email {
			return user, nil
		}
	}
	return nil, apperrors.NewUserNotFound(email.String())
}

func (f *fakeUserRepo) ListByCompany(ctx context.Context, companyID uuid.UUID) ([]*models.User, error) {
	var out []*models.User
	for _, user := range f.users {
		if user.CompanyID == companyID {
			out = append(out, user)
		}
	}
	return out, nil
}

func (f *fakeUserRepo) Update(ctx context.Context, user *models.User, expectedVersion int64) error {
	f.users[user.ID] = user
	return nil
}

func (f *fakeUserRepo) Delete(ctx context.Context, id uuid.UUID) error {
	delete(f.users, id)
	return nil
}

// fakeEstablishmentRepo is an in-memory EstablishmentRepository; services
// only use GetByID for existence checks.
type fakeEstablishmentRepo struct {
	establishments map[uuid.UUID]*models.Establishment
	getErr         error
}

var _ repositories.EstablishmentRepository = (*fakeEstablishmentRepo)(nil)

func newFakeEstablishmentRepo(establishments ...*models.Establishment) *fakeEstablishmentRepo {
	f := &fakeEstablishmentRepo{establishments: make(map[uuid.UUID]*models.Establishment)}
	for _, e := range establishments {
		f.establishments[e.ID] = e
	}
	return f
}

func (f *fakeEstablishmentRepo) Create(ctx context.Context, establishment *models.Establishment) error {
	f.establishments[establishment.ID] = establishment
	return nil
}

func (f *fakeEstablishmentRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Establishment, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	establishment, ok := f.establishments[id]
	if !ok {
		return nil, apperrors.NewEstablishmentNotFound(id.String())
	}
	return establishment, nil
}

func (f *fakeEstablishmentRepo) ListByCompany(ctx context.Context, companyID uuid.UUID) ([]*models.Establishment, error) {
	var out []*models.Establishment
	for _, e := range f.establishments {
		if e.CompanyID == companyID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeEstablishmentRepo) ListByConsultant(ctx context.Context, consultantID uuid.UUID) ([]*models.Establishment, error) {
	return nil, nil
}

func (f *fakeEstablishmentRepo) Update(ctx context.Context, establishment *models.Establishment, expectedVersion int64) error {
	f.establishments[establishment.ID] = establishment
	return nil
}

func (f *fakeEstablishmentRepo) Delete(ctx context.Context, id uuid.UUID) error {
	delete(f.establishments, id)
	return nil
}
