package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vigilo-inc/vigilo-engine/pkg/apperrors"
	"github.com/vigilo-inc/vigilo-engine/pkg/models"
	"github.com/vigilo-inc/vigilo-engine/pkg/repositories"
	"github.com/vigilo-inc/vigilo-engine/pkg/retry"
)

// ResolutionSummary is the tracking snapshot for an approved plan.
type ResolutionSummary struct {
	PlanID               uuid.UUID                           `json:"plan_id"`
	TotalItems           int                                 `json:"total_items"`
	ResolvedItems        int                                 `json:"resolved_items"`
	OpenItems            int                                 `json:"open_items"`
	ResolutionPercentage float64                             `json:"resolution_percentage"`
	FullyResolved        bool                                `json:"fully_resolved"`
	BySector             map[string][]*models.ActionPlanItem `json:"by_sector"`
}

// TrackerService tracks corrective-action progress on approved plans. Every
// mutation records who acted and retries transparently on concurrent
// modification.
type TrackerService interface {
	ResolveItem(ctx context.Context, actorID, planID, itemID uuid.UUID, notes string) error
	ReopenItem(ctx context.Context, actorID, planID, itemID uuid.UUID) error
	StartItemProgress(ctx context.Context, actorID, planID, itemID uuid.UUID) error
	AttachEvidence(ctx context.Context, actorID, planID, itemID uuid.UUID, imageURL string) error
	Summary(ctx context.Context, planID uuid.UUID) (*ResolutionSummary, error)
}

type trackerService struct {
	planRepo       repositories.ActionPlanRepository
	inspectionRepo repositories.InspectionRepository
	userRepo       repositories.UserRepository
	retryCfg       *retry.Config
	logger         *zap.Logger
}

// NewTrackerService creates a new tracker service. retryCfg may be nil to use
// the default backoff.
func NewTrackerService(
	planRepo repositories.ActionPlanRepository,
	inspectionRepo repositories.InspectionRepository,
	userRepo repositories.UserRepository,
	retryCfg *retry.Config,
	logger *zap.Logger,
) TrackerService {
	return &trackerService{
		planRepo:       planRepo,
		inspectionRepo: inspectionRepo,
		userRepo:       userRepo,
		retryCfg:       retryCfg,
		logger:         logger,
	}
}

var _ TrackerService = (*trackerService)(nil)

// mutateItem runs the load-check-mutate-persist cycle for a single item,
// retrying from a fresh load when another writer got there first.
func (s *trackerService) mutateItem(ctx context.Context, actorID, planID, itemID uuid.UUID, mutate func(*models.ActionPlanItem) error) error {
	actor, err := s.userRepo.GetByID(ctx, actorID)
	if err != nil {
		return err
	}

	return retry.DoIfRetryable(ctx, s.retryCfg, func() error {
		plan, err := s.planRepo.GetByID(ctx, planID)
		if err != nil {
			return err
		}
		expected := plan.Version

		inspection, err := s.inspectionRepo.GetByID(ctx, plan.InspectionID)
		if err != nil {
			return err
		}
		if err := s.authorizeTracking(actor, inspection); err != nil {
			return err
		}

		item := plan.GetItem(itemID)
		if item == nil {
			return apperrors.NewNotFoundError("ActionPlanItem", itemID.String())
		}
		if err := mutate(item); err != nil {
			return err
		}
		plan.MarkUpdated()

		return s.planRepo.Update(ctx, plan, expected)
	})
}

// authorizeTracking lets managers and admins track any item in their scope;
// consultants only on establishments assigned to them. Tracking requires the
// inspection to be past manager review and not yet closed.
func (s *trackerService) authorizeTracking(actor *models.User, inspection *models.Inspection) error {
	if actor.IsConsultant() && !actor.CanAccessEstablishment(inspection.EstablishmentID) {
		return apperrors.NewUnauthorizedError("consultant is not assigned to this establishment")
	}
	switch inspection.Status {
	case models.InspectionStatusApproved, models.InspectionStatusPendingConsultantVerification:
		return nil
	default:
		return apperrors.NewBusinessRuleViolation(
			fmt.Sprintf("items cannot be tracked while the inspection is %s", inspection.Status),
			"item_tracking")
	}
}

func (s *trackerService) ResolveItem(ctx context.Context, actorID, planID, itemID uuid.UUID, notes string) error {
	err := s.mutateItem(ctx, actorID, planID, itemID, func(item *models.ActionPlanItem) error {
		item.Resolve(notes)
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.Info("item resolved",
		zap.String("plan_id", planID.String()),
		zap.String("item_id", itemID.String()),
		zap.String("actor_id", actorID.String()))
	return nil
}

func (s *trackerService) ReopenItem(ctx context.Context, actorID, planID, itemID uuid.UUID) error {
	err := s.mutateItem(ctx, actorID, planID, itemID, func(item *models.ActionPlanItem) error {
		item.Reopen()
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.Info("item reopened",
		zap.String("plan_id", planID.String()),
		zap.String("item_id", itemID.String()),
		zap.String("actor_id", actorID.String()))
	return nil
}

func (s *trackerService) StartItemProgress(ctx context.Context, actorID, planID, itemID uuid.UUID) error {
	return s.mutateItem(ctx, actorID, planID, itemID, func(item *models.ActionPlanItem) error {
		item.StartProgress()
		return nil
	})
}

func (s *trackerService) AttachEvidence(ctx context.Context, actorID, planID, itemID uuid.UUID, imageURL string) error {
	return s.mutateItem(ctx, actorID, planID, itemID, func(item *models.ActionPlanItem) error {
		return item.AddEvidence(imageURL)
	})
}

func (s *trackerService) Summary(ctx context.Context, planID uuid.UUID) (*ResolutionSummary, error) {
	plan, err := s.planRepo.GetByID(ctx, planID)
	if err != nil {
		return nil, err
	}

	total := plan.ItemCount()
	resolved := plan.ResolvedItemsCount()
	return &ResolutionSummary{
		PlanID:               plan.ID,
		TotalItems:           total,
		ResolvedItems:        resolved,
		OpenItems:            plan.OpenItemsCount(),
		ResolutionPercentage: plan.ResolutionPercentage(),
		FullyResolved:        total > 0 && resolved == total,
		BySector:             plan.ItemsBySector(),
	}, nil
}
