package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/portfolio-service/internal/config"
	"github.com/spec-kit/portfolio-service/internal/domain"
	"github.com/spec-kit/portfolio-service/internal/events"
	"github.com/spec-kit/portfolio-service/internal/lock"
	"github.com/spec-kit/portfolio-service/internal/repository"
	apperrors "github.com/spec-kit/portfolio-service/pkg/util/errorutil"
)

// ClassifyRequest attaches a classification to the caller's current ownership of an entity.
type ClassifyRequest struct {
	EntityRef           string
	ClassificationID    uuid.UUID
	SubclassificationID *uuid.UUID
	Note                *string
}

// ClassificationService is the owner-only write path on the current record.
type ClassificationService struct {
	ownership  *OwnershipService
	ledger     repository.AssignmentRepository
	locker     lock.Locker
	dispatcher events.Dispatcher
	logger     *zap.Logger
	lockTTL    time.Duration
	now        func() time.Time
}

// ClassificationDependencies bundles collaborators.
type ClassificationDependencies struct {
	Ownership      *OwnershipService
	AssignmentRepo repository.AssignmentRepository
	Locker         lock.Locker
	Dispatcher     events.Dispatcher
	Logger         *zap.Logger
	Config         config.AssignmentConfig
	Clock          func() time.Time
}

// NewClassificationService creates the service.
func NewClassificationService(deps ClassificationDependencies) *ClassificationService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	locker := deps.Locker
	if locker == nil {
		locker = lock.NewKeyedMutex()
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &ClassificationService{
		ownership:  deps.Ownership,
		ledger:     deps.AssignmentRepo,
		locker:     locker,
		dispatcher: deps.Dispatcher,
		logger:     logger,
		lockTTL:    deps.Config.LockTTL(),
		now:        clock,
	}
}

// Classify sets the classification on the entity's current record. Only the current owner
// may classify, once per ownership period.
func (s *ClassificationService) Classify(ctx context.Context, requester *domain.User, req ClassifyRequest) (*domain.AssignmentRecord, error) {
	if requester == nil {
		return nil, apperrors.NewUnauthorized("user required")
	}
	if !requester.Capabilities().CanClassify {
		return nil, apperrors.NewForbidden("insufficient role for classification")
	}
	if req.ClassificationID == uuid.Nil {
		return nil, apperrors.NewValidationError("classification id required", nil)
	}
	if req.SubclassificationID != nil && *req.SubclassificationID == uuid.Nil {
		return nil, apperrors.NewValidationError("invalid subclassification id", nil)
	}

	entity, err := s.ownership.ResolveEntity(ctx, req.EntityRef)
	if err != nil {
		return nil, err
	}

	release, err := s.locker.Acquire(ctx, entityLockKey(entity.ID), s.lockTTL)
	if err != nil {
		return nil, apperrors.NewConflict("entity is being modified", map[string]any{"entity_id": entity.ID.String()})
	}
	defer release()

	current, err := s.ownership.CurrentOwner(ctx, entity.ID)
	if errors.Is(err, domain.ErrNotAssigned) {
		return nil, apperrors.NewNoActiveAssignment(map[string]any{"entity_id": entity.ID.String()})
	}
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if current.OwnerID != requester.ID {
		return nil, apperrors.NewNotOwner(map[string]any{"entity_id": entity.ID.String()})
	}
	if current.IsClassified() {
		return nil, apperrors.NewAlreadyClassified(map[string]any{
			"entity_id": entity.ID.String(),
			"record_id": current.ID,
		})
	}

	classification := domain.Classification{
		ClassificationID:    req.ClassificationID,
		SubclassificationID: req.SubclassificationID,
		Note:                req.Note,
		ClassifiedAt:        s.now().UTC(),
		ClassifiedByID:      requester.ID,
	}
	updated, err := s.ledger.Classify(ctx, current.ID, requester.ID, classification)
	if errors.Is(err, domain.ErrLedgerConflict) {
		return nil, apperrors.NewConflict("assignment changed while classifying", map[string]any{
			"entity_id": entity.ID.String(),
			"record_id": current.ID,
		})
	}
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	s.logger.Info("entity classified",
		zap.String("entity_id", entity.ID.String()),
		zap.Int64("record_id", updated.ID),
		zap.String("classified_by", requester.ID.String()))
	if s.dispatcher != nil {
		_ = s.dispatcher.Publish(ctx, events.Event{
			ID:        uuid.NewString(),
			Type:      events.EventEntityClassified,
			EntityID:  entity.ID,
			ActorID:   requester.ID,
			Timestamp: classification.ClassifiedAt,
			Payload: events.EntityClassifiedPayload{
				RecordID:            updated.ID,
				ClassificationID:    req.ClassificationID,
				SubclassificationID: req.SubclassificationID,
			},
		})
	}
	return updated, nil
}
