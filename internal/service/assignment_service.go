package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spec-kit/portfolio-service/internal/config"
	"github.com/spec-kit/portfolio-service/internal/domain"
	"github.com/spec-kit/portfolio-service/internal/events"
	"github.com/spec-kit/portfolio-service/internal/lock"
	"github.com/spec-kit/portfolio-service/internal/repository"
	apperrors "github.com/spec-kit/portfolio-service/pkg/util/errorutil"
)

const auditWriteTimeout = 10 * time.Second

// AssignRequest is one bulk transfer of entities to a destination user.
type AssignRequest struct {
	Identifiers          []string
	DestinationUserID    string
	Note                 *string
	Overwrite            *bool
	IgnoreClassification *bool
	ClassificationID     *uuid.UUID
	SubclassificationID  *uuid.UUID
}

func (r AssignRequest) options() domain.BatchOptions {
	opts := domain.BatchOptions{
		Overwrite:            true,
		IgnoreClassification: true,
		ClassificationID:     r.ClassificationID,
		SubclassificationID:  r.SubclassificationID,
		Note:                 r.Note,
	}
	if r.Overwrite != nil {
		opts.Overwrite = *r.Overwrite
	}
	if r.IgnoreClassification != nil {
		opts.IgnoreClassification = *r.IgnoreClassification
	}
	return opts
}

// AssignmentService applies bulk ownership transfers to the ledger.
type AssignmentService struct {
	ownership  *OwnershipService
	ledger     repository.AssignmentRepository
	entities   repository.EntityRepository
	users      repository.UserRepository
	scopes     *ScopeService
	audit      *AuditService
	locker     lock.Locker
	dispatcher events.Dispatcher
	logger     *zap.Logger
	cfg        config.AssignmentConfig
	now        func() time.Time
}

// AssignmentDependencies bundles collaborators.
type AssignmentDependencies struct {
	Ownership      *OwnershipService
	AssignmentRepo repository.AssignmentRepository
	EntityRepo     repository.EntityRepository
	UserRepo       repository.UserRepository
	Scopes         *ScopeService
	Audit          *AuditService
	Locker         lock.Locker
	Dispatcher     events.Dispatcher
	Logger         *zap.Logger
	Config         config.AssignmentConfig
	Clock          func() time.Time
}

// NewAssignmentService creates the service.
func NewAssignmentService(deps AssignmentDependencies) *AssignmentService {
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
	return &AssignmentService{
		ownership:  deps.Ownership,
		ledger:     deps.AssignmentRepo,
		entities:   deps.EntityRepo,
		users:      deps.UserRepo,
		scopes:     deps.Scopes,
		audit:      deps.Audit,
		locker:     locker,
		dispatcher: deps.Dispatcher,
		logger:     logger,
		cfg:        deps.Config,
		now:        clock,
	}
}

type itemStatus int

const (
	itemMissing itemStatus = iota
	itemConflicted
	itemAssigned
	itemReassigned
	itemUnchanged
)

type itemOutcome struct {
	raw       string
	status    itemStatus
	entityID  *uuid.UUID
	prevOwner *uuid.UUID
	record    *domain.AssignmentRecord
	err       error
}

// Assign validates the request and applies it item by item. Per-item failures are folded
// into the returned summary; only structurally invalid requests return an error.
func (s *AssignmentService) Assign(ctx context.Context, requester *domain.User, req AssignRequest) (*domain.BatchSummary, error) {
	destination, err := s.validateRequester(ctx, requester, req.DestinationUserID)
	if err != nil {
		return nil, err
	}

	identifiers, refs, err := s.normalizeIdentifiers(req.Identifiers)
	if err != nil {
		return nil, err
	}

	opts := req.options()
	if opts.ClassificationID == nil && opts.SubclassificationID != nil {
		return nil, apperrors.NewValidationError("subclassification requires a classification", nil)
	}

	batchID := uuid.New()
	outcomes := make([]itemOutcome, len(identifiers))
	resolved := make([]*domain.Entity, len(identifiers))
	s.forEach(len(identifiers), func(i int) {
		outcomes[i], resolved[i] = s.resolveItem(ctx, batchID, identifiers[i], refs[i])
	})

	outcomes, resolved = dropDuplicateEntities(outcomes, resolved)
	s.forEach(len(outcomes), func(i int) {
		if resolved[i] != nil {
			s.processItem(ctx, requester, destination.ID, batchID, resolved[i], opts, &outcomes[i])
		}
	})

	summary, entries := s.summarize(requester, destination.ID, batchID, opts, outcomes)

	auditCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), auditWriteTimeout)
	defer cancel()
	if err := s.audit.RecordBatch(auditCtx, summary, entries); err != nil {
		s.logger.Error("failed to record batch audit",
			zap.String("batch_id", batchID.String()),
			zap.Int("modified", summary.Modified),
			zap.Error(err))
		return nil, err
	}

	s.publishOutcomes(auditCtx, requester.ID, batchID, outcomes)
	s.logger.Info("bulk assignment completed",
		zap.String("batch_id", batchID.String()),
		zap.String("requested_by", requester.ID.String()),
		zap.String("destination", destination.ID.String()),
		zap.Int("requested", summary.Requested),
		zap.Int("matched", summary.Matched),
		zap.Int("modified", summary.Modified),
		zap.Int("overwritten", summary.Overwritten),
		zap.Int("missing", len(summary.Missing)),
		zap.Int("conflicted", len(summary.Conflicted)))
	return summary, nil
}

func (s *AssignmentService) validateRequester(ctx context.Context, requester *domain.User, destinationRaw string) (*domain.User, error) {
	if requester == nil {
		return nil, apperrors.NewUnauthorized("user required")
	}
	caps := requester.Capabilities()
	if !caps.CanAssign() {
		return nil, apperrors.NewForbidden("insufficient role for assignment")
	}

	destinationID, err := uuid.Parse(strings.TrimSpace(destinationRaw))
	if err != nil || destinationID == uuid.Nil {
		return nil, apperrors.NewValidationError("invalid destination user id", map[string]any{"destination_user_id": destinationRaw})
	}
	destination, err := s.users.GetByID(ctx, destinationID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, apperrors.NewNotFound("user", map[string]any{"destination_user_id": destinationRaw})
		}
		return nil, apperrors.MapError(err)
	}
	if !destination.Active || !destination.Capabilities().CanHoldPortfolio {
		return nil, apperrors.NewValidationError("destination user cannot own entities", map[string]any{
			"destination_user_id": destinationRaw,
			"role":                string(destination.Role),
			"active":              destination.Active,
		})
	}

	if !caps.CanAssignGlobally {
		scope, err := s.scopes.ScopeFor(ctx, requester)
		if err != nil {
			return nil, err
		}
		if destination.ID != requester.ID && !scope.AllowsUser(destination.ID) {
			return nil, apperrors.NewForbidden("destination user outside supervised teams")
		}
	}
	return destination, nil
}

// normalizeIdentifiers trims and deduplicates input. Invalid identifiers are kept (with a
// zero ref) so they are reported as missing; at least one must be valid.
func (s *AssignmentService) normalizeIdentifiers(raw []string) ([]string, []*domain.EntityRef, error) {
	seen := make(map[string]struct{}, len(raw))
	identifiers := make([]string, 0, len(raw))
	refs := make([]*domain.EntityRef, 0, len(raw))
	valid := 0

	for _, item := range raw {
		trimmed := strings.TrimSpace(item)
		if trimmed == "" {
			continue
		}
		key := "raw:" + trimmed
		var ref *domain.EntityRef
		if normalized, ok := domain.NormalizeIdentifier(trimmed); ok {
			key = "ref:" + normalized.Key()
			ref = &normalized
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		identifiers = append(identifiers, trimmed)
		refs = append(refs, ref)
		if ref != nil {
			valid++
		}
	}

	if len(identifiers) == 0 {
		return nil, nil, apperrors.NewValidationError("identifiers required", nil)
	}
	if limit := s.cfg.MaxIdentifiers; limit > 0 && len(identifiers) > limit {
		return nil, nil, apperrors.NewValidationError("too many identifiers", map[string]any{"max": limit, "received": len(identifiers)})
	}
	if valid == 0 {
		return nil, nil, apperrors.NewValidationError("no valid identifiers", map[string]any{"identifiers": identifiers})
	}
	return identifiers, refs, nil
}

// forEach runs fn for every index on at most cfg.Workers goroutines.
func (s *AssignmentService) forEach(n int, fn func(i int)) {
	workers := s.cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	var g errgroup.Group
	g.SetLimit(workers)
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			fn(i)
			return nil
		})
	}
	_ = g.Wait()
}

// resolveItem maps one identifier to its entity. A nil entity means the outcome is final.
func (s *AssignmentService) resolveItem(ctx context.Context, batchID uuid.UUID, raw string, ref *domain.EntityRef) (outcome itemOutcome, entity *domain.Entity) {
	outcome = itemOutcome{raw: raw, status: itemMissing}
	if ref == nil {
		return outcome, nil
	}
	defer s.recoverItem(batchID, &outcome)

	entity, err := s.entities.Resolve(ctx, *ref)
	if errors.Is(err, domain.ErrEntityNotFound) {
		return outcome, nil
	}
	if err != nil {
		outcome.status = itemConflicted
		outcome.err = err
		return outcome, nil
	}
	entityID := entity.ID
	outcome.entityID = &entityID
	return outcome, entity
}

// dropDuplicateEntities keeps the first identifier of each resolved entity, so a tax id and
// the internal id of the same entity are applied once.
func dropDuplicateEntities(outcomes []itemOutcome, resolved []*domain.Entity) ([]itemOutcome, []*domain.Entity) {
	seen := make(map[uuid.UUID]struct{}, len(resolved))
	keptOutcomes := outcomes[:0]
	keptEntities := resolved[:0]
	for i, entity := range resolved {
		if entity != nil {
			if _, dup := seen[entity.ID]; dup {
				continue
			}
			seen[entity.ID] = struct{}{}
		}
		keptOutcomes = append(keptOutcomes, outcomes[i])
		keptEntities = append(keptEntities, entity)
	}
	return keptOutcomes, keptEntities
}

func (s *AssignmentService) recoverItem(batchID uuid.UUID, outcome *itemOutcome) {
	if r := recover(); r != nil {
		outcome.status = itemConflicted
		outcome.err = fmt.Errorf("panic: %v", r)
		outcome.record = nil
		outcome.prevOwner = nil
	}
	if outcome.status == itemConflicted {
		s.logger.Warn("assignment item conflicted",
			zap.String("batch_id", batchID.String()),
			zap.String("identifier", outcome.raw),
			zap.Error(outcome.err))
	}
}

// processItem applies the batch to one resolved entity, retrying lost compare-and-swap races.
func (s *AssignmentService) processItem(ctx context.Context, requester *domain.User, destinationID, batchID uuid.UUID, entity *domain.Entity, opts domain.BatchOptions, outcome *itemOutcome) {
	defer s.recoverItem(batchID, outcome)

	attempts := s.cfg.CASRetries + 1
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		err = s.applyOnce(ctx, requester, destinationID, batchID, entity, opts, outcome)
		if !errors.Is(err, domain.ErrLedgerConflict) {
			break
		}
	}
	if err != nil {
		outcome.status = itemConflicted
		outcome.err = err
		outcome.record = nil
		outcome.prevOwner = nil
	}
}

// applyOnce runs one read-decide-append cycle under the entity lock. The append itself is
// conditional on the predecessor, so a writer that bypasses the lock still cannot fork the
// ledger.
func (s *AssignmentService) applyOnce(ctx context.Context, requester *domain.User, destinationID, batchID uuid.UUID, entity *domain.Entity, opts domain.BatchOptions, outcome *itemOutcome) error {
	release, err := s.locker.Acquire(ctx, entityLockKey(entity.ID), s.cfg.LockTTL())
	if err != nil {
		return err
	}
	defer release()

	current, err := s.ownership.CurrentOwner(ctx, entity.ID)
	if errors.Is(err, domain.ErrNotAssigned) {
		current = nil
	} else if err != nil {
		return err
	}

	now := s.now().UTC()
	explicit := opts.ClassificationID != nil
	clear := opts.Overwrite && opts.IgnoreClassification

	if current != nil && !explicit && current.OwnerID == destinationID && !(clear && current.IsClassified()) {
		outcome.status = itemUnchanged
		return nil
	}

	batch := batchID
	record := &domain.AssignmentRecord{
		EntityID:     entity.ID,
		OwnerID:      destinationID,
		AssignedByID: requester.ID,
		AssignedAt:   now,
		BatchID:      &batch,
	}
	switch {
	case explicit:
		record.ApplyClassification(&domain.Classification{
			ClassificationID:    *opts.ClassificationID,
			SubclassificationID: opts.SubclassificationID,
			Note:                opts.Note,
			ClassifiedAt:        now,
			ClassifiedByID:      requester.ID,
		})
	case current != nil && !clear:
		record.CopyClassificationFrom(current)
	}

	if current != nil {
		prevID := current.ID
		record.PrevRecordID = &prevID
		if !record.AssignedAt.After(current.AssignedAt) {
			record.AssignedAt = current.AssignedAt
		}
	}

	if err := s.ledger.Append(ctx, record); err != nil {
		return err
	}

	outcome.record = record
	if current == nil {
		outcome.status = itemAssigned
		outcome.prevOwner = nil
	} else {
		prevOwner := current.OwnerID
		outcome.status = itemReassigned
		outcome.prevOwner = &prevOwner
	}
	return nil
}

func (s *AssignmentService) summarize(requester *domain.User, destinationID, batchID uuid.UUID, opts domain.BatchOptions, outcomes []itemOutcome) (*domain.BatchSummary, []domain.AuditLogEntry) {
	now := s.now().UTC()
	summary := &domain.BatchSummary{
		ID:                batchID,
		RequestedByID:     requester.ID,
		DestinationUserID: destinationID,
		Requested:         len(outcomes),
		Missing:           []string{},
		Conflicted:        []string{},
		Options:           opts,
		CreatedAt:         now,
	}
	entries := make([]domain.AuditLogEntry, 0, len(outcomes))

	for _, outcome := range outcomes {
		entry := domain.AuditLogEntry{
			ID:           uuid.New(),
			BatchID:      batchID,
			EntityRef:    outcome.raw,
			EntityID:     outcome.entityID,
			AssignedByID: requester.ID,
			CreatedAt:    now,
		}
		switch outcome.status {
		case itemMissing:
			summary.Missing = append(summary.Missing, outcome.raw)
			entry.Action = domain.AuditActionNotFound
		case itemConflicted:
			summary.Conflicted = append(summary.Conflicted, outcome.raw)
			entry.Action = domain.AuditActionSkipConflict
		case itemAssigned:
			summary.Matched++
			summary.Modified++
			entry.Action = domain.AuditActionAssign
			entry.NewOwnerID = &outcome.record.OwnerID
		case itemReassigned:
			summary.Matched++
			summary.Modified++
			summary.Overwritten++
			entry.Action = domain.AuditActionReassign
			entry.PrevOwnerID = outcome.prevOwner
			entry.NewOwnerID = &outcome.record.OwnerID
		case itemUnchanged:
			summary.Matched++
			continue
		}
		entries = append(entries, entry)
	}
	return summary, entries
}

func (s *AssignmentService) publishOutcomes(ctx context.Context, actorID, batchID uuid.UUID, outcomes []itemOutcome) {
	if s.dispatcher == nil {
		return
	}
	counts := map[string]int{}
	noOps := 0
	for _, outcome := range outcomes {
		switch outcome.status {
		case itemMissing:
			counts[string(domain.AuditActionNotFound)]++
		case itemConflicted:
			counts[string(domain.AuditActionSkipConflict)]++
		case itemUnchanged:
			noOps++
		case itemAssigned, itemReassigned:
			action := domain.AuditActionAssign
			if outcome.status == itemReassigned {
				action = domain.AuditActionReassign
			}
			counts[string(action)]++
			batch := batchID
			_ = s.dispatcher.Publish(ctx, events.Event{
				ID:        uuid.NewString(),
				Type:      events.EventOwnershipChanged,
				EntityID:  outcome.record.EntityID,
				ActorID:   actorID,
				Timestamp: outcome.record.AssignedAt,
				Payload: events.OwnershipChangedPayload{
					BatchID:     &batch,
					RecordID:    outcome.record.ID,
					Action:      string(action),
					PrevOwnerID: outcome.prevOwner,
					NewOwnerID:  outcome.record.OwnerID,
				},
			})
		}
	}
	_ = s.dispatcher.Publish(ctx, events.Event{
		ID:        uuid.NewString(),
		Type:      events.EventBatchCompleted,
		ActorID:   actorID,
		Timestamp: s.now().UTC(),
		Payload:   events.BatchCompletedPayload{BatchID: batchID, Actions: counts, NoOps: noOps},
	})
}

func entityLockKey(entityID uuid.UUID) string {
	return "entity:" + entityID.String()
}
