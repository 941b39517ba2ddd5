package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/spec-kit/portfolio-service/internal/domain"
	"github.com/spec-kit/portfolio-service/internal/repository"
	apperrors "github.com/spec-kit/portfolio-service/pkg/util/errorutil"
)

const (
	defaultBatchLimit = 20
	maxBatchLimit     = 100
)

// AuditService persists and serves the write-once bulk assignment audit trail.
type AuditService struct {
	batches repository.BatchRepository
}

// NewAuditService creates the service.
func NewAuditService(batches repository.BatchRepository) *AuditService {
	return &AuditService{batches: batches}
}

// RecordBatch stores the summary and its entries together.
func (s *AuditService) RecordBatch(ctx context.Context, summary *domain.BatchSummary, entries []domain.AuditLogEntry) error {
	if summary == nil || summary.ID == uuid.Nil {
		return apperrors.NewValidationError("batch summary requires an id", nil)
	}
	for i := range entries {
		if entries[i].BatchID != summary.ID {
			return apperrors.NewValidationError("audit entry belongs to another batch", map[string]any{
				"batch_id":   summary.ID.String(),
				"entity_ref": entries[i].EntityRef,
			})
		}
	}
	if err := s.batches.Create(ctx, summary, entries); err != nil {
		return apperrors.NewInternalError(err)
	}
	return nil
}

// ListBatches returns batches newest first. Global assigners see every batch; team
// supervisors see the ones they submitted.
func (s *AuditService) ListBatches(ctx context.Context, requester *domain.User, skip, limit int) ([]domain.BatchSummary, error) {
	filter, err := batchFilterFor(requester)
	if err != nil {
		return nil, err
	}
	if skip < 0 {
		skip = 0
	}
	if limit <= 0 {
		limit = defaultBatchLimit
	}
	if limit > maxBatchLimit {
		limit = maxBatchLimit
	}
	filter.Skip = skip
	filter.Limit = limit

	batches, err := s.batches.List(ctx, filter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return batches, nil
}

// BatchDetail returns one batch with its entries grouped by action.
func (s *AuditService) BatchDetail(ctx context.Context, requester *domain.User, batchID uuid.UUID) (*domain.BatchDetail, error) {
	filter, err := batchFilterFor(requester)
	if err != nil {
		return nil, err
	}

	summary, err := s.batches.GetByID(ctx, batchID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, apperrors.NewNotFound("batch", map[string]any{"batch_id": batchID.String()})
		}
		return nil, apperrors.MapError(err)
	}
	if filter.RequestedByID != nil && *filter.RequestedByID != summary.RequestedByID {
		return nil, apperrors.NewForbidden("batch submitted by another user")
	}

	entries, err := s.batches.ListEntries(ctx, batchID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return &domain.BatchDetail{
		Summary: *summary,
		Entries: domain.GroupEntries(entries),
	}, nil
}

func batchFilterFor(requester *domain.User) (repository.BatchFilter, error) {
	caps := requester.Capabilities()
	switch {
	case caps.CanAssignGlobally:
		return repository.BatchFilter{}, nil
	case caps.CanSuperviseTeam:
		id := requester.ID
		return repository.BatchFilter{RequestedByID: &id}, nil
	default:
		return repository.BatchFilter{}, apperrors.NewForbidden("insufficient role for batch audit")
	}
}
