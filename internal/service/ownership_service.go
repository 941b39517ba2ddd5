package service

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/spec-kit/portfolio-service/internal/domain"
	"github.com/spec-kit/portfolio-service/internal/repository"
	apperrors "github.com/spec-kit/portfolio-service/pkg/util/errorutil"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Page is a 1-based page request.
type Page struct {
	Number int
	Size   int
}

func (p Page) normalized() Page {
	if p.Number < 1 {
		p.Number = 1
	}
	if p.Size <= 0 {
		p.Size = defaultPageSize
	}
	if p.Size > maxPageSize {
		p.Size = maxPageSize
	}
	return p
}

// PortfolioQuery narrows a portfolio listing.
type PortfolioQuery struct {
	UnclassifiedOnly bool
	Search           *string
}

// PortfolioPage is one page of an owner's current entities.
type PortfolioPage struct {
	OwnerID  uuid.UUID
	Items    []domain.OwnedEntity
	Total    int
	Page     int
	PageSize int
}

// OwnershipService answers "who owns what" from the ledger projection.
type OwnershipService struct {
	ledger   repository.AssignmentRepository
	entities repository.EntityRepository
	scopes   *ScopeService
}

// OwnershipDependencies bundles repositories.
type OwnershipDependencies struct {
	AssignmentRepo repository.AssignmentRepository
	EntityRepo     repository.EntityRepository
	Scopes         *ScopeService
}

// NewOwnershipService creates the service.
func NewOwnershipService(deps OwnershipDependencies) *OwnershipService {
	return &OwnershipService{
		ledger:   deps.AssignmentRepo,
		entities: deps.EntityRepo,
		scopes:   deps.Scopes,
	}
}

// CurrentOwner returns the current record of entityID, or domain.ErrNotAssigned.
// This is the single definition of "current" used by every writer.
func (s *OwnershipService) CurrentOwner(ctx context.Context, entityID uuid.UUID) (*domain.AssignmentRecord, error) {
	return s.ledger.Current(ctx, entityID)
}

// ResolveEntity normalizes identifier and looks it up in the entity directory.
func (s *OwnershipService) ResolveEntity(ctx context.Context, identifier string) (*domain.Entity, error) {
	ref, ok := domain.NormalizeIdentifier(identifier)
	if !ok {
		return nil, apperrors.NewValidationError("invalid entity identifier", map[string]any{"identifier": identifier})
	}
	entity, err := s.entities.Resolve(ctx, ref)
	if errors.Is(err, domain.ErrEntityNotFound) {
		return nil, apperrors.NewNotFound("entity", map[string]any{"identifier": identifier})
	}
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return entity, nil
}

// OwnerOf returns the entity and its current record as seen by requester. record is nil
// when the entity is unassigned.
func (s *OwnershipService) OwnerOf(ctx context.Context, requester *domain.User, identifier string) (*domain.Entity, *domain.AssignmentRecord, error) {
	scope, err := s.scopes.ScopeFor(ctx, requester)
	if err != nil {
		return nil, nil, err
	}
	if scope.IsEmpty() && !holdsPortfolio(requester) {
		return nil, nil, apperrors.NewForbidden("no visibility scope")
	}

	entity, err := s.ResolveEntity(ctx, identifier)
	if err != nil {
		return nil, nil, err
	}
	record, err := s.CurrentOwner(ctx, entity.ID)
	if errors.Is(err, domain.ErrNotAssigned) {
		return entity, nil, nil
	}
	if err != nil {
		return nil, nil, apperrors.MapError(err)
	}
	if !ownerVisible(scope, requester, record.OwnerID) {
		return nil, nil, apperrors.NewForbidden("entity outside visibility scope")
	}
	return entity, record, nil
}

// History returns the full ledger of an entity, oldest first. The current owner must be
// visible to requester.
func (s *OwnershipService) History(ctx context.Context, requester *domain.User, identifier string) (*domain.Entity, []domain.AssignmentRecord, error) {
	entity, current, err := s.OwnerOf(ctx, requester, identifier)
	if err != nil {
		return nil, nil, err
	}
	if current == nil {
		return entity, []domain.AssignmentRecord{}, nil
	}
	records, err := s.ledger.History(ctx, entity.ID)
	if err != nil {
		return nil, nil, apperrors.MapError(err)
	}
	return entity, records, nil
}

// ListOwnedBy returns the portfolio of ownerID: the ledger collapsed to the latest record
// per entity, filtered to that owner.
func (s *OwnershipService) ListOwnedBy(ctx context.Context, requester *domain.User, ownerID uuid.UUID, query PortfolioQuery, page Page) (*PortfolioPage, error) {
	if ownerID == uuid.Nil {
		return nil, apperrors.NewValidationError("owner id required", nil)
	}
	scope, err := s.scopes.ScopeFor(ctx, requester)
	if err != nil {
		return nil, err
	}
	if !ownerVisible(scope, requester, ownerID) {
		return nil, apperrors.NewForbidden("owner outside visibility scope")
	}

	page = page.normalized()
	items, total, err := s.ledger.ListCurrentByOwner(ctx, repository.PortfolioFilter{
		OwnerID:          ownerID,
		UnclassifiedOnly: query.UnclassifiedOnly,
		SearchTerm:       query.Search,
		Limit:            page.Size,
		Offset:           (page.Number - 1) * page.Size,
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if items == nil {
		items = []domain.OwnedEntity{}
	}
	return &PortfolioPage{
		OwnerID:  ownerID,
		Items:    items,
		Total:    total,
		Page:     page.Number,
		PageSize: page.Size,
	}, nil
}

// ownerVisible extends scope with the requester's own portfolio. A supervisor's scope lists
// the team, not the supervisor, yet supervisors may own entities.
func ownerVisible(scope domain.Scope, requester *domain.User, ownerID uuid.UUID) bool {
	if scope.AllowsOwner(ownerID) {
		return true
	}
	return holdsPortfolio(requester) && requester.ID == ownerID
}

func holdsPortfolio(user *domain.User) bool {
	return user != nil && user.Active && user.Capabilities().CanHoldPortfolio
}
