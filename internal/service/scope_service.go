package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/portfolio-service/internal/config"
	"github.com/spec-kit/portfolio-service/internal/domain"
	"github.com/spec-kit/portfolio-service/internal/observability"
	"github.com/spec-kit/portfolio-service/internal/repository"
	apperrors "github.com/spec-kit/portfolio-service/pkg/util/errorutil"
)

// ScopeCache memoizes supervisor member sets.
type ScopeCache interface {
	Get(ctx context.Context, supervisorID uuid.UUID) ([]uuid.UUID, bool, error)
	Set(ctx context.Context, supervisorID uuid.UUID, ids []uuid.UUID, ttl time.Duration) error
}

// ScopeService resolves which owners and users a caller may see.
type ScopeService struct {
	teams       repository.TeamRepository
	users       repository.UserRepository
	cache       ScopeCache
	cacheTTL    time.Duration
	fallbackAll bool
	logger      *zap.Logger
	metrics     *observability.Metrics
}

// ScopeDependencies bundles collaborators.
type ScopeDependencies struct {
	TeamRepo repository.TeamRepository
	UserRepo repository.UserRepository
	Cache    ScopeCache
	Config   config.ScopeConfig
	Logger   *zap.Logger
	Metrics  *observability.Metrics
}

// NewScopeService creates the service.
func NewScopeService(deps ScopeDependencies) *ScopeService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScopeService{
		teams:       deps.TeamRepo,
		users:       deps.UserRepo,
		cache:       deps.Cache,
		cacheTTL:    deps.Config.CacheTTL(),
		fallbackAll: deps.Config.SupervisorFallbackAll,
		logger:      logger,
		metrics:     deps.Metrics,
	}
}

// ScopeFor returns the visibility predicate for requester.
func (s *ScopeService) ScopeFor(ctx context.Context, requester *domain.User) (domain.Scope, error) {
	if requester == nil || !requester.Active {
		return domain.NoneScope(), nil
	}

	switch requester.Role {
	case domain.RoleSystemsAdmin, domain.RoleManagementAdmin:
		return domain.AllScope(), nil
	case domain.RoleTeamSupervisor:
		ids, err := s.supervisedUserIDs(ctx, requester.ID)
		if err != nil {
			return domain.NoneScope(), apperrors.MapError(err)
		}
		return domain.OwnersScope(ids...), nil
	case domain.RoleCommercial:
		return domain.OwnersScope(requester.ID), nil
	default:
		return domain.NoneScope(), nil
	}
}

// VisibleUsers lists the users inside requester's scope. all is true for unrestricted
// scopes, in which case the slice is nil.
func (s *ScopeService) VisibleUsers(ctx context.Context, requester *domain.User) (users []domain.User, all bool, err error) {
	scope, err := s.ScopeFor(ctx, requester)
	if err != nil {
		return nil, false, err
	}
	if scope.Kind == domain.ScopeAll {
		return nil, true, nil
	}
	if scope.IsEmpty() {
		return []domain.User{}, false, nil
	}
	users, err = s.users.ListByIDs(ctx, scope.OwnerIDs())
	if err != nil {
		return nil, false, apperrors.MapError(err)
	}
	return users, false, nil
}

func (s *ScopeService) supervisedUserIDs(ctx context.Context, supervisorID uuid.UUID) ([]uuid.UUID, error) {
	if s.cache != nil && s.cacheTTL > 0 {
		ids, found, err := s.cache.Get(ctx, supervisorID)
		if err != nil {
			s.logger.Warn("scope cache read failed", zap.String("supervisor_id", supervisorID.String()), zap.Error(err))
		} else if found {
			return ids, nil
		}
	}

	ids, err := s.resolveSupervisedUserIDs(ctx, supervisorID)
	if err != nil {
		return nil, err
	}

	if len(ids) > 0 && s.cache != nil && s.cacheTTL > 0 {
		if err := s.cache.Set(ctx, supervisorID, ids, s.cacheTTL); err != nil {
			s.logger.Warn("scope cache write failed", zap.String("supervisor_id", supervisorID.String()), zap.Error(err))
		}
	}
	return ids, nil
}

func (s *ScopeService) resolveSupervisedUserIDs(ctx context.Context, supervisorID uuid.UUID) ([]uuid.UUID, error) {
	teams, err := s.teams.ListBySupervisor(ctx, supervisorID)
	if err != nil {
		return nil, err
	}

	var memberIDs []uuid.UUID
	for _, team := range teams {
		memberIDs = append(memberIDs, team.MemberUserIDs...)
	}
	if len(memberIDs) > 0 {
		members, err := s.users.ListByIDs(ctx, memberIDs)
		if err != nil {
			return nil, err
		}
		if ids := activeCommercialIDs(members); len(ids) > 0 {
			return ids, nil
		}
	}

	reports, err := s.users.ListReportsTo(ctx, supervisorID, domain.RoleCommercial)
	if err != nil {
		return nil, err
	}
	if ids := activeCommercialIDs(reports); len(ids) > 0 {
		s.metrics.RecordScopeFallback("reports_to")
		s.logger.Info("supervisor scope resolved through reports_to",
			zap.String("supervisor_id", supervisorID.String()),
			zap.Int("members", len(ids)))
		return ids, nil
	}

	if s.fallbackAll {
		all, err := s.users.ListByRole(ctx, domain.RoleCommercial)
		if err != nil {
			return nil, err
		}
		s.metrics.RecordScopeFallback("all_commercial")
		s.logger.Warn("supervisor has no team; granting all commercial users",
			zap.String("supervisor_id", supervisorID.String()))
		return activeCommercialIDs(all), nil
	}

	s.metrics.RecordScopeFallback("none")
	s.logger.Warn("scope.unresolved: supervisor has no team or direct reports",
		zap.String("supervisor_id", supervisorID.String()))
	return nil, nil
}

func activeCommercialIDs(users []domain.User) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(users))
	ids := make([]uuid.UUID, 0, len(users))
	for _, user := range users {
		if !user.Active || user.Role != domain.RoleCommercial {
			continue
		}
		if _, dup := seen[user.ID]; dup {
			continue
		}
		seen[user.ID] = struct{}{}
		ids = append(ids, user.ID)
	}
	return ids
}
