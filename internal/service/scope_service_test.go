package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/portfolio-service/internal/config"
	"github.com/spec-kit/portfolio-service/internal/domain"
	"github.com/spec-kit/portfolio-service/internal/observability"
)

// MockScopeCache is a mock implementation of ScopeCache
type MockScopeCache struct {
	mock.Mock
}

func (m *MockScopeCache) Get(ctx context.Context, supervisorID uuid.UUID) ([]uuid.UUID, bool, error) {
	args := m.Called(ctx, supervisorID)
	ids, _ := args.Get(0).([]uuid.UUID)
	return ids, args.Bool(1), args.Error(2)
}

func (m *MockScopeCache) Set(ctx context.Context, supervisorID uuid.UUID, ids []uuid.UUID, ttl time.Duration) error {
	args := m.Called(ctx, supervisorID, ids, ttl)
	return args.Error(0)
}

func TestScopeFor_SupervisorSeesTeamMembersOnly(t *testing.T) {
	f := newFixture()

	scope, err := f.scopes.ScopeFor(context.Background(), &f.supervisor)
	require.NoError(t, err)

	assert.Equal(t, domain.ScopeOwners, scope.Kind)
	assert.True(t, scope.AllowsOwner(f.c1.ID))
	assert.True(t, scope.AllowsOwner(f.c2.ID))
	assert.False(t, scope.AllowsOwner(f.c3.ID))
	assert.False(t, scope.AllowsOwner(f.supervisor.ID))
}

func TestScopeFor_Roles(t *testing.T) {
	f := newFixture()
	management := newUser("management", domain.RoleManagementAdmin)

	tests := []struct {
		name string
		user *domain.User
		kind domain.ScopeKind
		owns []uuid.UUID
	}{
		{"systems admin", &f.admin, domain.ScopeAll, nil},
		{"management admin", &management, domain.ScopeAll, nil},
		{"commercial", &f.c3, domain.ScopeOwners, []uuid.UUID{f.c3.ID}},
		{"back office", &f.backOffice, domain.ScopeNone, nil},
		{"inactive", &f.inactive, domain.ScopeNone, nil},
		{"anonymous", nil, domain.ScopeNone, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scope, err := f.scopes.ScopeFor(context.Background(), tt.user)
			require.NoError(t, err)
			assert.Equal(t, tt.kind, scope.Kind)
			assert.Equal(t, tt.owns, scope.OwnerIDs())
		})
	}
}

func TestScopeFor_SupervisorFallbacks(t *testing.T) {
	t.Run("reports to", func(t *testing.T) {
		f := newFixture()
		f.teams.teams = nil
		supervisorID := f.supervisor.ID
		c3 := f.users.users[f.c3.ID]
		c3.ReportsToID = &supervisorID
		f.users.users[f.c3.ID] = c3
		metrics := observability.NewMetrics("test")
		f.scopes = NewScopeService(ScopeDependencies{TeamRepo: f.teams, UserRepo: f.users, Metrics: metrics})

		scope, err := f.scopes.ScopeFor(context.Background(), &f.supervisor)
		require.NoError(t, err)
		assert.Equal(t, []uuid.UUID{f.c3.ID}, scope.OwnerIDs())
		count, err := testutil.GatherAndCount(metrics.Registry(), "test_scope_fallbacks_total")
		require.NoError(t, err)
		assert.Equal(t, 1, count)
	})

	t.Run("team without active commercials falls through", func(t *testing.T) {
		f := newFixture()
		supervisorID := f.supervisor.ID
		f.teams.teams = []domain.Team{{
			ID:            uuid.New(),
			SupervisorID:  &supervisorID,
			MemberUserIDs: []uuid.UUID{f.inactive.ID, f.backOffice.ID},
			IsActive:      true,
		}}

		scope, err := f.scopes.ScopeFor(context.Background(), &f.supervisor)
		require.NoError(t, err)
		assert.True(t, scope.IsEmpty())
	})

	t.Run("unresolved fails closed", func(t *testing.T) {
		f := newFixture()
		f.teams.teams = nil

		scope, err := f.scopes.ScopeFor(context.Background(), &f.supervisor)
		require.NoError(t, err)
		assert.Equal(t, domain.ScopeNone, scope.Kind)
		assert.False(t, scope.AllowsOwner(f.c1.ID))
	})

	t.Run("legacy all commercial when enabled", func(t *testing.T) {
		f := newFixture()
		f.teams.teams = nil
		f.scopes = NewScopeService(ScopeDependencies{
			TeamRepo: f.teams,
			UserRepo: f.users,
			Config:   config.ScopeConfig{SupervisorFallbackAll: true},
		})

		scope, err := f.scopes.ScopeFor(context.Background(), &f.supervisor)
		require.NoError(t, err)
		assert.ElementsMatch(t, []uuid.UUID{f.c1.ID, f.c2.ID, f.c3.ID}, scope.OwnerIDs())
		assert.False(t, scope.AllowsOwner(f.inactive.ID))
	})
}

func TestScopeFor_UsesCache(t *testing.T) {
	f := newFixture()
	ttl := time.Minute

	t.Run("hit skips directory", func(t *testing.T) {
		cache := new(MockScopeCache)
		cache.On("Get", mock.Anything, f.supervisor.ID).Return([]uuid.UUID{f.c3.ID}, true, nil)
		svc := NewScopeService(ScopeDependencies{TeamRepo: f.teams, UserRepo: f.users, Cache: cache, Config: config.ScopeConfig{CacheTTLSeconds: 60}})
		calls := f.teams.calls

		scope, err := svc.ScopeFor(context.Background(), &f.supervisor)
		require.NoError(t, err)
		assert.Equal(t, []uuid.UUID{f.c3.ID}, scope.OwnerIDs())
		assert.Equal(t, calls, f.teams.calls)
		cache.AssertExpectations(t)
	})

	t.Run("miss populates", func(t *testing.T) {
		cache := new(MockScopeCache)
		cache.On("Get", mock.Anything, f.supervisor.ID).Return(nil, false, nil)
		cache.On("Set", mock.Anything, f.supervisor.ID, mock.MatchedBy(func(ids []uuid.UUID) bool {
			return len(ids) == 2
		}), ttl).Return(nil)
		svc := NewScopeService(ScopeDependencies{TeamRepo: f.teams, UserRepo: f.users, Cache: cache, Config: config.ScopeConfig{CacheTTLSeconds: 60}})

		scope, err := svc.ScopeFor(context.Background(), &f.supervisor)
		require.NoError(t, err)
		assert.ElementsMatch(t, []uuid.UUID{f.c1.ID, f.c2.ID}, scope.OwnerIDs())
		cache.AssertExpectations(t)
	})

	t.Run("cache errors degrade to directory", func(t *testing.T) {
		cache := new(MockScopeCache)
		cache.On("Get", mock.Anything, f.supervisor.ID).Return(nil, false, errors.New("redis down"))
		cache.On("Set", mock.Anything, f.supervisor.ID, mock.Anything, ttl).Return(errors.New("redis down"))
		svc := NewScopeService(ScopeDependencies{TeamRepo: f.teams, UserRepo: f.users, Cache: cache, Config: config.ScopeConfig{CacheTTLSeconds: 60}})

		scope, err := svc.ScopeFor(context.Background(), &f.supervisor)
		require.NoError(t, err)
		assert.ElementsMatch(t, []uuid.UUID{f.c1.ID, f.c2.ID}, scope.OwnerIDs())
	})
}

func TestVisibleUsers(t *testing.T) {
	f := newFixture()

	users, all, err := f.scopes.VisibleUsers(context.Background(), &f.admin)
	require.NoError(t, err)
	assert.True(t, all)
	assert.Nil(t, users)

	users, all, err = f.scopes.VisibleUsers(context.Background(), &f.supervisor)
	require.NoError(t, err)
	assert.False(t, all)
	require.Len(t, users, 2)

	users, _, err = f.scopes.VisibleUsers(context.Background(), &f.backOffice)
	require.NoError(t, err)
	assert.Empty(t, users)
}
