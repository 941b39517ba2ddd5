package service

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/portfolio-service/internal/config"
	"github.com/spec-kit/portfolio-service/internal/domain"
	"github.com/spec-kit/portfolio-service/internal/lock"
)

const (
	taxE1 = "12345678901"
	taxE2 = "23456789012"
	taxE3 = "34567890123"
)

type fixture struct {
	admin      domain.User
	supervisor domain.User
	c1         domain.User
	c2         domain.User
	c3         domain.User
	backOffice domain.User
	inactive   domain.User

	e1 domain.Entity
	e2 domain.Entity
	e3 domain.Entity

	ledger     *memLedger
	entities   *memEntities
	users      *memUsers
	teams      *memTeams
	batches    *memBatches
	dispatcher *recordingDispatcher
	clock      *stepClock

	scopes         *ScopeService
	ownership      *OwnershipService
	audit          *AuditService
	assignments    *AssignmentService
	classification *ClassificationService
}

// stepClock advances one second per reading.
type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

func newUser(name string, role domain.Role) domain.User {
	return domain.User{ID: uuid.New(), Name: name, Email: name + "@example.com", Role: role, Active: true}
}

func newFixture() *fixture {
	f := &fixture{
		admin:      newUser("admin", domain.RoleSystemsAdmin),
		supervisor: newUser("supervisor", domain.RoleTeamSupervisor),
		c1:         newUser("c1", domain.RoleCommercial),
		c2:         newUser("c2", domain.RoleCommercial),
		c3:         newUser("c3", domain.RoleCommercial),
		backOffice: newUser("backoffice", domain.RoleBackOffice),
		inactive:   newUser("inactive", domain.RoleCommercial),
		e1:         domain.Entity{ID: uuid.New(), TaxID: taxE1, BusinessName: "Acme SA"},
		e2:         domain.Entity{ID: uuid.New(), TaxID: taxE2, BusinessName: "Globex SRL"},
		e3:         domain.Entity{ID: uuid.New(), TaxID: taxE3, BusinessName: "Initech SAC"},
		clock:      &stepClock{now: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)},
	}
	f.inactive.Active = false

	supervisorID := f.supervisor.ID
	f.ledger = newMemLedger()
	f.entities = newMemEntities(f.e1, f.e2, f.e3)
	f.users = newMemUsers(f.admin, f.supervisor, f.c1, f.c2, f.c3, f.backOffice, f.inactive)
	f.teams = &memTeams{teams: []domain.Team{{
		ID:            uuid.New(),
		Name:          "North",
		SupervisorID:  &supervisorID,
		MemberUserIDs: []uuid.UUID{f.c1.ID, f.c2.ID},
		IsActive:      true,
	}}}
	f.batches = newMemBatches()
	f.dispatcher = &recordingDispatcher{}

	f.build(config.AssignmentConfig{MaxIdentifiers: 10, Workers: 4, CASRetries: 3}, config.ScopeConfig{})
	return f
}

func (f *fixture) build(assignCfg config.AssignmentConfig, scopeCfg config.ScopeConfig) {
	locker := lock.NewKeyedMutex()
	f.scopes = NewScopeService(ScopeDependencies{
		TeamRepo: f.teams,
		UserRepo: f.users,
		Config:   scopeCfg,
	})
	f.ownership = NewOwnershipService(OwnershipDependencies{
		AssignmentRepo: f.ledger,
		EntityRepo:     f.entities,
		Scopes:         f.scopes,
	})
	f.audit = NewAuditService(f.batches)
	f.assignments = NewAssignmentService(AssignmentDependencies{
		Ownership:      f.ownership,
		AssignmentRepo: f.ledger,
		EntityRepo:     f.entities,
		UserRepo:       f.users,
		Scopes:         f.scopes,
		Audit:          f.audit,
		Locker:         locker,
		Dispatcher:     f.dispatcher,
		Config:         assignCfg,
		Clock:          f.clock.Now,
	})
	f.classification = NewClassificationService(ClassificationDependencies{
		Ownership:      f.ownership,
		AssignmentRepo: f.ledger,
		Locker:         locker,
		Dispatcher:     f.dispatcher,
		Config:         assignCfg,
		Clock:          f.clock.Now,
	})
}

func boolPtr(v bool) *bool { return &v }

func strPtr(v string) *string { return &v }

func uuidPtr(v uuid.UUID) *uuid.UUID { return &v }
