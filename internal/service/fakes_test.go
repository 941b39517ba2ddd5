package service

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/portfolio-service/internal/domain"
	"github.com/spec-kit/portfolio-service/internal/events"
	"github.com/spec-kit/portfolio-service/internal/repository"
)

// memLedger mimics the Postgres ledger including its unique-index CAS.
type memLedger struct {
	mu      sync.Mutex
	nextID  int64
	records map[uuid.UUID][]domain.AssignmentRecord
	// beforeAppend runs outside the lock and may fail an append or race it.
	beforeAppend func(record *domain.AssignmentRecord) error
	appends      int
}

func newMemLedger() *memLedger {
	return &memLedger{records: make(map[uuid.UUID][]domain.AssignmentRecord)}
}

func (l *memLedger) Current(_ context.Context, entityID uuid.UUID) (*domain.AssignmentRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	latest := domain.Latest(l.records[entityID])
	if latest == nil {
		return nil, domain.ErrNotAssigned
	}
	copied := *latest
	return &copied, nil
}

func (l *memLedger) History(_ context.Context, entityID uuid.UUID) ([]domain.AssignmentRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	history := append([]domain.AssignmentRecord{}, l.records[entityID]...)
	sort.Slice(history, func(i, j int) bool { return history[j].NewerThan(&history[i]) })
	for i := 0; i+1 < len(history); i++ {
		released := history[i+1].AssignedAt
		history[i].ReleasedAt = &released
	}
	return history, nil
}

func (l *memLedger) Append(_ context.Context, record *domain.AssignmentRecord) error {
	if hook := l.beforeAppend; hook != nil {
		if err := hook(record); err != nil {
			return err
		}
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, existing := range l.records[record.EntityID] {
		if record.PrevRecordID == nil && existing.PrevRecordID == nil {
			return domain.ErrLedgerConflict
		}
		if record.PrevRecordID != nil && existing.PrevRecordID != nil && *existing.PrevRecordID == *record.PrevRecordID {
			return domain.ErrLedgerConflict
		}
	}
	l.nextID++
	record.ID = l.nextID
	l.records[record.EntityID] = append(l.records[record.EntityID], *record)
	l.appends++
	return nil
}

func (l *memLedger) Classify(_ context.Context, recordID int64, ownerID uuid.UUID, c domain.Classification) (*domain.AssignmentRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for entityID, records := range l.records {
		for i := range records {
			if records[i].ID != recordID {
				continue
			}
			if records[i].OwnerID != ownerID || records[i].IsClassified() {
				return nil, domain.ErrLedgerConflict
			}
			for _, other := range records {
				if other.PrevRecordID != nil && *other.PrevRecordID == recordID {
					return nil, domain.ErrLedgerConflict
				}
			}
			records[i].ApplyClassification(&c)
			l.records[entityID] = records
			copied := records[i]
			return &copied, nil
		}
	}
	return nil, domain.ErrLedgerConflict
}

func (l *memLedger) ListCurrentByOwner(_ context.Context, filter repository.PortfolioFilter) ([]domain.OwnedEntity, int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var matched []domain.OwnedEntity
	for entityID, records := range l.records {
		latest := domain.Latest(records)
		if latest == nil || latest.OwnerID != filter.OwnerID {
			continue
		}
		if filter.UnclassifiedOnly && latest.IsClassified() {
			continue
		}
		matched = append(matched, domain.OwnedEntity{Entity: domain.Entity{ID: entityID}, Record: *latest})
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].Record.ID < matched[j].Record.ID })
	total := len(matched)
	if filter.Offset >= total {
		return []domain.OwnedEntity{}, total, nil
	}
	end := filter.Offset + filter.Limit
	if end > total {
		end = total
	}
	return matched[filter.Offset:end], total, nil
}

func (l *memLedger) current(entityID uuid.UUID) *domain.AssignmentRecord {
	record, _ := l.Current(context.Background(), entityID)
	return record
}

func (l *memLedger) count(entityID uuid.UUID) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.records[entityID])
}

// seed appends a record directly, bypassing services.
func (l *memLedger) seed(entityID, ownerID uuid.UUID, at time.Time, classification *domain.Classification) *domain.AssignmentRecord {
	record := &domain.AssignmentRecord{
		EntityID:     entityID,
		OwnerID:      ownerID,
		AssignedByID: ownerID,
		AssignedAt:   at,
	}
	if prev := l.current(entityID); prev != nil {
		prevID := prev.ID
		record.PrevRecordID = &prevID
	}
	record.ApplyClassification(classification)
	if err := l.Append(context.Background(), record); err != nil {
		panic(err)
	}
	return record
}

type memEntities struct {
	byTaxID map[string]domain.Entity
	byID    map[uuid.UUID]domain.Entity
}

func newMemEntities(entities ...domain.Entity) *memEntities {
	m := &memEntities{byTaxID: map[string]domain.Entity{}, byID: map[uuid.UUID]domain.Entity{}}
	for _, e := range entities {
		m.byTaxID[e.TaxID] = e
		m.byID[e.ID] = e
	}
	return m
}

func (m *memEntities) Resolve(_ context.Context, ref domain.EntityRef) (*domain.Entity, error) {
	var (
		entity domain.Entity
		ok     bool
	)
	if ref.IsInternal() {
		entity, ok = m.byID[ref.EntityID]
	} else {
		entity, ok = m.byTaxID[ref.TaxID]
	}
	if !ok {
		return nil, domain.ErrEntityNotFound
	}
	return &entity, nil
}

type memUsers struct {
	users map[uuid.UUID]domain.User
}

func newMemUsers(users ...domain.User) *memUsers {
	m := &memUsers{users: map[uuid.UUID]domain.User{}}
	for _, u := range users {
		m.users[u.ID] = u
	}
	return m
}

func (m *memUsers) GetByID(_ context.Context, id uuid.UUID) (*domain.User, error) {
	user, ok := m.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &user, nil
}

func (m *memUsers) ListByRole(_ context.Context, role domain.Role) ([]domain.User, error) {
	var out []domain.User
	for _, u := range m.sorted() {
		if u.Role == role {
			out = append(out, u)
		}
	}
	return out, nil
}

func (m *memUsers) ListReportsTo(_ context.Context, managerID uuid.UUID, role domain.Role) ([]domain.User, error) {
	var out []domain.User
	for _, u := range m.sorted() {
		if u.Role == role && u.ReportsToID != nil && *u.ReportsToID == managerID {
			out = append(out, u)
		}
	}
	return out, nil
}

func (m *memUsers) ListByIDs(_ context.Context, ids []uuid.UUID) ([]domain.User, error) {
	var out []domain.User
	for _, id := range ids {
		if u, ok := m.users[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

func (m *memUsers) sorted() []domain.User {
	out := make([]domain.User, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return strings.Compare(out[i].ID.String(), out[j].ID.String()) < 0 })
	return out
}

type memTeams struct {
	teams []domain.Team
	calls int
}

func (m *memTeams) ListBySupervisor(_ context.Context, supervisorID uuid.UUID) ([]domain.Team, error) {
	m.calls++
	var out []domain.Team
	for _, team := range m.teams {
		if team.IsActive && team.SupervisorID != nil && *team.SupervisorID == supervisorID {
			out = append(out, team)
		}
	}
	return out, nil
}

type memBatches struct {
	mu      sync.Mutex
	batches []domain.BatchSummary
	entries map[uuid.UUID][]domain.AuditLogEntry
	err     error
}

func newMemBatches() *memBatches {
	return &memBatches{entries: map[uuid.UUID][]domain.AuditLogEntry{}}
}

func (m *memBatches) Create(_ context.Context, summary *domain.BatchSummary, entries []domain.AuditLogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.batches = append(m.batches, *summary)
	m.entries[summary.ID] = append([]domain.AuditLogEntry{}, entries...)
	return nil
}

func (m *memBatches) GetByID(_ context.Context, id uuid.UUID) (*domain.BatchSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.batches {
		if b.ID == id {
			batch := b
			return &batch, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (m *memBatches) List(_ context.Context, filter repository.BatchFilter) ([]domain.BatchSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.BatchSummary
	for i := len(m.batches) - 1; i >= 0; i-- {
		b := m.batches[i]
		if filter.RequestedByID != nil && b.RequestedByID != *filter.RequestedByID {
			continue
		}
		out = append(out, b)
	}
	if filter.Skip >= len(out) {
		return []domain.BatchSummary{}, nil
	}
	out = out[filter.Skip:]
	if len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (m *memBatches) ListEntries(_ context.Context, batchID uuid.UUID) ([]domain.AuditLogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.AuditLogEntry{}, m.entries[batchID]...), nil
}

func (m *memBatches) last() (domain.BatchSummary, []domain.AuditLogEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b := m.batches[len(m.batches)-1]
	return b, m.entries[b.ID]
}

type recordingDispatcher struct {
	mu     sync.Mutex
	events []events.Event
}

func (d *recordingDispatcher) Publish(_ context.Context, event events.Event) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, event)
	return nil
}

func (d *recordingDispatcher) Subscribe(events.EventType, events.EventHandler) {}

func (d *recordingDispatcher) ofType(eventType events.EventType) []events.Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []events.Event
	for _, e := range d.events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}
