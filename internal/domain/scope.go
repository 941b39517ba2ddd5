package domain

import (
	"sort"

	"github.com/google/uuid"
)

// ScopeKind describes the breadth of a visibility scope.
type ScopeKind string

const (
	ScopeAll    ScopeKind = "all"
	ScopeOwners ScopeKind = "owners"
	ScopeNone   ScopeKind = "none"
)

// Scope is a reusable visibility predicate over owners/users.
type Scope struct {
	Kind     ScopeKind
	ownerIDs map[uuid.UUID]struct{}
}

// AllScope matches everything.
func AllScope() Scope {
	return Scope{Kind: ScopeAll}
}

// NoneScope matches nothing.
func NoneScope() Scope {
	return Scope{Kind: ScopeNone}
}

// OwnersScope matches the given owners. An empty list collapses to NoneScope.
func OwnersScope(ids ...uuid.UUID) Scope {
	set := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		if id == uuid.Nil {
			continue
		}
		set[id] = struct{}{}
	}
	if len(set) == 0 {
		return NoneScope()
	}
	return Scope{Kind: ScopeOwners, ownerIDs: set}
}

// AllowsOwner reports whether entities owned by id are visible.
func (s Scope) AllowsOwner(id uuid.UUID) bool {
	switch s.Kind {
	case ScopeAll:
		return true
	case ScopeOwners:
		_, ok := s.ownerIDs[id]
		return ok
	default:
		return false
	}
}

// AllowsUser reports whether the user id itself is visible.
func (s Scope) AllowsUser(id uuid.UUID) bool {
	return s.AllowsOwner(id)
}

// IsEmpty reports whether the scope can never match.
func (s Scope) IsEmpty() bool {
	return s.Kind != ScopeAll && len(s.ownerIDs) == 0
}

// OwnerIDs returns the explicit owner list in stable order. Nil for ScopeAll.
func (s Scope) OwnerIDs() []uuid.UUID {
	if s.Kind != ScopeOwners {
		return nil
	}
	ids := make([]uuid.UUID, 0, len(s.ownerIDs))
	for id := range s.ownerIDs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids
}
