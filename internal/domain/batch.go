package domain

import (
	"time"

	"github.com/google/uuid"
)

// AuditAction enumerates per-entity outcomes inside a batch.
type AuditAction string

const (
	AuditActionAssign       AuditAction = "assign"
	AuditActionReassign     AuditAction = "reassign"
	AuditActionSkipConflict AuditAction = "skip_conflict"
	AuditActionNotFound     AuditAction = "not_found"
)

// AuditActions lists actions in display order.
var AuditActions = []AuditAction{
	AuditActionAssign,
	AuditActionReassign,
	AuditActionSkipConflict,
	AuditActionNotFound,
}

// BatchOptions echoes the knobs a batch ran with.
type BatchOptions struct {
	Overwrite            bool       `json:"overwrite"`
	IgnoreClassification bool       `json:"ignore_classification"`
	ClassificationID     *uuid.UUID `json:"classification_id,omitempty"`
	SubclassificationID  *uuid.UUID `json:"subclassification_id,omitempty"`
	Note                 *string    `json:"note,omitempty"`
}

// BatchSummary is the immutable outcome of one bulk assignment.
type BatchSummary struct {
	ID                uuid.UUID
	RequestedByID     uuid.UUID
	DestinationUserID uuid.UUID
	Requested         int
	Matched           int
	Modified          int
	Overwritten       int
	Missing           []string
	Conflicted        []string
	Options           BatchOptions
	CreatedAt         time.Time
}

// AuditLogEntry records what happened to one identifier in a batch.
type AuditLogEntry struct {
	ID           uuid.UUID
	BatchID      uuid.UUID
	EntityRef    string
	EntityID     *uuid.UUID
	Action       AuditAction
	PrevOwnerID  *uuid.UUID
	NewOwnerID   *uuid.UUID
	AssignedByID uuid.UUID
	CreatedAt    time.Time
}

// BatchDetail groups a batch's entries by action.
type BatchDetail struct {
	Summary BatchSummary
	Entries map[AuditAction][]AuditLogEntry
}

// GroupEntries buckets entries by action, preserving input order within each bucket.
func GroupEntries(entries []AuditLogEntry) map[AuditAction][]AuditLogEntry {
	grouped := make(map[AuditAction][]AuditLogEntry, len(AuditActions))
	for _, action := range AuditActions {
		grouped[action] = []AuditLogEntry{}
	}
	for _, entry := range entries {
		grouped[entry.Action] = append(grouped[entry.Action], entry)
	}
	return grouped
}
