package events

import (
	"time"

	"github.com/google/uuid"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventOwnershipChanged EventType = "ownership.changed"
	EventEntityClassified EventType = "entity.classified"
	// EventBatchCompleted is published once per bulk assignment after its audit trail is stored.
	EventBatchCompleted EventType = "assignment.batch_completed"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	EntityID  uuid.UUID `json:"entity_id"`
	ActorID   uuid.UUID `json:"actor_id"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// OwnershipChangedPayload describes one ledger append.
type OwnershipChangedPayload struct {
	BatchID     *uuid.UUID `json:"batch_id,omitempty"`
	RecordID    int64      `json:"record_id"`
	Action      string     `json:"action"`
	PrevOwnerID *uuid.UUID `json:"prev_owner_id,omitempty"`
	NewOwnerID  uuid.UUID  `json:"new_owner_id"`
}

// EntityClassifiedPayload describes a classification applied by the owner.
type EntityClassifiedPayload struct {
	RecordID            int64      `json:"record_id"`
	ClassificationID    uuid.UUID  `json:"classification_id"`
	SubclassificationID *uuid.UUID `json:"subclassification_id,omitempty"`
}

// BatchCompletedPayload carries per-action counts of a finished batch.
type BatchCompletedPayload struct {
	BatchID uuid.UUID      `json:"batch_id"`
	Actions map[string]int `json:"actions"`
	NoOps   int            `json:"no_ops"`
}
