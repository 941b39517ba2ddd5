package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotAssigned means the entity has no ledger record yet. It is a valid state.
	ErrNotAssigned = errors.New("entity not assigned")
	// ErrLedgerConflict means another writer appended to the entity's ledger first.
	ErrLedgerConflict = errors.New("ledger conflict")
)

// Classification is the tipification attached by the current owner.
type Classification struct {
	ClassificationID    uuid.UUID
	SubclassificationID *uuid.UUID
	Note                *string
	ClassifiedAt        time.Time
	ClassifiedByID      uuid.UUID
}

// AssignmentRecord is one ownership period in the append-only ledger.
type AssignmentRecord struct {
	ID                  int64
	EntityID            uuid.UUID
	OwnerID             uuid.UUID
	AssignedByID        uuid.UUID
	AssignedAt          time.Time
	ReleasedAt          *time.Time
	PrevRecordID        *int64
	BatchID             *uuid.UUID
	ClassificationID    *uuid.UUID
	SubclassificationID *uuid.UUID
	ClassificationNote  *string
	ClassifiedAt        *time.Time
	ClassifiedByID      *uuid.UUID
}

// IsClassified reports whether classification fields are present.
func (r *AssignmentRecord) IsClassified() bool {
	return r != nil && r.ClassificationID != nil
}

// Classification returns the attached classification, if any.
func (r *AssignmentRecord) Classification() *Classification {
	if !r.IsClassified() || r.ClassifiedAt == nil || r.ClassifiedByID == nil {
		return nil
	}
	return &Classification{
		ClassificationID:    *r.ClassificationID,
		SubclassificationID: r.SubclassificationID,
		Note:                r.ClassificationNote,
		ClassifiedAt:        *r.ClassifiedAt,
		ClassifiedByID:      *r.ClassifiedByID,
	}
}

// ApplyClassification sets every classification field from c.
func (r *AssignmentRecord) ApplyClassification(c *Classification) {
	if c == nil {
		r.ClearClassification()
		return
	}
	classifiedAt := c.ClassifiedAt
	classifiedBy := c.ClassifiedByID
	classificationID := c.ClassificationID
	r.ClassificationID = &classificationID
	r.SubclassificationID = c.SubclassificationID
	r.ClassificationNote = c.Note
	r.ClassifiedAt = &classifiedAt
	r.ClassifiedByID = &classifiedBy
}

// ClearClassification resets the work state of the record.
func (r *AssignmentRecord) ClearClassification() {
	r.ClassificationID = nil
	r.SubclassificationID = nil
	r.ClassificationNote = nil
	r.ClassifiedAt = nil
	r.ClassifiedByID = nil
}

// CopyClassificationFrom carries other's classification fields over unchanged.
func (r *AssignmentRecord) CopyClassificationFrom(other *AssignmentRecord) {
	if other == nil {
		r.ClearClassification()
		return
	}
	r.ClassificationID = other.ClassificationID
	r.SubclassificationID = other.SubclassificationID
	r.ClassificationNote = other.ClassificationNote
	r.ClassifiedAt = other.ClassifiedAt
	r.ClassifiedByID = other.ClassifiedByID
}

// NewerThan orders records by (AssignedAt, ID), the ledger's definition of recency.
func (r *AssignmentRecord) NewerThan(other *AssignmentRecord) bool {
	if other == nil {
		return true
	}
	if !r.AssignedAt.Equal(other.AssignedAt) {
		return r.AssignedAt.After(other.AssignedAt)
	}
	return r.ID > other.ID
}

// Latest picks the current record out of an entity's ledger.
func Latest(records []AssignmentRecord) *AssignmentRecord {
	var current *AssignmentRecord
	for i := range records {
		if records[i].NewerThan(current) {
			current = &records[i]
		}
	}
	return current
}

// OwnedEntity is the portfolio projection: an entity with its current record.
type OwnedEntity struct {
	Entity Entity
	Record AssignmentRecord
}
