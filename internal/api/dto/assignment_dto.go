package dto

import "time"

// BulkAssignRequest payload for POST /assignments/bulk.
type BulkAssignRequest struct {
	Identifiers          []string `json:"identifiers" validate:"required,min=1"`
	DestinationUserID    string   `json:"destination_user_id" validate:"required"`
	Note                 *string  `json:"note" validate:"omitempty,max=2000"`
	Overwrite            *bool    `json:"overwrite"`
	IgnoreClassification *bool    `json:"ignore_classification"`
	ClassificationID     *string  `json:"classification_id" validate:"omitempty,uuid"`
	SubclassificationID  *string  `json:"subclassification_id" validate:"omitempty,uuid"`
}

// BulkAssignResponse is the itemized outcome of a batch.
type BulkAssignResponse struct {
	BatchID     string   `json:"batch_id"`
	Requested   int      `json:"requested"`
	Matched     int      `json:"matched"`
	Modified    int      `json:"modified"`
	Overwritten int      `json:"overwritten"`
	Missing     []string `json:"missing"`
	Conflicted  []string `json:"conflicted"`
}

// ClassifyRequest payload for POST /classifications.
type ClassifyRequest struct {
	EntityID            string  `json:"entity_id" validate:"required"`
	ClassificationID    string  `json:"classification_id" validate:"required,uuid"`
	SubclassificationID *string `json:"subclassification_id" validate:"omitempty,uuid"`
	Note                *string `json:"note" validate:"omitempty,max=2000"`
}

// ClassificationResponse is the classification attached to a record.
type ClassificationResponse struct {
	ClassificationID    string    `json:"classification_id"`
	SubclassificationID *string   `json:"subclassification_id"`
	Note                *string   `json:"note"`
	ClassifiedAt        time.Time `json:"classified_at"`
	ClassifiedByID      string    `json:"classified_by_id"`
}

// AssignmentRecordResponse is one ledger entry.
type AssignmentRecordResponse struct {
	ID             int64                   `json:"id"`
	EntityID       string                  `json:"entity_id"`
	OwnerID        string                  `json:"owner_id"`
	AssignedByID   string                  `json:"assigned_by_id"`
	AssignedAt     time.Time               `json:"assigned_at"`
	ReleasedAt     *time.Time              `json:"released_at"`
	PrevRecordID   *int64                  `json:"prev_record_id"`
	BatchID        *string                 `json:"batch_id"`
	Classification *ClassificationResponse `json:"classification"`
}
