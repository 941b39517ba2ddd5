package dto

import (
	"time"

	"github.com/spec-kit/portfolio-service/internal/domain"
)

// BatchSummaryResponse is a stored batch outcome.
type BatchSummaryResponse struct {
	ID                string              `json:"id"`
	RequestedByID     string              `json:"requested_by_id"`
	DestinationUserID string              `json:"destination_user_id"`
	Requested         int                 `json:"requested"`
	Matched           int                 `json:"matched"`
	Modified          int                 `json:"modified"`
	Overwritten       int                 `json:"overwritten"`
	Missing           []string            `json:"missing"`
	Conflicted        []string            `json:"conflicted"`
	Options           domain.BatchOptions `json:"options"`
	CreatedAt         time.Time           `json:"created_at"`
}

// AuditEntryResponse is one identifier's outcome inside a batch.
type AuditEntryResponse struct {
	ID           string    `json:"id"`
	EntityRef    string    `json:"entity_ref"`
	EntityID     *string   `json:"entity_id"`
	Action       string    `json:"action"`
	PrevOwnerID  *string   `json:"prev_owner_id"`
	NewOwnerID   *string   `json:"new_owner_id"`
	AssignedByID string    `json:"assigned_by_id"`
	CreatedAt    time.Time `json:"created_at"`
}

// BatchDetailResponse answers GET /batches/:id.
type BatchDetailResponse struct {
	Summary BatchSummaryResponse            `json:"summary"`
	Entries map[string][]AuditEntryResponse `json:"entries"`
}
