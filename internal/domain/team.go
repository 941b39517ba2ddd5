package domain

import (
	"time"

	"github.com/google/uuid"
)

// Team groups commercial users under an optional supervisor.
type Team struct {
	ID            uuid.UUID
	Name          string
	SupervisorID  *uuid.UUID
	MemberUserIDs []uuid.UUID
	IsActive      bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
