package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/spec-kit/portfolio-service/internal/api/dto"
	"github.com/spec-kit/portfolio-service/internal/auth"
	"github.com/spec-kit/portfolio-service/internal/domain"
	apperrors "github.com/spec-kit/portfolio-service/pkg/util/errorutil"
)

func currentUser(c *fiber.Ctx) (*domain.User, error) {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return nil, apperrors.NewUnauthorized("user required")
	}
	return principal.User, nil
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed < 0 {
		return def
	}
	return parsed
}

func parseUUIDParam(c *fiber.Ctx, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params(name))
	if err != nil || id == uuid.Nil {
		return uuid.Nil, apperrors.NewValidationError("invalid "+name, map[string]any{name: c.Params(name)})
	}
	return id, nil
}

func parseOptionalUUID(val *string) *uuid.UUID {
	if val == nil || *val == "" {
		return nil
	}
	id, err := uuid.Parse(*val)
	if err != nil {
		return nil
	}
	return &id
}

func uuidString(id *uuid.UUID) *string {
	if id == nil {
		return nil
	}
	s := id.String()
	return &s
}

func entityResponse(entity *domain.Entity) dto.EntityResponse {
	return dto.EntityResponse{
		ID:           entity.ID.String(),
		TaxID:        entity.TaxID,
		BusinessName: entity.BusinessName,
		TradeName:    entity.TradeName,
	}
}

func classificationResponse(record *domain.AssignmentRecord) *dto.ClassificationResponse {
	c := record.Classification()
	if c == nil {
		return nil
	}
	return &dto.ClassificationResponse{
		ClassificationID:    c.ClassificationID.String(),
		SubclassificationID: uuidString(c.SubclassificationID),
		Note:                c.Note,
		ClassifiedAt:        c.ClassifiedAt,
		ClassifiedByID:      c.ClassifiedByID.String(),
	}
}

func recordResponse(record *domain.AssignmentRecord) dto.AssignmentRecordResponse {
	return dto.AssignmentRecordResponse{
		ID:             record.ID,
		EntityID:       record.EntityID.String(),
		OwnerID:        record.OwnerID.String(),
		AssignedByID:   record.AssignedByID.String(),
		AssignedAt:     record.AssignedAt,
		ReleasedAt:     record.ReleasedAt,
		PrevRecordID:   record.PrevRecordID,
		BatchID:        uuidString(record.BatchID),
		Classification: classificationResponse(record),
	}
}

func userSummary(user *domain.User) dto.UserSummary {
	return dto.UserSummary{
		ID:     user.ID.String(),
		Name:   user.Name,
		Email:  user.Email,
		Role:   string(user.Role),
		TeamID: uuidString(user.TeamID),
	}
}

func batchSummaryResponse(summary *domain.BatchSummary) dto.BatchSummaryResponse {
	return dto.BatchSummaryResponse{
		ID:                summary.ID.String(),
		RequestedByID:     summary.RequestedByID.String(),
		DestinationUserID: summary.DestinationUserID.String(),
		Requested:         summary.Requested,
		Matched:           summary.Matched,
		Modified:          summary.Modified,
		Overwritten:       summary.Overwritten,
		Missing:           nonNil(summary.Missing),
		Conflicted:        nonNil(summary.Conflicted),
		Options:           summary.Options,
		CreatedAt:         summary.CreatedAt,
	}
}

func auditEntryResponse(entry *domain.AuditLogEntry) dto.AuditEntryResponse {
	return dto.AuditEntryResponse{
		ID:           entry.ID.String(),
		EntityRef:    entry.EntityRef,
		EntityID:     uuidString(entry.EntityID),
		Action:       string(entry.Action),
		PrevOwnerID:  uuidString(entry.PrevOwnerID),
		NewOwnerID:   uuidString(entry.NewOwnerID),
		AssignedByID: entry.AssignedByID.String(),
		CreatedAt:    entry.CreatedAt,
	}
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
