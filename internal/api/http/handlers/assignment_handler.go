package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/spec-kit/portfolio-service/internal/api/dto"
	"github.com/spec-kit/portfolio-service/internal/service"
	apperrors "github.com/spec-kit/portfolio-service/pkg/util/errorutil"
)

// AssignmentHandler serves the two ledger write paths.
type AssignmentHandler struct {
	assignments    *service.AssignmentService
	classification *service.ClassificationService
}

// NewAssignmentHandler constructs handler.
func NewAssignmentHandler(assignments *service.AssignmentService, classification *service.ClassificationService) *AssignmentHandler {
	return &AssignmentHandler{assignments: assignments, classification: classification}
}

// BulkAssign POST /assignments/bulk. Per-item failures are reported in the body with 200.
func (h *AssignmentHandler) BulkAssign(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	var req dto.BulkAssignRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := dto.Validate(&req); err != nil {
		return err
	}

	summary, err := h.assignments.Assign(c.UserContext(), user, service.AssignRequest{
		Identifiers:          req.Identifiers,
		DestinationUserID:    req.DestinationUserID,
		Note:                 req.Note,
		Overwrite:            req.Overwrite,
		IgnoreClassification: req.IgnoreClassification,
		ClassificationID:     parseOptionalUUID(req.ClassificationID),
		SubclassificationID:  parseOptionalUUID(req.SubclassificationID),
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.BulkAssignResponse{
		BatchID:     summary.ID.String(),
		Requested:   summary.Requested,
		Matched:     summary.Matched,
		Modified:    summary.Modified,
		Overwritten: summary.Overwritten,
		Missing:     nonNil(summary.Missing),
		Conflicted:  nonNil(summary.Conflicted),
	}})
}

// Classify POST /classifications.
func (h *AssignmentHandler) Classify(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	var req dto.ClassifyRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := dto.Validate(&req); err != nil {
		return err
	}

	classificationID, err := uuid.Parse(req.ClassificationID)
	if err != nil {
		return apperrors.NewValidationError("invalid classification_id", nil)
	}

	record, err := h.classification.Classify(c.UserContext(), user, service.ClassifyRequest{
		EntityRef:           req.EntityID,
		ClassificationID:    classificationID,
		SubclassificationID: parseOptionalUUID(req.SubclassificationID),
		Note:                req.Note,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"data": recordResponse(record)})
}
