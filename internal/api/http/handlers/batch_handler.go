package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/portfolio-service/internal/api/dto"
	"github.com/spec-kit/portfolio-service/internal/domain"
	"github.com/spec-kit/portfolio-service/internal/service"
)

// BatchHandler exposes the bulk assignment audit trail.
type BatchHandler struct {
	audit *service.AuditService
}

// NewBatchHandler constructs handler.
func NewBatchHandler(audit *service.AuditService) *BatchHandler {
	return &BatchHandler{audit: audit}
}

// List GET /batches?skip=&limit=.
func (h *BatchHandler) List(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	batches, err := h.audit.ListBatches(c.UserContext(), user, parseInt(c.Query("skip"), 0), parseInt(c.Query("limit"), 0))
	if err != nil {
		return err
	}
	items := make([]dto.BatchSummaryResponse, 0, len(batches))
	for i := range batches {
		items = append(items, batchSummaryResponse(&batches[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// Detail GET /batches/:id.
func (h *BatchHandler) Detail(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	batchID, err := parseUUIDParam(c, "id")
	if err != nil {
		return err
	}
	detail, err := h.audit.BatchDetail(c.UserContext(), user, batchID)
	if err != nil {
		return err
	}

	entries := make(map[string][]dto.AuditEntryResponse, len(detail.Entries))
	for _, action := range domain.AuditActions {
		group := detail.Entries[action]
		items := make([]dto.AuditEntryResponse, 0, len(group))
		for i := range group {
			items = append(items, auditEntryResponse(&group[i]))
		}
		entries[string(action)] = items
	}
	return c.JSON(fiber.Map{"data": dto.BatchDetailResponse{
		Summary: batchSummaryResponse(&detail.Summary),
		Entries: entries,
	}})
}
