package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/spec-kit/portfolio-service/internal/api/dto"
	"github.com/spec-kit/portfolio-service/internal/domain"
	"github.com/spec-kit/portfolio-service/internal/service"
)

// OwnershipHandler serves the read side: owners, history, portfolios and scope.
type OwnershipHandler struct {
	ownership *service.OwnershipService
	scopes    *service.ScopeService
}

// NewOwnershipHandler constructs handler.
func NewOwnershipHandler(ownership *service.OwnershipService, scopes *service.ScopeService) *OwnershipHandler {
	return &OwnershipHandler{ownership: ownership, scopes: scopes}
}

// Owner GET /entities/:id/owner. :id is a tax id or an entity uuid.
func (h *OwnershipHandler) Owner(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	entity, record, err := h.ownership.OwnerOf(c.UserContext(), user, c.Params("id"))
	if err != nil {
		return err
	}
	resp := dto.OwnerResponse{Entity: entityResponse(entity)}
	if record != nil {
		r := recordResponse(record)
		resp.Assigned = true
		resp.Record = &r
	}
	return c.JSON(fiber.Map{"data": resp})
}

// History GET /entities/:id/assignments.
func (h *OwnershipHandler) History(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	entity, records, err := h.ownership.History(c.UserContext(), user, c.Params("id"))
	if err != nil {
		return err
	}
	items := make([]dto.AssignmentRecordResponse, 0, len(records))
	for i := range records {
		items = append(items, recordResponse(&records[i]))
	}
	return c.JSON(fiber.Map{"data": dto.HistoryResponse{Entity: entityResponse(entity), Records: items}})
}

// MyPortfolio GET /portfolio.
func (h *OwnershipHandler) MyPortfolio(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	return h.portfolio(c, user, user.ID)
}

// UserPortfolio GET /users/:id/portfolio.
func (h *OwnershipHandler) UserPortfolio(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	ownerID, err := parseUUIDParam(c, "id")
	if err != nil {
		return err
	}
	return h.portfolio(c, user, ownerID)
}

func (h *OwnershipHandler) portfolio(c *fiber.Ctx, requester *domain.User, ownerID uuid.UUID) error {
	query := service.PortfolioQuery{UnclassifiedOnly: c.QueryBool("unclassified_only", false)}
	if search := strings.TrimSpace(c.Query("search")); search != "" {
		query.Search = &search
	}
	page := service.Page{
		Number: parseInt(c.Query("page"), 1),
		Size:   parseInt(c.Query("page_size"), 0),
	}

	result, err := h.ownership.ListOwnedBy(c.UserContext(), requester, ownerID, query, page)
	if err != nil {
		return err
	}
	items := make([]dto.PortfolioItem, 0, len(result.Items))
	for i := range result.Items {
		owned := &result.Items[i]
		items = append(items, dto.PortfolioItem{
			Entity:     entityResponse(&owned.Entity),
			RecordID:   owned.Record.ID,
			AssignedAt: owned.Record.AssignedAt,
			Classified: owned.Record.IsClassified(),
			Details:    classificationResponse(&owned.Record),
		})
	}
	return c.JSON(fiber.Map{"data": dto.PortfolioResponse{
		OwnerID:  result.OwnerID.String(),
		Items:    items,
		Total:    result.Total,
		Page:     result.Page,
		PageSize: result.PageSize,
	}})
}

// Scope GET /scope.
func (h *OwnershipHandler) Scope(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	users, all, err := h.scopes.VisibleUsers(c.UserContext(), user)
	if err != nil {
		return err
	}
	resp := dto.ScopeResponse{All: all, Users: make([]dto.UserSummary, 0, len(users))}
	for i := range users {
		resp.Users = append(resp.Users, userSummary(&users[i]))
	}
	return c.JSON(fiber.Map{"data": resp})
}
