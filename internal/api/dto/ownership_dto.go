package dto

import "time"

// EntityResponse carries the directory display fields of an entity.
type EntityResponse struct {
	ID           string `json:"id"`
	TaxID        string `json:"tax_id"`
	BusinessName string `json:"business_name"`
	TradeName    string `json:"trade_name,omitempty"`
}

// OwnerResponse answers GET /entities/:id/owner.
type OwnerResponse struct {
	Entity   EntityResponse            `json:"entity"`
	Assigned bool                      `json:"assigned"`
	Record   *AssignmentRecordResponse `json:"record"`
}

// HistoryResponse answers GET /entities/:id/assignments.
type HistoryResponse struct {
	Entity  EntityResponse             `json:"entity"`
	Records []AssignmentRecordResponse `json:"records"`
}

// PortfolioItem is one owned entity.
type PortfolioItem struct {
	Entity     EntityResponse          `json:"entity"`
	RecordID   int64                   `json:"record_id"`
	AssignedAt time.Time               `json:"assigned_at"`
	Classified bool                    `json:"classified"`
	Details    *ClassificationResponse `json:"classification"`
}

// PortfolioResponse is one page of a portfolio.
type PortfolioResponse struct {
	OwnerID  string          `json:"owner_id"`
	Items    []PortfolioItem `json:"items"`
	Total    int             `json:"total"`
	Page     int             `json:"page"`
	PageSize int             `json:"page_size"`
}

// UserSummary is a user as exposed through scope listings.
type UserSummary struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Email  string  `json:"email"`
	Role   string  `json:"role"`
	TeamID *string `json:"team_id"`
}

// ScopeResponse answers GET /scope. Users is empty when All is true.
type ScopeResponse struct {
	All   bool          `json:"all"`
	Users []UserSummary `json:"users"`
}
