package server

import (
	"encoding/json"

	"caseline/internal/domain"
)

type CreateCaseRequest struct {
	ID               *string `json:"id,omitempty"`
	Title            string  `json:"title"`
	ProblemStatement *string `json:"problem_statement,omitempty"`
}

type CaseResponse struct {
	ID               string                     `json:"id"`
	OwnerID          string                     `json:"owner_id"`
	Title            string                     `json:"title"`
	ProblemStatement string                     `json:"problem_statement,omitempty"`
	Status           string                     `json:"status"`
	Version          int64                      `json:"version"`
	StageOutputs     map[string]json.RawMessage `json:"stage_outputs,omitempty"`
	CreatedAt        string                     `json:"created_at"`
	UpdatedAt        string                     `json:"updated_at"`
}

func caseResponse(c domain.Case) CaseResponse {
	return CaseResponse{
		ID:               c.ID,
		OwnerID:          c.OwnerID,
		Title:            c.Title,
		ProblemStatement: c.ProblemStatement,
		Status:           c.Status,
		Version:          c.Version,
		StageOutputs:     c.StageOutputs,
		CreatedAt:        c.CreatedAt,
		UpdatedAt:        c.UpdatedAt,
	}
}

func mapCases(items []domain.Case) []CaseResponse {
	res := make([]CaseResponse, 0, len(items))
	for _, c := range items {
		res = append(res, caseResponse(c))
	}
	return res
}

type CaseListResponse struct {
	Items []CaseResponse `json:"items"`
	// NextCursorCreatedAt / NextCursorID resume listing after the last
	// returned case; empty when the page was not full.
	NextCursorCreatedAt string `json:"next_cursor_created_at,omitempty"`
	NextCursorID        string `json:"next_cursor_id,omitempty"`
}

type DispatchResponse struct {
	Status    string `json:"status" enum:"success,error"`
	Message   string `json:"message"`
	CaseID    string `json:"case_id,omitempty"`
	NewStatus string `json:"new_status,omitempty"`
}

type HistoryResponse struct {
	CaseID string         `json:"case_id"`
	Status string         `json:"status"`
	Events []domain.Event `json:"events"`
}

type ActionsResponse struct {
	Actions []string `json:"actions"`
}

type domainAuditEntry = domain.AuditEntry

func wrapEntries(entries []domainAuditEntry) *struct {
	Body []domainAuditEntry `json:"body"`
} {
	if entries == nil {
		entries = []domainAuditEntry{}
	}
	return &struct {
		Body []domainAuditEntry `json:"body"`
	}{Body: entries}
}
