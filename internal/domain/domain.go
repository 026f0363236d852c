package domain

import "encoding/json"

// Case is the aggregate tracking one business-case workflow instance.
// It is read and written as a whole document; History is append-only.
type Case struct {
	ID               string                     `json:"id"`
	OwnerID          string                     `json:"owner_id"`
	Title            string                     `json:"title"`
	ProblemStatement string                     `json:"problem_statement,omitempty"`
	Status           string                     `json:"status"`
	History          []Event                    `json:"history"`
	StageOutputs     map[string]json.RawMessage `json:"stage_outputs,omitempty"`
	Version          int64                      `json:"version"`
	CreatedAt        string                     `json:"created_at" format:"date-time"`
	UpdatedAt        string                     `json:"updated_at" format:"date-time"`
}

// Event is one immutable audit entry in a case's history.
type Event struct {
	TS      string `json:"ts" format:"date-time"`
	Source  string `json:"source"`
	Kind    string `json:"kind" enum:"status_changed,generation_succeeded,generation_failed,approval,rejection"`
	Content string `json:"content"`
}

// Event kinds.
const (
	EventStatusChanged       = "status_changed"
	EventGenerationSucceeded = "generation_succeeded"
	EventGenerationFailed    = "generation_failed"
	EventApproval            = "approval"
	EventRejection           = "rejection"
)

// SourceOrchestrator marks events written by the workflow core itself,
// as opposed to a human actor id.
const SourceOrchestrator = "orchestrator"

// AuditEntry is one row of the global audit mirror (events table).
// The case history stays authoritative; this is the queryable copy.
type AuditEntry struct {
	ID      int64  `json:"id"`
	TS      string `json:"ts" format:"date-time"`
	CaseID  string `json:"case_id"`
	Kind    string `json:"kind"`
	Source  string `json:"source"`
	Content string `json:"content"`
	Status  string `json:"status,omitempty"`
}

// APIKey is a hashed credential resolving to an actor id and its roles.
type APIKey struct {
	ID        string   `json:"id"`
	ActorID   string   `json:"actor_id"`
	Name      string   `json:"name,omitempty"`
	Roles     []string `json:"roles,omitempty"`
	KeyHash   string   `json:"key_hash"`
	CreatedAt string   `json:"created_at" format:"date-time"`
}
