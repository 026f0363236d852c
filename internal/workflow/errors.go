package workflow

import (
	"fmt"
	"strings"
)

// NotFoundError reports a case id absent from the store.
type NotFoundError struct {
	CaseID string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("case %s not found", e.CaseID)
}

// InvalidStateError reports a guard denial: the action's required status
// did not match the case's actual status. Nothing was written.
type InvalidStateError struct {
	Action   string
	Actual   string
	Expected []string
}

func (e InvalidStateError) Error() string {
	return fmt.Sprintf("%s requires status %s, case is %s", e.Action, strings.Join(e.Expected, " or "), e.Actual)
}

// MissingArtifactError reports an absent upstream stage output that the
// case's status implies should exist. This is a data-integrity signal,
// not a normal business outcome.
type MissingArtifactError struct {
	Stage  string
	Status string
}

func (e MissingArtifactError) Error() string {
	return fmt.Sprintf("stage output %q missing despite status %s", e.Stage, e.Status)
}

// AgentFailureError reports a generation agent error or timeout. The
// rollback write already ran; the case is back in its prior status.
type AgentFailureError struct {
	Stage   string
	Message string
}

func (e AgentFailureError) Error() string {
	return fmt.Sprintf("%s generation failed: %s", e.Stage, e.Message)
}

// ConflictError reports a version mismatch on a commit write: another
// writer updated the case between our read and write.
type ConflictError struct {
	CaseID string
}

func (e ConflictError) Error() string {
	return fmt.Sprintf("case %s was modified concurrently; re-read and retry", e.CaseID)
}

// StoreFailureError reports a failed store read or write. When Rollback
// is set the failure hit the rollback write itself and the case is left
// in_progress, requiring manual reconciliation.
type StoreFailureError struct {
	Op       string
	Rollback bool
	Err      error
}

func (e StoreFailureError) Error() string {
	if e.Rollback {
		return fmt.Sprintf("store failure during rollback (%s): %v; case left in_progress, manual reconciliation required", e.Op, e.Err)
	}
	return fmt.Sprintf("store failure (%s): %v", e.Op, e.Err)
}

func (e StoreFailureError) Unwrap() error { return e.Err }

// UnknownActionError reports an action name with no registered handler.
type UnknownActionError struct {
	Action string
}

func (e UnknownActionError) Error() string {
	return fmt.Sprintf("unknown action %q", e.Action)
}

// ForbiddenError reports a caller whose roles do not satisfy a review
// gate.
type ForbiddenError struct {
	Action string
	Gate   string
	Roles  []string
}

func (e ForbiddenError) Error() string {
	return fmt.Sprintf("%s requires one of roles %s", e.Action, strings.Join(e.Roles, ", "))
}
