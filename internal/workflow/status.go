// Package workflow is the orchestration core: the case state machine, the
// transition guard, and the pending/delegate/commit-or-rollback protocol
// around generation agents.
package workflow

// Case statuses. Each drafting stage moves in_progress -> pending_review
// -> approved (or back out via rejection); the final gate is terminal.
const (
	StatusIntake                   = "intake"
	StatusDraftInProgress          = "draft_in_progress"
	StatusDraftPendingReview       = "draft_pending_review"
	StatusDraftApproved            = "draft_approved"
	StatusDraftRejected            = "draft_rejected"
	StatusDesignInProgress         = "design_in_progress"
	StatusDesignPendingReview      = "design_pending_review"
	StatusDesignApproved           = "design_approved"
	StatusDesignRejected           = "design_rejected"
	StatusEffortInProgress         = "effort_in_progress"
	StatusEffortPendingReview      = "effort_pending_review"
	StatusEffortApproved           = "effort_approved"
	StatusCostInProgress           = "cost_in_progress"
	StatusCostPendingReview        = "cost_pending_review"
	StatusCostApproved             = "cost_approved"
	StatusValueInProgress          = "value_in_progress"
	StatusValuePendingReview       = "value_pending_review"
	StatusValueApproved            = "value_approved"
	StatusFinancialSummaryComplete = "financial_summary_complete"
	StatusPendingFinalApproval     = "pending_final_approval"
	StatusFinalApproved            = "final_approved"
	StatusFinalRejected            = "final_rejected"
)

// Statuses lists every legal case status.
var Statuses = []string{
	StatusIntake,
	StatusDraftInProgress,
	StatusDraftPendingReview,
	StatusDraftApproved,
	StatusDraftRejected,
	StatusDesignInProgress,
	StatusDesignPendingReview,
	StatusDesignApproved,
	StatusDesignRejected,
	StatusEffortInProgress,
	StatusEffortPendingReview,
	StatusEffortApproved,
	StatusCostInProgress,
	StatusCostPendingReview,
	StatusCostApproved,
	StatusValueInProgress,
	StatusValuePendingReview,
	StatusValueApproved,
	StatusFinancialSummaryComplete,
	StatusPendingFinalApproval,
	StatusFinalApproved,
	StatusFinalRejected,
}

var inProgress = map[string]bool{
	StatusDraftInProgress:  true,
	StatusDesignInProgress: true,
	StatusEffortInProgress: true,
	StatusCostInProgress:   true,
	StatusValueInProgress:  true,
}

// IsInProgress reports whether a status marks an outstanding agent call.
func IsInProgress(status string) bool {
	return inProgress[status]
}

// IsTerminal reports whether a status has no outgoing transitions.
func IsTerminal(status string) bool {
	return status == StatusFinalApproved || status == StatusFinalRejected
}

// KnownStatus reports whether a status belongs to the state machine.
func KnownStatus(status string) bool {
	for _, s := range Statuses {
		if s == status {
			return true
		}
	}
	return false
}
