package workflow

// Action names accepted by the dispatch router. ActionCaseCreate is the
// only one that does not address an existing case.
const (
	ActionCaseCreate      = "case.create"
	ActionDraftGenerate   = "draft.generate"
	ActionDraftApprove    = "draft.approve"
	ActionDraftReject     = "draft.reject"
	ActionDesignGenerate  = "design.generate"
	ActionDesignApprove   = "design.approve"
	ActionDesignReject    = "design.reject"
	ActionEffortGenerate  = "effort.generate"
	ActionEffortApprove   = "effort.approve"
	ActionEffortReject    = "effort.reject"
	ActionCostGenerate    = "cost.generate"
	ActionCostApprove     = "cost.approve"
	ActionCostReject      = "cost.reject"
	ActionValueGenerate   = "value.generate"
	ActionValueApprove    = "value.approve"
	ActionValueReject     = "value.reject"
	ActionSummaryFinalize = "summary.finalize"
	ActionFinalSubmit     = "final.submit"
	ActionFinalApprove    = "final.approve"
	ActionFinalReject     = "final.reject"
)

// Transition is one edge family of the state graph: the statuses an
// action accepts and where it lands. Generation actions carry the
// intermediate pending status and the upstream artifacts they consume;
// approvals may chain the next stage's generation.
type Transition struct {
	Action string
	// From lists the statuses the action requires; anything else is denied.
	From []string
	// Pending is the transient in_progress status written before the
	// agent call. Empty for pure human-decision actions.
	Pending string
	// Commit is the status written on success.
	Commit string
	// Rollback targets are not listed: a failed generation restores the
	// exact status read before the pending write.
	Stage string
	// Gate names the review gate whose roles may perform the action.
	// Empty means any authenticated caller with access to the case.
	Gate string
	// Upstream lists stage_outputs keys that must exist before the
	// action may run.
	Upstream []string
	// Chain is the action triggered automatically after a committed
	// approval; the approval of stage N starts stage N+1.
	Chain string
	// Combine marks the financial-summary computation, which produces
	// its artifact from upstream outputs without an agent call.
	Combine bool
}

// transitions is the full state graph as data: from-status x action ->
// to-status lives here and nowhere else.
var transitions = map[string]Transition{
	ActionDraftGenerate: {
		Action:  ActionDraftGenerate,
		From:    []string{StatusIntake, StatusDraftRejected},
		Pending: StatusDraftInProgress,
		Commit:  StatusDraftPendingReview,
		Stage:   "draft",
	},
	ActionDraftApprove: {
		Action: ActionDraftApprove,
		From:   []string{StatusDraftPendingReview},
		Commit: StatusDraftApproved,
		Stage:  "draft",
		Gate:   "draft",
		Chain:  ActionDesignGenerate,
	},
	ActionDraftReject: {
		Action: ActionDraftReject,
		From:   []string{StatusDraftPendingReview},
		Commit: StatusDraftRejected,
		Stage:  "draft",
		Gate:   "draft",
	},
	ActionDesignGenerate: {
		Action:   ActionDesignGenerate,
		From:     []string{StatusDraftApproved, StatusDesignRejected},
		Pending:  StatusDesignInProgress,
		Commit:   StatusDesignPendingReview,
		Stage:    "design",
		Upstream: []string{"draft"},
	},
	ActionDesignApprove: {
		Action: ActionDesignApprove,
		From:   []string{StatusDesignPendingReview},
		Commit: StatusDesignApproved,
		Stage:  "design",
		Gate:   "design",
		Chain:  ActionEffortGenerate,
	},
	ActionDesignReject: {
		Action: ActionDesignReject,
		From:   []string{StatusDesignPendingReview},
		Commit: StatusDesignRejected,
		Stage:  "design",
		Gate:   "design",
	},
	ActionEffortGenerate: {
		Action:   ActionEffortGenerate,
		From:     []string{StatusDesignApproved},
		Pending:  StatusEffortInProgress,
		Commit:   StatusEffortPendingReview,
		Stage:    "effort",
		Upstream: []string{"design"},
	},
	ActionEffortApprove: {
		Action: ActionEffortApprove,
		From:   []string{StatusEffortPendingReview},
		Commit: StatusEffortApproved,
		Stage:  "effort",
		Gate:   "effort",
		Chain:  ActionCostGenerate,
	},
	// The state machine has no effort_rejected: rejecting an estimate
	// returns the case to design_approved so estimation can be re-run.
	ActionEffortReject: {
		Action: ActionEffortReject,
		From:   []string{StatusEffortPendingReview},
		Commit: StatusDesignApproved,
		Stage:  "effort",
		Gate:   "effort",
	},
	ActionCostGenerate: {
		Action:   ActionCostGenerate,
		From:     []string{StatusEffortApproved},
		Pending:  StatusCostInProgress,
		Commit:   StatusCostPendingReview,
		Stage:    "cost",
		Upstream: []string{"effort"},
	},
	ActionCostApprove: {
		Action: ActionCostApprove,
		From:   []string{StatusCostPendingReview},
		Commit: StatusCostApproved,
		Stage:  "cost",
		Gate:   "cost",
		Chain:  ActionValueGenerate,
	},
	ActionCostReject: {
		Action: ActionCostReject,
		From:   []string{StatusCostPendingReview},
		Commit: StatusEffortApproved,
		Stage:  "cost",
		Gate:   "cost",
	},
	ActionValueGenerate: {
		Action:   ActionValueGenerate,
		From:     []string{StatusCostApproved},
		Pending:  StatusValueInProgress,
		Commit:   StatusValuePendingReview,
		Stage:    "value",
		Upstream: []string{"cost"},
	},
	ActionValueApprove: {
		Action: ActionValueApprove,
		From:   []string{StatusValuePendingReview},
		Commit: StatusValueApproved,
		Stage:  "value",
		Gate:   "value",
		Chain:  ActionSummaryFinalize,
	},
	ActionValueReject: {
		Action: ActionValueReject,
		From:   []string{StatusValuePendingReview},
		Commit: StatusCostApproved,
		Stage:  "value",
		Gate:   "value",
	},
	ActionSummaryFinalize: {
		Action:   ActionSummaryFinalize,
		From:     []string{StatusValueApproved},
		Commit:   StatusFinancialSummaryComplete,
		Stage:    "financial_summary",
		Upstream: []string{"effort", "cost", "value"},
		Combine:  true,
	},
	ActionFinalSubmit: {
		Action: ActionFinalSubmit,
		From:   []string{StatusFinancialSummaryComplete},
		Commit: StatusPendingFinalApproval,
		Stage:  "final",
	},
	ActionFinalApprove: {
		Action: ActionFinalApprove,
		From:   []string{StatusPendingFinalApproval},
		Commit: StatusFinalApproved,
		Stage:  "final",
		Gate:   "final",
	},
	ActionFinalReject: {
		Action: ActionFinalReject,
		From:   []string{StatusPendingFinalApproval},
		Commit: StatusFinalRejected,
		Stage:  "final",
		Gate:   "final",
	},
}

// Actions lists every dispatchable action name.
func Actions() []string {
	names := []string{ActionCaseCreate}
	for name := range transitions {
		names = append(names, name)
	}
	return names
}

// Decision is the guard verdict for one (status, action) pair.
type Decision struct {
	Allowed  bool
	Required []string
	Reason   string
}

// Allow is the transition guard: a pure precondition check with no side
// effects. Denials always name the actual and expected statuses.
func Allow(current, action string) Decision {
	t, ok := transitions[action]
	if !ok {
		return Decision{Reason: "unknown action " + action}
	}
	for _, from := range t.From {
		if current == from {
			return Decision{Allowed: true, Required: t.From}
		}
	}
	return Decision{
		Required: t.From,
		Reason:   denialReason(current, t),
	}
}

func denialReason(current string, t Transition) string {
	expected := t.From[0]
	for _, s := range t.From[1:] {
		expected += " or " + s
	}
	if IsTerminal(current) {
		return "case is " + current + " (terminal); " + t.Action + " requires " + expected
	}
	return t.Action + " requires status " + expected + ", case is " + current
}
