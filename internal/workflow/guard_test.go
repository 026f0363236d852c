package workflow

import (
	"strings"
	"testing"
)

// Every (status, action) pair must produce a verdict; the guard is total.
func TestAllowTotality(t *testing.T) {
	for _, status := range Statuses {
		for action, tr := range transitions {
			d := Allow(status, action)
			allowed := false
			for _, from := range tr.From {
				if from == status {
					allowed = true
				}
			}
			if d.Allowed != allowed {
				t.Errorf("Allow(%s, %s) = %v, want %v", status, action, d.Allowed, allowed)
			}
			if !d.Allowed && d.Reason == "" {
				t.Errorf("Allow(%s, %s) denied without a reason", status, action)
			}
		}
	}
}

func TestAllowUnknownAction(t *testing.T) {
	d := Allow(StatusIntake, "case.frobnicate")
	if d.Allowed {
		t.Fatal("unknown action must be denied")
	}
	if !strings.Contains(d.Reason, "unknown action") {
		t.Fatalf("reason = %q", d.Reason)
	}
}

// Denials must name both the actual status and the required one.
func TestDenialNamesStatuses(t *testing.T) {
	d := Allow(StatusDraftInProgress, ActionEffortGenerate)
	if d.Allowed {
		t.Fatal("effort.generate must be denied while drafting is in progress")
	}
	if !strings.Contains(d.Reason, StatusDraftInProgress) {
		t.Errorf("reason %q does not name the actual status", d.Reason)
	}
	if !strings.Contains(d.Reason, StatusDesignApproved) {
		t.Errorf("reason %q does not name the required status", d.Reason)
	}
}

func TestTerminalStatusesHaveNoOutgoingEdges(t *testing.T) {
	for _, status := range []string{StatusFinalApproved, StatusFinalRejected} {
		for action := range transitions {
			if d := Allow(status, action); d.Allowed {
				t.Errorf("%s allowed from terminal status %s", action, status)
			}
		}
	}
}

func TestTransitionTargetsAreKnownStatuses(t *testing.T) {
	for action, tr := range transitions {
		if tr.Action != action {
			t.Errorf("transition %s carries action name %s", action, tr.Action)
		}
		for _, from := range tr.From {
			if !KnownStatus(from) {
				t.Errorf("%s: unknown from-status %s", action, from)
			}
		}
		if !KnownStatus(tr.Commit) {
			t.Errorf("%s: unknown commit status %s", action, tr.Commit)
		}
		if tr.Pending != "" && !IsInProgress(tr.Pending) {
			t.Errorf("%s: pending status %s is not an in_progress status", action, tr.Pending)
		}
	}
}

// Every status must be reachable from intake by following pending and
// commit edges; the graph has no orphans.
func TestEveryStatusReachableFromIntake(t *testing.T) {
	reached := map[string]bool{StatusIntake: true}
	for changed := true; changed; {
		changed = false
		for _, tr := range transitions {
			for _, from := range tr.From {
				if !reached[from] {
					continue
				}
				for _, to := range []string{tr.Pending, tr.Commit} {
					if to != "" && !reached[to] {
						reached[to] = true
						changed = true
					}
				}
			}
		}
	}
	for _, status := range Statuses {
		if !reached[status] {
			t.Errorf("status %s is unreachable from %s", status, StatusIntake)
		}
	}
}

func TestActionsIncludesCreate(t *testing.T) {
	names := Actions()
	if len(names) != len(transitions)+1 {
		t.Fatalf("Actions() returned %d names, want %d", len(names), len(transitions)+1)
	}
	found := false
	for _, n := range names {
		if n == ActionCaseCreate {
			found = true
		}
	}
	if !found {
		t.Fatal("Actions() missing case.create")
	}
}
