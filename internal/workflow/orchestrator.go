package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"caseline/internal/agent"
	"caseline/internal/audit"
	"caseline/internal/config"
	"caseline/internal/domain"
	"caseline/internal/store"
)

// Orchestrator executes one transition end to end: load, guard, pending
// write, agent delegation, commit or rollback. It holds no per-case state
// between requests; the store is the single source of truth.
type Orchestrator struct {
	Store  store.Store
	Agents agent.Registry
	Audit  *audit.Writer
	Config *config.Config
	Logger *log.Logger
	Now    func() time.Time

	handlers map[string]handler
}

type handler func(ctx context.Context, req Request) (Result, error)

func New(st store.Store, agents agent.Registry, cfg *config.Config) *Orchestrator {
	o := &Orchestrator{
		Store:  st,
		Agents: agents,
		Config: cfg,
		Now:    time.Now,
	}
	o.handlers = map[string]handler{ActionCaseCreate: o.handleCreate}
	for name, t := range transitions {
		t := t
		switch {
		case t.Pending != "":
			o.handlers[name] = func(ctx context.Context, req Request) (Result, error) {
				return o.handleGenerate(ctx, t, req)
			}
		case t.Combine:
			o.handlers[name] = func(ctx context.Context, req Request) (Result, error) {
				return o.handleFinalize(ctx, t, req)
			}
		default:
			o.handlers[name] = func(ctx context.Context, req Request) (Result, error) {
				return o.handleDecision(ctx, t, req)
			}
		}
	}
	return o
}

// Request is one inbound transition request. CallerID and Roles arrive
// already resolved by the identity layer.
type Request struct {
	CaseID   string
	Action   string
	Payload  json.RawMessage
	CallerID string
	Roles    []string
}

// Result is the structured outcome returned to the dispatch boundary.
type Result struct {
	Status    string `json:"status" enum:"success,error"`
	Message   string `json:"message"`
	CaseID    string `json:"case_id,omitempty"`
	NewStatus string `json:"new_status,omitempty"`
}

// Dispatch routes an action name to its handler. Unknown names are
// rejected here, before any business logic runs. All failures come back
// as typed errors, never panics.
func (o *Orchestrator) Dispatch(ctx context.Context, req Request) (Result, error) {
	h, ok := o.handlers[req.Action]
	if !ok {
		return Result{}, UnknownActionError{Action: req.Action}
	}
	return h(ctx, req)
}

// CreatePayload is the case.create payload.
type CreatePayload struct {
	ID               string `json:"id,omitempty"`
	Title            string `json:"title"`
	ProblemStatement string `json:"problem_statement,omitempty"`
}

func (o *Orchestrator) handleCreate(ctx context.Context, req Request) (Result, error) {
	var p CreatePayload
	if len(req.Payload) > 0 {
		if err := json.Unmarshal(req.Payload, &p); err != nil {
			return Result{}, fmt.Errorf("invalid case.create payload: %w", err)
		}
	}
	if strings.TrimSpace(p.Title) == "" {
		return Result{}, errors.New("title is required")
	}
	if req.CallerID == "" {
		return Result{}, errors.New("caller id is required")
	}
	id := p.ID
	if id == "" {
		id = uuid.New().String()
	}
	ts := o.timestamp()
	c := domain.Case{
		ID:               id,
		OwnerID:          req.CallerID,
		Title:            p.Title,
		ProblemStatement: p.ProblemStatement,
		Status:           StatusIntake,
		CreatedAt:        ts,
		UpdatedAt:        ts,
	}
	o.appendEvent(&c, domain.Event{
		TS:      ts,
		Source:  req.CallerID,
		Kind:    domain.EventStatusChanged,
		Content: fmt.Sprintf("case created by %s", req.CallerID),
	})
	if err := o.Store.Insert(ctx, c); err != nil {
		return Result{}, StoreFailureError{Op: "insert", Err: err}
	}
	o.mirror(ctx, c.ID, c.Status, c.History[len(c.History)-1])
	return Result{Status: "success", Message: "case created", CaseID: c.ID, NewStatus: c.Status}, nil
}

// handleDecision commits a pure human decision: approve, reject or
// submit. One write, one event, no agent, no pending phase. Approvals
// then chain the next stage's generation.
func (o *Orchestrator) handleDecision(ctx context.Context, t Transition, req Request) (Result, error) {
	c, err := o.load(ctx, req.CaseID)
	if err != nil {
		return Result{}, err
	}
	if err := o.checkGate(t, req); err != nil {
		return Result{}, err
	}
	if d := Allow(c.Status, t.Action); !d.Allowed {
		return Result{}, InvalidStateError{Action: t.Action, Actual: c.Status, Expected: d.Required}
	}
	prior := c.Status
	ts := o.timestamp()
	c.Status = t.Commit
	c.UpdatedAt = ts
	ev := domain.Event{
		TS:      ts,
		Source:  req.CallerID,
		Kind:    decisionKind(t.Action),
		Content: decisionContent(t, prior, req.CallerID),
	}
	o.appendEvent(&c, ev)
	if err := o.commit(ctx, c); err != nil {
		return Result{}, err
	}
	o.mirror(ctx, c.ID, c.Status, ev)
	res := Result{Status: "success", Message: ev.Content, CaseID: c.ID, NewStatus: c.Status}
	if t.Chain == "" {
		return res, nil
	}
	// The committed approval stands even if the chained generation
	// fails; the failure rolls the case back to the approved status and
	// the caller can retry the generation on its own.
	chained, err := o.Dispatch(ctx, Request{
		CaseID:   c.ID,
		Action:   t.Chain,
		CallerID: req.CallerID,
		Roles:    req.Roles,
	})
	if err != nil {
		return res, err
	}
	return Result{
		Status:    "success",
		Message:   res.Message + "; " + chained.Message,
		CaseID:    c.ID,
		NewStatus: chained.NewStatus,
	}, nil
}

// handleGenerate runs the pending -> delegate -> commit-or-rollback
// protocol for one stage. The pending write lands before the agent call;
// every return path leaves the case out of the in_progress status.
func (o *Orchestrator) handleGenerate(ctx context.Context, t Transition, req Request) (Result, error) {
	c, err := o.load(ctx, req.CaseID)
	if err != nil {
		return Result{}, err
	}
	if err := o.checkGenerateAccess(t, c, req); err != nil {
		return Result{}, err
	}
	if d := Allow(c.Status, t.Action); !d.Allowed {
		return Result{}, InvalidStateError{Action: t.Action, Actual: c.Status, Expected: d.Required}
	}
	if missing := missingUpstream(c, t); missing != "" {
		return Result{}, MissingArtifactError{Stage: missing, Status: c.Status}
	}
	ag, ok := o.Agents.Lookup(t.Stage)
	if !ok {
		return Result{}, fmt.Errorf("no agent registered for stage %s", t.Stage)
	}

	// Optimistic pending write: parked in_progress before the slow call.
	// No event and no updated_at refresh yet; only committed outcomes
	// carry those.
	prior := c.Status
	priorVersion := c.Version
	c.Status = t.Pending
	if err := o.Store.Set(ctx, c, priorVersion); err != nil {
		return Result{}, o.writeError(err, c.ID, "pending write")
	}
	pendingVersion := priorVersion + 1

	out, agentErr := o.generate(ctx, ag, t, c)

	if agentErr != nil {
		// Rollback: restore the exact status read above, record the
		// failure, one write, no retries.
		ts := o.timestamp()
		c.Status = prior
		ev := domain.Event{
			TS:      ts,
			Source:  domain.SourceOrchestrator,
			Kind:    domain.EventGenerationFailed,
			Content: fmt.Sprintf("%s generation failed: %s", t.Stage, agentErr.Error()),
		}
		o.appendEvent(&c, ev)
		if err := o.Store.Set(ctx, c, pendingVersion); err != nil {
			if o.Logger != nil {
				o.Logger.Printf("case %s: rollback write failed after %s agent error: %v", c.ID, t.Stage, err)
			}
			return Result{}, StoreFailureError{Op: "rollback write", Rollback: true, Err: err}
		}
		o.mirror(ctx, c.ID, c.Status, ev)
		return Result{}, AgentFailureError{Stage: t.Stage, Message: agentErr.Error()}
	}

	ts := o.timestamp()
	c.Status = t.Commit
	c.UpdatedAt = ts
	if c.StageOutputs == nil {
		c.StageOutputs = map[string]json.RawMessage{}
	}
	c.StageOutputs[t.Stage] = out.Artifact
	ev := domain.Event{
		TS:      ts,
		Source:  domain.SourceOrchestrator,
		Kind:    domain.EventGenerationSucceeded,
		Content: fmt.Sprintf("%s generation succeeded, awaiting review", t.Stage),
	}
	o.appendEvent(&c, ev)
	if err := o.Store.Set(ctx, c, pendingVersion); err != nil {
		return Result{}, o.writeError(err, c.ID, "commit write")
	}
	o.mirror(ctx, c.ID, c.Status, ev)
	return Result{
		Status:    "success",
		Message:   ev.Content,
		CaseID:    c.ID,
		NewStatus: c.Status,
	}, nil
}

// handleFinalize combines the approved effort, cost and value artifacts
// into the financial summary. No agent is involved, so this is a direct
// commit like a human decision.
func (o *Orchestrator) handleFinalize(ctx context.Context, t Transition, req Request) (Result, error) {
	c, err := o.load(ctx, req.CaseID)
	if err != nil {
		return Result{}, err
	}
	if d := Allow(c.Status, t.Action); !d.Allowed {
		return Result{}, InvalidStateError{Action: t.Action, Actual: c.Status, Expected: d.Required}
	}
	if missing := missingUpstream(c, t); missing != "" {
		return Result{}, MissingArtifactError{Stage: missing, Status: c.Status}
	}
	summary := map[string]json.RawMessage{}
	for _, stage := range t.Upstream {
		summary[stage] = c.StageOutputs[stage]
	}
	artifact, err := json.Marshal(summary)
	if err != nil {
		return Result{}, fmt.Errorf("combine financial summary: %w", err)
	}
	ts := o.timestamp()
	c.Status = t.Commit
	c.UpdatedAt = ts
	c.StageOutputs[t.Stage] = artifact
	ev := domain.Event{
		TS:      ts,
		Source:  domain.SourceOrchestrator,
		Kind:    domain.EventStatusChanged,
		Content: "financial summary combined from effort, cost and value outputs",
	}
	o.appendEvent(&c, ev)
	if err := o.commit(ctx, c); err != nil {
		return Result{}, err
	}
	o.mirror(ctx, c.ID, c.Status, ev)
	return Result{Status: "success", Message: ev.Content, CaseID: c.ID, NewStatus: c.Status}, nil
}

func (o *Orchestrator) generate(ctx context.Context, ag agent.Agent, t Transition, c domain.Case) (agent.Output, error) {
	timeout := agent.Timeout(o.Config)
	tctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	in := agent.Input{
		CaseID:           c.ID,
		Title:            c.Title,
		ProblemStatement: c.ProblemStatement,
		Upstream:         c.StageOutputs,
	}
	out, err := ag.Generate(tctx, in)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return agent.Output{}, fmt.Errorf("%s agent timed out after %s", t.Stage, timeout)
		}
		return agent.Output{}, err
	}
	return out, nil
}

// load maps store read errors into the dispatch taxonomy.
func (o *Orchestrator) load(ctx context.Context, caseID string) (domain.Case, error) {
	if caseID == "" {
		return domain.Case{}, errors.New("case_id is required")
	}
	c, err := o.Store.Get(ctx, caseID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Case{}, NotFoundError{CaseID: caseID}
		}
		return domain.Case{}, StoreFailureError{Op: "read", Err: err}
	}
	return c, nil
}

// commit writes a committed (non-pending) mutation at the case's read
// version.
func (o *Orchestrator) commit(ctx context.Context, c domain.Case) error {
	if err := o.Store.Set(ctx, c, c.Version); err != nil {
		return o.writeError(err, c.ID, "commit write")
	}
	return nil
}

func (o *Orchestrator) writeError(err error, caseID, op string) error {
	if errors.Is(err, store.ErrVersionConflict) {
		return ConflictError{CaseID: caseID}
	}
	if errors.Is(err, store.ErrNotFound) {
		return NotFoundError{CaseID: caseID}
	}
	return StoreFailureError{Op: op, Err: err}
}

// checkGate verifies the caller holds a role allowed to decide the gate.
func (o *Orchestrator) checkGate(t Transition, req Request) error {
	if t.Gate == "" {
		return nil
	}
	allowed := o.Config.GateRoles(t.Gate)
	for _, role := range req.Roles {
		for _, want := range allowed {
			if role == want {
				return nil
			}
		}
	}
	return ForbiddenError{Action: t.Action, Gate: t.Gate, Roles: allowed}
}

// checkGenerateAccess lets the case owner trigger generation on their own
// case; otherwise the stage's gate roles apply.
func (o *Orchestrator) checkGenerateAccess(t Transition, c domain.Case, req Request) error {
	if req.CallerID != "" && req.CallerID == c.OwnerID {
		return nil
	}
	gated := t
	gated.Gate = t.Stage
	return o.checkGate(gated, req)
}

func missingUpstream(c domain.Case, t Transition) string {
	for _, stage := range t.Upstream {
		if _, ok := c.StageOutputs[stage]; !ok {
			return stage
		}
	}
	return ""
}

// appendEvent appends to the case history, clamping timestamps so the
// log stays non-decreasing even if the clock steps backwards.
func (o *Orchestrator) appendEvent(c *domain.Case, ev domain.Event) {
	if n := len(c.History); n > 0 && ev.TS < c.History[n-1].TS {
		ev.TS = c.History[n-1].TS
	}
	c.History = append(c.History, ev)
}

// mirror copies a committed history entry into the global audit table.
// The case history is authoritative, so a mirror failure is logged, not
// surfaced.
func (o *Orchestrator) mirror(ctx context.Context, caseID, status string, ev domain.Event) {
	if o.Audit == nil {
		return
	}
	if err := o.Audit.Append(ctx, caseID, status, ev); err != nil {
		if o.Logger != nil {
			o.Logger.Printf("case %s: audit mirror append failed: %v", caseID, err)
		}
	}
}

func (o *Orchestrator) timestamp() string {
	now := time.Now
	if o.Now != nil {
		now = o.Now
	}
	return now().UTC().Format(time.RFC3339)
}

func decisionKind(action string) string {
	switch {
	case strings.HasSuffix(action, ".approve"):
		return domain.EventApproval
	case strings.HasSuffix(action, ".reject"):
		return domain.EventRejection
	default:
		return domain.EventStatusChanged
	}
}

func decisionContent(t Transition, prior, callerID string) string {
	switch decisionKind(t.Action) {
	case domain.EventApproval:
		return fmt.Sprintf("%s approved by %s", t.Stage, callerID)
	case domain.EventRejection:
		return fmt.Sprintf("%s rejected by %s", t.Stage, callerID)
	default:
		return fmt.Sprintf("status changed from %s to %s by %s", prior, t.Commit, callerID)
	}
}
