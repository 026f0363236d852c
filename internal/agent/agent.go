// Package agent defines the generation-agent boundary: one asynchronous
// collaborator per drafting stage, each producing that stage's artifact.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"caseline/internal/config"
)

// Input carries case metadata plus the upstream artifacts a stage needs.
type Input struct {
	CaseID           string                     `json:"case_id"`
	Title            string                     `json:"title"`
	ProblemStatement string                     `json:"problem_statement,omitempty"`
	Upstream         map[string]json.RawMessage `json:"upstream,omitempty"`
}

// Output is a successful generation result.
type Output struct {
	Artifact json.RawMessage `json:"artifact"`
}

// Agent produces one stage's artifact. A call may take tens of seconds;
// implementations must honor context cancellation. Errors (including
// timeouts) carry the message surfaced to the caller.
type Agent interface {
	Generate(ctx context.Context, in Input) (Output, error)
}

// Registry maps a generating stage to its agent.
type Registry map[string]Agent

// Lookup returns the agent for a stage.
func (r Registry) Lookup(stage string) (Agent, bool) {
	a, ok := r[stage]
	return a, ok
}

// Timeout returns the configured per-call timeout.
func Timeout(cfg *config.Config) time.Duration {
	secs := cfg.Agents.TimeoutSeconds
	if secs <= 0 {
		secs = 60
	}
	return time.Duration(secs) * time.Second
}

// FromConfig builds the stage registry for the configured mode.
func FromConfig(cfg *config.Config) (Registry, error) {
	reg := Registry{}
	switch cfg.Agents.Mode {
	case "", "local":
		for _, stage := range config.GeneratingStages {
			reg[stage] = Local{Stage: stage}
		}
	case "http":
		timeout := Timeout(cfg)
		for _, stage := range config.GeneratingStages {
			endpoint := cfg.Agents.Endpoints[stage]
			if endpoint == "" {
				return nil, fmt.Errorf("no endpoint configured for %s agent", stage)
			}
			reg[stage] = NewHTTP(stage, endpoint, timeout)
		}
	default:
		return nil, fmt.Errorf("unknown agents.mode %q", cfg.Agents.Mode)
	}
	return reg, nil
}
