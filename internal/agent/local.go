package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Local produces deterministic skeleton artifacts without calling any
// external model. It keeps the CLI and tests usable offline; the shape of
// each artifact matches what the HTTP agents are expected to return.
type Local struct {
	Stage string
	// HourlyRate prices effort hours in the cost artifact.
	HourlyRate float64
}

const defaultHourlyRate = 95

func (a Local) Generate(ctx context.Context, in Input) (Output, error) {
	if err := ctx.Err(); err != nil {
		return Output{}, err
	}
	var artifact any
	switch a.Stage {
	case "draft":
		artifact = map[string]any{
			"summary": fmt.Sprintf("Draft requirements for %q", in.Title),
			"sections": []string{
				"Problem statement",
				"Goals",
				"Functional requirements",
				"Out of scope",
			},
			"problem_statement": in.ProblemStatement,
		}
	case "design":
		artifact = map[string]any{
			"overview":   fmt.Sprintf("Architecture outline for %q", in.Title),
			"components": []string{"api", "workflow core", "case store"},
			"decisions":  []string{"single document store", "async generation stages"},
		}
	case "effort":
		hours := 40 * countComponents(in)
		artifact = map[string]any{
			"total_hours": hours,
			"basis":       "40 hours per design component",
		}
	case "cost":
		rate := a.HourlyRate
		if rate <= 0 {
			rate = defaultHourlyRate
		}
		hours := upstreamNumber(in, "effort", "total_hours")
		artifact = map[string]any{
			"total_cost":  hours * rate,
			"hourly_rate": rate,
			"currency":    "USD",
		}
	case "value":
		cost := upstreamNumber(in, "cost", "total_cost")
		artifact = map[string]any{
			"scenarios": map[string]any{
				"low":      cost * 1.1,
				"expected": cost * 1.5,
				"high":     cost * 2.5,
			},
			"horizon_months": 12,
		}
	default:
		return Output{}, fmt.Errorf("local agent: unknown stage %q", a.Stage)
	}
	data, err := json.Marshal(artifact)
	if err != nil {
		return Output{}, err
	}
	return Output{Artifact: data}, nil
}

func countComponents(in Input) float64 {
	var design struct {
		Components []string `json:"components"`
	}
	if raw, ok := in.Upstream["design"]; ok {
		if err := json.Unmarshal(raw, &design); err == nil && len(design.Components) > 0 {
			return float64(len(design.Components))
		}
	}
	// fall back to a rough size signal from the title
	return float64(1 + len(strings.Fields(in.Title))/3)
}

func upstreamNumber(in Input, stage, field string) float64 {
	raw, ok := in.Upstream[stage]
	if !ok {
		return 0
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return 0
	}
	if v, ok := m[field].(float64); ok {
		return v
	}
	return 0
}
