package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTP delegates generation to an external service. The service receives
// the Input as JSON and answers `{"status":"success","artifact":...}` or
// `{"status":"error","message":"..."}`.
type HTTP struct {
	Stage    string
	Endpoint string
	Client   *http.Client
}

func NewHTTP(stage, endpoint string, timeout time.Duration) HTTP {
	return HTTP{
		Stage:    stage,
		Endpoint: endpoint,
		Client:   &http.Client{Timeout: timeout},
	}
}

type httpResponse struct {
	Status   string          `json:"status"`
	Artifact json.RawMessage `json:"artifact,omitempty"`
	Message  string          `json:"message,omitempty"`
}

func (a HTTP) Generate(ctx context.Context, in Input) (Output, error) {
	body, err := json.Marshal(in)
	if err != nil {
		return Output{}, fmt.Errorf("marshal %s agent input: %w", a.Stage, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.Endpoint, bytes.NewReader(body))
	if err != nil {
		return Output{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	res, err := a.Client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return Output{}, fmt.Errorf("%s agent timed out", a.Stage)
		}
		return Output{}, fmt.Errorf("%s agent: %w", a.Stage, err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(io.LimitReader(res.Body, 4<<20))
	if err != nil {
		return Output{}, fmt.Errorf("%s agent: read response: %w", a.Stage, err)
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return Output{}, fmt.Errorf("%s agent: status %d: %s", a.Stage, res.StatusCode, truncate(string(data), 200))
	}
	var parsed httpResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return Output{}, fmt.Errorf("%s agent: invalid response: %w", a.Stage, err)
	}
	if parsed.Status != "success" {
		msg := parsed.Message
		if msg == "" {
			msg = "agent returned error without message"
		}
		return Output{}, errors.New(msg)
	}
	if len(parsed.Artifact) == 0 {
		return Output{}, fmt.Errorf("%s agent: success response without artifact", a.Stage)
	}
	return Output{Artifact: parsed.Artifact}, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
