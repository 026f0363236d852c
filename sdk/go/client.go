package caselinesdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal Caseline HTTP API client.
type Client struct {
	BaseURL     string
	APIKey      string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 30 * time.Second,
	}
}

// Case represents the API case model.
type Case struct {
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

// Event is one case history entry.
type Event struct {
	TS      string `json:"ts"`
	Source  string `json:"source"`
	Kind    string `json:"kind"`
	Content string `json:"content"`
}

// History is a case's status plus its full event log.
type History struct {
	CaseID string  `json:"case_id"`
	Status string  `json:"status"`
	Events []Event `json:"events"`
}

// DispatchResult is the outcome of one workflow action.
type DispatchResult struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	CaseID    string `json:"case_id,omitempty"`
	NewStatus string `json:"new_status,omitempty"`
}

// AuditEntry is one row of the cross-case audit log.
type AuditEntry struct {
	ID      int64  `json:"id"`
	TS      string `json:"ts"`
	CaseID  string `json:"case_id"`
	Kind    string `json:"kind"`
	Source  string `json:"source"`
	Content string `json:"content"`
	Status  string `json:"status,omitempty"`
}

// CasePage wraps case listings with resume cursors.
type CasePage struct {
	Items               []Case `json:"items"`
	NextCursorCreatedAt string `json:"next_cursor_created_at,omitempty"`
	NextCursorID        string `json:"next_cursor_id,omitempty"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// CreateCase creates a case in the intake status.
func (c *Client) CreateCase(ctx context.Context, title, problemStatement string) (Case, error) {
	body := map[string]any{
		"title":             title,
		"problem_statement": problemStatement,
	}
	var resp Case
	err := c.do(ctx, http.MethodPost, "v1/cases", body, &resp)
	return resp, err
}

// GetCase fetches a case by id.
func (c *Client) GetCase(ctx context.Context, id string) (Case, error) {
	var resp Case
	err := c.do(ctx, http.MethodGet, "v1/cases/"+url.PathEscape(id), nil, &resp)
	return resp, err
}

// ListCases returns one page of cases.
func (c *Client) ListCases(ctx context.Context, status string, limit int, cursorCreatedAt, cursorID string) (CasePage, error) {
	q := url.Values{}
	if status != "" {
		q.Set("status", status)
	}
	if limit > 0 {
		q.Set("limit", fmt.Sprintf("%d", limit))
	}
	if cursorCreatedAt != "" && cursorID != "" {
		q.Set("cursor_created_at", cursorCreatedAt)
		q.Set("cursor_id", cursorID)
	}
	endpoint := "v1/cases"
	if enc := q.Encode(); enc != "" {
		endpoint += "?" + enc
	}
	var resp CasePage
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// GetHistory fetches a case's event log.
func (c *Client) GetHistory(ctx context.Context, id string) (History, error) {
	var resp History
	err := c.do(ctx, http.MethodGet, "v1/cases/"+url.PathEscape(id)+"/history", nil, &resp)
	return resp, err
}

// Dispatch runs one workflow action against a case. The payload may be
// nil for actions that take no input.
func (c *Client) Dispatch(ctx context.Context, caseID, action string, payload any) (DispatchResult, error) {
	endpoint := fmt.Sprintf("v1/cases/%s/actions/%s", url.PathEscape(caseID), url.PathEscape(action))
	var resp DispatchResult
	err := c.do(ctx, http.MethodPost, endpoint, payload, &resp)
	return resp, err
}

// Events queries the cross-case audit log.
func (c *Client) Events(ctx context.Context, caseID string, limit int) ([]AuditEntry, error) {
	q := url.Values{}
	if caseID != "" {
		q.Set("case_id", caseID)
	}
	if limit > 0 {
		q.Set("limit", fmt.Sprintf("%d", limit))
	}
	endpoint := "v1/events"
	if enc := q.Encode(); enc != "" {
		endpoint += "?" + enc
	}
	var resp []AuditEntry
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.APIKey != "":
		req.Header.Set("X-Api-Key", c.APIKey)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
