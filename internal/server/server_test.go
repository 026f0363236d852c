package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"testing"

	"caseline/internal/agent"
	"caseline/internal/audit"
	"caseline/internal/config"
	"caseline/internal/db"
	"caseline/internal/migrate"
	"caseline/internal/store"
	"caseline/internal/workflow"
)

type testServer struct {
	URL    string
	client *http.Client
	close  func()
}

func (s *testServer) Client() *http.Client { return s.client }
func (s *testServer) Close()               { s.close() }

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	workspace := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	cfg := config.Default()
	agents, err := agent.FromConfig(cfg)
	if err != nil {
		t.Fatalf("agents: %v", err)
	}
	st := store.NewSQLite(conn)
	o := workflow.New(st, agents, cfg)
	o.Audit = &audit.Writer{DB: conn}
	handler, err := New(Config{
		Orchestrator: o,
		Store:        st,
		Audit:        o.Audit,
		APIKeys:      store.APIKeys{DB: conn},
		BasePath:     "/v1",
		Auth:         AuthConfig{AllowActorHeader: true},
	})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	ts := &testServer{
		URL:    "http://" + ln.Addr().String(),
		client: &http.Client{},
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			conn.Close()
		},
	}
	t.Cleanup(ts.Close)
	return ts
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res, data
}

func asOwner() map[string]string {
	return map[string]string{"X-Actor-Id": "alice"}
}

func asReviewer() map[string]string {
	return map[string]string{"X-Actor-Id": "bob", "X-Roles": "reviewer"}
}

func TestHealthUnauthenticated(t *testing.T) {
	srv := newTestServer(t)
	res, _ := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v1/health", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("health status %d", res.StatusCode)
	}
}

func TestAuthenticationRequired(t *testing.T) {
	srv := newTestServer(t)
	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v1/cases", nil, nil)
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status %d: %s", res.StatusCode, data)
	}
	var envelope struct {
		Error apiErrorBody `json:"error"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		t.Fatalf("unmarshal error envelope: %v", err)
	}
	if envelope.Error.Code != "unauthorized" {
		t.Fatalf("code = %s", envelope.Error.Code)
	}
}

func createCase(t *testing.T, srv *testServer) CaseResponse {
	t.Helper()
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v1/cases", map[string]any{
		"title":             "Warehouse automation",
		"problem_statement": "Manual picking does not scale",
	}, asOwner())
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create status %d: %s", res.StatusCode, data)
	}
	var c CaseResponse
	if err := json.Unmarshal(data, &c); err != nil {
		t.Fatalf("unmarshal case: %v", err)
	}
	return c
}

func TestCaseLifecycleOverHTTP(t *testing.T) {
	srv := newTestServer(t)
	c := createCase(t, srv)
	if c.Status != "intake" || c.OwnerID != "alice" {
		t.Fatalf("created case %+v", c)
	}

	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v1/cases/"+c.ID+"/actions/draft.generate", nil, asOwner())
	if res.StatusCode != http.StatusOK {
		t.Fatalf("draft.generate status %d: %s", res.StatusCode, data)
	}
	var dispatched DispatchResponse
	if err := json.Unmarshal(data, &dispatched); err != nil {
		t.Fatalf("unmarshal dispatch: %v", err)
	}
	if dispatched.NewStatus != "draft_pending_review" {
		t.Fatalf("new status = %s", dispatched.NewStatus)
	}

	// draft approval chains design generation with the local agent
	res, data = doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v1/cases/"+c.ID+"/actions/draft.approve", nil, asReviewer())
	if res.StatusCode != http.StatusOK {
		t.Fatalf("draft.approve status %d: %s", res.StatusCode, data)
	}
	if err := json.Unmarshal(data, &dispatched); err != nil {
		t.Fatalf("unmarshal dispatch: %v", err)
	}
	if dispatched.NewStatus != "design_pending_review" {
		t.Fatalf("new status = %s", dispatched.NewStatus)
	}

	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v1/cases/"+c.ID+"/history", nil, asOwner())
	if res.StatusCode != http.StatusOK {
		t.Fatalf("history status %d: %s", res.StatusCode, data)
	}
	var history HistoryResponse
	if err := json.Unmarshal(data, &history); err != nil {
		t.Fatalf("unmarshal history: %v", err)
	}
	// create, draft generation, approval, design generation
	if len(history.Events) != 4 {
		t.Fatalf("history has %d events: %+v", len(history.Events), history.Events)
	}
}

func TestInvalidStateMapsTo409(t *testing.T) {
	srv := newTestServer(t)
	c := createCase(t, srv)
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v1/cases/"+c.ID+"/actions/effort.generate", nil, asOwner())
	if res.StatusCode != http.StatusConflict {
		t.Fatalf("status %d: %s", res.StatusCode, data)
	}
	var envelope struct {
		Error apiErrorBody `json:"error"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if envelope.Error.Code != "invalid_state" {
		t.Fatalf("code = %s", envelope.Error.Code)
	}
	if envelope.Error.Details["actual"] != "intake" {
		t.Fatalf("details = %v", envelope.Error.Details)
	}
}

func TestForbiddenMapsTo403(t *testing.T) {
	srv := newTestServer(t)
	c := createCase(t, srv)
	doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v1/cases/"+c.ID+"/actions/draft.generate", nil, asOwner())

	// owner without the reviewer role may not approve
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v1/cases/"+c.ID+"/actions/draft.approve", nil, asOwner())
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("status %d: %s", res.StatusCode, data)
	}
}

func TestUnknownActionMapsTo400(t *testing.T) {
	srv := newTestServer(t)
	c := createCase(t, srv)
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v1/cases/"+c.ID+"/actions/draft.publish", nil, asOwner())
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("status %d: %s", res.StatusCode, data)
	}
}

func TestUnknownCaseMapsTo404(t *testing.T) {
	srv := newTestServer(t)
	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v1/cases/no-such-case", nil, asOwner())
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("status %d: %s", res.StatusCode, data)
	}
}

func TestListCasesFiltersByStatus(t *testing.T) {
	srv := newTestServer(t)
	createCase(t, srv)
	c := createCase(t, srv)
	doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v1/cases/"+c.ID+"/actions/draft.generate", nil, asOwner())

	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v1/cases?status=draft_pending_review", nil, asOwner())
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status %d: %s", res.StatusCode, data)
	}
	var listed CaseListResponse
	if err := json.Unmarshal(data, &listed); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(listed.Items) != 1 || listed.Items[0].ID != c.ID {
		t.Fatalf("items = %+v", listed.Items)
	}
}

func TestEventsMirror(t *testing.T) {
	srv := newTestServer(t)
	c := createCase(t, srv)
	doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v1/cases/"+c.ID+"/actions/draft.generate", nil, asOwner())

	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v1/events?case_id="+c.ID, nil, asOwner())
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status %d: %s", res.StatusCode, data)
	}
	var entries []domainAuditEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries = %+v", entries)
	}
}

func TestAPIKeyAuthentication(t *testing.T) {
	srv := newTestServer(t)

	// no valid key
	res, _ := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v1/cases", nil, map[string]string{"X-Api-Key": "cl_bogus"})
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status %d", res.StatusCode)
	}
}
