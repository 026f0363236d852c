package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"sort"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"

	"caseline/internal/audit"
	"caseline/internal/store"
	"caseline/internal/workflow"
)

// Config for the HTTP API handler.
type Config struct {
	Orchestrator *workflow.Orchestrator
	Store        store.Store
	Audit        *audit.Writer
	APIKeys      store.APIKeys
	BasePath     string
	Auth         AuthConfig
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"invalid_state"`
	Message string         `json:"message" example:"effort.generate requires status design_approved, case is draft_in_progress"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true"`
}

type bodyBytesKey struct{}

// apiError is the error envelope every failure response uses.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// New returns an HTTP handler exposing the Caseline API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v1"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	huma.DefaultArrayNullable = false
	// Override Huma errors to use the envelope.
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(msg), "validation") {
			// Schema validation failures are the caller's fault.
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}

	router := chi.NewRouter()
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			bodyBytes, _ := io.ReadAll(r.Body)
			r.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))
			ctx := context.WithValue(r.Context(), bodyBytesKey{}, bodyBytes)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	})
	router.Use(newAuthMiddleware(basePath, cfg.Auth, cfg.APIKeys))
	hcfg := huma.DefaultConfig("Caseline API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	hcfg.DocsPath = "" // custom Swagger UI below
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerDocs(router, basePath)
	registerHealth(group)
	registerActions(group)
	registerCases(group, cfg)
	registerDispatch(group, cfg)
	registerEvents(group, cfg)
	registerOpenAPI(router, api, basePath)

	return router, nil
}

func bodyBytes(ctx context.Context) []byte {
	if b, ok := ctx.Value(bodyBytesKey{}).([]byte); ok {
		return b
	}
	return nil
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

// handleError maps the workflow error taxonomy onto HTTP statuses.
func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	var notFound workflow.NotFoundError
	if errors.As(err, &notFound) {
		return newAPIError(http.StatusNotFound, "not_found", err.Error(), map[string]any{"case_id": notFound.CaseID})
	}
	var invalidState workflow.InvalidStateError
	if errors.As(err, &invalidState) {
		return newAPIError(http.StatusConflict, "invalid_state", err.Error(), map[string]any{
			"action":   invalidState.Action,
			"actual":   invalidState.Actual,
			"expected": invalidState.Expected,
		})
	}
	var conflict workflow.ConflictError
	if errors.As(err, &conflict) {
		return newAPIError(http.StatusConflict, "conflict", err.Error(), map[string]any{"case_id": conflict.CaseID})
	}
	var forbidden workflow.ForbiddenError
	if errors.As(err, &forbidden) {
		return newAPIError(http.StatusForbidden, "forbidden", err.Error(), map[string]any{
			"gate":  forbidden.Gate,
			"roles": forbidden.Roles,
		})
	}
	var missing workflow.MissingArtifactError
	if errors.As(err, &missing) {
		return newAPIError(http.StatusUnprocessableEntity, "missing_artifact", err.Error(), map[string]any{
			"stage":  missing.Stage,
			"status": missing.Status,
		})
	}
	var agentFailure workflow.AgentFailureError
	if errors.As(err, &agentFailure) {
		return newAPIError(http.StatusBadGateway, "agent_failure", err.Error(), map[string]any{
			"stage": agentFailure.Stage,
		})
	}
	var unknown workflow.UnknownActionError
	if errors.As(err, &unknown) {
		return newAPIError(http.StatusBadRequest, "unknown_action", err.Error(), nil)
	}
	var storeFailure workflow.StoreFailureError
	if errors.As(err, &storeFailure) {
		return newAPIError(http.StatusInternalServerError, "store_failure", "internal error", map[string]any{"error": err.Error()})
	}
	msg := err.Error()
	if lowered := strings.ToLower(msg); strings.Contains(lowered, "invalid") || strings.Contains(lowered, "required") {
		return newAPIError(http.StatusBadRequest, "bad_request", msg, nil)
	}
	return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": msg})
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusUnprocessableEntity:
		return "validation_failed"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusBadGateway:
		return "agent_failure"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}

func registerActions(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "list-actions",
		Method:      http.MethodGet,
		Path:        "/actions",
		Summary:     "List dispatchable actions",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body ActionsResponse `json:"body"`
	}, error) {
		names := workflow.Actions()
		sort.Strings(names)
		return &struct {
			Body ActionsResponse `json:"body"`
		}{Body: ActionsResponse{Actions: names}}, nil
	})
}

func registerCases(api huma.API, cfg Config) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-case",
		Method:        http.MethodPost,
		Path:          "/cases",
		Summary:       "Create case",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusUnauthorized,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		Body CreateCaseRequest `json:"body"`
	}) (*struct {
		Body CaseResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		if strings.TrimSpace(input.Body.Title) == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "title is required", nil)
		}
		caller, authErr := callerFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		res, err := cfg.Orchestrator.Dispatch(ctx, workflow.Request{
			Action:   workflow.ActionCaseCreate,
			Payload:  bodyBytes(ctx),
			CallerID: caller.ActorID,
			Roles:    caller.Roles,
		})
		if err != nil {
			return nil, handleError(err)
		}
		c, err := cfg.Store.Get(ctx, res.CaseID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body CaseResponse `json:"body"`
		}{Body: caseResponse(c)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-cases",
		Method:      http.MethodGet,
		Path:        "/cases",
		Summary:     "List cases",
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		Status          string `query:"status"`
		OwnerID         string `query:"owner_id"`
		Limit           int    `query:"limit"`
		CursorCreatedAt string `query:"cursor_created_at"`
		CursorID        string `query:"cursor_id"`
	}) (*struct {
		Body CaseListResponse `json:"body"`
	}, error) {
		if _, authErr := callerFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		if input.Status != "" && !workflow.KnownStatus(input.Status) {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", fmt.Sprintf("unknown status %q", input.Status), nil)
		}
		limit := input.Limit
		if limit <= 0 || limit > 200 {
			limit = 50
		}
		items, err := cfg.Store.List(ctx, store.Filters{
			Status:          input.Status,
			OwnerID:         input.OwnerID,
			Limit:           limit,
			CursorCreatedAt: input.CursorCreatedAt,
			CursorID:        input.CursorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		out := CaseListResponse{Items: mapCases(items)}
		if len(items) == limit {
			last := items[len(items)-1]
			out.NextCursorCreatedAt = last.CreatedAt
			out.NextCursorID = last.ID
		}
		return &struct {
			Body CaseListResponse `json:"body"`
		}{Body: out}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-case",
		Method:      http.MethodGet,
		Path:        "/cases/{case_id}",
		Summary:     "Get case",
		Errors:      []int{http.StatusNotFound, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		CaseID string `path:"case_id"`
	}) (*struct {
		Body CaseResponse `json:"body"`
	}, error) {
		if _, authErr := callerFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		c, err := cfg.Store.Get(ctx, input.CaseID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, handleError(workflow.NotFoundError{CaseID: input.CaseID})
			}
			return nil, handleError(err)
		}
		return &struct {
			Body CaseResponse `json:"body"`
		}{Body: caseResponse(c)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-case-history",
		Method:      http.MethodGet,
		Path:        "/cases/{case_id}/history",
		Summary:     "Get case history",
		Errors:      []int{http.StatusNotFound, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		CaseID string `path:"case_id"`
	}) (*struct {
		Body HistoryResponse `json:"body"`
	}, error) {
		if _, authErr := callerFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		c, err := cfg.Store.Get(ctx, input.CaseID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, handleError(workflow.NotFoundError{CaseID: input.CaseID})
			}
			return nil, handleError(err)
		}
		return &struct {
			Body HistoryResponse `json:"body"`
		}{Body: HistoryResponse{CaseID: c.ID, Status: c.Status, Events: c.History}}, nil
	})
}

func registerDispatch(api huma.API, cfg Config) {
	huma.Register(api, huma.Operation{
		OperationID: "dispatch-action",
		Method:      http.MethodPost,
		Path:        "/cases/{case_id}/actions/{action}",
		Summary:     "Dispatch a workflow action",
		Description: "Runs one workflow transition. The request body, if any, is passed to the action as its payload.",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusUnauthorized,
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusConflict,
			http.StatusUnprocessableEntity,
			http.StatusBadGateway,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		CaseID string `path:"case_id"`
		Action string `path:"action"`
	}) (*struct {
		Body DispatchResponse `json:"body"`
	}, error) {
		caller, authErr := callerFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if input.Action == workflow.ActionCaseCreate {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "use POST /cases to create a case", nil)
		}
		res, err := cfg.Orchestrator.Dispatch(ctx, workflow.Request{
			CaseID:   input.CaseID,
			Action:   input.Action,
			Payload:  bodyBytes(ctx),
			CallerID: caller.ActorID,
			Roles:    caller.Roles,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body DispatchResponse `json:"body"`
		}{Body: DispatchResponse{
			Status:    res.Status,
			Message:   res.Message,
			CaseID:    res.CaseID,
			NewStatus: res.NewStatus,
		}}, nil
	})
}

func registerEvents(api huma.API, cfg Config) {
	huma.Register(api, huma.Operation{
		OperationID: "list-events",
		Method:      http.MethodGet,
		Path:        "/events",
		Summary:     "List audit events",
		Description: "Queries the cross-case audit mirror. Case history remains the authoritative record.",
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		CaseID string `query:"case_id"`
		Kind   string `query:"kind"`
		Limit  int    `query:"limit"`
		Before int64  `query:"before"`
		After  int64  `query:"after"`
	}) (*struct {
		Body []domainAuditEntry `json:"body"`
	}, error) {
		if _, authErr := callerFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		if cfg.Audit == nil {
			return nil, newAPIError(http.StatusInternalServerError, "internal_error", "audit mirror not configured", nil)
		}
		if input.After > 0 {
			entries, err := cfg.Audit.After(ctx, input.After, input.Limit, input.CaseID)
			if err != nil {
				return nil, handleError(err)
			}
			return wrapEntries(entries), nil
		}
		entries, err := cfg.Audit.Latest(ctx, audit.Filters{
			CaseID: input.CaseID,
			Kind:   input.Kind,
			Limit:  input.Limit,
			Cursor: input.Before,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return wrapEntries(entries), nil
	})
}

func registerDocs(r chi.Router, basePath string) {
	r.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, swaggerHTML(basePath))
	})
}

func registerOpenAPI(r chi.Router, api huma.API, basePath string) {
	var spec []byte
	specPath := path.Join(basePath, "openapi.json")
	r.Get(specPath, func(w http.ResponseWriter, r *http.Request) {
		if spec == nil {
			oas := api.OpenAPI()
			applyAuthSecurity(oas, basePath)
			spec, _ = json.Marshal(oas)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(spec)
	})
}

func applyAuthSecurity(oas *huma.OpenAPI, basePath string) {
	if oas == nil {
		return
	}
	if oas.Components == nil {
		oas.Components = &huma.Components{}
	}
	if oas.Components.SecuritySchemes == nil {
		oas.Components.SecuritySchemes = map[string]*huma.SecurityScheme{}
	}
	oas.Components.SecuritySchemes["bearerAuth"] = &huma.SecurityScheme{
		Type:         "http",
		Scheme:       "bearer",
		BearerFormat: "JWT",
	}
	oas.Components.SecuritySchemes["apiKeyAuth"] = &huma.SecurityScheme{
		Type: "apiKey",
		In:   "header",
		Name: "X-Api-Key",
	}
	security := []map[string][]string{
		{"bearerAuth": {}},
		{"apiKeyAuth": {}},
	}
	oas.Security = security
	healthPath := path.Join(basePath, "health")
	if !strings.HasPrefix(healthPath, "/") {
		healthPath = "/" + healthPath
	}
	for route, item := range oas.Paths {
		for _, op := range []*huma.Operation{
			item.Get, item.Put, item.Post, item.Delete, item.Options, item.Head, item.Patch, item.Trace,
		} {
			if op == nil {
				continue
			}
			if route == healthPath {
				op.Security = []map[string][]string{}
				continue
			}
			op.Security = security
		}
	}
}

func swaggerHTML(basePath string) string {
	specURL := path.Join("/", path.Join(basePath, "openapi.json"))
	return fmt.Sprintf(`<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8"/>
    <meta name="viewport" content="width=device-width, initial-scale=1"/>
    <title>Caseline API Docs</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js" crossorigin></script>
    <script>
      window.onload = () => {
        SwaggerUIBundle({
          url: '%s',
          dom_id: '#swagger-ui'
        });
      };
    </script>
    <p style="padding: 1rem; font-family: sans-serif; color: #444;">
      Authenticate with Authorization: Bearer &lt;token&gt; or X-Api-Key.
    </p>
  </body>
</html>`, specURL)
}
