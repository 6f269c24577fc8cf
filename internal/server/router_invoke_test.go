package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/MarcoPoloResearchLab/okta-create-user/internal/action"
	"github.com/MarcoPoloResearchLab/okta-create-user/internal/actionerr"
	"github.com/MarcoPoloResearchLab/okta-create-user/internal/audit"
	"github.com/gin-gonic/gin"
)

type stubInvoker struct {
	result       action.Result
	err          error
	gotParams    action.Params
	gotContext   action.Context
	handledError error
}

func (s *stubInvoker) Invoke(_ context.Context, params action.Params, invocation action.Context) (action.Result, error) {
	s.gotParams = params
	s.gotContext = invocation
	return s.result, s.err
}

func (s *stubInvoker) HandleError(_ context.Context, _ action.Params, err error) error {
	s.handledError = err
	return err
}

func (s *stubInvoker) Halt(_ context.Context, params action.Params, reason string) action.HaltResult {
	return action.HaltResult{Email: params.Email, Reason: reason, HaltedAt: "2026-10-19T12:00:00.000Z", CleanupCompleted: true}
}

type stubJournal struct {
	entries []audit.Entry
	limit   int
}

func (s *stubJournal) Recent(_ context.Context, limit int) ([]audit.Entry, error) {
	s.limit = limit
	return s.entries, nil
}

func newTestRouter(t *testing.T, invoker Invoker, journal JournalReader) http.Handler {
	t.Helper()
	gin.SetMode(gin.TestMode)
	deps := Dependencies{
		Action:          invoker,
		CallerValidator: stubCallerValidator{subject: "orchestrator"},
		AllowedOrigins:  []string{"https://console.example.com"},
	}
	if journal != nil {
		deps.Journal = journal
	}
	handler, err := NewHTTPHandler(deps)
	if err != nil {
		t.Fatalf("failed to build handler: %v", err)
	}
	return handler
}

func postJSON(handler http.Handler, path string, body any) *httptest.ResponseRecorder {
	payload, _ := json.Marshal(body)
	request := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	request.Header.Set("Content-Type", "application/json")
	request.Header.Set("Authorization", "Bearer caller-token")
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, request)
	return recorder
}

func TestInvokeEndpointReturnsResult(t *testing.T) {
	invoker := &stubInvoker{result: action.Result{ID: "00u1", Status: "STAGED", GroupIDs: []string{}}}
	handler := newTestRouter(t, invoker, nil)

	recorder := postJSON(handler, "/v1/invoke", map[string]any{
		"params":  map[string]string{"email": "a@x.com", "login": "a@x.com", "firstName": "A", "lastName": "B"},
		"context": map[string]any{"secrets": map[string]string{"BEARER_AUTH_TOKEN": "t"}, "environment": map[string]string{"ADDRESS": "https://example.okta.com"}},
	})

	if recorder.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", recorder.Code, recorder.Body.String())
	}
	var result action.Result
	if err := json.Unmarshal(recorder.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to decode result: %v", err)
	}
	if result.ID != "00u1" {
		t.Fatalf("unexpected id %q", result.ID)
	}
	if invoker.gotParams.Login != "a@x.com" || invoker.gotContext.Secrets["BEARER_AUTH_TOKEN"] != "t" {
		t.Fatalf("request not forwarded: %+v %+v", invoker.gotParams, invoker.gotContext)
	}
	if !strings.Contains(recorder.Body.String(), `"groupIds":[]`) {
		t.Fatalf("expected empty groupIds array, got %s", recorder.Body.String())
	}
}

func TestInvokeEndpointMapsErrorKinds(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantStatus int
		wantKind   string
		retryable  bool
	}{
		{"missing parameter", actionerr.New(actionerr.ErrMissingParameter, "Missing required parameters: lastName"), http.StatusBadRequest, "MissingParameterError", false},
		{"identity conflict", actionerr.New(actionerr.ErrIdentityConflict, "conflict").WithStatus(http.StatusConflict, nil), http.StatusConflict, "IdentityConflictError", false},
		{"create failure", actionerr.New(actionerr.ErrCreateUser, "Failed to create user: HTTP 503").WithStatus(http.StatusServiceUnavailable, nil), http.StatusBadGateway, "CreateUserError", true},
		{"unclassified", errors.New("boom"), http.StatusInternalServerError, "Error", false},
	}
	for _, tc := range cases {
		invoker := &stubInvoker{err: tc.err}
		handler := newTestRouter(t, invoker, nil)

		recorder := postJSON(handler, "/v1/invoke", map[string]any{"params": map[string]string{"login": "a"}})
		if recorder.Code != tc.wantStatus {
			t.Fatalf("%s: unexpected status %d", tc.name, recorder.Code)
		}
		var response struct {
			Error errorPayload `json:"error"`
		}
		if err := json.Unmarshal(recorder.Body.Bytes(), &response); err != nil {
			t.Fatalf("%s: failed to decode error: %v", tc.name, err)
		}
		if response.Error.Kind != tc.wantKind || response.Error.Retryable != tc.retryable {
			t.Fatalf("%s: unexpected payload %+v", tc.name, response.Error)
		}
		if invoker.handledError != tc.err {
			t.Fatalf("%s: expected error to pass through HandleError", tc.name)
		}
	}
}

func TestInvokeEndpointRequiresCallerToken(t *testing.T) {
	handler := newTestRouter(t, &stubInvoker{}, nil)

	request := httptest.NewRequest(http.MethodPost, "/v1/invoke", strings.NewReader(`{}`))
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, request)

	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", recorder.Code)
	}
}

func TestHaltEndpointAcknowledges(t *testing.T) {
	handler := newTestRouter(t, &stubInvoker{}, nil)

	recorder := postJSON(handler, "/v1/halt", map[string]any{
		"params": map[string]string{"email": "a@x.com"},
		"reason": "timeout",
	})
	if recorder.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", recorder.Code)
	}
	var result action.HaltResult
	if err := json.Unmarshal(recorder.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to decode halt result: %v", err)
	}
	if result.Email != "a@x.com" || result.Reason != "timeout" || !result.CleanupCompleted {
		t.Fatalf("unexpected halt result %+v", result)
	}
}

func TestInvocationsEndpointOnlyWithJournal(t *testing.T) {
	withoutJournal := newTestRouter(t, &stubInvoker{}, nil)
	request := httptest.NewRequest(http.MethodGet, "/v1/invocations", http.NoBody)
	request.Header.Set("Authorization", "Bearer caller-token")
	recorder := httptest.NewRecorder()
	withoutJournal.ServeHTTP(recorder, request)
	if recorder.Code != http.StatusNotFound {
		t.Fatalf("expected 404 without journal, got %d", recorder.Code)
	}

	journal := &stubJournal{entries: []audit.Entry{{InvocationID: "inv-1", Operation: audit.OperationInvoke, Outcome: "created"}}}
	withJournal := newTestRouter(t, &stubInvoker{}, journal)
	request = httptest.NewRequest(http.MethodGet, "/v1/invocations?limit=5", http.NoBody)
	request.Header.Set("Authorization", "Bearer caller-token")
	recorder = httptest.NewRecorder()
	withJournal.ServeHTTP(recorder, request)
	if recorder.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", recorder.Code)
	}
	if journal.limit != 5 {
		t.Fatalf("expected limit 5, got %d", journal.limit)
	}
	if !strings.Contains(recorder.Body.String(), "inv-1") {
		t.Fatalf("expected entry in response, got %s", recorder.Body.String())
	}
}

func TestCORSPreflightForConfiguredOrigin(t *testing.T) {
	handler := newTestRouter(t, &stubInvoker{}, nil)

	request := httptest.NewRequest(http.MethodOptions, "/v1/invoke", http.NoBody)
	request.Header.Set("Origin", "https://console.example.com")
	request.Header.Set("Access-Control-Request-Method", http.MethodPost)
	request.Header.Set("Access-Control-Request-Headers", "Authorization")
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, request)

	if recorder.Code != http.StatusNoContent {
		t.Fatalf("expected status %d, got %d", http.StatusNoContent, recorder.Code)
	}
	if recorder.Header().Get("Access-Control-Allow-Origin") != "https://console.example.com" {
		t.Fatalf("unexpected allow origin %q", recorder.Header().Get("Access-Control-Allow-Origin"))
	}
}

func TestNewHTTPHandlerRequiresDependencies(t *testing.T) {
	if _, err := NewHTTPHandler(Dependencies{CallerValidator: stubCallerValidator{}}); err == nil {
		t.Fatalf("expected error without action")
	}
	if _, err := NewHTTPHandler(Dependencies{Action: &stubInvoker{}}); err == nil {
		t.Fatalf("expected error without caller validator")
	}
}
