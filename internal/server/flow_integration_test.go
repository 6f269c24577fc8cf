package server_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MarcoPoloResearchLab/okta-create-user/internal/action"
	"github.com/MarcoPoloResearchLab/okta-create-user/internal/audit"
	"github.com/MarcoPoloResearchLab/okta-create-user/internal/auth"
	"github.com/MarcoPoloResearchLab/okta-create-user/internal/credentials"
	"github.com/MarcoPoloResearchLab/okta-create-user/internal/server"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	callerSigningSecret = "integration-secret"
	callerIssuer        = "okta-create-user"
	callerSubject       = "workflow-engine"
	jsonContentType     = "application/json"
)

type oktaDirectory struct {
	mu          sync.Mutex
	users       map[string]string
	authHeaders []string
}

func (d *oktaDirectory) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.authHeaders = append(d.authHeaders, r.Header.Get("Authorization"))
	w.Header().Set("Content-Type", jsonContentType)

	switch {
	case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/api/v1/users/"):
		login := strings.TrimPrefix(r.URL.Path, "/api/v1/users/")
		user, ok := d.users[login]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `{"errorCode":"E0000007","errorSummary":"Not found: Resource not found: `+login+` (User)","errorCauses":[]}`)
			return
		}
		_, _ = io.WriteString(w, user)
	case r.Method == http.MethodPost && r.URL.Path == "/api/v1/users":
		var request struct {
			Profile map[string]any `json:"profile"`
		}
		if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		login, _ := request.Profile["login"].(string)
		if _, exists := d.users[login]; exists {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = io.WriteString(w, `{"errorCode":"E0000001","errorSummary":"Api validation failed: login","errorCauses":[{"errorSummary":"login: An object with this field already exists in the current organization"}]}`)
			return
		}
		profile, _ := json.Marshal(request.Profile)
		user := `{"id":"00u` + login[:1] + `","status":"STAGED","created":"2026-10-19T12:00:00.000Z","activated":null,"statusChanged":null,"lastLogin":null,"lastUpdated":"2026-10-19T12:00:00.000Z","profile":` + string(profile) + `}`
		d.users[login] = user
		_, _ = io.WriteString(w, user)
	default:
		http.NotFound(w, r)
	}
}

func TestInvokeFlowCreatesThenReconciles(testContext *testing.T) {
	gin.SetMode(gin.TestMode)

	directory := &oktaDirectory{users: map[string]string{}}
	oktaServer := httptest.NewServer(directory)
	defer oktaServer.Close()

	db, err := audit.OpenSQLite("file:invoke_flow?mode=memory&cache=shared", zap.NewNop())
	if err != nil {
		testContext.Fatalf("failed to open journal: %v", err)
	}
	journal, err := audit.NewJournal(db)
	if err != nil {
		testContext.Fatalf("failed to build journal: %v", err)
	}
	defer journal.Close()

	createUser, err := action.New(action.Config{
		Resolver: credentials.NewResolver(credentials.ResolverConfig{
			HTTPClient:        oktaServer.Client(),
			StaticTokenScheme: credentials.SchemeSSWS,
		}),
		Strategy:   action.StrategyConflict,
		HTTPClient: oktaServer.Client(),
		Journal:    journal,
		Logger:     zap.NewNop(),
	})
	if err != nil {
		testContext.Fatalf("failed to build action: %v", err)
	}

	validator, err := auth.NewCallerValidator(auth.CallerValidatorConfig{
		SigningSecret: []byte(callerSigningSecret),
		Issuer:        callerIssuer,
	})
	if err != nil {
		testContext.Fatalf("failed to build caller validator: %v", err)
	}
	issuer, err := auth.NewCallerIssuer(auth.CallerIssuerConfig{
		SigningSecret: []byte(callerSigningSecret),
		Issuer:        callerIssuer,
		TokenTTL:      5 * time.Minute,
	})
	if err != nil {
		testContext.Fatalf("failed to build caller issuer: %v", err)
	}
	callerToken, _, err := issuer.Issue(callerSubject)
	if err != nil {
		testContext.Fatalf("failed to mint caller token: %v", err)
	}

	handler, err := server.NewHTTPHandler(server.Dependencies{
		Action:          createUser,
		CallerValidator: validator,
		Journal:         journal,
		Logger:          zap.NewNop(),
	})
	if err != nil {
		testContext.Fatalf("failed to build handler: %v", err)
	}
	apiServer := httptest.NewServer(handler)
	defer apiServer.Close()

	invokeBody := map[string]any{
		"params": map[string]string{
			"email":      "jane@example.com",
			"login":      "jane@example.com",
			"firstName":  "Jane",
			"lastName":   "Doe",
			"department": "Engineering",
			"groupIds":   "00g1, 00g2",
		},
		"context": map[string]any{
			"secrets":     map[string]string{"BEARER_AUTH_TOKEN": "00static"},
			"environment": map[string]string{"ADDRESS": oktaServer.URL + "/"},
		},
	}

	first := invokeOverHTTP(testContext, apiServer.URL, callerToken, invokeBody)
	second := invokeOverHTTP(testContext, apiServer.URL, callerToken, invokeBody)

	if first.ID == "" || first.ID != second.ID {
		testContext.Fatalf("expected the same user on both invocations, got %q and %q", first.ID, second.ID)
	}
	if len(second.GroupIDs) != 2 || second.GroupIDs[0] != "00g1" || second.GroupIDs[1] != "00g2" {
		testContext.Fatalf("unexpected group ids %v", second.GroupIDs)
	}
	if second.Profile["department"] != "Engineering" {
		testContext.Fatalf("expected department in profile, got %v", second.Profile)
	}
	for _, header := range directory.authHeaders {
		if header != "SSWS 00static" {
			testContext.Fatalf("unexpected Authorization header %q", header)
		}
	}

	request, err := http.NewRequest(http.MethodGet, apiServer.URL+"/v1/invocations?limit=10", http.NoBody)
	if err != nil {
		testContext.Fatalf("failed to build request: %v", err)
	}
	request.Header.Set("Authorization", "Bearer "+callerToken)
	response, err := http.DefaultClient.Do(request)
	if err != nil {
		testContext.Fatalf("invocations request failed: %v", err)
	}
	defer response.Body.Close()
	if response.StatusCode != http.StatusOK {
		testContext.Fatalf("unexpected invocations status %d", response.StatusCode)
	}
	var listing struct {
		Invocations []audit.Entry `json:"invocations"`
	}
	if err := json.NewDecoder(response.Body).Decode(&listing); err != nil {
		testContext.Fatalf("failed to decode invocations: %v", err)
	}
	if len(listing.Invocations) != 2 {
		testContext.Fatalf("expected two journal entries, got %d", len(listing.Invocations))
	}
	outcomes := map[string]bool{}
	for _, entry := range listing.Invocations {
		outcomes[entry.Outcome] = true
		if entry.UserID != first.ID {
			testContext.Fatalf("unexpected journal user id %q", entry.UserID)
		}
	}
	if !outcomes[string(action.OutcomeCreated)] || !outcomes[string(action.OutcomeReconciled)] {
		testContext.Fatalf("expected created and reconciled outcomes, got %v", outcomes)
	}
}

func invokeOverHTTP(testContext *testing.T, baseURL, callerToken string, body map[string]any) action.Result {
	testContext.Helper()
	payload, err := json.Marshal(body)
	if err != nil {
		testContext.Fatalf("failed to marshal request: %v", err)
	}
	request, err := http.NewRequest(http.MethodPost, baseURL+"/v1/invoke", bytes.NewReader(payload))
	if err != nil {
		testContext.Fatalf("failed to build request: %v", err)
	}
	request.Header.Set("Content-Type", jsonContentType)
	request.Header.Set("Authorization", "Bearer "+callerToken)

	response, err := http.DefaultClient.Do(request)
	if err != nil {
		testContext.Fatalf("invoke request failed: %v", err)
	}
	defer response.Body.Close()
	if response.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(response.Body)
		testContext.Fatalf("unexpected invoke status %d: %s", response.StatusCode, raw)
	}
	var result action.Result
	if err := json.NewDecoder(response.Body).Decode(&result); err != nil {
		testContext.Fatalf("failed to decode result: %v", err)
	}
	return result
}
