package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/janisto/identity-gateway/internal/http/health"
	"github.com/janisto/identity-gateway/internal/platform/auth"
	"github.com/janisto/identity-gateway/internal/platform/config"
	"github.com/janisto/identity-gateway/internal/platform/firebase"
	"github.com/janisto/identity-gateway/internal/service/account"
	"github.com/janisto/identity-gateway/internal/service/directory"
	"github.com/janisto/identity-gateway/internal/service/identity"
)

type errorBody struct {
	Message string `json:"message"`
}

func testServer() chi.Router {
	svc := account.New(identity.NewMockService(), directory.NewMockService(), account.WithDirectoryAttempts(1))
	router := newHandler(&auth.MockVerifier{Token: "main-id-token", Caller: auth.TestCaller()}, svc).(chi.Router)
	router.Get("/panic", func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})
	return router
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	resp := httptest.NewRecorder()
	h.ServeHTTP(resp, req)
	return resp
}

func TestHealth(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(chimiddleware.RequestIDHeader, "test-health-req")
	resp := serve(testServer(), req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200 got %d", resp.Code)
	}
	if got := resp.Header().Get(chimiddleware.RequestIDHeader); got != "test-health-req" {
		t.Fatalf("expected request id echoed, got %q", got)
	}

	var h health.Response
	if err := json.Unmarshal(resp.Body.Bytes(), &h); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if h.Status != "healthy" {
		t.Fatalf("expected status 'healthy', got %s", h.Status)
	}
}

func TestHealthCBOR(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Accept", "application/cbor")
	resp := serve(testServer(), req)

	if ct := resp.Header().Get("Content-Type"); ct != "application/cbor" {
		t.Fatalf("expected application/cbor, got %q", ct)
	}
	var h health.Response
	if err := cbor.Unmarshal(resp.Body.Bytes(), &h); err != nil {
		t.Fatalf("failed to decode cbor: %v", err)
	}
	if h.Status != "healthy" {
		t.Fatalf("expected status 'healthy', got %s", h.Status)
	}
}

func TestNotFound(t *testing.T) {
	resp := serve(testServer(), httptest.NewRequest(http.MethodGet, "/missing", nil))

	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", resp.Code)
	}
	var body errorBody
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to unmarshal 404 response: %v", err)
	}
	if body.Message != "resource not found" {
		t.Fatalf("unexpected message: %s", body.Message)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	resp := serve(testServer(), httptest.NewRequest(http.MethodPost, "/health", nil))

	if resp.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405 got %d", resp.Code)
	}
	if allow := resp.Header().Get("Allow"); !strings.Contains(allow, http.MethodGet) {
		t.Fatalf("expected Allow header to list GET, got %q", allow)
	}
	var body errorBody
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to unmarshal 405 response: %v", err)
	}
	if !strings.Contains(body.Message, "POST") {
		t.Fatalf("expected message to mention POST, got %s", body.Message)
	}
}

func TestRecoverer(t *testing.T) {
	resp := serve(testServer(), httptest.NewRequest(http.MethodGet, "/panic", nil))

	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 got %d", resp.Code)
	}
	var body errorBody
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to unmarshal 500 response: %v", err)
	}
	if body.Message != "internal server error" {
		t.Fatalf("unexpected message: %s", body.Message)
	}
}

func TestHardeningHeaders(t *testing.T) {
	router := testServer()

	resp := serve(router, httptest.NewRequest(http.MethodGet, "/health", nil))
	if got := resp.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Fatalf("expected nosniff, got %q", got)
	}
	if got := resp.Header().Get("Cache-Control"); got != "no-store" {
		t.Fatalf("expected no-store, got %q", got)
	}

	docs := serve(router, httptest.NewRequest(http.MethodGet, docsPath, nil))
	if got := docs.Header().Get("Content-Security-Policy"); got != "" {
		t.Fatalf("expected docs to skip CSP, got %q", got)
	}
}

func TestCORSPreflight(t *testing.T) {
	req := httptest.NewRequest(http.MethodOptions, "/api/login", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "Content-Type")
	resp := serve(testServer(), req)

	if resp.Header().Get("Access-Control-Allow-Origin") == "" {
		t.Fatal("expected Access-Control-Allow-Origin on preflight")
	}
	if !strings.Contains(resp.Header().Get("Access-Control-Allow-Methods"), http.MethodPost) {
		t.Fatalf("expected POST allowed, got %q", resp.Header().Get("Access-Control-Allow-Methods"))
	}
}

func TestRegisterThroughFullStack(t *testing.T) {
	router := testServer()

	req := httptest.NewRequest(http.MethodPost, "/api/register",
		strings.NewReader(`{"email":"grace@example.com","password":"secret1","name":"Grace"}`))
	req.Header.Set("Content-Type", "application/json")
	resp := serve(router, req)
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", resp.Code, resp.Body.String())
	}

	list := serve(router, httptest.NewRequest(http.MethodGet, "/api/users?name=Grace", nil))
	if list.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", list.Code)
	}
	var users []directory.Profile
	if err := json.Unmarshal(list.Body.Bytes(), &users); err != nil {
		t.Fatalf("failed to unmarshal users: %v", err)
	}
	if len(users) != 1 || users[0].Email != "grace@example.com" {
		t.Fatalf("unexpected users: %+v", users)
	}
}

func TestResponseBodyKeys(t *testing.T) {
	router := testServer()
	tests := []struct {
		name   string
		method string
		path   string
		body   string
		status int
		keys   []string
	}{
		{"health", http.MethodGet, "/health", "", http.StatusOK, []string{"status"}},
		{"register", http.MethodPost, "/api/register", `{"email":"keys@example.com","password":"secret1","name":"Keys"}`, http.StatusCreated, []string{"message", "user"}},
		{"upstream error", http.MethodPost, "/api/login", `{"email":"keys@example.com","password":"wrong"}`, http.StatusInternalServerError, []string{"message"}},
		{"validation error", http.MethodPost, "/api/login", `{"email":"keys@example.com"}`, http.StatusBadRequest, []string{"message"}},
		{"malformed body", http.MethodPost, "/api/login", `{"email":42}`, http.StatusBadRequest, []string{"message"}},
		{"empty list", http.MethodGet, "/api/users?name=Nobody", "", http.StatusNotFound, []string{"message"}},
		{"unauthorized", http.MethodGet, "/api/me", "", http.StatusUnauthorized, []string{"message"}},
		{"unknown route", http.MethodGet, "/nope", "", http.StatusNotFound, []string{"message"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var req *http.Request
			if tt.body != "" {
				req = httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
				req.Header.Set("Content-Type", "application/json")
			} else {
				req = httptest.NewRequest(tt.method, tt.path, nil)
			}
			resp := serve(router, req)
			if resp.Code != tt.status {
				t.Fatalf("expected %d, got %d: %s", tt.status, resp.Code, resp.Body.String())
			}

			var got map[string]any
			if err := json.Unmarshal(resp.Body.Bytes(), &got); err != nil {
				t.Fatalf("failed to unmarshal %q: %v", resp.Body.String(), err)
			}
			if len(got) != len(tt.keys) {
				t.Fatalf("expected keys %v, got %v", tt.keys, got)
			}
			for _, k := range tt.keys {
				if _, ok := got[k]; !ok {
					t.Fatalf("expected keys %v, got %v", tt.keys, got)
				}
			}
		})
	}
}

func TestRequestBodyLimit(t *testing.T) {
	big := `{"email":"` + strings.Repeat("a", 2<<20) + `"}`
	req := httptest.NewRequest(http.MethodPost, "/api/forgot-password", strings.NewReader(big))
	req.Header.Set("Content-Type", "application/json")
	resp := serve(testServer(), req)

	if resp.Code < 400 || resp.Code >= 500 {
		t.Fatalf("expected a 4xx for an oversized body, got %d", resp.Code)
	}
}

func TestOpenAPICBORContentTypes(t *testing.T) {
	resp := serve(testServer(), httptest.NewRequest(http.MethodGet, "/openapi.json", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}

	var doc struct {
		Paths map[string]map[string]struct {
			RequestBody struct {
				Content map[string]any `json:"content"`
			} `json:"requestBody"`
			Responses map[string]struct {
				Content map[string]any `json:"content"`
			} `json:"responses"`
		} `json:"paths"`
		Components struct {
			SecuritySchemes map[string]any `json:"securitySchemes"`
		} `json:"components"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &doc); err != nil {
		t.Fatalf("failed to unmarshal openapi: %v", err)
	}

	op, ok := doc.Paths["/api/register"]["post"]
	if !ok {
		t.Fatal("expected register operation")
	}
	if _, ok := op.RequestBody.Content["application/cbor"]; !ok {
		t.Fatal("expected application/cbor in request body content")
	}
	if _, ok := op.Responses["201"].Content["application/cbor"]; !ok {
		t.Fatal("expected application/cbor in 201 response content")
	}
	if _, ok := doc.Components.SecuritySchemes[auth.SchemeName]; !ok {
		t.Fatalf("expected %s security scheme", auth.SchemeName)
	}
}

func TestNewOrchestratorLocalStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.json")
	cfg := config.Config{FirebaseAPIKey: "key", LocalStorePath: path, DirectoryWriteAttempts: 2}

	svc, local, err := newOrchestrator(cfg, &firebase.Clients{})
	if err != nil {
		t.Fatalf("newOrchestrator: %v", err)
	}
	if svc == nil || local == nil {
		t.Fatal("expected service and local store")
	}
	if local.Path() != path {
		t.Fatalf("expected store at %s, got %s", path, local.Path())
	}
	shutdownResources(context.Background(), local, &firebase.Clients{})
	if _, err := local.List(context.Background()); err == nil {
		t.Fatal("expected closed store to reject List")
	}
}

func TestNewOrchestratorWithoutLocalStore(t *testing.T) {
	svc, local, err := newOrchestrator(config.Config{FirebaseAPIKey: "key"}, &firebase.Clients{})
	if err != nil {
		t.Fatalf("newOrchestrator: %v", err)
	}
	if svc == nil {
		t.Fatal("expected service")
	}
	if local != nil {
		t.Fatal("expected no local store when the path is empty")
	}
}
