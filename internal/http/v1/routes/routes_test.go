package routes

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cenkalti/backoff/v5"
	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/janisto/identity-gateway/internal/platform/auth"
	"github.com/janisto/identity-gateway/internal/platform/logging"
	appmiddleware "github.com/janisto/identity-gateway/internal/platform/middleware"
	"github.com/janisto/identity-gateway/internal/platform/respond"
	"github.com/janisto/identity-gateway/internal/service/account"
	"github.com/janisto/identity-gateway/internal/service/directory"
	"github.com/janisto/identity-gateway/internal/service/identity"
	"github.com/janisto/identity-gateway/internal/service/localstore"
)

const testToken = "routes-id-token"

func newTestRouter(t *testing.T) (chi.Router, huma.API) {
	t.Helper()
	respond.Install()

	local, err := localstore.Open(filepath.Join(t.TempDir(), "users.json"))
	if err != nil {
		t.Fatalf("open local store: %v", err)
	}
	t.Cleanup(func() { _ = local.Close() })

	svc := account.New(identity.NewMockService(), directory.NewMockService(),
		account.WithLocalStore(local),
		account.WithBackOff(func() backoff.BackOff { return &backoff.ZeroBackOff{} }),
	)

	router := chi.NewRouter()
	router.Use(
		appmiddleware.RequestID(),
		chimiddleware.RealIP,
		logging.RequestLogger(),
		respond.Recoverer(),
	)
	api := humachi.New(router, huma.DefaultConfig("RoutesTest", "test"))
	Register(api, &auth.MockVerifier{Token: testToken, Caller: auth.TestCaller()}, svc)
	return router, api
}

func serve(router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func TestRegisterRoutesHealth(t *testing.T) {
	router, _ := newTestRouter(t)

	if resp := serve(router, http.MethodGet, "/health", ""); resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
}

func TestRegisterRoutesMountsAPIPrefix(t *testing.T) {
	router, _ := newTestRouter(t)

	resp := serve(router, http.MethodPost, "/api/register", `{"email":"ada@example.com","password":"secret1","name":"Ada"}`)
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", resp.Code, resp.Body.String())
	}

	if resp := serve(router, http.MethodGet, "/api/users", ""); resp.Code != http.StatusOK {
		t.Fatalf("expected 200 from /api/users, got %d", resp.Code)
	}
	if resp := serve(router, http.MethodPost, "/register", `{}`); resp.Code != http.StatusNotFound {
		t.Fatalf("expected unprefixed path to 404, got %d", resp.Code)
	}
}

func TestRegisterRoutesProtectsSessionEndpoints(t *testing.T) {
	router, _ := newTestRouter(t)

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/api/me"},
		{http.MethodPost, "/api/token"},
	} {
		resp := serve(router, tc.method, tc.path, "")
		if resp.Code != http.StatusUnauthorized {
			t.Errorf("%s %s: expected 401, got %d", tc.method, tc.path, resp.Code)
		}
		if resp.Header().Get("WWW-Authenticate") == "" {
			t.Errorf("%s %s: expected WWW-Authenticate header", tc.method, tc.path)
		}
	}
}

func TestRegisterRoutesPublicEndpointsSkipAuth(t *testing.T) {
	router, _ := newTestRouter(t)

	resp := serve(router, http.MethodPost, "/api/forgot-password", `{"email":""}`)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 validation error without credentials, got %d", resp.Code)
	}
}

func TestRegisterRoutesDeclaresBearerScheme(t *testing.T) {
	_, api := newTestRouter(t)

	scheme, ok := api.OpenAPI().Components.SecuritySchemes[auth.SchemeName]
	if !ok {
		t.Fatalf("expected security scheme %q", auth.SchemeName)
	}
	if scheme.Type != "http" || scheme.Scheme != "bearer" {
		t.Fatalf("unexpected scheme %+v", scheme)
	}
}
