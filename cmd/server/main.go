package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	_ "github.com/danielgtaylor/huma/v2/formats/cbor"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/janisto/identity-gateway/internal/http/v1/routes"
	"github.com/janisto/identity-gateway/internal/platform/auth"
	"github.com/janisto/identity-gateway/internal/platform/config"
	"github.com/janisto/identity-gateway/internal/platform/firebase"
	"github.com/janisto/identity-gateway/internal/platform/logging"
	appmiddleware "github.com/janisto/identity-gateway/internal/platform/middleware"
	"github.com/janisto/identity-gateway/internal/platform/respond"
	"github.com/janisto/identity-gateway/internal/service/account"
	"github.com/janisto/identity-gateway/internal/service/directory"
	"github.com/janisto/identity-gateway/internal/service/identity"
	"github.com/janisto/identity-gateway/internal/service/localstore"
)

// Version can be overridden at build time: -ldflags "-X main.Version=1.2.3"
var Version = "dev"

const docsPath = "/api-docs"

func main() {
	defer func() {
		if err := logging.Sync(); err != nil {
			logging.LogError(context.Background(), "logger sync error", err)
		}
	}()
	if err := logging.Err(); err != nil {
		logging.LogError(context.Background(), "logger init error", err)
	}

	cfg, err := config.Load(".env")
	if err != nil {
		config.Exitf("config: %v", err)
	}

	ctx := context.Background()
	clients, err := firebase.New(ctx, firebase.Config{
		ProjectID:       cfg.FirebaseProjectID,
		CredentialsFile: cfg.Credentials(),
		Emulated:        cfg.AuthEmulatorHost != "",
	})
	if err != nil {
		logging.LogFatal(ctx, "firebase init failed", err)
	}

	svc, local, err := newOrchestrator(cfg, clients)
	if err != nil {
		logging.LogFatal(ctx, "local store init failed", err, zap.String("path", cfg.LocalStorePath))
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           newHandler(auth.NewIDTokenVerifier(clients.Auth), svc),
		ReadTimeout:       5 * time.Second,
		ReadHeaderTimeout: 2 * time.Second,
		WriteTimeout:      15 * time.Second, // sign-up plus directory retries
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    64 << 10, // 64 KB
	}

	listenErr := make(chan error, 1)
	go func() {
		logging.LogInfo(ctx, "server listening",
			zap.String("addr", srv.Addr),
			zap.Bool("localStore", local != nil),
			zap.Bool("emulated", cfg.AuthEmulatorHost != ""),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			listenErr <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-listenErr:
		logging.LogError(ctx, "listen failed", err, zap.String("addr", srv.Addr))
		shutdownResources(ctx, local, clients)
		os.Exit(1)
	case <-stop:
		logging.LogInfo(ctx, "shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.LogError(shutdownCtx, "server shutdown error", err)
	}
	shutdownResources(shutdownCtx, local, clients)
	logging.LogInfo(ctx, "server exited")
}

// newOrchestrator builds the provider client, the directory and the optional
// local mirror. The returned store is nil when the mirror is disabled.
func newOrchestrator(cfg config.Config, clients *firebase.Clients) (*account.Service, *localstore.Store, error) {
	idOpts := []identity.Option{identity.WithTimeout(cfg.IdentityTimeout)}
	switch {
	case cfg.IdentityToolkitURL != "":
		idOpts = append(idOpts, identity.WithBaseURL(cfg.IdentityToolkitURL))
	case cfg.AuthEmulatorHost != "":
		idOpts = append(idOpts, identity.WithEmulator(cfg.AuthEmulatorHost))
	}
	idp := identity.NewClient(nil, cfg.FirebaseAPIKey, clients.Auth, idOpts...)

	opts := []account.Option{account.WithDirectoryAttempts(cfg.DirectoryWriteAttempts)}
	var local *localstore.Store
	if cfg.LocalStorePath != "" {
		var err error
		local, err = localstore.Open(cfg.LocalStorePath)
		if err != nil {
			return nil, nil, err
		}
		opts = append(opts, account.WithLocalStore(local))
	}
	return account.New(idp, directory.NewFirestoreStore(clients.Firestore), opts...), local, nil
}

// newHandler assembles the middleware stack, the huma API and every route.
func newHandler(verifier auth.Verifier, svc account.Orchestrator) http.Handler {
	respond.Install()

	router := chi.NewRouter()
	router.NotFound(respond.NotFoundHandler())
	router.MethodNotAllowed(respond.MethodNotAllowedHandler())

	router.Use(
		appmiddleware.Headers(docsPath),
		appmiddleware.CORS(),
		appmiddleware.RequestID(),
		// Trusts X-Forwarded-For. Deploy behind a proxy that overwrites it.
		chimiddleware.RealIP,
		chimiddleware.RequestSize(1<<20), // 1 MB limit
		logging.RequestLogger(),
		logging.AccessLogger(),
		respond.Recoverer(),
	)

	cfg := huma.DefaultConfig("Identity Gateway API", Version)
	cfg.DocsPath = docsPath
	// No $schema link in bodies: error bodies carry message and nothing else.
	cfg.CreateHooks = nil
	api := humachi.New(router, cfg)

	// Advertise CBOR alongside JSON for every body.
	api.OpenAPI().OnAddOperation = append(api.OpenAPI().OnAddOperation,
		func(_ *huma.OpenAPI, op *huma.Operation) {
			if op.RequestBody != nil && op.RequestBody.Content != nil {
				if jsonContent, ok := op.RequestBody.Content["application/json"]; ok {
					op.RequestBody.Content["application/cbor"] = jsonContent
				}
			}
			for _, resp := range op.Responses {
				if resp.Content == nil {
					continue
				}
				if jsonContent, ok := resp.Content["application/json"]; ok {
					resp.Content["application/cbor"] = jsonContent
				}
			}
		},
	)

	routes.Register(api, verifier, svc)
	return router
}

func shutdownResources(ctx context.Context, local *localstore.Store, clients *firebase.Clients) {
	if local != nil {
		if err := local.Close(); err != nil {
			logging.LogError(ctx, "local store close error", err)
		}
	}
	if err := clients.Close(); err != nil {
		logging.LogError(ctx, "firebase close error", err)
	}
}
