// Package app contains the application setup for the inventory console.
package app

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/abgdnv/inventory-console/internal/catalog"
	"github.com/abgdnv/inventory-console/internal/config"
	"github.com/abgdnv/inventory-console/internal/dashboard"
	"github.com/abgdnv/inventory-console/internal/editor"
	"github.com/abgdnv/inventory-console/internal/events"
	"github.com/abgdnv/inventory-console/internal/listing"
	"github.com/abgdnv/inventory-console/internal/refresh"
	"github.com/abgdnv/inventory-console/internal/session"
	"github.com/abgdnv/inventory-console/internal/transport/rest"
	"github.com/abgdnv/inventory-console/internal/validation"
	"github.com/abgdnv/inventory-console/pkg/auth"
	"github.com/abgdnv/inventory-console/pkg/server"
	"github.com/go-playground/validator/v10"
)

type Dependencies struct {
	API      *catalog.Client
	Tokens   session.TokenStore
	Expiry   session.ExpiryChecker
	Validate *validator.Validate
	Notifier *events.Notifier
	Registry *session.Registry
	Metrics  http.Handler
	Logger   *slog.Logger
}

// SetupDependencies wires the per-session workspace builder around the shared API client and token store.
// metrics may be nil.
func SetupDependencies(cfg *config.Config, api *catalog.Client, tokens session.TokenStore, notifier *events.Notifier, metrics http.Handler, logger *slog.Logger) *Dependencies {
	deps := &Dependencies{
		API:      api,
		Tokens:   tokens,
		Expiry:   auth.NewExpiryChecker(auth.DefaultLeeway),
		Validate: validation.New(),
		Notifier: notifier,
		Metrics:  metrics,
		Logger:   logger,
	}
	deps.Registry = session.NewRegistry(deps.BuildWorkspace, cfg.Session.IdleTTL, logger)
	return deps
}

// BuildWorkspace creates the controllers for one browser session. The API client is scoped to the session's token.
func (d *Dependencies) BuildWorkspace(ctx context.Context, id string) *session.Workspace {
	logger := d.Logger.With("session_id", id)

	authSession := session.NewAuthSession(id, d.API, d.Tokens, d.Expiry, d.Validate, logger)
	api := d.API.WithTokenSource(authSession)

	signal := refresh.NewSignal()
	ed := editor.NewController(api, d.Validate, logger)
	list := listing.NewController(api, logger)
	coordinator := dashboard.New(ed, list, signal, logger)

	// outlives the request that created the workspace
	watchCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	if d.Notifier != nil {
		d.Notifier.Watch(watchCtx, id, signal)
	}

	return session.NewWorkspace(id, authSession, coordinator, cancel)
}

// SetupHttpHandler initializes the router and the console routes.
// Used by E2E tests to set up the HTTP server with the necessary routes and middleware.
func SetupHttpHandler(deps *Dependencies, cfg *config.Config) http.Handler {
	mux := server.NewChiRouter("console", deps.Logger)
	handler := rest.NewHandler(deps.Registry, cfg.Session, deps.API, deps.Metrics, cfg.API.MaxUploadBytes, deps.Logger)
	handler.RegisterRoutes(mux)
	return mux
}

// SetupHttpServer creates and configures an HTTP server for the console.
func SetupHttpServer(deps *Dependencies, cfg *config.Config) *http.Server {
	return server.NewHTTPServer(cfg.HTTPServer, SetupHttpHandler(deps, cfg))
}
