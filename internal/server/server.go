// Package server implements the HTTP transport layer for catalogd.
package server

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	catalog "github.com/okozhin/catalogd/internal"
	"github.com/okozhin/catalogd/internal/app"
	"github.com/okozhin/catalogd/internal/ratelimit"
	"github.com/okozhin/catalogd/internal/telemetry"
)

// ReadyChecker reports whether the system is ready to serve traffic.
type ReadyChecker func(ctx context.Context) error

// Reconciler runs one on-demand sync pass against the content source.
type Reconciler interface {
	Reconcile(ctx context.Context) (catalog.SyncResult, error)
}

// Deps holds all dependencies for the HTTP server.
type Deps struct {
	Auth        catalog.Authenticator
	Catalog     *app.CatalogService
	Syncer      Reconciler          // nil = sync endpoint disabled
	ReadyCheck  ReadyChecker        // nil = always ready (for tests)
	Metrics     *telemetry.Metrics  // nil = no metrics
	RateLimiter *ratelimit.Registry // nil = no rate limiting
	// MetricsHandler serves the Prometheus scrape endpoint; nil leaves
	// /metrics unmounted.
	MetricsHandler http.Handler
}

// New creates an http.Handler with all routes and middleware wired.
func New(deps Deps) http.Handler {
	s := &server{deps: deps}

	r := chi.NewRouter()

	// Global middleware
	r.Use(s.recovery)
	r.Use(s.requestID)
	r.Use(s.logging)
	if deps.Metrics != nil {
		r.Use(metricsMiddleware(deps.Metrics))
	}

	// System endpoints (no auth)
	r.Get("/healthz", s.handleHealthz)
	r.Get("/readyz", s.handleReadyz)
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	// Catalog API (auth required)
	r.Group(func(r chi.Router) {
		r.Use(s.authenticate)
		r.Use(s.rateLimit)
		r.Get("/v1/products", s.handleListProducts)
		r.Get("/v1/products/{id}", s.handleGetProduct)
		r.Delete("/v1/products/{id}", s.handleDeleteProduct)
		r.Post("/v1/sync", s.handleSync)
	})

	return r
}

type server struct {
	deps Deps
}
