// Package server implements the NoteStash HTTP server and API routes.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/notestash/notestash/internal/auth"
	"github.com/notestash/notestash/internal/blob"
	"github.com/notestash/notestash/internal/config"
	"github.com/notestash/notestash/internal/handlers"
	"github.com/notestash/notestash/internal/metadata"
	"github.com/notestash/notestash/internal/notes"
	"github.com/notestash/notestash/internal/users"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server is the NoteStash HTTP server. It wires the auth and note handlers
// onto a Chi router with a Huma API for the system endpoints.
type Server struct {
	cfg        *config.Config
	router     chi.Router
	api        huma.API
	catalog    metadata.Store
	blobs      *blob.Registry
	tokens     *auth.Tokens
	authH      *handlers.AuthHandler
	notesH     *handlers.NotesHandler
	httpServer *http.Server
}

// HealthBody is the JSON body returned by the health check endpoint.
type HealthBody struct {
	Status  string `json:"status" example:"ok" doc:"Health status"`
	Backend string `json:"backend" example:"local" doc:"Active blob backend"`
}

// HealthOutput is the Huma output struct for the health check endpoint.
type HealthOutput struct {
	Body HealthBody
}

// ServerOption is a functional option for configuring the Server.
type ServerOption func(*Server)

// WithCatalog sets the catalog store for the server.
func WithCatalog(catalog metadata.Store) ServerOption {
	return func(s *Server) {
		s.catalog = catalog
	}
}

// WithBlobRegistry sets the blob backend registry for the server.
func WithBlobRegistry(blobs *blob.Registry) ServerOption {
	return func(s *Server) {
		s.blobs = blobs
	}
}

// New creates a new Server with the given configuration and wires up all
// API routes on the Chi router with Huma API. Use ServerOption functions to
// provide the catalog store and blob registry.
func New(cfg *config.Config, opts ...ServerOption) (*Server, error) {
	router := chi.NewMux()

	humaConfig := huma.DefaultConfig("NoteStash API", "1.0.0")
	humaConfig.DocsPath = "/docs"
	humaConfig.OpenAPIPath = "/openapi"
	api := humachi.New(router, humaConfig)

	s := &Server{
		cfg:    cfg,
		router: router,
		api:    api,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.tokens = auth.NewTokens([]byte(cfg.Auth.JWTSecret),
		time.Duration(cfg.Auth.TokenTTLHours)*time.Hour)

	usersSvc := users.NewService(s.catalog, s.tokens, cfg.Auth.BcryptCost)
	notesSvc := notes.NewService(s.catalog, s.blobs)
	s.authH = handlers.NewAuthHandler(usersSvc)
	s.notesH = handlers.NewNotesHandler(notesSvc, cfg.Server.MaxUploadSize)

	s.registerRoutes()
	return s, nil
}

// Router returns the underlying router wrapped in the full middleware chain.
// Tests drive it directly through httptest.
func (s *Server) Router() http.Handler {
	var handler http.Handler = s.router
	handler = commonHeaders(handler)
	handler = metricsMiddleware(handler)
	return handler
}

// ListenAndServe starts the HTTP server on the given address. The returned
// http.Server is stored so it can be shut down gracefully.
func (s *Server) ListenAndServe(addr string) error {
	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: s.Router(),
	}
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server, waiting for in-flight
// requests to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// registerRoutes configures all routes on the Chi router. Huma routes
// (/health, /docs, /openapi.json) and /metrics sit next to the /api tree.
func (s *Server) registerRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
		Description: "Returns the health status of the NoteStash server.",
		Tags:        []string{"System"},
	}, func(ctx context.Context, input *struct{}) (*HealthOutput, error) {
		body := HealthBody{Status: "ok", Backend: string(s.blobs.Active().Kind())}
		if err := s.catalog.Ping(ctx); err != nil {
			body.Status = "degraded"
		}
		return &HealthOutput{Body: body}, nil
	})

	// Huma only does one method per registration.
	s.router.Head("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
	})

	s.router.Handle("/metrics", promhttp.Handler())

	s.router.Route("/api/auth", func(r chi.Router) {
		r.Post("/signup", s.authH.Signup)
		r.Post("/login", s.authH.Login)
	})

	s.router.Route("/api/notes", func(r chi.Router) {
		// Shared-link downloads skip the token check on purpose.
		r.Get("/public/file/{id}", s.notesH.File)

		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware(s.tokens))

			r.Post("/upload", s.notesH.Upload)
			r.Get("/", s.notesH.List)
			r.Get("/subject/{subject}", s.notesH.ListBySubject)
			r.Get("/semester/{semester}", s.notesH.ListBySemester)
			r.Get("/file/{id}", s.notesH.File)
			r.Get("/view/{id}", s.notesH.File)
			r.Get("/{id}", s.notesH.Get)
			r.Delete("/{id}", s.notesH.Delete)
			r.Post("/{id}/rate", s.notesH.Rate)
		})
	})
}
