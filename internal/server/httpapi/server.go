// Package httpapi exposes the registry over HTTP: submission intake, the
// public feed, the moderation queue and approval, and SSE event streams.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/arbolado/treeregistry/internal/logging"
	"github.com/arbolado/treeregistry/internal/server/blob"
	"github.com/arbolado/treeregistry/internal/server/models"
	"github.com/arbolado/treeregistry/internal/server/services"
	"github.com/arbolado/treeregistry/internal/server/watch"
)

// TreeAPI is the submission and read surface the handlers call.
type TreeAPI interface {
	Submit(ctx context.Context, callerUID string, sub services.Submission) (*models.TreeRecord, string, error)
	PublicTrees(ctx context.Context) ([]*services.TreeView, error)
}

// ModerationAPI is the privileged surface the handlers call.
type ModerationAPI interface {
	ApproveTree(ctx context.Context, callerUID, treeID string) error
	PendingTrees(ctx context.Context, callerUID string) ([]*services.TreeView, error)
}

// Options collects the dependencies and settings of the HTTP server.
type Options struct {
	Addr         string
	SecretKey    []byte
	Trees        TreeAPI
	Moderation   ModerationAPI
	Blobs        blob.Store
	Hub          *watch.Hub
	Logger       logging.Logger
	SSEHeartbeat time.Duration
	// Registry receives the request metrics and serves /metrics. Nil gets
	// a private registry, which keeps tests isolated.
	Registry *prometheus.Registry
}

// Server is the HTTP front of the registry.
type Server struct {
	httpServer *http.Server
	trees      TreeAPI
	moderation ModerationAPI
	blobs      blob.Store
	hub        *watch.Hub
	logger     logging.Logger
	heartbeat  time.Duration
}

func NewServer(opts Options) *Server {
	if opts.Registry == nil {
		opts.Registry = prometheus.NewRegistry()
	}
	if opts.SSEHeartbeat <= 0 {
		opts.SSEHeartbeat = 15 * time.Second
	}

	s := &Server{
		trees:      opts.Trees,
		moderation: opts.Moderation,
		blobs:      opts.Blobs,
		hub:        opts.Hub,
		logger:     opts.Logger.With("component", "httpapi"),
		heartbeat:  opts.SSEHeartbeat,
	}

	metrics := newHTTPMetrics(opts.Registry)

	router := chi.NewRouter()
	router.Use(requestLogger(s.logger))
	router.Use(metrics.middleware(func(r *http.Request) string {
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				return pattern
			}
		}
		return "unmatched"
	}))
	router.Use(authenticate(opts.SecretKey))

	router.Get("/healthz", s.handleHealthz)
	router.Method(http.MethodGet, "/metrics",
		promhttp.HandlerFor(opts.Registry, promhttp.HandlerOpts{}))

	router.Route("/api/v1", func(r chi.Router) {
		r.Post("/trees", s.handleSubmit)
		r.Get("/trees/public", s.handlePublicTrees)
		r.Get("/trees/pending", s.handlePendingTrees)
		r.Post("/trees/{treeID}/approve", s.handleApprove)
		r.Get("/events/public", s.handlePublicEvents)
		r.Get("/events/pending", s.handlePendingEvents)
	})

	s.httpServer = &http.Server{
		Addr:        opts.Addr,
		Handler:     router,
		ReadTimeout: 30 * time.Second,
		// No WriteTimeout: SSE connections are long-lived by design, and
		// per-request deadlines would cut the streams.
		IdleTimeout: 120 * time.Second,
	}
	return s
}

// Handler exposes the routed handler for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// ListenAndServe blocks until the listener fails or Shutdown is called.
func (s *Server) ListenAndServe() error {
	s.logger.Info(context.Background(), "http server listening", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown drains in-flight requests until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
