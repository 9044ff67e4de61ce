// Package api exposes the generation pipelines, template ingestion and the
// product helpers over HTTP. The same router serves the local server and the
// Lambda function URL.
package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/berthelol/reference-images/internal/filehandler"
	"github.com/berthelol/reference-images/internal/ingest"
	"github.com/berthelol/reference-images/internal/pipeline"
	"github.com/berthelol/reference-images/internal/store"
)

// DefaultMaxBodyBytes bounds a request body: a few base64 product images.
const DefaultMaxBodyBytes = 64 << 20

// Ingester stores one template.
type Ingester interface {
	Ingest(ctx context.Context, in ingest.Input) (*ingest.Result, error)
}

// Dispatcher hands an ingestion job to a background worker.
type Dispatcher interface {
	Dispatch(ctx context.Context, event ingest.WorkerEvent) error
}

// Server holds the collaborators of every handler.
type Server struct {
	Runner    *pipeline.Runner
	Templates store.TemplateStore
	Ingester  Ingester
	// Dispatcher, when set, makes ingestion of URL and s3:// references
	// asynchronous. Data URLs are always ingested inline.
	Dispatcher Dispatcher
	Loader     *filehandler.Loader
	// OriginVerifySecret, when set, must match the x-origin-verify header.
	OriginVerifySecret string
	MaxBodyBytes       int64
}

// NewRouter returns the HTTP handler for s.
func NewRouter(s *Server) http.Handler {
	if s.Loader == nil {
		s.Loader = filehandler.NewLoader()
	}
	if s.MaxBodyBytes <= 0 {
		s.MaxBodyBytes = DefaultMaxBodyBytes
	}

	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		requestLogger,
		middleware.Recoverer,
		withMetrics,
		withOriginVerify(s.OriginVerifySecret),
	)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Route("/generate", func(r chi.Router) {
			r.Post("/"+pipeline.Method1, s.handleMethod1)
			r.Post("/"+pipeline.Method2, s.handleMethod2)
			r.Post("/"+pipeline.Method3, s.handleMethod3)
		})

		r.Route("/templates/{id}", func(r chi.Router) {
			r.Get("/descriptor", s.handleDescriptor)
			r.Post("/ingest", s.handleIngest)
		})

		r.Route("/products", func(r chi.Router) {
			r.Post("/describe", s.handleDescribe)
			r.Post("/clean", s.handleClean)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		httpError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	return r
}
