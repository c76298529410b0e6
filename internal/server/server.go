// Package server implements the gateway's HTTP server and chi-based router
// for the six-route S3-compatible surface spec §6 defines.
package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/replicagate/replicagate/internal/auth"
	"github.com/replicagate/replicagate/internal/config"
	gwerrors "github.com/replicagate/replicagate/internal/errors"
	"github.com/replicagate/replicagate/internal/handlers"
	"github.com/replicagate/replicagate/internal/storage"
	"github.com/replicagate/replicagate/internal/xmlutil"
)

// Server is the gateway HTTP server. Its only S3-aware state is the
// configured virtual bucket name and the two handler groups; everything
// else is delegated to the replication engine behind the storage.Storage
// interface.
type Server struct {
	virtualBucket string
	router        chi.Router
	api           huma.API
	verifier      *auth.Verifier
	bucket        *handlers.BucketHandler
	object        *handlers.ObjectHandler
	httpServer    *http.Server
}

// HealthBody is the JSON body returned by the health check endpoint.
type HealthBody struct {
	Status string `json:"status" example:"ok" doc:"Health status"`
}

// HealthOutput is the Huma output struct for the health check endpoint.
type HealthOutput struct {
	Body HealthBody
}

// New constructs a Server dispatching onto engine for the given virtual
// bucket name. verifier may be nil, in which case ListenAndServe enforces no
// authentication (cmd/gateway passes nil when no access key pair is given).
func New(cfg *config.Config, engine storage.Storage, verifier *auth.Verifier) *Server {
	router := chi.NewMux()

	humaConfig := huma.DefaultConfig("Replication Gateway", "1.0.0")
	humaConfig.DocsPath = "/docs"
	humaConfig.OpenAPIPath = "/openapi"
	api := humachi.New(router, humaConfig)

	s := &Server{
		virtualBucket: cfg.VirtualBucket,
		router:        router,
		api:           api,
		verifier:      verifier,
		bucket:        handlers.NewBucketHandler(engine, cfg.VirtualBucket),
		object:        handlers.NewObjectHandler(engine),
	}

	s.registerRoutes()
	return s
}

// ListenAndServe starts the HTTP server on addr. Middleware chain (outermost
// first): metricsMiddleware -> commonHeaders -> authMiddleware -> router.
func (s *Server) ListenAndServe(addr string) error {
	var handler http.Handler = s.router
	if s.verifier != nil {
		handler = authMiddleware(s.verifier)(handler)
	}
	handler = commonHeaders(handler)
	handler = metricsMiddleware(handler)

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: handler,
	}
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server, waiting for in-flight
// requests to complete within ctx's deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// registerRoutes wires the six S3 routes plus /health and /metrics. Any
// other path, or a bucket segment that doesn't match the configured virtual
// bucket, falls through to notFound.
func (s *Server) registerRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
		Tags:        []string{"System"},
	}, func(ctx context.Context, input *struct{}) (*HealthOutput, error) {
		return &HealthOutput{Body: HealthBody{Status: "ok"}}, nil
	})
	s.router.Head("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	s.router.Handle("/metrics", promhttp.Handler())

	s.router.Get("/{bucket}", s.withBucket(s.bucket.ListObjects))
	s.router.Get("/{bucket}/", s.withBucket(s.bucket.ListObjects))
	s.router.Head("/{bucket}", s.withBucket(s.bucket.HeadBucket))
	s.router.Head("/{bucket}/", s.withBucket(s.bucket.HeadBucket))

	s.router.Get("/{bucket}/*", s.withBucketKey(s.object.GetObject))
	s.router.Head("/{bucket}/*", s.withBucketKey(s.object.HeadObject))
	s.router.Put("/{bucket}/*", s.withBucketKey(s.object.PutObject))
	s.router.Delete("/{bucket}/*", s.withBucketKey(s.object.DeleteObject))

	s.router.NotFound(notFound)
	s.router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		notFound(w, r)
	})
}

// withBucket wraps a bucket-level handler, rejecting any path whose bucket
// segment isn't the configured virtual bucket with NoSuchBucket.
func (s *Server) withBucket(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if chi.URLParam(r, "bucket") != s.virtualBucket {
			xmlutil.WriteError(w, gwerrors.ErrNoSuchBucket)
			return
		}
		next(w, r)
	}
}

// withBucketKey wraps an object-level handler, validating the bucket
// segment and extracting the key wildcard before calling next.
func (s *Server) withBucketKey(next func(http.ResponseWriter, *http.Request, string)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if chi.URLParam(r, "bucket") != s.virtualBucket {
			xmlutil.WriteError(w, gwerrors.ErrNoSuchBucket)
			return
		}
		key := chi.URLParam(r, "*")
		if key == "" {
			xmlutil.WriteError(w, gwerrors.ErrNoSuchBucket)
			return
		}
		next(w, r, key)
	}
}

func notFound(w http.ResponseWriter, r *http.Request) {
	xmlutil.WriteError(w, gwerrors.ErrNoSuchBucket)
}
