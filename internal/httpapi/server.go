// Package httpapi implements the external HTTP surface over the ingest
// engine and query pipeline: multipart upload, file listing/deletion, and
// the streaming/non-streaming chat endpoints, plus the ambient /healthz and
// /metrics endpoints.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ragserver/internal/ingest"
	"ragserver/internal/logging"
	"ragserver/internal/pipeline"
)

// Server bundles the engines the HTTP surface dispatches to.
type Server struct {
	Ingest      *ingest.Engine
	Pipeline    *pipeline.Pipeline
	CORSOrigins []string

	mux     *http.ServeMux
	metrics http.Handler
}

// New constructs a Server and registers its routes. registry is the
// Prometheus registry /metrics exposes; nil falls back to the default
// global registry.
func New(ingestEngine *ingest.Engine, pipe *pipeline.Pipeline, corsOrigins []string, registry *prometheus.Registry) *Server {
	s := &Server{Ingest: ingestEngine, Pipeline: pipe, CORSOrigins: corsOrigins}
	if registry != nil {
		s.metrics = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	} else {
		s.metrics = promhttp.Handler()
	}
	s.mux = http.NewServeMux()
	s.registerRoutes()
	return s
}

// ServeHTTP implements http.Handler, applying CORS and access logging around
// the registered routes.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.withCORS(s.logged(s.mux)).ServeHTTP(w, r)
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("POST /v1/upload", s.handleUpload)
	s.mux.HandleFunc("GET /v1/files", s.handleListFiles)
	s.mux.HandleFunc("DELETE /v1/files/{file_id}", s.handleDeleteFile)
	s.mux.HandleFunc("POST /v1/chat/stream", s.handleChatStream)
	s.mux.HandleFunc("POST /v1/chat", s.handleChatSync)
	s.mux.HandleFunc("GET /healthz", s.handleHealthz)
	s.mux.Handle("GET /metrics", s.metrics)
}

func (s *Server) logged(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logging.Log.WithFields(map[string]any{
			"method":      r.Method,
			"path":        r.URL.Path,
			"duration_ms": time.Since(start).Milliseconds(),
		}).Info("http request")
	})
}

func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := allowedOrigin(s.CORSOrigins, r.Header.Get("Origin"))
		if origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-User-ID")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func allowedOrigin(configured []string, requestOrigin string) string {
	for _, o := range configured {
		if o == "*" {
			return "*"
		}
		if o == requestOrigin {
			return requestOrigin
		}
	}
	return ""
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func requestContext(r *http.Request) context.Context { return r.Context() }
