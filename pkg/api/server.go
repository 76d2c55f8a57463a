// Package api serves the loopback HTTP interface.
//
// The handlers are a thin CRUD surface: every folder-affecting request is
// delegated to the transaction coordinator and everything else to the
// stores, so the HTTP layer holds no storage logic of its own.
package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/pszemraj/localpaste/pkg/config"
	"github.com/pszemraj/localpaste/pkg/log"
	"github.com/pszemraj/localpaste/pkg/metrics"
	"github.com/pszemraj/localpaste/pkg/store"
	"github.com/pszemraj/localpaste/pkg/txn"
)

// PasteLockChecker reports whether the GUI holds a paste open; mutations of
// a held paste are refused with 423 Locked.
type PasteLockChecker interface {
	IsPasteLocked(id string) bool
}

// noLocks is the default checker for headless serving.
type noLocks struct{}

func (noLocks) IsPasteLocked(string) bool { return false }

// Server wraps the HTTP server.
type Server struct {
	httpServer *http.Server
	cfg        *config.Config
}

// New builds the server around the coordinator and stores.
func New(cfg *config.Config, coord *txn.Coordinator, pastes *store.PasteStore, folders *store.FolderStore, locks PasteLockChecker) *Server {
	if locks == nil {
		locks = noLocks{}
	}
	h := &handler{
		cfg:     cfg,
		coord:   coord,
		pastes:  pastes,
		folders: folders,
		locks:   locks,
		logger:  log.WithComponent("api"),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	if cfg.AllowPublicAccess {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type"},
		}))
	}

	r.Route("/api", func(r chi.Router) {
		r.Post("/paste", h.createPaste)
		r.Get("/paste/{id}", h.getPaste)
		r.Put("/paste/{id}", h.updatePaste)
		r.Delete("/paste/{id}", h.deletePaste)
		r.Get("/pastes", h.listPastes)
		r.Get("/search", h.search)

		r.Group(func(r chi.Router) {
			r.Use(deprecationHeaders)
			r.Post("/folder", h.createFolder)
			r.Put("/folder/{id}", h.updateFolder)
			r.Delete("/folder/{id}", h.deleteFolder)
			r.Get("/folders", h.listFolders)
		})
	})
	r.Method(http.MethodGet, "/metrics", metrics.Handler())
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	return &Server{
		cfg: cfg,
		httpServer: &http.Server{
			Addr:         fmt.Sprintf("127.0.0.1:%d", cfg.Port),
			Handler:      r,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
	}
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

// Addr returns the bind address.
func (s *Server) Addr() string { return s.httpServer.Addr }

// ListenAndServe starts serving. Loopback-only unless public access was
// explicitly enabled.
func (s *Server) ListenAndServe() error {
	if s.cfg.AllowPublicAccess {
		s.httpServer.Addr = fmt.Sprintf(":%d", s.cfg.Port)
	}
	return s.httpServer.ListenAndServe()
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// requestLogger emits one structured line per request and feeds the API
// metrics.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := chi.RouteContext(r.Context()).RoutePattern()
		elapsed := time.Since(start)
		metrics.APIRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(ww.Status())).Inc()
		metrics.APIRequestDuration.WithLabelValues(route).Observe(elapsed.Seconds())

		logger := log.WithComponent("api")
		logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("elapsed", elapsed).
			Msg("request")
	})
}

// deprecationHeaders marks the folder endpoints as deprecated.
func deprecationHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Deprecation", "true")
		w.Header().Set("Sunset", "Sat, 01 Jan 2028 00:00:00 GMT")
		w.Header().Set("Warning", `299 - "folder HTTP endpoints are deprecated"`)
		w.Header().Set("Link", `</api/pastes>; rel="successor-version"`)
		next.ServeHTTP(w, r)
	})
}
