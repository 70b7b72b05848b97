package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/Lavr-18/AI-agent-Olivia/internal/logging"
)

var log = logging.NewLogger("server")

// CatalogInfo is the catalog surface the status endpoints read.
type CatalogInfo interface {
	Size() int
	RefreshedAt() time.Time
	Refresh(ctx context.Context) error
}

// ContextCounter reports how many dialog contexts are live.
type ContextCounter interface {
	Len() int
}

// GatewayProbe checks connectivity to the message gateway.
type GatewayProbe interface {
	Probe(ctx context.Context) error
}

// Server exposes the operational HTTP surface: health, status and the
// token-guarded admin actions.
type Server struct {
	httpServer  *http.Server
	catalog     CatalogInfo
	contexts    ContextCounter
	gateway     GatewayProbe
	adminSecret string
	startedAt   time.Time
}

type Options struct {
	ListenAddr  string
	AdminSecret string
	Catalog     CatalogInfo
	Contexts    ContextCounter
	Gateway     GatewayProbe
}

func New(opts Options) *Server {
	s := &Server{
		catalog:     opts.Catalog,
		contexts:    opts.Contexts,
		gateway:     opts.Gateway,
		adminSecret: opts.AdminSecret,
		startedAt:   time.Now(),
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", s.handleHealthz)
	r.Get("/status", s.handleStatus)
	r.Post("/admin/refresh", s.requireAdmin(s.handleRefresh))

	s.httpServer = &http.Server{
		Addr:         opts.ListenAddr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	return s
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start runs the HTTP listener until Shutdown.
func (s *Server) Start() error {
	log.Info("HTTP server listening on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{
		"uptime_seconds": int(time.Since(s.startedAt).Seconds()),
		"started_at":     s.startedAt.Format(time.RFC3339),
	}
	if s.catalog != nil {
		refreshed := ""
		if t := s.catalog.RefreshedAt(); !t.IsZero() {
			refreshed = t.Format(time.RFC3339)
		}
		status["catalog"] = map[string]interface{}{
			"plants":       s.catalog.Size(),
			"refreshed_at": refreshed,
		}
	}
	if s.contexts != nil {
		status["active_contexts"] = s.contexts.Len()
	}
	if s.gateway != nil {
		gw := "ok"
		if err := s.gateway.Probe(r.Context()); err != nil {
			gw = err.Error()
		}
		status["gateway"] = gw
	}
	writeJSON(w, http.StatusOK, status)
}

// handleRefresh rebuilds the catalog on demand.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if s.catalog == nil {
		http.Error(w, "catalog is not configured", http.StatusServiceUnavailable)
		return
	}
	log.Info("Admin-triggered catalog refresh")
	if err := s.catalog.Refresh(r.Context()); err != nil {
		log.Error("Admin refresh failed: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "refreshed",
		"plants": s.catalog.Size(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error("Failed to encode response: %v", err)
	}
}
