// Package status serves read-only health and runtime statistics over HTTP.
package status

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/edgard/keywatch/internal/database"
	"github.com/edgard/keywatch/internal/dispatch"
	"github.com/edgard/keywatch/internal/suppression"
)

const (
	journalWindow   = 24 * time.Hour
	recentAlerts    = 20
	shutdownTimeout = 5 * time.Second
)

// CacheStats reports suppression cache occupancy.
type CacheStats interface {
	Stats() suppression.Stats
}

// DispatchStats reports rate-limiter state.
type DispatchStats interface {
	Stats() dispatch.Stats
}

// Deps are the sources the endpoints read. Store may be nil.
type Deps struct {
	Cache      CacheStats
	Dispatcher DispatchStats
	Store      database.Store
	Clock      func() time.Time
	Logger     *slog.Logger
}

// StatsResponse is the body of GET /stats.
type StatsResponse struct {
	Suppression suppression.Stats       `json:"suppression"`
	Dispatch    dispatch.Stats          `json:"dispatch"`
	Journal     []database.OutcomeCount `json:"journal,omitempty"`
	Recent      []database.Alert        `json:"recent,omitempty"`
}

// Server is the status HTTP server.
type Server struct {
	deps   Deps
	log    *slog.Logger
	router chi.Router
	srv    *http.Server
}

// NewServer builds the router and an http.Server bound to listen.
func NewServer(listen string, deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}

	s := &Server{deps: deps, log: deps.Logger.With("component", "status")}

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Get("/healthz", s.health)
	r.Get("/stats", s.stats)
	s.router = r

	s.srv = &http.Server{
		Addr:              listen,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is cancelled and then shuts the server down.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return fmt.Errorf("status listen on %s: %w", s.srv.Addr, err)
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("Status server listening", "addr", ln.Addr().String())
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("status server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("status server shutdown: %w", err)
	}
	s.log.Info("Status server stopped")
	return nil
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{"process": "ok"}
	code := http.StatusOK

	if s.deps.Store != nil {
		if err := s.deps.Store.Ping(r.Context()); err != nil {
			s.log.WarnContext(r.Context(), "Journal ping failed", "error", err)
			checks["journal"] = "unreachable"
			code = http.StatusServiceUnavailable
		} else {
			checks["journal"] = "ok"
		}
	}

	writeJSON(w, code, checks)
}

func (s *Server) stats(w http.ResponseWriter, r *http.Request) {
	resp := StatsResponse{
		Suppression: s.deps.Cache.Stats(),
		Dispatch:    s.deps.Dispatcher.Stats(),
	}

	if s.deps.Store != nil {
		counts, err := s.deps.Store.CountAlertsByOutcome(r.Context(), s.deps.Clock().Add(-journalWindow))
		if err != nil {
			s.log.ErrorContext(r.Context(), "Failed to count journal outcomes", "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "journal unavailable"})
			return
		}
		resp.Journal = counts

		recent, err := s.deps.Store.RecentAlerts(r.Context(), recentAlerts)
		if err != nil {
			s.log.ErrorContext(r.Context(), "Failed to read recent alerts", "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "journal unavailable"})
			return
		}
		resp.Recent = recent
	}

	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}
