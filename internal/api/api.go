// Package api provides the admin HTTP server for casabot.
//
// It exposes endpoints for health, conversation inspection, active timers,
// operator unpause and the manual reset.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/cocinacasera/casabot/internal/engine"
	"github.com/cocinacasera/casabot/internal/models"
)

// DefaultAddr is the default listen address for the admin API.
const DefaultAddr = ":8080"

// Server is the admin HTTP server.
type Server struct {
	engine *engine.Engine
	timers *engine.SimpleTimer
	addr   string
	routes map[string]http.HandlerFunc
	http   *http.Server
}

// Opts holds configuration options for the admin server.
type Opts struct {
	Addr   string
	Routes map[string]http.HandlerFunc
}

// Option configures the server.
type Option func(*Opts)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// WithRoute mounts an extra handler on the server, e.g. a transport webhook.
func WithRoute(pattern string, handler http.HandlerFunc) Option {
	return func(o *Opts) {
		if o.Routes == nil {
			o.Routes = make(map[string]http.HandlerFunc)
		}
		o.Routes[pattern] = handler
	}
}

// NewServer creates an admin server over the engine. timers may be nil when
// the timer implementation cannot enumerate active entries.
func NewServer(eng *engine.Engine, timers *engine.SimpleTimer, opts ...Option) *Server {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	return &Server{engine: eng, timers: timers, addr: cfg.Addr, routes: cfg.Routes}
}

// mux builds the request router: the built-in admin endpoints plus any extra
// routes mounted with WithRoute.
func (s *Server) mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.healthHandler)
	mux.HandleFunc("/conversations", s.conversationsHandler)
	mux.HandleFunc("/timers", s.timersHandler)
	mux.HandleFunc("/unpause", s.unpauseHandler)
	mux.HandleFunc("/reset", s.resetHandler)
	for pattern, handler := range s.routes {
		mux.HandleFunc(pattern, handler)
		slog.Info("Admin API mounted extra route", "pattern", pattern)
	}
	return mux
}

// Run starts the server and blocks until it stops.
func (s *Server) Run() error {
	s.http = &http.Server{
		Addr:              s.addr,
		Handler:           s.mux(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	slog.Info("Admin API listening", "addr", s.addr)
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("admin API server failed: %w", err)
	}
	return nil
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONResponse(w, http.StatusMethodNotAllowed, errorBody("method not allowed"))
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) conversationsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONResponse(w, http.StatusMethodNotAllowed, errorBody("method not allowed"))
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]int{"conversations": s.engine.Store().Count()})
}

func (s *Server) timersHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONResponse(w, http.StatusMethodNotAllowed, errorBody("method not allowed"))
		return
	}
	if s.timers == nil {
		writeJSONResponse(w, http.StatusOK, []models.TimerInfo{})
		return
	}
	writeJSONResponse(w, http.StatusOK, s.timers.ListActive())
}

func (s *Server) unpauseHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSONResponse(w, http.StatusMethodNotAllowed, errorBody("method not allowed"))
		return
	}
	user := r.URL.Query().Get("user")
	if user == "" {
		writeJSONResponse(w, http.StatusBadRequest, errorBody("user query parameter required"))
		return
	}
	if err := s.engine.Unpause(user); err != nil {
		switch {
		case errors.Is(err, models.ErrConversationNotFound):
			writeJSONResponse(w, http.StatusNotFound, errorBody(err.Error()))
		case errors.Is(err, models.ErrConversationNotPaused):
			writeJSONResponse(w, http.StatusConflict, errorBody(err.Error()))
		default:
			writeJSONResponse(w, http.StatusInternalServerError, errorBody(err.Error()))
		}
		return
	}
	slog.Info("Admin API unpaused conversation", "user", user)
	writeJSONResponse(w, http.StatusOK, map[string]string{"status": "unpaused", "user": user})
}

func (s *Server) resetHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSONResponse(w, http.StatusMethodNotAllowed, errorBody("method not allowed"))
		return
	}
	s.engine.ClearAll()
	slog.Info("Admin API triggered reset")
	writeJSONResponse(w, http.StatusOK, map[string]string{"status": "reset"})
}
