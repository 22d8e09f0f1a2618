// Package server provides the HTTP server for the stop-sign detector.
package server

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ayusman/stopsign/internal/app"
	"github.com/ayusman/stopsign/internal/server/api"
	"github.com/ayusman/stopsign/internal/store"
)

// Pipeline is the part of the application the server exposes.
type Pipeline interface {
	Status() app.Status
	LatestJPEG() []byte
	SetEnabled(enabled bool)
}

// Config holds the server configuration.
type Config struct {
	StaticDir   string
	SnapshotDir string
	Store       *store.Store
	Pipeline    Pipeline
	StreamFPS   int
	Logger      logrus.FieldLogger
}

// Server represents the HTTP server for the application.
type Server struct {
	config Config
	log    logrus.FieldLogger
	mux    *http.ServeMux
	hub    *Hub
	start  time.Time

	mu   sync.Mutex
	http *http.Server
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	log := config.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	log = log.WithField("component", "server")

	s := &Server{
		config: config,
		log:    log,
		mux:    http.NewServeMux(),
		hub:    NewHub(log),
		start:  time.Now(),
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes for the server.
func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)
	s.mux.Handle("/api/events", s.hub)

	if s.config.Store != nil {
		episodes := api.NewEpisodeHandler(s.config.Store)
		s.mux.Handle("/api/episodes", episodes)
		s.mux.Handle("/api/episodes/", episodes)
	}

	if s.config.Pipeline != nil {
		s.mux.HandleFunc("/api/status", s.handleStatus)
		s.mux.HandleFunc("/api/enabled", s.handleEnabled)
		s.mux.Handle("/api/stream", NewStreamHandler(s.config.Pipeline, s.config.StreamFPS))
	}

	if s.config.SnapshotDir != "" {
		fs := http.FileServer(http.Dir(s.config.SnapshotDir))
		s.mux.Handle("/snapshots/", http.StripPrefix("/snapshots/", fs))
	}

	if s.config.StaticDir != "" {
		fs := http.FileServer(http.Dir(s.config.StaticDir))
		s.mux.Handle("/", fs)
	}
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Hub returns the websocket hub. Register it as an app sink to broadcast notices.
func (s *Server) Hub() *Hub {
	return s.hub
}

// handleHealth handles GET requests to /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	api.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"uptime":  time.Since(s.start).String(),
		"clients": s.hub.Clients(),
	})
}

// handleStatus handles GET requests to /api/status.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	api.WriteJSON(w, http.StatusOK, s.config.Pipeline.Status())
}

type enabledRequest struct {
	Enabled *bool `json:"enabled"`
}

// handleEnabled handles PUT /api/enabled with body {"enabled": bool}.
func (s *Server) handleEnabled(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req enabledRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Enabled == nil {
		api.WriteError(w, http.StatusBadRequest, "enabled is required")
		return
	}

	s.config.Pipeline.SetEnabled(*req.Enabled)
	api.WriteJSON(w, http.StatusOK, s.config.Pipeline.Status())
}

// ListenAndServe starts the HTTP server on the given address. It returns nil
// after Shutdown.
func (s *Server) ListenAndServe(addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.logRequests(s),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.mu.Lock()
	s.http = srv
	s.mu.Unlock()

	s.log.WithField("addr", addr).Info("HTTP server listening")
	err := srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown closes websocket clients and gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.Close()

	s.mu.Lock()
	srv := s.http
	s.mu.Unlock()

	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}
