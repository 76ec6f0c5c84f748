// Package server exposes the fleet installer over HTTP: job
// submission, progress polling, log download, and the per-device
// diagnostics. The handlers are a thin boundary; all semantics live in
// the apkfleet package.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/apkfleet/apkfleet"
)

// Server binds HTTP routes to the orchestrator and progress store.
type Server struct {
	cfg      Config
	progress *apkfleet.Progress
	orch     *apkfleet.Orchestrator
}

// New builds a Server.
func New(cfg Config, orch *apkfleet.Orchestrator, progress *apkfleet.Progress) *Server {
	return &Server{cfg: cfg, orch: orch, progress: progress}
}

// Routes returns the HTTP mux for the API surface.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/install", s.handleInstall)
	mux.HandleFunc("GET /api/progress", s.handleProgress)
	mux.HandleFunc("GET /api/log", s.handleDownloadLog)
	mux.HandleFunc("POST /api/test-connections", s.handleTestConnections)
	mux.HandleFunc("POST /api/root-status", s.handleRootStatus)
	mux.HandleFunc("POST /api/device-info", s.handleDeviceInfo)
	mux.HandleFunc("POST /api/set-clock", s.handleSetClock)
	return mux
}

// ListenAndServe serves until ctx is cancelled, then shuts down within
// the configured grace period.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.cfg.Addr,
		Handler: s.Routes(),
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", s.cfg.Addr).Msg("apkfleet HTTP server listening")
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		grace := time.Duration(s.cfg.ShutdownGraceSeconds) * time.Second
		shutdownCtx, cancel := context.WithTimeout(context.Background(), grace)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Error().Err(err).Msg("write JSON response failed")
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return false
	}
	return true
}
