// Package api serves the device's local HTTP surface: probes, metrics,
// status and the capture journal.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/codemusic/safetyscribe/internal/health"
	"github.com/codemusic/safetyscribe/internal/journal"
	"github.com/codemusic/safetyscribe/internal/log"
	"github.com/codemusic/safetyscribe/internal/session"
)

// JournalReader exposes recent capture attempts. Optional.
type JournalReader interface {
	Recent(ctx context.Context, n int) ([]journal.Entry, error)
}

// Options configure the server.
type Options struct {
	Listen  string
	Version string
}

// Server is the local HTTP surface. It never touches session state
// directly, only through the injected read functions.
type Server struct {
	opts      Options
	healthMgr *health.Manager
	state     func() string
	lastInst  func() *session.InstructionSummary
	journal   JournalReader
	startedAt time.Time
	logger    zerolog.Logger
}

func NewServer(opts Options, mgr *health.Manager, state func() string, last func() *session.InstructionSummary, jr JournalReader) *Server {
	return &Server{
		opts:      opts,
		healthMgr: mgr,
		state:     state,
		lastInst:  last,
		journal:   jr,
		startedAt: time.Now(),
		logger:    log.WithComponent("api"),
	}
}

// Router builds the chi router with the standard middleware stack.
func (s *Server) Router() *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(httprate.LimitByIP(120, time.Minute))

	r.Get("/healthz", s.healthMgr.ServeHealth)
	r.Get("/readyz", s.healthMgr.ServeReady)
	r.Handle("/metrics", promhttp.Handler())
	r.Route("/api", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Get("/journal", s.handleJournal)
	})
	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.opts.Listen,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	s.logger.Info().Str("listen", s.opts.Listen).Msg("api listening")

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errc:
		return err
	}
}

type statusResponse struct {
	State           string                      `json:"state"`
	Version         string                      `json:"version"`
	UptimeSeconds   float64                     `json:"uptimeSeconds"`
	LastInstruction *session.InstructionSummary `json:"lastInstruction,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{
		State:         s.state(),
		Version:       s.opts.Version,
		UptimeSeconds: time.Since(s.startedAt).Seconds(),
	}
	if s.lastInst != nil {
		resp.LastInstruction = s.lastInst()
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleJournal(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		s.writeJSON(w, http.StatusNotFound, map[string]string{"error": "journal disabled"})
		return
	}

	n := 20
	if raw := r.URL.Query().Get("n"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 || v > 500 {
			s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "n must be 1..500"})
			return
		}
		n = v
	}

	entries, err := s.journal.Recent(r.Context(), n)
	if err != nil {
		s.logger.Error().Err(err).Msg("journal read failed")
		s.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "journal read failed"})
		return
	}
	if entries == nil {
		entries = []journal.Entry{}
	}
	s.writeJSON(w, http.StatusOK, entries)
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error().Err(err).Msg("response encode failed")
	}
}
