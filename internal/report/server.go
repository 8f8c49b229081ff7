// Package report exposes completed runs over a small read-only HTTP API.
package report

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"crosspost/internal/runstore"
	"crosspost/internal/stats"
	"crosspost/internal/verify"
	"crosspost/pkg/logx"
)

// Source yields persisted runs. runstore.Store satisfies it; the app's
// in-memory index does too when persistence is disabled.
type Source interface {
	GetRun(ctx context.Context, runID string) (runstore.Record, error)
	LatestRunID(ctx context.Context) (string, error)
}

// Config tunes the HTTP listener. Zero timeouts fall back to defaults.
type Config struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

const defaultAddr = "127.0.0.1:8480"

type Server struct {
	http *http.Server
	src  Source
	log  logx.Logger
}

func New(cfg Config, src Source, log logx.Logger) *Server {
	if cfg.Addr == "" {
		cfg.Addr = defaultAddr
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 5 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = 60 * time.Second
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	s := &Server{src: src, log: log}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", s.handleHealth)
	r.Route("/runs", func(r chi.Router) {
		r.Get("/latest", s.handleLatest)
		r.Get("/{id}", s.handleRun)
		r.Get("/{id}/status", s.handleStatus)
		r.Get("/{id}/stats", s.handleStats)
	})

	s.http = &http.Server{
		Addr:         cfg.Addr,
		Handler:      r,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return s
}

// Start blocks serving until Shutdown is called or the listener fails.
func (s *Server) Start() error {
	s.log.Info("report server listening", logx.String("addr", s.http.Addr))
	err := s.http.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleLatest(w http.ResponseWriter, r *http.Request) {
	id, err := s.src.LatestRunID(r.Context())
	if err != nil {
		s.writeErr(w, err)
		return
	}
	rec, err := s.src.GetRun(r.Context(), id)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	rec, err := s.src.GetRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeErr(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	rec, err := s.src.GetRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeErr(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, reconcile(rec))
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	rec, err := s.src.GetRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeErr(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, stats.Summarize(rec.Batch, reconcile(rec)))
}

func reconcile(rec runstore.Record) map[string]verify.Status {
	checks := verify.CheckSet{RunID: rec.Batch.RunID}
	if rec.Checks != nil {
		checks = *rec.Checks
	}
	return verify.Merge(rec.Batch, checks)
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Debug("response encode failed", logx.Err(err))
	}
}

func (s *Server) writeErr(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	if errors.Is(err, runstore.ErrNotFound) {
		code = http.StatusNotFound
	}
	s.writeJSON(w, code, map[string]string{"error": err.Error()})
}
