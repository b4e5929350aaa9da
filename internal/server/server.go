// Package server exposes the admin HTTP surface: manual run triggers,
// scheduler introspection, corpus uploads, and data quality reads.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"LegalCorpus/internal/config"
	"LegalCorpus/internal/domain"
	"LegalCorpus/internal/ports"
	"LegalCorpus/internal/usecase"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// Deps wires the server's collaborators.
type Deps struct {
	Scheduler *usecase.Scheduler
	Pipeline  *usecase.Pipeline
	Reporter  *usecase.Reporter
	Store     ports.CorpusStore
	RunLog    ports.RunLog
	Logger    *slog.Logger
}

// Server is the admin HTTP listener.
type Server struct {
	scheduler *usecase.Scheduler
	pipeline  *usecase.Pipeline
	reporter  *usecase.Reporter
	store     ports.CorpusStore
	runlog    ports.RunLog
	logger    *slog.Logger
	http      *http.Server
}

// New builds the server and its router.
func New(deps Deps, cfg config.ServerConfig) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		scheduler: deps.Scheduler,
		pipeline:  deps.Pipeline,
		reporter:  deps.Reporter,
		store:     deps.Store,
		runlog:    deps.RunLog,
		logger:    logger,
	}
	s.http = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Router assembles the admin routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/admin", func(r chi.Router) {
		r.Post("/scheduler/run-once", s.handleRunOnce)
		r.Get("/scheduler/status", s.handleSchedulerStatus)
		r.Get("/scheduler/runs", s.handleListRuns)

		r.Post("/ingest/statutes", s.handleIngestStatutes)
		r.Post("/ingest/precedents", s.handleIngestPrecedents)
		r.Post("/ingest/urls", s.handleIngestURLs)

		r.Get("/data-quality", s.handleDataQuality)
		r.Get("/data-quality/history", s.handleQualityHistory)
		r.Get("/corpus/status", s.handleCorpusStatus)
	})

	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("admin server listening", "addr", s.http.Addr)
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.http.Shutdown(shutdownCtx)
}

func (s *Server) handleRunOnce(w http.ResponseWriter, r *http.Request) {
	runID, started, err := s.scheduler.TriggerNow(r.Context())
	if err != nil {
		s.logger.Error("manual run trigger", "error", err)
		writeError(w, http.StatusInternalServerError, "could not start run")
		return
	}
	if !started {
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":  "a run is already in progress",
			"run_id": runID,
		})
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"run_id":  runID,
		"started": true,
	})
}

func (s *Server) handleSchedulerStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.scheduler.Status())
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := listLimit(r.URL.Query().Get("limit"))
	runs, err := s.runlog.ListRuns(r.Context(), limit)
	if err != nil {
		s.logger.Error("list runs", "error", err)
		writeError(w, http.StatusInternalServerError, "could not list runs")
		return
	}
	if runs == nil {
		runs = []domain.RunRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

func (s *Server) handleIngestStatutes(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	s.runUpload(w, r, func(ctx context.Context) (usecase.Batch, error) {
		return s.pipeline.IngestStatuteCSV(ctx, r.Body)
	})
}

func (s *Server) handleIngestPrecedents(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	s.runUpload(w, r, func(ctx context.Context) (usecase.Batch, error) {
		return s.pipeline.IngestPrecedentCSV(ctx, r.Body)
	})
}

type ingestURLsRequest struct {
	State        string   `json:"state"`
	DocumentType string   `json:"document_type"`
	URLs         []string `json:"urls"`
}

func (s *Server) handleIngestURLs(w http.ResponseWriter, r *http.Request) {
	var req ingestURLsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	state := domain.State(strings.ToLower(strings.TrimSpace(req.State)))
	if !domain.SupportedState(state) {
		writeError(w, http.StatusBadRequest, "unsupported state")
		return
	}
	if len(req.URLs) == 0 {
		writeError(w, http.StatusBadRequest, "urls must not be empty")
		return
	}
	docType := domain.DocumentType(strings.ToLower(strings.TrimSpace(req.DocumentType)))
	if docType == "" {
		docType = domain.DocumentPrecedent
	}
	if docType != domain.DocumentStatute && docType != domain.DocumentPrecedent {
		writeError(w, http.StatusBadRequest, "unsupported document_type")
		return
	}

	s.runUpload(w, r, func(ctx context.Context) (usecase.Batch, error) {
		return s.pipeline.IngestURLs(ctx, state, docType, req.URLs)
	})
}

// runUpload executes an admin ingestion batch under the scheduler's
// single-run slot and renders the outcome.
func (s *Server) runUpload(w http.ResponseWriter, r *http.Request, fn func(context.Context) (usecase.Batch, error)) {
	runID, batch, err := s.scheduler.RunBatch(r.Context(), fn)
	if errors.Is(err, usecase.ErrRunActive) {
		writeJSON(w, http.StatusConflict, map[string]any{"error": err.Error()})
		return
	}
	if errors.Is(err, usecase.ErrBadUpload) {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":  err.Error(),
			"run_id": runID,
		})
		return
	}

	body := map[string]any{
		"run_id":   runID,
		"inserted": batch.Inserted,
		"updated":  batch.Updated,
		"rejected": batch.Rejected,
		"failed":   batch.Failed,
		"outcomes": batch.Outcomes,
	}
	if err != nil {
		s.logger.Error("ingestion batch aborted", "run_id", runID, "error", err)
		body["error"] = "batch aborted, partial outcomes included"
		writeJSON(w, http.StatusInternalServerError, body)
		return
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) handleDataQuality(w http.ResponseWriter, r *http.Request) {
	snap, err := s.reporter.Snapshot(r.Context())
	if err != nil {
		s.logger.Error("data quality snapshot", "error", err)
		writeError(w, http.StatusInternalServerError, "could not compute snapshot")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleQualityHistory(w http.ResponseWriter, r *http.Request) {
	limit := listLimit(r.URL.Query().Get("limit"))
	history, err := s.reporter.History(r.Context(), limit)
	if err != nil {
		s.logger.Error("data quality history", "error", err)
		writeError(w, http.StatusInternalServerError, "could not load history")
		return
	}
	if history == nil {
		history = []domain.QualitySnapshot{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"snapshots": history})
}

func (s *Server) handleCorpusStatus(w http.ResponseWriter, r *http.Request) {
	statutes, precedents, err := s.store.CorpusCounts(r.Context())
	if err != nil {
		s.logger.Error("corpus status", "error", err)
		writeError(w, http.StatusInternalServerError, "could not count corpus")
		return
	}
	if statutes == nil {
		statutes = []domain.StateCount{}
	}
	if precedents == nil {
		precedents = []domain.StateCount{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"statutes":   statutes,
		"precedents": precedents,
	})
}

func listLimit(raw string) int {
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return defaultListLimit
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
