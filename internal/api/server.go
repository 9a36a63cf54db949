// Package api exposes the HTTP interface for the crawler service.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/shelfscan/shelfscan/internal/crawler"
	"github.com/shelfscan/shelfscan/internal/metrics"
	"github.com/shelfscan/shelfscan/internal/middleware"
)

// JobService is the slice of the orchestrator the HTTP layer needs.
type JobService interface {
	CreateJob(ctx context.Context, homepageURL string) (crawler.CrawlJob, error)
	StartJob(ctx context.Context, job crawler.CrawlJob)
	StopJob(ctx context.Context, jobID string) error
	JobStats(ctx context.Context, jobID string) (crawler.Stats, error)
}

// JobReader loads persisted jobs for the read endpoints.
type JobReader interface {
	GetJob(ctx context.Context, jobID string) (crawler.CrawlJob, error)
}

// Server wires HTTP handlers to the job service and store.
type Server struct {
	router chi.Router
	jobs   JobService
	store  JobReader
	logger *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(jobs JobService, store JobReader, logger *zap.Logger) *Server {
	s := &Server{
		jobs:   jobs,
		store:  store,
		logger: logger,
	}
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logging(logger))
	r.Use(middleware.Recover(logger))
	r.Use(middleware.Metrics)

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Route("/jobs", func(r chi.Router) {
			r.Post("/", s.submitJob)
			r.Route("/{job_id}", func(r chi.Router) {
				r.Get("/", s.getJob)
				r.Get("/stats", s.getJobStats)
				r.Post("/stop", s.stopJob)
			})
		})
	})

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type submitJobRequest struct {
	HomepageURL string `json:"homepage_url"`
}

func (s *Server) submitJob(w http.ResponseWriter, r *http.Request) {
	var req submitJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	job, err := s.jobs.CreateJob(r.Context(), req.HomepageURL)
	if err != nil {
		if errors.Is(err, crawler.ErrInvalidInput) {
			s.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.jobs.StartJob(r.Context(), job)
	s.writeJSON(w, http.StatusAccepted, map[string]string{
		"job_id": job.ID,
		"status": string(job.Status),
	})
}

func (s *Server) getJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	job, err := s.store.GetJob(r.Context(), jobID)
	if err != nil {
		s.writeError(w, http.StatusNotFound, "job not found")
		return
	}
	s.writeJSON(w, http.StatusOK, jobResponse(job))
}

func (s *Server) getJobStats(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	stats, err := s.jobs.JobStats(r.Context(), jobID)
	if err != nil {
		s.writeError(w, http.StatusNotFound, "job not found")
		return
	}
	s.writeJSON(w, http.StatusOK, stats)
}

func (s *Server) stopJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	if err := s.jobs.StopJob(r.Context(), jobID); err != nil {
		s.writeError(w, http.StatusConflict, err.Error())
		return
	}
	s.writeJSON(w, http.StatusAccepted, map[string]string{
		"job_id": jobID,
		"status": string(crawler.JobStatusStopping),
	})
}

// jobResponse flattens a job row into the wire shape.
func jobResponse(job crawler.CrawlJob) map[string]any {
	resp := map[string]any{
		"job_id":       job.ID,
		"homepage_url": job.HomepageURL,
		"status":       job.Status,
		"counters":     job.Counters,
		"errors":       job.Errors,
	}
	if job.Started != nil {
		resp["started_at"] = job.Started.Format(time.RFC3339)
	}
	if job.Finished != nil {
		resp["finished_at"] = job.Finished.Format(time.RFC3339)
	}
	return resp
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("write JSON failed", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
