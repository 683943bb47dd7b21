// Package api exposes the job submission, status, worker trigger and link
// plan endpoints over HTTP.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/SirClappington/enq/internal/ai"
	"github.com/SirClappington/enq/internal/domain"
	"github.com/SirClappington/enq/internal/worker"
)

type JobStore interface {
	CreateJob(ctx context.Context, html string) (string, error)
	GetJob(ctx context.Context, id string) (*domain.Job, error)
}

type Enqueuer interface {
	Enqueue(ctx context.Context, jobID string) error
}

type Runner interface {
	RunOnce(ctx context.Context) (worker.Result, error)
}

type Planner interface {
	PlanLinks(ctx context.Context, content string, urls []string) (ai.PlanResult, error)
}

// Check reports the health of one dependency.
type Check func(ctx context.Context) error

type Deps struct {
	Store   JobStore
	Queue   Enqueuer
	Worker  Runner
	Planner Planner
	Checks  map[string]Check
	// QueueDepth, when set, adds the pending job count to /healthz.
	QueueDepth func(ctx context.Context) (int64, error)
	// WorkerToken, when set, must be presented as a bearer token to the
	// worker trigger.
	WorkerToken string
	Log         *zap.Logger
}

type Server struct{ Deps }

func New(d Deps) *Server { return &Server{d} }

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger(s.Log))
	r.Use(middleware.Recoverer)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.Get("/healthz", s.health)
	r.Route("/api", func(r chi.Router) {
		r.Post("/jobs", s.submitJob)
		r.Get("/jobs/{jobId}/status", s.jobStatus)
		r.Post("/plans", s.planLinks)

		r.Group(func(r chi.Router) {
			r.Use(bearerAuth(s.WorkerToken))
			r.Get("/worker/run", s.runWorker)
			r.Post("/worker/run", s.runWorker)
		})
	})
	return r
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	out := make(map[string]any, len(s.Checks)+1)
	for name, check := range s.Checks {
		if err := check(ctx); err != nil {
			out[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		out[name] = "ok"
	}
	if s.QueueDepth != nil {
		if n, err := s.QueueDepth(ctx); err != nil {
			out["queue_depth"] = err.Error()
			status = http.StatusServiceUnavailable
		} else {
			out["queue_depth"] = n
		}
	}
	writeJSON(w, status, out)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
