package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/SirClappington/enq/internal/storage"
)

type submitRequest struct {
	HTMLContent string `json:"html_content"`
}

type submitResponse struct {
	JobID string `json:"jobId"`
}

type statusResponse struct {
	ID        string          `json:"id"`
	Status    string          `json:"status"`
	Meta      json.RawMessage `json:"meta"`
	CreatedAt time.Time       `json:"created_at"`
}

// submitJob persists the content as a queued job and pushes its id.
func (s *Server) submitJob(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.HTMLContent) == "" {
		writeError(w, http.StatusBadRequest, "html_content is required")
		return
	}

	ctx := r.Context()
	id, err := s.Store.CreateJob(ctx, req.HTMLContent)
	if err != nil {
		s.Log.Error("create job", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := s.Queue.Enqueue(ctx, id); err != nil {
		s.Log.Error("enqueue job", zap.String("job_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.Log.Info("job queued", zap.String("job_id", id), zap.Int("html_len", len(req.HTMLContent)))
	writeJSON(w, http.StatusAccepted, submitResponse{JobID: id})
}

func (s *Server) jobStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "jobId")

	j, err := s.Store.GetJob(r.Context(), id)
	if errors.Is(err, storage.ErrJobNotFound) {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	if err != nil {
		s.Log.Error("get job", zap.String("job_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, statusResponse{
		ID:        j.ID,
		Status:    string(j.Status),
		Meta:      j.Meta,
		CreatedAt: j.CreatedAt,
	})
}
