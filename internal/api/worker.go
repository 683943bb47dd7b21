package api

import (
	"net/http"

	"github.com/pkg/errors"

	"github.com/SirClappington/enq/internal/ai"
	"github.com/SirClappington/enq/internal/worker"
)

type workerSuccess struct {
	Success bool           `json:"success"`
	JobID   string         `json:"jobId"`
	Result  ai.CountResult `json:"result"`
}

type workerFailure struct {
	Success bool   `json:"success"`
	JobID   string `json:"jobId,omitempty"`
	Error   string `json:"error"`
}

// runWorker processes at most one queued job. It is called by a scheduler.
func (s *Server) runWorker(w http.ResponseWriter, r *http.Request) {
	res, err := s.Worker.RunOnce(r.Context())
	if err != nil {
		fail := workerFailure{Error: err.Error()}
		var je *worker.JobError
		if errors.As(err, &je) {
			fail.JobID = je.JobID
			fail.Error = je.Err.Error()
		}
		writeJSON(w, http.StatusInternalServerError, fail)
		return
	}
	if res.Idle {
		writeJSON(w, http.StatusOK, map[string]string{"message": "no jobs in queue"})
		return
	}
	writeJSON(w, http.StatusOK, workerSuccess{Success: true, JobID: res.JobID, Result: res.Output})
}
