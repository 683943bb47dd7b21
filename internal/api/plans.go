package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

type planRequest struct {
	Content string   `json:"content"`
	URLs    []string `json:"urls"`
}

func (s *Server) planLinks(w http.ResponseWriter, r *http.Request) {
	var req planRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		writeError(w, http.StatusBadRequest, "content is required")
		return
	}
	if len(req.URLs) == 0 {
		writeError(w, http.StatusBadRequest, "urls are required")
		return
	}

	plan, err := s.Planner.PlanLinks(r.Context(), req.Content, req.URLs)
	if err != nil {
		s.Log.Warn("plan links", zap.Error(err))
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, plan)
}
