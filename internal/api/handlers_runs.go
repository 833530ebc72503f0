package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/dgallion1/docloop/internal/loop"
	"github.com/dgallion1/docloop/internal/pipeline"
)

const maxRunBody = 1 << 20

// createRunRequest mirrors pipeline.RunRequest with optional numbers so that
// omitted fields take the configured defaults.
type createRunRequest struct {
	Idea               string `json:"idea"`
	WriterGuidelines   string `json:"writer_guidelines"`
	ReviewerGuidelines string `json:"reviewer_guidelines"`
	ReferencesFolder   string `json:"references_folder"`
	MaxIters           *int   `json:"max_iters"`
	AcceptThreshold    *int   `json:"accept_threshold"`
	AcceptPolicy       string `json:"accept_policy"`
}

func (s *Server) handleCreateRun(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRunBody)

	var body createRunRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		jsonError(w, "invalid json body: "+err.Error(), http.StatusBadRequest)
		return
	}

	req, err := s.runRequest(body)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	job, err := s.orchestrator.Submit(req)
	if errors.Is(err, pipeline.ErrQueueFull) {
		jsonError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"run_id":   job.ID,
		"status":   pipeline.StatusQueued,
		"poll_url": fmt.Sprintf("/api/runs/%s", job.ID),
	})
}

// runRequest validates body and fills defaults from the server config.
func (s *Server) runRequest(body createRunRequest) (pipeline.RunRequest, error) {
	req := pipeline.RunRequest{
		Idea:               strings.TrimSpace(body.Idea),
		WriterGuidelines:   body.WriterGuidelines,
		ReviewerGuidelines: body.ReviewerGuidelines,
		ReferencesFolder:   body.ReferencesFolder,
		MaxIters:           s.cfg.MaxIters,
		AcceptThreshold:    s.cfg.AcceptThreshold,
		AcceptPolicy:       body.AcceptPolicy,
	}
	if req.AcceptPolicy == "" {
		req.AcceptPolicy = s.cfg.AcceptPolicy
	}
	if body.MaxIters != nil {
		req.MaxIters = *body.MaxIters
	}
	if body.AcceptThreshold != nil {
		req.AcceptThreshold = *body.AcceptThreshold
	}

	switch {
	case req.Idea == "":
		return req, errors.New("idea is required")
	case strings.TrimSpace(req.WriterGuidelines) == "":
		return req, errors.New("writer_guidelines is required")
	case strings.TrimSpace(req.ReviewerGuidelines) == "":
		return req, errors.New("reviewer_guidelines is required")
	case req.MaxIters < 1:
		return req, loop.ErrInvalidMaxIters
	case req.MaxIters > loop.HighIterationCap:
		return req, fmt.Errorf("max_iters must be at most %d", loop.HighIterationCap)
	case req.AcceptThreshold < 0 || req.AcceptThreshold > 100:
		return req, loop.ErrInvalidThreshold
	}
	if _, err := loop.ParseAcceptPolicy(req.AcceptPolicy); err != nil {
		return req, err
	}
	if req.ReferencesFolder != "" {
		if err := checkFolder(req.ReferencesFolder); err != nil {
			return req, err
		}
	}
	return req, nil
}

func (s *Server) handleRunStatus(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	job := s.orchestrator.GetJob(runID)
	if job == nil {
		jsonError(w, "run not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, job.Snapshot())
}

func checkFolder(folder string) error {
	info, err := os.Stat(folder)
	if err != nil {
		return fmt.Errorf("references folder %s does not exist", folder)
	}
	if !info.IsDir() {
		return fmt.Errorf("references folder %s is not a directory", folder)
	}
	return nil
}
