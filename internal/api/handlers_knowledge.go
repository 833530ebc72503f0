package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/dgallion1/docloop/internal/knowledge"
	"github.com/dgallion1/docloop/internal/pipeline"
)

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRunBody)

	var body struct {
		Folder string `json:"folder"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		jsonError(w, "invalid json body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if body.Folder == "" {
		jsonError(w, "folder is required", http.StatusBadRequest)
		return
	}
	if err := checkFolder(body.Folder); err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	stats, err := s.orchestrator.Index(r.Context(), body.Folder)
	if err != nil {
		s.knowledgeError(w, "index", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"folder": body.Folder,
		"stats":  stats,
	})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	folder, query := q.Get("folder"), q.Get("q")
	if folder == "" || query == "" {
		jsonError(w, "folder and q query parameters are required", http.StatusBadRequest)
		return
	}
	if err := checkFolder(folder); err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	topK := knowledge.DefaultTopK
	if v := q.Get("top_k"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			jsonError(w, "top_k must be a positive integer", http.StatusBadRequest)
			return
		}
		topK = n
	}

	res, err := s.orchestrator.Search(r.Context(), folder, query, topK)
	if err != nil {
		s.knowledgeError(w, "search", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) knowledgeError(w http.ResponseWriter, op string, err error) {
	if errors.Is(err, pipeline.ErrNoEmbedder) {
		jsonError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	s.log.Error(op+" failed", "error", err)
	jsonError(w, op+" failed: "+err.Error(), http.StatusInternalServerError)
}
