package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/qwc999/infpoisk/internal/config"
	"github.com/qwc999/infpoisk/internal/corpus"
	"github.com/qwc999/infpoisk/internal/crawler"
	"github.com/qwc999/infpoisk/internal/model"
)

// StartRequest is the body of POST /api/crawl/start. Omitted fields keep
// the server's configured values.
type StartRequest struct {
	SeedURLs         []string `json:"seed_urls"`
	MaxPages         *int     `json:"max_pages,omitempty"`
	MaxDepth         *int     `json:"max_depth,omitempty"`
	OutputDir        string   `json:"output_dir,omitempty"`
	MinContentLength *int     `json:"min_content_length,omitempty"`
}

// apply copies the request onto cfg.
func (req *StartRequest) apply(cfg *config.Config) {
	if len(req.SeedURLs) > 0 {
		cfg.SeedURLs = req.SeedURLs
	}
	if req.MaxPages != nil {
		cfg.MaxPages = *req.MaxPages
	}
	if req.MaxDepth != nil {
		cfg.MaxDepth = *req.MaxDepth
	}
	if req.OutputDir != "" {
		cfg.OutputDir = req.OutputDir
	}
	if req.MinContentLength != nil {
		cfg.MinContentLength = *req.MinContentLength
	}
}

// maxBodyBytes bounds start request bodies.
const maxBodyBytes = 1 << 20

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	var req StartRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		s.respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	cfg := s.base.Clone()
	req.apply(cfg)

	runID, err := s.controller.Start(cfg)
	switch {
	case err == nil:
	case errors.Is(err, crawler.ErrAlreadyRunning):
		s.respondWithError(w, http.StatusConflict, "Crawl already in progress")
		return
	case errors.Is(err, crawler.ErrInvalidConfig), errors.Is(err, corpus.ErrOutputNotWritable):
		s.respondWithError(w, http.StatusBadRequest, err.Error())
		return
	default:
		s.logger.Error("failed to start crawl", "error", err)
		s.respondWithError(w, http.StatusInternalServerError, "Could not start crawl")
		return
	}

	s.respondWithJSON(w, http.StatusAccepted, map[string]string{
		"status": "started",
		"run_id": runID,
	})
}

func (s *Server) handleStop(w http.ResponseWriter, _ *http.Request) {
	if err := s.controller.Stop(); err != nil {
		if errors.Is(err, crawler.ErrNotRunning) {
			s.respondWithError(w, http.StatusConflict, "No crawl in progress")
			return
		}
		s.respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondWithJSON(w, http.StatusOK, map[string]string{"status": "stopping"})
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	s.respondWithJSON(w, http.StatusOK, s.controller.Status())
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		s.respondWithError(w, http.StatusNotFound, "Run index is disabled")
		return
	}

	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s.respondWithError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	runs, err := s.runs.ListRuns(r.Context(), limit)
	if err != nil {
		s.logger.Error("failed to list runs", "error", err)
		s.respondWithError(w, http.StatusInternalServerError, "Could not list runs")
		return
	}
	if runs == nil {
		runs = []*model.RunRecord{}
	}
	s.respondWithJSON(w, http.StatusOK, runs)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) respondWithError(w http.ResponseWriter, code int, message string) {
	s.respondWithJSON(w, code, map[string]string{"error": message})
}

func (s *Server) respondWithJSON(w http.ResponseWriter, code int, payload any) {
	response, err := json.Marshal(payload)
	if err != nil {
		s.logger.Error("failed to encode response", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(response)
}
