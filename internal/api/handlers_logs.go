package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	apperrors "github.com/url-indexer/internal/errors"
)

// handleListLogs handles GET /api/logs?appId=&batchId=&page=&pageSize=
func (s *Server) handleListLogs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	appID := q.Get("appId")
	if appID == "" {
		respondServiceError(w, apperrors.NewInvalidParameterError("appId", "is required"))
		return
	}

	page, err := parseIntParam(q.Get("page"), 1)
	if err != nil {
		respondServiceError(w, apperrors.NewInvalidParameterError("page", "must be a positive integer"))
		return
	}
	pageSize, err := parseIntParam(q.Get("pageSize"), 0)
	if err != nil {
		respondServiceError(w, apperrors.NewInvalidParameterError("pageSize", "must be a positive integer"))
		return
	}

	logs, err := s.logRepo.ListByApp(r.Context(), appID, q.Get("batchId"), page, pageSize)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"logs":  logs,
		"count": len(logs),
		"page":  page,
	})
}

// handleListBatches handles GET /api/batches?appId=&limit=
func (s *Server) handleListBatches(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	appID := q.Get("appId")
	if appID == "" {
		respondServiceError(w, apperrors.NewInvalidParameterError("appId", "is required"))
		return
	}

	limit, err := parseIntParam(q.Get("limit"), 0)
	if err != nil {
		respondServiceError(w, apperrors.NewInvalidParameterError("limit", "must be a positive integer"))
		return
	}

	batches, err := s.statsRepo.ListByApp(r.Context(), appID, limit)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"batches": batches,
		"count":   len(batches),
	})
}

// handleGetBatch handles GET /api/batches/{id}
func (s *Server) handleGetBatch(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	batch, err := s.statsRepo.GetByBatchID(r.Context(), id)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, batch)
}

func parseIntParam(raw string, fallback int) (int, error) {
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, err
	}
	if v < 0 {
		return 0, errors.New("negative value")
	}
	return v, nil
}
