package api

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	apperrors "github.com/url-indexer/internal/errors"
	"github.com/url-indexer/internal/logging"
	"github.com/url-indexer/internal/types"
)

// CreateAppRequest is the request body for registering an app.
type CreateAppRequest struct {
	Name        string `json:"name"`
	Domain      string `json:"domain"`
	ClientEmail string `json:"clientEmail"`
	PrivateKey  string `json:"privateKey"`
}

// UpdateAppRequest is the request body for updating an app.
type UpdateAppRequest struct {
	Domain string `json:"domain"`
}

// handleCreateApp handles POST /api/apps
func (s *Server) handleCreateApp(w http.ResponseWriter, r *http.Request) {
	var req CreateAppRequest
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Domain = strings.TrimSpace(req.Domain)
	if req.Name == "" {
		respondServiceError(w, apperrors.NewInvalidParameterError("name", "must not be empty"))
		return
	}
	if req.Domain == "" {
		respondServiceError(w, apperrors.NewInvalidParameterError("domain", "must not be empty"))
		return
	}
	if req.ClientEmail == "" || req.PrivateKey == "" {
		respondServiceError(w, apperrors.NewInvalidParameterError("credentials", "clientEmail and privateKey are required"))
		return
	}

	app := &types.App{
		Name:        req.Name,
		Domain:      req.Domain,
		ClientEmail: req.ClientEmail,
		PrivateKey:  req.PrivateKey,
	}
	if err := s.appRepo.Create(r.Context(), app); err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, app)
}

// handleListApps handles GET /api/apps
func (s *Server) handleListApps(w http.ResponseWriter, r *http.Request) {
	apps, err := s.appRepo.List(r.Context())
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"apps":  apps,
		"count": len(apps),
	})
}

// handleGetApp handles GET /api/apps/{id}
func (s *Server) handleGetApp(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	app, err := s.appRepo.GetByID(r.Context(), id)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, app)
}

// handleUpdateApp handles PUT /api/apps/{id}
func (s *Server) handleUpdateApp(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req UpdateAppRequest
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}
	req.Domain = strings.TrimSpace(req.Domain)
	if req.Domain == "" {
		respondServiceError(w, apperrors.NewInvalidParameterError("domain", "must not be empty"))
		return
	}

	if err := s.appRepo.UpdateDomain(r.Context(), id, req.Domain); err != nil {
		respondServiceError(w, err)
		return
	}

	app, err := s.appRepo.GetByID(r.Context(), id)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, app)
}

// handleDeleteApp handles DELETE /api/apps/{id}
func (s *Server) handleDeleteApp(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if err := s.appRepo.Delete(r.Context(), id); err != nil {
		respondServiceError(w, err)
		return
	}

	// Cached statuses for the app are now orphaned; drop them.
	if err := s.urlCache.DeleteApp(r.Context(), id); err != nil {
		logging.FromContext(r.Context()).WithError(err).Warn("Failed to clear URL cache for deleted app")
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"id":      id,
	})
}
