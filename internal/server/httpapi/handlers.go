package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/arbolado/treeregistry/internal/server/models"
	"github.com/arbolado/treeregistry/internal/server/services"
)

func writeJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(body)
}

// handleSubmit serves POST /api/v1/trees. The response carries the stored
// record and the presigned URL the client must upload the photo to.
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, KindInvalidArgument, "malformed request body")
		return
	}

	tree, uploadURL, err := s.trees.Submit(r.Context(), UIDFromContext(r.Context()), services.Submission{
		SpeciesName:  req.SpeciesName,
		EstimatedAge: req.EstimatedAge,
		HealthStatus: models.HealthStatus(req.HealthStatus),
		Notes:        req.Notes,
		Address:      req.Address,
		Location: models.GeoPoint{
			Latitude:  req.Location.Latitude,
			Longitude: req.Location.Longitude,
		},
		ImageFilename: req.ImageFilename,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, submitResponse{
		Tree:      treeFromRecord(tree, ""),
		UploadURL: uploadURL,
	})
}

// handlePublicTrees serves GET /api/v1/trees/public, the unauthenticated
// map feed.
func (s *Server) handlePublicTrees(w http.ResponseWriter, r *http.Request) {
	views, err := s.trees.PublicTrees(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, treeListResponse{Trees: treesFromViews(views)})
}

// handlePendingTrees serves GET /api/v1/trees/pending, the moderation
// queue. Authorization is enforced by the moderation service.
func (s *Server) handlePendingTrees(w http.ResponseWriter, r *http.Request) {
	views, err := s.moderation.PendingTrees(r.Context(), UIDFromContext(r.Context()))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, treeListResponse{Trees: treesFromViews(views)})
}

// handleApprove serves POST /api/v1/trees/{treeID}/approve.
func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	treeID := chi.URLParam(r, "treeID")
	if err := s.moderation.ApproveTree(r.Context(), UIDFromContext(r.Context()), treeID); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, approveResponse{Success: true})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
