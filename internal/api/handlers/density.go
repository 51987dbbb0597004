// Package handlers contains the HTTP handlers of the snow density API:
//   - Density prediction (POST /v1/density/{model})
//   - Hill SWE regression (POST /v1/swe/hill)
//   - Model listing (GET /v1/models)
//   - Artifact cache status and clearing (GET /v1/artifact, DELETE /v1/artifact/cache)
package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"snowdensity/internal/api"
	"snowdensity/internal/core"
)

// PredictionService is the contract the handler needs from api.Service.
type PredictionService interface {
	Predict(ctx context.Context, model string, req api.PredictRequest) (*api.PredictResponse, error)
	Hill(ctx context.Context, req api.HillRequest) (*api.HillResponse, error)
	Models() []api.ModelInfo
	Artifact() (*api.ArtifactStatus, error)
	ClearArtifact(ctx context.Context) error
}

// DensityHandler maps HTTP requests to PredictionService methods.
type DensityHandler struct {
	service      PredictionService
	maxBodyBytes int64
	logger       *slog.Logger
}

// NewDensityHandler creates a DensityHandler. maxBodyBytes <= 0 selects
// core.DefaultMaxBodyBytes.
func NewDensityHandler(svc PredictionService, maxBodyBytes int64, logger *slog.Logger) *DensityHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &DensityHandler{service: svc, maxBodyBytes: maxBodyBytes, logger: logger}
}

// RegisterRoutes mounts the endpoints onto the /v1 router.
func (h *DensityHandler) RegisterRoutes(r chi.Router) {
	r.Post("/density/{model}", h.HandlePredict)
	r.Post("/swe/hill", h.HandleHill)
	r.Get("/models", h.HandleListModels)
	r.Get("/artifact", h.HandleGetArtifact)
	r.Delete("/artifact/cache", h.HandleClearArtifact)
}

// HandlePredict handles POST /v1/density/{model}.
func (h *DensityHandler) HandlePredict(w http.ResponseWriter, r *http.Request) {
	var req api.PredictRequest
	if err := core.DecodeJSON(w, r, &req, h.maxBodyBytes); err != nil {
		core.Error(w, r, err)
		return
	}

	resp, err := h.service.Predict(r.Context(), chi.URLParam(r, "model"), req)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: resp})
}

// HandleHill handles POST /v1/swe/hill.
func (h *DensityHandler) HandleHill(w http.ResponseWriter, r *http.Request) {
	var req api.HillRequest
	if err := core.DecodeJSON(w, r, &req, h.maxBodyBytes); err != nil {
		core.Error(w, r, err)
		return
	}

	resp, err := h.service.Hill(r.Context(), req)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: resp})
}

// HandleListModels handles GET /v1/models.
func (h *DensityHandler) HandleListModels(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "public, max-age=300")
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: h.service.Models()})
}

// HandleGetArtifact handles GET /v1/artifact.
func (h *DensityHandler) HandleGetArtifact(w http.ResponseWriter, r *http.Request) {
	st, err := h.service.Artifact()
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: st})
}

// HandleClearArtifact handles DELETE /v1/artifact/cache.
func (h *DensityHandler) HandleClearArtifact(w http.ResponseWriter, r *http.Request) {
	if err := h.service.ClearArtifact(r.Context()); err != nil {
		core.Error(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
