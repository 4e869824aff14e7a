package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/yokharian/catalog-engine/internal/observability"
	"github.com/yokharian/catalog-engine/internal/storage"
	"github.com/yokharian/catalog-engine/pkg/catalog"
)

// CatalogHandler handles catalog browsing requests.
type CatalogHandler struct {
	logger *observability.Logger
	engine *catalog.Engine
}

// NewCatalogHandler creates a new catalog handler.
func NewCatalogHandler(logger *observability.Logger, engine *catalog.Engine) *CatalogHandler {
	return &CatalogHandler{logger: logger, engine: engine}
}

// Makes handles GET /api/v1/makes.
func (h *CatalogHandler) Makes(w http.ResponseWriter, r *http.Request) {
	makes, err := h.engine.Makes(r.Context())
	if err != nil {
		h.logger.WithContext(r.Context()).Error().Err(err).Msg("Make listing failed")
		h.writeError(w, http.StatusInternalServerError, "listing failed", err.Error())
		return
	}
	if makes == nil {
		makes = []string{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string][]string{"makes": makes})
}

// Models handles GET /api/v1/makes/{make}/models.
func (h *CatalogHandler) Models(w http.ResponseWriter, r *http.Request) {
	scopeMake := chi.URLParam(r, "make")

	models, err := h.engine.Models(r.Context(), scopeMake)
	if err != nil {
		h.logger.WithContext(r.Context()).Error().Err(err).Msg("Model listing failed")
		h.writeError(w, http.StatusInternalServerError, "listing failed", err.Error())
		return
	}
	if models == nil {
		models = []string{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"make": scopeMake, "models": models})
}

// Vehicle handles GET /api/v1/vehicles/{stockID}.
func (h *CatalogHandler) Vehicle(w http.ResponseWriter, r *http.Request) {
	stockID, err := strconv.ParseInt(chi.URLParam(r, "stockID"), 10, 64)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid stock id", err.Error())
		return
	}

	vehicle, err := h.engine.Vehicle(r.Context(), stockID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "vehicle not found", "")
			return
		}
		h.logger.WithContext(r.Context()).Error().Err(err).Int64("stock_id", stockID).Msg("Vehicle lookup failed")
		h.writeError(w, http.StatusInternalServerError, "lookup failed", err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(vehicle)
}

func (h *CatalogHandler) writeError(w http.ResponseWriter, status int, message, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	resp := map[string]string{"error": message}
	if detail != "" {
		resp["detail"] = detail
	}
	json.NewEncoder(w).Encode(resp)
}
