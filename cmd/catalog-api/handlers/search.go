package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/yokharian/catalog-engine/internal/observability"
	"github.com/yokharian/catalog-engine/internal/search"
	"github.com/yokharian/catalog-engine/internal/storage"
	"github.com/yokharian/catalog-engine/pkg/catalog"
)

// SearchHandler handles catalog search requests.
type SearchHandler struct {
	logger *observability.Logger
	engine *catalog.Engine
}

// NewSearchHandler creates a new search handler.
func NewSearchHandler(logger *observability.Logger, engine *catalog.Engine) *SearchHandler {
	return &SearchHandler{logger: logger, engine: engine}
}

// SearchResponse wraps search results with their count.
type SearchResponse struct {
	Count   int               `json:"count"`
	Results []storage.Vehicle `json:"results"`
}

// Search handles POST /api/v1/search with a preferences JSON body.
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var prefs search.Preferences
	if err := json.NewDecoder(r.Body).Decode(&prefs); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	results, err := h.engine.Search(ctx, prefs)
	if err != nil {
		h.logger.WithContext(ctx).Error().Err(err).Msg("Search failed")
		h.writeError(w, http.StatusInternalServerError, "search failed", err.Error())
		return
	}
	if results == nil {
		results = []storage.Vehicle{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(SearchResponse{Count: len(results), Results: results})
}

func (h *SearchHandler) writeError(w http.ResponseWriter, status int, message, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	resp := map[string]string{"error": message}
	if detail != "" {
		resp["detail"] = detail
	}
	json.NewEncoder(w).Encode(resp)
}
