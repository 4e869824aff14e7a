// Package handlers provides HTTP handlers for the catalog API.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/yokharian/catalog-engine/internal/observability"
	"github.com/yokharian/catalog-engine/internal/storage"
	"github.com/yokharian/catalog-engine/pkg/catalog"
)

// maxUploadMemory bounds how much of a multipart upload is buffered in memory
// before spilling to disk.
const maxUploadMemory = 32 << 20

// IngestionHandler handles CSV feed ingestion requests.
type IngestionHandler struct {
	logger *observability.Logger
	engine *catalog.Engine
}

// NewIngestionHandler creates a new ingestion handler.
func NewIngestionHandler(logger *observability.Logger, engine *catalog.Engine) *IngestionHandler {
	return &IngestionHandler{logger: logger, engine: engine}
}

// IngestPathRequest asks the server to ingest a feed file it can reach on its
// own filesystem.
type IngestPathRequest struct {
	Path string `json:"path"`
}

// Ingest handles POST /api/v1/ingest. The feed arrives either as a multipart
// upload in the "file" field, as a JSON body naming a server-side path, or as
// a raw CSV request body.
func (h *IngestionHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	contentType := r.Header.Get("Content-Type")

	switch {
	case strings.HasPrefix(contentType, "multipart/form-data"):
		if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid multipart body", err.Error())
			return
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "file field is required", err.Error())
			return
		}
		defer file.Close()

		h.respond(w, r, header.Filename, func() (any, error) {
			return h.engine.IngestReader(ctx, file, header.Filename)
		})

	case strings.HasPrefix(contentType, "application/json"):
		var req IngestPathRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
			return
		}
		if req.Path == "" {
			h.writeError(w, http.StatusBadRequest, "path is required", "")
			return
		}

		h.respond(w, r, req.Path, func() (any, error) {
			return h.engine.IngestFile(ctx, req.Path)
		})

	default:
		name := r.Header.Get("X-Feed-Name")
		if name == "" {
			name = "upload.csv"
		}

		h.respond(w, r, name, func() (any, error) {
			return h.engine.IngestReader(ctx, r.Body, name)
		})
	}
}

func (h *IngestionHandler) respond(w http.ResponseWriter, r *http.Request, source string, run func() (any, error)) {
	h.logger.WithContext(r.Context()).Info().Str("source", source).Msg("Starting feed ingestion")

	report, err := run()
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, storage.ErrStoreUnavailable) {
			status = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(map[string]any{
			"error":  "ingestion failed",
			"detail": err.Error(),
			"report": report,
		})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(report)
}

func (h *IngestionHandler) writeError(w http.ResponseWriter, status int, message, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	resp := map[string]string{"error": message}
	if detail != "" {
		resp["detail"] = detail
	}
	json.NewEncoder(w).Encode(resp)
}
