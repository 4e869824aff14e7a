// Package main provides the API router setup.
package main

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/yokharian/catalog-engine/cmd/catalog-api/handlers"
	"github.com/yokharian/catalog-engine/cmd/catalog-api/middleware"
	"github.com/yokharian/catalog-engine/internal/config"
	"github.com/yokharian/catalog-engine/internal/observability"
	"github.com/yokharian/catalog-engine/pkg/catalog"
)

// NewRouter creates the main API router with all routes configured.
func NewRouter(logger *observability.Logger, engine *catalog.Engine, cfg *config.Config) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestLogger(logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS([]string{"*"}))
	r.Use(chimiddleware.Timeout(cfg.Server.ReadTimeout))

	// Health checks (unauthenticated)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"healthy","service":"catalog-engine"}`))
	})

	r.Get("/ready", func(w http.ResponseWriter, r *http.Request) {
		status := engine.Health(r.Context())
		w.Header().Set("Content-Type", "application/json")
		if status.Status != "ok" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(status)
	})

	// Initialize handlers
	ingestionHandler := handlers.NewIngestionHandler(logger, engine)
	searchHandler := handlers.NewSearchHandler(logger, engine)
	catalogHandler := handlers.NewCatalogHandler(logger, engine)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.RateLimit(middleware.RateLimitConfig{
			Enabled: cfg.RateLimit.Enabled,
			RPS:     cfg.RateLimit.RPS,
			Burst:   cfg.RateLimit.Burst,
		}))
		r.Use(middleware.Auth(middleware.AuthConfig{
			Enabled: cfg.Auth.Enabled,
			APIKeys: cfg.Auth.APIKeys,
		}))

		r.Post("/ingest", ingestionHandler.Ingest)
		r.Post("/search", searchHandler.Search)

		r.Get("/makes", catalogHandler.Makes)
		r.Get("/makes/{make}/models", catalogHandler.Models)
		r.Get("/vehicles/{stockID}", catalogHandler.Vehicle)
	})

	return r
}
