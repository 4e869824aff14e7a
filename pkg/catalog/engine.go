// Package catalog provides the embeddable public API of the catalog engine.
// It wires storage, caching, ingestion and search together from a single
// configuration so binaries and host applications share one construction path.
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	// Database drivers registered for storage.Open.
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/yokharian/catalog-engine/internal/cache"
	"github.com/yokharian/catalog-engine/internal/config"
	"github.com/yokharian/catalog-engine/internal/ingest"
	"github.com/yokharian/catalog-engine/internal/monitoring"
	"github.com/yokharian/catalog-engine/internal/observability"
	"github.com/yokharian/catalog-engine/internal/search"
	"github.com/yokharian/catalog-engine/internal/storage"
)

// Engine bundles the catalog subsystems behind one handle.
type Engine struct {
	logger   *observability.Logger
	cfg      *config.Config
	db       *sql.DB
	store    storage.Store
	cache    cache.Client
	audit    *monitoring.IngestAuditLog
	pipeline *ingest.Pipeline
	planner  *search.Planner
}

// Open constructs a fully wired engine from configuration: database handle,
// schema, cache, audit log, ingestion pipeline and query planner.
func Open(cfg *config.Config) (*Engine, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	logger := observability.NewLogger(observability.LogConfig{
		Level:       cfg.Observability.LogLevel,
		Format:      cfg.Observability.LogFormat,
		ServiceName: cfg.Observability.ServiceName,
	})

	db, err := storage.Open(cfg.Database.Driver, cfg.DatabaseDSN())
	if err != nil {
		return nil, err
	}
	switch cfg.Database.Driver {
	case "postgres":
		db.SetMaxOpenConns(cfg.Database.Postgres.MaxOpenConns)
		db.SetMaxIdleConns(cfg.Database.Postgres.MaxIdleConns)
		db.SetConnMaxLifetime(cfg.Database.Postgres.ConnMaxLifetime)
	case "sqlite":
		db.SetMaxOpenConns(cfg.Database.SQLite.MaxOpenConns)
	}

	ctx := context.Background()
	if err := storage.InitSchema(ctx, db, cfg.Database.Driver); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	var cacheClient cache.Client
	switch cfg.Cache.Driver {
	case "redis":
		cacheClient, err = cache.NewRedisClient(cache.RedisConfig{
			Addr:     cfg.Cache.Redis.Addr,
			Password: cfg.Cache.Redis.Password,
			DB:       cfg.Cache.Redis.DB,
			PoolSize: cfg.Cache.Redis.PoolSize,
			Prefix:   cfg.Cache.KeyPrefix,
		})
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("init redis cache: %w", err)
		}
	default:
		cacheClient = cache.NewMemoryClient(cfg.Cache.MaxEntries)
	}

	audit, err := monitoring.NewIngestAuditLog(logger, cfg.Ingest.AuditLogPath)
	if err != nil {
		cacheClient.Close()
		db.Close()
		return nil, fmt.Errorf("open audit log: %w", err)
	}

	store := storage.NewSQLStore(db)

	engine := &Engine{
		logger: logger,
		cfg:    cfg,
		db:     db,
		store:  store,
		cache:  cacheClient,
		audit:  audit,
	}
	engine.wire()

	logger.Info().
		Str("database", cfg.Database.Driver).
		Str("cache", cfg.Cache.Driver).
		Msg("Catalog engine ready")
	return engine, nil
}

// NewInMemory constructs an engine backed entirely by in-process storage and
// cache. Intended for demos and tests; nothing is persisted.
func NewInMemory(logger *observability.Logger) *Engine {
	if logger == nil {
		logger = observability.DefaultLogger()
	}

	engine := &Engine{
		logger: logger,
		cfg:    config.DefaultConfig(),
		store:  storage.NewMemoryStore(),
		cache:  cache.NewMemoryClient(0),
	}
	engine.wire()
	return engine
}

func (e *Engine) wire() {
	e.pipeline = ingest.NewPipeline(e.logger, e.store, e.audit, e.cache, ingest.PipelineConfig{
		BatchSize: e.cfg.Ingest.BatchSize,
	})

	searchCache := e.cache
	if !e.cfg.Search.CacheUniverses {
		searchCache = nil
	}
	e.planner = search.NewPlanner(e.logger, e.store, searchCache, search.PlannerConfig{
		Threshold:   e.cfg.Search.FuzzyThreshold,
		UniverseTTL: e.cfg.Search.UniverseCacheTTL,
	})
}

// IngestReader runs one ingestion job over a CSV stream. The name labels the
// source in the report and audit trail.
func (e *Engine) IngestReader(ctx context.Context, r io.Reader, name string) (*ingest.Report, error) {
	source, err := ingest.NewCSVSource(r, name)
	if err != nil {
		return nil, fmt.Errorf("open csv source: %w", err)
	}
	return e.pipeline.Run(ctx, source)
}

// IngestFile runs one ingestion job over a CSV file on disk.
func (e *Engine) IngestFile(ctx context.Context, path string) (*ingest.Report, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open feed file: %w", err)
	}
	defer f.Close()

	return e.IngestReader(ctx, f, filepath.Base(path))
}

// Search runs a catalog search for the given preferences.
func (e *Engine) Search(ctx context.Context, prefs search.Preferences) ([]storage.Vehicle, error) {
	return e.planner.Search(ctx, prefs)
}

// Makes lists the distinct makes in the catalog, sorted ascending. Reads go
// through the planner's universe cache.
func (e *Engine) Makes(ctx context.Context) ([]string, error) {
	return e.planner.Makes(ctx)
}

// Models lists the distinct models in the catalog, optionally scoped to one
// make, sorted ascending. Reads go through the planner's universe cache.
func (e *Engine) Models(ctx context.Context, scopeMake string) ([]string, error) {
	return e.planner.Models(ctx, scopeMake)
}

// Vehicle returns a single catalog entry by stock id.
func (e *Engine) Vehicle(ctx context.Context, stockID int64) (*storage.Vehicle, error) {
	return e.store.GetByStockID(ctx, stockID)
}

// Count returns the number of catalog entries.
func (e *Engine) Count(ctx context.Context) (int64, error) {
	return e.store.Count(ctx)
}

// HealthStatus reports per-component health.
type HealthStatus struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	Cache    string `json:"cache"`
}

// Health pings the engine's backing services.
func (e *Engine) Health(ctx context.Context) HealthStatus {
	status := HealthStatus{Status: "ok", Database: "ok", Cache: "ok"}

	if e.db != nil {
		if err := e.db.PingContext(ctx); err != nil {
			status.Status = "degraded"
			status.Database = err.Error()
		}
	}
	if e.cache != nil {
		if _, err := e.cache.Get(ctx, "health:probe"); err != nil && !errors.Is(err, cache.ErrCacheMiss) {
			status.Status = "degraded"
			status.Cache = err.Error()
		}
	}
	return status
}

// Logger exposes the engine's logger for binaries that want to share it.
func (e *Engine) Logger() *observability.Logger {
	return e.logger
}

// Config returns the configuration the engine was built from.
func (e *Engine) Config() *config.Config {
	return e.cfg
}

// Close releases the audit log, cache and database handles.
func (e *Engine) Close() error {
	var firstErr error
	if e.audit != nil {
		if err := e.audit.Close(); err != nil {
			firstErr = err
		}
	}
	if e.cache != nil {
		if err := e.cache.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if e.db != nil {
		if err := e.db.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
