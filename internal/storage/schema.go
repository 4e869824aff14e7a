package storage

import (
	"context"
	"fmt"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS vehicles (
	stock_id    BIGINT PRIMARY KEY,
	make        TEXT NOT NULL,
	model       TEXT NOT NULL,
	year        INTEGER NOT NULL,
	version     TEXT NOT NULL DEFAULT '',
	km          INTEGER NOT NULL,
	price       DOUBLE PRECISION NOT NULL,
	features    JSONB NOT NULL DEFAULT '{}',
	dims        JSONB,
	raw_row     JSONB,
	fingerprint TEXT NOT NULL DEFAULT '',
	ingested_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_vehicles_make ON vehicles (make);
CREATE INDEX IF NOT EXISTS idx_vehicles_model ON vehicles (model);
CREATE INDEX IF NOT EXISTS idx_vehicles_price ON vehicles (price);
CREATE INDEX IF NOT EXISTS idx_vehicles_km ON vehicles (km);
CREATE INDEX IF NOT EXISTS idx_vehicles_year ON vehicles (year);
`

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS vehicles (
	stock_id    INTEGER PRIMARY KEY,
	make        TEXT NOT NULL,
	model       TEXT NOT NULL,
	year        INTEGER NOT NULL,
	version     TEXT NOT NULL DEFAULT '',
	km          INTEGER NOT NULL,
	price       REAL NOT NULL,
	features    TEXT NOT NULL DEFAULT '{}',
	dims        TEXT,
	raw_row     TEXT,
	fingerprint TEXT NOT NULL DEFAULT '',
	ingested_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_vehicles_make ON vehicles (make);
CREATE INDEX IF NOT EXISTS idx_vehicles_model ON vehicles (model);
CREATE INDEX IF NOT EXISTS idx_vehicles_price ON vehicles (price);
CREATE INDEX IF NOT EXISTS idx_vehicles_km ON vehicles (km);
CREATE INDEX IF NOT EXISTS idx_vehicles_year ON vehicles (year);
`

// InitSchema creates the vehicles table and its indexes if they do not exist.
// Safe to run repeatedly.
func InitSchema(ctx context.Context, db DB, driverName string) error {
	var schema string
	switch driverName {
	case "postgres":
		schema = postgresSchema
	case "sqlite", "sqlite3":
		schema = sqliteSchema
	default:
		return fmt.Errorf("unknown database driver %q", driverName)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return classifyStoreErr(fmt.Errorf("create schema: %w", err))
	}
	return nil
}
