package storage

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/yokharian/catalog-engine/internal/normalize"
)

// DB represents the database handle the SQL store requires. *sql.DB satisfies
// it; tests substitute a mock.
type DB interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
	PingContext(ctx context.Context) error
}

// distinctLimit caps DistinctValues listings so a pathological feed cannot
// balloon the fuzzy-match universe.
const distinctLimit = 1000

// SQLStore implements Store over database/sql. The same statements run on
// postgres and sqlite: both accept $n placeholders, CURRENT_TIMESTAMP and
// ON CONFLICT upserts.
type SQLStore struct {
	db DB
}

// NewSQLStore creates a SQL-backed catalog store.
func NewSQLStore(db DB) *SQLStore {
	return &SQLStore{db: db}
}

// Open opens a database handle for the given driver ("postgres" or "sqlite")
// and DSN. The matching driver must be registered by the importing binary.
func Open(driverName, dsn string) (*sql.DB, error) {
	name := driverName
	if name == "sqlite" {
		name = "sqlite3"
	}
	db, err := sql.Open(name, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", driverName, err)
	}
	return db, nil
}

const vehicleColumns = `stock_id, make, model, year, version, km, price, features, dims, raw_row, fingerprint, ingested_at`

const upsertVehicleQuery = `
	INSERT INTO vehicles (stock_id, make, model, year, version, km, price, features, dims, raw_row, fingerprint, ingested_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, CURRENT_TIMESTAMP)
	ON CONFLICT (stock_id) DO UPDATE SET
		make = excluded.make,
		model = excluded.model,
		year = excluded.year,
		version = excluded.version,
		km = excluded.km,
		price = excluded.price,
		features = excluded.features,
		dims = excluded.dims,
		raw_row = excluded.raw_row,
		fingerprint = excluded.fingerprint,
		ingested_at = CURRENT_TIMESTAMP
	WHERE vehicles.fingerprint <> excluded.fingerprint
`

// UpsertBatch writes the batch inside one transaction. Any row failure rolls
// the whole batch back. A conflicting row whose fingerprint is unchanged is
// left untouched and counted as Unchanged.
func (s *SQLStore) UpsertBatch(ctx context.Context, vehicles []Vehicle) (UpsertResult, error) {
	if len(vehicles) == 0 {
		return UpsertResult{}, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return UpsertResult{}, classifyStoreErr(fmt.Errorf("begin batch: %w", err))
	}

	var res UpsertResult
	for i := range vehicles {
		v := &vehicles[i]
		if v.Fingerprint == "" {
			v.Fingerprint = v.ComputeFingerprint()
		}
		features, dims, rawRow, err := marshalVehicleJSON(v)
		if err != nil {
			_ = tx.Rollback()
			return UpsertResult{}, fmt.Errorf("encode stock_id %d: %w", v.StockID, err)
		}

		result, err := tx.ExecContext(ctx, upsertVehicleQuery,
			v.StockID, v.Make, v.Model, v.Year, v.Version, v.KM, v.Price,
			features, dims, rawRow, v.Fingerprint,
		)
		if err != nil {
			_ = tx.Rollback()
			return UpsertResult{}, classifyStoreErr(fmt.Errorf("upsert stock_id %d: %w", v.StockID, err))
		}
		if n, err := result.RowsAffected(); err == nil && n == 0 {
			res.Unchanged++
		} else {
			res.Written++
		}
	}

	if err := tx.Commit(); err != nil {
		return UpsertResult{}, classifyStoreErr(fmt.Errorf("commit batch: %w", err))
	}
	return res, nil
}

// DistinctValues lists the distinct values of make or model, sorted ascending.
// A non-empty scopeMake restricts model listing to vehicles of that make.
func (s *SQLStore) DistinctValues(ctx context.Context, field DistinctField, scopeMake string) ([]string, error) {
	if field != DistinctMake && field != DistinctModel {
		return nil, fmt.Errorf("unknown distinct field %q", field)
	}

	query := fmt.Sprintf(`SELECT DISTINCT %s FROM vehicles`, field)
	args := []interface{}{}
	if field == DistinctModel && scopeMake != "" {
		query += ` WHERE make = $1`
		args = append(args, scopeMake)
	}
	query += fmt.Sprintf(` ORDER BY 1 LIMIT %d`, distinctLimit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classifyStoreErr(err)
	}
	defer rows.Close()

	var values []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return values, rows.Err()
}

// Query returns vehicles matching the filter, ordered by stock id ascending.
// Stock-id order is the store's stable return order, so identical queries
// against an unmodified catalog return identical sequences.
func (s *SQLStore) Query(ctx context.Context, f Filter) ([]Vehicle, error) {
	query := `SELECT ` + vehicleColumns + ` FROM vehicles`
	var conds []string
	var args []interface{}

	appendCond := func(expr string, val interface{}) {
		args = append(args, val)
		conds = append(conds, fmt.Sprintf(expr, len(args)))
	}

	if f.Make != nil {
		appendCond("make = $%d", *f.Make)
	}
	if f.Model != nil {
		appendCond("model = $%d", *f.Model)
	}
	if f.MinYear != nil {
		appendCond("year >= $%d", *f.MinYear)
	}
	if f.MaxYear != nil {
		appendCond("year <= $%d", *f.MaxYear)
	}
	if f.MinPrice != nil {
		appendCond("price >= $%d", *f.MinPrice)
	}
	if f.MaxPrice != nil {
		appendCond("price <= $%d", *f.MaxPrice)
	}
	if f.MaxKM != nil {
		appendCond("km <= $%d", *f.MaxKM)
	}

	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY stock_id`
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(` LIMIT $%d`, len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classifyStoreErr(err)
	}
	defer rows.Close()

	var vehicles []Vehicle
	for rows.Next() {
		v, err := scanVehicle(rows.Scan)
		if err != nil {
			return nil, err
		}
		vehicles = append(vehicles, v)
	}
	return vehicles, rows.Err()
}

// GetByStockID returns a single vehicle or ErrNotFound.
func (s *SQLStore) GetByStockID(ctx context.Context, stockID int64) (*Vehicle, error) {
	query := `SELECT ` + vehicleColumns + ` FROM vehicles WHERE stock_id = $1`
	v, err := scanVehicle(s.db.QueryRowContext(ctx, query, stockID).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, classifyStoreErr(err)
	}
	return &v, nil
}

// Count returns the number of catalog entries.
func (s *SQLStore) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM vehicles`).Scan(&n)
	if err != nil {
		return 0, classifyStoreErr(err)
	}
	return n, nil
}

// Ping verifies the store connection is usable.
func (s *SQLStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func marshalVehicleJSON(v *Vehicle) (features, dims, rawRow interface{}, err error) {
	fb := []byte("{}")
	if len(v.Features) > 0 {
		if fb, err = json.Marshal(v.Features); err != nil {
			return nil, nil, nil, err
		}
	}
	features = string(fb)

	if v.Dims != nil {
		db, err := json.Marshal(v.Dims)
		if err != nil {
			return nil, nil, nil, err
		}
		dims = string(db)
	}

	if len(v.RawRow) > 0 {
		rb, err := json.Marshal(v.RawRow)
		if err != nil {
			return nil, nil, nil, err
		}
		rawRow = string(rb)
	}
	return features, dims, rawRow, nil
}

func scanVehicle(scan func(...interface{}) error) (Vehicle, error) {
	var v Vehicle
	var features, dims, rawRow []byte
	err := scan(
		&v.StockID, &v.Make, &v.Model, &v.Year, &v.Version, &v.KM, &v.Price,
		&features, &dims, &rawRow, &v.Fingerprint, &v.IngestedAt,
	)
	if err != nil {
		return Vehicle{}, err
	}
	if len(features) > 0 {
		if err := json.Unmarshal(features, &v.Features); err != nil {
			return Vehicle{}, fmt.Errorf("decode features for stock_id %d: %w", v.StockID, err)
		}
	}
	if len(dims) > 0 {
		var d normalize.Dimensions
		if err := json.Unmarshal(dims, &d); err != nil {
			return Vehicle{}, fmt.Errorf("decode dims for stock_id %d: %w", v.StockID, err)
		}
		v.Dims = &d
	}
	if len(rawRow) > 0 {
		if err := json.Unmarshal(rawRow, &v.RawRow); err != nil {
			return Vehicle{}, fmt.Errorf("decode raw_row for stock_id %d: %w", v.StockID, err)
		}
	}
	return v, nil
}

// classifyStoreErr wraps connection-level failures in ErrStoreUnavailable so
// the ingestor can tell a dead store from a rejected batch.
func classifyStoreErr(err error) error {
	if err == nil {
		return nil
	}
	var netErr net.Error
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) || errors.As(err, &netErr) {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return err
}
