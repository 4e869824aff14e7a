// Package integration provides integration tests for the catalog engine.
package integration

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"

	_ "github.com/lib/pq"

	"github.com/yokharian/catalog-engine/internal/config"
	"github.com/yokharian/catalog-engine/internal/search"
	"github.com/yokharian/catalog-engine/internal/storage"
	"github.com/yokharian/catalog-engine/pkg/catalog"
)

const dealerFeed = `stock_id,make,model,year,version,km,price,bluetooth,car_play
243587,Volkswagen,Touareg,2018,R-Line,"77,400","461,999.0",Sí,no
84012,Toyota,Corolla,2020,LE,"30,500","249,999.0",Sí,no
84020,Toyota,RAV4,2021,Adventure,"28,900","459,000.0",verdadero,Sí
84031,Honda,Civic,2019,Touring,"45,210","305,000.0",Sí,no
`

// TestContainerSetup represents the test container infrastructure.
type TestContainerSetup struct {
	PostgresContainer testcontainers.Container
	RedisContainer    testcontainers.Container
	PostgresConnStr   string
	RedisAddr         string
	cleanup           func()
}

// SetupTestContainers initializes PostgreSQL and Redis containers for testing.
func SetupTestContainers(t *testing.T) *TestContainerSetup {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:17-alpine",
		postgres.WithDatabase("catalog_engine_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)

	pgHost, err := pgContainer.Host(ctx)
	require.NoError(t, err)

	pgPort, err := pgContainer.MappedPort(ctx, "5432")
	require.NoError(t, err)

	pgConnStr := fmt.Sprintf("postgres://test:test@%s:%s/catalog_engine_test?sslmode=disable",
		pgHost, pgPort.Port())

	redisContainer, err := redis.Run(ctx,
		"redis:7.4-alpine",
		testcontainers.WithWaitStrategy(
			wait.ForLog("Ready to accept connections").
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)

	redisHost, err := redisContainer.Host(ctx)
	require.NoError(t, err)

	redisPort, err := redisContainer.MappedPort(ctx, "6379")
	require.NoError(t, err)

	return &TestContainerSetup{
		PostgresContainer: pgContainer,
		RedisContainer:    redisContainer,
		PostgresConnStr:   pgConnStr,
		RedisAddr:         fmt.Sprintf("%s:%s", redisHost, redisPort.Port()),
		cleanup: func() {
			if err := pgContainer.Terminate(ctx); err != nil {
				t.Logf("Failed to terminate postgres container: %v", err)
			}
			if err := redisContainer.Terminate(ctx); err != nil {
				t.Logf("Failed to terminate redis container: %v", err)
			}
		},
	}
}

// Cleanup terminates all test containers.
func (s *TestContainerSetup) Cleanup() {
	if s.cleanup != nil {
		s.cleanup()
	}
}

// EngineConfig builds an engine configuration pointing at the containers.
func (s *TestContainerSetup) EngineConfig(t *testing.T) *config.Config {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.Database.Driver = "postgres"
	cfg.Database.Postgres.DSN = s.PostgresConnStr
	cfg.Cache.Driver = "redis"
	cfg.Cache.Redis.Addr = s.RedisAddr
	cfg.Ingest.AuditLogPath = filepath.Join(t.TempDir(), "audit.log")
	cfg.Observability.LogLevel = "error"
	return cfg
}

func TestPostgresSchemaInit(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	if !isDockerAvailable() {
		t.Skip("Docker not available")
	}

	setup := SetupTestContainers(t)
	defer setup.Cleanup()

	db, err := storage.Open("postgres", setup.PostgresConnStr)
	require.NoError(t, err)
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	require.NoError(t, db.PingContext(ctx))
	require.NoError(t, storage.InitSchema(ctx, db, "postgres"))

	// Idempotent on a second run.
	require.NoError(t, storage.InitSchema(ctx, db, "postgres"))

	var tableName string
	err = db.QueryRowContext(ctx,
		"SELECT table_name FROM information_schema.tables WHERE table_name = 'vehicles'").Scan(&tableName)
	require.NoError(t, err)
	require.Equal(t, "vehicles", tableName)
}

func TestFullStackIngestAndSearch(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	if !isDockerAvailable() {
		t.Skip("Docker not available")
	}

	setup := SetupTestContainers(t)
	defer setup.Cleanup()

	engine, err := catalog.Open(setup.EngineConfig(t))
	require.NoError(t, err)
	defer engine.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	report, err := engine.IngestReader(ctx, strings.NewReader(dealerFeed), "dealer.csv")
	require.NoError(t, err)
	assert.Equal(t, 4, report.RowsSeen)
	assert.Equal(t, 4, report.RowsCommitted)
	assert.Empty(t, report.RowsFailed)

	// A typo in the make still resolves against the ingested universe.
	results, err := engine.Search(ctx, search.Preferences{Make: "toyata"})
	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, v := range results {
		assert.Equal(t, "toyota", v.Make)
	}

	// The formatted km and price columns land as numbers.
	touareg, err := engine.Vehicle(ctx, 243587)
	require.NoError(t, err)
	assert.Equal(t, "volkswagen", touareg.Make)
	assert.Equal(t, 77400, touareg.KM)
	assert.InDelta(t, 461999.0, touareg.Price, 0.001)
	assert.True(t, touareg.HasFeature("bluetooth"))
	assert.False(t, touareg.HasFeature("car_play"))

	// Re-ingesting the identical feed rewrites nothing.
	report, err = engine.IngestReader(ctx, strings.NewReader(dealerFeed), "dealer.csv")
	require.NoError(t, err)
	assert.Equal(t, 4, report.RowsCommitted)
	assert.Equal(t, 4, report.RowsUnchanged)

	// A changed price replaces the stored row on the next load.
	repriced := strings.Replace(dealerFeed, `"461,999.0"`, `"449,000.0"`, 1)
	report, err = engine.IngestReader(ctx, strings.NewReader(repriced), "dealer.csv")
	require.NoError(t, err)
	assert.Equal(t, 3, report.RowsUnchanged)

	touareg, err = engine.Vehicle(ctx, 243587)
	require.NoError(t, err)
	assert.InDelta(t, 449000.0, touareg.Price, 0.001)
}

func TestRedisUniverseInvalidation(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	if !isDockerAvailable() {
		t.Skip("Docker not available")
	}

	setup := SetupTestContainers(t)
	defer setup.Cleanup()

	engine, err := catalog.Open(setup.EngineConfig(t))
	require.NoError(t, err)
	defer engine.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	_, err = engine.IngestReader(ctx, strings.NewReader(dealerFeed), "dealer.csv")
	require.NoError(t, err)

	// Populate the cached make universe in Redis.
	makes, err := engine.Makes(ctx)
	require.NoError(t, err)
	assert.NotContains(t, makes, "mazda")

	newArrivals := `stock_id,make,model,year,km,price
99001,Mazda,CX-5,2022,"9,700","512,400.0"
`
	_, err = engine.IngestReader(ctx, strings.NewReader(newArrivals), "arrivals.csv")
	require.NoError(t, err)

	// Ingestion drops the cached universes, so the new make is searchable
	// immediately.
	makes, err = engine.Makes(ctx)
	require.NoError(t, err)
	assert.Contains(t, makes, "mazda")

	results, err := engine.Search(ctx, search.Preferences{Make: "mazda"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, int64(99001), results[0].StockID)
}

func TestConcurrentFeedIngestion(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	if !isDockerAvailable() {
		t.Skip("Docker not available")
	}

	setup := SetupTestContainers(t)
	defer setup.Cleanup()

	engine, err := catalog.Open(setup.EngineConfig(t))
	require.NoError(t, err)
	defer engine.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	// Two dealers uploading at once, with one stock id contested between them.
	feedA := `stock_id,make,model,year,km,price
50001,Ford,Focus,2017,"88,400","179,000.0"
50002,Ford,Escape,2021,"24,600","415,000.0"
50003,Seat,Leon,2019,"52,000","268,000.0"
`
	feedB := `stock_id,make,model,year,km,price
50003,Seat,Leon,2019,"52,000","268,000.0"
50004,Kia,Sportage,2021,"31,200","398,700.0"
50005,Chevrolet,Onix,2022,"18,450","289,900.0"
`

	errs := make(chan error, 2)
	for _, feed := range []string{feedA, feedB} {
		go func(body string) {
			_, err := engine.IngestReader(ctx, strings.NewReader(body), "concurrent.csv")
			errs <- err
		}(feed)
	}
	for i := 0; i < 2; i++ {
		require.NoError(t, <-errs)
	}

	count, err := engine.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(5), count)

	// The contested row carries identical content from both feeds, so either
	// commit order leaves the same stored vehicle.
	leon, err := engine.Vehicle(ctx, 50003)
	require.NoError(t, err)
	assert.Equal(t, "seat", leon.Make)
	assert.Equal(t, "leon", leon.Model)
}

// isDockerAvailable checks if Docker is available for testing.
func isDockerAvailable() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	provider, err := testcontainers.NewDockerProvider()
	if err != nil {
		return false
	}
	defer provider.Close()

	_, err = provider.Client().Ping(ctx)
	return err == nil
}
