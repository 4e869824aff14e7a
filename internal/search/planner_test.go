package search

import (
	"context"
	"errors"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yokharian/catalog-engine/internal/cache"
	"github.com/yokharian/catalog-engine/internal/observability"
	"github.com/yokharian/catalog-engine/internal/storage"
)

func fptr(f float64) *float64 { return &f }
func iptr(i int) *int         { return &i }

// testFleet is the canonical seed set. Store order is stock id ascending:
// 100, 101, 102, 103, 104, 243587.
func testFleet() []storage.Vehicle {
	return []storage.Vehicle{
		{StockID: 100, Make: "toyota", Model: "corolla", Year: 2020, KM: 30000, Price: 250000, Features: map[string]bool{"bluetooth": true, "alarm": true}},
		{StockID: 101, Make: "toyota", Model: "corolla", Year: 2018, KM: 80000, Price: 180000, Features: map[string]bool{"bluetooth": false}},
		{StockID: 102, Make: "toyota", Model: "rav4", Year: 2022, KM: 15000, Price: 420000, Features: map[string]bool{"car_play": true}},
		{StockID: 103, Make: "ford", Model: "focus", Year: 2019, KM: 45000, Price: 210000},
		{StockID: 104, Make: "honda", Model: "civic", Year: 2021, KM: 22000, Price: 330000, Features: map[string]bool{"bluetooth": true}},
		{StockID: 243587, Make: "volkswagen", Model: "touareg", Year: 2018, KM: 77400, Price: 461999, Features: map[string]bool{"bluetooth": true}},
	}
}

func newTestPlanner(t *testing.T, vehicles []storage.Vehicle) (*Planner, *storage.MemoryStore) {
	t.Helper()

	store := storage.NewMemoryStore()
	if len(vehicles) > 0 {
		_, err := store.UpsertBatch(context.Background(), vehicles)
		require.NoError(t, err)
	}

	logger := observability.DefaultLogger()
	planner := NewPlanner(logger, store, cache.NewMemoryClient(0), PlannerConfig{})
	return planner, store
}

func stockIDs(vehicles []storage.Vehicle) []int64 {
	ids := make([]int64, 0, len(vehicles))
	for _, v := range vehicles {
		ids = append(ids, v.StockID)
	}
	return ids
}

func TestPlanner_ResolvesFuzzyMake(t *testing.T) {
	planner, _ := newTestPlanner(t, testFleet())

	results, err := planner.Search(context.Background(), Preferences{Make: "toyata"})
	require.NoError(t, err)
	assert.Equal(t, []int64{100, 101, 102}, stockIDs(results))
}

func TestPlanner_UnknownMakeReturnsEmpty(t *testing.T) {
	planner, _ := newTestPlanner(t, testFleet())

	results, err := planner.Search(context.Background(), Preferences{Make: "xyzcorp"})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestPlanner_ModelTypedInMakeSlot(t *testing.T) {
	planner, _ := newTestPlanner(t, testFleet())

	// "touareg" resolves to no make, so the planner retries it against the
	// model universe instead of dropping the filter or returning nothing.
	results, err := planner.Search(context.Background(), Preferences{
		Make:      "touareg",
		BudgetMax: fptr(500000),
		Features:  []string{"bluetooth"},
	})
	require.NoError(t, err)
	assert.Equal(t, []int64{243587}, stockIDs(results))
}

func TestPlanner_ModelResolutionScopedToMake(t *testing.T) {
	planner, _ := newTestPlanner(t, testFleet())

	// "focus" exists in the catalog but not under toyota, so the scoped
	// model universe cannot resolve it.
	results, err := planner.Search(context.Background(), Preferences{Make: "toyota", Model: "focus"})
	require.NoError(t, err)
	assert.Empty(t, results)

	results, err = planner.Search(context.Background(), Preferences{Make: "ford", Model: "focas"})
	require.NoError(t, err)
	assert.Equal(t, []int64{103}, stockIDs(results))
}

func TestPlanner_ModelOnlySearch(t *testing.T) {
	planner, _ := newTestPlanner(t, testFleet())

	results, err := planner.Search(context.Background(), Preferences{Model: "corola"})
	require.NoError(t, err)
	assert.Equal(t, []int64{100, 101}, stockIDs(results))
}

func TestPlanner_BudgetWindow(t *testing.T) {
	planner, _ := newTestPlanner(t, testFleet())

	results, err := planner.Search(context.Background(), Preferences{
		BudgetMin: fptr(200000),
		BudgetMax: fptr(400000),
	})
	require.NoError(t, err)
	assert.Equal(t, []int64{100, 103, 104}, stockIDs(results))
}

func TestPlanner_KMCeiling(t *testing.T) {
	planner, _ := newTestPlanner(t, testFleet())

	results, err := planner.Search(context.Background(), Preferences{KMMax: iptr(30000)})
	require.NoError(t, err)
	assert.Equal(t, []int64{100, 102, 104}, stockIDs(results))
}

func TestPlanner_YearWindow(t *testing.T) {
	planner, _ := newTestPlanner(t, testFleet())

	results, err := planner.Search(context.Background(), Preferences{
		YearMin: iptr(2020),
		YearMax: iptr(2021),
	})
	require.NoError(t, err)
	assert.Equal(t, []int64{100, 104}, stockIDs(results))
}

func TestPlanner_RequiredFeatures(t *testing.T) {
	planner, _ := newTestPlanner(t, testFleet())

	// A feature stored as false, or absent entirely, does not satisfy the
	// requirement.
	results, err := planner.Search(context.Background(), Preferences{Features: []string{"bluetooth"}})
	require.NoError(t, err)
	assert.Equal(t, []int64{100, 104, 243587}, stockIDs(results))

	results, err = planner.Search(context.Background(), Preferences{Features: []string{"bluetooth", "alarm"}})
	require.NoError(t, err)
	assert.Equal(t, []int64{100}, stockIDs(results))
}

func TestPlanner_SortOrders(t *testing.T) {
	planner, _ := newTestPlanner(t, testFleet())

	cases := []struct {
		name   string
		sortBy SortBy
		want   []int64
	}{
		{"price low", SortPriceLow, []int64{101, 103, 100, 104, 102, 243587}},
		{"price high", SortPriceHigh, []int64{243587, 102, 104, 100, 103, 101}},
		// 101 and 243587 are both 2018; the tie breaks on stock id.
		{"year new", SortYearNew, []int64{102, 104, 100, 103, 101, 243587}},
		{"km low", SortKMLow, []int64{102, 104, 100, 103, 243587, 101}},
		{"relevance keeps store order", SortRelevance, []int64{100, 101, 102, 103, 104, 243587}},
		{"unknown keeps store order", SortBy("mileage"), []int64{100, 101, 102, 103, 104, 243587}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			results, err := planner.Search(context.Background(), Preferences{
				SortBy:     tc.sortBy,
				MaxResults: 20,
			})
			require.NoError(t, err)
			assert.Equal(t, tc.want, stockIDs(results))
		})
	}
}

func TestPlanner_ResultLimits(t *testing.T) {
	fleet := make([]storage.Vehicle, 0, 30)
	for i := 1; i <= 30; i++ {
		fleet = append(fleet, storage.Vehicle{
			StockID: int64(i),
			Make:    "toyota",
			Model:   "corolla " + strconv.Itoa(i),
			Year:    2020,
			KM:      10000,
			Price:   200000,
		})
	}
	planner, _ := newTestPlanner(t, fleet)

	results, err := planner.Search(context.Background(), Preferences{})
	require.NoError(t, err)
	assert.Len(t, results, DefaultMaxResults)

	results, err = planner.Search(context.Background(), Preferences{MaxResults: 2})
	require.NoError(t, err)
	assert.Len(t, results, 2)

	results, err = planner.Search(context.Background(), Preferences{MaxResults: 50})
	require.NoError(t, err)
	assert.Len(t, results, MaxResultsCap)
}

func TestPlanner_EmptyCatalogShortCircuits(t *testing.T) {
	planner, _ := newTestPlanner(t, nil)

	results, err := planner.Search(context.Background(), Preferences{Make: "toyota"})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestPlanner_RepeatedSearchIsDeterministic(t *testing.T) {
	planner, _ := newTestPlanner(t, testFleet())

	prefs := Preferences{Make: "toyota", SortBy: SortPriceLow, MaxResults: 20}
	first, err := planner.Search(context.Background(), prefs)
	require.NoError(t, err)
	second, err := planner.Search(context.Background(), prefs)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

// countingStore counts DistinctValues calls to observe universe caching.
type countingStore struct {
	storage.Store
	distinctCalls int
}

func (c *countingStore) DistinctValues(ctx context.Context, field storage.DistinctField, scopeMake string) ([]string, error) {
	c.distinctCalls++
	return c.Store.DistinctValues(ctx, field, scopeMake)
}

func TestPlanner_CachesDistinctValueUniverses(t *testing.T) {
	store := storage.NewMemoryStore()
	_, err := store.UpsertBatch(context.Background(), testFleet())
	require.NoError(t, err)

	counting := &countingStore{Store: store}
	planner := NewPlanner(observability.DefaultLogger(), counting, cache.NewMemoryClient(0), PlannerConfig{})

	for i := 0; i < 3; i++ {
		_, err := planner.Search(context.Background(), Preferences{Make: "toyota"})
		require.NoError(t, err)
	}
	assert.Equal(t, 1, counting.distinctCalls)
}

func TestPlanner_NilCacheStillSearches(t *testing.T) {
	store := storage.NewMemoryStore()
	_, err := store.UpsertBatch(context.Background(), testFleet())
	require.NoError(t, err)

	planner := NewPlanner(observability.DefaultLogger(), store, nil, PlannerConfig{})

	results, err := planner.Search(context.Background(), Preferences{Make: "honda"})
	require.NoError(t, err)
	assert.Equal(t, []int64{104}, stockIDs(results))
}

// erroringStore fails every operation with a fixed error.
type erroringStore struct {
	storage.Store
	err error
}

func (e *erroringStore) DistinctValues(context.Context, storage.DistinctField, string) ([]string, error) {
	return nil, e.err
}

func (e *erroringStore) Query(context.Context, storage.Filter) ([]storage.Vehicle, error) {
	return nil, e.err
}

func TestPlanner_StoreErrorsPropagate(t *testing.T) {
	storeErr := errors.New("connection refused")
	planner := NewPlanner(observability.DefaultLogger(), &erroringStore{err: storeErr}, nil, PlannerConfig{})

	_, err := planner.Search(context.Background(), Preferences{Make: "toyota"})
	require.Error(t, err)
	assert.ErrorIs(t, err, storeErr)

	_, err = planner.Search(context.Background(), Preferences{})
	require.Error(t, err)
	assert.ErrorIs(t, err, storeErr)
}
