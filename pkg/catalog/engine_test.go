package catalog

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yokharian/catalog-engine/internal/ingest"
	"github.com/yokharian/catalog-engine/internal/search"
)

const feedCSV = `stock_id,make,model,year,km,price,bluetooth,car_play
243587,Volkswagen,Touareg,2018,"77,400","461,999.0",Sí,no
100,Toyota,Corolla,2020,30000,250000.0,no,sí
101,Toyota,Rav4,2022,15000,420000.0,verdadero,no
`

func TestEngine_IngestAndSearch(t *testing.T) {
	engine := NewInMemory(nil)
	ctx := context.Background()

	report, err := engine.IngestReader(ctx, strings.NewReader(feedCSV), "feed.csv")
	require.NoError(t, err)
	assert.Equal(t, ingest.StatusSucceeded, report.Status)
	assert.Equal(t, 3, report.RowsSeen)
	assert.Equal(t, 3, report.RowsCommitted)
	assert.Empty(t, report.RowsFailed)

	budget := 500000.0
	results, err := engine.Search(ctx, search.Preferences{
		Make:      "touareg",
		BudgetMax: &budget,
		Features:  []string{"bluetooth"},
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, int64(243587), results[0].StockID)
	assert.Equal(t, "volkswagen", results[0].Make)
	assert.Equal(t, 77400, results[0].KM)

	count, err := engine.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
}

func TestEngine_MakesAndModels(t *testing.T) {
	engine := NewInMemory(nil)
	ctx := context.Background()

	_, err := engine.IngestReader(ctx, strings.NewReader(feedCSV), "feed.csv")
	require.NoError(t, err)

	makes, err := engine.Makes(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"toyota", "volkswagen"}, makes)

	models, err := engine.Models(ctx, "toyota")
	require.NoError(t, err)
	assert.Equal(t, []string{"corolla", "rav4"}, models)

	all, err := engine.Models(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"corolla", "rav4", "touareg"}, all)
}

func TestEngine_VehicleLookup(t *testing.T) {
	engine := NewInMemory(nil)
	ctx := context.Background()

	_, err := engine.IngestReader(ctx, strings.NewReader(feedCSV), "feed.csv")
	require.NoError(t, err)

	v, err := engine.Vehicle(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, "corolla", v.Model)
	assert.True(t, v.HasFeature("car_play"))
	assert.False(t, v.HasFeature("bluetooth"))
}

func TestEngine_HealthAndClose(t *testing.T) {
	engine := NewInMemory(nil)

	status := engine.Health(context.Background())
	assert.Equal(t, "ok", status.Status)

	require.NoError(t, engine.Close())
}
