package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fullRow(line int) RawRow {
	return RawRow{
		Line: line,
		Fields: map[string]string{
			"stock_id":         "243587",
			"make":             " Volkswagen ",
			"model":            "Touareg",
			"year":             "2017",
			"version":          "3.0 V6 TDI",
			"km":               "77,400",
			"price":            "461,999.0",
			"bluetooth":        "Sí",
			"car_play":         "no",
			"air_conditioning": "true",
			"dims":             `{"largo": 4.8, "ancho": 1.9, "alto": 1.7}`,
		},
	}
}

func TestMapRow_FullRow(t *testing.T) {
	v, degradations, rowErr := MapRow(fullRow(2))
	require.Nil(t, rowErr)
	assert.Empty(t, degradations)

	assert.Equal(t, int64(243587), v.StockID)
	assert.Equal(t, "volkswagen", v.Make)
	assert.Equal(t, "touareg", v.Model)
	assert.Equal(t, 2017, v.Year)
	assert.Equal(t, "3.0 v6 tdi", v.Version)
	assert.Equal(t, 77400, v.KM)
	assert.Equal(t, 461999.0, v.Price)

	assert.Equal(t, map[string]bool{
		"bluetooth":        true,
		"car_play":         false,
		"air_conditioning": true,
	}, v.Features)

	require.NotNil(t, v.Dims)
	assert.Equal(t, 4.8, v.Dims.Length)
	assert.Equal(t, 1.9, v.Dims.Width)
	assert.Equal(t, 1.7, v.Dims.Height)

	assert.Equal(t, " Volkswagen ", v.RawRow["make"])
	assert.Empty(t, v.Fingerprint)
}

func TestMapRow_RequiredFieldFailures(t *testing.T) {
	cases := []struct {
		name      string
		mutate    func(RawRow)
		wantField string
	}{
		{"missing stock_id", func(r RawRow) { r.Fields["stock_id"] = "" }, "stock_id"},
		{"garbage stock_id", func(r RawRow) { r.Fields["stock_id"] = "abc" }, "stock_id"},
		{"missing make", func(r RawRow) { r.Fields["make"] = "   " }, "make"},
		{"missing model", func(r RawRow) { delete(r.Fields, "model") }, "model"},
		{"garbage year", func(r RawRow) { r.Fields["year"] = "20x7" }, "year"},
		{"missing price", func(r RawRow) { r.Fields["price"] = "" }, "price"},
		{"nan price", func(r RawRow) { r.Fields["price"] = "NaN" }, "price"},
		{"km column absent", func(r RawRow) { delete(r.Fields, "km") }, "km"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			row := fullRow(7)
			tc.mutate(row)

			_, _, rowErr := MapRow(row)
			require.NotNil(t, rowErr)
			assert.Equal(t, tc.wantField, rowErr.Field)
			assert.Equal(t, 7, rowErr.Line)
		})
	}
}

func TestMapRow_MalformedRow(t *testing.T) {
	_, _, rowErr := MapRow(RawRow{Line: 4, Malformed: "expected 11 columns, got 3"})
	require.NotNil(t, rowErr)
	assert.Equal(t, 4, rowErr.Line)
	assert.Equal(t, "expected 11 columns, got 3", rowErr.Reason)
	assert.Equal(t, "row 4: expected 11 columns, got 3", rowErr.Error())
}

func TestMapRow_KMDegradesToZero(t *testing.T) {
	row := fullRow(3)
	row.Fields["km"] = "unknown"

	v, degradations, rowErr := MapRow(row)
	require.Nil(t, rowErr)
	assert.Equal(t, 0, v.KM)
	require.Len(t, degradations, 1)
	assert.Equal(t, "km", degradations[0].Field)
	assert.Equal(t, "unknown", degradations[0].Value)
}

func TestMapRow_EmptyKMDegradesToZero(t *testing.T) {
	row := fullRow(3)
	row.Fields["km"] = ""

	v, degradations, rowErr := MapRow(row)
	require.Nil(t, rowErr)
	assert.Equal(t, 0, v.KM)
	assert.Len(t, degradations, 1)
}

func TestMapRow_UnparseableDimsAreDropped(t *testing.T) {
	row := fullRow(5)
	row.Fields["dims"] = "{'largo': 4.8, 'ancho': 1.9}"

	v, degradations, rowErr := MapRow(row)
	require.Nil(t, rowErr)
	assert.Nil(t, v.Dims)
	require.Len(t, degradations, 1)
	assert.Equal(t, "dims", degradations[0].Field)
}

func TestMapRow_AbsentDimsAreNotADegradation(t *testing.T) {
	row := fullRow(5)
	delete(row.Fields, "dims")

	v, degradations, rowErr := MapRow(row)
	require.Nil(t, rowErr)
	assert.Nil(t, v.Dims)
	assert.Empty(t, degradations)
}

func TestMapRow_FeaturesOnlyForPresentColumns(t *testing.T) {
	row := RawRow{
		Line: 2,
		Fields: map[string]string{
			"stock_id":  "10",
			"make":      "ford",
			"model":     "focus",
			"year":      "2019",
			"km":        "1000",
			"price":     "150000",
			"bluetooth": "1",
		},
	}

	v, _, rowErr := MapRow(row)
	require.Nil(t, rowErr)
	assert.Equal(t, map[string]bool{"bluetooth": true}, v.Features)
	assert.False(t, v.HasFeature("alarm"))
}

func TestMapRow_VersionIsOptional(t *testing.T) {
	row := fullRow(2)
	delete(row.Fields, "version")

	v, _, rowErr := MapRow(row)
	require.Nil(t, rowErr)
	assert.Equal(t, "", v.Version)
}

func TestMapRow_TruncatesDecimalIntegers(t *testing.T) {
	row := fullRow(2)
	row.Fields["km"] = "77400.0"
	row.Fields["year"] = "2017.0"

	v, degradations, rowErr := MapRow(row)
	require.Nil(t, rowErr)
	assert.Empty(t, degradations)
	assert.Equal(t, 77400, v.KM)
	assert.Equal(t, 2017, v.Year)
}
