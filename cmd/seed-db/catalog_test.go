package main

import (
	"os"
	"path/filepath"
	"testing"

	pgzip "github.com/klauspost/pgzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCatalog_Embedded(t *testing.T) {
	data, err := readCatalog("")
	require.NoError(t, err)

	meds, err := parseCatalog(data)
	require.NoError(t, err)
	require.Len(t, meds, 10)

	assert.Equal(t, "Napa 500mg", meds[0].DisplayName())
	assert.Equal(t, "1.2", meds[0].SellPrice.String())
	assert.True(t, meds[0].Active)

	last := meds[len(meds)-1]
	assert.Equal(t, "Alatrol", last.BrandName)
	assert.False(t, last.Active)
}

func TestParseCatalog_NumericPrices(t *testing.T) {
	meds, err := parseCatalog([]byte(`[{"brandName":"Ace","strength":"500mg","quantity":5,` +
		`"sellPrice":1.10,"buyPrice":0.8,"expiryDate":"2027-12-31","unknown":{"x":1}}]`))
	require.NoError(t, err)
	require.Len(t, meds, 1)
	assert.Equal(t, "1.1", meds[0].SellPrice.String())
	assert.Equal(t, int64(5), meds[0].Quantity)
	assert.Equal(t, 2027, meds[0].ExpiryDate.Year())
}

func TestParseCatalog_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not an array", `{"brandName":"Ace"}`},
		{"missing name", `[{"strength":"1mg","quantity":1,"sellPrice":"1","buyPrice":"1","expiryDate":"2027-01-01"}]`},
		{"negative quantity", `[{"brandName":"A","quantity":-1,"sellPrice":"1","buyPrice":"1","expiryDate":"2027-01-01"}]`},
		{"bad date", `[{"brandName":"A","quantity":1,"sellPrice":"1","buyPrice":"1","expiryDate":"31/12/2027"}]`},
		{"missing date", `[{"brandName":"A","quantity":1,"sellPrice":"1","buyPrice":"1"}]`},
		{"bad price", `[{"brandName":"A","quantity":1,"sellPrice":"cheap","buyPrice":"1","expiryDate":"2027-01-01"}]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseCatalog([]byte(tt.data))
			require.Error(t, err)
		})
	}
}

func TestReadCatalog_Gzip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.json.gz")
	f, err := os.Create(path)
	require.NoError(t, err)
	gz := pgzip.NewWriter(f)
	_, err = gz.Write([]byte(`[{"brandName":"Fexo","strength":"120mg","quantity":3,` +
		`"sellPrice":"8.00","buyPrice":"6.10","expiryDate":"2028-01-31"}]`))
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	require.NoError(t, f.Close())

	data, err := readCatalog(path)
	require.NoError(t, err)
	meds, err := parseCatalog(data)
	require.NoError(t, err)
	require.Len(t, meds, 1)
	assert.Equal(t, "Fexo 120mg", meds[0].DisplayName())
}

func TestReadCatalog_Missing(t *testing.T) {
	_, err := readCatalog(filepath.Join(t.TempDir(), "nope.json"))
	require.Error(t, err)
}
