package features

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const apiFeatures = `date,base,return,log_return,momentum,volatility,quote_vol
2024-01-05,BTC,0.03,0.0296,0.5,0.25,500
2024-01-01,BTC,0.01,0.00995,0.1,0.2,100
2024-01-01,ETH,0.05,0.0488,0.3,0.4,900
2024-01-02,BTC,0,0,0.1,0.2,110
2024-01-03,BTC,0.02,0.0198,0.2,,120
2024-01-04,BTC,-0.01,-0.01005,0.15,0.22,130
`

const sentimentCSV = `date,vader_sentiment
2024-01-04,0.8
2023-12-31,0.5
2024-01-01,0.6
2024-01-03,0.7
`

func day(d int) time.Time { return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC) }

func TestPrepareAPIVersion(t *testing.T) {
	ds, err := NewPreparer("BTC").Prepare(SourceAPI, strings.NewReader(apiFeatures), strings.NewReader(sentimentCSV))
	require.NoError(t, err)

	assert.Equal(t, FeatureColumns, ds.Columns)
	require.Equal(t, 2, ds.Len())
	assert.Equal(t, []time.Time{day(1), day(4)}, ds.Dates)
	// target is the next non-flat return, even when that row is later dropped
	assert.Equal(t, []float64{0.02, 0.03}, ds.Y)
	assert.Equal(t, []float64{0.01, 0.00995, 0.1, 0.2, 100, 0.5}, ds.X[0])
	assert.Equal(t, 0.7, ds.X[1][5])
}

func TestPrepareCSVVersionPrefersQuoteVolume(t *testing.T) {
	features := `symbol,date,return,log_return,momentum,volatility,quote_volume,quote_vol
BTC,2024-01-01,0.01,0.01,1,1,111,999
BTC,2024-01-02,0.02,0.02,1,1,222,999
BTC,2024-01-03,0.03,0.03,1,1,333,999
`
	ds, err := NewPreparer("BTC").Prepare(SourceCSV, strings.NewReader(features), strings.NewReader(sentimentCSV))
	require.NoError(t, err)
	require.Equal(t, 2, ds.Len())
	assert.Equal(t, 111.0, ds.X[0][4])
	assert.Equal(t, 222.0, ds.X[1][4])
	// 2024-01-02 has no sentiment row; the join fills 0
	assert.Equal(t, 0.0, ds.X[1][5])
}

func TestPrepareMissingColumns(t *testing.T) {
	cases := []struct {
		name     string
		kind     SourceKind
		features string
		column   string
	}{
		{
			name:     "api without base",
			kind:     SourceAPI,
			features: "date,symbol,return,log_return,momentum,volatility,quote_vol\n",
			column:   "base",
		},
		{
			name:     "csv without symbol",
			kind:     SourceCSV,
			features: "date,base,return,log_return,momentum,volatility,quote_vol\n",
			column:   "symbol",
		},
		{
			name:     "no volume alias",
			kind:     SourceCSV,
			features: "date,symbol,return,log_return,momentum,volatility,volume\n",
			column:   ColVolume,
		},
		{
			name:     "empty file",
			kind:     SourceAPI,
			features: "",
			column:   "base",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewPreparer("BTC").Prepare(tc.kind, strings.NewReader(tc.features), strings.NewReader(sentimentCSV))
			var mc *MissingColumnError
			require.True(t, errors.As(err, &mc), "got %v", err)
			assert.Equal(t, tc.column, mc.Column)
		})
	}

	_, err := NewPreparer("BTC").Prepare(SourceAPI, strings.NewReader(apiFeatures), strings.NewReader("date,score\n"))
	var mc *MissingColumnError
	require.True(t, errors.As(err, &mc))
	assert.Equal(t, ColSentiment, mc.Column)
}

func TestPrepareNoRowsForSymbol(t *testing.T) {
	ds, err := NewPreparer("DOGE").Prepare(SourceAPI, strings.NewReader(apiFeatures), strings.NewReader(sentimentCSV))
	require.NoError(t, err)
	assert.Equal(t, 0, ds.Len())
}

func TestPrepareDuplicateSentimentDates(t *testing.T) {
	features := `date,base,return,log_return,momentum,volatility,quote_vol
2024-01-02,BTC,0.01,0.01,1,1,1
2024-01-03,BTC,0.02,0.02,1,1,1
`
	sentiment := `date,vader_sentiment
2024-01-01,0.1
2024-01-02,0.2
2024-01-02,0.3
`
	ds, err := NewPreparer("BTC").Prepare(SourceAPI, strings.NewReader(features), strings.NewReader(sentiment))
	require.NoError(t, err)
	require.Equal(t, 2, ds.Len())
	assert.Equal(t, 0.1, ds.X[0][5])
	assert.Equal(t, 0.2, ds.X[1][5])
	assert.Equal(t, ds.Dates[0], ds.Dates[1])
}

func TestPrepareFiles(t *testing.T) {
	dir := t.TempDir()
	fp := filepath.Join(dir, "crypto_features_api.csv")
	sp := filepath.Join(dir, "crypto_sentiment_index.csv")
	require.NoError(t, os.WriteFile(fp, []byte(apiFeatures), 0o644))
	require.NoError(t, os.WriteFile(sp, []byte(sentimentCSV), 0o644))

	ds, err := NewPreparer("BTC").PrepareFiles(SourceAPI, fp, sp)
	require.NoError(t, err)
	assert.Equal(t, 2, ds.Len())

	_, err = NewPreparer("BTC").PrepareFiles(SourceAPI, filepath.Join(dir, "missing.csv"), sp)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestParseSourceKind(t *testing.T) {
	k, err := ParseSourceKind("API")
	require.NoError(t, err)
	assert.Equal(t, SourceAPI, k)
	assert.Equal(t, "base", k.Discriminator())

	k, err = ParseSourceKind("csv")
	require.NoError(t, err)
	assert.Equal(t, "symbol", k.Discriminator())
	assert.Equal(t, "csv", k.String())

	_, err = ParseSourceKind("parquet")
	assert.ErrorIs(t, err, ErrUnknownSource)
}
