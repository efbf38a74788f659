package chart

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FinCast/internal/domain/models"
)

var pngMagic = []byte("\x89PNG\r\n\x1a\n")

func sample() []models.ForecastRecord {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]models.ForecastRecord, 12)
	for i := range out {
		out[i] = models.ForecastRecord{
			Date:      start.AddDate(0, 0, i),
			Predicted: 0.001 * float64(i),
			Actual:    0.002 * float64(i%3),
			R2:        0.1 + 0.05*float64(i),
			MSE:       0.0001,
		}
	}
	out[4].Predicted, out[4].R2 = math.NaN(), math.NaN()
	return out
}

func TestRenderPNG(t *testing.T) {
	r := NewRenderer()
	for _, k := range Kinds {
		t.Run(string(k), func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, r.Render(&buf, k, "API Version", sample()))
			assert.True(t, bytes.HasPrefix(buf.Bytes(), pngMagic))
		})
	}
}

func TestRenderNoData(t *testing.T) {
	r := NewRenderer()
	var buf bytes.Buffer
	assert.ErrorIs(t, r.Render(&buf, KindPredictions, "x", nil), ErrNoData)

	allFailed := []models.ForecastRecord{{Date: time.Now(), Predicted: math.NaN(), Actual: math.NaN(), R2: math.NaN()}}
	assert.ErrorIs(t, r.Render(&buf, KindR2, "x", allFailed), ErrNoData)
	assert.ErrorIs(t, r.Render(&buf, Kind("bars"), "x", sample()), ErrUnknownKind)
}

func TestRenderVersion(t *testing.T) {
	dir := t.TempDir()
	paths, err := NewRenderer().RenderVersion(dir, "csv", sample())
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "plot_csv_predictions.png"),
		filepath.Join(dir, "plot_csv_r2.png"),
	}, paths)
	for _, p := range paths {
		fi, err := os.Stat(p)
		require.NoError(t, err)
		assert.Positive(t, fi.Size())
	}
}

func TestNaming(t *testing.T) {
	assert.Equal(t, "API Version", Title("api"))
	k, err := ParseKind("R2")
	require.NoError(t, err)
	assert.Equal(t, KindR2, k)
	_, err = ParseKind("pie")
	assert.ErrorIs(t, err, ErrUnknownKind)
}
