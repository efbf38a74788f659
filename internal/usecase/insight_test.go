package usecase

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FinCast/internal/domain/models"
	"FinCast/internal/repository"
	"FinCast/pkg/cache"
	applogger "FinCast/pkg/logger"
)

type fakeGenerator struct {
	text    string
	err     error
	calls   int
	prompts []string
}

func (f *fakeGenerator) Generate(_ context.Context, prompt string) (string, error) {
	f.calls++
	f.prompts = append(f.prompts, prompt)
	return f.text, f.err
}

func seededStore(t *testing.T, version string, n int) *repository.CSVResultStore {
	t.Helper()
	dir := t.TempDir()
	store := repository.NewCSVResultStore(func(v string) string {
		return filepath.Join(dir, "btc_predictions_"+v+".csv")
	})
	if n >= 0 {
		start := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
		recs := make([]models.ForecastRecord, n)
		for i := range recs {
			recs[i] = models.ForecastRecord{
				Date:      start.AddDate(0, 0, i),
				Predicted: 0.001 * float64(i),
				Actual:    -0.002 * float64(i),
				R2:        0.3,
				MSE:       0.0004,
			}
		}
		_, err := store.Save(context.Background(), version, recs)
		require.NoError(t, err)
	}
	return store
}

func TestBuildPrompt(t *testing.T) {
	recs := []models.ForecastRecord{
		{Date: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), Predicted: 0.0123, Actual: -0.5, R2: 0.25, MSE: 0.001},
	}
	prompt := BuildPrompt("api", 10, recs)

	assert.True(t, strings.HasPrefix(prompt, "\nYou're a FinTech analyst working on a university project.\n"))
	assert.Contains(t, prompt, "Below is a Ridge Regression model forecast for BTC using API data (last 10 days):")
	assert.Contains(t, prompt, "Write a concise summary (3–5 lines) discussing:\n1. Any noticeable prediction trend,")
	assert.Contains(t, prompt, "Respond in a professional tone suitable for an academic report.\n")

	table := FormatTable(recs)
	lines := strings.Split(table, "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, len(lines[0]), len(lines[1]))
	assert.Contains(t, lines[1], "2024-05-01")
	assert.Contains(t, lines[1], "-0.500000")
}

func TestInsightGenerate(t *testing.T) {
	store := seededStore(t, "api", 25)
	gen := &fakeGenerator{text: "  Stable forecasts.  "}
	g := NewInsightGenerator(store, gen, applogger.Nop())

	in, err := g.Generate(context.Background(), "api")
	require.NoError(t, err)
	assert.Equal(t, models.InsightOK, in.Status)
	assert.Equal(t, "  Stable forecasts.  ", in.Text)
	require.Len(t, gen.prompts, 1)
	// last ten rows only: 2024-05-16 .. 2024-05-25
	assert.Contains(t, gen.prompts[0], "(last 10 days)")
	assert.Contains(t, gen.prompts[0], "2024-05-16")
	assert.NotContains(t, gen.prompts[0], "2024-05-15")
}

func TestInsightSkippedWithoutResults(t *testing.T) {
	gen := &fakeGenerator{text: "x"}
	g := NewInsightGenerator(seededStore(t, "api", -1), gen, applogger.Nop())

	in, err := g.Generate(context.Background(), "csv")
	require.NoError(t, err)
	assert.Equal(t, models.InsightSkipped, in.Status)
	assert.True(t, strings.HasPrefix(in.Text, "[Skipped]"))
	assert.Zero(t, gen.calls)
}

func TestInsightErrorRenderedInline(t *testing.T) {
	gen := &fakeGenerator{err: errors.New("quota exceeded")}
	g := NewInsightGenerator(seededStore(t, "csv", 3), gen, applogger.Nop())

	in, err := g.Generate(context.Background(), "csv")
	require.NoError(t, err)
	assert.Equal(t, models.InsightFailed, in.Status)
	assert.Equal(t, "[Error generating insight] quota exceeded", in.Text)
}

func TestInsightCache(t *testing.T) {
	store := seededStore(t, "api", 5)
	gen := &fakeGenerator{text: "cached text"}
	mem := cache.NewMemoryCache()
	t.Cleanup(func() { _ = mem.Close() })
	g := NewInsightGenerator(store, gen, applogger.Nop(), WithInsightCache(mem, time.Hour), WithInsightRows(3))

	first, err := g.Generate(context.Background(), "api")
	require.NoError(t, err)
	assert.False(t, first.Cached)

	second, err := g.Generate(context.Background(), "api")
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, "cached text", second.Text)
	assert.Equal(t, 1, gen.calls)
	assert.Contains(t, gen.prompts[0], "(last 3 days)")

	// failures are not cached
	gen.err = errors.New("boom")
	_, err = store.Save(context.Background(), "api", nil)
	require.NoError(t, err)
	for i := 0; i < 2; i++ {
		in, err := g.Generate(context.Background(), "api")
		require.NoError(t, err)
		assert.Equal(t, models.InsightFailed, in.Status)
	}
	assert.Equal(t, 3, gen.calls)
}

func TestGenerateAll(t *testing.T) {
	store := seededStore(t, "api", 4)
	g := NewInsightGenerator(store, &fakeGenerator{text: "ok"}, applogger.Nop())

	out, err := g.GenerateAll(context.Background(), []string{"api", "csv"})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, models.InsightOK, out[0].Status)
	assert.Equal(t, models.InsightSkipped, out[1].Status)
}
