package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FinCast/internal/domain/models"
	"FinCast/internal/repository"
	"FinCast/internal/services/features"
	"FinCast/pkg/cache"
	applogger "FinCast/pkg/logger"
)

// writeFixture writes a feature file with rows+1 BTC days (the last one
// only supplies a target) and a sentiment file starting one day earlier,
// so the prepared dataset has exactly rows rows.
func writeFixture(t *testing.T, dir, version string, rows int) {
	t.Helper()
	disc := "base"
	if version == "csv" {
		disc = "symbol"
	}
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	var fb strings.Builder
	fmt.Fprintf(&fb, "date,%s,return,log_return,momentum,volatility,quote_vol\n", disc)
	for i := 0; i <= rows; i++ {
		ret := 0.01*math.Sin(float64(i)) + 0.002
		fmt.Fprintf(&fb, "%s,BTC,%g,%g,%g,%g,%d\n",
			start.AddDate(0, 0, i).Format("2006-01-02"),
			ret, math.Log1p(ret), math.Cos(float64(i)), 0.1+0.01*float64(i%7), 100+3*i)
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "crypto_features_"+version+".csv"), []byte(fb.String()), 0o644))

	var sb strings.Builder
	sb.WriteString("date,vader_sentiment\n")
	for i := -1; i <= rows; i++ {
		fmt.Fprintf(&sb, "%s,%g\n", start.AddDate(0, 0, i).Format("2006-01-02"), float64((i+5)%5)/5)
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "crypto_sentiment_index.csv"), []byte(sb.String()), 0o644))
}

type recordingMetrics struct {
	mu     sync.Mutex
	runs   map[string]models.RunStatus
	steps  map[string][2]int
	lastR2 map[string]float64
	errors []string
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{
		runs:   map[string]models.RunStatus{},
		steps:  map[string][2]int{},
		lastR2: map[string]float64{},
	}
}

func (m *recordingMetrics) RecordRun(v string, s models.RunStatus, _ float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[v] = s
}

func (m *recordingMetrics) RecordSteps(v string, total, failed int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.steps[v] = [2]int{total, failed}
}

func (m *recordingMetrics) RecordLastR2(v string, r2 float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastR2[v] = r2
}

func (m *recordingMetrics) RecordError(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors = append(m.errors, kind)
}

func (m *recordingMetrics) RecordLatency(string, float64) {}

type recordingSink struct {
	name    string
	err     error
	runs    []models.RunSummary
	records int
}

func (s *recordingSink) Name() string { return s.name }

func (s *recordingSink) Write(_ context.Context, run models.RunSummary, records []models.ForecastRecord) error {
	s.runs = append(s.runs, run)
	s.records += len(records)
	return s.err
}

type recordingNotifier struct{ got []models.RunSummary }

func (n *recordingNotifier) Notify(_ context.Context, s models.RunSummary) { n.got = append(n.got, s) }

func newTestPipeline(t *testing.T, dir string, m *recordingMetrics, opts ...PipelineOption) *ForecastPipeline {
	t.Helper()
	store := repository.NewCSVResultStore(func(v string) string {
		return filepath.Join(dir, "btc_predictions_"+v+".csv")
	})
	return NewForecastPipeline(PipelineConfig{
		Symbol:        "BTC",
		Alpha:         1.0,
		Versions:      []string{"api", "csv"},
		FeaturePath:   func(v string) string { return filepath.Join(dir, "crypto_features_"+v+".csv") },
		SentimentPath: filepath.Join(dir, "crypto_sentiment_index.csv"),
	}, store, m, applogger.Nop(), opts...)
}

func TestSelectWindow(t *testing.T) {
	cases := []struct {
		n, initial int
	}{
		{2, 5}, {10, 5}, {12, 6}, {15, 7}, {16, 5}, {30, 10}, {50, 16}, {51, 25}, {100, 50},
	}
	for _, tc := range cases {
		t.Run(fmt.Sprint(tc.n), func(t *testing.T) {
			initial, step, err := SelectWindow(tc.n)
			require.NoError(t, err)
			assert.Equal(t, tc.initial, initial)
			assert.Equal(t, 1, step)
		})
	}

	for _, n := range []int{0, 1} {
		_, _, err := SelectWindow(n)
		assert.ErrorIs(t, err, ErrInsufficientData)
	}
}

func TestRunCompleted(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "api", 30)
	m := newRecordingMetrics()
	sink := &recordingSink{name: "memory"}
	notifier := &recordingNotifier{}
	p := newTestPipeline(t, dir, m, WithSinks(sink), WithNotifier(notifier))

	out, err := p.Run(context.Background(), "api")
	require.NoError(t, err)

	assert.Equal(t, models.RunCompleted, out.Status)
	assert.Equal(t, 30, out.Rows)
	assert.Equal(t, 10, out.InitialTrainSize)
	assert.Equal(t, 1, out.StepSize)
	require.Len(t, out.Records, 20)
	assert.NotEmpty(t, out.RunID)
	assert.Empty(t, out.Reason)
	for i := 1; i < len(out.Records); i++ {
		assert.True(t, out.Records[i-1].Date.Before(out.Records[i].Date))
	}

	saved, err := p.results.Load(context.Background(), "api")
	require.NoError(t, err)
	assert.Len(t, saved, 20)

	require.Len(t, sink.runs, 1)
	assert.Equal(t, out.RunID, sink.runs[0].RunID)
	assert.Equal(t, 20, sink.records)
	require.Len(t, notifier.got, 1)
	assert.Equal(t, 20, notifier.got[0].Records)

	assert.Equal(t, models.RunCompleted, m.runs["api"])
	assert.Equal(t, [2]int{20, 0}, m.steps["api"])
	assert.Equal(t, out.Records[19].R2, m.lastR2["api"])
}

func TestRunInsufficientDataWritesEmptyTable(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "csv", 1)
	m := newRecordingMetrics()
	sink := &recordingSink{name: "memory"}
	p := newTestPipeline(t, dir, m, WithSinks(sink))

	out, err := p.Run(context.Background(), "csv")
	require.NoError(t, err)
	assert.Equal(t, models.RunEmpty, out.Status)
	assert.Equal(t, 1, out.Rows)
	assert.Contains(t, out.Reason, ErrInsufficientData.Error())
	assert.Empty(t, out.Records)

	raw, err := os.ReadFile(out.OutputPath)
	require.NoError(t, err)
	assert.Equal(t, "date,predicted_return,actual_return,r2,mse\n", string(raw))
	assert.Len(t, sink.runs, 1)
	assert.Equal(t, models.RunEmpty, m.runs["csv"])
}

func TestRunWindowCoversAllRows(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "api", 4)
	p := newTestPipeline(t, dir, newRecordingMetrics())

	out, err := p.Run(context.Background(), "api")
	require.NoError(t, err)
	assert.Equal(t, models.RunEmpty, out.Status)
	assert.Equal(t, 5, out.InitialTrainSize)
	assert.NotEmpty(t, out.Reason)
}

func TestRunFatalErrors(t *testing.T) {
	dir := t.TempDir()
	p := newTestPipeline(t, dir, newRecordingMetrics())

	_, err := p.Run(context.Background(), "parquet")
	assert.ErrorIs(t, err, features.ErrUnknownSource)

	_, err = p.Run(context.Background(), "api")
	assert.ErrorIs(t, err, os.ErrNotExist)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "crypto_features_api.csv"), []byte("date,symbol,return\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "crypto_sentiment_index.csv"), []byte("date,vader_sentiment\n"), 0o644))
	_, err = p.Run(context.Background(), "api")
	var mc *features.MissingColumnError
	assert.True(t, errors.As(err, &mc))
	assert.False(t, p.results.Exists("api"))
}

func TestRunSinkFailureIsNotFatal(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "api", 20)
	m := newRecordingMetrics()
	bad := &recordingSink{name: "clickhouse", err: errors.New("connection refused")}
	good := &recordingSink{name: "kafka"}
	p := newTestPipeline(t, dir, m, WithSinks(bad, good))

	out, err := p.Run(context.Background(), "api")
	require.NoError(t, err)
	assert.Equal(t, models.RunCompleted, out.Status)
	assert.Len(t, good.runs, 1)
	assert.Contains(t, m.errors, "sink_clickhouse")
}

func TestRunLock(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "api", 20)
	locks := cache.NewMemoryCache()
	t.Cleanup(func() { _ = locks.Close() })
	p := newTestPipeline(t, dir, newRecordingMetrics(), WithRunLock(locks))

	ok, err := locks.TryLock(context.Background(), cache.Key("fincast:run-lock", "api"), time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = p.Run(context.Background(), "api")
	assert.ErrorIs(t, err, ErrRunInProgress)

	require.NoError(t, locks.Unlock(context.Background(), cache.Key("fincast:run-lock", "api")))
	_, err = p.Run(context.Background(), "api")
	require.NoError(t, err)

	// released after the run
	ok, err = locks.TryLock(context.Background(), cache.Key("fincast:run-lock", "api"), time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRunAllContinuesPastFailures(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "api", 20)
	p := newTestPipeline(t, dir, newRecordingMetrics())

	outs, err := p.RunAll(context.Background(), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
	require.Len(t, outs, 1)
	assert.Equal(t, "api", outs[0].Version)
}
