package repository

import (
	"bytes"
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FinCast/internal/domain/models"
	domrepo "FinCast/internal/domain/repository"
	pkgkafka "FinCast/pkg/kafka"
)

func day(d int) time.Time { return time.Date(2024, 3, d, 0, 0, 0, 0, time.UTC) }

func newStore(t *testing.T) *CSVResultStore {
	dir := t.TempDir()
	return NewCSVResultStore(func(v string) string {
		return filepath.Join(dir, "btc_predictions_"+v+".csv")
	})
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	records := []models.ForecastRecord{
		{Date: day(3), Predicted: 0.01, Actual: 0.02, R2: 0.5, MSE: 0.001},
		{Date: day(2), Predicted: math.NaN(), Actual: -0.01, R2: math.NaN(), MSE: math.NaN(), Err: errors.New("singular")},
	}

	path, err := s.Save(ctx, "api", records)
	require.NoError(t, err)
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "date,predicted_return,actual_return,r2,mse\n"+
		"2024-03-02,,-0.01,,\n"+
		"2024-03-03,0.01,0.02,0.5,0.001\n", string(raw))

	got, err := s.Load(ctx, "api")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, day(2), got[0].Date)
	assert.True(t, got[0].Failed())
	assert.True(t, math.IsNaN(got[0].R2))
	assert.Equal(t, 0.01, got[1].Predicted)
	assert.False(t, got[1].Failed())
	assert.True(t, s.Exists("api"))
}

func TestSaveEmptyWritesHeader(t *testing.T) {
	s := newStore(t)
	path, err := s.Save(context.Background(), "csv", nil)
	require.NoError(t, err)
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "date,predicted_return,actual_return,r2,mse\n", string(raw))

	got, err := s.Load(context.Background(), "csv")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestLoadMissingAndZeroByte(t *testing.T) {
	s := newStore(t)
	_, err := s.Load(context.Background(), "api")
	assert.ErrorIs(t, err, domrepo.ErrResultsNotFound)
	assert.False(t, s.Exists("api"))

	require.NoError(t, os.WriteFile(s.Path("api"), nil, 0o644))
	got, err := s.Load(context.Background(), "api")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestTail(t *testing.T) {
	s := newStore(t)
	var records []models.ForecastRecord
	for d := 1; d <= 15; d++ {
		records = append(records, models.ForecastRecord{Date: day(d), Predicted: float64(d), Actual: 0, R2: 0, MSE: 0})
	}
	_, err := s.Save(context.Background(), "api", records)
	require.NoError(t, err)

	tail, err := s.Tail(context.Background(), "api", 10)
	require.NoError(t, err)
	require.Len(t, tail, 10)
	assert.Equal(t, day(6), tail[0].Date)
	assert.Equal(t, day(15), tail[9].Date)

	all, err := s.Tail(context.Background(), "api", 100)
	require.NoError(t, err)
	assert.Len(t, all, 15)
}

func TestWriteResultsIntradayUsesRFC3339(t *testing.T) {
	var buf bytes.Buffer
	ts := time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)
	require.NoError(t, WriteResults(&buf, []models.ForecastRecord{{Date: ts, Predicted: 1, Actual: 1, R2: 1, MSE: 0}}))
	assert.Contains(t, buf.String(), "2024-03-01T12:30:00Z,1,1,1,0")

	got, err := ReadResults(&buf)
	require.NoError(t, err)
	assert.True(t, ts.Equal(got[0].Date))
}

func TestReadResultsRejectsForeignTable(t *testing.T) {
	_, err := ReadResults(bytes.NewBufferString("date,close\n2024-01-01,1\n"))
	assert.Error(t, err)
}

func TestKafkaForecastPublisher(t *testing.T) {
	cp := &recordingBatch{}
	p := &KafkaForecastPublisher{producer: cp, topic: "fincast.forecasts"}
	run := models.RunSummary{RunID: "r1", Version: "csv", Symbol: "BTC"}
	err := p.Write(context.Background(), run, []models.ForecastRecord{{Date: day(1)}, {Date: day(2)}})
	require.NoError(t, err)

	assert.Equal(t, "fincast.forecasts", cp.topic)
	require.Len(t, cp.events, 2)
	for i, m := range cp.events {
		assert.Equal(t, []byte("csv"), m.Key)
		ev := m.Value.(models.ForecastEvent)
		assert.Equal(t, i, ev.Step)
		assert.Equal(t, "r1", ev.RunID)
	}

	require.NoError(t, p.Write(context.Background(), run, nil))
	assert.Equal(t, 1, cp.calls)
}

type recordingBatch struct {
	topic  string
	calls  int
	events []pkgkafka.Message
}

func (r *recordingBatch) PublishBatch(_ context.Context, topic string, msgs []pkgkafka.Message) error {
	r.calls++
	r.topic = topic
	r.events = append(r.events, msgs...)
	return nil
}
