package repository

import (
	"context"
	"fmt"
	"time"

	"FinCast/internal/domain/models"
	pkgch "FinCast/pkg/clickhouse"
	applogger "FinCast/pkg/logger"
)

// ForecastSchema creates the forecast table. ReplacingMergeTree collapses
// a record delivered twice by the stream.
func ForecastSchema(table string) []string {
	return []string{fmt.Sprintf(`
        CREATE TABLE IF NOT EXISTS %s (
            run_id      String,
            version     LowCardinality(String),
            symbol      LowCardinality(String),
            step        UInt32,
            date        DateTime64(3, 'UTC'),
            predicted   Float64,
            actual      Float64,
            r2          Float64,
            mse         Float64,
            error       String,
            inserted_at DateTime DEFAULT now()
        )
        ENGINE = ReplacingMergeTree(inserted_at)
        ORDER BY (version, date, run_id, step)
    `, table)}
}

// CHForecastStore writes forecast records to ClickHouse. It is a run sink
// (direct mode) and the stream consumer's writer.
type CHForecastStore struct {
	ch    *pkgch.Client
	table string
	l     *applogger.Logger
}

func NewCHForecastStore(ch *pkgch.Client, table string, l *applogger.Logger) *CHForecastStore {
	return &CHForecastStore{ch: ch, table: table, l: l}
}

// Init creates the table if needed.
func (s *CHForecastStore) Init(ctx context.Context) error {
	return s.ch.InitSchema(ctx, ForecastSchema(s.table))
}

func (s *CHForecastStore) Name() string { return "clickhouse" }

// Write stores every record of a finished run.
func (s *CHForecastStore) Write(ctx context.Context, run models.RunSummary, records []models.ForecastRecord) error {
	events := make([]models.ForecastEvent, len(records))
	for i, r := range records {
		events[i] = models.ForecastEvent{RunID: run.RunID, Version: run.Version, Symbol: run.Symbol, Step: i, Record: r}
	}
	return s.WriteEvents(ctx, events)
}

// WriteEvents inserts events in one batch.
func (s *CHForecastStore) WriteEvents(ctx context.Context, events []models.ForecastEvent) error {
	if len(events) == 0 {
		return nil
	}
	start := time.Now()

	batch, err := s.ch.Conn().PrepareBatch(ctx, fmt.Sprintf(
		"INSERT INTO %s (run_id, version, symbol, step, date, predicted, actual, r2, mse, error)", s.table))
	if err != nil {
		return fmt.Errorf("prepare forecast batch: %w", err)
	}
	for _, e := range events {
		var errText string
		if e.Record.Err != nil {
			errText = e.Record.Err.Error()
		}
		if err := batch.Append(
			e.RunID,
			e.Version,
			e.Symbol,
			uint32(e.Step),
			e.Record.Date.UTC(),
			e.Record.Predicted,
			e.Record.Actual,
			e.Record.R2,
			e.Record.MSE,
			errText,
		); err != nil {
			_ = batch.Abort()
			return fmt.Errorf("append forecast row: %w", err)
		}
	}
	if err := batch.Send(); err != nil {
		s.l.Error("clickhouse insert forecasts failed",
			applogger.String("table", s.table),
			applogger.Int("rows", len(events)),
			applogger.Error(err),
		)
		return fmt.Errorf("send forecast batch: %w", err)
	}

	s.l.Debug("clickhouse insert forecasts ok",
		applogger.String("table", s.table),
		applogger.Int("rows", len(events)),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return nil
}
