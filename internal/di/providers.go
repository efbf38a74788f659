package di

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	domrepo "FinCast/internal/domain/repository"
	domsvc "FinCast/internal/domain/service"
	"FinCast/internal/handler/api"
	"FinCast/internal/middleware"
	internalrepo "FinCast/internal/repository"
	icache "FinCast/internal/service/cache"
	"FinCast/internal/service/gemini"
	imetrics "FinCast/internal/service/metrics"
	"FinCast/internal/service/ratelimit"
	"FinCast/internal/services/chart"
	"FinCast/internal/usecase"
	"FinCast/pkg/cache"
	pkgch "FinCast/pkg/clickhouse"
	"FinCast/pkg/config"
	pkgkafka "FinCast/pkg/kafka"
	"FinCast/pkg/logger"
	"FinCast/pkg/metrics"
	"FinCast/pkg/queue"
	"FinCast/pkg/server"
)

// ProvideLogger builds the process logger from the logging section.
func ProvideLogger(cfg *config.Config) (*logger.Logger, error) {
	l, err := logger.New(&cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l.With(logger.String("env", cfg.Environment)), nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() domrepo.Metrics {
	imetrics.Register()
	return metrics.New()
}

// ProvideRedisClient connects to Redis when enabled; nil otherwise.
func ProvideRedisClient(cfg *config.Config) (*redis.Client, func(), error) {
	if !cfg.Redis.Enabled {
		return nil, func() {}, nil
	}
	rc, err := cache.NewRedisCache(
		cache.WithRedisAddr(cfg.Redis.Addr),
		cache.WithRedisAuth(cfg.Redis.Password, cfg.Redis.DB),
		cache.WithRedisPrefix("fincast"),
	)
	if err != nil {
		return nil, nil, err
	}
	client := rc.Client()
	return client, func() { _ = client.Close() }, nil
}

// ProvideCache is Redis behind an in-process L1 when Redis is enabled,
// the in-process cache alone otherwise.
func ProvideCache(cfg *config.Config, client *redis.Client) (cache.Service, func()) {
	var svc cache.Service
	if client != nil {
		svc = cache.NewLayeredCache(cache.NewRedisCacheFromClient(client, "fincast"), 1000, time.Minute)
	} else {
		svc = cache.NewMemoryCache(cache.WithMemoryMaxSize(1000), cache.WithMemoryCleanup(time.Minute))
	}
	return svc, func() { _ = svc.Close() }
}

// ProvideChartCache stores rendered PNGs.
func ProvideChartCache(client *redis.Client) icache.BytesCache {
	if client != nil {
		return icache.NewRedisCache(client, "fincast:png")
	}
	return icache.NewTTLCache(64)
}

// ProvideClickHouseClient connects and creates the database when enabled.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, func(), error) {
	if !cfg.ClickHouse.Enabled {
		return nil, func() {}, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithAddress(cfg.ClickHouse.Host, cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.InitSchema(ctx, []string{"CREATE DATABASE IF NOT EXISTS " + cfg.ClickHouse.Database}); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return client, func() { _ = client.Close() }, nil
}

// ProvideForecastStore creates the forecast table; nil without ClickHouse.
func ProvideForecastStore(client *pkgch.Client, cfg *config.Config, l *logger.Logger) (*internalrepo.CHForecastStore, error) {
	if client == nil {
		return nil, nil
	}
	table := client.Database() + "." + cfg.ClickHouse.Table
	store := internalrepo.NewCHForecastStore(client, table, l)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := store.Init(ctx); err != nil {
		return nil, fmt.Errorf("forecast table: %w", err)
	}
	return store, nil
}

// ProvideKafkaProducer creates a Kafka producer when enabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, func(), error) {
	if !cfg.Kafka.Enabled {
		return nil, func() {}, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithDelivery(cfg.Kafka.RequiredAcks, cfg.Kafka.Compression, cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithBatching(cfg.Kafka.Producer.BatchSize, cfg.Kafka.Producer.BatchBytes, cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, func() { _ = producer.Close() }, nil
}

// ProvideKafkaConsumer creates the forecast stream consumer when both Kafka
// and the consumer are enabled.
func ProvideKafkaConsumer(cfg *config.Config, l *logger.Logger) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled || !cfg.Kafka.Consumer.Enabled {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(l,
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers, cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return consumer, nil
}

// ProvideForecastBuffer parks store writes while ClickHouse is down; nil
// without a store.
func ProvideForecastBuffer(store *internalrepo.CHForecastStore, m domrepo.Metrics) (*middleware.ForecastBuffer, func()) {
	if store == nil {
		return nil, func() {}
	}
	buf := middleware.NewForecastBuffer(store, m, middleware.WithBufferSize(256))
	buf.Start(context.Background())
	return buf, buf.Stop
}

// ProvideKafkaForecastHandler persists streamed forecasts; nil unless both
// the consumer and ClickHouse exist.
func ProvideKafkaForecastHandler(cfg *config.Config, consumer *pkgkafka.Consumer, buf *middleware.ForecastBuffer, m domrepo.Metrics) *usecase.KafkaForecastHandler {
	if consumer == nil || buf == nil {
		return nil
	}
	return usecase.NewKafkaForecastHandler(cfg.Kafka.Topic, buf, m)
}

// ProvideResultStore writes predictions tables under the output dir.
func ProvideResultStore(cfg *config.Config) *internalrepo.CSVResultStore {
	return internalrepo.NewCSVResultStore(cfg.OutputPath)
}

func ProvideRunStream(l *logger.Logger) *api.RunStream {
	return api.NewRunStream(l)
}

// ProvideForecastPipeline wires the result store, the enabled sinks and
// the run notifier around the engine.
func ProvideForecastPipeline(
	cfg *config.Config,
	results *internalrepo.CSVResultStore,
	m domrepo.Metrics,
	l *logger.Logger,
	locks cache.Service,
	producer *pkgkafka.Producer,
	store *internalrepo.CHForecastStore,
	stream *api.RunStream,
) *usecase.ForecastPipeline {
	opts := []usecase.PipelineOption{usecase.WithRunLock(locks)}
	if producer != nil {
		opts = append(opts, usecase.WithSinks(internalrepo.NewKafkaForecastPublisher(producer, cfg.Kafka.Topic)))
	} else if store != nil {
		// with Kafka on, ClickHouse is fed by the stream consumer instead
		opts = append(opts, usecase.WithSinks(store))
	}
	if stream != nil {
		opts = append(opts, usecase.WithNotifier(stream))
	}

	return usecase.NewForecastPipeline(usecase.PipelineConfig{
		Symbol:        cfg.Data.Symbol,
		Alpha:         cfg.Forecast.Alpha,
		Workers:       cfg.Forecast.Workers,
		Versions:      cfg.Data.Versions,
		FeaturePath:   cfg.FeaturePath,
		SentimentPath: cfg.SentimentPath(),
	}, results, m, l, opts...)
}

// ProvideTextGenerator is the Gemini client.
func ProvideTextGenerator(cfg *config.Config, l *logger.Logger) domsvc.TextGenerator {
	return gemini.New(gemini.Config{
		APIKey:  cfg.Insight.APIKey,
		Model:   cfg.Insight.Model,
		BaseURL: cfg.Insight.BaseURL,
		Timeout: cfg.Insight.Timeout,
		RPS:     cfg.Insight.RPS,
		Burst:   cfg.Insight.Burst,
	}, l)
}

func ProvideInsightGenerator(cfg *config.Config, results *internalrepo.CSVResultStore, gen domsvc.TextGenerator, c cache.Service, l *logger.Logger) *usecase.InsightGenerator {
	return usecase.NewInsightGenerator(results, gen, l,
		usecase.WithInsightRows(cfg.Insight.Rows),
		usecase.WithInsightCache(c, cfg.Insight.CacheTTL),
	)
}

// ProvideRunQueue is the Redis queue when Redis is enabled, an in-process
// queue otherwise. The run job is registered on it.
func ProvideRunQueue(cfg *config.Config, l *logger.Logger, client *redis.Client, pipeline *usecase.ForecastPipeline) queue.Queue {
	qcfg := &queue.QueueConfig{
		Workers:    cfg.Queue.Workers,
		RetryLimit: cfg.Queue.MaxAttempts - 1,
		BackoffMin: cfg.Queue.BackoffMin,
		BackoffMax: cfg.Queue.BackoffMax,
	}
	var q queue.Queue
	if client != nil {
		q = queue.NewRedisQueue(l, qcfg, client, queue.WithKeyPrefix(cfg.Queue.Name))
	} else {
		q = queue.NewMemoryQueue(l, qcfg)
	}
	q.RegisterJob(usecase.NewRunJob(pipeline))
	return q
}

func ProvideRunDispatcher(pipeline *usecase.ForecastPipeline, q queue.Queue, l *logger.Logger) *usecase.RunDispatcher {
	return usecase.NewRunDispatcher(context.Background(), pipeline, q, l)
}

func ProvideDashboardUseCase(cfg *config.Config, results *internalrepo.CSVResultStore, png icache.BytesCache, insights *usecase.InsightGenerator) *usecase.DashboardUseCase {
	return usecase.NewDashboardUseCase(results, cfg.Data.Versions, chart.NewRenderer(), png, cfg.Charts.CacheTTL, insights)
}

func ProvideDashboardHandler(cfg *config.Config, l *logger.Logger, uc *usecase.DashboardUseCase, runs *usecase.RunDispatcher) *api.DashboardHandler {
	// the dashboard limiter is per client; Gemini's own limiter is global
	return api.NewDashboardHandler(l, uc, runs, ratelimit.New(cfg.Insight.RPS, cfg.Insight.Burst))
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *logger.Logger,
	dashboard *api.DashboardHandler,
	stream *api.RunStream,
	runQueue queue.Queue,
	consumer *pkgkafka.Consumer,
	kh *usecase.KafkaForecastHandler,
	producer *pkgkafka.Producer,
) *server.App {
	app := server.New(cfg, l, []server.Handler{dashboard, stream}, runQueue)
	if consumer != nil && kh != nil {
		app.WithConsumer(consumer, kh)
	}
	if producer != nil {
		app.WithLogPublisher(producer)
	}
	app.OnShutdown(stream.Close)
	return app
}

// CLI bundles what the command line tools need.
type CLI struct {
	Config   *config.Config
	Logger   *logger.Logger
	Pipeline *usecase.ForecastPipeline
	Insights *usecase.InsightGenerator
	Results  *internalrepo.CSVResultStore
	Charts   *chart.Renderer
}

func ProvideCLI(cfg *config.Config, l *logger.Logger, p *usecase.ForecastPipeline, in *usecase.InsightGenerator, results *internalrepo.CSVResultStore) *CLI {
	return &CLI{Config: cfg, Logger: l, Pipeline: p, Insights: in, Results: results, Charts: chart.NewRenderer()}
}
