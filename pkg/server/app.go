package server

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"FinCast/pkg/config"
	xhttp "FinCast/pkg/http"
	pkgkafka "FinCast/pkg/kafka"
	applogger "FinCast/pkg/logger"
	"FinCast/pkg/queue"
)

// Handler is re-exported so DI does not import pkg/http directly.
type Handler = xhttp.Handler

// App encapsulates the dashboard service lifecycle: the run queue, the
// optional forecast stream consumer and the HTTP server.
type App struct {
	cfg        *config.Config
	l          *applogger.Logger
	handlers   []Handler
	queue      queue.Queue
	consumer   *pkgkafka.Consumer
	kh         pkgkafka.MessageHandler
	logPub     applogger.Publisher
	onShutdown []func()
	httpServer *xhttp.Server
}

// New creates a new App instance.
func New(cfg *config.Config, l *applogger.Logger, handlers []Handler, q queue.Queue) *App {
	return &App{cfg: cfg, l: l, handlers: handlers, queue: q}
}

// WithConsumer feeds the forecast stream into kh while the app runs.
func (a *App) WithConsumer(c *pkgkafka.Consumer, kh pkgkafka.MessageHandler) *App {
	a.consumer, a.kh = c, kh
	return a
}

// WithLogPublisher ships aggregated error logs to the logs topic.
func (a *App) WithLogPublisher(p applogger.Publisher) *App {
	a.logPub = p
	return a
}

// OnShutdown registers fn to run before the HTTP server stops.
func (a *App) OnShutdown(fn func()) { a.onShutdown = append(a.onShutdown, fn) }

// Run starts the application and blocks until interrupted or the HTTP
// server fails.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if a.logPub != nil {
		a.l.AddCollector(&applogger.CollectionConfig{
			TimeInterval:   30 * time.Second,
			CountThreshold: 100,
			Topic:          a.cfg.Kafka.LogsTopic,
			Publisher:      a.logPub,
		})
		defer a.l.RemoveCollector()
	}

	if a.queue != nil {
		if err := a.queue.Start(); err != nil {
			return err
		}
		a.l.Info("run queue started", applogger.Int("workers", a.cfg.Queue.Workers))
	}

	if a.consumer != nil && a.kh != nil {
		a.consumer.RegisterHandler(a.kh)
		if err := a.consumer.Start(ctx); err != nil {
			a.l.Error("kafka consumer start error", applogger.Error(err))
			return errors.Join(err, a.shutdown(ctx))
		}
		a.l.Info("kafka consumer started", applogger.String("topic", a.kh.Topic()))
	}

	metricsPath := ""
	if a.cfg.Metrics.Enabled {
		metricsPath = a.cfg.Metrics.Path
	}
	a.httpServer = xhttp.NewServer(a.l, a.handlers,
		xhttp.WithHost(a.cfg.Server.Host),
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithCORS(a.cfg.Server.CORS),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
		xhttp.WithMetricsPath(metricsPath),
	)
	errCh := a.httpServer.Start()
	a.l.Info("dashboard listening",
		applogger.Int("port", a.cfg.Server.Port),
		applogger.Strings("versions", a.cfg.Data.Versions),
		applogger.Bool("consumer", a.consumer != nil),
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	var runErr error
	select {
	case <-sigCh:
		a.l.Info("shutdown signal received")
	case err := <-errCh:
		a.l.Error("http server error", applogger.Error(err))
		runErr = err
	}
	return errors.Join(runErr, a.shutdown(ctx))
}

// shutdown stops intake first, then the workers.
func (a *App) shutdown(ctx context.Context) error {
	a.l.Info("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	for _, fn := range a.onShutdown {
		fn()
	}

	var errs []error
	if a.httpServer != nil {
		if err := a.httpServer.Stop(shutdownCtx); err != nil {
			a.l.Error("http shutdown error", applogger.Error(err))
			errs = append(errs, err)
		}
	}
	if a.consumer != nil {
		if err := a.consumer.Stop(shutdownCtx); err != nil {
			a.l.Warn("kafka consumer stop error", applogger.Error(err))
			errs = append(errs, err)
		}
	}
	if a.queue != nil {
		if err := a.queue.Stop(shutdownCtx); err != nil {
			a.l.Warn("run queue stop error", applogger.Error(err))
			errs = append(errs, err)
		}
	}

	a.l.Info("shutdown complete")
	return errors.Join(errs...)
}
