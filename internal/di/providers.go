package di

import (
	"fmt"
	"io"

	"StratView/internal/domain/repository"
	"StratView/internal/handler/api"
	internalrepo "StratView/internal/repository"
	"StratView/internal/service/cache"
	"StratView/internal/service/keepalive"
	"StratView/internal/service/ratelimit"
	"StratView/internal/services/backtest"
	"StratView/internal/usecase"
	"StratView/pkg/config"
	xhttp "StratView/pkg/http"
	pkgkafka "StratView/pkg/kafka"
	"StratView/pkg/logger"
	"StratView/pkg/metrics"
	"StratView/pkg/server"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*logger.Logger, error) {
	l, err := logger.New(&logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l, nil
}

// ProvideMetrics creates a Prometheus metrics recorder on the default registry.
func ProvideMetrics() *metrics.Recorder {
	return metrics.New(nil)
}

// ProvideCache creates the benchmark payload cache; nil when disabled.
func ProvideCache(cfg *config.Config) (cache.BytesCache, error) {
	c, err := cache.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("cache: %w", err)
	}
	return c, nil
}

// ProvideBacktestGateway creates the HTTP gateway, with the benchmark cache
// in front of it when one is configured.
func ProvideBacktestGateway(cfg *config.Config, c cache.BytesCache, l *logger.Logger, m *metrics.Recorder) repository.BacktestGateway {
	return backtest.WithBenchmarkCache(
		backtest.NewHTTPGateway(cfg),
		c,
		cfg.Cache.TTL,
		cfg.Backtest.Timeouts.Benchmark,
		l,
		m,
	)
}

// ProvideKafkaProducer creates a Kafka producer.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Events.Brokers),
		pkgkafka.WithCompression(cfg.Events.Compression),
		pkgkafka.WithRequiredAcks(-1),
		pkgkafka.WithBatchSize(1),
		pkgkafka.WithMaxAttempts(3),
		pkgkafka.WithTimeouts(cfg.Events.WriteTimeout, cfg.Events.WriteTimeout),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideRunEventPublisher creates the Kafka run publisher; nil when events
// are disabled.
func ProvideRunEventPublisher(cfg *config.Config) (repository.RunEventPublisher, error) {
	if !cfg.Events.Enabled {
		return nil, nil
	}
	producer, err := ProvideKafkaProducer(cfg)
	if err != nil {
		return nil, err
	}
	return internalrepo.NewKafkaRunPublisher(producer, cfg.Events.Topic), nil
}

// ProvideOrchestrator creates the request orchestrator.
func ProvideOrchestrator(gw repository.BacktestGateway, cfg *config.Config, l *logger.Logger, m *metrics.Recorder) *usecase.Orchestrator {
	return usecase.NewOrchestrator(gw, cfg, l, m)
}

// ProvideController creates the workflow controller.
func ProvideController(o *usecase.Orchestrator, events repository.RunEventPublisher, l *logger.Logger, m *metrics.Recorder) *usecase.Controller {
	return usecase.NewController(o, events, l, m)
}

// ProvideRateLimiter creates the per-client submission limiter.
func ProvideRateLimiter(cfg *config.Config) *ratelimit.Limiter {
	return ratelimit.New(cfg.RateLimit.Capacity, cfg.RateLimit.RefillPerSec)
}

// ProvideRunsHandler creates the run API handler.
func ProvideRunsHandler(cfg *config.Config, l *logger.Logger, c *usecase.Controller, rl *ratelimit.Limiter) *api.RunsEchoHandler {
	h := api.NewRunsEchoHandler(l, c, rl)
	h.SetDefaultMaxStocks(cfg.Backtest.DefaultMaxStocks)
	return h
}

// ProvideKeepAlive creates the heartbeat pinger.
func ProvideKeepAlive(gw repository.BacktestGateway, cfg *config.Config, l *logger.Logger, m *metrics.Recorder) *keepalive.Pinger {
	return keepalive.New(gw, cfg.KeepAlive.Interval, l, m)
}

// ProvideHTTPServer creates the Echo server with every handler registered.
func ProvideHTTPServer(cfg *config.Config, l *logger.Logger, h *api.RunsEchoHandler) *xhttp.Server {
	metricsPath := ""
	if cfg.Metrics.Enabled {
		metricsPath = cfg.Metrics.Path
	}
	return xhttp.NewServer(l, []xhttp.Handler{h},
		xhttp.WithHost(cfg.Server.Host),
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithCORSOrigins(cfg.Server.CORSOrigins),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithSlowThreshold(cfg.Server.SlowThreshold),
		xhttp.WithMetricsPath(metricsPath),
	)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *logger.Logger,
	srv *xhttp.Server,
	c *usecase.Controller,
	pinger *keepalive.Pinger,
	rl *ratelimit.Limiter,
	events repository.RunEventPublisher,
	bc cache.BytesCache,
) *server.App {
	app := server.New(cfg, l, srv, c, pinger, rl, events)
	if closer, ok := bc.(io.Closer); ok {
		app.AddCloser(closer)
	}
	return app
}
