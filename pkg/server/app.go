package server

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"StratView/internal/domain/repository"
	"StratView/internal/service/keepalive"
	"StratView/internal/service/ratelimit"
	"StratView/internal/usecase"
	"StratView/pkg/config"
	xhttp "StratView/pkg/http"
	applogger "StratView/pkg/logger"
)

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	log        *applogger.Logger
	httpServer *xhttp.Server
	controller *usecase.Controller
	pinger     *keepalive.Pinger
	limiter    *ratelimit.Limiter
	events     repository.RunEventPublisher
	closers    []io.Closer
}

// New creates a new App instance with all dependencies. limiter and events
// may be nil.
func New(
	cfg *config.Config,
	log *applogger.Logger,
	httpServer *xhttp.Server,
	controller *usecase.Controller,
	pinger *keepalive.Pinger,
	limiter *ratelimit.Limiter,
	events repository.RunEventPublisher,
) *App {
	return &App{
		cfg:        cfg,
		log:        log,
		httpServer: httpServer,
		controller: controller,
		pinger:     pinger,
		limiter:    limiter,
		events:     events,
	}
}

// AddCloser registers infrastructure released after the controller drains.
func (a *App) AddCloser(c io.Closer) {
	if c != nil {
		a.closers = append(a.closers, c)
	}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if a.pinger != nil && a.cfg.KeepAlive.Enabled {
		a.pinger.Start(ctx)
	}
	if a.limiter != nil {
		go a.limiter.PruneEvery(ctx, a.cfg.RateLimit.PruneInterval, a.cfg.RateLimit.IdleTTL, func(n int) {
			a.log.Debug("pruned idle rate limit buckets", applogger.Int("buckets", n))
		})
	}

	if err := a.httpServer.Start(); err != nil {
		a.log.Error("http server start error", applogger.Error(err))
		return err
	}
	a.log.Info("backtest service",
		applogger.String("base_url", a.cfg.Backtest.BaseURL),
		applogger.String("auto_trade_mode", a.cfg.Backtest.AutoTradeMode),
		applogger.Bool("cache", a.cfg.Cache.Enabled),
		applogger.Bool("events", a.cfg.Events.Enabled),
	)

	// Wait for interrupt
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.log.Info("shutdown signal received")
	return a.shutdown(ctx)
}

// shutdown gracefully stops all services.
func (a *App) shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if a.pinger != nil {
		a.pinger.Stop()
	}

	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		a.log.Error("http shutdown error", applogger.Error(err))
	}

	// cancels the current run and waits for pending event publishes
	if err := a.controller.Close(shutdownCtx); err != nil {
		a.log.Warn("workflow close error", applogger.Error(err))
	}

	if a.events != nil {
		if err := a.events.Close(); err != nil {
			a.log.Warn("run event publisher close error", applogger.Error(err))
		}
	}
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			a.log.Warn("close error", applogger.Error(err))
		}
	}

	a.log.Info("shutdown complete")
	return nil
}
