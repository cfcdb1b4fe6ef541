package backtest

import (
	"context"
	"fmt"
	"time"

	"StratView/internal/domain/models"
	"StratView/internal/domain/repository"
	"StratView/internal/service/cache"
	"StratView/internal/services/outcome"
	"StratView/pkg/logger"
	"StratView/pkg/metrics"

	"golang.org/x/sync/singleflight"
)

// CachedGateway serves benchmark payloads from a cache. The benchmark only
// depends on the date range and capital, so identical requests share one
// remote call and successful payloads are reused until the TTL expires.
// Every other call goes straight to the wrapped gateway.
type CachedGateway struct {
	repository.BacktestGateway

	cache   cache.BytesCache
	ttl     time.Duration
	ceiling time.Duration
	group   singleflight.Group
	log     *logger.Logger
	metrics *metrics.Recorder
}

// NewCachedGateway wraps next. ceiling is reported when a caller gives up
// waiting on a shared call.
func NewCachedGateway(next repository.BacktestGateway, c cache.BytesCache, ttl, ceiling time.Duration, log *logger.Logger, m *metrics.Recorder) *CachedGateway {
	if log == nil {
		log = logger.Nop()
	}
	return &CachedGateway{
		BacktestGateway: next,
		cache:           c,
		ttl:             ttl,
		ceiling:         ceiling,
		log:             log,
		metrics:         m,
	}
}

func benchmarkKey(req models.RunRequest) string {
	return fmt.Sprintf("benchmark:%s:%s:%s", req.StartDate(), req.EndDate(), formatAmount(req.Capital))
}

func (g *CachedGateway) BenchmarkInvestment(ctx context.Context, req models.RunRequest) models.RemoteOutcome {
	key := benchmarkKey(req)

	if b, ok, err := g.cache.GetBytes(ctx, key); err != nil {
		g.log.Warn("benchmark cache read failed", logger.String("key", key), logger.Error(err))
	} else if ok {
		g.metrics.RecordCacheLookup(true)
		return models.OKOutcome(models.EndpointBenchmark, b)
	}
	g.metrics.RecordCacheLookup(false)

	// The shared call must not die with whichever caller started it.
	shared := context.WithoutCancel(ctx)
	ch := g.group.DoChan(key, func() (interface{}, error) {
		out := g.BacktestGateway.BenchmarkInvestment(shared, req)
		if outcome.Classify(out).OK() {
			if err := g.cache.SetBytes(shared, key, out.Body, g.ttl); err != nil {
				g.log.Warn("benchmark cache write failed", logger.String("key", key), logger.Error(err))
			}
		}
		return out, nil
	})

	select {
	case res := <-ch:
		return res.Val.(models.RemoteOutcome)
	case <-ctx.Done():
		return failedOutcome(ctx, models.EndpointBenchmark, g.ceiling, ctx.Err())
	}
}

// WithBenchmarkCache wraps gw when c is non-nil.
func WithBenchmarkCache(gw repository.BacktestGateway, c cache.BytesCache, ttl, ceiling time.Duration, log *logger.Logger, m *metrics.Recorder) repository.BacktestGateway {
	if c == nil {
		return gw
	}
	return NewCachedGateway(gw, c, ttl, ceiling, log, m)
}
