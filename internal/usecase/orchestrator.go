package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"StratView/internal/domain/models"
	"StratView/internal/domain/repository"
	"StratView/internal/services/backtest"
	"StratView/internal/services/outcome"
	"StratView/internal/services/series"
	"StratView/pkg/config"
	"StratView/pkg/logger"
	"StratView/pkg/metrics"

	"github.com/shopspring/decimal"
)

// Auto-trade strategies.
const (
	// AutoTradePipeline screens first, then backtests the picks alongside
	// the benchmark.
	AutoTradePipeline = "pipeline"
	// AutoTradeCombined uses the service's single auto-trade endpoint and
	// fetches the benchmark alongside it.
	AutoTradeCombined = "combined"
)

// Executor runs the remote part of one workflow run.
type Executor interface {
	Execute(ctx context.Context, runID string, req models.RunRequest) (*models.RunResult, error)
}

// Orchestrator issues the remote calls a run needs, classifies each outcome
// and reconciles the legs. Required calls fail the run as soon as they fail;
// the benchmark is best-effort. Calls still in flight when Execute returns
// are left to finish and their results dropped.
type Orchestrator struct {
	gw               repository.BacktestGateway
	log              *logger.Logger
	metrics          *metrics.Recorder
	mode             string
	autoTradeTimeout time.Duration
}

var _ Executor = (*Orchestrator)(nil)

func NewOrchestrator(gw repository.BacktestGateway, cfg *config.Config, log *logger.Logger, m *metrics.Recorder) *Orchestrator {
	if log == nil {
		log = logger.Nop()
	}
	return &Orchestrator{
		gw:               gw,
		log:              log,
		metrics:          m,
		mode:             cfg.Backtest.AutoTradeMode,
		autoTradeTimeout: cfg.Backtest.Timeouts.AutoTrade,
	}
}

type callResult struct {
	out models.RemoteOutcome
	cls models.Classification
}

// fanout tracks the calls of one Execute so that the run context can be
// released once the last of them, including abandoned ones, returns.
type fanout struct {
	o     *Orchestrator
	runID string
	wg    sync.WaitGroup
}

func (f *fanout) start(ctx context.Context, endpoint string, fn func(context.Context) models.RemoteOutcome) <-chan callResult {
	ch := make(chan callResult, 1)
	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		ch <- f.o.call(ctx, f.runID, endpoint, fn)
	}()
	return ch
}

func (o *Orchestrator) call(ctx context.Context, runID, endpoint string, fn func(context.Context) models.RemoteOutcome) callResult {
	start := time.Now()
	out := fn(ctx)
	cls := outcome.Classify(out)
	d := time.Since(start)

	kind := string(cls.Kind)
	if cls.OK() {
		kind = "None"
	}
	o.metrics.RecordRemoteCall(endpoint, kind, d)

	fields := []logger.Field{
		logger.String("run_id", runID),
		logger.String("endpoint", endpoint),
		logger.String("kind", kind),
		logger.Duration("duration_ms", d),
	}
	if cls.OK() {
		o.log.Debug("remote call completed", fields...)
	} else {
		fields = append(fields, logger.String("message", cls.Message), logger.String("tag", out.Tag.String()))
		if out.Message != "" {
			fields = append(fields, logger.String("detail", out.Message))
		}
		o.log.Warn("remote call failed", fields...)
	}
	return callResult{out: out, cls: cls}
}

// Execute runs req. Failures are returned as *models.Failure; a cancelled
// ctx yields ctx.Err().
func (o *Orchestrator) Execute(ctx context.Context, runID string, req models.RunRequest) (*models.RunResult, error) {
	f := &fanout{o: o, runID: runID}

	switch req.Variant {
	case models.VariantManual:
		return o.compare(ctx, f, req, nil)

	case models.VariantScreenOnly:
		picks, err := o.screen(ctx, f, req)
		if err != nil {
			return nil, err
		}
		return &models.RunResult{
			Series:   models.AlignedSeries{},
			Strategy: models.StrategySummary{Tickers: models.Symbols(picks), Initial: req.Capital},
			Selected: picks,
		}, nil

	case models.VariantAutoTrade:
		runCtx, cancel := context.WithTimeout(ctx, o.autoTradeTimeout)
		req = withScreeningDefaults(req)

		var (
			res *models.RunResult
			err error
		)
		if o.mode == AutoTradeCombined {
			res, err = o.combined(runCtx, f, req)
		} else {
			res, err = o.pipeline(runCtx, f, req)
		}
		// every call has been started by now; release the deadline once the
		// abandoned ones return too
		go func() {
			f.wg.Wait()
			cancel()
		}()
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			err = &models.Failure{
				Kind:    models.KindTimedOut,
				Message: fmt.Sprintf("the auto-trade run took longer than %s", o.autoTradeTimeout),
			}
		}
		return res, err
	}

	return nil, models.Invalid("unknown workflow variant %q", req.Variant)
}

func (o *Orchestrator) screen(ctx context.Context, f *fanout, req models.RunRequest) ([]models.SelectedStock, error) {
	r, err := await(ctx, f.start(ctx, models.EndpointScreening, func(ctx context.Context) models.RemoteOutcome {
		return o.gw.ScreenStocks(ctx, req)
	}))
	if err != nil {
		return nil, err
	}
	if !r.cls.OK() {
		return nil, r.cls.Err()
	}
	picks := backtest.DecodeScreening(r.out.Body)
	if len(picks) == 0 {
		return nil, &models.Failure{Kind: models.KindServiceRejected, Message: "screening returned no stocks"}
	}
	return picks, nil
}

func (o *Orchestrator) pipeline(ctx context.Context, f *fanout, req models.RunRequest) (*models.RunResult, error) {
	picks, err := o.screen(ctx, f, req)
	if err != nil {
		return nil, err
	}
	traded := req.WithTickers(models.Symbols(picks))
	traded.Optimize = true
	return o.compare(ctx, f, traded, picks)
}

// compare backtests req.Tickers and fetches the benchmark concurrently.
func (o *Orchestrator) compare(ctx context.Context, f *fanout, req models.RunRequest, picks []models.SelectedStock) (*models.RunResult, error) {
	strategyCh := f.start(ctx, models.EndpointStrategy, func(ctx context.Context) models.RemoteOutcome {
		return o.gw.StrategyBacktest(ctx, req)
	})
	benchCh := f.start(ctx, models.EndpointBenchmark, func(ctx context.Context) models.RemoteOutcome {
		return o.gw.BenchmarkInvestment(ctx, req)
	})

	s, err := await(ctx, strategyCh)
	if err != nil {
		return nil, err
	}
	if !s.cls.OK() {
		return nil, s.cls.Err()
	}

	b, err := await(ctx, benchCh)
	if err != nil {
		return nil, err
	}
	return o.assemble(f.runID, req, backtest.DecodeStrategy(s.out.Body), b, picks), nil
}

func (o *Orchestrator) combined(ctx context.Context, f *fanout, req models.RunRequest) (*models.RunResult, error) {
	autoCh := f.start(ctx, models.EndpointAutoTrade, func(ctx context.Context) models.RemoteOutcome {
		return o.gw.AutoTrade(ctx, req)
	})
	benchCh := f.start(ctx, models.EndpointBenchmark, func(ctx context.Context) models.RemoteOutcome {
		return o.gw.BenchmarkInvestment(ctx, req)
	})

	a, err := await(ctx, autoCh)
	if err != nil {
		return nil, err
	}
	if !a.cls.OK() {
		return nil, a.cls.Err()
	}
	at := backtest.DecodeAutoTrade(a.out.Body)

	b, err := await(ctx, benchCh)
	if err != nil {
		return nil, err
	}
	return o.assemble(f.runID, req.WithTickers(models.Symbols(at.Selected)), at.Strategy, b, at.Selected), nil
}

func (o *Orchestrator) assemble(runID string, req models.RunRequest, strategy backtest.Strategy, bench callResult, picks []models.SelectedStock) *models.RunResult {
	res := &models.RunResult{
		Strategy: models.StrategySummary{
			Tickers:        req.Tickers,
			Initial:        req.Capital,
			Final:          knownFinal(strategy.Leg),
			TotalReturnPct: strategy.TotalReturnPct,
			Params:         strategy.Params,
			Report:         strategy.Report,
		},
		Selected: picks,
	}
	if res.Strategy.TotalReturnPct == nil && res.Strategy.Final.Known && req.Capital > 0 {
		pct := totalReturnPct(req.Capital, res.Strategy.Final.Value)
		res.Strategy.TotalReturnPct = &pct
	}

	var benchLeg models.Leg
	if bench.cls.OK() {
		benchLeg = backtest.DecodeBenchmark(bench.out.Body)
		res.Benchmark.Final = knownFinal(benchLeg)
	} else {
		res.Benchmark.Degraded = true
		res.Benchmark.Message = bench.cls.Message
		o.log.Warn("benchmark unavailable, drawing flat line",
			logger.String("run_id", runID),
			logger.String("kind", string(bench.cls.Kind)),
		)
	}

	res.Series = series.Reconcile(strategy.Leg, benchLeg, req.Capital)
	return res
}

// knownFinal prefers the reported final balance and falls back to the last
// reported point.
func knownFinal(l models.Leg) models.Balance {
	if l.Final.Known {
		return l.Final
	}
	if last, ok := l.Series.Last(); ok {
		return models.KnownBalance(last.Value)
	}
	return models.Balance{}
}

func totalReturnPct(capital, final float64) float64 {
	if capital <= 0 || math.IsNaN(capital) || math.IsInf(capital, 0) || math.IsNaN(final) || math.IsInf(final, 0) {
		return 0
	}
	c := decimal.NewFromFloat(capital)
	return decimal.NewFromFloat(final).Sub(c).Div(c).Mul(decimal.NewFromInt(100)).Round(2).InexactFloat64()
}

func withScreeningDefaults(req models.RunRequest) models.RunRequest {
	if req.Timeframe == "" {
		req.Timeframe = models.TimeframeMedium
	}
	if req.StrategyMode == "" {
		req.StrategyMode = models.ModeModerate
	}
	return req
}

func await(ctx context.Context, ch <-chan callResult) (callResult, error) {
	select {
	case r := <-ch:
		return r, nil
	case <-ctx.Done():
		return callResult{}, ctx.Err()
	}
}
