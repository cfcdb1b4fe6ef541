// Package backtest talks to the remote backtesting service and normalises
// its payloads.
package backtest

import (
	"context"
	"errors"
	"net/url"
	"strconv"
	"strings"
	"time"

	"StratView/internal/domain/models"
	"StratView/internal/domain/repository"
	"StratView/pkg/config"
	xhttp "StratView/pkg/http"
)

// Paths are the endpoint paths under the base URL.
type Paths struct {
	Strategy  string
	Benchmark string
	Screening string
	AutoTrade string
	Heartbeat string
}

// Timeouts are the per-call ceilings.
type Timeouts struct {
	Strategy  time.Duration
	Benchmark time.Duration
	Screening time.Duration
	AutoTrade time.Duration
	Heartbeat time.Duration
}

// HTTPGateway is the HTTP implementation of repository.BacktestGateway.
// All endpoints are plain GETs with query parameters.
type HTTPGateway struct {
	baseURL  string
	paths    Paths
	timeouts Timeouts
	client   *xhttp.Client
}

var _ repository.BacktestGateway = (*HTTPGateway)(nil)

// NewHTTPGateway builds a gateway from config. The base URL is used as is;
// a missing or malformed value surfaces as a transport error on each call.
func NewHTTPGateway(cfg *config.Config) *HTTPGateway {
	b := cfg.Backtest
	return NewHTTPGatewayWith(b.BaseURL,
		Paths{
			Strategy:  b.Paths.Strategy,
			Benchmark: b.Paths.Benchmark,
			Screening: b.Paths.Screening,
			AutoTrade: b.Paths.AutoTrade,
			Heartbeat: b.Paths.Heartbeat,
		},
		Timeouts{
			Strategy:  b.Timeouts.Strategy,
			Benchmark: b.Timeouts.Benchmark,
			Screening: b.Timeouts.Screening,
			AutoTrade: b.Timeouts.AutoTrade,
			Heartbeat: cfg.KeepAlive.Timeout,
		},
	)
}

// NewHTTPGatewayWith builds a gateway from explicit settings.
func NewHTTPGatewayWith(baseURL string, paths Paths, timeouts Timeouts, opts ...xhttp.ClientOption) *HTTPGateway {
	// per-call contexts carry the deadlines
	opts = append([]xhttp.ClientOption{xhttp.WithTimeout(0)}, opts...)
	return &HTTPGateway{
		baseURL:  strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		paths:    paths,
		timeouts: timeouts,
		client:   xhttp.NewClient(opts...),
	}
}

func (g *HTTPGateway) StrategyBacktest(ctx context.Context, req models.RunRequest) models.RemoteOutcome {
	q := url.Values{}
	q.Set("stocks", strings.Join(req.Tickers, ","))
	q.Set("start_date", req.StartDate())
	q.Set("end_date", req.EndDate())
	q.Set("initial_balance", formatAmount(req.Capital))
	if req.Optimize {
		q.Set("optimize", "true")
	}
	return g.get(ctx, models.EndpointStrategy, g.paths.Strategy, g.timeouts.Strategy, q)
}

func (g *HTTPGateway) BenchmarkInvestment(ctx context.Context, req models.RunRequest) models.RemoteOutcome {
	return g.get(ctx, models.EndpointBenchmark, g.paths.Benchmark, g.timeouts.Benchmark, benchmarkQuery(req))
}

func (g *HTTPGateway) ScreenStocks(ctx context.Context, req models.RunRequest) models.RemoteOutcome {
	q := url.Values{}
	q.Set("timeframe", string(req.Timeframe))
	q.Set("max_stocks", strconv.Itoa(req.MaxStocks))
	q.Set("strategy_mode", string(req.StrategyMode))
	return g.get(ctx, models.EndpointScreening, g.paths.Screening, g.timeouts.Screening, q)
}

func (g *HTTPGateway) AutoTrade(ctx context.Context, req models.RunRequest) models.RemoteOutcome {
	q := url.Values{}
	q.Set("timeframe", string(req.Timeframe))
	q.Set("strategy_mode", string(req.StrategyMode))
	q.Set("max_stocks", strconv.Itoa(req.MaxStocks))
	q.Set("start_date", req.StartDate())
	q.Set("end_date", req.EndDate())
	q.Set("initial_balance", formatAmount(req.Capital))
	return g.get(ctx, models.EndpointAutoTrade, g.paths.AutoTrade, g.timeouts.AutoTrade, q)
}

func (g *HTTPGateway) Heartbeat(ctx context.Context) models.RemoteOutcome {
	return g.get(ctx, models.EndpointHeartbeat, g.paths.Heartbeat, g.timeouts.Heartbeat, nil)
}

func (g *HTTPGateway) get(ctx context.Context, endpoint, path string, timeout time.Duration, q url.Values) models.RemoteOutcome {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	resp, err := g.client.Do(ctx, &xhttp.RequestOptions{
		Method:      xhttp.MethodGet,
		URL:         g.baseURL + path,
		QueryParams: q,
	})
	if err != nil {
		return failedOutcome(ctx, endpoint, timeout, err)
	}
	if !resp.OK() {
		return models.HTTPErrorOutcome(endpoint, resp.Status, resp.Body)
	}
	return models.OKOutcome(endpoint, resp.Body)
}

// failedOutcome distinguishes a call that ran out of time from one that
// never got a response.
func failedOutcome(ctx context.Context, endpoint string, ceiling time.Duration, err error) models.RemoteOutcome {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return models.TimeoutOutcome(endpoint, ceiling)
	}
	return models.TransportErrorOutcome(endpoint, err.Error())
}

func benchmarkQuery(req models.RunRequest) url.Values {
	q := url.Values{}
	q.Set("start_date", req.StartDate())
	q.Set("end_date", req.EndDate())
	q.Set("initial_balance", formatAmount(req.Capital))
	return q
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
