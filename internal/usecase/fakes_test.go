package usecase

import (
	"context"
	"sync"
	"time"

	"StratView/internal/domain/models"
	"StratView/pkg/config"
)

type handlerFunc func(ctx context.Context, req models.RunRequest) models.RemoteOutcome

type fakeGateway struct {
	mu       sync.Mutex
	calls    map[string]int
	requests map[string][]models.RunRequest
	handlers map[string]handlerFunc
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		calls:    map[string]int{},
		requests: map[string][]models.RunRequest{},
		handlers: map[string]handlerFunc{},
	}
}

func (g *fakeGateway) on(endpoint string, h handlerFunc) *fakeGateway {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.handlers[endpoint] = h
	return g
}

func (g *fakeGateway) count(endpoint string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[endpoint]
}

func (g *fakeGateway) total() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := 0
	for _, c := range g.calls {
		n += c
	}
	return n
}

func (g *fakeGateway) lastRequest(endpoint string) models.RunRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	rs := g.requests[endpoint]
	if len(rs) == 0 {
		return models.RunRequest{}
	}
	return rs[len(rs)-1]
}

func (g *fakeGateway) do(ctx context.Context, endpoint string, req models.RunRequest) models.RemoteOutcome {
	g.mu.Lock()
	g.calls[endpoint]++
	g.requests[endpoint] = append(g.requests[endpoint], req)
	h := g.handlers[endpoint]
	g.mu.Unlock()
	if h == nil {
		return models.OKOutcome(endpoint, []byte(`{}`))
	}
	return h(ctx, req)
}

func (g *fakeGateway) StrategyBacktest(ctx context.Context, req models.RunRequest) models.RemoteOutcome {
	return g.do(ctx, models.EndpointStrategy, req)
}

func (g *fakeGateway) BenchmarkInvestment(ctx context.Context, req models.RunRequest) models.RemoteOutcome {
	return g.do(ctx, models.EndpointBenchmark, req)
}

func (g *fakeGateway) ScreenStocks(ctx context.Context, req models.RunRequest) models.RemoteOutcome {
	return g.do(ctx, models.EndpointScreening, req)
}

func (g *fakeGateway) AutoTrade(ctx context.Context, req models.RunRequest) models.RemoteOutcome {
	return g.do(ctx, models.EndpointAutoTrade, req)
}

func (g *fakeGateway) Heartbeat(ctx context.Context) models.RemoteOutcome {
	return g.do(ctx, models.EndpointHeartbeat, models.RunRequest{})
}

func respond(endpoint, body string) handlerFunc {
	return func(context.Context, models.RunRequest) models.RemoteOutcome {
		return models.OKOutcome(endpoint, []byte(body))
	}
}

func status(endpoint string, code int) handlerFunc {
	return func(context.Context, models.RunRequest) models.RemoteOutcome {
		return models.HTTPErrorOutcome(endpoint, code, nil)
	}
}

// after delays a handler and gives up like the HTTP gateway would when ctx ends.
func after(d time.Duration, endpoint string, h handlerFunc) handlerFunc {
	return func(ctx context.Context, req models.RunRequest) models.RemoteOutcome {
		select {
		case <-time.After(d):
			return h(ctx, req)
		case <-ctx.Done():
			if ctx.Err() == context.DeadlineExceeded {
				return models.TimeoutOutcome(endpoint, d)
			}
			return models.TransportErrorOutcome(endpoint, ctx.Err().Error())
		}
	}
}

func timeout(endpoint string, ceiling time.Duration) handlerFunc {
	return func(context.Context, models.RunRequest) models.RemoteOutcome {
		return models.TimeoutOutcome(endpoint, ceiling)
	}
}

func testConfig(mode string) *config.Config {
	cfg := config.Default()
	cfg.Backtest.AutoTradeMode = mode
	return cfg
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func manualReq(tickers ...string) models.RunRequest {
	return models.NewRunRequest(models.RunParams{
		Variant: models.VariantManual,
		Tickers: tickers,
		Start:   day(2023, 1, 1),
		End:     day(2023, 12, 31),
		Capital: 100000,
	})
}

func autoTradeReq() models.RunRequest {
	return models.NewRunRequest(models.RunParams{
		Variant: models.VariantAutoTrade,
		Start:   day(2023, 1, 1),
		End:     day(2023, 12, 31),
		Capital: 100000,
	})
}

func screenReq() models.RunRequest {
	return models.NewRunRequest(models.RunParams{
		Variant:      models.VariantScreenOnly,
		Timeframe:    models.TimeframeShort,
		StrategyMode: models.ModeConservative,
		MaxStocks:    3,
	})
}

const (
	strategyMonthly = `{
		"optimized_parameters": {"fastperiod": 12, "slowperiod": 26, "signalperiod": 9},
		"optimization_performance": {"best_balance": 112000, "total_return": 12},
		"backtest_result": "Final Portfolio Balance: 112000",
		"monthly_performance": [
			{"month": "2023-01", "balance": 101000},
			{"month": "2023-02", "balance": 104000},
			{"month": "2023-03", "balance": 112000}
		]
	}`
	benchmarkMonthly = `{
		"final_balance": 103000,
		"monthly_performance": [
			{"month": "2023-01", "balance": 100500},
			{"month": "2023-02", "balance": 103000}
		]
	}`
	screeningAAPL = `{"selected_stocks": [{"symbol": "AAPL", "score": 82, "reason": "strong trend"}]}`
)
