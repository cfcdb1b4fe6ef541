package usecase

import (
	"context"
	"math"
	"testing"
	"time"

	"StratView/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireFailure(t *testing.T, err error, kind models.ErrorKind) *models.Failure {
	t.Helper()
	var f *models.Failure
	require.ErrorAs(t, err, &f)
	assert.Equal(t, kind, f.Kind)
	return f
}

func TestExecuteManualSuccess(t *testing.T) {
	gw := newFakeGateway().
		on(models.EndpointStrategy, respond(models.EndpointStrategy, strategyMonthly)).
		on(models.EndpointBenchmark, respond(models.EndpointBenchmark, benchmarkMonthly))
	o := NewOrchestrator(gw, testConfig(AutoTradePipeline), nil, nil)

	res, err := o.Execute(context.Background(), "run-1", manualReq("AAPL", "MSFT"))
	require.NoError(t, err)

	require.Len(t, res.Series, 3)
	assert.Equal(t, models.AlignedRow{Period: "2023-03", Strategy: 112000, Benchmark: 103000}, res.Series[2])
	assert.Equal(t, models.KnownBalance(112000), res.Strategy.Final)
	assert.Equal(t, []string{"AAPL", "MSFT"}, res.Strategy.Tickers)
	require.NotNil(t, res.Strategy.TotalReturnPct)
	assert.Equal(t, 12.0, *res.Strategy.TotalReturnPct)
	assert.Equal(t, &models.MACDParams{Fast: 12, Slow: 26, Signal: 9}, res.Strategy.Params)
	assert.Equal(t, models.KnownBalance(103000), res.Benchmark.Final)
	assert.False(t, res.Benchmark.Degraded)
	assert.True(t, gw.lastRequest(models.EndpointStrategy).Optimize)
}

func TestExecuteManualStrategyUnavailable(t *testing.T) {
	release := make(chan struct{})
	benchDone := make(chan struct{})
	gw := newFakeGateway().
		on(models.EndpointStrategy, status(models.EndpointStrategy, 503)).
		on(models.EndpointBenchmark, func(ctx context.Context, req models.RunRequest) models.RemoteOutcome {
			<-release
			defer close(benchDone)
			return models.OKOutcome(models.EndpointBenchmark, []byte(benchmarkMonthly))
		})
	o := NewOrchestrator(gw, testConfig(AutoTradePipeline), nil, nil)

	_, err := o.Execute(context.Background(), "run-1", manualReq("AAPL"))
	f := requireFailure(t, err, models.KindServiceUnavailable)
	assert.Contains(t, f.Message, "503")

	// the independent benchmark call was issued and still completes
	close(release)
	select {
	case <-benchDone:
	case <-time.After(time.Second):
		t.Fatal("benchmark call did not complete")
	}
	assert.Equal(t, 1, gw.count(models.EndpointBenchmark))
}

func TestExecuteManualBenchmarkBestEffort(t *testing.T) {
	gw := newFakeGateway().
		on(models.EndpointStrategy, respond(models.EndpointStrategy, strategyMonthly)).
		on(models.EndpointBenchmark, status(models.EndpointBenchmark, 500))
	o := NewOrchestrator(gw, testConfig(AutoTradePipeline), nil, nil)

	res, err := o.Execute(context.Background(), "run-1", manualReq("AAPL"))
	require.NoError(t, err)
	assert.True(t, res.Benchmark.Degraded)
	assert.NotEmpty(t, res.Benchmark.Message)
	assert.False(t, res.Benchmark.Final.Known)
	for _, row := range res.Series {
		assert.Equal(t, 100000.0, row.Benchmark)
	}
}

func TestExecuteStrategyOnlyFinalBenchmarkUnavailable(t *testing.T) {
	gw := newFakeGateway().
		on(models.EndpointStrategy, respond(models.EndpointStrategy,
			`{"backtest_result": "Portfolio Initial Balance: 100000, Final Portfolio Balance: 115200\n"}`)).
		on(models.EndpointBenchmark, respond(models.EndpointBenchmark, `{"monthly_performance": []}`))
	o := NewOrchestrator(gw, testConfig(AutoTradePipeline), nil, nil)

	res, err := o.Execute(context.Background(), "run-1", manualReq("AAPL"))
	require.NoError(t, err)

	require.Len(t, res.Series, 13)
	for _, row := range res.Series {
		assert.Equal(t, 100000.0, row.Benchmark)
	}
	assert.Equal(t, 100000.0, res.Series[0].Strategy)
	assert.Equal(t, 115200.0, res.Series[12].Strategy)
	require.NotNil(t, res.Strategy.TotalReturnPct)
	assert.Equal(t, 15.2, *res.Strategy.TotalReturnPct)
}

func TestExecuteManualNonFiniteBalances(t *testing.T) {
	gw := newFakeGateway().
		on(models.EndpointStrategy, respond(models.EndpointStrategy,
			`{"final_balance": "Infinity", "backtest_result": "Final Portfolio Balance: 115200"}`)).
		on(models.EndpointBenchmark, respond(models.EndpointBenchmark, `{"final_balance": "NaN"}`))
	o := NewOrchestrator(gw, testConfig(AutoTradePipeline), nil, nil)

	var res *models.RunResult
	var err error
	require.NotPanics(t, func() {
		res, err = o.Execute(context.Background(), "run-1", manualReq("AAPL"))
	})
	require.NoError(t, err)
	assert.Equal(t, models.KnownBalance(115200), res.Strategy.Final)
	require.NotNil(t, res.Strategy.TotalReturnPct)
	assert.Equal(t, 15.2, *res.Strategy.TotalReturnPct)
	assert.False(t, res.Benchmark.Final.Known)
	require.Len(t, res.Series, 13)
	assert.Equal(t, 100000.0, res.Series[12].Benchmark)
}

func TestTotalReturnPctNonFinite(t *testing.T) {
	assert.Equal(t, 0.0, totalReturnPct(100000, math.Inf(1)))
	assert.Equal(t, 0.0, totalReturnPct(0, 100))
	assert.Equal(t, 15.2, totalReturnPct(100000, 115200))
}

func TestExecuteManualRejectedPayload(t *testing.T) {
	gw := newFakeGateway().
		on(models.EndpointStrategy, respond(models.EndpointStrategy, `{"error": "No data found for ZZZZ"}`))
	o := NewOrchestrator(gw, testConfig(AutoTradePipeline), nil, nil)

	_, err := o.Execute(context.Background(), "run-1", manualReq("ZZZZ"))
	f := requireFailure(t, err, models.KindServiceRejected)
	assert.Equal(t, "No data found for ZZZZ", f.Message)
}

func TestExecuteAutoTradeBenchmarkTimeout(t *testing.T) {
	gw := newFakeGateway().
		on(models.EndpointScreening, respond(models.EndpointScreening, screeningAAPL)).
		on(models.EndpointStrategy, respond(models.EndpointStrategy, strategyMonthly)).
		on(models.EndpointBenchmark, timeout(models.EndpointBenchmark, 30*time.Second))
	o := NewOrchestrator(gw, testConfig(AutoTradePipeline), nil, nil)

	res, err := o.Execute(context.Background(), "run-1", autoTradeReq())
	require.NoError(t, err)

	assert.Equal(t, []models.SelectedStock{{Symbol: "AAPL", Score: 82, Reason: "strong trend"}}, res.Selected)
	assert.Equal(t, []string{"AAPL"}, res.Strategy.Tickers)
	assert.True(t, res.Benchmark.Degraded)
	assert.Contains(t, res.Benchmark.Message, "30s")
	for _, row := range res.Series {
		assert.Equal(t, 100000.0, row.Benchmark)
	}

	traded := gw.lastRequest(models.EndpointStrategy)
	assert.Equal(t, []string{"AAPL"}, traded.Tickers)
	assert.True(t, traded.Optimize)

	screened := gw.lastRequest(models.EndpointScreening)
	assert.Equal(t, models.TimeframeMedium, screened.Timeframe)
	assert.Equal(t, models.ModeModerate, screened.StrategyMode)
}

func TestExecuteAutoTradeScreeningFailsFast(t *testing.T) {
	gw := newFakeGateway().
		on(models.EndpointScreening, timeout(models.EndpointScreening, time.Minute))
	o := NewOrchestrator(gw, testConfig(AutoTradePipeline), nil, nil)

	_, err := o.Execute(context.Background(), "run-1", autoTradeReq())
	requireFailure(t, err, models.KindTimedOut)
	assert.Equal(t, 0, gw.count(models.EndpointStrategy))
	assert.Equal(t, 0, gw.count(models.EndpointBenchmark))
}

func TestExecuteAutoTradeEmptyScreening(t *testing.T) {
	gw := newFakeGateway().
		on(models.EndpointScreening, respond(models.EndpointScreening, `{"selected_stocks": []}`))
	o := NewOrchestrator(gw, testConfig(AutoTradePipeline), nil, nil)

	_, err := o.Execute(context.Background(), "run-1", autoTradeReq())
	requireFailure(t, err, models.KindServiceRejected)
	assert.Equal(t, 0, gw.count(models.EndpointStrategy))
}

func TestExecuteAutoTradeOverallDeadline(t *testing.T) {
	gw := newFakeGateway().
		on(models.EndpointScreening, after(time.Hour, models.EndpointScreening, respond(models.EndpointScreening, screeningAAPL)))
	cfg := testConfig(AutoTradePipeline)
	cfg.Backtest.Timeouts.AutoTrade = 30 * time.Millisecond
	o := NewOrchestrator(gw, cfg, nil, nil)

	_, err := o.Execute(context.Background(), "run-1", autoTradeReq())
	requireFailure(t, err, models.KindTimedOut)
}

func TestExecuteAutoTradeCombined(t *testing.T) {
	gw := newFakeGateway().
		on(models.EndpointAutoTrade, respond(models.EndpointAutoTrade, `{
			"auto_selection": {"selected_stocks": [{"symbol": "NVDA", "score": 91, "reason": "momentum"}]},
			"trading_results": {"final_balance": 125000, "total_return_percent": 25}
		}`)).
		on(models.EndpointBenchmark, respond(models.EndpointBenchmark, `{"final_balance": 108000}`))
	o := NewOrchestrator(gw, testConfig(AutoTradeCombined), nil, nil)

	res, err := o.Execute(context.Background(), "run-1", autoTradeReq())
	require.NoError(t, err)

	assert.Equal(t, 0, gw.count(models.EndpointScreening))
	assert.Equal(t, 0, gw.count(models.EndpointStrategy))
	assert.Equal(t, 1, gw.count(models.EndpointBenchmark))
	assert.Equal(t, []string{"NVDA"}, res.Strategy.Tickers)
	require.Len(t, res.Series, 13)
	assert.Equal(t, 125000.0, res.Series[12].Strategy)
	assert.Equal(t, 108000.0, res.Series[12].Benchmark)
}

func TestExecuteScreenOnly(t *testing.T) {
	gw := newFakeGateway().
		on(models.EndpointScreening, respond(models.EndpointScreening, `{"selected_stocks": [], "fallback_stocks": ["SPY", "QQQ"]}`))
	o := NewOrchestrator(gw, testConfig(AutoTradePipeline), nil, nil)

	res, err := o.Execute(context.Background(), "run-1", screenReq())
	require.NoError(t, err)

	assert.Empty(t, res.Series)
	assert.NotNil(t, res.Series)
	assert.Equal(t, []string{"SPY", "QQQ"}, models.Symbols(res.Selected))
	assert.Equal(t, 1, gw.total())

	screened := gw.lastRequest(models.EndpointScreening)
	assert.Equal(t, 3, screened.MaxStocks)
	assert.Equal(t, models.TimeframeShort, screened.Timeframe)
}

func TestExecuteCancelled(t *testing.T) {
	gw := newFakeGateway().
		on(models.EndpointStrategy, after(time.Hour, models.EndpointStrategy, respond(models.EndpointStrategy, strategyMonthly)))
	o := NewOrchestrator(gw, testConfig(AutoTradePipeline), nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := o.Execute(ctx, "run-1", manualReq("AAPL"))
	assert.Error(t, err)
}
