package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"StratView/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	mu     sync.Mutex
	states []models.WorkflowState
}

func (p *recordingPublisher) PublishRun(_ context.Context, _ models.RunRequest, st models.WorkflowState) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.states = append(p.states, st)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) published() []models.WorkflowState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]models.WorkflowState(nil), p.states...)
}

func newTestController(gw *fakeGateway) *Controller {
	return NewController(NewOrchestrator(gw, testConfig(AutoTradePipeline), nil, nil), nil, nil, nil)
}

func TestRunRejectsInvalidInputWithoutCalls(t *testing.T) {
	tests := []struct {
		name    string
		params  models.RunParams
		message string
	}{
		{
			name: "end before start",
			params: models.RunParams{
				Variant: models.VariantManual, Tickers: []string{"AAPL"},
				Start: day(2023, 6, 1), End: day(2023, 1, 1), Capital: 100000,
			},
			message: "start_date must be before end_date",
		},
		{
			name: "equal dates",
			params: models.RunParams{
				Variant: models.VariantManual, Tickers: []string{"AAPL"},
				Start: day(2023, 6, 1), End: day(2023, 6, 1), Capital: 100000,
			},
			message: "start_date must be before end_date",
		},
		{
			name: "duplicate tickers",
			params: models.RunParams{
				Variant: models.VariantManual, Tickers: []string{"AAPL", "aapl"},
				Start: day(2023, 1, 1), End: day(2023, 12, 31), Capital: 100000,
			},
			message: "duplicates",
		},
		{
			name: "no tickers",
			params: models.RunParams{
				Variant: models.VariantManual,
				Start:   day(2023, 1, 1), End: day(2023, 12, 31), Capital: 100000,
			},
			message: "at least one ticker",
		},
		{
			name: "zero capital",
			params: models.RunParams{
				Variant: models.VariantManual, Tickers: []string{"AAPL"},
				Start: day(2023, 1, 1), End: day(2023, 12, 31),
			},
			message: "initial_capital",
		},
		{
			name:    "screen without timeframe",
			params:  models.RunParams{Variant: models.VariantScreenOnly, StrategyMode: models.ModeModerate},
			message: "timeframe is required",
		},
		{
			name:    "screen without strategy mode",
			params:  models.RunParams{Variant: models.VariantScreenOnly, Timeframe: models.TimeframeLong},
			message: "strategy_mode is required",
		},
		{
			name:    "auto-trade without dates",
			params:  models.RunParams{Variant: models.VariantAutoTrade, Capital: 100000},
			message: "start_date is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := newFakeGateway()
			c := newTestController(gw)

			st := c.Run(context.Background(), models.NewRunRequest(tt.params))

			assert.Equal(t, models.PhaseFailed, st.Phase)
			require.NotNil(t, st.Failure)
			assert.Equal(t, models.KindInvalidRequest, st.Failure.Kind)
			assert.Contains(t, st.Failure.Message, tt.message)
			assert.Equal(t, 0, gw.total())
			assert.Equal(t, st, c.State())
		})
	}
}

func TestSubmitReachesSucceeded(t *testing.T) {
	gw := newFakeGateway().
		on(models.EndpointStrategy, respond(models.EndpointStrategy, strategyMonthly)).
		on(models.EndpointBenchmark, respond(models.EndpointBenchmark, benchmarkMonthly))
	c := newTestController(gw)

	runID, st := c.Submit(context.Background(), manualReq("AAPL"))
	assert.NotEmpty(t, runID)
	assert.Equal(t, runID, st.RunID)
	assert.Equal(t, models.PhaseRunning, st.Phase)

	require.Eventually(t, func() bool {
		return c.State().Phase == models.PhaseSucceeded
	}, time.Second, 5*time.Millisecond)

	final := c.State()
	assert.Equal(t, runID, final.RunID)
	require.NotNil(t, final.Result)
	assert.Len(t, final.Result.Series, 3)
	assert.False(t, final.FinishedAt.IsZero())
}

func TestSubmitOutlivesCallerContext(t *testing.T) {
	gw := newFakeGateway().
		on(models.EndpointStrategy, after(20*time.Millisecond, models.EndpointStrategy, respond(models.EndpointStrategy, strategyMonthly)))
	c := newTestController(gw)

	ctx, cancel := context.WithCancel(context.Background())
	c.Submit(ctx, manualReq("AAPL"))
	cancel()

	require.Eventually(t, func() bool {
		return c.State().Phase.Terminal()
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, models.PhaseSucceeded, c.State().Phase)
}

func TestRunSurfacesStrategyFailure(t *testing.T) {
	gw := newFakeGateway().
		on(models.EndpointStrategy, status(models.EndpointStrategy, 503))
	c := newTestController(gw)

	st := c.Run(context.Background(), manualReq("AAPL"))

	assert.Equal(t, models.PhaseFailed, st.Phase)
	require.NotNil(t, st.Failure)
	assert.Equal(t, models.KindServiceUnavailable, st.Failure.Kind)
	require.Eventually(t, func() bool {
		return gw.count(models.EndpointBenchmark) == 1
	}, time.Second, 5*time.Millisecond)
}

func TestSubscribeSeesPhases(t *testing.T) {
	gw := newFakeGateway().
		on(models.EndpointStrategy, respond(models.EndpointStrategy, strategyMonthly)).
		on(models.EndpointBenchmark, respond(models.EndpointBenchmark, benchmarkMonthly))
	c := newTestController(gw)

	ch, unsubscribe := c.Subscribe()
	defer unsubscribe()

	first := <-ch
	assert.Equal(t, models.PhaseIdle, first.State.Phase)

	c.Run(context.Background(), manualReq("AAPL"))

	var phases []models.Phase
	timeout := time.After(time.Second)
	for len(phases) < 3 {
		select {
		case snap := <-ch:
			phases = append(phases, snap.State.Phase)
		case <-timeout:
			t.Fatalf("got phases %v", phases)
		}
	}
	assert.Equal(t, []models.Phase{models.PhaseValidating, models.PhaseRunning, models.PhaseSucceeded}, phases)
}

func TestUnsubscribeIsIdempotent(t *testing.T) {
	c := newTestController(newFakeGateway())

	ch, unsubscribe := c.Subscribe()
	<-ch
	unsubscribe()
	unsubscribe()

	_, open := <-ch
	assert.False(t, open)
}

func TestNewerRunSupersedesOlder(t *testing.T) {
	release := make(chan struct{})
	gw := newFakeGateway().
		on(models.EndpointStrategy, func(ctx context.Context, req models.RunRequest) models.RemoteOutcome {
			if req.Tickers[0] == "SLOW" {
				<-release
			}
			return models.OKOutcome(models.EndpointStrategy, []byte(strategyMonthly))
		})
	c := newTestController(gw)

	slowID, _ := c.Submit(context.Background(), manualReq("SLOW"))
	require.Eventually(t, func() bool {
		return gw.count(models.EndpointStrategy) == 1
	}, time.Second, 5*time.Millisecond)

	fast := c.Run(context.Background(), manualReq("FAST"))
	assert.Equal(t, models.PhaseSucceeded, fast.Phase)
	assert.NotEqual(t, slowID, fast.RunID)

	// the superseded run completes late and must not replace the state
	close(release)
	require.NoError(t, c.Close(context.Background()))

	st := c.State()
	assert.Equal(t, fast.RunID, st.RunID)
	assert.Equal(t, []string{"FAST"}, st.Result.Strategy.Tickers)
}

func TestSelectionCarriedUntilCleared(t *testing.T) {
	gw := newFakeGateway().
		on(models.EndpointScreening, respond(models.EndpointScreening, screeningAAPL))
	c := newTestController(gw)

	st := c.Run(context.Background(), screenReq())
	require.Equal(t, models.PhaseSucceeded, st.Phase)
	assert.Empty(t, st.Result.Series)

	sel := c.Selection()
	require.Len(t, sel, 1)
	assert.Equal(t, "AAPL", sel[0].Symbol)
	assert.Equal(t, sel, c.Snapshot().Selection)

	// a failed run keeps the previous selection
	gw.on(models.EndpointStrategy, status(models.EndpointStrategy, 500))
	c.Run(context.Background(), manualReq("AAPL"))
	assert.Len(t, c.Selection(), 1)

	c.ClearSelection()
	assert.Empty(t, c.Selection())
}

func TestManualRunWithOtherTickersDropsSelection(t *testing.T) {
	gw := newFakeGateway().
		on(models.EndpointScreening, respond(models.EndpointScreening,
			`{"selected_stocks": [{"symbol": "AAPL", "score": 82}, {"symbol": "MSFT", "score": 75}]}`)).
		on(models.EndpointStrategy, respond(models.EndpointStrategy, strategyMonthly)).
		on(models.EndpointBenchmark, respond(models.EndpointBenchmark, benchmarkMonthly))
	c := newTestController(gw)

	require.Equal(t, models.PhaseSucceeded, c.Run(context.Background(), screenReq()).Phase)
	require.Len(t, c.Selection(), 2)

	c.Run(context.Background(), manualReq("MSFT", "AAPL"))
	assert.Len(t, c.Selection(), 2)

	st := c.Run(context.Background(), manualReq("TSLA"))
	require.Equal(t, models.PhaseSucceeded, st.Phase)
	assert.Empty(t, c.Selection())
	assert.Empty(t, c.Snapshot().Selection)
}

func TestTerminalStatesArePublished(t *testing.T) {
	gw := newFakeGateway().
		on(models.EndpointStrategy, respond(models.EndpointStrategy, strategyMonthly))
	pub := &recordingPublisher{}
	c := NewController(NewOrchestrator(gw, testConfig(AutoTradePipeline), nil, nil), pub, nil, nil)

	ok := c.Run(context.Background(), manualReq("AAPL"))
	bad := c.Run(context.Background(), manualReq())
	require.NoError(t, c.Close(context.Background()))

	got := pub.published()
	require.Len(t, got, 2)
	ids := []string{got[0].RunID, got[1].RunID}
	assert.ElementsMatch(t, []string{ok.RunID, bad.RunID}, ids)
	for _, st := range got {
		assert.True(t, st.Phase.Terminal())
	}
}

func TestCloseRejectsNewRuns(t *testing.T) {
	gw := newFakeGateway()
	c := newTestController(gw)

	ch, _ := c.Subscribe()
	<-ch
	require.NoError(t, c.Close(context.Background()))

	_, open := <-ch
	assert.False(t, open)

	st := c.Run(context.Background(), manualReq("AAPL"))
	assert.Equal(t, models.PhaseFailed, st.Phase)
	assert.Equal(t, 0, gw.total())
}

func TestCloseDuringValidationDoesNotStartRun(t *testing.T) {
	gw := newFakeGateway().
		on(models.EndpointStrategy, respond(models.EndpointStrategy, strategyMonthly)).
		on(models.EndpointBenchmark, respond(models.EndpointBenchmark, benchmarkMonthly))
	pub := &recordingPublisher{}
	c := NewController(NewOrchestrator(gw, testConfig(AutoTradePipeline), nil, nil), pub, nil, nil)

	entered := make(chan struct{})
	release := make(chan struct{})
	c.validate = func(ctx context.Context, req models.RunRequest) *models.Failure {
		close(entered)
		<-release
		return validateRun(ctx, req)
	}

	submitted := make(chan models.WorkflowState, 1)
	go func() {
		_, st := c.Submit(context.Background(), manualReq("AAPL"))
		submitted <- st
	}()
	<-entered

	closed := make(chan error, 1)
	go func() { closed <- c.Close(context.Background()) }()
	require.Eventually(t, func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		return c.closed
	}, time.Second, time.Millisecond)

	select {
	case <-closed:
		t.Fatal("Close returned while a submission was validating")
	case <-time.After(20 * time.Millisecond):
	}

	close(release)
	st := <-submitted
	require.NoError(t, <-closed)

	assert.Equal(t, models.PhaseFailed, st.Phase)
	require.NotNil(t, st.Failure)
	assert.Equal(t, models.KindUnreachable, st.Failure.Kind)
	assert.Equal(t, models.PhaseFailed, c.State().Phase)
	assert.Equal(t, 0, gw.total())
	assert.Empty(t, pub.published())
}

func TestCloseCancelsRunningRun(t *testing.T) {
	gw := newFakeGateway().
		on(models.EndpointStrategy, after(time.Hour, models.EndpointStrategy, respond(models.EndpointStrategy, strategyMonthly))).
		on(models.EndpointBenchmark, after(time.Hour, models.EndpointBenchmark, respond(models.EndpointBenchmark, benchmarkMonthly)))
	c := newTestController(gw)

	c.Submit(context.Background(), manualReq("AAPL"))
	require.Eventually(t, func() bool {
		return gw.count(models.EndpointStrategy) == 1
	}, time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, c.Close(ctx))
	assert.Equal(t, models.PhaseFailed, c.State().Phase)
}
