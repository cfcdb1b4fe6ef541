package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"StratView/internal/domain/models"
	"StratView/internal/domain/repository"
	"StratView/pkg/logger"
	"StratView/pkg/metrics"

	"github.com/google/uuid"
)

const (
	subscriberBuffer = 8
	publishTimeout   = 5 * time.Second
)

// Controller owns the single WorkflowState. Every run gets a fresh run id
// and supersedes the one before it: the previous run's context is cancelled
// and any completion stamped with a stale id is dropped.
type Controller struct {
	exec     Executor
	events   repository.RunEventPublisher
	log      *logger.Logger
	metrics  *metrics.Recorder
	newID    func() string
	now      func() time.Time
	validate func(context.Context, models.RunRequest) *models.Failure

	mu        sync.Mutex
	state     models.WorkflowState
	selection []models.SelectedStock
	cancel    context.CancelFunc
	subs      map[int]chan models.Snapshot
	nextSub   int
	closed    bool

	inflight sync.WaitGroup
}

// NewController builds a controller. events may be nil.
func NewController(exec Executor, events repository.RunEventPublisher, log *logger.Logger, m *metrics.Recorder) *Controller {
	if log == nil {
		log = logger.Nop()
	}
	return &Controller{
		exec:     exec,
		events:   events,
		log:      log,
		metrics:  m,
		newID:    uuid.NewString,
		now:      time.Now,
		validate: validateRun,
		state:    models.WorkflowState{Phase: models.PhaseIdle},
		subs:     make(map[int]chan models.Snapshot),
	}
}

// Submit validates req and, when valid, starts it in the background. It
// returns the new run id and the state right after submission: Running, or
// Failed(InvalidRequest) with no remote call made. ctx only scopes
// submission; the run itself outlives it.
func (c *Controller) Submit(ctx context.Context, req models.RunRequest) (string, models.WorkflowState) {
	runID, runCtx, st, ok := c.begin(context.WithoutCancel(ctx), req)
	if ok {
		go func() {
			defer c.inflight.Done()
			c.execute(runCtx, runID, req, st.StartedAt)
		}()
	}
	return runID, st
}

// Run executes req to completion and returns its terminal state. If a newer
// run superseded it meanwhile, the returned state is this run's own outcome
// and was not made visible.
func (c *Controller) Run(ctx context.Context, req models.RunRequest) models.WorkflowState {
	runID, runCtx, st, ok := c.begin(ctx, req)
	if !ok {
		return st
	}
	defer c.inflight.Done()
	return c.execute(runCtx, runID, req, st.StartedAt)
}

// begin validates req and marks it Running. The run holds an inflight slot
// from validation on; when begin succeeds the caller must release it.
func (c *Controller) begin(parent context.Context, req models.RunRequest) (runID string, runCtx context.Context, st models.WorkflowState, ok bool) {
	runID = c.newID()
	started := c.now()

	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	if c.closed {
		c.mu.Unlock()
		return runID, nil, shutDownState(runID, req, started), false
	}
	c.inflight.Add(1)
	defer func() {
		if !ok {
			c.inflight.Done()
		}
	}()
	if req.Variant == models.VariantManual && c.selection != nil && !sameSymbols(req.Tickers, models.Symbols(c.selection)) {
		c.selection = nil
	}
	c.setLocked(models.WorkflowState{Phase: models.PhaseValidating, RunID: runID, Variant: req.Variant, StartedAt: started})
	c.mu.Unlock()

	if f := c.validate(parent, req); f != nil {
		st = models.WorkflowState{
			Phase: models.PhaseFailed, RunID: runID, Variant: req.Variant,
			StartedAt: started, FinishedAt: c.now(), Failure: f,
		}
		c.log.Info("run rejected",
			logger.String("run_id", runID),
			logger.String("variant", string(req.Variant)),
			logger.String("message", f.Message),
		)
		c.metrics.RecordRejected(string(req.Variant))
		if c.commit(runID, st, nil) {
			c.publish(req, st)
		}
		return runID, nil, st, false
	}

	runCtx, cancel := context.WithCancel(parent)
	st = models.WorkflowState{Phase: models.PhaseRunning, RunID: runID, Variant: req.Variant, StartedAt: started}

	c.mu.Lock()
	if c.state.RunID != runID {
		// a newer run began while this one was validating
		c.mu.Unlock()
		cancel()
		return runID, nil, st, false
	}
	if c.closed {
		st = shutDownState(runID, req, started)
		c.setLocked(st)
		c.mu.Unlock()
		cancel()
		return runID, nil, st, false
	}
	c.cancel = cancel
	c.setLocked(st)
	c.mu.Unlock()

	c.metrics.RunStarted()
	c.log.Info("run started",
		logger.String("run_id", runID),
		logger.String("variant", string(req.Variant)),
		logger.Strings("tickers", req.Tickers),
	)
	return runID, runCtx, st, true
}

func shutDownState(runID string, req models.RunRequest, at time.Time) models.WorkflowState {
	return models.WorkflowState{
		Phase: models.PhaseFailed, RunID: runID, Variant: req.Variant,
		StartedAt: at, FinishedAt: at,
		Failure: &models.Failure{Kind: models.KindUnreachable, Message: "workflow controller is shut down"},
	}
}

// sameSymbols reports whether a and b hold the same tickers in any order.
func sameSymbols(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[string]int, len(a))
	for _, s := range a {
		seen[s]++
	}
	for _, s := range b {
		if seen[s] == 0 {
			return false
		}
		seen[s]--
	}
	return true
}

func (c *Controller) execute(ctx context.Context, runID string, req models.RunRequest, started time.Time) models.WorkflowState {
	res, err := c.exec.Execute(ctx, runID, req)

	st := models.WorkflowState{
		RunID:      runID,
		Variant:    req.Variant,
		StartedAt:  started,
		FinishedAt: c.now(),
	}
	if err != nil {
		st.Phase = models.PhaseFailed
		st.Failure = asFailure(err)
	} else {
		st.Phase = models.PhaseSucceeded
		st.Result = res
	}

	kind := ""
	if st.Failure != nil {
		kind = string(st.Failure.Kind)
	}
	c.metrics.RunFinished(string(req.Variant), string(st.Phase), kind)

	var selection []models.SelectedStock
	if res != nil && len(res.Selected) > 0 {
		selection = res.Selected
	}
	if !c.commit(runID, st, selection) {
		c.metrics.RecordStaleDiscard()
		c.log.Debug("discarding stale completion",
			logger.String("run_id", runID),
			logger.String("phase", string(st.Phase)),
		)
		return st
	}

	fields := []logger.Field{
		logger.String("run_id", runID),
		logger.String("variant", string(req.Variant)),
		logger.String("phase", string(st.Phase)),
	}
	if st.Failure != nil {
		fields = append(fields, logger.String("kind", kind), logger.String("message", st.Failure.Message))
		c.log.Warn("run failed", fields...)
	} else {
		fields = append(fields, logger.Int("rows", len(res.Series)), logger.Bool("benchmark_degraded", res.Benchmark.Degraded))
		c.log.Info("run succeeded", fields...)
	}
	c.publish(req, st)
	return st
}

// commit makes st visible if runID is still current.
func (c *Controller) commit(runID string, st models.WorkflowState, selection []models.SelectedStock) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.RunID != runID {
		return false
	}
	if selection != nil {
		c.selection = append([]models.SelectedStock(nil), selection...)
	}
	c.setLocked(st)
	return true
}

func asFailure(err error) *models.Failure {
	var f *models.Failure
	if errors.As(err, &f) {
		return f
	}
	if errors.Is(err, context.Canceled) {
		return &models.Failure{Kind: models.KindUnreachable, Message: "the run was cancelled before the service answered"}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &models.Failure{Kind: models.KindTimedOut, Message: "the service took too long to answer"}
	}
	return &models.Failure{Kind: models.KindUnreachable, Message: err.Error()}
}

// publish hands a terminal state to the event publisher without blocking
// the run. The caller must hold an inflight slot.
func (c *Controller) publish(req models.RunRequest, st models.WorkflowState) {
	if c.events == nil {
		return
	}
	c.inflight.Add(1)
	go func() {
		defer c.inflight.Done()
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()
		if err := c.events.PublishRun(ctx, req, st); err != nil {
			c.log.Warn("publish run event failed", logger.String("run_id", st.RunID), logger.Error(err))
		}
	}()
}

// setLocked replaces the state and notifies subscribers. c.mu must be held.
func (c *Controller) setLocked(st models.WorkflowState) {
	c.state = st
	snap := c.snapshotLocked()
	for _, ch := range c.subs {
		offer(ch, snap)
	}
}

// offer delivers snap without blocking, dropping the oldest queued snapshot
// when the subscriber is behind.
func offer(ch chan models.Snapshot, snap models.Snapshot) {
	select {
	case ch <- snap:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- snap:
	default:
	}
}

func (c *Controller) snapshotLocked() models.Snapshot {
	return models.Snapshot{
		State:     c.state,
		Selection: append([]models.SelectedStock(nil), c.selection...),
	}
}

// Snapshot returns the current state and carried selection.
func (c *Controller) Snapshot() models.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// State returns the current workflow state.
func (c *Controller) State() models.WorkflowState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Selection returns the stocks carried over from the last screening.
func (c *Controller) Selection() []models.SelectedStock {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]models.SelectedStock(nil), c.selection...)
}

// ClearSelection drops the carried screening result. Call it whenever the
// ticker set is edited by hand.
func (c *Controller) ClearSelection() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.selection == nil {
		return
	}
	c.selection = nil
	snap := c.snapshotLocked()
	for _, ch := range c.subs {
		offer(ch, snap)
	}
}

// Subscribe returns a channel that receives the current snapshot and every
// later one. Slow readers lose intermediate snapshots, never the latest.
// Call the returned func to unsubscribe.
func (c *Controller) Subscribe() (<-chan models.Snapshot, func()) {
	ch := make(chan models.Snapshot, subscriberBuffer)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	id := c.nextSub
	c.nextSub++
	c.subs[id] = ch
	ch <- c.snapshotLocked()
	c.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			if _, ok := c.subs[id]; ok {
				delete(c.subs, id)
				close(ch)
			}
		})
	}
}

// Close cancels the current run, waits for in-flight work and closes every
// subscription.
func (c *Controller) Close(ctx context.Context) error {
	c.mu.Lock()
	c.closed = true
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.mu.Unlock()

	done := make(chan struct{})
	go func() {
		c.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for id, ch := range c.subs {
		delete(c.subs, id)
		close(ch)
	}
	return nil
}
