package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"StratView/internal/domain/models"
	"StratView/internal/service/ratelimit"
	xhttp "StratView/pkg/http"
	xlogger "StratView/pkg/logger"
	"StratView/pkg/util"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

const (
	streamPingInterval = 30 * time.Second
	streamWriteWait    = 10 * time.Second
)

// Workflow is what the run endpoints need from the workflow controller.
type Workflow interface {
	Submit(ctx context.Context, req models.RunRequest) (string, models.WorkflowState)
	Run(ctx context.Context, req models.RunRequest) models.WorkflowState
	Snapshot() models.Snapshot
	Selection() []models.SelectedStock
	ClearSelection()
	Subscribe() (<-chan models.Snapshot, func())
}

// RunResponse is returned by the run submission endpoints.
type RunResponse struct {
	RunID string               `json:"run_id"`
	State models.WorkflowState `json:"state"`
}

// RunsEchoHandler serves run submission, state and the snapshot stream.
type RunsEchoHandler struct {
	logger   *xlogger.Logger
	wf       Workflow
	rl       *ratelimit.Limiter
	upgrader websocket.Upgrader

	maxStocks int
}

// NewRunsEchoHandler builds the handler. rl may be nil to disable rate limiting.
func NewRunsEchoHandler(logger *xlogger.Logger, wf Workflow, rl *ratelimit.Limiter) *RunsEchoHandler {
	if logger == nil {
		logger = xlogger.Nop()
	}
	return &RunsEchoHandler{
		logger: logger,
		wf:     wf,
		rl:     rl,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// SetDefaultMaxStocks sets the screening size used when a request leaves
// max_stocks unset.
func (h *RunsEchoHandler) SetDefaultMaxStocks(n int) { h.maxStocks = n }

func (h *RunsEchoHandler) withMaxStocks(n int) int {
	if n == 0 {
		return h.maxStocks
	}
	return n
}

func (h *RunsEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.POST("/runs/manual", h.Manual)
	g.POST("/runs/screen", h.Screen)
	g.POST("/runs/auto-trade", h.AutoTrade)
	g.GET("/state", h.State)
	g.GET("/selection", h.Selection)
	g.DELETE("/selection", h.ClearSelection)
	g.GET("/stream", h.Stream)
}

func (h *RunsEchoHandler) Manual(c echo.Context) error {
	req := &models.ManualRunRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	start, _ := util.ParseDate(req.StartDate)
	end, _ := util.ParseDate(req.EndDate)

	return h.submit(c, models.NewRunRequest(models.RunParams{
		Variant:  models.VariantManual,
		Tickers:  req.Tickers,
		Start:    start,
		End:      end,
		Capital:  req.Capital,
		Optimize: req.Optimize,
	}))
}

func (h *RunsEchoHandler) Screen(c echo.Context) error {
	req := &models.ScreenRunRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	return h.submit(c, models.NewRunRequest(models.RunParams{
		Variant:      models.VariantScreenOnly,
		Timeframe:    models.Timeframe(req.Timeframe),
		StrategyMode: models.StrategyMode(req.StrategyMode),
		MaxStocks:    h.withMaxStocks(req.MaxStocks),
	}))
}

func (h *RunsEchoHandler) AutoTrade(c echo.Context) error {
	req := &models.AutoTradeRunRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	start, _ := util.ParseDate(req.StartDate)
	end, _ := util.ParseDate(req.EndDate)

	return h.submit(c, models.NewRunRequest(models.RunParams{
		Variant:      models.VariantAutoTrade,
		Timeframe:    models.Timeframe(req.Timeframe),
		StrategyMode: models.StrategyMode(req.StrategyMode),
		MaxStocks:    h.withMaxStocks(req.MaxStocks),
		Start:        start,
		End:          end,
		Capital:      req.Capital,
	}))
}

// submit starts req. With ?wait=true it blocks until the run is terminal.
func (h *RunsEchoHandler) submit(c echo.Context, req models.RunRequest) error {
	if h.rl != nil && !h.rl.Allow(c.RealIP()) {
		h.logger.Warn("run submission rate limited",
			xlogger.String("client", c.RealIP()),
			xlogger.String("variant", string(req.Variant)),
		)
		return xhttp.AppErrorResponse(c, xhttp.TooManyRequestsError("too many runs submitted, retry shortly"))
	}

	ctx := c.Request().Context()
	var resp RunResponse
	if wait, _ := strconv.ParseBool(c.QueryParam("wait")); wait {
		// the run is not tied to the connection; a client that leaves only
		// stops waiting
		done := make(chan models.WorkflowState, 1)
		go func() { done <- h.wf.Run(context.WithoutCancel(ctx), req) }()
		select {
		case resp.State = <-done:
		case <-ctx.Done():
			h.logger.Info("client left before the run finished",
				xlogger.String("client", c.RealIP()),
				xlogger.String("variant", string(req.Variant)),
			)
			return nil
		}
		resp.RunID = resp.State.RunID
	} else {
		resp.RunID, resp.State = h.wf.Submit(ctx, req)
	}

	if f := resp.State.Failure; f != nil && f.Kind == models.KindInvalidRequest {
		return xhttp.UnprocessableResponse(c, resp)
	}
	if resp.State.Phase.Terminal() {
		return xhttp.SuccessResponse(c, resp)
	}
	return xhttp.AcceptedResponse(c, resp)
}

func (h *RunsEchoHandler) State(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.wf.Snapshot())
}

func (h *RunsEchoHandler) Selection(c echo.Context) error {
	sel := h.wf.Selection()
	if sel == nil {
		sel = []models.SelectedStock{}
	}
	return xhttp.SuccessResponse(c, sel)
}

// ClearSelection is called by clients when the ticker set is edited by hand.
func (h *RunsEchoHandler) ClearSelection(c echo.Context) error {
	h.wf.ClearSelection()
	return xhttp.NoContentResponse(c)
}

// Stream pushes every workflow snapshot over a websocket until the client
// goes away.
func (h *RunsEchoHandler) Stream(c echo.Context) error {
	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.logger.Warn("stream upgrade failed", xlogger.Error(err))
		return nil
	}
	defer conn.Close()

	snaps, unsubscribe := h.wf.Subscribe()
	defer unsubscribe()

	// read loop only detects the client closing
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(streamPingInterval)
	defer ticker.Stop()

	h.logger.Debug("stream client connected", xlogger.String("client", c.RealIP()))
	for {
		select {
		case <-gone:
			return nil
		case snap, ok := <-snaps:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
					time.Now().Add(streamWriteWait))
				return nil
			}
			_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := conn.WriteJSON(snap); err != nil {
				h.logger.Debug("stream write failed", xlogger.Error(err))
				return nil
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(streamWriteWait)); err != nil {
				return nil
			}
		}
	}
}
