package main

import (
	"fmt"
	"time"

	"StratView/internal/domain/models"
	"StratView/internal/service/keepalive"
	"StratView/internal/service/stream"
	"StratView/internal/services/backtest"
	"StratView/internal/usecase"
	"StratView/pkg/util"

	"github.com/spf13/cobra"
)

var (
	tickers     []string
	startDate   string
	endDate     string
	capital     float64
	optimize    bool
	timeframe   string
	mode        string
	maxStocks   int
	serverURL   string
	untilFinish bool
)

var manualCmd = &cobra.Command{
	Use:   "manual",
	Short: "Backtest a chosen ticker set against SPY",
	Long: `Runs the MACD strategy on the given tickers and fetches the SPY benchmark for
the same window and capital.

Example:
  backtestctl manual --tickers AAPL,MSFT --start 2023-01-01 --end 2023-12-31 --capital 100000`,
	RunE: func(cmd *cobra.Command, args []string) error {
		start, end, err := parseRange()
		if err != nil {
			return err
		}
		return runWorkflow(cmd, models.NewRunRequest(models.RunParams{
			Variant:  models.VariantManual,
			Tickers:  tickers,
			Start:    start,
			End:      end,
			Capital:  capital,
			Optimize: &optimize,
		}))
	},
}

var screenCmd = &cobra.Command{
	Use:   "screen",
	Short: "Screen for stocks without backtesting them",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWorkflow(cmd, models.NewRunRequest(models.RunParams{
			Variant:      models.VariantScreenOnly,
			Timeframe:    models.Timeframe(timeframe),
			StrategyMode: models.StrategyMode(mode),
			MaxStocks:    maxStocks,
		}))
	},
}

var autoTradeCmd = &cobra.Command{
	Use:   "auto-trade",
	Short: "Screen, backtest the picks and compare them against SPY",
	RunE: func(cmd *cobra.Command, args []string) error {
		start, end, err := parseRange()
		if err != nil {
			return err
		}
		return runWorkflow(cmd, models.NewRunRequest(models.RunParams{
			Variant:      models.VariantAutoTrade,
			Timeframe:    models.Timeframe(timeframe),
			StrategyMode: models.StrategyMode(mode),
			MaxStocks:    maxStocks,
			Start:        start,
			End:          end,
			Capital:      capital,
		}))
	},
}

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Send one heartbeat to the backtesting service",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		p := keepalive.New(backtest.NewHTTPGateway(cfg), cfg.KeepAlive.Interval, newLogger(), nil)
		if err := p.Ping(cmd.Context()); err != nil {
			return err
		}
		st := p.Status()
		if output == "json" {
			return writeJSON(cmd.OutOrStdout(), st)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "alive (service time %s)\n", orDash(st.LastTimestamp))
		return nil
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow the run snapshots of a running StratView server",
	RunE: func(cmd *cobra.Command, args []string) error {
		c := stream.New(serverURL, 30*time.Second)
		if err := c.Connect(cmd.Context()); err != nil {
			return err
		}
		defer c.Close()

		snaps, errs := c.Read(cmd.Context())
		seenRun := false
		for snap := range snaps {
			if err := renderSnapshot(cmd.OutOrStdout(), snap); err != nil {
				return err
			}
			if snap.State.Phase == models.PhaseRunning {
				seenRun = true
			}
			if untilFinish && seenRun && snap.State.Phase.Terminal() {
				return nil
			}
		}
		return <-errs
	},
}

func init() {
	manualCmd.Flags().StringSliceVarP(&tickers, "tickers", "t", nil, "comma separated ticker symbols")
	manualCmd.Flags().BoolVar(&optimize, "optimize", true, "optimise the MACD parameters")
	for _, c := range []*cobra.Command{manualCmd, autoTradeCmd} {
		c.Flags().StringVar(&startDate, "start", "", "start date (YYYY-MM-DD)")
		c.Flags().StringVar(&endDate, "end", "", "end date (YYYY-MM-DD)")
		c.Flags().Float64Var(&capital, "capital", 100000, "initial capital")
	}
	for _, c := range []*cobra.Command{screenCmd, autoTradeCmd} {
		c.Flags().IntVar(&maxStocks, "max-stocks", 0, "number of stocks to screen for (0 uses the service default)")
	}
	screenCmd.Flags().StringVar(&timeframe, "timeframe", "", "screening horizon: short, medium or long")
	screenCmd.Flags().StringVar(&mode, "mode", "", "strategy mode: conservative, moderate or aggressive")
	autoTradeCmd.Flags().StringVar(&timeframe, "timeframe", string(models.TimeframeMedium), "screening horizon: short, medium or long")
	autoTradeCmd.Flags().StringVar(&mode, "mode", string(models.ModeModerate), "strategy mode: conservative, moderate or aggressive")

	watchCmd.Flags().StringVar(&serverURL, "server", "http://localhost:8080", "StratView server URL")
	watchCmd.Flags().BoolVar(&untilFinish, "until-finished", false, "exit once a run reaches a terminal phase")
}

// parseRange reads --start and --end. Empty values are left for the run
// validation to reject.
func parseRange() (time.Time, time.Time, error) {
	start, ok := util.ParseDate(startDate)
	if !ok && startDate != "" {
		return time.Time{}, time.Time{}, fmt.Errorf("--start: %q is not a date", startDate)
	}
	end, ok := util.ParseDate(endDate)
	if !ok && endDate != "" {
		return time.Time{}, time.Time{}, fmt.Errorf("--end: %q is not a date", endDate)
	}
	return start, end, nil
}

// runWorkflow executes req in-process against the configured service and
// prints the terminal state.
func runWorkflow(cmd *cobra.Command, req models.RunRequest) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if req.MaxStocks == models.DefaultMaxStocks && maxStocks == 0 {
		req.MaxStocks = cfg.Backtest.DefaultMaxStocks
	}
	l := newLogger()

	ctrl := usecase.NewController(
		usecase.NewOrchestrator(backtest.NewHTTPGateway(cfg), cfg, l, nil),
		nil, l, nil,
	)
	defer ctrl.Close(cmd.Context())

	st := ctrl.Run(cmd.Context(), req)
	if err := render(cmd.OutOrStdout(), st); err != nil {
		return err
	}
	if st.Failure != nil {
		return st.Failure
	}
	return nil
}
