package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"StratView/pkg/config"
	"StratView/pkg/logger"

	"github.com/spf13/cobra"
)

var (
	configPath string
	baseURL    string
	output     string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "backtestctl",
	Short: "Compare a MACD strategy against the SPY benchmark from the terminal",
	Long: `backtestctl drives the remote backtesting service directly and prints the
aligned strategy and benchmark series.

Run variants:
  manual     - backtest a chosen ticker set against SPY
  screen     - screen for stocks only
  auto-trade - screen, backtest the picks and fetch the benchmark

Service commands:
  ping  - send one heartbeat to the backtesting service
  watch - follow the run snapshots of a running StratView server`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if output != "table" && output != "json" {
			return fmt.Errorf("--output must be 'table' or 'json', got %q", output)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config/config.yaml", "config file path (defaults are used when it does not exist)")
	rootCmd.PersistentFlags().StringVar(&baseURL, "base-url", "", "backtesting service base URL (overrides config)")
	rootCmd.PersistentFlags().StringVarP(&output, "output", "o", "table", "output format: table or json")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log every remote call")

	rootCmd.AddCommand(manualCmd, screenCmd, autoTradeCmd, pingCmd, watchCmd)
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadWithEnv(configPath)
	if errors.Is(err, fs.ErrNotExist) {
		cfg, err = config.Default(), nil
		cfg.ApplyEnv()
	}
	if err != nil {
		return nil, err
	}
	if baseURL != "" {
		cfg.Backtest.BaseURL = baseURL
	}
	return cfg, nil
}

func newLogger() *logger.Logger {
	level := "warn"
	if verbose {
		level = "debug"
	}
	l, err := logger.New(&logger.Config{Level: level, Format: "console", Output: "stderr"})
	if err != nil {
		return logger.Nop()
	}
	return l
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
