package repository

import (
	"context"

	"StratView/internal/domain/models"
)

// BacktestGateway issues calls to the remote backtesting service. It never
// returns Go errors: every failure is reported as a RemoteOutcome so that it
// can be classified.
type BacktestGateway interface {
	StrategyBacktest(ctx context.Context, req models.RunRequest) models.RemoteOutcome
	BenchmarkInvestment(ctx context.Context, req models.RunRequest) models.RemoteOutcome
	ScreenStocks(ctx context.Context, req models.RunRequest) models.RemoteOutcome
	AutoTrade(ctx context.Context, req models.RunRequest) models.RemoteOutcome
	Heartbeat(ctx context.Context) models.RemoteOutcome
}

// RunEventPublisher receives every terminal workflow state.
type RunEventPublisher interface {
	PublishRun(ctx context.Context, req models.RunRequest, state models.WorkflowState) error
	Close() error
}
