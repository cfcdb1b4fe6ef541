//go:build wireinject
// +build wireinject

package di

import (
	"StratView/pkg/config"
	"StratView/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Ambient
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure
		ProvideCache,
		ProvideBacktestGateway,
		ProvideRunEventPublisher,
		ProvideRateLimiter,

		// Use cases
		ProvideOrchestrator,
		ProvideController,
		ProvideKeepAlive,

		// Transport
		ProvideRunsHandler,
		ProvideHTTPServer,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
