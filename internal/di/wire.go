//go:build wireinject
// +build wireinject

package di

import (
	"TrendDuel/pkg/config"
	"TrendDuel/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvidePostgresClient,
		ProvideCache,
		ProvideEventPublisher,

		// Stores and accessors
		ProvideJobStore,
		ProvideRunStore,
		ProvideEvaluationStore,
		ProvideSeriesProvider,

		// Use cases
		ProvidePackBuilder,
		ProvideWarmup,
		ProvideEvaluator,

		// HTTP + application
		ProvideHandler,
		ProvideApp,
	)
	return &server.App{}, nil
}
