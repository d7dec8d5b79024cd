//go:build wireinject
// +build wireinject

package di

import (
	"context"

	"relmap/infrastructure/config"

	"github.com/google/wire"
)

// SuperSet is the main provider set containing all providers
var SuperSet = wire.NewSet(
	ProvideLogger,
	ProvideDomainConfig,
	ProvideAWSConfig,
	ProvideDynamoDBClient,
	ProvideEventBridgeClient,
	ProvideCloudWatchClient,
	ProvideSupabaseClient,
	ProvideTableService,
	ProvideConnectionStore,
	ProvideInbox,
	ProvideNotifier,
	ProvideEventPublisher,
	ProvideCollector,
	ProvideCloudWatchMetrics,
	ProvideMetrics,
	ProvideTracer,
	ProvideIdentityProvider,
	ProvideRateLimiter,
	ProvideTransferService,
	ProvideSessionManager,
	ProvideErrorHandler,
	ProvideRouter,
	wire.Struct(new(Container), "Config", "Logger", "Tables", "Connections", "Identity", "Inbox", "Sessions", "CloudWatch", "Router"),
)

// InitializeContainer creates a fully wired container
func InitializeContainer(ctx context.Context, cfg *config.Config) (*Container, error) {
	wire.Build(SuperSet)
	return nil, nil // Wire will replace this
}
