package di

import (
	"context"
	"fmt"
	"time"

	"relmap/application/graphsync"
	"relmap/application/notify"
	"relmap/application/ports"
	"relmap/application/session"
	"relmap/application/transfer"
	domainconfig "relmap/domain/config"
	"relmap/domain/core/valueobjects"
	"relmap/infrastructure/config"
	"relmap/infrastructure/messaging/eventbridge"
	"relmap/infrastructure/messaging/websocket"
	"relmap/infrastructure/persistence/dynamodb"
	"relmap/infrastructure/persistence/memory"
	"relmap/infrastructure/persistence/resilience"
	"relmap/infrastructure/persistence/supabase"
	"relmap/infrastructure/tabular/excel"
	"relmap/interfaces/http/rest"
	"relmap/pkg/auth"
	pkgerrors "relmap/pkg/errors"
	"relmap/pkg/observability"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awscloudwatch "github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awseventbridge "github.com/aws/aws-sdk-go-v2/service/eventbridge"
	supabasego "github.com/supabase-community/supabase-go"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// developmentSecret signs tokens when JWT_SECRET is unset outside production
const developmentSecret = "development-secret-change-in-production"

// ProvideLogger creates a new logger instance
func ProvideLogger(cfg *config.Config) (*zap.Logger, error) {
	var zapCfg zap.Config
	if cfg.IsProduction() {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL %q: %w", cfg.LogLevel, err)
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}

// ProvideDomainConfig returns the domain rules for the environment
func ProvideDomainConfig(cfg *config.Config) (*domainconfig.DomainConfig, error) {
	domainCfg := domainconfig.LoadDomainConfig(cfg.Environment)
	if err := domainCfg.Validate(); err != nil {
		return nil, err
	}
	return domainCfg, nil
}

// ProvideAWSConfig creates AWS configuration
func ProvideAWSConfig(ctx context.Context, cfg *config.Config) (aws.Config, error) {
	return awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.AWSRegion),
	)
}

// ProvideDynamoDBClient creates a DynamoDB client
func ProvideDynamoDBClient(awsCfg aws.Config) *awsdynamodb.Client {
	return awsdynamodb.NewFromConfig(awsCfg)
}

// ProvideEventBridgeClient creates an EventBridge client
func ProvideEventBridgeClient(awsCfg aws.Config) *awseventbridge.Client {
	return awseventbridge.NewFromConfig(awsCfg)
}

// ProvideCloudWatchClient creates a CloudWatch client
func ProvideCloudWatchClient(awsCfg aws.Config) *awscloudwatch.Client {
	return awscloudwatch.NewFromConfig(awsCfg)
}

// ProvideSupabaseClient creates a Supabase client when the store or the
// identity provider needs one, nil otherwise
func ProvideSupabaseClient(cfg *config.Config) (*supabasego.Client, error) {
	if cfg.StoreBackend != config.StoreSupabase && cfg.AuthMode != config.AuthSupabase {
		return nil, nil
	}
	return supabase.NewClient(cfg.SupabaseURL, cfg.SupabaseServiceKey)
}

// ProvideTableService selects the configured store and decorates it with
// retries and a circuit breaker
func ProvideTableService(
	cfg *config.Config,
	dynamoClient *awsdynamodb.Client,
	supabaseClient *supabasego.Client,
	logger *zap.Logger,
) (ports.TableService, error) {
	var inner ports.TableService
	switch cfg.StoreBackend {
	case config.StoreMemory:
		logger.Warn("Using the in-memory store, data is lost on restart")
		return memory.NewTableService(), nil
	case config.StoreSupabase:
		inner = supabase.NewTableService(supabaseClient, cfg.PersonsTable, cfg.RelationsTable, logger)
	case config.StoreDynamoDB:
		inner = dynamodb.NewTableService(dynamoClient, cfg.DynamoDBTable, logger)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}

	retry := resilience.DefaultRetryConfig()
	retry.MaxRetries = cfg.SyncMaxRetries
	retry.InitialDelay = cfg.SyncRetryInitialDelay

	breaker := resilience.DefaultBreakerConfig(cfg.StoreBackend)
	breaker.FailureThreshold = uint32(cfg.BreakerFailureThreshold)
	breaker.Timeout = cfg.BreakerOpenTimeout

	return resilience.NewTableService(inner, retry, breaker, logger), nil
}

// ProvideConnectionStore creates the WebSocket connection registry, nil when
// no WebSocket endpoint is configured
func ProvideConnectionStore(cfg *config.Config, client *awsdynamodb.Client, logger *zap.Logger) ports.ConnectionStore {
	if cfg.WebSocketEndpoint == "" {
		return nil
	}
	return dynamodb.NewConnectionStore(client, cfg.ConnectionsTable, logger)
}

// ProvideInbox creates the per-user notification inbox
func ProvideInbox(cfg *config.Config) *notify.Inbox {
	return notify.NewInbox(cfg.NotificationCapacity)
}

// ProvideNotifier delivers notifications to the inbox and, when configured,
// to connected WebSocket clients
func ProvideNotifier(
	cfg *config.Config,
	awsCfg aws.Config,
	inbox *notify.Inbox,
	connections ports.ConnectionStore,
	logger *zap.Logger,
) ports.Notifier {
	if connections == nil {
		return inbox
	}
	push := websocket.NewNotifier(websocket.NewClient(awsCfg, cfg.WebSocketEndpoint), connections, logger)
	return notify.NewFanout(logger, inbox, push)
}

// ProvideEventPublisher mirrors persisted mutations to EventBridge, nil when
// no bus is configured
func ProvideEventPublisher(client *awseventbridge.Client, cfg *config.Config, logger *zap.Logger) ports.EventPublisher {
	if cfg.EventBusName == "" {
		return nil
	}
	return eventbridge.NewPublisher(client, cfg.EventBusName, logger)
}

// ProvideCollector creates the Prometheus collector, nil unless it is the active sink
func ProvideCollector(cfg *config.Config) *observability.Collector {
	if !cfg.EnableMetrics || cfg.MetricsSink != config.MetricsPrometheus {
		return nil
	}
	return observability.NewCollector("relmap")
}

// ProvideCloudWatchMetrics creates the CloudWatch sink, nil unless it is the active sink
func ProvideCloudWatchMetrics(cfg *config.Config, client *awscloudwatch.Client, logger *zap.Logger) *observability.CloudWatchMetrics {
	if !cfg.EnableMetrics || cfg.MetricsSink != config.MetricsCloudWatch {
		return nil
	}
	namespace := fmt.Sprintf("%s/%s", cfg.MetricsNamespace, cfg.Environment)
	return observability.NewCloudWatchMetrics(client, namespace, time.Minute, logger)
}

// ProvideMetrics returns the active metrics sink
func ProvideMetrics(collector *observability.Collector, cw *observability.CloudWatchMetrics) ports.Metrics {
	switch {
	case collector != nil:
		return collector
	case cw != nil:
		return cw
	default:
		return ports.NoopMetrics{}
	}
}

// ProvideTracer creates the X-Ray tracer
func ProvideTracer(cfg *config.Config) *observability.Tracer {
	return observability.NewTracer("relmap", cfg.EnableTracing)
}

// ProvideIdentityProvider validates bearer tokens locally or against Supabase Auth
func ProvideIdentityProvider(cfg *config.Config, client *supabasego.Client, logger *zap.Logger) (ports.IdentityProvider, error) {
	if cfg.AuthMode == config.AuthSupabase {
		return auth.NewSupabaseIdentity(client), nil
	}

	secret := cfg.JWTSecret
	if secret == "" {
		logger.Warn("JWT_SECRET is not set, using the development secret")
		secret = developmentSecret
	}
	jwtCfg := auth.JWTConfig{SecretKey: secret, Issuer: cfg.JWTIssuer}
	if cfg.JWTAudience != "" {
		jwtCfg.Audience = []string{cfg.JWTAudience}
	}
	return auth.NewJWTValidator(jwtCfg)
}

// ProvideRateLimiter creates the per-caller rate limiter
func ProvideRateLimiter(cfg *config.Config) *auth.RateLimiter {
	return auth.NewRateLimiter(cfg.RateLimitPerMinute)
}

// ProvideTransferService creates the tabular import/export service
func ProvideTransferService(domainCfg *domainconfig.DomainConfig, logger *zap.Logger) *transfer.Service {
	return transfer.NewService(excel.NewCodec(), valueobjects.NewUUIDGenerator(), domainCfg, logger)
}

// ProvideSessionManager creates the session manager
func ProvideSessionManager(
	cfg *config.Config,
	tables ports.TableService,
	notifier ports.Notifier,
	publisher ports.EventPublisher,
	metrics ports.Metrics,
	transferService *transfer.Service,
	domainCfg *domainconfig.DomainConfig,
	logger *zap.Logger,
) *session.Manager {
	deps := session.Dependencies{
		Tables:       tables,
		Notifier:     notifier,
		Publisher:    publisher,
		Metrics:      metrics,
		Transfer:     transferService,
		IDs:          valueobjects.NewUUIDGenerator(),
		DomainConfig: domainCfg,
		SyncConfig:   graphsync.DefaultConfig(),
		Logger:       logger,
	}
	return session.NewManager(deps, cfg.SessionIdleTimeout, logger)
}

// ProvideErrorHandler creates the HTTP error handler. Stack traces are exposed in development only.
func ProvideErrorHandler(cfg *config.Config, logger *zap.Logger) *pkgerrors.ErrorHandler {
	return pkgerrors.NewErrorHandler(logger, cfg.Environment == "development")
}

// ProvideRouter creates the HTTP router
func ProvideRouter(
	cfg *config.Config,
	sessions *session.Manager,
	inbox *notify.Inbox,
	tables ports.TableService,
	identity ports.IdentityProvider,
	limiter *auth.RateLimiter,
	metrics ports.Metrics,
	collector *observability.Collector,
	tracer *observability.Tracer,
	errorHandler *pkgerrors.ErrorHandler,
	logger *zap.Logger,
) *rest.Router {
	options := rest.Options{
		EnableCORS:         cfg.EnableCORS,
		AllowedOrigins:     cfg.AllowedOrigin,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
	}
	if collector != nil {
		options.MetricsHandler = collector.Handler()
	}
	return rest.NewRouter(sessions, inbox, tables, identity, limiter, metrics, tracer, errorHandler, options, logger)
}
