package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Store backends
const (
	StoreMemory   = "memory"
	StoreSupabase = "supabase"
	StoreDynamoDB = "dynamodb"
)

// Auth modes
const (
	AuthJWT      = "jwt"
	AuthSupabase = "supabase"
)

// Metrics sinks
const (
	MetricsPrometheus = "prometheus"
	MetricsCloudWatch = "cloudwatch"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	ServerAddress string
	Environment   string

	// Persistent store
	StoreBackend   string
	PersonsTable   string
	RelationsTable string

	// Supabase configuration
	SupabaseURL        string
	SupabaseServiceKey string

	// AWS configuration
	AWSRegion        string
	DynamoDBTable    string
	EventBusName     string
	MetricsNamespace string

	// Lambda configuration
	IsLambda           bool
	LambdaFunctionName string

	// WebSocket configuration
	WebSocketEndpoint string
	ConnectionsTable  string
	ConnectionTTL     time.Duration

	// Logging
	LogLevel string

	// Authentication
	AuthMode    string
	JWTSecret   string
	JWTIssuer   string
	JWTAudience string

	// Sync resilience
	SyncMaxRetries          int
	SyncRetryInitialDelay   time.Duration
	BreakerFailureThreshold int
	BreakerOpenTimeout      time.Duration

	// Sessions and notifications
	SessionIdleTimeout   time.Duration
	NotificationCapacity int

	// Rate limiting, requests per minute per user
	RateLimitPerMinute int

	// Feature flags
	EnableMetrics bool
	EnableTracing bool
	EnableCORS    bool
	MetricsSink   string
	AllowedOrigin []string
}

// LoadConfig loads configuration from environment variables.
// A .env file in the working directory is read first when present.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		ServerAddress: getEnv("SERVER_ADDRESS", ":8080"),
		Environment:   getEnv("ENVIRONMENT", "development"),

		StoreBackend:   getEnv("STORE_BACKEND", StoreMemory),
		PersonsTable:   getEnv("PERSONS_TABLE", "persons"),
		RelationsTable: getEnv("RELATIONS_TABLE", "relations"),

		SupabaseURL:        getEnv("SUPABASE_URL", ""),
		SupabaseServiceKey: getEnv("SUPABASE_SERVICE_ROLE_KEY", ""),

		AWSRegion:        getEnv("AWS_REGION", "eu-west-3"),
		DynamoDBTable:    getEnv("TABLE_NAME", getEnv("DYNAMODB_TABLE", "relmap")),
		EventBusName:     getEnv("EVENT_BUS_NAME", ""),
		MetricsNamespace: getEnv("METRICS_NAMESPACE", "Relmap"),

		// Lambda configuration
		IsLambda:           getEnvBool("IS_LAMBDA", false),
		LambdaFunctionName: getEnv("AWS_LAMBDA_FUNCTION_NAME", ""),

		// WebSocket configuration
		WebSocketEndpoint: getEnv("WEBSOCKET_ENDPOINT", ""),
		ConnectionsTable:  getEnv("CONNECTIONS_TABLE", "relmap-connections"),
		ConnectionTTL:     getEnvDuration("CONNECTION_TTL", 2*time.Hour),

		// Authentication
		AuthMode:    getEnv("AUTH_MODE", AuthJWT),
		JWTSecret:   getEnv("JWT_SECRET", ""),
		JWTIssuer:   getEnv("JWT_ISSUER", ""),
		JWTAudience: getEnv("JWT_AUDIENCE", "authenticated"),

		SyncMaxRetries:          getEnvInt("SYNC_MAX_RETRIES", 3),
		SyncRetryInitialDelay:   time.Duration(getEnvInt("SYNC_RETRY_INITIAL_DELAY_MS", 100)) * time.Millisecond,
		BreakerFailureThreshold: getEnvInt("BREAKER_FAILURE_THRESHOLD", 5),
		BreakerOpenTimeout:      getEnvDuration("BREAKER_OPEN_TIMEOUT", 30*time.Second),

		SessionIdleTimeout:   getEnvDuration("SESSION_IDLE_TIMEOUT", 30*time.Minute),
		NotificationCapacity: getEnvInt("NOTIFICATION_CAPACITY", 50),

		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 600),

		// Logging and features
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		EnableMetrics: getEnvBool("ENABLE_METRICS", false),
		EnableTracing: getEnvBool("ENABLE_TRACING", false),
		EnableCORS:    getEnvBool("ENABLE_CORS", true),
		MetricsSink:   getEnv("METRICS_SINK", MetricsPrometheus),
		AllowedOrigin: []string{getEnv("ALLOWED_ORIGIN", "*")},
	}

	// Validate required configuration
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if all required configuration is present
func (c *Config) Validate() error {
	switch c.StoreBackend {
	case StoreMemory:
	case StoreSupabase:
		if c.SupabaseURL == "" || c.SupabaseServiceKey == "" {
			return fmt.Errorf("SUPABASE_URL and SUPABASE_SERVICE_ROLE_KEY are required for the supabase store")
		}
	case StoreDynamoDB:
		if c.DynamoDBTable == "" {
			return fmt.Errorf("DYNAMODB_TABLE is required for the dynamodb store")
		}
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}

	switch c.AuthMode {
	case AuthJWT:
		if c.IsProduction() && c.JWTSecret == "" {
			return fmt.Errorf("JWT_SECRET is required in production")
		}
	case AuthSupabase:
		if c.SupabaseURL == "" || c.SupabaseServiceKey == "" {
			return fmt.Errorf("SUPABASE_URL and SUPABASE_SERVICE_ROLE_KEY are required for supabase auth")
		}
	default:
		return fmt.Errorf("unknown AUTH_MODE %q", c.AuthMode)
	}

	if c.MetricsSink != MetricsPrometheus && c.MetricsSink != MetricsCloudWatch {
		return fmt.Errorf("unknown METRICS_SINK %q", c.MetricsSink)
	}

	if c.IsProduction() && c.StoreBackend == StoreMemory {
		return fmt.Errorf("the memory store cannot be used in production")
	}

	return nil
}

// IsDevelopment checks if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction checks if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool gets a boolean environment variable with a default value
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value == "true" || value == "1" || value == "yes"
}

// getEnvInt gets an integer environment variable with a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration parses values such as "30s" or "15m"
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
