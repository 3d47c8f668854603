package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"arcade/database"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Database configuration
	DatabaseURL  string
	DatabaseName string

	// HTTP configuration
	HTTPAddr string

	// Account configuration
	StartingBalance int64
	PasswordHasher  string // "bcrypt" or "sha256" (legacy digests only)
	BcryptCost      int

	// Session configuration
	SessionTTL time.Duration // 0 disables expiry

	// Transfer idempotency configuration
	IdempotencyWindow        time.Duration
	IdempotencyPurgeInterval time.Duration

	// Leaderboard configuration
	LeaderboardLimit int
	ActivityLimit    int

	// NATS configuration
	NATSServers string // NATS server addresses (comma-separated), empty disables forwarding

	// OpenTelemetry metrics configuration
	OTelEnabled              bool
	OTelServiceName          string
	OTelExporterType         string // "console", "otlp" or "none"
	OTelOTLPEndpoint         string
	OTelExportIntervalMillis int

	// Logging
	LogLevel string

	// Environment
	Environment string // "development", "production" or "test"
}

var (
	instance *Config
	once     sync.Once
	mu       sync.Mutex // Protects instance for test setup
)

// Get returns the global configuration instance
func Get() *Config {
	mu.Lock()
	defer mu.Unlock()

	// If instance is already set (e.g., by tests), return it
	if instance != nil {
		return instance
	}

	once.Do(func() {
		var err error
		instance, err = load()
		if err != nil {
			if os.Getenv("ENVIRONMENT") == "test" {
				instance = NewTestConfig()
			} else {
				panic(fmt.Sprintf("failed to load config: %v", err))
			}
		}
	})
	return instance
}

// GetDatabaseURL constructs the full database URL by combining base URL and database name
func (c *Config) GetDatabaseURL() string {
	return database.ConstructDatabaseURL(c.DatabaseURL, c.DatabaseName)
}

// load loads configuration from environment variables, reading a .env file first if one exists
func load() (*Config, error) {
	// A missing .env is fine; real deployments set the environment directly
	_ = godotenv.Load()

	config := &Config{
		// Database
		DatabaseURL:  os.Getenv("DATABASE_URL"),
		DatabaseName: os.Getenv("DATABASE_NAME"),

		// HTTP
		HTTPAddr: getEnvWithDefault("HTTP_ADDR", ":8080"),

		// Accounts
		StartingBalance: 5000,
		PasswordHasher:  getEnvWithDefault("PASSWORD_HASHER", "bcrypt"),
		BcryptCost:      10,

		// Transfers
		IdempotencyWindow:        24 * time.Hour,
		IdempotencyPurgeInterval: time.Hour,

		// Leaderboards
		LeaderboardLimit: 20,
		ActivityLimit:    30,

		// NATS
		NATSServers: os.Getenv("NATS_SERVERS"),

		// OpenTelemetry
		OTelEnabled:              os.Getenv("OTEL_ENABLED") == "true",
		OTelServiceName:          getEnvWithDefault("OTEL_SERVICE_NAME", "arcade-ledger"),
		OTelExporterType:         getEnvWithDefault("OTEL_EXPORTER_TYPE", "console"),
		OTelOTLPEndpoint:         getEnvWithDefault("OTEL_OTLP_ENDPOINT", "localhost:4317"),
		OTelExportIntervalMillis: 60000,

		// Logging
		LogLevel: getEnvWithDefault("LOG_LEVEL", "info"),

		// Environment
		Environment: os.Getenv("ENVIRONMENT"),
	}

	// Override defaults if environment variables are set
	if balance := os.Getenv("STARTING_BALANCE"); balance != "" {
		parsedBalance, err := strconv.ParseInt(balance, 10, 64)
		if err != nil || parsedBalance < 0 {
			return nil, fmt.Errorf("STARTING_BALANCE must be a non-negative integer, got %q", balance)
		}
		config.StartingBalance = parsedBalance
	}
	if cost := os.Getenv("BCRYPT_COST"); cost != "" {
		if parsedCost, err := strconv.Atoi(cost); err == nil {
			config.BcryptCost = parsedCost
		}
	}
	if limit := os.Getenv("LEADERBOARD_LIMIT"); limit != "" {
		if parsedLimit, err := strconv.Atoi(limit); err == nil && parsedLimit > 0 {
			config.LeaderboardLimit = parsedLimit
		}
	}
	if interval := os.Getenv("OTEL_EXPORT_INTERVAL_MS"); interval != "" {
		if parsedInterval, err := strconv.Atoi(interval); err == nil && parsedInterval > 0 {
			config.OTelExportIntervalMillis = parsedInterval
		}
	}
	if limit := os.Getenv("ACTIVITY_LIMIT"); limit != "" {
		if parsedLimit, err := strconv.Atoi(limit); err == nil && parsedLimit > 0 {
			config.ActivityLimit = parsedLimit
		}
	}

	var err error
	if config.SessionTTL, err = parseDurationEnv("SESSION_TTL", 0); err != nil {
		return nil, err
	}
	if config.IdempotencyWindow, err = parseDurationEnv("IDEMPOTENCY_WINDOW", config.IdempotencyWindow); err != nil {
		return nil, err
	}
	if config.IdempotencyPurgeInterval, err = parseDurationEnv("IDEMPOTENCY_PURGE_INTERVAL", config.IdempotencyPurgeInterval); err != nil {
		return nil, err
	}

	// Set default environment if not specified
	if config.Environment == "" {
		config.Environment = "development"
	}

	switch config.PasswordHasher {
	case "bcrypt", "sha256":
	default:
		return nil, fmt.Errorf("PASSWORD_HASHER must be bcrypt or sha256, got %q", config.PasswordHasher)
	}

	switch config.OTelExporterType {
	case "console", "otlp", "none":
	default:
		return nil, fmt.Errorf("OTEL_EXPORTER_TYPE must be console, otlp or none, got %q", config.OTelExporterType)
	}

	if config.Environment != "test" {
		// Validate required configuration
		if config.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required")
		}
		// If DatabaseName is provided, ensure it's not empty
		if config.DatabaseName != "" && strings.TrimSpace(config.DatabaseName) == "" {
			return nil, fmt.Errorf("DATABASE_NAME cannot be empty when provided")
		}
	}

	return config, nil
}

// getEnvWithDefault returns the environment variable value or a default if not set
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// parseDurationEnv parses a Go duration ("90s", "24h") from the environment
func parseDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("%s must be a non-negative duration, got %q", key, value)
	}
	return d, nil
}

// Test helpers - only use in tests

// SetTestConfig overrides the global config instance for testing
func SetTestConfig(testConfig *Config) {
	mu.Lock()
	defer mu.Unlock()
	instance = testConfig
}

// ResetConfig resets the global config instance and sync.Once for testing
func ResetConfig() {
	mu.Lock()
	defer mu.Unlock()
	instance = nil
	once = sync.Once{}
}

// NewTestConfig creates a minimal config suitable for unit tests
func NewTestConfig() *Config {
	return &Config{
		Environment:              "test",
		HTTPAddr:                 ":0",
		StartingBalance:          5000,
		PasswordHasher:           "bcrypt",
		BcryptCost:               4,
		IdempotencyWindow:        24 * time.Hour,
		IdempotencyPurgeInterval: time.Hour,
		LeaderboardLimit:         20,
		ActivityLimit:            30,
		OTelServiceName:          "arcade-ledger-test",
		OTelExporterType:         "none",
		OTelExportIntervalMillis: 60000,
		LogLevel:                 "debug",
	}
}
