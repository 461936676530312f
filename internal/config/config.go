package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/troupe/internal/tz"
)

type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvTesting     Environment = "testing"
	EnvProduction  Environment = "production"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMemory   = "memory"
)

// Config holds environment-based settings
type Config struct {
	Environment   Environment `envconfig:"APP_ENV" default:"development"`
	ServerAddress string      `envconfig:"SERVER_ADDRESS" default:":8080"`
	LogLevel      string      `envconfig:"LOG_LEVEL" default:"info"`

	DatabaseDriver string `envconfig:"DATABASE_DRIVER" default:"postgres"`
	DatabaseURL    string `envconfig:"DATABASE_URL"`
	MigrationsPath string `envconfig:"MIGRATIONS_PATH" default:"./migrations"`

	JWTSecret string        `envconfig:"JWT_SECRET"`
	TokenTTL  time.Duration `envconfig:"TOKEN_TTL" default:"72h"`

	RedisAddress  string `envconfig:"REDIS_ADDRESS"`
	RedisUsername string `envconfig:"REDIS_USERNAME"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`

	MQTTBrokerURL string `envconfig:"MQTT_BROKER_URL"`
	MQTTClientID  string `envconfig:"MQTT_CLIENT_ID" default:"troupe-server"`

	DefaultTimezone string `envconfig:"DEFAULT_TIMEZONE" default:"UTC"`

	SyncShards      int           `envconfig:"SYNC_SHARDS" default:"4"`
	SyncQueueSize   int           `envconfig:"SYNC_QUEUE_SIZE" default:"128"`
	SyncFanout      int           `envconfig:"SYNC_FANOUT" default:"8"`
	SyncMaxAttempts int           `envconfig:"SYNC_MAX_ATTEMPTS" default:"5"`
	SyncJobTimeout  time.Duration `envconfig:"SYNC_JOB_TIMEOUT" default:"30s"`

	// LockTTL defaults to twice SyncJobTimeout and must outlive it.
	LockTTL  time.Duration `envconfig:"LOCK_TTL"`
	LockWait time.Duration `envconfig:"LOCK_WAIT" default:"10s"`

	ReconcileSchedule string        `envconfig:"RECONCILE_SCHEDULE" default:"@every 5m"`
	ReconcileMinAge   time.Duration `envconfig:"RECONCILE_MIN_AGE" default:"1m"`
}

// Load reads a .env file when present, then the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Msg(".env could not be read")
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}
	if err := cfg.ResolveDefaults(); err != nil {
		return nil, err
	}

	log.Info().
		Str("environment", string(cfg.Environment)).
		Str("address", cfg.ServerAddress).
		Str("db_driver", cfg.DatabaseDriver).
		Bool("redis", cfg.RedisAddress != "").
		Bool("mqtt", cfg.MQTTBrokerURL != "").
		Str("default_timezone", cfg.DefaultTimezone).
		Int("sync_shards", cfg.SyncShards).
		Msg("Configuration loaded")

	return &cfg, nil
}

// ResolveDefaults validates the driver and zone and fills what only
// development may leave empty.
func (c *Config) ResolveDefaults() error {
	switch c.DatabaseDriver {
	case DriverPostgres, DriverSQLite:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for driver %s", c.DatabaseDriver)
		}
	case DriverMemory:
	default:
		return fmt.Errorf("unsupported DATABASE_DRIVER: %s", c.DatabaseDriver)
	}

	if c.JWTSecret == "" {
		if c.IsProduction() {
			return fmt.Errorf("JWT_SECRET is required")
		}
		c.JWTSecret = "troupe-dev-secret"
		log.Warn().Msg("JWT_SECRET not set, using development secret")
	}

	if _, err := tz.LoadZone(c.DefaultTimezone); err != nil {
		return fmt.Errorf("DEFAULT_TIMEZONE: %w", err)
	}
	if c.SyncFanout <= 0 {
		c.SyncFanout = 1
	}
	if c.LockTTL == 0 {
		c.LockTTL = 2 * c.SyncJobTimeout
	}
	if c.LockTTL <= c.SyncJobTimeout {
		return fmt.Errorf("LOCK_TTL (%s) must be longer than SYNC_JOB_TIMEOUT (%s)", c.LockTTL, c.SyncJobTimeout)
	}
	return nil
}

// NewForTesting returns an in-memory configuration.
func NewForTesting() *Config {
	return &Config{
		Environment:       EnvTesting,
		ServerAddress:     ":0",
		LogLevel:          "debug",
		DatabaseDriver:    DriverMemory,
		MigrationsPath:    "./migrations",
		JWTSecret:         "test-secret",
		TokenTTL:          time.Hour,
		DefaultTimezone:   "UTC",
		SyncShards:        2,
		SyncQueueSize:     16,
		SyncFanout:        4,
		SyncMaxAttempts:   1,
		SyncJobTimeout:    5 * time.Second,
		LockTTL:           10 * time.Second,
		LockWait:          time.Second,
		ReconcileSchedule: "@every 1m",
	}
}

func (c *Config) IsProduction() bool {
	return c.Environment == EnvProduction
}

// Migrations returns the migration directory for the configured driver.
func (c *Config) Migrations() string {
	return c.MigrationsPath + "/" + c.DatabaseDriver
}
