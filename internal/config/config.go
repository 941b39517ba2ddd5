package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App        AppConfig
	Postgres   PostgresConfig
	Redis      RedisConfig
	Logger     LoggerConfig
	Auth       AuthConfig
	Assignment AssignmentConfig
	Scope      ScopeConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	MigrationsDir  string
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines authentication parameters.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
}

// AssignmentConfig tunes the bulk assignment processor.
type AssignmentConfig struct {
	MaxIdentifiers int
	Workers        int
	CASRetries     int
	LockTTLMillis  int
}

// ScopeConfig tunes visibility scope resolution.
type ScopeConfig struct {
	CacheTTLSeconds int
	// SupervisorFallbackAll restores the legacy behavior where a supervisor without a
	// resolvable team sees every commercial user. Off unless explicitly enabled.
	SupervisorFallbackAll bool
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	maxConns := int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10))
	minConns := int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2))
	runMigrations := getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true)
	connMaxIdle := int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30))
	connMaxLife := int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300))

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "portfolio-service"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       maxConns,
			MinConns:       minConns,
			RunMigrations:  runMigrations,
			MigrationsDir:  getEnv("POSTGRES_MIGRATIONS_DIR", "migrations"),
			ConnMaxIdleSec: connMaxIdle,
			ConnMaxLifeSec: connMaxLife,
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", devJWTSecret),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
		},
		Assignment: AssignmentConfig{
			MaxIdentifiers: getEnvAsInt("ASSIGN_MAX_IDENTIFIERS", 5000),
			Workers:        getEnvAsInt("ASSIGN_WORKERS", 4),
			CASRetries:     getEnvAsInt("ASSIGN_CAS_RETRIES", 3),
			LockTTLMillis:  getEnvAsInt("ASSIGN_LOCK_TTL_MS", 5000),
		},
		Scope: ScopeConfig{
			CacheTTLSeconds:       getEnvAsInt("SCOPE_CACHE_TTL_SECONDS", 60),
			SupervisorFallbackAll: getEnvAsBool("SCOPE_SUPERVISOR_FALLBACK_ALL", false),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

const devJWTSecret = "dev-secret"

// Validate rejects settings the bulk processor or the token verifier cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Assignment.MaxIdentifiers < 1 {
		errs = append(errs, errors.New("ASSIGN_MAX_IDENTIFIERS must be at least 1"))
	}
	if c.Assignment.Workers < 1 {
		errs = append(errs, errors.New("ASSIGN_WORKERS must be at least 1"))
	}
	if c.Assignment.CASRetries < 0 {
		errs = append(errs, errors.New("ASSIGN_CAS_RETRIES must not be negative"))
	}
	if c.Auth.AccessTokenTTLMinutes < 1 {
		errs = append(errs, errors.New("AUTH_ACCESS_TOKEN_TTL_MINUTES must be at least 1"))
	}
	if c.App.Env != "development" && (c.Auth.JWTSecret == "" || c.Auth.JWTSecret == devJWTSecret) {
		errs = append(errs, fmt.Errorf("AUTH_JWT_SECRET must be set outside development (APP_ENV=%s)", c.App.Env))
	}
	return errors.Join(errs...)
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// LockTTL returns the per-entity lock lease.
func (a AssignmentConfig) LockTTL() time.Duration {
	if a.LockTTLMillis <= 0 {
		return 5 * time.Second
	}
	return time.Duration(a.LockTTLMillis) * time.Millisecond
}

// CacheTTL returns how long resolved supervisor scopes are cached. Zero disables caching.
func (s ScopeConfig) CacheTTL() time.Duration {
	if s.CacheTTLSeconds <= 0 {
		return 0
	}
	return time.Duration(s.CacheTTLSeconds) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
