// Package config provides configuration management for the item service.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Storage backends.
const (
	BackendMemory   = "memory"
	BackendFile     = "file"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// Default configuration values.
const (
	DefaultServerPort      = 8080
	DefaultProbePort       = 9090
	DefaultLogLevel        = "info"
	DefaultShutdownTimeout = 30 * time.Second
	DefaultMetricsEnabled  = true
	DefaultStoreBackend    = BackendMemory
	DefaultStoreFilePath   = "items.json"
	DefaultSQLitePath      = "items.db"
	DefaultCacheTTL        = 5 * time.Minute
	DefaultCORSOrigins     = "*"
	DefaultEnvFile         = ".env"
)

// Environment variable names.
const (
	EnvServerPort      = "APP_SERVER_PORT"
	EnvProbePort       = "APP_PROBE_PORT"
	EnvLogLevel        = "APP_LOG_LEVEL"
	EnvShutdownTimeout = "APP_SHUTDOWN_TIMEOUT"
	EnvMetricsEnabled  = "APP_METRICS_ENABLED"
	EnvStoreBackend    = "APP_STORE_BACKEND"
	EnvStoreFilePath   = "APP_STORE_FILE_PATH"
	EnvSQLitePath      = "APP_SQLITE_PATH"
	EnvPostgresDSN     = "APP_POSTGRES_DSN"
	EnvRedisURL        = "APP_REDIS_URL"
	EnvCacheTTL        = "APP_CACHE_TTL"
	EnvCORSOrigins     = "APP_CORS_ALLOWED_ORIGINS"
	EnvEnvFile         = "APP_ENV_FILE"
)

// Config holds the application configuration.
type Config struct {
	// Server settings.
	ServerPort      int
	ProbePort       int // 0 disables the probe server.
	LogLevel        string
	ShutdownTimeout time.Duration
	MetricsEnabled  bool
	CORSOrigins     []string

	// Storage settings.
	StoreBackend  string
	StoreFilePath string
	SQLitePath    string
	PostgresDSN   string

	// Read cache; disabled when RedisURL is empty.
	RedisURL string
	CacheTTL time.Duration
}

// Validation errors.
var (
	ErrInvalidServerPort      = errors.New("server port must be between 1 and 65535")
	ErrInvalidProbePort       = errors.New("probe port must be between 0 and 65535")
	ErrProbePortConflict      = errors.New("probe port must differ from server port when probe port is not 0")
	ErrInvalidLogLevel        = errors.New("log level must be one of: debug, info, warn, error")
	ErrInvalidShutdownTimeout = errors.New("shutdown timeout must be positive")
	ErrInvalidStoreBackend    = errors.New("store backend must be one of: memory, file, sqlite, postgres")
	ErrStoreFilePathRequired  = errors.New("store file path must be set when store backend is file")
	ErrSQLitePathRequired     = errors.New("sqlite path must be set when store backend is sqlite")
	ErrPostgresDSNRequired    = errors.New("postgres DSN must be set when store backend is postgres")
	ErrInvalidCacheTTL        = errors.New("cache TTL must be positive when redis URL is set")
)

// Load reads configuration from environment variables with defaults.
// A .env file (or the file named by APP_ENV_FILE) is read first when present;
// variables already set in the environment win over the file.
func Load() (*Config, error) {
	if err := loadEnvFile(); err != nil {
		return nil, fmt.Errorf("loading env file: %w", err)
	}

	cfg := &Config{
		ServerPort:      DefaultServerPort,
		ProbePort:       DefaultProbePort,
		LogLevel:        DefaultLogLevel,
		ShutdownTimeout: DefaultShutdownTimeout,
		MetricsEnabled:  DefaultMetricsEnabled,
		CORSOrigins:     splitList(DefaultCORSOrigins),
		StoreBackend:    DefaultStoreBackend,
		StoreFilePath:   DefaultStoreFilePath,
		SQLitePath:      DefaultSQLitePath,
		CacheTTL:        DefaultCacheTTL,
	}

	if err := cfg.loadFromEnv(); err != nil {
		return nil, fmt.Errorf("loading config from environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func loadEnvFile() error {
	path := os.Getenv(EnvEnvFile)
	explicit := path != ""
	if !explicit {
		path = DefaultEnvFile
	}

	err := godotenv.Load(path)
	if err != nil && !explicit && errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

func (c *Config) loadFromEnv() error {
	if err := c.loadServerEnv(); err != nil {
		return err
	}
	return c.loadStoreEnv()
}

func (c *Config) loadServerEnv() error {
	if err := intFromEnv(EnvServerPort, &c.ServerPort); err != nil {
		return err
	}
	if err := intFromEnv(EnvProbePort, &c.ProbePort); err != nil {
		return err
	}

	if val := os.Getenv(EnvLogLevel); val != "" {
		c.LogLevel = strings.ToLower(val)
	}

	if err := durationFromEnv(EnvShutdownTimeout, &c.ShutdownTimeout); err != nil {
		return err
	}

	if val := os.Getenv(EnvMetricsEnabled); val != "" {
		enabled, err := strconv.ParseBool(val)
		if err != nil {
			return fmt.Errorf("parsing %s: %w", EnvMetricsEnabled, err)
		}
		c.MetricsEnabled = enabled
	}

	if val := os.Getenv(EnvCORSOrigins); val != "" {
		c.CORSOrigins = splitList(val)
	}

	return nil
}

func (c *Config) loadStoreEnv() error {
	if val := os.Getenv(EnvStoreBackend); val != "" {
		c.StoreBackend = strings.ToLower(val)
	}
	if val := os.Getenv(EnvStoreFilePath); val != "" {
		c.StoreFilePath = val
	}
	if val := os.Getenv(EnvSQLitePath); val != "" {
		c.SQLitePath = val
	}
	if val := os.Getenv(EnvPostgresDSN); val != "" {
		c.PostgresDSN = val
	}
	if val := os.Getenv(EnvRedisURL); val != "" {
		c.RedisURL = val
	}
	return durationFromEnv(EnvCacheTTL, &c.CacheTTL)
}

func intFromEnv(name string, dst *int) error {
	val := os.Getenv(name)
	if val == "" {
		return nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return fmt.Errorf("parsing %s: %w", name, err)
	}
	*dst = n
	return nil
}

func durationFromEnv(name string, dst *time.Duration) error {
	val := os.Getenv(name)
	if val == "" {
		return nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return fmt.Errorf("parsing %s: %w", name, err)
	}
	*dst = d
	return nil
}

func splitList(val string) []string {
	parts := strings.Split(val, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate checks if the configuration values are valid.
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}
	return c.validateStore()
}

func (c *Config) validateServer() error {
	if c.ServerPort < 1 || c.ServerPort > 65535 {
		return ErrInvalidServerPort
	}

	if c.ProbePort < 0 || c.ProbePort > 65535 {
		return ErrInvalidProbePort
	}

	if c.ProbePort != 0 && c.ProbePort == c.ServerPort {
		return ErrProbePortConflict
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return ErrInvalidLogLevel
	}

	if c.ShutdownTimeout <= 0 {
		return ErrInvalidShutdownTimeout
	}

	return nil
}

func (c *Config) validateStore() error {
	switch c.StoreBackend {
	case BackendMemory:
	case BackendFile:
		if c.StoreFilePath == "" {
			return ErrStoreFilePathRequired
		}
	case BackendSQLite:
		if c.SQLitePath == "" {
			return ErrSQLitePathRequired
		}
	case BackendPostgres:
		if c.PostgresDSN == "" {
			return ErrPostgresDSNRequired
		}
	default:
		return ErrInvalidStoreBackend
	}

	if c.RedisURL != "" && c.CacheTTL <= 0 {
		return ErrInvalidCacheTTL
	}

	return nil
}

// CacheEnabled reports whether item reads go through Redis.
func (c *Config) CacheEnabled() bool {
	return c.RedisURL != ""
}

// Address returns the server address in host:port format.
func (c *Config) Address() string {
	return fmt.Sprintf(":%d", c.ServerPort)
}

// ProbeAddress returns the probe server address in host:port format.
func (c *Config) ProbeAddress() string {
	return fmt.Sprintf(":%d", c.ProbePort)
}
