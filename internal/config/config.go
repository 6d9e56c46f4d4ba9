package config

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/bbernstein/flowebb/tidesensors/internal/upstream"
)

type Config struct {
	Environment  string
	LogLevel     zerolog.Level
	HTTPTimeout  time.Duration
	MaxRetries   int
	NOAABaseURL  string
	NDBCBaseURL  string
	MetadataURL  string
	ProbeTimeout time.Duration
	CycleTimeout time.Duration
	EntryTable   string
}

type Option func(*Config)

const (
	defaultProbeTimeout = 10 * time.Second
	defaultCycleTimeout = 30 * time.Second
	DefaultEntryTable   = "tidesensors-config-entries"
	DefaultMetadataURL  = "https://api.tidesandcurrents.noaa.gov"
)

// WithEnvironment allows setting the environment
func WithEnvironment(env string) Option {
	return func(c *Config) {
		c.Environment = env
	}
}

// WithLogLevel allows setting the log level
func WithLogLevel(level string) Option {
	return func(c *Config) {
		parsedLevel, err := zerolog.ParseLevel(strings.ToLower(level))
		if err != nil || level == "" {
			parsedLevel = zerolog.InfoLevel
		}
		c.LogLevel = parsedLevel
	}
}

// WithHTTPTimeout allows setting the HTTP timeout
func WithHTTPTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		c.HTTPTimeout = timeout
	}
}

func WithMaxRetries(n int) Option {
	return func(c *Config) {
		c.MaxRetries = n
	}
}

// WithBaseURLs points the upstream clients somewhere other than NOAA, mostly
// for tests and local mirrors. Empty values keep the defaults.
func WithBaseURLs(noaa, ndbc, metadata string) Option {
	return func(c *Config) {
		if noaa != "" {
			c.NOAABaseURL = noaa
		}
		if ndbc != "" {
			c.NDBCBaseURL = ndbc
		}
		if metadata != "" {
			c.MetadataURL = metadata
		}
	}
}

func WithProbeTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		if timeout > 0 {
			c.ProbeTimeout = timeout
		}
	}
}

func WithCycleTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		if timeout > 0 {
			c.CycleTimeout = timeout
		}
	}
}

func WithEntryTable(table string) Option {
	return func(c *Config) {
		if table != "" {
			c.EntryTable = table
		}
	}
}

// New creates a new configuration with default values
func New(opts ...Option) *Config {
	cfg := &Config{
		Environment:  "production",
		LogLevel:     zerolog.InfoLevel,
		HTTPTimeout:  10 * time.Second,
		MaxRetries:   3,
		NOAABaseURL:  upstream.DefaultNOAABaseURL,
		NDBCBaseURL:  upstream.DefaultNDBCBaseURL,
		MetadataURL:  DefaultMetadataURL,
		ProbeTimeout: defaultProbeTimeout,
		CycleTimeout: defaultCycleTimeout,
		EntryTable:   DefaultEntryTable,
	}

	for _, opt := range opts {
		opt(cfg)
	}

	return cfg
}

// InitializeLogging sets up logging based on the configuration
func (c *Config) InitializeLogging() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	zerolog.SetGlobalLevel(c.LogLevel)

	if c.IsLocal() {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout})
	}
}

func (c *Config) IsLocal() bool {
	return c.Environment == "local" || c.Environment == "development"
}

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv() *Config {
	return New(
		WithEnvironment(getEnvOrDefault("ENV", "production")),
		WithLogLevel(getEnvOrDefault("LOG_LEVEL", "info")),
		WithHTTPTimeout(getDurationEnvOrDefault("HTTP_TIMEOUT", 10*time.Second)),
		WithMaxRetries(getEnvInt("HTTP_MAX_RETRIES", 3)),
		WithBaseURLs(os.Getenv("NOAA_BASE_URL"), os.Getenv("NDBC_BASE_URL"), os.Getenv("NOAA_METADATA_URL")),
		WithProbeTimeout(getDurationEnvOrDefault("PROBE_TIMEOUT", defaultProbeTimeout)),
		WithCycleTimeout(getDurationEnvOrDefault("CYCLE_TIMEOUT", defaultCycleTimeout)),
		WithEntryTable(os.Getenv("ENTRY_TABLE")),
	)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDurationEnvOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
		log.Warn().Str("key", key).Str("value", value).Msg("Invalid duration in environment variable, using default")
	}
	return defaultValue
}
