// Package config loads and validates application configuration from YAML files
// with environment-variable overrides. It provides typed structs for every
// subsystem (Server, Postgres, Kafka, Redis, Rail, Query, etc.).
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	apperrors "github.com/Adithya-Monish-Kumar-K/Lexical-Statistics-Platform/pkg/errors"
)

// Config is the top-level application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Postgres PostgresConfig `yaml:"postgres"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Redis    RedisConfig    `yaml:"redis"`
	Index    IndexConfig    `yaml:"index"`
	Rail     RailConfig     `yaml:"rail"`
	Query    QueryConfig    `yaml:"query"`
	Logging  LoggingConfig  `yaml:"logging"`
	Tracing  TracingConfig  `yaml:"tracing"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	// RateLimit is the per-client token budget per minute; 0 disables it.
	RateLimit int `yaml:"rateLimit"`
}

// HandlerTimeout is the deadline for handling one request. It ends a tenth
// of WriteTimeout (at least 100ms, at most 5s) before the server would drop
// the connection, leaving time to write the timeout response.
func (s ServerConfig) HandlerTimeout() time.Duration {
	margin := min(max(s.WriteTimeout/10, 100*time.Millisecond), 5*time.Second)
	return s.WriteTimeout - margin
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// KafkaConfig holds Kafka broker and topic settings.
type KafkaConfig struct {
	Enabled       bool        `yaml:"enabled"`
	Brokers       []string    `yaml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	Topics        KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	IndexGeneration string `yaml:"indexGeneration"`
}

// RedisConfig holds Redis connection and caching parameters.
type RedisConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"poolSize"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
	// Timeout bounds dialing and each command; a slow cache is skipped.
	Timeout time.Duration `yaml:"timeout"`
}

// IndexConfig points at the text-index snapshot the service reads from.
type IndexConfig struct {
	SnapshotPath string   `yaml:"snapshotPath"`
	Fields       []string `yaml:"fields"`
}

// RailConfig controls where rail files live and how builds are serialized.
type RailConfig struct {
	DataDir          string        `yaml:"dataDir"`
	BuildLockTimeout time.Duration `yaml:"buildLockTimeout"`
	BuildParallelism int           `yaml:"buildParallelism"`
}

// QueryConfig controls query limits, default windows and timeouts.
type QueryConfig struct {
	DefaultLimit int           `yaml:"defaultLimit"`
	MaxResults   int           `yaml:"maxResults"`
	DefaultLeft  int           `yaml:"defaultLeft"`
	DefaultRight int           `yaml:"defaultRight"`
	MaxGraphSize int           `yaml:"maxGraphSize"`
	Timeout      time.Duration `yaml:"timeout"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// TracingConfig controls whether query span trees are logged, and for which
// fraction of requests.
type TracingConfig struct {
	Enabled    bool    `yaml:"enabled"`
	SampleRate float64 `yaml:"sampleRate"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load starts from the defaults, decodes the YAML file at path over them
// (unknown keys are an error), then applies LS_* environment overrides and
// validates the result.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		defer f.Close()
		dec := yaml.NewDecoder(f)
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: parsing %s: %v", apperrors.ErrConfiguration, path, err)
		}
	}
	if err := applyEnvOverrides(cfg, os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings no component can run with.
func (c *Config) Validate() error {
	switch {
	case c.Rail.DataDir == "":
		return fmt.Errorf("%w: rail.dataDir is empty", apperrors.ErrConfiguration)
	case c.Rail.BuildLockTimeout <= 0:
		return fmt.Errorf("%w: rail.buildLockTimeout must be positive", apperrors.ErrConfiguration)
	case c.Rail.BuildParallelism < 1:
		return fmt.Errorf("%w: rail.buildParallelism must be at least 1", apperrors.ErrConfiguration)
	case c.Query.DefaultLeft < 0 || c.Query.DefaultRight < 0:
		return fmt.Errorf("%w: query window sides must not be negative", apperrors.ErrConfiguration)
	case c.Query.DefaultLeft+c.Query.DefaultRight < 1:
		return fmt.Errorf("%w: query window must cover at least one position", apperrors.ErrConfiguration)
	case c.Query.DefaultLimit < 1 || c.Query.MaxResults < c.Query.DefaultLimit:
		return fmt.Errorf("%w: query.defaultLimit must be in [1, maxResults]", apperrors.ErrConfiguration)
	case c.Query.MaxGraphSize < 2:
		return fmt.Errorf("%w: query.maxGraphSize must be at least 2", apperrors.ErrConfiguration)
	case c.Server.HandlerTimeout() <= 0:
		return fmt.Errorf("%w: server.writeTimeout must be above 100ms", apperrors.ErrConfiguration)
	case c.Query.Timeout > 0 && c.Query.Timeout >= c.Server.HandlerTimeout():
		return fmt.Errorf("%w: query.timeout must end before server.writeTimeout (%v available)",
			apperrors.ErrConfiguration, c.Server.HandlerTimeout())
	case c.Server.RateLimit < 0:
		return fmt.Errorf("%w: server.rateLimit must not be negative", apperrors.ErrConfiguration)
	case c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1:
		return fmt.Errorf("%w: tracing.sampleRate must be in [0, 1]", apperrors.ErrConfiguration)
	}
	return nil
}

// defaultConfig returns a Config with defaults for local development.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    60 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			RateLimit:       600,
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "lexistat",
			User:            "lexistat",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "lexistat-group",
			Topics: KafkaTopics{
				IndexGeneration: "index.generation",
			},
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			PoolSize: 10,
			CacheTTL: 5 * time.Minute,
			Timeout:  250 * time.Millisecond,
		},
		Index: IndexConfig{
			SnapshotPath: "./data/index.snap",
			Fields:       []string{"text"},
		},
		Rail: RailConfig{
			DataDir:          "./data/rails",
			BuildLockTimeout: 2 * time.Minute,
			BuildParallelism: 4,
		},
		Query: QueryConfig{
			DefaultLimit: 50,
			MaxResults:   1000,
			DefaultLeft:  5,
			DefaultRight: 5,
			MaxGraphSize: 500,
			Timeout:      30 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Tracing: TracingConfig{
			Enabled:    true,
			SampleRate: 1,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
		},
	}
}

// envOverrides maps each LS_* variable onto the setting it replaces.
var envOverrides = []struct {
	name  string
	apply func(c *Config, v string) error
}{
	{"LS_SERVER_PORT", intVar(func(c *Config) *int { return &c.Server.Port })},
	{"LS_SERVER_RATE_LIMIT", intVar(func(c *Config) *int { return &c.Server.RateLimit })},
	{"LS_POSTGRES_ENABLED", boolVar(func(c *Config) *bool { return &c.Postgres.Enabled })},
	{"LS_POSTGRES_HOST", stringVar(func(c *Config) *string { return &c.Postgres.Host })},
	{"LS_POSTGRES_PORT", intVar(func(c *Config) *int { return &c.Postgres.Port })},
	{"LS_POSTGRES_DATABASE", stringVar(func(c *Config) *string { return &c.Postgres.Database })},
	{"LS_POSTGRES_USER", stringVar(func(c *Config) *string { return &c.Postgres.User })},
	{"LS_POSTGRES_PASSWORD", stringVar(func(c *Config) *string { return &c.Postgres.Password })},
	{"LS_POSTGRES_SSLMODE", stringVar(func(c *Config) *string { return &c.Postgres.SSLMode })},
	{"LS_KAFKA_ENABLED", boolVar(func(c *Config) *bool { return &c.Kafka.Enabled })},
	{"LS_KAFKA_BROKERS", func(c *Config, v string) error {
		c.Kafka.Brokers = strings.Split(v, ",")
		return nil
	}},
	{"LS_KAFKA_CONSUMER_GROUP", stringVar(func(c *Config) *string { return &c.Kafka.ConsumerGroup })},
	{"LS_REDIS_ENABLED", boolVar(func(c *Config) *bool { return &c.Redis.Enabled })},
	{"LS_REDIS_ADDR", stringVar(func(c *Config) *string { return &c.Redis.Addr })},
	{"LS_REDIS_PASSWORD", stringVar(func(c *Config) *string { return &c.Redis.Password })},
	{"LS_REDIS_CACHE_TTL", durationVar(func(c *Config) *time.Duration { return &c.Redis.CacheTTL })},
	{"LS_INDEX_SNAPSHOT", stringVar(func(c *Config) *string { return &c.Index.SnapshotPath })},
	{"LS_RAIL_DATA_DIR", stringVar(func(c *Config) *string { return &c.Rail.DataDir })},
	{"LS_RAIL_BUILD_LOCK_TIMEOUT", durationVar(func(c *Config) *time.Duration { return &c.Rail.BuildLockTimeout })},
	{"LS_QUERY_TIMEOUT", durationVar(func(c *Config) *time.Duration { return &c.Query.Timeout })},
	{"LS_LOGGING_LEVEL", stringVar(func(c *Config) *string { return &c.Logging.Level })},
	{"LS_LOGGING_FORMAT", stringVar(func(c *Config) *string { return &c.Logging.Format })},
	{"LS_TRACING_SAMPLE_RATE", func(c *Config, v string) error {
		f, err := strconv.ParseFloat(v, 64)
		c.Tracing.SampleRate = f
		return err
	}},
	{"LS_METRICS_PORT", intVar(func(c *Config) *int { return &c.Metrics.Port })},
}

// applyEnvOverrides applies every variable lookup reports as set. A value
// that does not parse is a configuration error naming the variable.
func applyEnvOverrides(cfg *Config, lookup func(string) (string, bool)) error {
	var errs []error
	for _, o := range envOverrides {
		v, ok := lookup(o.name)
		if !ok || v == "" {
			continue
		}
		if err := o.apply(cfg, v); err != nil {
			errs = append(errs, fmt.Errorf("%s=%q: %w", o.name, v, err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("%w: %w", apperrors.ErrConfiguration, err)
	}
	return nil
}

func stringVar(field func(*Config) *string) func(*Config, string) error {
	return func(c *Config, v string) error {
		*field(c) = v
		return nil
	}
}

func intVar(field func(*Config) *int) func(*Config, string) error {
	return func(c *Config, v string) (err error) {
		*field(c), err = strconv.Atoi(v)
		return err
	}
}

func boolVar(field func(*Config) *bool) func(*Config, string) error {
	return func(c *Config, v string) (err error) {
		*field(c), err = strconv.ParseBool(v)
		return err
	}
}

func durationVar(field func(*Config) *time.Duration) func(*Config, string) error {
	return func(c *Config, v string) (err error) {
		*field(c), err = time.ParseDuration(v)
		return err
	}
}
