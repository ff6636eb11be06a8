package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Adithya-Monish-Kumar-K/Lexical-Statistics-Platform/pkg/errors"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, []string{"text"}, cfg.Index.Fields)
	assert.Equal(t, 5, cfg.Query.DefaultLeft)
	assert.False(t, cfg.Postgres.Enabled)
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9000
  rateLimit: 0
rail:
  dataDir: /var/lib/rails
  buildParallelism: 2
query:
  defaultLeft: 3
  defaultRight: 0
  timeout: 5s
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Zero(t, cfg.Server.RateLimit)
	assert.Equal(t, "/var/lib/rails", cfg.Rail.DataDir)
	assert.Equal(t, 2, cfg.Rail.BuildParallelism)
	assert.Equal(t, 2*time.Minute, cfg.Rail.BuildLockTimeout, "unset keys keep their default")
	assert.Equal(t, 5*time.Second, cfg.Query.Timeout)
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 9000\n")
	t.Setenv("LS_SERVER_PORT", "9100")
	t.Setenv("LS_SERVER_RATE_LIMIT", "30")
	t.Setenv("LS_REDIS_ENABLED", "true")
	t.Setenv("LS_KAFKA_BROKERS", "a:9092,b:9092")
	t.Setenv("LS_QUERY_TIMEOUT", "2s")
	t.Setenv("LS_TRACING_SAMPLE_RATE", "0.25")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, 30, cfg.Server.RateLimit)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.Kafka.Brokers)
	assert.False(t, cfg.Postgres.Enabled)
	assert.Equal(t, 2*time.Second, cfg.Query.Timeout)
	assert.Equal(t, 0.25, cfg.Tracing.SampleRate)
}

func TestMalformedEnvIsAnError(t *testing.T) {
	t.Setenv("LS_POSTGRES_ENABLED", "not-a-bool")
	t.Setenv("LS_SERVER_PORT", "eighty")

	_, err := Load("")
	require.ErrorIs(t, err, apperrors.ErrConfiguration)
	assert.Contains(t, err.Error(), "LS_POSTGRES_ENABLED")
	assert.Contains(t, err.Error(), "LS_SERVER_PORT")
}

func TestApplyEnvOverridesSkipsUnsetAndEmpty(t *testing.T) {
	cfg := defaultConfig()
	env := map[string]string{"LS_REDIS_ADDR": "", "LS_RAIL_DATA_DIR": "/srv/rails"}
	err := applyEnvOverrides(cfg, func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	})
	require.NoError(t, err)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, "/srv/rails", cfg.Rail.DataDir)
}

func TestLoadRejectsInvalidSettings(t *testing.T) {
	tests := map[string]string{
		"empty rail dir":       "rail:\n  dataDir: \"\"\n",
		"no parallelism":       "rail:\n  buildParallelism: 0\n",
		"negative window":      "query:\n  defaultLeft: -1\n",
		"empty window":         "query:\n  defaultLeft: 0\n  defaultRight: 0\n",
		"limit above max":      "query:\n  defaultLimit: 10\n  maxResults: 5\n",
		"tiny graph":           "query:\n  maxGraphSize: 1\n",
		"sample rate":          "tracing:\n  sampleRate: 1.5\n",
		"negative rate limit":  "server:\n  rateLimit: -1\n",
		"no write timeout":     "server:\n  writeTimeout: 50ms\n",
		"query outlasts write": "server:\n  writeTimeout: 10s\nquery:\n  timeout: 10s\n",
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			assert.ErrorIs(t, err, apperrors.ErrConfiguration)
		})
	}
}

func TestHandlerTimeoutEndsBeforeWriteTimeout(t *testing.T) {
	tests := []struct {
		write, want time.Duration
	}{
		{60 * time.Second, 55 * time.Second},
		{10 * time.Second, 9 * time.Second},
		{500 * time.Millisecond, 400 * time.Millisecond},
		{100 * time.Millisecond, 0},
	}
	for _, tt := range tests {
		got := ServerConfig{WriteTimeout: tt.write}.HandlerTimeout()
		assert.Equal(t, tt.want, got, "write timeout %v", tt.write)
		assert.Less(t, got, tt.write)
	}

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Less(t, cfg.Query.Timeout, cfg.Server.HandlerTimeout())
}

func TestLoadFileErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "server: [unclosed"))
	assert.ErrorIs(t, err, apperrors.ErrConfiguration)

	_, err = Load(writeConfig(t, "server:\n  prot: 9000\n"))
	assert.ErrorIs(t, err, apperrors.ErrConfiguration, "unknown keys are rejected")

	cfg, err := Load(writeConfig(t, ""))
	require.NoError(t, err, "an empty file keeps the defaults")
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestDevelopmentConfigLoads(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "configs", "development.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.Equal(t, 250*time.Millisecond, cfg.Redis.Timeout)
}

func TestPostgresDSN(t *testing.T) {
	cfg := defaultConfig().Postgres
	dsn := cfg.DSN()
	assert.Contains(t, dsn, "host=localhost")
	assert.Contains(t, dsn, "dbname=lexistat")
	assert.Contains(t, dsn, "sslmode=disable")
}
