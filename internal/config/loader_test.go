package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validConfigYAML = `
server:
  host: "localhost"
  port: 8080
  mode: "test"
backend:
  base_url: "http://analytics.internal:8000"
  poll_interval: 2s
compare:
  cache_ttl: 5m
redis:
  enabled: true
  addr: "localhost:6379"
kafka:
  brokers: ["localhost:9092"]
  status_topic: "technology.status"
minio:
  endpoint: "localhost:9000"
  bucket: "payloads"
neo4j:
  uri: "bolt://localhost:7687"
log:
  level: "debug"
  format: "console"
`

func createTempConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func setEnvVars(t *testing.T, vars map[string]string) {
	t.Helper()
	for k, v := range vars {
		t.Setenv(k, v)
	}
}

func TestLoad_FromFile_ValidConfig(t *testing.T) {
	path := createTempConfigFile(t, validConfigYAML)
	cfg, err := Load(WithConfigPath(path))
	require.NoError(t, err)

	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "http://analytics.internal:8000", cfg.Backend.BaseURL)
	assert.Equal(t, 2*time.Second, cfg.Backend.PollInterval)
	assert.Equal(t, 5*time.Minute, cfg.Compare.CacheTTL)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, "console", cfg.Log.Format)
}

func TestLoad_FromFile_FileNotFound(t *testing.T) {
	_, err := Load(WithConfigPath(filepath.Join(t.TempDir(), "missing.yaml")))
	assert.ErrorIs(t, err, ErrConfigFileNotFound)
}

func TestLoad_FromFile_InvalidYAML(t *testing.T) {
	path := createTempConfigFile(t, "invalid_yaml: [")
	_, err := Load(WithConfigPath(path))
	assert.ErrorIs(t, err, ErrConfigParseError)
}

func TestLoad_FromFile_ValidationFailure(t *testing.T) {
	path := createTempConfigFile(t, "server:\n  port: 70000\n")
	_, err := Load(WithConfigPath(path))
	assert.ErrorIs(t, err, ErrConfigValidation)
}

func TestLoad_EnvOverride(t *testing.T) {
	path := createTempConfigFile(t, validConfigYAML)
	setEnvVars(t, map[string]string{
		"TECHINTEL_SERVER_PORT": "9999",
	})

	cfg, err := Load(WithConfigPath(path))
	require.NoError(t, err)
	assert.Equal(t, 9999, cfg.Server.Port)
}

func TestLoad_EnvOverride_KeyAbsentFromFile(t *testing.T) {
	path := createTempConfigFile(t, validConfigYAML)
	setEnvVars(t, map[string]string{
		"TECHINTEL_NEO4J_PASSWORD": "s3cret",
	})

	cfg, err := Load(WithConfigPath(path))
	require.NoError(t, err)
	assert.Equal(t, "s3cret", cfg.Neo4j.Password)
}

func TestLoad_EnvOnly(t *testing.T) {
	setEnvVars(t, map[string]string{
		"TECHINTEL_BACKEND_BASE_URL": "https://backend.example.com",
		"TECHINTEL_REDIS_ENABLED":    "true",
	})

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "https://backend.example.com", cfg.Backend.BaseURL)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, DefaultServerPort, cfg.Server.Port)
}

func TestLoad_BooleanDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.Metrics.Enabled)
	assert.True(t, cfg.Backend.CreateIfMissing)
	assert.False(t, cfg.Kafka.Enabled)
}

func TestLoad_DefaultValues(t *testing.T) {
	path := createTempConfigFile(t, "server:\n  port: 8181\n")
	cfg, err := Load(WithConfigPath(path))
	require.NoError(t, err)

	assert.Equal(t, 8181, cfg.Server.Port)
	assert.Equal(t, DefaultServerMode, cfg.Server.Mode)
	assert.Equal(t, DefaultBackendBaseURL, cfg.Backend.BaseURL)
	assert.Equal(t, DefaultRedisKeyPrefix, cfg.Redis.KeyPrefix)
	assert.Equal(t, DefaultMetricsPath, cfg.Metrics.Path)
}

func TestMustLoad_Panics(t *testing.T) {
	assert.Panics(t, func() {
		MustLoad(WithConfigPath(filepath.Join(t.TempDir(), "missing.yaml")))
	})
}

func TestWatch_MissingFile(t *testing.T) {
	err := Watch(filepath.Join(t.TempDir(), "missing.yaml"), func(*Config) {}, nil)
	assert.ErrorIs(t, err, ErrConfigFileNotFound)
}
