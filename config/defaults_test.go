package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- DefaultConfig aggregate ---

func TestDefaultConfig_ContainsAllSubConfigs(t *testing.T) {
	cfg := DefaultConfig()
	require.NotNil(t, cfg)

	assert.NotEqual(t, ServerConfig{}, cfg.Server)
	assert.NotEqual(t, StoreConfig{}, cfg.Store)
	assert.NotEqual(t, RedisConfig{}, cfg.Redis)
	assert.NotEqual(t, DatabaseConfig{}, cfg.Database)
	assert.NotEqual(t, EventsConfig{}, cfg.Events)
	assert.NotEqual(t, TelemetryConfig{}, cfg.Telemetry)
	assert.NotEmpty(t, cfg.Log.OutputPaths)
	assert.NoError(t, cfg.Validate())
}

func TestDefaultServerConfig(t *testing.T) {
	cfg := DefaultServerConfig()
	assert.Equal(t, 9091, cfg.HTTPPort)
	assert.Equal(t, 10*time.Second, cfg.ReadTimeout)
	assert.Equal(t, 15*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, 50.0, cfg.RateLimitRPS)
	assert.Equal(t, 100, cfg.RateLimitBurst)
}

func TestDefaultCoordinationConfig(t *testing.T) {
	cfg := DefaultCoordinationConfig()
	w := cfg.Weights
	assert.InDelta(t, 1.0, w.Role+w.Expertise+w.Skills+w.Availability+w.Performance, 1e-9)
	assert.Equal(t, 0.5, cfg.AcceptanceThreshold)
	assert.Equal(t, 80.0, cfg.OverloadedPercent)
	assert.Equal(t, 40.0, cfg.UnderutilizedPercent)
	assert.Equal(t, 5*time.Minute, cfg.RebalanceInterval)
	assert.Empty(t, cfg.Projects)
	assert.Equal(t, "scheduler", cfg.InitiatedBy)
}

func TestDefaultStoreConfig(t *testing.T) {
	cfg := DefaultStoreConfig()
	assert.Equal(t, "memory", cfg.Type)
	assert.Equal(t, "agentcoord:", cfg.KeyPrefix)
	assert.Equal(t, 5, cfg.ReserveRetries)
}

func TestDefaultRedisConfig(t *testing.T) {
	cfg := DefaultRedisConfig()
	assert.Equal(t, "localhost:6379", cfg.Addr)
	assert.Equal(t, 0, cfg.DB)
	assert.Equal(t, 10, cfg.PoolSize)
	assert.Equal(t, 30*time.Second, cfg.HealthCheckInterval)
}

func TestDefaultDatabaseConfig(t *testing.T) {
	cfg := DefaultDatabaseConfig()
	assert.Equal(t, "postgres", cfg.Driver)
	assert.Equal(t, 5432, cfg.Port)
	assert.Equal(t, 25, cfg.MaxOpenConns)
	assert.Equal(t, 5*time.Minute, cfg.ConnMaxLifetime)
}

func TestDefaultEventsConfig(t *testing.T) {
	cfg := DefaultEventsConfig()
	assert.Equal(t, "memory", cfg.Bus)
	assert.Equal(t, "agentcoord:events", cfg.Channel)
}

func TestDefaultLogConfig(t *testing.T) {
	cfg := DefaultLogConfig()
	assert.Equal(t, "info", cfg.Level)
	assert.Equal(t, "json", cfg.Format)
	assert.Equal(t, []string{"stdout"}, cfg.OutputPaths)
}

func TestDefaultTelemetryConfig(t *testing.T) {
	cfg := DefaultTelemetryConfig()
	assert.False(t, cfg.Enabled)
	assert.Equal(t, "agentcoord", cfg.ServiceName)
	assert.Equal(t, 0.1, cfg.SampleRate)
}
