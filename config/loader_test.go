// 配置加载器测试。
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Loader 测试 ---

func TestLoader_LoadDefaults(t *testing.T) {
	// 不指定配置文件，应该返回默认值
	cfg, err := NewLoader().Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, 9091, cfg.Server.HTTPPort)
	assert.Equal(t, "memory", cfg.Store.Type)
	assert.Equal(t, 0.5, cfg.Coordination.AcceptanceThreshold)
}

func TestLoader_LoadFromYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "agentcoord.yaml")

	yamlContent := `
server:
  http_port: 8888
  read_timeout: 60s

coordination:
  acceptance_threshold: 0.6
  weights:
    role: 0.4
    expertise: 0.3
    skills: 0.3
    availability: 0
    performance: 0
  overloaded_percent: 75
  underutilized_percent: 30
  rebalance_interval: 1m
  projects: ["apollo", "gemini"]

store:
  type: redis
  key_prefix: "coord-test:"

redis:
  addr: "redis.example.com:6379"
  password: "secret"
  db: 1

events:
  bus: redis
  channel: "coord-test:events"

log:
  level: "debug"
  format: "console"
`
	require.NoError(t, os.WriteFile(configPath, []byte(yamlContent), 0644))

	cfg, err := NewLoader().
		WithConfigPath(configPath).
		WithValidator((*Config).Validate).
		Load()
	require.NoError(t, err)

	assert.Equal(t, 8888, cfg.Server.HTTPPort)
	assert.Equal(t, 60*time.Second, cfg.Server.ReadTimeout)
	// 未出现在文件中的字段保留默认值
	assert.Equal(t, 10*time.Second, cfg.Server.WriteTimeout)

	assert.Equal(t, 0.6, cfg.Coordination.AcceptanceThreshold)
	assert.Equal(t, 0.4, cfg.Coordination.Weights.Role)
	assert.Zero(t, cfg.Coordination.Weights.Performance)
	assert.Equal(t, 75.0, cfg.Coordination.OverloadedPercent)
	assert.Equal(t, time.Minute, cfg.Coordination.RebalanceInterval)
	assert.Equal(t, []string{"apollo", "gemini"}, cfg.Coordination.Projects)

	assert.Equal(t, "redis", cfg.Store.Type)
	assert.Equal(t, "coord-test:", cfg.Store.KeyPrefix)
	assert.Equal(t, "redis.example.com:6379", cfg.Redis.Addr)
	assert.Equal(t, "secret", cfg.Redis.Password)
	assert.Equal(t, 1, cfg.Redis.DB)
	assert.Equal(t, "redis", cfg.Events.Bus)
	assert.Equal(t, "coord-test:events", cfg.Events.Channel)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
}

func TestLoader_EnvOverrides(t *testing.T) {
	t.Setenv("AGENTCOORD_SERVER_HTTP_PORT", "7777")
	t.Setenv("AGENTCOORD_SERVER_SHUTDOWN_TIMEOUT", "3s")
	t.Setenv("AGENTCOORD_COORDINATION_ACCEPTANCE_THRESHOLD", "0.7")
	t.Setenv("AGENTCOORD_COORDINATION_WEIGHTS_SKILLS", "0.5")
	t.Setenv("AGENTCOORD_COORDINATION_PROJECTS", "apollo, gemini,,mercury")
	t.Setenv("AGENTCOORD_STORE_TYPE", "sql")
	t.Setenv("AGENTCOORD_STORE_RESERVE_RETRIES", "9")
	t.Setenv("AGENTCOORD_DATABASE_DRIVER", "sqlite")
	t.Setenv("AGENTCOORD_TELEMETRY_ENABLED", "true")
	t.Setenv("AGENTCOORD_LOG_LEVEL", "warn")

	cfg, err := NewLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, 7777, cfg.Server.HTTPPort)
	assert.Equal(t, 3*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, 0.7, cfg.Coordination.AcceptanceThreshold)
	assert.Equal(t, 0.5, cfg.Coordination.Weights.Skills)
	assert.Equal(t, []string{"apollo", "gemini", "mercury"}, cfg.Coordination.Projects)
	assert.Equal(t, "sql", cfg.Store.Type)
	assert.Equal(t, 9, cfg.Store.ReserveRetries)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.True(t, cfg.Telemetry.Enabled)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoader_EnvOverridesYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "agentcoord.yaml")

	yamlContent := `
server:
  http_port: 8888
store:
  type: file
  base_dir: /var/lib/agentcoord
`
	require.NoError(t, os.WriteFile(configPath, []byte(yamlContent), 0644))

	// 环境变量应该覆盖 YAML
	t.Setenv("AGENTCOORD_SERVER_HTTP_PORT", "9999")
	t.Setenv("AGENTCOORD_STORE_TYPE", "memory")

	cfg, err := NewLoader().
		WithConfigPath(configPath).
		Load()
	require.NoError(t, err)

	assert.Equal(t, 9999, cfg.Server.HTTPPort)
	assert.Equal(t, "memory", cfg.Store.Type)
	// 没有被环境变量覆盖的 YAML 值保留
	assert.Equal(t, "/var/lib/agentcoord", cfg.Store.BaseDir)
}

func TestLoader_CustomEnvPrefix(t *testing.T) {
	t.Setenv("MYAPP_SERVER_HTTP_PORT", "6666")
	t.Setenv("MYAPP_EVENTS_CHANNEL", "custom:events")

	cfg, err := NewLoader().
		WithEnvPrefix("MYAPP").
		Load()
	require.NoError(t, err)

	assert.Equal(t, 6666, cfg.Server.HTTPPort)
	assert.Equal(t, "custom:events", cfg.Events.Channel)
}

func TestLoader_InvalidEnvValue(t *testing.T) {
	t.Setenv("AGENTCOORD_COORDINATION_REBALANCE_INTERVAL", "often")

	_, err := NewLoader().Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AGENTCOORD_COORDINATION_REBALANCE_INTERVAL")
}

func TestLoader_WithValidator(t *testing.T) {
	validator := func(cfg *Config) error {
		if cfg.Server.HTTPPort < 1024 {
			return assert.AnError
		}
		return nil
	}

	t.Setenv("AGENTCOORD_SERVER_HTTP_PORT", "80")

	_, err := NewLoader().
		WithValidator(validator).
		Load()
	assert.ErrorIs(t, err, assert.AnError)
}

func TestLoader_NonExistentFile(t *testing.T) {
	// 文件不存在时使用默认值（不报错）
	cfg, err := NewLoader().
		WithConfigPath("/non/existent/path/agentcoord.yaml").
		Load()
	require.NoError(t, err)
	assert.Equal(t, 9091, cfg.Server.HTTPPort)
}

func TestLoader_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "invalid.yaml")

	invalidYAML := `
server:
  http_port: [invalid
  this is not valid yaml
`
	require.NoError(t, os.WriteFile(configPath, []byte(invalidYAML), 0644))

	_, err := NewLoader().
		WithConfigPath(configPath).
		Load()
	assert.Error(t, err)
}

// --- Config 方法测试 ---

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "defaults are valid", mutate: func(*Config) {}},
		{name: "invalid port", mutate: func(c *Config) { c.Server.HTTPPort = 70000 }, wantErr: "invalid HTTP port"},
		{name: "negative rate limit", mutate: func(c *Config) { c.Server.RateLimitRPS = -1 }, wantErr: "rate_limit_rps"},
		{name: "tls cert without key", mutate: func(c *Config) { c.Server.TLSCertFile = "cert.pem" }, wantErr: "set together"},
		{name: "negative weight", mutate: func(c *Config) { c.Coordination.Weights.Role = -0.1 }, wantErr: "must not be negative"},
		{name: "zero weights", mutate: func(c *Config) { c.Coordination.Weights = WeightsConfig{} }, wantErr: "at least one"},
		{name: "threshold out of range", mutate: func(c *Config) { c.Coordination.AcceptanceThreshold = 1.2 }, wantErr: "acceptance_threshold"},
		{name: "inverted load thresholds", mutate: func(c *Config) { c.Coordination.UnderutilizedPercent = 85 }, wantErr: "underutilized_percent"},
		{name: "zero interval", mutate: func(c *Config) { c.Coordination.RebalanceInterval = 0 }, wantErr: "rebalance_interval"},
		{name: "zero parallelism", mutate: func(c *Config) { c.Coordination.MaxParallel = 0 }, wantErr: "max_parallel"},
		{name: "unknown store", mutate: func(c *Config) { c.Store.Type = "etcd" }, wantErr: `unsupported store type "etcd"`},
		{name: "sql store with unknown driver", mutate: func(c *Config) {
			c.Store.Type = "sql"
			c.Database.Driver = "oracle"
		}, wantErr: `unsupported database driver "oracle"`},
		{name: "sql store with sqlite", mutate: func(c *Config) {
			c.Store.Type = "sql"
			c.Database.Driver = "sqlite"
		}},
		{name: "unknown bus", mutate: func(c *Config) { c.Events.Bus = "kafka" }, wantErr: `unsupported event bus "kafka"`},
		{name: "unknown log level", mutate: func(c *Config) { c.Log.Level = "verbose" }, wantErr: "unsupported log level"},
		{name: "sample rate out of range", mutate: func(c *Config) { c.Telemetry.SampleRate = 2 }, wantErr: "sample_rate"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestConfig_Validate_JoinsErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Server.HTTPPort = 0
	cfg.Events.Bus = "kafka"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid HTTP port")
	assert.Contains(t, err.Error(), "unsupported event bus")
}

func TestDatabaseConfig_DSN(t *testing.T) {
	tests := []struct {
		name     string
		config   DatabaseConfig
		expected string
	}{
		{
			name: "postgres",
			config: DatabaseConfig{
				Driver: "postgres", Host: "db", Port: 5432,
				User: "coord", Password: "pw", Name: "agentcoord", SSLMode: "disable",
			},
			expected: "host=db port=5432 user=coord password=pw dbname=agentcoord sslmode=disable",
		},
		{
			name: "mysql",
			config: DatabaseConfig{
				Driver: "mysql", Host: "db", Port: 3306,
				User: "coord", Password: "pw", Name: "agentcoord",
			},
			expected: "coord:pw@tcp(db:3306)/agentcoord?parseTime=true",
		},
		{
			name:     "sqlite",
			config:   DatabaseConfig{Driver: "sqlite", Name: "/tmp/agentcoord.db"},
			expected: "/tmp/agentcoord.db",
		},
		{
			name:     "unknown driver",
			config:   DatabaseConfig{Driver: "oracle"},
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.config.DSN())
		})
	}
}

func TestLoader_LoadRegistry(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "agentcoord.yaml")
	yamlContent := `
registry:
  agents:
    - id: dev-1
      project_id: p1
      role: developer
      expertise: [go, redis]
      skills: {api: 0.8}
      active_tasks: [t1]
      max_concurrent_tasks: 4
      success_rate: 90
  tasks:
    - id: t2
      project_id: p1
      title: build api
      role: developer
      skills: {api: 0.5}
`
	require.NoError(t, os.WriteFile(configPath, []byte(yamlContent), 0644))

	cfg, err := NewLoader().WithConfigPath(configPath).WithValidator((*Config).Validate).Load()
	require.NoError(t, err)

	require.Len(t, cfg.Registry.Agents, 1)
	agent := cfg.Registry.Agents[0]
	assert.Equal(t, "dev-1", agent.ID)
	assert.Equal(t, []string{"go", "redis"}, agent.Expertise)
	assert.Equal(t, map[string]float64{"api": 0.8}, agent.Skills)
	assert.Equal(t, []string{"t1"}, agent.ActiveTasks)
	assert.Equal(t, 4, agent.MaxConcurrentTasks)

	require.Len(t, cfg.Registry.Tasks, 1)
	assert.Equal(t, "build api", cfg.Registry.Tasks[0].Title)
	assert.Equal(t, "developer", cfg.Registry.Tasks[0].Role)
}

func TestConfig_ValidateRegistry(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*Config)
		contains string
	}{
		{
			name: "missing agent id",
			mutate: func(c *Config) {
				c.Registry.Agents = []RegistryAgent{{MaxConcurrentTasks: 1}}
			},
			contains: "registry agent #0 has no id",
		},
		{
			name: "zero capacity",
			mutate: func(c *Config) {
				c.Registry.Agents = []RegistryAgent{{ID: "a"}}
			},
			contains: "positive max_concurrent_tasks",
		},
		{
			name: "over capacity",
			mutate: func(c *Config) {
				c.Registry.Agents = []RegistryAgent{{ID: "a", MaxConcurrentTasks: 1, ActiveTasks: []string{"t1", "t2"}}}
			},
			contains: "more active tasks than its capacity",
		},
		{
			name: "duplicate agent",
			mutate: func(c *Config) {
				c.Registry.Agents = []RegistryAgent{{ID: "a", MaxConcurrentTasks: 1}, {ID: "a", MaxConcurrentTasks: 1}}
			},
			contains: `duplicate registry agent "a"`,
		},
		{
			name: "unknown agent status",
			mutate: func(c *Config) {
				c.Registry.Agents = []RegistryAgent{{ID: "a", MaxConcurrentTasks: 1, Status: "sleeping"}}
			},
			contains: `unsupported status "sleeping"`,
		},
		{
			name: "duplicate task",
			mutate: func(c *Config) {
				c.Registry.Tasks = []RegistryTask{{ID: "t"}, {ID: "t"}}
			},
			contains: `duplicate registry task "t"`,
		},
		{
			name: "registry with sql store",
			mutate: func(c *Config) {
				c.Store.Type = "sql"
				c.Database.Driver = "sqlite"
				c.Registry.Tasks = []RegistryTask{{ID: "t"}}
			},
			contains: "registry is not used with store type sql",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.contains)
		})
	}

	valid := DefaultConfig()
	valid.Registry.Agents = []RegistryAgent{{ID: "a", Status: "busy", MaxConcurrentTasks: 2, SuccessRate: 50}}
	valid.Registry.Tasks = []RegistryTask{{ID: "t", Status: "in_progress"}}
	assert.NoError(t, valid.Validate())
}
