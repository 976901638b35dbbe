package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/agentcoord/agent/coordination"
	"github.com/BaSui01/agentcoord/agent/persistence"
	"github.com/BaSui01/agentcoord/config"
	"github.com/BaSui01/agentcoord/internal/database"
	"github.com/BaSui01/agentcoord/types"
)

// execute 运行根命令并返回标准输出
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

// writeSQLiteConfig 写入使用 sqlite 协调存储的配置文件
func writeSQLiteConfig(t *testing.T) (configPath, dbPath string) {
	t.Helper()
	dir := t.TempDir()
	dbPath = filepath.Join(dir, "coord.db")
	configPath = filepath.Join(dir, "config.yaml")
	content := fmt.Sprintf(`
store:
  type: sql
database:
  driver: sqlite
  name: %s
events:
  bus: memory
log:
  level: error
  output_paths: ["stderr"]
`, dbPath)
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0o600))
	return configPath, dbPath
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "agentcoord dev")
	assert.Contains(t, out, "Git Commit:")
}

func TestRequiredFlags(t *testing.T) {
	_, err := execute(t, "workload")
	assert.ErrorContains(t, err, "agent")

	_, err = execute(t, "rebalance")
	assert.ErrorContains(t, err, "project")
}

func TestInvalidConfigIsRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("store:\n  type: cassandra\n"), 0o600))

	_, err := execute(t, "--config", path, "workload", "--agent", "a1")
	assert.ErrorContains(t, err, "unsupported store type")
}

func TestMigrateRebalanceWorkload_SQLite(t *testing.T) {
	configPath, dbPath := writeSQLiteConfig(t)

	out, err := execute(t, "--config", configPath, "migrate", "up")
	require.NoError(t, err)
	assert.Contains(t, out, "Current version: 2")

	out, err = execute(t, "--config", configPath, "migrate", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "add_handoff_lookup_index")

	// 通过 SQL 仓储写入一个过载 Agent 与一个空闲 Agent
	pm, err := database.Open(config.DatabaseConfig{
		Driver: "sqlite", Name: dbPath, MaxOpenConns: 1, MaxIdleConns: 1,
	}, 0, zap.NewNop())
	require.NoError(t, err)
	agents := persistence.NewSQLAgentRepository(pm.DB(), 3)
	ctx := context.Background()
	require.NoError(t, agents.Save(ctx, &types.Agent{
		ID: "busy", Name: "busy", ProjectID: "p1", Status: types.AgentStatusBusy,
		ActiveTasks: []string{"t1", "t2", "t3"}, MaxConcurrentTasks: 3, SuccessRate: 90,
	}))
	require.NoError(t, agents.Save(ctx, &types.Agent{
		ID: "idle", Name: "idle", ProjectID: "p1", Status: types.AgentStatusAvailable,
		ActiveTasks: []string{}, MaxConcurrentTasks: 4, SuccessRate: 80,
	}))
	require.NoError(t, pm.Close())

	out, err = execute(t, "--config", configPath, "rebalance", "--project", "p1", "--initiated-by", "ops")
	require.NoError(t, err)
	var result coordination.RebalanceResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, map[string]string{"t1": "idle"}, result.TasksReassigned)
	assert.Equal(t, []string{"busy", "idle"}, result.AgentsAffected)

	out, err = execute(t, "--config", configPath, "workload", "--agent", "idle")
	require.NoError(t, err)
	var workload coordination.AgentWorkload
	require.NoError(t, json.Unmarshal([]byte(out), &workload))
	assert.Equal(t, "idle", workload.AgentID)
	require.Len(t, workload.PendingHandoffsIn, 1)
	assert.Equal(t, "t1", workload.PendingHandoffsIn[0].TaskID)

	_, err = execute(t, "--config", configPath, "workload", "--agent", "ghost")
	assert.Error(t, err)
}

func TestMigrateCommand_URLOverride(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "override.db")
	url := "file:" + dbPath + "?mode=rwc"

	_, err := execute(t, "migrate", "version", "--db-url", url)
	assert.ErrorContains(t, err, "--db-type is required")

	out, err := execute(t, "migrate", "steps", "1", "--db-type", "sqlite", "--db-url", url)
	require.NoError(t, err)
	assert.Contains(t, out, "Current version: 1")

	out, err = execute(t, "migrate", "info", "--db-type", "sqlite", "--db-url", url)
	require.NoError(t, err)
	assert.Contains(t, out, "Pending migrations: 1")

	_, err = execute(t, "migrate", "steps", "x", "--db-type", "sqlite", "--db-url", url)
	assert.ErrorContains(t, err, "invalid step count")
}

func TestHealthCommand(t *testing.T) {
	healthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		writeJSON(w, http.StatusOK, healthResponse{Status: "healthy"})
	}))
	defer healthy.Close()

	out, err := execute(t, "health", "--addr", healthy.URL+"/")
	require.NoError(t, err)
	assert.Contains(t, out, "OK")

	unhealthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "unhealthy"})
	}))
	defer unhealthy.Close()

	_, err = execute(t, "health", "--addr", unhealthy.URL)
	assert.ErrorContains(t, err, "status 503")
}

func TestConfigConversion(t *testing.T) {
	cfg := config.DefaultConfig()

	oc := orchestratorConfig(cfg.Coordination)
	require.NoError(t, oc.Validate())
	assert.Equal(t, coordination.DefaultConfig(), oc)

	sc := schedulerConfig(cfg.Coordination)
	assert.Equal(t, cfg.Coordination.RebalanceInterval, sc.Interval)
	assert.Equal(t, "scheduler", sc.InitiatedBy)

	rc := redisConfig(cfg.Redis)
	assert.Equal(t, cfg.Redis.Addr, rc.Addr)
	assert.Equal(t, cfg.Redis.PoolSize, rc.PoolSize)

	srv := opsServerConfig(cfg.Server)
	assert.Equal(t, ":9091", srv.Addr)
	assert.Equal(t, 2*cfg.Server.ReadTimeout, srv.IdleTimeout)
}

// writeRegistryConfig 写入使用 memory 存储与静态注册表的配置文件
func writeRegistryConfig(t *testing.T) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	content := `
store:
  type: memory
log:
  level: error
  output_paths: ["stderr"]
registry:
  agents:
    - id: busy
      project_id: p1
      owner_id: alice
      status: busy
      active_tasks: [t1, t2, t3]
      max_concurrent_tasks: 3
      success_rate: 90
    - id: idle
      project_id: p1
      owner_id: alice
      max_concurrent_tasks: 4
      success_rate: 80
  tasks:
    - id: t4
      project_id: p1
      owner_id: alice
      title: write docs
`
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0o600))
	return configPath
}

func TestRebalanceWorkload_ConfiguredRegistry(t *testing.T) {
	configPath := writeRegistryConfig(t)

	out, err := execute(t, "--config", configPath, "rebalance", "--project", "p1")
	require.NoError(t, err)
	var result coordination.RebalanceResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, map[string]string{"t1": "idle"}, result.TasksReassigned)

	out, err = execute(t, "--config", configPath, "workload", "--agent", "busy", "--user", "alice")
	require.NoError(t, err)
	var workload coordination.AgentWorkload
	require.NoError(t, json.Unmarshal([]byte(out), &workload))
	assert.Equal(t, "busy", workload.AgentID)
	assert.Equal(t, 3, workload.ActiveTaskCount)

	_, err = execute(t, "--config", configPath, "workload", "--agent", "busy", "--user", "bob")
	assert.ErrorContains(t, err, "agent busy not found")
}

func TestBuildApp_SeedsRegistry(t *testing.T) {
	cfg, err := config.NewLoader().WithConfigPath(writeRegistryConfig(t)).Load()
	require.NoError(t, err)
	ctx := context.Background()

	a, err := buildApp(ctx, cfg, zap.NewNop(), nil)
	require.NoError(t, err)
	defer a.Close(ctx)

	match, found, err := a.orchestrator.FindBestAgentForTask(ctx, "t4", "p1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "idle", match.Agent.ID)

	empty := config.DefaultConfig()
	b, err := buildApp(ctx, empty, zap.NewNop(), nil)
	require.NoError(t, err)
	defer b.Close(ctx)
	_, err = b.orchestrator.GetAgentWorkload(ctx, "busy")
	assert.Equal(t, types.ErrAgentNotFound, types.GetErrorCode(err))
}
