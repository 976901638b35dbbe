package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/agentcoord/agent/coordination"
	"github.com/BaSui01/agentcoord/agent/events"
	"github.com/BaSui01/agentcoord/agent/persistence"
	"github.com/BaSui01/agentcoord/config"
	"github.com/BaSui01/agentcoord/internal/cache"
	"github.com/BaSui01/agentcoord/internal/database"
	"github.com/BaSui01/agentcoord/internal/metrics"
	"github.com/BaSui01/agentcoord/internal/telemetry"
	"github.com/BaSui01/agentcoord/types"
)

// metricsNamespace Prometheus 指标命名空间
const metricsNamespace = "agentcoord"

// =============================================================================
// 🧩 运行时装配
// =============================================================================

// app 持有一次命令执行所需的全部协作者
type app struct {
	cfg    *config.Config
	logger *zap.Logger

	collector *metrics.Collector
	telemetry *telemetry.Providers
	db        *database.PoolManager
	redis     *cache.Manager
	store     persistence.ScopedCoordinationStore
	localBus  *events.MemoryBus
	redisBus  *events.RedisBus
	sqlAgents *persistence.SQLAgentRepository
	sqlTasks  *persistence.SQLTaskRepository

	orchestrator *coordination.Orchestrator
}

// buildApp 按配置装配存储、事件总线、指标与编排器。
// collector 为 nil 时不记录 Prometheus 指标。
func buildApp(ctx context.Context, cfg *config.Config, logger *zap.Logger, collector *metrics.Collector) (_ *app, err error) {
	a := &app{cfg: cfg, logger: logger, collector: collector}
	defer func() {
		if err != nil {
			a.Close(context.WithoutCancel(ctx))
		}
	}()

	a.telemetry, err = telemetry.Init(ctx, cfg.Telemetry, logger)
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}

	if err := a.connectInfrastructure(ctx); err != nil {
		return nil, err
	}

	bus, err := a.buildBus()
	if err != nil {
		return nil, err
	}

	deps, err := a.buildDependencies(bus)
	if err != nil {
		return nil, err
	}

	opts := []coordination.Option{
		coordination.WithLogger(logger),
		coordination.WithTracerProvider(a.telemetry.TracerProvider()),
	}
	if collector != nil {
		opts = append(opts, coordination.WithMetrics(collector))
	}
	a.orchestrator, err = coordination.New(deps, orchestratorConfig(cfg.Coordination), opts...)
	if err != nil {
		return nil, fmt.Errorf("create orchestrator: %w", err)
	}
	return a, nil
}

// connectInfrastructure 只在配置需要时连接 Redis 与数据库
func (a *app) connectInfrastructure(ctx context.Context) error {
	needRedis := a.cfg.Store.Type == string(persistence.StoreTypeRedis) || a.cfg.Events.Bus == "redis"
	if needRedis {
		var opts []cache.Option
		if a.collector != nil {
			opts = append(opts, cache.WithHealthReporter(a.collector.RecordRedisHealth))
		}
		mgr, err := cache.NewManager(ctx, redisConfig(a.cfg.Redis), a.logger, opts...)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		a.redis = mgr
	}

	if a.cfg.Store.Type == string(persistence.StoreTypeSQL) {
		var opts []database.PoolOption
		if a.collector != nil {
			driver := a.cfg.Database.Driver
			opts = append(opts, database.WithStatsReporter(func(s database.PoolStats) {
				a.collector.RecordDBConnections(driver, s.OpenConnections, s.Idle, s.WaitCount)
			}))
		}
		pm, err := database.Open(a.cfg.Database, a.cfg.Redis.HealthCheckInterval, a.logger, opts...)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		a.db = pm
		if err := pm.Ping(ctx); err != nil {
			return fmt.Errorf("ping database: %w", err)
		}
		pm.StartHealthCheck(ctx)
	}
	return nil
}

func (a *app) buildBus() (events.Bus, error) {
	local := events.NewMemoryBus(a.logger)
	local.SubscribeAll(func(_ context.Context, e events.Event) error {
		a.logger.Debug("coordination event", zap.String("type", string(e.Type())), zap.Time("at", e.Timestamp()))
		return nil
	})

	a.localBus = local

	switch a.cfg.Events.Bus {
	case "", "memory":
		return local, nil
	case "redis":
		a.redisBus = events.NewRedisBus(a.redis.Client(), a.cfg.Events.Channel, a.logger)
		return events.NewFanoutBus(local, a.redisBus), nil
	default:
		return nil, fmt.Errorf("unsupported event bus: %s", a.cfg.Events.Bus)
	}
}

// buildDependencies 选择协调存储与 Agent/Task 仓储。
// sql 存储使用数据库中的 agents/tasks 表，其余存储使用由 registry 配置初始化的进程内仓储。
func (a *app) buildDependencies(bus events.Bus) (coordination.Dependencies, error) {
	storeCfg := persistence.DefaultStoreConfig()
	storeCfg.Type = persistence.StoreType(a.cfg.Store.Type)
	storeCfg.BaseDir = a.cfg.Store.BaseDir
	storeCfg.ReserveRetries = a.cfg.Store.ReserveRetries

	switch storeCfg.Type {
	case persistence.StoreTypeSQL:
		db := a.db.DB()
		store, err := persistence.NewCoordinationStore(storeCfg, db)
		if err != nil {
			return coordination.Dependencies{}, fmt.Errorf("create coordination store: %w", err)
		}
		a.store = store
		a.sqlTasks = persistence.NewSQLTaskRepository(db)
		a.sqlAgents = persistence.NewSQLAgentRepository(db, storeCfg.ReserveRetries)
		return coordination.SQLDependencies(a.sqlTasks, a.sqlAgents, store, bus), nil
	case persistence.StoreTypeRedis:
		a.store = persistence.NewScopedRedisStore(a.redis.Client(), a.cfg.Store.KeyPrefix)
	default:
		store, err := persistence.NewCoordinationStore(storeCfg, nil)
		if err != nil {
			return coordination.Dependencies{}, fmt.Errorf("create coordination store: %w", err)
		}
		a.store = store
	}

	agents, tasks := registryAgents(a.cfg.Registry), registryTasks(a.cfg.Registry)
	if len(agents) == 0 {
		a.logger.Warn("agent registry is empty; configure registry.agents or use store.type=sql",
			zap.String("store", a.cfg.Store.Type))
	}
	a.logger.Info("agent and task registries loaded from config",
		zap.Int("agents", len(agents)),
		zap.Int("tasks", len(tasks)))
	deps := coordination.MemoryDependencies(
		persistence.NewMemoryTaskRepository(tasks...),
		persistence.NewMemoryAgentRepository(agents...),
		bus,
	)
	deps.Store = a.store
	deps.ScopeStore = a.store.ForUserStore
	return deps, nil
}

// autoMigrate 用 GORM 模型建表，仅用于开发环境；生产环境使用 migrate 命令
func (a *app) autoMigrate() error {
	if a.sqlAgents == nil {
		return errors.New("auto-migrate requires store.type=sql")
	}
	migrators := []interface{ AutoMigrate() error }{a.sqlAgents, a.sqlTasks}
	if m, ok := a.store.(interface{ AutoMigrate() error }); ok {
		migrators = append(migrators, m)
	}
	for _, m := range migrators {
		if err := m.AutoMigrate(); err != nil {
			return fmt.Errorf("auto-migrate: %w", err)
		}
	}
	return nil
}

// ping 检查存储与基础设施连通性，返回各组件的错误
func (a *app) ping(ctx context.Context) map[string]error {
	checks := map[string]error{"store": a.store.Ping(ctx)}
	if a.db != nil {
		checks["database"] = a.db.Ping(ctx)
	}
	if a.redis != nil {
		checks["redis"] = a.redis.Ping(ctx)
	}
	return checks
}

// Close 按依赖逆序释放资源
func (a *app) Close(ctx context.Context) {
	var errs []error
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	if a.db != nil {
		errs = append(errs, a.db.Close())
	}
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	if a.telemetry != nil {
		errs = append(errs, a.telemetry.Shutdown(ctx))
	}
	if err := errors.Join(errs...); err != nil {
		a.logger.Warn("shutdown finished with errors", zap.Error(err))
	}
}

// =============================================================================
// 🔄 配置转换
// =============================================================================

func orchestratorConfig(c config.CoordinationConfig) coordination.Config {
	return coordination.Config{
		Weights: coordination.Weights{
			Role:         c.Weights.Role,
			Expertise:    c.Weights.Expertise,
			Skills:       c.Weights.Skills,
			Availability: c.Weights.Availability,
			Performance:  c.Weights.Performance,
		},
		AcceptanceThreshold:  c.AcceptanceThreshold,
		OverloadedPercent:    c.OverloadedPercent,
		UnderutilizedPercent: c.UnderutilizedPercent,
	}
}

func schedulerConfig(c config.CoordinationConfig) coordination.SchedulerConfig {
	return coordination.SchedulerConfig{
		Interval:     c.RebalanceInterval,
		Projects:     c.Projects,
		InitiatedBy:  c.InitiatedBy,
		MaxParallel:  c.MaxParallel,
		TriggerRate:  c.TriggerRate,
		TriggerBurst: c.TriggerBurst,
	}
}

func registryAgents(r config.RegistryConfig) []*types.Agent {
	now := time.Now().UTC()
	agents := make([]*types.Agent, 0, len(r.Agents))
	for _, ra := range r.Agents {
		status := types.AgentStatus(ra.Status)
		if status == "" {
			status = types.AgentStatusAvailable
		}
		name := ra.Name
		if name == "" {
			name = ra.ID
		}
		agents = append(agents, &types.Agent{
			ID:                 ra.ID,
			Name:               name,
			ProjectID:          ra.ProjectID,
			OwnerID:            ra.OwnerID,
			Status:             status,
			Role:               ra.Role,
			Expertise:          ra.Expertise,
			Skills:             ra.Skills,
			ActiveTasks:        append([]string{}, ra.ActiveTasks...),
			MaxConcurrentTasks: ra.MaxConcurrentTasks,
			SuccessRate:        ra.SuccessRate,
			UpdatedAt:          now,
		})
	}
	return agents
}

func registryTasks(r config.RegistryConfig) []*types.Task {
	now := time.Now().UTC()
	tasks := make([]*types.Task, 0, len(r.Tasks))
	for _, rt := range r.Tasks {
		status := types.TaskStatus(rt.Status)
		if status == "" {
			status = types.TaskStatusTodo
		}
		tasks = append(tasks, &types.Task{
			ID:        rt.ID,
			ProjectID: rt.ProjectID,
			OwnerID:   rt.OwnerID,
			Title:     rt.Title,
			Status:    status,
			Requirements: types.TaskRequirements{
				Role:      rt.Role,
				Expertise: rt.Expertise,
				Skills:    rt.Skills,
			},
			CreatedAt: now,
		})
	}
	return tasks
}

func redisConfig(c config.RedisConfig) cache.Config {
	cfg := cache.DefaultConfig()
	cfg.Addr = c.Addr
	cfg.Password = c.Password
	cfg.DB = c.DB
	cfg.PoolSize = c.PoolSize
	cfg.MinIdleConns = c.MinIdleConns
	cfg.HealthCheckInterval = c.HealthCheckInterval
	cfg.TLS = c.TLS
	return cfg
}
