package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/BaSui01/agentcoord/agent/coordination"
	"github.com/BaSui01/agentcoord/agent/events"
	"github.com/BaSui01/agentcoord/config"
	"github.com/BaSui01/agentcoord/internal/metrics"
	"github.com/BaSui01/agentcoord/internal/server"
	"github.com/BaSui01/agentcoord/types"
)

// =============================================================================
// 🖥️ serve 命令
// =============================================================================

func newServeCmd(opts *rootOptions) *cobra.Command {
	var autoMigrate bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the rebalance scheduler with /health, /metrics and POST /rebalance endpoints",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			logger := initLogger(cfg.Log)
			defer func() { _ = logger.Sync() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cfg, logger, autoMigrate)
		},
	}
	cmd.Flags().BoolVar(&autoMigrate, "auto-migrate", false, "Create SQL tables from models on startup (development only)")
	return cmd
}

// runServe 启动调度器与运维 HTTP 服务，ctx 取消后优雅退出
func runServe(ctx context.Context, cfg *config.Config, logger *zap.Logger, autoMigrate bool) error {
	logger.Info("starting agentcoord",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("git_commit", GitCommit),
		zap.String("store", cfg.Store.Type),
		zap.String("event_bus", cfg.Events.Bus),
	)

	collector := metrics.NewCollector(metricsNamespace, logger)
	a, err := buildApp(ctx, cfg, logger, collector)
	if err != nil {
		return err
	}
	defer a.Close(context.WithoutCancel(ctx))

	if autoMigrate {
		if err := a.autoMigrate(); err != nil {
			return err
		}
	}

	scheduler, err := coordination.NewRebalanceScheduler(a.orchestrator, schedulerConfig(cfg.Coordination), logger)
	if err != nil {
		return fmt.Errorf("create scheduler: %w", err)
	}

	subID := a.localBus.Subscribe(events.TypeAgentWorkloadRebalanced, logRebalanced(logger))
	defer a.localBus.Unsubscribe(subID)

	httpManager := server.NewManager(newOpsHandler(ctx, a, collector, scheduler), opsServerConfig(cfg.Server), logger)

	var sub *events.Subscription
	if a.redisBus != nil {
		sub, err = a.redisBus.Subscribe(ctx)
		if err != nil {
			return fmt.Errorf("subscribe to event channel: %w", err)
		}
		defer sub.Close()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return scheduler.Run(gctx) })
	g.Go(func() error { return httpManager.Run(gctx) })
	if sub != nil {
		g.Go(func() error { return sub.Run(gctx, logRemoteEvent(logger)) })
	}

	err = g.Wait()
	logger.Info("agentcoord stopped")
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// logRebalanced 以 info 级别记录每次实际发生迁移的再平衡
func logRebalanced(logger *zap.Logger) events.Handler {
	return func(_ context.Context, e events.Event) error {
		r, ok := e.(events.AgentWorkloadRebalanced)
		if !ok || len(r.TasksReassigned) == 0 {
			return nil
		}
		logger.Info("workload rebalanced",
			zap.String("rebalance_id", r.RebalanceID),
			zap.String("project_id", r.ProjectID),
			zap.String("initiated_by", r.InitiatedBy),
			zap.Int("tasks_reassigned", len(r.TasksReassigned)),
			zap.Strings("agents_affected", r.AgentsAffected))
		return nil
	}
}

// logRemoteEvent 记录从 Redis 频道收到的事件，包括其他实例发布的事件
func logRemoteEvent(logger *zap.Logger) events.Handler {
	return func(_ context.Context, e events.Event) error {
		logger.Debug("coordination event received",
			zap.String("type", string(e.Type())),
			zap.Time("at", e.Timestamp()))
		return nil
	}
}

func opsServerConfig(c config.ServerConfig) server.Config {
	cfg := server.DefaultConfig()
	cfg.Addr = fmt.Sprintf(":%d", c.HTTPPort)
	cfg.ReadTimeout = c.ReadTimeout
	cfg.WriteTimeout = c.WriteTimeout
	cfg.IdleTimeout = 2 * c.ReadTimeout
	cfg.ShutdownTimeout = c.ShutdownTimeout
	cfg.TLSCertFile = c.TLSCertFile
	cfg.TLSKeyFile = c.TLSKeyFile
	return cfg
}

// =============================================================================
// 🏥 运维端点
// =============================================================================

// newOpsHandler 暴露 /health、/metrics 与手动再平衡触发入口
func newOpsHandler(ctx context.Context, a *app, collector *metrics.Collector, trigger rebalanceTrigger) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthHandler(a))
	mux.HandleFunc("/healthz", healthHandler(a))
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/rebalance", rebalanceHandler(trigger))

	return Chain(mux,
		Recovery(a.logger),
		RequestID(),
		SecurityHeaders(),
		RequestLogger(a.logger, collector),
		RateLimiter(ctx, a.cfg.Server.RateLimitRPS, a.cfg.Server.RateLimitBurst),
	)
}

// healthResponse /health 响应体
type healthResponse struct {
	Status  string            `json:"status"`
	Version string            `json:"version"`
	Checks  map[string]string `json:"checks"`
}

func healthHandler(a *app) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		resp := healthResponse{Status: "healthy", Version: Version, Checks: map[string]string{}}
		status := http.StatusOK
		for name, err := range a.ping(ctx) {
			if err != nil {
				resp.Checks[name] = err.Error()
				resp.Status = "unhealthy"
				status = http.StatusServiceUnavailable
				continue
			}
			resp.Checks[name] = "ok"
		}
		writeJSON(w, status, resp)
	}
}

// rebalanceTrigger 将项目放入调度器的手动再平衡队列
type rebalanceTrigger interface {
	Trigger(projectID string) error
}

// rebalanceHandler 处理 POST /rebalance?project=，只排队不等待结果
func rebalanceHandler(trigger rebalanceTrigger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
			return
		}
		projectID := r.URL.Query().Get("project")

		err := trigger.Trigger(projectID)
		switch {
		case err == nil:
			writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued", "project": projectID})
		case errors.Is(err, coordination.ErrTriggerRateLimited), errors.Is(err, coordination.ErrTriggerQueueFull):
			writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": err.Error()})
		case types.IsErrorCode(err, types.ErrInvalidInput):
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		default:
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
