package coordination

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/BaSui01/agentcoord/types"
)

// Scheduler errors
var (
	ErrTriggerRateLimited = errors.New("rebalance trigger rate limited")
	ErrTriggerQueueFull   = errors.New("rebalance trigger queue full")
)

const (
	scheduledReason = "Scheduled workload rebalancing"
	manualReason    = "Manual workload rebalancing"
	triggerQueue    = 16
)

// Rebalancer runs one rebalance pass for a project. *Orchestrator implements it.
type Rebalancer interface {
	RebalanceWorkload(ctx context.Context, projectID, initiatedBy, reason string) (*RebalanceResult, error)
}

// ProjectRun is the outcome of rebalancing one project.
type ProjectRun struct {
	ProjectID string
	Result    *RebalanceResult
	Err       error
}

// RebalanceScheduler periodically rebalances a fixed set of projects and
// accepts rate limited manual triggers.
type RebalanceScheduler struct {
	rebalancer Rebalancer
	cfg        SchedulerConfig
	limiter    *rate.Limiter
	triggers   chan string
	logger     *zap.Logger

	mu      sync.Mutex
	running bool
}

// NewRebalanceScheduler creates a scheduler.
func NewRebalanceScheduler(r Rebalancer, cfg SchedulerConfig, logger *zap.Logger) (*RebalanceScheduler, error) {
	if r == nil {
		return nil, types.NewInvalidInputError("rebalancer is required")
	}
	if cfg.Interval <= 0 {
		return nil, types.Errorf(types.ErrInvalidInput, "rebalance interval must be positive, got %s", cfg.Interval)
	}
	if cfg.MaxParallel <= 0 {
		cfg.MaxParallel = 1
	}
	if cfg.TriggerBurst <= 0 {
		cfg.TriggerBurst = 1
	}
	if cfg.InitiatedBy == "" {
		cfg.InitiatedBy = DefaultSchedulerConfig().InitiatedBy
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &RebalanceScheduler{
		rebalancer: r,
		cfg:        cfg,
		limiter:    rate.NewLimiter(rate.Limit(cfg.TriggerRate), cfg.TriggerBurst),
		triggers:   make(chan string, triggerQueue),
		logger:     logger.With(zap.String("component", "rebalance_scheduler")),
	}, nil
}

// Run rebalances the configured projects every interval and serves manual
// triggers until ctx is cancelled. It returns an error only if already running.
func (s *RebalanceScheduler) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("rebalance scheduler already running")
	}
	s.running = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	s.logger.Info("rebalance scheduler started",
		zap.Duration("interval", s.cfg.Interval),
		zap.Strings("projects", s.cfg.Projects))

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("rebalance scheduler stopped")
			return nil
		case <-ticker.C:
			s.RunOnce(ctx)
		case projectID := <-s.triggers:
			s.runProject(ctx, projectID, manualReason)
		}
	}
}

// RunOnce rebalances every configured project with bounded parallelism.
// Failures are logged and reported per project.
func (s *RebalanceScheduler) RunOnce(ctx context.Context) []ProjectRun {
	runs := make([]ProjectRun, len(s.cfg.Projects))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.MaxParallel)
	for i, projectID := range s.cfg.Projects {
		g.Go(func() error {
			runs[i] = s.runProject(gctx, projectID, scheduledReason)
			return nil // 单个项目失败不影响其他项目
		})
	}
	_ = g.Wait()
	return runs
}

// Trigger queues a rebalance of projectID for the running loop.
func (s *RebalanceScheduler) Trigger(projectID string) error {
	if projectID == "" {
		return types.NewInvalidInputError("project is required")
	}
	if !s.limiter.Allow() {
		return ErrTriggerRateLimited
	}
	select {
	case s.triggers <- projectID:
		return nil
	default:
		return ErrTriggerQueueFull
	}
}

func (s *RebalanceScheduler) runProject(ctx context.Context, projectID, reason string) ProjectRun {
	ctx = types.WithTraceID(ctx, uuid.New().String())
	start := time.Now()

	result, err := s.rebalancer.RebalanceWorkload(ctx, projectID, s.cfg.InitiatedBy, reason)
	if err != nil {
		s.logger.Error("rebalance failed",
			zap.String("project_id", projectID),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err))
		return ProjectRun{ProjectID: projectID, Err: err}
	}

	s.logger.Debug("rebalance finished",
		zap.String("project_id", projectID),
		zap.String("rebalance_id", result.RebalanceID),
		zap.Int("tasks_reassigned", len(result.TasksReassigned)),
		zap.Duration("duration", time.Since(start)))
	return ProjectRun{ProjectID: projectID, Result: result}
}
