package coordination

import (
	"context"
	"errors"
	"slices"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/BaSui01/agentcoord/agent/events"
	"github.com/BaSui01/agentcoord/agent/persistence"
	"github.com/BaSui01/agentcoord/types"
)

const instrumentationName = "github.com/BaSui01/agentcoord/agent/coordination"

// Orchestrator coordinates assignments, handoffs, conflicts and workload
// balancing across agents. It holds no global lock; callers bound latency
// through the context.
type Orchestrator struct {
	deps Dependencies

	tasks    TaskRepository
	agents   AgentRepository
	store    persistence.CoordinationStore
	bus      events.Bus
	reserver SlotReserver
	userID   string

	cfg     Config
	scorer  *Scorer
	logger  *zap.Logger
	metrics MetricsRecorder
	tracer  trace.Tracer
	now     func() time.Time

	// agentLocks serializes capacity changes when no SlotReserver is wired.
	agentLocks *keyedMutex
	// recordLocks serializes responses to a single handoff or conflict.
	recordLocks *keyedMutex
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m MetricsRecorder) Option {
	return func(o *Orchestrator) {
		if m != nil {
			o.metrics = m
		}
	}
}

// WithTracerProvider sets the tracer provider. The global provider is used otherwise.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *Orchestrator) {
		if tp != nil {
			o.tracer = tp.Tracer(instrumentationName)
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// New creates an orchestrator.
func New(deps Dependencies, cfg Config, opts ...Option) (*Orchestrator, error) {
	switch {
	case deps.Tasks == nil:
		return nil, types.NewInvalidInputError("task repository is required")
	case deps.Agents == nil:
		return nil, types.NewInvalidInputError("agent repository is required")
	case deps.Bus == nil:
		return nil, types.NewInvalidInputError("event bus is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, types.NewInvalidInputError(err.Error())
	}
	if deps.Store == nil {
		mem := persistence.NewMemoryCoordinationStore()
		deps.Store = mem
		if deps.ScopeStore == nil {
			deps.ScopeStore = func(userID string) persistence.CoordinationStore {
				return mem.ForUser(userID)
			}
		}
	}

	o := &Orchestrator{
		deps:        deps,
		tasks:       deps.Tasks,
		agents:      deps.Agents,
		store:       deps.Store,
		bus:         deps.Bus,
		reserver:    deps.Reserver,
		cfg:         cfg,
		scorer:      NewScorer(cfg.Weights),
		logger:      zap.NewNop(),
		metrics:     nopMetrics{},
		tracer:      otel.Tracer(instrumentationName),
		now:         time.Now,
		agentLocks:  newKeyedMutex(),
		recordLocks: newKeyedMutex(),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.logger = o.logger.With(zap.String("component", "coordination"))
	return o, nil
}

// WithUser returns an orchestrator whose reads and writes go through views
// scoped to userID. Records it creates carry userID as owner. Locks are
// shared with the parent.
func (o *Orchestrator) WithUser(userID string) *Orchestrator {
	if userID == "" || userID == o.userID {
		return o
	}
	c := *o
	c.userID = userID
	c.logger = o.logger.With(zap.String("user_id", userID))
	if o.deps.ScopeTasks != nil {
		c.tasks = o.deps.ScopeTasks(userID)
	}
	if o.deps.ScopeAgents != nil {
		c.agents = o.deps.ScopeAgents(userID)
	}
	if o.deps.ScopeStore != nil {
		c.store = o.deps.ScopeStore(userID)
	}
	return &c
}

// ForContext scopes the orchestrator to the user carried by ctx, if any.
func (o *Orchestrator) ForContext(ctx context.Context) *Orchestrator {
	userID, _ := types.UserID(ctx)
	return o.WithUser(userID)
}

// Store returns the coordination store the orchestrator writes to.
func (o *Orchestrator) Store() persistence.CoordinationStore {
	return o.store
}

// Config returns the orchestrator configuration.
func (o *Orchestrator) Config() Config {
	return o.cfg
}

// startOp opens the span of an operation; the returned func ends it and
// records the duration.
func (o *Orchestrator) startOp(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, func(*error)) {
	start := time.Now()
	if o.userID != "" {
		attrs = append(attrs, attribute.String("user.id", o.userID))
	}
	if traceID, ok := types.TraceID(ctx); ok {
		attrs = append(attrs, attribute.String("trace.id", traceID))
	}
	ctx, span := o.tracer.Start(ctx, "coordination."+op, trace.WithAttributes(attrs...))
	return ctx, func(errp *error) {
		var err error
		if errp != nil {
			err = *errp
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			if code := types.GetErrorCode(err); code != "" {
				span.SetAttributes(attribute.String("error.code", string(code)))
			}
		}
		span.End()
		o.metrics.RecordOperation(op, statusOf(err), time.Since(start))
	}
}

func (o *Orchestrator) publish(ctx context.Context, e events.Event) error {
	if err := o.bus.Publish(ctx, e); err != nil {
		o.logger.Error("failed to publish event",
			zap.String("event_type", string(e.Type())),
			zap.Error(err))
		return types.Errorf(types.ErrEventPublishFailed, "publish %s", e.Type()).WithCause(err)
	}
	return nil
}

// lookupError maps a repository failure to notFound when the record is
// absent and to STORE_UNAVAILABLE for infrastructure failures.
func lookupError(err error, notFound *types.Error, op string) error {
	if errors.Is(err, persistence.ErrNotFound) || errors.Is(err, notFound) {
		return notFound
	}
	return storeError(op, err)
}

func storeError(op string, err error) error {
	if _, ok := types.AsError(err); ok {
		return err
	}
	if errors.Is(err, persistence.ErrInvalidInput) {
		return types.Errorf(types.ErrInvalidInput, "%s rejected the record", op).WithCause(err)
	}
	return types.NewStoreUnavailableError(op, err)
}

func (o *Orchestrator) loadTask(ctx context.Context, taskID string) (*types.Task, error) {
	task, err := o.tasks.Get(ctx, taskID)
	if err != nil {
		return nil, lookupError(err, types.NewTaskNotFoundError(taskID), "load task")
	}
	if task == nil {
		return nil, types.NewTaskNotFoundError(taskID)
	}
	return task, nil
}

func (o *Orchestrator) loadAgent(ctx context.Context, agentID string) (*types.Agent, error) {
	agent, err := o.agents.Get(ctx, agentID)
	if err != nil {
		return nil, lookupError(err, types.NewAgentNotFoundError(agentID), "load agent")
	}
	if agent == nil {
		return nil, types.NewAgentNotFoundError(agentID)
	}
	return agent, nil
}

// AssignRequest describes a work assignment.
type AssignRequest struct {
	TaskID           string
	AgentID          string
	Role             string
	AssignedBy       string
	Responsibilities []string
	EstimatedHours   *float64
	DueDate          *time.Time
}

// AssignAgentToTask reserves a slot on the agent, records the assignment and
// publishes AgentAssigned.
func (o *Orchestrator) AssignAgentToTask(ctx context.Context, req AssignRequest) (_ *types.WorkAssignment, err error) {
	ctx, finish := o.startOp(ctx, "AssignAgentToTask",
		attribute.String("task.id", req.TaskID),
		attribute.String("agent.id", req.AgentID))
	defer finish(&err)

	return o.assign(ctx, req)
}

func (o *Orchestrator) assign(ctx context.Context, req AssignRequest) (_ *types.WorkAssignment, err error) {
	defer func() { o.metrics.RecordAssignment(req.Role, statusOf(err)) }()

	task, err := o.loadTask(ctx, req.TaskID)
	if err != nil {
		return nil, err
	}
	agent, err := o.loadAgent(ctx, req.AgentID)
	if err != nil {
		return nil, err
	}
	if !agent.IsAvailable() {
		return nil, types.NewAgentUnavailableError(agent.ID)
	}
	heldBefore := agent.HasTask(task.ID)

	reserved, err := o.reserveSlot(ctx, agent.ID, task.ID)
	if err != nil {
		return nil, err
	}

	assignment := &types.WorkAssignment{
		ID:                uuid.New().String(),
		TaskID:            task.ID,
		AssignedAgentID:   agent.ID,
		AssignedByAgentID: req.AssignedBy,
		AssignedAt:        o.now(),
		Role:              req.Role,
		Responsibilities:  slices.Clone(req.Responsibilities),
		EstimatedHours:    req.EstimatedHours,
		DueDate:           req.DueDate,
		OwnerID:           o.userID,
	}
	if err := o.store.SaveAssignment(ctx, assignment); err != nil {
		if !heldBefore {
			if _, relErr := o.releaseSlot(ctx, agent.ID, task.ID); relErr != nil {
				o.logger.Error("failed to release slot after assignment write failure",
					zap.String("agent_id", agent.ID),
					zap.String("task_id", task.ID),
					zap.Error(relErr))
			}
		}
		return nil, storeError("save assignment", err)
	}
	o.metrics.RecordAgentWorkload(agent.ID, reserved.WorkloadPercentage())

	o.logger.Info("agent assigned to task",
		zap.String("assignment_id", assignment.ID),
		zap.String("task_id", task.ID),
		zap.String("agent_id", agent.ID),
		zap.String("role", req.Role),
		zap.Int("active_tasks", len(reserved.ActiveTasks)))

	if err := o.publish(ctx, events.AgentAssigned{
		AssignmentID:     assignment.ID,
		TaskID:           assignment.TaskID,
		AgentID:          assignment.AssignedAgentID,
		AssignedBy:       assignment.AssignedByAgentID,
		Role:             assignment.Role,
		Responsibilities: slices.Clone(assignment.Responsibilities),
		EstimatedHours:   assignment.EstimatedHours,
		DueDate:          assignment.DueDate,
		OccurredAt:       assignment.AssignedAt,
	}); err != nil {
		return nil, err
	}
	return assignment.Clone(), nil
}

// reserveSlot adds taskID to the agent's active set when capacity allows.
func (o *Orchestrator) reserveSlot(ctx context.Context, agentID, taskID string) (*types.Agent, error) {
	if o.reserver != nil {
		agent, err := o.reserver.ReserveSlot(ctx, agentID, taskID)
		if err != nil {
			return nil, lookupError(err, types.NewAgentNotFoundError(agentID), "reserve slot")
		}
		return agent, nil
	}

	unlock := o.agentLocks.Lock(agentID)
	defer unlock()

	return o.updateAgent(ctx, agentID, func(a *types.Agent) (bool, error) {
		if a.HasTask(taskID) {
			return false, nil
		}
		if !a.IsAvailable() {
			return false, types.NewAgentUnavailableError(agentID)
		}
		a.StartTask(taskID)
		return true, nil
	})
}

// releaseSlot removes taskID from the agent's active set.
func (o *Orchestrator) releaseSlot(ctx context.Context, agentID, taskID string) (*types.Agent, error) {
	if o.reserver != nil {
		agent, err := o.reserver.ReleaseSlot(ctx, agentID, taskID)
		if err != nil {
			return nil, lookupError(err, types.NewAgentNotFoundError(agentID), "release slot")
		}
		return agent, nil
	}

	unlock := o.agentLocks.Lock(agentID)
	defer unlock()

	return o.updateAgent(ctx, agentID, func(a *types.Agent) (bool, error) {
		return a.ReleaseTask(taskID), nil
	})
}

func (o *Orchestrator) saveAgentError(err error, agentID string) error {
	if errors.Is(err, persistence.ErrVersionClash) {
		return types.Errorf(types.ErrStoreUnavailable, "agent %s was modified concurrently", agentID).
			WithCause(err).WithRetryable(true)
	}
	return lookupError(err, types.NewAgentNotFoundError(agentID), "save agent")
}

// Match is a ranked candidate for a task.
type Match struct {
	Agent *types.Agent `json:"agent"`
	Score float64      `json:"score"`
}

// RankAgentsForTask scores every available agent for the task, best first.
// Ties keep repository order. An empty projectID ranks agents of all projects.
func (o *Orchestrator) RankAgentsForTask(ctx context.Context, taskID, projectID string) (_ []Match, err error) {
	ctx, finish := o.startOp(ctx, "RankAgentsForTask", attribute.String("task.id", taskID))
	defer finish(&err)

	return o.rank(ctx, taskID, projectID)
}

func (o *Orchestrator) rank(ctx context.Context, taskID, projectID string) ([]Match, error) {
	task, err := o.loadTask(ctx, taskID)
	if err != nil {
		return nil, err
	}

	var agents []*types.Agent
	if projectID != "" {
		agents, err = o.agents.GetByProject(ctx, projectID)
	} else {
		agents, err = o.agents.GetAll(ctx)
	}
	if err != nil {
		return nil, storeError("list agents", err)
	}

	matches := make([]Match, 0, len(agents))
	for _, a := range agents {
		if !a.IsAvailable() {
			continue
		}
		matches = append(matches, Match{Agent: a, Score: o.scorer.Score(ProfileFor(a), task.Requirements)})
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	return matches, nil
}

// FindBestAgentForTask returns the highest scoring available agent. found is
// false when no agent reaches the acceptance threshold.
func (o *Orchestrator) FindBestAgentForTask(ctx context.Context, taskID, projectID string) (_ Match, found bool, err error) {
	ctx, finish := o.startOp(ctx, "FindBestAgentForTask", attribute.String("task.id", taskID))
	defer finish(&err)

	matches, err := o.rank(ctx, taskID, projectID)
	if err != nil {
		return Match{}, false, err
	}
	if len(matches) == 0 || matches[0].Score < o.cfg.AcceptanceThreshold {
		o.logger.Debug("no suitable agent found",
			zap.String("task_id", taskID),
			zap.Int("candidates", len(matches)))
		return Match{}, false, nil
	}
	return matches[0], true, nil
}
