package persistence

import (
	"context"
	"sync"
	"time"

	"github.com/BaSui01/agentcoord/types"
)

// agentTable is shared by a repository and its user-scoped views.
type agentTable struct {
	mu     sync.RWMutex
	agents map[string]*types.Agent
	order  []string
}

// MemoryAgentRepository is an in-memory agent repository with atomic slot
// reservation. All reads return copies.
type MemoryAgentRepository struct {
	table   *agentTable
	ownerID string
}

// NewMemoryAgentRepository creates a repository seeded with agents
func NewMemoryAgentRepository(agents ...*types.Agent) *MemoryAgentRepository {
	r := &MemoryAgentRepository{table: &agentTable{agents: make(map[string]*types.Agent)}}
	for _, a := range agents {
		c := a.Clone()
		if c.Version == 0 {
			c.Version = 1
		}
		r.put(c)
	}
	return r
}

// ForUser returns a view restricted to agents owned by userID
func (r *MemoryAgentRepository) ForUser(userID string) *MemoryAgentRepository {
	return &MemoryAgentRepository{table: r.table, ownerID: userID}
}

func (r *MemoryAgentRepository) put(a *types.Agent) {
	if _, ok := r.table.agents[a.ID]; !ok {
		r.table.order = append(r.table.order, a.ID)
	}
	r.table.agents[a.ID] = a
}

// lookup returns the stored agent if visible. Caller holds the lock.
func (r *MemoryAgentRepository) lookup(agentID string) (*types.Agent, bool) {
	a, ok := r.table.agents[agentID]
	if !ok || !visible(r.ownerID, a.OwnerID) {
		return nil, false
	}
	return a, true
}

// Get retrieves an agent by ID
func (r *MemoryAgentRepository) Get(ctx context.Context, agentID string) (*types.Agent, error) {
	r.table.mu.RLock()
	defer r.table.mu.RUnlock()

	a, ok := r.lookup(agentID)
	if !ok {
		return nil, ErrNotFound
	}
	return a.Clone(), nil
}

// GetAll returns every visible agent in insertion order
func (r *MemoryAgentRepository) GetAll(ctx context.Context) ([]*types.Agent, error) {
	return r.list(func(*types.Agent) bool { return true }), nil
}

// GetByProject returns the visible agents of a project in insertion order
func (r *MemoryAgentRepository) GetByProject(ctx context.Context, projectID string) ([]*types.Agent, error) {
	return r.list(func(a *types.Agent) bool { return a.ProjectID == projectID }), nil
}

func (r *MemoryAgentRepository) list(keep func(*types.Agent) bool) []*types.Agent {
	r.table.mu.RLock()
	defer r.table.mu.RUnlock()

	result := make([]*types.Agent, 0, len(r.table.order))
	for _, id := range r.table.order {
		a := r.table.agents[id]
		if visible(r.ownerID, a.OwnerID) && keep(a) {
			result = append(result, a.Clone())
		}
	}
	return result
}

// Save inserts an agent or replaces it if agent.Version matches the stored
// version. A stale version yields ErrVersionClash. A zero version skips the check.
func (r *MemoryAgentRepository) Save(ctx context.Context, agent *types.Agent) error {
	if agent == nil || agent.ID == "" {
		return ErrInvalidInput
	}

	r.table.mu.Lock()
	defer r.table.mu.Unlock()

	existing, ok := r.table.agents[agent.ID]
	switch {
	case ok && !visible(r.ownerID, existing.OwnerID):
		return ErrNotFound
	case ok && agent.Version != 0 && agent.Version != existing.Version:
		return ErrVersionClash
	case ok:
		agent.Version = existing.Version + 1
	default:
		agent.Version++
	}
	stamp(r.ownerID, &agent.OwnerID)
	agent.UpdatedAt = time.Now()
	r.put(agent.Clone())
	return nil
}

// ReserveSlot atomically checks availability and adds taskID to the agent's
// active set. Reserving a task the agent already holds is a no-op.
func (r *MemoryAgentRepository) ReserveSlot(ctx context.Context, agentID, taskID string) (*types.Agent, error) {
	r.table.mu.Lock()
	defer r.table.mu.Unlock()

	a, ok := r.lookup(agentID)
	if !ok {
		return nil, ErrNotFound
	}
	if a.HasTask(taskID) {
		return a.Clone(), nil
	}
	if !a.IsAvailable() {
		return nil, types.NewAgentUnavailableError(agentID)
	}
	a.StartTask(taskID)
	a.Version++
	a.UpdatedAt = time.Now()
	return a.Clone(), nil
}

// ReleaseSlot atomically removes taskID from the agent's active set
func (r *MemoryAgentRepository) ReleaseSlot(ctx context.Context, agentID, taskID string) (*types.Agent, error) {
	r.table.mu.Lock()
	defer r.table.mu.Unlock()

	a, ok := r.lookup(agentID)
	if !ok {
		return nil, ErrNotFound
	}
	if a.ReleaseTask(taskID) {
		a.Version++
		a.UpdatedAt = time.Now()
	}
	return a.Clone(), nil
}

// MemoryTaskRepository is an in-memory task repository
type MemoryTaskRepository struct {
	table   *taskTable
	ownerID string
}

type taskTable struct {
	mu    sync.RWMutex
	tasks map[string]*types.Task
	order []string
}

// NewMemoryTaskRepository creates a repository seeded with tasks
func NewMemoryTaskRepository(tasks ...*types.Task) *MemoryTaskRepository {
	r := &MemoryTaskRepository{table: &taskTable{tasks: make(map[string]*types.Task)}}
	for _, t := range tasks {
		r.put(t.Clone())
	}
	return r
}

// ForUser returns a view restricted to tasks owned by userID
func (r *MemoryTaskRepository) ForUser(userID string) *MemoryTaskRepository {
	return &MemoryTaskRepository{table: r.table, ownerID: userID}
}

func (r *MemoryTaskRepository) put(t *types.Task) {
	if _, ok := r.table.tasks[t.ID]; !ok {
		r.table.order = append(r.table.order, t.ID)
	}
	r.table.tasks[t.ID] = t
}

// Get retrieves a task by ID
func (r *MemoryTaskRepository) Get(ctx context.Context, taskID string) (*types.Task, error) {
	r.table.mu.RLock()
	defer r.table.mu.RUnlock()

	t, ok := r.table.tasks[taskID]
	if !ok || !visible(r.ownerID, t.OwnerID) {
		return nil, ErrNotFound
	}
	return t.Clone(), nil
}

// GetByProject returns the visible tasks of a project in insertion order
func (r *MemoryTaskRepository) GetByProject(ctx context.Context, projectID string) ([]*types.Task, error) {
	r.table.mu.RLock()
	defer r.table.mu.RUnlock()

	result := make([]*types.Task, 0)
	for _, id := range r.table.order {
		t := r.table.tasks[id]
		if visible(r.ownerID, t.OwnerID) && t.ProjectID == projectID {
			result = append(result, t.Clone())
		}
	}
	return result, nil
}

// Save inserts or replaces a task
func (r *MemoryTaskRepository) Save(ctx context.Context, task *types.Task) error {
	if task == nil || task.ID == "" {
		return ErrInvalidInput
	}

	r.table.mu.Lock()
	defer r.table.mu.Unlock()

	if existing, ok := r.table.tasks[task.ID]; ok && !visible(r.ownerID, existing.OwnerID) {
		return ErrNotFound
	}
	stamp(r.ownerID, &task.OwnerID)
	task.CreatedAt = nowIfZero(task.CreatedAt)
	r.put(task.Clone())
	return nil
}
