package coordination

import (
	"context"

	"github.com/BaSui01/agentcoord/agent/events"
	"github.com/BaSui01/agentcoord/agent/persistence"
	"github.com/BaSui01/agentcoord/types"
)

// TaskRepository reads tasks. Get returns persistence.ErrNotFound or a
// TASK_NOT_FOUND error when the task is absent.
type TaskRepository interface {
	Get(ctx context.Context, taskID string) (*types.Task, error)
}

// AgentRepository reads and writes agents. Get returns persistence.ErrNotFound
// or an AGENT_NOT_FOUND error when the agent is absent.
type AgentRepository interface {
	Get(ctx context.Context, agentID string) (*types.Agent, error)
	GetAll(ctx context.Context) ([]*types.Agent, error)
	GetByProject(ctx context.Context, projectID string) ([]*types.Agent, error)
	Save(ctx context.Context, agent *types.Agent) error
}

// SlotReserver changes an agent's active task set atomically. ReserveSlot
// must fail with AGENT_UNAVAILABLE when the agent cannot take the task.
type SlotReserver interface {
	ReserveSlot(ctx context.Context, agentID, taskID string) (*types.Agent, error)
	ReleaseSlot(ctx context.Context, agentID, taskID string) (*types.Agent, error)
}

// Dependencies wires the orchestrator to its collaborators.
//
// Tasks, Agents and Bus are required. Store defaults to an in-memory
// coordination store. When Reserver is nil the orchestrator serializes
// capacity changes per agent inside the process.
//
// The Scope* functions supply user-scoped views for WithUser. A nil scope
// function leaves that collaborator unscoped.
type Dependencies struct {
	Tasks    TaskRepository
	Agents   AgentRepository
	Store    persistence.CoordinationStore
	Bus      events.Bus
	Reserver SlotReserver

	ScopeTasks  func(userID string) TaskRepository
	ScopeAgents func(userID string) AgentRepository
	ScopeStore  func(userID string) persistence.CoordinationStore
}

// MemoryDependencies wires in-memory repositories, store and bus, with user
// scoping and atomic slot reservation enabled.
func MemoryDependencies(tasks *persistence.MemoryTaskRepository, agents *persistence.MemoryAgentRepository, bus events.Bus) Dependencies {
	store := persistence.NewMemoryCoordinationStore()
	return Dependencies{
		Tasks:    tasks,
		Agents:   agents,
		Store:    store,
		Bus:      bus,
		Reserver: agents,
		ScopeTasks: func(userID string) TaskRepository {
			return tasks.ForUser(userID)
		},
		ScopeAgents: func(userID string) AgentRepository {
			return agents.ForUser(userID)
		},
		ScopeStore: func(userID string) persistence.CoordinationStore {
			return store.ForUser(userID)
		},
	}
}

// SQLDependencies wires gorm-backed repositories and the given store.
func SQLDependencies(tasks *persistence.SQLTaskRepository, agents *persistence.SQLAgentRepository, store persistence.ScopedCoordinationStore, bus events.Bus) Dependencies {
	return Dependencies{
		Tasks:    tasks,
		Agents:   agents,
		Store:    store,
		Bus:      bus,
		Reserver: agents,
		ScopeTasks: func(userID string) TaskRepository {
			return tasks.ForUser(userID)
		},
		ScopeAgents: func(userID string) AgentRepository {
			return agents.ForUser(userID)
		},
		ScopeStore: store.ForUserStore,
	}
}
