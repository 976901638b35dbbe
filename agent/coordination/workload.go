package coordination

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/BaSui01/agentcoord/agent/events"
	"github.com/BaSui01/agentcoord/agent/handoff"
	"github.com/BaSui01/agentcoord/agent/persistence"
	"github.com/BaSui01/agentcoord/types"
)

// saveRetries bounds read-modify-write attempts on a concurrently modified agent.
const saveRetries = 3

// AgentWorkload is a snapshot of what an agent is holding and what is in flight.
type AgentWorkload struct {
	AgentID            string                  `json:"agent_id"`
	Status             types.AgentStatus       `json:"status"`
	ActiveTaskCount    int                     `json:"active_task_count"`
	Capacity           int                     `json:"capacity"`
	WorkloadPercentage float64                 `json:"workload_percentage"`
	CanAcceptWork      bool                    `json:"can_accept_work"`
	CurrentTaskID      string                  `json:"current_task_id,omitempty"`
	CurrentActivity    string                  `json:"current_activity,omitempty"`
	BlockerDescription string                  `json:"blocker_description,omitempty"`
	ActiveAssignments  []*types.WorkAssignment `json:"active_assignments"`
	PendingHandoffsIn  []*handoff.WorkHandoff  `json:"pending_handoffs_in"`
	PendingHandoffsOut []*handoff.WorkHandoff  `json:"pending_handoffs_out"`
}

// GetAgentWorkload reports the agent's active assignments and pending handoffs.
// For each active task only the latest assignment to the agent is returned.
func (o *Orchestrator) GetAgentWorkload(ctx context.Context, agentID string) (_ *AgentWorkload, err error) {
	ctx, finish := o.startOp(ctx, "GetAgentWorkload", attribute.String("agent.id", agentID))
	defer finish(&err)

	agent, err := o.loadAgent(ctx, agentID)
	if err != nil {
		return nil, err
	}

	assignments, err := o.store.ListAssignments(ctx, persistence.AssignmentFilter{AgentID: agentID})
	if err != nil {
		return nil, storeError("list assignments", err)
	}
	latest := make(map[string]*types.WorkAssignment, len(assignments))
	for _, a := range assignments {
		latest[a.TaskID] = a
	}
	active := make([]*types.WorkAssignment, 0, len(agent.ActiveTasks))
	for _, taskID := range agent.ActiveTasks {
		if a, ok := latest[taskID]; ok {
			active = append(active, a)
		}
	}

	in, err := o.store.ListHandoffs(ctx, persistence.HandoffFilter{ToAgentID: agentID, Status: handoff.StatusPending})
	if err != nil {
		return nil, storeError("list handoffs", err)
	}
	out, err := o.store.ListHandoffs(ctx, persistence.HandoffFilter{FromAgentID: agentID, Status: handoff.StatusPending})
	if err != nil {
		return nil, storeError("list handoffs", err)
	}

	w := &AgentWorkload{
		AgentID:            agent.ID,
		Status:             agent.Status,
		ActiveTaskCount:    len(agent.ActiveTasks),
		Capacity:           agent.MaxConcurrentTasks,
		WorkloadPercentage: agent.WorkloadPercentage(),
		CanAcceptWork:      agent.IsAvailable(),
		CurrentTaskID:      agent.CurrentTaskID,
		CurrentActivity:    agent.CurrentActivity,
		BlockerDescription: agent.BlockerDescription,
		ActiveAssignments:  active,
		PendingHandoffsIn:  in,
		PendingHandoffsOut: out,
	}
	o.metrics.RecordAgentWorkload(agent.ID, w.WorkloadPercentage)
	return w, nil
}

// StatusUpdate is an agent's self-reported state.
type StatusUpdate struct {
	AgentID            string
	Status             types.AgentStatus
	CurrentTaskID      string
	CurrentActivity    string
	BlockerDescription string
}

// BroadcastAgentStatus stores the agent's reported state and publishes
// AgentStatusBroadcast.
func (o *Orchestrator) BroadcastAgentStatus(ctx context.Context, update StatusUpdate) (_ *types.Agent, err error) {
	ctx, finish := o.startOp(ctx, "BroadcastAgentStatus",
		attribute.String("agent.id", update.AgentID),
		attribute.String("agent.status", string(update.Status)))
	defer finish(&err)

	if !update.Status.Valid() {
		return nil, types.Errorf(types.ErrInvalidInput, "unknown agent status %q", update.Status)
	}

	agent, err := o.updateAgent(ctx, update.AgentID, func(a *types.Agent) (bool, error) {
		a.Status = update.Status
		a.CurrentTaskID = update.CurrentTaskID
		a.CurrentActivity = update.CurrentActivity
		a.BlockerDescription = update.BlockerDescription
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	if err := o.publish(ctx, events.AgentStatusBroadcast{
		AgentID:            agent.ID,
		Status:             string(agent.Status),
		CurrentTaskID:      agent.CurrentTaskID,
		CurrentActivity:    agent.CurrentActivity,
		BlockerDescription: agent.BlockerDescription,
		WorkloadPercentage: agent.WorkloadPercentage(),
		OccurredAt:         o.now(),
	}); err != nil {
		return nil, err
	}
	return agent, nil
}

// ReleaseTask removes the task from the agent's active set. Releasing a task
// the agent does not hold is a no-op.
func (o *Orchestrator) ReleaseTask(ctx context.Context, agentID, taskID string) (_ *types.Agent, err error) {
	ctx, finish := o.startOp(ctx, "ReleaseTask",
		attribute.String("agent.id", agentID),
		attribute.String("task.id", taskID))
	defer finish(&err)

	// scoped visibility check; the reserver itself is not user scoped
	if _, err := o.loadAgent(ctx, agentID); err != nil {
		return nil, err
	}
	agent, err := o.releaseSlot(ctx, agentID, taskID)
	if err != nil {
		return nil, err
	}
	o.metrics.RecordAgentWorkload(agent.ID, agent.WorkloadPercentage())
	o.logger.Debug("task released",
		zap.String("agent_id", agentID),
		zap.String("task_id", taskID),
		zap.Int("active_tasks", len(agent.ActiveTasks)))
	return agent, nil
}

// updateAgent applies mutate to a fresh copy of the agent and saves it,
// retrying when the agent was modified concurrently. mutate reports whether
// anything changed; an error from mutate aborts the update.
func (o *Orchestrator) updateAgent(ctx context.Context, agentID string, mutate func(*types.Agent) (bool, error)) (*types.Agent, error) {
	var lastErr error
	for attempt := 0; attempt < saveRetries; attempt++ {
		agent, err := o.loadAgent(ctx, agentID)
		if err != nil {
			return nil, err
		}
		changed, err := mutate(agent)
		if err != nil {
			return nil, err
		}
		if !changed {
			return agent, nil
		}
		err = o.agents.Save(ctx, agent)
		if err == nil {
			return agent, nil
		}
		if !errors.Is(err, persistence.ErrVersionClash) {
			return nil, o.saveAgentError(err, agentID)
		}
		lastErr = err
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}
	return nil, o.saveAgentError(lastErr, agentID)
}
