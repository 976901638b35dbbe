package coordination

import (
	"context"
	"maps"
	"sort"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/BaSui01/agentcoord/agent/events"
	"github.com/BaSui01/agentcoord/agent/handoff"
	"github.com/BaSui01/agentcoord/agent/persistence"
	"github.com/BaSui01/agentcoord/types"
)

// Fixed handoff content used when the rebalancer moves a task.
const (
	rebalanceSummary   = "Workload rebalancing"
	rebalanceRemaining = "Continue current work"
)

// RebalanceResult summarizes one rebalance run.
type RebalanceResult struct {
	RebalanceID string `json:"rebalance_id"`
	ProjectID   string `json:"project_id"`
	// TasksReassigned maps a task to the agent it is being handed to.
	TasksReassigned map[string]string `json:"tasks_reassigned"`
	// HandoffIDs maps a task to the pending handoff opened for it.
	HandoffIDs     map[string]string `json:"handoff_ids"`
	WorkloadBefore map[string]int    `json:"workload_before"`
	WorkloadAfter  map[string]int    `json:"workload_after"`
	AgentsAffected []string          `json:"agents_affected"`
}

// RebalanceWorkload moves at most one task from each overloaded agent of the
// project to an underutilized one by opening pending handoffs.
//
// Load is measured as active tasks plus pending inbound handoffs, so work
// already on its way to an agent counts against it and a rejected handoff
// stops counting on the next run. Tasks that already have a pending outbound
// handoff are not offered again.
func (o *Orchestrator) RebalanceWorkload(ctx context.Context, projectID, initiatedBy, reason string) (_ *RebalanceResult, err error) {
	result := &RebalanceResult{
		RebalanceID:     uuid.New().String(),
		ProjectID:       projectID,
		TasksReassigned: make(map[string]string),
		HandoffIDs:      make(map[string]string),
		WorkloadBefore:  make(map[string]int),
		WorkloadAfter:   make(map[string]int),
		AgentsAffected:  []string{},
	}
	ctx = types.WithRebalanceID(ctx, result.RebalanceID)
	ctx, finish := o.startOp(ctx, "RebalanceWorkload",
		attribute.String("project.id", projectID),
		attribute.String("rebalance.id", result.RebalanceID))
	defer finish(&err)
	defer func() { o.metrics.RecordRebalance(statusOf(err), len(result.TasksReassigned)) }()

	logger := o.logger.With(
		zap.String("rebalance_id", result.RebalanceID),
		zap.String("project_id", projectID))

	agents, err := o.agents.GetByProject(ctx, projectID)
	if err != nil {
		return nil, storeError("list agents", err)
	}
	for _, a := range agents {
		result.WorkloadBefore[a.ID] = len(a.ActiveTasks)
	}

	pending, err := o.store.ListHandoffs(ctx, persistence.HandoffFilter{Status: handoff.StatusPending})
	if err != nil {
		return nil, storeError("list handoffs", err)
	}
	inbound := make(map[string]int)
	outbound := make(map[string]map[string]struct{})
	for _, h := range pending {
		inbound[h.ToAgentID]++
		if outbound[h.FromAgentID] == nil {
			outbound[h.FromAgentID] = make(map[string]struct{})
		}
		outbound[h.FromAgentID][h.TaskID] = struct{}{}
	}
	effective := func(a *types.Agent) float64 {
		return types.LoadPercentage(len(a.ActiveTasks)+inbound[a.ID], a.MaxConcurrentTasks)
	}

	var overloaded, underutilized []*types.Agent
	for _, a := range agents {
		load := effective(a)
		switch {
		case load > o.cfg.OverloadedPercent:
			overloaded = append(overloaded, a)
		case load < o.cfg.UnderutilizedPercent && a.IsAvailable():
			underutilized = append(underutilized, a)
		}
	}
	logger.Debug("rebalance candidates",
		zap.Int("overloaded", len(overloaded)),
		zap.Int("underutilized", len(underutilized)))

	affected := make(map[string]struct{})
	for _, source := range overloaded {
		if len(underutilized) == 0 {
			break
		}
		taskID := movableTask(source, outbound[source.ID])
		if taskID == "" {
			continue
		}

		target := underutilized[0]
		underutilized = underutilized[1:]

		h, err := o.requestHandoff(ctx, HandoffRequest{
			FromAgentID:    source.ID,
			ToAgentID:      target.ID,
			TaskID:         taskID,
			WorkSummary:    rebalanceSummary,
			CompletedItems: []string{},
			RemainingItems: []string{rebalanceRemaining},
			Notes:          reason,
		})
		o.metrics.RecordHandoff("request", statusOf(err))
		if err != nil {
			logger.Error("rebalance handoff failed",
				zap.String("from_agent_id", source.ID),
				zap.String("to_agent_id", target.ID),
				zap.String("task_id", taskID),
				zap.Error(err))
			return nil, err
		}

		result.TasksReassigned[taskID] = target.ID
		result.HandoffIDs[taskID] = h.ID
		affected[source.ID] = struct{}{}
		affected[target.ID] = struct{}{}
		inbound[target.ID]++

		if effective(target) < o.cfg.UnderutilizedPercent {
			underutilized = append([]*types.Agent{target}, underutilized...)
		}
	}

	after, err := o.agents.GetByProject(ctx, projectID)
	if err != nil {
		return nil, storeError("list agents", err)
	}
	for _, a := range after {
		result.WorkloadAfter[a.ID] = len(a.ActiveTasks)
	}
	for id := range affected {
		result.AgentsAffected = append(result.AgentsAffected, id)
	}
	sort.Strings(result.AgentsAffected)

	logger.Info("workload rebalanced",
		zap.String("initiated_by", initiatedBy),
		zap.Int("tasks_reassigned", len(result.TasksReassigned)),
		zap.Strings("agents_affected", result.AgentsAffected))

	if err := o.publish(ctx, events.AgentWorkloadRebalanced{
		RebalanceID:     result.RebalanceID,
		ProjectID:       projectID,
		InitiatedBy:     initiatedBy,
		AgentsAffected:  append([]string(nil), result.AgentsAffected...),
		TasksReassigned: maps.Clone(result.TasksReassigned),
		Reason:          reason,
		WorkloadBefore:  maps.Clone(result.WorkloadBefore),
		WorkloadAfter:   maps.Clone(result.WorkloadAfter),
		OccurredAt:      o.now(),
	}); err != nil {
		return nil, err
	}
	return result, nil
}

// movableTask returns the first active task without a pending outbound handoff.
func movableTask(a *types.Agent, offered map[string]struct{}) string {
	for _, taskID := range a.ActiveTasks {
		if _, ok := offered[taskID]; !ok {
			return taskID
		}
	}
	return ""
}
