package coordination

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/BaSui01/agentcoord/agent/events"
	"github.com/BaSui01/agentcoord/agent/handoff"
	"github.com/BaSui01/agentcoord/agent/persistence"
	"github.com/BaSui01/agentcoord/types"
)

// HandoffRequest describes work one agent passes to another.
type HandoffRequest struct {
	FromAgentID    string
	ToAgentID      string
	TaskID         string
	WorkSummary    string
	CompletedItems []string
	RemainingItems []string
	Notes          string
}

// RequestWorkHandoff opens a pending handoff between two existing agents.
func (o *Orchestrator) RequestWorkHandoff(ctx context.Context, req HandoffRequest) (_ *handoff.WorkHandoff, err error) {
	ctx, finish := o.startOp(ctx, "RequestWorkHandoff",
		attribute.String("task.id", req.TaskID),
		attribute.String("handoff.from", req.FromAgentID),
		attribute.String("handoff.to", req.ToAgentID))
	defer finish(&err)
	defer func() { o.metrics.RecordHandoff("request", statusOf(err)) }()

	return o.requestHandoff(ctx, req)
}

func (o *Orchestrator) requestHandoff(ctx context.Context, req HandoffRequest) (*handoff.WorkHandoff, error) {
	switch {
	case strings.TrimSpace(req.FromAgentID) == "":
		return nil, types.NewInvalidInputError("handoff source agent is required")
	case strings.TrimSpace(req.ToAgentID) == "":
		return nil, types.NewInvalidInputError("handoff target agent is required")
	case strings.TrimSpace(req.TaskID) == "":
		return nil, types.NewInvalidInputError("handoff task is required")
	}
	if _, err := o.loadAgent(ctx, req.FromAgentID); err != nil {
		return nil, err
	}
	if _, err := o.loadAgent(ctx, req.ToAgentID); err != nil {
		return nil, err
	}

	h, err := handoff.New(handoff.Request{
		FromAgentID:    req.FromAgentID,
		ToAgentID:      req.ToAgentID,
		TaskID:         req.TaskID,
		WorkSummary:    req.WorkSummary,
		CompletedItems: req.CompletedItems,
		RemainingItems: req.RemainingItems,
		Notes:          req.Notes,
		OwnerID:        o.userID,
	}, o.now())
	if err != nil {
		return nil, err
	}
	if err := o.store.SaveHandoff(ctx, h); err != nil {
		return nil, storeError("save handoff", err)
	}

	o.logger.Info("work handoff requested",
		zap.String("handoff_id", h.ID),
		zap.String("from_agent_id", h.FromAgentID),
		zap.String("to_agent_id", h.ToAgentID),
		zap.String("task_id", h.TaskID))

	if err := o.publish(ctx, events.WorkHandoffRequested{
		HandoffID:   h.ID,
		FromAgentID: h.FromAgentID,
		ToAgentID:   h.ToAgentID,
		TaskID:      h.TaskID,
		WorkSummary: h.WorkSummary,
		OccurredAt:  h.InitiatedAt,
	}); err != nil {
		return nil, err
	}
	return h.Clone(), nil
}

// AcceptHandoff assigns the task to the recipient, marks the handoff accepted
// and releases the task from the source agent. The handoff stays pending when
// the assignment fails.
func (o *Orchestrator) AcceptHandoff(ctx context.Context, handoffID, agentID, notes string) (_ *handoff.WorkHandoff, _ *types.WorkAssignment, err error) {
	ctx, finish := o.startOp(ctx, "AcceptHandoff",
		attribute.String("handoff.id", handoffID),
		attribute.String("agent.id", agentID))
	defer finish(&err)
	defer func() { o.metrics.RecordHandoff("accept", statusOf(err)) }()

	unlock := o.recordLocks.Lock("handoff:" + handoffID)
	defer unlock()

	h, err := o.loadHandoff(ctx, handoffID)
	if err != nil {
		return nil, nil, err
	}
	if err := h.CheckResponder(agentID, handoff.StatusAccepted); err != nil {
		return nil, nil, err
	}

	assignment, err := o.assign(ctx, AssignRequest{
		TaskID:           h.TaskID,
		AgentID:          h.ToAgentID,
		Role:             types.RoleContinuedWork,
		AssignedBy:       h.FromAgentID,
		Responsibilities: h.RemainingItems,
	})
	if err != nil {
		return nil, nil, err
	}

	if err := h.Accept(agentID, notes, o.now()); err != nil {
		return nil, nil, err
	}
	if err := o.store.SaveHandoff(ctx, h); err != nil {
		return nil, nil, storeError("save handoff", err)
	}

	if _, err := o.releaseSlot(ctx, h.FromAgentID, h.TaskID); err != nil {
		o.logger.Warn("failed to release task from handoff source",
			zap.String("handoff_id", h.ID),
			zap.String("agent_id", h.FromAgentID),
			zap.String("task_id", h.TaskID),
			zap.Error(err))
	}

	o.logger.Info("work handoff accepted",
		zap.String("handoff_id", h.ID),
		zap.String("assignment_id", assignment.ID),
		zap.String("to_agent_id", h.ToAgentID))

	if err := o.publish(ctx, events.WorkHandoffAccepted{
		HandoffID:    h.ID,
		FromAgentID:  h.FromAgentID,
		ToAgentID:    h.ToAgentID,
		TaskID:       h.TaskID,
		AssignmentID: assignment.ID,
		Notes:        notes,
		OccurredAt:   *h.RespondedAt,
	}); err != nil {
		return nil, nil, err
	}
	return h.Clone(), assignment, nil
}

// RejectHandoff marks the handoff rejected. The task is not reassigned.
func (o *Orchestrator) RejectHandoff(ctx context.Context, handoffID, agentID, reason string) (_ *handoff.WorkHandoff, err error) {
	ctx, finish := o.startOp(ctx, "RejectHandoff",
		attribute.String("handoff.id", handoffID),
		attribute.String("agent.id", agentID))
	defer finish(&err)
	defer func() { o.metrics.RecordHandoff("reject", statusOf(err)) }()

	unlock := o.recordLocks.Lock("handoff:" + handoffID)
	defer unlock()

	h, err := o.loadHandoff(ctx, handoffID)
	if err != nil {
		return nil, err
	}
	if err := h.Reject(agentID, reason, o.now()); err != nil {
		return nil, err
	}
	if err := o.store.SaveHandoff(ctx, h); err != nil {
		return nil, storeError("save handoff", err)
	}

	o.logger.Info("work handoff rejected",
		zap.String("handoff_id", h.ID),
		zap.String("to_agent_id", h.ToAgentID),
		zap.String("reason", reason))

	if err := o.publish(ctx, events.WorkHandoffRejected{
		HandoffID:   h.ID,
		FromAgentID: h.FromAgentID,
		ToAgentID:   h.ToAgentID,
		TaskID:      h.TaskID,
		Reason:      reason,
		OccurredAt:  *h.RespondedAt,
	}); err != nil {
		return nil, err
	}
	return h.Clone(), nil
}

// GetHandoff returns a handoff by ID.
func (o *Orchestrator) GetHandoff(ctx context.Context, handoffID string) (*handoff.WorkHandoff, error) {
	return o.loadHandoff(ctx, handoffID)
}

// ListHandoffs returns the handoffs matching filter, oldest first.
func (o *Orchestrator) ListHandoffs(ctx context.Context, filter persistence.HandoffFilter) ([]*handoff.WorkHandoff, error) {
	list, err := o.store.ListHandoffs(ctx, filter)
	if err != nil {
		return nil, storeError("list handoffs", err)
	}
	return list, nil
}

func (o *Orchestrator) loadHandoff(ctx context.Context, handoffID string) (*handoff.WorkHandoff, error) {
	h, err := o.store.GetHandoff(ctx, handoffID)
	if err != nil {
		return nil, lookupError(err, types.NewHandoffNotFoundError(handoffID), "load handoff")
	}
	return h, nil
}
