package coordination

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/BaSui01/agentcoord/agent/conflict"
	"github.com/BaSui01/agentcoord/agent/events"
	"github.com/BaSui01/agentcoord/agent/persistence"
	"github.com/BaSui01/agentcoord/types"
)

// ConflictReport describes a conflict observed between agents. When Strategy
// is set the conflict is resolved immediately on behalf of the system.
type ConflictReport struct {
	TaskID         string
	Type           conflict.ConflictType
	InvolvedAgents []string
	Description    string
	Strategy       conflict.Strategy
}

// DetectAndResolveConflict records a conflict and optionally auto-resolves it.
func (o *Orchestrator) DetectAndResolveConflict(ctx context.Context, report ConflictReport) (_ *conflict.ConflictResolution, err error) {
	ctx, finish := o.startOp(ctx, "DetectAndResolveConflict",
		attribute.String("task.id", report.TaskID),
		attribute.String("conflict.type", string(report.Type)))
	defer finish(&err)

	c, err := conflict.Detect(conflict.Report{
		TaskID:         report.TaskID,
		Type:           report.Type,
		InvolvedAgents: report.InvolvedAgents,
		Description:    report.Description,
		OwnerID:        o.userID,
	}, o.now())
	if err != nil {
		return nil, err
	}
	if err := o.store.SaveConflict(ctx, c); err != nil {
		return nil, storeError("save conflict", err)
	}
	o.metrics.RecordConflict(string(c.Type), "detect")

	o.logger.Info("conflict detected",
		zap.String("conflict_id", c.ID),
		zap.String("conflict_type", string(c.Type)),
		zap.Strings("involved_agents", c.InvolvedAgents),
		zap.String("task_id", c.TaskID))

	if err := o.publish(ctx, events.ConflictDetected{
		ConflictID:     c.ID,
		ConflictType:   string(c.Type),
		InvolvedAgents: append([]string(nil), c.InvolvedAgents...),
		TaskID:         c.TaskID,
		Description:    c.Description,
		OccurredAt:     c.DetectedAt,
	}); err != nil {
		return nil, err
	}

	if report.Strategy == "" {
		return c.Clone(), nil
	}
	return o.resolve(ctx, c.ID, report.Strategy, conflict.SystemResolver, conflict.AutoResolutionDetails(report.Strategy))
}

// ResolveConflict records how a conflict was settled. A conflict can be
// resolved only once; later attempts fail with INVALID_TRANSITION.
func (o *Orchestrator) ResolveConflict(ctx context.Context, conflictID string, strategy conflict.Strategy, resolvedBy, details string) (_ *conflict.ConflictResolution, err error) {
	ctx, finish := o.startOp(ctx, "ResolveConflict",
		attribute.String("conflict.id", conflictID),
		attribute.String("conflict.strategy", string(strategy)))
	defer finish(&err)

	return o.resolve(ctx, conflictID, strategy, resolvedBy, details)
}

func (o *Orchestrator) resolve(ctx context.Context, conflictID string, strategy conflict.Strategy, resolvedBy, details string) (*conflict.ConflictResolution, error) {
	unlock := o.recordLocks.Lock("conflict:" + conflictID)
	defer unlock()

	c, err := o.loadConflict(ctx, conflictID)
	if err != nil {
		return nil, err
	}
	if err := c.Resolve(strategy, resolvedBy, details, o.now()); err != nil {
		return nil, err
	}
	if err := o.store.SaveConflict(ctx, c); err != nil {
		return nil, storeError("save conflict", err)
	}
	o.metrics.RecordConflict(string(c.Type), "resolve")

	o.logger.Info("conflict resolved",
		zap.String("conflict_id", c.ID),
		zap.String("strategy", string(strategy)),
		zap.String("resolved_by", resolvedBy))

	if err := o.publish(ctx, events.ConflictResolved{
		ConflictID: c.ID,
		TaskID:     c.TaskID,
		Strategy:   string(c.Strategy),
		ResolvedBy: c.ResolvedBy,
		Details:    c.ResolutionDetails,
		OccurredAt: *c.ResolvedAt,
	}); err != nil {
		return nil, err
	}
	return c.Clone(), nil
}

// GetConflict returns a conflict by ID.
func (o *Orchestrator) GetConflict(ctx context.Context, conflictID string) (*conflict.ConflictResolution, error) {
	return o.loadConflict(ctx, conflictID)
}

// ListConflicts returns the conflicts matching filter, oldest first.
func (o *Orchestrator) ListConflicts(ctx context.Context, filter persistence.ConflictFilter) ([]*conflict.ConflictResolution, error) {
	list, err := o.store.ListConflicts(ctx, filter)
	if err != nil {
		return nil, storeError("list conflicts", err)
	}
	return list, nil
}

func (o *Orchestrator) loadConflict(ctx context.Context, conflictID string) (*conflict.ConflictResolution, error) {
	c, err := o.store.GetConflict(ctx, conflictID)
	if err != nil {
		return nil, lookupError(err, types.NewConflictNotFoundError(conflictID), "load conflict")
	}
	return c, nil
}
