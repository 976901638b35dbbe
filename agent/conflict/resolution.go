package conflict

import (
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/BaSui01/agentcoord/types"
)

// ConflictType classifies what the involved agents are contending over.
type ConflictType string

const (
	TypeResourceContention ConflictType = "resource_contention"
	TypeDuplicateWork      ConflictType = "duplicate_work"
	TypeTaskExecution      ConflictType = "task_execution"
	TypePriority           ConflictType = "priority"
	TypeCapability         ConflictType = "capability"
	TypeDecision           ConflictType = "decision"
)

// Strategy names a resolution approach. Any non-empty value is accepted;
// the constants below are the ones the engine knows by name.
type Strategy string

const (
	StrategyConsensus       Strategy = "consensus"
	StrategyHierarchical    Strategy = "hierarchical"
	StrategyMediation       Strategy = "mediation"
	StrategyCompromise      Strategy = "compromise"
	StrategyFallback        Strategy = "fallback"
	StrategyFirstComeServed Strategy = "first_come_first_served"
	StrategyReassign        Strategy = "reassign"
)

// Status is the lifecycle state of a conflict.
type Status string

const (
	StatusDetected Status = "detected"
	StatusResolved Status = "resolved"
)

// SystemResolver is recorded as the resolver of auto-resolved conflicts.
const SystemResolver = "system"

// ConflictResolution is a detected conflict between agents and, once
// resolved, how it was settled.
type ConflictResolution struct {
	ID                string       `json:"id"`
	Type              ConflictType `json:"type"`
	InvolvedAgents    []string     `json:"involved_agents"`
	TaskID            string       `json:"task_id,omitempty"`
	DetectedAt        time.Time    `json:"detected_at"`
	Description       string       `json:"description"`
	Status            Status       `json:"status"`
	Strategy          Strategy     `json:"strategy,omitempty"`
	ResolvedBy        string       `json:"resolved_by,omitempty"`
	ResolutionDetails string       `json:"resolution_details,omitempty"`
	ResolvedAt        *time.Time   `json:"resolved_at,omitempty"`
	OwnerID           string       `json:"owner_id,omitempty"`
}

// Report carries the fields needed to record a conflict.
type Report struct {
	TaskID         string
	Type           ConflictType
	InvolvedAgents []string
	Description    string
	OwnerID        string
}

// Detect validates r and returns a conflict in the detected state.
// Involved agents are de-duplicated, keeping first occurrence order.
func Detect(r Report, now time.Time) (*ConflictResolution, error) {
	if strings.TrimSpace(string(r.Type)) == "" {
		return nil, types.NewInvalidInputError("conflict type is required")
	}
	agents := dedupe(r.InvolvedAgents)
	if len(agents) == 0 {
		return nil, types.NewInvalidInputError("a conflict must involve at least one agent")
	}

	return &ConflictResolution{
		ID:             uuid.New().String(),
		Type:           r.Type,
		InvolvedAgents: agents,
		TaskID:         r.TaskID,
		DetectedAt:     now,
		Description:    r.Description,
		Status:         StatusDetected,
		OwnerID:        r.OwnerID,
	}, nil
}

// IsResolved reports whether a resolution has been recorded.
func (c *ConflictResolution) IsResolved() bool {
	return c.Status == StatusResolved
}

// Involves reports whether agentID is one of the involved agents.
func (c *ConflictResolution) Involves(agentID string) bool {
	return slices.Contains(c.InvolvedAgents, agentID)
}

// Resolve records the resolution. A conflict is resolved at most once.
func (c *ConflictResolution) Resolve(strategy Strategy, resolvedBy, details string, at time.Time) error {
	if strings.TrimSpace(string(strategy)) == "" {
		return types.NewInvalidInputError("a resolution strategy is required")
	}
	if c.IsResolved() {
		return types.Errorf(types.ErrInvalidTransition,
			"conflict %s was already resolved by %s", c.ID, c.ResolvedBy)
	}

	c.Status = StatusResolved
	c.Strategy = strategy
	c.ResolvedBy = resolvedBy
	c.ResolutionDetails = details
	c.ResolvedAt = &at
	return nil
}

// AutoResolutionDetails is the detail text recorded by automatic resolution.
func AutoResolutionDetails(strategy Strategy) string {
	return "Auto-resolved using " + string(strategy)
}

// Clone returns a deep copy.
func (c *ConflictResolution) Clone() *ConflictResolution {
	if c == nil {
		return nil
	}
	cp := *c
	cp.InvolvedAgents = slices.Clone(c.InvolvedAgents)
	if c.ResolvedAt != nil {
		at := *c.ResolvedAt
		cp.ResolvedAt = &at
	}
	return &cp
}

func dedupe(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
