package types

import (
	"slices"
	"time"
)

// RoleContinuedWork is the assignment role used when a handoff is accepted.
const RoleContinuedWork = "continued_work"

// WorkAssignment records that a task was given to an agent. Assignments are
// append-only; a later assignment of the same task does not remove earlier ones.
type WorkAssignment struct {
	ID                string     `json:"id"`
	TaskID            string     `json:"task_id"`
	AssignedAgentID   string     `json:"assigned_agent_id"`
	AssignedByAgentID string     `json:"assigned_by_agent_id,omitempty"`
	AssignedAt        time.Time  `json:"assigned_at"`
	Role              string     `json:"role"`
	Responsibilities  []string   `json:"responsibilities,omitempty"`
	EstimatedHours    *float64   `json:"estimated_hours,omitempty"`
	DueDate           *time.Time `json:"due_date,omitempty"`
	OwnerID           string     `json:"owner_id,omitempty"`
}

// Clone returns a deep copy.
func (w *WorkAssignment) Clone() *WorkAssignment {
	if w == nil {
		return nil
	}
	c := *w
	c.Responsibilities = slices.Clone(w.Responsibilities)
	if w.EstimatedHours != nil {
		h := *w.EstimatedHours
		c.EstimatedHours = &h
	}
	if w.DueDate != nil {
		d := *w.DueDate
		c.DueDate = &d
	}
	return &c
}
