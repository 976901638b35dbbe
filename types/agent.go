package types

import (
	"slices"
	"time"
)

// AgentStatus is the coarse availability state reported by an agent.
type AgentStatus string

const (
	AgentStatusAvailable   AgentStatus = "available"
	AgentStatusBusy        AgentStatus = "busy"
	AgentStatusUnavailable AgentStatus = "unavailable"
	AgentStatusBlocked     AgentStatus = "blocked"
	AgentStatusOffline     AgentStatus = "offline"
)

// Valid reports whether s is a known status.
func (s AgentStatus) Valid() bool {
	switch s {
	case AgentStatusAvailable, AgentStatusBusy, AgentStatusUnavailable, AgentStatusBlocked, AgentStatusOffline:
		return true
	}
	return false
}

// AcceptsWork reports whether an agent in this status may receive new tasks.
func (s AgentStatus) AcceptsWork() bool {
	return s == AgentStatusAvailable || s == AgentStatusBusy
}

// Agent is a worker able to take tasks. The record is owned by the agent
// repository; the coordination engine only reads it and mutates ActiveTasks
// and the status fields.
type Agent struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	ProjectID string      `json:"project_id"`
	OwnerID   string      `json:"owner_id,omitempty"`
	Status    AgentStatus `json:"status"`

	Role      string             `json:"role,omitempty"`
	Expertise []string           `json:"expertise,omitempty"`
	Skills    map[string]float64 `json:"skills,omitempty"`

	// ActiveTasks is an ordered set of task IDs currently held by the agent.
	ActiveTasks        []string `json:"active_tasks"`
	MaxConcurrentTasks int      `json:"max_concurrent_tasks"`
	// SuccessRate is expressed in percent (0-100).
	SuccessRate float64 `json:"success_rate"`

	CurrentTaskID      string `json:"current_task_id,omitempty"`
	CurrentActivity    string `json:"current_activity,omitempty"`
	BlockerDescription string `json:"blocker_description,omitempty"`

	UpdatedAt time.Time `json:"updated_at"`
	Version   int64     `json:"version"`
}

// IsAvailable reports whether the agent can take another task right now.
func (a *Agent) IsAvailable() bool {
	return a.Status.AcceptsWork() && len(a.ActiveTasks) < a.MaxConcurrentTasks
}

// WorkloadPercentage returns the share of capacity in use, in percent.
// An agent without capacity is reported as fully loaded.
func (a *Agent) WorkloadPercentage() float64 {
	return LoadPercentage(len(a.ActiveTasks), a.MaxConcurrentTasks)
}

// HasTask reports whether taskID is in the active set.
func (a *Agent) HasTask(taskID string) bool {
	return slices.Contains(a.ActiveTasks, taskID)
}

// StartTask adds taskID to the active set. Adding a task twice is a no-op.
func (a *Agent) StartTask(taskID string) {
	if a.HasTask(taskID) {
		return
	}
	a.ActiveTasks = append(a.ActiveTasks, taskID)
}

// ReleaseTask removes taskID from the active set and reports whether it was present.
func (a *Agent) ReleaseTask(taskID string) bool {
	idx := slices.Index(a.ActiveTasks, taskID)
	if idx < 0 {
		return false
	}
	a.ActiveTasks = slices.Delete(a.ActiveTasks, idx, idx+1)
	if a.CurrentTaskID == taskID {
		a.CurrentTaskID = ""
	}
	return true
}

// Clone returns a deep copy.
func (a *Agent) Clone() *Agent {
	if a == nil {
		return nil
	}
	c := *a
	c.Expertise = slices.Clone(a.Expertise)
	c.ActiveTasks = slices.Clone(a.ActiveTasks)
	if a.Skills != nil {
		c.Skills = make(map[string]float64, len(a.Skills))
		for k, v := range a.Skills {
			c.Skills[k] = v
		}
	}
	return &c
}

// LoadPercentage converts a task count into a percentage of capacity.
func LoadPercentage(tasks, capacity int) float64 {
	if capacity <= 0 {
		return 100
	}
	return float64(tasks) / float64(capacity) * 100
}
