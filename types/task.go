package types

import (
	"slices"
	"time"
)

// TaskStatus is the lifecycle state of a task as tracked by its repository.
type TaskStatus string

const (
	TaskStatusTodo       TaskStatus = "todo"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusDone       TaskStatus = "done"
)

// TaskRequirements describes what a task asks of the agent working on it.
type TaskRequirements struct {
	Role      string             `json:"role,omitempty"`
	Expertise []string           `json:"expertise,omitempty"`
	Skills    map[string]float64 `json:"skills,omitempty"`
}

// Task is a unit of work. Its lifecycle belongs to the task repository.
type Task struct {
	ID           string           `json:"id"`
	ProjectID    string           `json:"project_id"`
	OwnerID      string           `json:"owner_id,omitempty"`
	Title        string           `json:"title"`
	Status       TaskStatus       `json:"status"`
	Requirements TaskRequirements `json:"requirements"`
	CreatedAt    time.Time        `json:"created_at"`
}

// Clone returns a deep copy.
func (t *Task) Clone() *Task {
	if t == nil {
		return nil
	}
	c := *t
	c.Requirements.Expertise = slices.Clone(t.Requirements.Expertise)
	if t.Requirements.Skills != nil {
		c.Requirements.Skills = make(map[string]float64, len(t.Requirements.Skills))
		for k, v := range t.Requirements.Skills {
			c.Requirements.Skills[k] = v
		}
	}
	return &c
}
