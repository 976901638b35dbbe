package events

import "time"

// EventType 事件类型
type EventType string

const (
	TypeAgentAssigned           EventType = "agent_assigned"
	TypeWorkHandoffRequested    EventType = "work_handoff_requested"
	TypeWorkHandoffAccepted     EventType = "work_handoff_accepted"
	TypeWorkHandoffRejected     EventType = "work_handoff_rejected"
	TypeConflictDetected        EventType = "conflict_detected"
	TypeConflictResolved        EventType = "conflict_resolved"
	TypeAgentStatusBroadcast    EventType = "agent_status_broadcast"
	TypeAgentWorkloadRebalanced EventType = "agent_workload_rebalanced"
)

// AllTypes 返回全部事件类型，顺序固定
func AllTypes() []EventType {
	return []EventType{
		TypeAgentAssigned,
		TypeWorkHandoffRequested,
		TypeWorkHandoffAccepted,
		TypeWorkHandoffRejected,
		TypeConflictDetected,
		TypeConflictResolved,
		TypeAgentStatusBroadcast,
		TypeAgentWorkloadRebalanced,
	}
}

// Event 领域事件接口。
// 变体集合是封闭的：只有本包内定义的类型可以实现该接口。
type Event interface {
	Type() EventType
	Timestamp() time.Time
	isEvent()
}

// AgentAssigned 任务分配事件
type AgentAssigned struct {
	AssignmentID     string     `json:"assignment_id"`
	TaskID           string     `json:"task_id"`
	AgentID          string     `json:"agent_id"`
	AssignedBy       string     `json:"assigned_by,omitempty"`
	Role             string     `json:"role"`
	Responsibilities []string   `json:"responsibilities,omitempty"`
	EstimatedHours   *float64   `json:"estimated_hours,omitempty"`
	DueDate          *time.Time `json:"due_date,omitempty"`
	OccurredAt       time.Time  `json:"occurred_at"`
}

func (AgentAssigned) Type() EventType        { return TypeAgentAssigned }
func (e AgentAssigned) Timestamp() time.Time { return e.OccurredAt }
func (AgentAssigned) isEvent()               {}

// WorkHandoffRequested 交接发起事件
type WorkHandoffRequested struct {
	HandoffID   string    `json:"handoff_id"`
	FromAgentID string    `json:"from_agent_id"`
	ToAgentID   string    `json:"to_agent_id"`
	TaskID      string    `json:"task_id"`
	WorkSummary string    `json:"work_summary"`
	OccurredAt  time.Time `json:"occurred_at"`
}

func (WorkHandoffRequested) Type() EventType        { return TypeWorkHandoffRequested }
func (e WorkHandoffRequested) Timestamp() time.Time { return e.OccurredAt }
func (WorkHandoffRequested) isEvent()               {}

// WorkHandoffAccepted 交接接受事件
type WorkHandoffAccepted struct {
	HandoffID    string    `json:"handoff_id"`
	FromAgentID  string    `json:"from_agent_id"`
	ToAgentID    string    `json:"to_agent_id"`
	TaskID       string    `json:"task_id"`
	AssignmentID string    `json:"assignment_id"`
	Notes        string    `json:"notes,omitempty"`
	OccurredAt   time.Time `json:"occurred_at"`
}

func (WorkHandoffAccepted) Type() EventType        { return TypeWorkHandoffAccepted }
func (e WorkHandoffAccepted) Timestamp() time.Time { return e.OccurredAt }
func (WorkHandoffAccepted) isEvent()               {}

// WorkHandoffRejected 交接拒绝事件
type WorkHandoffRejected struct {
	HandoffID   string    `json:"handoff_id"`
	FromAgentID string    `json:"from_agent_id"`
	ToAgentID   string    `json:"to_agent_id"`
	TaskID      string    `json:"task_id"`
	Reason      string    `json:"reason"`
	OccurredAt  time.Time `json:"occurred_at"`
}

func (WorkHandoffRejected) Type() EventType        { return TypeWorkHandoffRejected }
func (e WorkHandoffRejected) Timestamp() time.Time { return e.OccurredAt }
func (WorkHandoffRejected) isEvent()               {}

// ConflictDetected 冲突检测事件
type ConflictDetected struct {
	ConflictID     string    `json:"conflict_id"`
	ConflictType   string    `json:"conflict_type"`
	InvolvedAgents []string  `json:"involved_agents"`
	TaskID         string    `json:"task_id,omitempty"`
	Description    string    `json:"description"`
	OccurredAt     time.Time `json:"occurred_at"`
}

func (ConflictDetected) Type() EventType        { return TypeConflictDetected }
func (e ConflictDetected) Timestamp() time.Time { return e.OccurredAt }
func (ConflictDetected) isEvent()               {}

// ConflictResolved 冲突解决事件
type ConflictResolved struct {
	ConflictID string    `json:"conflict_id"`
	TaskID     string    `json:"task_id,omitempty"`
	Strategy   string    `json:"strategy"`
	ResolvedBy string    `json:"resolved_by"`
	Details    string    `json:"details,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

func (ConflictResolved) Type() EventType        { return TypeConflictResolved }
func (e ConflictResolved) Timestamp() time.Time { return e.OccurredAt }
func (ConflictResolved) isEvent()               {}

// AgentStatusBroadcast Agent 状态广播事件
type AgentStatusBroadcast struct {
	AgentID            string    `json:"agent_id"`
	Status             string    `json:"status"`
	CurrentTaskID      string    `json:"current_task_id,omitempty"`
	CurrentActivity    string    `json:"current_activity,omitempty"`
	BlockerDescription string    `json:"blocker_description,omitempty"`
	WorkloadPercentage float64   `json:"workload_percentage"`
	OccurredAt         time.Time `json:"occurred_at"`
}

func (AgentStatusBroadcast) Type() EventType        { return TypeAgentStatusBroadcast }
func (e AgentStatusBroadcast) Timestamp() time.Time { return e.OccurredAt }
func (AgentStatusBroadcast) isEvent()               {}

// AgentWorkloadRebalanced 负载再平衡完成事件
type AgentWorkloadRebalanced struct {
	RebalanceID     string            `json:"rebalance_id"`
	ProjectID       string            `json:"project_id"`
	InitiatedBy     string            `json:"initiated_by"`
	AgentsAffected  []string          `json:"agents_affected"`
	TasksReassigned map[string]string `json:"tasks_reassigned"`
	Reason          string            `json:"reason"`
	WorkloadBefore  map[string]int    `json:"workload_before"`
	WorkloadAfter   map[string]int    `json:"workload_after"`
	OccurredAt      time.Time         `json:"occurred_at"`
}

func (AgentWorkloadRebalanced) Type() EventType        { return TypeAgentWorkloadRebalanced }
func (e AgentWorkloadRebalanced) Timestamp() time.Time { return e.OccurredAt }
func (AgentWorkloadRebalanced) isEvent()               {}
