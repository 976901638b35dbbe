// =============================================================================
// 📦 测试数据工厂 - Agent 与任务测试数据
// =============================================================================
// 提供预定义的 Agent、任务和团队，用于协调引擎测试
// =============================================================================
package fixtures

import (
	"fmt"
	"time"

	"github.com/BaSui01/agentcoord/types"
)

// DefaultProject 默认项目 ID
const DefaultProject = "project-alpha"

// =============================================================================
// 🤖 Agent 工厂
// =============================================================================

// AgentOption 修改 Agent 的选项
type AgentOption func(*types.Agent)

// NewAgent 创建一个可用的 Agent，默认容量 5、成功率 80%
func NewAgent(id string, opts ...AgentOption) *types.Agent {
	a := &types.Agent{
		ID:                 id,
		Name:               id,
		ProjectID:          DefaultProject,
		Status:             types.AgentStatusAvailable,
		Role:               "developer",
		MaxConcurrentTasks: 5,
		SuccessRate:        80,
		ActiveTasks:        []string{},
		UpdatedAt:          time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// WithProject 设置项目
func WithProject(projectID string) AgentOption {
	return func(a *types.Agent) { a.ProjectID = projectID }
}

// WithOwner 设置所属用户
func WithOwner(userID string) AgentOption {
	return func(a *types.Agent) { a.OwnerID = userID }
}

// WithRole 设置角色
func WithRole(role string) AgentOption {
	return func(a *types.Agent) { a.Role = role }
}

// WithExpertise 设置专长
func WithExpertise(expertise ...string) AgentOption {
	return func(a *types.Agent) { a.Expertise = expertise }
}

// WithSkills 设置技能熟练度
func WithSkills(skills map[string]float64) AgentOption {
	return func(a *types.Agent) { a.Skills = skills }
}

// WithCapacity 设置最大并发任务数
func WithCapacity(n int) AgentOption {
	return func(a *types.Agent) { a.MaxConcurrentTasks = n }
}

// WithSuccessRate 设置成功率（百分比）
func WithSuccessRate(rate float64) AgentOption {
	return func(a *types.Agent) { a.SuccessRate = rate }
}

// WithStatus 设置状态
func WithStatus(status types.AgentStatus) AgentOption {
	return func(a *types.Agent) { a.Status = status }
}

// WithActiveTasks 设置活跃任务
func WithActiveTasks(taskIDs ...string) AgentOption {
	return func(a *types.Agent) { a.ActiveTasks = append([]string{}, taskIDs...) }
}

// WithLoad 生成 n 个占位活跃任务（id 形如 "<agent>-load-1"）
func WithLoad(n int) AgentOption {
	return func(a *types.Agent) {
		a.ActiveTasks = make([]string, 0, n)
		for i := 1; i <= n; i++ {
			a.ActiveTasks = append(a.ActiveTasks, fmt.Sprintf("%s-load-%d", a.ID, i))
		}
	}
}

// BackendDeveloper 后端开发 Agent
func BackendDeveloper(id string, opts ...AgentOption) *types.Agent {
	base := []AgentOption{
		WithRole("backend_developer"),
		WithExpertise("go", "postgres", "redis"),
		WithSkills(map[string]float64{"go": 0.9, "sql": 0.8}),
		WithSuccessRate(90),
	}
	return NewAgent(id, append(base, opts...)...)
}

// FrontendDeveloper 前端开发 Agent
func FrontendDeveloper(id string, opts ...AgentOption) *types.Agent {
	base := []AgentOption{
		WithRole("frontend_developer"),
		WithExpertise("typescript", "react", "css"),
		WithSkills(map[string]float64{"typescript": 0.9, "css": 0.7}),
		WithSuccessRate(85),
	}
	return NewAgent(id, append(base, opts...)...)
}

// Tester 测试 Agent
func Tester(id string, opts ...AgentOption) *types.Agent {
	base := []AgentOption{
		WithRole("tester"),
		WithExpertise("testing", "go"),
		WithSkills(map[string]float64{"go": 0.6, "testing": 0.9}),
		WithSuccessRate(75),
	}
	return NewAgent(id, append(base, opts...)...)
}

// =============================================================================
// 📋 任务工厂
// =============================================================================

// TaskOption 修改任务的选项
type TaskOption func(*types.Task)

// NewTask 创建一个无要求的待办任务
func NewTask(id string, opts ...TaskOption) *types.Task {
	t := &types.Task{
		ID:        id,
		ProjectID: DefaultProject,
		Title:     "task " + id,
		Status:    types.TaskStatusTodo,
		CreatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// WithTaskProject 设置任务项目
func WithTaskProject(projectID string) TaskOption {
	return func(t *types.Task) { t.ProjectID = projectID }
}

// WithTaskOwner 设置任务所属用户
func WithTaskOwner(userID string) TaskOption {
	return func(t *types.Task) { t.OwnerID = userID }
}

// WithRequirements 设置任务要求
func WithRequirements(req types.TaskRequirements) TaskOption {
	return func(t *types.Task) { t.Requirements = req }
}

// BackendTask 需要后端能力的任务
func BackendTask(id string, opts ...TaskOption) *types.Task {
	base := []TaskOption{WithRequirements(types.TaskRequirements{
		Role:      "backend_developer",
		Expertise: []string{"go", "postgres"},
		Skills:    map[string]float64{"go": 0.8},
	})}
	return NewTask(id, append(base, opts...)...)
}

// FrontendTask 需要前端能力的任务
func FrontendTask(id string, opts ...TaskOption) *types.Task {
	base := []TaskOption{WithRequirements(types.TaskRequirements{
		Role:      "frontend_developer",
		Expertise: []string{"react", "typescript"},
		Skills:    map[string]float64{"typescript": 0.8},
	})}
	return NewTask(id, append(base, opts...)...)
}

// =============================================================================
// 👥 团队
// =============================================================================

// Team 返回一个三人团队：后端、前端、测试
func Team() []*types.Agent {
	return []*types.Agent{
		BackendDeveloper("backend-1"),
		FrontendDeveloper("frontend-1"),
		Tester("tester-1"),
	}
}

// OverloadedTeam 返回一个负载失衡的团队：
// busy-1、busy-2 各 9/10，idle-1、idle-2 各 1/10
func OverloadedTeam() []*types.Agent {
	return []*types.Agent{
		NewAgent("busy-1", WithCapacity(10), WithLoad(9)),
		NewAgent("busy-2", WithCapacity(10), WithLoad(9)),
		NewAgent("idle-1", WithCapacity(10), WithLoad(1)),
		NewAgent("idle-2", WithCapacity(10), WithLoad(1)),
	}
}
