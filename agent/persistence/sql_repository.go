package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/BaSui01/agentcoord/types"
)

// agentModel is the row shape of agents.
type agentModel struct {
	ID                 string             `gorm:"primaryKey;size:64"`
	Name               string             `gorm:"size:255"`
	ProjectID          string             `gorm:"size:64;index"`
	OwnerID            string             `gorm:"size:64;index"`
	Status             string             `gorm:"size:32"`
	Role               string             `gorm:"size:128"`
	Expertise          []string           `gorm:"serializer:json"`
	Skills             map[string]float64 `gorm:"serializer:json"`
	ActiveTasks        []string           `gorm:"serializer:json"`
	MaxConcurrentTasks int
	SuccessRate        float64
	CurrentTaskID      string `gorm:"size:64"`
	CurrentActivity    string
	BlockerDescription string
	UpdatedAt          time.Time
	Version            int64
}

func (agentModel) TableName() string { return "agents" }

// taskModel is the row shape of tasks.
type taskModel struct {
	ID           string                 `gorm:"primaryKey;size:64"`
	ProjectID    string                 `gorm:"size:64;index"`
	OwnerID      string                 `gorm:"size:64;index"`
	Title        string                 `gorm:"size:512"`
	Status       string                 `gorm:"size:32"`
	Requirements types.TaskRequirements `gorm:"serializer:json"`
	CreatedAt    time.Time
}

func (taskModel) TableName() string { return "tasks" }

// SQLAgentRepository is a gorm-backed agent repository. Writes use the
// version column for optimistic concurrency.
type SQLAgentRepository struct {
	db      *gorm.DB
	ownerID string
	retries int
}

// NewSQLAgentRepository creates an agent repository. retries bounds
// optimistic retries in ReserveSlot and ReleaseSlot.
func NewSQLAgentRepository(db *gorm.DB, retries int) *SQLAgentRepository {
	if retries <= 0 {
		retries = DefaultStoreConfig().ReserveRetries
	}
	return &SQLAgentRepository{db: db, retries: retries}
}

// AutoMigrate creates or updates the agents table
func (r *SQLAgentRepository) AutoMigrate() error {
	return r.db.AutoMigrate(&agentModel{})
}

// ForUser returns a view restricted to agents owned by userID
func (r *SQLAgentRepository) ForUser(userID string) *SQLAgentRepository {
	return &SQLAgentRepository{db: r.db, ownerID: userID, retries: r.retries}
}

func (r *SQLAgentRepository) scoped(ctx context.Context) *gorm.DB {
	db := r.db.WithContext(ctx)
	if r.ownerID != "" {
		db = db.Where("owner_id = ?", r.ownerID)
	}
	return db
}

// Get retrieves an agent by ID
func (r *SQLAgentRepository) Get(ctx context.Context, agentID string) (*types.Agent, error) {
	var m agentModel
	err := r.scoped(ctx).Where("id = ?", agentID).Take(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get agent: %w", err)
	}
	return m.toDomain(), nil
}

// GetAll returns every visible agent ordered by ID
func (r *SQLAgentRepository) GetAll(ctx context.Context) ([]*types.Agent, error) {
	return r.find(r.scoped(ctx))
}

// GetByProject returns the visible agents of a project ordered by ID
func (r *SQLAgentRepository) GetByProject(ctx context.Context, projectID string) ([]*types.Agent, error) {
	return r.find(r.scoped(ctx).Where("project_id = ?", projectID))
}

func (r *SQLAgentRepository) find(q *gorm.DB) ([]*types.Agent, error) {
	var rows []agentModel
	if err := q.Order("id ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list agents: %w", err)
	}
	result := make([]*types.Agent, 0, len(rows))
	for i := range rows {
		result = append(result, rows[i].toDomain())
	}
	return result, nil
}

// Save inserts an agent or updates it if agent.Version matches the stored
// version. A stale version yields ErrVersionClash. A zero version skips the check.
func (r *SQLAgentRepository) Save(ctx context.Context, agent *types.Agent) error {
	if agent == nil || agent.ID == "" {
		return ErrInvalidInput
	}
	stamp(r.ownerID, &agent.OwnerID)
	if !visible(r.ownerID, agent.OwnerID) {
		return ErrInvalidInput
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing agentModel
		err := tx.Where("id = ?", agent.ID).Take(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			m := toAgentModel(agent)
			m.Version = 1
			m.UpdatedAt = time.Now()
			if err := tx.Create(&m).Error; err != nil {
				return fmt.Errorf("failed to create agent: %w", err)
			}
			agent.Version, agent.UpdatedAt = m.Version, m.UpdatedAt
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to load agent: %w", err)
		}
		if !visible(r.ownerID, existing.OwnerID) {
			return ErrNotFound
		}
		if agent.Version != 0 && agent.Version != existing.Version {
			return ErrVersionClash
		}

		m := toAgentModel(agent)
		m.Version = existing.Version + 1
		m.UpdatedAt = time.Now()
		res := tx.Model(&agentModel{}).
			Where("id = ? AND version = ?", agent.ID, existing.Version).
			Select("*").Omit("id").
			Updates(&m)
		if res.Error != nil {
			return fmt.Errorf("failed to update agent: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrVersionClash
		}
		agent.Version, agent.UpdatedAt = m.Version, m.UpdatedAt
		return nil
	})
}

// ReserveSlot checks availability and adds taskID to the agent's active set,
// retrying when a concurrent writer wins the version race.
func (r *SQLAgentRepository) ReserveSlot(ctx context.Context, agentID, taskID string) (*types.Agent, error) {
	return r.casUpdate(ctx, agentID, func(a *types.Agent) (bool, error) {
		if a.HasTask(taskID) {
			return false, nil
		}
		if !a.IsAvailable() {
			return false, types.NewAgentUnavailableError(agentID)
		}
		a.StartTask(taskID)
		return true, nil
	})
}

// ReleaseSlot removes taskID from the agent's active set
func (r *SQLAgentRepository) ReleaseSlot(ctx context.Context, agentID, taskID string) (*types.Agent, error) {
	return r.casUpdate(ctx, agentID, func(a *types.Agent) (bool, error) {
		return a.ReleaseTask(taskID), nil
	})
}

// casUpdate applies mutate to a fresh copy of the agent and saves it,
// retrying on ErrVersionClash. mutate reports whether anything changed.
func (r *SQLAgentRepository) casUpdate(ctx context.Context, agentID string, mutate func(*types.Agent) (bool, error)) (*types.Agent, error) {
	for attempt := 0; attempt < r.retries; attempt++ {
		agent, err := r.Get(ctx, agentID)
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

		err = r.Save(ctx, agent)
		if errors.Is(err, ErrVersionClash) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return agent, nil
	}
	return nil, types.Errorf(types.ErrStoreUnavailable,
		"agent %s is under contention, gave up after %d attempts", agentID, r.retries).
		WithCause(ErrVersionClash).WithRetryable(true)
}

// SQLTaskRepository is a gorm-backed task repository
type SQLTaskRepository struct {
	db      *gorm.DB
	ownerID string
}

// NewSQLTaskRepository creates a task repository
func NewSQLTaskRepository(db *gorm.DB) *SQLTaskRepository {
	return &SQLTaskRepository{db: db}
}

// AutoMigrate creates or updates the tasks table
func (r *SQLTaskRepository) AutoMigrate() error {
	return r.db.AutoMigrate(&taskModel{})
}

// ForUser returns a view restricted to tasks owned by userID
func (r *SQLTaskRepository) ForUser(userID string) *SQLTaskRepository {
	return &SQLTaskRepository{db: r.db, ownerID: userID}
}

// Get retrieves a task by ID
func (r *SQLTaskRepository) Get(ctx context.Context, taskID string) (*types.Task, error) {
	q := r.db.WithContext(ctx).Where("id = ?", taskID)
	if r.ownerID != "" {
		q = q.Where("owner_id = ?", r.ownerID)
	}

	var m taskModel
	err := q.Take(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	return m.toDomain(), nil
}

// Save inserts or replaces a task
func (r *SQLTaskRepository) Save(ctx context.Context, task *types.Task) error {
	if task == nil || task.ID == "" {
		return ErrInvalidInput
	}
	stamp(r.ownerID, &task.OwnerID)
	if !visible(r.ownerID, task.OwnerID) {
		return ErrInvalidInput
	}
	task.CreatedAt = nowIfZero(task.CreatedAt)

	m := toTaskModel(task)
	if err := r.db.WithContext(ctx).Save(&m).Error; err != nil {
		return fmt.Errorf("failed to save task: %w", err)
	}
	return nil
}

func toAgentModel(a *types.Agent) agentModel {
	return agentModel{
		ID:                 a.ID,
		Name:               a.Name,
		ProjectID:          a.ProjectID,
		OwnerID:            a.OwnerID,
		Status:             string(a.Status),
		Role:               a.Role,
		Expertise:          a.Expertise,
		Skills:             a.Skills,
		ActiveTasks:        nonNilStrings(a.ActiveTasks),
		MaxConcurrentTasks: a.MaxConcurrentTasks,
		SuccessRate:        a.SuccessRate,
		CurrentTaskID:      a.CurrentTaskID,
		CurrentActivity:    a.CurrentActivity,
		BlockerDescription: a.BlockerDescription,
		UpdatedAt:          a.UpdatedAt,
		Version:            a.Version,
	}
}

func (m *agentModel) toDomain() *types.Agent {
	return &types.Agent{
		ID:                 m.ID,
		Name:               m.Name,
		ProjectID:          m.ProjectID,
		OwnerID:            m.OwnerID,
		Status:             types.AgentStatus(m.Status),
		Role:               m.Role,
		Expertise:          m.Expertise,
		Skills:             m.Skills,
		ActiveTasks:        nonNilStrings(m.ActiveTasks),
		MaxConcurrentTasks: m.MaxConcurrentTasks,
		SuccessRate:        m.SuccessRate,
		CurrentTaskID:      m.CurrentTaskID,
		CurrentActivity:    m.CurrentActivity,
		BlockerDescription: m.BlockerDescription,
		UpdatedAt:          m.UpdatedAt,
		Version:            m.Version,
	}
}

func toTaskModel(t *types.Task) taskModel {
	return taskModel{
		ID:           t.ID,
		ProjectID:    t.ProjectID,
		OwnerID:      t.OwnerID,
		Title:        t.Title,
		Status:       string(t.Status),
		Requirements: t.Requirements,
		CreatedAt:    t.CreatedAt,
	}
}

func (m *taskModel) toDomain() *types.Task {
	return &types.Task{
		ID:           m.ID,
		ProjectID:    m.ProjectID,
		OwnerID:      m.OwnerID,
		Title:        m.Title,
		Status:       types.TaskStatus(m.Status),
		Requirements: m.Requirements,
		CreatedAt:    m.CreatedAt,
	}
}
