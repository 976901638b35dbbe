package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/BaSui01/agentcoord/agent/conflict"
	"github.com/BaSui01/agentcoord/agent/handoff"
	"github.com/BaSui01/agentcoord/types"
)

// assignmentModel is the row shape of work_assignments.
type assignmentModel struct {
	ID                string    `gorm:"primaryKey;size:64"`
	TaskID            string    `gorm:"size:64;index"`
	AssignedAgentID   string    `gorm:"size:64;index"`
	AssignedByAgentID string    `gorm:"size:64"`
	AssignedAt        time.Time `gorm:"index"`
	Role              string    `gorm:"size:128"`
	Responsibilities  []string  `gorm:"serializer:json"`
	EstimatedHours    *float64
	DueDate           *time.Time
	OwnerID           string `gorm:"size:64;index"`
}

func (assignmentModel) TableName() string { return "work_assignments" }

// handoffModel is the row shape of work_handoffs.
type handoffModel struct {
	ID             string    `gorm:"primaryKey;size:64"`
	FromAgentID    string    `gorm:"size:64;index"`
	ToAgentID      string    `gorm:"size:64;index"`
	TaskID         string    `gorm:"size:64;index"`
	InitiatedAt    time.Time `gorm:"index"`
	WorkSummary    string
	CompletedItems []string `gorm:"serializer:json"`
	RemainingItems []string `gorm:"serializer:json"`
	HandoffNotes   string
	Status         string `gorm:"size:32;index"`
	RespondedAt    *time.Time
	ResponseNotes  string
	OwnerID        string `gorm:"size:64;index"`
}

func (handoffModel) TableName() string { return "work_handoffs" }

// conflictModel is the row shape of conflict_resolutions.
type conflictModel struct {
	ID                string    `gorm:"primaryKey;size:64"`
	Type              string    `gorm:"size:64"`
	InvolvedAgents    []string  `gorm:"serializer:json"`
	TaskID            string    `gorm:"size:64;index"`
	DetectedAt        time.Time `gorm:"index"`
	Description       string
	Status            string `gorm:"size:32;index"`
	Strategy          string `gorm:"size:64"`
	ResolvedBy        string `gorm:"size:64"`
	ResolutionDetails string
	ResolvedAt        *time.Time
	OwnerID           string `gorm:"size:64;index"`
}

func (conflictModel) TableName() string { return "conflict_resolutions" }

// SQLCoordinationStore is a gorm-backed implementation of CoordinationStore.
// The schema is created by internal/migration; AutoMigrate is available for tests.
type SQLCoordinationStore struct {
	db      *gorm.DB
	ownerID string
}

// NewSQLCoordinationStore creates a store on an open gorm connection
func NewSQLCoordinationStore(db *gorm.DB) *SQLCoordinationStore {
	return &SQLCoordinationStore{db: db}
}

// AutoMigrate creates or updates the coordination tables
func (s *SQLCoordinationStore) AutoMigrate() error {
	return s.db.AutoMigrate(&assignmentModel{}, &handoffModel{}, &conflictModel{})
}

// ForUser returns a view restricted to records owned by userID
func (s *SQLCoordinationStore) ForUser(userID string) *SQLCoordinationStore {
	return &SQLCoordinationStore{db: s.db, ownerID: userID}
}

// Close is a no-op; the connection pool is owned by the caller.
func (s *SQLCoordinationStore) Close() error {
	return nil
}

// Ping checks if the database is reachable
func (s *SQLCoordinationStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *SQLCoordinationStore) scoped(ctx context.Context) *gorm.DB {
	db := s.db.WithContext(ctx)
	if s.ownerID != "" {
		db = db.Where("owner_id = ?", s.ownerID)
	}
	return db
}

// SaveAssignment appends an assignment. An existing ID yields ErrAlreadyExists.
func (s *SQLCoordinationStore) SaveAssignment(ctx context.Context, a *types.WorkAssignment) error {
	if a == nil {
		return ErrInvalidInput
	}
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	stamp(s.ownerID, &a.OwnerID)
	if !visible(s.ownerID, a.OwnerID) {
		return ErrInvalidInput
	}
	a.AssignedAt = nowIfZero(a.AssignedAt)
	m := toAssignmentModel(a)

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&assignmentModel{}).Where("id = ?", a.ID).Count(&count).Error; err != nil {
			return fmt.Errorf("failed to check assignment: %w", err)
		}
		if count > 0 {
			return ErrAlreadyExists
		}
		if err := tx.Create(&m).Error; err != nil {
			return fmt.Errorf("failed to save assignment: %w", err)
		}
		return nil
	})
}

// ListAssignments returns assignments matching filter, oldest first
func (s *SQLCoordinationStore) ListAssignments(ctx context.Context, filter AssignmentFilter) ([]*types.WorkAssignment, error) {
	q := s.scoped(ctx).Model(&assignmentModel{})
	if filter.AgentID != "" {
		q = q.Where("assigned_agent_id = ?", filter.AgentID)
	}
	if filter.TaskID != "" {
		q = q.Where("task_id = ?", filter.TaskID)
	}

	var rows []assignmentModel
	if err := q.Order("assigned_at ASC").Order("id ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list assignments: %w", err)
	}

	result := make([]*types.WorkAssignment, 0, len(rows))
	for i := range rows {
		result = append(result, rows[i].toDomain())
	}
	return result, nil
}

// SaveHandoff inserts or updates a handoff
func (s *SQLCoordinationStore) SaveHandoff(ctx context.Context, h *handoff.WorkHandoff) error {
	if h == nil {
		return ErrInvalidInput
	}
	if h.ID == "" {
		h.ID = uuid.New().String()
	}
	stamp(s.ownerID, &h.OwnerID)
	if !visible(s.ownerID, h.OwnerID) {
		return ErrInvalidInput
	}
	h.InitiatedAt = nowIfZero(h.InitiatedAt)
	m := toHandoffModel(h)

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.checkOwner(tx, &handoffModel{}, h.ID); err != nil {
			return err
		}
		if err := tx.Save(&m).Error; err != nil {
			return fmt.Errorf("failed to save handoff: %w", err)
		}
		return nil
	})
}

// GetHandoff retrieves a handoff by ID
func (s *SQLCoordinationStore) GetHandoff(ctx context.Context, id string) (*handoff.WorkHandoff, error) {
	var m handoffModel
	err := s.scoped(ctx).Where("id = ?", id).Take(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get handoff: %w", err)
	}
	return m.toDomain(), nil
}

// ListHandoffs returns handoffs matching filter, oldest first
func (s *SQLCoordinationStore) ListHandoffs(ctx context.Context, filter HandoffFilter) ([]*handoff.WorkHandoff, error) {
	q := s.scoped(ctx).Model(&handoffModel{})
	if filter.FromAgentID != "" {
		q = q.Where("from_agent_id = ?", filter.FromAgentID)
	}
	if filter.ToAgentID != "" {
		q = q.Where("to_agent_id = ?", filter.ToAgentID)
	}
	if filter.TaskID != "" {
		q = q.Where("task_id = ?", filter.TaskID)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", string(filter.Status))
	}

	var rows []handoffModel
	if err := q.Order("initiated_at ASC").Order("id ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list handoffs: %w", err)
	}

	result := make([]*handoff.WorkHandoff, 0, len(rows))
	for i := range rows {
		result = append(result, rows[i].toDomain())
	}
	return result, nil
}

// SaveConflict inserts or updates a conflict
func (s *SQLCoordinationStore) SaveConflict(ctx context.Context, c *conflict.ConflictResolution) error {
	if c == nil {
		return ErrInvalidInput
	}
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	stamp(s.ownerID, &c.OwnerID)
	if !visible(s.ownerID, c.OwnerID) {
		return ErrInvalidInput
	}
	c.DetectedAt = nowIfZero(c.DetectedAt)
	m := toConflictModel(c)

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.checkOwner(tx, &conflictModel{}, c.ID); err != nil {
			return err
		}
		if err := tx.Save(&m).Error; err != nil {
			return fmt.Errorf("failed to save conflict: %w", err)
		}
		return nil
	})
}

// GetConflict retrieves a conflict by ID
func (s *SQLCoordinationStore) GetConflict(ctx context.Context, id string) (*conflict.ConflictResolution, error) {
	var m conflictModel
	err := s.scoped(ctx).Where("id = ?", id).Take(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get conflict: %w", err)
	}
	return m.toDomain(), nil
}

// ListConflicts returns conflicts matching filter, oldest first.
// The agent filter is applied after loading since involved agents are stored as JSON.
func (s *SQLCoordinationStore) ListConflicts(ctx context.Context, filter ConflictFilter) ([]*conflict.ConflictResolution, error) {
	q := s.scoped(ctx).Model(&conflictModel{})
	if filter.TaskID != "" {
		q = q.Where("task_id = ?", filter.TaskID)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", string(filter.Status))
	}

	var rows []conflictModel
	if err := q.Order("detected_at ASC").Order("id ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list conflicts: %w", err)
	}

	result := make([]*conflict.ConflictResolution, 0, len(rows))
	for i := range rows {
		c := rows[i].toDomain()
		if filter.match(c) {
			result = append(result, c)
		}
	}
	return result, nil
}

// checkOwner rejects overwriting a row that belongs to another user.
func (s *SQLCoordinationStore) checkOwner(tx *gorm.DB, model any, id string) error {
	if s.ownerID == "" {
		return nil
	}
	var owners []string
	if err := tx.Model(model).Where("id = ?", id).Pluck("owner_id", &owners).Error; err != nil {
		return fmt.Errorf("failed to check owner: %w", err)
	}
	if len(owners) > 0 && !visible(s.ownerID, owners[0]) {
		return ErrNotFound
	}
	return nil
}

func toAssignmentModel(a *types.WorkAssignment) assignmentModel {
	return assignmentModel{
		ID:                a.ID,
		TaskID:            a.TaskID,
		AssignedAgentID:   a.AssignedAgentID,
		AssignedByAgentID: a.AssignedByAgentID,
		AssignedAt:        a.AssignedAt,
		Role:              a.Role,
		Responsibilities:  a.Responsibilities,
		EstimatedHours:    a.EstimatedHours,
		DueDate:           a.DueDate,
		OwnerID:           a.OwnerID,
	}
}

func (m *assignmentModel) toDomain() *types.WorkAssignment {
	return &types.WorkAssignment{
		ID:                m.ID,
		TaskID:            m.TaskID,
		AssignedAgentID:   m.AssignedAgentID,
		AssignedByAgentID: m.AssignedByAgentID,
		AssignedAt:        m.AssignedAt,
		Role:              m.Role,
		Responsibilities:  m.Responsibilities,
		EstimatedHours:    m.EstimatedHours,
		DueDate:           m.DueDate,
		OwnerID:           m.OwnerID,
	}
}

func toHandoffModel(h *handoff.WorkHandoff) handoffModel {
	return handoffModel{
		ID:             h.ID,
		FromAgentID:    h.FromAgentID,
		ToAgentID:      h.ToAgentID,
		TaskID:         h.TaskID,
		InitiatedAt:    h.InitiatedAt,
		WorkSummary:    h.WorkSummary,
		CompletedItems: h.CompletedItems,
		RemainingItems: h.RemainingItems,
		HandoffNotes:   h.HandoffNotes,
		Status:         string(h.Status),
		RespondedAt:    h.RespondedAt,
		ResponseNotes:  h.ResponseNotes,
		OwnerID:        h.OwnerID,
	}
}

func (m *handoffModel) toDomain() *handoff.WorkHandoff {
	return &handoff.WorkHandoff{
		ID:             m.ID,
		FromAgentID:    m.FromAgentID,
		ToAgentID:      m.ToAgentID,
		TaskID:         m.TaskID,
		InitiatedAt:    m.InitiatedAt,
		WorkSummary:    m.WorkSummary,
		CompletedItems: nonNilStrings(m.CompletedItems),
		RemainingItems: nonNilStrings(m.RemainingItems),
		HandoffNotes:   m.HandoffNotes,
		Status:         handoff.HandoffStatus(m.Status),
		RespondedAt:    m.RespondedAt,
		ResponseNotes:  m.ResponseNotes,
		OwnerID:        m.OwnerID,
	}
}

func toConflictModel(c *conflict.ConflictResolution) conflictModel {
	return conflictModel{
		ID:                c.ID,
		Type:              string(c.Type),
		InvolvedAgents:    c.InvolvedAgents,
		TaskID:            c.TaskID,
		DetectedAt:        c.DetectedAt,
		Description:       c.Description,
		Status:            string(c.Status),
		Strategy:          string(c.Strategy),
		ResolvedBy:        c.ResolvedBy,
		ResolutionDetails: c.ResolutionDetails,
		ResolvedAt:        c.ResolvedAt,
		OwnerID:           c.OwnerID,
	}
}

func (m *conflictModel) toDomain() *conflict.ConflictResolution {
	return &conflict.ConflictResolution{
		ID:                m.ID,
		Type:              conflict.ConflictType(m.Type),
		InvolvedAgents:    nonNilStrings(m.InvolvedAgents),
		TaskID:            m.TaskID,
		DetectedAt:        m.DetectedAt,
		Description:       m.Description,
		Status:            conflict.Status(m.Status),
		Strategy:          conflict.Strategy(m.Strategy),
		ResolvedBy:        m.ResolvedBy,
		ResolutionDetails: m.ResolutionDetails,
		ResolvedAt:        m.ResolvedAt,
		OwnerID:           m.OwnerID,
	}
}

func nonNilStrings(items []string) []string {
	if items == nil {
		return []string{}
	}
	return items
}

var _ CoordinationStore = (*SQLCoordinationStore)(nil)
