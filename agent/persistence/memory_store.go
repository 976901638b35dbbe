package persistence

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/BaSui01/agentcoord/agent/conflict"
	"github.com/BaSui01/agentcoord/agent/handoff"
	"github.com/BaSui01/agentcoord/types"
)

// coordinationData is the state shared by a memory store and all of its
// user-scoped views.
type coordinationData struct {
	mu     sync.RWMutex
	closed bool

	assignments   []*types.WorkAssignment
	assignmentIDs map[string]struct{}

	handoffs     map[string]*handoff.WorkHandoff
	handoffOrder []string

	conflicts     map[string]*conflict.ConflictResolution
	conflictOrder []string

	// persist is invoked with the write lock held after every mutation.
	persist func(*coordinationData) error
}

func newCoordinationData() *coordinationData {
	return &coordinationData{
		assignmentIDs: make(map[string]struct{}),
		handoffs:      make(map[string]*handoff.WorkHandoff),
		conflicts:     make(map[string]*conflict.ConflictResolution),
	}
}

// MemoryCoordinationStore is an in-memory implementation of CoordinationStore.
// Suitable for development, testing and as the default fallback. Data is lost on restart.
type MemoryCoordinationStore struct {
	data    *coordinationData
	ownerID string
}

// NewMemoryCoordinationStore creates a new in-memory coordination store
func NewMemoryCoordinationStore() *MemoryCoordinationStore {
	return &MemoryCoordinationStore{data: newCoordinationData()}
}

// ForUser returns a view of the same data restricted to records owned by
// userID. Records written through the view are stamped with userID.
func (s *MemoryCoordinationStore) ForUser(userID string) *MemoryCoordinationStore {
	return &MemoryCoordinationStore{data: s.data, ownerID: userID}
}

// Close closes the store
func (s *MemoryCoordinationStore) Close() error {
	s.data.mu.Lock()
	defer s.data.mu.Unlock()
	s.data.closed = true
	return nil
}

// Ping checks if the store is healthy
func (s *MemoryCoordinationStore) Ping(ctx context.Context) error {
	s.data.mu.RLock()
	defer s.data.mu.RUnlock()
	if s.data.closed {
		return ErrStoreClosed
	}
	return nil
}

// SaveAssignment appends an assignment. Assignments are never overwritten.
func (s *MemoryCoordinationStore) SaveAssignment(ctx context.Context, a *types.WorkAssignment) error {
	if a == nil {
		return ErrInvalidInput
	}

	s.data.mu.Lock()
	defer s.data.mu.Unlock()

	if s.data.closed {
		return ErrStoreClosed
	}
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	if _, exists := s.data.assignmentIDs[a.ID]; exists {
		return ErrAlreadyExists
	}
	stamp(s.ownerID, &a.OwnerID)
	if !visible(s.ownerID, a.OwnerID) {
		return ErrInvalidInput
	}
	a.AssignedAt = nowIfZero(a.AssignedAt)

	s.data.assignments = append(s.data.assignments, a.Clone())
	s.data.assignmentIDs[a.ID] = struct{}{}
	if err := s.commit(); err != nil {
		s.data.assignments = s.data.assignments[:len(s.data.assignments)-1]
		delete(s.data.assignmentIDs, a.ID)
		return err
	}
	return nil
}

// ListAssignments returns assignments matching filter in insertion order
func (s *MemoryCoordinationStore) ListAssignments(ctx context.Context, filter AssignmentFilter) ([]*types.WorkAssignment, error) {
	s.data.mu.RLock()
	defer s.data.mu.RUnlock()

	if s.data.closed {
		return nil, ErrStoreClosed
	}

	result := make([]*types.WorkAssignment, 0)
	for _, a := range s.data.assignments {
		if visible(s.ownerID, a.OwnerID) && filter.match(a) {
			result = append(result, a.Clone())
		}
	}
	return result, nil
}

// SaveHandoff inserts or updates a handoff
func (s *MemoryCoordinationStore) SaveHandoff(ctx context.Context, h *handoff.WorkHandoff) error {
	if h == nil {
		return ErrInvalidInput
	}

	s.data.mu.Lock()
	defer s.data.mu.Unlock()

	if s.data.closed {
		return ErrStoreClosed
	}
	if h.ID == "" {
		h.ID = uuid.New().String()
	}
	stamp(s.ownerID, &h.OwnerID)
	if !visible(s.ownerID, h.OwnerID) {
		return ErrInvalidInput
	}
	existing, ok := s.data.handoffs[h.ID]
	if ok && !visible(s.ownerID, existing.OwnerID) {
		return ErrNotFound
	}
	if !ok {
		s.data.handoffOrder = append(s.data.handoffOrder, h.ID)
	}
	h.InitiatedAt = nowIfZero(h.InitiatedAt)
	s.data.handoffs[h.ID] = h.Clone()
	if err := s.commit(); err != nil {
		if ok {
			s.data.handoffs[h.ID] = existing
		} else {
			delete(s.data.handoffs, h.ID)
			s.data.handoffOrder = s.data.handoffOrder[:len(s.data.handoffOrder)-1]
		}
		return err
	}
	return nil
}

// GetHandoff retrieves a handoff by ID
func (s *MemoryCoordinationStore) GetHandoff(ctx context.Context, id string) (*handoff.WorkHandoff, error) {
	s.data.mu.RLock()
	defer s.data.mu.RUnlock()

	if s.data.closed {
		return nil, ErrStoreClosed
	}
	h, ok := s.data.handoffs[id]
	if !ok || !visible(s.ownerID, h.OwnerID) {
		return nil, ErrNotFound
	}
	return h.Clone(), nil
}

// ListHandoffs returns handoffs matching filter in creation order
func (s *MemoryCoordinationStore) ListHandoffs(ctx context.Context, filter HandoffFilter) ([]*handoff.WorkHandoff, error) {
	s.data.mu.RLock()
	defer s.data.mu.RUnlock()

	if s.data.closed {
		return nil, ErrStoreClosed
	}

	result := make([]*handoff.WorkHandoff, 0)
	for _, id := range s.data.handoffOrder {
		h := s.data.handoffs[id]
		if visible(s.ownerID, h.OwnerID) && filter.match(h) {
			result = append(result, h.Clone())
		}
	}
	return result, nil
}

// SaveConflict inserts or updates a conflict
func (s *MemoryCoordinationStore) SaveConflict(ctx context.Context, c *conflict.ConflictResolution) error {
	if c == nil {
		return ErrInvalidInput
	}

	s.data.mu.Lock()
	defer s.data.mu.Unlock()

	if s.data.closed {
		return ErrStoreClosed
	}
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	stamp(s.ownerID, &c.OwnerID)
	if !visible(s.ownerID, c.OwnerID) {
		return ErrInvalidInput
	}
	existing, ok := s.data.conflicts[c.ID]
	if ok && !visible(s.ownerID, existing.OwnerID) {
		return ErrNotFound
	}
	if !ok {
		s.data.conflictOrder = append(s.data.conflictOrder, c.ID)
	}
	c.DetectedAt = nowIfZero(c.DetectedAt)
	s.data.conflicts[c.ID] = c.Clone()
	if err := s.commit(); err != nil {
		if ok {
			s.data.conflicts[c.ID] = existing
		} else {
			delete(s.data.conflicts, c.ID)
			s.data.conflictOrder = s.data.conflictOrder[:len(s.data.conflictOrder)-1]
		}
		return err
	}
	return nil
}

// GetConflict retrieves a conflict by ID
func (s *MemoryCoordinationStore) GetConflict(ctx context.Context, id string) (*conflict.ConflictResolution, error) {
	s.data.mu.RLock()
	defer s.data.mu.RUnlock()

	if s.data.closed {
		return nil, ErrStoreClosed
	}
	c, ok := s.data.conflicts[id]
	if !ok || !visible(s.ownerID, c.OwnerID) {
		return nil, ErrNotFound
	}
	return c.Clone(), nil
}

// ListConflicts returns conflicts matching filter in detection order
func (s *MemoryCoordinationStore) ListConflicts(ctx context.Context, filter ConflictFilter) ([]*conflict.ConflictResolution, error) {
	s.data.mu.RLock()
	defer s.data.mu.RUnlock()

	if s.data.closed {
		return nil, ErrStoreClosed
	}

	result := make([]*conflict.ConflictResolution, 0)
	for _, id := range s.data.conflictOrder {
		c := s.data.conflicts[id]
		if visible(s.ownerID, c.OwnerID) && filter.match(c) {
			result = append(result, c.Clone())
		}
	}
	return result, nil
}

// commit runs the persist hook, if any. Caller holds the write lock and
// must undo its mutation when commit fails.
func (s *MemoryCoordinationStore) commit() error {
	if s.data.persist == nil {
		return nil
	}
	return s.data.persist(s.data)
}

var _ CoordinationStore = (*MemoryCoordinationStore)(nil)
