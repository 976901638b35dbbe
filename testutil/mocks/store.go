// =============================================================================
// 💾 MockStore - 协调存储故障注入
// =============================================================================
// 包装真实的 CoordinationStore，按方法注入错误
//
// 使用方法:
//
//	store := mocks.NewMockStore(persistence.NewMemoryCoordinationStore()).
//		WithError(mocks.MethodSaveAssignment, errors.New("disk full"))
// =============================================================================
package mocks

import (
	"context"
	"sync"

	"github.com/BaSui01/agentcoord/agent/conflict"
	"github.com/BaSui01/agentcoord/agent/handoff"
	"github.com/BaSui01/agentcoord/agent/persistence"
	"github.com/BaSui01/agentcoord/types"
)

// 可注入错误的方法名
const (
	MethodSaveAssignment  = "SaveAssignment"
	MethodListAssignments = "ListAssignments"
	MethodSaveHandoff     = "SaveHandoff"
	MethodGetHandoff      = "GetHandoff"
	MethodListHandoffs    = "ListHandoffs"
	MethodSaveConflict    = "SaveConflict"
	MethodGetConflict     = "GetConflict"
	MethodListConflicts   = "ListConflicts"
)

// MockStore 是带故障注入的 persistence.CoordinationStore
type MockStore struct {
	persistence.CoordinationStore

	mu     sync.RWMutex
	errs   map[string]error
	counts map[string]int
}

// NewMockStore 包装 inner
func NewMockStore(inner persistence.CoordinationStore) *MockStore {
	return &MockStore{
		CoordinationStore: inner,
		errs:              make(map[string]error),
		counts:            make(map[string]int),
	}
}

// WithError 设置方法返回的错误，err 为 nil 时清除
func (s *MockStore) WithError(method string, err error) *MockStore {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.errs, method)
	} else {
		s.errs[method] = err
	}
	return s
}

// Calls 返回方法调用次数
func (s *MockStore) Calls(method string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.counts[method]
}

func (s *MockStore) check(method string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counts[method]++
	return s.errs[method]
}

func (s *MockStore) SaveAssignment(ctx context.Context, a *types.WorkAssignment) error {
	if err := s.check(MethodSaveAssignment); err != nil {
		return err
	}
	return s.CoordinationStore.SaveAssignment(ctx, a)
}

func (s *MockStore) ListAssignments(ctx context.Context, f persistence.AssignmentFilter) ([]*types.WorkAssignment, error) {
	if err := s.check(MethodListAssignments); err != nil {
		return nil, err
	}
	return s.CoordinationStore.ListAssignments(ctx, f)
}

func (s *MockStore) SaveHandoff(ctx context.Context, h *handoff.WorkHandoff) error {
	if err := s.check(MethodSaveHandoff); err != nil {
		return err
	}
	return s.CoordinationStore.SaveHandoff(ctx, h)
}

func (s *MockStore) GetHandoff(ctx context.Context, id string) (*handoff.WorkHandoff, error) {
	if err := s.check(MethodGetHandoff); err != nil {
		return nil, err
	}
	return s.CoordinationStore.GetHandoff(ctx, id)
}

func (s *MockStore) ListHandoffs(ctx context.Context, f persistence.HandoffFilter) ([]*handoff.WorkHandoff, error) {
	if err := s.check(MethodListHandoffs); err != nil {
		return nil, err
	}
	return s.CoordinationStore.ListHandoffs(ctx, f)
}

func (s *MockStore) SaveConflict(ctx context.Context, c *conflict.ConflictResolution) error {
	if err := s.check(MethodSaveConflict); err != nil {
		return err
	}
	return s.CoordinationStore.SaveConflict(ctx, c)
}

func (s *MockStore) GetConflict(ctx context.Context, id string) (*conflict.ConflictResolution, error) {
	if err := s.check(MethodGetConflict); err != nil {
		return nil, err
	}
	return s.CoordinationStore.GetConflict(ctx, id)
}

func (s *MockStore) ListConflicts(ctx context.Context, f persistence.ConflictFilter) ([]*conflict.ConflictResolution, error) {
	if err := s.check(MethodListConflicts); err != nil {
		return nil, err
	}
	return s.CoordinationStore.ListConflicts(ctx, f)
}
