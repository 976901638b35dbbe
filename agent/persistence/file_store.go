package persistence

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BaSui01/agentcoord/agent/conflict"
	"github.com/BaSui01/agentcoord/agent/handoff"
	"github.com/BaSui01/agentcoord/types"
)

// coordinationSnapshot 是写入磁盘的文件格式
type coordinationSnapshot struct {
	Assignments []*types.WorkAssignment        `json:"assignments"`
	Handoffs    []*handoff.WorkHandoff         `json:"handoffs"`
	Conflicts   []*conflict.ConflictResolution `json:"conflicts"`
}

// FileCoordinationStore 是基于文件的 CoordinationStore 实现.
// 数据常驻内存, 每次变更后原子写入 index.json. 适合单节点部署.
type FileCoordinationStore struct {
	*MemoryCoordinationStore
	indexPath string
}

// NewFileCoordinationStore 创建文件存储并加载已有数据
func NewFileCoordinationStore(config StoreConfig) (*FileCoordinationStore, error) {
	baseDir := filepath.Join(config.BaseDir, "coordination")
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create coordination store directory: %w", err)
	}

	store := &FileCoordinationStore{
		MemoryCoordinationStore: NewMemoryCoordinationStore(),
		indexPath:               filepath.Join(baseDir, "index.json"),
	}

	// 装入已存在的记录
	if err := store.loadFromDisk(); err != nil {
		return nil, fmt.Errorf("failed to load coordination records from disk: %w", err)
	}
	store.data.persist = store.saveToDisk

	return store, nil
}

// 从磁盘加载全部记录到内存
func (s *FileCoordinationStore) loadFromDisk() error {
	data, err := os.ReadFile(s.indexPath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}

	var snap coordinationSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return err
	}

	d := s.data
	for _, a := range snap.Assignments {
		d.assignments = append(d.assignments, a)
		d.assignmentIDs[a.ID] = struct{}{}
	}
	for _, h := range snap.Handoffs {
		d.handoffs[h.ID] = h
		d.handoffOrder = append(d.handoffOrder, h.ID)
	}
	for _, c := range snap.Conflicts {
		d.conflicts[c.ID] = c
		d.conflictOrder = append(d.conflictOrder, c.ID)
	}
	return nil
}

// saveToDisk 将全部记录写入磁盘. 调用方持有写锁.
func (s *FileCoordinationStore) saveToDisk(d *coordinationData) error {
	snap := coordinationSnapshot{
		Assignments: d.assignments,
		Handoffs:    make([]*handoff.WorkHandoff, 0, len(d.handoffOrder)),
		Conflicts:   make([]*conflict.ConflictResolution, 0, len(d.conflictOrder)),
	}
	for _, id := range d.handoffOrder {
		snap.Handoffs = append(snap.Handoffs, d.handoffs[id])
	}
	for _, id := range d.conflictOrder {
		snap.Conflicts = append(snap.Conflicts, d.conflicts[id])
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}

	// 原子写: 写入临时文件后重命名
	tempPath := s.indexPath + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("write coordination index: %w", err)
	}
	return os.Rename(tempPath, s.indexPath)
}

// Close 关闭存储并落盘
func (s *FileCoordinationStore) Close() error {
	s.data.mu.Lock()
	defer s.data.mu.Unlock()

	if s.data.closed {
		return nil
	}
	s.data.closed = true
	return s.saveToDisk(s.data)
}

var _ CoordinationStore = (*FileCoordinationStore)(nil)
