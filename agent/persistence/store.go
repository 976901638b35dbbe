// Package persistence provides storage for coordination records (work
// assignments, handoffs and conflicts) and reference adapters for the agent
// and task repositories the coordination engine reads from.
//
// Supported backends:
// - Memory: For development and testing (default)
// - File: For single-node deployments
// - Redis: For distributed deployments
// - SQL: gorm-backed, for deployments with a relational database
package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/BaSui01/agentcoord/agent/conflict"
	"github.com/BaSui01/agentcoord/agent/handoff"
	"github.com/BaSui01/agentcoord/types"
)

// Common errors
var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrStoreClosed   = errors.New("store is closed")
	ErrInvalidInput  = errors.New("invalid input")
	ErrVersionClash  = errors.New("version conflict")
)

// StoreType represents the type of storage backend
type StoreType string

const (
	StoreTypeMemory StoreType = "memory"
	StoreTypeFile   StoreType = "file"
	StoreTypeRedis  StoreType = "redis"
	StoreTypeSQL    StoreType = "sql"
)

// StoreConfig is the base configuration for all store implementations
type StoreConfig struct {
	// Type is the storage backend type
	Type StoreType `json:"type" yaml:"type"`

	// BaseDir is the base directory for file-based storage
	BaseDir string `json:"base_dir" yaml:"base_dir"`

	// Redis configuration (only used when Type is "redis")
	Redis RedisStoreConfig `json:"redis" yaml:"redis"`

	// ReserveRetries bounds optimistic retries of slot reservation on SQL backends
	ReserveRetries int `json:"reserve_retries" yaml:"reserve_retries"`
}

// RedisStoreConfig contains Redis-specific configuration
type RedisStoreConfig struct {
	// Host is the Redis server host
	Host string `json:"host" yaml:"host"`

	// Port is the Redis server port
	Port int `json:"port" yaml:"port"`

	// Password is the Redis password (optional)
	Password string `json:"password" yaml:"password"`

	// DB is the Redis database number
	DB int `json:"db" yaml:"db"`

	// PoolSize is the connection pool size
	PoolSize int `json:"pool_size" yaml:"pool_size"`

	// KeyPrefix is the prefix for all Redis keys
	KeyPrefix string `json:"key_prefix" yaml:"key_prefix"`
}

// DefaultStoreConfig returns the default store configuration
func DefaultStoreConfig() StoreConfig {
	return StoreConfig{
		Type:    StoreTypeMemory,
		BaseDir: "./data/coordination",
		Redis: RedisStoreConfig{
			Host:      "localhost",
			Port:      6379,
			DB:        0,
			PoolSize:  10,
			KeyPrefix: "agentcoord:",
		},
		ReserveRetries: 5,
	}
}

// Store is the base interface for all persistent stores
type Store interface {
	// Close closes the store and releases resources
	Close() error

	// Ping checks if the store is healthy
	Ping(ctx context.Context) error
}

// AssignmentFilter narrows ListAssignments. Empty fields match everything.
type AssignmentFilter struct {
	AgentID string
	TaskID  string
}

// HandoffFilter narrows ListHandoffs. Empty fields match everything.
type HandoffFilter struct {
	FromAgentID string
	ToAgentID   string
	TaskID      string
	Status      handoff.HandoffStatus
}

// ConflictFilter narrows ListConflicts. Empty fields match everything.
type ConflictFilter struct {
	TaskID  string
	AgentID string
	Status  conflict.Status
}

// CoordinationStore persists the records produced by the coordination engine.
// List results are ordered by creation time, oldest first.
// Get methods return ErrNotFound when the record does not exist or is not
// visible to the store's user scope.
type CoordinationStore interface {
	Store

	SaveAssignment(ctx context.Context, a *types.WorkAssignment) error
	ListAssignments(ctx context.Context, filter AssignmentFilter) ([]*types.WorkAssignment, error)

	SaveHandoff(ctx context.Context, h *handoff.WorkHandoff) error
	GetHandoff(ctx context.Context, id string) (*handoff.WorkHandoff, error)
	ListHandoffs(ctx context.Context, filter HandoffFilter) ([]*handoff.WorkHandoff, error)

	SaveConflict(ctx context.Context, c *conflict.ConflictResolution) error
	GetConflict(ctx context.Context, id string) (*conflict.ConflictResolution, error)
	ListConflicts(ctx context.Context, filter ConflictFilter) ([]*conflict.ConflictResolution, error)
}

func (f AssignmentFilter) match(a *types.WorkAssignment) bool {
	return (f.AgentID == "" || a.AssignedAgentID == f.AgentID) &&
		(f.TaskID == "" || a.TaskID == f.TaskID)
}

func (f HandoffFilter) match(h *handoff.WorkHandoff) bool {
	return (f.FromAgentID == "" || h.FromAgentID == f.FromAgentID) &&
		(f.ToAgentID == "" || h.ToAgentID == f.ToAgentID) &&
		(f.TaskID == "" || h.TaskID == f.TaskID) &&
		(f.Status == "" || h.Status == f.Status)
}

func (f ConflictFilter) match(c *conflict.ConflictResolution) bool {
	return (f.TaskID == "" || c.TaskID == f.TaskID) &&
		(f.AgentID == "" || c.Involves(f.AgentID)) &&
		(f.Status == "" || c.Status == f.Status)
}

// visible reports whether a record owned by recordOwner can be seen from a
// store scoped to scope. An unscoped store sees everything.
func visible(scope, recordOwner string) bool {
	return scope == "" || scope == recordOwner
}

// stamp fills in the owner of a record written through a scoped store.
func stamp(scope string, owner *string) {
	if scope != "" && *owner == "" {
		*owner = scope
	}
}

func nowIfZero(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now()
	}
	return t
}
