package persistence

import (
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// ScopedCoordinationStore is a coordination store that can produce a
// per-user view of itself.
type ScopedCoordinationStore interface {
	CoordinationStore
	ForUserStore(userID string) CoordinationStore
}

// NewCoordinationStore creates a CoordinationStore based on the configuration.
// db is required only for StoreTypeSQL.
func NewCoordinationStore(config StoreConfig, db *gorm.DB) (ScopedCoordinationStore, error) {
	switch config.Type {
	case StoreTypeMemory, "":
		return scopedMemory{NewMemoryCoordinationStore()}, nil
	case StoreTypeFile:
		store, err := NewFileCoordinationStore(config)
		if err != nil {
			return nil, err
		}
		return scopedFile{store}, nil
	case StoreTypeRedis:
		store, err := NewRedisCoordinationStore(config)
		if err != nil {
			return nil, err
		}
		return scopedRedis{store}, nil
	case StoreTypeSQL:
		if db == nil {
			return nil, errors.New("sql coordination store requires a database connection")
		}
		return scopedSQL{NewSQLCoordinationStore(db)}, nil
	default:
		return nil, fmt.Errorf("unsupported coordination store type: %s", config.Type)
	}
}

// NewScopedRedisStore wraps a shared Redis client as a scoped coordination store.
func NewScopedRedisStore(client redis.UniversalClient, keyPrefix string) ScopedCoordinationStore {
	return scopedRedis{NewRedisCoordinationStoreWithClient(client, keyPrefix)}
}

type scopedMemory struct{ *MemoryCoordinationStore }

func (s scopedMemory) ForUserStore(userID string) CoordinationStore {
	return s.ForUser(userID)
}

type scopedFile struct{ *FileCoordinationStore }

func (s scopedFile) ForUserStore(userID string) CoordinationStore {
	return s.ForUser(userID)
}

type scopedRedis struct{ *RedisCoordinationStore }

func (s scopedRedis) ForUserStore(userID string) CoordinationStore {
	return s.ForUser(userID)
}

type scopedSQL struct{ *SQLCoordinationStore }

func (s scopedSQL) ForUserStore(userID string) CoordinationStore {
	return s.ForUser(userID)
}
