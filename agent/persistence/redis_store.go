package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/BaSui01/agentcoord/agent/conflict"
	"github.com/BaSui01/agentcoord/agent/handoff"
	"github.com/BaSui01/agentcoord/types"
)

// RedisCoordinationStore is a Redis-based implementation of CoordinationStore.
// Suitable for distributed deployments.
// Records are stored as JSON strings with sorted sets (scored by creation time) for indexing.
type RedisCoordinationStore struct {
	client     redis.UniversalClient
	keyPrefix  string
	ownerID    string
	ownsClient bool
}

// NewRedisCoordinationStore creates a new Redis-based coordination store
func NewRedisCoordinationStore(config StoreConfig) (*RedisCoordinationStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", config.Redis.Host, config.Redis.Port),
		Password: config.Redis.Password,
		DB:       config.Redis.DB,
		PoolSize: config.Redis.PoolSize,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	store := NewRedisCoordinationStoreWithClient(client, config.Redis.KeyPrefix)
	store.ownsClient = true
	return store, nil
}

// NewRedisCoordinationStoreWithClient wraps an existing client. The caller
// keeps ownership of the client; Close does not close it.
func NewRedisCoordinationStoreWithClient(client redis.UniversalClient, keyPrefix string) *RedisCoordinationStore {
	if keyPrefix == "" {
		keyPrefix = "agentcoord:"
	}
	return &RedisCoordinationStore{
		client:    client,
		keyPrefix: keyPrefix + "coord:",
	}
}

// ForUser returns a view restricted to records owned by userID
func (s *RedisCoordinationStore) ForUser(userID string) *RedisCoordinationStore {
	return &RedisCoordinationStore{
		client:    s.client,
		keyPrefix: s.keyPrefix,
		ownerID:   userID,
	}
}

// Close closes the store
func (s *RedisCoordinationStore) Close() error {
	if !s.ownsClient {
		return nil
	}
	return s.client.Close()
}

// Ping checks if the store is healthy
func (s *RedisCoordinationStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisCoordinationStore) assignmentKey(id string) string {
	return s.keyPrefix + "assignment:" + id
}

func (s *RedisCoordinationStore) assignmentsKey() string {
	return s.keyPrefix + "assignments"
}

func (s *RedisCoordinationStore) agentAssignmentsKey(agentID string) string {
	return s.keyPrefix + "assignments:agent:" + agentID
}

func (s *RedisCoordinationStore) handoffKey(id string) string {
	return s.keyPrefix + "handoff:" + id
}

func (s *RedisCoordinationStore) handoffsKey() string {
	return s.keyPrefix + "handoffs"
}

func (s *RedisCoordinationStore) conflictKey(id string) string {
	return s.keyPrefix + "conflict:" + id
}

func (s *RedisCoordinationStore) conflictsKey() string {
	return s.keyPrefix + "conflicts"
}

// SaveAssignment appends an assignment. An existing ID yields ErrAlreadyExists.
func (s *RedisCoordinationStore) SaveAssignment(ctx context.Context, a *types.WorkAssignment) error {
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

	data, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("failed to marshal assignment: %w", err)
	}

	created, err := s.client.SetNX(ctx, s.assignmentKey(a.ID), data, 0).Result()
	if err != nil {
		return fmt.Errorf("failed to save assignment: %w", err)
	}
	if !created {
		return ErrAlreadyExists
	}

	score := float64(a.AssignedAt.UnixNano())
	pipe := s.client.Pipeline()
	pipe.ZAdd(ctx, s.assignmentsKey(), redis.Z{Score: score, Member: a.ID})
	pipe.ZAdd(ctx, s.agentAssignmentsKey(a.AssignedAgentID), redis.Z{Score: score, Member: a.ID})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to index assignment: %w", err)
	}
	return nil
}

// ListAssignments returns assignments matching filter, oldest first
func (s *RedisCoordinationStore) ListAssignments(ctx context.Context, filter AssignmentFilter) ([]*types.WorkAssignment, error) {
	index := s.assignmentsKey()
	if filter.AgentID != "" {
		index = s.agentAssignmentsKey(filter.AgentID)
	}

	records, err := loadIndexed[types.WorkAssignment](ctx, s.client, index, s.assignmentKey)
	if err != nil {
		return nil, err
	}

	result := make([]*types.WorkAssignment, 0, len(records))
	for _, a := range records {
		if visible(s.ownerID, a.OwnerID) && filter.match(a) {
			result = append(result, a)
		}
	}
	return result, nil
}

// SaveHandoff inserts or updates a handoff
func (s *RedisCoordinationStore) SaveHandoff(ctx context.Context, h *handoff.WorkHandoff) error {
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
	if err := s.checkOwner(ctx, s.handoffKey(h.ID), func(data []byte) (string, error) {
		var existing handoff.WorkHandoff
		err := json.Unmarshal(data, &existing)
		return existing.OwnerID, err
	}); err != nil {
		return err
	}
	h.InitiatedAt = nowIfZero(h.InitiatedAt)

	data, err := json.Marshal(h)
	if err != nil {
		return fmt.Errorf("failed to marshal handoff: %w", err)
	}

	pipe := s.client.Pipeline()
	pipe.Set(ctx, s.handoffKey(h.ID), data, 0)
	pipe.ZAdd(ctx, s.handoffsKey(), redis.Z{Score: float64(h.InitiatedAt.UnixNano()), Member: h.ID})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save handoff: %w", err)
	}
	return nil
}

// GetHandoff retrieves a handoff by ID
func (s *RedisCoordinationStore) GetHandoff(ctx context.Context, id string) (*handoff.WorkHandoff, error) {
	h, err := getJSON[handoff.WorkHandoff](ctx, s.client, s.handoffKey(id))
	if err != nil {
		return nil, err
	}
	if !visible(s.ownerID, h.OwnerID) {
		return nil, ErrNotFound
	}
	return h, nil
}

// ListHandoffs returns handoffs matching filter, oldest first
func (s *RedisCoordinationStore) ListHandoffs(ctx context.Context, filter HandoffFilter) ([]*handoff.WorkHandoff, error) {
	records, err := loadIndexed[handoff.WorkHandoff](ctx, s.client, s.handoffsKey(), s.handoffKey)
	if err != nil {
		return nil, err
	}

	result := make([]*handoff.WorkHandoff, 0, len(records))
	for _, h := range records {
		if visible(s.ownerID, h.OwnerID) && filter.match(h) {
			result = append(result, h)
		}
	}
	return result, nil
}

// SaveConflict inserts or updates a conflict
func (s *RedisCoordinationStore) SaveConflict(ctx context.Context, c *conflict.ConflictResolution) error {
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
	if err := s.checkOwner(ctx, s.conflictKey(c.ID), func(data []byte) (string, error) {
		var existing conflict.ConflictResolution
		err := json.Unmarshal(data, &existing)
		return existing.OwnerID, err
	}); err != nil {
		return err
	}
	c.DetectedAt = nowIfZero(c.DetectedAt)

	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal conflict: %w", err)
	}

	pipe := s.client.Pipeline()
	pipe.Set(ctx, s.conflictKey(c.ID), data, 0)
	pipe.ZAdd(ctx, s.conflictsKey(), redis.Z{Score: float64(c.DetectedAt.UnixNano()), Member: c.ID})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save conflict: %w", err)
	}
	return nil
}

// GetConflict retrieves a conflict by ID
func (s *RedisCoordinationStore) GetConflict(ctx context.Context, id string) (*conflict.ConflictResolution, error) {
	c, err := getJSON[conflict.ConflictResolution](ctx, s.client, s.conflictKey(id))
	if err != nil {
		return nil, err
	}
	if !visible(s.ownerID, c.OwnerID) {
		return nil, ErrNotFound
	}
	return c, nil
}

// ListConflicts returns conflicts matching filter, oldest first
func (s *RedisCoordinationStore) ListConflicts(ctx context.Context, filter ConflictFilter) ([]*conflict.ConflictResolution, error) {
	records, err := loadIndexed[conflict.ConflictResolution](ctx, s.client, s.conflictsKey(), s.conflictKey)
	if err != nil {
		return nil, err
	}

	result := make([]*conflict.ConflictResolution, 0, len(records))
	for _, c := range records {
		if visible(s.ownerID, c.OwnerID) && filter.match(c) {
			result = append(result, c)
		}
	}
	return result, nil
}

// checkOwner rejects overwriting a record that belongs to another user.
func (s *RedisCoordinationStore) checkOwner(ctx context.Context, key string, owner func([]byte) (string, error)) error {
	if s.ownerID == "" {
		return nil
	}
	data, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", key, err)
	}
	existingOwner, err := owner(data)
	if err != nil {
		return fmt.Errorf("failed to unmarshal %s: %w", key, err)
	}
	if !visible(s.ownerID, existingOwner) {
		return ErrNotFound
	}
	return nil
}

func getJSON[T any](ctx context.Context, client redis.UniversalClient, key string) (*T, error) {
	data, err := client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", key, err)
	}

	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s: %w", key, err)
	}
	return &v, nil
}

// loadIndexed reads every record referenced by a sorted-set index, in score order.
func loadIndexed[T any](ctx context.Context, client redis.UniversalClient, index string, key func(string) string) ([]*T, error) {
	ids, err := client.ZRange(ctx, index, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read index %s: %w", index, err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = key(id)
	}
	values, err := client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load records for %s: %w", index, err)
	}

	result := make([]*T, 0, len(values))
	for i, raw := range values {
		str, ok := raw.(string)
		if !ok {
			// index entry without data; skip
			continue
		}
		var v T
		if err := json.Unmarshal([]byte(str), &v); err != nil {
			return nil, fmt.Errorf("failed to unmarshal %s: %w", keys[i], err)
		}
		result = append(result, &v)
	}
	return result, nil
}

var _ CoordinationStore = (*RedisCoordinationStore)(nil)
