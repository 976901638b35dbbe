package events

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupRedisBus(t *testing.T) (*miniredis.Miniredis, *RedisBus) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return mr, NewRedisBus(client, "test:events", zap.NewNop())
}

func TestRedisBus_PublishAndReceive(t *testing.T) {
	_, bus := setupRedisBus(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sub, err := bus.Subscribe(ctx)
	require.NoError(t, err)
	defer sub.Close()

	received := make(chan Event, 1)
	go func() {
		_ = sub.Run(ctx, func(_ context.Context, e Event) error {
			received <- e
			return nil
		})
	}()

	sent := WorkHandoffRequested{HandoffID: "h1", FromAgentID: "a", ToAgentID: "b", TaskID: "t", OccurredAt: time.Now().UTC()}
	require.NoError(t, bus.Publish(ctx, sent))

	select {
	case e := <-received:
		got, ok := e.(WorkHandoffRequested)
		require.True(t, ok)
		assert.Equal(t, "h1", got.HandoffID)
		assert.Equal(t, "b", got.ToAgentID)
	case <-ctx.Done():
		t.Fatal("event not received")
	}
}

func TestRedisBus_PublishFailure(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()
	bus := NewRedisBus(client, "", nil)
	mr.Close()

	err = bus.Publish(context.Background(), AgentAssigned{TaskID: "t"})
	assert.Error(t, err)
}

func TestRedisBus_DefaultChannel(t *testing.T) {
	bus := NewRedisBus(redis.NewClient(&redis.Options{Addr: "localhost:0"}), "", nil)
	assert.Equal(t, DefaultChannel, bus.channel)
}
