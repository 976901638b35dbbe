package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestMemoryBus_PublishSubscribe(t *testing.T) {
	bus := NewMemoryBus(zap.NewNop())
	ctx := context.Background()

	var got []Event
	bus.Subscribe(TypeAgentAssigned, func(_ context.Context, e Event) error {
		got = append(got, e)
		return nil
	})

	require.NoError(t, bus.Publish(ctx, AgentAssigned{TaskID: "t1", AgentID: "a1", OccurredAt: time.Now()}))
	require.NoError(t, bus.Publish(ctx, ConflictResolved{ConflictID: "c1"}))

	require.Len(t, got, 1)
	assigned, ok := got[0].(AgentAssigned)
	require.True(t, ok)
	assert.Equal(t, "t1", assigned.TaskID)
}

func TestMemoryBus_SubscribeAllAndOrder(t *testing.T) {
	bus := NewMemoryBus(nil)
	ctx := context.Background()

	var order []string
	bus.Subscribe(TypeConflictDetected, func(context.Context, Event) error {
		order = append(order, "typed-1")
		return nil
	})
	bus.Subscribe(TypeConflictDetected, func(context.Context, Event) error {
		order = append(order, "typed-2")
		return nil
	})
	bus.SubscribeAll(func(context.Context, Event) error {
		order = append(order, "all")
		return nil
	})

	require.NoError(t, bus.Publish(ctx, ConflictDetected{ConflictID: "c"}))
	assert.Equal(t, []string{"typed-1", "typed-2", "all"}, order)
}

func TestMemoryBus_ErrorsPropagate(t *testing.T) {
	bus := NewMemoryBus(nil)
	boom := errors.New("boom")

	called := false
	bus.Subscribe(TypeWorkHandoffRejected, func(context.Context, Event) error { return boom })
	bus.Subscribe(TypeWorkHandoffRejected, func(context.Context, Event) error {
		called = true
		return nil
	})

	err := bus.Publish(context.Background(), WorkHandoffRejected{HandoffID: "h"})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.True(t, called, "later handlers still run after a failure")
}

func TestMemoryBus_PanicBecomesError(t *testing.T) {
	bus := NewMemoryBus(nil)
	bus.Subscribe(TypeAgentStatusBroadcast, func(context.Context, Event) error { panic("bad handler") })

	err := bus.Publish(context.Background(), AgentStatusBroadcast{AgentID: "a"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panicked")
}

func TestMemoryBus_Unsubscribe(t *testing.T) {
	bus := NewMemoryBus(nil)
	count := 0
	id := bus.Subscribe(TypeAgentAssigned, func(context.Context, Event) error {
		count++
		return nil
	})
	allID := bus.SubscribeAll(func(context.Context, Event) error {
		count++
		return nil
	})

	bus.Unsubscribe(id)
	bus.Unsubscribe(allID)
	require.NoError(t, bus.Publish(context.Background(), AgentAssigned{}))
	assert.Zero(t, count)
}

func TestMemoryBus_NilEvent(t *testing.T) {
	assert.Error(t, NewMemoryBus(nil).Publish(context.Background(), nil))
}

func TestFanoutBus(t *testing.T) {
	first := NewMemoryBus(nil)
	second := NewMemoryBus(nil)
	boom := errors.New("second failed")

	delivered := 0
	first.SubscribeAll(func(context.Context, Event) error {
		delivered++
		return nil
	})
	second.SubscribeAll(func(context.Context, Event) error { return boom })

	err := NewFanoutBus(first, second).Publish(context.Background(), AgentAssigned{})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, delivered)
}
