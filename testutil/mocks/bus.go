// =============================================================================
// 📡 MockBus - 事件总线模拟实现
// =============================================================================
// 记录所有发布的事件，支持按类型注入发布错误
//
// 使用方法:
//
//	bus := mocks.NewMockBus()
//	orchestrator, _ := coordination.New(deps(bus), cfg)
//	assigned := mocks.EventsOf[events.AgentAssigned](bus)
// =============================================================================
package mocks

import (
	"context"
	"sync"

	"github.com/BaSui01/agentcoord/agent/events"
)

// MockBus 是 events.Bus 的模拟实现
type MockBus struct {
	mu sync.RWMutex

	// 已成功发布的事件
	published []events.Event

	// 错误注入
	publishErr error
	typeErrs   map[events.EventType]error

	// 调用记录
	publishCalls int
}

// NewMockBus 创建新的 MockBus
func NewMockBus() *MockBus {
	return &MockBus{typeErrs: make(map[events.EventType]error)}
}

// WithPublishError 设置所有发布返回的错误
func (b *MockBus) WithPublishError(err error) *MockBus {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.publishErr = err
	return b
}

// WithPublishErrorOn 设置指定事件类型发布返回的错误
func (b *MockBus) WithPublishErrorOn(eventType events.EventType, err error) *MockBus {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.typeErrs[eventType] = err
	return b
}

// Publish 实现 events.Bus
func (b *MockBus) Publish(ctx context.Context, e events.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.publishCalls++
	if err := b.typeErrs[e.Type()]; err != nil {
		return err
	}
	if b.publishErr != nil {
		return b.publishErr
	}
	b.published = append(b.published, e)
	return nil
}

// Events 返回已成功发布的事件副本
func (b *MockBus) Events() []events.Event {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]events.Event(nil), b.published...)
}

// Types 返回已成功发布事件的类型序列
func (b *MockBus) Types() []events.EventType {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]events.EventType, 0, len(b.published))
	for _, e := range b.published {
		out = append(out, e.Type())
	}
	return out
}

// PublishCalls 返回 Publish 调用次数（含失败）
func (b *MockBus) PublishCalls() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.publishCalls
}

// Reset 清空记录
func (b *MockBus) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published = nil
	b.publishCalls = 0
}

// EventsOf 返回指定具体类型的已发布事件
func EventsOf[E events.Event](b *MockBus) []E {
	var out []E
	for _, e := range b.Events() {
		if typed, ok := e.(E); ok {
			out = append(out, typed)
		}
	}
	return out
}
