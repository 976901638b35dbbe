package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// Bus 事件总线的发布入口。发布失败会返回给调用方。
type Bus interface {
	Publish(ctx context.Context, e Event) error
}

// Handler 事件处理器
type Handler func(ctx context.Context, e Event) error

// subscriptionCounter 用于生成唯一订阅 ID
var subscriptionCounter int64

// MemoryBus 进程内同步事件总线。
// Publish 按订阅顺序依次调用处理器，并合并所有处理器返回的错误。
type MemoryBus struct {
	mu       sync.RWMutex
	handlers map[EventType][]subscription
	all      []subscription
	logger   *zap.Logger
}

type subscription struct {
	id      string
	handler Handler
}

// NewMemoryBus 创建进程内事件总线
func NewMemoryBus(logger *zap.Logger) *MemoryBus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MemoryBus{
		handlers: make(map[EventType][]subscription),
		logger:   logger.With(zap.String("component", "memory_event_bus")),
	}
}

// Subscribe 订阅指定类型的事件
func (b *MemoryBus) Subscribe(eventType EventType, handler Handler) string {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := fmt.Sprintf("%s-%d", eventType, atomic.AddInt64(&subscriptionCounter, 1))
	b.handlers[eventType] = append(b.handlers[eventType], subscription{id: id, handler: handler})
	return id
}

// SubscribeAll 订阅全部事件
func (b *MemoryBus) SubscribeAll(handler Handler) string {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := fmt.Sprintf("all-%d", atomic.AddInt64(&subscriptionCounter, 1))
	b.all = append(b.all, subscription{id: id, handler: handler})
	return id
}

// Unsubscribe 取消订阅
func (b *MemoryBus) Unsubscribe(subscriptionID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.all = removeSubscription(b.all, subscriptionID)
	for eventType, subs := range b.handlers {
		b.handlers[eventType] = removeSubscription(subs, subscriptionID)
		if len(b.handlers[eventType]) == 0 {
			delete(b.handlers, eventType)
		}
	}
}

// Publish 发布事件
func (b *MemoryBus) Publish(ctx context.Context, e Event) error {
	if e == nil {
		return errors.New("publish: nil event")
	}

	b.mu.RLock()
	subs := make([]subscription, 0, len(b.handlers[e.Type()])+len(b.all))
	subs = append(subs, b.handlers[e.Type()]...)
	subs = append(subs, b.all...)
	b.mu.RUnlock()

	var errs []error
	for _, s := range subs {
		if err := b.dispatch(ctx, s, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (b *MemoryBus) dispatch(ctx context.Context, s subscription, e Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event handler panicked",
				zap.String("subscription", s.id),
				zap.String("event_type", string(e.Type())),
				zap.Any("recover", r))
			err = fmt.Errorf("handler %s panicked: %v", s.id, r)
		}
	}()
	return s.handler(ctx, e)
}

func removeSubscription(subs []subscription, id string) []subscription {
	out := subs[:0]
	for _, s := range subs {
		if s.id != id {
			out = append(out, s)
		}
	}
	return out
}

// FanoutBus 将事件依次发布到多个总线
type FanoutBus struct {
	buses []Bus
}

// NewFanoutBus 创建组合总线
func NewFanoutBus(buses ...Bus) *FanoutBus {
	return &FanoutBus{buses: buses}
}

// Publish 发布到所有下游总线；任何一个失败都会被返回
func (f *FanoutBus) Publish(ctx context.Context, e Event) error {
	var errs []error
	for _, b := range f.buses {
		if err := b.Publish(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var (
	_ Bus = (*MemoryBus)(nil)
	_ Bus = (*FanoutBus)(nil)
)
