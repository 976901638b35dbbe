package events

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DefaultChannel 默认的 Redis 发布频道
const DefaultChannel = "agentcoord:events"

// RedisBus 基于 Redis Pub/Sub 的事件总线，适合多进程部署
type RedisBus struct {
	client  redis.UniversalClient
	channel string
	logger  *zap.Logger
}

// NewRedisBus 创建 Redis 事件总线
func NewRedisBus(client redis.UniversalClient, channel string, logger *zap.Logger) *RedisBus {
	if logger == nil {
		logger = zap.NewNop()
	}
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisBus{
		client:  client,
		channel: channel,
		logger:  logger.With(zap.String("component", "redis_event_bus"), zap.String("channel", channel)),
	}
}

// Publish 编码并发布事件
func (b *RedisBus) Publish(ctx context.Context, e Event) error {
	data, err := Encode(e)
	if err != nil {
		return err
	}
	if err := b.client.Publish(ctx, b.channel, data).Err(); err != nil {
		return fmt.Errorf("publish %s to %s: %w", e.Type(), b.channel, err)
	}
	return nil
}

// Subscription 已确认的频道订阅
type Subscription struct {
	pubsub *redis.PubSub
	logger *zap.Logger
}

// Subscribe 订阅频道，返回时订阅已被服务端确认
func (b *RedisBus) Subscribe(ctx context.Context) (*Subscription, error) {
	pubsub := b.client.Subscribe(ctx, b.channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", b.channel, err)
	}
	return &Subscription{pubsub: pubsub, logger: b.logger}, nil
}

// Run 将收到的事件分发给 handler，直到 ctx 取消或订阅关闭。
// 无法解码的消息与处理器错误只记录日志，不会中断循环。
func (s *Subscription) Run(ctx context.Context, handler Handler) error {
	ch := s.pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			e, err := Decode([]byte(msg.Payload))
			if err != nil {
				s.logger.Warn("dropping undecodable event", zap.Error(err))
				continue
			}
			if err := handler(ctx, e); err != nil {
				s.logger.Error("event handler failed",
					zap.String("event_type", string(e.Type())),
					zap.Error(err))
			}
		}
	}
}

// Close 关闭订阅
func (s *Subscription) Close() error {
	return s.pubsub.Close()
}

var _ Bus = (*RedisBus)(nil)
