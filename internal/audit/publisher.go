// Package audit 优先级变更审计事件（fire-and-forget 外发）
package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// PriorityChange 一次已提交的优先级变更
type PriorityChange struct {
	CaseID      string    `json:"case_id"`
	OldPriority string    `json:"old_priority"`
	NewPriority string    `json:"new_priority"`
	Actor       string    `json:"actor"`
	ChangedAt   time.Time `json:"changed_at"`
}

// Publisher 审计事件发布接口
// 发布失败只记录日志，绝不影响已提交的写入
type Publisher interface {
	PublishPriorityChange(ctx context.Context, event PriorityChange) error
}

// RedisPublisher 发布到 Redis Streams（XADD）
type RedisPublisher struct {
	client *redis.Client
	stream string
	logger *zap.Logger
}

// NewRedisPublisher 创建 Redis Streams 发布器
func NewRedisPublisher(client *redis.Client, stream string, logger *zap.Logger) *RedisPublisher {
	if stream == "" {
		stream = "case-priority-events"
	}
	return &RedisPublisher{client: client, stream: stream, logger: logger}
}

var _ Publisher = (*RedisPublisher)(nil)

// PublishPriorityChange 序列化为 JSON 后写入 stream
func (p *RedisPublisher) PublishPriorityChange(ctx context.Context, event PriorityChange) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	id, err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]interface{}{
			"data":      string(data),
			"timestamp": event.ChangedAt.Unix(),
		},
	}).Result()
	if err != nil {
		return err
	}

	p.logger.Debug("Published priority change event",
		zap.String("stream", p.stream),
		zap.String("message_id", id),
		zap.String("case_id", event.CaseID),
	)
	return nil
}

// NopPublisher 空实现（未配置 Redis 时使用）
type NopPublisher struct{}

var _ Publisher = (*NopPublisher)(nil)

func (NopPublisher) PublishPriorityChange(ctx context.Context, event PriorityChange) error {
	return nil
}
