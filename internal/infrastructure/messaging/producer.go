// Package messaging 提供消息队列实现
package messaging

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"textbook-ai-api/internal/domain/entity"
	"textbook-ai-api/pkg/metrics"
)

var tracer = otel.Tracer("messaging")

// Producer 消息生产者
type Producer struct {
	client *redis.Client
	maxLen int64
}

// NewProducer 创建消息生产者
func NewProducer(client *redis.Client, maxLen int64) *Producer {
	if maxLen <= 0 {
		maxLen = 100000
	}
	return &Producer{
		client: client,
		maxLen: maxLen,
	}
}

// Publish 发布消息到指定流
func (p *Producer) Publish(ctx context.Context, stream Stream, msg *Message) (string, error) {
	ctx, span := tracer.Start(ctx, "producer.Publish",
		trace.WithAttributes(
			attribute.String("stream", string(stream)),
			attribute.String("message.id", msg.ID),
			attribute.String("message.type", msg.Type),
		))
	defer span.End()

	data, err := json.Marshal(msg)
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("failed to marshal message: %w", err)
	}

	result, err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: string(stream),
		MaxLen: p.maxLen,
		Approx: true,
		Values: map[string]interface{}{
			"data": string(data),
		},
	}).Result()

	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("failed to publish message: %w", err)
	}

	span.SetAttributes(attribute.String("stream.message_id", result))
	return result, nil
}

// PublishGenJob 发布教材生成任务
func (p *Producer) PublishGenJob(ctx context.Context, job *GenerationJobMessage) (string, error) {
	msg, err := NewMessage(job.TextbookID, MsgTypeTextbookGen, job.TextbookID, job)
	if err != nil {
		return "", err
	}
	return p.Publish(ctx, StreamTextbookGen, msg)
}

// PublishChange 发布行级变更事件
func (p *Producer) PublishChange(ctx context.Context, event *entity.ChangeEvent) (string, error) {
	msg, err := NewMessage(event.RowID, MsgTypeRowChange, event.TextbookID, event)
	if err != nil {
		return "", err
	}
	msg.SetMetadata("table", event.Table)
	msg.SetMetadata("op", string(event.Op))

	id, err := p.Publish(ctx, StreamTextbookChanges, msg)
	if err == nil {
		metrics.ChangeEventsPublished.WithLabelValues(event.Table, string(event.Op)).Inc()
	}
	return id, err
}

// GenerationJobMessage 教材生成任务消息
type GenerationJobMessage struct {
	TextbookID   string          `json:"textbook_id"`
	Prompt       string          `json:"prompt"`
	ChapterCount int             `json:"chapter_count"`
	Outline      *entity.Outline `json:"outline"`
}
