// Package handler 提供 HTTP 请求处理器
package handler

import (
	"encoding/json"
	"io"
	"time"

	"github.com/gin-gonic/gin"
	goredis "github.com/redis/go-redis/v9"

	"textbook-ai-api/internal/application/progress"
	"textbook-ai-api/internal/domain/entity"
	"textbook-ai-api/internal/infrastructure/messaging"
	"textbook-ai-api/pkg/logger"
)

// streamReadBlock 每次读取变更流的阻塞时长，超时后发送心跳保活
const streamReadBlock = 5 * time.Second

// StreamHandler 流式响应处理器。订阅行级变更事件流，
// 通过 SSE 把单本教材的增量内容推送给客户端。
type StreamHandler struct {
	rdb *goredis.Client
}

// NewStreamHandler 创建流式响应处理器
func NewStreamHandler(rdb *goredis.Client) *StreamHandler {
	return &StreamHandler{rdb: rdb}
}

// StreamTextbook 流式获取教材生成过程
// @Summary 流式获取教材生成过程
// @Description 通过 SSE 推送行级变更事件与装配后的文档视图
// @Tags Textbooks
// @Produce text/event-stream
// @Param tid path string true "教材 ID"
// @Success 200 "SSE stream"
// @Router /v1/textbooks/{tid}/stream [get]
func (h *StreamHandler) StreamTextbook(c *gin.Context) {
	textbookID := c.Param("tid")

	// 设置 SSE 响应头
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	// 从流起点读取，历史事件回放后继续跟随增量
	asm := progress.NewAssembler(textbookID)
	lastID := "0"

	c.Stream(func(w io.Writer) bool {
		select {
		case <-c.Request.Context().Done():
			// 客户端断开
			return false
		default:
		}

		streams, err := h.rdb.XRead(c.Request.Context(), &goredis.XReadArgs{
			Streams: []string{string(messaging.StreamTextbookChanges), lastID},
			Count:   50,
			Block:   streamReadBlock,
		}).Result()

		if err != nil {
			if err == goredis.Nil {
				// 没有新事件，发送心跳保持连接
				c.SSEvent("heartbeat", gin.H{"ts": time.Now().Unix()})
				return true
			}
			if c.Request.Context().Err() != nil {
				return false
			}
			logger.Error(c.Request.Context(), "failed to read change stream", err,
				"textbook_id", textbookID,
			)
			c.SSEvent("error", gin.H{"message": "stream read failed"})
			return false
		}

		applied := false
		for _, stream := range streams {
			for _, xmsg := range stream.Messages {
				lastID = xmsg.ID

				event, ok := decodeChangeEvent(xmsg)
				if !ok || event.TextbookID != textbookID {
					continue
				}

				if err := asm.Apply(event); err != nil {
					logger.Warn(c.Request.Context(), "failed to apply change event",
						"error", err.Error(),
						"row_id", event.RowID,
					)
					continue
				}

				c.SSEvent("change", event)
				applied = true
			}
		}

		if !applied {
			return true
		}

		view := asm.View()
		c.SSEvent("view", view)

		if view.Status == entity.TextbookStatusCompleted || view.Status == entity.TextbookStatusError {
			c.SSEvent("done", gin.H{"status": view.Status})
			return false
		}
		return true
	})
}

// decodeChangeEvent 从流消息中解出行级变更事件
func decodeChangeEvent(xmsg goredis.XMessage) (*entity.ChangeEvent, bool) {
	raw, ok := xmsg.Values["data"].(string)
	if !ok {
		return nil, false
	}

	var msg messaging.Message
	if err := json.Unmarshal([]byte(raw), &msg); err != nil {
		return nil, false
	}
	if msg.Type != messaging.MsgTypeRowChange {
		return nil, false
	}

	var event entity.ChangeEvent
	if err := msg.UnmarshalPayload(&event); err != nil {
		return nil, false
	}
	return &event, true
}
