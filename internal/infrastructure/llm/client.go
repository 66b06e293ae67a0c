// Package llm 提供大语言模型调用客户端，内置重试与退避
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"textbook-ai-api/internal/config"
	"textbook-ai-api/pkg/errors"
	"textbook-ai-api/pkg/logger"
	"textbook-ai-api/pkg/metrics"
)

var llmTracer = otel.Tracer("llm")

// ChatMessage 对话消息
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest 对话补全请求体
type ChatRequest struct {
	Model    string        `json:"model"`
	Messages []ChatMessage `json:"messages"`
}

// ChatResponse 对话补全响应体
type ChatResponse struct {
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// Client 模型调用客户端
type Client struct {
	httpClient     *http.Client
	apiKey         string
	baseURL        string
	model          string
	maxAttempts    int
	initialBackoff time.Duration

	// sleep 可注入，测试中替换以避免真实等待
	sleep func(ctx context.Context, d time.Duration) error
}

// NewClient 创建模型调用客户端
func NewClient(cfg *config.LLMConfig) *Client {
	return &Client{
		httpClient:     &http.Client{Timeout: cfg.Timeout},
		apiKey:         cfg.APIKey,
		baseURL:        cfg.BaseURL,
		model:          cfg.Model,
		maxAttempts:    cfg.MaxAttempts,
		initialBackoff: cfg.InitialBackoff,
		sleep:          sleepContext,
	}
}

// sleepContext 可中断的等待
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Complete 发起一次对话补全并返回首个选择的文本内容
func (c *Client) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	resp, err := c.Chat(ctx, []ChatMessage{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: userPrompt},
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		detail := "response contains no choices"
		if resp.Error != nil {
			detail = resp.Error.Message
		}
		return "", errors.New(errors.CodeMalformedResponse, "LLM returned no choices").WithDetail(detail)
	}
	return resp.Choices[0].Message.Content, nil
}

// Chat 带重试地调用 chat completions 接口
//
// 重试策略：
//   - 网络错误与响应体解析失败记为该次尝试的失败，等待当前退避时间后重试，
//     退避时间从初始值开始每次翻倍
//   - 429 优先采用 Retry-After 头给出的秒数作为等待时间，缺失时按当前退避
//     时间翻倍；纯限流不记入失败错误
//   - 非 429 的错误状态码不单独处理：只要响应体是合法 JSON 就原样返回，
//     由调用方根据内容判断（如 choices 为空）
//   - 尝试耗尽后返回最后一次记录的错误；若没有则返回重试耗尽错误
func (c *Client) Chat(ctx context.Context, messages []ChatMessage) (*ChatResponse, error) {
	ctx, span := llmTracer.Start(ctx, "llm.Chat",
		trace.WithAttributes(attribute.String("llm.model", c.model)))
	defer span.End()

	body, err := json.Marshal(ChatRequest{Model: c.model, Messages: messages})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	start := time.Now()
	defer func() {
		metrics.LLMCallDuration.Observe(time.Since(start).Seconds())
	}()

	delay := c.initialBackoff
	var lastErr error

	for attempt := 0; attempt < c.maxAttempts; attempt++ {
		if attempt > 0 {
			metrics.LLMCallRetries.Inc()
		}

		resp, rateLimited, retryAfter, err := c.doRequest(ctx, body)
		if err == nil && !rateLimited {
			metrics.LLMCallTotal.WithLabelValues("success").Inc()
			return resp, nil
		}

		if rateLimited {
			// 限流不记入失败，仅调整等待策略
			if retryAfter > 0 {
				delay = retryAfter
			} else {
				delay *= 2
			}
			logger.Warn(ctx, "LLM rate limited",
				"attempt", attempt+1,
				"wait", delay.String(),
			)
			if sleepErr := c.sleep(ctx, delay); sleepErr != nil {
				return nil, sleepErr
			}
			continue
		}

		lastErr = err
		span.RecordError(err)
		logger.Warn(ctx, "LLM call attempt failed",
			"attempt", attempt+1,
			"max_attempts", c.maxAttempts,
			"error", err.Error(),
		)

		if attempt < c.maxAttempts-1 {
			if sleepErr := c.sleep(ctx, delay); sleepErr != nil {
				return nil, sleepErr
			}
			delay *= 2
		}
	}

	metrics.LLMCallTotal.WithLabelValues("failure").Inc()

	if lastErr != nil {
		return nil, lastErr
	}
	return nil, errors.ErrMaxRetriesReached
}

// doRequest 执行单次 HTTP 请求
func (c *Client) doRequest(ctx context.Context, body []byte) (resp *ChatResponse, rateLimited bool, retryAfter time.Duration, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, false, 0, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, false, 0, errors.Wrap(err, errors.CodeLLMCallFailed, "LLM request failed")
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode == http.StatusTooManyRequests {
		if ra := httpResp.Header.Get("Retry-After"); ra != "" {
			if secs, parseErr := strconv.Atoi(ra); parseErr == nil && secs > 0 {
				retryAfter = time.Duration(secs) * time.Second
			}
		}
		return nil, true, retryAfter, nil
	}

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, false, 0, errors.Wrap(err, errors.CodeLLMCallFailed, "failed to read response body")
	}

	var chatResp ChatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return nil, false, 0, errors.Wrap(err, errors.CodeMalformedResponse, "invalid JSON in LLM response")
	}

	return &chatResp, false, 0, nil
}
