// Package outline 实现教材大纲生成
package outline

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"textbook-ai-api/internal/config"
	"textbook-ai-api/internal/domain/entity"
	"textbook-ai-api/pkg/errors"
	"textbook-ai-api/pkg/logger"
	"textbook-ai-api/pkg/metrics"
)

var outlineTracer = otel.Tracer("outline")

// Completer 模型调用接口
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Generator 大纲生成器
type Generator struct {
	llm         Completer
	maxSections int
}

// NewGenerator 创建大纲生成器
func NewGenerator(llm Completer, cfg *config.GenerationConfig) *Generator {
	return &Generator{
		llm:         llm,
		maxSections: cfg.MaxSectionsPerChapter,
	}
}

// systemPrompt 约束模型输出为严格的 JSON 大纲
func systemPrompt(chapterCount int) string {
	return fmt.Sprintf("You are an expert textbook creator. Create a detailed outline for a textbook with exactly %d chapters based on the user's prompt. Each chapter should have NO MORE THAN 5 sections. Format the response as JSON with the following structure: { title: string, description: string, chapters: Array<{ title: string, sections: Array<{ title: string }> }> }", chapterCount)
}

// Generate 根据提示词生成并规整教材大纲
func (g *Generator) Generate(ctx context.Context, prompt string, chapterCount int) (*entity.Outline, error) {
	ctx, span := outlineTracer.Start(ctx, "outline.Generate",
		trace.WithAttributes(attribute.Int("outline.chapter_count", chapterCount)))
	defer span.End()

	raw, err := g.llm.Complete(ctx, systemPrompt(chapterCount), prompt)
	if err != nil {
		metrics.OutlineGenerationTotal.WithLabelValues("failure").Inc()
		span.RecordError(err)
		return nil, fmt.Errorf("outline generation call failed: %w", err)
	}

	outline, err := Parse(raw)
	if err != nil {
		metrics.OutlineGenerationTotal.WithLabelValues("failure").Inc()
		span.RecordError(err)
		logger.Error(ctx, "failed to parse outline", err, "raw_length", len(raw))
		return nil, err
	}

	if len(outline.Chapters) != chapterCount {
		logger.Warn(ctx, "outline chapter count mismatch",
			"generated", len(outline.Chapters),
			"requested", chapterCount,
		)
	}

	outline.Normalize(chapterCount, g.maxSections)

	metrics.OutlineGenerationTotal.WithLabelValues("success").Inc()
	span.SetAttributes(attribute.Int("outline.total_sections", outline.TotalSections()))
	return outline, nil
}

// fencedJSONRe 匹配 ```json ... ``` 或 ``` ... ``` 代码块
var fencedJSONRe = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")

// ExtractJSON 从模型回复中提取 JSON 文本。
// 回复可能把 JSON 包在代码块里，优先取第一个代码块；
// 否则尽量截取第一个完整的 JSON 对象，容忍前后夹杂的多余文本。
func ExtractJSON(s string) string {
	raw := strings.TrimSpace(s)
	if m := fencedJSONRe.FindStringSubmatch(raw); m != nil {
		return strings.TrimSpace(m[1])
	}

	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1]
	}
	return raw
}

// Parse 解析并校验模型回复中的大纲
func Parse(raw string) (*entity.Outline, error) {
	var outline entity.Outline
	if err := json.Unmarshal([]byte(ExtractJSON(raw)), &outline); err != nil {
		return nil, errors.Wrap(err, errors.CodeOutlineParseFailed, "failed to parse outline JSON")
	}

	if outline.Title == "" || outline.Chapters == nil {
		return nil, errors.New(errors.CodeOutlineInvalid, "invalid outline structure").
			WithDetail("outline must contain a title and a chapters array")
	}

	return &outline, nil
}
