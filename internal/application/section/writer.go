// Package section 实现教材小节内容生成
package section

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"textbook-ai-api/pkg/metrics"
)

var sectionTracer = otel.Tracer("section")

// Completer 模型调用接口
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Writer 小节内容生成器
type Writer struct {
	llm Completer
}

// NewWriter 创建小节内容生成器
func NewWriter(llm Completer) *Writer {
	return &Writer{llm: llm}
}

// Write 为指定小节生成正文内容。系统提示中带入教材标题与当前章标题，
// 使模型产出与上下文一致的内容。
func (w *Writer) Write(ctx context.Context, bookTitle, chapterTitle, sectionTitle string) (string, error) {
	ctx, span := sectionTracer.Start(ctx, "section.Write",
		trace.WithAttributes(
			attribute.String("section.title", sectionTitle),
			attribute.String("chapter.title", chapterTitle),
		))
	defer span.End()

	start := time.Now()
	defer func() {
		metrics.SectionGenerationDuration.Observe(time.Since(start).Seconds())
	}()

	system := fmt.Sprintf("You are writing content for a textbook section. The textbook is about: %s. The current chapter is: %s. Write comprehensive, well-structured content for the section.", bookTitle, chapterTitle)

	content, err := w.llm.Complete(ctx, system, sectionTitle)
	if err != nil {
		metrics.SectionGenerationTotal.WithLabelValues("failure").Inc()
		span.RecordError(err)
		return "", err
	}

	metrics.SectionGenerationTotal.WithLabelValues("success").Inc()
	return content, nil
}
