// Package generation 实现教材内容的渐进式生成
package generation

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"textbook-ai-api/internal/config"
	"textbook-ai-api/internal/domain/entity"
	"textbook-ai-api/internal/domain/repository"
	"textbook-ai-api/pkg/logger"
	"textbook-ai-api/pkg/metrics"
)

var runnerTracer = otel.Tracer("generation")

// 小节生成失败时写入的占位内容
const (
	sectionFailureText = "Content generation failed for this section. Please try regenerating."
	sectionErrorFormat = "Error generating content: %s. Please try regenerating this section."
)

// ContentWriter 小节内容生成接口
type ContentWriter interface {
	Write(ctx context.Context, bookTitle, chapterTitle, sectionTitle string) (string, error)
}

// Notifier 变更事件发布接口。发布失败只影响观察者的及时性，不影响生成
type Notifier interface {
	PublishChange(ctx context.Context, event *entity.ChangeEvent) (string, error)
}

// Runner 渐进式生成执行器。按大纲顺序逐章逐节生成内容，
// 每个小节落库后立即刷新完成进度，单个小节的失败不中断整体任务。
type Runner struct {
	textbooks repository.TextbookRepository
	chapters  repository.ChapterRepository
	sections  repository.SectionRepository
	writer    ContentWriter
	notifier  Notifier
	pacing    time.Duration

	// sleep 可注入，测试中替换以避免真实等待
	sleep func(ctx context.Context, d time.Duration) error
}

// NewRunner 创建生成执行器
func NewRunner(
	textbooks repository.TextbookRepository,
	chapters repository.ChapterRepository,
	sections repository.SectionRepository,
	writer ContentWriter,
	notifier Notifier,
	cfg *config.GenerationConfig,
) *Runner {
	return &Runner{
		textbooks: textbooks,
		chapters:  chapters,
		sections:  sections,
		writer:    writer,
		notifier:  notifier,
		pacing:    cfg.SectionPacingDelay,
		sleep:     sleepContext,
	}
}

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

// Run 执行一次完整的生成任务
//
// 终态规则：
//   - 所有章节处理完毕后无条件置为 100/completed，即使个别小节失败
//   - 只有未捕获的异常会把教材置为 error 并中止
func (r *Runner) Run(ctx context.Context, textbookID string, outline *entity.Outline) (err error) {
	ctx, span := runnerTracer.Start(ctx, "generation.Run",
		trace.WithAttributes(attribute.String("textbook_id", textbookID)))
	defer span.End()

	ctx = logger.WithContext(ctx, logger.TextbookIDKey, textbookID)
	start := time.Now()

	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("generation panicked: %v", rec)
		}
		if err != nil {
			span.RecordError(err)
			metrics.JobsTotal.WithLabelValues("error").Inc()
			logger.Error(ctx, "generation failed", err)
			r.markError(ctx, textbookID)
		} else {
			metrics.JobsTotal.WithLabelValues("completed").Inc()
		}
		metrics.JobDuration.Observe(time.Since(start).Seconds())
	}()

	textbook, err := r.textbooks.GetByID(ctx, textbookID)
	if err != nil {
		return fmt.Errorf("failed to load textbook: %w", err)
	}

	total := textbook.TotalSections

	// 重启续跑时以已落库的小节数为准，避免进度回退
	persisted, err := r.sections.CountByTextbook(ctx, textbookID)
	if err != nil {
		return fmt.Errorf("failed to count persisted sections: %w", err)
	}
	completed := int(persisted)

	logger.Info(ctx, "generation started",
		"chapters", len(outline.Chapters),
		"total_sections", total,
		"already_completed", completed,
	)

	firstSection := true

	for chapterIndex, chapterOutline := range outline.Chapters {
		chapter := entity.NewChapter(textbookID, chapterOutline.Title, chapterIndex)
		if chapterErr := r.chapters.Create(ctx, chapter); chapterErr != nil {
			// 本章落库失败则跳过其全部小节，不中断整体任务
			logger.Error(ctx, "failed to persist chapter, skipping its sections", chapterErr,
				"chapter_index", chapterIndex,
				"chapter_title", chapterOutline.Title,
			)
			continue
		}
		r.notifyInsert(ctx, textbookID, entity.TableChapters, chapter.ID, chapter)

		for sectionIndex, sectionOutline := range chapterOutline.Sections {
			// 首个小节之外，每次生成前固定等待以规避模型限流
			if !firstSection {
				if sleepErr := r.sleep(ctx, r.pacing); sleepErr != nil {
					return sleepErr
				}
			}
			firstSection = false

			// 生成前重申 generating 状态并持久化当前进度
			r.updateProgress(ctx, textbookID, completed, total, entity.TextbookStatusGenerating)

			content := r.generateContent(ctx, textbook.Title, chapterOutline.Title, sectionOutline.Title)

			section := entity.NewSection(chapter.ID, sectionOutline.Title, content, sectionIndex)
			if sectionErr := r.sections.Create(ctx, section); sectionErr != nil {
				// 小节缺失对下游表现为仍在生成中，不计入完成数
				logger.Error(ctx, "failed to persist section, skipping", sectionErr,
					"chapter_index", chapterIndex,
					"section_index", sectionIndex,
				)
				continue
			}
			r.notifyInsert(ctx, textbookID, entity.TableSections, section.ID, section)

			completed++
			status := entity.TextbookStatusGenerating
			if completed >= total {
				status = entity.TextbookStatusCompleted
			}
			r.updateProgress(ctx, textbookID, completed, total, status)

			logger.Info(ctx, "section completed",
				"chapter_index", chapterIndex,
				"section_index", sectionIndex,
				"completed", completed,
				"total", total,
			)
		}
	}

	// 走完全部章节即视为完成，个别小节的失败不改变终态，进度钉在 100
	r.persistProgress(ctx, textbookID, 100, completed, total, entity.TextbookStatusCompleted)

	logger.Info(ctx, "generation completed", "total_sections", total)
	return nil
}

// generateContent 生成单个小节内容，失败时返回占位文案
func (r *Runner) generateContent(ctx context.Context, bookTitle, chapterTitle, sectionTitle string) string {
	content, err := r.writer.Write(ctx, bookTitle, chapterTitle, sectionTitle)
	if err != nil {
		logger.Error(ctx, "section content generation failed", err, "section_title", sectionTitle)
		return fmt.Sprintf(sectionErrorFormat, err.Error())
	}
	if content == "" {
		return sectionFailureText
	}
	return content
}

// updateProgress 持久化进度并广播变更。进度计算为 completed/total 的
// 四舍五入百分比；total 为 0 时直接视为 100。
func (r *Runner) updateProgress(ctx context.Context, textbookID string, completed, total int, status entity.TextbookStatus) {
	r.persistProgress(ctx, textbookID, entity.Percentage(completed, total), completed, total, status)
}

func (r *Runner) persistProgress(ctx context.Context, textbookID string, percentage, completed, total int, status entity.TextbookStatus) {
	if err := r.textbooks.UpdateProgress(ctx, textbookID, percentage, completed, status); err != nil {
		logger.Error(ctx, "failed to update progress", err, "percentage", percentage)
		return
	}

	payload, _ := json.Marshal(map[string]interface{}{
		"status":                status,
		"completion_percentage": percentage,
		"completed_sections":    completed,
		"total_sections":        total,
	})
	r.notify(ctx, &entity.ChangeEvent{
		TextbookID: textbookID,
		Table:      entity.TableTextbooks,
		Op:         entity.ChangeOpUpdate,
		RowID:      textbookID,
		Payload:    payload,
		OccurredAt: time.Now(),
	})
}

// markError 将教材置为 error 终态
func (r *Runner) markError(ctx context.Context, textbookID string) {
	if updateErr := r.textbooks.UpdateStatus(ctx, textbookID, entity.TextbookStatusError); updateErr != nil {
		logger.Error(ctx, "failed to mark textbook as error", updateErr)
		return
	}

	payload, _ := json.Marshal(map[string]interface{}{"status": entity.TextbookStatusError})
	r.notify(ctx, &entity.ChangeEvent{
		TextbookID: textbookID,
		Table:      entity.TableTextbooks,
		Op:         entity.ChangeOpUpdate,
		RowID:      textbookID,
		Payload:    payload,
		OccurredAt: time.Now(),
	})
}

// notifyInsert 广播新插入的行
func (r *Runner) notifyInsert(ctx context.Context, textbookID, table, rowID string, row interface{}) {
	payload, err := json.Marshal(row)
	if err != nil {
		logger.Error(ctx, "failed to marshal change payload", err, "table", table)
		return
	}
	r.notify(ctx, &entity.ChangeEvent{
		TextbookID: textbookID,
		Table:      table,
		Op:         entity.ChangeOpInsert,
		RowID:      rowID,
		Payload:    payload,
		OccurredAt: time.Now(),
	})
}

func (r *Runner) notify(ctx context.Context, event *entity.ChangeEvent) {
	if r.notifier == nil {
		return
	}
	if _, err := r.notifier.PublishChange(ctx, event); err != nil {
		logger.Error(ctx, "failed to publish change event", err, "table", event.Table)
	}
}
