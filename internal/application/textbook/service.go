// Package textbook 实现教材用例服务
package textbook

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"textbook-ai-api/internal/application/progress"
	"textbook-ai-api/internal/config"
	"textbook-ai-api/internal/domain/entity"
	"textbook-ai-api/internal/domain/repository"
	"textbook-ai-api/internal/infrastructure/messaging"
	"textbook-ai-api/internal/infrastructure/persistence/redis"
	"textbook-ai-api/pkg/errors"
	"textbook-ai-api/pkg/logger"
)

var serviceTracer = otel.Tracer("textbook")

// 完成后的教材内容缓存时长
const contentCacheTTL = 10 * time.Minute

// OutlineGenerator 大纲生成接口
type OutlineGenerator interface {
	Generate(ctx context.Context, prompt string, chapterCount int) (*entity.Outline, error)
}

// JobPublisher 生成任务发布接口
type JobPublisher interface {
	PublishGenJob(ctx context.Context, job *messaging.GenerationJobMessage) (string, error)
}

// ContentCache 教材内容缓存接口
type ContentCache interface {
	GetOrLoadSafe(ctx context.Context, key string, ttl time.Duration, loader func() (interface{}, error)) ([]byte, error)
}

// Service 教材用例服务
type Service struct {
	textbooks repository.TextbookRepository
	outlines  OutlineGenerator
	publisher JobPublisher
	cache     ContentCache
	genCfg    *config.GenerationConfig
}

// NewService 创建教材服务
func NewService(
	textbooks repository.TextbookRepository,
	outlines OutlineGenerator,
	publisher JobPublisher,
	cache ContentCache,
	genCfg *config.GenerationConfig,
) *Service {
	return &Service{
		textbooks: textbooks,
		outlines:  outlines,
		publisher: publisher,
		cache:     cache,
		genCfg:    genCfg,
	}
}

// ClampChapterCount 将请求章数规整到允许区间，未指定时取默认值
func (s *Service) ClampChapterCount(requested int) int {
	if requested == 0 {
		return s.genCfg.DefaultChapterCount
	}
	if requested < s.genCfg.MinChapters {
		return s.genCfg.MinChapters
	}
	if requested > s.genCfg.MaxChapters {
		return s.genCfg.MaxChapters
	}
	return requested
}

// StartGeneration 同步生成并校验大纲、创建教材记录、投递后台生成任务。
// 返回时内容生成尚未开始；大纲校验失败则不产生任何记录。
func (s *Service) StartGeneration(ctx context.Context, prompt string, chapterCount int) (*entity.Textbook, error) {
	ctx, span := serviceTracer.Start(ctx, "textbook.StartGeneration",
		trace.WithAttributes(attribute.Int("chapter_count", chapterCount)))
	defer span.End()

	prompt = strings.TrimSpace(prompt)
	if len(prompt) < 10 {
		return nil, errors.New(errors.CodeInvalidParam, "prompt too short").
			WithDetail("prompt must be at least 10 characters")
	}

	chapterCount = s.ClampChapterCount(chapterCount)

	outline, err := s.outlines.Generate(ctx, prompt, chapterCount)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	textbook := entity.NewTextbook(outline.Title, prompt, outline.TotalSections())
	textbook.Description = outline.Description

	if err := s.textbooks.Create(ctx, textbook); err != nil {
		span.RecordError(err)
		return nil, errors.Wrap(err, errors.CodeDatabaseError, "failed to create textbook")
	}

	span.SetAttributes(attribute.String("textbook_id", textbook.ID))
	logger.Info(ctx, "textbook created, dispatching generation job",
		"textbook_id", textbook.ID,
		"total_sections", textbook.TotalSections,
	)

	if _, err := s.publisher.PublishGenJob(ctx, &messaging.GenerationJobMessage{
		TextbookID:   textbook.ID,
		Prompt:       prompt,
		ChapterCount: chapterCount,
		Outline:      outline,
	}); err != nil {
		span.RecordError(err)
		// 任务未入队的教材无法继续生成，立即置为 error
		if markErr := s.textbooks.UpdateStatus(ctx, textbook.ID, entity.TextbookStatusError); markErr != nil {
			logger.Error(ctx, "failed to mark undispatched textbook as error", markErr)
		}
		return nil, errors.Wrap(err, errors.CodeInternalError, "failed to dispatch generation job")
	}

	return textbook, nil
}

// GetTextbook 获取教材及全部内容。已完成的教材走缓存，
// 生成中的每次直读数据库以反映最新进度。
func (s *Service) GetTextbook(ctx context.Context, id string) (*entity.Textbook, error) {
	ctx, span := serviceTracer.Start(ctx, "textbook.GetTextbook",
		trace.WithAttributes(attribute.String("textbook_id", id)))
	defer span.End()

	textbook, err := s.textbooks.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if textbook.Status != entity.TextbookStatusCompleted || s.cache == nil {
		return s.textbooks.GetWithContent(ctx, id)
	}

	data, err := s.cache.GetOrLoadSafe(ctx, redis.TextbookKey(id), contentCacheTTL, func() (interface{}, error) {
		return s.textbooks.GetWithContent(ctx, id)
	})
	if err != nil {
		// 缓存故障时退化为直读
		logger.Warn(ctx, "cache read failed, falling back to database", "error", err.Error())
		return s.textbooks.GetWithContent(ctx, id)
	}

	var cached entity.Textbook
	if err := json.Unmarshal(data, &cached); err != nil {
		return s.textbooks.GetWithContent(ctx, id)
	}
	return &cached, nil
}

// List 分页获取教材列表（按创建时间倒序）
func (s *Service) List(ctx context.Context, pagination repository.Pagination) (*repository.PagedResult[*entity.Textbook], error) {
	ctx, span := serviceTracer.Start(ctx, "textbook.List")
	defer span.End()

	return s.textbooks.List(ctx, pagination)
}

// Progress 获取教材的进度快照
func (s *Service) Progress(ctx context.Context, id string) (*progress.Snapshot, error) {
	ctx, span := serviceTracer.Start(ctx, "textbook.Progress",
		trace.WithAttributes(attribute.String("textbook_id", id)))
	defer span.End()

	textbook, err := s.textbooks.GetWithContent(ctx, id)
	if err != nil {
		return nil, err
	}

	snap := progress.Project(textbook, time.Now())
	return &snap, nil
}
