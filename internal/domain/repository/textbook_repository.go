// Package repository 定义数据访问层接口
package repository

import (
	"context"

	"textbook-ai-api/internal/domain/entity"
)

// TextbookRepository 教材仓储接口
type TextbookRepository interface {
	// Create 创建教材
	Create(ctx context.Context, textbook *entity.Textbook) error

	// GetByID 根据 ID 获取教材（不含章节内容）
	GetByID(ctx context.Context, id string) (*entity.Textbook, error)

	// GetWithContent 根据 ID 获取教材及其全部章节小节
	GetWithContent(ctx context.Context, id string) (*entity.Textbook, error)

	// List 分页获取教材列表
	List(ctx context.Context, pagination Pagination) (*PagedResult[*entity.Textbook], error)

	// UpdateProgress 更新完成进度与已完成小节数
	UpdateProgress(ctx context.Context, id string, percentage, completedSections int, status entity.TextbookStatus) error

	// UpdateStatus 更新教材状态
	UpdateStatus(ctx context.Context, id string, status entity.TextbookStatus) error
}

// ChapterRepository 章节仓储接口
type ChapterRepository interface {
	// Create 创建章节
	Create(ctx context.Context, chapter *entity.Chapter) error

	// ListByTextbook 获取教材的全部章节（按位置排序）
	ListByTextbook(ctx context.Context, textbookID string) ([]*entity.Chapter, error)
}

// SectionRepository 小节仓储接口
type SectionRepository interface {
	// Create 创建小节
	Create(ctx context.Context, section *entity.Section) error

	// ListByChapter 获取章节的全部小节（按位置排序）
	ListByChapter(ctx context.Context, chapterID string) ([]*entity.Section, error)

	// CountByTextbook 统计教材已落库的小节数
	CountByTextbook(ctx context.Context, textbookID string) (int64, error)
}
