// Package postgres 提供 PostgreSQL Repository 实现
package postgres

import (
	"context"
	"fmt"

	"textbook-ai-api/internal/domain/entity"
)

// SectionRepository 小节仓储实现
type SectionRepository struct {
	client *Client
}

// NewSectionRepository 创建小节仓储
func NewSectionRepository(client *Client) *SectionRepository {
	return &SectionRepository{client: client}
}

// Create 创建小节
func (r *SectionRepository) Create(ctx context.Context, section *entity.Section) error {
	ctx, span := tracer.Start(ctx, "postgres.SectionRepository.Create")
	defer span.End()

	db := getDB(ctx, r.client.db)
	if err := db.Create(section).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create section: %w", err)
	}
	return nil
}

// ListByChapter 获取章节的全部小节（按位置排序）
func (r *SectionRepository) ListByChapter(ctx context.Context, chapterID string) ([]*entity.Section, error) {
	ctx, span := tracer.Start(ctx, "postgres.SectionRepository.ListByChapter")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var sections []*entity.Section
	if err := db.Where("chapter_id = ?", chapterID).
		Order("position ASC").
		Find(&sections).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list sections: %w", err)
	}
	return sections, nil
}

// CountByTextbook 统计教材已落库的小节数
func (r *SectionRepository) CountByTextbook(ctx context.Context, textbookID string) (int64, error) {
	ctx, span := tracer.Start(ctx, "postgres.SectionRepository.CountByTextbook")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var count int64
	err := db.Model(&entity.Section{}).
		Joins("JOIN chapters ON chapters.id = sections.chapter_id").
		Where("chapters.textbook_id = ?", textbookID).
		Count(&count).Error
	if err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("failed to count sections: %w", err)
	}
	return count, nil
}
