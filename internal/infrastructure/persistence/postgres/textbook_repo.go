// Package postgres 提供 PostgreSQL Repository 实现
package postgres

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"textbook-ai-api/internal/domain/entity"
	"textbook-ai-api/internal/domain/repository"
	apperrors "textbook-ai-api/pkg/errors"
)

// TextbookRepository 教材仓储实现
type TextbookRepository struct {
	client *Client
}

// NewTextbookRepository 创建教材仓储
func NewTextbookRepository(client *Client) *TextbookRepository {
	return &TextbookRepository{client: client}
}

// Create 创建教材
func (r *TextbookRepository) Create(ctx context.Context, textbook *entity.Textbook) error {
	ctx, span := tracer.Start(ctx, "postgres.TextbookRepository.Create")
	defer span.End()

	db := getDB(ctx, r.client.db)
	if err := db.Create(textbook).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create textbook: %w", err)
	}
	return nil
}

// GetByID 根据 ID 获取教材（不含章节内容）
func (r *TextbookRepository) GetByID(ctx context.Context, id string) (*entity.Textbook, error) {
	ctx, span := tracer.Start(ctx, "postgres.TextbookRepository.GetByID")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var textbook entity.Textbook
	if err := db.First(&textbook, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrTextbookNotFound
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get textbook: %w", err)
	}
	return &textbook, nil
}

// GetWithContent 根据 ID 获取教材及其全部章节小节
func (r *TextbookRepository) GetWithContent(ctx context.Context, id string) (*entity.Textbook, error) {
	ctx, span := tracer.Start(ctx, "postgres.TextbookRepository.GetWithContent")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var textbook entity.Textbook
	err := db.
		Preload("Chapters", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		Preload("Chapters.Sections", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		First(&textbook, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrTextbookNotFound
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get textbook with content: %w", err)
	}
	return &textbook, nil
}

// List 分页获取教材列表
func (r *TextbookRepository) List(ctx context.Context, pagination repository.Pagination) (*repository.PagedResult[*entity.Textbook], error) {
	ctx, span := tracer.Start(ctx, "postgres.TextbookRepository.List")
	defer span.End()

	db := getDB(ctx, r.client.db)
	query := db.Model(&entity.Textbook{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to count textbooks: %w", err)
	}

	var textbooks []*entity.Textbook
	if err := query.Order("created_at DESC").
		Offset(pagination.Offset()).
		Limit(pagination.Limit()).
		Find(&textbooks).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list textbooks: %w", err)
	}

	return repository.NewPagedResult(textbooks, total, pagination), nil
}

// UpdateProgress 更新完成进度与已完成小节数
func (r *TextbookRepository) UpdateProgress(ctx context.Context, id string, percentage, completedSections int, status entity.TextbookStatus) error {
	ctx, span := tracer.Start(ctx, "postgres.TextbookRepository.UpdateProgress")
	defer span.End()

	db := getDB(ctx, r.client.db)
	updates := map[string]interface{}{
		"completion_percentage": percentage,
		"completed_sections":    completedSections,
		"status":                status,
	}
	result := db.Model(&entity.Textbook{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		span.RecordError(result.Error)
		return fmt.Errorf("failed to update textbook progress: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrTextbookNotFound
	}
	return nil
}

// UpdateStatus 更新教材状态
func (r *TextbookRepository) UpdateStatus(ctx context.Context, id string, status entity.TextbookStatus) error {
	ctx, span := tracer.Start(ctx, "postgres.TextbookRepository.UpdateStatus")
	defer span.End()

	db := getDB(ctx, r.client.db)
	result := db.Model(&entity.Textbook{}).Where("id = ?", id).Update("status", status)
	if result.Error != nil {
		span.RecordError(result.Error)
		return fmt.Errorf("failed to update textbook status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrTextbookNotFound
	}
	return nil
}
