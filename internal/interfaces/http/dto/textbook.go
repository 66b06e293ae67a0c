// Package dto 提供 HTTP 层数据传输对象
package dto

import (
	"time"

	"textbook-ai-api/internal/application/progress"
	"textbook-ai-api/internal/domain/entity"
)

// GenerateTextbookRequest 生成教材请求
type GenerateTextbookRequest struct {
	Prompt       string `json:"prompt" binding:"required"`
	ChapterCount int    `json:"chapter_count,omitempty"`
}

// GenerateTextbookResponse 生成教材响应
type GenerateTextbookResponse struct {
	TextbookID    string `json:"textbook_id"`
	Title         string `json:"title"`
	Status        string `json:"status"`
	TotalSections int    `json:"total_sections"`
}

// TextbookSummaryResponse 教材摘要（列表项，不含内容）
type TextbookSummaryResponse struct {
	ID                   string `json:"id"`
	Title                string `json:"title"`
	Description          string `json:"description,omitempty"`
	Status               string `json:"status"`
	CompletionPercentage int    `json:"completion_percentage"`
	CompletedSections    int    `json:"completed_sections"`
	TotalSections        int    `json:"total_sections"`
	CreatedAt            string `json:"created_at"`
	UpdatedAt            string `json:"updated_at"`
}

// TextbookResponse 教材详情（含章节与小节内容）
type TextbookResponse struct {
	TextbookSummaryResponse
	Chapters []ChapterResponse `json:"chapters"`
}

// ChapterResponse 章节响应
type ChapterResponse struct {
	ID       string            `json:"id"`
	Title    string            `json:"title"`
	Position int               `json:"position"`
	Sections []SectionResponse `json:"sections"`
}

// SectionResponse 小节响应
type SectionResponse struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Content  string `json:"content"`
	Position int    `json:"position"`
}

// TextbookListResponse 教材列表响应
type TextbookListResponse struct {
	Textbooks []TextbookSummaryResponse `json:"textbooks"`
}

// ProgressPointerResponse 当前生成位置
type ProgressPointerResponse struct {
	ChapterPosition int    `json:"chapter_position"`
	SectionPosition int    `json:"section_position"`
	ChapterTitle    string `json:"chapter_title,omitempty"`
}

// ProgressResponse 进度快照响应
type ProgressResponse struct {
	TextbookID                string                   `json:"textbook_id"`
	Status                    string                   `json:"status"`
	CompletionPercentage      int                      `json:"completion_percentage"`
	CompletedSections         int                      `json:"completed_sections"`
	TotalSections             int                      `json:"total_sections"`
	Current                   *ProgressPointerResponse `json:"current,omitempty"`
	ElapsedSeconds            int64                    `json:"elapsed_seconds"`
	EstimatedRemainingSeconds *int64                   `json:"estimated_remaining_seconds,omitempty"`
}

// ToTextbookSummaryResponse 转换为教材摘要
func ToTextbookSummaryResponse(t *entity.Textbook) TextbookSummaryResponse {
	return TextbookSummaryResponse{
		ID:                   t.ID,
		Title:                t.Title,
		Description:          t.Description,
		Status:               string(t.Status),
		CompletionPercentage: t.CompletionPercentage,
		CompletedSections:    t.CompletedSections,
		TotalSections:        t.TotalSections,
		CreatedAt:            t.CreatedAt.Format(time.RFC3339),
		UpdatedAt:            t.UpdatedAt.Format(time.RFC3339),
	}
}

// ToTextbookResponse 转换为教材详情
func ToTextbookResponse(t *entity.Textbook) TextbookResponse {
	chapters := make([]ChapterResponse, 0, len(t.Chapters))
	for i := range t.Chapters {
		ch := &t.Chapters[i]
		sections := make([]SectionResponse, 0, len(ch.Sections))
		for j := range ch.Sections {
			s := &ch.Sections[j]
			sections = append(sections, SectionResponse{
				ID:       s.ID,
				Title:    s.Title,
				Content:  s.Content,
				Position: s.Position,
			})
		}
		chapters = append(chapters, ChapterResponse{
			ID:       ch.ID,
			Title:    ch.Title,
			Position: ch.Position,
			Sections: sections,
		})
	}
	return TextbookResponse{
		TextbookSummaryResponse: ToTextbookSummaryResponse(t),
		Chapters:                chapters,
	}
}

// ToTextbookListResponse 转换为教材列表
func ToTextbookListResponse(items []*entity.Textbook) TextbookListResponse {
	out := make([]TextbookSummaryResponse, 0, len(items))
	for _, t := range items {
		out = append(out, ToTextbookSummaryResponse(t))
	}
	return TextbookListResponse{Textbooks: out}
}

// ToProgressResponse 转换为进度快照响应
func ToProgressResponse(snap *progress.Snapshot) ProgressResponse {
	resp := ProgressResponse{
		TextbookID:                snap.TextbookID,
		Status:                    string(snap.Status),
		CompletionPercentage:      snap.CompletionPercentage,
		CompletedSections:         snap.CompletedSections,
		TotalSections:             snap.TotalSections,
		ElapsedSeconds:            snap.ElapsedSeconds,
		EstimatedRemainingSeconds: snap.EstimatedRemainingSeconds,
	}
	if snap.Current != nil {
		resp.Current = &ProgressPointerResponse{
			ChapterPosition: snap.Current.ChapterPosition,
			SectionPosition: snap.Current.SectionPosition,
			ChapterTitle:    snap.Current.ChapterTitle,
		}
	}
	return resp
}
