// Package progress 提供生成进度的只读投影
package progress

import (
	"sort"
	"time"

	"textbook-ai-api/internal/domain/entity"
)

// Pointer 指向当前正在生成的小节位置
type Pointer struct {
	ChapterPosition int    `json:"chapter_position"`
	SectionPosition int    `json:"section_position"`
	ChapterTitle    string `json:"chapter_title,omitempty"`
}

// Snapshot 某一时刻的进度快照。纯派生数据，可随时从持久化状态重算
type Snapshot struct {
	TextbookID           string                `json:"textbook_id"`
	Status               entity.TextbookStatus `json:"status"`
	CompletionPercentage int                   `json:"completion_percentage"`
	CompletedSections    int                   `json:"completed_sections"`
	TotalSections        int                   `json:"total_sections"`
	Current              *Pointer              `json:"current,omitempty"`
	ElapsedSeconds       int64                 `json:"elapsed_seconds"`
	// EstimatedRemainingSeconds 预估剩余秒数；进度为 0 或已终态时为 nil
	EstimatedRemainingSeconds *int64 `json:"estimated_remaining_seconds,omitempty"`
}

// Project 从教材当前状态派生进度快照。
// 预估剩余时间按 elapsed/(pct/100) - elapsed 计算并钳制为非负，
// 进度为 0 时无法预估。
func Project(textbook *entity.Textbook, now time.Time) Snapshot {
	elapsed := now.Sub(textbook.CreatedAt)
	if elapsed < 0 {
		elapsed = 0
	}

	snap := Snapshot{
		TextbookID:           textbook.ID,
		Status:               textbook.Status,
		CompletionPercentage: textbook.CompletionPercentage,
		CompletedSections:    textbook.CompletedSections,
		TotalSections:        textbook.TotalSections,
		ElapsedSeconds:       int64(elapsed.Seconds()),
	}

	if !textbook.IsTerminal() {
		snap.Current = CurrentPointer(textbook)

		if pct := textbook.CompletionPercentage; pct > 0 {
			remaining := int64(float64(elapsed.Seconds())/(float64(pct)/100) - elapsed.Seconds())
			if remaining < 0 {
				remaining = 0
			}
			snap.EstimatedRemainingSeconds = &remaining
		}
	}

	return snap
}

// CurrentPointer 定位当前正在生成的小节，取最近插入小节的后继。
// 需要 textbook 带有章节内容；尚无任何章节或小节时指向相应起点。
func CurrentPointer(textbook *entity.Textbook) *Pointer {
	if len(textbook.Chapters) == 0 {
		return &Pointer{ChapterPosition: 0, SectionPosition: 0}
	}

	chapters := make([]entity.Chapter, len(textbook.Chapters))
	copy(chapters, textbook.Chapters)
	sort.Slice(chapters, func(i, j int) bool { return chapters[i].Position < chapters[j].Position })

	// 生成顺序严格按章、节位置递增，最近插入的小节
	// 就是位置序最大的那个
	var lastChapter *entity.Chapter
	lastSection := -1
	for i := range chapters {
		ch := &chapters[i]
		for _, s := range ch.Sections {
			if lastChapter == nil || ch.Position > lastChapter.Position ||
				(ch.Position == lastChapter.Position && s.Position > lastSection) {
				lastChapter = ch
				lastSection = s.Position
			}
		}
	}

	if lastChapter == nil {
		first := chapters[0]
		return &Pointer{
			ChapterPosition: first.Position,
			SectionPosition: 0,
			ChapterTitle:    first.Title,
		}
	}

	return &Pointer{
		ChapterPosition: lastChapter.Position,
		SectionPosition: lastSection + 1,
		ChapterTitle:    lastChapter.Title,
	}
}
