// Package entity 定义领域实体
package entity

import (
	"math"
	"time"
)

// TextbookStatus 教材生成状态
type TextbookStatus string

const (
	TextbookStatusGenerating TextbookStatus = "generating"
	TextbookStatusCompleted  TextbookStatus = "completed"
	TextbookStatusError      TextbookStatus = "error"
)

// Textbook 教材实体
type Textbook struct {
	ID                   string         `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Title                string         `json:"title" gorm:"type:varchar(255);not null"`
	Description          string         `json:"description" gorm:"type:text"`
	Prompt               string         `json:"prompt" gorm:"type:text;not null"`
	Status               TextbookStatus `json:"status" gorm:"type:varchar(50);default:'generating';index"`
	CompletionPercentage int            `json:"completion_percentage" gorm:"default:0"`
	TotalSections        int            `json:"total_sections" gorm:"default:0"`
	CompletedSections    int            `json:"completed_sections" gorm:"default:0"`
	CreatedAt            time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt            time.Time      `json:"updated_at" gorm:"autoUpdateTime"`

	Chapters []Chapter `json:"chapters,omitempty" gorm:"foreignKey:TextbookID"`
}

// TableName 指定表名
func (Textbook) TableName() string {
	return "textbooks"
}

// NewTextbook 创建新教材，初始状态为 generating、进度为 0
func NewTextbook(title, prompt string, totalSections int) *Textbook {
	now := time.Now()
	return &Textbook{
		Title:                title,
		Prompt:               prompt,
		Status:               TextbookStatusGenerating,
		CompletionPercentage: 0,
		TotalSections:        totalSections,
		CompletedSections:    0,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
}

// IsTerminal 检查教材是否处于终态
func (t *Textbook) IsTerminal() bool {
	return t.Status == TextbookStatusCompleted || t.Status == TextbookStatusError
}

// Percentage 按已完成小节数计算整数百分比（四舍五入）
func Percentage(completed, total int) int {
	if total <= 0 {
		return 100
	}
	pct := int(math.Round(float64(completed) / float64(total) * 100))
	if pct > 100 {
		pct = 100
	}
	return pct
}

// Chapter 教材章节实体
type Chapter struct {
	ID         string    `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	TextbookID string    `json:"textbook_id" gorm:"type:uuid;index;not null"`
	Title      string    `json:"title" gorm:"type:varchar(255);not null"`
	Position   int       `json:"position" gorm:"not null"`
	CreatedAt  time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt  time.Time `json:"updated_at" gorm:"autoUpdateTime"`

	Sections []Section `json:"sections,omitempty" gorm:"foreignKey:ChapterID"`
}

// TableName 指定表名
func (Chapter) TableName() string {
	return "chapters"
}

// NewChapter 创建新章节
func NewChapter(textbookID, title string, position int) *Chapter {
	now := time.Now()
	return &Chapter{
		TextbookID: textbookID,
		Title:      title,
		Position:   position,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// Section 教材小节实体
type Section struct {
	ID        string    `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	ChapterID string    `json:"chapter_id" gorm:"type:uuid;index;not null"`
	Title     string    `json:"title" gorm:"type:varchar(255);not null"`
	Content   string    `json:"content" gorm:"type:text"`
	Position  int       `json:"position" gorm:"not null"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName 指定表名
func (Section) TableName() string {
	return "sections"
}

// NewSection 创建新小节
func NewSection(chapterID, title, content string, position int) *Section {
	now := time.Now()
	return &Section{
		ChapterID: chapterID,
		Title:     title,
		Content:   content,
		Position:  position,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
