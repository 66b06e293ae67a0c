package progress

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"textbook-ai-api/internal/domain/entity"
)

// TextbookView 由变更事件折叠出的实时文档视图
type TextbookView struct {
	ID                   string                `json:"id"`
	Title                string                `json:"title,omitempty"`
	Status               entity.TextbookStatus `json:"status"`
	CompletionPercentage int                   `json:"completion_percentage"`
	CompletedSections    int                   `json:"completed_sections"`
	TotalSections        int                   `json:"total_sections"`
	Chapters             []*ChapterView        `json:"chapters"`
}

// ChapterView 视图中的章节
type ChapterView struct {
	ID       string         `json:"id"`
	Title    string         `json:"title"`
	Position int            `json:"position"`
	Sections []*SectionView `json:"sections"`
}

// SectionView 视图中的小节
type SectionView struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Content  string `json:"content"`
	Position int    `json:"position"`
}

// Assembler 增量装配器：消费单本教材的行级变更事件，
// 逐步折叠出完整的文档视图。事件至少一次投递、跨表乱序，
// 装配器按行 ID 去重，章节未到达时其小节先行暂存。
type Assembler struct {
	mu sync.Mutex

	view *TextbookView
	// seen 已应用的插入事件行 ID，用于至少一次投递下的去重
	seen map[string]bool
	// orphans 章节尚未到达的小节，按章节 ID 暂存
	orphans map[string][]*SectionView
	// chapterIndex 章节 ID 到视图的映射
	chapterIndex map[string]*ChapterView
}

// NewAssembler 创建指定教材的增量装配器
func NewAssembler(textbookID string) *Assembler {
	return &Assembler{
		view: &TextbookView{
			ID:       textbookID,
			Status:   entity.TextbookStatusGenerating,
			Chapters: []*ChapterView{},
		},
		seen:         make(map[string]bool),
		orphans:      make(map[string][]*SectionView),
		chapterIndex: make(map[string]*ChapterView),
	}
}

// Apply 应用一条变更事件
func (a *Assembler) Apply(event *entity.ChangeEvent) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if event.TextbookID != a.view.ID {
		return nil
	}

	switch event.Table {
	case entity.TableTextbooks:
		return a.applyTextbook(event)
	case entity.TableChapters:
		return a.applyChapter(event)
	case entity.TableSections:
		return a.applySection(event)
	default:
		return fmt.Errorf("unknown table in change event: %s", event.Table)
	}
}

func (a *Assembler) applyTextbook(event *entity.ChangeEvent) error {
	var row struct {
		Title                *string                `json:"title"`
		Status               *entity.TextbookStatus `json:"status"`
		CompletionPercentage *int                   `json:"completion_percentage"`
		CompletedSections    *int                   `json:"completed_sections"`
		TotalSections        *int                   `json:"total_sections"`
	}
	if err := json.Unmarshal(event.Payload, &row); err != nil {
		return fmt.Errorf("failed to decode textbook payload: %w", err)
	}

	if row.Title != nil {
		a.view.Title = *row.Title
	}
	if row.Status != nil {
		a.view.Status = *row.Status
	}
	if row.CompletionPercentage != nil {
		// 进度只进不退：乱序到达的旧进度不回写
		if *row.CompletionPercentage > a.view.CompletionPercentage {
			a.view.CompletionPercentage = *row.CompletionPercentage
		}
	}
	if row.CompletedSections != nil && *row.CompletedSections > a.view.CompletedSections {
		a.view.CompletedSections = *row.CompletedSections
	}
	if row.TotalSections != nil {
		a.view.TotalSections = *row.TotalSections
	}
	return nil
}

func (a *Assembler) applyChapter(event *entity.ChangeEvent) error {
	if a.seen[event.RowID] {
		return nil
	}

	var row entity.Chapter
	if err := json.Unmarshal(event.Payload, &row); err != nil {
		return fmt.Errorf("failed to decode chapter payload: %w", err)
	}

	ch := &ChapterView{
		ID:       row.ID,
		Title:    row.Title,
		Position: row.Position,
		Sections: []*SectionView{},
	}

	// 接回先行到达的小节
	if parked, ok := a.orphans[ch.ID]; ok {
		ch.Sections = parked
		delete(a.orphans, ch.ID)
		sortSections(ch.Sections)
	}

	a.view.Chapters = append(a.view.Chapters, ch)
	sort.Slice(a.view.Chapters, func(i, j int) bool {
		return a.view.Chapters[i].Position < a.view.Chapters[j].Position
	})
	a.chapterIndex[ch.ID] = ch
	a.seen[event.RowID] = true
	return nil
}

func (a *Assembler) applySection(event *entity.ChangeEvent) error {
	if a.seen[event.RowID] {
		return nil
	}

	var row entity.Section
	if err := json.Unmarshal(event.Payload, &row); err != nil {
		return fmt.Errorf("failed to decode section payload: %w", err)
	}

	sec := &SectionView{
		ID:       row.ID,
		Title:    row.Title,
		Content:  row.Content,
		Position: row.Position,
	}

	if ch, ok := a.chapterIndex[row.ChapterID]; ok {
		ch.Sections = append(ch.Sections, sec)
		sortSections(ch.Sections)
	} else {
		// 章节事件尚未到达，先暂存
		a.orphans[row.ChapterID] = append(a.orphans[row.ChapterID], sec)
	}

	a.seen[event.RowID] = true
	return nil
}

// View 返回当前视图的深拷贝，调用方可安全持有
func (a *Assembler) View() *TextbookView {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := *a.view
	out.Chapters = make([]*ChapterView, len(a.view.Chapters))
	for i, ch := range a.view.Chapters {
		chCopy := *ch
		chCopy.Sections = make([]*SectionView, len(ch.Sections))
		for j, s := range ch.Sections {
			sCopy := *s
			chCopy.Sections[j] = &sCopy
		}
		out.Chapters[i] = &chCopy
	}
	return &out
}

// PendingOrphans 尚未接回章节的小节数，用于观测装配滞后
func (a *Assembler) PendingOrphans() int {
	a.mu.Lock()
	defer a.mu.Unlock()

	n := 0
	for _, parked := range a.orphans {
		n += len(parked)
	}
	return n
}

func sortSections(sections []*SectionView) {
	sort.Slice(sections, func(i, j int) bool {
		return sections[i].Position < sections[j].Position
	})
}
