package progress

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"textbook-ai-api/internal/domain/entity"
)

func chapterEvent(t *testing.T, textbookID, chapterID, title string, position int) *entity.ChangeEvent {
	t.Helper()
	payload, err := json.Marshal(entity.Chapter{ID: chapterID, TextbookID: textbookID, Title: title, Position: position})
	require.NoError(t, err)
	return &entity.ChangeEvent{
		TextbookID: textbookID,
		Table:      entity.TableChapters,
		Op:         entity.ChangeOpInsert,
		RowID:      chapterID,
		Payload:    payload,
		OccurredAt: time.Now(),
	}
}

func sectionEvent(t *testing.T, textbookID, sectionID, chapterID, title string, position int) *entity.ChangeEvent {
	t.Helper()
	payload, err := json.Marshal(entity.Section{ID: sectionID, ChapterID: chapterID, Title: title, Content: "body", Position: position})
	require.NoError(t, err)
	return &entity.ChangeEvent{
		TextbookID: textbookID,
		Table:      entity.TableSections,
		Op:         entity.ChangeOpInsert,
		RowID:      sectionID,
		Payload:    payload,
		OccurredAt: time.Now(),
	}
}

func textbookEvent(t *testing.T, textbookID string, fields map[string]interface{}) *entity.ChangeEvent {
	t.Helper()
	payload, err := json.Marshal(fields)
	require.NoError(t, err)
	return &entity.ChangeEvent{
		TextbookID: textbookID,
		Table:      entity.TableTextbooks,
		Op:         entity.ChangeOpUpdate,
		RowID:      textbookID,
		Payload:    payload,
		OccurredAt: time.Now(),
	}
}

func TestAssemblerFoldsInOrder(t *testing.T) {
	a := NewAssembler("tb-1")

	require.NoError(t, a.Apply(chapterEvent(t, "tb-1", "ch-1", "Syntax", 0)))
	require.NoError(t, a.Apply(sectionEvent(t, "tb-1", "sec-1", "ch-1", "Variables", 0)))
	require.NoError(t, a.Apply(sectionEvent(t, "tb-1", "sec-2", "ch-1", "Functions", 1)))
	require.NoError(t, a.Apply(textbookEvent(t, "tb-1", map[string]interface{}{
		"status":                "generating",
		"completion_percentage": 50,
		"completed_sections":    2,
		"total_sections":        4,
	})))

	view := a.View()
	assert.Equal(t, 50, view.CompletionPercentage)
	require.Len(t, view.Chapters, 1)
	require.Len(t, view.Chapters[0].Sections, 2)
	assert.Equal(t, "Variables", view.Chapters[0].Sections[0].Title)
}

func TestAssemblerParksOrphanSections(t *testing.T) {
	a := NewAssembler("tb-1")

	// 小节先于其章节到达
	require.NoError(t, a.Apply(sectionEvent(t, "tb-1", "sec-1", "ch-1", "Variables", 0)))
	assert.Equal(t, 1, a.PendingOrphans())
	assert.Empty(t, a.View().Chapters)

	require.NoError(t, a.Apply(chapterEvent(t, "tb-1", "ch-1", "Syntax", 0)))
	assert.Equal(t, 0, a.PendingOrphans())

	view := a.View()
	require.Len(t, view.Chapters, 1)
	require.Len(t, view.Chapters[0].Sections, 1)
	assert.Equal(t, "Variables", view.Chapters[0].Sections[0].Title)
}

func TestAssemblerDeduplicatesRedelivery(t *testing.T) {
	a := NewAssembler("tb-1")

	ev := chapterEvent(t, "tb-1", "ch-1", "Syntax", 0)
	require.NoError(t, a.Apply(ev))
	require.NoError(t, a.Apply(ev))

	sev := sectionEvent(t, "tb-1", "sec-1", "ch-1", "Variables", 0)
	require.NoError(t, a.Apply(sev))
	require.NoError(t, a.Apply(sev))

	view := a.View()
	require.Len(t, view.Chapters, 1)
	assert.Len(t, view.Chapters[0].Sections, 1)
}

func TestAssemblerProgressNeverRegresses(t *testing.T) {
	a := NewAssembler("tb-1")

	require.NoError(t, a.Apply(textbookEvent(t, "tb-1", map[string]interface{}{"completion_percentage": 60})))
	// 乱序到达的旧进度被忽略
	require.NoError(t, a.Apply(textbookEvent(t, "tb-1", map[string]interface{}{"completion_percentage": 40})))

	assert.Equal(t, 60, a.View().CompletionPercentage)
}

func TestAssemblerIgnoresOtherTextbooks(t *testing.T) {
	a := NewAssembler("tb-1")
	require.NoError(t, a.Apply(chapterEvent(t, "tb-2", "ch-9", "Other", 0)))
	assert.Empty(t, a.View().Chapters)
}

func TestAssemblerSortsByPosition(t *testing.T) {
	a := NewAssembler("tb-1")

	require.NoError(t, a.Apply(chapterEvent(t, "tb-1", "ch-2", "Types", 1)))
	require.NoError(t, a.Apply(chapterEvent(t, "tb-1", "ch-1", "Syntax", 0)))
	require.NoError(t, a.Apply(sectionEvent(t, "tb-1", "sec-2", "ch-1", "Functions", 1)))
	require.NoError(t, a.Apply(sectionEvent(t, "tb-1", "sec-1", "ch-1", "Variables", 0)))

	view := a.View()
	require.Len(t, view.Chapters, 2)
	assert.Equal(t, "Syntax", view.Chapters[0].Title)
	assert.Equal(t, "Variables", view.Chapters[0].Sections[0].Title)
}
