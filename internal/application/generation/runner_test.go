package generation

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"textbook-ai-api/internal/config"
	"textbook-ai-api/internal/domain/entity"
	"textbook-ai-api/internal/domain/repository"
)

type progressUpdate struct {
	percentage int
	completed  int
	status     entity.TextbookStatus
}

type fakeTextbookRepo struct {
	textbook *entity.Textbook
	progress []progressUpdate
	statuses []entity.TextbookStatus
}

func (f *fakeTextbookRepo) Create(ctx context.Context, t *entity.Textbook) error { return nil }
func (f *fakeTextbookRepo) GetByID(ctx context.Context, id string) (*entity.Textbook, error) {
	return f.textbook, nil
}
func (f *fakeTextbookRepo) GetWithContent(ctx context.Context, id string) (*entity.Textbook, error) {
	return f.textbook, nil
}
func (f *fakeTextbookRepo) List(ctx context.Context, p repository.Pagination) (*repository.PagedResult[*entity.Textbook], error) {
	return nil, nil
}
func (f *fakeTextbookRepo) UpdateProgress(ctx context.Context, id string, percentage, completed int, status entity.TextbookStatus) error {
	f.progress = append(f.progress, progressUpdate{percentage, completed, status})
	return nil
}
func (f *fakeTextbookRepo) UpdateStatus(ctx context.Context, id string, status entity.TextbookStatus) error {
	f.statuses = append(f.statuses, status)
	return nil
}

type fakeChapterRepo struct {
	created    []*entity.Chapter
	failAtPos  map[int]bool
	nextID     int
}

func (f *fakeChapterRepo) Create(ctx context.Context, c *entity.Chapter) error {
	if f.failAtPos[c.Position] {
		return fmt.Errorf("chapter insert failed")
	}
	f.nextID++
	c.ID = fmt.Sprintf("ch-%d", f.nextID)
	f.created = append(f.created, c)
	return nil
}
func (f *fakeChapterRepo) ListByTextbook(ctx context.Context, id string) ([]*entity.Chapter, error) {
	return f.created, nil
}

type fakeSectionRepo struct {
	created   []*entity.Section
	failOn    func(s *entity.Section) bool
	preloaded int64
	nextID    int
}

func (f *fakeSectionRepo) Create(ctx context.Context, s *entity.Section) error {
	if f.failOn != nil && f.failOn(s) {
		return fmt.Errorf("section insert failed")
	}
	f.nextID++
	s.ID = fmt.Sprintf("sec-%d", f.nextID)
	f.created = append(f.created, s)
	return nil
}
func (f *fakeSectionRepo) ListByChapter(ctx context.Context, id string) ([]*entity.Section, error) {
	return nil, nil
}
func (f *fakeSectionRepo) CountByTextbook(ctx context.Context, id string) (int64, error) {
	return f.preloaded, nil
}

type fakeWriter struct {
	failOn  map[string]bool
	panicOn string
}

func (f *fakeWriter) Write(ctx context.Context, book, chapter, section string) (string, error) {
	if f.panicOn != "" && section == f.panicOn {
		panic("writer exploded")
	}
	if f.failOn[section] {
		return "", fmt.Errorf("model unavailable")
	}
	return "content for " + section, nil
}

type fakeNotifier struct {
	events []*entity.ChangeEvent
}

func (f *fakeNotifier) PublishChange(ctx context.Context, e *entity.ChangeEvent) (string, error) {
	f.events = append(f.events, e)
	return "1-0", nil
}

type fixture struct {
	runner    *Runner
	textbooks *fakeTextbookRepo
	chapters  *fakeChapterRepo
	sections  *fakeSectionRepo
	writer    *fakeWriter
	notifier  *fakeNotifier
	sleeps    []time.Duration
}

func newFixture(t *testing.T, outline *entity.Outline) *fixture {
	t.Helper()

	f := &fixture{
		textbooks: &fakeTextbookRepo{
			textbook: &entity.Textbook{
				ID:            "tb-1",
				Title:         "Go Basics",
				Status:        entity.TextbookStatusGenerating,
				TotalSections: outline.TotalSections(),
			},
		},
		chapters: &fakeChapterRepo{failAtPos: map[int]bool{}},
		sections: &fakeSectionRepo{},
		writer:   &fakeWriter{failOn: map[string]bool{}},
		notifier: &fakeNotifier{},
	}

	f.runner = NewRunner(f.textbooks, f.chapters, f.sections, f.writer, f.notifier,
		&config.GenerationConfig{SectionPacingDelay: 2 * time.Second})
	f.runner.sleep = func(ctx context.Context, d time.Duration) error {
		f.sleeps = append(f.sleeps, d)
		return nil
	}
	return f
}

func twoByTwoOutline() *entity.Outline {
	return &entity.Outline{
		Title: "Go Basics",
		Chapters: []entity.OutlineChapter{
			{Title: "Syntax", Sections: []entity.OutlineSection{{Title: "Variables"}, {Title: "Functions"}}},
			{Title: "Types", Sections: []entity.OutlineSection{{Title: "Structs"}, {Title: "Interfaces"}}},
		},
	}
}

func TestRunHappyPath(t *testing.T) {
	outline := twoByTwoOutline()
	f := newFixture(t, outline)

	require.NoError(t, f.runner.Run(context.Background(), "tb-1", outline))

	assert.Len(t, f.chapters.created, 2)
	assert.Len(t, f.sections.created, 4)
	assert.Equal(t, "content for Variables", f.sections.created[0].Content)

	// 进度单调不减，最终钉在 100/completed
	last := -1
	for _, p := range f.textbooks.progress {
		assert.GreaterOrEqual(t, p.percentage, last)
		last = p.percentage
	}
	final := f.textbooks.progress[len(f.textbooks.progress)-1]
	assert.Equal(t, 100, final.percentage)
	assert.Equal(t, entity.TextbookStatusCompleted, final.status)
	assert.Empty(t, f.textbooks.statuses, "no error status expected")

	// 首个小节不等待，其余每个等待一次
	assert.Len(t, f.sleeps, 3)
	for _, d := range f.sleeps {
		assert.Equal(t, 2*time.Second, d)
	}
}

func TestRunChapterInsertFailureSkipsItsSections(t *testing.T) {
	outline := twoByTwoOutline()
	f := newFixture(t, outline)
	f.chapters.failAtPos[0] = true

	require.NoError(t, f.runner.Run(context.Background(), "tb-1", outline))

	assert.Len(t, f.chapters.created, 1)
	assert.Len(t, f.sections.created, 2, "only second chapter's sections persisted")

	final := f.textbooks.progress[len(f.textbooks.progress)-1]
	assert.Equal(t, 100, final.percentage)
	assert.Equal(t, entity.TextbookStatusCompleted, final.status)
}

func TestRunSectionGenerationFailureWritesPlaceholder(t *testing.T) {
	outline := twoByTwoOutline()
	f := newFixture(t, outline)
	f.writer.failOn["Functions"] = true

	require.NoError(t, f.runner.Run(context.Background(), "tb-1", outline))

	require.Len(t, f.sections.created, 4, "failed section still persisted")
	assert.Contains(t, f.sections.created[1].Content, "Error generating content: model unavailable")
	assert.Contains(t, f.sections.created[1].Content, "Please try regenerating this section.")

	final := f.textbooks.progress[len(f.textbooks.progress)-1]
	assert.Equal(t, 100, final.percentage)
	assert.Equal(t, 4, final.completed)
	assert.Equal(t, entity.TextbookStatusCompleted, final.status)
}

func TestRunSectionInsertFailureDoesNotIncrement(t *testing.T) {
	outline := twoByTwoOutline()
	f := newFixture(t, outline)
	f.sections.failOn = func(s *entity.Section) bool { return s.Title == "Structs" }

	require.NoError(t, f.runner.Run(context.Background(), "tb-1", outline))

	assert.Len(t, f.sections.created, 3)

	final := f.textbooks.progress[len(f.textbooks.progress)-1]
	assert.Equal(t, 100, final.percentage, "job still pinned at 100")
	assert.Equal(t, 3, final.completed, "missing section not counted")
	assert.Equal(t, entity.TextbookStatusCompleted, final.status)
}

func TestRunPanicMarksError(t *testing.T) {
	outline := twoByTwoOutline()
	f := newFixture(t, outline)
	f.writer.panicOn = "Structs"

	err := f.runner.Run(context.Background(), "tb-1", outline)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "generation panicked")

	// 已写入的行保留，状态置为 error
	assert.Len(t, f.sections.created, 2)
	require.Len(t, f.textbooks.statuses, 1)
	assert.Equal(t, entity.TextbookStatusError, f.textbooks.statuses[0])
}

func TestRunEmptyOutlineCompletesImmediately(t *testing.T) {
	outline := &entity.Outline{Title: "Empty", Chapters: []entity.OutlineChapter{}}
	f := newFixture(t, outline)

	require.NoError(t, f.runner.Run(context.Background(), "tb-1", outline))

	require.NotEmpty(t, f.textbooks.progress)
	final := f.textbooks.progress[len(f.textbooks.progress)-1]
	assert.Equal(t, 100, final.percentage)
	assert.Equal(t, entity.TextbookStatusCompleted, final.status)
}

func TestRunResumesFromPersistedCount(t *testing.T) {
	outline := twoByTwoOutline()
	f := newFixture(t, outline)
	f.sections.preloaded = 2

	require.NoError(t, f.runner.Run(context.Background(), "tb-1", outline))

	// 续跑起点为已落库的 2 节，进度不从 0 回退
	first := f.textbooks.progress[0]
	assert.Equal(t, 50, first.percentage)
}

func TestRunPublishesChangeEvents(t *testing.T) {
	outline := twoByTwoOutline()
	f := newFixture(t, outline)

	require.NoError(t, f.runner.Run(context.Background(), "tb-1", outline))

	var chapterInserts, sectionInserts, textbookUpdates int
	for _, e := range f.notifier.events {
		assert.Equal(t, "tb-1", e.TextbookID)
		switch {
		case e.Table == entity.TableChapters && e.Op == entity.ChangeOpInsert:
			chapterInserts++
		case e.Table == entity.TableSections && e.Op == entity.ChangeOpInsert:
			sectionInserts++
		case e.Table == entity.TableTextbooks && e.Op == entity.ChangeOpUpdate:
			textbookUpdates++
		}
	}
	assert.Equal(t, 2, chapterInserts)
	assert.Equal(t, 4, sectionInserts)
	// 每节生成前后各一次，外加最终定稿
	assert.Equal(t, 9, textbookUpdates)
}
