package textbook

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
	"textbook-ai-api/internal/infrastructure/messaging"
	apperrors "textbook-ai-api/pkg/errors"
)

type fakeRepo struct {
	created  []*entity.Textbook
	statuses map[string]entity.TextbookStatus
	byID     map[string]*entity.Textbook
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		statuses: map[string]entity.TextbookStatus{},
		byID:     map[string]*entity.Textbook{},
	}
}

func (f *fakeRepo) Create(ctx context.Context, t *entity.Textbook) error {
	t.ID = fmt.Sprintf("tb-%d", len(f.created)+1)
	f.created = append(f.created, t)
	f.byID[t.ID] = t
	return nil
}
func (f *fakeRepo) GetByID(ctx context.Context, id string) (*entity.Textbook, error) {
	if t, ok := f.byID[id]; ok {
		return t, nil
	}
	return nil, apperrors.ErrTextbookNotFound
}
func (f *fakeRepo) GetWithContent(ctx context.Context, id string) (*entity.Textbook, error) {
	return f.GetByID(ctx, id)
}
func (f *fakeRepo) List(ctx context.Context, p repository.Pagination) (*repository.PagedResult[*entity.Textbook], error) {
	return repository.NewPagedResult(f.created, int64(len(f.created)), p), nil
}
func (f *fakeRepo) UpdateProgress(ctx context.Context, id string, pct, completed int, status entity.TextbookStatus) error {
	return nil
}
func (f *fakeRepo) UpdateStatus(ctx context.Context, id string, status entity.TextbookStatus) error {
	f.statuses[id] = status
	return nil
}

type fakeOutlines struct {
	outline *entity.Outline
	err     error
	gotN    int
}

func (f *fakeOutlines) Generate(ctx context.Context, prompt string, chapterCount int) (*entity.Outline, error) {
	f.gotN = chapterCount
	return f.outline, f.err
}

type fakePublisher struct {
	jobs []*messaging.GenerationJobMessage
	err  error
}

func (f *fakePublisher) PublishGenJob(ctx context.Context, job *messaging.GenerationJobMessage) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.jobs = append(f.jobs, job)
	return "1-0", nil
}

func genConfig() *config.GenerationConfig {
	return &config.GenerationConfig{
		MinChapters:           1,
		MaxChapters:           10,
		DefaultChapterCount:   3,
		MaxSectionsPerChapter: 5,
		SectionPacingDelay:    2 * time.Second,
	}
}

func validOutline() *entity.Outline {
	return &entity.Outline{
		Title:       "Graph Theory",
		Description: "An introduction",
		Chapters: []entity.OutlineChapter{
			{Title: "Basics", Sections: []entity.OutlineSection{{Title: "Nodes"}, {Title: "Edges"}}},
		},
	}
}

func TestStartGeneration(t *testing.T) {
	repo := newFakeRepo()
	outlines := &fakeOutlines{outline: validOutline()}
	publisher := &fakePublisher{}
	svc := NewService(repo, outlines, publisher, nil, genConfig())

	textbook, err := svc.StartGeneration(context.Background(), "Intro to graph theory", 2)
	require.NoError(t, err)

	assert.Equal(t, "tb-1", textbook.ID)
	assert.Equal(t, "Graph Theory", textbook.Title)
	assert.Equal(t, entity.TextbookStatusGenerating, textbook.Status)
	assert.Equal(t, 0, textbook.CompletionPercentage)
	assert.Equal(t, 2, textbook.TotalSections)

	require.Len(t, publisher.jobs, 1)
	assert.Equal(t, "tb-1", publisher.jobs[0].TextbookID)
	assert.NotNil(t, publisher.jobs[0].Outline)
}

func TestStartGenerationRejectsShortPrompt(t *testing.T) {
	svc := NewService(newFakeRepo(), &fakeOutlines{outline: validOutline()}, &fakePublisher{}, nil, genConfig())

	_, err := svc.StartGeneration(context.Background(), "short", 2)
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeInvalidParam, apperrors.AsAppError(err).Code)
}

func TestStartGenerationClampsChapterCount(t *testing.T) {
	tests := []struct {
		name      string
		requested int
		want      int
	}{
		{"zero takes default", 0, 3},
		{"below min clamped", -2, 1},
		{"above max clamped", 50, 10},
		{"in range untouched", 7, 7},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			outlines := &fakeOutlines{outline: validOutline()}
			svc := NewService(newFakeRepo(), outlines, &fakePublisher{}, nil, genConfig())

			_, err := svc.StartGeneration(context.Background(), "a sufficiently long prompt", tt.requested)
			require.NoError(t, err)
			assert.Equal(t, tt.want, outlines.gotN)
		})
	}
}

func TestStartGenerationOutlineFailureCreatesNothing(t *testing.T) {
	repo := newFakeRepo()
	outlines := &fakeOutlines{err: apperrors.ErrOutlineInvalid}
	svc := NewService(repo, outlines, &fakePublisher{}, nil, genConfig())

	_, err := svc.StartGeneration(context.Background(), "a sufficiently long prompt", 2)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrOutlineInvalid)
	assert.Empty(t, repo.created, "no textbook row on outline failure")
}

func TestStartGenerationDispatchFailureMarksError(t *testing.T) {
	repo := newFakeRepo()
	publisher := &fakePublisher{err: fmt.Errorf("stream unavailable")}
	svc := NewService(repo, &fakeOutlines{outline: validOutline()}, publisher, nil, genConfig())

	_, err := svc.StartGeneration(context.Background(), "a sufficiently long prompt", 2)
	require.Error(t, err)

	require.Len(t, repo.created, 1)
	assert.Equal(t, entity.TextbookStatusError, repo.statuses[repo.created[0].ID])
}

func TestProgressSnapshot(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, &fakeOutlines{outline: validOutline()}, &fakePublisher{}, nil, genConfig())

	textbook, err := svc.StartGeneration(context.Background(), "a sufficiently long prompt", 1)
	require.NoError(t, err)

	snap, err := svc.Progress(context.Background(), textbook.ID)
	require.NoError(t, err)
	assert.Equal(t, textbook.ID, snap.TextbookID)
	assert.Equal(t, entity.TextbookStatusGenerating, snap.Status)
	assert.Equal(t, 2, snap.TotalSections)
}

func TestProgressNotFound(t *testing.T) {
	svc := NewService(newFakeRepo(), &fakeOutlines{outline: validOutline()}, &fakePublisher{}, nil, genConfig())

	_, err := svc.Progress(context.Background(), "missing")
	assert.ErrorIs(t, err, apperrors.ErrTextbookNotFound)
}
