package progress

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"textbook-ai-api/internal/domain/entity"
)

func TestProjectEstimatesRemaining(t *testing.T) {
	created := time.Now().Add(-30 * time.Second)
	textbook := &entity.Textbook{
		ID:                   "tb-1",
		Status:               entity.TextbookStatusGenerating,
		CompletionPercentage: 25,
		CompletedSections:    2,
		TotalSections:        8,
		CreatedAt:            created,
	}

	snap := Project(textbook, time.Now())

	assert.Equal(t, 25, snap.CompletionPercentage)
	assert.Equal(t, int64(30), snap.ElapsedSeconds)
	// 25% 用了 30 秒，剩余约 90 秒
	require.NotNil(t, snap.EstimatedRemainingSeconds)
	assert.InDelta(t, 90, *snap.EstimatedRemainingSeconds, 2)
}

func TestProjectNoEstimateAtZeroPercent(t *testing.T) {
	textbook := &entity.Textbook{
		ID:        "tb-1",
		Status:    entity.TextbookStatusGenerating,
		CreatedAt: time.Now().Add(-10 * time.Second),
	}

	snap := Project(textbook, time.Now())
	assert.Nil(t, snap.EstimatedRemainingSeconds)
	assert.NotNil(t, snap.Current)
}

func TestProjectTerminalStateHasNoPointer(t *testing.T) {
	textbook := &entity.Textbook{
		ID:                   "tb-1",
		Status:               entity.TextbookStatusCompleted,
		CompletionPercentage: 100,
		CreatedAt:            time.Now().Add(-time.Minute),
	}

	snap := Project(textbook, time.Now())
	assert.Nil(t, snap.Current)
	assert.Nil(t, snap.EstimatedRemainingSeconds)
}

func TestProjectRemainingClampedToZero(t *testing.T) {
	textbook := &entity.Textbook{
		ID:                   "tb-1",
		Status:               entity.TextbookStatusGenerating,
		CompletionPercentage: 99,
		CreatedAt:            time.Now().Add(-time.Second),
	}

	snap := Project(textbook, time.Now())
	require.NotNil(t, snap.EstimatedRemainingSeconds)
	assert.GreaterOrEqual(t, *snap.EstimatedRemainingSeconds, int64(0))
}

func TestCurrentPointer(t *testing.T) {
	t.Run("no chapters points to start", func(t *testing.T) {
		p := CurrentPointer(&entity.Textbook{})
		assert.Equal(t, 0, p.ChapterPosition)
		assert.Equal(t, 0, p.SectionPosition)
	})

	t.Run("chapter without sections points to its first section", func(t *testing.T) {
		p := CurrentPointer(&entity.Textbook{
			Chapters: []entity.Chapter{{Title: "Syntax", Position: 0}},
		})
		assert.Equal(t, 0, p.ChapterPosition)
		assert.Equal(t, 0, p.SectionPosition)
		assert.Equal(t, "Syntax", p.ChapterTitle)
	})

	t.Run("points to successor of latest section", func(t *testing.T) {
		p := CurrentPointer(&entity.Textbook{
			Chapters: []entity.Chapter{
				{Title: "Syntax", Position: 0, Sections: []entity.Section{{Position: 0}, {Position: 1}}},
				{Title: "Types", Position: 1, Sections: []entity.Section{{Position: 0}}},
			},
		})
		assert.Equal(t, 1, p.ChapterPosition)
		assert.Equal(t, 1, p.SectionPosition)
		assert.Equal(t, "Types", p.ChapterTitle)
	})
}
