package outline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"textbook-ai-api/internal/config"
	apperrors "textbook-ai-api/pkg/errors"
)

type fakeCompleter struct {
	reply string
	err   error
}

func (f *fakeCompleter) Complete(ctx context.Context, system, user string) (string, error) {
	return f.reply, f.err
}

func newGenerator(reply string) *Generator {
	return NewGenerator(&fakeCompleter{reply: reply}, &config.GenerationConfig{
		MaxSectionsPerChapter: 5,
	})
}

const fencedReply = "Here is your outline:\n```json\n{\"title\":\"Go Basics\",\"description\":\"An introduction\",\"chapters\":[{\"title\":\"Syntax\",\"sections\":[{\"title\":\"Variables\"},{\"title\":\"Functions\"}]},{\"title\":\"Types\",\"sections\":[{\"title\":\"Structs\"}]}]}\n```\nEnjoy!"

func TestExtractJSON(t *testing.T) {
	t.Run("fenced block with language tag", func(t *testing.T) {
		got := ExtractJSON("```json\n{\"a\":1}\n```")
		assert.Equal(t, `{"a":1}`, got)
	})

	t.Run("fenced block without language tag", func(t *testing.T) {
		got := ExtractJSON("```\n{\"a\":1}\n```")
		assert.Equal(t, `{"a":1}`, got)
	})

	t.Run("bare json passes through", func(t *testing.T) {
		got := ExtractJSON(`{"a":1}`)
		assert.Equal(t, `{"a":1}`, got)
	})

	t.Run("json with surrounding prose", func(t *testing.T) {
		got := ExtractJSON("Sure thing: {\"a\":1} hope that helps")
		assert.Equal(t, `{"a":1}`, got)
	})
}

func TestParse(t *testing.T) {
	t.Run("valid outline", func(t *testing.T) {
		outline, err := Parse(fencedReply)
		require.NoError(t, err)
		assert.Equal(t, "Go Basics", outline.Title)
		assert.Equal(t, "An introduction", outline.Description)
		assert.Len(t, outline.Chapters, 2)
	})

	t.Run("invalid json", func(t *testing.T) {
		_, err := Parse("not json at all")
		require.Error(t, err)
		assert.Equal(t, apperrors.CodeOutlineParseFailed, apperrors.AsAppError(err).Code)
	})

	t.Run("missing title", func(t *testing.T) {
		_, err := Parse(`{"chapters":[]}`)
		require.Error(t, err)
		assert.Equal(t, apperrors.CodeOutlineInvalid, apperrors.AsAppError(err).Code)
	})

	t.Run("missing chapters", func(t *testing.T) {
		_, err := Parse(`{"title":"T"}`)
		require.Error(t, err)
		assert.Equal(t, apperrors.CodeOutlineInvalid, apperrors.AsAppError(err).Code)
	})
}

func TestGenerateTruncates(t *testing.T) {
	// 模型返回 3 章、每章 6 节，请求 2 章、上限 5 节
	reply := `{"title":"Big Book","chapters":[
		{"title":"C1","sections":[{"title":"s"},{"title":"s"},{"title":"s"},{"title":"s"},{"title":"s"},{"title":"s"}]},
		{"title":"C2","sections":[{"title":"s"},{"title":"s"},{"title":"s"},{"title":"s"},{"title":"s"},{"title":"s"}]},
		{"title":"C3","sections":[{"title":"s"}]}]}`

	outline, err := newGenerator(reply).Generate(context.Background(), "a big book", 2)
	require.NoError(t, err)

	assert.Len(t, outline.Chapters, 2)
	for _, ch := range outline.Chapters {
		assert.Len(t, ch.Sections, 5)
	}
	assert.Equal(t, 10, outline.TotalSections())
}

func TestGenerateAcceptsFewerChapters(t *testing.T) {
	reply := `{"title":"Small Book","chapters":[{"title":"Only","sections":[{"title":"One"}]}]}`

	outline, err := newGenerator(reply).Generate(context.Background(), "a small book", 3)
	require.NoError(t, err)
	assert.Len(t, outline.Chapters, 1)
}

func TestGeneratePropagatesCallError(t *testing.T) {
	g := NewGenerator(&fakeCompleter{err: apperrors.ErrMaxRetriesReached}, &config.GenerationConfig{MaxSectionsPerChapter: 5})

	_, err := g.Generate(context.Background(), "anything", 3)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrMaxRetriesReached)
}
