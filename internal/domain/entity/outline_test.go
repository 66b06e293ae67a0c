package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func makeOutline(chapters int, sectionsPer int) *Outline {
	o := &Outline{Title: "Intro to Testing"}
	for i := 0; i < chapters; i++ {
		ch := OutlineChapter{Title: "Chapter"}
		for j := 0; j < sectionsPer; j++ {
			ch.Sections = append(ch.Sections, OutlineSection{Title: "Section"})
		}
		o.Chapters = append(o.Chapters, ch)
	}
	return o
}

func TestOutlineNormalize(t *testing.T) {
	t.Run("truncates excess chapters and sections", func(t *testing.T) {
		o := makeOutline(3, 6)
		o.Normalize(2, 5)

		assert.Len(t, o.Chapters, 2)
		for _, ch := range o.Chapters {
			assert.Len(t, ch.Sections, 5)
		}
		assert.Equal(t, 10, o.TotalSections())
	})

	t.Run("keeps fewer chapters than requested", func(t *testing.T) {
		o := makeOutline(2, 3)
		o.Normalize(5, 5)
		assert.Len(t, o.Chapters, 2)
	})

	t.Run("nil section list becomes empty", func(t *testing.T) {
		o := &Outline{Title: "T", Chapters: []OutlineChapter{{Title: "C"}}}
		o.Normalize(3, 5)
		assert.NotNil(t, o.Chapters[0].Sections)
		assert.Empty(t, o.Chapters[0].Sections)
	})

	t.Run("idempotent", func(t *testing.T) {
		o := makeOutline(4, 7)
		o.Normalize(3, 5)
		first := o.TotalSections()
		o.Normalize(3, 5)
		assert.Equal(t, first, o.TotalSections())
		assert.Len(t, o.Chapters, 3)
	})
}

func TestPercentage(t *testing.T) {
	tests := []struct {
		name      string
		completed int
		total     int
		want      int
	}{
		{"zero total counts as complete", 0, 0, 100},
		{"zero progress", 0, 10, 0},
		{"rounds to nearest", 1, 3, 33},
		{"rounds up", 2, 3, 67},
		{"full", 10, 10, 100},
		{"clamped above total", 12, 10, 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Percentage(tt.completed, tt.total))
		})
	}
}
