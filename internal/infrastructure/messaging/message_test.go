package messaging

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculateBackoff(t *testing.T) {
	cfg := BackoffConfig{
		Initial:    time.Second,
		Max:        30 * time.Second,
		Multiplier: 2,
	}

	assert.Equal(t, time.Second, cfg.CalculateBackoff(0))
	assert.Equal(t, 2*time.Second, cfg.CalculateBackoff(1))
	assert.Equal(t, 4*time.Second, cfg.CalculateBackoff(2))
	assert.Equal(t, 30*time.Second, cfg.CalculateBackoff(10), "capped at max")
}

func TestMessagePayloadRoundTrip(t *testing.T) {
	job := &GenerationJobMessage{
		TextbookID:   "tb-1",
		Prompt:       "linear algebra for engineers",
		ChapterCount: 3,
	}

	msg, err := NewMessage(job.TextbookID, MsgTypeTextbookGen, job.TextbookID, job)
	require.NoError(t, err)
	assert.Equal(t, "tb-1", msg.TextbookID)

	var decoded GenerationJobMessage
	require.NoError(t, msg.UnmarshalPayload(&decoded))
	assert.Equal(t, job.Prompt, decoded.Prompt)
	assert.Equal(t, job.ChapterCount, decoded.ChapterCount)
}

func TestDLQStreamName(t *testing.T) {
	assert.Equal(t, "dlq:stream:textbook:gen", StreamTextbookGen.DLQStream())
}
