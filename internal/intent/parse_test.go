package intent

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/dental-scheduler/internal/scheduling"
)

func TestParseResponseToleratesWrapping(t *testing.T) {
	now := time.Date(2025, 6, 9, 9, 0, 0, 0, time.UTC)
	inputs := []string{
		"```json\n{\"intent\":\"cancel\"}\n```",
		"Sure! Here is the JSON: {\"intent\":\"cancel\"} Let me know.",
		"<think>The patient wants to cancel.</think>\n{\"intent\":\"cancel\"}",
		`{"intent_type":"cancel"}`,
		"{\"intent\":\"cancel\"}\nLet me know if you need anything else.",
		"```json\n{\"intent\":\"cancel\"}\n```\nThis is my best reading of the message.",
		"{\"intent\":\"cancel\",\"service\":\"braces {} in text\"} trailing } brace",
	}
	for _, in := range inputs {
		got, err := parseResponse(in, now)
		require.NoError(t, err, "input %q", in)
		assert.Equal(t, scheduling.IntentCancel, got.Type, "input %q", in)
	}
}

func TestParseResponseResolvesRelativeDates(t *testing.T) {
	now := time.Date(2025, 6, 9, 9, 0, 0, 0, time.UTC)
	got, err := parseResponse(`{"intent":"reschedule","date":"tomorrow","time":"3pm"}`, now)
	require.NoError(t, err)
	assert.Equal(t, "2025-06-10", got.Date)
	assert.Equal(t, "15:00", got.Time)
}

func TestParseResponseRejectsEmpty(t *testing.T) {
	_, err := parseResponse("   ", time.Now())
	assert.Error(t, err)
}

func TestCacheKeyScopedByDay(t *testing.T) {
	assert.NotEqual(t, cacheKey("2025-06-09", "tomorrow at 2"), cacheKey("2025-06-10", "tomorrow at 2"))
	assert.Equal(t, cacheKey("2025-06-09", "hi"), cacheKey("2025-06-09", "hi"))
}
