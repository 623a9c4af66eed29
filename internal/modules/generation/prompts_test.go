package generation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/threadbrief/core/internal/models"
)

func TestBuildPromptDeterministic(t *testing.T) {
	b := NewBuilder(0)
	text := "A long discussion about database migrations and why they fail."

	p1 := b.BuildPrompt(text, models.ModeInsights, models.LengthBrief, "en")
	p2 := b.BuildPrompt(text, models.ModeInsights, models.LengthBrief, "en")
	require.Equal(t, p1, p2, "identical inputs must render byte-identical prompts")

	require.Contains(t, p1, "Output language: en")
	require.Contains(t, p1, "5-8 bullets")
	require.Contains(t, p1, contentMarker)
	require.True(t, strings.HasSuffix(p1, text), "resolved text goes at the end of the prompt")
}

func TestBuildPromptVariesByOptions(t *testing.T) {
	b := NewBuilder(0)
	text := "some resolved text"

	insights := b.BuildPrompt(text, models.ModeInsights, models.LengthBrief, "en")
	summary := b.BuildPrompt(text, models.ModeSummary, models.LengthBrief, "en")
	require.NotEqual(t, insights, summary)
	require.Contains(t, summary, "Summarize")

	tldr := b.BuildPrompt(text, models.ModeInsights, models.LengthTLDR, "en")
	detailed := b.BuildPrompt(text, models.ModeInsights, models.LengthDetailed, "en")
	require.Contains(t, tldr, "3-5 bullets")
	require.Contains(t, detailed, "8-12 bullets")
}

func TestTruncateHead(t *testing.T) {
	t.Run("under budget untouched", func(t *testing.T) {
		require.Equal(t, "short text", TruncateHead("short text", 100))
	})

	t.Run("cuts at whitespace in final window", func(t *testing.T) {
		// Budget 100; the last space before the cut falls inside the final
		// 15% window, so the cut backs up to it.
		text := strings.Repeat("a", 92) + " " + strings.Repeat("b", 100)
		got := TruncateHead(text, 100)
		require.Equal(t, strings.Repeat("a", 92), got)
	})

	t.Run("hard cut when no whitespace in window", func(t *testing.T) {
		text := strings.Repeat("x", 300)
		got := TruncateHead(text, 100)
		require.Len(t, got, 100)
	})

	t.Run("rune safe", func(t *testing.T) {
		text := strings.Repeat("日", 300)
		got := TruncateHead(text, 100)
		require.Len(t, []rune(got), 100)
	})

	t.Run("deterministic", func(t *testing.T) {
		text := strings.Repeat("word ", 5000)
		require.Equal(t, TruncateHead(text, 24000), TruncateHead(text, 24000))
	})
}
