package generation

import (
	"context"
	"fmt"
	"strings"

	"github.com/threadbrief/core/internal/models"
)

// MockBackend is the generation substitute used when no credential is
// configured. Output is a pure function of the prompt-embedded text, mode
// and length: the title comes from the input's opening clause and bullets
// are evenly spaced excerpts sized to the length bucket, rendered in the
// grammar the parser expects. Identical inputs yield identical bytes.
type MockBackend struct{}

func NewMockBackend() *MockBackend { return &MockBackend{} }

const (
	mockTitleMaxRunes    = 60
	mockOverviewMaxRunes = 220
	mockBulletMaxWords   = 12
)

func (m *MockBackend) Generate(_ context.Context, prompt string, mode models.ModeType, length models.LengthType) (*Result, error) {
	text := contentFromPrompt(prompt)

	var out strings.Builder
	out.WriteString("Title: ")
	out.WriteString(openingClause(text))
	out.WriteString("\nOverview: ")
	out.WriteString(mockOverview(text, mode))
	out.WriteString("\nBullets:\n")
	for _, b := range excerptBullets(text, length) {
		out.WriteString("- ")
		out.WriteString(b)
		out.WriteByte('\n')
	}
	out.WriteString("WhyItMatters: Mock briefs exercise the full pipeline end-to-end without a generation credential.\n")

	return &Result{Text: out.String(), Backend: KindMock}, nil
}

// contentFromPrompt recovers the resolved text the builder embedded.
func contentFromPrompt(prompt string) string {
	if idx := strings.Index(prompt, contentMarker); idx >= 0 {
		return strings.TrimSpace(prompt[idx+len(contentMarker):])
	}
	return strings.TrimSpace(prompt)
}

// openingClause takes the input up to the first clause boundary, capped at
// mockTitleMaxRunes.
func openingClause(text string) string {
	line := text
	if idx := strings.IndexByte(line, '\n'); idx >= 0 {
		line = line[:idx]
	}
	if idx := strings.IndexAny(line, ".!?;:"); idx > 0 {
		line = line[:idx]
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return "Untitled Brief"
	}
	runes := []rune(line)
	if len(runes) > mockTitleMaxRunes {
		line = string(runes[:mockTitleMaxRunes])
	}
	return line
}

func mockOverview(text string, mode models.ModeType) string {
	flat := strings.Join(strings.Fields(text), " ")
	runes := []rune(flat)
	if len(runes) > mockOverviewMaxRunes {
		flat = string(runes[:mockOverviewMaxRunes])
	}
	angle := "key insights"
	if mode == models.ModeSummary {
		angle = "a faithful summary"
	}
	return fmt.Sprintf("Deterministic mock distillation (%s) of: %s", angle, flat)
}

// excerptBullets slices the input into evenly spaced windows, one bullet per
// window. The bullet count is the midpoint of the length bucket's bounds so
// it always satisfies the parser's range.
func excerptBullets(text string, length models.LengthType) []string {
	min, max := length.BulletBounds()
	count := (min + max) / 2

	words := strings.Fields(text)
	bullets := make([]string, 0, count)
	if len(words) == 0 {
		words = []string{"(no", "content)"}
	}
	stride := len(words) / count
	if stride == 0 {
		stride = 1
	}
	for i := 0; i < count; i++ {
		start := i * stride
		if start >= len(words) {
			start = len(words) - 1
		}
		end := start + mockBulletMaxWords
		if end > len(words) {
			end = len(words)
		}
		bullets = append(bullets, strings.Join(words[start:end], " "))
	}
	return bullets
}
