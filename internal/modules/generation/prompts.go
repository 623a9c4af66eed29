package generation

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/threadbrief/core/internal/models"
)

// contentMarker separates the instruction header from the source text. The
// mock backend relies on it to recover the resolved text from a prompt.
const contentMarker = "\nCONTENT:\n"

const promptTemplate = `You are ThreadBrief, a tool that produces structured briefs.

TASK:
- %s
- Output language: %s
- Length: %s

OUTPUT FORMAT (strict):
Title: <short title>
Overview: <2-3 sentences>
Bullets:
- <bullet 1>
- <bullet 2>
- ...
WhyItMatters: <optional single paragraph, or leave blank>
` + contentMarker + `%s`

// DefaultPromptBudget bounds how much resolved text is embedded in a prompt.
const DefaultPromptBudget = 24000

// Builder renders generation prompts. Identical inputs always produce
// byte-identical prompts; the only state is the configured budget.
type Builder struct {
	budget int
}

func NewBuilder(promptBudgetChars int) *Builder {
	if promptBudgetChars <= 0 {
		promptBudgetChars = DefaultPromptBudget
	}
	return &Builder{budget: promptBudgetChars}
}

// BuildPrompt renders the prompt for a resolved text. The embedded output
// grammar is the one parse.Parse understands; the two are maintained as a
// pair.
func (b *Builder) BuildPrompt(text string, mode models.ModeType, length models.LengthType, outputLanguage string) string {
	return fmt.Sprintf(promptTemplate,
		modeHint(mode),
		outputLanguage,
		lengthGuidance(length),
		TruncateHead(text, b.budget),
	)
}

func modeHint(mode models.ModeType) string {
	if mode == models.ModeSummary {
		return "Summarize what was said accurately."
	}
	return "Extract the most important insights (signal over noise)."
}

func lengthGuidance(length models.LengthType) string {
	min, max := length.BulletBounds()
	switch length {
	case models.LengthTLDR:
		return fmt.Sprintf("%d-%d bullets, very concise.", min, max)
	case models.LengthDetailed:
		return fmt.Sprintf("%d-%d bullets, include a little extra context per bullet.", min, max)
	default:
		return fmt.Sprintf("%d-%d bullets, concise but useful.", min, max)
	}
}

// TruncateHead applies the head-biased retention rule: keep the first budget
// runes, then back up to the last whitespace boundary if one falls within
// the final 15% of the window. Stable for identical input.
func TruncateHead(text string, budget int) string {
	runes := []rune(text)
	if len(runes) <= budget {
		return text
	}
	cut := budget
	floor := budget - budget*15/100
	for i := budget - 1; i >= floor; i-- {
		if unicode.IsSpace(runes[i]) {
			cut = i
			break
		}
	}
	return strings.TrimRight(string(runes[:cut]), " \t\n")
}
