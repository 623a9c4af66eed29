// Package parse turns raw generated text back into typed brief fields.
//
// The grammar is the one generation.Builder embeds in every prompt: labeled
// sections in fixed order (Title, Overview, Bullets, optional WhyItMatters).
// Parsing is tolerant by explicit rule, not by accident: every recovery and
// coercion below is listed in the table the tests exercise.
package parse

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/threadbrief/core/internal/models"
)

// Fields is the parsed, pre-persistence shape of a brief.
type Fields struct {
	Title        string
	Overview     string
	Bullets      []string
	WhyItMatters string
}

// MissingFieldError reports a section the recovery rules could not supply.
// Only Bullets is unrecoverable.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("generated output is missing the %s section", e.Field)
}

var (
	// Section labels: case-insensitive, optional colon, optional spacing.
	// "WhyItMatters" also accepted as "Why it matters".
	labelPattern = regexp.MustCompile(`(?i)^\s*(title|overview|bullets|why\s*it\s*matters)\s*:?\s*(.*)$`)

	// Bullet markers: dash, asterisk, bullet dot, or "1." / "1)".
	bulletPattern = regexp.MustCompile(`^\s*(?:[-*•]|\d+[.)])\s+(.*)$`)
)

// Parse extracts brief fields from raw backend output.
//
// Recovery rules: a missing Title is derived from the first non-empty line;
// a missing Overview from the first bullet; missing Bullets is terminal.
// Coercion: bullets beyond the length bucket's upper bound are dropped from
// the tail; a short list is accepted as-is rather than fabricated up.
func Parse(raw string, length models.LengthType) (*Fields, error) {
	f := &Fields{}
	section := ""
	var overview, why []string

	for _, line := range strings.Split(raw, "\n") {
		if m := labelPattern.FindStringSubmatch(line); m != nil {
			label := strings.ToLower(strings.Join(strings.Fields(m[1]), ""))
			inline := strings.TrimSpace(m[2])
			switch label {
			case "title":
				section = "title"
				if f.Title == "" {
					f.Title = inline
				}
			case "overview":
				section = "overview"
				if inline != "" {
					overview = append(overview, inline)
				}
			case "bullets":
				section = "bullets"
				if inline != "" {
					if b := bulletText(inline); b != "" {
						f.Bullets = append(f.Bullets, b)
					}
				}
			case "whyitmatters":
				section = "why"
				if inline != "" {
					why = append(why, inline)
				}
			}
			continue
		}

		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		switch section {
		case "title":
			// Continuation lines after Title are stray; fold into overview
			// rather than losing content.
			overview = append(overview, trimmed)
			section = "overview"
		case "overview":
			overview = append(overview, trimmed)
		case "bullets":
			if b := bulletText(trimmed); b != "" {
				f.Bullets = append(f.Bullets, b)
			}
		case "why":
			why = append(why, trimmed)
		}
	}

	f.Overview = strings.Join(overview, " ")
	f.WhyItMatters = strings.Join(why, " ")

	if len(f.Bullets) == 0 {
		// Last resort: any bullet-marked line anywhere in the output.
		for _, line := range strings.Split(raw, "\n") {
			if b := bulletText(strings.TrimSpace(line)); b != "" {
				f.Bullets = append(f.Bullets, b)
			}
		}
	}
	if len(f.Bullets) == 0 {
		return nil, &MissingFieldError{Field: "bullets"}
	}

	if f.Title == "" {
		f.Title = firstNonEmptyLine(raw)
	}
	if f.Title == "" {
		f.Title = "Untitled Brief"
	}
	if f.Overview == "" {
		f.Overview = f.Bullets[0]
	}

	_, max := length.BulletBounds()
	if len(f.Bullets) > max {
		f.Bullets = f.Bullets[:max]
	}
	return f, nil
}

func bulletText(line string) string {
	if m := bulletPattern.FindStringSubmatch(line); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}

func firstNonEmptyLine(raw string) string {
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		// Strip a leading label if the first line happens to carry one.
		if m := labelPattern.FindStringSubmatch(line); m != nil {
			line = strings.TrimSpace(m[2])
			if line == "" {
				continue
			}
		}
		return line
	}
	return ""
}
