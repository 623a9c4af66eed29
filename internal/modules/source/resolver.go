package source

import (
	"fmt"
	neturl "net/url"
	"regexp"
	"strings"

	"github.com/threadbrief/core/internal/models"
)

// MinTextChars is the floor below which pasted text carries too little
// signal to distill.
const MinTextChars = 200

// ValidationError covers malformed requests (unknown source type, empty
// source).
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// InvalidSourceError means a video source did not yield an extractable id.
type InvalidSourceError struct {
	Msg string
}

func (e *InvalidSourceError) Error() string { return e.Msg }

// TooShortError reports pasted text below the minimum length.
type TooShortError struct {
	Length int
}

func (e *TooShortError) Error() string {
	return fmt.Sprintf("pasted text is too short (%d chars, need at least %d); paste the main post plus top replies", e.Length, MinTextChars)
}

// TooLongError reports pasted text above the configured cap.
type TooLongError struct {
	Length, Max int
}

func (e *TooLongError) Error() string {
	return fmt.Sprintf("pasted text is too long (%d chars, max %d)", e.Length, e.Max)
}

// Input is a classified request source: exactly one of VideoID or Text is
// set.
type Input struct {
	VideoID string
	Text    string
}

// Resolver validates raw request input into a normalized Input.
type Resolver struct {
	maxInputChars int
}

func NewResolver(maxInputChars int) *Resolver {
	return &Resolver{maxInputChars: maxInputChars}
}

// Classify routes by source type. Video sources must contain a recognizable
// YouTube URL; text sources are cleaned and length-checked.
func (r *Resolver) Classify(sourceType models.SourceType, source string) (*Input, error) {
	source = strings.TrimSpace(source)
	if source == "" {
		return nil, &ValidationError{Msg: "source is empty"}
	}

	switch sourceType {
	case models.SourceVideo:
		id := ExtractVideoID(source)
		if id == "" {
			return nil, &InvalidSourceError{Msg: "not a recognizable YouTube URL; paste the text instead if the video has no public link"}
		}
		return &Input{VideoID: id}, nil
	case models.SourceText:
		text := NormalizeText(source)
		n := len([]rune(text))
		if n < MinTextChars {
			return nil, &TooShortError{Length: n}
		}
		if r.maxInputChars > 0 && n > r.maxInputChars {
			return nil, &TooLongError{Length: n, Max: r.maxInputChars}
		}
		return &Input{Text: text}, nil
	default:
		return nil, &ValidationError{Msg: fmt.Sprintf("unknown source_type %q", sourceType)}
	}
}

var videoIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{6,}$`)

var videoPathPrefixes = []string{"/shorts/", "/embed/", "/live/"}

// ExtractVideoID pulls the canonical video id out of any recognized URL
// shape: watch query, youtu.be short link, embed path, shorts path, live
// path. Returns "" when nothing matches.
func ExtractVideoID(raw string) string {
	u, err := neturl.Parse(raw)
	if err != nil || u.Host == "" {
		return ""
	}
	host := strings.ToLower(u.Hostname())

	if host == "youtu.be" || strings.HasSuffix(host, ".youtu.be") {
		id := strings.Trim(u.Path, "/")
		if slash := strings.IndexByte(id, '/'); slash >= 0 {
			id = id[:slash]
		}
		return validID(id)
	}

	if host != "youtube.com" && !strings.HasSuffix(host, ".youtube.com") {
		return ""
	}

	if v := u.Query().Get("v"); v != "" {
		return validID(v)
	}
	for _, prefix := range videoPathPrefixes {
		if strings.HasPrefix(u.Path, prefix) {
			id := strings.TrimPrefix(u.Path, prefix)
			if slash := strings.IndexByte(id, '/'); slash >= 0 {
				id = id[:slash]
			}
			return validID(id)
		}
	}
	return ""
}

func validID(id string) string {
	if videoIDPattern.MatchString(id) {
		return id
	}
	return ""
}

// junkTokens are boilerplate fragments social platforms leave in copied
// text.
var junkTokens = []string{
	"See more",
	"Show more",
	"Translate Tweet",
	"Like",
	"Reply",
	"Repost",
	"Retweet",
}

var (
	blankRunPattern = regexp.MustCompile(`\n{3,}`)
	spaceRunPattern = regexp.MustCompile(`[ \t]{2,}`)
)

// NormalizeText cleans pasted text: CRLF to LF, junk tokens removed, runs of
// blank lines collapsed to one, horizontal whitespace runs collapsed.
func NormalizeText(text string) string {
	t := strings.ReplaceAll(text, "\r\n", "\n")
	t = strings.ReplaceAll(t, "\r", "\n")
	for _, junk := range junkTokens {
		t = strings.ReplaceAll(t, junk, "")
	}
	t = blankRunPattern.ReplaceAllString(t, "\n\n")
	t = spaceRunPattern.ReplaceAllString(t, " ")

	lines := strings.Split(t, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
