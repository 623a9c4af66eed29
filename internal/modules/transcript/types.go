package transcript

import (
	"context"
	"fmt"
)

// Track is one caption stream attached to a video.
type Track struct {
	VideoID  string
	Language string // BCP-47-ish code as reported by the platform
	Name     string
	BaseURL  string
	// Generated marks auto-generated (ASR) tracks; manual tracks are
	// preferred as the "original language" choice.
	Generated bool
}

// CaptionProvider lists and downloads caption tracks. Owned externally; the
// YouTube implementation lives in youtube.go, tests inject fakes.
type CaptionProvider interface {
	ListTracks(ctx context.Context, videoID string) ([]Track, error)
	Fetch(ctx context.Context, track Track) (string, error)
}

// Metadata is the subset of video metadata the service cares about.
type Metadata struct {
	Title           string `json:"title"`
	DurationSeconds int    `json:"duration_seconds"`
}

// MetadataProvider resolves basic video metadata.
type MetadataProvider interface {
	Metadata(ctx context.Context, videoID string) (*Metadata, error)
}

// UnavailableReason distinguishes the two terminal transcript failures.
type UnavailableReason string

const (
	ReasonNoCaptions UnavailableReason = "no_captions"
	ReasonTimeout    UnavailableReason = "timeout"
)

// UnavailableError means no transcript could be produced for a video.
// Stage records which step failed ("metadata", "captions", "audio") so
// the two independent timeouts stay distinguishable to the caller.
type UnavailableError struct {
	Reason UnavailableReason
	Stage  string
	Err    error
}

func (e *UnavailableError) Error() string {
	msg := fmt.Sprintf("transcript unavailable (%s, stage=%s)", e.Reason, e.Stage)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *UnavailableError) Unwrap() error { return e.Err }
