package transcript

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Acquirer turns a video id into transcript text. Track listing and caption
// download run under independent timeouts; when captions are missing and the
// audio fallback is enabled, one transcription attempt is made under its own
// wall-clock budget and its failure is terminal.
type Acquirer struct {
	captions       CaptionProvider
	fallback       *AudioFallback // nil = disabled
	metaTimeout    time.Duration
	captionTimeout time.Duration
	log            *zap.Logger
}

func NewAcquirer(captions CaptionProvider, fallback *AudioFallback, metaTimeout, captionTimeout time.Duration, log *zap.Logger) *Acquirer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Acquirer{
		captions:       captions,
		fallback:       fallback,
		metaTimeout:    metaTimeout,
		captionTimeout: captionTimeout,
		log:            log,
	}
}

// Acquire fetches transcript text for a video, preferring an exact
// output-language track, then the original (manual) track, then any track.
func (a *Acquirer) Acquire(ctx context.Context, videoID, lang string) (string, error) {
	listCtx, cancel := context.WithTimeout(ctx, a.metaTimeout)
	tracks, err := a.captions.ListTracks(listCtx, videoID)
	cancel()
	if err != nil {
		if deadlineHit(listCtx, err) {
			return "", &UnavailableError{Reason: ReasonTimeout, Stage: "metadata", Err: err}
		}
		return "", &UnavailableError{Reason: ReasonNoCaptions, Stage: "metadata", Err: err}
	}
	if len(tracks) == 0 {
		return a.noCaptions(ctx, videoID, nil)
	}

	track := selectTrack(tracks, lang)
	a.log.Debug("caption track selected",
		zap.String("video_id", videoID),
		zap.String("language", track.Language),
		zap.Bool("generated", track.Generated),
	)

	fetchCtx, cancel := context.WithTimeout(ctx, a.captionTimeout)
	text, err := a.captions.Fetch(fetchCtx, track)
	cancel()
	if err != nil {
		if deadlineHit(fetchCtx, err) {
			return "", &UnavailableError{Reason: ReasonTimeout, Stage: "captions", Err: err}
		}
		return "", &UnavailableError{Reason: ReasonNoCaptions, Stage: "captions", Err: err}
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return a.noCaptions(ctx, videoID, errors.New("caption track is empty"))
	}
	return text, nil
}

// noCaptions is the no-track terminal path, with the optional single-shot
// audio fallback in front of it.
func (a *Acquirer) noCaptions(ctx context.Context, videoID string, cause error) (string, error) {
	if a.fallback == nil {
		return "", &UnavailableError{Reason: ReasonNoCaptions, Stage: "captions", Err: cause}
	}

	a.log.Info("no captions, attempting audio transcription fallback", zap.String("video_id", videoID))
	text, err := a.fallback.Transcribe(ctx, videoID)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", &UnavailableError{Reason: ReasonTimeout, Stage: "audio", Err: err}
		}
		return "", &UnavailableError{Reason: ReasonNoCaptions, Stage: "audio", Err: err}
	}
	return text, nil
}

// selectTrack implements the preference order: exact language match, then a
// manual track (original language), then the first track.
func selectTrack(tracks []Track, lang string) Track {
	for _, t := range tracks {
		if matchLang(t.Language, lang) {
			return t
		}
	}
	for _, t := range tracks {
		if !t.Generated {
			return t
		}
	}
	return tracks[0]
}

// matchLang compares language codes, treating a base-language match
// ("en" vs "en-US") as exact.
func matchLang(trackLang, want string) bool {
	trackLang = strings.ToLower(trackLang)
	want = strings.ToLower(want)
	if trackLang == want {
		return true
	}
	if base, _, ok := strings.Cut(trackLang, "-"); ok && base == want {
		return true
	}
	return false
}

func deadlineHit(ctx context.Context, err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded)
}
