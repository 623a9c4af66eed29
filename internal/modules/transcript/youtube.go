package transcript

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"html"
	"io"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

const (
	watchURLFormat = "https://www.youtube.com/watch?v=%s&hl=en"
	// Some caption endpoints refuse requests without a browser-ish UA.
	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"

	maxWatchPageBytes = 4 << 20
)

// YouTubeProvider scrapes the watch page for the player response, which
// carries both the caption track list and the video details. One page fetch
// serves ListTracks and Metadata alike.
type YouTubeProvider struct {
	client *http.Client
	log    *zap.Logger
}

func NewYouTubeProvider(client *http.Client, log *zap.Logger) *YouTubeProvider {
	if client == nil {
		client = http.DefaultClient
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &YouTubeProvider{client: client, log: log}
}

type ytCaptionTrack struct {
	BaseURL      string `json:"baseUrl"`
	LanguageCode string `json:"languageCode"`
	Kind         string `json:"kind"` // "asr" for auto-generated tracks
	Name         struct {
		SimpleText string `json:"simpleText"`
	} `json:"name"`
}

func (p *YouTubeProvider) ListTracks(ctx context.Context, videoID string) ([]Track, error) {
	page, err := p.watchPage(ctx, videoID)
	if err != nil {
		return nil, err
	}

	rawTracks, ok := extractJSONArray(page, `"captionTracks":`)
	if !ok {
		// A watch page without captionTracks is a video with no captions,
		// not a scrape failure.
		return nil, nil
	}

	var parsed []ytCaptionTrack
	if err := json.Unmarshal([]byte(rawTracks), &parsed); err != nil {
		return nil, fmt.Errorf("parse caption track list: %w", err)
	}

	tracks := make([]Track, 0, len(parsed))
	for _, t := range parsed {
		if t.BaseURL == "" {
			continue
		}
		tracks = append(tracks, Track{
			VideoID:   videoID,
			Language:  t.LanguageCode,
			Name:      t.Name.SimpleText,
			BaseURL:   t.BaseURL,
			Generated: t.Kind == "asr",
		})
	}
	return tracks, nil
}

// timedText is the caption XML shape served by the timedtext endpoint.
type timedText struct {
	Texts []struct {
		Body string `xml:",chardata"`
	} `xml:"text"`
}

func (p *YouTubeProvider) Fetch(ctx context.Context, track Track) (string, error) {
	body, err := p.get(ctx, track.BaseURL)
	if err != nil {
		return "", err
	}

	var doc timedText
	if err := xml.Unmarshal(body, &doc); err != nil {
		return "", fmt.Errorf("parse caption XML: %w", err)
	}

	parts := make([]string, 0, len(doc.Texts))
	for _, t := range doc.Texts {
		line := strings.TrimSpace(html.UnescapeString(t.Body))
		if line != "" {
			parts = append(parts, line)
		}
	}
	return strings.Join(parts, " "), nil
}

func (p *YouTubeProvider) Metadata(ctx context.Context, videoID string) (*Metadata, error) {
	page, err := p.watchPage(ctx, videoID)
	if err != nil {
		return nil, err
	}

	details, ok := extractJSONObject(page, `"videoDetails":`)
	if !ok {
		return nil, errors.New("video details not found on watch page")
	}

	var parsed struct {
		Title         string `json:"title"`
		LengthSeconds string `json:"lengthSeconds"`
	}
	if err := json.Unmarshal([]byte(details), &parsed); err != nil {
		return nil, fmt.Errorf("parse video details: %w", err)
	}
	seconds, _ := strconv.Atoi(parsed.LengthSeconds)
	return &Metadata{Title: parsed.Title, DurationSeconds: seconds}, nil
}

func (p *YouTubeProvider) watchPage(ctx context.Context, videoID string) (string, error) {
	body, err := p.get(ctx, fmt.Sprintf(watchURLFormat, videoID))
	if err != nil {
		return "", err
	}
	return string(body), nil
}

func (p *YouTubeProvider) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept-Language", "en")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("youtube returned status %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxWatchPageBytes))
}

// extractJSONArray returns the balanced [...] that follows marker in page.
func extractJSONArray(page, marker string) (string, bool) {
	return extractBalanced(page, marker, '[', ']')
}

// extractJSONObject returns the balanced {...} that follows marker in page.
func extractJSONObject(page, marker string) (string, bool) {
	return extractBalanced(page, marker, '{', '}')
}

// extractBalanced scans for marker and returns the balanced open..close
// span after it, respecting JSON string literals and escapes.
func extractBalanced(page, marker string, opener, closer byte) (string, bool) {
	idx := strings.Index(page, marker)
	if idx < 0 {
		return "", false
	}
	rest := page[idx+len(marker):]
	start := strings.IndexByte(rest, opener)
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(rest); i++ {
		c := rest[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case opener:
			depth++
		case closer:
			depth--
			if depth == 0 {
				return rest[start : i+1], true
			}
		}
	}
	return "", false
}
