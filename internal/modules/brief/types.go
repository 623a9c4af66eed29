package brief

import (
	"fmt"
	"time"

	"github.com/threadbrief/core/internal/models"
)

// CreateBriefDTO is the POST /briefs request body.
type CreateBriefDTO struct {
	SourceType     models.SourceType `json:"source_type"     binding:"required"`
	Source         string            `json:"source"          binding:"required"`
	Mode           models.ModeType   `json:"mode"`
	Length         models.LengthType `json:"length"`
	OutputLanguage string            `json:"output_language"`
}

// applyDefaults fills the optional request knobs.
func (d *CreateBriefDTO) applyDefaults() {
	if d.Mode == "" {
		d.Mode = models.ModeInsights
	}
	if d.Length == "" {
		d.Length = models.LengthBrief
	}
	if d.OutputLanguage == "" {
		d.OutputLanguage = "en"
	}
}

// briefResponse is the wire shape for a brief; share_url is derived from
// config at response time rather than persisted.
type briefResponse struct {
	ID           string           `json:"id"`
	ShareURL     string           `json:"share_url"`
	Title        string           `json:"title"`
	Overview     string           `json:"overview"`
	Bullets      []string         `json:"bullets"`
	WhyItMatters string           `json:"why_it_matters,omitempty"`
	Meta         models.BriefMeta `json:"meta"`
	CreatedAt    time.Time        `json:"created_at"`
}

func toResponse(b *models.Brief, shareBaseURL string) briefResponse {
	return briefResponse{
		ID:           b.ID,
		ShareURL:     shareBaseURL + "/b/" + b.ID,
		Title:        b.Title,
		Overview:     b.Overview,
		Bullets:      b.Bullets,
		WhyItMatters: b.WhyItMatters,
		Meta:         b.Meta(),
		CreatedAt:    b.CreatedAt,
	}
}

// RateLimitError is returned when a requester's daily quota is spent.
type RateLimitError struct {
	Limit   int
	ResetAt time.Time
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("daily limit reached (%d/day), resets at %s", e.Limit, e.ResetAt.Format(time.RFC3339))
}

// TimeoutError means the end-to-end pipeline deadline expired, as opposed
// to one stage's own timeout or the client going away.
type TimeoutError struct {
	After time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("brief generation exceeded the %s deadline", e.After)
}

// VideoDurationError rejects videos longer than the configured cap before
// any transcript work is spent on them.
type VideoDurationError struct {
	Minutes    float64
	MaxMinutes int
}

func (e *VideoDurationError) Error() string {
	return fmt.Sprintf("video is %.1f minutes long; max allowed is %d minutes", e.Minutes, e.MaxMinutes)
}
