package models

import "time"

// SourceType classifies what the requester handed us.
type SourceType string

const (
	SourceVideo SourceType = "video"
	SourceText  SourceType = "text"
)

func (s SourceType) Valid() bool {
	return s == SourceVideo || s == SourceText
}

// ModeType selects the distillation angle.
type ModeType string

const (
	ModeInsights ModeType = "insights"
	ModeSummary  ModeType = "summary"
)

func (m ModeType) Valid() bool {
	return m == ModeInsights || m == ModeSummary
}

// LengthType is the requested output size bucket.
type LengthType string

const (
	LengthTLDR     LengthType = "tldr"
	LengthBrief    LengthType = "brief"
	LengthDetailed LengthType = "detailed"
)

func (l LengthType) Valid() bool {
	return l == LengthTLDR || l == LengthBrief || l == LengthDetailed
}

// BulletBounds returns the inclusive bullet count range for a length bucket.
// The prompt guidance, the mock backend and the parser coercion all read
// from here so the three can never disagree.
func (l LengthType) BulletBounds() (min, max int) {
	switch l {
	case LengthTLDR:
		return 3, 5
	case LengthDetailed:
		return 8, 12
	default:
		return 5, 8
	}
}

// BriefMeta records the request options a brief was generated with.
type BriefMeta struct {
	SourceType     SourceType `json:"source_type"`
	Mode           ModeType   `json:"mode"`
	Length         LengthType `json:"length"`
	OutputLanguage string     `json:"output_language"`
}

// Brief is the persisted artifact. Created once by the store, never mutated
// afterwards; callers treat returned values as read-only.
type Brief struct {
	ID             string     `json:"id"              gorm:"primaryKey;size:16"`
	Title          string     `json:"title"           gorm:"not null"`
	Overview       string     `json:"overview"        gorm:"type:text"`
	Bullets        []string   `json:"bullets"         gorm:"type:text;serializer:json"`
	WhyItMatters   string     `json:"why_it_matters,omitempty" gorm:"type:text"`
	SourceType     SourceType `json:"-"               gorm:"size:16"`
	Mode           ModeType   `json:"-"               gorm:"size:16"`
	Length         LengthType `json:"-"               gorm:"size:16"`
	OutputLanguage string     `json:"-"               gorm:"size:16"`
	CreatedAt      time.Time  `json:"created_at"`
}

func (Brief) TableName() string { return "briefs" }

// Meta reassembles the flattened option columns.
func (b *Brief) Meta() BriefMeta {
	return BriefMeta{
		SourceType:     b.SourceType,
		Mode:           b.Mode,
		Length:         b.Length,
		OutputLanguage: b.OutputLanguage,
	}
}
