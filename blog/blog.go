// Package blog holds the document model shared by every pipeline stage.
package blog

import "time"

// FormatConfidence reports how well the generator followed the requested
// output format.
type FormatConfidence string

const (
	ConfidenceHigh   FormatConfidence = "high"
	ConfidenceMedium FormatConfidence = "medium"
	ConfidenceLow    FormatConfidence = "low"
)

// PublicationState is the lifecycle state of a persisted document.
type PublicationState string

const (
	StateDraft     PublicationState = "DRAFT"
	StatePublished PublicationState = "PUBLISHED"
	StateScheduled PublicationState = "SCHEDULED"
)

// UploadedImage is an ingested, resized and stored image.
type UploadedImage struct {
	Data         []byte    `json:"-"`
	Filename     string    `json:"filename"`
	OriginalName string    `json:"original_name"`
	ContentType  string    `json:"content_type"`
	Size         int       `json:"size"`
	Width        int       `json:"width"`
	Height       int       `json:"height"`
	URL          string    `json:"url"`
	TakenAt      time.Time `json:"taken_at,omitzero"`
	Camera       string    `json:"camera,omitempty"`
}

// ParsedDocument is the structured article recovered from generator output.
// Body is the unformatted article text; ContentHTML is filled by the
// formatter and the embedder.
type ParsedDocument struct {
	Title            string           `json:"title"`
	SEOTitle         string           `json:"seo_title"`
	Slug             string           `json:"slug"`
	MetaDescription  string           `json:"meta_description"`
	Excerpt          string           `json:"excerpt"`
	Tags             []string         `json:"tags"`
	Outline          []string         `json:"outline,omitempty"`
	KeyTakeaways     []string         `json:"key_takeaways,omitempty"`
	ReviewSnippets   []string         `json:"review_snippets,omitempty"`
	FeaturedImage    string           `json:"featured_image,omitempty"`
	ContentHTML      string           `json:"content_html"`
	FormatConfidence FormatConfidence `json:"format_confidence"`
	Body             string           `json:"-"`
}

// Publication carries the publication state and its single timestamp.
type Publication struct {
	State        PublicationState `json:"state"`
	PublishedAt  *time.Time       `json:"published_at,omitempty"`
	ScheduledFor *time.Time       `json:"scheduled_for,omitempty"`
}

// Live reports whether the document is publicly visible at now.
func (p Publication) Live(now time.Time) bool {
	switch p.State {
	case StatePublished:
		return true
	case StateScheduled:
		return p.ScheduledFor != nil && !p.ScheduledFor.After(now)
	}
	return false
}

// Document is a persisted, formatted article.
type Document struct {
	ID int64 `json:"id"`
	ParsedDocument
	Publication
	CreatedAt time.Time `json:"created_at"`
}
