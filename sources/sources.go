// Package sources gathers best-effort context for the article generator.
//
// Every source is optional: a failing, empty or panicking source is replaced
// by a labeled fallback text, so a Bundle always carries all sections.
package sources

import (
	"context"
	"strings"
	"unicode"

	"github.com/eringen/autoblog/blog"
)

// Name identifies a context section.
type Name string

const (
	BusinessFacts Name = "businessFacts"
	ImageAnalysis Name = "imageAnalysis"
	SiteProfile   Name = "siteProfile"
	SEOIntel      Name = "seoIntel"
	Reviews       Name = "reviews"
	KnowledgeBase Name = "knowledgeBase"
)

// Order is the fixed prompt order of the sections. User guidance follows
// the last section.
var Order = []Name{BusinessFacts, ImageAnalysis, SiteProfile, SEOIntel, Reviews, KnowledgeBase}

var labels = map[Name]string{
	BusinessFacts: "BUSINESS FACTS",
	ImageAnalysis: "IMAGE ANALYSIS",
	SiteProfile:   "WEBSITE PROFILE",
	SEOIntel:      "SEO INTELLIGENCE",
	Reviews:       "CUSTOMER REVIEWS",
	KnowledgeBase: "KNOWLEDGE BASE",
}

// Query is the input every source receives.
type Query struct {
	Guidance string
	Images   []blog.UploadedImage
	Terms    []string
}

// NewQuery builds a Query and derives search terms from the guidance.
func NewQuery(guidance string, images []blog.UploadedImage) Query {
	return Query{Guidance: strings.TrimSpace(guidance), Images: images, Terms: Terms(guidance)}
}

// Source fetches one context section.
type Source interface {
	Name() Name
	Fetch(ctx context.Context, q Query) (string, error)
}

// Bundle is the aggregated context of one run.
type Bundle struct {
	Sections map[Name]string
	Degraded map[Name]error
	Guidance string
	Prompt   string
}

// Section returns the text of section n.
func (b Bundle) Section(n Name) string { return b.Sections[n] }

var stopWords = map[string]struct{}{
	"der": {}, "die": {}, "das": {}, "und": {}, "ist": {}, "mit": {}, "für": {}, "ein": {}, "eine": {},
	"einen": {}, "nicht": {}, "sich": {}, "auf": {}, "den": {}, "von": {}, "zu": {}, "im": {}, "in": {},
	"am": {}, "an": {}, "bei": {}, "wir": {}, "ich": {}, "es": {}, "sie": {}, "als": {}, "auch": {},
	"the": {}, "and": {}, "for": {}, "with": {}, "are": {}, "our": {}, "your": {},
	"bitte": {}, "über": {}, "unsere": {}, "unser": {}, "dem": {}, "des": {}, "oder": {},
}

// Terms splits text into lowercase words of at least three letters,
// dropping stop words and duplicates.
func Terms(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-'
	})
	seen := make(map[string]struct{}, len(fields))
	var out []string
	for _, f := range fields {
		f = strings.Trim(f, "-")
		if len([]rune(f)) < 3 {
			continue
		}
		if _, ok := stopWords[f]; ok {
			continue
		}
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out
}
