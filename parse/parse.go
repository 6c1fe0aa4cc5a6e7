// Package parse recovers a structured article from free-form generator
// output. Parsing never fails: when the output ignores the requested format
// the parser degrades through simpler strategies and finally synthesizes a
// valid document, lowering the reported format confidence.
package parse

import (
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/eringen/autoblog/blog"
)

// Strategy names the step of the chain that produced the body.
type Strategy string

const (
	StrategyJSON         Strategy = "json"
	StrategyMarkers      Strategy = "markers"
	StrategySectionSplit Strategy = "section-split"
	StrategySynthesis    Strategy = "synthesis"
)

// Options holds the parser thresholds.
type Options struct {
	Locale           Locale
	MinTitleLength   int
	MinMetaLength    int
	MinExcerptLength int
	MinSlugLength    int
	MinBodyLength    int
	MinSegmentLength int
	MinFunctionWords int
	MaxMetaLength    int
	MaxExcerptLength int
	MaxTags          int
}

func (o *Options) setDefaults() {
	if o.Locale.Code == "" {
		o.Locale = German
	}
	if o.MinTitleLength <= 0 {
		o.MinTitleLength = 10
	}
	if o.MinMetaLength <= 0 {
		o.MinMetaLength = 30
	}
	if o.MinExcerptLength <= 0 {
		o.MinExcerptLength = 30
	}
	if o.MinSlugLength <= 0 {
		o.MinSlugLength = 3
	}
	if o.MinBodyLength <= 0 {
		o.MinBodyLength = 100
	}
	if o.MinSegmentLength <= 0 {
		o.MinSegmentLength = 100
	}
	if o.MinFunctionWords <= 0 {
		o.MinFunctionWords = 3
	}
	if o.MaxMetaLength <= 0 {
		o.MaxMetaLength = 160
	}
	if o.MaxExcerptLength <= 0 {
		o.MaxExcerptLength = 300
	}
	if o.MaxTags <= 0 {
		o.MaxTags = 8
	}
}

// Result is a parsed document and how it was recovered.
type Result struct {
	Document blog.ParsedDocument
	Strategy Strategy
	// Found lists the fields recovered from explicit markers.
	Found []string
}

// Parser turns raw generator text into a ParsedDocument.
type Parser struct {
	opts Options
}

// New returns a Parser.
func New(opts Options) *Parser {
	opts.setDefaults()
	return &Parser{opts: opts}
}

// extracted is the raw material of a document before defaults apply.
type extracted struct {
	title, seoTitle, slug, meta, excerpt string
	tags, outline, takeaways, reviews    []string
	body                                 string
}

func (e extracted) found() []string {
	var out []string
	add := func(name string, ok bool) {
		if ok {
			out = append(out, name)
		}
	}
	add("title", e.title != "")
	add("seo_title", e.seoTitle != "")
	add("slug", e.slug != "")
	add("meta_description", e.meta != "")
	add("excerpt", e.excerpt != "")
	add("tags", len(e.tags) > 0)
	add("outline", len(e.outline) > 0)
	add("key_takeaways", len(e.takeaways) > 0)
	add("review_snippets", len(e.reviews) > 0)
	return out
}

func (e extracted) hasSEOField() bool {
	return e.meta != "" || e.slug != "" || e.seoTitle != "" || len(e.tags) > 0
}

// Parse extracts a document from raw. existingSlugs is the slug registry
// the generated slug must not collide with.
func (p *Parser) Parse(raw string, existingSlugs []string) Result {
	text := normalize(raw)

	var ex extracted
	var strategy Strategy
	if jx, ok := p.tryJSON(text); ok {
		ex, strategy = jx, StrategyJSON
	} else {
		text = stripUnwantedSections(text)
		ex = p.extractFields(text)
		if body, ok := p.tryMarkers(text); ok {
			ex.body, strategy = body, StrategyMarkers
		} else if body, ok := p.trySectionSplit(text); ok {
			ex.body, strategy = body, StrategySectionSplit
		} else {
			ex.body, strategy = p.trySynthesis(text), StrategySynthesis
		}
	}
	ex.body = strings.TrimSpace(stripUnwantedHeadings(ex.body))
	if len(ex.body) < p.opts.MinBodyLength && strategy != StrategySynthesis {
		ex.body, strategy = p.trySynthesis(text), StrategySynthesis
	}

	doc := p.assemble(ex, existingSlugs)
	switch {
	case strategy == StrategySynthesis:
		doc.FormatConfidence = blog.ConfidenceLow
	case (strategy == StrategyMarkers || strategy == StrategyJSON) && ex.title != "" && ex.hasSEOField():
		doc.FormatConfidence = blog.ConfidenceHigh
	default:
		doc.FormatConfidence = blog.ConfidenceMedium
	}

	res := Result{Document: doc, Strategy: strategy, Found: ex.found()}
	log.Debug().
		Str("strategy", string(strategy)).
		Str("confidence", string(doc.FormatConfidence)).
		Strs("found", res.Found).
		Int("body_chars", len(doc.Body)).
		Msg("Generator output parsed")
	return res
}

// assemble applies field defaults and slug uniqueness.
func (p *Parser) assemble(ex extracted, existingSlugs []string) blog.ParsedDocument {
	loc := p.opts.Locale
	doc := blog.ParsedDocument{
		Title:           ex.title,
		SEOTitle:        ex.seoTitle,
		MetaDescription: ex.meta,
		Excerpt:         ex.excerpt,
		Tags:            ex.tags,
		Outline:         ex.outline,
		KeyTakeaways:    ex.takeaways,
		ReviewSnippets:  ex.reviews,
		Body:            ex.body,
	}

	if doc.Title == "" {
		doc.Title = firstHeading(ex.body, p.opts.MinTitleLength)
	}
	if doc.Title == "" {
		doc.Title = loc.DefaultTitle
	}
	if doc.SEOTitle == "" {
		doc.SEOTitle = doc.Title
	}

	plain := plainText(ex.body)
	if doc.MetaDescription == "" {
		doc.MetaDescription = truncateWords(leadSentences(plain, p.opts.MaxMetaLength), p.opts.MaxMetaLength)
	}
	if len([]rune(doc.MetaDescription)) < p.opts.MinMetaLength {
		doc.MetaDescription = loc.DefaultMeta
	}
	doc.MetaDescription = truncateWords(doc.MetaDescription, p.opts.MaxMetaLength)

	if doc.Excerpt == "" {
		doc.Excerpt = truncateWords(firstParagraph(plain, p.opts.MinExcerptLength), p.opts.MaxExcerptLength)
	}
	if doc.Excerpt == "" {
		doc.Excerpt = doc.MetaDescription
	}

	if len(doc.Tags) == 0 {
		doc.Tags = append([]string(nil), loc.DefaultTags...)
	}

	slug := blog.Slugify(ex.slug)
	if len(slug) < p.opts.MinSlugLength {
		slug = blog.Slugify(doc.Title)
	}
	if slug == "" {
		slug = blog.Slugify(loc.DefaultTitle)
	}
	doc.Slug = blog.UniqueSlug(slug, existingSlugs)
	return doc
}
