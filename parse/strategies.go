package parse

import (
	"encoding/json"
	"regexp"
	"sort"
	"strings"
)

var (
	reFence         = regexp.MustCompile("(?s)^```[a-zA-Z]*\\s*\n(.*?)\n?```\\s*$")
	reGenericLabel  = regexp.MustCompile(`(?m)^[ \t]*(?:\d+[.)][ \t]*)?(?:\*\*[^*\n]{1,60}\*\*[ \t]*:?|__[^_\n]{1,60}__[ \t]*:?|\*\*[^*\n]{1,60}:\*\*|[A-ZÄÖÜ][A-Za-zÄÖÜäöüß0-9 /&-]{1,40}:)[ \t]*$`)
	reSentence      = regexp.MustCompile(`[^.!?]+[.!?]+["“”»«']?|[^.!?]+$`)
	reMarkdownNoise = regexp.MustCompile(`(?m)^[ \t]*(?:#{1,6}[ \t]*|>[ \t]*|[-*•+][ \t]+|\d+[.)][ \t]+)`)
)

func normalize(raw string) string {
	text := strings.ReplaceAll(raw, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = strings.TrimSpace(text)
	if m := reFence.FindStringSubmatch(text); m != nil {
		text = strings.TrimSpace(m[1])
	}
	return text
}

type jsonDoc struct {
	Title           string   `json:"title"`
	SEOTitle        string   `json:"seo_title"`
	Slug            string   `json:"slug"`
	MetaDescription string   `json:"meta_description"`
	Excerpt         string   `json:"excerpt"`
	Tags            any      `json:"tags"`
	Outline         []string `json:"outline"`
	KeyTakeaways    []string `json:"key_takeaways"`
	ReviewSnippets  []string `json:"review_snippets"`
	Content         string   `json:"content"`
	Article         string   `json:"article"`
	Body            string   `json:"body"`
}

// tryJSON accepts output that is a single JSON object with a title and an
// article body.
func (p *Parser) tryJSON(text string) (extracted, bool) {
	start, end := strings.Index(text, "{"), strings.LastIndex(text, "}")
	if start != 0 || end != len(text)-1 {
		return extracted{}, false
	}
	var doc jsonDoc
	if err := json.Unmarshal([]byte(text), &doc); err != nil {
		return extracted{}, false
	}
	body := firstNonEmpty(doc.Content, doc.Article, doc.Body)
	if len(strings.TrimSpace(body)) < p.opts.MinBodyLength {
		return extracted{}, false
	}
	ex := extracted{
		title:     p.minLen(cleanValue(doc.Title), p.opts.MinTitleLength),
		seoTitle:  p.minLen(cleanValue(doc.SEOTitle), p.opts.MinTitleLength),
		slug:      p.minLen(cleanValue(doc.Slug), p.opts.MinSlugLength),
		meta:      p.minLen(cleanValue(doc.MetaDescription), p.opts.MinMetaLength),
		excerpt:   p.minLen(cleanValue(doc.Excerpt), p.opts.MinExcerptLength),
		outline:   cleanItems(doc.Outline),
		takeaways: cleanItems(doc.KeyTakeaways),
		reviews:   cleanItems(doc.ReviewSnippets),
		body:      strings.TrimSpace(body),
	}
	switch tags := doc.Tags.(type) {
	case string:
		ex.tags = p.splitTags(tags)
	case []any:
		var parts []string
		for _, t := range tags {
			if s, ok := t.(string); ok {
				parts = append(parts, s)
			}
		}
		ex.tags = p.splitTags(strings.Join(parts, ","))
	}
	return ex, true
}

// extractFields reads every metadata field from explicit markers.
func (p *Parser) extractFields(text string) extracted {
	ex := extracted{
		title:    p.matchField(text, fieldTitle, p.opts.MinTitleLength),
		seoTitle: p.matchField(text, fieldSEOTitle, p.opts.MinTitleLength),
		slug:     p.matchField(text, fieldSlug, p.opts.MinSlugLength),
		meta:     p.matchField(text, fieldMeta, p.opts.MinMetaLength),
		excerpt:  p.matchField(text, fieldExcerpt, p.opts.MinExcerptLength),
	}
	for _, s := range scanSections(text) {
		value := text[s.valueStart:s.end]
		switch s.field {
		case fieldTags:
			if len(ex.tags) == 0 {
				ex.tags = p.splitTags(value)
			}
		case fieldOutline:
			if len(ex.outline) == 0 {
				ex.outline = listItems(value)
			}
		case fieldTakeaways:
			if len(ex.takeaways) == 0 {
				ex.takeaways = listItems(value)
			}
		case fieldReviews:
			if len(ex.reviews) == 0 {
				ex.reviews = listItems(value)
			}
		}
	}
	return ex
}

// matchField tries the field's patterns from most to least specific and
// returns the first capture that is long enough.
func (p *Parser) matchField(text string, f field, minLen int) string {
	for _, re := range fieldPatterns[f] {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			if isLabelLine(m[1]) {
				continue
			}
			if v := p.minLen(cleanValue(m[1]), minLen); v != "" {
				return v
			}
		}
	}
	return ""
}

func (p *Parser) minLen(v string, n int) string {
	if len([]rune(v)) < n {
		return ""
	}
	return v
}

// tryMarkers returns the longest explicitly labeled article section.
func (p *Parser) tryMarkers(text string) (string, bool) {
	var best string
	for _, s := range scanSections(text) {
		if s.field != fieldArticle {
			continue
		}
		if body := strings.TrimSpace(text[s.valueStart:s.end]); len(body) > len(best) {
			best = body
		}
	}
	if len(best) < p.opts.MinBodyLength {
		return "", false
	}
	return best, true
}

type boundary struct {
	start, valueStart int
	field             field
}

// trySectionSplit cuts the text at label-like lines and keeps the longest
// segment that reads like prose in the locale language. Text without any
// boundary is left to synthesis.
func (p *Parser) trySectionSplit(text string) (string, bool) {
	var bounds []boundary
	for _, s := range scanSections(text) {
		b := boundary{start: s.start, valueStart: s.valueStart, field: s.field}
		if s.field.singleLine() {
			b.valueStart = lineEnd(text, s.valueStart)
			b.field = fieldNone
		}
		bounds = append(bounds, b)
	}
	for _, m := range reGenericLabel.FindAllStringIndex(text, -1) {
		bounds = append(bounds, boundary{start: m[0], valueStart: m[1]})
	}
	if len(bounds) == 0 {
		return "", false
	}
	sort.Slice(bounds, func(i, j int) bool { return bounds[i].start < bounds[j].start })

	segments := []struct {
		field field
		text  string
	}{{fieldNone, text[:bounds[0].start]}}
	for i, b := range bounds {
		end := len(text)
		if i+1 < len(bounds) {
			end = bounds[i+1].start
		}
		if b.valueStart > end {
			continue
		}
		segments = append(segments, struct {
			field field
			text  string
		}{b.field, text[b.valueStart:end]})
	}

	var best string
	for _, seg := range segments {
		if seg.field != fieldNone && seg.field != fieldArticle {
			continue
		}
		t := strings.TrimSpace(seg.text)
		if len(t) <= p.opts.MinSegmentLength || len(t) <= len(best) {
			continue
		}
		if p.opts.Locale.CountFunctionWords(t) < p.opts.MinFunctionWords {
			continue
		}
		best = t
	}
	return best, best != ""
}

// trySynthesis builds a heading-structured body from whatever prose the
// text contains, padding with locale filler when it is too short.
func (p *Parser) trySynthesis(text string) string {
	var kept []string
	for _, line := range strings.Split(text, "\n") {
		if isLabelLine(line) || reGenericLabel.MatchString(line) {
			continue
		}
		kept = append(kept, line)
	}
	prose := reMarkdownNoise.ReplaceAllString(strings.Join(kept, "\n"), "")
	prose = strings.NewReplacer("**", "", "__", "", "`", "").Replace(prose)

	sentences := splitSentences(prose)
	for i := 0; totalLen(sentences) < p.opts.MinBodyLength && i < len(p.opts.Locale.Filler); i++ {
		sentences = append(sentences, splitSentences(p.opts.Locale.Filler[i])...)
	}

	headings := p.opts.Locale.Headings
	k := min(len(headings), len(sentences))
	if k == 0 {
		return strings.Join(sentences, " ")
	}
	var sb strings.Builder
	n := len(sentences)
	for i := 0; i < k; i++ {
		chunk := sentences[i*n/k : (i+1)*n/k]
		sb.WriteString("## ")
		sb.WriteString(headings[i])
		sb.WriteString("\n\n")
		sb.WriteString(strings.Join(chunk, " "))
		sb.WriteString("\n\n")
	}
	return strings.TrimSpace(sb.String())
}

func splitSentences(text string) []string {
	var out []string
	for _, s := range reSentence.FindAllString(strings.Join(strings.Fields(text), " "), -1) {
		if s = strings.TrimSpace(s); len([]rune(s)) >= 3 {
			out = append(out, s)
		}
	}
	return out
}

func totalLen(ss []string) int {
	n := 0
	for _, s := range ss {
		n += len(s) + 1
	}
	return n
}

func lineEnd(text string, from int) int {
	if i := strings.IndexByte(text[from:], '\n'); i >= 0 {
		return from + i
	}
	return len(text)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
