package parse

import (
	"regexp"
	"sort"
	"strings"
)

type field int

const (
	fieldNone field = iota
	fieldTitle
	fieldSEOTitle
	fieldSlug
	fieldMeta
	fieldExcerpt
	fieldTags
	fieldOutline
	fieldTakeaways
	fieldArticle
	fieldReviews
	fieldUnwanted
)

// singleLine fields take their value from one line.
func (f field) singleLine() bool {
	switch f {
	case fieldTitle, fieldSEOTitle, fieldSlug, fieldMeta, fieldExcerpt:
		return true
	}
	return false
}

type label struct {
	text  string
	field field
	// heading labels are also recognised without a trailing colon.
	heading bool
}

var labels = []label{
	{"title", fieldTitle, false},
	{"titel", fieldTitle, false},
	{"blog title", fieldTitle, false},
	{"blogtitel", fieldTitle, false},
	{"blog-titel", fieldTitle, false},
	{"article title", fieldTitle, false},
	{"artikeltitel", fieldTitle, false},
	{"headline", fieldTitle, false},
	{"überschrift", fieldTitle, false},
	{"h1 title", fieldTitle, false},

	{"seo title", fieldSEOTitle, false},
	{"seo-titel", fieldSEOTitle, false},
	{"seo titel", fieldSEOTitle, false},
	{"meta title", fieldSEOTitle, false},
	{"meta-titel", fieldSEOTitle, false},

	{"slug", fieldSlug, false},
	{"url slug", fieldSlug, false},
	{"url-slug", fieldSlug, false},
	{"permalink", fieldSlug, false},

	{"meta description", fieldMeta, false},
	{"meta-description", fieldMeta, false},
	{"meta beschreibung", fieldMeta, false},
	{"meta-beschreibung", fieldMeta, false},
	{"metabeschreibung", fieldMeta, false},

	{"excerpt", fieldExcerpt, false},
	{"auszug", fieldExcerpt, false},
	{"kurzfassung", fieldExcerpt, false},
	{"teaser", fieldExcerpt, false},

	{"tags", fieldTags, true},
	{"schlagwörter", fieldTags, true},
	{"schlagworte", fieldTags, true},
	{"keywords", fieldTags, true},
	{"hashtags", fieldTags, false},

	{"outline", fieldOutline, true},
	{"gliederung", fieldOutline, true},

	{"key takeaways", fieldTakeaways, true},
	{"kernaussagen", fieldTakeaways, true},
	{"das wichtigste in kürze", fieldTakeaways, false},

	{"blog article", fieldArticle, true},
	{"blog-artikel", fieldArticle, true},
	{"blogartikel", fieldArticle, true},
	{"article", fieldArticle, true},
	{"artikel", fieldArticle, true},
	{"artikeltext", fieldArticle, true},
	{"blog post", fieldArticle, true},
	{"blogpost", fieldArticle, true},
	{"blogbeitrag", fieldArticle, true},
	{"blog-beitrag", fieldArticle, true},
	{"content", fieldArticle, false},

	{"review snippets", fieldReviews, true},
	{"bewertungen", fieldReviews, false},
	{"kundenstimmen", fieldReviews, false},
	{"testimonials", fieldReviews, false},

	{"social media posts", fieldUnwanted, true},
	{"social media post", fieldUnwanted, true},
	{"social media", fieldUnwanted, true},
	{"social-media-beitrag", fieldUnwanted, true},
	{"social-media-beiträge", fieldUnwanted, true},
	{"instagram post", fieldUnwanted, true},
	{"instagram caption", fieldUnwanted, true},
	{"facebook post", fieldUnwanted, true},
	{"linkedin post", fieldUnwanted, true},
	{"compliance checklist", fieldUnwanted, true},
	{"compliance-checkliste", fieldUnwanted, true},
	{"compliance check", fieldUnwanted, true},
	{"seo checklist", fieldUnwanted, true},
	{"seo-checkliste", fieldUnwanted, true},
}

// unwantedHeadingWords drop a markdown heading section from the body.
var unwantedHeadingWords = []string{
	"social media", "social-media", "instagram", "facebook", "linkedin",
	"compliance", "checkliste", "checklist",
}

var (
	labelFields   = map[string]field{}
	colonLabelRe  *regexp.Regexp
	headLabelRe   *regexp.Regexp
	fieldPatterns = map[field][]*regexp.Regexp{}
)

// labelKey folds case, spaces and hyphens so "Meta-Beschreibung" and
// "meta beschreibung" map to the same label.
func labelKey(s string) string {
	s = strings.ToLower(s)
	return strings.NewReplacer(" ", "", "\t", "", "-", "").Replace(s)
}

func alternation(ls []label) string {
	sorted := append([]label(nil), ls...)
	sort.SliceStable(sorted, func(i, j int) bool { return len(sorted[i].text) > len(sorted[j].text) })
	parts := make([]string, 0, len(sorted))
	for _, l := range sorted {
		words := strings.FieldsFunc(l.text, func(r rune) bool { return r == ' ' || r == '-' })
		for i, w := range words {
			words[i] = regexp.QuoteMeta(w)
		}
		parts = append(parts, strings.Join(words, `[ \t-]*`))
	}
	return strings.Join(parts, "|")
}

const (
	linePrefix = `^[ \t]*(?:[-*•][ \t]+)?(?:\d+[.)][ \t]*)?`
	paren      = `(?:[ \t]*\([^)\n]*\))?`
	bold       = `(?:\*\*|__)`
)

func init() {
	var heading []label
	byField := map[field][]label{}
	for _, l := range labels {
		labelFields[labelKey(l.text)] = l.field
		byField[l.field] = append(byField[l.field], l)
		if l.heading {
			heading = append(heading, l)
		}
	}

	colonLabelRe = regexp.MustCompile(`(?im)` + linePrefix + `(?:#{1,6}[ \t]*)?` + bold + `?[ \t]*(` + alternation(labels) + `)` + paren + `[ \t]*` + bold + `?[ \t]*:[ \t]*` + bold + `?[ \t]*`)
	headLabelRe = regexp.MustCompile(`(?im)` + linePrefix + `(?:#{1,6}[ \t]+` + bold + `?|` + bold + `)[ \t]*(` + alternation(heading) + `)` + paren + `[ \t]*` + bold + `?[ \t]*:?[ \t]*$`)

	for f, ls := range byField {
		if !f.singleLine() {
			continue
		}
		a := `(?:` + alternation(ls) + `)`
		fieldPatterns[f] = []*regexp.Regexp{
			// **Label:** value
			regexp.MustCompile(`(?im)` + linePrefix + `(?:#{1,6}[ \t]*)?` + bold + `[ \t]*` + a + paren + `[ \t]*:?[ \t]*` + bold + `[ \t]*:?[ \t]*(\S.*)$`),
			// ## Label: value
			regexp.MustCompile(`(?im)` + linePrefix + `#{1,6}[ \t]*` + a + paren + `[ \t]*:[ \t]*(\S.*)$`),
			// Label: value
			regexp.MustCompile(`(?im)` + linePrefix + a + paren + `[ \t]*:[ \t]*(\S.*)$`),
			// Label on its own line, value on the next non-empty line
			regexp.MustCompile(`(?im)` + linePrefix + `(?:#{1,6}[ \t]*)?` + bold + `?[ \t]*` + a + paren + `[ \t]*` + bold + `?[ \t]*:?[ \t]*` + bold + `?[ \t]*\n(?:[ \t]*\n)*[ \t]*(\S.*)$`),
		}
	}
}

type section struct {
	field      field
	start      int
	valueStart int
	end        int
}

// scanSections finds every known label and the text span it governs: from
// the end of the label to the start of the next label.
func scanSections(text string) []section {
	byStart := map[int]section{}
	add := func(re *regexp.Regexp) {
		for _, m := range re.FindAllStringSubmatchIndex(text, -1) {
			f, ok := labelFields[labelKey(text[m[2]:m[3]])]
			if !ok {
				continue
			}
			s := section{field: f, start: m[0], valueStart: m[1]}
			if prev, ok := byStart[m[0]]; !ok || prev.valueStart < s.valueStart {
				byStart[m[0]] = s
			}
		}
	}
	add(colonLabelRe)
	add(headLabelRe)

	out := make([]section, 0, len(byStart))
	for _, s := range byStart {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].start < out[j].start })
	for i := range out {
		if i+1 < len(out) {
			out[i].end = out[i+1].start
		} else {
			out[i].end = len(text)
		}
		if out[i].valueStart > out[i].end {
			out[i].valueStart = out[i].end
		}
	}
	return out
}

// isLabelLine reports whether line starts with a known label.
func isLabelLine(line string) bool {
	return colonLabelRe.MatchString(line) || headLabelRe.MatchString(line)
}
