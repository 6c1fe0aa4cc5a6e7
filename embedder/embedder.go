// Package embedder places uploaded images into formatted article HTML.
package embedder

import (
	"fmt"
	"html"
	"regexp"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/eringen/autoblog/blog"
	"github.com/eringen/autoblog/markdown"
)

// Strategy names how images were placed.
type Strategy string

const (
	StrategyNone       Strategy = "none"
	StrategySections   Strategy = "sections"
	StrategyParagraphs Strategy = "paragraphs"
	StrategyPrepend    Strategy = "prepend"
)

// DefaultAlt is used when no session label is known.
const DefaultAlt = "Impression aus unserem Fotoshooting"

// DefaultAltFormat numbers an image within its article. It receives the
// label, the image number and the image count.
const DefaultAltFormat = "%s: Bild %d von %d"

var (
	reHeadingOpen = regexp.MustCompile(`(?i)<h[1-6][\s>]`)
	reHeadingEnd  = regexp.MustCompile(`(?i)</h[1-6]\s*>`)
	reBlockEnd    = regexp.MustCompile(`(?i)</(?:p|ul|ol|blockquote|table)\s*>`)
)

// Options controls Embed.
type Options struct {
	// SessionLabel names the kind of shoot, e.g. "Familienfotografie".
	SessionLabel string
	// Analysis is the image analysis text. Its first descriptive clause
	// extends the alt text.
	Analysis   string
	DefaultAlt string
	// AltFormat overrides DefaultAltFormat.
	AltFormat string
	// FeaturedImage is shown outside the body. It is only kept out of the
	// body when ExcludeFeatured is set.
	FeaturedImage   string
	ExcludeFeatured bool
}

// Result is the rewritten HTML and what happened to the images.
type Result struct {
	HTML     string
	Strategy Strategy
	Inserted int
	Skipped  int
}

// Embed inserts every image not yet in content at most once. reg may be
// nil; it is seeded with the image sources content already contains.
func Embed(content string, images []blog.UploadedImage, reg *UsedImageRegistry, opts Options) Result {
	if reg == nil {
		reg = NewRegistry()
	}
	reg.seedFromHTML(content)
	if opts.ExcludeFeatured {
		reg.Mark(opts.FeaturedImage)
	}

	var pending []blog.UploadedImage
	seen := map[string]bool{}
	for _, img := range images {
		if img.URL == "" || reg.Used(img.URL) || seen[img.URL] || markdown.SafeURL(img.URL) == "" {
			continue
		}
		seen[img.URL] = true
		pending = append(pending, img)
	}
	res := Result{HTML: content, Strategy: StrategyNone, Skipped: len(images) - len(pending)}
	if len(pending) == 0 {
		return res
	}

	body, tail := content, ""
	if i := strings.Index(content, markdown.CTAOpenTag); i >= 0 {
		body, tail = content[:i], content[i:]
	}

	var points []int
	if sections := sectionPoints(body); len(sections) >= 2 {
		// The first section introduces the article and stays image free.
		points, res.Strategy = sections[1:], StrategySections
	} else if paras := paragraphPoints(body); len(paras) > 0 {
		points, res.Strategy = paras, StrategyParagraphs
	} else {
		points, res.Strategy = []int{0}, StrategyPrepend
	}

	at := make(map[int][]string)
	for i, img := range pending {
		if !reg.Mark(img.URL) {
			res.Skipped++
			continue
		}
		pos := points[i*len(points)/len(pending)]
		at[pos] = append(at[pos], figure(img, altText(opts, i, len(pending))))
		res.Inserted++
	}

	positions := make([]int, 0, len(at))
	for pos := range at {
		positions = append(positions, pos)
	}
	sort.Ints(positions)
	var sb strings.Builder
	last := 0
	for _, pos := range positions {
		sb.WriteString(body[last:pos])
		for _, f := range at[pos] {
			sb.WriteString(f)
		}
		last = pos
	}
	sb.WriteString(body[last:])
	sb.WriteString(tail)
	res.HTML = sb.String()

	log.Debug().
		Str("strategy", string(res.Strategy)).
		Int("inserted", res.Inserted).
		Int("skipped", res.Skipped).
		Int("points", len(points)).
		Msg("Images embedded")
	return res
}

// sectionPoints returns, per heading, the offset after the first block
// that follows it, or after the heading itself when the section has none.
func sectionPoints(body string) []int {
	starts := reHeadingOpen.FindAllStringIndex(body, -1)
	var out []int
	for i, s := range starts {
		end := len(body)
		if i+1 < len(starts) {
			end = starts[i+1][0]
		}
		section := body[s[0]:end]
		headEnd := reHeadingEnd.FindStringIndex(section)
		if headEnd == nil {
			continue
		}
		pos := s[0] + headEnd[1]
		if b := reBlockEnd.FindStringIndex(section[headEnd[1]:]); b != nil {
			pos += b[1]
		}
		out = append(out, pos)
	}
	return out
}

func paragraphPoints(body string) []int {
	var out []int
	for _, m := range reBlockEnd.FindAllStringIndex(body, -1) {
		out = append(out, m[1])
	}
	return out
}

func figure(img blog.UploadedImage, alt string) string {
	var sb strings.Builder
	sb.WriteString(`<figure class="autoblog-image"><img src="`)
	sb.WriteString(markdown.SafeURL(img.URL))
	sb.WriteString(`" alt="`)
	sb.WriteString(html.EscapeString(alt))
	sb.WriteString(`"`)
	if img.Width > 0 && img.Height > 0 {
		fmt.Fprintf(&sb, ` width="%d" height="%d"`, img.Width, img.Height)
	}
	sb.WriteString(` loading="lazy" decoding="async"/></figure>`)
	return sb.String()
}

// altText describes image i of n. It is never empty. Label and analysis
// come from generated text and are sanitized like the article body.
func altText(opts Options, i, n int) string {
	base := strings.TrimSpace(opts.SessionLabel)
	if base == "" {
		base = strings.TrimSpace(opts.DefaultAlt)
	}
	if base == "" {
		base = DefaultAlt
	}
	format := opts.AltFormat
	if strings.Count(format, "%") != 3 {
		format = DefaultAltFormat
	}
	alt := fmt.Sprintf(format, base, i+1, n)
	if detail := firstClause(opts.Analysis); detail != "" {
		alt += ", " + detail
	}
	return strings.Join(strings.Fields(markdown.Sanitize(alt)), " ")
}

// firstClause returns the first descriptive clause of an analysis text,
// skipping the session line.
func firstClause(analysis string) string {
	for _, line := range strings.Split(analysis, "\n") {
		line = strings.TrimSpace(strings.TrimLeft(line, "-*# "))
		lower := strings.ToLower(line)
		if line == "" || strings.HasPrefix(lower, "session") || strings.HasPrefix(line, "[") {
			continue
		}
		if i := strings.IndexAny(line, ".;"); i > 0 {
			line = line[:i]
		}
		if r := []rune(line); len(r) > 100 {
			line = string(r[:100])
		}
		return strings.TrimSpace(line)
	}
	return ""
}
