// Package markdown turns the loosely formatted article text of a generator
// into clean, sanitized HTML with a call-to-action block appended.
package markdown

import (
	"bytes"
	"context"
	"html"
	"io"
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/a-h/templ"
)

// CTAOpenTag starts the call-to-action section. Content after it is never
// an image insertion point.
const CTAOpenTag = `<section class="autoblog-cta">`

var (
	reOrderedList  = regexp.MustCompile(`^\d+[.)][ \t]+(.+)$`)
	reBulletList   = regexp.MustCompile(`^[-*+•][ \t]+(.+)$`)
	reLabelHeading = regexp.MustCompile(`^(?:#{1,6}[ \t]*)?(?:\*\*|__)?[ \t]*[Hh]([1-6])[ \t]*:[ \t]*(?:\*\*|__)?[ \t]*(.*)$`)
	reHashHeading  = regexp.MustCompile(`^(#{1,6})[ \t]*(.+)$`)
	reBoldLine     = regexp.MustCompile(`^(?:\*\*|__)([^*_]{2,80})(?:\*\*|__)[ \t]*:?$`)
	reHashtags     = regexp.MustCompile(`^#[\p{L}\p{N}_]+(?:[ \t]+#[\p{L}\p{N}_]+)*$`)
	reRule         = regexp.MustCompile(`^(?:-{3,}|\*{3,}|_{3,})$`)
	reImageSyntax  = regexp.MustCompile(`!\[[^\]]*\]\([^)]*\)(?:\{[^}]*\})?`)
)

// Link is an internal link of the call-to-action block.
type Link struct {
	Label string
	URL   string
}

// CTA is the call-to-action appended to every article.
type CTA struct {
	Heading string
	Text    string
	Links   []Link
}

// DefaultCTA points at the booking, contact and gallery pages.
var DefaultCTA = CTA{
	Heading: "Lust auf dein eigenes Shooting?",
	Text:    "Wir freuen uns darauf, auch deine besonderen Momente festzuhalten. Schau dir unsere Arbeiten an oder melde dich direkt bei uns.",
	Links: []Link{
		{Label: "Termin buchen", URL: "/buchen/"},
		{Label: "Kontakt aufnehmen", URL: "/kontakt/"},
		{Label: "Galerie ansehen", URL: "/galerie/"},
	},
}

// Options controls Format.
type Options struct {
	// Title is the document title. A leading heading repeating it is dropped.
	Title string
	// MinParagraphLength is the shortest free-text block kept as a paragraph.
	MinParagraphLength int
	CTA                CTA
}

// Format converts body into HTML. The output never contains script or
// style elements, event handler attributes, script URLs, literal heading
// labels such as "H2:" or runs of three or more '#'.
func Format(body string, opts Options) string {
	if opts.MinParagraphLength <= 0 {
		opts.MinParagraphLength = 40
	}
	if opts.CTA.Heading == "" && len(opts.CTA.Links) == 0 {
		opts.CTA = DefaultCTA
	}

	md := normalizeHTML(Sanitize(body))
	md = reImageSyntax.ReplaceAllString(md, "")

	var buf bytes.Buffer
	RenderMarkdown(&buf, md, opts)
	writeCTA(&buf, opts.CTA)
	return Sanitize(stripLiteralMarkers(buf.String()))
}

// Preview returns a templ.Component that writes already formatted HTML,
// sanitized once more.
func Preview(content string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := io.WriteString(w, Sanitize(content))
		return err
	})
}

// RenderMarkdown writes the HTML representation of md to buf.
func RenderMarkdown(buf *bytes.Buffer, md string, opts Options) {
	start := buf.Len()
	title := headingKey(opts.Title)
	seen := map[string]bool{}
	skipLevel := 0

	var para []string
	inList := false
	inOrderedList := false
	inQuote := false
	inCode := false
	inTable := false
	tableHeaderDone := false

	flushCode := func() {
		if inCode {
			buf.WriteString("</code></pre>")
			inCode = false
		}
	}
	flushPara := func() {
		if len(para) == 0 {
			return
		}
		text := strings.Join(para, " ")
		switch {
		case utf8.RuneCountInString(text) >= opts.MinParagraphLength:
			buf.WriteString("<p>")
			buf.WriteString(FormatInline(text))
			buf.WriteString("</p>")
		case len(para) > 1:
			// Several short lines read as an unmarked list.
			buf.WriteString("<ul>")
			for _, item := range para {
				buf.WriteString("<li>")
				buf.WriteString(FormatInline(item))
				buf.WriteString("</li>")
			}
			buf.WriteString("</ul>")
		}
		para = nil
	}
	flushQuote := func() {
		if inQuote {
			buf.WriteString("</blockquote>")
			inQuote = false
		}
	}
	flushList := func() {
		if inList {
			buf.WriteString("</ul>")
			inList = false
		}
	}
	flushOrderedList := func() {
		if inOrderedList {
			buf.WriteString("</ol>")
			inOrderedList = false
		}
	}
	flushTable := func() {
		if inTable {
			if tableHeaderDone {
				buf.WriteString("</tbody>")
			}
			buf.WriteString("</table>")
			inTable = false
			tableHeaderDone = false
		}
	}
	flushBlocks := func() {
		flushPara()
		flushList()
		flushOrderedList()
		flushQuote()
		flushTable()
	}

	for _, raw := range strings.Split(md, "\n") {
		line := strings.TrimSpace(strings.TrimRight(raw, "\r"))

		if strings.HasPrefix(line, "```") {
			if inCode {
				flushCode()
			} else if skipLevel == 0 {
				flushBlocks()
				buf.WriteString(`<pre class="code-block"><code>`)
				inCode = true
			}
			continue
		}
		if inCode {
			buf.WriteString(html.EscapeString(strings.TrimRight(raw, "\r")))
			buf.WriteString("\n")
			continue
		}

		if level, text, ok := headingLine(line); ok {
			if skipLevel > 0 && level > skipLevel {
				continue
			}
			skipLevel = 0
			flushBlocks()
			key := headingKey(text)
			if key == "" {
				continue
			}
			if buf.Len() == start && key == title {
				continue
			}
			if seen[key] {
				skipLevel = level
				continue
			}
			seen[key] = true
			tag := "h" + strconv.Itoa(level)
			buf.WriteString("<" + tag + ">")
			buf.WriteString(FormatInline(text))
			buf.WriteString("</" + tag + ">")
			continue
		}
		if skipLevel > 0 {
			continue
		}

		if line == "" {
			flushBlocks()
			continue
		}

		switch {
		case reRule.MatchString(line):
			flushBlocks()
			buf.WriteString("<hr/>")
		case reHashtags.MatchString(line):
			// hashtag lines are social media noise
		case strings.HasPrefix(line, "|"):
			if !inTable {
				flushPara()
				flushList()
				flushOrderedList()
				flushQuote()
				buf.WriteString("<table>")
				inTable = true
				buf.WriteString("<thead><tr>")
				for _, cell := range parseTableCells(line) {
					buf.WriteString("<th>")
					buf.WriteString(FormatInline(cell))
					buf.WriteString("</th>")
				}
				buf.WriteString("</tr></thead>")
			} else if isTableSeparator(line) {
				if !tableHeaderDone {
					buf.WriteString("<tbody>")
					tableHeaderDone = true
				}
			} else {
				if !tableHeaderDone {
					buf.WriteString("<tbody>")
					tableHeaderDone = true
				}
				buf.WriteString("<tr>")
				for _, cell := range parseTableCells(line) {
					buf.WriteString("<td>")
					buf.WriteString(FormatInline(cell))
					buf.WriteString("</td>")
				}
				buf.WriteString("</tr>")
			}
		case reBulletList.MatchString(line):
			if !inList {
				flushPara()
				flushOrderedList()
				flushQuote()
				flushTable()
				buf.WriteString("<ul>")
				inList = true
			}
			buf.WriteString("<li>")
			buf.WriteString(FormatInline(reBulletList.FindStringSubmatch(line)[1]))
			buf.WriteString("</li>")
		case reOrderedList.MatchString(line):
			if !inOrderedList {
				flushPara()
				flushList()
				flushQuote()
				flushTable()
				buf.WriteString("<ol>")
				inOrderedList = true
			}
			buf.WriteString("<li>")
			buf.WriteString(FormatInline(reOrderedList.FindStringSubmatch(line)[1]))
			buf.WriteString("</li>")
		case strings.HasPrefix(line, ">"):
			if !inQuote {
				flushBlocks()
				buf.WriteString("<blockquote>")
				inQuote = true
			} else {
				buf.WriteString(" ")
			}
			buf.WriteString(FormatInline(strings.TrimSpace(line[1:])))
		default:
			if inList || inOrderedList || inQuote || inTable {
				flushList()
				flushOrderedList()
				flushQuote()
				flushTable()
			}
			para = append(para, line)
		}
	}
	flushBlocks()
	flushCode()
}

// headingLine recognises "#" headings (with or without a space), "H2:"
// labels in any decoration and standalone bold lines.
func headingLine(line string) (int, string, bool) {
	if m := reLabelHeading.FindStringSubmatch(line); m != nil {
		level, _ := strconv.Atoi(m[1])
		return level, cleanHeading(m[2]), true
	}
	if reHashtags.MatchString(line) {
		return 0, "", false
	}
	if m := reHashHeading.FindStringSubmatch(line); m != nil {
		return len(m[1]), cleanHeading(m[2]), true
	}
	if m := reBoldLine.FindStringSubmatch(line); m != nil {
		return 3, cleanHeading(m[1]), true
	}
	return 0, "", false
}

func cleanHeading(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimRight(s, " \t#")
	s = strings.Trim(s, "*_ \t")
	return strings.TrimSpace(strings.TrimSuffix(s, ":"))
}

// headingKey folds a heading for duplicate detection.
func headingKey(s string) string {
	return strings.Join(strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}), " ")
}

func writeCTA(buf *bytes.Buffer, cta CTA) {
	buf.WriteString(CTAOpenTag)
	if cta.Heading != "" {
		buf.WriteString("<h2>" + html.EscapeString(cta.Heading) + "</h2>")
	}
	if cta.Text != "" {
		buf.WriteString("<p>" + html.EscapeString(cta.Text) + "</p>")
	}
	if len(cta.Links) > 0 {
		buf.WriteString(`<ul class="autoblog-cta-links">`)
		for _, l := range cta.Links {
			href := SafeURL(l.URL)
			if href == "" {
				continue
			}
			buf.WriteString(`<li><a href="` + href + `">` + html.EscapeString(l.Label) + `</a></li>`)
		}
		buf.WriteString("</ul>")
	}
	buf.WriteString("</section>")
}

func parseTableCells(line string) []string {
	line = strings.Trim(strings.TrimSpace(line), "|")
	parts := strings.Split(line, "|")
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
	}
	return parts
}

func isTableSeparator(line string) bool {
	line = strings.Trim(strings.TrimSpace(line), "|")
	for _, cell := range strings.Split(line, "|") {
		cleaned := strings.NewReplacer("-", "", ":", "").Replace(strings.TrimSpace(cell))
		if cleaned != "" {
			return false
		}
	}
	return true
}
