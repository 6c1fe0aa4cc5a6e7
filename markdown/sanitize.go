package markdown

import (
	"html"
	"regexp"
	"strings"
)

var (
	reDangerousBlock = regexp.MustCompile(`(?is)<\s*(?:script|style|iframe|object|embed|noscript)\b[^>]*>.*?<\s*/\s*(?:script|style|iframe|object|embed|noscript)\s*>`)
	reDangerousTag   = regexp.MustCompile(`(?i)<\s*/?\s*(?:script|style|iframe|object|embed|noscript)\b[^>]*>?`)
	reEventHandler   = regexp.MustCompile(`(?i)\bon[a-z]+\s*=\s*(?:"[^"]*"|'[^']*'|[^\s>]*)`)
	reScriptScheme   = regexp.MustCompile(`(?i)(?:java|vb)\s*script\s*:|data\s*:\s*text/html`)
	reLiteralLabel   = regexp.MustCompile(`(?i)\bH[1-6][ \t]*:[ \t]*`)
	reHashRun        = regexp.MustCompile(`#{3,}`)

	reHTMLTag       = regexp.MustCompile(`</?[a-zA-Z][^>]*>`)
	reHTMLHeading   = regexp.MustCompile(`(?is)<h([1-6])\b[^>]*>(.*?)</h[1-6]\s*>`)
	reHTMLListItem  = regexp.MustCompile(`(?is)<li\b[^>]*>(.*?)</li\s*>`)
	reHTMLAnchor    = regexp.MustCompile(`(?is)<a\b[^>]*?href\s*=\s*["']([^"']*)["'][^>]*>(.*?)</a\s*>`)
	reHTMLBreak     = regexp.MustCompile(`(?i)<br\s*/?>`)
	reHTMLBlock     = regexp.MustCompile(`(?i)</?(?:p|div|section|article|header|footer|ul|ol|blockquote|figure|figcaption|main|aside)\b[^>]*>`)
	reHTMLStrong    = regexp.MustCompile(`(?i)</?(?:strong|b)\b[^>]*>`)
	reHTMLEm        = regexp.MustCompile(`(?i)</?(?:em|i)\b[^>]*>`)
	reHTMLImg       = regexp.MustCompile(`(?i)<img\b[^>]*>`)
	reBlankLineRuns = regexp.MustCompile(`\n{3,}`)
)

// Sanitize removes script-like elements, inline event handlers and script
// URLs. It is applied until the input no longer changes so that nested
// fragments cannot reassemble a forbidden construct. Every pass only
// removes text, so the loop ends.
func Sanitize(s string) string {
	for {
		before := s
		s = reDangerousBlock.ReplaceAllString(s, "")
		s = reDangerousTag.ReplaceAllString(s, "")
		s = reEventHandler.ReplaceAllString(s, "")
		s = reScriptScheme.ReplaceAllString(s, "")
		if s == before {
			return s
		}
	}
}

// normalizeHTML rewrites HTML fragments into the markdown the renderer
// understands and drops every other tag.
func normalizeHTML(s string) string {
	if !reHTMLTag.MatchString(s) {
		return s
	}
	s = reHTMLHeading.ReplaceAllStringFunc(s, func(m string) string {
		sub := reHTMLHeading.FindStringSubmatch(m)
		level := int(sub[1][0] - '0')
		return "\n\n" + strings.Repeat("#", level) + " " + inlineText(sub[2]) + "\n\n"
	})
	s = reHTMLListItem.ReplaceAllStringFunc(s, func(m string) string {
		return "\n- " + inlineText(reHTMLListItem.FindStringSubmatch(m)[1])
	})
	s = reHTMLAnchor.ReplaceAllString(s, "[$2]($1)")
	s = reHTMLImg.ReplaceAllString(s, "")
	s = reHTMLBreak.ReplaceAllString(s, "\n")
	s = reHTMLBlock.ReplaceAllString(s, "\n\n")
	s = reHTMLStrong.ReplaceAllString(s, "**")
	s = reHTMLEm.ReplaceAllString(s, "*")
	s = reHTMLTag.ReplaceAllString(s, "")
	s = html.UnescapeString(s)
	return strings.TrimSpace(reBlankLineRuns.ReplaceAllString(s, "\n\n"))
}

// inlineText flattens an element's inner HTML to one line.
func inlineText(s string) string {
	s = reHTMLStrong.ReplaceAllString(s, "**")
	s = reHTMLEm.ReplaceAllString(s, "*")
	s = reHTMLTag.ReplaceAllString(s, "")
	return strings.Join(strings.Fields(s), " ")
}

// stripLiteralMarkers removes heading labels and '#' runs left in text.
func stripLiteralMarkers(s string) string {
	s = ApplyOutsideTags(s, func(seg string) string {
		return reLiteralLabel.ReplaceAllString(seg, "")
	})
	return reHashRun.ReplaceAllString(s, "")
}
