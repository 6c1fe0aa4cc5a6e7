package parse

import (
	"regexp"
	"strings"
)

var (
	reHeadingLabel = regexp.MustCompile(`(?i)^H[1-6]\s*:\s*`)
	reBullet       = regexp.MustCompile(`^[ \t]*(?:[-*•+][ \t]+|\d+[.)][ \t]*)`)
	reMarkdownLine = regexp.MustCompile(`^[ \t]*(#{1,6})[ \t]+(.*)$`)
	reH1           = regexp.MustCompile(`(?m)^[ \t]*#[ \t]+([^#\n].*)$`)
	reLink         = regexp.MustCompile(`\[([^\]]*)\]\([^)]*\)`)
	reTag          = regexp.MustCompile(`<[^>]*>`)
	reAnyHeading   = regexp.MustCompile(`(?m)^[ \t]*#{1,6}[ \t]`)
)

// cleanValue strips markdown emphasis, quotes and heading labels around a
// single-line value.
func cleanValue(s string) string {
	s = strings.TrimSpace(s)
	for {
		before := s
		s = strings.Trim(s, " \t*_#`\"'„“”«»")
		s = reHeadingLabel.ReplaceAllString(s, "")
		if s == before {
			break
		}
	}
	return strings.Join(strings.Fields(s), " ")
}

func cleanItems(items []string) []string {
	var out []string
	for _, it := range items {
		if v := cleanValue(it); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// listItems returns the non-empty lines of a block without list markers.
func listItems(block string) []string {
	var out []string
	for _, line := range strings.Split(block, "\n") {
		line = reBullet.ReplaceAllString(line, "")
		if v := cleanValue(line); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// splitTags splits a tag block on commas, semicolons, newlines and hash
// signs, de-duplicating case-insensitively.
func (p *Parser) splitTags(block string) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, part := range strings.FieldsFunc(block, func(r rune) bool {
		return r == ',' || r == ';' || r == '\n' || r == '#' || r == '|'
	}) {
		part = cleanValue(reBullet.ReplaceAllString(part, ""))
		n := len([]rune(part))
		if n < 2 || n > 40 || len(strings.Fields(part)) > 4 {
			continue
		}
		key := strings.ToLower(part)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, part)
		if len(out) == p.opts.MaxTags {
			break
		}
	}
	return out
}

// plainText drops markdown syntax and HTML tags, keeping one paragraph per
// line. Heading lines are removed.
func plainText(body string) string {
	var paras []string
	var cur []string
	flush := func() {
		if len(cur) > 0 {
			paras = append(paras, strings.Join(cur, " "))
			cur = nil
		}
	}
	for _, line := range strings.Split(body, "\n") {
		if reMarkdownLine.MatchString(line) || reHeadingLabel.MatchString(strings.TrimSpace(line)) {
			flush()
			continue
		}
		line = reTag.ReplaceAllString(line, " ")
		line = reLink.ReplaceAllString(line, "$1")
		line = strings.NewReplacer("**", "", "__", "", "*", "", "`", "").Replace(line)
		line = strings.TrimSpace(reBullet.ReplaceAllString(line, ""))
		if line == "" {
			flush()
			continue
		}
		cur = append(cur, strings.Join(strings.Fields(line), " "))
	}
	flush()
	return strings.Join(paras, "\n")
}

// leadSentences returns whole leading sentences of text up to limit runes.
func leadSentences(text string, limit int) string {
	var out string
	for _, s := range splitSentences(strings.ReplaceAll(text, "\n", " ")) {
		next := strings.TrimSpace(out + " " + s)
		if len([]rune(next)) > limit {
			if out == "" {
				return s
			}
			break
		}
		out = next
	}
	return out
}

// truncateWords cuts s to at most limit runes at a word boundary.
func truncateWords(s string, limit int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	cut := string(r[:limit])
	if i := strings.LastIndexByte(cut, ' '); i > 0 {
		cut = cut[:i]
	}
	return strings.TrimRight(cut, " ,;:-") + "…"
}

func firstParagraph(plain string, minLen int) string {
	for _, p := range strings.Split(plain, "\n") {
		if len([]rune(p)) >= minLen {
			return p
		}
	}
	return ""
}

func firstHeading(body string, minLen int) string {
	if m := reH1.FindStringSubmatch(body); m != nil {
		if v := cleanValue(m[1]); len([]rune(v)) >= minLen {
			return v
		}
	}
	return ""
}

// stripUnwantedSections removes labeled sections such as social media posts
// or compliance checklists. A section ends at the next label or the next
// markdown heading.
func stripUnwantedSections(text string) string {
	sections := scanSections(text)
	var sb strings.Builder
	last := 0
	for _, s := range sections {
		if s.field != fieldUnwanted || s.start < last {
			continue
		}
		end := s.end
		if loc := reAnyHeading.FindStringIndex(text[s.valueStart:end]); loc != nil {
			end = s.valueStart + loc[0]
		}
		sb.WriteString(text[last:s.start])
		last = end
	}
	sb.WriteString(text[last:])
	return strings.TrimSpace(sb.String())
}

// stripUnwantedHeadings removes markdown heading sections whose heading
// names unwanted content, up to the next heading of the same or a higher
// level.
func stripUnwantedHeadings(body string) string {
	lines := strings.Split(body, "\n")
	var out []string
	skipLevel := 0
	for _, line := range lines {
		if m := reMarkdownLine.FindStringSubmatch(line); m != nil {
			level := len(m[1])
			if skipLevel > 0 && level <= skipLevel {
				skipLevel = 0
			}
			if skipLevel == 0 && unwantedHeading(m[2]) {
				skipLevel = level
				continue
			}
		}
		if skipLevel == 0 {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}

func unwantedHeading(text string) bool {
	lower := strings.ToLower(text)
	for _, w := range unwantedHeadingWords {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}
