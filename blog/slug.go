package blog

import (
	"fmt"
	"regexp"
	"strings"
)

// MaxSlugLength bounds generated slugs; longer slugs are cut at a hyphen.
const MaxSlugLength = 80

var slugPattern = regexp.MustCompile(`^[a-z0-9-]+$`)

var transliterations = map[rune]string{
	'ä': "ae", 'ö': "oe", 'ü': "ue", 'ß': "ss",
	'à': "a", 'á': "a", 'â': "a", 'é': "e", 'è': "e", 'ê': "e",
	'í': "i", 'ì': "i", 'ó': "o", 'ò': "o", 'ú': "u", 'ù': "u", 'ç': "c", 'ñ': "n",
}

// Slugify converts a title to a URL-safe slug.
func Slugify(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	var b strings.Builder
	prev := false
	for _, r := range s {
		if t, ok := transliterations[r]; ok {
			b.WriteString(t)
			prev = false
			continue
		}
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			prev = false
		default:
			if !prev && b.Len() > 0 {
				b.WriteByte('-')
				prev = true
			}
		}
	}
	out := strings.TrimRight(b.String(), "-")
	if len(out) > MaxSlugLength {
		out = out[:MaxSlugLength]
		if i := strings.LastIndexByte(out, '-'); i > MaxSlugLength/2 {
			out = out[:i]
		}
		out = strings.TrimRight(out, "-")
	}
	return out
}

// ValidSlug reports whether s only contains lowercase letters, digits and
// hyphens.
func ValidSlug(s string) bool {
	return slugPattern.MatchString(s)
}

// UniqueSlug returns base, or base with the first free numeric suffix
// (-2, -3, ...) when base is already taken.
func UniqueSlug(base string, existing []string) string {
	taken := make(map[string]struct{}, len(existing))
	for _, s := range existing {
		taken[s] = struct{}{}
	}
	if _, ok := taken[base]; !ok {
		return base
	}
	for counter := 2; ; counter++ {
		candidate := fmt.Sprintf("%s-%d", base, counter)
		if _, ok := taken[candidate]; !ok {
			return candidate
		}
	}
}
