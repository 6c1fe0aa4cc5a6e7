package parse

import (
	"strings"
	"unicode"
)

// Locale carries the language-specific defaults of the parser.
type Locale struct {
	Code          string
	FunctionWords []string
	Headings      []string
	Filler        []string
	DefaultTitle  string
	DefaultMeta   string
	DefaultTags   []string
	// DefaultAlt, AltFormat and ImageLine label uploaded images in the
	// article and in the generation prompt.
	DefaultAlt string
	AltFormat  string
	ImageLine  string
}

var German = Locale{
	Code: "de",
	FunctionWords: []string{
		"der", "die", "das", "und", "ist", "mit", "für", "ein", "eine", "nicht",
		"sich", "auf", "den", "von", "zu", "im", "wir", "uns", "bei", "auch",
	},
	Headings: []string{
		"Ein ganz besonderes Shooting",
		"Die Geschichte hinter den Bildern",
		"Unsere Eindrücke",
		"Fazit",
	},
	Filler: []string{
		"Jedes Fotoshooting ist für uns etwas Besonderes, denn wir möchten echte Momente festhalten, die noch nach Jahren Freude bereiten.",
		"Mit viel Ruhe, einem Gespür für natürliches Licht und einer entspannten Atmosphäre entstehen Bilder, die authentisch und persönlich sind.",
		"Wenn auch du dir solche Erinnerungen wünschst, melde dich gern bei uns und wir planen gemeinsam dein eigenes Shooting.",
	},
	DefaultTitle: "Einblicke in unser aktuelles Fotoshooting",
	DefaultMeta:  "Einblicke in ein aktuelles Fotoshooting: natürliche Bilder, entspannte Atmosphäre und echte Momente aus unserem Fotostudio.",
	DefaultTags:  []string{"Fotografie", "Fotoshooting", "Fotostudio"},
	DefaultAlt:   "Impression aus unserem Fotoshooting",
	AltFormat:    "%s: Bild %d von %d",
	ImageLine:    "Bild %d: %s",
}

var English = Locale{
	Code: "en",
	FunctionWords: []string{
		"the", "and", "is", "with", "for", "a", "an", "not", "on", "of",
		"to", "in", "we", "our", "at", "it", "this", "that",
	},
	Headings: []string{
		"A Very Special Session",
		"The Story Behind the Pictures",
		"Our Impressions",
		"Conclusion",
	},
	Filler: []string{
		"Every photo session is special to us because we want to capture genuine moments that bring joy for years to come.",
		"With patience, an eye for natural light and a relaxed atmosphere, we create pictures that feel authentic and personal.",
		"If you would like memories like these, get in touch and we will plan your own session together.",
	},
	DefaultTitle: "Behind the Scenes of Our Latest Photo Session",
	DefaultMeta:  "A look behind the scenes of our latest photo session: natural pictures, a relaxed atmosphere and genuine moments from our studio.",
	DefaultTags:  []string{"Photography", "Photo Session", "Studio"},
	DefaultAlt:   "Impression from our photo session",
	AltFormat:    "%s: image %d of %d",
	ImageLine:    "Image %d: %s",
}

// LocaleFor returns the built-in locale for code, defaulting to German.
func LocaleFor(code string) Locale {
	if strings.HasPrefix(strings.ToLower(code), "en") {
		return English
	}
	return German
}

// CountFunctionWords counts the locale's function words in text.
func (l Locale) CountFunctionWords(text string) int {
	set := make(map[string]struct{}, len(l.FunctionWords))
	for _, w := range l.FunctionWords {
		set[w] = struct{}{}
	}
	n := 0
	for _, f := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r)
	}) {
		if _, ok := set[f]; ok {
			n++
		}
	}
	return n
}
