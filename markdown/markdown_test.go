package markdown

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

const longParagraph = "Wir haben uns am späten Nachmittag im Park getroffen und das warme Licht genutzt."

func TestFormatInlineBold(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"**bold**", "<strong>bold</strong>"},
		{"__bold__", "<strong>bold</strong>"},
		{"text **bold** more", "text <strong>bold</strong> more"},
	}
	for _, tt := range tests {
		got := FormatInline(tt.input)
		if got != tt.expected {
			t.Errorf("FormatInline(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestFormatInlineItalic(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"*italic*", "<em>italic</em>"},
		{"_italic_", "<em>italic</em>"},
		{"text *italic* more", "text <em>italic</em> more"},
		{"snake_case_name", "snake_case_name"},
	}
	for _, tt := range tests {
		got := FormatInline(tt.input)
		if got != tt.expected {
			t.Errorf("FormatInline(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestFormatInlineNested(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"**bold *italic* text**", "<strong>bold <em>italic</em> text</strong>"},
		{"__bold _italic_ text__", "<strong>bold <em>italic</em> text</strong>"},
	}
	for _, tt := range tests {
		got := FormatInline(tt.input)
		if got != tt.expected {
			t.Errorf("FormatInline(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestFormatInlineLinks(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{
			"[Galerie](https://example.com/galerie/familie_herbst)",
			`<a href="https://example.com/galerie/familie_herbst" class="underline decoration-2 underline-offset-4">Galerie</a>`,
		},
		{
			"Zum [Kontakt](/kontakt/)^ hier",
			`Zum <a href="/kontakt/" class="underline decoration-2 underline-offset-4" target="_blank" rel="noopener noreferrer">Kontakt</a> hier`,
		},
		{"[klick](javascript:alert(1))", "klick)"},
	}
	for _, tt := range tests {
		got := FormatInline(tt.input)
		if got != tt.expected {
			t.Errorf("FormatInline(%q)\n  got:  %q\n  want: %q", tt.input, got, tt.expected)
		}
	}
}

func TestFormatInlineCode(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"`code`", "<code>code</code>"},
		{"`a` and `b`", "<code>a</code> and <code>b</code>"},
		{"`**not bold**`", "<code>**not bold**</code>"},
	}
	for _, tt := range tests {
		got := FormatInline(tt.input)
		if got != tt.expected {
			t.Errorf("FormatInline(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestRenderMarkdownHeadings(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"# Heading 1", "<h1>Heading 1</h1>"},
		{"## Heading 2", "<h2>Heading 2</h2>"},
		{"### Heading 3", "<h3>Heading 3</h3>"},
		{"#### Heading 4", "<h4>Heading 4</h4>"},
		{"##Ohne Leerzeichen", "<h2>Ohne Leerzeichen</h2>"},
		{"H2: Ankommen", "<h2>Ankommen</h2>"},
		{"**H3:** Details", "<h3>Details</h3>"},
		{"## H2: Fazit", "<h2>Fazit</h2>"},
		{"**Unsere Eindrücke**", "<h3>Unsere Eindrücke</h3>"},
		{"#familie #herbst", ""},
	}
	for _, tt := range tests {
		var buf bytes.Buffer
		RenderMarkdown(&buf, tt.input, Options{MinParagraphLength: 40})
		got := buf.String()
		if got != tt.expected {
			t.Errorf("RenderMarkdown(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestRenderMarkdownList(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"- item 1\n- item 2", "<ul><li>item 1</li><li>item 2</li></ul>"},
		{"* item 1\n• item 2", "<ul><li>item 1</li><li>item 2</li></ul>"},
		{"1. first\n2. second\n3) third", "<ol><li>first</li><li>second</li><li>third</li></ol>"},
		{"1. **bold** item\n2. *italic* item", "<ol><li><strong>bold</strong> item</li><li><em>italic</em> item</li></ol>"},
	}
	for _, tt := range tests {
		var buf bytes.Buffer
		RenderMarkdown(&buf, tt.input, Options{MinParagraphLength: 40})
		if got := buf.String(); got != tt.expected {
			t.Errorf("RenderMarkdown(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestRenderMarkdownShortLines(t *testing.T) {
	input := "Kurz.\n\nLicht\nLaub\nLachen\n\n" + longParagraph
	var buf bytes.Buffer
	RenderMarkdown(&buf, input, Options{MinParagraphLength: 40})
	got := buf.String()
	want := "<ul><li>Licht</li><li>Laub</li><li>Lachen</li></ul><p>" + longParagraph + "</p>"
	if got != want {
		t.Errorf("RenderMarkdown(%q)\n  got:  %q\n  want: %q", input, got, want)
	}
}

func TestRenderMarkdownListFollowedByParagraph(t *testing.T) {
	input := "1. item one\n2. item two\n\n" + longParagraph
	var buf bytes.Buffer
	RenderMarkdown(&buf, input, Options{MinParagraphLength: 40})
	got := buf.String()
	if !strings.Contains(got, "</ol><p>") {
		t.Errorf("expected paragraph after list: %q", got)
	}
}

func TestRenderMarkdownCodeBlock(t *testing.T) {
	input := "```\n### not a heading\n```"
	var buf bytes.Buffer
	RenderMarkdown(&buf, input, Options{MinParagraphLength: 40})
	got := buf.String()
	if got != "<pre class=\"code-block\"><code>### not a heading\n</code></pre>" {
		t.Errorf("RenderMarkdown code block = %q", got)
	}
}

func TestRenderMarkdownTable(t *testing.T) {
	input := "| Paket | Dauer |\n|---|---|\n| Familie | 60 Minuten |"
	var buf bytes.Buffer
	RenderMarkdown(&buf, input, Options{MinParagraphLength: 40})
	want := "<table><thead><tr><th>Paket</th><th>Dauer</th></tr></thead><tbody><tr><td>Familie</td><td>60 Minuten</td></tr></tbody></table>"
	if got := buf.String(); got != want {
		t.Errorf("RenderMarkdown table = %q, want %q", got, want)
	}
}

func TestFormatDropsDuplicateSections(t *testing.T) {
	input := "# Unser Herbstshooting\n\n## Fazit\n\n" + longParagraph + "\n\n## Fazit\n\nDieser doppelte Abschnitt darf im Ergebnis niemals auftauchen.\n\n## Danke\n\n" + longParagraph
	got := Format(input, Options{Title: "Unser Herbstshooting"})

	if strings.Contains(got, "<h1>") {
		t.Errorf("title heading was not dropped: %q", got)
	}
	if n := strings.Count(got, "<h2>Fazit</h2>"); n != 1 {
		t.Errorf("Fazit heading appears %d times, want 1", n)
	}
	if strings.Contains(got, "doppelte") {
		t.Errorf("duplicate section body was kept: %q", got)
	}
	if !strings.Contains(got, "<h2>Danke</h2>") {
		t.Errorf("section after duplicate was dropped: %q", got)
	}
}

func TestFormatHTMLInput(t *testing.T) {
	input := `<h2 class="x">Ankommen</h2><p>Wir haben uns <strong>früh</strong> getroffen und den ganzen Nachmittag fotografiert.</p><ul><li>Licht</li><li>Laub</li></ul><div><img src="https://cdn.example.com/a.jpg"></div>`
	got := Format(input, Options{})

	for _, want := range []string{"<h2>Ankommen</h2>", "<strong>früh</strong>", "<ul><li>Licht</li><li>Laub</li></ul>"} {
		if !strings.Contains(got, want) {
			t.Errorf("Format(html) missing %q: %q", want, got)
		}
	}
	if strings.Contains(got, "class=\"x\"") || strings.Contains(got, "<img") {
		t.Errorf("Format(html) kept foreign markup: %q", got)
	}
}

func TestFormatNoLiteralHeadingMarkers(t *testing.T) {
	inputs := []string{
		"H1: Titel\nH2: Abschnitt\n" + longParagraph,
		"**H2: Abschnitt**\n\n" + longParagraph + " H3: mitten im Satz.",
		"####### Sieben\n\n" + longParagraph + " ### im Text",
		"h2:klein geschrieben\n\n" + longParagraph,
	}
	for _, input := range inputs {
		got := Format(input, Options{})
		for _, bad := range []string{"H1:", "H2:", "H3:", "h2:", "###"} {
			if strings.Contains(got, bad) {
				t.Errorf("Format(%q) contains %q: %q", input, bad, got)
			}
		}
	}
}

func TestFormatSecurity(t *testing.T) {
	inputs := []string{
		"<script>alert(1)</script>" + longParagraph,
		`<img src=x onerror=alert(1)>` + longParagraph,
		"[klick](javascript:alert(1)) " + longParagraph,
		`<a href="javascript:alert(1)" onclick="steal()">Link</a> ` + longParagraph,
		`Text mit onclick="steal()" und ` + longParagraph,
		"<scr<script>ipt>alert(1)</script> " + longParagraph,
		"JaVaScRiPt:void(0) " + longParagraph,
		"&lt;script&gt;alert(1)&lt;/script&gt; " + longParagraph,
		"<style>p{}</style><iframe src=\"https://evil.example\"></iframe>" + longParagraph,
	}
	for _, input := range inputs {
		got := strings.ToLower(Format(input, Options{}))
		for _, bad := range []string{"<script", "onclick=", "onerror=", "javascript:", "<iframe", "<style"} {
			if strings.Contains(got, bad) {
				t.Errorf("Format(%q) contains %q: %q", input, bad, got)
			}
		}
	}
}

func TestFormatSecurityNestedSchemes(t *testing.T) {
	for _, depth := range []int{1, 5, 10, 11, 25} {
		scheme := strings.Repeat("java", depth) + "javascript:" + strings.Repeat("script:", depth)
		handler := strings.Repeat("on", depth) + "onclick=x" + strings.Repeat("click=y ", depth)
		input := longParagraph + " " + scheme + "alert(1) " + handler
		got := strings.ToLower(Format(input, Options{}))
		for _, bad := range []string{"javascript:", "onclick="} {
			if strings.Contains(got, bad) {
				t.Errorf("depth %d: Format contains %q: %q", depth, bad, got)
			}
		}
		if s := strings.ToLower(Sanitize(scheme)); strings.Contains(s, "javascript:") {
			t.Errorf("depth %d: Sanitize(%q) = %q", depth, scheme, s)
		}
	}
}

func TestFormatAppendsCTA(t *testing.T) {
	for _, input := range []string{"", longParagraph, "<script>x</script>"} {
		got := Format(input, Options{})
		if !strings.Contains(got, CTAOpenTag) {
			t.Errorf("Format(%q) has no CTA section: %q", input, got)
		}
		for _, l := range DefaultCTA.Links {
			if !strings.Contains(got, `href="`+l.URL+`"`) {
				t.Errorf("Format(%q) missing CTA link %q", input, l.URL)
			}
		}
	}

	custom := CTA{Heading: "Book now", Links: []Link{{Label: "Book", URL: "/book/"}, {Label: "Bad", URL: "javascript:x"}}}
	got := Format(longParagraph, Options{CTA: custom})
	if !strings.Contains(got, "<h2>Book now</h2>") || !strings.Contains(got, `href="/book/"`) {
		t.Errorf("custom CTA not rendered: %q", got)
	}
	if strings.Contains(got, ">Bad<") {
		t.Errorf("unsafe CTA link rendered: %q", got)
	}
}

func TestSafeURL(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"https://example.com/a?b=1&c=2", "https://example.com/a?b=1&amp;c=2"},
		{"/kontakt/", "/kontakt/"},
		{"#top", "#top"},
		{"mailto:info@example.com", "mailto:info@example.com"},
		{"javascript:alert(1)", ""},
		{"data:text/html;base64,xx", ""},
		{"//evil.example", ""},
		{"relative/path", ""},
	}
	for _, tt := range tests {
		if got := SafeURL(tt.input); got != tt.expected {
			t.Errorf("SafeURL(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestPreview(t *testing.T) {
	var buf bytes.Buffer
	if err := Preview(`<p>Hallo</p><script>alert(1)</script>`).Render(context.Background(), &buf); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if got := buf.String(); got != "<p>Hallo</p>" {
		t.Errorf("Preview = %q, want %q", got, "<p>Hallo</p>")
	}
}
