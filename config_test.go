package autoblog

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/eringen/autoblog/markdown"
	"github.com/eringen/autoblog/parse"
)

func TestConfigDefaults(t *testing.T) {
	var cfg Config
	cfg.setDefaults()

	checks := []struct {
		name string
		got  any
		want any
	}{
		{"site.name", cfg.Site.Name, "Blog"},
		{"site.url", cfg.Site.URL, "http://localhost:3000"},
		{"site.locale", cfg.Site.Locale, "de"},
		{"server.addr", cfg.Server.Addr, ":3000"},
		{"server.cache_ttl", cfg.Server.CacheTTL, 5 * time.Minute},
		{"admin.login_attempts", cfg.Admin.LoginAttempts, 5},
		{"database.path", cfg.Database.Path, "data/autoblog.db"},
		{"storage.backend", cfg.Storage.Backend, "filesystem"},
		{"storage.public_url", cfg.Storage.PublicURL, "/media"},
		{"images.max_images", cfg.Images.MaxImages, 3},
		{"sources.timeout", cfg.Sources.Timeout, 15 * time.Second},
		{"generation.max_polls", cfg.Generation.MaxPolls, 30},
		{"generation.poll_interval", cfg.Generation.PollInterval, 2 * time.Second},
		{"generation.fallback", cfg.Generation.Fallback, "gemini"},
		{"content.min_paragraph_length", cfg.Content.MinParagraphLength, 40},
		{"log.level", cfg.Log.Level, "info"},
	}
	for _, c := range checks {
		if !reflect.DeepEqual(c.got, c.want) {
			t.Errorf("%s = %v, want %v", c.name, c.got, c.want)
		}
	}

	withKey := Config{Generation: GenerationConfig{OpenAIKey: "sk-test"}}
	withKey.setDefaults()
	if withKey.Generation.Fallback != "openai" {
		t.Errorf("fallback with OpenAI key = %q, want openai", withKey.Generation.Fallback)
	}

	s3 := Config{Storage: StorageConfig{Backend: "s3"}}
	s3.setDefaults()
	if s3.Storage.PublicURL != "" {
		t.Errorf("s3 public URL defaulted to %q", s3.Storage.PublicURL)
	}
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "autoblog.yaml")
	yaml := `site:
  name: Studio Licht
  url: https://studio-licht.de/
admin:
  password: from-file
  session_secret: secret
sources:
  timeout: 30s
  website_url: https://studio-licht.de
  facts:
    city: Leipzig
    services:
      - Familienfotografie
      - Babyfotografie
parser:
  min_slug_length: 5
  min_excerpt_length: 40
  min_segment_length: 60
content:
  cta_heading: Jetzt buchen
  cta_links:
    - label: Buchen
      url: /buchen/
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("AUTOBLOG_ADMIN_PASSWORD", "from-env")
	t.Setenv("AUTOBLOG_IMAGES_MAX_IMAGES", "5")
	t.Setenv("AUTOBLOG_PARSER_MIN_FUNCTION_WORDS", "4")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Site.Name != "Studio Licht" || cfg.Site.URL != "https://studio-licht.de" {
		t.Errorf("site = %+v", cfg.Site)
	}
	if cfg.Admin.Password != "from-env" || cfg.Admin.SessionSecret != "secret" {
		t.Errorf("admin = %+v", cfg.Admin)
	}
	if cfg.Images.MaxImages != 5 {
		t.Errorf("images.max_images = %d, want 5", cfg.Images.MaxImages)
	}
	want := ParserConfig{MinSlugLength: 5, MinExcerptLength: 40, MinSegmentLength: 60, MinFunctionWords: 4}
	if cfg.Parser != want {
		t.Errorf("parser = %+v, want %+v", cfg.Parser, want)
	}
	if cfg.Sources.Timeout != 30*time.Second {
		t.Errorf("sources.timeout = %v", cfg.Sources.Timeout)
	}
	if cfg.Sources.Facts.City != "Leipzig" || cfg.Sources.Facts.Website != "https://studio-licht.de" {
		t.Errorf("facts = %+v", cfg.Sources.Facts)
	}
	if !reflect.DeepEqual(cfg.Sources.Facts.Services, []string{"Familienfotografie", "Babyfotografie"}) {
		t.Errorf("facts.services = %v", cfg.Sources.Facts.Services)
	}
	cta := cfg.Content.CTA()
	if cta.Heading != "Jetzt buchen" || len(cta.Links) != 1 || cta.Links[0].URL != "/buchen/" {
		t.Errorf("CTA = %+v", cta)
	}
	if cfg.Server.Addr != ":3000" {
		t.Errorf("defaults not applied: server.addr = %q", cfg.Server.Addr)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected an error for a missing config file")
	}
}

func TestContentConfigCTA(t *testing.T) {
	tests := []struct {
		name string
		cfg  ContentConfig
		want markdown.CTA
	}{
		{"default", ContentConfig{}, markdown.DefaultCTA},
		{
			"text only keeps default links",
			ContentConfig{CTAHeading: "Hallo", CTAText: "Melde dich"},
			markdown.CTA{Heading: "Hallo", Text: "Melde dich", Links: markdown.DefaultCTA.Links},
		},
		{
			"custom links",
			ContentConfig{CTALinks: []markdown.Link{{Label: "Kontakt", URL: "/kontakt/"}}},
			markdown.CTA{Links: []markdown.Link{{Label: "Kontakt", URL: "/kontakt/"}}},
		},
	}
	for _, tt := range tests {
		if got := tt.cfg.CTA(); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("%s: CTA() = %+v, want %+v", tt.name, got, tt.want)
		}
	}
}

func TestParserConfigOptions(t *testing.T) {
	cfg := ParserConfig{MinSlugLength: 5, MinFunctionWords: 4, MaxExcerptLength: 200}
	opts := cfg.Options(parse.English)
	if opts.Locale.Code != "en" || opts.MinSlugLength != 5 || opts.MinFunctionWords != 4 || opts.MaxExcerptLength != 200 {
		t.Errorf("Options() = %+v", opts)
	}
	if opts.MinTitleLength != 0 {
		t.Errorf("MinTitleLength = %d, want 0 so the parser default applies", opts.MinTitleLength)
	}
}
