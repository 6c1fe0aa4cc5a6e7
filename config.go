package autoblog

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/eringen/autoblog/markdown"
	"github.com/eringen/autoblog/parse"
	"github.com/eringen/autoblog/sources"
	"github.com/eringen/autoblog/storage"
)

// Config holds all configuration of an autoblog instance.
type Config struct {
	Site       SiteConfig       `mapstructure:"site"`
	Server     ServerConfig     `mapstructure:"server"`
	Admin      AdminConfig      `mapstructure:"admin"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Images     ImagesConfig     `mapstructure:"images"`
	Sources    SourcesConfig    `mapstructure:"sources"`
	Generation GenerationConfig `mapstructure:"generation"`
	Parser     ParserConfig     `mapstructure:"parser"`
	Content    ContentConfig    `mapstructure:"content"`
	Log        LogConfig        `mapstructure:"log"`
}

// SiteConfig describes the public site the documents are published on.
type SiteConfig struct {
	Name        string `mapstructure:"name"`        // default "Blog"
	URL         string `mapstructure:"url"`         // canonical URL, default "http://localhost:3000"
	Description string `mapstructure:"description"` // used by the RSS feed
	Locale      string `mapstructure:"locale"`      // "de" (default) or "en"
}

type ServerConfig struct {
	Addr         string        `mapstructure:"addr"` // default ":3000"
	CookieSecure bool          `mapstructure:"cookie_secure"`
	BodyLimit    string        `mapstructure:"body_limit"` // echo size string, default "40M"
	CacheTTL     time.Duration `mapstructure:"cache_ttl"`
}

type AdminConfig struct {
	Password           string        `mapstructure:"password"`       // required by Start
	SessionSecret      string        `mapstructure:"session_secret"` // required by Start
	LoginAttempts      int           `mapstructure:"login_attempts"`
	LoginWindow        time.Duration `mapstructure:"login_window"`
	GenerationsPerHour int           `mapstructure:"generations_per_hour"`
}

type DatabaseConfig struct {
	Path string `mapstructure:"path"` // default "data/autoblog.db"
}

// StorageConfig selects the object store for ingested images.
type StorageConfig struct {
	Backend   string `mapstructure:"backend"` // "filesystem" (default) or "s3"
	Path      string `mapstructure:"path"`
	PublicURL string `mapstructure:"public_url"`
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
}

type ImagesConfig struct {
	MaxImages      int   `mapstructure:"max_images"`
	MaxDimension   int   `mapstructure:"max_dimension"`
	JPEGQuality    int   `mapstructure:"jpeg_quality"`
	MaxUploadBytes int64 `mapstructure:"max_upload_bytes"`
}

type SourcesConfig struct {
	Timeout        time.Duration `mapstructure:"timeout"`
	Sequential     bool          `mapstructure:"sequential"`
	WebsiteURL     string        `mapstructure:"website_url"`
	SearchEndpoint string        `mapstructure:"search_endpoint"`
	ReviewLimit    int           `mapstructure:"review_limit"`
	KnowledgeLimit int           `mapstructure:"knowledge_limit"`
	Facts          sources.Facts `mapstructure:"facts"`
}

// GenerationConfig configures the session-based generator and the
// stateless fallback.
type GenerationConfig struct {
	OpenAIKey     string `mapstructure:"openai_key"`
	OpenAIBaseURL string `mapstructure:"openai_base_url"`
	Model         string `mapstructure:"model"`
	// AssistantID is the persona every run is started with. Without it only
	// the stateless path is used.
	AssistantID  string        `mapstructure:"assistant_id"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	MaxPolls     int           `mapstructure:"max_polls"`
	// Fallback picks the stateless completion backend: "openai" or "gemini".
	Fallback          string `mapstructure:"fallback"`
	GeminiKey         string `mapstructure:"gemini_key"`
	GeminiModel       string `mapstructure:"gemini_model"`
	VisionInstruction string `mapstructure:"vision_instruction"`
	SystemInstruction string `mapstructure:"system_instruction"`
}

// ParserConfig holds the parser thresholds. Zero values keep the parser's
// defaults.
type ParserConfig struct {
	MinTitleLength   int `mapstructure:"min_title_length"`
	MinMetaLength    int `mapstructure:"min_meta_length"`
	MaxMetaLength    int `mapstructure:"max_meta_length"`
	MinExcerptLength int `mapstructure:"min_excerpt_length"`
	MaxExcerptLength int `mapstructure:"max_excerpt_length"`
	MinSlugLength    int `mapstructure:"min_slug_length"`
	MinBodyLength    int `mapstructure:"min_body_length"`
	MinSegmentLength int `mapstructure:"min_segment_length"`
	MinFunctionWords int `mapstructure:"min_function_words"`
	MaxTags          int `mapstructure:"max_tags"`
}

// Options returns the parser options for locale.
func (c ParserConfig) Options(locale parse.Locale) parse.Options {
	return parse.Options{
		Locale:           locale,
		MinTitleLength:   c.MinTitleLength,
		MinMetaLength:    c.MinMetaLength,
		MaxMetaLength:    c.MaxMetaLength,
		MinExcerptLength: c.MinExcerptLength,
		MaxExcerptLength: c.MaxExcerptLength,
		MinSlugLength:    c.MinSlugLength,
		MinBodyLength:    c.MinBodyLength,
		MinSegmentLength: c.MinSegmentLength,
		MinFunctionWords: c.MinFunctionWords,
		MaxTags:          c.MaxTags,
	}
}

type ContentConfig struct {
	MinParagraphLength int             `mapstructure:"min_paragraph_length"`
	ExcludeFeatured    bool            `mapstructure:"exclude_featured"`
	DefaultAlt         string          `mapstructure:"default_alt"`
	Instructions       string          `mapstructure:"instructions"`
	CTAHeading         string          `mapstructure:"cta_heading"`
	CTAText            string          `mapstructure:"cta_text"`
	CTALinks           []markdown.Link `mapstructure:"cta_links"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // "console" or "json"
}

func (c *Config) setDefaults() {
	if c.Site.Name == "" {
		c.Site.Name = "Blog"
	}
	if c.Site.URL == "" {
		c.Site.URL = "http://localhost:3000"
	}
	c.Site.URL = strings.TrimRight(c.Site.URL, "/")
	if c.Site.Locale == "" {
		c.Site.Locale = "de"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":3000"
	}
	if c.Server.BodyLimit == "" {
		c.Server.BodyLimit = "40M"
	}
	if c.Server.CacheTTL == 0 {
		c.Server.CacheTTL = 5 * time.Minute
	}
	if c.Admin.LoginAttempts == 0 {
		c.Admin.LoginAttempts = 5
	}
	if c.Admin.LoginWindow == 0 {
		c.Admin.LoginWindow = time.Minute
	}
	if c.Admin.GenerationsPerHour == 0 {
		c.Admin.GenerationsPerHour = 10
	}
	if c.Database.Path == "" {
		c.Database.Path = "data/autoblog.db"
	}
	if c.Storage.Backend == "" {
		c.Storage.Backend = "filesystem"
	}
	if c.Storage.Path == "" {
		c.Storage.Path = "data/media"
	}
	if c.Storage.PublicURL == "" && c.Storage.Backend == "filesystem" {
		c.Storage.PublicURL = "/media"
	}
	if c.Storage.Bucket == "" {
		c.Storage.Bucket = "autoblog"
	}
	if c.Images.MaxImages == 0 {
		c.Images.MaxImages = 3
	}
	if c.Sources.Timeout == 0 {
		c.Sources.Timeout = 15 * time.Second
	}
	if c.Sources.Facts.Website == "" {
		c.Sources.Facts.Website = c.Sources.WebsiteURL
	}
	if c.Generation.PollInterval == 0 {
		c.Generation.PollInterval = 2 * time.Second
	}
	if c.Generation.MaxPolls == 0 {
		c.Generation.MaxPolls = 30
	}
	if c.Generation.Fallback == "" {
		c.Generation.Fallback = "openai"
		if c.Generation.OpenAIKey == "" {
			c.Generation.Fallback = "gemini"
		}
	}
	if c.Content.MinParagraphLength == 0 {
		c.Content.MinParagraphLength = 40
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "console"
	}
}

// CTA returns the configured call-to-action, or markdown.DefaultCTA.
func (c ContentConfig) CTA() markdown.CTA {
	if c.CTAHeading == "" && c.CTAText == "" && len(c.CTALinks) == 0 {
		return markdown.DefaultCTA
	}
	cta := markdown.CTA{Heading: c.CTAHeading, Text: c.CTAText, Links: c.CTALinks}
	if len(cta.Links) == 0 {
		cta.Links = markdown.DefaultCTA.Links
	}
	return cta
}

// configKeys are bound to AUTOBLOG_* environment variables, e.g.
// AUTOBLOG_ADMIN_PASSWORD for admin.password.
var configKeys = []string{
	"site.name", "site.url", "site.description", "site.locale",
	"server.addr", "server.cookie_secure", "server.body_limit", "server.cache_ttl",
	"admin.password", "admin.session_secret", "admin.login_attempts", "admin.login_window",
	"admin.generations_per_hour",
	"database.path",
	"storage.backend", "storage.path", "storage.public_url", "storage.bucket", "storage.region",
	"images.max_images", "images.max_dimension", "images.jpeg_quality", "images.max_upload_bytes",
	"sources.timeout", "sources.sequential", "sources.website_url", "sources.search_endpoint",
	"sources.review_limit", "sources.knowledge_limit",
	"sources.facts.name", "sources.facts.owner", "sources.facts.city", "sources.facts.region",
	"sources.facts.phone", "sources.facts.email", "sources.facts.website", "sources.facts.services",
	"sources.facts.notes",
	"generation.openai_key", "generation.openai_base_url", "generation.model", "generation.assistant_id",
	"generation.poll_interval", "generation.max_polls", "generation.fallback", "generation.gemini_key",
	"generation.gemini_model", "generation.vision_instruction", "generation.system_instruction",
	"parser.min_title_length", "parser.min_meta_length", "parser.max_meta_length",
	"parser.min_excerpt_length", "parser.max_excerpt_length", "parser.min_slug_length",
	"parser.min_body_length", "parser.min_segment_length", "parser.min_function_words", "parser.max_tags",
	"content.min_paragraph_length", "content.exclude_featured", "content.default_alt",
	"content.instructions", "content.cta_heading", "content.cta_text",
	"log.level", "log.format",
}

// LoadConfig reads configuration from an optional file (YAML, TOML or
// JSON), a .env file in the working directory and AUTOBLOG_* environment
// variables, in increasing order of precedence. Unset values get their
// defaults.
func LoadConfig(path string) (Config, error) {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			return Config{}, fmt.Errorf("autoblog: load .env: %w", err)
		}
	}

	v := viper.New()
	v.SetEnvPrefix("AUTOBLOG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range configKeys {
		if err := v.BindEnv(key); err != nil {
			return Config{}, fmt.Errorf("autoblog: bind %s: %w", key, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("autoblog: read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("autoblog: decode config: %w", err)
	}
	cfg.setDefaults()
	return cfg, nil
}

// Option configures additional App behavior.
type Option func(*App)

// WithCustomRoutes registers additional routes on the Echo instance.
// The callback receives the App before the server starts.
func WithCustomRoutes(fn func(*App)) Option {
	return func(a *App) {
		a.customRoutes = append(a.customRoutes, fn)
	}
}

// WithStore uses an already opened store instead of Config.Database.
func WithStore(s *Store) Option {
	return func(a *App) {
		a.Store = s
	}
}

// WithObjectStore replaces the object store built from Config.Storage.
func WithObjectStore(s storage.ObjectStore) Option {
	return func(a *App) {
		a.objects = s
	}
}

// WithGenerator replaces the generator built from Config.Generation.
func WithGenerator(g Generator) Option {
	return func(a *App) {
		a.generator = g
	}
}

// WithAggregator replaces the context aggregator built from Config.Sources.
func WithAggregator(agg ContextAggregator) Option {
	return func(a *App) {
		a.aggregator = agg
	}
}

// WithClock sets the time source used for publication decisions and
// scheduled visibility.
func WithClock(now func() time.Time) Option {
	return func(a *App) {
		a.now = now
	}
}
