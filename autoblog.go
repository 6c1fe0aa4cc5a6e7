// Package autoblog turns a handful of photos and a few words of guidance
// into a published blog article. It gathers context about the shoot and the
// studio, drives a text generator, recovers a clean document from whatever
// the generator returned, places the photos and stores the result.
//
// An App wires the pipeline to a SQLite store and an Echo server with an
// admin API, an RSS feed and a sitemap.
package autoblog

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/eringen/autoblog/assistant"
	"github.com/eringen/autoblog/gemini"
	"github.com/eringen/autoblog/generation"
	"github.com/eringen/autoblog/ingest"
	"github.com/eringen/autoblog/markdown"
	"github.com/eringen/autoblog/parse"
	"github.com/eringen/autoblog/sources"
	"github.com/eringen/autoblog/storage"
)

// App is the central autoblog application. It wires together the store,
// cache, pipeline, handlers and middleware.
type App struct {
	Config   Config
	Echo     *echo.Echo
	Store    *Store
	Cache    *DocumentCache
	Pipeline *Pipeline

	objects      storage.ObjectStore
	aggregator   ContextAggregator
	generator    Generator
	loginLimiter *RateLimiter
	runLimiter   *RateLimiter
	customRoutes []func(*App)
	now          func() time.Time
	ownsStore    bool
	ready        bool
	routed       bool
}

// New creates a new App with the given configuration.
func New(cfg Config, opts ...Option) *App {
	cfg.setDefaults()

	a := &App{
		Config: cfg,
		Echo:   echo.New(),
		now:    time.Now,
	}
	a.Echo.HideBanner = true
	a.Echo.HidePort = true

	for _, opt := range opts {
		opt(a)
	}

	return a
}

// Init opens the store and builds every pipeline collaborator that was not
// supplied as an Option. It is enough for running the pipeline without the
// HTTP server.
func (a *App) Init(ctx context.Context) error {
	if a.ready {
		return nil
	}
	cfg := a.Config

	if a.Store == nil {
		store, err := NewStore(cfg.Database.Path)
		if err != nil {
			return fmt.Errorf("autoblog: init store: %w", err)
		}
		a.Store = store
		a.ownsStore = true
	}

	if a.objects == nil {
		objects, err := newObjectStore(ctx, cfg.Storage)
		if err != nil {
			return fmt.Errorf("autoblog: init storage: %w", err)
		}
		a.objects = objects
	}

	var gem *gemini.Client
	if cfg.Generation.GeminiKey != "" && (a.aggregator == nil || a.generator == nil) {
		var err error
		gem, err = gemini.New(ctx, cfg.Generation.GeminiKey, cfg.Generation.GeminiModel, cfg.Generation.SystemInstruction)
		if err != nil {
			return fmt.Errorf("autoblog: init gemini: %w", err)
		}
	}
	if a.aggregator == nil {
		a.aggregator = a.newAggregator(gem)
	}
	locale := parse.LocaleFor(cfg.Site.Locale)
	if a.generator == nil {
		gen, err := newGenerator(cfg.Generation, gem, locale)
		if err != nil {
			return err
		}
		a.generator = gen
	}

	ingestor := ingest.New(a.objects, ingest.Options{
		MaxImages:      cfg.Images.MaxImages,
		MaxDimension:   cfg.Images.MaxDimension,
		JPEGQuality:    cfg.Images.JPEGQuality,
		MaxUploadBytes: cfg.Images.MaxUploadBytes,
		Bucket:         cfg.Storage.Bucket,
	})
	parser := parse.New(cfg.Parser.Options(locale))
	defaultAlt := cfg.Content.DefaultAlt
	if defaultAlt == "" {
		defaultAlt = locale.DefaultAlt
	}
	a.Pipeline = NewPipeline(ingestor, a.aggregator, a.generator, a.Store, parser, PipelineOptions{
		Instructions: cfg.Content.Instructions,
		Format: markdown.Options{
			MinParagraphLength: cfg.Content.MinParagraphLength,
			CTA:                cfg.Content.CTA(),
		},
		DefaultAlt:      defaultAlt,
		AltFormat:       locale.AltFormat,
		ExcludeFeatured: cfg.Content.ExcludeFeatured,
		Now:             a.now,
	})

	a.Cache = NewDocumentCache(a.Store, cfg.Server.CacheTTL, a.now)
	a.loginLimiter = NewRateLimiter(cfg.Admin.LoginAttempts, cfg.Admin.LoginWindow)
	a.runLimiter = NewRateLimiter(cfg.Admin.GenerationsPerHour, time.Hour)
	a.ready = true
	return nil
}

// Setup validates the admin configuration, runs Init and registers
// middleware and routes. Start calls it; tests can serve a.Echo directly
// afterwards.
func (a *App) Setup(ctx context.Context) error {
	if a.Config.Admin.Password == "" {
		return fmt.Errorf("autoblog: admin password is required")
	}
	if a.Config.Admin.SessionSecret == "" {
		return fmt.Errorf("autoblog: session secret is required")
	}
	if err := a.Init(ctx); err != nil {
		return err
	}
	if a.routed {
		return nil
	}
	a.setupMiddleware()
	a.setupRoutes()
	for _, fn := range a.customRoutes {
		fn(a)
	}
	a.routed = true
	return nil
}

// Start initializes the app and serves HTTP until the server is shut down.
func (a *App) Start(ctx context.Context) error {
	if err := a.Setup(ctx); err != nil {
		return err
	}
	log.Info().Str("addr", a.Config.Server.Addr).Str("site", a.Config.Site.URL).Msg("Server starting")
	if err := a.Echo.Start(a.Config.Server.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Generate runs the pipeline once and refreshes the public document cache.
func (a *App) Generate(ctx context.Context, req RunRequest) (RunResult, error) {
	if err := a.Init(ctx); err != nil {
		return RunResult{}, err
	}
	res, err := a.Pipeline.Run(ctx, req)
	if err != nil {
		return RunResult{}, err
	}
	a.Cache.Invalidate()
	return res, nil
}

func (a *App) setupRoutes() {
	e := a.Echo

	if fs, ok := a.objects.(*storage.Filesystem); ok {
		e.Static(strings.TrimRight(a.mediaPrefix(), "/"), fs.BasePath())
	}

	// Public routes
	e.GET("/sitemap.xml", a.handleSitemap)
	e.GET("/feed.xml", a.handleFeed)
	e.GET("/api/documents/", a.handleDocuments)
	e.GET("/api/documents/:slug/", a.handleDocument)

	// Admin routes
	e.GET("/admin/", a.handleAdmin)
	e.POST("/admin/login/", a.handleAdminLogin)
	e.POST("/admin/logout/", handleAdminLogout)
	e.POST("/admin/autoblog/", a.handleAutoblog, requireAdmin)
	e.GET("/admin/documents/", a.handleAdminDocuments, requireAdmin)
	e.GET("/admin/documents/:slug/", a.handleAdminDocument, requireAdmin)
}

// Close cleans up resources. Call this when the app is shutting down.
func (a *App) Close() error {
	if a.loginLimiter != nil {
		a.loginLimiter.Close()
	}
	if a.runLimiter != nil {
		a.runLimiter.Close()
	}
	if a.Store != nil && a.ownsStore {
		return a.Store.Close()
	}
	return nil
}

func newObjectStore(ctx context.Context, cfg StorageConfig) (storage.ObjectStore, error) {
	switch strings.ToLower(cfg.Backend) {
	case "filesystem", "":
		return storage.NewFilesystem(cfg.Path, cfg.PublicURL)
	case "s3":
		if cfg.Region == "" {
			return nil, fmt.Errorf("s3 storage needs a region")
		}
		return storage.NewS3(ctx, cfg.Region, cfg.PublicURL)
	}
	return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
}

func (a *App) newAggregator(gem *gemini.Client) *sources.Aggregator {
	cfg := a.Config.Sources
	vision := sources.VisionSource{Instruction: a.Config.Generation.VisionInstruction}
	if gem != nil {
		vision.Analyzer = gem
	}
	return sources.NewAggregator(
		sources.AggregatorOptions{Timeout: cfg.Timeout, Sequential: cfg.Sequential},
		sources.FactsSource{Facts: cfg.Facts},
		vision,
		sources.SiteProfileSource{URL: cfg.WebsiteURL},
		sources.SEOSource{Endpoint: cfg.SearchEndpoint, Region: cfg.Facts.Region, City: cfg.Facts.City},
		sources.ReviewsSource{Store: a.Store, Limit: cfg.ReviewLimit},
		sources.KnowledgeSource{Base: a.Store, Limit: cfg.KnowledgeLimit},
	)
}

// newGenerator builds the session path on the Assistants API when an
// assistant id is configured, and the stateless fallback on the configured
// backend.
func newGenerator(cfg GenerationConfig, gem *gemini.Client, locale parse.Locale) (*generation.Orchestrator, error) {
	var svc generation.Service
	var fallback generation.Completer
	if cfg.OpenAIKey != "" {
		client := assistant.New(cfg.OpenAIKey, cfg.OpenAIBaseURL, cfg.Model)
		if cfg.AssistantID != "" {
			svc = client
		}
		fallback = client
	}
	if gem != nil && (cfg.Fallback == "gemini" || fallback == nil) {
		fallback = gem
	}
	if svc == nil && fallback == nil {
		return nil, errors.New("autoblog: no generation backend configured (set generation.openai_key or generation.gemini_key)")
	}
	orch, err := generation.NewOrchestrator(svc, fallback, generation.Options{
		PersonaID:    cfg.AssistantID,
		PollInterval: cfg.PollInterval,
		MaxPolls:     cfg.MaxPolls,
		ImageLine:    locale.ImageLine,
	})
	if err != nil {
		return nil, fmt.Errorf("autoblog: init generation: %w", err)
	}
	return orch, nil
}
