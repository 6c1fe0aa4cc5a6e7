package autoblog

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/eringen/autoblog/blog"
	"github.com/eringen/autoblog/embedder"
	"github.com/eringen/autoblog/generation"
	"github.com/eringen/autoblog/ingest"
	"github.com/eringen/autoblog/markdown"
	"github.com/eringen/autoblog/parse"
	"github.com/eringen/autoblog/sources"
)

// maxSlugAttempts bounds how often a run re-reads the slug registry after
// losing an insert race.
const maxSlugAttempts = 3

// DefaultInstructions asks the generator for the markers the parser reads.
const DefaultInstructions = `Du schreibst als erfahrenes Fotostudio einen Blogartikel über das beschriebene Fotoshooting.
Schreibe auf Deutsch, warm, persönlich und professionell. Erfinde keine Kundenzitate und keine Preise.
Antworte exakt in diesem Format und ohne weitere Abschnitte:

**Title:** <aussagekräftiger Titel, 40-70 Zeichen>
**SEO Title:** <SEO-Titel mit Hauptkeyword, höchstens 60 Zeichen>
**Slug:** <url-slug-in-kleinbuchstaben>
**Meta Description:** <120-160 Zeichen>
**Excerpt:** <zwei Sätze als Teaser>
**Tags:** <3-6 Schlagwörter, durch Kommas getrennt>
**Outline:**
- <Abschnitt>
**Key Takeaways:**
- <Kernaussage>
**Blog Article:**
<Artikeltext mit Markdown-Überschriften (## und ###), mindestens vier Abschnitte mit je zwei bis drei Absätzen>

Keine Social-Media-Beiträge, keine Hashtag-Listen, keine Checklisten und keine Bildplatzhalter.`

// ImageIngestor validates and stores uploaded images.
type ImageIngestor interface {
	Validate(uploads []ingest.Upload) error
	Ingest(ctx context.Context, uploads []ingest.Upload) ([]blog.UploadedImage, error)
}

// ContextAggregator collects the context sections for a run.
type ContextAggregator interface {
	Aggregate(ctx context.Context, q sources.Query) sources.Bundle
}

// Generator produces article text.
type Generator interface {
	Generate(ctx context.Context, req generation.Request) (generation.Result, error)
}

// DocumentStore is the slug registry and document persistence.
type DocumentStore interface {
	ListExistingSlugs(ctx context.Context) ([]string, error)
	CreateDocument(ctx context.Context, doc blog.Document) (blog.Document, error)
}

// RunRequest is one generation request from a caller.
type RunRequest struct {
	Uploads      []ingest.Upload
	Guidance     string
	Mode         PublishMode
	ScheduledFor time.Time
}

// RunResult is the persisted document and how it was produced.
type RunResult struct {
	Document  blog.Document     `json:"document"`
	Strategy  parse.Strategy    `json:"parse_strategy"`
	Path      generation.Path   `json:"generation_path"`
	Embedding embedder.Strategy `json:"embedding"`
	Degraded  []sources.Name    `json:"-"`
	Images    int               `json:"images"`
}

// PipelineOptions configures the stages after generation.
type PipelineOptions struct {
	Instructions    string
	Format          markdown.Options
	DefaultAlt      string
	AltFormat       string
	ExcludeFeatured bool
	Now             func() time.Time
}

// Pipeline runs one upload-to-document workflow per call. It holds no
// state between runs.
type Pipeline struct {
	ingestor   ImageIngestor
	aggregator ContextAggregator
	generator  Generator
	store      DocumentStore
	parser     *parse.Parser
	opts       PipelineOptions
}

// NewPipeline returns a Pipeline over the given collaborators.
func NewPipeline(ing ImageIngestor, agg ContextAggregator, gen Generator, store DocumentStore, parser *parse.Parser, opts PipelineOptions) *Pipeline {
	if parser == nil {
		parser = parse.New(parse.Options{})
	}
	if strings.TrimSpace(opts.Instructions) == "" {
		opts.Instructions = DefaultInstructions
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Pipeline{ingestor: ing, aggregator: agg, generator: gen, store: store, parser: parser, opts: opts}
}

// Run executes the pipeline. Only *blog.ValidationError,
// generation.ErrGenerationUnavailable and *blog.PersistenceError end a run
// early; every other failure degrades to a fallback.
func (p *Pipeline) Run(ctx context.Context, req RunRequest) (RunResult, error) {
	started := p.opts.Now()
	pub, err := Decide(req.Mode, req.ScheduledFor, started)
	if err != nil {
		return RunResult{}, err
	}
	if err := p.ingestor.Validate(req.Uploads); err != nil {
		return RunResult{}, err
	}

	images, err := p.ingestor.Ingest(ctx, req.Uploads)
	if err != nil {
		var valErr *blog.ValidationError
		var perErr *blog.PersistenceError
		if errors.As(err, &valErr) || errors.As(err, &perErr) {
			return RunResult{}, err
		}
		return RunResult{}, &blog.PersistenceError{Op: "store images", Err: err}
	}

	bundle := p.aggregator.Aggregate(ctx, sources.NewQuery(req.Guidance, images))
	degraded := make([]sources.Name, 0, len(bundle.Degraded))
	for _, n := range sources.Order {
		if _, ok := bundle.Degraded[n]; ok {
			degraded = append(degraded, n)
		}
	}

	urls := make([]string, len(images))
	for i, img := range images {
		urls[i] = img.URL
	}
	gen, err := p.generator.Generate(ctx, generation.Request{
		Prompt:    p.opts.Instructions + "\n\n" + bundle.Prompt,
		ImageURLs: urls,
	})
	if err != nil {
		log.Error().Err(err).Msg("Generation unavailable")
		return RunResult{}, err
	}

	existing, err := p.store.ListExistingSlugs(ctx)
	if err != nil {
		return RunResult{}, &blog.PersistenceError{Op: "list slugs", Err: err}
	}
	parsed := p.parser.Parse(gen.Text, existing)
	doc := parsed.Document
	if len(images) > 0 {
		doc.FeaturedImage = images[0].URL
	}

	formatOpts := p.opts.Format
	formatOpts.Title = doc.Title
	html := markdown.Format(doc.Body, formatOpts)

	analysis := bundle.Section(sources.ImageAnalysis)
	embedded := embedder.Embed(html, images, embedder.NewRegistry(), embedder.Options{
		SessionLabel:    sources.SessionLabel(analysis),
		Analysis:        analysis,
		DefaultAlt:      p.opts.DefaultAlt,
		AltFormat:       p.opts.AltFormat,
		FeaturedImage:   doc.FeaturedImage,
		ExcludeFeatured: p.opts.ExcludeFeatured,
	})
	// Figures carry text from the image analysis.
	doc.ContentHTML = markdown.Sanitize(embedded.HTML)

	saved, err := p.persist(ctx, blog.Document{ParsedDocument: doc, Publication: pub, CreatedAt: started})
	if err != nil {
		return RunResult{}, err
	}

	log.Info().
		Int64("id", saved.ID).
		Str("slug", saved.Slug).
		Str("state", string(saved.State)).
		Str("path", string(gen.Path)).
		Str("strategy", string(parsed.Strategy)).
		Str("confidence", string(saved.FormatConfidence)).
		Int("images", embedded.Inserted).
		Int("degraded", len(degraded)).
		Dur("duration", time.Since(started)).
		Msg("Document created")

	return RunResult{
		Document:  saved,
		Strategy:  parsed.Strategy,
		Path:      gen.Path,
		Embedding: embedded.Strategy,
		Degraded:  degraded,
		Images:    embedded.Inserted,
	}, nil
}

// persist inserts doc, taking the next free slug when a concurrent run won
// the race for it.
func (p *Pipeline) persist(ctx context.Context, doc blog.Document) (blog.Document, error) {
	var err error
	for attempt := 1; attempt <= maxSlugAttempts; attempt++ {
		var saved blog.Document
		saved, err = p.store.CreateDocument(ctx, doc)
		if err == nil {
			return saved, nil
		}
		if !errors.Is(err, ErrSlugTaken) {
			return blog.Document{}, &blog.PersistenceError{Op: "create document", Err: err}
		}
		log.Warn().Str("slug", doc.Slug).Int("attempt", attempt).Msg("Slug taken, retrying")
		existing, lerr := p.store.ListExistingSlugs(ctx)
		if lerr != nil {
			return blog.Document{}, &blog.PersistenceError{Op: "list slugs", Err: lerr}
		}
		doc.Slug = blog.UniqueSlug(doc.Slug, existing)
	}
	return blog.Document{}, &blog.PersistenceError{Op: "create document", Err: err}
}
