package sources

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// DefaultFallbacks are used for every section a source could not fill.
var DefaultFallbacks = map[Name]string{
	BusinessFacts: "[businessFacts unavailable] Professionelles Fotostudio mit Erfahrung in Familien-, Baby-, Paar- und Porträtfotografie.",
	ImageAnalysis: "[imageAnalysis unavailable] Professionelle Fotosession im Studio oder an einer ausgewählten Location: natürliche Posen, harmonisches Licht, authentische Momente und eine entspannte Atmosphäre.",
	SiteProfile:   "[siteProfile unavailable] Keine Informationen von der Website verfügbar. Verwende einen warmen, persönlichen und professionellen Ton.",
	SEOIntel:      "[seoIntel unavailable] Keine aktuellen Suchdaten. Nutze naheliegende Suchbegriffe rund um Fotografie, Fotoshooting und die Region.",
	Reviews:       "[reviews unavailable] Keine Kundenbewertungen verfügbar. Erfinde keine Zitate.",
	KnowledgeBase: "[knowledgeBase unavailable] Keine zusätzlichen Wissenseinträge verfügbar.",
}

// AggregatorOptions tunes the aggregator.
type AggregatorOptions struct {
	// Timeout bounds each source individually.
	Timeout time.Duration
	// Sequential fetches sources one after another instead of concurrently.
	Sequential bool
	// Fallbacks overrides entries of DefaultFallbacks.
	Fallbacks map[Name]string
}

// Aggregator fans out to all configured sources and assembles the prompt.
type Aggregator struct {
	sources   map[Name]Source
	fallbacks map[Name]string
	opts      AggregatorOptions
}

// NewAggregator returns an Aggregator over srcs. A later source with the
// same name replaces an earlier one.
func NewAggregator(opts AggregatorOptions, srcs ...Source) *Aggregator {
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	a := &Aggregator{
		sources:   make(map[Name]Source, len(srcs)),
		fallbacks: make(map[Name]string, len(DefaultFallbacks)),
		opts:      opts,
	}
	for _, s := range srcs {
		if s != nil {
			a.sources[s.Name()] = s
		}
	}
	for n, text := range DefaultFallbacks {
		a.fallbacks[n] = text
	}
	for n, text := range opts.Fallbacks {
		if strings.TrimSpace(text) != "" {
			a.fallbacks[n] = text
		}
	}
	return a
}

// Aggregate fetches every section. It never fails: each missing section is
// replaced by its fallback and recorded in Bundle.Degraded.
func (a *Aggregator) Aggregate(ctx context.Context, q Query) Bundle {
	b := Bundle{
		Sections: make(map[Name]string, len(Order)),
		Degraded: make(map[Name]error),
		Guidance: q.Guidance,
	}
	var mu sync.Mutex
	record := func(n Name, text string, err error) {
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			b.Degraded[n] = err
			b.Sections[n] = a.fallbacks[n]
			log.Warn().Err(err).Str("source", string(n)).Msg("Context source degraded")
			return
		}
		b.Sections[n] = text
	}

	if a.opts.Sequential {
		for _, n := range Order {
			text, err := a.fetch(ctx, n, q)
			record(n, text, err)
		}
	} else {
		g, gctx := errgroup.WithContext(ctx)
		for _, n := range Order {
			g.Go(func() error {
				text, err := a.fetch(gctx, n, q)
				record(n, text, err)
				return nil
			})
		}
		_ = g.Wait()
	}

	b.Prompt = a.assemble(b)
	log.Debug().
		Int("degraded", len(b.Degraded)).
		Int("prompt_chars", len(b.Prompt)).
		Msg("Context aggregated")
	return b
}

func (a *Aggregator) fetch(ctx context.Context, n Name, q Query) (text string, err error) {
	src, ok := a.sources[n]
	if !ok {
		return "", ErrNotConfigured
	}
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("source panicked: %v", r)
		}
	}()
	ctx, cancel := context.WithTimeout(ctx, a.opts.Timeout)
	defer cancel()

	text, err = src.Fetch(ctx, q)
	if err != nil {
		return "", err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrNoResults
	}
	return text, nil
}

func (a *Aggregator) assemble(b Bundle) string {
	var sb strings.Builder
	for _, n := range Order {
		writeSection(&sb, labels[n], b.Sections[n])
	}
	guidance := b.Guidance
	if guidance == "" {
		guidance = "Keine besonderen Vorgaben."
	}
	writeSection(&sb, "USER GUIDANCE", guidance)
	return strings.TrimSpace(sb.String())
}

func writeSection(sb *strings.Builder, label, text string) {
	sb.WriteString("=== ")
	sb.WriteString(label)
	sb.WriteString(" ===\n")
	sb.WriteString(strings.TrimSpace(text))
	sb.WriteString("\n\n")
}
