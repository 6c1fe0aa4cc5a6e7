package autoblog

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/eringen/autoblog/blog"
	"github.com/eringen/autoblog/generation"
	"github.com/eringen/autoblog/ingest"
	"github.com/eringen/autoblog/parse"
	"github.com/eringen/autoblog/sources"
)

const markedResponse = `**Title:** Familienfotografie im Herbstpark: Echte Momente
**SEO Title:** Familienfotografie im Park | Studio Licht
**Slug:** familienfotografie-herbstpark
**Meta Description:** Natürliche Familienfotos im herbstlichen Park: wie unsere Familienfotografie Session echte Nähe und Freude einfängt.
**Excerpt:** Ein goldener Herbstnachmittag, eine lachende Familie und viele kleine Momente, die wir für euch festgehalten haben.
**Tags:** Familienfotografie, Familienshooting, Herbst
**Blog Article:**
## Ankommen im Park

Als die Familie am späten Nachmittag im Park ankam, stand die Sonne schon tief und tauchte die Bäume in warmes Licht. Wir haben uns Zeit genommen, damit sich alle wohlfühlen.

## Spiel und Nähe

Die Kinder sind durch das Laub gesprungen und die Eltern haben mitgelacht. Genau diese Nähe wollten wir in den Bildern zeigen.

## Erinnerungen für später

Am Ende des Nachmittags hatten wir viele Bilder, die diese Familie noch in vielen Jahren an den Herbsttag im Park erinnern werden.`

var fixedNow = time.Date(2026, 10, 19, 9, 30, 0, 0, time.UTC)

type memObjects struct {
	calls int
}

func (m *memObjects) Store(ctx context.Context, bucket, filename string, data []byte) (string, error) {
	m.calls++
	return "https://cdn.example.com/" + bucket + "/" + filename, nil
}

type stubSource struct {
	name  sources.Name
	text  string
	err   error
	calls int
}

func (s *stubSource) Name() sources.Name { return s.name }

func (s *stubSource) Fetch(ctx context.Context, q sources.Query) (string, error) {
	s.calls++
	return s.text, s.err
}

type fakeGenerator struct {
	text  string
	err   error
	calls int
	last  generation.Request
}

func (f *fakeGenerator) Generate(ctx context.Context, req generation.Request) (generation.Result, error) {
	f.calls++
	f.last = req
	if f.err != nil {
		return generation.Result{}, f.err
	}
	return generation.Result{Text: f.text, Path: generation.PathSession}, nil
}

// fakeDocs is a DocumentStore whose first takenFor inserts lose a slug race.
type fakeDocs struct {
	slugs     []string
	listErr   error
	takenFor  int
	creates   int
	lists     int
	documents []blog.Document
}

func (f *fakeDocs) ListExistingSlugs(ctx context.Context) ([]string, error) {
	f.lists++
	return f.slugs, f.listErr
}

func (f *fakeDocs) CreateDocument(ctx context.Context, doc blog.Document) (blog.Document, error) {
	f.creates++
	if f.creates <= f.takenFor {
		f.slugs = append(f.slugs, doc.Slug)
		return blog.Document{}, fmt.Errorf("%w: %s", ErrSlugTaken, doc.Slug)
	}
	doc.ID = int64(len(f.documents) + 1)
	f.documents = append(f.documents, doc)
	f.slugs = append(f.slugs, doc.Slug)
	return doc, nil
}

func pngBytes(t *testing.T, w, h int, shade uint8) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{shade, uint8(x), uint8(y), 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func uploads(t *testing.T, n int) []ingest.Upload {
	t.Helper()
	out := make([]ingest.Upload, n)
	for i := range out {
		out[i] = ingest.Upload{Filename: fmt.Sprintf("IMG_%04d.png", i+1), Data: pngBytes(t, 40, 30, uint8(40*i))}
	}
	return out
}

type pipelineFixture struct {
	objects *memObjects
	sources []*stubSource
	gen     *fakeGenerator
	docs    DocumentStore
}

func newFixture(text string) *pipelineFixture {
	return &pipelineFixture{
		objects: &memObjects{},
		sources: []*stubSource{
			{name: sources.BusinessFacts, text: "Studio: Studio Licht\nOrt: Leipzig"},
			{name: sources.ImageAnalysis, text: "Session: Familienfotografie\nEine Familie spielt im herbstlichen Park."},
			{name: sources.SiteProfile, text: "Titel: Studio Licht"},
			{name: sources.SEOIntel, text: "Keywords: familienfotografie leipzig"},
			{name: sources.Reviews, text: "★★★★★ \"Wunderbar\" (Anna)"},
			{name: sources.KnowledgeBase, text: "Familienshooting: 90 Minuten im Freien"},
		},
		gen:  &fakeGenerator{text: text},
		docs: &fakeDocs{},
	}
}

func (f *pipelineFixture) pipeline() *Pipeline {
	srcs := make([]sources.Source, len(f.sources))
	for i, s := range f.sources {
		srcs[i] = s
	}
	agg := sources.NewAggregator(sources.AggregatorOptions{Timeout: time.Second}, srcs...)
	ing := ingest.New(f.objects, ingest.Options{MaxImages: 3})
	return NewPipeline(ing, agg, f.gen, f.docs, parse.New(parse.Options{}), PipelineOptions{
		Now: func() time.Time { return fixedNow },
	})
}

func (f *pipelineFixture) sourceCalls() int {
	n := 0
	for _, s := range f.sources {
		n += s.calls
	}
	return n
}

var reImgSrc = regexp.MustCompile(`<img src="([^"]+)"`)

func TestPipelineMarkedResponse(t *testing.T) {
	f := newFixture(markedResponse)
	res, err := f.pipeline().Run(context.Background(), RunRequest{
		Uploads:  uploads(t, 3),
		Guidance: "Familienfotografie Session",
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	doc := res.Document

	if doc.FormatConfidence != blog.ConfidenceHigh {
		t.Errorf("FormatConfidence = %q, want high", doc.FormatConfidence)
	}
	if doc.Title == "" || doc.MetaDescription == "" {
		t.Errorf("empty title or meta description: %+v", doc.ParsedDocument)
	}
	if doc.Slug != "familienfotografie-herbstpark" || !blog.ValidSlug(doc.Slug) {
		t.Errorf("Slug = %q", doc.Slug)
	}
	if doc.State != blog.StateDraft || doc.PublishedAt != nil || doc.ScheduledFor != nil {
		t.Errorf("publication = %+v, want plain draft", doc.Publication)
	}

	srcs := reImgSrc.FindAllStringSubmatch(doc.ContentHTML, -1)
	if len(srcs) != 3 {
		t.Fatalf("embedded %d images, want 3:\n%s", len(srcs), doc.ContentHTML)
	}
	seen := map[string]bool{}
	for _, m := range srcs {
		if seen[m[1]] {
			t.Errorf("image %s embedded twice", m[1])
		}
		seen[m[1]] = true
	}
	if doc.FeaturedImage != srcs[0][1] && !seen[doc.FeaturedImage] {
		t.Errorf("FeaturedImage %q is not one of the uploads", doc.FeaturedImage)
	}
	if !strings.Contains(doc.ContentHTML, "Familienfotografie: Bild 1 von 3") {
		t.Errorf("alt text does not use the session label:\n%s", doc.ContentHTML)
	}
	if len(doc.ContentHTML) <= 200 {
		t.Errorf("ContentHTML too short: %d chars", len(doc.ContentHTML))
	}
	if res.Images != 3 || res.Path != generation.PathSession || res.Strategy != parse.StrategyMarkers {
		t.Errorf("result = %+v", res)
	}

	prompt := f.gen.last.Prompt
	for _, want := range []string{"**Title:**", "=== IMAGE ANALYSIS ===", "Familienfotografie Session"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
	if len(f.gen.last.ImageURLs) != 3 {
		t.Errorf("ImageURLs = %v", f.gen.last.ImageURLs)
	}
}

func TestPipelineRejectsTooManyImagesBeforeAnyCall(t *testing.T) {
	f := newFixture(markedResponse)
	docs := f.docs.(*fakeDocs)
	_, err := f.pipeline().Run(context.Background(), RunRequest{Uploads: uploads(t, 5)})

	var valErr *blog.ValidationError
	if !errors.As(err, &valErr) {
		t.Fatalf("err = %v, want ValidationError", err)
	}
	if valErr.Field != "images" {
		t.Errorf("Field = %q, want images", valErr.Field)
	}
	if f.objects.calls != 0 || f.sourceCalls() != 0 || f.gen.calls != 0 || docs.lists != 0 || docs.creates != 0 {
		t.Errorf("external calls made: objects=%d sources=%d generator=%d lists=%d creates=%d",
			f.objects.calls, f.sourceCalls(), f.gen.calls, docs.lists, docs.creates)
	}
}

func TestPipelineRejectsPastSchedule(t *testing.T) {
	f := newFixture(markedResponse)
	_, err := f.pipeline().Run(context.Background(), RunRequest{
		Uploads:      uploads(t, 1),
		Mode:         ModeSchedule,
		ScheduledFor: fixedNow.Add(-time.Hour),
	})
	var valErr *blog.ValidationError
	if !errors.As(err, &valErr) || valErr.Field != "scheduled_for" {
		t.Fatalf("err = %v, want scheduled_for ValidationError", err)
	}
	if f.objects.calls != 0 || f.gen.calls != 0 {
		t.Errorf("external calls made: objects=%d generator=%d", f.objects.calls, f.gen.calls)
	}
}

func TestPipelineSourceFailureDoesNotChangeOutcome(t *testing.T) {
	for i := range newFixture("").sources {
		f := newFixture(markedResponse)
		failing := f.sources[i]
		failing.text, failing.err = "", errors.New("upstream down")

		res, err := f.pipeline().Run(context.Background(), RunRequest{Uploads: uploads(t, 2)})
		if err != nil {
			t.Errorf("%s failing: Run: %v", failing.name, err)
			continue
		}
		if len(res.Degraded) != 1 || res.Degraded[0] != failing.name {
			t.Errorf("%s failing: Degraded = %v", failing.name, res.Degraded)
		}
		if !strings.Contains(f.gen.last.Prompt, "["+string(failing.name)+" unavailable]") {
			t.Errorf("%s failing: prompt lacks fallback text", failing.name)
		}
	}
}

func TestPipelineLogsDegradedSourceOnce(t *testing.T) {
	var buf bytes.Buffer
	prev := log.Logger
	log.Logger = zerolog.New(&buf)
	t.Cleanup(func() { log.Logger = prev })

	f := newFixture(markedResponse)
	f.sources[3].text, f.sources[3].err = "", errors.New("upstream down")
	if _, err := f.pipeline().Run(context.Background(), RunRequest{}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if n := strings.Count(buf.String(), "Context source degraded"); n != 1 {
		t.Errorf("degraded source logged %d times, want 1:\n%s", n, buf.String())
	}
}

type timeoutService struct{ polls int }

func (s *timeoutService) CreateSession(ctx context.Context) (string, error) { return "thread_1", nil }

func (s *timeoutService) SendMessage(ctx context.Context, sessionID, text string) error { return nil }

func (s *timeoutService) StartRun(ctx context.Context, sessionID, personaID string) (string, error) {
	return "run_1", nil
}

func (s *timeoutService) GetRunStatus(ctx context.Context, sessionID, runID string) (generation.RunStatus, error) {
	s.polls++
	return generation.RunStatus{State: generation.RunInProgress}, nil
}

func (s *timeoutService) ListMessages(ctx context.Context, sessionID string) ([]generation.Message, error) {
	return nil, nil
}

type completerFunc func(ctx context.Context, prompt string) (string, error)

func (f completerFunc) Complete(ctx context.Context, prompt string) (string, error) { return f(ctx, prompt) }

func noSleep(ctx context.Context, d time.Duration) error { return nil }

func TestPipelineFallsBackWhenSessionTimesOut(t *testing.T) {
	svc := &timeoutService{}
	fallbackCalls := 0
	orch, err := generation.NewOrchestrator(svc, completerFunc(func(ctx context.Context, prompt string) (string, error) {
		fallbackCalls++
		return markedResponse, nil
	}), generation.Options{PersonaID: "asst_studio", MaxPolls: 30, Sleep: noSleep})
	if err != nil {
		t.Fatalf("NewOrchestrator: %v", err)
	}

	f := newFixture("")
	p := f.pipeline()
	p.generator = orch
	res, err := p.Run(context.Background(), RunRequest{Uploads: uploads(t, 1)})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if svc.polls != 30 {
		t.Errorf("polls = %d, want 30", svc.polls)
	}
	if fallbackCalls != 1 || res.Path != generation.PathCompletion {
		t.Errorf("fallback calls = %d, path = %q", fallbackCalls, res.Path)
	}
	if res.Document.Title == "" {
		t.Errorf("no document produced")
	}
}

func TestPipelineGenerationUnavailable(t *testing.T) {
	orch, err := generation.NewOrchestrator(&timeoutService{}, completerFunc(func(ctx context.Context, prompt string) (string, error) {
		return "", errors.New("quota exceeded")
	}), generation.Options{PersonaID: "asst_studio", MaxPolls: 3, Sleep: noSleep})
	if err != nil {
		t.Fatalf("NewOrchestrator: %v", err)
	}
	f := newFixture("")
	docs := f.docs.(*fakeDocs)
	p := f.pipeline()
	p.generator = orch

	_, err = p.Run(context.Background(), RunRequest{Uploads: uploads(t, 1)})
	if !errors.Is(err, generation.ErrGenerationUnavailable) {
		t.Fatalf("err = %v, want ErrGenerationUnavailable", err)
	}
	if docs.creates != 0 {
		t.Errorf("document created despite failed generation")
	}
}

func TestPipelineSanitizesGeneratorOutput(t *testing.T) {
	raw := `**Title:** Babyfotografie mit viel Ruhe und Zeit
**Blog Article:**
H2: Ankommen im Studio
Wir nehmen uns viel Zeit, damit sich Eltern und Baby wohlfühlen. <script>alert(1)</script> Das Studio ist warm und ruhig.
### H3: Details
<p onclick="steal()">Kleine Hände, kleine Füße und ganz viel Liebe in jedem einzelnen Bild.</p>
[Mehr erfahren](javascript:alert(1))
#### Fazit ####`
	f := newFixture(raw)
	res, err := f.pipeline().Run(context.Background(), RunRequest{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	html := strings.ToLower(res.Document.ContentHTML)
	for _, bad := range []string{"<script", "onclick=", "javascript:", "h1:", "h2:", "###"} {
		if strings.Contains(html, bad) {
			t.Errorf("ContentHTML contains %q:\n%s", bad, res.Document.ContentHTML)
		}
	}
	if !strings.Contains(html, "/buchen/") {
		t.Errorf("ContentHTML lacks the call to action:\n%s", res.Document.ContentHTML)
	}
}

func TestPipelineSanitizesImageAnalysis(t *testing.T) {
	f := newFixture(markedResponse)
	f.sources[1].text = "Session: Familie onclick=alert(3)\nKinder klicken javajavascript:script:alert(1) onclick=alert(1) im Studio"
	res, err := f.pipeline().Run(context.Background(), RunRequest{Uploads: uploads(t, 2)})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Images != 2 {
		t.Fatalf("Images = %d, want 2", res.Images)
	}
	html := strings.ToLower(res.Document.ContentHTML)
	for _, bad := range []string{"javascript:", "onclick="} {
		if strings.Contains(html, bad) {
			t.Errorf("ContentHTML contains %q: %s", bad, res.Document.ContentHTML)
		}
	}
	if !strings.Contains(res.Document.ContentHTML, "Kinder klicken") {
		t.Errorf("alt text lost its description: %s", res.Document.ContentHTML)
	}
}

func TestPipelineRetriesLostSlugRace(t *testing.T) {
	f := newFixture(markedResponse)
	docs := &fakeDocs{takenFor: 1}
	f.docs = docs
	res, err := f.pipeline().Run(context.Background(), RunRequest{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Document.Slug != "familienfotografie-herbstpark-2" {
		t.Errorf("Slug = %q, want familienfotografie-herbstpark-2", res.Document.Slug)
	}
	if docs.creates != 2 {
		t.Errorf("creates = %d, want 2", docs.creates)
	}
}

func TestPipelineGivesUpAfterRepeatedSlugRaces(t *testing.T) {
	f := newFixture(markedResponse)
	f.docs = &fakeDocs{takenFor: maxSlugAttempts}
	_, err := f.pipeline().Run(context.Background(), RunRequest{})

	var perErr *blog.PersistenceError
	if !errors.As(err, &perErr) || !errors.Is(err, ErrSlugTaken) {
		t.Fatalf("err = %v, want PersistenceError wrapping ErrSlugTaken", err)
	}
}

func TestPipelineSlugRegistryFailure(t *testing.T) {
	f := newFixture(markedResponse)
	f.docs = &fakeDocs{listErr: errors.New("database is locked")}
	_, err := f.pipeline().Run(context.Background(), RunRequest{})

	var perErr *blog.PersistenceError
	if !errors.As(err, &perErr) || perErr.Op != "list slugs" {
		t.Fatalf("err = %v, want list slugs PersistenceError", err)
	}
}

func TestPipelineSameTitleTwiceGetsSuffix(t *testing.T) {
	store, err := NewStore(filepath.Join(t.TempDir(), "autoblog.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	defer store.Close()

	f := newFixture(markedResponse)
	f.docs = store
	p := f.pipeline()

	first, err := p.Run(context.Background(), RunRequest{Mode: ModePublish})
	if err != nil {
		t.Fatalf("first Run: %v", err)
	}
	second, err := p.Run(context.Background(), RunRequest{Mode: ModePublish})
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if first.Document.Slug != "familienfotografie-herbstpark" {
		t.Errorf("first slug = %q", first.Document.Slug)
	}
	if second.Document.Slug != "familienfotografie-herbstpark-2" {
		t.Errorf("second slug = %q, want numeric suffix", second.Document.Slug)
	}
	if second.Document.PublishedAt == nil || !second.Document.PublishedAt.Equal(fixedNow) {
		t.Errorf("PublishedAt = %v, want %v", second.Document.PublishedAt, fixedNow)
	}

	stored, err := store.GetDocument(context.Background(), second.Document.Slug)
	if err != nil {
		t.Fatalf("GetDocument: %v", err)
	}
	if stored.ID != second.Document.ID || stored.ContentHTML != second.Document.ContentHTML {
		t.Errorf("stored document differs from run result")
	}
}
