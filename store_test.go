package autoblog

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/eringen/autoblog/blog"
	"github.com/eringen/autoblog/sources"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "data", "autoblog.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testDocument(slug string, pub blog.Publication, created time.Time) blog.Document {
	return blog.Document{
		ParsedDocument: blog.ParsedDocument{
			Title:            "Titel " + slug,
			SEOTitle:         "SEO " + slug,
			Slug:             slug,
			MetaDescription:  "Beschreibung für " + slug,
			Excerpt:          "Auszug",
			Tags:             []string{"Familie", "Herbst"},
			Outline:          []string{"Ankommen", "Spielen"},
			KeyTakeaways:     []string{"Zeit nehmen"},
			FeaturedImage:    "/media/autoblog/a.jpg",
			ContentHTML:      "<h2>Ankommen</h2><p>Text</p>",
			FormatConfidence: blog.ConfidenceHigh,
		},
		Publication: pub,
		CreatedAt:   created,
	}
}

func TestStoreCreateAndGetDocument(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	published := fixedNow.Add(-time.Hour)
	in := testDocument("familie-im-park", blog.Publication{State: blog.StatePublished, PublishedAt: &published}, fixedNow.Add(500*time.Millisecond))

	created, err := s.CreateDocument(ctx, in)
	if err != nil {
		t.Fatalf("CreateDocument: %v", err)
	}
	if created.ID == 0 {
		t.Error("ID not set")
	}
	if !created.CreatedAt.Equal(fixedNow) {
		t.Errorf("CreatedAt = %v, want truncated %v", created.CreatedAt, fixedNow)
	}

	got, err := s.GetDocument(ctx, "familie-im-park")
	if err != nil {
		t.Fatalf("GetDocument: %v", err)
	}
	if got.ID != created.ID || got.Title != in.Title || got.ContentHTML != in.ContentHTML {
		t.Errorf("GetDocument = %+v", got)
	}
	if !reflect.DeepEqual(got.Tags, in.Tags) || !reflect.DeepEqual(got.Outline, in.Outline) || !reflect.DeepEqual(got.KeyTakeaways, in.KeyTakeaways) {
		t.Errorf("lists = %v %v %v", got.Tags, got.Outline, got.KeyTakeaways)
	}
	if got.ReviewSnippets != nil {
		t.Errorf("ReviewSnippets = %v, want nil", got.ReviewSnippets)
	}
	if got.State != blog.StatePublished || got.PublishedAt == nil || !got.PublishedAt.Equal(published) || got.ScheduledFor != nil {
		t.Errorf("publication = %+v", got.Publication)
	}

	if _, err := s.GetDocument(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetDocument(missing) err = %v, want ErrNotFound", err)
	}
}

func TestStoreRejectsDuplicateSlug(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	draft := blog.Publication{State: blog.StateDraft}
	if _, err := s.CreateDocument(ctx, testDocument("babybauch", draft, fixedNow)); err != nil {
		t.Fatalf("first CreateDocument: %v", err)
	}
	_, err := s.CreateDocument(ctx, testDocument("babybauch", draft, fixedNow))
	if !errors.Is(err, ErrSlugTaken) {
		t.Fatalf("err = %v, want ErrSlugTaken", err)
	}

	slugs, err := s.ListExistingSlugs(ctx)
	if err != nil {
		t.Fatalf("ListExistingSlugs: %v", err)
	}
	if len(slugs) != 1 || slugs[0] != "babybauch" {
		t.Errorf("slugs = %v", slugs)
	}
}

func TestStoreListLive(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	older := fixedNow.Add(-48 * time.Hour)
	newer := fixedNow.Add(-time.Hour)
	due := fixedNow.Add(-2 * time.Hour)
	later := fixedNow.Add(24 * time.Hour)

	for _, d := range []blog.Document{
		testDocument("published-older", blog.Publication{State: blog.StatePublished, PublishedAt: &older}, older),
		testDocument("draft", blog.Publication{State: blog.StateDraft}, fixedNow),
		testDocument("scheduled-due", blog.Publication{State: blog.StateScheduled, ScheduledFor: &due}, older),
		testDocument("scheduled-later", blog.Publication{State: blog.StateScheduled, ScheduledFor: &later}, fixedNow),
		testDocument("published-newer", blog.Publication{State: blog.StatePublished, PublishedAt: &newer}, newer),
	} {
		if _, err := s.CreateDocument(ctx, d); err != nil {
			t.Fatalf("CreateDocument(%s): %v", d.Slug, err)
		}
	}

	live, err := s.ListLive(ctx, fixedNow)
	if err != nil {
		t.Fatalf("ListLive: %v", err)
	}
	var got []string
	for _, d := range live {
		got = append(got, d.Slug)
	}
	want := []string{"published-newer", "scheduled-due", "published-older"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ListLive = %v, want %v", got, want)
	}

	live, err = s.ListLive(ctx, later)
	if err != nil {
		t.Fatalf("ListLive(later): %v", err)
	}
	if len(live) != 4 {
		t.Fatalf("ListLive(later) returned %d documents, want 4", len(live))
	}
	if live[0].Slug != "scheduled-later" {
		t.Errorf("ListLive(later) first = %q, want scheduled-later", live[0].Slug)
	}

	all, err := s.ListDocuments(ctx)
	if err != nil {
		t.Fatalf("ListDocuments: %v", err)
	}
	if len(all) != 5 {
		t.Errorf("ListDocuments returned %d documents, want 5", len(all))
	}
}

func TestStoreReviews(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	for _, r := range []struct {
		review   sources.Review
		approved bool
	}{
		{sources.Review{Author: "Anna", Rating: 5, Body: "Wunderbare Bilder"}, true},
		{sources.Review{Author: "Spam", Rating: 1, Body: "Billig kaufen"}, false},
		{sources.Review{Author: "Jonas", Rating: 4, Body: " Sehr entspannt "}, true},
		{sources.Review{Author: "Mara", Rating: 5, Body: "Gerne wieder"}, true},
	} {
		if err := s.SaveReview(ctx, r.review, r.approved); err != nil {
			t.Fatalf("SaveReview: %v", err)
		}
	}

	reviews, err := s.ListReviews(ctx, 2)
	if err != nil {
		t.Fatalf("ListReviews: %v", err)
	}
	if len(reviews) != 2 {
		t.Fatalf("ListReviews returned %d reviews, want 2", len(reviews))
	}
	if reviews[0].Author != "Mara" || reviews[1].Author != "Jonas" || reviews[1].Body != "Sehr entspannt" {
		t.Errorf("ListReviews = %+v", reviews)
	}

	all, err := s.ListReviews(ctx, 10)
	if err != nil {
		t.Fatalf("ListReviews: %v", err)
	}
	for _, r := range all {
		if r.Author == "Spam" {
			t.Error("unapproved review listed")
		}
	}
}

func TestStoreSearchKnowledge(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	entries := []struct {
		entry sources.KnowledgeEntry
		tags  []string
	}{
		{sources.KnowledgeEntry{Title: "Ablauf Babyshooting", Body: "Wir fotografieren Babys in den ersten Lebenswochen."}, []string{"baby"}},
		{sources.KnowledgeEntry{Title: "Familienshooting", Body: "Familien fotografieren wir draußen im Park."}, []string{"familie", "outdoor"}},
		{sources.KnowledgeEntry{Title: "Preise", Body: "Ein Familienshooting dauert 90 Minuten."}, nil},
	}
	for _, e := range entries {
		if err := s.SaveKnowledge(ctx, e.entry, e.tags); err != nil {
			t.Fatalf("SaveKnowledge: %v", err)
		}
	}

	got, err := s.SearchKnowledge(ctx, []string{"Familienshooting"}, 5)
	if err != nil {
		t.Fatalf("SearchKnowledge: %v", err)
	}
	if len(got) != 2 || got[0].Title != "Familienshooting" || got[1].Title != "Preise" {
		t.Errorf("SearchKnowledge = %+v", got)
	}

	got, err = s.SearchKnowledge(ctx, []string{"familie", "baby"}, 1)
	if err != nil {
		t.Fatalf("SearchKnowledge: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("limit ignored: %d entries", len(got))
	}

	got, err = s.SearchKnowledge(ctx, nil, 5)
	if err != nil || got != nil {
		t.Errorf("SearchKnowledge(nil) = %v, %v", got, err)
	}
	got, err = s.SearchKnowledge(ctx, []string{"hochzeit"}, 5)
	if err != nil || len(got) != 0 {
		t.Errorf("SearchKnowledge(hochzeit) = %v, %v", got, err)
	}
}

func TestJoinAndParseTags(t *testing.T) {
	tests := []struct {
		tags   []string
		joined string
		parsed []string
	}{
		{nil, "", nil},
		{[]string{" ", ""}, "", nil},
		{[]string{"Familie"}, ",Familie,", []string{"Familie"}},
		{[]string{"Familie", " Herbst ", "a,b"}, ",Familie,Herbst,a b,", []string{"Familie", "Herbst", "a b"}},
	}
	for _, tt := range tests {
		joined := JoinTags(tt.tags)
		if joined != tt.joined {
			t.Errorf("JoinTags(%q) = %q, want %q", tt.tags, joined, tt.joined)
		}
		if got := ParseTags(joined); !reflect.DeepEqual(got, tt.parsed) {
			t.Errorf("ParseTags(%q) = %q, want %q", joined, got, tt.parsed)
		}
	}
}

func TestDocumentCache(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := fixedNow
	cache := NewDocumentCache(s, 5*time.Minute, func() time.Time { return now })

	docs, err := cache.ListDocuments(ctx, "")
	if err != nil {
		t.Fatalf("ListDocuments: %v", err)
	}
	if docs == nil || len(docs) != 0 {
		t.Fatalf("empty cache = %v, want empty non-nil slice", docs)
	}

	soon := fixedNow.Add(time.Minute)
	published := fixedNow.Add(-time.Minute)
	if _, err := s.CreateDocument(ctx, testDocument("scheduled", blog.Publication{State: blog.StateScheduled, ScheduledFor: &soon}, fixedNow)); err != nil {
		t.Fatal(err)
	}
	if _, err := s.CreateDocument(ctx, testDocument("published", blog.Publication{State: blog.StatePublished, PublishedAt: &published}, fixedNow)); err != nil {
		t.Fatal(err)
	}

	if docs, _ := cache.ListDocuments(ctx, ""); len(docs) != 0 {
		t.Errorf("cache reloaded before TTL: %d documents", len(docs))
	}

	cache.Invalidate()
	if _, err := cache.GetDocument(ctx, "published"); err != nil {
		t.Errorf("GetDocument(published) after Invalidate: %v", err)
	}
	if _, err := cache.GetDocument(ctx, "scheduled"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetDocument(scheduled) err = %v, want ErrNotFound before its time", err)
	}

	now = fixedNow.Add(6 * time.Minute)
	if _, err := cache.GetDocument(ctx, "scheduled"); err != nil {
		t.Errorf("GetDocument(scheduled) after TTL: %v", err)
	}

	tagged, err := cache.ListDocuments(ctx, " HERBST ")
	if err != nil {
		t.Fatalf("ListDocuments(tag): %v", err)
	}
	if len(tagged) != 2 {
		t.Errorf("tag filter returned %d documents, want 2", len(tagged))
	}
	if tagged, _ := cache.ListDocuments(ctx, "hochzeit"); len(tagged) != 0 {
		t.Errorf("unknown tag returned %d documents", len(tagged))
	}
}
