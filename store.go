package autoblog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/eringen/autoblog/blog"
	"github.com/eringen/autoblog/sources"
)

// ErrSlugTaken is returned by CreateDocument when another document already
// owns the slug.
var ErrSlugTaken = errors.New("slug already taken")

// Store wraps a SQLite database holding generated documents, customer
// reviews and the knowledge base.
type Store struct {
	db *sql.DB
}

// NewStore opens (or creates) the SQLite database at path, ensures the data
// directory exists, and runs schema migrations.
func NewStore(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// WAL lets the feed handlers read while a run inserts. Writers wait up
	// to five seconds instead of failing with SQLITE_BUSY.
	if _, err := db.Exec(`
		PRAGMA journal_mode=WAL;
		PRAGMA busy_timeout=5000;
		PRAGMA synchronous=NORMAL;
		PRAGMA cache_size=-8000;
		PRAGMA mmap_size=268435456;
	`); err != nil {
		db.Close()
		return nil, err
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)
	s := &Store{db: db}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ensureSchema() error {
	_, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS documents (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    slug TEXT NOT NULL UNIQUE,
    title TEXT NOT NULL,
    seo_title TEXT NOT NULL,
    meta_description TEXT NOT NULL,
    excerpt TEXT NOT NULL,
    tags TEXT NOT NULL,
    outline TEXT NOT NULL DEFAULT '',
    key_takeaways TEXT NOT NULL DEFAULT '',
    review_snippets TEXT NOT NULL DEFAULT '',
    featured_image TEXT NOT NULL DEFAULT '',
    content_html TEXT NOT NULL,
    format_confidence TEXT NOT NULL,
    state TEXT NOT NULL,
    published_at TEXT,
    scheduled_for TEXT,
    created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS documents_state ON documents (state, scheduled_for);
CREATE TABLE IF NOT EXISTS reviews (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    author TEXT NOT NULL,
    rating INTEGER NOT NULL DEFAULT 5,
    body TEXT NOT NULL,
    approved INTEGER NOT NULL DEFAULT 1,
    created_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS knowledge (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    title TEXT NOT NULL,
    body TEXT NOT NULL,
    tags TEXT NOT NULL DEFAULT ''
);
`)
	return err
}

const documentColumns = `id, slug, title, seo_title, meta_description, excerpt, tags, outline, key_takeaways,
review_snippets, featured_image, content_html, format_confidence, state, published_at, scheduled_for, created_at`

// ListExistingSlugs returns every slug in use.
func (s *Store) ListExistingSlugs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT slug FROM documents`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var slugs []string
	for rows.Next() {
		var slug string
		if err := rows.Scan(&slug); err != nil {
			return nil, err
		}
		slugs = append(slugs, slug)
	}
	return slugs, rows.Err()
}

// CreateDocument inserts a new document and returns it with its id and
// creation time set. It never replaces an existing row: a slug collision
// returns ErrSlugTaken.
func (s *Store) CreateDocument(ctx context.Context, doc blog.Document) (blog.Document, error) {
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now()
	}
	doc.CreatedAt = doc.CreatedAt.UTC().Truncate(time.Second)
	res, err := s.db.ExecContext(ctx, `INSERT INTO documents (slug, title, seo_title, meta_description, excerpt, tags,
outline, key_takeaways, review_snippets, featured_image, content_html, format_confidence, state, published_at,
scheduled_for, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		doc.Slug, doc.Title, doc.SEOTitle, doc.MetaDescription, doc.Excerpt, JoinTags(doc.Tags),
		joinLines(doc.Outline), joinLines(doc.KeyTakeaways), joinLines(doc.ReviewSnippets), doc.FeaturedImage,
		doc.ContentHTML, string(doc.FormatConfidence), string(doc.State), formatTime(doc.PublishedAt),
		formatTime(doc.ScheduledFor), doc.CreatedAt.Format(time.RFC3339))
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "unique constraint failed") {
			return blog.Document{}, fmt.Errorf("%w: %s", ErrSlugTaken, doc.Slug)
		}
		return blog.Document{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return blog.Document{}, err
	}
	doc.ID = id
	return doc, nil
}

// GetDocument returns a document by slug regardless of its state.
func (s *Store) GetDocument(ctx context.Context, slug string) (blog.Document, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+documentColumns+` FROM documents WHERE slug = ?`, slug)
	return scanDocument(row)
}

// ListDocuments returns every document, newest first.
func (s *Store) ListDocuments(ctx context.Context) ([]blog.Document, error) {
	return s.queryDocuments(ctx, `SELECT `+documentColumns+` FROM documents ORDER BY created_at DESC, id DESC`)
}

// ListLive returns the documents visible at now: published ones and
// scheduled ones whose time has come, ordered by publication time
// descending.
func (s *Store) ListLive(ctx context.Context, now time.Time) ([]blog.Document, error) {
	return s.queryDocuments(ctx, `SELECT `+documentColumns+` FROM documents
WHERE state = ? OR (state = ? AND scheduled_for <= ?)
ORDER BY COALESCE(published_at, scheduled_for) DESC, id DESC`,
		string(blog.StatePublished), string(blog.StateScheduled), now.UTC().Format(time.RFC3339))
}

func (s *Store) queryDocuments(ctx context.Context, query string, args ...any) ([]blog.Document, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []blog.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(row scanner) (blog.Document, error) {
	var (
		doc                                blog.Document
		tags, outline, takeaways, snippets string
		confidence, state, created         string
		publishedAt, scheduledFor          sql.NullString
	)
	err := row.Scan(&doc.ID, &doc.Slug, &doc.Title, &doc.SEOTitle, &doc.MetaDescription, &doc.Excerpt, &tags,
		&outline, &takeaways, &snippets, &doc.FeaturedImage, &doc.ContentHTML, &confidence, &state,
		&publishedAt, &scheduledFor, &created)
	if err != nil {
		return blog.Document{}, err
	}
	doc.Tags = ParseTags(tags)
	doc.Outline = splitLines(outline)
	doc.KeyTakeaways = splitLines(takeaways)
	doc.ReviewSnippets = splitLines(snippets)
	doc.FormatConfidence = blog.FormatConfidence(confidence)
	doc.State = blog.PublicationState(state)
	doc.PublishedAt = parseTime(publishedAt)
	doc.ScheduledFor = parseTime(scheduledFor)
	if t, err := time.Parse(time.RFC3339, created); err == nil {
		doc.CreatedAt = t
	}
	return doc, nil
}

// reviewTimeLayout is fixed width so created_at sorts as text.
const reviewTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SaveReview stores a customer review.
func (s *Store) SaveReview(ctx context.Context, r sources.Review, approved bool) error {
	a := 0
	if approved {
		a = 1
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO reviews (author, rating, body, approved, created_at) VALUES (?, ?, ?, ?, ?)`,
		strings.TrimSpace(r.Author), r.Rating, strings.TrimSpace(r.Body), a, time.Now().UTC().Format(reviewTimeLayout))
	return err
}

// ListReviews returns the newest approved reviews.
func (s *Store) ListReviews(ctx context.Context, limit int) ([]sources.Review, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT author, rating, body FROM reviews WHERE approved = 1 ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reviews []sources.Review
	for rows.Next() {
		var r sources.Review
		if err := rows.Scan(&r.Author, &r.Rating, &r.Body); err != nil {
			return nil, err
		}
		reviews = append(reviews, r)
	}
	return reviews, rows.Err()
}

// SaveKnowledge stores a knowledge-base entry.
func (s *Store) SaveKnowledge(ctx context.Context, e sources.KnowledgeEntry, tags []string) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO knowledge (title, body, tags) VALUES (?, ?, ?)`,
		strings.TrimSpace(e.Title), strings.TrimSpace(e.Body), JoinTags(tags))
	return err
}

// SearchKnowledge ranks knowledge entries by how often terms occur in them.
// Title and tag matches count twice. Entries without any match are left out.
func (s *Store) SearchKnowledge(ctx context.Context, terms []string, limit int) ([]sources.KnowledgeEntry, error) {
	if len(terms) == 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, `SELECT title, body, tags FROM knowledge`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	type scored struct {
		entry sources.KnowledgeEntry
		score int
		order int
	}
	var matches []scored
	for n := 0; rows.Next(); n++ {
		var e sources.KnowledgeEntry
		var tags string
		if err := rows.Scan(&e.Title, &e.Body, &tags); err != nil {
			return nil, err
		}
		title := strings.ToLower(e.Title + " " + tags)
		body := strings.ToLower(e.Body)
		score := 0
		for _, t := range terms {
			t = strings.ToLower(t)
			score += 2*strings.Count(title, t) + strings.Count(body, t)
		}
		if score > 0 {
			matches = append(matches, scored{entry: e, score: score, order: n})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].score > matches[j].score })
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	entries := make([]sources.KnowledgeEntry, len(matches))
	for i, m := range matches {
		entries[i] = m.entry
	}
	return entries, nil
}

// JoinTags encodes tags as a comma-delimited string (e.g. ",go,web,") so a
// single tag can be matched with instr.
func JoinTags(tags []string) string {
	cleaned := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(strings.ReplaceAll(t, ",", " "))
		if t != "" {
			cleaned = append(cleaned, t)
		}
	}
	if len(cleaned) == 0 {
		return ""
	}
	return "," + strings.Join(cleaned, ",") + ","
}

// ParseTags splits a comma-delimited tag string (e.g. ",go,web,") into a slice.
func ParseTags(tagString string) []string {
	tagString = strings.Trim(tagString, ",")
	if tagString == "" {
		return nil
	}
	parts := strings.Split(tagString, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func joinLines(items []string) string {
	return strings.Join(items, "\n")
}

func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

func formatTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

func parseTime(ns sql.NullString) *time.Time {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, ns.String)
	if err != nil {
		return nil
	}
	return &t
}
