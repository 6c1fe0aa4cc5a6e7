package sources

import (
	"context"
	"fmt"
	"strings"
)

// Review is a customer review.
type Review struct {
	Author string
	Rating int
	Body   string
}

// ReviewLister returns the newest approved reviews.
type ReviewLister interface {
	ListReviews(ctx context.Context, limit int) ([]Review, error)
}

// ReviewsSource quotes recent customer reviews.
type ReviewsSource struct {
	Store ReviewLister
	Limit int
}

func (ReviewsSource) Name() Name { return Reviews }

func (s ReviewsSource) Fetch(ctx context.Context, q Query) (string, error) {
	if s.Store == nil {
		return "", ErrNotConfigured
	}
	limit := s.Limit
	if limit <= 0 {
		limit = 5
	}
	reviews, err := s.Store.ListReviews(ctx, limit)
	if err != nil {
		return "", fmt.Errorf("list reviews: %w", err)
	}
	var lines []string
	for _, r := range reviews {
		body := cleanText(r.Body)
		if body == "" {
			continue
		}
		stars := strings.Repeat("★", min(max(r.Rating, 0), 5))
		author := r.Author
		if author == "" {
			author = "Kundin/Kunde"
		}
		lines = append(lines, fmt.Sprintf("%s \"%s\" (%s)", stars, truncate(body, 300), author))
	}
	if len(lines) == 0 {
		return "", ErrNoResults
	}
	return strings.Join(lines, "\n"), nil
}

// KnowledgeEntry is a curated fact about services, prices or processes.
type KnowledgeEntry struct {
	Title string
	Body  string
}

// KnowledgeSearcher finds knowledge entries matching terms.
type KnowledgeSearcher interface {
	SearchKnowledge(ctx context.Context, terms []string, limit int) ([]KnowledgeEntry, error)
}

// KnowledgeSource adds knowledge-base entries relevant to the guidance.
type KnowledgeSource struct {
	Base  KnowledgeSearcher
	Limit int
}

func (KnowledgeSource) Name() Name { return KnowledgeBase }

func (s KnowledgeSource) Fetch(ctx context.Context, q Query) (string, error) {
	if s.Base == nil {
		return "", ErrNotConfigured
	}
	limit := s.Limit
	if limit <= 0 {
		limit = 4
	}
	entries, err := s.Base.SearchKnowledge(ctx, q.Terms, limit)
	if err != nil {
		return "", fmt.Errorf("search knowledge: %w", err)
	}
	var blocks []string
	for _, e := range entries {
		blocks = append(blocks, fmt.Sprintf("%s: %s", cleanText(e.Title), truncate(cleanText(e.Body), 600)))
	}
	if len(blocks) == 0 {
		return "", ErrNoResults
	}
	return strings.Join(blocks, "\n"), nil
}
