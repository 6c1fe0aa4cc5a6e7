package sources

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// DefaultSEOEndpoint is the DuckDuckGo HTML search endpoint.
const DefaultSEOEndpoint = "https://html.duckduckgo.com/html/"

// SEOSource derives keyword intelligence from search results for the
// guidance and the studio location.
type SEOSource struct {
	Endpoint    string
	Region      string
	City        string
	Client      *http.Client
	MaxResults  int
	MaxKeywords int
}

func (SEOSource) Name() Name { return SEOIntel }

func (s SEOSource) Fetch(ctx context.Context, q Query) (string, error) {
	query := s.searchQuery(q)
	if query == "" {
		return "", ErrNotConfigured
	}
	endpoint := s.Endpoint
	if endpoint == "" {
		endpoint = DefaultSEOEndpoint
	}
	region := s.Region
	if region == "" {
		region = "de-de"
	}
	params := url.Values{}
	params.Set("q", query)
	params.Set("kl", region)

	client := s.Client
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	doc, err := fetchDocument(ctx, client, endpoint+"?"+params.Encode())
	if err != nil {
		return "", err
	}
	if strings.Contains(strings.ToLower(doc.Text()), "captcha") {
		return "", fmt.Errorf("search blocked by captcha")
	}

	maxResults := s.MaxResults
	if maxResults <= 0 {
		maxResults = 8
	}
	var results []string
	var corpus []string
	doc.Find(".result").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		title := cleanText(sel.Find(".result__a").First().Text())
		snippet := cleanText(sel.Find(".result__snippet").First().Text())
		if title == "" {
			return true
		}
		results = append(results, fmt.Sprintf("- %s: %s", title, truncate(snippet, 200)))
		corpus = append(corpus, title, snippet)
		return len(results) < maxResults
	})
	if len(results) == 0 {
		return "", ErrNoResults
	}

	maxKeywords := s.MaxKeywords
	if maxKeywords <= 0 {
		maxKeywords = 12
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Suchanfrage: %s\n", query)
	if kw := RankKeywords(strings.Join(corpus, " "), maxKeywords); len(kw) > 0 {
		fmt.Fprintf(&sb, "Häufige Begriffe: %s\n", strings.Join(kw, ", "))
	}
	sb.WriteString("Top-Ergebnisse:\n")
	sb.WriteString(strings.Join(results, "\n"))
	return sb.String(), nil
}

func (s SEOSource) searchQuery(q Query) string {
	terms := q.Terms
	if len(terms) > 6 {
		terms = terms[:6]
	}
	parts := append([]string{}, terms...)
	if len(parts) == 0 {
		parts = append(parts, "fotoshooting")
	}
	if s.City != "" {
		parts = append(parts, strings.ToLower(s.City))
	}
	return strings.Join(parts, " ")
}

// RankKeywords returns the n most frequent terms of text, ties broken
// alphabetically.
func RankKeywords(text string, n int) []string {
	counts := map[string]int{}
	for _, f := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return strings.ContainsRune(" \t\n.,;:!?()[]\"'|/–-", r)
	}) {
		if len([]rune(f)) < 4 {
			continue
		}
		if _, ok := stopWords[f]; ok {
			continue
		}
		counts[f]++
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		return keys[i] < keys[j]
	})
	if len(keys) > n {
		keys = keys[:n]
	}
	return keys
}
