package sources

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

const userAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"

// SiteProfileSource extracts tone and positioning from the studio website.
type SiteProfileSource struct {
	URL           string
	Client        *http.Client
	MaxHeadings   int
	MaxParagraphs int
}

func (SiteProfileSource) Name() Name { return SiteProfile }

func (s SiteProfileSource) Fetch(ctx context.Context, q Query) (string, error) {
	if s.URL == "" {
		return "", ErrNotConfigured
	}
	doc, err := fetchDocument(ctx, s.client(), s.URL)
	if err != nil {
		return "", err
	}
	maxHeadings, maxParagraphs := s.MaxHeadings, s.MaxParagraphs
	if maxHeadings <= 0 {
		maxHeadings = 8
	}
	if maxParagraphs <= 0 {
		maxParagraphs = 4
	}

	var lines []string
	if title := cleanText(doc.Find("title").First().Text()); title != "" {
		lines = append(lines, "Titel: "+title)
	}
	if name, ok := doc.Find(`meta[property="og:site_name"]`).Attr("content"); ok && cleanText(name) != "" {
		lines = append(lines, "Name: "+cleanText(name))
	}
	if desc, ok := doc.Find(`meta[name="description"]`).Attr("content"); ok && cleanText(desc) != "" {
		lines = append(lines, "Beschreibung: "+cleanText(desc))
	}

	var headings []string
	doc.Find("h1, h2, h3").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if text := cleanText(sel.Text()); text != "" {
			headings = append(headings, text)
		}
		return len(headings) < maxHeadings
	})
	if len(headings) > 0 {
		lines = append(lines, "Überschriften: "+strings.Join(headings, " | "))
	}

	var paragraphs []string
	doc.Find("p").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if text := cleanText(sel.Text()); len(text) >= 60 && !contains(paragraphs, text) {
			paragraphs = append(paragraphs, truncate(text, 400))
		}
		return len(paragraphs) < maxParagraphs
	})
	for _, p := range paragraphs {
		lines = append(lines, "Textauszug: "+p)
	}

	if len(lines) == 0 {
		return "", ErrNoResults
	}
	return strings.Join(lines, "\n"), nil
}

func (s SiteProfileSource) client() *http.Client {
	if s.Client != nil {
		return s.Client
	}
	return &http.Client{Timeout: 20 * time.Second}
}

func fetchDocument(ctx context.Context, client *http.Client, url string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	req.Header.Set("Accept-Language", "de-DE,de;q=0.9,en;q=0.5")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: status %d", url, resp.StatusCode)
	}
	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return doc, nil
}

func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	cut := string(r[:n])
	if i := strings.LastIndexByte(cut, ' '); i > n/2 {
		cut = cut[:i]
	}
	return cut + "…"
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
