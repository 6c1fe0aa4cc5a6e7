package autoblog

import (
	"encoding/json"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/eringen/autoblog/blog"
)

// BuildURL joins a base URL with path segments, ensuring a trailing slash.
func BuildURL(base string, pathSegments ...string) string {
	u, err := url.Parse(base)
	if err != nil {
		return base
	}
	u.Path = path.Join(u.Path, path.Join(pathSegments...))
	if len(pathSegments) > 0 && !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	return u.String()
}

// DocumentURL is the public address of a document.
func DocumentURL(base, slug string) string {
	return BuildURL(base, "blog", slug)
}

// FilterEmpty removes empty/whitespace-only strings from a slice.
func FilterEmpty(vals []string) []string {
	var out []string
	for _, v := range vals {
		if s := strings.TrimSpace(v); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// RelatedDocuments finds documents that share at least one tag with current.
func RelatedDocuments(current blog.Document, docs []blog.Document, limit int) []blog.Document {
	tagSet := make(map[string]struct{})
	for _, t := range current.Tags {
		if tag := normalizeTag(t); tag != "" {
			tagSet[tag] = struct{}{}
		}
	}
	var related []blog.Document
	for _, d := range docs {
		if d.Slug == current.Slug {
			continue
		}
		for _, t := range d.Tags {
			if _, ok := tagSet[normalizeTag(t)]; ok {
				related = append(related, d)
				break
			}
		}
		if limit > 0 && len(related) == limit {
			break
		}
	}
	return related
}

// PublishedAt returns when the document went or goes live.
func PublishedAt(d blog.Document) time.Time {
	switch {
	case d.PublishedAt != nil:
		return *d.PublishedAt
	case d.ScheduledFor != nil:
		return *d.ScheduledFor
	}
	return d.CreatedAt
}

// BlogPostingJSONLD returns a JSON-LD string for a BlogPosting schema.
func BlogPostingJSONLD(d blog.Document, site SiteConfig) string {
	docURL := DocumentURL(site.URL, d.Slug)
	headline := d.SEOTitle
	if headline == "" {
		headline = d.Title
	}
	data := map[string]any{
		"@context":      "https://schema.org",
		"@type":         "BlogPosting",
		"headline":      headline,
		"description":   d.MetaDescription,
		"datePublished": PublishedAt(d).UTC().Format(time.RFC3339),
		"url":           docURL,
		"inLanguage":    site.Locale,
		"mainEntityOfPage": map[string]string{
			"@type": "WebPage",
			"@id":   docURL,
		},
	}
	if d.FeaturedImage != "" {
		data["image"] = d.FeaturedImage
	}
	if site.Name != "" {
		data["publisher"] = map[string]string{
			"@type": "Organization",
			"name":  site.Name,
		}
	}
	if len(d.Tags) > 0 {
		data["keywords"] = strings.Join(d.Tags, ", ")
	}
	b, err := json.Marshal(data)
	if err != nil {
		return "{}"
	}
	return string(b)
}
