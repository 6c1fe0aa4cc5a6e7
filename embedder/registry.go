package embedder

import (
	"html"
	"regexp"
)

var reImgSrc = regexp.MustCompile(`(?i)<img\b[^>]*?\bsrc\s*=\s*["']([^"']+)["']`)

// UsedImageRegistry records the image URLs a document already shows. It is
// the only place that decides whether an image may still be embedded.
type UsedImageRegistry struct {
	used map[string]struct{}
}

// NewRegistry returns a registry with urls already marked as used.
func NewRegistry(urls ...string) *UsedImageRegistry {
	r := &UsedImageRegistry{used: make(map[string]struct{}, len(urls))}
	for _, u := range urls {
		r.Mark(u)
	}
	return r
}

// Used reports whether url was marked.
func (r *UsedImageRegistry) Used(url string) bool {
	_, ok := r.used[url]
	return ok
}

// Mark records url and reports whether it was new.
func (r *UsedImageRegistry) Mark(url string) bool {
	if url == "" || r.Used(url) {
		return false
	}
	r.used[url] = struct{}{}
	return true
}

// Len returns the number of used URLs.
func (r *UsedImageRegistry) Len() int { return len(r.used) }

// seedFromHTML marks every image source found in content.
func (r *UsedImageRegistry) seedFromHTML(content string) {
	for _, m := range reImgSrc.FindAllStringSubmatch(content, -1) {
		r.Mark(html.UnescapeString(m[1]))
	}
}
