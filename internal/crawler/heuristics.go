package crawler

import (
	"net/url"
	"regexp"
	"strings"
)

// URL classification is deliberately best-effort: the pattern sets overlap
// (a long numeric segment can look like both a category and a product), so
// matches are a ranking signal, not an exact classification.

// categoryPathPatterns is the fixed ordered set of path fragments that mark
// a listing/category URL.
var categoryPathPatterns = []string{
	"/category/",
	"/categories/",
	"/c/",
	"/collection/",
	"/collections/",
	"/shop/",
	"/product/",
	"/products/",
	"/department/",
	"/aisle/",
}

// productPathPatterns is the fixed ordered set of fragments that mark a
// product-detail URL.
var productPathPatterns = []string{
	"/product/",
	"/p/",
	"/item/",
	"/pd/",
	"/dp/",
	"?sku=",
	"?id=",
}

// longNumericSegment matches a path segment of 5 or more digits, a common
// shape for product IDs.
var longNumericSegment = regexp.MustCompile(`/\d{5,}(?:[/?#]|$)`)

// LooksLikeCategoryURL reports whether rawURL matches the category heuristic.
func LooksLikeCategoryURL(rawURL string) bool {
	lower := strings.ToLower(rawURL)
	for _, p := range categoryPathPatterns {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// LooksLikeProductURL reports whether rawURL matches the product heuristic.
func LooksLikeProductURL(rawURL string) bool {
	lower := strings.ToLower(rawURL)
	for _, p := range productPathPatterns {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return longNumericSegment.MatchString(lower)
}

// SameOrigin reports whether rawURL shares scheme-less origin with base.
func SameOrigin(rawURL, base string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	b, err := url.Parse(base)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Hostname(), b.Hostname())
}

// ResolveURL resolves a possibly relative href against base and strips the
// fragment. It returns "" when the href is unusable.
func ResolveURL(base, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "javascript:") || strings.HasPrefix(href, "mailto:") {
		return ""
	}
	b, err := url.Parse(base)
	if err != nil {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	resolved := b.ResolveReference(ref)
	resolved.Fragment = ""
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return ""
	}
	return resolved.String()
}
