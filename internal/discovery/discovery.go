// Package discovery finds category listing pages for a homepage, merging a
// sitemap probe with rendered-navigation extraction.
package discovery

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/shelfscan/shelfscan/internal/crawler"
)

// Config controls discovery behavior.
type Config struct {
	NavTimeout  time.Duration
	SettleDelay time.Duration
}

// Discoverer merges sitemap-derived and navigation-derived categories.
type Discoverer struct {
	fetcher crawler.Fetcher
	logger  *zap.Logger
	cfg     Config
}

// New constructs a Discoverer.
func New(fetcher crawler.Fetcher, cfg Config, logger *zap.Logger) *Discoverer {
	return &Discoverer{
		fetcher: fetcher,
		logger:  logger,
		cfg:     cfg,
	}
}

// Discover returns the merged category list for homepageURL. Merge order is
// sitemap first, then navigation; the first occurrence of a URL wins. Either
// source failing outright is logged and tolerated as long as the other
// produces something.
func (d *Discoverer) Discover(ctx context.Context, page crawler.Page, homepageURL string) ([]crawler.Category, error) {
	origin, err := originOf(homepageURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", crawler.ErrInvalidInput, err)
	}

	fromSitemap := d.fromSitemap(ctx, origin, homepageURL)
	d.logger.Info("sitemap discovery done",
		zap.String("homepage", homepageURL),
		zap.Int("categories", len(fromSitemap)),
	)

	fromNav, err := d.fromNavigation(ctx, page, homepageURL)
	if err != nil {
		d.logger.Warn("navigation discovery failed", zap.String("homepage", homepageURL), zap.Error(err))
	}

	merged := mergeByURL(fromSitemap, fromNav)
	if len(merged) == 0 {
		return nil, fmt.Errorf("no categories discovered for %s", homepageURL)
	}
	return merged, nil
}

// mergeByURL keeps the first occurrence of each URL, preserving input order.
func mergeByURL(lists ...[]crawler.Category) []crawler.Category {
	seen := make(map[string]struct{})
	var out []crawler.Category
	for _, list := range lists {
		for _, c := range list {
			if _, ok := seen[c.URL]; ok {
				continue
			}
			seen[c.URL] = struct{}{}
			out = append(out, c)
		}
	}
	return out
}

func originOf(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	if u.Scheme == "" || u.Hostname() == "" {
		return "", fmt.Errorf("missing scheme or host in %q", rawURL)
	}
	return fmt.Sprintf("%s://%s", u.Scheme, u.Host), nil
}

// nameFromURL derives a display name from the last meaningful path segment.
func nameFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(segments) == 0 {
		return ""
	}
	slug := segments[len(segments)-1]
	slug = strings.NewReplacer("-", " ", "_", " ").Replace(slug)
	return strings.TrimSpace(slug)
}
