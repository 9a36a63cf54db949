package discovery

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/shelfscan/shelfscan/internal/crawler"
)

// navSelectors is the fixed ordered anchor selector list walked over the
// rendered homepage.
var navSelectors = []string{
	"nav a[href]",
	"header a[href]",
	".menu a[href]",
	".nav a[href]",
	"[class*='categor'] a[href]",
	".sidebar a[href]",
}

// minNavTextLen admits nav links whose label is long enough to plausibly be
// a category name even when the href matches no known pattern.
const minNavTextLen = 12

// fromNavigation renders the homepage, waits for it to settle, and extracts
// same-origin category links from the navigation regions.
func (d *Discoverer) fromNavigation(ctx context.Context, page crawler.Page, homepageURL string) ([]crawler.Category, error) {
	if page == nil {
		return nil, fmt.Errorf("no page session")
	}

	if err := page.Navigate(ctx, homepageURL, d.cfg.NavTimeout); err != nil {
		return nil, err
	}
	settle(ctx, d.cfg.SettleDelay)

	html, err := page.HTML(ctx)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse homepage: %w", err)
	}

	seen := make(map[string]struct{})
	var out []crawler.Category
	for _, selector := range navSelectors {
		doc.Find(selector).Each(func(_ int, sel *goquery.Selection) {
			href, _ := sel.Attr("href")
			link := crawler.ResolveURL(homepageURL, href)
			if link == "" || link == homepageURL {
				return
			}
			if _, ok := seen[link]; ok {
				return
			}
			if !crawler.SameOrigin(link, homepageURL) {
				return
			}
			text := strings.TrimSpace(sel.Text())
			if !crawler.LooksLikeCategoryURL(link) && len(text) < minNavTextLen {
				return
			}
			seen[link] = struct{}{}
			name := text
			if name == "" {
				name = nameFromURL(link)
			}
			out = append(out, crawler.Category{
				URL:       link,
				Name:      name,
				ParentURL: homepageURL,
				Depth:     1,
				Source:    crawler.SourceNavigation,
			})
		})
	}
	return out, nil
}

func settle(ctx context.Context, delay time.Duration) {
	if delay <= 0 {
		return
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
