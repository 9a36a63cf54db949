// Package traverse walks a category's listing pages one at a time, expanding
// infinite-scroll content and yielding product URLs.
package traverse

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/shelfscan/shelfscan/internal/crawler"
)

// productLinkSelectors is the fixed ordered selector list for product links
// on a listing page. Matches are further filtered by origin and the product
// URL heuristic.
var productLinkSelectors = []string{
	".product-item a[href]",
	".product-card a[href]",
	".product-tile a[href]",
	"[class*='product'] a[href]",
	"a[href*='/product']",
	"a[href*='/item/']",
	".item a[href]",
}

// nextPageSelectors is the fixed ordered list of "next page" affordances.
var nextPageSelectors = []string{
	"a[rel='next']",
	".pagination a.next:not(.disabled)",
	".pagination .next:not(.disabled) a",
	"a.next-page:not(.disabled)",
	"button.next:not([disabled])",
	"a[aria-label*='Next']",
}

// scrollSettle is the fixed wait after each scroll-to-bottom attempt.
const scrollSettle = time.Second

// Config controls traversal behavior.
type Config struct {
	NavTimeout        time.Duration
	RequestDelay      time.Duration
	MaxScrollAttempts int
}

// Traverser yields product URLs for one category at a time.
type Traverser struct {
	logger  *zap.Logger
	cfg     Config
	limiter *rate.Limiter
}

// New constructs a Traverser. The inter-product politeness delay is enforced
// with a rate limiter.
func New(cfg Config, logger *zap.Logger) *Traverser {
	if cfg.MaxScrollAttempts <= 0 {
		cfg.MaxScrollAttempts = 10
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RequestDelay > 0 {
		limiter = rate.NewLimiter(rate.Every(cfg.RequestDelay), 1)
	}
	return &Traverser{
		logger:  logger,
		cfg:     cfg,
		limiter: limiter,
	}
}

// Traverse walks category listing pages, calling handle once for each
// product URL not yet discovered in this run. It returns the number of
// product URLs handed off. Termination: cooperative stop, a pagination
// cycle, a page with zero product links, or a missing next-page affordance.
func (t *Traverser) Traverse(
	ctx context.Context,
	page crawler.Page,
	category crawler.Category,
	token *crawler.StopToken,
	pagesSeen *crawler.VisitSet,
	productsSeen *crawler.VisitSet,
	handle func(ctx context.Context, productURL string) error,
) (int, error) {
	handled := 0

	for pageNum := 1; ; pageNum++ {
		if token.Stopped() {
			return handled, nil
		}

		pageURL, err := paginatedURL(category.URL, pageNum)
		if err != nil {
			return handled, fmt.Errorf("build page url: %w", err)
		}
		if !pagesSeen.MarkIfNew(pageURL) {
			t.logger.Debug("pagination cycle detected", zap.String("url", pageURL))
			return handled, nil
		}

		if err := page.Navigate(ctx, pageURL, t.cfg.NavTimeout); err != nil {
			return handled, err
		}
		t.expandInfiniteScroll(ctx, page)

		html, err := page.HTML(ctx)
		if err != nil {
			return handled, err
		}
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
		if err != nil {
			return handled, fmt.Errorf("parse listing page: %w", err)
		}

		links := extractProductLinks(doc, pageURL)
		t.logger.Debug("listing page walked",
			zap.String("category", category.URL),
			zap.Int("page", pageNum),
			zap.Int("product_links", len(links)),
		)
		if len(links) == 0 {
			return handled, nil
		}

		for _, link := range links {
			if token.Stopped() {
				return handled, nil
			}
			if !productsSeen.MarkIfNew(link) {
				continue
			}
			if err := handle(ctx, link); err != nil {
				return handled, err
			}
			handled++
			if err := t.limiter.Wait(ctx); err != nil {
				return handled, err
			}
		}

		if !hasNextPage(doc) {
			return handled, nil
		}
	}
}

// expandInfiniteScroll scrolls to the bottom until the document height
// stabilizes across one iteration, or the attempt cap is reached. Scroll
// failures end expansion early; the page content so far still gets used.
func (t *Traverser) expandInfiniteScroll(ctx context.Context, page crawler.Page) {
	for attempt := 0; attempt < t.cfg.MaxScrollAttempts; attempt++ {
		before, err := page.ScrollHeight(ctx)
		if err != nil {
			return
		}
		if err := page.ScrollToBottom(ctx); err != nil {
			return
		}
		sleep(ctx, scrollSettle)
		after, err := page.ScrollHeight(ctx)
		if err != nil || after == before {
			return
		}
	}
}

// paginatedURL reuses an existing page/p query parameter when the category
// URL carries one, otherwise sets page.
func paginatedURL(categoryURL string, pageNum int) (string, error) {
	u, err := url.Parse(categoryURL)
	if err != nil {
		return "", err
	}
	q := u.Query()
	param := "page"
	if !q.Has("page") && q.Has("p") {
		param = "p"
	}
	q.Set(param, strconv.Itoa(pageNum))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// extractProductLinks collects in-page-deduplicated product links, filtered
// to same-origin URLs matching the product heuristic.
func extractProductLinks(doc *goquery.Document, pageURL string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, selector := range productLinkSelectors {
		doc.Find(selector).Each(func(_ int, sel *goquery.Selection) {
			href, _ := sel.Attr("href")
			link := crawler.ResolveURL(pageURL, href)
			if link == "" {
				return
			}
			if _, ok := seen[link]; ok {
				return
			}
			if !crawler.SameOrigin(link, pageURL) || !crawler.LooksLikeProductURL(link) {
				return
			}
			seen[link] = struct{}{}
			out = append(out, link)
		})
	}
	return out
}

// hasNextPage detects a usable next-page affordance.
func hasNextPage(doc *goquery.Document) bool {
	for _, selector := range nextPageSelectors {
		if doc.Find(selector).Length() > 0 {
			return true
		}
	}
	return false
}

func sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
