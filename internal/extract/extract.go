// Package extract fetches a product page and fuses its candidate data
// sources into one ProductRecord.
//
// Three sources contribute, with fixed precedence (lowest to highest):
// DOM-fallback selectors < structured/embedded JSON-LD < intercepted JSON
// network responses. For each field the highest-precedence source with a
// non-empty value wins.
package extract

import (
	"net/url"
	"strings"
	"time"

	"context"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/shelfscan/shelfscan/internal/crawler"
)

// Config controls extraction behavior.
type Config struct {
	NavTimeout  time.Duration
	SettleDelay time.Duration
	MaxImages   int
}

// Extractor fuses product page sources into records.
type Extractor struct {
	logger *zap.Logger
	clock  crawler.Clock
	cfg    Config
}

// New constructs an Extractor.
func New(cfg Config, clock crawler.Clock, logger *zap.Logger) *Extractor {
	if cfg.MaxImages <= 0 {
		cfg.MaxImages = 10
	}
	return &Extractor{
		logger: logger,
		clock:  clock,
		cfg:    cfg,
	}
}

// Extract loads productURL in the page session and returns the fused record
// plus the candidate image URLs (capped at MaxImages).
func (e *Extractor) Extract(
	ctx context.Context,
	page crawler.Page,
	productURL string,
	category crawler.Category,
	siteOrigin string,
) (crawler.ProductRecord, []string, error) {
	if err := page.Navigate(ctx, productURL, e.cfg.NavTimeout); err != nil {
		return crawler.ProductRecord{}, nil, err
	}
	settle(ctx, e.cfg.SettleDelay)

	html, err := page.HTML(ctx)
	if err != nil {
		return crawler.ProductRecord{}, nil, err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return crawler.ProductRecord{}, nil, &crawler.TransientFetchError{URL: productURL, Err: err}
	}

	record, images := e.Fuse(doc, page.InterceptedJSON(), productURL, category, siteOrigin)
	return record, images, nil
}

// Fuse combines the three candidate sources from an already-rendered page.
// Split out from Extract so the merge semantics are testable without a
// browser session.
func (e *Extractor) Fuse(
	doc *goquery.Document,
	interceptedBodies [][]byte,
	productURL string,
	category crawler.Category,
	siteOrigin string,
) (crawler.ProductRecord, []string) {
	dom := domExtract(doc, productURL)
	structured := structuredExtract(doc, productURL)
	intercepted := interceptedExtract(interceptedBodies, productURL)

	merged := overlay(overlay(dom, structured), intercepted)

	identity := crawler.ProductIdentity(productURL, merged.SKU)

	categoryPath := category.Name
	if len(merged.Breadcrumb) > 0 {
		categoryPath = strings.Join(merged.Breadcrumb, " > ")
	}

	record := crawler.ProductRecord{
		Identity:     identity,
		URL:          productURL,
		Name:         merged.Name,
		Brand:        merged.Brand,
		CategoryPath: categoryPath,
		Variant:      merged.Variant,
		Price:        merged.Price,
		Currency:     merged.Currency,
		Description:  merged.Description,
		Availability: merged.Availability,
		Site:         hostnameOf(siteOrigin, productURL),
		ScrapedAt:    e.clock.Now(),
	}

	images := merged.Images
	if len(images) > e.cfg.MaxImages {
		images = images[:e.cfg.MaxImages]
	}
	e.logger.Debug("product fused",
		zap.String("url", productURL),
		zap.String("identity", identity),
		zap.Int("images", len(images)),
	)
	return record, images
}

func hostnameOf(siteOrigin, fallbackURL string) string {
	for _, candidate := range []string{siteOrigin, fallbackURL} {
		if u, err := url.Parse(candidate); err == nil && u.Hostname() != "" {
			return strings.ToLower(u.Hostname())
		}
	}
	return ""
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
