package discovery

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/shelfscan/shelfscan/internal/crawler"
)

type fakeFetcher struct {
	responses map[string]string
	requested []string
}

func (f *fakeFetcher) Get(_ context.Context, rawURL string, _ http.Header) (crawler.FetchResult, error) {
	f.requested = append(f.requested, rawURL)
	body, ok := f.responses[rawURL]
	if !ok {
		return crawler.FetchResult{URL: rawURL, StatusCode: http.StatusNotFound}, nil
	}
	return crawler.FetchResult{URL: rawURL, StatusCode: http.StatusOK, Body: []byte(body)}, nil
}

type fakePage struct {
	html      string
	navErr    error
	navigated []string
}

func (p *fakePage) Navigate(_ context.Context, rawURL string, _ time.Duration) error {
	p.navigated = append(p.navigated, rawURL)
	return p.navErr
}

func (p *fakePage) HTML(_ context.Context) (string, error)            { return p.html, nil }
func (p *fakePage) Evaluate(_ context.Context, _ string, _ any) error { return nil }
func (p *fakePage) ScrollToBottom(_ context.Context) error            { return nil }
func (p *fakePage) ScrollHeight(_ context.Context) (int, error)       { return 0, nil }
func (p *fakePage) InterceptedJSON() [][]byte                         { return nil }
func (p *fakePage) Close() error                                      { return nil }

func newDiscoverer(f crawler.Fetcher) *Discoverer {
	return New(f, Config{NavTimeout: time.Second, SettleDelay: 0}, zap.NewNop())
}

func TestSitemapProbingStopsAtFirstHit(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{responses: map[string]string{
		"https://shop.example.com/sitemap.xml": `<?xml version="1.0"?>
<urlset>
  <url><loc>https://shop.example.com/category/dairy</loc></url>
  <url><loc>https://shop.example.com/about</loc></url>
  <url><loc>https://shop.example.com/category/frozen</loc></url>
</urlset>`,
	}}

	cats := newDiscoverer(fetcher).fromSitemap(context.Background(), "https://shop.example.com", "https://shop.example.com")
	require.Len(t, cats, 2)
	require.Equal(t, "https://shop.example.com/category/dairy", cats[0].URL)
	require.Equal(t, crawler.SourceSitemap, cats[0].Source)
	require.Equal(t, "dairy", cats[0].Name)

	// The first candidate matched; no further candidates were probed.
	require.Equal(t, []string{"https://shop.example.com/sitemap.xml"}, fetcher.requested)
}

func TestSitemapIndexRecursionFiltersChildren(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{responses: map[string]string{
		"https://shop.example.com/sitemap.xml": `<?xml version="1.0"?>
<sitemapindex>
  <sitemap><loc>https://shop.example.com/sitemap-products.xml</loc></sitemap>
  <sitemap><loc>https://shop.example.com/sitemap-blog.xml</loc></sitemap>
</sitemapindex>`,
		"https://shop.example.com/sitemap-products.xml": `<?xml version="1.0"?>
<urlset>
  <url><loc>https://shop.example.com/category/pantry</loc></url>
</urlset>`,
	}}

	cats := newDiscoverer(fetcher).fromSitemap(context.Background(), "https://shop.example.com", "https://shop.example.com")
	require.Len(t, cats, 1)
	require.Equal(t, "https://shop.example.com/category/pantry", cats[0].URL)

	// The blog child sitemap matched neither "product" nor "category" and
	// was never fetched.
	require.NotContains(t, fetcher.requested, "https://shop.example.com/sitemap-blog.xml")
}

func TestNavigationExtraction(t *testing.T) {
	t.Parallel()

	page := &fakePage{html: `<html><body>
<nav>
  <a href="/category/dairy">Dairy</a>
  <a href="/specials-of-the-week">Specials of the week</a>
  <a href="/x">x</a>
  <a href="https://other.example.com/category/dairy">External Dairy</a>
</nav>
</body></html>`}

	d := newDiscoverer(&fakeFetcher{})
	cats, err := d.fromNavigation(context.Background(), page, "https://shop.example.com")
	require.NoError(t, err)
	require.Equal(t, []string{"https://shop.example.com"}, page.navigated)

	urls := make([]string, 0, len(cats))
	for _, c := range cats {
		urls = append(urls, c.URL)
	}
	// Heuristic match admits /category/dairy; long anchor text admits the
	// specials page; the short link and the off-origin link are dropped.
	require.Equal(t, []string{
		"https://shop.example.com/category/dairy",
		"https://shop.example.com/specials-of-the-week",
	}, urls)
	require.Equal(t, "Dairy", cats[0].Name)
	require.Equal(t, crawler.SourceNavigation, cats[0].Source)
}

func TestDiscoverMergesSitemapFirst(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{responses: map[string]string{
		"https://shop.example.com/sitemap.xml": `<?xml version="1.0"?>
<urlset>
  <url><loc>https://shop.example.com/category/dairy</loc></url>
</urlset>`,
	}}
	page := &fakePage{html: `<html><body><nav>
<a href="/category/dairy">Dairy (nav)</a>
<a href="/category/frozen">Frozen</a>
</nav></body></html>`}

	cats, err := newDiscoverer(fetcher).Discover(context.Background(), page, "https://shop.example.com")
	require.NoError(t, err)
	require.Len(t, cats, 2)

	// Duplicate URL: the sitemap occurrence wins.
	require.Equal(t, crawler.SourceSitemap, cats[0].Source)
	require.Equal(t, "https://shop.example.com/category/dairy", cats[0].URL)
	require.Equal(t, "https://shop.example.com/category/frozen", cats[1].URL)
}

func TestDiscoverRejectsInvalidHomepage(t *testing.T) {
	t.Parallel()

	_, err := newDiscoverer(&fakeFetcher{}).Discover(context.Background(), &fakePage{}, "not a url")
	require.ErrorIs(t, err, crawler.ErrInvalidInput)
}

func TestDiscoverFailsWhenNothingFound(t *testing.T) {
	t.Parallel()

	_, err := newDiscoverer(&fakeFetcher{}).Discover(context.Background(), &fakePage{html: "<html></html>"}, "https://shop.example.com")
	require.Error(t, err)
}
