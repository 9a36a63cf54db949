package traverse

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/shelfscan/shelfscan/internal/crawler"
)

type fakePage struct {
	pages     map[string]string
	navigated []string
	heights   []int
	heightIdx int
	scrolls   int
}

func (p *fakePage) Navigate(_ context.Context, rawURL string, _ time.Duration) error {
	p.navigated = append(p.navigated, rawURL)
	return nil
}

func (p *fakePage) HTML(_ context.Context) (string, error) {
	if len(p.navigated) == 0 {
		return "", nil
	}
	return p.pages[p.navigated[len(p.navigated)-1]], nil
}

func (p *fakePage) Evaluate(_ context.Context, _ string, _ any) error { return nil }

func (p *fakePage) ScrollToBottom(_ context.Context) error {
	p.scrolls++
	return nil
}

func (p *fakePage) ScrollHeight(_ context.Context) (int, error) {
	if len(p.heights) == 0 {
		return 1000, nil
	}
	h := p.heights[min(p.heightIdx, len(p.heights)-1)]
	p.heightIdx++
	return h, nil
}

func (p *fakePage) InterceptedJSON() [][]byte { return nil }
func (p *fakePage) Close() error              { return nil }

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func productList(urls ...string) string {
	var b strings.Builder
	b.WriteString("<html><body><ul>")
	for _, u := range urls {
		b.WriteString(`<li class="product-item"><a href="` + u + `">item</a></li>`)
	}
	b.WriteString("</ul>")
	if len(urls) > 0 {
		b.WriteString(`<div class="pagination"><a rel="next" href="#">Next</a></div>`)
	}
	b.WriteString("</body></html>")
	return b.String()
}

func newTraverser() *Traverser {
	return New(Config{NavTimeout: time.Second, MaxScrollAttempts: 10}, zap.NewNop())
}

func collect(handled *[]string) func(context.Context, string) error {
	return func(_ context.Context, productURL string) error {
		*handled = append(*handled, productURL)
		return nil
	}
}

func TestTraverseStopsOnEmptyPage(t *testing.T) {
	t.Parallel()

	cat := crawler.Category{URL: "https://shop.example.com/category/dairy"}
	page := &fakePage{pages: map[string]string{
		"https://shop.example.com/category/dairy?page=1": productList(
			"/product/1", "/product/2", "/product/3", "/product/4", "/product/5",
		),
		"https://shop.example.com/category/dairy?page=2": productList(),
	}}

	var handled []string
	n, err := newTraverser().Traverse(
		context.Background(), page, cat, crawler.NewStopToken(),
		crawler.NewVisitSet(), crawler.NewVisitSet(), collect(&handled),
	)
	require.NoError(t, err)
	require.Equal(t, 5, n)
	require.Len(t, handled, 5)
	require.Equal(t, "https://shop.example.com/product/1", handled[0])
	// Page 2 was loaded, found empty, and the walk stopped there.
	require.Len(t, page.navigated, 2)
}

func TestTraverseStopsWithoutNextAffordance(t *testing.T) {
	t.Parallel()

	cat := crawler.Category{URL: "https://shop.example.com/category/dairy"}
	page := &fakePage{pages: map[string]string{
		"https://shop.example.com/category/dairy?page=1": `<html><body>
<div class="product-card"><a href="/product/10">One</a></div>
</body></html>`,
	}}

	var handled []string
	n, err := newTraverser().Traverse(
		context.Background(), page, cat, crawler.NewStopToken(),
		crawler.NewVisitSet(), crawler.NewVisitSet(), collect(&handled),
	)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Len(t, page.navigated, 1)
}

func TestTraverseBreaksPaginationCycle(t *testing.T) {
	t.Parallel()

	cat := crawler.Category{URL: "https://shop.example.com/category/dairy"}
	page := &fakePage{pages: map[string]string{
		"https://shop.example.com/category/dairy?page=1": productList("/product/1"),
	}}

	pagesSeen := crawler.NewVisitSet()
	// Pretend page 2 was already visited this run.
	require.True(t, pagesSeen.MarkIfNew("https://shop.example.com/category/dairy?page=2"))

	var handled []string
	n, err := newTraverser().Traverse(
		context.Background(), page, cat, crawler.NewStopToken(),
		pagesSeen, crawler.NewVisitSet(), collect(&handled),
	)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Len(t, page.navigated, 1, "cycle detected before loading page 2")
}

func TestTraverseHonorsStopTokenAtProductBoundary(t *testing.T) {
	t.Parallel()

	cat := crawler.Category{URL: "https://shop.example.com/category/dairy"}
	page := &fakePage{pages: map[string]string{
		"https://shop.example.com/category/dairy?page=1": productList("/product/1", "/product/2", "/product/3"),
	}}

	token := crawler.NewStopToken()
	var handled []string
	n, err := newTraverser().Traverse(
		context.Background(), page, cat, token,
		crawler.NewVisitSet(), crawler.NewVisitSet(),
		func(_ context.Context, productURL string) error {
			handled = append(handled, productURL)
			token.Stop()
			return nil
		},
	)
	require.NoError(t, err)
	require.Equal(t, 1, n, "in-flight product completes, the rest are skipped")
	require.Len(t, handled, 1)
}

func TestTraverseSkipsAlreadyDiscoveredProducts(t *testing.T) {
	t.Parallel()

	cat := crawler.Category{URL: "https://shop.example.com/category/dairy"}
	page := &fakePage{pages: map[string]string{
		"https://shop.example.com/category/dairy?page=1": `<html><body>
<div class="product-item"><a href="/product/1">A</a></div>
<div class="product-card"><a href="/product/1">A again</a></div>
<div class="product-item"><a href="/product/2">B</a></div>
</body></html>`,
	}}

	productsSeen := crawler.NewVisitSet()
	require.True(t, productsSeen.MarkIfNew("https://shop.example.com/product/2"))

	var handled []string
	n, err := newTraverser().Traverse(
		context.Background(), page, cat, crawler.NewStopToken(),
		crawler.NewVisitSet(), productsSeen, collect(&handled),
	)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Equal(t, []string{"https://shop.example.com/product/1"}, handled)
}

func TestExpandInfiniteScrollStopsWhenHeightStabilizes(t *testing.T) {
	t.Parallel()

	page := &fakePage{heights: []int{1000, 2000, 2000}}
	newTraverser().expandInfiniteScroll(context.Background(), page)
	// Attempt 1: 1000 -> 2000 (grew); attempt 2: 2000 -> 2000 (stable).
	require.Equal(t, 2, page.scrolls)
}

func TestPaginatedURL(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   string
		page int
		want string
	}{
		{
			name: "sets page when absent",
			in:   "https://shop.example.com/category/dairy",
			page: 2,
			want: "https://shop.example.com/category/dairy?page=2",
		},
		{
			name: "reuses existing page param",
			in:   "https://shop.example.com/category/dairy?page=7&sort=asc",
			page: 3,
			want: "https://shop.example.com/category/dairy?page=3&sort=asc",
		},
		{
			name: "reuses existing p param",
			in:   "https://shop.example.com/c/9?p=1",
			page: 4,
			want: "https://shop.example.com/c/9?p=4",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := paginatedURL(tc.in, tc.page)
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestHasNextPage(t *testing.T) {
	t.Parallel()

	withNext, err := goquery.NewDocumentFromReader(strings.NewReader(
		`<div class="pagination"><a rel="next" href="?page=2">Next</a></div>`))
	require.NoError(t, err)
	require.True(t, hasNextPage(withNext))

	without, err := goquery.NewDocumentFromReader(strings.NewReader(
		`<div class="pagination"><span class="current">1</span></div>`))
	require.NoError(t, err)
	require.False(t, hasNextPage(without))
}
