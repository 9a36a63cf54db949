package discovery

import (
	"context"
	"encoding/xml"
	"strings"

	"go.uber.org/zap"

	"github.com/shelfscan/shelfscan/internal/crawler"
)

// sitemapCandidates is the fixed ordered list of sitemap locations probed
// off the site origin. Probing stops once any candidate yields a match.
var sitemapCandidates = []string{
	"/sitemap.xml",
	"/sitemap_index.xml",
	"/sitemap-index.xml",
	"/sitemaps.xml",
	"/sitemap/sitemap.xml",
}

// maxSitemapDepth bounds recursion into nested sitemap indexes.
const maxSitemapDepth = 2

type urlSet struct {
	XMLName xml.Name     `xml:"urlset"`
	URLs    []sitemapLoc `xml:"url"`
}

type sitemapIndex struct {
	XMLName  xml.Name     `xml:"sitemapindex"`
	Sitemaps []sitemapLoc `xml:"sitemap"`
}

type sitemapLoc struct {
	Loc string `xml:"loc"`
}

// fromSitemap probes the candidate sitemap URLs and returns category
// candidates. Failures are soft: an unreachable or malformed candidate just
// moves probing along.
func (d *Discoverer) fromSitemap(ctx context.Context, origin, homepageURL string) []crawler.Category {
	for _, candidate := range sitemapCandidates {
		sitemapURL := origin + candidate
		found := d.collectSitemap(ctx, sitemapURL, homepageURL, 0)
		if len(found) > 0 {
			return found
		}
	}
	return nil
}

func (d *Discoverer) collectSitemap(ctx context.Context, sitemapURL, homepageURL string, depth int) []crawler.Category {
	if depth > maxSitemapDepth {
		return nil
	}

	res, err := d.fetcher.Get(ctx, sitemapURL, nil)
	if err != nil || !res.OK() || len(res.Body) == 0 {
		if err != nil {
			d.logger.Debug("sitemap fetch failed", zap.String("url", sitemapURL), zap.Error(err))
		}
		return nil
	}

	var index sitemapIndex
	if err := xml.Unmarshal(res.Body, &index); err == nil && len(index.Sitemaps) > 0 {
		var out []crawler.Category
		for _, child := range index.Sitemaps {
			if !childSitemapRelevant(child.Loc) {
				continue
			}
			out = append(out, d.collectSitemap(ctx, strings.TrimSpace(child.Loc), homepageURL, depth+1)...)
		}
		return out
	}

	var set urlSet
	if err := xml.Unmarshal(res.Body, &set); err != nil {
		d.logger.Debug("sitemap parse failed", zap.String("url", sitemapURL), zap.Error(err))
		return nil
	}

	var out []crawler.Category
	for _, entry := range set.URLs {
		loc := strings.TrimSpace(entry.Loc)
		if loc == "" || !crawler.LooksLikeCategoryURL(loc) {
			continue
		}
		out = append(out, crawler.Category{
			URL:       loc,
			Name:      nameFromURL(loc),
			ParentURL: homepageURL,
			Depth:     1,
			Source:    crawler.SourceSitemap,
		})
	}
	return out
}

// childSitemapRelevant keeps nested sitemaps that plausibly list catalog
// pages.
func childSitemapRelevant(loc string) bool {
	lower := strings.ToLower(loc)
	return strings.Contains(lower, "product") || strings.Contains(lower, "category")
}
