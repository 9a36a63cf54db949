package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/shelfscan/shelfscan/internal/crawler"
)

// Fallback selector lists, tried in order until one matches. These cover
// the microdata attributes and class names common across storefront
// platforms; site-specific selectors are deliberately out of scope.
var (
	nameSelectors = []string{
		"h1[itemprop='name']",
		"h1.product-title",
		".product-name h1",
		".product-title",
		"h1",
	}
	brandSelectors = []string{
		"[itemprop='brand']",
		".product-brand",
		".brand",
	}
	priceSelectors = []string{
		"[itemprop='price']",
		".product-price",
		".current-price",
		".price",
		"span.amount",
	}
	descriptionSelectors = []string{
		"[itemprop='description']",
		".product-description",
		"#description",
		".description",
	}
	skuSelectors = []string{
		"[itemprop='sku']",
		"[data-sku]",
		".sku",
	}
	variantSelectors = []string{
		".product-variant",
		".variant-title",
		"[data-variant-title]",
	}
	imageSelectors = []string{
		".product-gallery img",
		".product-image img",
		"[itemprop='image']",
		"img[src*='product']",
	}
	breadcrumbSelectors = []string{
		".breadcrumb a",
		"nav.breadcrumbs a",
		".breadcrumbs a",
	}
)

func domExtract(doc *goquery.Document, pageURL string) partial {
	p := partial{
		Name:        firstText(doc, nameSelectors),
		Brand:       firstText(doc, brandSelectors),
		SKU:         skuFromDOM(doc),
		Variant:     firstText(doc, variantSelectors),
		Description: firstText(doc, descriptionSelectors),
		Breadcrumb:  breadcrumbFromDOM(doc),
		Images:      imagesFromDOM(doc, pageURL),
	}
	if raw := priceFromDOM(doc); raw != "" {
		p.Price, p.Currency = parsePrice(raw)
	}
	return p
}

// firstText returns the trimmed text of the first element matched by the
// selector list.
func firstText(doc *goquery.Document, selectors []string) string {
	for _, sel := range selectors {
		if text := strings.TrimSpace(doc.Find(sel).First().Text()); text != "" {
			return text
		}
	}
	return ""
}

// priceFromDOM prefers microdata content attributes over display text so a
// formatted price span does not shadow the machine value on the same node.
func priceFromDOM(doc *goquery.Document) string {
	for _, sel := range priceSelectors {
		node := doc.Find(sel).First()
		if node.Length() == 0 {
			continue
		}
		if content, ok := node.Attr("content"); ok && strings.TrimSpace(content) != "" {
			return strings.TrimSpace(content)
		}
		if text := strings.TrimSpace(node.Text()); text != "" {
			return text
		}
	}
	return ""
}

func skuFromDOM(doc *goquery.Document) string {
	for _, sel := range skuSelectors {
		node := doc.Find(sel).First()
		if node.Length() == 0 {
			continue
		}
		if v, ok := node.Attr("data-sku"); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
		if text := strings.TrimSpace(node.Text()); text != "" {
			return text
		}
	}
	return ""
}

func breadcrumbFromDOM(doc *goquery.Document) []string {
	for _, sel := range breadcrumbSelectors {
		var crumbs []string
		doc.Find(sel).Each(func(_ int, s *goquery.Selection) {
			if text := strings.TrimSpace(s.Text()); text != "" {
				crumbs = append(crumbs, text)
			}
		})
		if len(crumbs) > 0 {
			return crumbs
		}
	}
	return nil
}

func imagesFromDOM(doc *goquery.Document, pageURL string) []string {
	var images []string
	seen := make(map[string]struct{})

	add := func(raw string) {
		resolved := crawler.ResolveURL(pageURL, raw)
		if resolved == "" {
			return
		}
		if _, ok := seen[resolved]; ok {
			return
		}
		seen[resolved] = struct{}{}
		images = append(images, resolved)
	}

	if og, ok := doc.Find("meta[property='og:image']").First().Attr("content"); ok {
		add(og)
	}
	for _, sel := range imageSelectors {
		doc.Find(sel).Each(func(_ int, s *goquery.Selection) {
			if src, ok := s.Attr("data-src"); ok && src != "" {
				add(src)
				return
			}
			if src, ok := s.Attr("src"); ok && src != "" {
				add(src)
			}
		})
		if len(images) > 1 {
			break
		}
	}
	return images
}
