package extract

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/shelfscan/shelfscan/internal/crawler"
)

// structuredExtract parses every ld+json script on the page and returns the
// first Product node found, walking @graph wrappers and arrays.
func structuredExtract(doc *goquery.Document, pageURL string) partial {
	var p partial
	doc.Find("script[type='application/ld+json']").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		var node any
		if err := json.Unmarshal([]byte(s.Text()), &node); err != nil {
			return true
		}
		if product, ok := findProductNode(node, 0); ok {
			p = productFromJSON(product, pageURL)
			return false
		}
		return true
	})
	return p
}

const maxJSONDepth = 6

// findProductNode walks a decoded JSON-LD tree looking for a node whose
// @type is Product.
func findProductNode(node any, depth int) (map[string]any, bool) {
	if depth > maxJSONDepth {
		return nil, false
	}
	switch v := node.(type) {
	case map[string]any:
		if isProductType(v["@type"]) {
			return v, true
		}
		for _, key := range []string{"@graph", "mainEntity", "itemListElement", "item"} {
			if child, ok := v[key]; ok {
				if product, found := findProductNode(child, depth+1); found {
					return product, true
				}
			}
		}
	case []any:
		for _, item := range v {
			if product, found := findProductNode(item, depth+1); found {
				return product, true
			}
		}
	}
	return nil, false
}

func isProductType(t any) bool {
	switch v := t.(type) {
	case string:
		return strings.EqualFold(v, "Product")
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok && strings.EqualFold(s, "Product") {
				return true
			}
		}
	}
	return false
}

// productFromJSON extracts the fields shared by JSON-LD Product nodes and
// the product objects found in intercepted API payloads.
func productFromJSON(node map[string]any, pageURL string) partial {
	p := partial{
		Name:        jsonString(node, "name", "title", "product_name", "productName"),
		SKU:         jsonString(node, "sku", "gtin13", "gtin", "mpn", "id", "productId", "product_id"),
		Variant:     jsonString(node, "variant", "size", "weight", "packageSize"),
		Description: jsonString(node, "description"),
		Brand:       nameOf(firstOf(node, "brand", "manufacturer")),
		Images:      jsonImages(node, pageURL),
	}

	offer := offerOf(node)
	if offer != nil {
		if raw := jsonString(offer, "price", "lowPrice", "amount"); raw != "" {
			p.Price, p.Currency = parsePrice(raw)
		}
		if cur := jsonString(offer, "priceCurrency", "currency"); cur != "" {
			p.Currency = strings.ToUpper(cur)
		}
		p.Availability = availabilityOf(jsonString(offer, "availability", "availabilityStatus", "stock_status"))
	}
	if p.Price == nil {
		if raw := jsonString(node, "price", "current_price", "currentPrice"); raw != "" {
			p.Price, p.Currency = parsePrice(raw)
		}
		if cur := jsonString(node, "priceCurrency", "currency"); cur != "" {
			p.Currency = strings.ToUpper(cur)
		}
	}
	return p
}

// offerOf unwraps offers, which may be an object, an array of objects, or
// absent with price fields directly on the product node.
func offerOf(node map[string]any) map[string]any {
	switch v := node["offers"].(type) {
	case map[string]any:
		return v
	case []any:
		for _, item := range v {
			if m, ok := item.(map[string]any); ok {
				return m
			}
		}
	}
	return nil
}

// availabilityOf collapses schema.org availability URLs to their short form.
func availabilityOf(raw string) string {
	if raw == "" {
		return ""
	}
	if i := strings.LastIndex(raw, "/"); i >= 0 {
		raw = raw[i+1:]
	}
	return raw
}

// jsonString returns the first present key as a trimmed string, converting
// numeric values since API payloads often carry numbers where JSON-LD has
// strings.
func jsonString(node map[string]any, keys ...string) string {
	for _, key := range keys {
		switch v := node[key].(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		}
	}
	return ""
}

func firstOf(node map[string]any, keys ...string) any {
	for _, key := range keys {
		if v, ok := node[key]; ok {
			return v
		}
	}
	return nil
}

// nameOf handles brand values that are either plain strings or objects with
// a name field.
func nameOf(v any) string {
	switch b := v.(type) {
	case string:
		return strings.TrimSpace(b)
	case map[string]any:
		return jsonString(b, "name")
	}
	return ""
}

// jsonImages accepts image values as a string, a list, or objects with a
// url field.
func jsonImages(node map[string]any, pageURL string) []string {
	var out []string
	add := func(raw string) {
		if resolved := crawler.ResolveURL(pageURL, raw); resolved != "" {
			out = append(out, resolved)
		}
	}
	collect := func(v any) {
		switch img := v.(type) {
		case string:
			add(img)
		case map[string]any:
			add(jsonString(img, "url", "contentUrl", "src"))
		}
	}
	for _, key := range []string{"image", "images", "imageUrl", "image_url"} {
		switch v := node[key].(type) {
		case string, map[string]any:
			collect(v)
		case []any:
			for _, item := range v {
				collect(item)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return out
}
