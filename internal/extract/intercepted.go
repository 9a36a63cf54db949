package extract

import "encoding/json"

// Keys under which storefront APIs commonly nest the product object.
var interceptedProductKeys = []string{"product", "item", "data"}

// interceptedExtract scans captured XHR/fetch response bodies for a product
// object. The first body that yields one wins; later responses on the same
// page are usually recommendations or analytics.
func interceptedExtract(bodies [][]byte, pageURL string) partial {
	for _, body := range bodies {
		var node any
		if err := json.Unmarshal(body, &node); err != nil {
			continue
		}
		if product, ok := interceptedProductNode(node); ok {
			p := productFromJSON(product, pageURL)
			if p.Name != "" || p.SKU != "" || p.Price != nil {
				return p
			}
		}
	}
	return partial{}
}

func interceptedProductNode(node any) (map[string]any, bool) {
	root, ok := node.(map[string]any)
	if !ok {
		return nil, false
	}
	for _, key := range interceptedProductKeys {
		if child, ok := root[key].(map[string]any); ok {
			// One level of data.product nesting is common.
			for _, inner := range interceptedProductKeys[:2] {
				if grandchild, ok := child[inner].(map[string]any); ok {
					return grandchild, true
				}
			}
			return child, true
		}
	}
	// Flat payloads put the product fields at the top level.
	if _, hasName := root["name"]; hasName {
		if _, hasPrice := root["price"]; hasPrice {
			return root, true
		}
	}
	return nil, false
}
