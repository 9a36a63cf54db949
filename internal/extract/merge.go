package extract

// partial is one source's contribution to a product record. Empty strings
// and nil pointers mean the source had nothing for that field.
type partial struct {
	Name         string
	Brand        string
	SKU          string
	Variant      string
	Description  string
	Availability string
	Currency     string
	Price        *float64
	Breadcrumb   []string
	Images       []string
}

// overlay returns base with every non-empty field of over written on top.
// Lists override whole like scalar fields do; nothing is concatenated.
func overlay(base, over partial) partial {
	out := base
	if over.Name != "" {
		out.Name = over.Name
	}
	if over.Brand != "" {
		out.Brand = over.Brand
	}
	if over.SKU != "" {
		out.SKU = over.SKU
	}
	if over.Variant != "" {
		out.Variant = over.Variant
	}
	if over.Description != "" {
		out.Description = over.Description
	}
	if over.Availability != "" {
		out.Availability = over.Availability
	}
	if over.Currency != "" {
		out.Currency = over.Currency
	}
	if over.Price != nil {
		out.Price = over.Price
	}
	if len(over.Breadcrumb) > 0 {
		out.Breadcrumb = over.Breadcrumb
	}
	if len(over.Images) > 0 {
		out.Images = over.Images
	}
	return out
}
