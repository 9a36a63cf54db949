package recognize

import (
	"regexp"
	"strings"
)

// fieldExtractor tries its patterns in order and keeps the first capture.
// Patterns without a capture group store the whole match.
type fieldExtractor struct {
	name     string
	patterns []*regexp.Regexp
}

var fieldExtractors = []fieldExtractor{
	{
		name: "net_weight",
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)net\s*(?:wt|weight)\.?\s*:?\s*([0-9]+(?:[.,][0-9]+)?\s*(?:kg|g|lbs?|fl\s*oz|oz|ml|l)\b)`),
			regexp.MustCompile(`(?i)\b([0-9]+(?:[.,][0-9]+)?\s*(?:kg|g|ml|l|fl\s*oz|oz))\b`),
		},
	},
	{
		name: "ingredients",
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)ingredients\s*:\s*([^\n]{8,})`),
			regexp.MustCompile(`(?i)contains\s*:\s*([^\n]{8,})`),
		},
	},
	{
		name: "origin",
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)(?:product|produce)\s+of\s+([A-Za-z][A-Za-z ]{1,39})`),
			regexp.MustCompile(`(?i)made\s+in\s+([A-Za-z][A-Za-z ]{1,39})`),
			regexp.MustCompile(`(?i)country\s+of\s+origin\s*:?\s*([A-Za-z][A-Za-z ]{1,39})`),
		},
	},
	{
		name: "manufacturer",
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)(?:manufactured|produced|packed)\s+(?:by|for)\s*:?\s*([^\n.]{3,60})`),
			regexp.MustCompile(`(?i)distributed\s+by\s*:?\s*([^\n.]{3,60})`),
		},
	},
	{
		name: "storage",
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)(?:store|keep)\s+(?:in|at|away|refrigerated|frozen|cool)[^\n.]{0,80}`),
			regexp.MustCompile(`(?i)refrigerate\s+after\s+opening`),
		},
	},
	{
		name: "halal",
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\bhalal\b`),
		},
	},
	{
		name: "kosher",
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\bkosher\b`),
		},
	},
	{
		name: "expiry",
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)(?:best\s+before|use\s+by|exp(?:iry|\.)?(?:\s+date)?)\s*:?\s*([0-9A-Za-z/. -]{4,20})`),
		},
	},
	{
		name: "potential_barcode",
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`\b(\d{13})\b`),
			regexp.MustCompile(`\b(\d{12})\b`),
			regexp.MustCompile(`\b(\d{8})\b`),
			regexp.MustCompile(`\b(\d{14})\b`),
		},
	},
}

// booleanFields hold "true" rather than the matched token.
var booleanFields = map[string]bool{"halal": true, "kosher": true}

// ParseFields runs every extractor over the OCR text. Extractors are
// independent: one failing to match never affects another.
func ParseFields(ocrText string) map[string]string {
	fields := make(map[string]string)
	for _, ex := range fieldExtractors {
		for _, re := range ex.patterns {
			m := re.FindStringSubmatch(ocrText)
			if m == nil {
				continue
			}
			value := m[0]
			if len(m) > 1 {
				value = m[1]
			}
			if booleanFields[ex.name] {
				value = "true"
			}
			fields[ex.name] = strings.TrimSpace(value)
			break
		}
	}
	return fields
}

// MergeFields folds src into dst with first-seen-wins semantics: a key set
// by an earlier image keeps its value.
func MergeFields(dst, src map[string]string) map[string]string {
	if dst == nil {
		dst = make(map[string]string, len(src))
	}
	for k, v := range src {
		if _, ok := dst[k]; !ok {
			dst[k] = v
		}
	}
	return dst
}
