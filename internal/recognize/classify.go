package recognize

import (
	"regexp"
	"strings"

	"github.com/shelfscan/shelfscan/internal/crawler"
)

// Keyword sets behind the classification rules. Matching is substring on
// lowercased OCR text, so short tokens need their surrounding punctuation.
var (
	nutritionKeywords = []string{
		"nutrition facts",
		"nutritional information",
		"nutrition information",
		"per 100g",
		"per 100 g",
		"per serving",
		"calories",
		"energy kj",
		"saturated fat",
		"carbohydrate",
	}
	ingredientKeywords = []string{
		"ingredients:",
		"ingredients ",
		"contains:",
		"may contain",
		"allergen",
	}
	barcodeTokens = []string{"ean", "upc", "gtin"}
	frontKeywords = []string{
		"net wt",
		"net weight",
		"fl oz",
		"family size",
		"new recipe",
		"original",
		"premium",
		"since 1",
	}
)

var digitRunRe = regexp.MustCompile(`\d{8,14}`)

type classifyRule struct {
	tag   crawler.ImageTag
	match func(text string) bool
}

// classifyRules is evaluated in order, first match wins. Nutrition panels
// routinely list ingredients below the facts table, so nutrition outranks
// ingredients.
var classifyRules = []classifyRule{
	{crawler.TagNutrition, containsAny(nutritionKeywords)},
	{crawler.TagIngredients, containsAny(ingredientKeywords)},
	{crawler.TagBarcode, hasBarcodeIndicator},
	{crawler.TagFront, containsAny(frontKeywords)},
}

// ClassifyImage assigns the single content tag for an image from its OCR
// text.
func ClassifyImage(ocrText string) crawler.ImageTag {
	text := strings.ToLower(ocrText)
	for _, rule := range classifyRules {
		if rule.match(text) {
			return rule.tag
		}
	}
	return crawler.TagOther
}

func containsAny(keywords []string) func(string) bool {
	return func(text string) bool {
		for _, kw := range keywords {
			if strings.Contains(text, kw) {
				return true
			}
		}
		return false
	}
}

func hasBarcodeIndicator(text string) bool {
	if digitRunRe.MatchString(text) {
		return true
	}
	for _, token := range barcodeTokens {
		if strings.Contains(text, token) {
			return true
		}
	}
	return false
}
