package extract

import (
	"regexp"
	"strconv"
	"strings"
)

var priceRe = regexp.MustCompile(`(?i)(USD|EUR|GBP|CAD|AUD|[$€£¥₹])?\s*([0-9]+(?:[.,][0-9]{1,2})?)`)

var currencySymbols = map[string]string{
	"$": "USD",
	"€": "EUR",
	"£": "GBP",
	"¥": "JPY",
	"₹": "INR",
}

// parsePrice pulls the first monetary amount out of raw display text.
// Comma decimals are accepted ("3,99" parses as 3.99). When an amount is
// found with no symbol or code, the currency defaults to USD.
func parsePrice(raw string) (*float64, string) {
	m := priceRe.FindStringSubmatch(raw)
	if m == nil {
		return nil, ""
	}

	number := strings.ReplaceAll(m[2], ",", ".")
	value, err := strconv.ParseFloat(number, 64)
	if err != nil {
		return nil, ""
	}

	currency := "USD"
	if sym := m[1]; sym != "" {
		if iso, ok := currencySymbols[sym]; ok {
			currency = iso
		} else {
			currency = strings.ToUpper(sym)
		}
	}
	return &value, currency
}
