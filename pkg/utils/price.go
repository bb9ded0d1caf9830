package utils

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	nonPriceChars = regexp.MustCompile(`[^\d,.]`)
	priceNumber   = regexp.MustCompile(`\d+(\.\d+)?`)
)

// ParsePrice extracts the first decimal number from scraped price text.
// "19,90 €" -> 19.9. Returns false when no number is present.
func ParsePrice(text string) (float64, bool) {
	cleaned := nonPriceChars.ReplaceAllString(text, "")
	cleaned = strings.ReplaceAll(cleaned, ",", ".")
	match := priceNumber.FindString(cleaned)
	if match == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
