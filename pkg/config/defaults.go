package config

// DefaultUserAgent is sent to competitor sites unless overridden
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

// DefaultSimilarityThreshold flags report rows whose product names look unrelated
const DefaultSimilarityThreshold = 0.55

// DefaultCompetitors returns the built-in competitor set used when the config lists none
func DefaultCompetitors() []CompetitorConfig {
	return []CompetitorConfig{
		{
			Domain:         "lepetitvapoteur.com",
			Browser:        true,
			NameSelectors:  []string{"h1.product-title span"},
			PriceSelectors: []string{"span.our_price_display", "span#old_price_display"},
			WaitSelector:   "h1.product-title span",
		},
		{
			Domain:         "taklope.com",
			NameSelectors:  []string{"h1.c-pdt__title"},
			PriceSelectors: []string{"div.product-prices span.c-price--old", "span.c-price--current"},
		},
		{
			Domain:         "kumulusvape.fr",
			NameSelectors:  []string{"h1#h1_title"},
			PriceSelectors: []string{"div.price span#old_price_display", "span#our_price_display"},
		},
		{
			Domain:         "cigaretteelec.fr",
			NameSelectors:  []string{"div.notranslate span.name"},
			PriceSelectors: []string{"div#reduction_display:not(.o-0) span#old_price", "span#our_price_display"},
		},
	}
}
