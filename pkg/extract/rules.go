// Package extract reads competitor product pages into a name, a price and a status.
package extract

import (
	"context"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/Sriram-PR/price-reconciler/pkg/config"
	"github.com/Sriram-PR/price-reconciler/pkg/models"
	"github.com/Sriram-PR/price-reconciler/pkg/utils"
)

// Extractor reads one product page of a competitor. Implementations never return an error:
// every failure is folded into the Extraction status.
type Extractor interface {
	Extract(ctx context.Context, rawURL, domain string) models.Extraction
}

// Rules are the CSS selectors used to read one competitor's product page
type Rules struct {
	Name  []string
	Price []string
}

// RulesFor builds the selector rules of a competitor
func RulesFor(comp config.CompetitorConfig) Rules {
	return Rules{Name: comp.NameSelectors, Price: comp.PriceSelectors}
}

// Apply reads name and price from a parsed document.
// The first name selector with non-empty text wins; the first price selector whose text parses wins.
func (r Rules) Apply(doc *goquery.Document) (name string, price *float64) {
	for _, sel := range r.Name {
		if text := selectionText(doc.Find(sel)); text != "" {
			name = text
			break
		}
	}
	for _, sel := range r.Price {
		text := selectionText(doc.Find(sel))
		if text == "" {
			continue
		}
		if v, ok := utils.ParsePrice(text); ok {
			price = &v
			break
		}
	}
	return name, price
}

// ApplyHTML parses r and applies the rules
func (r Rules) ApplyHTML(body io.Reader) (name string, price *float64, err error) {
	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return "", nil, utils.WrapErrorf(utils.ErrParsing, "parse HTML: %v", err)
	}
	name, price = r.Apply(doc)
	return name, price, nil
}

func selectionText(s *goquery.Selection) string {
	if s.Length() == 0 {
		return ""
	}
	return strings.Join(strings.Fields(s.First().Text()), " ")
}
