// Package search finds a competitor product URL through a web search API.
package search

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/price-reconciler/pkg/config"
	"github.com/Sriram-PR/price-reconciler/pkg/parse"
	"github.com/Sriram-PR/price-reconciler/pkg/utils"
)

// Searcher returns the best URL for a product on a competitor domain.
// An empty URL with a nil error means the search found nothing.
type Searcher interface {
	Search(ctx context.Context, product, domain string) (string, error)
}

// Query builds the site-restricted query sent to the search provider
func Query(product, domain string) string {
	return fmt.Sprintf("%s site:%s", strings.TrimSpace(product), strings.TrimSpace(domain))
}

// New builds the Searcher selected by cfg.Provider
func New(ctx context.Context, cfg config.SearchConfig, client *http.Client, log *logrus.Entry) (Searcher, error) {
	switch cfg.Provider {
	case "", "serper":
		return NewSerperClient(cfg, client, log), nil
	case "google":
		g, err := NewGoogleClient(ctx, cfg, log)
		if err != nil {
			return nil, err
		}
		return g, nil
	}
	return nil, utils.WrapErrorf(utils.ErrConfigValidation, "unknown search provider '%s'", cfg.Provider)
}

// firstOnDomain picks the first link served by domain or one of its subdomains, normalized.
// Links on other hosts are skipped even though the query is site-restricted.
func firstOnDomain(links []string, domain string) string {
	for _, link := range links {
		normalized, u, err := parse.ParseProductURL(link)
		if err != nil {
			continue
		}
		if parse.OnDomain(u, domain) {
			return normalized
		}
	}
	return ""
}
