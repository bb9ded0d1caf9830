package search

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"google.golang.org/api/customsearch/v1"
	"google.golang.org/api/option"

	"github.com/Sriram-PR/price-reconciler/pkg/config"
	"github.com/Sriram-PR/price-reconciler/pkg/utils"
)

// GoogleClient queries the Google Programmable Search (Custom Search JSON) API
type GoogleClient struct {
	svc     *customsearch.Service
	cx      string
	results int64
	timeout time.Duration
	log     *logrus.Entry
}

// NewGoogleClient creates a GoogleClient. cfg.Endpoint overrides the API base URL (tests)
func NewGoogleClient(ctx context.Context, cfg config.SearchConfig, log *logrus.Entry) (*GoogleClient, error) {
	if cfg.CSEID == "" {
		return nil, utils.WrapErrorf(utils.ErrConfigValidation, "google search needs a search engine id")
	}
	opts := []option.ClientOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}
	svc, err := customsearch.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: create customsearch service: %w", utils.ErrSearch, err)
	}
	results := int64(cfg.Results)
	if results <= 0 || results > 10 {
		results = 10 // API maximum per page
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &GoogleClient{
		svc:     svc,
		cx:      cfg.CSEID,
		results: results,
		timeout: timeout,
		log:     log.WithField("provider", "google"),
	}, nil
}

// Search implements Searcher
func (g *GoogleClient) Search(ctx context.Context, product, domain string) (string, error) {
	q := Query(product, domain)
	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	resp, err := g.svc.Cse.List().Cx(g.cx).Q(q).Num(g.results).Context(callCtx).Do()
	if err != nil {
		return "", fmt.Errorf("%w: %w", utils.ErrSearch, err)
	}
	links := make([]string, 0, len(resp.Items))
	for _, item := range resp.Items {
		links = append(links, item.Link)
	}
	found := firstOnDomain(links, domain)
	g.log.WithFields(logrus.Fields{"query": q, "results": len(links), "url": found}).Debug("Search done")
	return found, nil
}
