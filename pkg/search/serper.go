package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/price-reconciler/pkg/config"
	"github.com/Sriram-PR/price-reconciler/pkg/utils"
)

// DefaultSerperEndpoint is the Serper web search endpoint
const DefaultSerperEndpoint = "https://google.serper.dev/search"

// SerperClient queries the Serper API
type SerperClient struct {
	client   *http.Client
	endpoint string
	apiKey   string
	results  int
	log      *logrus.Entry
}

type serperRequest struct {
	Q   string `json:"q"`
	Num int    `json:"num,omitempty"`
}

type serperResponse struct {
	Organic []struct {
		Title string `json:"title"`
		Link  string `json:"link"`
	} `json:"organic"`
}

// NewSerperClient creates a SerperClient. The shared HTTP client is reused; cfg.Timeout bounds each call.
func NewSerperClient(cfg config.SearchConfig, client *http.Client, log *logrus.Entry) *SerperClient {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = DefaultSerperEndpoint
	}
	c := *client
	if cfg.Timeout > 0 {
		c.Timeout = cfg.Timeout
	}
	return &SerperClient{
		client:   &c,
		endpoint: endpoint,
		apiKey:   cfg.APIKey,
		results:  cfg.Results,
		log:      log.WithField("provider", "serper"),
	}
}

// Search implements Searcher
func (s *SerperClient) Search(ctx context.Context, product, domain string) (string, error) {
	if s.apiKey == "" {
		return "", utils.WrapErrorf(utils.ErrSearch, "serper API key not configured")
	}
	q := Query(product, domain)
	body, err := json.Marshal(serperRequest{Q: q, Num: s.results})
	if err != nil {
		return "", fmt.Errorf("%w: encode request: %w", utils.ErrSearch, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: %w", utils.ErrRequestCreation, err)
	}
	req.Header.Set("X-API-KEY", s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %w", utils.ErrSearch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", utils.WrapErrorf(utils.ErrSearch, "serper returned %d: %s", resp.StatusCode, bytes.TrimSpace(snippet))
	}

	var parsed serperResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("%w: decode response: %w", utils.ErrSearch, err)
	}

	links := make([]string, 0, len(parsed.Organic))
	for _, r := range parsed.Organic {
		links = append(links, r.Link)
	}
	found := firstOnDomain(links, domain)
	s.log.WithFields(logrus.Fields{"query": q, "results": len(links), "url": found}).Debug("Search done")
	return found, nil
}
