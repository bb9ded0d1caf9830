package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/price-reconciler/pkg/config"
	"github.com/Sriram-PR/price-reconciler/pkg/fetch"
	"github.com/Sriram-PR/price-reconciler/pkg/models"
	"github.com/Sriram-PR/price-reconciler/pkg/utils"
)

// HTTPExtractor fetches product pages with a plain GET and reads them with goquery.
// It never sleeps; pacing belongs to the caller.
type HTTPExtractor struct {
	fetcher    *fetch.Fetcher
	rules      map[string]Rules
	userAgents map[string]string
	log        *logrus.Entry
}

// NewHTTPExtractor builds an extractor for the non-browser competitors of appCfg
func NewHTTPExtractor(fetcher *fetch.Fetcher, appCfg config.AppConfig, log *logrus.Entry) *HTTPExtractor {
	e := &HTTPExtractor{
		fetcher:    fetcher,
		rules:      make(map[string]Rules, len(appCfg.Competitors)),
		userAgents: make(map[string]string, len(appCfg.Competitors)),
		log:        log,
	}
	for _, comp := range appCfg.Competitors {
		e.rules[comp.Domain] = RulesFor(comp)
		e.userAgents[comp.Domain] = config.GetEffectiveUserAgent(comp, appCfg)
	}
	return e
}

// Extract implements Extractor.
// HTTP error answers map to their status code, transport failures to RequestError,
// anything else to UnknownError. A 200 page with missing fields keeps status 200.
func (e *HTTPExtractor) Extract(ctx context.Context, rawURL, domain string) (out models.Extraction) {
	pageLog := e.log.WithFields(logrus.Fields{"url": rawURL, "domain": domain})
	defer func() {
		if r := recover(); r != nil {
			pageLog.Errorf("PANIC during extraction: %v", r)
			out = models.Extraction{Status: models.Internal(models.ReasonUnknownError, fmt.Sprint(r))}
		}
	}()

	rules, ok := e.rules[domain]
	if !ok {
		pageLog.Error("No selector rules for domain")
		return models.Extraction{Status: models.Internal(models.ReasonUnknownError, "no selector rules for "+domain)}
	}

	page, err := e.fetcher.Fetch(ctx, rawURL, e.userAgents[domain])
	if err != nil {
		if page != nil && !errors.Is(err, utils.ErrResponseBodyRead) {
			pageLog.Warnf("[HTTP error] %v", err)
			return models.Extraction{Status: models.HTTPStatus(page.StatusCode)}
		}
		if errors.Is(err, utils.ErrRequestCreation) {
			pageLog.Errorf("[Scrape error] %v", err)
			return models.Extraction{Status: models.Internal(models.ReasonUnknownError, err.Error())}
		}
		pageLog.Warnf("[Request error] %v", err)
		return models.Extraction{Status: models.Internal(models.ReasonRequestError, err.Error())}
	}

	name, price, err := rules.ApplyHTML(bytes.NewReader(page.Body))
	if err != nil {
		pageLog.Errorf("[Scrape error] %v", err)
		return models.Extraction{Status: models.Internal(models.ReasonUnknownError, err.Error())}
	}
	if name == "" || price == nil {
		pageLog.WithFields(logrus.Fields{"name": name, "has_price": price != nil}).Warn("Product fields missing on page")
	}
	return models.Extraction{Name: name, Price: price, Status: models.HTTPStatus(page.StatusCode)}
}
