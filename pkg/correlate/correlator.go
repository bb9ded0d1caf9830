// Package correlate turns terminal pair results into report rows and keeps the
// cache collections in step: successes confirm URLs, failures queue manual review.
package correlate

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/price-reconciler/pkg/models"
)

// Mutator is the write side of the cache store
type Mutator interface {
	UpsertURL(product, domain, url string) bool
	RemoveVerification(product, domain string) bool
	AddVerification(product, domain, url string) bool
}

// Correlator must be used from a single goroutine
type Correlator struct {
	store Mutator
	log   *logrus.Entry
}

// New creates a Correlator writing to store
func New(store Mutator, log *logrus.Entry) *Correlator {
	return &Correlator{store: store, log: log}
}

// succeeded requires a 200 with both a name and a price
func succeeded(res models.ScrapeResult) bool {
	return res.Status.IsSuccess() && res.CompetitorName != "" && res.CompetitorPrice != nil
}

// Process handles one terminal result. It returns the report row for a success
// (nil otherwise) and the final status, which becomes ProcessingError when
// handling a success fails.
func (c *Correlator) Process(res models.ScrapeResult, myPrice float64) (*models.ReportRow, models.Status) {
	pairLog := c.log.WithFields(logrus.Fields{"product": res.Product, "domain": res.Domain, "stage": "correlate"})
	status := res.Status

	if succeeded(res) {
		row, err := c.processSuccess(res, myPrice)
		if err == nil {
			pairLog.WithFields(logrus.Fields{"similarity": row.NameSimilarity, "price_diff": row.PriceDiff.String()}).
				Debug("Success recorded")
			return row, status
		}
		pairLog.Errorf("Handling success failed: %v", err)
		status = models.Internal(models.ReasonProcessingError, err.Error())
	}

	pairLog.WithFields(logrus.Fields{"status": status.String(), "url": res.URL}).Warn("Pair failed or incomplete")
	if queuesVerification(status) {
		if c.store.AddVerification(res.Product, res.Domain, res.URL) {
			pairLog.Debug("Queued for manual verification")
		}
	}
	return nil, status
}

// queuesVerification excludes pairs already parked and pairs cut short by a stopped run
func queuesVerification(s models.Status) bool {
	return s.Kind != models.StatusVerificationPending && s.Kind != models.StatusCancelled
}

func (c *Correlator) processSuccess(res models.ScrapeResult, myPrice float64) (row *models.ReportRow, err error) {
	defer func() {
		if r := recover(); r != nil {
			row, err = nil, fmt.Errorf("panic: %v", r)
		}
	}()

	comp := *res.CompetitorPrice
	row = &models.ReportRow{
		MyProduct:             res.Product,
		Competitor:            res.Domain,
		CompetitorProductName: res.CompetitorName,
		NameSimilarity:        Similarity(res.Product, res.CompetitorName),
		MyPrice:               myPrice,
		CompetitorPrice:       comp,
		IsCheaper:             IsCheaper(myPrice, comp),
		PriceDiff:             PriceDiff(myPrice, comp),
		URL:                   res.URL,
	}
	c.store.UpsertURL(res.Product, res.Domain, res.URL)
	c.store.RemoveVerification(res.Product, res.Domain)
	return row, nil
}
