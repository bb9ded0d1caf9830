// Package resolve finds the competitor URL of a (product, domain) pair.
package resolve

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/price-reconciler/pkg/models"
	"github.com/Sriram-PR/price-reconciler/pkg/search"
)

// Lookup is the read side of the cache store
type Lookup interface {
	LookupVerification(product, domain string) (models.CacheEntry, bool, error)
	LookupURL(product, domain string) (models.CacheEntry, bool, error)
}

// Resolution is the outcome of Resolve. URL is empty whenever Status is set
type Resolution struct {
	URL    string
	Source models.Source
	Status models.Status
}

// Found reports whether a URL was resolved
func (r Resolution) Found() bool { return r.URL != "" }

// Resolver checks the verification queue, then the URL cache, then search
type Resolver struct {
	searcher search.Searcher
	log      *logrus.Entry
}

// New creates a Resolver. searcher may be nil, in which case every cache miss fails as a search error
func New(searcher search.Searcher, log *logrus.Entry) *Resolver {
	return &Resolver{searcher: searcher, log: log}
}

// Resolve never returns an error; every failure is folded into the status
func (r *Resolver) Resolve(ctx context.Context, lookup Lookup, product, domain string) Resolution {
	pairLog := r.log.WithFields(logrus.Fields{"product": product, "domain": domain, "stage": "resolve"})

	entry, found, err := lookup.LookupVerification(product, domain)
	if err != nil {
		pairLog.Errorf("Verification lookup failed: %v", err)
		return Resolution{Status: models.Internal(models.ReasonLocalLookupError, err.Error())}
	}
	if found {
		if entry.URL != "" {
			pairLog.WithField("url", entry.URL).Debug(models.SourceVerification.Label())
			return Resolution{URL: entry.URL, Source: models.SourceVerification}
		}
		pairLog.Debug("Pair awaits manual verification without URL, skipping search")
		return Resolution{Status: models.VerificationPending()}
	}

	entry, found, err = lookup.LookupURL(product, domain)
	if err != nil {
		pairLog.Errorf("URL cache lookup failed: %v", err)
		return Resolution{Status: models.Internal(models.ReasonLocalLookupError, err.Error())}
	}
	if found && entry.URL != "" {
		pairLog.WithField("url", entry.URL).Debug(models.SourceCache.Label())
		return Resolution{URL: entry.URL, Source: models.SourceCache}
	}

	if r.searcher == nil {
		return Resolution{Status: models.SearchFailed("no search provider configured")}
	}
	url, err := r.searcher.Search(ctx, product, domain)
	if err != nil {
		pairLog.Warnf("Search failed: %v", err)
		return Resolution{Status: models.SearchFailed(err.Error())}
	}
	if url == "" {
		pairLog.Info("Search found no URL")
		return Resolution{Status: models.NoURL()}
	}
	pairLog.WithField("url", url).Info(models.SourceSearch.Label())
	return Resolution{URL: url, Source: models.SourceSearch}
}
