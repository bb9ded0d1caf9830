package models

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// Product is one catalog line: a product name and the merchant's own price
type Product struct {
	Name    string
	MyPrice float64
}

// IndexKey builds the normalized composite key used for every cache lookup
func IndexKey(product, domain string) string {
	return strings.ToLower(strings.TrimSpace(product)) + "__" + strings.ToLower(strings.TrimSpace(domain))
}

// Collection names a tabular resource mirrored between the local cache and the remote store
type Collection string

const (
	CollectionURLs         Collection = "products_url"          // Confirmed competitor URLs
	CollectionVerification Collection = "verification_manuelle" // Pairs awaiting manual review
)

// Column names of the remote collections
const (
	ColURLProduct = "NomProduit"
	ColURLDomain  = "CompetitorDomain"
	ColURLValue   = "URLConcurrent"

	ColVerifProduct = "MonNomProduit"
	ColVerifDomain  = "Concurrent"
	ColVerifURL     = "URLConcurrent"
)

// Columns returns the required columns of the collection, in canonical order
func (c Collection) Columns() []string {
	switch c {
	case CollectionURLs:
		return []string{ColURLProduct, ColURLDomain, ColURLValue}
	case CollectionVerification:
		return []string{ColVerifProduct, ColVerifDomain, ColVerifURL}
	}
	return nil
}

// AllCollections lists the collections in flush order
func AllCollections() []Collection {
	return []Collection{CollectionURLs, CollectionVerification}
}

// Sheet is a header plus string rows, the exchange format with the remote store
type Sheet struct {
	Header []string   `json:"header"`
	Rows   [][]string `json:"rows"`
}

// ColumnIndex returns the index of the named column or -1
func (s *Sheet) ColumnIndex(name string) int {
	if s == nil {
		return -1
	}
	for i, h := range s.Header {
		if strings.TrimSpace(h) == name {
			return i
		}
	}
	return -1
}

// Clone returns a deep copy
func (s *Sheet) Clone() *Sheet {
	if s == nil {
		return nil
	}
	out := &Sheet{Header: append([]string(nil), s.Header...), Rows: make([][]string, len(s.Rows))}
	for i, r := range s.Rows {
		out.Rows[i] = append([]string(nil), r...)
	}
	return out
}

// Values returns header and rows as one matrix (header first)
func (s *Sheet) Values() [][]string {
	out := make([][]string, 0, len(s.Rows)+1)
	out = append(out, s.Header)
	return append(out, s.Rows...)
}

// CacheEntry is a row of either collection. URL may be empty for verification entries
type CacheEntry struct {
	Product string `json:"product"`
	Domain  string `json:"domain"`
	URL     string `json:"url,omitempty"`
}

// Extraction is what an extractor returns for one page
type Extraction struct {
	Name   string
	Price  *float64
	Status Status
}

// ScrapeResult is the terminal (or forwarded) result for one pair
type ScrapeResult struct {
	TaskID          string
	Product         string
	Domain          string
	URL             string
	Source          Source
	Status          Status
	CompetitorName  string
	CompetitorPrice *float64
	Duration        time.Duration
}

// PriceDiffKind tags the price difference value
type PriceDiffKind string

const (
	PriceDiffValue PriceDiffKind = "value"
	PriceDiffNA    PriceDiffKind = "n/a"
	PriceDiffError PriceDiffKind = "error"
)

// PriceDiff is the relative difference of my price over the competitor price, in percent
type PriceDiff struct {
	Kind  PriceDiffKind
	Value float64
}

// String renders the diff for exports
func (d PriceDiff) String() string {
	switch d.Kind {
	case PriceDiffNA:
		return "N/A"
	case PriceDiffError:
		return "Error"
	}
	if math.IsInf(d.Value, 1) {
		return "+Inf"
	}
	if math.IsInf(d.Value, -1) {
		return "-Inf"
	}
	return strconv.FormatFloat(d.Value, 'f', 2, 64)
}

// ReportRow is one line of the comparison report, emitted only for successful pairs
type ReportRow struct {
	MyProduct             string
	Competitor            string
	CompetitorProductName string
	NameSimilarity        float64
	MyPrice               float64
	CompetitorPrice       float64
	IsCheaper             bool
	PriceDiff             PriceDiff
	URL                   string
}

// FormatPrice renders a price with two decimals
func FormatPrice(p float64) string {
	return strconv.FormatFloat(p, 'f', 2, 64)
}

// RunRecord is the persisted outcome of one reconciliation run
type RunRecord struct {
	ID          string        `json:"id"`
	StartedAt   time.Time     `json:"started_at"`
	FinishedAt  time.Time     `json:"finished_at"`
	Duration    time.Duration `json:"duration"`
	Catalog     string        `json:"catalog,omitempty"`
	CatalogHash string        `json:"catalog_hash,omitempty"`
	Competitors []string      `json:"competitors"`
	Total       int           `json:"total"`
	Completed   int           `json:"completed"`
	Succeeded   int           `json:"succeeded"`
	Failed      int           `json:"failed"`
	Forwarded   int           `json:"forwarded"`
	Report      string        `json:"report,omitempty"` // Export path, empty when not exported
	Warnings    []string      `json:"warnings,omitempty"`
	Error       string        `json:"error,omitempty"`
}
