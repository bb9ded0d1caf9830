// Package cache holds the two reconciliation collections in memory for one run,
// indexed by the normalized (product, domain) key, with dirty tracking for write-back.
package cache

import (
	"strings"

	"github.com/Sriram-PR/price-reconciler/pkg/models"
	"github.com/Sriram-PR/price-reconciler/pkg/utils"
)

// Table is one collection: a header, string rows, and an index from
// models.IndexKey to the row positions holding that key.
type Table struct {
	collection models.Collection
	header     []string
	rows       [][]string
	index      map[string][]int
	productCol int
	domainCol  int
	urlCol     int
	malformed  string // Non-empty when required columns are missing on a non-empty sheet
	dirty      bool
}

// requiredColumns are the columns a non-empty sheet must already carry.
// The verification URL is optional and added when absent.
func requiredColumns(c models.Collection) []string {
	cols := c.Columns()
	if c == models.CollectionVerification {
		return cols[:2]
	}
	return cols
}

// NewTable loads sheet into a Table. A nil or empty sheet yields an empty table with the canonical header.
// Missing required columns on an empty sheet are added; on a non-empty sheet they make the table malformed.
func NewTable(c models.Collection, sheet *models.Sheet) *Table {
	t := &Table{collection: c, index: make(map[string][]int)}
	if sheet == nil || len(sheet.Header) == 0 {
		t.header = c.Columns()
		if sheet != nil && len(sheet.Rows) > 0 {
			t.malformed = "rows present without a header"
		}
		t.resolveColumns()
		return t
	}

	t.header = make([]string, len(sheet.Header))
	for i, h := range sheet.Header {
		t.header[i] = strings.TrimSpace(h)
	}
	t.rows = make([][]string, 0, len(sheet.Rows))
	for _, r := range sheet.Rows {
		if isBlank(r) {
			continue
		}
		t.rows = append(t.rows, padRow(r, len(t.header)))
	}

	var missing []string
	for _, col := range requiredColumns(c) {
		if t.column(col) < 0 {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 && len(t.rows) > 0 {
		t.malformed = "missing columns " + strings.Join(missing, ", ")
		return t
	}
	for _, col := range c.Columns() {
		if t.column(col) < 0 {
			t.header = append(t.header, col)
			for i := range t.rows {
				t.rows[i] = append(t.rows[i], "")
			}
		}
	}
	t.resolveColumns()
	t.reindex()
	return t
}

func isBlank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func padRow(r []string, n int) []string {
	out := make([]string, n)
	copy(out, r)
	return out
}

func (t *Table) column(name string) int {
	for i, h := range t.header {
		if h == name {
			return i
		}
	}
	return -1
}

func (t *Table) resolveColumns() {
	cols := t.collection.Columns()
	t.productCol = t.column(cols[0])
	t.domainCol = t.column(cols[1])
	t.urlCol = t.column(cols[2])
}

func (t *Table) reindex() {
	t.index = make(map[string][]int, len(t.rows))
	for i, r := range t.rows {
		key := models.IndexKey(r[t.productCol], r[t.domainCol])
		t.index[key] = append(t.index[key], i)
	}
}

// Err returns ErrMalformedCollection when the table could not be indexed
func (t *Table) Err() error {
	if t.malformed == "" {
		return nil
	}
	return utils.WrapErrorf(utils.ErrMalformedCollection, "%s: %s", t.collection, t.malformed)
}

// Lookup returns the first row stored under the pair's key
func (t *Table) Lookup(product, domain string) (models.CacheEntry, bool, error) {
	if err := t.Err(); err != nil {
		return models.CacheEntry{}, false, err
	}
	pos, ok := t.index[models.IndexKey(product, domain)]
	if !ok {
		return models.CacheEntry{}, false, nil
	}
	return t.entry(t.rows[pos[0]]), true, nil
}

func (t *Table) entry(r []string) models.CacheEntry {
	return models.CacheEntry{
		Product: r[t.productCol],
		Domain:  r[t.domainCol],
		URL:     strings.TrimSpace(r[t.urlCol]),
	}
}

// Upsert leaves exactly one row under the pair's key holding url, appending it when none exists
// and dropping duplicates beyond the first. Reports whether anything changed.
func (t *Table) Upsert(product, domain, url string) (bool, error) {
	if err := t.Err(); err != nil {
		return false, err
	}
	key := models.IndexKey(product, domain)
	if pos, ok := t.index[key]; ok {
		changed := len(pos) > 1
		if changed {
			t.dropRows(pos[1:])
		}
		if t.rows[pos[0]][t.urlCol] != url {
			t.rows[pos[0]][t.urlCol] = url
			changed = true
		}
		if changed {
			t.dirty = true
		}
		return changed, nil
	}
	t.append(key, product, domain, url)
	return true, nil
}

// Insert appends a row for the pair unless its key is present.
// A present row with an empty URL takes url when one is given.
func (t *Table) Insert(product, domain, url string) (bool, error) {
	if err := t.Err(); err != nil {
		return false, err
	}
	key := models.IndexKey(product, domain)
	if pos, ok := t.index[key]; ok {
		if url == "" || strings.TrimSpace(t.rows[pos[0]][t.urlCol]) != "" {
			return false, nil
		}
		t.rows[pos[0]][t.urlCol] = url
		t.dirty = true
		return true, nil
	}
	t.append(key, product, domain, url)
	return true, nil
}

func (t *Table) append(key, product, domain, url string) {
	row := make([]string, len(t.header))
	row[t.productCol] = product
	row[t.domainCol] = domain
	row[t.urlCol] = url
	t.rows = append(t.rows, row)
	t.index[key] = append(t.index[key], len(t.rows)-1)
	t.dirty = true
}

// dropRows deletes the rows at the given ascending positions and rebuilds the index.
// Rows before the first dropped position keep their index.
func (t *Table) dropRows(positions []int) {
	drop := make(map[int]struct{}, len(positions))
	for _, i := range positions {
		drop[i] = struct{}{}
	}
	kept := t.rows[:0]
	for i, r := range t.rows {
		if _, ok := drop[i]; !ok {
			kept = append(kept, r)
		}
	}
	t.rows = kept
	t.reindex()
}

// Remove deletes every row under the pair's key
func (t *Table) Remove(product, domain string) (bool, error) {
	if err := t.Err(); err != nil {
		return false, err
	}
	key := models.IndexKey(product, domain)
	if _, ok := t.index[key]; !ok {
		return false, nil
	}
	kept := t.rows[:0]
	for _, r := range t.rows {
		if models.IndexKey(r[t.productCol], r[t.domainCol]) != key {
			kept = append(kept, r)
		}
	}
	t.rows = kept
	t.reindex()
	t.dirty = true
	return true, nil
}

// Len returns the number of rows
func (t *Table) Len() int { return len(t.rows) }

// Dirty reports whether the table changed since load or the last MarkClean
func (t *Table) Dirty() bool { return t.dirty }

// MarkClean clears the dirty flag
func (t *Table) MarkClean() { t.dirty = false }

// Sheet exports the table, header first, in the full-overwrite format of the remote store
func (t *Table) Sheet() *models.Sheet {
	s := &models.Sheet{Header: t.header, Rows: t.rows}
	return s.Clone()
}

// Entries lists the rows as cache entries
func (t *Table) Entries() []models.CacheEntry {
	if t.malformed != "" {
		return nil
	}
	out := make([]models.CacheEntry, 0, len(t.rows))
	for _, r := range t.rows {
		out = append(out, t.entry(r))
	}
	return out
}
