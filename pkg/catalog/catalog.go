// Package catalog reads the merchant's product list: a name and an own price per line.
package catalog

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"

	"github.com/Sriram-PR/price-reconciler/pkg/config"
	"github.com/Sriram-PR/price-reconciler/pkg/models"
	"github.com/Sriram-PR/price-reconciler/pkg/utils"
)

// Stats describes what the loader kept and dropped
type Stats struct {
	Rows         int // Data rows read, blank lines excluded
	Kept         int
	MissingName  int
	MissingPrice int
	InvalidPrice int
	Duplicates   int // Later lines overriding an earlier price for the same name
}

// Catalog is the loaded product list, in first-seen order
type Catalog struct {
	Path     string
	Hash     string
	Products []models.Product
	Stats    Stats
}

// Load reads a ';'-delimited CSV or an XLSX workbook (first sheet), chosen by extension
func Load(path string, cfg config.CatalogConfig, log *logrus.Entry) (*Catalog, error) {
	hash, err := utils.CalculateFileSHA256(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", utils.ErrCatalog, err)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", utils.ErrCatalog, path, err)
	}
	defer f.Close()

	var cat *Catalog
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		cat, err = ReadXLSX(f, cfg)
	default:
		cat, err = ReadCSV(f, cfg)
	}
	if err != nil {
		return nil, err
	}
	cat.Path, cat.Hash = path, hash

	log.WithFields(logrus.Fields{
		"rows": cat.Stats.Rows, "kept": cat.Stats.Kept, "missing_name": cat.Stats.MissingName,
		"missing_price": cat.Stats.MissingPrice, "invalid_price": cat.Stats.InvalidPrice, "duplicates": cat.Stats.Duplicates,
	}).Infof("Catalog loaded from %s", path)
	return cat, nil
}

// ReadCSV parses a delimited catalog. A UTF-8 BOM is ignored
func ReadCSV(r io.Reader, cfg config.CatalogConfig) (*Catalog, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: read: %w", utils.ErrCatalog, err)
	}
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))

	cr := csv.NewReader(bytes.NewReader(data))
	cr.Comma = delimiter(cfg)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %w: %w", utils.ErrCatalog, utils.ErrParsing, err)
	}
	return fromRecords(records, cfg)
}

// ReadXLSX parses the first sheet of a workbook
func ReadXLSX(r io.Reader, cfg config.CatalogConfig) (*Catalog, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: open workbook: %w", utils.ErrCatalog, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, utils.WrapErrorf(utils.ErrCatalog, "workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("%w: read sheet %q: %w", utils.ErrCatalog, sheets[0], err)
	}
	return fromRecords(rows, cfg)
}

func delimiter(cfg config.CatalogConfig) rune {
	if cfg.Delimiter == "" {
		return ';'
	}
	return []rune(cfg.Delimiter)[0]
}

// fromRecords applies the column mapping. The first record is the header
func fromRecords(records [][]string, cfg config.CatalogConfig) (*Catalog, error) {
	nameCol, priceCol := cfg.NameColumn, cfg.PriceColumn
	if nameCol == "" {
		nameCol = "NomProduit"
	}
	if priceCol == "" {
		priceCol = "MonPrix"
	}
	if len(records) == 0 {
		return nil, utils.WrapErrorf(utils.ErrCatalog, "catalog is empty")
	}

	header := records[0]
	ni, pi := indexOf(header, nameCol), indexOf(header, priceCol)
	if ni < 0 || pi < 0 {
		return nil, utils.WrapErrorf(utils.ErrCatalog, "columns '%s' or '%s' missing (found %v)", nameCol, priceCol, header)
	}

	cat := &Catalog{}
	pos := make(map[string]int)
	for _, rec := range records[1:] {
		if blank(rec) {
			continue
		}
		cat.Stats.Rows++
		name := strings.TrimSpace(cell(rec, ni))
		raw := strings.TrimSpace(cell(rec, pi))
		switch {
		case name == "":
			cat.Stats.MissingName++
			continue
		case raw == "":
			cat.Stats.MissingPrice++
			continue
		}
		price, err := ParsePrice(raw)
		if err != nil {
			cat.Stats.InvalidPrice++
			continue
		}
		if i, seen := pos[name]; seen {
			cat.Products[i].MyPrice = price
			cat.Stats.Duplicates++
			continue
		}
		pos[name] = len(cat.Products)
		cat.Products = append(cat.Products, models.Product{Name: name, MyPrice: price})
	}
	cat.Stats.Kept = len(cat.Products)
	if cat.Stats.Kept == 0 {
		return nil, utils.WrapErrorf(utils.ErrCatalog, "no product with both a name and a price (%d rows read)", cat.Stats.Rows)
	}
	return cat, nil
}

// ParsePrice reads a catalog price written with either decimal separator ("12,50" or "12.50")
func ParsePrice(raw string) (float64, error) {
	s := strings.NewReplacer(" ", "", " ", "", "€", "", ",", ".").Replace(strings.TrimSpace(raw))
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: price %q: %w", utils.ErrParsing, raw, errors.Unwrap(err))
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: price %q is not a number", utils.ErrParsing, raw)
	}
	return v, nil
}

func indexOf(header []string, name string) int {
	for i, h := range header {
		if strings.TrimSpace(h) == name {
			return i
		}
	}
	return -1
}

func cell(rec []string, i int) string {
	if i < len(rec) {
		return rec[i]
	}
	return ""
}

func blank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
