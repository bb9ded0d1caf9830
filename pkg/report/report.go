// Package report renders correlated rows as CSV, XLSX and terminal tables.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/Sriram-PR/price-reconciler/pkg/models"
	"github.com/Sriram-PR/price-reconciler/pkg/utils"
)

// Columns is the report header, in export order
var Columns = []string{
	"MonNomProduit",
	"Concurrent",
	"NomProduitConcurrent",
	"SimilaritéNom",
	"MonPrix",
	"PrixConcurrent",
	"EstMoinsCher",
	"DifférencePrix (%)",
	"URLConcurrent",
}

const (
	sheetName  = "Comparaison"
	filePrefix = "comparaison_prix"
)

var utf8BOM = []byte("\xef\xbb\xbf")

// Record renders a row as export strings
func Record(r models.ReportRow) []string {
	return []string{
		r.MyProduct,
		r.Competitor,
		r.CompetitorProductName,
		strconv.FormatFloat(r.NameSimilarity, 'f', 2, 64),
		models.FormatPrice(r.MyPrice),
		models.FormatPrice(r.CompetitorPrice),
		formatBool(r.IsCheaper),
		r.PriceDiff.String(),
		r.URL,
	}
}

func formatBool(b bool) string {
	if b {
		return "True"
	}
	return "False"
}

// WriteCSV writes a ';'-separated report prefixed with a UTF-8 BOM
func WriteCSV(w io.Writer, rows []models.ReportRow) error {
	if _, err := w.Write(utf8BOM); err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	cw.Comma = ';'
	if err := cw.Write(Columns); err != nil {
		return err
	}
	for _, r := range rows {
		if err := cw.Write(Record(r)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteXLSX writes the report as a single-sheet workbook. Numeric columns stay numeric
func WriteXLSX(w io.Writer, rows []models.ReportRow) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return err
	}
	header := make([]any, len(Columns))
	for i, c := range Columns {
		header[i] = c
	}
	if err := f.SetSheetRow(sheetName, "A1", &header); err != nil {
		return err
	}
	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		values := []any{
			r.MyProduct, r.Competitor, r.CompetitorProductName,
			r.NameSimilarity, r.MyPrice, r.CompetitorPrice, r.IsCheaper,
			diffCell(r.PriceDiff), r.URL,
		}
		if err := f.SetSheetRow(sheetName, cell, &values); err != nil {
			return err
		}
	}
	if err := f.SetPanes(sheetName, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"}); err != nil {
		return err
	}
	return f.Write(w)
}

func diffCell(d models.PriceDiff) any {
	if d.Kind == models.PriceDiffValue && !math.IsInf(d.Value, 0) {
		return d.Value
	}
	return d.String()
}

// Export writes rows to a timestamped file in dir. Format is csv or xlsx; "none" writes nothing
func Export(dir, format string, rows []models.ReportRow, at time.Time) (string, error) {
	var write func(io.Writer, []models.ReportRow) error
	switch format {
	case "none", "":
		return "", nil
	case "csv":
		write = WriteCSV
	case "xlsx":
		write = WriteXLSX
	default:
		return "", utils.WrapErrorf(utils.ErrConfigValidation, "unknown export format '%s'", format)
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("%w: create output dir: %w", utils.ErrFilesystem, err)
	}
	path := filepath.Join(dir, utils.ExportFilename(filePrefix, at, format))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("%w: create report: %w", utils.ErrFilesystem, err)
	}
	if err := write(f, rows); err != nil {
		f.Close()
		return "", fmt.Errorf("%w: write report: %w", utils.ErrFilesystem, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("%w: close report: %w", utils.ErrFilesystem, err)
	}
	return path, nil
}
