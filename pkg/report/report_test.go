package report

import (
	"bytes"
	"encoding/csv"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/Sriram-PR/price-reconciler/pkg/models"
	"github.com/Sriram-PR/price-reconciler/pkg/utils"
)

func sampleRows() []models.ReportRow {
	return []models.ReportRow{
		{
			MyProduct: "Widget", Competitor: "shop.example", CompetitorProductName: "Widget Pro",
			NameSimilarity: 0.8, MyPrice: 100, CompetitorPrice: 80, IsCheaper: true,
			PriceDiff: models.PriceDiff{Kind: models.PriceDiffValue, Value: 25}, URL: "https://shop.example/widget",
		},
		{
			MyProduct: "Gadget", Competitor: "shop.example", CompetitorProductName: "Something else",
			NameSimilarity: 0.2, MyPrice: 10, CompetitorPrice: 0,
			PriceDiff: models.PriceDiff{Kind: models.PriceDiffValue, Value: math.Inf(1)}, URL: "https://shop.example/gadget",
		},
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sampleRows()))

	data := buf.Bytes()
	require.True(t, bytes.HasPrefix(data, utf8BOM))

	r := csv.NewReader(bytes.NewReader(data[len(utf8BOM):]))
	r.Comma = ';'
	records, err := r.ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, Columns, records[0])
	assert.Equal(t, []string{"Widget", "shop.example", "Widget Pro", "0.80", "100.00", "80.00", "True", "25.00", "https://shop.example/widget"}, records[1])
	assert.Equal(t, "False", records[2][6])
	assert.Equal(t, "+Inf", records[2][7])
}

func TestWriteXLSX(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, sampleRows()))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{sheetName}, f.GetSheetList())
	rows, err := f.GetRows(sheetName)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, Columns, rows[0])
	assert.Equal(t, "Widget", rows[1][0])
	assert.Equal(t, "25", rows[1][7])
	assert.Equal(t, "+Inf", rows[2][7])

	v, err := f.GetCellValue(sheetName, "E2")
	require.NoError(t, err)
	assert.Equal(t, "100", v)
}

func TestExport(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	at := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)

	path, err := Export(dir, "csv", sampleRows(), at)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "comparaison_prix_20240301_093000.csv"), path)
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))

	path, err = Export(dir, "xlsx", sampleRows(), at)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(path, ".xlsx"))

	path, err = Export(dir, "none", sampleRows(), at)
	require.NoError(t, err)
	assert.Empty(t, path)

	_, err = Export(dir, "pdf", sampleRows(), at)
	assert.ErrorIs(t, err, utils.ErrConfigValidation)
}

func TestRenderTable_WeakMatch(t *testing.T) {
	var buf bytes.Buffer
	RenderTable(&buf, sampleRows(), 0.55)
	out := buf.String()

	assert.Contains(t, out, "Widget Pro")
	assert.Equal(t, 1, strings.Count(out, WeakMatchMarker))
	assert.Contains(t, out, "1/2")
}

func TestRenderSummary(t *testing.T) {
	var buf bytes.Buffer
	RenderSummary(&buf, Totals{
		Total: 3, Succeeded: 1, Failed: 2,
		Counts:   map[string]int{"Success": 1, "Serper Not Found": 2},
		Report:   "out.csv",
		Warnings: []string{"products_url: push failed"},
	})
	out := buf.String()

	assert.Contains(t, out, "Serper Not Found")
	assert.Less(t, strings.Index(out, "Serper Not Found"), strings.Index(out, "Success"))
	assert.Contains(t, out, "Rapport: out.csv")
	assert.Contains(t, out, "Attention: products_url: push failed")
	assert.NotContains(t, out, "Non lancées")
}
