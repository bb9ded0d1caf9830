package catalog

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/Sriram-PR/price-reconciler/pkg/config"
	"github.com/Sriram-PR/price-reconciler/pkg/models"
	"github.com/Sriram-PR/price-reconciler/pkg/utils"
)

func testLogger() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return logrus.NewEntry(log)
}

func TestReadCSV(t *testing.T) {
	data := "\xef\xbb\xbfRef;NomProduit;MonPrix\n" +
		"1;Widget;12,50\n" +
		"2;Gadget;7.5\n" +
		";;\n" +
		"3;;4\n" +
		"4;NoPrice;\n" +
		"5;BadPrice;abc\n" +
		"6; Widget ;11\n"

	cat, err := ReadCSV(strings.NewReader(data), config.CatalogConfig{})
	require.NoError(t, err)

	assert.Equal(t, []models.Product{{Name: "Widget", MyPrice: 11}, {Name: "Gadget", MyPrice: 7.5}}, cat.Products)
	assert.Equal(t, Stats{Rows: 6, Kept: 2, MissingName: 1, MissingPrice: 1, InvalidPrice: 1, Duplicates: 1}, cat.Stats)
}

func TestReadCSV_CustomColumns(t *testing.T) {
	data := "name,price\nWidget,3\n"
	cat, err := ReadCSV(strings.NewReader(data), config.CatalogConfig{NameColumn: "name", PriceColumn: "price", Delimiter: ","})
	require.NoError(t, err)
	assert.Equal(t, []models.Product{{Name: "Widget", MyPrice: 3}}, cat.Products)
}

func TestReadCSV_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
		want string
	}{
		{"empty", "", "catalog is empty"},
		{"missing columns", "Name;Price\nWidget;3\n", "missing"},
		{"no usable rows", "NomProduit;MonPrix\nWidget;\n;3\n", "no product"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadCSV(strings.NewReader(tt.data), config.CatalogConfig{})
			require.Error(t, err)
			assert.ErrorIs(t, err, utils.ErrCatalog)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParsePrice(t *testing.T) {
	tests := []struct {
		raw     string
		want    float64
		wantErr bool
	}{
		{"12,50", 12.5, false},
		{" 7.5 ", 7.5, false},
		{"1 299,00 €", 1299, false},
		{"0", 0, false},
		{"abc", 0, true},
		{"NaN", 0, true},
		{"Inf", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParsePrice(tt.raw)
			if tt.wantErr {
				assert.ErrorIs(t, err, utils.ErrParsing)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func writeWorkbook(t *testing.T, rows [][]any) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for r, row := range rows {
		for c, v := range row {
			cellName, err := excelize.CoordinatesToCellName(c+1, r+1)
			require.NoError(t, err)
			require.NoError(t, f.SetCellValue("Sheet1", cellName, v))
		}
	}
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	return buf.Bytes()
}

func TestReadXLSX(t *testing.T) {
	data := writeWorkbook(t, [][]any{
		{"NomProduit", "MonPrix"},
		{"Widget", 12.5},
		{"Gadget", "7,25"},
		{"", 3},
	})

	cat, err := ReadXLSX(bytes.NewReader(data), config.CatalogConfig{})
	require.NoError(t, err)
	assert.Equal(t, []models.Product{{Name: "Widget", MyPrice: 12.5}, {Name: "Gadget", MyPrice: 7.25}}, cat.Products)
	assert.Equal(t, 1, cat.Stats.MissingName)
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "catalog.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte("NomProduit;MonPrix\nWidget;10\n"), 0644))
	xlsxPath := filepath.Join(dir, "catalog.xlsx")
	require.NoError(t, os.WriteFile(xlsxPath, writeWorkbook(t, [][]any{{"NomProduit", "MonPrix"}, {"Gadget", 4}}), 0644))

	cat, err := Load(csvPath, config.CatalogConfig{}, testLogger())
	require.NoError(t, err)
	assert.Equal(t, csvPath, cat.Path)
	assert.Len(t, cat.Hash, 64)
	assert.Equal(t, "Widget", cat.Products[0].Name)

	cat, err = Load(xlsxPath, config.CatalogConfig{}, testLogger())
	require.NoError(t, err)
	assert.Equal(t, []models.Product{{Name: "Gadget", MyPrice: 4}}, cat.Products)

	_, err = Load(filepath.Join(dir, "missing.csv"), config.CatalogConfig{}, testLogger())
	assert.ErrorIs(t, err, utils.ErrCatalog)
}
