package cache

import (
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sriram-PR/price-reconciler/pkg/models"
	"github.com/Sriram-PR/price-reconciler/pkg/utils"
)

func testLogger() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return logrus.NewEntry(log)
}

func urlSheet(rows ...[]string) *models.Sheet {
	return &models.Sheet{Header: models.CollectionURLs.Columns(), Rows: rows}
}

func TestUpsertURL_Idempotent(t *testing.T) {
	s := NewStore(nil, nil, testLogger())

	assert.True(t, s.UpsertURL("Liquide Fraise", "taklope.com", "https://taklope.com/a"))
	assert.False(t, s.UpsertURL("Liquide Fraise", "taklope.com", "https://taklope.com/a"))
	assert.False(t, s.UpsertURL("  liquide fraise ", "TAKLOPE.com", "https://taklope.com/a"), "key is normalized")
	assert.Equal(t, 1, s.Len(models.CollectionURLs))

	assert.True(t, s.UpsertURL("Liquide Fraise", "taklope.com", "https://taklope.com/b"))
	entry, found, err := s.LookupURL("liquide fraise", "taklope.com")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "https://taklope.com/b", entry.URL)
	assert.Equal(t, "Liquide Fraise", entry.Product)
	assert.True(t, s.Dirty(models.CollectionURLs))
	assert.False(t, s.Dirty(models.CollectionVerification))
}

func TestUpsertURL_CollapsesDuplicateKeys(t *testing.T) {
	s := NewStore(urlSheet(
		[]string{"Widget", "shop.com", "https://shop.com/new"},
		[]string{"Other", "shop.com", "https://shop.com/other"},
		[]string{" widget", "SHOP.com", "https://shop.com/stale"},
	), nil, testLogger())
	require.Equal(t, 3, s.Len(models.CollectionURLs))

	// The first row already holds the URL; the stale duplicate still has to go
	assert.True(t, s.UpsertURL("Widget", "shop.com", "https://shop.com/new"))
	assert.True(t, s.Dirty(models.CollectionURLs))
	assert.Equal(t, [][]string{
		{"Widget", "shop.com", "https://shop.com/new"},
		{"Other", "shop.com", "https://shop.com/other"},
	}, s.Sheet(models.CollectionURLs).Rows)

	entry, found, err := s.LookupURL("widget", "shop.com")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "https://shop.com/new", entry.URL)
	entry, found, _ = s.LookupURL("Other", "shop.com")
	require.True(t, found)
	assert.Equal(t, "https://shop.com/other", entry.URL)

	assert.False(t, s.UpsertURL("Widget", "shop.com", "https://shop.com/new"))
}

func TestVerificationLifecycle(t *testing.T) {
	s := NewStore(nil, &models.Sheet{
		Header: []string{"MonNomProduit", "Concurrent", "URLConcurrent"},
		Rows:   [][]string{{"Box Z", "lepetitvapoteur.com", ""}},
	}, testLogger())

	// Already parked without URL
	assert.False(t, s.AddVerification("Box Z", "lepetitvapoteur.com", ""))
	assert.False(t, s.Dirty(models.CollectionVerification))

	// A discovered URL fills the empty slot once
	assert.True(t, s.AddVerification("Box Z", "lepetitvapoteur.com", "https://lpv/box-z"))
	assert.False(t, s.AddVerification("Box Z", "lepetitvapoteur.com", "https://lpv/other"))
	entry, found, err := s.LookupVerification("box z", "lepetitvapoteur.com")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "https://lpv/box-z", entry.URL)

	assert.True(t, s.AddVerification("Kit Y", "cigaretteelec.fr", ""))
	assert.Equal(t, 2, s.Len(models.CollectionVerification))

	assert.True(t, s.RemoveVerification("BOX Z", "lepetitvapoteur.com"))
	assert.False(t, s.RemoveVerification("Box Z", "lepetitvapoteur.com"))
	_, found, _ = s.LookupVerification("Box Z", "lepetitvapoteur.com")
	assert.False(t, found)

	// Index survives removal
	entry, found, _ = s.LookupVerification("kit y", "cigaretteelec.fr")
	require.True(t, found)
	assert.Equal(t, "Kit Y", entry.Product)
}

func TestRemoveVerification_RemovesDuplicates(t *testing.T) {
	s := NewStore(nil, &models.Sheet{
		Header: []string{"MonNomProduit", "Concurrent", "URLConcurrent"},
		Rows: [][]string{
			{"A", "x.com", ""},
			{"B", "x.com", ""},
			{"a ", "X.com", "u"},
		},
	}, testLogger())

	assert.True(t, s.RemoveVerification("A", "x.com"))
	assert.Equal(t, 1, s.Len(models.CollectionVerification))
	assert.Equal(t, [][]string{{"B", "x.com", ""}}, s.Sheet(models.CollectionVerification).Rows)
}

func TestMalformedCollectionFailsClosed(t *testing.T) {
	bad := &models.Sheet{Header: []string{"Produit", "URL"}, Rows: [][]string{{"A", "https://a"}}}
	s := NewStore(bad, nil, testLogger())

	assert.ErrorIs(t, s.Err(models.CollectionURLs), utils.ErrMalformedCollection)
	_, _, err := s.LookupURL("A", "x.com")
	assert.ErrorIs(t, err, utils.ErrMalformedCollection)

	assert.False(t, s.UpsertURL("A", "x.com", "https://a"))
	assert.False(t, s.Dirty(models.CollectionURLs))
	// Original rows are untouched
	assert.Equal(t, bad.Rows, s.Sheet(models.CollectionURLs).Rows)
}

func TestEmptySheetGetsMissingColumns(t *testing.T) {
	s := NewStore(&models.Sheet{Header: []string{"NomProduit"}}, &models.Sheet{
		Header: []string{"MonNomProduit", "Concurrent"},
		Rows:   [][]string{{"A", "x.com"}},
	}, testLogger())

	require.NoError(t, s.Err(models.CollectionURLs))
	require.NoError(t, s.Err(models.CollectionVerification))

	assert.True(t, s.UpsertURL("A", "x.com", "https://x.com/a"))
	assert.Equal(t, []string{"NomProduit", "CompetitorDomain", "URLConcurrent"}, s.Sheet(models.CollectionURLs).Header)

	// Optional URL column appended to a non-empty verification sheet
	sheet := s.Sheet(models.CollectionVerification)
	assert.Equal(t, []string{"MonNomProduit", "Concurrent", "URLConcurrent"}, sheet.Header)
	assert.Equal(t, [][]string{{"A", "x.com", ""}}, sheet.Rows)
}

func TestSheetExport(t *testing.T) {
	s := NewStore(urlSheet(
		[]string{"A", "x.com", "https://x.com/a"},
		[]string{"", "", ""},
		[]string{"B", "y.com"},
	), nil, testLogger())

	sheet := s.Sheet(models.CollectionURLs)
	assert.Equal(t, [][]string{{"A", "x.com", "https://x.com/a"}, {"B", "y.com", ""}}, sheet.Rows)

	// Exported sheets are copies
	sheet.Rows[0][2] = "mutated"
	entry, _, _ := s.LookupURL("A", "x.com")
	assert.Equal(t, "https://x.com/a", entry.URL)

	assert.Empty(t, s.DirtyCollections())
	s.AddVerification("C", "z.com", "")
	assert.Equal(t, []models.Collection{models.CollectionVerification}, s.DirtyCollections())
	s.MarkClean(models.CollectionVerification)
	assert.Empty(t, s.DirtyCollections())

	entries := s.Entries(models.CollectionURLs)
	require.Len(t, entries, 2)
	assert.Equal(t, models.CacheEntry{Product: "B", Domain: "y.com"}, entries[1])
}
