package models

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		code int
		kind StatusKind
	}{
		{200, StatusSuccess},
		{404, StatusNotFound},
		{408, StatusTimeout},
		{403, StatusHTTPError},
		{503, StatusHTTPError},
	}
	for _, tt := range tests {
		s := HTTPStatus(tt.code)
		assert.Equal(t, tt.kind, s.Kind, "HTTPStatus(%d)", tt.code)
		assert.Equal(t, tt.code, s.Code)
	}
}

func TestStatus_Label(t *testing.T) {
	tests := []struct {
		name   string
		status Status
		want   string
	}{
		{"success", Success(), "200"},
		{"http error", HTTPStatus(403), "403"},
		{"engine", EngineError("cdp"), "503"},
		{"timeout", Timeout("wait"), "408"},
		{"search failed", SearchFailed("boom"), "Serper API Error"},
		{"not found by search", NoURL(), "Serper Not Found"},
		{"worker not ready", WorkerNotReady(), "No URL To Scrape"},
		{"parked", VerificationPending(), "Verification No URL"},
		{"browser", RequiresBrowser(), "Requires Browser"},
		{"request error", Internal(ReasonRequestError, "dial tcp"), "RequestError"},
		{"loop error", Internal(ReasonWorkerLoopError, "panic"), "WorkerLoopError"},
		{"processing error", Internal(ReasonProcessingError, "panic: index corrupted"), "ProcessingError"},
		{"cancelled", Cancelled("context canceled"), "Cancelled"},
		{"unset", Status{}, "unset"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.status.Label())
		})
	}
}

func TestStatus_LabelIgnoresDetail(t *testing.T) {
	a := Internal(ReasonProcessingError, "panic: runtime error at 0xc000123")
	b := Internal(ReasonProcessingError, "panic: runtime error at 0xc000456")
	assert.Equal(t, a.Label(), b.Label())
	assert.NotEqual(t, a.String(), b.String())
	assert.Equal(t, "ProcessingError (panic: runtime error at 0xc000123)", a.String())
	assert.Equal(t, "RequestError", Internal(ReasonRequestError, "").String())
	assert.Equal(t, "408 (wait)", Timeout("wait").String())
}

func TestStatus_IsTerminal(t *testing.T) {
	assert.True(t, Success().IsTerminal())
	assert.True(t, NoURL().IsTerminal())
	assert.True(t, Cancelled("").IsTerminal())
	assert.False(t, RequiresBrowser().IsTerminal())
	assert.False(t, Status{}.IsTerminal())
}

func TestStatus_IsValid(t *testing.T) {
	assert.True(t, Timeout("").IsValid())
	assert.True(t, Cancelled("").IsValid())
	assert.False(t, Status{}.IsValid())
	assert.False(t, Status{Kind: "arbitrary"}.IsValid())
}

func TestSource_Label(t *testing.T) {
	assert.Equal(t, "URL From Verification", SourceVerification.Label())
	assert.Equal(t, "URL From Cache", SourceCache.Label())
	assert.Equal(t, "URL From Serper", SourceSearch.Label())
	assert.Equal(t, "none", SourceNone.Label())
}

func TestIndexKey(t *testing.T) {
	assert.Equal(t, "widget__shop.com", IndexKey("  Widget ", "SHOP.com "))
	assert.Equal(t, IndexKey("WIDGET", "shop.com"), IndexKey("widget", " Shop.Com"))
}

func TestPriceDiff_String(t *testing.T) {
	assert.Equal(t, "25.00", PriceDiff{Kind: PriceDiffValue, Value: 25}.String())
	assert.Equal(t, "-20.00", PriceDiff{Kind: PriceDiffValue, Value: -20}.String())
	assert.Equal(t, "+Inf", PriceDiff{Kind: PriceDiffValue, Value: math.Inf(1)}.String())
	assert.Equal(t, "N/A", PriceDiff{Kind: PriceDiffNA}.String())
	assert.Equal(t, "Error", PriceDiff{Kind: PriceDiffError}.String())
}

func TestSheet(t *testing.T) {
	s := &Sheet{
		Header: []string{"NomProduit", " CompetitorDomain ", "URLConcurrent"},
		Rows:   [][]string{{"a", "b", "c"}},
	}
	assert.Equal(t, 1, s.ColumnIndex(ColURLDomain))
	assert.Equal(t, -1, s.ColumnIndex("missing"))

	clone := s.Clone()
	clone.Rows[0][0] = "changed"
	assert.Equal(t, "a", s.Rows[0][0])

	assert.Len(t, s.Values(), 2)
	assert.Equal(t, -1, (*Sheet)(nil).ColumnIndex("x"))
}

func TestCollectionColumns(t *testing.T) {
	assert.Equal(t, []string{"NomProduit", "CompetitorDomain", "URLConcurrent"}, CollectionURLs.Columns())
	assert.Equal(t, []string{"MonNomProduit", "Concurrent", "URLConcurrent"}, CollectionVerification.Columns())
	assert.Nil(t, Collection("other").Columns())
}
