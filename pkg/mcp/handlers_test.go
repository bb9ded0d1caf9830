package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sriram-PR/price-reconciler/pkg/cache"
	"github.com/Sriram-PR/price-reconciler/pkg/config"
	"github.com/Sriram-PR/price-reconciler/pkg/models"
	"github.com/Sriram-PR/price-reconciler/pkg/orchestrate"
)

type fakeBackend struct {
	cfg     config.AppConfig
	store   *cache.Store
	pending []models.Collection

	mu      sync.Mutex
	runErr  error
	block   chan struct{}
	request orchestrate.Request
}

func (b *fakeBackend) Config() config.AppConfig { return b.cfg }

func (b *fakeBackend) LocalCache() (*cache.Store, []models.Collection, error) {
	return b.store, b.pending, nil
}

func (b *fakeBackend) Run(ctx context.Context, req orchestrate.Request) (*orchestrate.RunSummary, error) {
	b.mu.Lock()
	b.request = req
	b.mu.Unlock()

	total := len(req.Catalog)
	req.Progress(0, total)
	if b.block != nil {
		select {
		case <-b.block:
		case <-ctx.Done():
			return nil, errors.New("run interrupted")
		}
	}
	if b.runErr != nil {
		return nil, b.runErr
	}
	req.Progress(total, total)
	return &orchestrate.RunSummary{
		Total: total, Completed: total, Succeeded: total,
		Rows: []models.ReportRow{{MyProduct: req.Catalog[0].Name, Competitor: "shop.example", CompetitorProductName: "x", MyPrice: 1, CompetitorPrice: 1}},
	}, nil
}

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func newTestServer(t *testing.T, backend *fakeBackend) *Server {
	t.Helper()
	s, err := NewServer(&ServerConfig{Backend: backend, ConfigPath: "config.yaml", Transport: "stdio", Logger: testLogger()})
	require.NoError(t, err)
	return s
}

func newBackend(t *testing.T) *fakeBackend {
	t.Helper()
	cfg := config.AppConfig{
		OutputDir: t.TempDir(),
		Competitors: []config.CompetitorConfig{
			{Domain: "shop.example", NameSelectors: []string{"h1"}, PriceSelectors: []string{".price"}, RatePerSecond: 2},
			{Domain: "browser.example", Browser: true, NameSelectors: []string{"h1"}, PriceSelectors: []string{".price"}},
		},
	}
	_, err := cfg.Validate()
	require.NoError(t, err)

	urls := &models.Sheet{Header: models.CollectionURLs.Columns(), Rows: [][]string{{"Widget", "shop.example", "https://shop.example/w"}}}
	verif := &models.Sheet{Header: models.CollectionVerification.Columns(), Rows: [][]string{
		{"Gadget", "shop.example", "https://shop.example/g"},
		{"Gizmo", "browser.example", ""},
	}}
	log := logrus.NewEntry(testLogger())
	return &fakeBackend{cfg: cfg, store: cache.NewStore(urls, verif, log), pending: []models.Collection{models.CollectionVerification}}
}

func callTool(t *testing.T, handler func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error), args map[string]any) (map[string]any, bool) {
	t.Helper()
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	res, err := handler(context.Background(), req)
	require.NoError(t, err)
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)
	if res.IsError {
		return map[string]any{"error": text.Text}, true
	}
	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(text.Text), &out))
	return out, false
}

func writeCatalog(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "catalog.csv")
	require.NoError(t, os.WriteFile(path, []byte("NomProduit;MonPrix\nWidget;10\nGadget;5\n"), 0644))
	return path
}

func waitForStatus(t *testing.T, s *Server, jobID string, want JobStatus) map[string]any {
	t.Helper()
	var out map[string]any
	require.Eventually(t, func() bool {
		out, _ = callTool(t, s.handleGetJobStatus, map[string]any{"job_id": jobID})
		return out["status"] == string(want)
	}, 5*time.Second, 10*time.Millisecond)
	return out
}

func TestListCompetitors(t *testing.T) {
	s := newTestServer(t, newBackend(t))
	out, isErr := callTool(t, s.handleListCompetitors, nil)
	require.False(t, isErr)

	assert.Equal(t, float64(2), out["total_competitors"])
	comps := out["competitors"].([]any)
	first := comps[0].(map[string]any)
	assert.Equal(t, "shop.example", first["domain"])
	assert.Equal(t, float64(2), first["rate_per_second"])
	assert.Equal(t, true, comps[1].(map[string]any)["browser"])
}

func TestReconcile_RunsJobAndExports(t *testing.T) {
	backend := newBackend(t)
	s := newTestServer(t, backend)

	out, isErr := callTool(t, s.handleReconcile, map[string]any{"catalog": writeCatalog(t), "competitors": " shop.example , "})
	require.False(t, isErr, out["error"])
	assert.Equal(t, "started", out["status"])
	assert.Equal(t, float64(2), out["products"])
	jobID := out["job_id"].(string)

	status := waitForStatus(t, s, jobID, JobStatusCompleted)
	progress := status["progress"].(map[string]any)
	assert.Equal(t, float64(2), progress["completed"])
	assert.Equal(t, float64(100), progress["percent"])
	assert.Equal(t, float64(2), status["succeeded"])
	assert.FileExists(t, status["report"].(string))

	backend.mu.Lock()
	defer backend.mu.Unlock()
	assert.Equal(t, []string{"shop.example"}, backend.request.Competitors)
	assert.Len(t, backend.request.CatalogHash, 64)
}

func TestReconcile_Errors(t *testing.T) {
	s := newTestServer(t, newBackend(t))

	out, isErr := callTool(t, s.handleReconcile, map[string]any{})
	assert.True(t, isErr)
	assert.Contains(t, out["error"], "catalog parameter is required")

	out, isErr = callTool(t, s.handleReconcile, map[string]any{"catalog": writeCatalog(t), "competitors": "unknown.example"})
	assert.True(t, isErr)
	assert.Contains(t, out["error"], "not found")

	out, isErr = callTool(t, s.handleReconcile, map[string]any{"catalog": filepath.Join(t.TempDir(), "missing.csv")})
	assert.True(t, isErr)
	assert.Contains(t, out["error"], "failed to load catalog")
}

func TestReconcile_AlreadyRunningAndCancel(t *testing.T) {
	backend := newBackend(t)
	backend.block = make(chan struct{})
	s := newTestServer(t, backend)
	path := writeCatalog(t)

	out, _ := callTool(t, s.handleReconcile, map[string]any{"catalog": path})
	jobID := out["job_id"].(string)
	waitForStatus(t, s, jobID, JobStatusRunning)

	out, _ = callTool(t, s.handleReconcile, map[string]any{"catalog": path})
	assert.Equal(t, "already_running", out["status"])
	assert.Equal(t, jobID, out["job_id"])

	require.NoError(t, s.Shutdown(context.Background()))
	waitForStatus(t, s, jobID, JobStatusCancelled)
}

func TestReconcile_RunFailure(t *testing.T) {
	backend := newBackend(t)
	backend.runErr = errors.New("cache load failed")
	s := newTestServer(t, backend)

	out, _ := callTool(t, s.handleReconcile, map[string]any{"catalog": writeCatalog(t)})
	status := waitForStatus(t, s, out["job_id"].(string), JobStatusFailed)
	assert.Equal(t, "cache load failed", status["error_message"])
}

func TestGetJobStatus_Errors(t *testing.T) {
	s := newTestServer(t, newBackend(t))

	out, isErr := callTool(t, s.handleGetJobStatus, map[string]any{})
	assert.True(t, isErr)
	assert.Contains(t, out["error"], "job_id parameter is required")

	out, isErr = callTool(t, s.handleGetJobStatus, map[string]any{"job_id": "nope"})
	assert.True(t, isErr)
	assert.Contains(t, out["error"], "not found")
}

func TestLookupURL(t *testing.T) {
	s := newTestServer(t, newBackend(t))

	tests := []struct {
		name       string
		product    string
		domain     string
		resolution string
		url        any
		verifURL   any
	}{
		{"confirmed", " widget ", "SHOP.example", "cache", "https://shop.example/w", nil},
		{"pending with url", "Gadget", "shop.example", "verification", nil, "https://shop.example/g"},
		{"pending without url", "Gizmo", "browser.example", "verification", nil, nil},
		{"unknown", "Thing", "shop.example", "search", nil, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, isErr := callTool(t, s.handleLookupURL, map[string]any{"product": tt.product, "domain": tt.domain})
			require.False(t, isErr)
			assert.Equal(t, tt.resolution, out["resolution"])
			assert.Equal(t, tt.url, out["url"])
			assert.Equal(t, tt.verifURL, out["verification_url"])
		})
	}

	_, isErr := callTool(t, s.handleLookupURL, map[string]any{"product": "Widget"})
	assert.True(t, isErr)
}

func TestListVerification(t *testing.T) {
	s := newTestServer(t, newBackend(t))

	out, isErr := callTool(t, s.handleListVerification, nil)
	require.False(t, isErr)
	assert.Equal(t, float64(2), out["total_matches"])
	assert.Equal(t, true, out["unpushed"])

	out, _ = callTool(t, s.handleListVerification, map[string]any{"domain": "Browser.Example"})
	entries := out["entries"].([]any)
	require.Len(t, entries, 1)
	assert.Equal(t, "Gizmo", entries[0].(map[string]any)["product"])
	assert.Nil(t, entries[0].(map[string]any)["url"])

	out, _ = callTool(t, s.handleListVerification, map[string]any{"max_results": 1})
	assert.Len(t, out["entries"].([]any), 1)
	assert.Equal(t, true, out["truncated"])
}

func TestNewServer_RequiresBackend(t *testing.T) {
	_, err := NewServer(&ServerConfig{})
	assert.Error(t, err)
}

func TestSplitList(t *testing.T) {
	assert.Nil(t, splitList(""))
	assert.Equal(t, []string{"a.com", "b.com"}, splitList(" a.com,, b.com ,"))
}
