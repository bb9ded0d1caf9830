package main

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sriram-PR/price-reconciler/pkg/config"
	"github.com/Sriram-PR/price-reconciler/pkg/models"
	"github.com/Sriram-PR/price-reconciler/pkg/orchestrate"
	"github.com/Sriram-PR/price-reconciler/pkg/watch"
)

const testConfig = `
workers: 2
state_dir: STATE
competitors:
  - domain: shop.example
    name_selectors: ["h1"]
    price_selectors: [".price"]
    rate_per_second: 1.5
  - domain: browser.example
    browser: true
    name_selectors: ["h1.title"]
    price_selectors: [".amount"]
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func runRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := runRoot(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "price-reconciler "+version+"\n", out)
}

func TestRootHelpListsCommands(t *testing.T) {
	out, err := runRoot(t, "--help")
	require.NoError(t, err)
	for _, name := range []string{"reconcile", "watch", "validate", "list-competitors", "cache", "mcp-server"} {
		assert.Contains(t, out, name)
	}
	assert.NotContains(t, out, "automation-worker")
}

func TestReconcileRequiresCatalog(t *testing.T) {
	_, err := runRoot(t, "reconcile", "--config", writeConfig(t, testConfig))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "catalog")
}

func TestValidateCommand(t *testing.T) {
	out, err := runRoot(t, "validate", "--config", writeConfig(t, testConfig))
	require.NoError(t, err)
	assert.Contains(t, out, "Configuration valid: 2 competitors, 2 workers")
	assert.Contains(t, out, "WARN: remote.backend not set")
}

func TestValidateCommand_Invalid(t *testing.T) {
	bad := testConfig + "remote:\n  backend: sheets\n"
	_, err := runRoot(t, "validate", "--config", writeConfig(t, bad))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "spreadsheet_id")
}

func TestListCompetitorsCommand(t *testing.T) {
	out, err := runRoot(t, "list-competitors", "--config", writeConfig(t, testConfig))
	require.NoError(t, err)
	assert.Contains(t, out, "shop.example")
	assert.Contains(t, out, "browser.example")
	assert.Contains(t, out, "browser")
	assert.Contains(t, out, "1.5")
}

func TestSetupLogger(t *testing.T) {
	log, err := setupLogger("debug", io.Discard)
	require.NoError(t, err)
	assert.Equal(t, logrus.DebugLevel, log.GetLevel())

	_, err = setupLogger("loud", io.Discard)
	assert.ErrorContains(t, err, "invalid log level")
}

func TestCompetitorList(t *testing.T) {
	opts := &reconcileOptions{competitors: " a.example, ,b.example ,"}
	assert.Equal(t, []string{"a.example", "b.example"}, opts.competitorList())
	assert.Empty(t, (&reconcileOptions{}).competitorList())
}

func TestApplyOverrides(t *testing.T) {
	appCfg := &config.AppConfig{}
	_, err := appCfg.Validate()
	require.NoError(t, err)

	opts := &reconcileOptions{export: "xlsx", output: "/tmp/out"}
	require.NoError(t, opts.applyOverrides(appCfg))
	assert.Equal(t, "xlsx", appCfg.Export)
	assert.Equal(t, "/tmp/out", appCfg.OutputDir)

	opts = &reconcileOptions{export: "pdf"}
	assert.Error(t, opts.applyOverrides(appCfg))
}

type fakeRunner struct {
	req     orchestrate.Request
	summary *orchestrate.RunSummary
	err     error
}

func (f *fakeRunner) Run(_ context.Context, req orchestrate.Request) (*orchestrate.RunSummary, error) {
	f.req = req
	if req.Progress != nil {
		req.Progress(1, 2)
		req.Progress(2, 2)
	}
	return f.summary, f.err
}

func writeCatalog(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "catalogue.csv")
	require.NoError(t, os.WriteFile(path, []byte("NomProduit;MonPrix\nWidget;10,50\nGadget;20\n"), 0644))
	return path
}

func testAppConfig(t *testing.T, outDir string) config.AppConfig {
	t.Helper()
	appCfg := config.AppConfig{OutputDir: outDir, Export: "csv"}
	_, err := appCfg.Validate()
	require.NoError(t, err)
	return appCfg
}

func TestExecuteReconcile(t *testing.T) {
	outDir := t.TempDir()
	appCfg := testAppConfig(t, outDir)
	runner := &fakeRunner{summary: &orchestrate.RunSummary{
		Total: 2, Completed: 2, Succeeded: 1, Failed: 1,
		Counts: map[string]int{"Succès": 1, "Not Found": 1},
		Rows: []models.ReportRow{{
			MyProduct: "Widget", Competitor: "shop.example", CompetitorProductName: "Widget",
			NameSimilarity: 1, MyPrice: 10.5, CompetitorPrice: 12, IsCheaper: true,
			PriceDiff: models.PriceDiff{Kind: models.PriceDiffValue, Value: -12.5}, URL: "https://shop.example/w",
		}},
	}}
	opts := &reconcileOptions{catalogPath: writeCatalog(t), competitors: "shop.example", noProgress: true}

	var stdout bytes.Buffer
	res, err := executeReconcile(context.Background(), runner, appCfg, opts, &stdout, io.Discard, logrus.New())
	require.NoError(t, err)

	require.Len(t, runner.req.Catalog, 2)
	assert.Equal(t, models.Product{Name: "Widget", MyPrice: 10.5}, runner.req.Catalog[0])
	assert.Equal(t, []string{"shop.example"}, runner.req.Competitors)
	assert.Len(t, runner.req.CatalogHash, 64)

	require.NotEmpty(t, res.Report)
	assert.Equal(t, outDir, filepath.Dir(res.Report))
	_, statErr := os.Stat(res.Report)
	assert.NoError(t, statErr)

	out := stdout.String()
	assert.Contains(t, out, "Widget")
	assert.Contains(t, out, "-12.50")
	assert.Contains(t, out, "Rapport: "+res.Report)

	outcome := outcomeOf(res)
	assert.Equal(t, watch.Outcome{Total: 2, Succeeded: 1, Failed: 1, CatalogSHA256: res.Catalog.Hash, Report: res.Report}, outcome)
}

func TestExecuteReconcile_InterruptedStillExports(t *testing.T) {
	appCfg := testAppConfig(t, t.TempDir())
	runner := &fakeRunner{
		summary: &orchestrate.RunSummary{Total: 4, Completed: 1, Succeeded: 1, Skipped: 3, Counts: map[string]int{"Succès": 1}},
		err:     context.Canceled,
	}
	opts := &reconcileOptions{catalogPath: writeCatalog(t), noProgress: true}

	var stdout bytes.Buffer
	res, err := executeReconcile(context.Background(), runner, appCfg, opts, &stdout, io.Discard, logrus.New())
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, res.Summary)
	assert.NotEmpty(t, res.Report)
	assert.Contains(t, stdout.String(), "Non lancées")
}

func TestExecuteReconcile_CatalogError(t *testing.T) {
	appCfg := testAppConfig(t, t.TempDir())
	runner := &fakeRunner{}
	opts := &reconcileOptions{catalogPath: filepath.Join(t.TempDir(), "missing.csv"), noProgress: true}

	res, err := executeReconcile(context.Background(), runner, appCfg, opts, io.Discard, io.Discard, logrus.New())
	require.Error(t, err)
	assert.Nil(t, res)
	assert.Nil(t, runner.req.Catalog)
}

func TestOutcomeOf_Nil(t *testing.T) {
	assert.Equal(t, watch.Outcome{}, outcomeOf(nil))
}
