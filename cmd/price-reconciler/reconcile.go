package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/Sriram-PR/price-reconciler/pkg/catalog"
	"github.com/Sriram-PR/price-reconciler/pkg/config"
	"github.com/Sriram-PR/price-reconciler/pkg/metrics"
	"github.com/Sriram-PR/price-reconciler/pkg/orchestrate"
	"github.com/Sriram-PR/price-reconciler/pkg/report"
)

// reconcileOptions are the flags of reconcile and watch
type reconcileOptions struct {
	*rootOptions
	catalogPath string
	competitors string
	export      string
	output      string
	metricsAddr string
	noProgress  bool
}

func (o *reconcileOptions) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.catalogPath, "catalog", "", "Catalog file: ';'-separated CSV or XLSX with NomProduit/MonPrix columns (required)")
	cmd.Flags().StringVar(&o.competitors, "competitors", "", "Comma-separated competitor domains (default: all configured)")
	cmd.Flags().StringVar(&o.export, "export", "", "Report format: csv, xlsx or none (default from config)")
	cmd.Flags().StringVar(&o.output, "output", "", "Report output directory (default from config)")
	cmd.Flags().StringVar(&o.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address, e.g. localhost:9090")
	cmd.Flags().BoolVar(&o.noProgress, "no-progress", false, "Disable the progress bar")
	if err := cmd.MarkFlagRequired("catalog"); err != nil {
		panic(fmt.Sprintf("failed to mark catalog flag as required: %v", err))
	}
}

// applyOverrides copies command-line overrides onto the config and revalidates it
func (o *reconcileOptions) applyOverrides(appCfg *config.AppConfig) error {
	if o.export != "" {
		appCfg.Export = o.export
	}
	if o.output != "" {
		appCfg.OutputDir = o.output
	}
	if o.metricsAddr != "" {
		appCfg.MetricsAddr = o.metricsAddr
	}
	_, err := appCfg.Validate()
	return err
}

func (o *reconcileOptions) competitorList() []string {
	var out []string
	for _, part := range strings.Split(o.competitors, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func newReconcileCmd(root *rootOptions) *cobra.Command {
	opts := &reconcileOptions{rootOptions: root}
	cmd := &cobra.Command{
		Use:     "reconcile",
		Aliases: []string{"run"},
		Short:   "Reconcile a catalog against competitor prices once",
		Example: "  price-reconciler reconcile --catalog catalogue.csv\n" +
			"  price-reconciler run --catalog catalogue.xlsx --competitors taklope.com,kumulusvape.fr --export xlsx",
		RunE: func(cmd *cobra.Command, _ []string) error {
			log, err := setupLogger(opts.logLevel, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			ctx, stop := signalContext(log)
			defer stop()

			appCfg, err := loadAndValidateConfig(opts.configPath, log)
			if err != nil {
				return err
			}
			if err := opts.applyOverrides(appCfg); err != nil {
				return err
			}
			m := metrics.New()
			if appCfg.MetricsAddr != "" {
				go func() {
					if err := m.Serve(ctx, appCfg.MetricsAddr, log.WithField("component", "metrics")); err != nil {
						log.Errorf("Metrics server failed: %v", err)
					}
				}()
			}

			rt, err := orchestrate.Build(ctx, *appCfg, opts.configPath, m, log.WithField("component", "orchestrator"))
			if err != nil {
				return err
			}
			defer rt.Close()

			_, err = executeReconcile(ctx, rt, *appCfg, opts, cmd.OutOrStdout(), cmd.ErrOrStderr(), log)
			return err
		},
	}
	opts.bind(cmd)
	return cmd
}

// runner is the part of the orchestrator a reconcile needs
type runner interface {
	Run(ctx context.Context, req orchestrate.Request) (*orchestrate.RunSummary, error)
}

// reconcileResult is what one reconcile reports to its caller
type reconcileResult struct {
	Summary *orchestrate.RunSummary
	Catalog *catalog.Catalog
	Report  string
}

// executeReconcile loads the catalog, runs, exports and prints the report.
// An interrupted run still prints and exports what it finished.
func executeReconcile(ctx context.Context, rt runner, appCfg config.AppConfig, opts *reconcileOptions,
	stdout, stderr io.Writer, log *logrus.Logger) (*reconcileResult, error) {

	cat, err := catalog.Load(opts.catalogPath, appCfg.Catalog, log.WithField("component", "catalog"))
	if err != nil {
		return nil, err
	}
	res := &reconcileResult{Catalog: cat}

	bar := newProgressBar(stderr, !opts.noProgress)
	summary, runErr := rt.Run(ctx, orchestrate.Request{
		Catalog:     cat.Products,
		CatalogPath: cat.Path,
		CatalogHash: cat.Hash,
		Competitors: opts.competitorList(),
		Progress:    bar.Update,
	})
	bar.Stop()
	if summary == nil {
		return res, runErr
	}
	res.Summary = summary

	path, err := report.Export(appCfg.OutputDir, appCfg.Export, summary.Rows, time.Now())
	if err != nil {
		summary.Warnings = append(summary.Warnings, fmt.Sprintf("report export failed: %v", err))
		log.Errorf("Report export failed: %v", err)
	}
	res.Report = path

	if len(summary.Rows) > 0 {
		report.RenderTable(stdout, summary.Rows, appCfg.SimilarityThreshold)
	}
	report.RenderSummary(stdout, report.Totals{
		Total:     summary.Total,
		Succeeded: summary.Succeeded,
		Failed:    summary.Failed,
		Forwarded: summary.Forwarded,
		Skipped:   summary.Skipped,
		Counts:    summary.Counts,
		Report:    path,
		Warnings:  summary.Warnings,
	})

	if errors.Is(runErr, context.Canceled) {
		log.Warn("Run was interrupted, the report covers the pairs finished before the signal")
	}
	return res, runErr
}
