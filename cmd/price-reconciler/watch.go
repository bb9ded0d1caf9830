package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/Sriram-PR/price-reconciler/pkg/metrics"
	"github.com/Sriram-PR/price-reconciler/pkg/orchestrate"
	"github.com/Sriram-PR/price-reconciler/pkg/watch"
)

func newWatchCmd(root *rootOptions) *cobra.Command {
	opts := &reconcileOptions{rootOptions: root}
	var schedule string
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Reconcile on a schedule and keep the last-run state",
		Example: "  price-reconciler watch --catalog catalogue.csv --schedule \"0 6 * * *\"\n" +
			"  price-reconciler watch --catalog catalogue.csv --schedule 24h",
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
			opts.noProgress = true

			m := metrics.New()
			if appCfg.MetricsAddr != "" {
				go func() {
					if err := m.Serve(ctx, appCfg.MetricsAddr, log.WithField("component", "metrics")); err != nil {
						log.Errorf("Metrics server failed: %v", err)
					}
				}()
			}

			// The runtime stays open between runs so the state directory stays locked
			rt, err := orchestrate.Build(ctx, *appCfg, opts.configPath, m, log.WithField("component", "orchestrator"))
			if err != nil {
				return err
			}
			defer rt.Close()

			run := func(runCtx context.Context) (watch.Outcome, error) {
				res, err := executeReconcile(runCtx, rt, *appCfg, opts, cmd.OutOrStdout(), io.Discard, log)
				return outcomeOf(res), err
			}
			scheduler, err := watch.NewScheduler(appCfg.StateDir, schedule, run, log.WithField("component", "watch"))
			if err != nil {
				return err
			}
			if err := scheduler.Run(ctx); err != nil {
				return fmt.Errorf("watch scheduler: %w", err)
			}
			log.Info("Watch mode stopped")
			return nil
		},
	}
	opts.bind(cmd)
	cmd.Flags().StringVar(&schedule, "schedule", "@every 24h", "Cron spec, descriptor (@daily) or interval (24h, 7d)")
	return cmd
}

// outcomeOf maps a reconcile result onto the watch state fields
func outcomeOf(res *reconcileResult) watch.Outcome {
	var out watch.Outcome
	if res == nil {
		return out
	}
	if res.Catalog != nil {
		out.CatalogSHA256 = res.Catalog.Hash
	}
	if res.Summary != nil {
		out.Total = res.Summary.Total
		out.Succeeded = res.Summary.Succeeded
		out.Failed = res.Summary.Failed
	}
	out.Report = res.Report
	return out
}
