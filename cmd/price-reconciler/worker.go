package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/Sriram-PR/price-reconciler/pkg/automation"
	"github.com/Sriram-PR/price-reconciler/pkg/config"
)

// newWorkerCmd is the child side of the automation channel: tasks on stdin,
// results on stdout, JSON logs on stderr for the parent to re-emit
func newWorkerCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:    automation.WorkerSubcommand,
		Short:  "Run the browser automation worker loop on stdin/stdout",
		Hidden: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			log := logrus.New()
			log.SetOutput(os.Stderr)
			log.SetFormatter(&logrus.JSONFormatter{})
			if level, err := logrus.ParseLevel(root.logLevel); err == nil {
				log.SetLevel(level)
			}
			entry := log.WithField("pid", os.Getpid())

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			appCfg, err := config.Load(root.configPath)
			if err != nil {
				return err
			}
			warnings, err := appCfg.Validate()
			for _, w := range warnings {
				entry.Debug(w)
			}
			if err != nil {
				return err
			}

			err = automation.RunWorker(ctx, *appCfg, os.Stdin, os.Stdout, entry)
			if err != nil && ctx.Err() == nil {
				entry.Errorf("Automation worker stopped: %v", err)
				return err
			}
			entry.Info("Automation worker exiting")
			return nil
		},
	}
}
