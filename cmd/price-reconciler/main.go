package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/Sriram-PR/price-reconciler/pkg/config"
)

const version = "1.0.0"

// rootOptions are the flags shared by every subcommand
type rootOptions struct {
	configPath string
	logLevel   string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "price-reconciler",
		Short:         "Compare catalog prices against competitor sites",
		Long:          "price-reconciler finds each catalog product on competitor sites, scrapes name and price, and reports how the prices compare.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "config.yaml", "Path to YAML config file")
	root.PersistentFlags().StringVar(&opts.logLevel, "loglevel", "info", "Log level (debug, info, warn, error)")

	root.AddCommand(
		newReconcileCmd(opts),
		newWorkerCmd(opts),
		newWatchCmd(opts),
		newValidateCmd(opts),
		newListCompetitorsCmd(opts),
		newCacheCmd(opts),
		newMcpServerCmd(opts),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version info",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "price-reconciler %s\n", version)
		},
	}
}

// setupLogger builds the process logger. Logs go to w so stdout stays free for reports
func setupLogger(levelStr string, w io.Writer) (*logrus.Logger, error) {
	log := logrus.New()
	log.SetOutput(w)
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: "15:04:05.000"})
	level, err := logrus.ParseLevel(levelStr)
	if err != nil {
		return nil, fmt.Errorf("invalid log level '%s': %w", levelStr, err)
	}
	log.SetLevel(level)
	return log, nil
}

// loadAndValidateConfig loads the config, applies defaults and logs the warnings
func loadAndValidateConfig(path string, log *logrus.Logger) (*config.AppConfig, error) {
	appCfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	warnings, err := appCfg.Validate()
	for _, w := range warnings {
		log.Warn(w)
	}
	if err != nil {
		return nil, err
	}
	return appCfg, nil
}

// signalContext is cancelled on the first SIGINT/SIGTERM. A second signal exits immediately
func signalContext(log *logrus.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigChan := make(chan os.Signal, 2)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigChan:
			log.Warnf("Received signal: %v. Finishing in-flight pairs and flushing the cache...", sig)
			cancel()
		case <-ctx.Done():
			return
		}
		if sig, ok := <-sigChan; ok {
			log.Warnf("Received second signal: %v. Forcing exit.", sig)
			os.Exit(1)
		}
	}()

	return ctx, func() {
		signal.Stop(sigChan)
		cancel()
	}
}
