package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Sriram-PR/price-reconciler/pkg/mcp"
	"github.com/Sriram-PR/price-reconciler/pkg/orchestrate"
)

func newMcpServerCmd(root *rootOptions) *cobra.Command {
	var transport string
	var port int
	cmd := &cobra.Command{
		Use:   "mcp-server",
		Short: "Expose reconciliation as MCP tools",
		Long: `Start an MCP (Model Context Protocol) server exposing the reconciler as tools.

Tools:
  list_competitors   List configured competitor sites
  reconcile          Start a background reconcile of a catalog file
  get_job_status     Poll a reconcile job
  lookup_url         Resolve a product/competitor pair from the local cache
  list_verification  List pairs awaiting manual review`,
		Example: "  price-reconciler mcp-server --config config.yaml\n" +
			"  price-reconciler mcp-server --config config.yaml --transport sse --port 8080",
		RunE: func(cmd *cobra.Command, _ []string) error {
			// The MCP protocol owns stdout
			log, err := setupLogger(root.logLevel, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			appCfg, err := loadAndValidateConfig(root.configPath, log)
			if err != nil {
				return err
			}

			rt, err := orchestrate.Build(context.Background(), *appCfg, root.configPath, nil, log.WithField("component", "orchestrator"))
			if err != nil {
				return err
			}
			defer rt.Close()

			server, err := mcp.NewServer(&mcp.ServerConfig{
				Backend:    rt,
				ConfigPath: root.configPath,
				Transport:  transport,
				Port:       port,
				Logger:     log,
			})
			if err != nil {
				return fmt.Errorf("create MCP server: %w", err)
			}
			defer server.Shutdown(context.Background())

			log.Infof("Starting MCP server (transport: %s)", transport)
			if err := server.Run(); err != nil {
				return fmt.Errorf("MCP server: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&transport, "transport", "stdio", "Transport type (stdio, sse)")
	cmd.Flags().IntVar(&port, "port", 8080, "HTTP port (for sse transport)")
	return cmd
}
