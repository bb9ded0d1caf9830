package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/Sriram-PR/price-reconciler/pkg/cache"
	"github.com/Sriram-PR/price-reconciler/pkg/config"
	"github.com/Sriram-PR/price-reconciler/pkg/models"
	"github.com/Sriram-PR/price-reconciler/pkg/orchestrate"
)

func newValidateCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration file without running",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return doValidate(root.configPath, cmd.OutOrStdout())
		},
	}
}

func doValidate(configPath string, stdout io.Writer) error {
	appCfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	warnings, err := appCfg.Validate()
	for _, w := range warnings {
		fmt.Fprintf(stdout, "WARN: %s\n", w)
	}
	if err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	fmt.Fprintf(stdout, "Configuration valid: %d competitors, %d workers, search=%s, remote=%s\n",
		len(appCfg.Competitors), appCfg.Workers, appCfg.Search.Provider, appCfg.Remote.Backend)
	return nil
}

func newListCompetitorsCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list-competitors",
		Short: "List the configured competitor sites",
		RunE: func(cmd *cobra.Command, _ []string) error {
			appCfg, err := config.Load(root.configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if _, err := appCfg.Validate(); err != nil {
				return err
			}
			renderCompetitors(cmd.OutOrStdout(), appCfg.Competitors)
			return nil
		},
	}
}

func renderCompetitors(w io.Writer, comps []config.CompetitorConfig) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Domain", "Fetch", "Name selectors", "Price selectors", "Rate/s"})
	for _, c := range comps {
		fetch := "http"
		if c.Browser {
			fetch = "browser"
		}
		rate := "-"
		if c.RatePerSecond > 0 {
			rate = strconv.FormatFloat(c.RatePerSecond, 'f', -1, 64)
		}
		t.AppendRow(table.Row{c.Domain, fetch, strings.Join(c.NameSelectors, ", "), strings.Join(c.PriceSelectors, ", "), rate})
	}
	t.Render()
}

func newCacheCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or push the local URL cache",
	}

	var domain string
	show := &cobra.Command{
		Use:   "show",
		Short: "Print the locally cached URLs and pending verifications",
		RunE: func(cmd *cobra.Command, _ []string) error {
			log, err := setupLogger(root.logLevel, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			appCfg, err := loadAndValidateConfig(root.configPath, log)
			if err != nil {
				return err
			}
			rt, err := orchestrate.Build(cmd.Context(), *appCfg, root.configPath, nil, log.WithField("component", "orchestrator"))
			if err != nil {
				return err
			}
			defer rt.Close()

			store, pending, err := rt.LocalCache()
			if err != nil {
				return err
			}
			renderCache(cmd.OutOrStdout(), store, pending, strings.ToLower(strings.TrimSpace(domain)))
			return nil
		},
	}
	show.Flags().StringVar(&domain, "domain", "", "Only show rows for this competitor domain")

	push := &cobra.Command{
		Use:   "push",
		Short: "Overwrite the remote store with the local copy of both collections",
		RunE: func(cmd *cobra.Command, _ []string) error {
			log, err := setupLogger(root.logLevel, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			appCfg, err := loadAndValidateConfig(root.configPath, log)
			if err != nil {
				return err
			}
			rt, err := orchestrate.Build(cmd.Context(), *appCfg, root.configPath, nil, log.WithField("component", "orchestrator"))
			if err != nil {
				return err
			}
			defer rt.Close()

			pushed, err := rt.Push(cmd.Context())
			for _, c := range pushed {
				fmt.Fprintf(cmd.OutOrStdout(), "Pushed %s\n", c)
			}
			if err != nil {
				return err
			}
			if len(pushed) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Nothing to push: no local copy yet")
			}
			return nil
		},
	}

	cmd.AddCommand(show, push)
	return cmd
}

func renderCache(w io.Writer, store *cache.Store, pending []models.Collection, domain string) {
	isPending := make(map[models.Collection]bool, len(pending))
	for _, c := range pending {
		isPending[c] = true
	}
	for _, c := range models.AllCollections() {
		t := table.NewWriter()
		t.SetOutputMirror(w)
		t.SetStyle(table.StyleLight)
		title := string(c)
		if isPending[c] {
			title += " (not pushed)"
		}
		t.SetTitle(title)
		t.AppendHeader(table.Row{"Product", "Domain", "URL"})
		shown := 0
		for _, e := range store.Entries(c) {
			if domain != "" && e.Domain != domain {
				continue
			}
			t.AppendRow(table.Row{e.Product, e.Domain, e.URL})
			shown++
		}
		t.AppendFooter(table.Row{"", "Rows", fmt.Sprintf("%d/%d", shown, store.Len(c))})
		t.Render()
	}
}
