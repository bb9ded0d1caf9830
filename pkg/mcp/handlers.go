package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/Sriram-PR/price-reconciler/pkg/catalog"
	"github.com/Sriram-PR/price-reconciler/pkg/models"
	"github.com/Sriram-PR/price-reconciler/pkg/orchestrate"
	"github.com/Sriram-PR/price-reconciler/pkg/report"
)

const (
	defaultVerificationResults = 50
	maxVerificationResults     = 500
)

// handleListCompetitors handles the list_competitors tool
func (s *Server) handleListCompetitors(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cfg := s.cfg.Backend.Config()
	competitors := make([]map[string]interface{}, 0, len(cfg.Competitors))
	for _, comp := range cfg.Competitors {
		info := map[string]interface{}{
			"domain":          comp.Domain,
			"browser":         comp.Browser,
			"name_selectors":  comp.NameSelectors,
			"price_selectors": comp.PriceSelectors,
		}
		if comp.RatePerSecond > 0 {
			info["rate_per_second"] = comp.RatePerSecond
		}
		if comp.MaxConcurrent > 0 {
			info["max_concurrent"] = comp.MaxConcurrent
		}
		competitors = append(competitors, info)
	}

	result := map[string]interface{}{
		"competitors":       competitors,
		"total_competitors": len(competitors),
		"config_path":       s.cfg.ConfigPath,
		"reconcile_running": s.jobManager.AnyRunning(),
	}
	return mcp.NewToolResultText(formatJSON(result)), nil
}

// handleReconcile handles the reconcile tool
func (s *Server) handleReconcile(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	catalogPath := strings.TrimSpace(request.GetString("catalog", ""))
	if catalogPath == "" {
		return mcp.NewToolResultError("catalog parameter is required"), nil
	}
	competitors := splitList(request.GetString("competitors", ""))

	cfg := s.cfg.Backend.Config()
	if _, err := cfg.SelectCompetitors(competitors); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if existing, ok := s.jobManager.ActiveJob(catalogPath); ok {
		result := map[string]interface{}{
			"status":  "already_running",
			"message": "A reconciliation is already in progress for this catalog",
			"job_id":  existing.ID,
			"catalog": catalogPath,
		}
		return mcp.NewToolResultText(formatJSON(result)), nil
	}

	cat, err := catalog.Load(catalogPath, cfg.Catalog, s.log)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to load catalog: %v", err)), nil
	}

	job, created := s.jobManager.CreateJob(catalogPath, competitors)
	if created {
		go s.runReconcileJob(job.ID, cat, competitors)
	}

	result := map[string]interface{}{
		"status":   "started",
		"message":  "Reconciliation started",
		"job_id":   job.ID,
		"catalog":  catalogPath,
		"products": len(cat.Products),
	}
	if len(competitors) > 0 {
		result["competitors"] = competitors
	}
	return mcp.NewToolResultText(formatJSON(result)), nil
}

// runReconcileJob runs one reconciliation in the background and exports its report
func (s *Server) runReconcileJob(jobID string, cat *catalog.Catalog, competitors []string) {
	s.jobManager.UpdateStatus(jobID, JobStatusRunning, "")
	jobCtx := s.jobManager.GetContext(jobID)
	jobLog := s.log.WithField("job_id", jobID)

	summary, err := s.cfg.Backend.Run(jobCtx, orchestrate.Request{
		Catalog:     cat.Products,
		CatalogPath: cat.Path,
		CatalogHash: cat.Hash,
		Competitors: competitors,
		Progress: func(completed, total int) {
			s.jobManager.UpdateProgress(jobID, completed, total)
		},
	})
	if err != nil {
		if jobCtx.Err() != nil || errors.Is(err, context.Canceled) {
			s.jobManager.UpdateStatus(jobID, JobStatusCancelled, "")
		} else {
			s.jobManager.UpdateStatus(jobID, JobStatusFailed, err.Error())
		}
		jobLog.Warnf("Reconcile job ended early: %v", err)
		return
	}

	cfg := s.cfg.Backend.Config()
	warnings := summary.Warnings
	path, err := report.Export(cfg.OutputDir, cfg.Export, summary.Rows, time.Now())
	if err != nil {
		jobLog.Errorf("Report export failed: %v", err)
		warnings = append(warnings, fmt.Sprintf("report export failed: %v", err))
	}
	s.jobManager.Finish(jobID, summary.Succeeded, summary.Failed, path, warnings)
	jobLog.Infof("Reconcile job completed: %d/%d pairs succeeded", summary.Succeeded, summary.Total)
}

// handleGetJobStatus handles the get_job_status tool
func (s *Server) handleGetJobStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	jobID := request.GetString("job_id", "")
	if jobID == "" {
		return mcp.NewToolResultError("job_id parameter is required"), nil
	}

	job, ok := s.jobManager.GetJob(jobID)
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("job '%s' not found", jobID)), nil
	}

	percent := 0.0
	if job.Total > 0 {
		percent = float64(job.Completed) * 100 / float64(job.Total)
	}
	result := map[string]interface{}{
		"job_id":     job.ID,
		"catalog":    job.Catalog,
		"status":     job.Status,
		"started_at": job.StartedAt.Format(time.RFC3339),
		"progress": map[string]interface{}{
			"completed": job.Completed,
			"total":     job.Total,
			"percent":   percent,
		},
	}
	if len(job.Competitors) > 0 {
		result["competitors"] = job.Competitors
	}
	if !job.CompletedAt.IsZero() {
		result["completed_at"] = job.CompletedAt.Format(time.RFC3339)
		result["duration_seconds"] = job.CompletedAt.Sub(job.StartedAt).Seconds()
	}
	if job.Status == JobStatusCompleted {
		result["succeeded"] = job.Succeeded
		result["failed"] = job.Failed
		if job.Report != "" {
			result["report"] = job.Report
		}
	}
	if len(job.Warnings) > 0 {
		result["warnings"] = job.Warnings
	}
	if job.ErrorMessage != "" {
		result["error_message"] = job.ErrorMessage
	}
	return mcp.NewToolResultText(formatJSON(result)), nil
}

// handleLookupURL handles the lookup_url tool
func (s *Server) handleLookupURL(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	product := request.GetString("product", "")
	domain := request.GetString("domain", "")
	if strings.TrimSpace(product) == "" || strings.TrimSpace(domain) == "" {
		return mcp.NewToolResultError("product and domain parameters are required"), nil
	}

	store, _, err := s.cfg.Backend.LocalCache()
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to read local cache: %v", err)), nil
	}

	result := map[string]interface{}{
		"product":   product,
		"domain":    domain,
		"index_key": models.IndexKey(product, domain),
	}

	entry, found, err := store.LookupURL(product, domain)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("confirmed URL lookup failed: %v", err)), nil
	}
	if found {
		result["url"] = entry.URL
	}

	verif, pending, err := store.LookupVerification(product, domain)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("verification lookup failed: %v", err)), nil
	}
	result["verification_pending"] = pending
	if pending && verif.URL != "" {
		result["verification_url"] = verif.URL
	}

	switch {
	case pending:
		result["resolution"] = "verification"
	case found:
		result["resolution"] = "cache"
	default:
		result["resolution"] = "search"
	}
	return mcp.NewToolResultText(formatJSON(result)), nil
}

// handleListVerification handles the list_verification tool
func (s *Server) handleListVerification(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	domain := strings.ToLower(strings.TrimSpace(request.GetString("domain", "")))
	maxResults := request.GetInt("max_results", defaultVerificationResults)
	if maxResults <= 0 {
		maxResults = defaultVerificationResults
	}
	if maxResults > maxVerificationResults {
		maxResults = maxVerificationResults
	}

	store, pendingPush, err := s.cfg.Backend.LocalCache()
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to read local cache: %v", err)), nil
	}

	matched := 0
	entries := make([]map[string]interface{}, 0)
	for _, e := range store.Entries(models.CollectionVerification) {
		if domain != "" && strings.ToLower(strings.TrimSpace(e.Domain)) != domain {
			continue
		}
		matched++
		if len(entries) >= maxResults {
			continue
		}
		entry := map[string]interface{}{"product": e.Product, "domain": e.Domain}
		if e.URL != "" {
			entry["url"] = e.URL
		}
		entries = append(entries, entry)
	}

	unpushed := false
	for _, c := range pendingPush {
		if c == models.CollectionVerification {
			unpushed = true
		}
	}

	result := map[string]interface{}{
		"entries":       entries,
		"total_matches": matched,
		"truncated":     matched > len(entries),
		"unpushed":      unpushed,
	}
	if domain != "" {
		result["domain"] = domain
	}
	return mcp.NewToolResultText(formatJSON(result)), nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// formatJSON formats data as an indented JSON string
func formatJSON(data map[string]interface{}) string {
	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("{\"error\": %q}", err.Error())
	}
	return string(b)
}
