// Package orchestrate runs one reconciliation: every catalog product against every
// selected competitor, through a bounded pool plus the automation worker.
package orchestrate

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"github.com/Sriram-PR/price-reconciler/pkg/automation"
	"github.com/Sriram-PR/price-reconciler/pkg/cache"
	"github.com/Sriram-PR/price-reconciler/pkg/config"
	"github.com/Sriram-PR/price-reconciler/pkg/correlate"
	"github.com/Sriram-PR/price-reconciler/pkg/extract"
	"github.com/Sriram-PR/price-reconciler/pkg/fetch"
	"github.com/Sriram-PR/price-reconciler/pkg/metrics"
	"github.com/Sriram-PR/price-reconciler/pkg/models"
	"github.com/Sriram-PR/price-reconciler/pkg/remote"
	"github.com/Sriram-PR/price-reconciler/pkg/resolve"
	"github.com/Sriram-PR/price-reconciler/pkg/search"
	"github.com/Sriram-PR/price-reconciler/pkg/storage"
	"github.com/Sriram-PR/price-reconciler/pkg/utils"
)

// ProgressFunc is called with the number of terminal pairs so far and the run total
type ProgressFunc func(completed, total int)

// WorkerChannel is the automation worker as seen by the orchestrator.
// automation.ProcessChannel implements it.
type WorkerChannel interface {
	Start(ctx context.Context) error
	Alive(ctx context.Context) bool
	Submit(task automation.Task) error
	Next(ctx context.Context, timeout time.Duration) (automation.Result, error)
	Stop() error
}

// Deps are the collaborators of a run. Config must already be validated.
type Deps struct {
	Config    config.AppConfig
	Extractor extract.Extractor
	Searcher  search.Searcher
	Snapshots storage.SnapshotStore
	Runs      storage.RunStore // Optional
	Remote    remote.Store
	NewWorker func() WorkerChannel // Optional; without it browser pairs degrade to "No URL To Scrape"

	RateLimiter *fetch.RateLimiter        // Optional; defaults to unlimited
	HostLimits  *fetch.HostSemaphorePool // Optional; defaults to the pool size per domain
	Metrics     *metrics.Metrics         // Optional
	Log         *logrus.Entry
}

// Request describes one run
type Request struct {
	Catalog     []models.Product
	CatalogPath string
	CatalogHash string
	Competitors []string // Domains; empty selects every configured competitor
	Progress    ProgressFunc
}

// RunSummary is the outcome of a run
type RunSummary struct {
	RunID     string
	StartedAt time.Time
	Duration  time.Duration
	Total     int
	Completed int
	Succeeded int
	Failed    int
	Forwarded int
	Skipped   int // Pairs never submitted because the run was cancelled
	Counts    map[string]int
	Rows      []models.ReportRow
	Results   []models.ScrapeResult
	Warnings  []string
	Flushed   []models.Collection
}

// Orchestrator runs reconciliations. Runs are serialized
type Orchestrator struct {
	deps     Deps
	resolver *resolve.Resolver
	log      *logrus.Entry
	runMu    sync.Mutex
}

// New checks deps and applies the per-competitor pacing settings
func New(deps Deps) (*Orchestrator, error) {
	if deps.Log == nil {
		return nil, errors.New("orchestrator needs a logger")
	}
	if deps.Extractor == nil || deps.Snapshots == nil || deps.Remote == nil {
		return nil, fmt.Errorf("%w: orchestrator needs an extractor, a snapshot store and a remote store", utils.ErrConfigValidation)
	}
	if deps.Config.Workers <= 0 {
		deps.Config.Workers = 10
	}
	if deps.RateLimiter == nil {
		deps.RateLimiter = fetch.NewRateLimiter(0, deps.Log)
	}
	if deps.HostLimits == nil {
		deps.HostLimits = fetch.NewHostSemaphorePool(deps.Config.Workers, deps.Log)
	}
	for _, comp := range deps.Config.Competitors {
		if comp.RatePerSecond > 0 {
			deps.RateLimiter.SetRate(comp.Domain, comp.RatePerSecond)
		}
		deps.HostLimits.SetLimit(comp.Domain, comp.MaxConcurrent)
	}
	return &Orchestrator{
		deps:     deps,
		resolver: resolve.New(deps.Searcher, deps.Log.WithField("component", "resolver")),
		log:      deps.Log.WithField("component", "orchestrator"),
	}, nil
}

// Run reconciles req.Catalog against the selected competitors.
// Only setup problems are returned as errors; per-pair failures end up in the summary.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*RunSummary, error) {
	o.runMu.Lock()
	defer o.runMu.Unlock()

	summary := &RunSummary{RunID: uuid.NewString(), StartedAt: time.Now(), Counts: make(map[string]int)}
	runLog := o.log.WithField("run_id", summary.RunID)

	comps, err := o.deps.Config.SelectCompetitors(req.Competitors)
	if err != nil {
		return nil, err
	}
	if len(req.Catalog) == 0 {
		return nil, utils.WrapErrorf(utils.ErrCatalog, "catalog is empty")
	}
	if len(comps) == 0 {
		return nil, utils.WrapErrorf(utils.ErrConfigValidation, "no competitors selected")
	}

	store, pendingAtLoad, warnings, err := o.loadCache(ctx, runLog)
	if err != nil {
		return nil, err
	}
	summary.Warnings = append(summary.Warnings, warnings...)

	summary.Total = len(req.Catalog) * len(comps)
	progress := req.Progress
	if progress == nil {
		progress = func(int, int) {}
	}
	progress(0, summary.Total)
	runLog.Infof("Reconciling %d products against %d competitors (%d pairs)", len(req.Catalog), len(comps), summary.Total)

	worker, workerReady := o.startWorker(ctx, comps, runLog)
	if worker != nil {
		defer func() { _ = worker.Stop() }() // Idempotent; covers panics before the explicit Stop
	}
	if hasBrowser(comps) && !workerReady {
		summary.Warnings = append(summary.Warnings, "automation worker not ready, browser competitor pairs were not scraped")
	}

	prices := make(map[string]float64, len(req.Catalog))
	for _, p := range req.Catalog {
		prices[p.Name] = p.MyPrice
	}
	r := &run{
		o:        o,
		summary:  summary,
		prices:   prices,
		progress: progress,
		corr:     correlate.New(store, o.deps.Log.WithField("component", "correlator")),
		pending:  make(map[string]models.ScrapeResult),
		log:      runLog,
	}

	// Pool tasks read a private copy; the correlator writes to store
	view := cache.FromSheets(store.Sheets(), o.deps.Log.WithField("component", "cache-view"))
	results := o.submitAll(ctx, view, req.Catalog, comps, summary, runLog)

	for res := range results {
		if res.Status.Kind == models.StatusRequiresBrowser {
			r.forward(worker, workerReady, res)
			continue
		}
		r.finish(res, true)
	}

	if len(r.pending) > 0 {
		r.collect(ctx, worker)
	}
	if worker != nil {
		if err := worker.Stop(); err != nil {
			runLog.Warnf("Stopping automation worker: %v", err)
		}
	}

	// The flush runs even when ctx was cancelled
	flushCtx := context.WithoutCancel(ctx)
	summary.Warnings = append(summary.Warnings, o.flush(flushCtx, store, pendingAtLoad, summary, runLog)...)

	summary.Duration = time.Since(summary.StartedAt)
	summary.Failed = summary.Completed - summary.Succeeded
	o.record(req, comps, summary, ctx.Err(), runLog)
	o.deps.Metrics.Run(ctx.Err())

	runLog.WithFields(logrus.Fields{
		"completed": summary.Completed, "succeeded": summary.Succeeded,
		"failed": summary.Failed, "forwarded": summary.Forwarded,
	}).Infof("Run finished in %s", summary.Duration.Round(time.Millisecond))
	if err := ctx.Err(); err != nil {
		return summary, fmt.Errorf("run interrupted: %w", err)
	}
	return summary, nil
}

func hasBrowser(comps []config.CompetitorConfig) bool {
	for _, c := range comps {
		if c.Browser {
			return true
		}
	}
	return false
}

// startWorker launches the automation worker when a selected competitor needs it.
// A worker that fails to start or dies during the grace period is reported not ready.
func (o *Orchestrator) startWorker(ctx context.Context, comps []config.CompetitorConfig, log *logrus.Entry) (WorkerChannel, bool) {
	if !hasBrowser(comps) {
		return nil, false
	}
	if o.deps.NewWorker == nil {
		log.Warn("A browser competitor is selected but no automation worker is configured")
		return nil, false
	}
	w := o.deps.NewWorker()
	if err := w.Start(ctx); err != nil {
		log.Errorf("Automation worker failed to start: %v", err)
		o.deps.Metrics.Error(err)
		return w, false
	}
	if !w.Alive(ctx) {
		log.Error("Automation worker exited during startup")
		o.deps.Metrics.Error(utils.ErrWorkerExited)
		return w, false
	}
	log.Info("Automation worker ready")
	return w, true
}

// submitAll feeds every pair to a pool bounded by a weighted semaphore.
// The returned channel is closed once every submitted task has delivered its result.
func (o *Orchestrator) submitAll(ctx context.Context, view resolve.Lookup, catalog []models.Product,
	comps []config.CompetitorConfig, summary *RunSummary, log *logrus.Entry) <-chan models.ScrapeResult {

	total := len(catalog) * len(comps)
	results := make(chan models.ScrapeResult, total)
	sem := semaphore.NewWeighted(int64(o.deps.Config.Workers))

	go func() {
		var wg sync.WaitGroup
		defer func() {
			wg.Wait()
			close(results)
		}()
		submitted := 0
		for _, product := range catalog {
			for _, comp := range comps {
				if err := sem.Acquire(ctx, 1); err != nil {
					summary.Skipped = total - submitted
					log.Warnf("Run cancelled, %d pairs not submitted", summary.Skipped)
					return
				}
				submitted++
				wg.Add(1)
				go func(p models.Product, c config.CompetitorConfig) {
					defer wg.Done()
					defer sem.Release(1)
					results <- o.runPair(ctx, view, p, c)
				}(product, comp)
			}
		}
	}()
	return results
}

// interruptible reports whether a status may stem from the run being stopped
// rather than from the competitor itself
func interruptible(s models.Status) bool {
	switch s.Kind {
	case models.StatusSuccess, models.StatusRequiresBrowser, models.StatusVerificationPending:
		return false
	}
	return true
}

// runPair resolves the URL and, for HTTP competitors, extracts the page.
// It always returns a result; a panic becomes an internal Panic status, and a
// failure observed after ctx is done becomes Cancelled.
func (o *Orchestrator) runPair(ctx context.Context, view resolve.Lookup, product models.Product, comp config.CompetitorConfig) (res models.ScrapeResult) {
	start := time.Now()
	res = models.ScrapeResult{TaskID: uuid.NewString(), Product: product.Name, Domain: comp.Domain}
	defer func() {
		if r := recover(); r != nil {
			o.log.WithFields(logrus.Fields{"product": product.Name, "domain": comp.Domain}).Errorf("PANIC in pair task: %v", r)
			res.Status = models.Internal(models.ReasonPanic, fmt.Sprint(r))
			res.CompetitorName, res.CompetitorPrice = "", nil
		}
		if err := ctx.Err(); err != nil && interruptible(res.Status) {
			res.Status = models.Cancelled(err.Error())
			res.CompetitorName, res.CompetitorPrice = "", nil
		}
		res.Duration = time.Since(start)
	}()

	resolution := o.resolver.Resolve(ctx, view, product.Name, comp.Domain)
	res.URL, res.Source = resolution.URL, resolution.Source
	if !resolution.Found() {
		res.Status = resolution.Status
		return res
	}
	if comp.Browser {
		res.Status = models.RequiresBrowser()
		return res
	}

	if err := o.deps.HostLimits.Acquire(ctx, comp.Domain); err != nil {
		res.Status = models.Internal(models.ReasonRequestError, err.Error())
		return res
	}
	defer o.deps.HostLimits.Release(comp.Domain)
	if err := o.deps.RateLimiter.Wait(ctx, comp.Domain); err != nil {
		res.Status = models.Internal(models.ReasonRequestError, err.Error())
		return res
	}

	ext := o.deps.Extractor.Extract(ctx, res.URL, comp.Domain)
	res.Status, res.CompetitorName, res.CompetitorPrice = ext.Status, ext.Name, ext.Price
	return res
}
