package orchestrate

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/price-reconciler/pkg/cache"
	"github.com/Sriram-PR/price-reconciler/pkg/config"
	"github.com/Sriram-PR/price-reconciler/pkg/models"
	"github.com/Sriram-PR/price-reconciler/pkg/utils"
)

// loadCache builds the run's cache store. A collection whose snapshot still awaits
// a remote write is taken from shared state; the others come from the remote store
// and refresh shared state. A remote failure falls back to the last snapshot.
func (o *Orchestrator) loadCache(ctx context.Context, log *logrus.Entry) (*cache.Store, []models.Collection, []string, error) {
	pending, err := o.deps.Snapshots.PendingCollections()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("read pending collections: %w", err)
	}

	var warnings []string
	sheets := make(map[models.Collection]*models.Sheet, 2)
	for _, c := range models.AllCollections() {
		cLog := log.WithField("collection", c)
		if slices.Contains(pending, c) {
			sheet, _, found, err := o.deps.Snapshots.LoadSnapshot(c)
			if err != nil {
				return nil, nil, nil, fmt.Errorf("load %s from shared state: %w", c, err)
			}
			if found {
				cLog.Warn("Local changes were never pushed, loading from shared state and retrying the push")
				sheets[c] = sheet
				continue
			}
		}

		sheet, err := o.deps.Remote.Load(ctx, c)
		if err != nil {
			o.deps.Metrics.Error(err)
			snap, _, found, snapErr := o.deps.Snapshots.LoadSnapshot(c)
			if snapErr != nil || !found {
				return nil, nil, nil, fmt.Errorf("load %s from %s: %w", c, o.deps.Remote.Name(), err)
			}
			cLog.Warnf("Remote load failed, using the last shared-state copy: %v", err)
			warnings = append(warnings, fmt.Sprintf("%s: remote load failed, used shared state (%v)", c, err))
			sheets[c] = snap
			continue
		}
		if err := o.deps.Snapshots.SaveSnapshot(c, sheet, false); err != nil {
			cLog.Warnf("Could not refresh shared state: %v", err)
		}
		sheets[c] = sheet
	}

	store := cache.FromSheets(sheets, o.deps.Log.WithField("component", "cache"))
	for _, c := range models.AllCollections() {
		if err := store.Err(c); err != nil {
			warnings = append(warnings, err.Error())
		}
	}
	log.Infof("Cache loaded: %d confirmed URLs, %d pending verifications",
		store.Len(models.CollectionURLs), store.Len(models.CollectionVerification))
	return store, pending, warnings, nil
}

// flush writes every dirty (or previously unpushed) collection to shared state
// with the pending flag, then overwrites it remotely and clears the flag on success.
// Failures come back as warnings.
func (o *Orchestrator) flush(ctx context.Context, store *cache.Store, pendingAtLoad []models.Collection,
	summary *RunSummary, log *logrus.Entry) (warnings []string) {

	for _, c := range models.AllCollections() {
		if !store.Dirty(c) && !slices.Contains(pendingAtLoad, c) {
			continue
		}
		if store.Err(c) != nil {
			continue
		}
		cLog := log.WithField("collection", c)
		sheet := store.Sheet(c)

		if err := o.deps.Snapshots.SaveSnapshot(c, sheet, true); err != nil {
			o.deps.Metrics.Error(err)
			warnings = append(warnings, fmt.Sprintf("%s: shared state write failed: %v", c, err))
			cLog.Errorf("Shared state write failed: %v", err)
		}

		err := o.deps.Remote.Replace(ctx, c, sheet)
		o.deps.Metrics.Flush(string(c), err)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("%s: push to %s failed, kept for the next run: %v", c, o.deps.Remote.Name(), err))
			cLog.Errorf("Remote overwrite failed: %v", err)
			continue
		}
		if err := o.deps.Snapshots.MarkSynced(c); err != nil {
			cLog.Warnf("Could not clear pending flag: %v", err)
		}
		store.MarkClean(c)
		summary.Flushed = append(summary.Flushed, c)
		cLog.Infof("Pushed %d rows to %s", len(sheet.Rows), o.deps.Remote.Name())
	}
	return warnings
}

// Push overwrites the remote store with the shared-state copy of every collection
func (o *Orchestrator) Push(ctx context.Context) ([]models.Collection, error) {
	o.runMu.Lock()
	defer o.runMu.Unlock()

	var pushed []models.Collection
	for _, c := range models.AllCollections() {
		sheet, _, found, err := o.deps.Snapshots.LoadSnapshot(c)
		if err != nil {
			return pushed, err
		}
		if !found {
			continue
		}
		if err := o.deps.Remote.Replace(ctx, c, sheet); err != nil {
			o.deps.Metrics.Flush(string(c), err)
			return pushed, fmt.Errorf("%w: push %s: %w", utils.ErrRemoteStore, c, err)
		}
		o.deps.Metrics.Flush(string(c), nil)
		if err := o.deps.Snapshots.MarkSynced(c); err != nil {
			return pushed, err
		}
		pushed = append(pushed, c)
	}
	return pushed, nil
}

// LocalCache reads the shared-state copy of both collections without contacting the
// remote store. It also returns the collections still awaiting a push.
func (o *Orchestrator) LocalCache() (*cache.Store, []models.Collection, error) {
	pending, err := o.deps.Snapshots.PendingCollections()
	if err != nil {
		return nil, nil, err
	}
	sheets := make(map[models.Collection]*models.Sheet, 2)
	for _, c := range models.AllCollections() {
		sheet, _, found, err := o.deps.Snapshots.LoadSnapshot(c)
		if err != nil {
			return nil, nil, err
		}
		if found {
			sheets[c] = sheet
		}
	}
	return cache.FromSheets(sheets, o.deps.Log.WithField("component", "cache")), pending, nil
}

// record stores the run in the run history, when one is configured
func (o *Orchestrator) record(req Request, comps []config.CompetitorConfig, summary *RunSummary, runErr error, log *logrus.Entry) {
	if o.deps.Runs == nil {
		return
	}
	domains := make([]string, 0, len(comps))
	for _, c := range comps {
		domains = append(domains, c.Domain)
	}
	rec := models.RunRecord{
		ID:          summary.RunID,
		StartedAt:   summary.StartedAt,
		FinishedAt:  summary.StartedAt.Add(summary.Duration),
		Duration:    summary.Duration.Round(time.Millisecond),
		Catalog:     req.CatalogPath,
		CatalogHash: req.CatalogHash,
		Competitors: domains,
		Total:       summary.Total,
		Completed:   summary.Completed,
		Succeeded:   summary.Succeeded,
		Failed:      summary.Failed,
		Forwarded:   summary.Forwarded,
		Warnings:    summary.Warnings,
	}
	if runErr != nil {
		rec.Error = runErr.Error()
	}
	if err := o.deps.Runs.RecordRun(rec); err != nil {
		log.Warnf("Could not record run: %v", err)
	}
}

// RecentRuns returns the run history, newest first
func (o *Orchestrator) RecentRuns(limit int) ([]models.RunRecord, error) {
	if o.deps.Runs == nil {
		return nil, nil
	}
	return o.deps.Runs.RecentRuns(limit)
}

// Config returns the validated config the orchestrator runs with
func (o *Orchestrator) Config() config.AppConfig { return o.deps.Config }
