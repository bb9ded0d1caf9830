package orchestrate

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/price-reconciler/pkg/automation"
	"github.com/Sriram-PR/price-reconciler/pkg/correlate"
	"github.com/Sriram-PR/price-reconciler/pkg/models"
	"github.com/Sriram-PR/price-reconciler/pkg/utils"
)

// run is the per-run state owned by the consuming goroutine of Run
type run struct {
	o        *Orchestrator
	summary  *RunSummary
	prices   map[string]float64
	progress ProgressFunc
	corr     *correlate.Correlator
	pending  map[string]models.ScrapeResult // Forwarded pairs by task ID
	order    []string                       // Forwarding order of pending
	steps    int
	log      *logrus.Entry
}

// finish correlates a terminal result. step advances progress by one
func (r *run) finish(res models.ScrapeResult, step bool) {
	row, status := r.corr.Process(res, r.prices[res.Product])
	res.Status = status
	if row != nil {
		r.summary.Rows = append(r.summary.Rows, *row)
		r.summary.Succeeded++
	}
	r.summary.Results = append(r.summary.Results, res)
	r.summary.Counts[status.Label()]++
	r.summary.Completed++
	r.o.deps.Metrics.ObservePair(res.Domain, status.Label(), res.Duration)

	r.log.WithFields(logrus.Fields{
		"product": res.Product, "domain": res.Domain, "stage": "done",
		"status": status.String(), "source": res.Source.Label(),
	}).Debug("Pair finished")

	if step {
		r.advance()
	}
}

// advance moves progress one step. Steps and terminal pairs differ only while
// collecting worker results: every wait is a step, answered or not.
func (r *run) advance() {
	r.steps++
	r.progress(r.steps, r.summary.Total)
}

// forward hands a browser pair to the worker, or degrades it when the worker is not usable
func (r *run) forward(worker WorkerChannel, ready bool, res models.ScrapeResult) {
	if ready {
		err := worker.Submit(automation.Task{ID: res.TaskID, URL: res.URL, Product: res.Product})
		if err == nil {
			r.pending[res.TaskID] = res
			r.order = append(r.order, res.TaskID)
			r.summary.Forwarded++
			return
		}
		r.log.WithField("product", res.Product).Warnf("Could not forward to automation worker: %v", err)
	}
	res.Status = models.WorkerNotReady()
	r.finish(res, true)
}

// collect waits once per forwarded task, each wait with its own timeout.
// Pairs still unanswered afterwards are closed as timeouts, or as cancelled when ctx is done,
// without advancing progress since each wait already did.
func (r *run) collect(ctx context.Context, worker WorkerChannel) {
	timeout := r.o.deps.Config.Automation.ResultTimeout
	if timeout <= 0 {
		timeout = 180 * time.Second
	}
	waits := len(r.pending)
	r.log.Infof("Collecting %d results from the automation worker", waits)

	waited := 0
	for ; waited < waits; waited++ {
		res, err := worker.Next(ctx, timeout)
		switch {
		case err == nil:
			r.accept(res)
			continue
		case errors.Is(err, utils.ErrResultTimeout):
			r.log.Warnf("No automation result within %s (%d/%d)", timeout, waited+1, waits)
			r.o.deps.Metrics.AutomationTask("timeout")
		case errors.Is(err, utils.ErrWorkerExited):
			r.log.Errorf("Automation worker gone while waiting for results (%d/%d)", waited+1, waits)
			r.o.deps.Metrics.AutomationTask("exited")
		default:
			r.log.Warnf("Stopped collecting automation results: %v", err)
		}
		if ctx.Err() != nil {
			break
		}
		r.advance()
	}

	for _, id := range r.order {
		res, ok := r.pending[id]
		if !ok {
			continue
		}
		delete(r.pending, id)
		if err := ctx.Err(); err != nil {
			res.Status = models.Cancelled(err.Error())
		} else {
			res.Status = models.Timeout("no result from the automation worker")
		}
		r.finish(res, false)
	}
}

// accept matches a worker result to its forwarded pair
func (r *run) accept(res automation.Result) {
	pair, ok := r.pending[res.ID]
	if !ok {
		r.log.WithFields(logrus.Fields{"task_id": res.ID, "product": res.Product}).
			Warn("Automation result for an unknown or already answered task")
		r.o.deps.Metrics.AutomationTask("unmatched")
		r.advance()
		return
	}
	delete(r.pending, res.ID)
	r.o.deps.Metrics.AutomationTask("result")

	pair.Status = res.StatusValue()
	if !pair.Status.IsTerminal() {
		pair.Status = models.Internal(models.ReasonProcessingError, "worker returned non-terminal status "+string(res.Status))
	}
	pair.CompetitorName, pair.CompetitorPrice = res.Name, res.Price
	r.finish(pair, true)
}
