package main

import (
	"io"
	"sync"
	"time"

	"github.com/jedib0t/go-pretty/v6/progress"
)

// progressBar draws one go-pretty tracker fed by the orchestrator's progress callback.
// The tracker is created on the first update, once the run total is known.
type progressBar struct {
	enabled bool
	out     io.Writer

	mu      sync.Mutex
	pw      progress.Writer
	tracker *progress.Tracker
}

func newProgressBar(out io.Writer, enabled bool) *progressBar {
	return &progressBar{enabled: enabled, out: out}
}

// Update implements orchestrate.ProgressFunc
func (b *progressBar) Update(completed, total int) {
	if !b.enabled {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.tracker == nil {
		pw := progress.NewWriter()
		pw.SetOutputWriter(b.out)
		pw.SetAutoStop(false)
		pw.SetTrackerLength(30)
		pw.SetMessageLength(12)
		pw.SetUpdateFrequency(100 * time.Millisecond)
		pw.SetStyle(progress.StyleDefault)
		pw.Style().Visibility.ETA = true
		pw.Style().Visibility.Value = true

		b.tracker = &progress.Tracker{Message: "Reconciling", Total: int64(total), Units: progress.UnitsDefault}
		pw.AppendTracker(b.tracker)
		b.pw = pw
		go pw.Render()
	}
	b.tracker.SetValue(int64(completed))
}

// Stop finishes the bar and waits for the last frame
func (b *progressBar) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.pw == nil {
		return
	}
	b.tracker.MarkAsDone()
	b.pw.Stop()
	for b.pw.IsRenderInProgress() {
		time.Sleep(10 * time.Millisecond)
	}
	b.pw = nil
}
