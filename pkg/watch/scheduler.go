package watch

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Outcome is what one scheduled reconciliation reports back
type Outcome struct {
	Total         int
	Succeeded     int
	Failed        int
	CatalogSHA256 string
	Report        string
}

// RunFunc performs one reconciliation
type RunFunc func(ctx context.Context) (Outcome, error)

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Scheduler runs reconciliations on a cron schedule and persists the last outcome
type Scheduler struct {
	spec         string
	schedule     cron.Schedule
	run          RunFunc
	log          *logrus.Entry
	stateManager *StateManager
	cron         *cron.Cron

	mu      sync.Mutex
	running bool
}

// NewScheduler parses spec (a cron expression, a descriptor, or a plain interval such as "24h" or "7d")
func NewScheduler(stateDir, spec string, run RunFunc, log *logrus.Entry) (*Scheduler, error) {
	normalized, err := NormalizeSchedule(spec)
	if err != nil {
		return nil, err
	}
	sched, err := parser.Parse(normalized)
	if err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", spec, err)
	}

	cronLog := cron.PrintfLogger(log)
	return &Scheduler{
		spec:         normalized,
		schedule:     sched,
		run:          run,
		log:          log,
		stateManager: NewStateManager(stateDir),
		cron: cron.New(
			cron.WithParser(parser),
			cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
		),
	}, nil
}

// NormalizeSchedule turns plain intervals into "@every" descriptors and leaves cron specs alone
func NormalizeSchedule(spec string) (string, error) {
	if spec == "" {
		return "", fmt.Errorf("empty schedule (examples: \"0 6 * * *\", \"@daily\", \"24h\")")
	}
	if d, err := ParseInterval(spec); err == nil {
		if d <= 0 {
			return "", fmt.Errorf("schedule interval must be positive: %s", spec)
		}
		return "@every " + d.String(), nil
	}
	return spec, nil
}

// Run loads the state, catches up a missed run, then blocks on the schedule until ctx is done
func (s *Scheduler) Run(ctx context.Context) error {
	if err := s.stateManager.Load(); err != nil {
		s.log.Warnf("Failed to load watch state: %v (starting fresh)", err)
	}
	s.stateManager.SetSchedule(s.spec)

	if _, err := s.cron.AddFunc(s.spec, func() { s.RunOnce(ctx) }); err != nil {
		return fmt.Errorf("schedule reconcile: %w", err)
	}

	s.log.Infof("Starting watch mode with schedule '%s'", s.spec)
	if s.due(time.Now()) {
		s.log.Info("Last run missing or overdue, running now")
		s.RunOnce(ctx)
	}
	s.cron.Start()
	s.logNextRun()

	<-ctx.Done()
	s.log.Info("Watch scheduler shutting down...")
	<-s.cron.Stop().Done()
	return nil
}

// due reports whether no run is recorded or the next scheduled time after the last run has passed
func (s *Scheduler) due(now time.Time) bool {
	last, ok := s.stateManager.Last()
	if !ok {
		return true
	}
	return !s.schedule.Next(last.LastRunTime).After(now)
}

// RunOnce performs one reconciliation and records its outcome. Overlapping calls are skipped
func (s *Scheduler) RunOnce(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		s.log.Warn("Previous reconcile still running, skipping this tick")
		return
	}
	s.running = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	if ctx.Err() != nil {
		return
	}

	start := time.Now()
	out, err := s.run(ctx)
	rs := RunState{
		LastRunTime:    start,
		LastRunSuccess: err == nil,
		Duration:       time.Since(start),
		Total:          out.Total,
		Succeeded:      out.Succeeded,
		Failed:         out.Failed,
		CatalogSHA256:  out.CatalogSHA256,
		Report:         out.Report,
	}
	if err != nil {
		rs.ErrorMessage = err.Error()
		s.log.Errorf("Scheduled reconcile failed: %v", err)
	} else {
		s.log.WithFields(logrus.Fields{
			"total": out.Total, "succeeded": out.Succeeded, "failed": out.Failed,
		}).Infof("Scheduled reconcile finished in %v", rs.Duration.Round(time.Millisecond))
	}

	s.stateManager.Record(rs)
	if err := s.stateManager.Save(); err != nil {
		s.log.Errorf("Failed to save watch state: %v", err)
	}
	s.logNextRun()
}

// NextRun returns the next scheduled time after now
func (s *Scheduler) NextRun(now time.Time) time.Time {
	return s.schedule.Next(now)
}

// State returns the persisted watch state
func (s *Scheduler) State() WatchState {
	return s.stateManager.State()
}

func (s *Scheduler) logNextRun() {
	next := s.NextRun(time.Now())
	until := time.Until(next)
	if until < 0 {
		until = 0
	}
	s.log.Infof("Next reconcile in %s (at %s)", FormatInterval(until.Round(time.Second)), next.Format("2006-01-02 15:04:05"))
}

// FormatInterval formats a duration for display
func FormatInterval(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	if d < 24*time.Hour {
		hours := int(d.Hours())
		mins := int(d.Minutes()) % 60
		if mins > 0 {
			return fmt.Sprintf("%dh%dm", hours, mins)
		}
		return fmt.Sprintf("%dh", hours)
	}
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	if hours > 0 {
		return fmt.Sprintf("%dd%dh", days, hours)
	}
	return fmt.Sprintf("%dd", days)
}

// ParseInterval parses a duration string with support for days
func ParseInterval(s string) (time.Duration, error) {
	d, err := time.ParseDuration(s)
	if err == nil {
		return d, nil
	}

	if i := strings.IndexByte(s, 'd'); i > 0 {
		days, err := strconv.Atoi(s[:i])
		if err == nil && days >= 0 {
			d = time.Duration(days) * 24 * time.Hour
			if remaining := s[i+1:]; remaining != "" {
				extra, err := time.ParseDuration(remaining)
				if err != nil {
					return 0, fmt.Errorf("invalid interval format: %s", s)
				}
				d += extra
			}
			return d, nil
		}
	}

	return 0, fmt.Errorf("invalid interval format: %s (examples: 30m, 1h, 24h, 7d)", s)
}
