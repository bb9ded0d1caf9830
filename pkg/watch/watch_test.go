package watch

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func testLogger() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return logrus.NewEntry(log)
}

func TestParseInterval(t *testing.T) {
	tests := []struct {
		input    string
		expected time.Duration
		wantErr  bool
	}{
		{"30s", 30 * time.Second, false},
		{"5m", 5 * time.Minute, false},
		{"1h", time.Hour, false},
		{"24h", 24 * time.Hour, false},
		{"1d", 24 * time.Hour, false},
		{"7d", 7 * 24 * time.Hour, false},
		{"1d12h", 36 * time.Hour, false},
		{"2d6h", 54 * time.Hour, false},
		{"invalid", 0, true},
		{"", 0, true},
		{"0 6 * * *", 0, true},
		{"@daily", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseInterval(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Errorf("ParseInterval(%q) expected error, got nil", tt.input)
				}
				return
			}
			if err != nil {
				t.Errorf("ParseInterval(%q) unexpected error: %v", tt.input, err)
				return
			}
			if got != tt.expected {
				t.Errorf("ParseInterval(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestFormatInterval(t *testing.T) {
	tests := []struct {
		input    time.Duration
		expected string
	}{
		{30 * time.Second, "30s"},
		{5 * time.Minute, "5m"},
		{time.Hour, "1h"},
		{90 * time.Minute, "1h30m"},
		{24 * time.Hour, "1d"},
		{36 * time.Hour, "1d12h"},
		{7 * 24 * time.Hour, "7d"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			got := FormatInterval(tt.input)
			if got != tt.expected {
				t.Errorf("FormatInterval(%v) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestNormalizeSchedule(t *testing.T) {
	tests := []struct {
		input    string
		expected string
		wantErr  bool
	}{
		{"24h", "@every 24h0m0s", false},
		{"1d", "@every 24h0m0s", false},
		{"@every 24h", "@every 24h", false},
		{"0 6 * * *", "0 6 * * *", false},
		{"@daily", "@daily", false},
		{"", "", true},
		{"0s", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := NormalizeSchedule(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Errorf("NormalizeSchedule(%q) expected error, got %q", tt.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("NormalizeSchedule(%q) unexpected error: %v", tt.input, err)
			}
			if got != tt.expected {
				t.Errorf("NormalizeSchedule(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestNewScheduler_InvalidSpec(t *testing.T) {
	run := func(context.Context) (Outcome, error) { return Outcome{}, nil }
	if _, err := NewScheduler(t.TempDir(), "61 * * * *", run, testLogger()); err == nil {
		t.Error("NewScheduler() should reject an out-of-range minute")
	}
}

func TestStateManager(t *testing.T) {
	tmpDir := t.TempDir()
	sm := NewStateManager(tmpDir)

	if err := sm.Load(); err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if _, ok := sm.Last(); ok {
		t.Error("Last() should report no run on a fresh state")
	}

	sm.SetSchedule("@daily")
	sm.Record(RunState{LastRunTime: time.Now(), LastRunSuccess: true, Total: 8, Succeeded: 5, Failed: 3, CatalogSHA256: "abc"})

	if err := sm.Save(); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(tmpDir, stateFileName)); err != nil {
		t.Errorf("State file should exist after Save(): %v", err)
	}

	sm2 := NewStateManager(tmpDir)
	if err := sm2.Load(); err != nil {
		t.Fatalf("Load() from saved state failed: %v", err)
	}
	st := sm2.State()
	if st.Schedule != "@daily" || st.Runs != 1 {
		t.Errorf("State() = %+v, want schedule @daily and 1 run", st)
	}
	last, ok := sm2.Last()
	if !ok {
		t.Fatal("Last() should return the saved run")
	}
	if last.Total != 8 || last.Succeeded != 5 || last.Failed != 3 || last.CatalogSHA256 != "abc" {
		t.Errorf("Last() = %+v", last)
	}
}

func TestStateManager_CorruptFile(t *testing.T) {
	tmpDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(tmpDir, stateFileName), []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := NewStateManager(tmpDir).Load(); err == nil {
		t.Error("Load() should fail on a corrupt state file")
	}
}

func TestRunOnce_RecordsOutcome(t *testing.T) {
	tmpDir := t.TempDir()
	calls := 0
	run := func(context.Context) (Outcome, error) {
		calls++
		if calls == 2 {
			return Outcome{Total: 4}, errors.New("catalog error: no product")
		}
		return Outcome{Total: 4, Succeeded: 3, Failed: 1, CatalogSHA256: "sha", Report: "out.csv"}, nil
	}
	s, err := NewScheduler(tmpDir, "@daily", run, testLogger())
	if err != nil {
		t.Fatalf("NewScheduler() failed: %v", err)
	}

	s.RunOnce(context.Background())
	last, ok := s.stateManager.Last()
	if !ok || !last.LastRunSuccess || last.Succeeded != 3 || last.Report != "out.csv" {
		t.Errorf("after success, Last() = %+v", last)
	}

	s.RunOnce(context.Background())
	last, _ = s.stateManager.Last()
	if last.LastRunSuccess || last.ErrorMessage != "catalog error: no product" {
		t.Errorf("after failure, Last() = %+v", last)
	}

	reloaded := NewStateManager(tmpDir)
	if err := reloaded.Load(); err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if reloaded.State().Runs != 2 {
		t.Errorf("Runs = %d, want 2", reloaded.State().Runs)
	}
}

func TestRunOnce_SkipsOverlap(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	var calls atomic.Int32
	run := func(context.Context) (Outcome, error) {
		if calls.Add(1) == 1 {
			close(started)
			<-release
		}
		return Outcome{}, nil
	}
	s, err := NewScheduler(t.TempDir(), "@daily", run, testLogger())
	if err != nil {
		t.Fatal(err)
	}

	done := make(chan struct{})
	go func() {
		s.RunOnce(context.Background())
		close(done)
	}()
	<-started
	s.RunOnce(context.Background())
	close(release)
	<-done

	if got := calls.Load(); got != 1 {
		t.Errorf("run called %d times, want 1", got)
	}
}

func TestDue(t *testing.T) {
	run := func(context.Context) (Outcome, error) { return Outcome{}, nil }
	s, err := NewScheduler(t.TempDir(), "1h", run, testLogger())
	if err != nil {
		t.Fatal(err)
	}
	now := time.Now()

	if !s.due(now) {
		t.Error("due() should be true when nothing ran yet")
	}
	s.stateManager.Record(RunState{LastRunTime: now.Add(-10 * time.Minute)})
	if s.due(now) {
		t.Error("due() should be false 10m after an hourly run")
	}
	s.stateManager.Record(RunState{LastRunTime: now.Add(-2 * time.Hour)})
	if !s.due(now) {
		t.Error("due() should be true once the next slot has passed")
	}
}

func TestRun_CatchesUpAndStops(t *testing.T) {
	ran := make(chan struct{}, 1)
	run := func(context.Context) (Outcome, error) {
		select {
		case ran <- struct{}{}:
		default:
		}
		return Outcome{Total: 1, Succeeded: 1}, nil
	}
	s, err := NewScheduler(t.TempDir(), "@daily", run, testLogger())
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- s.Run(ctx) }()

	select {
	case <-ran:
	case <-time.After(5 * time.Second):
		t.Fatal("overdue run was not started")
	}
	cancel()
	select {
	case err := <-errc:
		if err != nil {
			t.Errorf("Run() returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not return after cancel")
	}
	if s.State().Schedule != "@daily" {
		t.Errorf("Schedule = %q", s.State().Schedule)
	}
}
