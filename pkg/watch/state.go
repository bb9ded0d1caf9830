package watch

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const stateFileName = "watch_state.json"

// RunState is the outcome of the last scheduled reconciliation
type RunState struct {
	LastRunTime    time.Time     `json:"last_run_time"`
	LastRunSuccess bool          `json:"last_run_success"`
	Duration       time.Duration `json:"duration"`
	Total          int           `json:"total"`
	Succeeded      int           `json:"succeeded"`
	Failed         int           `json:"failed"`
	CatalogSHA256  string        `json:"catalog_sha256,omitempty"`
	Report         string        `json:"report,omitempty"`
	ErrorMessage   string        `json:"error_message,omitempty"`
}

// WatchState is the persisted state of the watch scheduler
type WatchState struct {
	Schedule  string    `json:"schedule"`
	Runs      int       `json:"runs"`
	Last      *RunState `json:"last,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// StateManager handles persisting and loading watch state
type StateManager struct {
	stateDir  string
	statePath string
	state     WatchState
	mu        sync.RWMutex
}

// NewStateManager creates a new state manager
func NewStateManager(stateDir string) *StateManager {
	return &StateManager{
		stateDir:  stateDir,
		statePath: filepath.Join(stateDir, stateFileName),
	}
}

// Path returns the state file location
func (m *StateManager) Path() string {
	return m.statePath
}

// Load loads the state from disk
func (m *StateManager) Load() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, err := os.ReadFile(m.statePath)
	if err != nil {
		if os.IsNotExist(err) {
			m.state = WatchState{}
			return nil
		}
		return fmt.Errorf("failed to read state file: %w", err)
	}

	var st WatchState
	if err := json.Unmarshal(data, &st); err != nil {
		return fmt.Errorf("failed to parse state file: %w", err)
	}
	m.state = st
	return nil
}

// Save saves the state to disk
func (m *StateManager) Save() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.state.UpdatedAt = time.Now()

	if err := os.MkdirAll(m.stateDir, 0755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	data, err := json.MarshalIndent(m.state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	// Write-then-rename so a crash never leaves a truncated file
	tmp := m.statePath + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}
	if err := os.Rename(tmp, m.statePath); err != nil {
		return fmt.Errorf("failed to replace state file: %w", err)
	}
	return nil
}

// SetSchedule records the schedule the state was produced under
func (m *StateManager) SetSchedule(spec string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.Schedule = spec
}

// Record stores the outcome of a finished run
func (m *StateManager) Record(rs RunState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.Runs++
	m.state.Last = &rs
}

// Last returns the last recorded run, if any
func (m *StateManager) Last() (RunState, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.state.Last == nil {
		return RunState{}, false
	}
	return *m.state.Last, true
}

// State returns a copy of the whole state
func (m *StateManager) State() WatchState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st := m.state
	if st.Last != nil {
		last := *st.Last
		st.Last = &last
	}
	return st
}
