package mcp

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// JobStatus represents the current state of a reconcile job
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

func (s JobStatus) active() bool {
	return s == JobStatusPending || s == JobStatusRunning
}

// Job represents a background reconcile job
type Job struct {
	ID           string    `json:"id"`
	Catalog      string    `json:"catalog"`
	Competitors  []string  `json:"competitors,omitempty"`
	Status       JobStatus `json:"status"`
	StartedAt    time.Time `json:"started_at"`
	CompletedAt  time.Time `json:"completed_at,omitempty"`
	Completed    int       `json:"completed"`
	Total        int       `json:"total"`
	Succeeded    int       `json:"succeeded"`
	Failed       int       `json:"failed"`
	Report       string    `json:"report,omitempty"`
	Warnings     []string  `json:"warnings,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`

	ctx    context.Context
	cancel context.CancelFunc
}

// JobManager tracks background reconcile jobs. One job per catalog runs at a time
type JobManager struct {
	jobs      map[string]*Job
	mu        sync.RWMutex
	byCatalog map[string]string // catalog path -> jobID for active jobs
}

// NewJobManager creates a new job manager
func NewJobManager() *JobManager {
	return &JobManager{
		jobs:      make(map[string]*Job),
		byCatalog: make(map[string]string),
	}
}

// CreateJob registers a job for catalog. An active job for the same catalog is returned
// instead, with created=false
func (m *JobManager) CreateJob(catalog string, competitors []string) (job Job, created bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existingID, ok := m.byCatalog[catalog]; ok {
		if existing := m.jobs[existingID]; existing != nil && existing.Status.active() {
			return existing.snapshot(), false
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	j := &Job{
		ID:          uuid.New().String(),
		Catalog:     catalog,
		Competitors: append([]string(nil), competitors...),
		Status:      JobStatusPending,
		StartedAt:   time.Now(),
		ctx:         ctx,
		cancel:      cancel,
	}
	m.jobs[j.ID] = j
	m.byCatalog[catalog] = j.ID
	return j.snapshot(), true
}

// snapshot copies the exported fields. Caller holds the lock
func (j *Job) snapshot() Job {
	out := *j
	out.Competitors = append([]string(nil), j.Competitors...)
	out.Warnings = append([]string(nil), j.Warnings...)
	out.ctx, out.cancel = nil, nil
	return out
}

// GetJob returns a copy of the job
func (m *JobManager) GetJob(jobID string) (Job, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	j, ok := m.jobs[jobID]
	if !ok {
		return Job{}, false
	}
	return j.snapshot(), true
}

// ActiveJob returns the job currently running for catalog, if any
func (m *JobManager) ActiveJob(catalog string) (Job, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if id, ok := m.byCatalog[catalog]; ok {
		if j := m.jobs[id]; j != nil && j.Status.active() {
			return j.snapshot(), true
		}
	}
	return Job{}, false
}

// AnyRunning reports whether some job is pending or running
func (m *JobManager) AnyRunning() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, j := range m.jobs {
		if j.Status.active() {
			return true
		}
	}
	return false
}

// UpdateStatus updates the status of a job. Terminal statuses free the catalog slot
func (m *JobManager) UpdateStatus(jobID string, status JobStatus, errorMsg string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.jobs[jobID]
	if !ok || !j.Status.active() {
		return
	}
	j.Status = status
	if !status.active() {
		j.CompletedAt = time.Now()
		delete(m.byCatalog, j.Catalog)
		j.cancel()
	}
	if errorMsg != "" {
		j.ErrorMessage = errorMsg
	}
}

// UpdateProgress records completed out of total pairs
func (m *JobManager) UpdateProgress(jobID string, completed, total int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if j, ok := m.jobs[jobID]; ok {
		j.Completed, j.Total = completed, total
	}
}

// Finish stores the run outcome and marks the job completed
func (m *JobManager) Finish(jobID string, succeeded, failed int, report string, warnings []string) {
	m.mu.Lock()
	if j, ok := m.jobs[jobID]; ok {
		j.Succeeded, j.Failed = succeeded, failed
		j.Report = report
		j.Warnings = append([]string(nil), warnings...)
	}
	m.mu.Unlock()
	m.UpdateStatus(jobID, JobStatusCompleted, "")
}

// CancelJob cancels an active job
func (m *JobManager) CancelJob(jobID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.jobs[jobID]
	if !ok || !j.Status.active() {
		return false
	}
	j.cancel()
	j.Status = JobStatusCancelled
	j.CompletedAt = time.Now()
	delete(m.byCatalog, j.Catalog)
	return true
}

// CancelAll cancels every active job
func (m *JobManager) CancelAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, j := range m.jobs {
		if j.Status.active() {
			j.cancel()
			j.Status = JobStatusCancelled
			j.CompletedAt = time.Now()
		}
	}
	m.byCatalog = make(map[string]string)
}

// ListJobs returns copies of all jobs
func (m *JobManager) ListJobs() []Job {
	m.mu.RLock()
	defer m.mu.RUnlock()

	jobs := make([]Job, 0, len(m.jobs))
	for _, j := range m.jobs {
		jobs = append(jobs, j.snapshot())
	}
	return jobs
}

// GetContext returns the context a job runs under
func (m *JobManager) GetContext(jobID string) context.Context {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if j, ok := m.jobs[jobID]; ok {
		return j.ctx
	}
	return context.Background()
}
