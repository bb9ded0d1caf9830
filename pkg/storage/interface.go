package storage

import (
	"context"
	"time"

	"github.com/Sriram-PR/price-reconciler/pkg/models"
)

// SnapshotStore keeps the last known copy of each cache collection between runs.
// A snapshot is "pending" when it holds changes the remote store has not yet accepted.
type SnapshotStore interface {
	// SaveSnapshot replaces the stored copy of collection c
	SaveSnapshot(c models.Collection, sheet *models.Sheet, pending bool) error

	// LoadSnapshot returns the stored copy of c and its pending flag. found is false when none exists
	LoadSnapshot(c models.Collection) (sheet *models.Sheet, pending bool, found bool, err error)

	// MarkSynced clears the pending flag of c
	MarkSynced(c models.Collection) error

	// PendingCollections lists collections whose snapshot still awaits a remote write
	PendingCollections() ([]models.Collection, error)
}

// RunStore keeps the history of reconciliation runs
type RunStore interface {
	// RecordRun stores rec under its ID
	RecordRun(rec models.RunRecord) error

	// RecentRuns returns up to limit records, newest first
	RecentRuns(limit int) ([]models.RunRecord, error)
}

// StoreAdmin handles lifecycle and administrative operations
type StoreAdmin interface {
	// RunGC runs periodic garbage collection. Should be run in a goroutine
	RunGC(ctx context.Context, interval time.Duration)

	// Close cleanly closes the database connection
	Close() error
}

// StateStore combines all store interfaces for components that need full access
type StateStore interface {
	SnapshotStore
	RunStore
	StoreAdmin
}
