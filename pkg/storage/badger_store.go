package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/price-reconciler/pkg/log"
	"github.com/Sriram-PR/price-reconciler/pkg/models"
	"github.com/Sriram-PR/price-reconciler/pkg/utils"
)

const (
	snapshotKeyPrefix = "sheet:"        // Prefix for collection snapshot keys
	pendingKeyPrefix  = "pending:"      // Prefix for pending-sync markers
	runKeyPrefix      = "run:"          // Prefix for run history records
	stateDBDir        = "reconciler_db" // Subdirectory name within stateDir for Badger DB files
)

// snapshotEntry is the stored value of a collection snapshot
type snapshotEntry struct {
	Sheet   *models.Sheet `json:"sheet"`
	SavedAt time.Time     `json:"saved_at"`
}

// BadgerStore implements StateStore using BadgerDB.
// Badger holds an exclusive lock on its directory, so a second process
// pointed at the same state_dir fails to open it.
type BadgerStore struct {
	db  *badger.DB
	log *logrus.Entry
	ctx context.Context // Parent context
}

// NewBadgerStore opens (or creates) the state database under stateDir
func NewBadgerStore(ctx context.Context, stateDir string, logger *logrus.Entry) (*BadgerStore, error) {
	store := &BadgerStore{
		log: logger,
		ctx: ctx,
	}

	dbPath := filepath.Join(stateDir, stateDBDir)
	logger.Infof("Opening state database at: %s", dbPath)

	if err := os.MkdirAll(dbPath, 0755); err != nil {
		return nil, fmt.Errorf("%w: cannot create state directory %s: %w", utils.ErrFilesystem, dbPath, err)
	}

	badgerLogger := log.NewBadgerLogrusAdapter(logger.WithField("component", "badgerdb"))
	opts := badger.DefaultOptions(dbPath).
		WithLogger(badgerLogger).
		WithNumVersionsToKeep(1)

	var err error
	store.db, err = badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open badger database at %s (is another run using it?): %w", utils.ErrDatabase, dbPath, err)
	}

	logger.Debug("State database opened")
	return store, nil
}

const maxConflictRetries = 10

// dbUpdate wraps db.Update with a retry loop for BadgerDB transaction conflicts.
// Conflicts resolve in microseconds, so a tight retry loop is sufficient.
func (s *BadgerStore) dbUpdate(fn func(txn *badger.Txn) error) error {
	for i := range maxConflictRetries {
		err := s.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
		s.log.Debugf("BadgerDB transaction conflict (attempt %d/%d), retrying", i+1, maxConflictRetries)
	}
	return fmt.Errorf("%w: transaction conflict not resolved after %d retries", utils.ErrDatabase, maxConflictRetries)
}

// SaveSnapshot implements SnapshotStore. Snapshot and pending marker are written in one transaction
func (s *BadgerStore) SaveSnapshot(c models.Collection, sheet *models.Sheet, pending bool) error {
	if sheet == nil {
		sheet = &models.Sheet{Header: c.Columns()}
	}
	data, err := json.Marshal(snapshotEntry{Sheet: sheet, SavedAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("%w: marshal snapshot '%s': %w", utils.ErrDatabase, c, err)
	}
	sheetKey := []byte(snapshotKeyPrefix + string(c))
	pendingKey := []byte(pendingKeyPrefix + string(c))

	err = s.dbUpdate(func(txn *badger.Txn) error {
		if err := txn.Set(sheetKey, data); err != nil {
			return err
		}
		if pending {
			return txn.Set(pendingKey, []byte{1})
		}
		if err := txn.Delete(pendingKey); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return nil
	})
	if err != nil {
		s.log.WithField("collection", c).Errorf("DB Update error in SaveSnapshot: %v", err)
		return fmt.Errorf("%w: saving snapshot '%s': %w", utils.ErrDatabase, c, err)
	}
	s.log.WithFields(logrus.Fields{"collection": c, "rows": len(sheet.Rows), "pending": pending}).Debug("Snapshot saved")
	return nil
}

// LoadSnapshot implements SnapshotStore
func (s *BadgerStore) LoadSnapshot(c models.Collection) (*models.Sheet, bool, bool, error) {
	var (
		entry   snapshotEntry
		found   bool
		pending bool
	)
	sheetKey := []byte(snapshotKeyPrefix + string(c))
	pendingKey := []byte(pendingKeyPrefix + string(c))

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(sheetKey)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &entry)
		}); err != nil {
			return err
		}
		found = true

		_, err = txn.Get(pendingKey)
		switch {
		case err == nil:
			pending = true
		case !errors.Is(err, badger.ErrKeyNotFound):
			return err
		}
		return nil
	})
	if err != nil {
		s.log.WithField("collection", c).Errorf("DB View error in LoadSnapshot: %v", err)
		return nil, false, false, fmt.Errorf("%w: loading snapshot '%s': %w", utils.ErrDatabase, c, err)
	}
	if !found {
		return nil, false, false, nil
	}
	return entry.Sheet, pending, true, nil
}

// MarkSynced implements SnapshotStore
func (s *BadgerStore) MarkSynced(c models.Collection) error {
	key := []byte(pendingKeyPrefix + string(c))
	err := s.dbUpdate(func(txn *badger.Txn) error {
		if err := txn.Delete(key); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: clearing pending flag '%s': %w", utils.ErrDatabase, c, err)
	}
	return nil
}

// PendingCollections implements SnapshotStore
func (s *BadgerStore) PendingCollections() ([]models.Collection, error) {
	var out []models.Collection
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(pendingKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			key := it.Item().KeyCopy(nil)
			out = append(out, models.Collection(key[len(prefix):]))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: scanning pending markers: %w", utils.ErrDatabase, err)
	}
	return out, nil
}

// runKey orders records by start time under lexicographic iteration
func runKey(rec models.RunRecord) []byte {
	return []byte(fmt.Sprintf("%s%020d:%s", runKeyPrefix, rec.StartedAt.UnixNano(), rec.ID))
}

// RecordRun implements RunStore
func (s *BadgerStore) RecordRun(rec models.RunRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("%w: marshal run record: %w", utils.ErrDatabase, err)
	}
	key := runKey(rec)
	if err := s.dbUpdate(func(txn *badger.Txn) error { return txn.Set(key, data) }); err != nil {
		s.log.WithField("run_id", rec.ID).Errorf("DB Update error in RecordRun: %v", err)
		return fmt.Errorf("%w: recording run '%s': %w", utils.ErrDatabase, rec.ID, err)
	}
	return nil
}

// RecentRuns implements RunStore
func (s *BadgerStore) RecentRuns(limit int) ([]models.RunRecord, error) {
	var runs []models.RunRecord
	scanErrors := 0
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(runKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			select {
			case <-s.ctx.Done():
				return s.ctx.Err()
			default:
			}
			var rec models.RunRecord
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			}); err != nil {
				s.log.Warnf("Skipping unreadable run record '%s': %v", it.Item().Key(), err)
				scanErrors++
				continue
			}
			runs = append(runs, rec)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: scanning run history: %w", utils.ErrDatabase, err)
	}
	if scanErrors > 0 {
		s.log.Warnf("Run history scan skipped %d records", scanErrors)
	}

	sort.SliceStable(runs, func(i, j int) bool { return runs[i].StartedAt.After(runs[j].StartedAt) })
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

// RunGC runs BadgerDB's garbage collection periodically
func (s *BadgerStore) RunGC(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.log.Debug("BadgerDB GC goroutine started.")

	for {
		select {
		case <-ticker.C:
			if s.db == nil || s.db.IsClosed() {
				s.log.Debug("DB GC: Database is nil or closed, skipping GC cycle.")
				continue
			}
			var err error
			for {
				// Run GC if log is at least 50% reclaimable space
				if err = s.db.RunValueLogGC(0.5); err != nil {
					break
				}
			}
			if !errors.Is(err, badger.ErrNoRewrite) {
				s.log.Errorf("BadgerDB GC error: %v", err)
			}

		case <-ctx.Done():
			s.log.Debugf("Stopping BadgerDB garbage collection goroutine: %v", ctx.Err())
			return
		}
	}
}

// Close implements StoreAdmin
func (s *BadgerStore) Close() error {
	if s.db != nil && !s.db.IsClosed() {
		if err := s.db.Close(); err != nil {
			s.log.Errorf("Error closing state DB: %v", err)
			return err
		}
		s.log.Debug("State DB closed.")
	}
	return nil
}
