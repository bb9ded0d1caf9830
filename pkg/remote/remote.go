// Package remote mirrors the cache collections to an external store.
// Writes are destructive: every Replace clears the collection and rewrites it whole.
package remote

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/price-reconciler/pkg/config"
	"github.com/Sriram-PR/price-reconciler/pkg/models"
	"github.com/Sriram-PR/price-reconciler/pkg/utils"
)

// Store is the remote side of the two collections
type Store interface {
	// Load returns the current content of collection c (header first)
	Load(ctx context.Context, c models.Collection) (*models.Sheet, error)

	// Replace clears collection c and writes sheet in its place
	Replace(ctx context.Context, c models.Collection, sheet *models.Sheet) error

	// Name identifies the backend in logs
	Name() string
}

// New builds the Store selected by cfg.Backend
func New(cfg config.RemoteConfig, log *logrus.Entry) (Store, error) {
	switch cfg.Backend {
	case "sheets":
		return NewSheetsStore(cfg, log), nil
	case "postgres":
		return NewPostgresStore(cfg, log), nil
	case "", "none":
		return NewMemoryStore(), nil
	}
	return nil, utils.WrapErrorf(utils.ErrConfigValidation, "unknown remote backend '%s'", cfg.Backend)
}

// defaultCallTimeout bounds one remote call when the config sets none
const defaultCallTimeout = 30 * time.Second

func callTimeout(cfg config.RemoteConfig) time.Duration {
	if cfg.Timeout > 0 {
		return cfg.Timeout
	}
	return defaultCallTimeout
}

// normalize renders sheet with the canonical columns of c first, in order, keeping any extra columns after them
func normalize(c models.Collection, sheet *models.Sheet) *models.Sheet {
	cols := c.Columns()
	if sheet == nil {
		return &models.Sheet{Header: cols}
	}
	header := append([]string(nil), cols...)
	src := make([]int, 0, len(sheet.Header))
	for _, col := range cols {
		src = append(src, sheet.ColumnIndex(col))
	}
	for i, h := range sheet.Header {
		known := false
		for _, col := range cols {
			if h == col {
				known = true
				break
			}
		}
		if !known {
			header = append(header, h)
			src = append(src, i)
		}
	}
	out := &models.Sheet{Header: header, Rows: make([][]string, 0, len(sheet.Rows))}
	for _, r := range sheet.Rows {
		row := make([]string, len(header))
		for j, i := range src {
			if i >= 0 && i < len(r) {
				row[j] = r[i]
			}
		}
		out.Rows = append(out.Rows, row)
	}
	return out
}

// MemoryStore keeps collections in process memory. Used for the "none" backend and in tests
type MemoryStore struct {
	mu     sync.Mutex
	sheets map[models.Collection]*models.Sheet
	// LoadErr and ReplaceErr, when set, are returned by every Load and Replace
	LoadErr    error
	ReplaceErr error
	Loads      int
	Replaces   int
}

// NewMemoryStore creates an empty MemoryStore
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sheets: make(map[models.Collection]*models.Sheet)}
}

// Name implements Store
func (m *MemoryStore) Name() string { return "none" }

// Load implements Store
func (m *MemoryStore) Load(_ context.Context, c models.Collection) (*models.Sheet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Loads++
	if m.LoadErr != nil {
		return nil, m.LoadErr
	}
	if s, ok := m.sheets[c]; ok {
		return s.Clone(), nil
	}
	return &models.Sheet{Header: c.Columns()}, nil
}

// Replace implements Store
func (m *MemoryStore) Replace(_ context.Context, c models.Collection, sheet *models.Sheet) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Replaces++
	if m.ReplaceErr != nil {
		return m.ReplaceErr
	}
	m.sheets[c] = normalize(c, sheet)
	return nil
}
