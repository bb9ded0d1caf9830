package cache

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/price-reconciler/pkg/models"
)

// Store owns both collections for the duration of a run.
// Pool workers only read; the correlator is the single writer.
type Store struct {
	mu     sync.RWMutex
	tables map[models.Collection]*Table
	log    *logrus.Entry
}

// NewStore loads the two collections. Either sheet may be nil
func NewStore(urls, verification *models.Sheet, log *logrus.Entry) *Store {
	s := &Store{
		tables: map[models.Collection]*Table{
			models.CollectionURLs:         NewTable(models.CollectionURLs, urls),
			models.CollectionVerification: NewTable(models.CollectionVerification, verification),
		},
		log: log,
	}
	for c, t := range s.tables {
		if err := t.Err(); err != nil {
			log.WithField("collection", c).Errorf("Collection is malformed, lookups and writes will fail closed: %v", err)
		}
	}
	return s
}

// FromSheets builds a Store from a collection-to-sheet map
func FromSheets(sheets map[models.Collection]*models.Sheet, log *logrus.Entry) *Store {
	return NewStore(sheets[models.CollectionURLs], sheets[models.CollectionVerification], log)
}

// LookupURL returns the confirmed URL for the pair, if any
func (s *Store) LookupURL(product, domain string) (models.CacheEntry, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tables[models.CollectionURLs].Lookup(product, domain)
}

// LookupVerification returns the verification entry for the pair, if any
func (s *Store) LookupVerification(product, domain string) (models.CacheEntry, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tables[models.CollectionVerification].Lookup(product, domain)
}

// UpsertURL records a confirmed URL. Re-applying the same URL reports false
func (s *Store) UpsertURL(product, domain, url string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	changed, err := s.tables[models.CollectionURLs].Upsert(product, domain, url)
	if err != nil {
		s.log.WithFields(logrus.Fields{"product": product, "domain": domain}).Errorf("UpsertURL refused: %v", err)
	}
	return changed
}

// RemoveVerification drops the pair from the verification queue
func (s *Store) RemoveVerification(product, domain string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	changed, err := s.tables[models.CollectionVerification].Remove(product, domain)
	if err != nil {
		s.log.WithFields(logrus.Fields{"product": product, "domain": domain}).Errorf("RemoveVerification refused: %v", err)
	}
	return changed
}

// AddVerification parks the pair for manual review. url may be empty
func (s *Store) AddVerification(product, domain, url string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	changed, err := s.tables[models.CollectionVerification].Insert(product, domain, url)
	if err != nil {
		s.log.WithFields(logrus.Fields{"product": product, "domain": domain}).Errorf("AddVerification refused: %v", err)
	}
	return changed
}

// Err returns the load error of collection c, if any
func (s *Store) Err(c models.Collection) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tables[c].Err()
}

// Dirty reports whether collection c changed
func (s *Store) Dirty(c models.Collection) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tables[c].Dirty()
}

// DirtyCollections lists changed collections in flush order
func (s *Store) DirtyCollections() []models.Collection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Collection
	for _, c := range models.AllCollections() {
		if s.tables[c].Dirty() {
			out = append(out, c)
		}
	}
	return out
}

// MarkClean clears the dirty flag of c after a successful write-back
func (s *Store) MarkClean(c models.Collection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tables[c].MarkClean()
}

// Sheet exports collection c
func (s *Store) Sheet(c models.Collection) *models.Sheet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tables[c].Sheet()
}

// Sheets exports both collections
func (s *Store) Sheets() map[models.Collection]*models.Sheet {
	out := make(map[models.Collection]*models.Sheet, 2)
	for _, c := range models.AllCollections() {
		out[c] = s.Sheet(c)
	}
	return out
}

// Entries lists the rows of collection c
func (s *Store) Entries(c models.Collection) []models.CacheEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tables[c].Entries()
}

// Len returns the row count of collection c
func (s *Store) Len(c models.Collection) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tables[c].Len()
}
