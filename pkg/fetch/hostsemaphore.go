package fetch

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"
)

// hostEntry tracks a single domain's semaphore and its usage state
type hostEntry struct {
	sem         *semaphore.Weighted
	limit       int64
	activeCount int64 // number of held + waiting permits
}

// HostSemaphorePool caps concurrent requests per competitor domain.
// Limits set with SetLimit take precedence over the pool default.
type HostSemaphorePool struct {
	entries map[string]*hostEntry
	limits  map[string]int64
	mu      sync.Mutex
	limit   int64
	log     *logrus.Entry
}

// NewHostSemaphorePool creates a new pool with the given default per-domain limit
func NewHostSemaphorePool(maxPerHost int, log *logrus.Entry) *HostSemaphorePool {
	limit := int64(maxPerHost)
	if limit <= 0 {
		limit = 2
		log.Warnf("per-domain concurrency invalid or zero, defaulting to %d", limit)
	}
	return &HostSemaphorePool{
		entries: make(map[string]*hostEntry),
		limits:  make(map[string]int64),
		limit:   limit,
		log:     log,
	}
}

// SetLimit overrides the limit for one domain. Ignored once the domain has been used
func (p *HostSemaphorePool) SetLimit(host string, n int) {
	if n <= 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, used := p.entries[host]; used {
		p.log.WithField("host", host).Warn("SetLimit called after first use, ignoring")
		return
	}
	p.limits[host] = int64(n)
}

// Acquire gets or creates a domain semaphore and acquires one permit.
// Blocks until the permit is available or ctx is cancelled.
func (p *HostSemaphorePool) Acquire(ctx context.Context, host string) error {
	p.mu.Lock()
	entry, exists := p.entries[host]
	if !exists {
		limit := p.limit
		if l, ok := p.limits[host]; ok {
			limit = l
		}
		entry = &hostEntry{sem: semaphore.NewWeighted(limit), limit: limit}
		p.entries[host] = entry
		p.log.WithFields(logrus.Fields{"host": host, "limit": limit}).Debug("Created new host semaphore")
	}
	entry.activeCount++
	p.mu.Unlock()

	if err := entry.sem.Acquire(ctx, 1); err != nil {
		p.mu.Lock()
		entry.activeCount--
		p.mu.Unlock()
		return err
	}
	return nil
}

// Release releases one permit for the given domain
func (p *HostSemaphorePool) Release(host string) {
	p.mu.Lock()
	entry, exists := p.entries[host]
	if !exists {
		p.mu.Unlock()
		p.log.Errorf("hostsemaphore: Release called for unknown host: %s", host)
		return
	}
	entry.activeCount--
	p.mu.Unlock()

	entry.sem.Release(1)
}

// Limit reports the effective limit for host
func (p *HostSemaphorePool) Limit(host string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if e, ok := p.entries[host]; ok {
		return int(e.limit)
	}
	if l, ok := p.limits[host]; ok {
		return int(l)
	}
	return int(p.limit)
}

// Len returns the current number of tracked domains
func (p *HostSemaphorePool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}
