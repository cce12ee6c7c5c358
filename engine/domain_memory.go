package engine

import (
	"sync"
	"time"
)

type domainEntry struct {
	engineName string
	expiresAt  time.Time
}

// DomainMemory remembers which engine last won for each domain. Product
// pages of one store render the same way, so the winner is reused until
// the TTL lapses or it fails.
type DomainMemory struct {
	mu      sync.Mutex
	entries map[string]domainEntry
	ttl     time.Duration
	now     func() time.Time
	done    chan struct{}
	once    sync.Once
}

// NewDomainMemory creates a DomainMemory and starts an hourly prune loop.
func NewDomainMemory(ttl time.Duration) *DomainMemory {
	dm := &DomainMemory{
		entries: make(map[string]domainEntry),
		ttl:     ttl,
		now:     time.Now,
		done:    make(chan struct{}),
	}
	go dm.cleanupLoop(time.Hour)
	return dm
}

// Get returns the remembered engine name for a domain, or "".
func (dm *DomainMemory) Get(domain string) string {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	e, ok := dm.entries[domain]
	if !ok {
		return ""
	}
	if dm.now().After(e.expiresAt) {
		delete(dm.entries, domain)
		return ""
	}
	return e.engineName
}

// Set records the winning engine for a domain.
func (dm *DomainMemory) Set(domain, engineName string) {
	dm.mu.Lock()
	dm.entries[domain] = domainEntry{engineName: engineName, expiresAt: dm.now().Add(dm.ttl)}
	dm.mu.Unlock()
}

// Delete forgets a domain.
func (dm *DomainMemory) Delete(domain string) {
	dm.mu.Lock()
	delete(dm.entries, domain)
	dm.mu.Unlock()
}

// Stop terminates the prune loop. Safe to call more than once.
func (dm *DomainMemory) Stop() {
	dm.once.Do(func() { close(dm.done) })
}

func (dm *DomainMemory) prune() {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	now := dm.now()
	for k, e := range dm.entries {
		if now.After(e.expiresAt) {
			delete(dm.entries, k)
		}
	}
}

func (dm *DomainMemory) cleanupLoop(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-dm.done:
			return
		case <-ticker.C:
			dm.prune()
		}
	}
}
