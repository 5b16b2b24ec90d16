package pricefeed

import (
	"sync"
	"time"

	"github.com/casperlink/intent-engine/pkg/models"
)

// Snapshot is one consistent set of prices. All intents evaluated in a tick
// see the same snapshot.
type Snapshot struct {
	// Prices maps bare token symbols (CSPR, BTC, ...) to USD prices.
	Prices map[string]float64
	// Quotes keeps the full feed payload for display and health reporting.
	Quotes    []models.PriceData
	FetchedAt time.Time
}

// Price returns the quote for a bare token symbol.
func (s *Snapshot) Price(symbol string) (float64, bool) {
	p, ok := s.Prices[symbol]
	return p, ok
}

// Age returns how old the snapshot is.
func (s *Snapshot) Age() time.Duration {
	return time.Since(s.FetchedAt)
}

// SnapshotCache holds the last fetched snapshot with a freshness TTL.
// Expired snapshots stay retrievable so the feed can serve the last good
// value when the upstream rate-limits or fails.
type SnapshotCache struct {
	mu   sync.RWMutex
	snap *Snapshot
	ttl  time.Duration
}

// NewSnapshotCache creates a snapshot cache with the given TTL.
func NewSnapshotCache(ttl time.Duration) *SnapshotCache {
	return &SnapshotCache{ttl: ttl}
}

// Get returns the cached snapshot if it is still fresh.
func (c *SnapshotCache) Get() (*Snapshot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.snap == nil {
		return nil, false
	}
	if time.Since(c.snap.FetchedAt) > c.ttl {
		return nil, false
	}
	return c.snap, true
}

// Last returns the cached snapshot regardless of freshness.
func (c *SnapshotCache) Last() (*Snapshot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.snap == nil {
		return nil, false
	}
	return c.snap, true
}

// Set stores a snapshot with the current timestamp.
func (c *SnapshotCache) Set(snap *Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if snap.FetchedAt.IsZero() {
		snap.FetchedAt = time.Now()
	}
	c.snap = snap
}

// Clear removes the cached snapshot.
func (c *SnapshotCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.snap = nil
}

// TTL returns the configured freshness window.
func (c *SnapshotCache) TTL() time.Duration {
	return c.ttl
}
