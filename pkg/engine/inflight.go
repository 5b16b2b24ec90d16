package engine

import (
	"sync"
	"time"
)

// inFlightGate enforces the single-flight execution guarantee: at most one
// execution attempt per intent at a time. Entries carry a timestamp so a
// reservation abandoned by a crashed caller can be reclaimed after the
// staleness timeout, following the transaction reservation pattern used for
// nonce tracking.
type inFlightGate struct {
	mu      sync.Mutex
	entries map[string]time.Time
	timeout time.Duration
}

func newInFlightGate(timeout time.Duration) *inFlightGate {
	return &inFlightGate{
		entries: make(map[string]time.Time),
		timeout: timeout,
	}
}

// TryAcquire reserves the intent for execution. Returns false if a live
// reservation already exists.
func (g *inFlightGate) TryAcquire(intentID string, now time.Time) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if acquired, ok := g.entries[intentID]; ok {
		if now.Sub(acquired) <= g.timeout {
			return false
		}
		// Stale reservation: the previous attempt never released. Reclaim.
	}
	g.entries[intentID] = now
	return true
}

// Release frees the reservation.
func (g *inFlightGate) Release(intentID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.entries, intentID)
}

// Active returns the number of live reservations.
func (g *inFlightGate) Active() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.entries)
}
