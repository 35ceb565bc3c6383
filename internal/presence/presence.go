// Package presence counts live viewers per room
package presence

import (
	"sync"
)

// Tracker represents viewer counts for each room. Counts never go below zero.
type Tracker struct {
	mux    sync.RWMutex
	counts map[string]int
}

// New returns pointer to an empty Tracker
func New() *Tracker {
	return &Tracker{counts: make(map[string]int)}
}

// Increment adds a viewer to room and returns the new count
func (t *Tracker) Increment(room string) int {
	t.mux.Lock()
	defer t.mux.Unlock()
	t.counts[room]++
	return t.counts[room]
}

// Decrement removes a viewer from room and returns the new count.
// Decrementing an empty or unknown room leaves it at zero.
func (t *Tracker) Decrement(room string) int {
	t.mux.Lock()
	defer t.mux.Unlock()

	c, ok := t.counts[room]
	if !ok {
		return 0
	}

	c--

	if c <= 0 {
		delete(t.counts, room)
		return 0
	}

	t.counts[room] = c
	return c
}

// Count returns the current count for room
func (t *Tracker) Count(room string) int {
	t.mux.RLock()
	defer t.mux.RUnlock()
	return t.counts[room]
}

// Total returns the sum of all room counts
func (t *Tracker) Total() int {
	t.mux.RLock()
	defer t.mux.RUnlock()

	total := 0
	for _, c := range t.counts {
		total += c
	}
	return total
}

// Snapshot returns a copy of the non-zero counts
func (t *Tracker) Snapshot() map[string]int {
	t.mux.RLock()
	defer t.mux.RUnlock()

	s := make(map[string]int, len(t.counts))
	for k, v := range t.counts {
		s[k] = v
	}
	return s
}
