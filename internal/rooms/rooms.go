// Package rooms holds the directory of per-room broadcast channels
package rooms

import (
	"sort"
	"sync"

	"github.com/practable/livehub/internal/broadcast"
)

// Directory maps room identifiers to broadcast channels. Channels are
// created lazily on first use.
type Directory struct {
	mu sync.Mutex

	// capacity of each new room channel
	capacity int

	rooms map[string]*broadcast.Channel
}

// New returns a Directory whose channels buffer capacity messages per subscriber
func New(capacity int) *Directory {
	return &Directory{
		capacity: capacity,
		rooms:    make(map[string]*broadcast.Channel),
	}
}

// GetOrCreate returns the channel for room, creating it if absent.
// Concurrent callers for the same new room always get the same channel.
func (d *Directory) GetOrCreate(room string) *broadcast.Channel {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.getOrCreate(room)
}

// getOrCreate is for internal use by functions already holding the lock
func (d *Directory) getOrCreate(room string) *broadcast.Channel {

	if c, ok := d.rooms[room]; ok {
		return c
	}

	c := broadcast.New(d.capacity)
	d.rooms[room] = c

	return c
}

// Join gets or creates the channel for room and subscribes to it, in one
// critical section, so that Prune cannot remove the channel between the
// two steps.
func (d *Directory) Join(room string) (*broadcast.Subscription, *broadcast.Channel) {
	d.mu.Lock()
	defer d.mu.Unlock()

	c := d.getOrCreate(room)

	return c.Subscribe(), c
}

// Get returns the channel for room, if it exists
func (d *Directory) Get(room string) (*broadcast.Channel, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	c, ok := d.rooms[room]
	return c, ok
}

// Len returns the number of rooms
func (d *Directory) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.rooms)
}

// Rooms returns the room identifiers in sorted order
func (d *Directory) Rooms() []string {
	d.mu.Lock()
	defer d.mu.Unlock()

	r := make([]string, 0, len(d.rooms))
	for k := range d.rooms {
		r = append(r, k)
	}
	sort.Strings(r)

	return r
}

// Prune removes rooms with no subscribers and returns their names.
// A pruned room is recreated by the next Join. Nothing is lost, because
// channels keep no backlog.
func (d *Directory) Prune() []string {
	d.mu.Lock()
	defer d.mu.Unlock()

	stale := []string{}

	// new subscribers only arrive via Join, which needs d.mu, so a count of
	// zero cannot change under us
	for k, c := range d.rooms {
		if c.Subscribers() == 0 {
			stale = append(stale, k)
		}
	}

	for _, k := range stale {
		d.rooms[k].Close()
		delete(d.rooms, k)
	}

	return stale
}

// Close closes every channel, ending all subscriptions. For use at shutdown.
func (d *Directory) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()

	for k, c := range d.rooms {
		c.Close()
		delete(d.rooms, k)
	}
}
