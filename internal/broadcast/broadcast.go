// Package broadcast provides a bounded, lossy, multi-producer/multi-consumer
// broadcast channel.
//
// Every message published after a subscriber joins is offered to that
// subscriber. Each subscriber has its own buffer of fixed capacity; when the
// buffer is full the oldest unread message is discarded to make room, so a slow
// subscriber never blocks a publisher. Delivery is best-effort and
// at-most-once. There is no backlog: a subscriber never sees messages published
// before it joined.
package broadcast

import (
	"sync"
)

// Channel fans out each published message to all current subscribers.
type Channel struct {
	mu sync.Mutex

	capacity int

	closed bool

	// dropped counts messages discarded from full subscriber buffers
	dropped uint64

	subs map[*Subscription]struct{}
}

// Subscription is a single subscriber's view of a Channel.
type Subscription struct {
	c *Channel

	ch chan []byte
}

// New returns a Channel whose subscribers each buffer up to capacity messages.
func New(capacity int) *Channel {
	if capacity < 1 {
		capacity = 1
	}
	return &Channel{
		capacity: capacity,
		subs:     make(map[*Subscription]struct{}),
	}
}

// Capacity returns the per-subscriber buffer size
func (c *Channel) Capacity() int {
	return c.capacity
}

// Subscribe registers a new subscriber. A subscription to a closed channel
// is returned already closed.
func (c *Channel) Subscribe() *Subscription {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := &Subscription{
		c:  c,
		ch: make(chan []byte, c.capacity),
	}

	if c.closed {
		close(s.ch)
		return s
	}

	c.subs[s] = struct{}{}

	return s
}

// Publish offers data to every current subscriber and returns how many
// subscribers it was offered to. Publish never blocks on a subscriber.
// The lock is held across the whole fan-out so that every subscriber
// observes messages in publish order.
func (c *Channel) Publish(data []byte) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return 0
	}

	for s := range c.subs {
		select {
		case s.ch <- data:
			continue
		default:
		}

		// buffer full: discard the oldest unread message
		select {
		case <-s.ch:
			c.dropped++
		default:
		}

		// only the subscriber drains s.ch, and we hold the lock, so there is room now
		select {
		case s.ch <- data:
		default:
			c.dropped++
		}
	}

	return len(c.subs)
}

// Subscribers returns the number of current subscribers
func (c *Channel) Subscribers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.subs)
}

// Dropped returns the number of messages discarded from full subscriber buffers
func (c *Channel) Dropped() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dropped
}

// Close closes every subscription and refuses further publishing.
// It is safe to call more than once.
func (c *Channel) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}

	c.closed = true

	for s := range c.subs {
		close(s.ch)
		delete(c.subs, s)
	}
}

// C returns the channel on which messages are delivered. It is closed when
// the subscription is cancelled or the Channel is closed.
func (s *Subscription) C() <-chan []byte {
	return s.ch
}

// Cancel removes the subscription from its Channel and closes C.
// It is safe to call more than once, and after the Channel is closed.
func (s *Subscription) Cancel() {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()

	if _, ok := s.c.subs[s]; ok {
		delete(s.c.subs, s)
		close(s.ch)
	}
}

// Channel returns the Channel this subscription belongs to
func (s *Subscription) Channel() *Channel {
	return s.c
}
