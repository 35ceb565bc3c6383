// Package hub relays JSON messages between websocket clients in rooms, and
// carries the global event channel.
//
// Delivery is best-effort and at-most-once: a slow client misses the oldest
// messages it has not yet read, a broken connection is torn down and never
// retried, and a reconnecting client only sees messages published after it
// joined.
package hub

import (
	"github.com/practable/livehub/internal/broadcast"
	"github.com/practable/livehub/internal/message"
	"github.com/practable/livehub/internal/metrics"
	"github.com/practable/livehub/internal/presence"
	"github.com/practable/livehub/internal/rooms"
	"github.com/practable/livehub/internal/stats"
	log "github.com/sirupsen/logrus"
)

// Hub holds the state shared by all connections
type Hub struct {
	rooms *rooms.Directory

	// global event channel, never held in rooms
	events *broadcast.Channel

	presence *presence.Tracker

	stats *stats.Stats

	metrics *metrics.Metrics
}

// New returns a pointer to an initialised Hub
func New(config Config, m *metrics.Metrics) *Hub {
	return &Hub{
		rooms:    rooms.New(config.RoomBuffer),
		events:   broadcast.New(config.EventsBuffer),
		presence: presence.New(),
		stats:    stats.New(),
		metrics:  m,
	}
}

// Publish sends data verbatim to every subscriber of the global event channel
func (h *Hub) Publish(data []byte) {
	h.events.Publish(data)
	h.stats.Record(EventsRoom, len(data))
	h.metrics.Published.WithLabelValues(metrics.ScopeGlobal).Inc()
}

// Events returns the global event channel
func (h *Hub) Events() *broadcast.Channel {
	return h.events
}

// Rooms returns the room directory
func (h *Hub) Rooms() *rooms.Directory {
	return h.rooms
}

// Presence returns the viewer counts
func (h *Hub) Presence() *presence.Tracker {
	return h.presence
}

// Stats returns the traffic statistics
func (h *Hub) Stats() *stats.Stats {
	return h.stats
}

// Prune removes empty rooms from the directory, along with their traffic
// statistics, and returns how many went
func (h *Hub) Prune() int {
	pruned := h.rooms.Prune()
	for _, room := range pruned {
		h.stats.Forget(room)
	}
	n := len(pruned)
	h.metrics.Rooms.Set(float64(h.rooms.Len()))
	if n > 0 {
		log.WithFields(log.Fields{"pruned": n, "remaining": h.rooms.Len()}).Debug("Pruned empty rooms")
	}
	return n
}

// Close ends every subscription, which in turn ends every connection
func (h *Hub) Close() {
	h.events.Close()
	h.rooms.Close()
}

// join resolves the target channel for c and subscribes to it, then
// announces the arrival.
func (h *Hub) join(c *Client) {

	if c.global {
		c.sub = h.events.Subscribe()
		c.target = h.events
	} else {
		c.sub, c.target = h.rooms.Join(c.room)
		h.metrics.Rooms.Set(float64(h.rooms.Len()))
	}

	h.metrics.Connections.WithLabelValues(metrics.Scope(c.global)).Inc()

	if !c.global {
		h.presence.Increment(c.room)
		total := h.presence.Total()
		h.metrics.Viewers.Set(float64(total))
		h.Publish(message.MustEncode(message.NewViewerJoin(c.room)))
		h.Publish(message.MustEncode(message.NewViewerTotal(total)))
	}

	c.publish(message.MustEncode(message.NewSys(c.room, "Client joined")))

	log.WithFields(log.Fields{"room": c.room, "name": c.name, "remoteAddr": c.remoteAddr}).Debug("Client joined")
}

// leave updates presence once a connection has ended. Presence is floored at
// zero, so a repeated leave cannot underflow.
func (h *Hub) leave(c *Client) {

	h.metrics.Connections.WithLabelValues(metrics.Scope(c.global)).Dec()

	if !c.global {
		h.presence.Decrement(c.room)
		total := h.presence.Total()
		h.metrics.Viewers.Set(float64(total))
		h.Publish(message.MustEncode(message.NewViewerTotal(total)))
	}

	log.WithFields(log.Fields{"room": c.room, "name": c.name}).Debug("Client left")
}
