package hub

import (
	"time"

	"github.com/gorilla/websocket"
	"github.com/practable/livehub/internal/broadcast"
)

// EventsRoom is the reserved room identifier of the global event channel.
// It must not be used as an ordinary room name.
const EventsRoom = "_events"

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Text frames larger than this are dropped without closing the connection
	dropFrameSize = 2000000

	// Frames larger than this close the connection (64MiB)
	maxFrameSize = 64 * 1024 * 1024
)

// Config represents configuration options for a hub instance
// Use this struct to pass configuration as argument during testing
type Config struct {

	// RoomBuffer is the per-subscriber capacity of room channels
	RoomBuffer int

	// EventsBuffer is the per-subscriber capacity of the global event channel
	EventsBuffer int
}

// NewDefaultConfig returns a pointer to a Config struct with default parameters
func NewDefaultConfig() *Config {
	return &Config{
		RoomBuffer:   512,
		EventsBuffer: 256,
	}
}

// WithRoomBuffer sets the room channel capacity
func (c *Config) WithRoomBuffer(n int) *Config {
	c.RoomBuffer = n
	return c
}

// WithEventsBuffer sets the global channel capacity
func (c *Config) WithEventsBuffer(n int) *Config {
	c.EventsBuffer = n
	return c
}

// Client is a middleperson between the websocket connection and the hub.
// Each Client holds exactly one subscription for its lifetime.
type Client struct {
	hub *Hub

	// The websocket connection.
	conn *websocket.Conn

	// subscription to the target channel, feeds writePump
	sub *broadcast.Subscription

	// channel that inbound messages are published to
	target *broadcast.Channel

	// room the client connected to
	room string

	// true when connected to EventsRoom
	global bool

	name string

	userAgent string

	remoteAddr string

	connectedAt time.Time
}
