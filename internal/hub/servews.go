package hub

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

// 4096 Bytes is the approx average message size
// this number does not limit message size
var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// ServeWs handles a websocket request for room. It returns when the
// connection has ended. Rooms that fail validation are refused with
// 400 Bad Request before the upgrade.
func (h *Hub) ServeWs(w http.ResponseWriter, r *http.Request, room string) {

	if !ValidRoom(room) {
		log.WithField("room", room).Info("Refused connection to invalid room")
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.WithField("error", err).Error("serveWs failed to upgrade to websocket")
		return
	}

	log.WithField("room", room).Trace("upgraded to ws") //Cannot return any http responses from here on

	remoteAddr := r.Header.Get("X-Forwarded-For")
	if remoteAddr == "" {
		remoteAddr = r.RemoteAddr
	}

	client := &Client{
		hub:         h,
		conn:        conn,
		room:        room,
		global:      room == EventsRoom,
		name:        uuid.New().String(),
		userAgent:   r.UserAgent(),
		remoteAddr:  remoteAddr,
		connectedAt: time.Now(),
	}

	h.join(client)

	go client.writePump()
	client.readPump()

	h.leave(client)
}

// Handler returns an http.Handler that takes the room from the request path
// after prefix, e.g. Handler("/ws/") serves /ws/{room}
func (h *Hub) Handler(prefix string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		room := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, prefix), "/")
		h.ServeWs(w, r, room)
	})
}
