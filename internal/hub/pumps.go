package hub

import (
	"io"
	"time"

	"github.com/gorilla/websocket"
	"github.com/practable/livehub/internal/message"
	"github.com/practable/livehub/internal/metrics"
	log "github.com/sirupsen/logrus"
)

// publish sends data to every subscriber of the client's target channel,
// including the client itself.
func (c *Client) publish(data []byte) {
	if c.global {
		c.hub.Publish(data)
		return
	}
	c.target.Publish(data)
	c.hub.stats.Record(c.room, len(data))
	c.hub.metrics.Published.WithLabelValues(metrics.ScopeRoom).Inc()
}

// readPump pumps messages from the websocket connection to the target channel.
//
// The application runs readPump in the connection's own goroutine. The
// application ensures that there is at most one reader on a connection by
// executing all reads from this goroutine. When readPump returns, the
// subscription is cancelled, which ends writePump without waiting for it.
func (c *Client) readPump() {

	defer func() {
		c.sub.Cancel()
		c.conn.Close()
		log.WithField("name", c.name).Trace("readpump closed")
	}()

	c.conn.SetReadLimit(maxFrameSize)

	err := c.conn.SetReadDeadline(time.Now().Add(pongWait))

	if err != nil {
		log.Errorf("readPump deadline error: %v", err)
		return
	}

	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {

		mt, r, err := c.conn.NextReader()

		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				log.WithFields(log.Fields{"name": c.name, "error": err}).Debug("readPump error")
			}
			return
		}

		if mt != websocket.TextMessage {
			// binary frames are not relayed; drain so the next frame can be read
			if _, err := io.Copy(io.Discard, r); err != nil {
				return
			}
			continue
		}

		// read one byte beyond the limit so oversize frames can be spotted
		data, err := io.ReadAll(io.LimitReader(r, dropFrameSize+1))

		if err != nil {
			log.WithFields(log.Fields{"name": c.name, "error": err}).Debug("readPump read error")
			return
		}

		if len(data) > dropFrameSize {
			if _, err := io.Copy(io.Discard, r); err != nil {
				log.WithFields(log.Fields{"name": c.name, "error": err}).Debug("readPump discarding oversize frame")
				return
			}
			c.hub.metrics.Dropped.WithLabelValues(metrics.ReasonOversize).Inc()
			log.WithFields(log.Fields{"room": c.room, "name": c.name}).Trace("Dropped oversize frame")
			continue
		}

		out, err := message.InjectRoom(data, c.room)

		if err != nil {
			c.hub.metrics.Dropped.WithLabelValues(metrics.ReasonMalformed).Inc()
			log.WithFields(log.Fields{"room": c.room, "name": c.name, "error": err}).Trace("Dropped malformed message")
			continue
		}

		c.publish(out)
	}
}

// writePump pumps messages from the subscription to the websocket connection.
//
// A goroutine running writePump is started for each connection. The
// application ensures that there is at most one writer to a connection by
// executing all writes from this goroutine. A write failure closes the
// connection, which ends readPump.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		log.WithField("name", c.name).Trace("write pump dead")
	}()
	for {
		select {

		case data, ok := <-c.sub.C():
			err := c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err != nil {
				log.Debugf("writePump deadline error: %s", err.Error())
				return
			}

			if !ok {
				// subscription cancelled or channel closed
				err := c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				if err != nil {
					log.Tracef("writePump closeMessage error: %s", err.Error())
				}
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.WithFields(log.Fields{"name": c.name, "error": err}).Debug("writePump write error")
				return
			}

		case <-ticker.C:
			err := c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err != nil {
				log.Debugf("writePump ping deadline error: %v", err)
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
