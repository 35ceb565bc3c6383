/*
   reconws is websocket client that automatically reconnects
   Copyright (C) 2019 Timothy Drysdale <timothy.d.drysdale@gmail.com>

   This program is free software: you can redistribute it and/or modify
   it under the terms of the GNU Affero General Public License as
   published by the Free Software Foundation, either version 3 of the
   License, or (at your option) any later version.

   This program is distributed in the hope that it will be useful,
   but WITHOUT ANY WARRANTY; without even the implied warranty of
   MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
   GNU Affero General Public License for more details.

   You should have received a copy of the GNU Affero General Public License
   along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

package reconws

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jpillora/backoff"
	log "github.com/sirupsen/logrus"
)

// Message represents a websocket message
type Message struct {
	Data []byte
	Type int
}

// ReconWs is a websocket client that redials a room whenever its
// connection ends, until its context is cancelled. Messages published while
// it is disconnected are not recovered.
type ReconWs struct {

	// In receives every message read from the connection
	In chan Message

	// Out is written to the connection
	Out chan Message

	// Header is sent with every dial, e.g. a session cookie or bearer token
	Header http.Header

	Retry RetryConfig

	ID string

	mu          sync.Mutex
	connected   chan struct{}
	connectedAt time.Time
}

// RetryConfig represents the parameters for when to retry to connect
type RetryConfig struct {
	Factor float64
	Jitter bool
	Min    time.Duration
	Max    time.Duration
}

// New returns a pointer to a new reconnecting websocket client ReconWs
func New() *ReconWs {
	return &ReconWs{
		In:        make(chan Message),
		Out:       make(chan Message),
		Header:    http.Header{},
		connected: make(chan struct{}),
		Retry: RetryConfig{Factor: 2,
			Min:    1 * time.Second,
			Max:    10 * time.Second,
			Jitter: false},
		ID: uuid.New().String()[0:6],
	}
}

// Connected returns a channel that is closed once the current dial succeeds
func (r *ReconWs) Connected() <-chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.connected
}

// ConnectedAt returns when the last successful dial happened
func (r *ReconWs) ConnectedAt() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.connectedAt
}

// Reconnect dials url, and dials again with backoff each time the connection
// ends, until ctx is cancelled. Run it in its own goroutine.
func (r *ReconWs) Reconnect(ctx context.Context, url string) {

	id := "reconws.Reconnect(" + r.ID + ")"

	boff := &backoff.Backoff{
		Min:    r.Retry.Min,
		Max:    r.Retry.Max,
		Factor: r.Retry.Factor,
		Jitter: r.Retry.Jitter,
	}

	for {

		err := r.Dial(ctx, url)

		if ctx.Err() != nil {
			log.Tracef("%s: cancelled", id)
			return
		}

		wait := time.Duration(0)

		if err == nil {
			boff.Reset()
			log.Tracef("%s: connection ended, redialling", id)
		} else {
			wait = boff.Duration()
			log.WithFields(log.Fields{"error": err, "wait": wait}).Debugf("%s: dial failed, increasing wait", id)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}
}

// Dial the websocket server once.
// If dial fails then return the error immediately.
// If dial succeeds then handle message traffic until the connection
// ends (returning nil) or the context is cancelled.
func (r *ReconWs) Dial(ctx context.Context, urlStr string) error {

	id := "reconws.Dial(" + r.ID + ")"

	if urlStr == "" {
		return errors.New("can't dial an empty url")
	}

	// parse to check, dial with original string
	u, err := url.Parse(urlStr)
	if err != nil {
		return err
	}

	if u.Scheme != "ws" && u.Scheme != "wss" {
		return errors.New("url needs to start with ws or wss")
	}

	if u.User != nil {
		return errors.New("url can't contain user name and password")
	}

	c, resp, err := websocket.DefaultDialer.DialContext(ctx, urlStr, r.Header)
	if err != nil {
		if resp != nil {
			log.WithFields(log.Fields{"error": err, "status": resp.StatusCode}).Debugf("%s: dial refused", id)
		}
		return err
	}
	defer c.Close()

	r.mu.Lock()
	r.connectedAt = time.Now()
	close(r.connected)
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		r.connected = make(chan struct{}) //reset for next time
		r.mu.Unlock()
	}()

	log.WithField("to", u.String()).Debugf("%s: connected", id)

	readClosed := make(chan struct{})

	go func() {
		defer close(readClosed)
		for {
			mt, data, err := c.ReadMessage()
			if err != nil {
				// expected on every exit, including our own close
				log.WithField("error", err).Debugf("%s: error reading from conn; closing", id)
				return
			}

			select {
			case r.In <- Message{Data: data, Type: mt}:
				log.Tracef("%s: received %d-byte message", id, len(data))
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {

		case <-readClosed:
			return nil

		case msg := <-r.Out:
			if err := c.WriteMessage(msg.Type, msg.Data); err != nil {
				log.WithField("error", err).Debugf("%s: error writing to conn; closing", id)
				return nil
			}
			log.Tracef("%s: sent %d-byte message", id, len(msg.Data))

		case <-ctx.Done():
			err := c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			if err != nil {
				log.WithField("error", err).Debugf("%s: error sending close message", id)
			}
			c.Close()
			<-readClosed
			return ctx.Err()
		}
	}
}
