package reconws

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var upgrader = websocket.Upgrader{}

func TestMain(m *testing.M) {
	log.SetOutput(io.Discard)
	os.Exit(m.Run())
}

// echo replies to each message, and hangs up after the first message when
// hangup is set
func echo(hangup bool, dials *int32, header *atomic.Value) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(dials, 1)
		header.Store(r.Header.Get("Authorization"))

		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close()

		for {
			mt, data, err := c.ReadMessage()
			if err != nil {
				return
			}
			if err := c.WriteMessage(mt, data); err != nil {
				return
			}
			if hangup {
				return
			}
		}
	}
}

func wsURL(s *httptest.Server) string {
	return "ws" + strings.TrimPrefix(s.URL, "http")
}

func fastRetry(r *ReconWs) {
	r.Retry = RetryConfig{Factor: 2, Min: 10 * time.Millisecond, Max: 50 * time.Millisecond}
}

func TestDialEcho(t *testing.T) {

	var dials int32
	var header atomic.Value

	s := httptest.NewServer(echo(false, &dials, &header))
	defer s.Close()

	r := New()
	r.Header.Set("Authorization", "Bearer abc")

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error)
	go func() { done <- r.Dial(ctx, wsURL(s)) }()

	select {
	case <-r.Connected():
	case <-time.After(time.Second):
		t.Fatal("did not connect")
	}

	assert.False(t, r.ConnectedAt().IsZero())
	assert.Equal(t, "Bearer abc", header.Load())

	r.Out <- Message{Data: []byte(`{"t":"c"}`), Type: websocket.TextMessage}

	select {
	case msg := <-r.In:
		assert.Equal(t, `{"t":"c"}`, string(msg.Data))
	case <-time.After(time.Second):
		t.Fatal("no echo")
	}

	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Dial did not return after cancel")
	}
}

func TestDialBadURL(t *testing.T) {

	r := New()
	ctx := context.Background()

	assert.Error(t, r.Dial(ctx, ""))
	assert.Error(t, r.Dial(ctx, "http://localhost/ws/demo"))
	assert.Error(t, r.Dial(ctx, "ws://user:pass@localhost/ws/demo"))
}

func TestReconnect(t *testing.T) {

	var dials int32
	var header atomic.Value

	s := httptest.NewServer(echo(true, &dials, &header))
	defer s.Close()

	r := New()
	fastRetry(r)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go r.Reconnect(ctx, wsURL(s))

	for i := 0; i < 3; i++ {

		require.Eventually(t, func() bool {
			select {
			case <-r.Connected():
				return true
			default:
				return false
			}
		}, time.Second, 5*time.Millisecond)

		r.Out <- Message{Data: []byte("ping"), Type: websocket.TextMessage}

		select {
		case msg := <-r.In:
			assert.Equal(t, "ping", string(msg.Data))
		case <-time.After(time.Second):
			t.Fatalf("no echo on connection %d", i)
		}

		// the server hangs up after each echo, so wait for the redial
		require.Eventually(t, func() bool {
			return atomic.LoadInt32(&dials) > int32(i+1)
		}, time.Second, 5*time.Millisecond)
	}
}

func TestReconnectStopsOnCancel(t *testing.T) {

	r := New()
	fastRetry(r)

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		r.Reconnect(ctx, "ws://127.0.0.1:1/ws/demo")
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Reconnect did not return after cancel")
	}
}
