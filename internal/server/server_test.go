package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/phayes/freeport"
	"github.com/practable/livehub/internal/message"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	log.SetOutput(io.Discard)
	os.Exit(m.Run())
}

// readUntil reads from c until a message of type t arrives
func readUntil(t *testing.T, c *websocket.Conn, typ string) []byte {
	t.Helper()
	require.NoError(t, c.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		_, data, err := c.ReadMessage()
		require.NoError(t, err)
		if message.Type(data) == typ {
			return data
		}
	}
}

func TestRun(t *testing.T) {

	port, err := freeport.GetFreePort()
	require.NoError(t, err)

	closed := make(chan struct{})
	ready := make(chan string, 1)
	var wg sync.WaitGroup

	config := Config{
		Listen:    "127.0.0.1:" + strconv.Itoa(port),
		DB:        filepath.Join(t.TempDir(), "livehub.db"),
		Secret:    "testsecret",
		Audience:  "livehub",
		TidyEvery: 20 * time.Millisecond,
		Ready:     ready,
	}

	errs := make(chan error, 1)

	wg.Add(1)
	go func() { errs <- Run(closed, &wg, config) }()

	var addr string
	select {
	case addr = <-ready:
	case err := <-errs:
		t.Fatalf("server did not start: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not start")
	}

	base := "http://" + addr
	ws := "ws://" + addr

	events, _, err := websocket.DefaultDialer.Dial(ws+"/ws/_events", nil)
	require.NoError(t, err)
	defer events.Close()

	demo, _, err := websocket.DefaultDialer.Dial(ws+"/ws/demo", nil)
	require.NoError(t, err)

	assert.JSONEq(t, `{"t":"viewer_total","n":1}`, string(readUntil(t, events, message.TypeViewerTotal)))

	// viewer checks out, the order shows up on the global channel
	resp, err := http.Post(base+"/api/ensure-viewer", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var sid *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == "sid" {
			sid = c
		}
	}
	require.NotNil(t, sid)

	body, _ := json.Marshal(map[string]interface{}{
		"shipping_name": "Sari",
		"items":         []map[string]interface{}{{"product": "scarf", "qty": 1, "price": 1000}},
	})

	req, err := http.NewRequest("POST", base+"/api/orders", bytes.NewReader(body))
	require.NoError(t, err)
	req.AddCookie(sid)

	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	assert.JSONEq(t, `{"t":"order","order_id":1}`, string(readUntil(t, events, message.TypeOrder)))

	// the room empties and is tidied away
	demo.Close()
	assert.JSONEq(t, `{"t":"viewer_total","n":0}`, string(readUntil(t, events, message.TypeViewerTotal)))

	require.Eventually(t, func() bool {
		resp, err := http.Get(base + "/api/stats")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		var s struct {
			Rooms []string `json:"rooms"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
			return false
		}
		return len(s.Rooms) == 0
	}, 2*time.Second, 20*time.Millisecond)

	// shutdown ends the remaining connection
	close(closed)

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(6 * time.Second):
		t.Fatal("server did not shut down")
	}

	assert.NoError(t, <-errs)

	require.NoError(t, events.SetReadDeadline(time.Now().Add(time.Second)))
	for err == nil {
		_, _, err = events.ReadMessage()
	}
	assert.Error(t, err)
}

func TestRunBadListen(t *testing.T) {

	var wg sync.WaitGroup
	wg.Add(1)

	err := Run(make(chan struct{}), &wg, Config{
		Listen: "127.0.0.1:-1",
		DB:     filepath.Join(t.TempDir(), "livehub.db"),
	})

	assert.Error(t, err)
	wg.Wait()
}
