package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/practable/livehub/internal/hub"
	"github.com/practable/livehub/internal/message"
	"github.com/practable/livehub/internal/metrics"
	"github.com/practable/livehub/internal/session"
	"github.com/practable/livehub/internal/store"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	secret   = "testsecret"
	audience = "livehub"
)

func TestMain(m *testing.M) {
	log.SetOutput(io.Discard)
	os.Exit(m.Run())
}

type testApp struct {
	app    *App
	router *mux.Router
	admin  string
}

// newEmptyApp returns an app whose store has no users yet
func newEmptyApp(t *testing.T) *testApp {
	t.Helper()

	reg := prometheus.NewRegistry()
	h := hub.New(*hub.NewDefaultConfig(), metrics.New(reg))
	t.Cleanup(h.Close)

	s, err := store.Open(filepath.Join(t.TempDir(), "api.db"), h)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Init(context.Background()))

	static := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(static, "index.html"), []byte("<html>shop</html>"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(static, "livepage.html"), []byte("<html>live</html>"), 0o600))

	app := &App{
		Hub:       h,
		Store:     s,
		Sessions:  session.NewResolver(s, "sid", secret, audience),
		Gatherer:  reg,
		StaticDir: static,
	}

	return &testApp{app: app, router: app.Router()}
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()

	ta := newEmptyApp(t)

	a, err := ta.app.Store.CreateAdmin(context.Background(), "Tim", "tim@example.com")
	require.NoError(t, err)

	now := time.Now()
	token, err := session.NewToken(session.NewClaims(audience, a.ID, a.Role, a.Name, now, now, now.Add(time.Hour)), secret)
	require.NoError(t, err)

	ta.admin = "Bearer " + token

	return ta
}

// do sends a request; auth is a session id, a bearer header value, or empty
func (ta *testApp) do(method, path, auth string, body interface{}) *httptest.ResponseRecorder {

	var rdr io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		rdr = bytes.NewReader(b)
	}

	r := httptest.NewRequest(method, path, rdr)

	switch {
	case strings.HasPrefix(auth, "Bearer "):
		r.Header.Set("Authorization", auth)
	case auth != "":
		r.AddCookie(&http.Cookie{Name: "sid", Value: auth})
	}

	w := httptest.NewRecorder()
	ta.router.ServeHTTP(w, r)
	return w
}

func (ta *testApp) viewer(t *testing.T) string {
	t.Helper()
	w := ta.do("POST", "/api/ensure-viewer", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	for _, c := range w.Result().Cookies() {
		if c.Name == "sid" {
			assert.True(t, c.HttpOnly)
			return c.Value
		}
	}
	t.Fatal("no session cookie set")
	return ""
}

func checkout() store.OrderInput {
	return store.OrderInput{
		ShippingName: "Sari",
		Items:        []store.Item{{Product: "scarf", Qty: 2, Price: 15000}},
	}
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

func TestHealthz(t *testing.T) {
	ta := newTestApp(t)
	w := ta.do("GET", "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"ok":true}`, w.Body.String())
}

func TestIndexAndStatic(t *testing.T) {

	ta := newTestApp(t)

	w := ta.do("GET", "/", "", nil)
	assert.Equal(t, http.StatusTemporaryRedirect, w.Code)
	assert.Equal(t, "/static/", w.Header().Get("Location"))

	w = ta.do("GET", "/static/", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "shop")

	w = ta.do("GET", "/static/livepage.html", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "live")

	// the file server canonicalises index.html to its directory
	w = ta.do("GET", "/static/index.html", "", nil)
	assert.Equal(t, http.StatusMovedPermanently, w.Code)
	assert.Equal(t, "./", w.Header().Get("Location"))
}

func TestLiveRedirect(t *testing.T) {

	ta := newTestApp(t)

	w := ta.do("GET", "/live/demo", "", nil)
	assert.Equal(t, http.StatusTemporaryRedirect, w.Code)
	assert.Equal(t, "/static/livepage.html?room=demo", w.Header().Get("Location"))

	w = ta.do("GET", "/live/de%3Cb%3Emo", "", nil)
	assert.Equal(t, http.StatusTemporaryRedirect, w.Code)
	assert.Equal(t, "/static/livepage.html?room=debmo", w.Header().Get("Location"))

	w = ta.do("GET", "/live/%3C%3E", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestEnsureViewerAndMe(t *testing.T) {

	ta := newTestApp(t)

	w := ta.do("GET", "/api/me", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"ok":true,"user":null}`, w.Body.String())

	sid := ta.viewer(t)

	var me userReply
	w = ta.do("GET", "/api/me", sid, nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &me)
	require.NotNil(t, me.User)
	assert.Equal(t, store.RoleViewer, me.User.Role)

	// an existing session is reused
	var again userReply
	w = ta.do("POST", "/api/ensure-viewer", sid, nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &again)
	assert.Equal(t, me.User.ID, again.User.ID)
	assert.Empty(t, w.Result().Cookies())
}

func TestAdminBootstrap(t *testing.T) {

	ta := newEmptyApp(t)

	w := ta.do("GET", "/api/admin/exists", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"exists":false}`, w.Body.String())

	w = ta.do("POST", "/api/admin/bootstrap", "", map[string]string{"name": "Tim"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ta.do("POST", "/api/admin/bootstrap", "", map[string]string{"name": "Tim", "email": "tim@example.com"})
	require.Equal(t, http.StatusOK, w.Code)

	sid := ""
	for _, c := range w.Result().Cookies() {
		if c.Name == "sid" {
			assert.True(t, c.HttpOnly)
			sid = c.Value
		}
	}
	require.NotEmpty(t, sid)

	// the new session is an admin session
	w = ta.do("GET", "/api/admin/orders", sid, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = ta.do("GET", "/api/admin/exists", "", nil)
	assert.JSONEq(t, `{"exists":true}`, w.Body.String())

	// a second bootstrap is refused
	w = ta.do("POST", "/api/admin/bootstrap", "", map[string]string{"name": "Eve", "email": "eve@example.com"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "admin already exists")
}

func TestProfileAndLogout(t *testing.T) {

	ta := newTestApp(t)
	sid := ta.viewer(t)

	w := ta.do("POST", "/api/user/profile", "", map[string]string{"name": "Sari"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	var reply userReply
	w = ta.do("POST", "/api/user/profile", sid, map[string]string{"name": "Sari", "phone": "0812"})
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &reply)
	assert.Equal(t, "Sari", reply.User.Name)

	w = ta.do("POST", "/api/logout", sid, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = ta.do("GET", "/api/me", sid, nil)
	assert.JSONEq(t, `{"ok":true,"user":null}`, w.Body.String())
}

func TestOrderLifecycle(t *testing.T) {

	ta := newTestApp(t)

	events := ta.app.Hub.Events().Subscribe()
	defer events.Cancel()

	w := ta.do("POST", "/api/orders", "", checkout())
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.JSONEq(t, `{"ok":false,"error":"no session"}`, w.Body.String())

	owner := ta.viewer(t)
	other := ta.viewer(t)

	var created orderReply
	w = ta.do("POST", "/api/orders", owner, checkout())
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &created)
	assert.Equal(t, int64(30000), created.Order.Total)
	id := strconv.FormatInt(created.Order.ID, 10)

	w = ta.do("GET", "/api/orders/"+id, owner, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = ta.do("GET", "/api/orders/"+id, other, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = ta.do("GET", "/api/orders/"+id, ta.admin, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = ta.do("GET", "/api/orders/999", owner, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = ta.do("GET", "/api/admin/orders", owner, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	var patched orderReply
	w = ta.do("PATCH", "/api/admin/orders/"+id, ta.admin, map[string]interface{}{"delivery_fee": 9000, "status": "paid"})
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &patched)
	assert.Equal(t, int64(39000), patched.Order.Total)
	assert.Equal(t, "paid", patched.Order.Status)

	w = ta.do("DELETE", "/api/orders/"+id, other, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = ta.do("DELETE", "/api/orders/"+id, owner, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	var list ordersReply
	w = ta.do("GET", "/api/admin/orders", ta.admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &list)
	assert.Empty(t, list.Orders)

	w = ta.do("GET", "/api/admin/orders?deleted=true", ta.admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &list)
	assert.Len(t, list.Orders, 1)

	expected := []string{message.TypeOrder, message.TypeOrderUpdate, message.TypeOrderDeleted}

	for _, e := range expected {
		select {
		case msg := <-events.C():
			assert.Equal(t, e, message.Type(msg))
			assert.Contains(t, string(msg), `"order_id":`+id)
		case <-time.After(time.Second):
			t.Fatalf("no %s notification", e)
		}
	}
}

func TestBadOrderInput(t *testing.T) {

	ta := newTestApp(t)
	sid := ta.viewer(t)

	r := httptest.NewRequest("POST", "/api/orders", strings.NewReader("{not json"))
	r.AddCookie(&http.Cookie{Name: "sid", Value: sid})
	w := httptest.NewRecorder()
	ta.router.ServeHTTP(w, r)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	in := checkout()
	in.Items = nil
	w = ta.do("POST", "/api/orders", sid, in)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ta.do("PATCH", "/api/admin/orders/5", ta.admin, map[string]int{"delivery_fee": 1})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestBadBearer(t *testing.T) {
	ta := newTestApp(t)
	w := ta.do("GET", "/api/admin/orders", "Bearer nope", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestStatsAndMetrics(t *testing.T) {

	ta := newTestApp(t)

	sub, _ := ta.app.Hub.Rooms().Join("demo")
	defer sub.Cancel()
	ta.app.Hub.Presence().Increment("demo")

	var s StatsReply
	w := ta.do("GET", "/api/stats", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &s)
	assert.Equal(t, []string{"demo"}, s.Rooms)
	assert.Equal(t, 1, s.Viewers["demo"])
	assert.Equal(t, 1, s.Total)

	w = ta.do("GET", "/metrics", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "livehub_")
}

func TestWsRefusesInvalidRoom(t *testing.T) {
	ta := newTestApp(t)
	w := ta.do("GET", "/ws/bad%20room", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
