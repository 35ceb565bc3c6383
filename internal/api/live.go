package api

import (
	"net/http"
	"net/url"

	"github.com/gorilla/mux"
	"github.com/practable/livehub/internal/hub"
	"github.com/practable/livehub/internal/stats"
)

// curl http://localhost:3030/
func (app *App) handleIndex(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/static/", http.StatusTemporaryRedirect)
}

func (app *App) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// websocat ws://localhost:3030/ws/demo
func (app *App) handleWs(w http.ResponseWriter, r *http.Request) {
	app.Hub.ServeWs(w, r, mux.Vars(r)["room"])
}

// curl -i http://localhost:3030/live/demo
func (app *App) handleLive(w http.ResponseWriter, r *http.Request) {

	room := hub.SanitizeRoom(mux.Vars(r)["room"])

	if room == "" {
		writeError(w, http.StatusBadRequest, "invalid room")
		return
	}

	target := "/static/livepage.html?room=" + url.QueryEscape(room)

	http.Redirect(w, r, target, http.StatusTemporaryRedirect)
}

// StatsReply is returned by GET /api/stats
type StatsReply struct {
	Rooms   []string           `json:"rooms"`
	Viewers map[string]int     `json:"viewers"`
	Total   int                `json:"total"`
	Events  int                `json:"events"`
	Traffic []stats.RoomReport `json:"traffic"`
}

// curl http://localhost:3030/api/stats
func (app *App) handleStats(w http.ResponseWriter, r *http.Request) {

	p := app.Hub.Presence()

	writeJSON(w, http.StatusOK, StatsReply{
		Rooms:   app.Hub.Rooms().Rooms(),
		Viewers: p.Snapshot(),
		Total:   p.Total(),
		Events:  app.Hub.Events().Subscribers(),
		Traffic: app.Hub.Stats().Report(),
	})
}
