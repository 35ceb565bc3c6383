// Package api provides the http surface: the websocket endpoint, the live
// page redirect, session and order endpoints, and stats.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/practable/livehub/internal/hub"
	"github.com/practable/livehub/internal/session"
	"github.com/practable/livehub/internal/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

// App holds the collaborators the handlers need
type App struct {
	Hub      *hub.Hub
	Store    *store.Store
	Sessions *session.Resolver

	// Gatherer is served at /metrics
	Gatherer prometheus.Gatherer

	// StaticDir is served under /static/; nothing is served when empty
	StaticDir string
}

// Router returns the router for all endpoints
func (app *App) Router() *mux.Router {

	router := mux.NewRouter()

	router.HandleFunc("/", app.handleIndex).Methods("GET")
	router.HandleFunc("/healthz", app.handleHealthz).Methods("GET")
	router.Handle("/metrics", promhttp.HandlerFor(app.Gatherer, promhttp.HandlerOpts{})).Methods("GET")

	router.HandleFunc("/ws/{room}", app.handleWs).Methods("GET")
	router.HandleFunc("/live/{room}", app.handleLive).Methods("GET")

	router.HandleFunc("/api/stats", app.handleStats).Methods("GET")

	router.HandleFunc("/api/ensure-viewer", app.handleEnsureViewer).Methods("POST")
	router.HandleFunc("/api/me", app.handleMe).Methods("GET")
	router.HandleFunc("/api/user/profile", app.handleProfile).Methods("POST")
	router.HandleFunc("/api/logout", app.handleLogout).Methods("POST")

	router.HandleFunc("/api/orders", app.handleOrderCreate).Methods("POST")
	router.HandleFunc(`/api/orders/{id:[0-9]+}`, app.handleOrderShow).Methods("GET")
	router.HandleFunc(`/api/orders/{id:[0-9]+}`, app.handleOrderDelete).Methods("DELETE")

	router.HandleFunc("/api/admin/exists", app.handleAdminExists).Methods("GET")
	router.HandleFunc("/api/admin/bootstrap", app.handleAdminBootstrap).Methods("POST")
	router.HandleFunc("/api/admin/orders", app.handleAdminOrderList).Methods("GET")
	router.HandleFunc(`/api/admin/orders/{id:[0-9]+}`, app.handleAdminOrderPatch).Methods("PATCH")

	if app.StaticDir != "" {
		router.PathPrefix("/static/").Handler(http.StripPrefix("/static/", http.FileServer(http.Dir(app.StaticDir))))
	}

	return router
}

type errorReply struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {

	output, err := json.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("content-type", "application/json")
	w.WriteHeader(status)

	_, err = w.Write(output)
	if err != nil {
		log.Errorf("writing error %s", err.Error())
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorReply{OK: false, Error: msg})
}

// user resolves the requester, writing 401 and returning nil when there is none
func (app *App) user(w http.ResponseWriter, r *http.Request) *store.User {

	u, err := app.Sessions.Resolve(r)

	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return nil
	}

	if u == nil {
		writeError(w, http.StatusUnauthorized, "no session")
		return nil
	}

	return u
}

// admin resolves the requester, writing 401 or 403 and returning nil unless
// they are an admin
func (app *App) admin(w http.ResponseWriter, r *http.Request) *store.User {

	u := app.user(w, r)

	if u == nil {
		return nil
	}

	if !u.IsAdmin() {
		writeError(w, http.StatusForbidden, "admin only")
		return nil
	}

	return u
}
