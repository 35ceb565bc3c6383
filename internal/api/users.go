package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/practable/livehub/internal/store"
	log "github.com/sirupsen/logrus"
)

type userReply struct {
	OK   bool        `json:"ok"`
	User *store.User `json:"user"`
}

func (app *App) sessionCookie(sid string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     app.Sessions.CookieName(),
		Value:    sid,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   maxAge,
	}
}

// Creates a viewer and sets the session cookie, unless the request already
// has a session.
// curl -X POST -c cookies.txt http://localhost:3030/api/ensure-viewer
func (app *App) handleEnsureViewer(w http.ResponseWriter, r *http.Request) {

	u, err := app.Sessions.Resolve(r)

	if err == nil && u != nil {
		writeJSON(w, http.StatusOK, userReply{OK: true, User: u})
		return
	}

	viewer, sid, err := app.Store.EnsureViewer(r.Context())
	if err != nil {
		log.WithField("error", err.Error()).Error("Could not create viewer")
		writeError(w, http.StatusInternalServerError, "could not create viewer")
		return
	}

	log.WithFields(log.Fields{"user_id": viewer.ID, "name": viewer.Name}).Info("Viewer created")

	http.SetCookie(w, app.sessionCookie(sid, 0))

	writeJSON(w, http.StatusOK, userReply{OK: true, User: &viewer})
}

// Returns {"user":null} when there is no session
// curl -b cookies.txt http://localhost:3030/api/me
func (app *App) handleMe(w http.ResponseWriter, r *http.Request) {

	u, err := app.Sessions.Resolve(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, userReply{OK: true, User: u})
}

// curl -X POST -b cookies.txt -d '{"name":"Sari","phone":"0812"}' http://localhost:3030/api/user/profile
func (app *App) handleProfile(w http.ResponseWriter, r *http.Request) {

	u := app.user(w, r)
	if u == nil {
		return
	}

	var p store.Profile

	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}

	updated, err := app.Store.UpdateProfile(r.Context(), u.ID, p)

	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "no such user")
		return
	case err != nil:
		log.WithField("error", err.Error()).Error("Could not update profile")
		writeError(w, http.StatusInternalServerError, "could not update profile")
		return
	}

	writeJSON(w, http.StatusOK, userReply{OK: true, User: &updated})
}

// Removes the session and clears the cookie
// curl -X POST -b cookies.txt http://localhost:3030/api/logout
func (app *App) handleLogout(w http.ResponseWriter, r *http.Request) {

	if c, err := r.Cookie(app.Sessions.CookieName()); err == nil && c.Value != "" {
		if err := app.Store.DeleteSession(r.Context(), c.Value); err != nil {
			log.WithField("error", err.Error()).Error("Could not delete session")
		}
	}

	http.SetCookie(w, app.sessionCookie("", -1))

	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
