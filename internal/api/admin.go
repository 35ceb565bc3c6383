package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/practable/livehub/internal/store"
	log "github.com/sirupsen/logrus"
)

type bootstrapRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// curl http://localhost:3030/api/admin/exists
func (app *App) handleAdminExists(w http.ResponseWriter, r *http.Request) {

	exists, err := app.Store.AdminExists(r.Context())
	if err != nil {
		log.WithField("error", err.Error()).Error("Could not check for admin")
		writeError(w, http.StatusInternalServerError, "could not check for admin")
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"exists": exists})
}

// Creates the first admin and logs it in; refused once any admin exists.
// curl -X POST -c cookies.txt -d '{"name":"Tim","email":"tim@example.com"}' http://localhost:3030/api/admin/bootstrap
func (app *App) handleAdminBootstrap(w http.ResponseWriter, r *http.Request) {

	var req bootstrapRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)

	if req.Name == "" || req.Email == "" {
		writeError(w, http.StatusBadRequest, "name and email are required")
		return
	}

	a, sid, err := app.Store.BootstrapAdmin(r.Context(), req.Name, req.Email)

	switch {
	case errors.Is(err, store.ErrAdminExists):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		log.WithField("error", err.Error()).Error("Could not bootstrap admin")
		writeError(w, http.StatusInternalServerError, "could not bootstrap admin")
		return
	}

	log.WithFields(log.Fields{"user_id": a.ID, "name": a.Name}).Info("Admin bootstrapped")

	http.SetCookie(w, app.sessionCookie(sid, 0))

	writeJSON(w, http.StatusOK, userReply{OK: true, User: &a})
}
