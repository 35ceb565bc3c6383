// Package session resolves the identity behind an http request, either from
// a session cookie looked up in the store or from a bearer token.
package session

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/practable/livehub/internal/store"
	log "github.com/sirupsen/logrus"
)

// Users is the part of the store needed to resolve cookie sessions
type Users interface {
	UserBySession(ctx context.Context, sid string) (store.User, error)
}

// Resolver turns request credentials into a user
type Resolver struct {
	users      Users
	cookieName string
	secret     string
	audience   string
}

// NewResolver returns a Resolver. Bearer tokens are refused when secret is empty.
func NewResolver(users Users, cookieName, secret, audience string) *Resolver {
	return &Resolver{
		users:      users,
		cookieName: cookieName,
		secret:     secret,
		audience:   audience,
	}
}

// CookieName returns the name of the session cookie
func (r *Resolver) CookieName() string {
	return r.cookieName
}

// Resolve returns the user behind the request, or nil, nil when the request
// carries no credential. A cookie naming an unknown session is treated as no
// credential; a bad bearer token is an error.
func (r *Resolver) Resolve(req *http.Request) (*store.User, error) {

	if c, err := req.Cookie(r.cookieName); err == nil && c.Value != "" {

		u, err := r.users.UserBySession(req.Context(), c.Value)

		switch {
		case err == nil:
			return &u, nil
		case errors.Is(err, store.ErrNotFound):
			log.WithField("sid", redact(c.Value)).Debug("Unknown session cookie")
		default:
			return nil, err
		}
	}

	auth := req.Header.Get("Authorization")

	if auth == "" {
		return nil, nil
	}

	bearer := strings.TrimPrefix(auth, "Bearer ")

	if bearer == auth || r.secret == "" {
		return nil, ErrInvalidToken
	}

	claims, err := ParseToken(bearer, r.secret, r.audience)
	if err != nil {
		log.WithField("error", err.Error()).Info("Bearer token refused")
		return nil, err
	}

	return &store.User{
		ID:   claims.UserID,
		Role: claims.Role,
		Name: claims.Name,
	}, nil
}

// redact shortens a session id so that logs cannot be used to replay it
func redact(sid string) string {
	if len(sid) <= 8 {
		return "***"
	}
	return sid[:8] + "..."
}
