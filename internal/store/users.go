package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// User is an identity resolved from a session or token
type User struct {
	ID    int64   `json:"id"`
	Role  string  `json:"role"`
	Name  string  `json:"name"`
	Email *string `json:"email,omitempty"`
	Phone *string `json:"phone,omitempty"`
}

// IsAdmin reports whether u has the admin role
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// Profile holds optional profile updates
type Profile struct {
	Name  *string `json:"name,omitempty"`
	Email *string `json:"email,omitempty"`
	Phone *string `json:"phone,omitempty"`
}

// CreateUser inserts a user with role and name
func (s *Store) CreateUser(ctx context.Context, role, name string) (User, error) {

	if role != RoleViewer && role != RoleAdmin {
		return User{}, fmt.Errorf("unknown role %q", role)
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO users(role, name, created_at) VALUES(?, ?, ?)`,
		role, name, s.timestamp())
	if err != nil {
		return User{}, fmt.Errorf("insert user: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return User{}, err
	}

	return User{ID: id, Role: role, Name: name}, nil
}

// CreateSession returns a new session id for the user
func (s *Store) CreateSession(ctx context.Context, userID int64) (string, error) {

	sid := uuid.New().String()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions(sid, user_id, created_at) VALUES(?, ?, ?)`,
		sid, userID, s.timestamp())
	if err != nil {
		return "", fmt.Errorf("insert session: %w", err)
	}

	return sid, nil
}

// EnsureViewer creates an anonymous viewer and a session for it
func (s *Store) EnsureViewer(ctx context.Context) (User, string, error) {

	name := "viewer-" + uuid.New().String()[:8]

	u, err := s.CreateUser(ctx, RoleViewer, name)
	if err != nil {
		return User{}, "", err
	}

	sid, err := s.CreateSession(ctx, u.ID)
	if err != nil {
		return User{}, "", err
	}

	return u, sid, nil
}

// UserBySession returns the user owning session sid
func (s *Store) UserBySession(ctx context.Context, sid string) (User, error) {

	row := s.db.QueryRowContext(ctx, `
SELECT u.id, u.role, u.name, u.email, u.phone
FROM sessions s JOIN users u ON s.user_id = u.id
WHERE s.sid = ? LIMIT 1`, sid)

	return scanUser(row)
}

// UserByID returns the user with id
func (s *Store) UserByID(ctx context.Context, id int64) (User, error) {

	row := s.db.QueryRowContext(ctx,
		`SELECT id, role, name, email, phone FROM users WHERE id = ? LIMIT 1`, id)

	return scanUser(row)
}

// UpdateProfile applies the non-nil fields of p to the user
func (s *Store) UpdateProfile(ctx context.Context, id int64, p Profile) (User, error) {

	u, err := s.UserByID(ctx, id)
	if err != nil {
		return User{}, err
	}

	if p.Name != nil && *p.Name != "" {
		u.Name = *p.Name
	}
	if p.Email != nil {
		u.Email = p.Email
	}
	if p.Phone != nil {
		u.Phone = p.Phone
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE users SET name = ?, email = ?, phone = ? WHERE id = ?`,
		u.Name, u.Email, u.Phone, id)
	if err != nil {
		return User{}, fmt.Errorf("update user: %w", err)
	}

	return u, nil
}

// DeleteSession removes session sid. Deleting an unknown session is not an error.
func (s *Store) DeleteSession(ctx context.Context, sid string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE sid = ?`, sid)
	return err
}

func scanUser(row *sql.Row) (User, error) {

	var u User
	var email, phone sql.NullString

	err := row.Scan(&u.ID, &u.Role, &u.Name, &email, &phone)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, err
	}

	if email.Valid {
		u.Email = &email.String
	}
	if phone.Valid {
		u.Phone = &phone.String
	}

	return u, nil
}

// CreateAdmin inserts an admin user with an email address
func (s *Store) CreateAdmin(ctx context.Context, name, email string) (User, error) {

	u, err := s.CreateUser(ctx, RoleAdmin, name)
	if err != nil {
		return User{}, err
	}

	return s.UpdateProfile(ctx, u.ID, Profile{Email: &email})
}

// ErrAdminExists is returned when bootstrapping once an admin exists
var ErrAdminExists = errors.New("admin already exists")

// AdminExists reports whether any admin user has been created
func (s *Store) AdminExists(ctx context.Context) (bool, error) {

	var n int

	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM users WHERE role = ?`, RoleAdmin).Scan(&n)
	if err != nil {
		return false, err
	}

	return n > 0, nil
}

// BootstrapAdmin creates the first admin and a session for it, and fails with
// ErrAdminExists once any admin exists. The check and the insert share one
// transaction, so concurrent bootstraps yield a single admin.
func (s *Store) BootstrapAdmin(ctx context.Context, name, email string) (User, string, error) {

	now := s.timestamp()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return User{}, "", err
	}
	defer tx.Rollback() //nolint:errcheck

	var n int

	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM users WHERE role = ?`, RoleAdmin).Scan(&n)
	if err != nil {
		return User{}, "", err
	}

	if n > 0 {
		return User{}, "", ErrAdminExists
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO users(role, name, email, created_at) VALUES(?, ?, ?, ?)`,
		RoleAdmin, name, email, now)
	if err != nil {
		return User{}, "", fmt.Errorf("insert admin: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return User{}, "", err
	}

	sid := uuid.New().String()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO sessions(sid, user_id, created_at) VALUES(?, ?, ?)`,
		sid, id, now)
	if err != nil {
		return User{}, "", fmt.Errorf("insert session: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return User{}, "", err
	}

	return User{ID: id, Role: RoleAdmin, Name: name, Email: &email}, sid, nil
}
