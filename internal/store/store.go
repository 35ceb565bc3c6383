// Package store persists users, sessions and orders in sqlite, and announces
// order changes on the global event channel.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/practable/livehub/internal/message"
	log "github.com/sirupsen/logrus"

	_ "modernc.org/sqlite"
)

// Roles
const (
	RoleViewer = "viewer"
	RoleAdmin  = "admin"
)

// ErrNotFound is returned when a user, session or order does not exist
var ErrNotFound = errors.New("not found")

// Notifier receives order lifecycle notifications, already encoded
type Notifier interface {
	Publish(data []byte)
}

// Store wraps the sqlite database
type Store struct {
	db *sql.DB

	notifier Notifier

	// Now is a function for getting the time - useful for mocking in test
	Now func() time.Time
}

// Open opens (creating if needed) the sqlite database at path. Order changes
// are announced to n, which may be nil.
func Open(path string, n Notifier) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	return &Store{db: db, notifier: n, Now: time.Now}, nil
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

// Init creates the schema if it does not exist
func (s *Store) Init(ctx context.Context) error {
	schema := `
CREATE TABLE IF NOT EXISTS users (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  role TEXT NOT NULL,
  name TEXT NOT NULL,
  email TEXT,
  phone TEXT,
  created_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS sessions (
  sid TEXT PRIMARY KEY,
  user_id INTEGER NOT NULL REFERENCES users(id),
  created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sessions_user ON sessions(user_id);
CREATE TABLE IF NOT EXISTS orders (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  user_id INTEGER NOT NULL REFERENCES users(id),
  subtotal INTEGER NOT NULL,
  delivery_fee INTEGER NOT NULL DEFAULT 0,
  total INTEGER NOT NULL,
  shipping_name TEXT NOT NULL DEFAULT '',
  shipping_phone TEXT NOT NULL DEFAULT '',
  shipping_address TEXT NOT NULL DEFAULT '',
  note TEXT NOT NULL DEFAULT '',
  status TEXT NOT NULL,
  created_at TEXT NOT NULL,
  updated_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_orders_user ON orders(user_id);
CREATE TABLE IF NOT EXISTS order_items (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  order_id INTEGER NOT NULL REFERENCES orders(id),
  product TEXT NOT NULL,
  qty INTEGER NOT NULL,
  price INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_order_items_order ON order_items(order_id);
`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

// notify announces an order change. Notifications are best-effort, like the
// channel that carries them.
func (s *Store) notify(t string, orderID int64) {
	if s.notifier == nil {
		return
	}
	s.notifier.Publish(message.MustEncode(message.NewOrder(t, orderID)))
	log.WithFields(log.Fields{"t": t, "order_id": orderID}).Debug("Order notification published")
}

func (s *Store) timestamp() string {
	return s.Now().UTC().Format(time.RFC3339Nano)
}

func parseTime(v string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}
	}
	return t
}
