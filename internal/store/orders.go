package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/practable/livehub/internal/message"
	log "github.com/sirupsen/logrus"
)

// Order statuses
const (
	StatusNew     = "new"
	StatusDeleted = "deleted"
)

// ErrInvalidOrder is returned when order input fails validation
var ErrInvalidOrder = errors.New("invalid order")

// Item is one line of an order
type Item struct {
	Product   string `json:"product"`
	Qty       int64  `json:"qty"`
	Price     int64  `json:"price"`
	LineTotal int64  `json:"line_total"`
}

// OrderInput is what a viewer submits at checkout
type OrderInput struct {
	ShippingName    string `json:"shipping_name"`
	ShippingPhone   string `json:"shipping_phone"`
	ShippingAddress string `json:"shipping_address"`
	Note            string `json:"note"`
	Items           []Item `json:"items"`
}

// OrderPatch is an admin update. A nil Total is recomputed from the subtotal
// and delivery fee, and a nil Status resets the order to new.
type OrderPatch struct {
	DeliveryFee *int64  `json:"delivery_fee,omitempty"`
	Total       *int64  `json:"total,omitempty"`
	Status      *string `json:"status,omitempty"`
}

// Order is a stored order with its items
type Order struct {
	ID              int64     `json:"id"`
	UserID          int64     `json:"user_id"`
	Subtotal        int64     `json:"subtotal"`
	DeliveryFee     int64     `json:"delivery_fee"`
	Total           int64     `json:"total"`
	ShippingName    string    `json:"shipping_name"`
	ShippingPhone   string    `json:"shipping_phone"`
	ShippingAddress string    `json:"shipping_address"`
	Note            string    `json:"note"`
	Status          string    `json:"status"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
	Items           []Item    `json:"items"`
}

func (in OrderInput) validate() error {

	if strings.TrimSpace(in.ShippingName) == "" {
		return fmt.Errorf("%w: shipping_name is required", ErrInvalidOrder)
	}

	if len(in.Items) == 0 {
		return fmt.Errorf("%w: no items", ErrInvalidOrder)
	}

	for i, it := range in.Items {
		if it.Product == "" {
			return fmt.Errorf("%w: item %d has no product", ErrInvalidOrder, i)
		}
		if it.Qty <= 0 {
			return fmt.Errorf("%w: item %d has qty %d", ErrInvalidOrder, i, it.Qty)
		}
		if it.Price < 0 {
			return fmt.Errorf("%w: item %d has negative price", ErrInvalidOrder, i)
		}
	}

	return nil
}

// CreateOrder stores a new order for userID and announces it
func (s *Store) CreateOrder(ctx context.Context, userID int64, in OrderInput) (Order, error) {

	if err := in.validate(); err != nil {
		return Order{}, err
	}

	var subtotal int64
	for _, it := range in.Items {
		subtotal += it.Qty * it.Price
	}

	now := s.timestamp()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Order{}, err
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.ExecContext(ctx, `
INSERT INTO orders(user_id, subtotal, delivery_fee, total, shipping_name, shipping_phone,
  shipping_address, note, status, created_at, updated_at)
VALUES(?, ?, 0, ?, ?, ?, ?, ?, ?, ?, ?)`,
		userID, subtotal, subtotal, in.ShippingName, in.ShippingPhone,
		in.ShippingAddress, in.Note, StatusNew, now, now)
	if err != nil {
		return Order{}, fmt.Errorf("insert order: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return Order{}, err
	}

	for _, it := range in.Items {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO order_items(order_id, product, qty, price) VALUES(?, ?, ?, ?)`,
			id, it.Product, it.Qty, it.Price)
		if err != nil {
			return Order{}, fmt.Errorf("insert order item: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return Order{}, err
	}

	log.WithFields(log.Fields{"order_id": id, "user_id": userID, "subtotal": subtotal}).Info("Order created")

	s.notify(message.TypeOrder, id)

	return s.GetOrder(ctx, id)
}

const orderColumns = `id, user_id, subtotal, delivery_fee, total, shipping_name, shipping_phone,
  shipping_address, note, status, created_at, updated_at`

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanOrder(row scanner) (Order, error) {

	var o Order
	var created, updated string

	err := row.Scan(&o.ID, &o.UserID, &o.Subtotal, &o.DeliveryFee, &o.Total,
		&o.ShippingName, &o.ShippingPhone, &o.ShippingAddress, &o.Note, &o.Status,
		&created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return Order{}, ErrNotFound
	}
	if err != nil {
		return Order{}, err
	}

	o.CreatedAt = parseTime(created)
	o.UpdatedAt = parseTime(updated)

	return o, nil
}

func (s *Store) items(ctx context.Context, orderID int64) ([]Item, error) {

	rows, err := s.db.QueryContext(ctx,
		`SELECT product, qty, price FROM order_items WHERE order_id = ? ORDER BY id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []Item{}

	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.Product, &it.Qty, &it.Price); err != nil {
			return nil, err
		}
		it.LineTotal = it.Qty * it.Price
		items = append(items, it)
	}

	return items, rows.Err()
}

// GetOrder returns the order with id, including deleted orders
func (s *Store) GetOrder(ctx context.Context, id int64) (Order, error) {

	o, err := scanOrder(s.db.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = ? LIMIT 1`, id))
	if err != nil {
		return Order{}, err
	}

	o.Items, err = s.items(ctx, id)
	if err != nil {
		return Order{}, err
	}

	return o, nil
}

// ListOrders returns orders newest first, omitting deleted orders unless
// includeDeleted is set
func (s *Store) ListOrders(ctx context.Context, includeDeleted bool) ([]Order, error) {

	query := `SELECT ` + orderColumns + ` FROM orders`
	args := []interface{}{}

	if !includeDeleted {
		query += ` WHERE status <> ?`
		args = append(args, StatusDeleted)
	}

	query += ` ORDER BY id DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}

	orders := []Order{}

	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		orders = append(orders, o)
	}

	// items are fetched after the rows are closed, since only one connection is open
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range orders {
		orders[i].Items, err = s.items(ctx, orders[i].ID)
		if err != nil {
			return nil, err
		}
	}

	return orders, nil
}

// PatchOrder applies an admin update and announces it
func (s *Store) PatchOrder(ctx context.Context, id int64, p OrderPatch) (Order, error) {

	o, err := s.GetOrder(ctx, id)
	if err != nil {
		return Order{}, err
	}

	delivery := o.DeliveryFee
	if p.DeliveryFee != nil {
		delivery = *p.DeliveryFee
	}

	if delivery < 0 {
		return Order{}, fmt.Errorf("%w: negative delivery fee", ErrInvalidOrder)
	}

	total := o.Subtotal + delivery
	if p.Total != nil {
		total = *p.Total
	}

	status := StatusNew
	if p.Status != nil && *p.Status != "" {
		status = *p.Status
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE orders SET delivery_fee = ?, total = ?, status = ?, updated_at = ? WHERE id = ?`,
		delivery, total, status, s.timestamp(), id)
	if err != nil {
		return Order{}, fmt.Errorf("update order: %w", err)
	}

	log.WithFields(log.Fields{"order_id": id, "delivery_fee": delivery, "total": total, "status": status}).Info("Order updated")

	s.notify(message.TypeOrderUpdate, id)

	return s.GetOrder(ctx, id)
}

// DeleteOrder marks the order deleted and announces it
func (s *Store) DeleteOrder(ctx context.Context, id int64) error {

	res, err := s.db.ExecContext(ctx,
		`UPDATE orders SET status = ?, updated_at = ? WHERE id = ?`,
		StatusDeleted, s.timestamp(), id)
	if err != nil {
		return fmt.Errorf("delete order: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}

	if n == 0 {
		return ErrNotFound
	}

	log.WithField("order_id", id).Info("Order deleted")

	s.notify(message.TypeOrderDeleted, id)

	return nil
}
