package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"dinedeals-api/internal/models"
)

const orderColumns = `id, restaurant_id, customer_id, customer_name, customer_phone,
	order_type, items, subtotal, discount, total, status, table_number, pickup_time,
	special_instructions, estimated_time, created_at, updated_at`

// CreateOrder inserts an order. Items are stored as a JSON column; the
// message list lives in its own table so appends are single inserts.
func (db *DB) CreateOrder(ctx context.Context, o models.Order) error {
	items, err := json.Marshal(o.Items)
	if err != nil {
		return fmt.Errorf("failed to serialize order items: %w", err)
	}

	_, err = db.conn.ExecContext(ctx,
		`INSERT INTO orders (`+orderColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.ID, o.RestaurantID, o.CustomerID, o.CustomerName, o.CustomerPhone,
		o.OrderType, string(items), o.Subtotal, o.Discount, o.Total, o.Status,
		o.TableNumber, o.PickupTime, o.SpecialInstructions, o.EstimatedTime,
		formatTime(o.CreatedAt), formatTime(o.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}
	return nil
}

func scanOrder(scan func(dest ...interface{}) error) (*models.Order, error) {
	var o models.Order
	var items, createdAt, updatedAt string

	err := scan(
		&o.ID, &o.RestaurantID, &o.CustomerID, &o.CustomerName, &o.CustomerPhone,
		&o.OrderType, &items, &o.Subtotal, &o.Discount, &o.Total, &o.Status,
		&o.TableNumber, &o.PickupTime, &o.SpecialInstructions, &o.EstimatedTime,
		&createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(items), &o.Items); err != nil {
		return nil, fmt.Errorf("failed to deserialize order items: %w", err)
	}
	o.CreatedAt = parseTime(createdAt)
	o.UpdatedAt = parseTime(updatedAt)
	o.Messages = []models.OrderMessage{}
	return &o, nil
}

// GetOrder returns the order with its messages, or nil if absent.
func (db *DB) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = ?`, id)
	o, err := scanOrder(row.Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query order: %w", err)
	}

	msgs, err := db.OrderMessages(ctx, id)
	if err != nil {
		return nil, err
	}
	o.Messages = msgs
	return o, nil
}

func (db *DB) queryOrders(ctx context.Context, query string, args ...interface{}) ([]models.Order, error) {
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	var orders []models.Order
	for rows.Next() {
		o, err := scanOrder(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, *o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating orders: %w", err)
	}

	for i := range orders {
		msgs, err := db.OrderMessages(ctx, orders[i].ID)
		if err != nil {
			return nil, err
		}
		orders[i].Messages = msgs
	}

	return orders, nil
}

// OrdersByRestaurant returns a restaurant's orders, newest first.
func (db *DB) OrdersByRestaurant(ctx context.Context, restaurantID string) ([]models.Order, error) {
	return db.queryOrders(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE restaurant_id = ? ORDER BY created_at DESC`,
		restaurantID)
}

// OrdersByCustomer returns a customer's orders, newest first.
func (db *DB) OrdersByCustomer(ctx context.Context, customerID string) ([]models.Order, error) {
	return db.queryOrders(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE customer_id = ? ORDER BY created_at DESC`,
		customerID)
}

// TransitionOrder moves an order from one status to another with a
// compare-and-swap on the current status. Returns false when the order
// was not in the expected status, which is how a concurrent transition
// loses cleanly.
func (db *DB) TransitionOrder(ctx context.Context, id string, from, to models.OrderStatus, estimatedTime int, now time.Time) (bool, error) {
	var res sql.Result
	var err error
	if estimatedTime > 0 {
		res, err = db.conn.ExecContext(ctx,
			`UPDATE orders SET status = ?, estimated_time = ?, updated_at = ?
			 WHERE id = ? AND status = ?`,
			to, estimatedTime, formatTime(now), id, from)
	} else {
		res, err = db.conn.ExecContext(ctx,
			`UPDATE orders SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
			to, formatTime(now), id, from)
	}
	if err != nil {
		return false, fmt.Errorf("failed to transition order: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return n > 0, nil
}

// AppendOrderMessage appends one chat message. A message is its own
// row, so concurrent sends cannot overwrite each other.
func (db *DB) AppendOrderMessage(ctx context.Context, m models.OrderMessage) error {
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO order_messages (id, order_id, sender_id, sender_type, message, timestamp, read)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.OrderID, m.SenderID, m.SenderType, m.Message,
		formatTime(m.Timestamp), m.Read,
	)
	if err != nil {
		return fmt.Errorf("failed to insert order message: %w", err)
	}
	return nil
}

// OrderMessages returns an order's messages in send order.
func (db *DB) OrderMessages(ctx context.Context, orderID string) ([]models.OrderMessage, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, order_id, sender_id, sender_type, message, timestamp, read
		 FROM order_messages WHERE order_id = ? ORDER BY timestamp ASC, id ASC`, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to query order messages: %w", err)
	}
	defer rows.Close()

	messages := []models.OrderMessage{}
	for rows.Next() {
		var m models.OrderMessage
		var ts string
		if err := rows.Scan(&m.ID, &m.OrderID, &m.SenderID, &m.SenderType, &m.Message, &ts, &m.Read); err != nil {
			return nil, fmt.Errorf("failed to scan order message: %w", err)
		}
		m.Timestamp = parseTime(ts)
		messages = append(messages, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating order messages: %w", err)
	}

	return messages, nil
}

// MarkMessageRead flips the read flag on one message. Unknown ids are a
// no-op, and marking twice is harmless.
func (db *DB) MarkMessageRead(ctx context.Context, orderID, messageID string) error {
	_, err := db.conn.ExecContext(ctx,
		`UPDATE order_messages SET read = 1 WHERE id = ? AND order_id = ?`,
		messageID, orderID)
	if err != nil {
		return fmt.Errorf("failed to mark message read: %w", err)
	}
	return nil
}

// PendingOrderCount counts a restaurant's pending orders.
func (db *DB) PendingOrderCount(ctx context.Context, restaurantID string) (int, error) {
	var count int
	err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM orders WHERE restaurant_id = ? AND status = 'pending'`,
		restaurantID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count pending orders: %w", err)
	}
	return count, nil
}

// OrderStatsFor aggregates a restaurant's order counts and today's
// completed revenue in SQL.
func (db *DB) OrderStatsFor(ctx context.Context, restaurantID string, now time.Time) (*models.OrderStats, error) {
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	dayEnd := dayStart.Add(24 * time.Hour)

	var s models.OrderStats
	err := db.conn.QueryRowContext(ctx,
		`SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN created_at >= ? AND created_at < ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN created_at >= ? AND created_at < ? AND status = 'completed' THEN total ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'pending' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'preparing' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'completed' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status IN ('rejected', 'cancelled') THEN 1 ELSE 0 END), 0)
		 FROM orders WHERE restaurant_id = ?`,
		formatTime(dayStart), formatTime(dayEnd),
		formatTime(dayStart), formatTime(dayEnd),
		restaurantID,
	).Scan(&s.Total, &s.TodayCount, &s.TodayRevenue, &s.Pending, &s.Preparing, &s.Completed, &s.Cancelled)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate order stats: %w", err)
	}

	return &s, nil
}
