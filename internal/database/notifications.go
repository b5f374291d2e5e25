package database

import (
	"context"
	"fmt"

	"dinedeals-api/internal/models"
)

const notificationColumns = `id, user_id, restaurant_id, restaurant_name, title,
	message, type, read, event_key, created_at`

// InsertNotification writes one notification row. Rows are keyed on
// (user_id, event_key), so replaying the same event for the same user
// is ignored rather than double-notifying. Returns whether a row was
// actually inserted.
func (db *DB) InsertNotification(ctx context.Context, n models.Notification) (bool, error) {
	eventKey := n.EventKey
	if eventKey == "" {
		eventKey = n.ID
	}

	res, err := db.conn.ExecContext(ctx,
		`INSERT OR IGNORE INTO notifications (`+notificationColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		n.ID, n.UserID, n.RestaurantID, n.RestaurantName, n.Title,
		n.Message, n.Type, n.Read, eventKey, formatTime(n.CreatedAt),
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert notification: %w", err)
	}

	inserted, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return inserted > 0, nil
}

func (db *DB) queryNotifications(ctx context.Context, query string, args ...interface{}) ([]models.Notification, error) {
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query notifications: %w", err)
	}
	defer rows.Close()

	notifications := []models.Notification{}
	for rows.Next() {
		var n models.Notification
		var createdAt string
		err := rows.Scan(&n.ID, &n.UserID, &n.RestaurantID, &n.RestaurantName,
			&n.Title, &n.Message, &n.Type, &n.Read, &n.EventKey, &createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		n.CreatedAt = parseTime(createdAt)
		notifications = append(notifications, n)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating notifications: %w", err)
	}

	return notifications, nil
}

// NotificationsByUser returns a user's notifications, newest first.
func (db *DB) NotificationsByUser(ctx context.Context, userID string) ([]models.Notification, error) {
	return db.queryNotifications(ctx,
		`SELECT `+notificationColumns+` FROM notifications WHERE user_id = ? ORDER BY created_at DESC`,
		userID)
}

// UnreadNotificationsByUser returns a user's unread notifications,
// newest first.
func (db *DB) UnreadNotificationsByUser(ctx context.Context, userID string) ([]models.Notification, error) {
	return db.queryNotifications(ctx,
		`SELECT `+notificationColumns+` FROM notifications WHERE user_id = ? AND read = 0 ORDER BY created_at DESC`,
		userID)
}

// GetNotification returns one of a user's notifications, or nil.
func (db *DB) GetNotification(ctx context.Context, userID, id string) (*models.Notification, error) {
	rows, err := db.queryNotifications(ctx,
		`SELECT `+notificationColumns+` FROM notifications WHERE user_id = ? AND id = ?`,
		userID, id)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

// MarkNotificationRead flips the read flag on one of a user's
// notifications. Returns false when the row is not theirs or absent.
func (db *DB) MarkNotificationRead(ctx context.Context, userID, id string) (bool, error) {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE notifications SET read = 1 WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return false, fmt.Errorf("failed to mark notification read: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return n > 0, nil
}

// MarkAllNotificationsRead flips the read flag on all of a user's
// notifications.
func (db *DB) MarkAllNotificationsRead(ctx context.Context, userID string) error {
	_, err := db.conn.ExecContext(ctx,
		`UPDATE notifications SET read = 1 WHERE user_id = ?`, userID)
	if err != nil {
		return fmt.Errorf("failed to mark notifications read: %w", err)
	}
	return nil
}
