package database

import (
	"context"
	"database/sql"
	"fmt"

	"dinedeals-api/internal/models"
)

// CreateUser inserts a user directory entry.
func (db *DB) CreateUser(ctx context.Context, u models.User) error {
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO users (id, email, name, phone, role, restaurant_id, favorites, points)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Email, u.Name, u.Phone, u.Role, u.RestaurantID,
		serializeStrings(u.Favorites), u.Points,
	)
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

// GetUser returns the user with the given id, or nil if absent.
func (db *DB) GetUser(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	var favorites string

	err := db.conn.QueryRowContext(ctx,
		`SELECT id, email, name, phone, role, restaurant_id, favorites, points
		 FROM users WHERE id = ?`, id,
	).Scan(&u.ID, &u.Email, &u.Name, &u.Phone, &u.Role, &u.RestaurantID, &favorites, &u.Points)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query user: %w", err)
	}

	u.Favorites = deserializeStrings(favorites)
	return &u, nil
}

// AddUserPoints adds loyalty points to a user. Missing users are a no-op.
func (db *DB) AddUserPoints(ctx context.Context, id string, delta int) error {
	_, err := db.conn.ExecContext(ctx,
		`UPDATE users SET points = points + ? WHERE id = ?`, delta, id)
	if err != nil {
		return fmt.Errorf("failed to update user points: %w", err)
	}
	return nil
}

// UsersFavoriting returns the ids of users whose favorites include the
// restaurant. Favorites are stored as a JSON array, so candidates are
// narrowed in SQL and confirmed after deserializing.
func (db *DB) UsersFavoriting(ctx context.Context, restaurantID string) ([]string, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, favorites FROM users WHERE favorites != '[]'`)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id, favorites string
		if err := rows.Scan(&id, &favorites); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		for _, fav := range deserializeStrings(favorites) {
			if fav == restaurantID {
				ids = append(ids, id)
				break
			}
		}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}

	return ids, nil
}

// CreateSession stores a bearer token for a user.
func (db *DB) CreateSession(ctx context.Context, token, userID string) error {
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO sessions (token, user_id) VALUES (?, ?)`, token, userID)
	if err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}
	return nil
}

// GetSessionUser resolves a bearer token to its user, or nil if the
// token is unknown.
func (db *DB) GetSessionUser(ctx context.Context, token string) (*models.User, error) {
	var userID string
	err := db.conn.QueryRowContext(ctx,
		`SELECT user_id FROM sessions WHERE token = ?`, token).Scan(&userID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query session: %w", err)
	}
	return db.GetUser(ctx, userID)
}
