// Package database is the persistence gateway: a thin typed layer over
// sqlite. Counter increments and status transitions are expressed as
// conditional UPDATEs so concurrent writers cannot violate invariants.
package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"
)

var (
	// ErrNoSlot is returned when a conditional claim update affected no
	// rows: the deal is missing, inactive, or out of coupons.
	ErrNoSlot = errors.New("database: no coupon slot available")
	// ErrDuplicateCode is returned when a coupon code collides with an
	// existing one; callers regenerate and retry.
	ErrDuplicateCode = errors.New("database: coupon code already exists")
)

// DB wraps the database connection and provides typed data access.
type DB struct {
	conn *sql.DB
}

// NewDB opens the sqlite database and initializes the schema. A single
// open connection serializes writers; sqlite handles one writer at a
// time anyway and this avoids SQLITE_BUSY churn under concurrent claims.
func NewDB(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=1&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	conn.SetMaxOpenConns(1)

	db := &DB{conn: conn}

	if err := db.initSchema(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			email TEXT NOT NULL UNIQUE,
			name TEXT NOT NULL,
			phone TEXT NOT NULL DEFAULT '',
			role TEXT NOT NULL,
			restaurant_id TEXT NOT NULL DEFAULT '',
			favorites TEXT NOT NULL DEFAULT '[]',
			points INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS sessions (
			token TEXT PRIMARY KEY,
			user_id TEXT NOT NULL REFERENCES users(id)
		)`,
		`CREATE TABLE IF NOT EXISTS deals (
			id TEXT PRIMARY KEY,
			restaurant_id TEXT NOT NULL,
			restaurant_name TEXT NOT NULL DEFAULT '',
			restaurant_image TEXT NOT NULL DEFAULT '',
			title TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			discount_percent INTEGER NOT NULL,
			offer_type TEXT NOT NULL,
			max_coupons INTEGER NOT NULL,
			claimed_coupons INTEGER NOT NULL DEFAULT 0,
			min_order REAL NOT NULL DEFAULT 0,
			valid_till TEXT NOT NULL,
			days_available TEXT NOT NULL DEFAULT '[]',
			start_time TEXT NOT NULL DEFAULT '',
			end_time TEXT NOT NULL DEFAULT '',
			is_active INTEGER NOT NULL,
			activations INTEGER NOT NULL DEFAULT 0,
			terms_conditions TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			CHECK (claimed_coupons >= 0 AND claimed_coupons <= max_coupons)
		)`,
		`CREATE TABLE IF NOT EXISTS coupons (
			id TEXT PRIMARY KEY,
			deal_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			deal_title TEXT NOT NULL DEFAULT '',
			restaurant_name TEXT NOT NULL DEFAULT '',
			restaurant_image TEXT NOT NULL DEFAULT '',
			discount_percent INTEGER NOT NULL,
			status TEXT NOT NULL,
			claimed_at TEXT NOT NULL,
			used_at TEXT,
			expires_at TEXT NOT NULL,
			code TEXT NOT NULL UNIQUE
		)`,
		`CREATE TABLE IF NOT EXISTS orders (
			id TEXT PRIMARY KEY,
			restaurant_id TEXT NOT NULL,
			customer_id TEXT NOT NULL,
			customer_name TEXT NOT NULL DEFAULT '',
			customer_phone TEXT NOT NULL DEFAULT '',
			order_type TEXT NOT NULL,
			items TEXT NOT NULL,
			subtotal REAL NOT NULL,
			discount REAL NOT NULL,
			total REAL NOT NULL,
			status TEXT NOT NULL,
			table_number TEXT NOT NULL DEFAULT '',
			pickup_time TEXT NOT NULL DEFAULT '',
			special_instructions TEXT NOT NULL DEFAULT '',
			estimated_time INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS order_messages (
			id TEXT PRIMARY KEY,
			order_id TEXT NOT NULL REFERENCES orders(id),
			sender_id TEXT NOT NULL,
			sender_type TEXT NOT NULL,
			message TEXT NOT NULL,
			timestamp TEXT NOT NULL,
			read INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS notifications (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			restaurant_id TEXT NOT NULL DEFAULT '',
			restaurant_name TEXT NOT NULL DEFAULT '',
			title TEXT NOT NULL,
			message TEXT NOT NULL,
			type TEXT NOT NULL,
			read INTEGER NOT NULL DEFAULT 0,
			event_key TEXT NOT NULL,
			created_at TEXT NOT NULL,
			UNIQUE(user_id, event_key)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_deals_restaurant ON deals(restaurant_id)`,
		`CREATE INDEX IF NOT EXISTS idx_coupons_user ON coupons(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_coupons_deal ON coupons(deal_id)`,
		`CREATE INDEX IF NOT EXISTS idx_orders_restaurant ON orders(restaurant_id)`,
		`CREATE INDEX IF NOT EXISTS idx_orders_customer ON orders(customer_id)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_order ON order_messages(order_id)`,
		`CREATE INDEX IF NOT EXISTS idx_notifications_user ON notifications(user_id)`,
	}

	for _, query := range queries {
		if _, err := db.conn.Exec(query); err != nil {
			return fmt.Errorf("failed to execute schema query: %w", err)
		}
	}

	return nil
}

// begin starts a transaction bound to the given context.
func (db *DB) begin(ctx context.Context) (*sql.Tx, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return tx, nil
}

func isUniqueViolation(err error) bool {
	var serr sqlite3.Error
	if errors.As(err, &serr) {
		return serr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			serr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

func serializeStrings(list []string) string {
	if len(list) == 0 {
		return "[]"
	}
	data, err := json.Marshal(list)
	if err != nil {
		return strings.Join(list, ",")
	}
	return string(data)
}

func deserializeStrings(serialized string) []string {
	if serialized == "" || serialized == "[]" {
		return []string{}
	}

	var result []string
	if err := json.Unmarshal([]byte(serialized), &result); err == nil {
		return result
	}

	return strings.Split(serialized, ",")
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t
	}
	t, _ := time.Parse(time.RFC3339, s)
	return t
}
