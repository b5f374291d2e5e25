package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"dinedeals-api/internal/models"
)

const couponColumns = `id, deal_id, user_id, deal_title, restaurant_name,
	restaurant_image, discount_percent, status, claimed_at, used_at, expires_at, code`

// ClaimCoupon consumes one coupon slot and records the coupon in a
// single transaction. The slot is taken with a conditional increment so
// two racing claims can never push claimed_coupons past max_coupons;
// when the guard matches no row the claim fails with ErrNoSlot and the
// caller re-reads the deal to classify why. A coupon code collision
// surfaces as ErrDuplicateCode so the caller can mint a new code and
// retry without burning the slot (the transaction rolls back whole).
func (db *DB) ClaimCoupon(ctx context.Context, c models.Coupon) error {
	tx, err := db.begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE deals SET claimed_coupons = claimed_coupons + 1, updated_at = ?
		 WHERE id = ? AND is_active = 1 AND claimed_coupons < max_coupons`,
		formatTime(c.ClaimedAt), c.DealID)
	if err != nil {
		return fmt.Errorf("failed to take coupon slot: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return ErrNoSlot
	}

	var usedAt interface{}
	if c.UsedAt != nil {
		usedAt = formatTime(*c.UsedAt)
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO coupons (`+couponColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.DealID, c.UserID, c.DealTitle, c.RestaurantName,
		c.RestaurantImage, c.DiscountPercent, c.Status,
		formatTime(c.ClaimedAt), usedAt, formatTime(c.ExpiresAt), c.Code,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateCode
		}
		return fmt.Errorf("failed to insert coupon: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit claim: %w", err)
	}
	return nil
}

func scanCoupon(scan func(dest ...interface{}) error) (*models.Coupon, error) {
	var c models.Coupon
	var claimedAt, expiresAt string
	var usedAt sql.NullString

	err := scan(
		&c.ID, &c.DealID, &c.UserID, &c.DealTitle, &c.RestaurantName,
		&c.RestaurantImage, &c.DiscountPercent, &c.Status, &claimedAt,
		&usedAt, &expiresAt, &c.Code,
	)
	if err != nil {
		return nil, err
	}

	c.ClaimedAt = parseTime(claimedAt)
	c.ExpiresAt = parseTime(expiresAt)
	if usedAt.Valid {
		t := parseTime(usedAt.String)
		c.UsedAt = &t
	}
	return &c, nil
}

// GetCoupon returns the coupon with the given id, or nil if absent.
func (db *DB) GetCoupon(ctx context.Context, id string) (*models.Coupon, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+couponColumns+` FROM coupons WHERE id = ?`, id)
	c, err := scanCoupon(row.Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query coupon: %w", err)
	}
	return c, nil
}

// GetCouponByCode returns the coupon with the given redemption code, or
// nil if absent.
func (db *DB) GetCouponByCode(ctx context.Context, code string) (*models.Coupon, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+couponColumns+` FROM coupons WHERE code = ?`, code)
	c, err := scanCoupon(row.Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query coupon by code: %w", err)
	}
	return c, nil
}

// CouponsByUser returns a user's coupons, newest claim first.
func (db *DB) CouponsByUser(ctx context.Context, userID string) ([]models.Coupon, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+couponColumns+` FROM coupons WHERE user_id = ? ORDER BY claimed_at DESC`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query coupons: %w", err)
	}
	defer rows.Close()

	var coupons []models.Coupon
	for rows.Next() {
		c, err := scanCoupon(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan coupon: %w", err)
		}
		coupons = append(coupons, *c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating coupons: %w", err)
	}

	return coupons, nil
}

// RedeemCoupon moves a coupon from active to used. The status guard in
// the WHERE clause makes concurrent redemptions of the same code settle
// to exactly one winner; the loser sees false.
func (db *DB) RedeemCoupon(ctx context.Context, id string, usedAt time.Time) (bool, error) {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE coupons SET status = 'used', used_at = ? WHERE id = ? AND status = 'active'`,
		formatTime(usedAt), id)
	if err != nil {
		return false, fmt.Errorf("failed to redeem coupon: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return n > 0, nil
}

// ExpireCoupon lazily persists the computed expired state. Only an
// active coupon can be marked expired.
func (db *DB) ExpireCoupon(ctx context.Context, id string) error {
	_, err := db.conn.ExecContext(ctx,
		`UPDATE coupons SET status = 'expired' WHERE id = ? AND status = 'active'`, id)
	if err != nil {
		return fmt.Errorf("failed to expire coupon: %w", err)
	}
	return nil
}
