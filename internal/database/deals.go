package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"dinedeals-api/internal/models"
)

const dealColumns = `id, restaurant_id, restaurant_name, restaurant_image, title,
	description, discount_percent, offer_type, max_coupons, claimed_coupons,
	min_order, valid_till, days_available, start_time, end_time, is_active,
	activations, terms_conditions, created_at, updated_at`

// CreateDeal inserts a deal with claimed_coupons starting at zero.
func (db *DB) CreateDeal(ctx context.Context, d models.Deal) error {
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO deals (`+dealColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.RestaurantID, d.RestaurantName, d.RestaurantImage, d.Title,
		d.Description, d.DiscountPercent, d.OfferType, d.MaxCoupons,
		d.MinOrder, d.ValidTill, serializeStrings(d.DaysAvailable),
		d.StartTime, d.EndTime, d.IsActive, d.Activations, d.TermsConditions,
		formatTime(d.CreatedAt), formatTime(d.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert deal: %w", err)
	}
	return nil
}

func scanDeal(scan func(dest ...interface{}) error) (*models.Deal, error) {
	var d models.Deal
	var days, createdAt, updatedAt string

	err := scan(
		&d.ID, &d.RestaurantID, &d.RestaurantName, &d.RestaurantImage, &d.Title,
		&d.Description, &d.DiscountPercent, &d.OfferType, &d.MaxCoupons,
		&d.ClaimedCoupons, &d.MinOrder, &d.ValidTill, &days, &d.StartTime,
		&d.EndTime, &d.IsActive, &d.Activations, &d.TermsConditions,
		&createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	d.DaysAvailable = deserializeStrings(days)
	d.CreatedAt = parseTime(createdAt)
	d.UpdatedAt = parseTime(updatedAt)
	return &d, nil
}

// GetDeal returns the deal with the given id, or nil if absent.
func (db *DB) GetDeal(ctx context.Context, id string) (*models.Deal, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+dealColumns+` FROM deals WHERE id = ?`, id)
	d, err := scanDeal(row.Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query deal: %w", err)
	}
	return d, nil
}

func (db *DB) queryDeals(ctx context.Context, query string, args ...interface{}) ([]models.Deal, error) {
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query deals: %w", err)
	}
	defer rows.Close()

	var deals []models.Deal
	for rows.Next() {
		d, err := scanDeal(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan deal: %w", err)
		}
		deals = append(deals, *d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating deals: %w", err)
	}

	return deals, nil
}

// ListDeals returns every deal, newest first.
func (db *DB) ListDeals(ctx context.Context) ([]models.Deal, error) {
	return db.queryDeals(ctx,
		`SELECT `+dealColumns+` FROM deals ORDER BY created_at DESC`)
}

// ListActiveDeals returns active deals, newest first.
func (db *DB) ListActiveDeals(ctx context.Context) ([]models.Deal, error) {
	return db.queryDeals(ctx,
		`SELECT `+dealColumns+` FROM deals WHERE is_active = 1 ORDER BY created_at DESC`)
}

// DealsByRestaurant returns a restaurant's deals, newest first.
func (db *DB) DealsByRestaurant(ctx context.Context, restaurantID string) ([]models.Deal, error) {
	return db.queryDeals(ctx,
		`SELECT `+dealColumns+` FROM deals WHERE restaurant_id = ? ORDER BY created_at DESC`,
		restaurantID)
}

// UpdateDeal applies a patch of mutable fields. Returns false if the
// deal does not exist.
func (db *DB) UpdateDeal(ctx context.Context, id string, p models.DealPatch, now time.Time) (bool, error) {
	sets := []string{"updated_at = ?"}
	args := []interface{}{formatTime(now)}

	add := func(col string, v interface{}) {
		sets = append(sets, col+" = ?")
		args = append(args, v)
	}

	if p.Title != nil {
		add("title", *p.Title)
	}
	if p.Description != nil {
		add("description", *p.Description)
	}
	if p.DiscountPercent != nil {
		add("discount_percent", *p.DiscountPercent)
	}
	if p.OfferType != nil {
		add("offer_type", *p.OfferType)
	}
	if p.MaxCoupons != nil {
		add("max_coupons", *p.MaxCoupons)
	}
	if p.MinOrder != nil {
		add("min_order", *p.MinOrder)
	}
	if p.ValidTill != nil {
		add("valid_till", *p.ValidTill)
	}
	if p.DaysAvailable != nil {
		add("days_available", serializeStrings(*p.DaysAvailable))
	}
	if p.StartTime != nil {
		add("start_time", *p.StartTime)
	}
	if p.EndTime != nil {
		add("end_time", *p.EndTime)
	}
	if p.TermsConditions != nil {
		add("terms_conditions", *p.TermsConditions)
	}

	args = append(args, id)
	res, err := db.conn.ExecContext(ctx,
		`UPDATE deals SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return false, fmt.Errorf("failed to update deal: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return n > 0, nil
}

// SetDealActive flips the active flag. When activating, the activation
// counter advances so a fresh fan-out event key is minted.
func (db *DB) SetDealActive(ctx context.Context, id string, active bool, now time.Time) (bool, error) {
	var res sql.Result
	var err error
	if active {
		res, err = db.conn.ExecContext(ctx,
			`UPDATE deals SET is_active = 1, activations = activations + 1, updated_at = ?
			 WHERE id = ?`, formatTime(now), id)
	} else {
		res, err = db.conn.ExecContext(ctx,
			`UPDATE deals SET is_active = 0, updated_at = ? WHERE id = ?`,
			formatTime(now), id)
	}
	if err != nil {
		return false, fmt.Errorf("failed to toggle deal: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return n > 0, nil
}

// DeleteDeal removes a deal. Outstanding coupons keep their weak
// deal_id reference; the service layer decides whether deletion is
// allowed at all.
func (db *DB) DeleteDeal(ctx context.Context, id string) error {
	_, err := db.conn.ExecContext(ctx, `DELETE FROM deals WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete deal: %w", err)
	}
	return nil
}

// CountOutstandingCoupons counts active, unexpired coupons referencing
// the deal.
func (db *DB) CountOutstandingCoupons(ctx context.Context, dealID string, now time.Time) (int, error) {
	var count int
	err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM coupons WHERE deal_id = ? AND status = 'active' AND expires_at > ?`,
		dealID, formatTime(now)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count outstanding coupons: %w", err)
	}
	return count, nil
}
