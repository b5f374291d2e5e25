package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"dinedeals-api/internal/apperr"
	"dinedeals-api/internal/auth"
	"dinedeals-api/internal/database"
	"dinedeals-api/internal/events"
	"dinedeals-api/internal/models"
	"dinedeals-api/internal/tracing"
)

const (
	claimRetries = 3
	claimPoints  = 10
)

// couponCode derives a redemption code from the deal id prefix and the
// claim time in base36. Collisions are possible; the claim loop retries
// on the unique index rather than assuming uniqueness.
func couponCode(dealID string, now time.Time, attempt int) string {
	prefix := dealID
	if len(prefix) > 4 {
		prefix = prefix[:4]
	}
	return strings.ToUpper(prefix + strconv.FormatInt(now.UnixMilli()+int64(attempt), 36))
}

// ClaimCoupon claims one coupon from a deal for the caller. The slot is
// consumed atomically, so N racing claims on a deal with K slots left
// produce exactly K coupons and N−K exhausted errors.
func (s *Service) ClaimCoupon(ctx context.Context, caller auth.CallerContext, dealID string) (*models.Coupon, error) {
	ctx, span := tracing.Get().StartSpan(ctx, "service.ClaimCoupon")
	defer span.End()

	deal, err := s.db.GetDeal(ctx, dealID)
	if err != nil {
		return nil, err
	}
	if err := classifyClaimFailure(deal); err != nil {
		return nil, err
	}

	now := s.now()
	expiresAt, err := time.Parse(time.RFC3339, deal.ValidTill)
	if err != nil {
		return nil, fmt.Errorf("deal %s has malformed valid_till: %w", dealID, err)
	}

	coupon := models.Coupon{
		ID:              newID("coupon"),
		DealID:          dealID,
		UserID:          caller.UserID,
		DealTitle:       deal.Title,
		RestaurantName:  deal.RestaurantName,
		RestaurantImage: deal.RestaurantImage,
		DiscountPercent: deal.DiscountPercent,
		Status:          models.CouponActive,
		ClaimedAt:       now,
		ExpiresAt:       expiresAt,
	}

	for attempt := 0; ; attempt++ {
		coupon.Code = couponCode(dealID, now, attempt)

		err = s.db.ClaimCoupon(ctx, coupon)
		if err == nil {
			break
		}
		if errors.Is(err, database.ErrNoSlot) {
			// Re-read to report why the slot guard failed.
			deal, rerr := s.db.GetDeal(ctx, dealID)
			if rerr != nil {
				return nil, rerr
			}
			if cerr := classifyClaimFailure(deal); cerr != nil {
				return nil, cerr
			}
			return nil, apperr.New(apperr.KindExhausted, "all coupons for this deal have been claimed")
		}
		if errors.Is(err, database.ErrDuplicateCode) && attempt < claimRetries {
			continue
		}
		return nil, err
	}

	s.invalidateDealCache(ctx)

	// Loyalty points are a perk, not part of the claim contract.
	if err := s.db.AddUserPoints(ctx, caller.UserID, claimPoints); err != nil {
		log.Printf("points award failed for user %s: %v", caller.UserID, err)
	}

	s.events.Publish(ctx, events.EventCouponClaimed, events.CouponClaimedData{Coupon: coupon})

	return &coupon, nil
}

// classifyClaimFailure turns the pre-claim deal state into the
// taxonomy error a claimant should see.
func classifyClaimFailure(deal *models.Deal) error {
	switch {
	case deal == nil:
		return apperr.NotFound("deal")
	case !deal.IsActive:
		return apperr.New(apperr.KindInactiveDeal, "this deal is no longer active")
	case deal.ClaimedCoupons >= deal.MaxCoupons:
		return apperr.New(apperr.KindExhausted, "all coupons for this deal have been claimed")
	}
	return nil
}

// GetCoupon returns one of the caller's coupons.
func (s *Service) GetCoupon(ctx context.Context, caller auth.CallerContext, id string) (*models.Coupon, error) {
	coupon, err := s.db.GetCoupon(ctx, id)
	if err != nil {
		return nil, err
	}
	if coupon == nil {
		return nil, apperr.NotFound("coupon")
	}
	if coupon.UserID != caller.UserID {
		return nil, apperr.New(apperr.KindForbidden, "coupon belongs to another user")
	}
	return coupon, nil
}

// MyCoupons returns the caller's coupons.
func (s *Service) MyCoupons(ctx context.Context, caller auth.CallerContext) ([]models.Coupon, error) {
	return s.db.CouponsByUser(ctx, caller.UserID)
}

// RedeemCoupon moves an active coupon to used. Expiry is decided by
// expires_at against the clock, never by the stored status alone; an
// expired-but-still-active row is lazily flipped to expired.
func (s *Service) RedeemCoupon(ctx context.Context, code string) (*models.Coupon, error) {
	coupon, err := s.db.GetCouponByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if coupon == nil {
		return nil, apperr.NotFound("coupon")
	}

	if coupon.Status != models.CouponActive {
		return nil, apperr.New(apperr.KindAlreadyUsed, "this coupon has already been %s", coupon.Status)
	}

	now := s.now()
	if coupon.Expired(now) {
		if err := s.db.ExpireCoupon(ctx, coupon.ID); err != nil {
			log.Printf("lazy expiry failed for coupon %s: %v", coupon.ID, err)
		}
		return nil, apperr.New(apperr.KindExpired, "this coupon has expired")
	}

	ok, err := s.db.RedeemCoupon(ctx, coupon.ID, now)
	if err != nil {
		return nil, err
	}
	if !ok {
		// Lost a race with another redemption of the same code.
		return nil, apperr.New(apperr.KindAlreadyUsed, "this coupon has already been used")
	}

	return s.db.GetCoupon(ctx, coupon.ID)
}

// VerifyCoupon is the public, read-only validity check a restaurant
// runs before honoring a code.
func (s *Service) VerifyCoupon(ctx context.Context, code string) (*models.VerifyResult, error) {
	coupon, err := s.db.GetCouponByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if coupon == nil {
		return &models.VerifyResult{Valid: false, Message: "Coupon not found"}, nil
	}

	if coupon.Status != models.CouponActive {
		return &models.VerifyResult{
			Valid:   false,
			Message: fmt.Sprintf("Coupon has already been %s", coupon.Status),
		}, nil
	}

	if coupon.Expired(s.now()) {
		return &models.VerifyResult{Valid: false, Message: "Coupon has expired"}, nil
	}

	return &models.VerifyResult{
		Valid:   true,
		Coupon:  coupon,
		Message: fmt.Sprintf("%d%% discount available", coupon.DiscountPercent),
	}, nil
}
