package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"dinedeals-api/internal/apperr"
	"dinedeals-api/internal/auth"
	"dinedeals-api/internal/cache"
	"dinedeals-api/internal/events"
	"dinedeals-api/internal/features"
	"dinedeals-api/internal/models"
	"dinedeals-api/internal/validation"
)

const activeDealsTTL = 30 * time.Second

// ListDeals returns every deal.
func (s *Service) ListDeals(ctx context.Context) ([]models.Deal, error) {
	return s.db.ListDeals(ctx)
}

// ListActiveDeals returns active deals, served from cache when enabled.
func (s *Service) ListActiveDeals(ctx context.Context) ([]models.Deal, error) {
	useCache := s.flags.IsEnabled(features.CacheEnabled)

	if useCache {
		var cached []models.Deal
		if err := cache.GetJSON(ctx, s.cache, cache.ActiveDealsKey, &cached); err == nil {
			return cached, nil
		}
	}

	deals, err := s.db.ListActiveDeals(ctx)
	if err != nil {
		return nil, err
	}

	if useCache {
		_ = cache.SetJSON(ctx, s.cache, cache.ActiveDealsKey, deals, activeDealsTTL)
	}

	return deals, nil
}

// GetDeal returns one deal.
func (s *Service) GetDeal(ctx context.Context, id string) (*models.Deal, error) {
	deal, err := s.db.GetDeal(ctx, id)
	if err != nil {
		return nil, err
	}
	if deal == nil {
		return nil, apperr.NotFound("deal")
	}
	return deal, nil
}

// DealsByRestaurant returns a restaurant's deals.
func (s *Service) DealsByRestaurant(ctx context.Context, restaurantID string) ([]models.Deal, error) {
	return s.db.DealsByRestaurant(ctx, restaurantID)
}

// SearchDeals filters active deals by text and discount range.
func (s *Service) SearchDeals(ctx context.Context, p models.SearchDealsParams) ([]models.Deal, error) {
	if err := validation.ValidateSearchDeals(p); err != nil {
		return nil, err
	}

	deals, err := s.ListActiveDeals(ctx)
	if err != nil {
		return nil, err
	}

	results := make([]models.Deal, 0, len(deals))
	query := strings.ToLower(p.Query)
	for _, d := range deals {
		if query != "" &&
			!strings.Contains(strings.ToLower(d.Title), query) &&
			!strings.Contains(strings.ToLower(d.Description), query) &&
			!strings.Contains(strings.ToLower(d.RestaurantName), query) {
			continue
		}
		if p.OfferType != nil && d.OfferType != *p.OfferType && d.OfferType != models.OfferBoth {
			continue
		}
		if p.MinDiscount != nil && d.DiscountPercent < *p.MinDiscount {
			continue
		}
		if p.MaxDiscount != nil && d.DiscountPercent > *p.MaxDiscount {
			continue
		}
		results = append(results, d)
	}

	return results, nil
}

// HotDeals returns the ten steepest active discounts of 30% or more.
func (s *Service) HotDeals(ctx context.Context) ([]models.Deal, error) {
	deals, err := s.ListActiveDeals(ctx)
	if err != nil {
		return nil, err
	}

	hot := make([]models.Deal, 0, len(deals))
	for _, d := range deals {
		if d.DiscountPercent >= 30 {
			hot = append(hot, d)
		}
	}
	sort.Slice(hot, func(i, j int) bool {
		return hot[i].DiscountPercent > hot[j].DiscountPercent
	})
	if len(hot) > 10 {
		hot = hot[:10]
	}

	return hot, nil
}

// CreateDeal persists a new deal for the caller's restaurant and, when
// created active, announces it to users who favorited the restaurant.
func (s *Service) CreateDeal(ctx context.Context, caller auth.CallerContext, p models.CreateDealParams) (*models.Deal, error) {
	if !caller.IsRestaurant() {
		return nil, apperr.New(apperr.KindForbidden, "only restaurant accounts can create deals")
	}
	if p.RestaurantID == "" {
		p.RestaurantID = caller.RestaurantID
	}
	if p.RestaurantID != caller.RestaurantID {
		return nil, apperr.New(apperr.KindForbidden, "cannot create deals for another restaurant")
	}
	if err := validation.ValidateCreateDeal(p); err != nil {
		return nil, err
	}

	owner, err := s.db.GetUser(ctx, caller.UserID)
	if err != nil {
		return nil, err
	}
	if owner == nil {
		return nil, apperr.NotFound("user")
	}

	now := s.now()
	activations := 0
	if p.IsActive {
		activations = 1
	}

	deal := models.Deal{
		ID:              newID("deal"),
		RestaurantID:    p.RestaurantID,
		RestaurantName:  owner.Name,
		Title:           p.Title,
		Description:     p.Description,
		DiscountPercent: p.DiscountPercent,
		OfferType:       p.OfferType,
		MaxCoupons:      p.MaxCoupons,
		MinOrder:        p.MinOrder,
		ValidTill:       p.ValidTill,
		DaysAvailable:   p.DaysAvailable,
		StartTime:       p.StartTime,
		EndTime:         p.EndTime,
		IsActive:        p.IsActive,
		Activations:     activations,
		TermsConditions: p.TermsConditions,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.db.CreateDeal(ctx, deal); err != nil {
		return nil, err
	}
	s.invalidateDealCache(ctx)

	if deal.IsActive {
		s.announceDeal(ctx, deal)
	}

	return &deal, nil
}

// announceDeal fans a deal activation out to favoriting users and
// publishes the matching event.
func (s *Service) announceDeal(ctx context.Context, deal models.Deal) {
	eventKey := fmt.Sprintf("deal:%s:act%d", deal.ID, deal.Activations)
	message := fmt.Sprintf("%s just launched: %s", deal.RestaurantName, deal.Title)
	s.notifyFavorites(ctx, deal.RestaurantID, deal.RestaurantName, eventKey,
		"New Offer Available!", message)
	s.events.Publish(ctx, events.EventDealActivated, events.DealActivatedData{Deal: deal})
}

// ownedDeal loads a deal and verifies the caller's restaurant owns it.
func (s *Service) ownedDeal(ctx context.Context, caller auth.CallerContext, id string) (*models.Deal, error) {
	if !caller.IsRestaurant() {
		return nil, apperr.New(apperr.KindForbidden, "only restaurant accounts can manage deals")
	}

	deal, err := s.db.GetDeal(ctx, id)
	if err != nil {
		return nil, err
	}
	if deal == nil {
		return nil, apperr.NotFound("deal")
	}
	if deal.RestaurantID != caller.RestaurantID {
		return nil, apperr.New(apperr.KindForbidden, "deal belongs to another restaurant")
	}
	return deal, nil
}

// UpdateDeal applies a patch of mutable fields to an owned deal.
// max_coupons cannot drop below the already-claimed count.
func (s *Service) UpdateDeal(ctx context.Context, caller auth.CallerContext, p models.UpdateDealParams) (*models.Deal, error) {
	if err := validation.ValidateDealPatch(p.Patch); err != nil {
		return nil, err
	}

	deal, err := s.ownedDeal(ctx, caller, p.ID)
	if err != nil {
		return nil, err
	}
	if p.Patch.MaxCoupons != nil && *p.Patch.MaxCoupons < deal.ClaimedCoupons {
		return nil, validation.Fieldf("max_coupons",
			"cannot be lower than the %d coupons already claimed", deal.ClaimedCoupons)
	}

	ok, err := s.db.UpdateDeal(ctx, p.ID, p.Patch, s.now())
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.NotFound("deal")
	}
	s.invalidateDealCache(ctx)

	return s.db.GetDeal(ctx, p.ID)
}

// ToggleDealActive flips a deal's active flag. Re-activation re-notifies
// favoriting users: a deactivate/reactivate cycle is a legitimate
// re-announcement.
func (s *Service) ToggleDealActive(ctx context.Context, caller auth.CallerContext, id string) (*models.Deal, error) {
	deal, err := s.ownedDeal(ctx, caller, id)
	if err != nil {
		return nil, err
	}

	activating := !deal.IsActive
	if _, err := s.db.SetDealActive(ctx, id, activating, s.now()); err != nil {
		return nil, err
	}
	s.invalidateDealCache(ctx)

	updated, err := s.db.GetDeal(ctx, id)
	if err != nil {
		return nil, err
	}
	if updated != nil && activating {
		s.announceDeal(ctx, *updated)
	}

	return updated, nil
}

// DeleteDeal removes an owned deal. Deletion is blocked while active
// unexpired coupons still reference it, so claimants are not orphaned.
func (s *Service) DeleteDeal(ctx context.Context, caller auth.CallerContext, id string) error {
	deal, err := s.ownedDeal(ctx, caller, id)
	if err != nil {
		return err
	}

	outstanding, err := s.db.CountOutstandingCoupons(ctx, deal.ID, s.now())
	if err != nil {
		return err
	}
	if outstanding > 0 {
		return apperr.New(apperr.KindConflict,
			"%d active coupons still reference this deal; deactivate it instead", outstanding)
	}

	if err := s.db.DeleteDeal(ctx, id); err != nil {
		return err
	}
	s.invalidateDealCache(ctx)
	return nil
}
