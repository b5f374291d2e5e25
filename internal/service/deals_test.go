package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"dinedeals-api/internal/apperr"
	"dinedeals-api/internal/cache"
	"dinedeals-api/internal/events"
	"dinedeals-api/internal/features"
	"dinedeals-api/internal/models"
)

func TestCreateDeal_RoleAndOwnership(t *testing.T) {
	svc, db, cleanup := newTestService(t)
	defer cleanup()
	ctx := context.Background()

	_, customer := seedCustomer(t, db)
	_, owner := seedOwner(t, db, "rest_1")

	_, err := svc.CreateDeal(ctx, customer, dealParams("rest_1"))
	require.True(t, apperr.IsKind(err, apperr.KindForbidden))

	_, err = svc.CreateDeal(ctx, owner, dealParams("rest_other"))
	require.True(t, apperr.IsKind(err, apperr.KindForbidden))

	deal, err := svc.CreateDeal(ctx, owner, dealParams("rest_1"))
	require.NoError(t, err)
	require.Equal(t, "rest_1", deal.RestaurantID)
	require.Equal(t, "Test Restaurant", deal.RestaurantName)
}

func TestCreateDeal_FansOutToFavoritingUsers(t *testing.T) {
	svc, db, cleanup := newTestService(t)
	defer cleanup()
	ctx := context.Background()

	_, owner := seedOwner(t, db, "rest_1")
	fanA, _ := seedCustomer(t, db, "rest_1")
	fanB, _ := seedCustomer(t, db, "rest_1", "rest_2")
	bystander, _ := seedCustomer(t, db, "rest_2")

	_, err := svc.CreateDeal(ctx, owner, dealParams("rest_1"))
	require.NoError(t, err)

	for _, fan := range []models.User{fanA, fanB} {
		notifs, err := db.NotificationsByUser(ctx, fan.ID)
		require.NoError(t, err)
		require.Len(t, notifs, 1)
		require.Equal(t, "New Offer Available!", notifs[0].Title)
		require.Equal(t, models.NotifOffer, notifs[0].Type)
	}

	notifs, err := db.NotificationsByUser(ctx, bystander.ID)
	require.NoError(t, err)
	require.Empty(t, notifs)
}

func TestCreateDeal_InactiveDoesNotAnnounce(t *testing.T) {
	svc, db, cleanup := newTestService(t)
	defer cleanup()
	ctx := context.Background()

	_, owner := seedOwner(t, db, "rest_1")
	fan, _ := seedCustomer(t, db, "rest_1")

	p := dealParams("rest_1")
	p.IsActive = false
	_, err := svc.CreateDeal(ctx, owner, p)
	require.NoError(t, err)

	notifs, err := db.NotificationsByUser(ctx, fan.ID)
	require.NoError(t, err)
	require.Empty(t, notifs)
}

func TestAnnounce_ReplayIsIdempotentPerActivation(t *testing.T) {
	svc, db, cleanup := newTestService(t)
	defer cleanup()
	ctx := context.Background()

	_, owner := seedOwner(t, db, "rest_1")
	fan, _ := seedCustomer(t, db, "rest_1")

	deal, err := svc.CreateDeal(ctx, owner, dealParams("rest_1"))
	require.NoError(t, err)

	// Replaying the same activation's fan-out inserts nothing new.
	svc.announceDeal(ctx, *deal)

	notifs, err := db.NotificationsByUser(ctx, fan.ID)
	require.NoError(t, err)
	require.Len(t, notifs, 1)
}

func TestToggleDeal_ReactivationReNotifies(t *testing.T) {
	svc, db, cleanup := newTestService(t)
	defer cleanup()
	ctx := context.Background()

	_, owner := seedOwner(t, db, "rest_1")
	fan, _ := seedCustomer(t, db, "rest_1")

	deal, err := svc.CreateDeal(ctx, owner, dealParams("rest_1"))
	require.NoError(t, err)

	off, err := svc.ToggleDealActive(ctx, owner, deal.ID)
	require.NoError(t, err)
	require.False(t, off.IsActive)

	on, err := svc.ToggleDealActive(ctx, owner, deal.ID)
	require.NoError(t, err)
	require.True(t, on.IsActive)

	// Launch announcement plus the re-activation one.
	notifs, err := db.NotificationsByUser(ctx, fan.ID)
	require.NoError(t, err)
	require.Len(t, notifs, 2)
}

func TestUpdateDeal_Patch(t *testing.T) {
	svc, db, cleanup := newTestService(t)
	defer cleanup()
	ctx := context.Background()

	_, owner := seedOwner(t, db, "rest_1")
	_, claimant := seedCustomer(t, db)

	deal, err := svc.CreateDeal(ctx, owner, dealParams("rest_1"))
	require.NoError(t, err)

	title := "Two For One Pizza"
	discount := 40
	updated, err := svc.UpdateDeal(ctx, owner, models.UpdateDealParams{
		ID:    deal.ID,
		Patch: models.DealPatch{Title: &title, DiscountPercent: &discount},
	})
	require.NoError(t, err)
	require.Equal(t, title, updated.Title)
	require.Equal(t, discount, updated.DiscountPercent)
	// Untouched fields survive the patch.
	require.Equal(t, deal.MaxCoupons, updated.MaxCoupons)

	// An empty patch is rejected.
	_, err = svc.UpdateDeal(ctx, owner, models.UpdateDealParams{ID: deal.ID})
	require.True(t, apperr.IsKind(err, apperr.KindValidation))

	// max_coupons cannot drop below the claimed count.
	_, err = svc.ClaimCoupon(ctx, claimant, deal.ID)
	require.NoError(t, err)
	zero := 0
	_, err = svc.UpdateDeal(ctx, owner, models.UpdateDealParams{
		ID:    deal.ID,
		Patch: models.DealPatch{MaxCoupons: &zero},
	})
	require.True(t, apperr.IsKind(err, apperr.KindValidation))
}

func TestUpdateDeal_DiscountChangeDoesNotTouchClaimedCoupons(t *testing.T) {
	svc, db, cleanup := newTestService(t)
	defer cleanup()
	ctx := context.Background()

	_, owner := seedOwner(t, db, "rest_1")
	_, claimant := seedCustomer(t, db)

	deal, err := svc.CreateDeal(ctx, owner, dealParams("rest_1"))
	require.NoError(t, err)
	coupon, err := svc.ClaimCoupon(ctx, claimant, deal.ID)
	require.NoError(t, err)

	discount := 10
	_, err = svc.UpdateDeal(ctx, owner, models.UpdateDealParams{
		ID:    deal.ID,
		Patch: models.DealPatch{DiscountPercent: &discount},
	})
	require.NoError(t, err)

	// The coupon keeps the discount it was claimed at.
	got, err := svc.GetCoupon(ctx, claimant, coupon.ID)
	require.NoError(t, err)
	require.Equal(t, 50, got.DiscountPercent)
}

func TestDeleteDeal_BlockedByOutstandingCoupons(t *testing.T) {
	svc, db, cleanup := newTestService(t)
	defer cleanup()
	ctx := context.Background()

	_, owner := seedOwner(t, db, "rest_1")
	_, claimant := seedCustomer(t, db)

	deal, err := svc.CreateDeal(ctx, owner, dealParams("rest_1"))
	require.NoError(t, err)
	coupon, err := svc.ClaimCoupon(ctx, claimant, deal.ID)
	require.NoError(t, err)

	err = svc.DeleteDeal(ctx, owner, deal.ID)
	require.True(t, apperr.IsKind(err, apperr.KindConflict))

	// Once the coupon is spent, deletion goes through.
	_, err = svc.RedeemCoupon(ctx, coupon.Code)
	require.NoError(t, err)
	require.NoError(t, svc.DeleteDeal(ctx, owner, deal.ID))

	_, err = svc.GetDeal(ctx, deal.ID)
	require.True(t, apperr.IsKind(err, apperr.KindNotFound))
}

func TestSearchDeals(t *testing.T) {
	svc, db, cleanup := newTestService(t)
	defer cleanup()
	ctx := context.Background()

	_, owner := seedOwner(t, db, "rest_1")

	p := dealParams("rest_1")
	p.Title = "Half Price Pizza"
	_, err := svc.CreateDeal(ctx, owner, p)
	require.NoError(t, err)

	p = dealParams("rest_1")
	p.Title = "Free Dessert"
	p.DiscountPercent = 15
	p.OfferType = models.OfferDineIn
	_, err = svc.CreateDeal(ctx, owner, p)
	require.NoError(t, err)

	results, err := svc.SearchDeals(ctx, models.SearchDealsParams{Query: "pizza"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, "Half Price Pizza", results[0].Title)

	min := 40
	results, err = svc.SearchDeals(ctx, models.SearchDealsParams{MinDiscount: &min})
	require.NoError(t, err)
	require.Len(t, results, 1)

	pickup := models.OfferPickup
	results, err = svc.SearchDeals(ctx, models.SearchDealsParams{OfferType: &pickup})
	require.NoError(t, err)
	// "both" deals match any requested offer type; the dine-in one does not.
	require.Len(t, results, 1)
}

func TestHotDeals(t *testing.T) {
	svc, db, cleanup := newTestService(t)
	defer cleanup()
	ctx := context.Background()

	_, owner := seedOwner(t, db, "rest_1")

	for _, discount := range []int{10, 30, 50, 70} {
		p := dealParams("rest_1")
		p.DiscountPercent = discount
		_, err := svc.CreateDeal(ctx, owner, p)
		require.NoError(t, err)
	}

	hot, err := svc.HotDeals(ctx)
	require.NoError(t, err)
	require.Len(t, hot, 3)
	require.Equal(t, 70, hot[0].DiscountPercent)
	require.Equal(t, 30, hot[2].DiscountPercent)
}

func TestListActiveDeals_CacheInvalidatedOnWrite(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	flags := features.NewManager()
	flags.Register(features.CacheEnabled, true)
	svc := NewService(db, cache.NewMemoryCache(), flags, events.NewManager(false))

	_, owner := seedOwner(t, db, "rest_1")

	_, err := svc.CreateDeal(ctx, owner, dealParams("rest_1"))
	require.NoError(t, err)

	deals, err := svc.ListActiveDeals(ctx)
	require.NoError(t, err)
	require.Len(t, deals, 1)

	// The write invalidates the cached listing, so the next read sees
	// the new deal.
	_, err = svc.CreateDeal(ctx, owner, dealParams("rest_1"))
	require.NoError(t, err)

	deals, err = svc.ListActiveDeals(ctx)
	require.NoError(t, err)
	require.Len(t, deals, 2)
}
