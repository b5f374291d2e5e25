package service

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"dinedeals-api/internal/auth"
	"dinedeals-api/internal/cache"
	"dinedeals-api/internal/database"
	"dinedeals-api/internal/events"
	"dinedeals-api/internal/features"
	"dinedeals-api/internal/models"
)

func setupTestDB(t *testing.T) (*database.DB, func()) {
	dbPath := "./test_" + uuid.NewString() + ".db"
	db, err := database.NewDB(dbPath)
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}

	cleanup := func() {
		db.Close()
		os.Remove(dbPath)
	}

	return db, cleanup
}

func newTestService(t *testing.T) (*Service, *database.DB, func()) {
	db, cleanup := setupTestDB(t)
	svc := NewService(db, cache.NewMemoryCache(), features.NewManager(), events.NewManager(false))
	return svc, db, cleanup
}

func seedCustomer(t *testing.T, db *database.DB, favorites ...string) (models.User, auth.CallerContext) {
	t.Helper()

	id := "user_" + uuid.NewString()
	u := models.User{
		ID:        id,
		Email:     id + "@example.com",
		Name:      "Test Customer",
		Phone:     "555-0100",
		Role:      models.RoleCustomer,
		Favorites: favorites,
	}
	require.NoError(t, db.CreateUser(context.Background(), u))

	return u, auth.CallerContext{UserID: u.ID, Role: u.Role}
}

func seedOwner(t *testing.T, db *database.DB, restaurantID string) (models.User, auth.CallerContext) {
	t.Helper()

	id := "user_" + uuid.NewString()
	u := models.User{
		ID:           id,
		Email:        id + "@example.com",
		Name:         "Test Restaurant",
		Phone:        "555-0200",
		Role:         models.RoleRestaurant,
		RestaurantID: restaurantID,
	}
	require.NoError(t, db.CreateUser(context.Background(), u))

	return u, auth.CallerContext{UserID: u.ID, Role: u.Role, RestaurantID: restaurantID}
}

func dealParams(restaurantID string) models.CreateDealParams {
	return models.CreateDealParams{
		RestaurantID:    restaurantID,
		Title:           "Half Price Pizza",
		Description:     "50% off all pizzas",
		DiscountPercent: 50,
		OfferType:       models.OfferBoth,
		MaxCoupons:      100,
		ValidTill:       time.Now().UTC().Add(7 * 24 * time.Hour).Format(time.RFC3339),
		IsActive:        true,
	}
}
