// Package service implements the core business logic: the deal
// registry, coupon ledger, order state machine, and notification
// fan-out. All methods take the caller's identity explicitly.
package service

import (
	"context"
	"log"
	"time"

	"dinedeals-api/internal/cache"
	"dinedeals-api/internal/database"
	"dinedeals-api/internal/events"
	"dinedeals-api/internal/features"
	"dinedeals-api/internal/models"

	"github.com/google/uuid"
)

// Service provides the business logic behind the RPC surface.
type Service struct {
	db     *database.DB
	cache  cache.Cache
	flags  *features.Manager
	events *events.Manager
	now    func() time.Time
}

// NewService wires the service to its collaborators.
func NewService(db *database.DB, c cache.Cache, flags *features.Manager, ev *events.Manager) *Service {
	return &Service{
		db:     db,
		cache:  c,
		flags:  flags,
		events: ev,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func newID(prefix string) string {
	return prefix + "_" + uuid.NewString()
}

// notifyUser writes one notification row for a single recipient.
// Notification delivery is best-effort: the primary state change has
// already committed, so failures are logged and never surfaced.
func (s *Service) notifyUser(ctx context.Context, n models.Notification) {
	if n.ID == "" {
		n.ID = newID("notif")
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = s.now()
	}
	if _, err := s.db.InsertNotification(ctx, n); err != nil {
		log.Printf("notification write failed for user %s: %v", n.UserID, err)
	}
}

// notifyFavorites fans one event out to every user whose favorites
// include the restaurant. The event key makes a replayed fan-out
// idempotent per user.
func (s *Service) notifyFavorites(ctx context.Context, restaurantID, restaurantName, eventKey, title, message string) {
	userIDs, err := s.db.UsersFavoriting(ctx, restaurantID)
	if err != nil {
		log.Printf("favorites lookup failed for restaurant %s: %v", restaurantID, err)
		return
	}

	for _, userID := range userIDs {
		s.notifyUser(ctx, models.Notification{
			ID:             newID("notif"),
			UserID:         userID,
			RestaurantID:   restaurantID,
			RestaurantName: restaurantName,
			Title:          title,
			Message:        message,
			Type:           models.NotifOffer,
			EventKey:       eventKey,
			CreatedAt:      s.now(),
		})
	}
}

// invalidateDealCache drops the cached active-deals listing after any
// deal write or claim.
func (s *Service) invalidateDealCache(ctx context.Context) {
	if s.flags.IsEnabled(features.CacheEnabled) {
		_ = s.cache.Delete(ctx, cache.ActiveDealsKey)
	}
}
