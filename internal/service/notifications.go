package service

import (
	"context"

	"dinedeals-api/internal/apperr"
	"dinedeals-api/internal/auth"
	"dinedeals-api/internal/models"
)

// MyNotifications returns the caller's notifications, newest first.
func (s *Service) MyNotifications(ctx context.Context, caller auth.CallerContext) ([]models.Notification, error) {
	return s.db.NotificationsByUser(ctx, caller.UserID)
}

// UnreadNotifications returns the caller's unread notifications.
func (s *Service) UnreadNotifications(ctx context.Context, caller auth.CallerContext) ([]models.Notification, error) {
	return s.db.UnreadNotificationsByUser(ctx, caller.UserID)
}

// MarkNotificationRead flips one of the caller's notifications to read
// and returns it. Another user's notification is indistinguishable from
// a missing one.
func (s *Service) MarkNotificationRead(ctx context.Context, caller auth.CallerContext, id string) (*models.Notification, error) {
	ok, err := s.db.MarkNotificationRead(ctx, caller.UserID, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.NotFound("notification")
	}
	return s.db.GetNotification(ctx, caller.UserID, id)
}

// MarkAllNotificationsRead flips all of the caller's notifications to
// read.
func (s *Service) MarkAllNotificationsRead(ctx context.Context, caller auth.CallerContext) error {
	return s.db.MarkAllNotificationsRead(ctx, caller.UserID)
}
