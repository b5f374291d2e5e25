package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"dinedeals-api/internal/apperr"
)

func TestNotifications_ReadLifecycle(t *testing.T) {
	svc, db, cleanup := newTestService(t)
	defer cleanup()
	ctx := context.Background()

	_, owner := seedOwner(t, db, "rest_1")
	fan, caller := seedCustomer(t, db, "rest_1")

	// Two launches produce two notifications.
	_, err := svc.CreateDeal(ctx, owner, dealParams("rest_1"))
	require.NoError(t, err)
	_, err = svc.CreateDeal(ctx, owner, dealParams("rest_1"))
	require.NoError(t, err)

	all, err := svc.MyNotifications(ctx, caller)
	require.NoError(t, err)
	require.Len(t, all, 2)

	unread, err := svc.UnreadNotifications(ctx, caller)
	require.NoError(t, err)
	require.Len(t, unread, 2)

	marked, err := svc.MarkNotificationRead(ctx, caller, unread[0].ID)
	require.NoError(t, err)
	require.True(t, marked.Read)
	require.Equal(t, fan.ID, marked.UserID)

	unread, err = svc.UnreadNotifications(ctx, caller)
	require.NoError(t, err)
	require.Len(t, unread, 1)

	require.NoError(t, svc.MarkAllNotificationsRead(ctx, caller))
	unread, err = svc.UnreadNotifications(ctx, caller)
	require.NoError(t, err)
	require.Empty(t, unread)
}

func TestMarkNotificationRead_OtherUsersAreInvisible(t *testing.T) {
	svc, db, cleanup := newTestService(t)
	defer cleanup()
	ctx := context.Background()

	_, owner := seedOwner(t, db, "rest_1")
	_, fan := seedCustomer(t, db, "rest_1")
	_, other := seedCustomer(t, db)

	_, err := svc.CreateDeal(ctx, owner, dealParams("rest_1"))
	require.NoError(t, err)

	notifs, err := svc.MyNotifications(ctx, fan)
	require.NoError(t, err)
	require.Len(t, notifs, 1)

	_, err = svc.MarkNotificationRead(ctx, other, notifs[0].ID)
	require.True(t, apperr.IsKind(err, apperr.KindNotFound))

	_, err = svc.MarkNotificationRead(ctx, fan, "notif_missing")
	require.True(t, apperr.IsKind(err, apperr.KindNotFound))
}
