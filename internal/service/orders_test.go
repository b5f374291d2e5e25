package service

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"dinedeals-api/internal/apperr"
	"dinedeals-api/internal/models"
)

func orderParams(restaurantID string) models.CreateOrderParams {
	return models.CreateOrderParams{
		RestaurantID: restaurantID,
		OrderType:    models.OrderDineIn,
		TableNumber:  "7",
		Items: []models.OrderItem{
			{ID: "item_1", Name: "Margherita", Quantity: 2, Price: 12.50},
			{ID: "item_2", Name: "Lemonade", Quantity: 1, Price: 3.00},
		},
	}
}

func TestCreateOrder_ComputesTotals(t *testing.T) {
	svc, db, cleanup := newTestService(t)
	defer cleanup()
	ctx := context.Background()

	customer, caller := seedCustomer(t, db)

	p := orderParams("rest_1")
	p.Discount = 5
	order, err := svc.CreateOrder(ctx, caller, p)
	require.NoError(t, err)

	require.Equal(t, models.StatusPending, order.Status)
	require.Equal(t, 28.0, order.Subtotal)
	require.Equal(t, 23.0, order.Total)
	require.Equal(t, customer.Name, order.CustomerName)
	require.Equal(t, customer.Phone, order.CustomerPhone)

	// The customer gets a placement notification.
	notifs, err := db.NotificationsByUser(ctx, customer.ID)
	require.NoError(t, err)
	require.Len(t, notifs, 1)
	require.Equal(t, "Order Placed", notifs[0].Title)
}

func TestCreateOrder_Validation(t *testing.T) {
	svc, db, cleanup := newTestService(t)
	defer cleanup()
	ctx := context.Background()

	_, caller := seedCustomer(t, db)

	p := orderParams("rest_1")
	p.TableNumber = ""
	_, err := svc.CreateOrder(ctx, caller, p)
	require.True(t, apperr.IsKind(err, apperr.KindValidation))

	p = orderParams("rest_1")
	p.Items = nil
	_, err = svc.CreateOrder(ctx, caller, p)
	require.True(t, apperr.IsKind(err, apperr.KindValidation))

	p = orderParams("rest_1")
	p.Items[0].Quantity = 0
	_, err = svc.CreateOrder(ctx, caller, p)
	require.True(t, apperr.IsKind(err, apperr.KindValidation))

	p = orderParams("rest_1")
	p.Discount = 1000
	_, err = svc.CreateOrder(ctx, caller, p)
	require.True(t, apperr.IsKind(err, apperr.KindValidation))
}

func TestUpdateOrderStatus_FullLifecycle(t *testing.T) {
	svc, db, cleanup := newTestService(t)
	defer cleanup()
	ctx := context.Background()

	_, owner := seedOwner(t, db, "rest_1")
	customer, caller := seedCustomer(t, db)

	order, err := svc.CreateOrder(ctx, caller, orderParams("rest_1"))
	require.NoError(t, err)

	path := []models.OrderStatus{
		models.StatusAccepted,
		models.StatusPreparing,
		models.StatusReady,
		models.StatusCompleted,
	}
	for i, status := range path {
		updated, err := svc.UpdateOrderStatus(ctx, owner, models.UpdateStatusParams{
			ID:     order.ID,
			Status: status,
		})
		require.NoError(t, err, "transition to %s", status)
		require.Equal(t, status, updated.Status)

		// One placement notification plus one per completed step.
		notifs, err := db.NotificationsByUser(ctx, customer.ID)
		require.NoError(t, err)
		require.Len(t, notifs, i+2, "after transition to %s", status)
	}

	// Terminal: nothing further is allowed.
	_, err = svc.UpdateOrderStatus(ctx, owner, models.UpdateStatusParams{
		ID:     order.ID,
		Status: models.StatusPreparing,
	})
	require.True(t, apperr.IsKind(err, apperr.KindInvalidTransition))
}

func TestUpdateOrderStatus_InvalidTransition(t *testing.T) {
	svc, db, cleanup := newTestService(t)
	defer cleanup()
	ctx := context.Background()

	_, owner := seedOwner(t, db, "rest_1")
	_, caller := seedCustomer(t, db)

	order, err := svc.CreateOrder(ctx, caller, orderParams("rest_1"))
	require.NoError(t, err)

	// pending cannot jump straight to ready.
	_, err = svc.UpdateOrderStatus(ctx, owner, models.UpdateStatusParams{
		ID:     order.ID,
		Status: models.StatusReady,
	})
	require.True(t, apperr.IsKind(err, apperr.KindInvalidTransition))
}

func TestUpdateOrderStatus_EstimatedTime(t *testing.T) {
	svc, db, cleanup := newTestService(t)
	defer cleanup()
	ctx := context.Background()

	_, owner := seedOwner(t, db, "rest_1")
	_, caller := seedCustomer(t, db)

	order, err := svc.CreateOrder(ctx, caller, orderParams("rest_1"))
	require.NoError(t, err)

	updated, err := svc.UpdateOrderStatus(ctx, owner, models.UpdateStatusParams{
		ID:            order.ID,
		Status:        models.StatusAccepted,
		EstimatedTime: 25,
	})
	require.NoError(t, err)
	require.Equal(t, 25, updated.EstimatedTime)
}

func TestUpdateOrderStatus_CustomerCancellation(t *testing.T) {
	svc, db, cleanup := newTestService(t)
	defer cleanup()
	ctx := context.Background()

	_, owner := seedOwner(t, db, "rest_1")
	_, caller := seedCustomer(t, db)

	// A customer may cancel their own pending order.
	order, err := svc.CreateOrder(ctx, caller, orderParams("rest_1"))
	require.NoError(t, err)
	updated, err := svc.UpdateOrderStatus(ctx, caller, models.UpdateStatusParams{
		ID:     order.ID,
		Status: models.StatusCancelled,
	})
	require.NoError(t, err)
	require.Equal(t, models.StatusCancelled, updated.Status)

	// But not accept it.
	order, err = svc.CreateOrder(ctx, caller, orderParams("rest_1"))
	require.NoError(t, err)
	_, err = svc.UpdateOrderStatus(ctx, caller, models.UpdateStatusParams{
		ID:     order.ID,
		Status: models.StatusAccepted,
	})
	require.True(t, apperr.IsKind(err, apperr.KindForbidden))

	// And not once the kitchen has started.
	_, err = svc.UpdateOrderStatus(ctx, owner, models.UpdateStatusParams{ID: order.ID, Status: models.StatusAccepted})
	require.NoError(t, err)
	_, err = svc.UpdateOrderStatus(ctx, owner, models.UpdateStatusParams{ID: order.ID, Status: models.StatusPreparing})
	require.NoError(t, err)
	_, err = svc.UpdateOrderStatus(ctx, caller, models.UpdateStatusParams{
		ID:     order.ID,
		Status: models.StatusCancelled,
	})
	require.True(t, apperr.IsKind(err, apperr.KindInvalidTransition))
}

func TestUpdateOrderStatus_StrangerForbidden(t *testing.T) {
	svc, db, cleanup := newTestService(t)
	defer cleanup()
	ctx := context.Background()

	_, caller := seedCustomer(t, db)
	_, stranger := seedCustomer(t, db)
	_, otherOwner := seedOwner(t, db, "rest_other")

	order, err := svc.CreateOrder(ctx, caller, orderParams("rest_1"))
	require.NoError(t, err)

	_, err = svc.UpdateOrderStatus(ctx, stranger, models.UpdateStatusParams{
		ID:     order.ID,
		Status: models.StatusCancelled,
	})
	require.True(t, apperr.IsKind(err, apperr.KindForbidden))

	_, err = svc.UpdateOrderStatus(ctx, otherOwner, models.UpdateStatusParams{
		ID:     order.ID,
		Status: models.StatusAccepted,
	})
	require.True(t, apperr.IsKind(err, apperr.KindForbidden))
}

func TestSendOrderMessage(t *testing.T) {
	svc, db, cleanup := newTestService(t)
	defer cleanup()
	ctx := context.Background()

	_, owner := seedOwner(t, db, "rest_1")
	_, caller := seedCustomer(t, db)

	order, err := svc.CreateOrder(ctx, caller, orderParams("rest_1"))
	require.NoError(t, err)

	updated, err := svc.SendOrderMessage(ctx, caller, models.SendMessageParams{
		OrderID:    order.ID,
		Message:    "Extra napkins please",
		SenderType: models.RoleCustomer,
	})
	require.NoError(t, err)
	require.Len(t, updated.Messages, 1)
	require.Equal(t, "Extra napkins please", updated.Messages[0].Message)

	updated, err = svc.SendOrderMessage(ctx, owner, models.SendMessageParams{
		OrderID:    order.ID,
		Message:    "On it",
		SenderType: models.RoleRestaurant,
	})
	require.NoError(t, err)
	require.Len(t, updated.Messages, 2)
}

func TestSendOrderMessage_TerminalOrderRejected(t *testing.T) {
	svc, db, cleanup := newTestService(t)
	defer cleanup()
	ctx := context.Background()

	_, owner := seedOwner(t, db, "rest_1")
	_, caller := seedCustomer(t, db)

	order, err := svc.CreateOrder(ctx, caller, orderParams("rest_1"))
	require.NoError(t, err)
	_, err = svc.UpdateOrderStatus(ctx, owner, models.UpdateStatusParams{
		ID:     order.ID,
		Status: models.StatusRejected,
	})
	require.NoError(t, err)

	_, err = svc.SendOrderMessage(ctx, caller, models.SendMessageParams{
		OrderID:    order.ID,
		Message:    "Why?",
		SenderType: models.RoleCustomer,
	})
	require.True(t, apperr.IsKind(err, apperr.KindValidation))
}

func TestSendOrderMessage_ConcurrentSendsAllSurvive(t *testing.T) {
	svc, db, cleanup := newTestService(t)
	defer cleanup()
	ctx := context.Background()

	_, caller := seedCustomer(t, db)

	order, err := svc.CreateOrder(ctx, caller, orderParams("rest_1"))
	require.NoError(t, err)

	const senders = 8
	var wg sync.WaitGroup
	for i := 0; i < senders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.SendOrderMessage(ctx, caller, models.SendMessageParams{
				OrderID:    order.ID,
				Message:    fmt.Sprintf("message %d", i),
				SenderType: models.RoleCustomer,
			})
			if err != nil {
				t.Errorf("send failed: %v", err)
			}
		}(i)
	}
	wg.Wait()

	final, err := svc.GetOrder(ctx, caller, order.ID)
	require.NoError(t, err)
	require.Len(t, final.Messages, senders)
}

func TestMarkOrderMessageRead_Idempotent(t *testing.T) {
	svc, db, cleanup := newTestService(t)
	defer cleanup()
	ctx := context.Background()

	_, caller := seedCustomer(t, db)

	order, err := svc.CreateOrder(ctx, caller, orderParams("rest_1"))
	require.NoError(t, err)
	withMsg, err := svc.SendOrderMessage(ctx, caller, models.SendMessageParams{
		OrderID:    order.ID,
		Message:    "hello",
		SenderType: models.RoleCustomer,
	})
	require.NoError(t, err)
	msgID := withMsg.Messages[0].ID

	for i := 0; i < 2; i++ {
		updated, err := svc.MarkOrderMessageRead(ctx, caller, models.MarkMessageReadParams{
			OrderID:   order.ID,
			MessageID: msgID,
		})
		require.NoError(t, err)
		require.True(t, updated.Messages[0].Read)
	}

	// Unknown message ids are a no-op, not an error.
	_, err = svc.MarkOrderMessageRead(ctx, caller, models.MarkMessageReadParams{
		OrderID:   order.ID,
		MessageID: "msg_missing",
	})
	require.NoError(t, err)
}

func TestOrderVisibility(t *testing.T) {
	svc, db, cleanup := newTestService(t)
	defer cleanup()
	ctx := context.Background()

	_, owner := seedOwner(t, db, "rest_1")
	_, caller := seedCustomer(t, db)
	_, stranger := seedCustomer(t, db)

	order, err := svc.CreateOrder(ctx, caller, orderParams("rest_1"))
	require.NoError(t, err)

	_, err = svc.GetOrder(ctx, caller, order.ID)
	require.NoError(t, err)
	_, err = svc.GetOrder(ctx, owner, order.ID)
	require.NoError(t, err)
	_, err = svc.GetOrder(ctx, stranger, order.ID)
	require.True(t, apperr.IsKind(err, apperr.KindForbidden))

	mine, err := svc.MyOrders(ctx, caller)
	require.NoError(t, err)
	require.Len(t, mine, 1)

	forRest, err := svc.OrdersByRestaurant(ctx, owner, "rest_1")
	require.NoError(t, err)
	require.Len(t, forRest, 1)

	_, err = svc.OrdersByRestaurant(ctx, caller, "rest_1")
	require.True(t, apperr.IsKind(err, apperr.KindForbidden))
}

func TestPendingCountAndStats(t *testing.T) {
	svc, db, cleanup := newTestService(t)
	defer cleanup()
	ctx := context.Background()

	_, owner := seedOwner(t, db, "rest_1")
	_, caller := seedCustomer(t, db)

	first, err := svc.CreateOrder(ctx, caller, orderParams("rest_1"))
	require.NoError(t, err)
	_, err = svc.CreateOrder(ctx, caller, orderParams("rest_1"))
	require.NoError(t, err)

	count, err := svc.PendingOrderCount(ctx, owner, "rest_1")
	require.NoError(t, err)
	require.Equal(t, 2, count)

	// Walk the first order to completed so it counts as today's revenue.
	for _, status := range []models.OrderStatus{
		models.StatusAccepted, models.StatusPreparing, models.StatusReady, models.StatusCompleted,
	} {
		_, err = svc.UpdateOrderStatus(ctx, owner, models.UpdateStatusParams{ID: first.ID, Status: status})
		require.NoError(t, err)
	}

	stats, err := svc.OrderStats(ctx, owner, "rest_1")
	require.NoError(t, err)
	require.Equal(t, 2, stats.Total)
	require.Equal(t, 2, stats.TodayCount)
	require.Equal(t, 1, stats.Pending)
	require.Equal(t, 1, stats.Completed)
	require.Equal(t, first.Total, stats.TodayRevenue)
}
