package service

import (
	"context"
	"fmt"

	"dinedeals-api/internal/apperr"
	"dinedeals-api/internal/auth"
	"dinedeals-api/internal/events"
	"dinedeals-api/internal/models"
	"dinedeals-api/internal/tracing"
	"dinedeals-api/internal/validation"
)

// successors is the order transition table. A target status is legal
// only when listed for the order's current status; everything else is
// an invalid transition. Cancellation stops being available once the
// kitchen has started on the order.
var successors = map[models.OrderStatus][]models.OrderStatus{
	models.StatusPending:   {models.StatusAccepted, models.StatusRejected, models.StatusCancelled},
	models.StatusAccepted:  {models.StatusPreparing, models.StatusCancelled},
	models.StatusPreparing: {models.StatusReady},
	models.StatusReady:     {models.StatusCompleted},
}

// canTransition reports whether from→to is in the transition table.
func canTransition(from, to models.OrderStatus) bool {
	for _, next := range successors[from] {
		if next == to {
			return true
		}
	}
	return false
}

// statusMessages is the fixed customer-facing text per target status.
var statusMessages = map[models.OrderStatus]string{
	models.StatusAccepted:  "Your order has been accepted",
	models.StatusPreparing: "Your order is being prepared",
	models.StatusReady:     "Your order is ready",
	models.StatusCompleted: "Order completed",
	models.StatusRejected:  "Your order has been rejected",
	models.StatusCancelled: "Order cancelled",
}

// CreateOrder validates and persists a new pending order, denormalizing
// the customer's name and phone, and notifies the customer.
func (s *Service) CreateOrder(ctx context.Context, caller auth.CallerContext, p models.CreateOrderParams) (*models.Order, error) {
	ctx, span := tracing.Get().StartSpan(ctx, "service.CreateOrder")
	defer span.End()

	if err := validation.ValidateCreateOrder(p); err != nil {
		return nil, err
	}

	customer, err := s.db.GetUser(ctx, caller.UserID)
	if err != nil {
		return nil, err
	}
	if customer == nil {
		return nil, apperr.NotFound("user")
	}

	var subtotal float64
	for _, it := range p.Items {
		subtotal += it.Price * float64(it.Quantity)
	}
	if p.Discount > subtotal {
		return nil, validation.Fieldf("discount", "cannot exceed the order subtotal")
	}

	now := s.now()
	order := models.Order{
		ID:                  newID("order"),
		RestaurantID:        p.RestaurantID,
		CustomerID:          caller.UserID,
		CustomerName:        customer.Name,
		CustomerPhone:       customer.Phone,
		OrderType:           p.OrderType,
		Items:               p.Items,
		Subtotal:            subtotal,
		Discount:            p.Discount,
		Total:               subtotal - p.Discount,
		Status:              models.StatusPending,
		TableNumber:         p.TableNumber,
		PickupTime:          p.PickupTime,
		SpecialInstructions: p.SpecialInstructions,
		Messages:            []models.OrderMessage{},
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	if err := s.db.CreateOrder(ctx, order); err != nil {
		return nil, err
	}

	s.notifyUser(ctx, models.Notification{
		UserID:       order.CustomerID,
		RestaurantID: order.RestaurantID,
		Title:        "Order Placed",
		Message:      fmt.Sprintf("Your order #%s has been placed successfully", shortID(order.ID)),
		Type:         models.NotifBooking,
		EventKey:     "order:" + order.ID + ":placed",
	})
	s.events.Publish(ctx, events.EventOrderCreated, events.OrderCreatedData{Order: order})

	return &order, nil
}

func shortID(id string) string {
	if len(id) <= 6 {
		return id
	}
	return id[len(id)-6:]
}

// UpdateOrderStatus advances an order along the transition table. Only
// the owning restaurant may transition; the one exception is the
// order's customer cancelling while it is still pending or accepted.
// The write is a compare-and-swap on the current status, so a
// concurrent transition loses with an invalid-transition error instead
// of silently overwriting.
func (s *Service) UpdateOrderStatus(ctx context.Context, caller auth.CallerContext, p models.UpdateStatusParams) (*models.Order, error) {
	ctx, span := tracing.Get().StartSpan(ctx, "service.UpdateOrderStatus")
	defer span.End()

	if err := validation.ValidateUpdateStatus(p); err != nil {
		return nil, err
	}

	order, err := s.db.GetOrder(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, apperr.NotFound("order")
	}

	ownsRestaurant := caller.IsRestaurant() && caller.RestaurantID == order.RestaurantID
	customerCancel := p.Status == models.StatusCancelled && caller.UserID == order.CustomerID
	if !ownsRestaurant && !customerCancel {
		return nil, apperr.New(apperr.KindForbidden, "only the restaurant can update this order")
	}

	if !canTransition(order.Status, p.Status) {
		return nil, apperr.New(apperr.KindInvalidTransition,
			"cannot move order from %s to %s", order.Status, p.Status)
	}

	ok, err := s.db.TransitionOrder(ctx, order.ID, order.Status, p.Status, p.EstimatedTime, s.now())
	if err != nil {
		return nil, err
	}
	if !ok {
		// The order moved under us; report against its fresh status.
		fresh, ferr := s.db.GetOrder(ctx, p.ID)
		if ferr == nil && fresh != nil {
			return nil, apperr.New(apperr.KindInvalidTransition,
				"cannot move order from %s to %s", fresh.Status, p.Status)
		}
		return nil, apperr.New(apperr.KindInvalidTransition,
			"order status changed concurrently")
	}

	s.notifyUser(ctx, models.Notification{
		UserID:       order.CustomerID,
		RestaurantID: order.RestaurantID,
		Title:        "Order Update",
		Message:      statusMessages[p.Status],
		Type:         models.NotifBooking,
		EventKey:     fmt.Sprintf("order:%s:%s", order.ID, p.Status),
	})
	s.events.Publish(ctx, events.EventOrderStatusChanged, events.OrderStatusChangedData{
		OrderID: order.ID,
		From:    order.Status,
		To:      p.Status,
	})

	return s.db.GetOrder(ctx, p.ID)
}

// orderParty verifies the caller is either the order's customer or its
// restaurant, returning the order.
func (s *Service) orderParty(ctx context.Context, caller auth.CallerContext, orderID string) (*models.Order, error) {
	order, err := s.db.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, apperr.NotFound("order")
	}

	isCustomer := caller.UserID == order.CustomerID
	isRestaurant := caller.IsRestaurant() && caller.RestaurantID == order.RestaurantID
	if !isCustomer && !isRestaurant {
		return nil, apperr.New(apperr.KindForbidden, "not a party to this order")
	}
	return order, nil
}

// GetOrder returns an order to one of its parties.
func (s *Service) GetOrder(ctx context.Context, caller auth.CallerContext, id string) (*models.Order, error) {
	return s.orderParty(ctx, caller, id)
}

// OrdersByRestaurant returns the caller restaurant's orders.
func (s *Service) OrdersByRestaurant(ctx context.Context, caller auth.CallerContext, restaurantID string) ([]models.Order, error) {
	if !caller.IsRestaurant() || caller.RestaurantID != restaurantID {
		return nil, apperr.New(apperr.KindForbidden, "orders belong to another restaurant")
	}
	return s.db.OrdersByRestaurant(ctx, restaurantID)
}

// MyOrders returns the caller's orders as a customer.
func (s *Service) MyOrders(ctx context.Context, caller auth.CallerContext) ([]models.Order, error) {
	return s.db.OrdersByCustomer(ctx, caller.UserID)
}

// SendOrderMessage appends a chat message to a live order. The append
// is a single row insert, so concurrent sends never lose each other.
func (s *Service) SendOrderMessage(ctx context.Context, caller auth.CallerContext, p models.SendMessageParams) (*models.Order, error) {
	if err := validation.ValidateSendMessage(p); err != nil {
		return nil, err
	}

	order, err := s.orderParty(ctx, caller, p.OrderID)
	if err != nil {
		return nil, err
	}
	if order.Status.Terminal() {
		return nil, apperr.Validation("cannot message a %s order", order.Status)
	}
	if p.SenderType == models.RoleRestaurant && !caller.IsRestaurant() {
		return nil, apperr.New(apperr.KindForbidden, "sender type does not match caller role")
	}
	if p.SenderType == models.RoleCustomer && caller.UserID != order.CustomerID {
		return nil, apperr.New(apperr.KindForbidden, "sender type does not match caller role")
	}

	msg := models.OrderMessage{
		ID:         newID("msg"),
		OrderID:    p.OrderID,
		SenderID:   caller.UserID,
		SenderType: p.SenderType,
		Message:    validation.SanitizeString(p.Message),
		Timestamp:  s.now(),
		Read:       false,
	}

	if err := s.db.AppendOrderMessage(ctx, msg); err != nil {
		return nil, err
	}

	return s.db.GetOrder(ctx, p.OrderID)
}

// MarkOrderMessageRead flips one message's read flag. Unknown message
// ids are a no-op, and repeating the call never errors.
func (s *Service) MarkOrderMessageRead(ctx context.Context, caller auth.CallerContext, p models.MarkMessageReadParams) (*models.Order, error) {
	if _, err := s.orderParty(ctx, caller, p.OrderID); err != nil {
		return nil, err
	}

	if err := s.db.MarkMessageRead(ctx, p.OrderID, p.MessageID); err != nil {
		return nil, err
	}

	return s.db.GetOrder(ctx, p.OrderID)
}

// PendingOrderCount counts the caller restaurant's pending orders.
func (s *Service) PendingOrderCount(ctx context.Context, caller auth.CallerContext, restaurantID string) (int, error) {
	if !caller.IsRestaurant() || caller.RestaurantID != restaurantID {
		return 0, apperr.New(apperr.KindForbidden, "orders belong to another restaurant")
	}
	return s.db.PendingOrderCount(ctx, restaurantID)
}

// OrderStats aggregates the caller restaurant's order dashboard.
func (s *Service) OrderStats(ctx context.Context, caller auth.CallerContext, restaurantID string) (*models.OrderStats, error) {
	if !caller.IsRestaurant() || caller.RestaurantID != restaurantID {
		return nil, apperr.New(apperr.KindForbidden, "orders belong to another restaurant")
	}
	return s.db.OrderStatsFor(ctx, restaurantID, s.now())
}
