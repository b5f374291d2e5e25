// Package events is a small in-process pub/sub used for side channels
// (logging, metrics hooks). Core state changes never depend on a
// subscriber running; handlers are fire-and-forget.
package events

import (
	"context"
	"sync"
	"time"

	"dinedeals-api/internal/models"
)

// EventType identifies what happened.
type EventType string

const (
	// EventCouponClaimed is emitted after a claim commits.
	EventCouponClaimed EventType = "coupon.claimed"
	// EventDealActivated is emitted when a deal is created active or
	// toggled back on.
	EventDealActivated EventType = "deal.activated"
	// EventOrderCreated is emitted after an order is persisted.
	EventOrderCreated EventType = "order.created"
	// EventOrderStatusChanged is emitted after a status transition.
	EventOrderStatusChanged EventType = "order.status_changed"
)

// Event is one published occurrence.
type Event struct {
	Type      EventType
	Timestamp time.Time
	Data      interface{}
}

// CouponClaimedData accompanies EventCouponClaimed.
type CouponClaimedData struct {
	Coupon models.Coupon
}

// DealActivatedData accompanies EventDealActivated.
type DealActivatedData struct {
	Deal models.Deal
}

// OrderCreatedData accompanies EventOrderCreated.
type OrderCreatedData struct {
	Order models.Order
}

// OrderStatusChangedData accompanies EventOrderStatusChanged.
type OrderStatusChangedData struct {
	OrderID string
	From    models.OrderStatus
	To      models.OrderStatus
}

// Handler consumes events.
type Handler func(ctx context.Context, event Event) error

// Manager fans published events out to subscribed handlers.
type Manager struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
	enabled  bool
}

// NewManager creates an event manager; a disabled manager drops
// everything.
func NewManager(enabled bool) *Manager {
	return &Manager{
		handlers: make(map[EventType][]Handler),
		enabled:  enabled,
	}
}

// Subscribe attaches a handler to an event type.
func (m *Manager) Subscribe(eventType EventType, handler Handler) {
	if !m.enabled {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.handlers[eventType] = append(m.handlers[eventType], handler)
}

// Publish delivers an event to all subscribers asynchronously.
func (m *Manager) Publish(ctx context.Context, eventType EventType, data interface{}) {
	if !m.enabled {
		return
	}

	m.mu.RLock()
	handlers := m.handlers[eventType]
	m.mu.RUnlock()

	if len(handlers) == 0 {
		return
	}

	event := Event{
		Type:      eventType,
		Timestamp: time.Now(),
		Data:      data,
	}

	for _, handler := range handlers {
		go func(h Handler) {
			_ = h(ctx, event)
		}(handler)
	}
}

// Shutdown drops all handlers and disables further publishing.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.enabled = false
	m.handlers = make(map[EventType][]Handler)
}
