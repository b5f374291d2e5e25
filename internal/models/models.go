package models

import "time"

// Role identifies what kind of account a user holds.
type Role string

const (
	RoleCustomer   Role = "customer"
	RoleRestaurant Role = "restaurant"
)

// OfferType restricts which order types a deal applies to.
type OfferType string

const (
	OfferDineIn OfferType = "dinein"
	OfferPickup OfferType = "pickup"
	OfferBoth   OfferType = "both"
)

// OrderType is how the customer receives the order.
type OrderType string

const (
	OrderDineIn OrderType = "dinein"
	OrderPickup OrderType = "pickup"
)

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	StatusPending   OrderStatus = "pending"
	StatusAccepted  OrderStatus = "accepted"
	StatusPreparing OrderStatus = "preparing"
	StatusReady     OrderStatus = "ready"
	StatusCompleted OrderStatus = "completed"
	StatusRejected  OrderStatus = "rejected"
	StatusCancelled OrderStatus = "cancelled"
)

// Terminal reports whether no further transition is permitted from s.
func (s OrderStatus) Terminal() bool {
	switch s {
	case StatusCompleted, StatusRejected, StatusCancelled:
		return true
	}
	return false
}

// CouponStatus is the redemption state stored on a coupon. Expiry is
// computed from ExpiresAt at read time; a stored "active" past expiry
// must be treated as expired by every reader.
type CouponStatus string

const (
	CouponActive  CouponStatus = "active"
	CouponUsed    CouponStatus = "used"
	CouponExpired CouponStatus = "expired"
)

// NotificationType categorizes a notification row.
type NotificationType string

const (
	NotifOffer   NotificationType = "offer"
	NotifBooking NotificationType = "booking"
	NotifGeneral NotificationType = "general"
)

// User is the read-only directory entry the core denormalizes from.
type User struct {
	ID           string   `json:"id"`
	Email        string   `json:"email"`
	Name         string   `json:"name"`
	Phone        string   `json:"phone"`
	Role         Role     `json:"role"`
	RestaurantID string   `json:"restaurant_id,omitempty"`
	Favorites    []string `json:"favorites"`
	Points       int      `json:"points"`
}

// Deal is a restaurant-authored discount campaign with a claim cap.
type Deal struct {
	ID              string    `json:"id"`
	RestaurantID    string    `json:"restaurant_id"`
	RestaurantName  string    `json:"restaurant_name"`
	RestaurantImage string    `json:"restaurant_image"`
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	DiscountPercent int       `json:"discount_percent"`
	OfferType       OfferType `json:"offer_type"`
	MaxCoupons      int       `json:"max_coupons"`
	ClaimedCoupons  int       `json:"claimed_coupons"`
	MinOrder        float64   `json:"min_order"`
	ValidTill       string    `json:"valid_till"` // RFC3339
	DaysAvailable   []string  `json:"days_available"`
	StartTime       string    `json:"start_time"`
	EndTime         string    `json:"end_time"`
	IsActive        bool      `json:"is_active"`
	Activations     int       `json:"-"`
	TermsConditions string    `json:"terms_conditions"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// DealPatch enumerates the deal fields that are mutable after creation.
// RestaurantID and ClaimedCoupons are deliberately absent.
type DealPatch struct {
	Title           *string    `json:"title,omitempty"`
	Description     *string    `json:"description,omitempty"`
	DiscountPercent *int       `json:"discount_percent,omitempty"`
	OfferType       *OfferType `json:"offer_type,omitempty"`
	MaxCoupons      *int       `json:"max_coupons,omitempty"`
	MinOrder        *float64   `json:"min_order,omitempty"`
	ValidTill       *string    `json:"valid_till,omitempty"`
	DaysAvailable   *[]string  `json:"days_available,omitempty"`
	StartTime       *string    `json:"start_time,omitempty"`
	EndTime         *string    `json:"end_time,omitempty"`
	TermsConditions *string    `json:"terms_conditions,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p DealPatch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.DiscountPercent == nil &&
		p.OfferType == nil && p.MaxCoupons == nil && p.MinOrder == nil &&
		p.ValidTill == nil && p.DaysAvailable == nil && p.StartTime == nil &&
		p.EndTime == nil && p.TermsConditions == nil
}

// Coupon is a user's claimed, single-use instance of a deal. Deal fields
// are denormalized at claim time and never re-synced.
type Coupon struct {
	ID              string       `json:"id"`
	DealID          string       `json:"deal_id"`
	UserID          string       `json:"user_id"`
	DealTitle       string       `json:"deal_title"`
	RestaurantName  string       `json:"restaurant_name"`
	RestaurantImage string       `json:"restaurant_image"`
	DiscountPercent int          `json:"discount_percent"`
	Status          CouponStatus `json:"status"`
	ClaimedAt       time.Time    `json:"claimed_at"`
	UsedAt          *time.Time   `json:"used_at,omitempty"`
	ExpiresAt       time.Time    `json:"expires_at"`
	Code            string       `json:"code"`
}

// Expired reports whether the coupon is past its expiry at the given
// time, independent of the stored status field.
func (c Coupon) Expired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

// OrderItem is one line of an order.
type OrderItem struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price"`
	Notes    string  `json:"notes,omitempty"`
}

// OrderMessage is one chat message attached to an order.
type OrderMessage struct {
	ID         string    `json:"id"`
	OrderID    string    `json:"order_id"`
	SenderID   string    `json:"sender_id"`
	SenderType Role      `json:"sender_type"`
	Message    string    `json:"message"`
	Timestamp  time.Time `json:"timestamp"`
	Read       bool      `json:"read"`
}

// Order is a customer's placed order with a restaurant-driven status
// lifecycle. Customer name/phone are denormalized at creation.
type Order struct {
	ID                  string         `json:"id"`
	RestaurantID        string         `json:"restaurant_id"`
	CustomerID          string         `json:"customer_id"`
	CustomerName        string         `json:"customer_name"`
	CustomerPhone       string         `json:"customer_phone"`
	OrderType           OrderType      `json:"order_type"`
	Items               []OrderItem    `json:"items"`
	Subtotal            float64        `json:"subtotal"`
	Discount            float64        `json:"discount"`
	Total               float64        `json:"total"`
	Status              OrderStatus    `json:"status"`
	TableNumber         string         `json:"table_number,omitempty"`
	PickupTime          string         `json:"pickup_time,omitempty"`
	SpecialInstructions string         `json:"special_instructions,omitempty"`
	EstimatedTime       int            `json:"estimated_time,omitempty"` // minutes
	Messages            []OrderMessage `json:"messages"`
	CreatedAt           time.Time      `json:"created_at"`
	UpdatedAt           time.Time      `json:"updated_at"`
}

// Notification is a single-recipient notification row. Only Read is
// ever updated after creation.
type Notification struct {
	ID             string           `json:"id"`
	UserID         string           `json:"user_id"`
	RestaurantID   string           `json:"restaurant_id"`
	RestaurantName string           `json:"restaurant_name"`
	Title          string           `json:"title"`
	Message        string           `json:"message"`
	Type           NotificationType `json:"type"`
	Read           bool             `json:"read"`
	EventKey       string           `json:"-"`
	CreatedAt      time.Time        `json:"created_at"`
}

// OrderStats is the aggregate view a restaurant dashboard reads.
type OrderStats struct {
	Total        int     `json:"total"`
	TodayCount   int     `json:"today_count"`
	TodayRevenue float64 `json:"today_revenue"`
	Pending      int     `json:"pending"`
	Preparing    int     `json:"preparing"`
	Completed    int     `json:"completed"`
	Cancelled    int     `json:"cancelled"` // rejected + cancelled
}

// VerifyResult is the public answer to coupons.verify.
type VerifyResult struct {
	Valid   bool    `json:"valid"`
	Coupon  *Coupon `json:"coupon,omitempty"`
	Message string  `json:"message"`
}

// ErrorBody is the wire form of a structured failure.
type ErrorBody struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// ErrorResponse wraps an ErrorBody for the RPC boundary.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}
