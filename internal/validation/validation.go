package validation

import (
	"strings"
	"time"
	"unicode"

	"dinedeals-api/internal/apperr"
	"dinedeals-api/internal/models"
)

// Fieldf builds a validation error naming the offending field.
func Fieldf(field, format string, args ...interface{}) *apperr.Error {
	return apperr.Validation("field '%s': "+format, append([]interface{}{field}, args...)...)
}

// SanitizeString strips control characters and trims whitespace.
func SanitizeString(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && r != '\n' && r != '\r' && r != '\t' {
			return -1
		}
		return r
	}, s)

	return strings.TrimSpace(s)
}

// ValidateCreateDeal checks the deal creation params before any
// persistence access.
func ValidateCreateDeal(p models.CreateDealParams) error {
	if p.RestaurantID == "" {
		return Fieldf("restaurant_id", "is required")
	}
	if p.Title == "" {
		return Fieldf("title", "is required")
	}
	if p.DiscountPercent < 1 || p.DiscountPercent > 100 {
		return Fieldf("discount_percent", "must be between 1 and 100")
	}
	if !validOfferType(p.OfferType) {
		return Fieldf("offer_type", "must be one of dinein, pickup, both")
	}
	if p.MaxCoupons <= 0 {
		return Fieldf("max_coupons", "must be positive")
	}
	if p.MinOrder < 0 {
		return Fieldf("min_order", "must be non-negative")
	}
	if p.ValidTill == "" {
		return Fieldf("valid_till", "is required")
	}
	if _, err := time.Parse(time.RFC3339, p.ValidTill); err != nil {
		return Fieldf("valid_till", "must be a valid RFC3339 timestamp")
	}
	return nil
}

// ValidateDealPatch checks a partial deal update.
func ValidateDealPatch(p models.DealPatch) error {
	if p.Empty() {
		return apperr.Validation("patch must change at least one field")
	}
	if p.Title != nil && *p.Title == "" {
		return Fieldf("title", "cannot be empty")
	}
	if p.DiscountPercent != nil && (*p.DiscountPercent < 1 || *p.DiscountPercent > 100) {
		return Fieldf("discount_percent", "must be between 1 and 100")
	}
	if p.OfferType != nil && !validOfferType(*p.OfferType) {
		return Fieldf("offer_type", "must be one of dinein, pickup, both")
	}
	if p.MaxCoupons != nil && *p.MaxCoupons <= 0 {
		return Fieldf("max_coupons", "must be positive")
	}
	if p.MinOrder != nil && *p.MinOrder < 0 {
		return Fieldf("min_order", "must be non-negative")
	}
	if p.ValidTill != nil {
		if _, err := time.Parse(time.RFC3339, *p.ValidTill); err != nil {
			return Fieldf("valid_till", "must be a valid RFC3339 timestamp")
		}
	}
	return nil
}

// ValidateCreateOrder checks order creation params: non-empty items,
// positive quantities, non-negative prices, and the fields the order
// type demands.
func ValidateCreateOrder(p models.CreateOrderParams) error {
	if p.RestaurantID == "" {
		return Fieldf("restaurant_id", "is required")
	}
	switch p.OrderType {
	case models.OrderDineIn:
		if p.TableNumber == "" {
			return Fieldf("table_number", "is required for dine-in orders")
		}
	case models.OrderPickup:
		if p.PickupTime == "" {
			return Fieldf("pickup_time", "is required for pickup orders")
		}
	default:
		return Fieldf("order_type", "must be dinein or pickup")
	}
	if len(p.Items) == 0 {
		return Fieldf("items", "must not be empty")
	}
	for i, it := range p.Items {
		if it.ID == "" {
			return Fieldf("items", "item %d is missing an id", i)
		}
		if it.Quantity <= 0 {
			return Fieldf("items", "item %d must have a positive quantity", i)
		}
		if it.Price < 0 {
			return Fieldf("items", "item %d must have a non-negative price", i)
		}
	}
	if p.Discount < 0 {
		return Fieldf("discount", "must be non-negative")
	}
	return nil
}

// ValidateUpdateStatus checks the target status is a known one; whether
// the transition is legal is the state machine's call.
func ValidateUpdateStatus(p models.UpdateStatusParams) error {
	if p.ID == "" {
		return Fieldf("id", "is required")
	}
	switch p.Status {
	case models.StatusPending, models.StatusAccepted, models.StatusPreparing,
		models.StatusReady, models.StatusCompleted, models.StatusRejected,
		models.StatusCancelled:
	default:
		return Fieldf("status", "unknown order status %q", p.Status)
	}
	if p.EstimatedTime < 0 {
		return Fieldf("estimated_time", "must be non-negative")
	}
	return nil
}

// ValidateSendMessage checks a chat message before it reaches the order.
func ValidateSendMessage(p models.SendMessageParams) error {
	if p.OrderID == "" {
		return Fieldf("order_id", "is required")
	}
	if SanitizeString(p.Message) == "" {
		return Fieldf("message", "must not be empty")
	}
	if p.SenderType != models.RoleCustomer && p.SenderType != models.RoleRestaurant {
		return Fieldf("sender_type", "must be customer or restaurant")
	}
	return nil
}

// ValidateSearchDeals checks optional search filters.
func ValidateSearchDeals(p models.SearchDealsParams) error {
	if p.OfferType != nil && !validOfferType(*p.OfferType) {
		return Fieldf("offer_type", "must be one of dinein, pickup, both")
	}
	if p.MinDiscount != nil && (*p.MinDiscount < 0 || *p.MinDiscount > 100) {
		return Fieldf("min_discount", "must be between 0 and 100")
	}
	if p.MaxDiscount != nil && (*p.MaxDiscount < 0 || *p.MaxDiscount > 100) {
		return Fieldf("max_discount", "must be between 0 and 100")
	}
	return nil
}

func validOfferType(t models.OfferType) bool {
	switch t {
	case models.OfferDineIn, models.OfferPickup, models.OfferBoth:
		return true
	}
	return false
}
