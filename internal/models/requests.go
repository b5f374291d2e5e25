package models

// Params for the RPC methods. Every method's params decode into one of
// these before validation runs.

type IDParams struct {
	ID string `json:"id"`
}

type CodeParams struct {
	Code string `json:"code"`
}

type RestaurantParams struct {
	RestaurantID string `json:"restaurant_id"`
}

type CreateDealParams struct {
	RestaurantID    string    `json:"restaurant_id"`
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	DiscountPercent int       `json:"discount_percent"`
	OfferType       OfferType `json:"offer_type"`
	MaxCoupons      int       `json:"max_coupons"`
	MinOrder        float64   `json:"min_order"`
	ValidTill       string    `json:"valid_till"`
	DaysAvailable   []string  `json:"days_available"`
	StartTime       string    `json:"start_time"`
	EndTime         string    `json:"end_time"`
	IsActive        bool      `json:"is_active"`
	TermsConditions string    `json:"terms_conditions"`
}

type UpdateDealParams struct {
	ID    string    `json:"id"`
	Patch DealPatch `json:"patch"`
}

type SearchDealsParams struct {
	Query       string     `json:"query,omitempty"`
	OfferType   *OfferType `json:"offer_type,omitempty"`
	MinDiscount *int       `json:"min_discount,omitempty"`
	MaxDiscount *int       `json:"max_discount,omitempty"`
}

type ClaimParams struct {
	DealID string `json:"deal_id"`
}

type CreateOrderParams struct {
	RestaurantID        string      `json:"restaurant_id"`
	OrderType           OrderType   `json:"order_type"`
	Items               []OrderItem `json:"items"`
	TableNumber         string      `json:"table_number,omitempty"`
	PickupTime          string      `json:"pickup_time,omitempty"`
	SpecialInstructions string      `json:"special_instructions,omitempty"`
	Discount            float64     `json:"discount,omitempty"`
}

type UpdateStatusParams struct {
	ID            string      `json:"id"`
	Status        OrderStatus `json:"status"`
	EstimatedTime int         `json:"estimated_time,omitempty"`
}

type SendMessageParams struct {
	OrderID    string `json:"order_id"`
	Message    string `json:"message"`
	SenderType Role   `json:"sender_type"`
}

type MarkMessageReadParams struct {
	OrderID   string `json:"order_id"`
	MessageID string `json:"message_id"`
}
