package models

// CreateBookingRequest is the payload for POST /api/v1/bookings.
type CreateBookingRequest struct {
	TierID     string `json:"tier_id"`
	Quantity   int64  `json:"quantity"`
	CouponCode string `json:"coupon_code,omitempty"`
	BuyerName  string `json:"buyer_name"`
	BuyerEmail string `json:"buyer_email"`
	BuyerPhone string `json:"buyer_phone,omitempty"`
}

// CreateBookingResponse returns the persisted booking plus, for paid tiers,
// the hosted payment page the buyer must complete.
type CreateBookingResponse struct {
	Booking          *Booking `json:"booking"`
	AuthorizationURL string   `json:"authorization_url,omitempty"`
}

// ValidateCouponRequest is the payload for POST /api/v1/coupons/validate.
// Amount is the subtotal in minor currency units; the discount is always
// re-derived server-side.
type ValidateCouponRequest struct {
	Code    string `json:"code"`
	EventID string `json:"event_id"`
	Amount  int64  `json:"amount"`
}

type ValidateCouponResponse struct {
	DiscountAmount int64 `json:"discount_amount"`
	Total          int64 `json:"total"`
}

// PaymentVerifyResponse is returned by GET /api/v1/payment/verify.
type PaymentVerifyResponse struct {
	Booking *Booking       `json:"booking"`
	Payment *PaymentStatus `json:"payment"`
}

// PaymentStatus mirrors the provider's authoritative view of a reference.
type PaymentStatus struct {
	Reference   string `json:"reference"`
	Status      string `json:"status"`
	AmountMinor int64  `json:"amount_minor"`
	Currency    string `json:"currency"`
}
