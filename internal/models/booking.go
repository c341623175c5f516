package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Booking statuses. PENDING is the only non-terminal state.
const (
	StatusPending   = "pending"
	StatusPaid      = "paid"
	StatusFailed    = "failed"
	StatusExpired   = "expired"
	StatusCancelled = "cancelled"
)

// IsTerminalStatus reports whether a booking in this status accepts no
// further transitions.
func IsTerminalStatus(status string) bool {
	switch status {
	case StatusPaid, StatusFailed, StatusExpired, StatusCancelled:
		return true
	}
	return false
}

type Booking struct {
	bun.BaseModel `bun:"table:bookings"`

	ID              string    `bun:"id,pk" json:"id"`
	EventID         string    `bun:"event_id,notnull" json:"event_id"`
	TierID          string    `bun:"tier_id,notnull" json:"tier_id"`
	BuyerName       string    `bun:"buyer_name,notnull" json:"buyer_name"`
	BuyerEmail      string    `bun:"buyer_email,notnull" json:"buyer_email"`
	BuyerPhone      string    `bun:"buyer_phone,nullzero" json:"buyer_phone,omitempty"`
	Quantity        int64     `bun:"quantity,notnull" json:"quantity"`
	UnitPriceMinor  int64     `bun:"unit_price_minor,notnull" json:"unit_price_minor"`
	DiscountMinor   int64     `bun:"discount_minor,notnull,default:0" json:"discount_minor"`
	TotalMinor      int64     `bun:"total_minor,notnull" json:"total_minor"`
	Currency        string    `bun:"currency,notnull" json:"currency"`
	CouponCode      string    `bun:"coupon_code,nullzero" json:"coupon_code,omitempty"`
	PaymentRef      string    `bun:"payment_reference,nullzero" json:"payment_reference,omitempty"`
	TicketCode      string    `bun:"ticket_code,nullzero" json:"ticket_code,omitempty"`
	Status          string    `bun:"status,notnull" json:"status"`
	InventoryHoldID string    `bun:"inventory_hold_id,notnull" json:"-"`
	CouponHoldID    string    `bun:"coupon_hold_id,nullzero" json:"-"`
	CreatedAt       time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
	ExpiresAt       time.Time `bun:"expires_at,notnull" json:"expires_at"`
}

func (b *Booking) IsTerminal() bool {
	return IsTerminalStatus(b.Status)
}
