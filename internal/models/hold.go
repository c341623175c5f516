package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Hold statuses. A hold resolves exactly once: held → confirmed or
// held → released.
const (
	HoldHeld      = "held"
	HoldConfirmed = "confirmed"
	HoldReleased  = "released"
)

// ReservationHold is a provisional, TTL-bound claim on tier capacity.
type ReservationHold struct {
	bun.BaseModel `bun:"table:reservation_holds"`

	ID        string    `bun:"id,pk" json:"id"`
	TierID    string    `bun:"tier_id,notnull" json:"tier_id"`
	BuyerID   string    `bun:"buyer_id,notnull" json:"buyer_id"`
	Quantity  int64     `bun:"quantity,notnull" json:"quantity"`
	Status    string    `bun:"status,notnull" json:"status"`
	ExpiresAt time.Time `bun:"expires_at,notnull" json:"expires_at"`
	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
}

// CouponHold is a provisional claim on one use of a coupon, carrying the
// discount computed at reservation time.
type CouponHold struct {
	bun.BaseModel `bun:"table:coupon_holds"`

	ID            string    `bun:"id,pk" json:"id"`
	CouponID      string    `bun:"coupon_id,notnull" json:"coupon_id"`
	DiscountMinor int64     `bun:"discount_minor,notnull" json:"discount_minor"`
	Status        string    `bun:"status,notnull" json:"status"`
	ExpiresAt     time.Time `bun:"expires_at,notnull" json:"expires_at"`
	CreatedAt     time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
}
