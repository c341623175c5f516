package models

import (
	"strings"
	"time"

	"github.com/uptrace/bun"
)

// Discount kinds.
const (
	DiscountPercentage = "percentage"
	DiscountFixed      = "fixed"
)

type Coupon struct {
	bun.BaseModel `bun:"table:coupons"`

	ID               string    `bun:"id,pk" json:"id"`
	EventID          string    `bun:"event_id,notnull" json:"event_id"`
	Code             string    `bun:"code,notnull" json:"code"`
	DiscountKind     string    `bun:"discount_kind,notnull" json:"discount_kind"`
	DiscountValue    int64     `bun:"discount_value,notnull" json:"discount_value"`
	MaxUses          *int64    `bun:"max_uses" json:"max_uses,omitempty"`
	UsedCount        int64     `bun:"used_count,notnull,default:0" json:"used_count"`
	ReservedCount    int64     `bun:"reserved_count,notnull,default:0" json:"reserved_count"`
	MinPurchaseMinor int64     `bun:"min_purchase_minor,notnull,default:0" json:"min_purchase_minor"`
	ValidFrom        time.Time `bun:"valid_from,notnull" json:"valid_from"`
	ValidUntil       time.Time `bun:"valid_until,notnull" json:"valid_until"`
	Active           bool      `bun:"active,notnull,default:true" json:"active"`
}

// CanonicalCouponCode normalizes a user-supplied code for lookup and storage.
// Codes are case-insensitive and stored upper-case.
func CanonicalCouponCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ValidAt reports whether now falls inside the coupon's validity window.
func (c *Coupon) ValidAt(now time.Time) bool {
	return !now.Before(c.ValidFrom) && now.Before(c.ValidUntil)
}
