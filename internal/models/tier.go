package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Capacity is a tagged variant: a tier is either unlimited or bounded by a
// fixed seat count. The zero value is unlimited.
type Capacity struct {
	limit   int64
	bounded bool
}

func Unlimited() Capacity {
	return Capacity{}
}

func Bounded(n int64) Capacity {
	return Capacity{limit: n, bounded: true}
}

func (c Capacity) IsBounded() bool {
	return c.bounded
}

// Limit returns the seat bound. Only meaningful when IsBounded is true.
func (c Capacity) Limit() int64 {
	return c.limit
}

type TicketTier struct {
	bun.BaseModel `bun:"table:ticket_tiers"`

	ID             string    `bun:"id,pk" json:"id"`
	EventID        string    `bun:"event_id,notnull" json:"event_id"`
	Name           string    `bun:"name,notnull" json:"name"`
	UnitPriceMinor int64     `bun:"unit_price_minor,notnull" json:"unit_price_minor"`
	Currency       string    `bun:"currency,notnull" json:"currency"`
	CapacityLimit  *int64    `bun:"capacity" json:"capacity,omitempty"`
	QuantitySold   int64     `bun:"quantity_sold,notnull,default:0" json:"quantity_sold"`
	QuantityHeld   int64     `bun:"quantity_held,notnull,default:0" json:"quantity_held"`
	MaxPerBuyer    int64     `bun:"max_per_buyer,notnull" json:"max_per_buyer"`
	SaleFrom       time.Time `bun:"sale_from,notnull" json:"sale_from"`
	SaleUntil      time.Time `bun:"sale_until,notnull" json:"sale_until"`
	Active         bool      `bun:"active,notnull,default:true" json:"active"`
}

// Capacity exposes the stored nullable column as the tagged variant.
func (t *TicketTier) Capacity() Capacity {
	if t.CapacityLimit == nil {
		return Unlimited()
	}
	return Bounded(*t.CapacityLimit)
}

// OnSale reports whether now falls inside the tier's sale window [from, until).
func (t *TicketTier) OnSale(now time.Time) bool {
	return !now.Before(t.SaleFrom) && now.Before(t.SaleUntil)
}
