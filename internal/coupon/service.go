package coupon

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ms-booking/internal/logger"
	"ms-booking/internal/models"

	"github.com/google/uuid"
)

var (
	ErrCouponNotFound    = errors.New("coupon not found")
	ErrCouponExpired     = errors.New("coupon expired")
	ErrCouponExhausted   = errors.New("coupon usage limit reached")
	ErrMinPurchaseNotMet = errors.New("minimum purchase amount not met")
	ErrHoldNotFound      = errors.New("coupon hold not found")
)

type DBLayer interface {
	GetByCode(ctx context.Context, eventID, code string) (*models.Coupon, error)
	ReserveUseAndHold(ctx context.Context, couponID string, hold *models.CouponHold) (bool, error)
	ConfirmHold(ctx context.Context, holdID string) (bool, error)
	ReleaseHold(ctx context.Context, holdID string) (bool, error)
	GetHold(ctx context.Context, holdID string) (*models.CouponHold, error)
}

// Service validates coupon codes, computes discounts, and owns the
// used/reserved counters. Usage reservation mirrors inventory holds so two
// near-simultaneous buyers cannot both slip past a usage cap.
type Service struct {
	DB      DBLayer
	HoldTTL time.Duration
	log     *logger.Logger
}

func NewService(db DBLayer, holdTTL time.Duration, log *logger.Logger) *Service {
	return &Service{DB: db, HoldTTL: holdTTL, log: log}
}

// ComputeDiscount applies the coupon's kind to a subtotal in minor currency
// units. Percentage discounts floor; the result never exceeds the subtotal.
func ComputeDiscount(c *models.Coupon, subtotal int64) int64 {
	var discount int64
	switch c.DiscountKind {
	case models.DiscountPercentage:
		discount = subtotal * c.DiscountValue / 100
	case models.DiscountFixed:
		discount = c.DiscountValue
	}
	if discount > subtotal {
		discount = subtotal
	}
	if discount < 0 {
		discount = 0
	}
	return discount
}

func (s *Service) validate(c *models.Coupon, subtotal int64, now time.Time) error {
	if !c.Active || !c.ValidAt(now) {
		return ErrCouponExpired
	}
	if subtotal < c.MinPurchaseMinor {
		return ErrMinPurchaseNotMet
	}
	if c.MaxUses != nil && c.UsedCount+c.ReservedCount >= *c.MaxUses {
		return ErrCouponExhausted
	}
	return nil
}

// Preview validates the code and computes the discount without reserving a
// use. Backs the public validation endpoint; client-computed totals are
// never trusted.
func (s *Service) Preview(ctx context.Context, code, eventID string, subtotal int64, now time.Time) (int64, error) {
	c, err := s.DB.GetByCode(ctx, eventID, models.CanonicalCouponCode(code))
	if err != nil {
		return 0, err
	}
	if err := s.validate(c, subtotal, now); err != nil {
		return 0, err
	}
	return ComputeDiscount(c, subtotal), nil
}

// Hold validates the code, computes the discount, and reserves one use.
// The reserved_count increment is a conditional update, so an exhausted
// coupon fails cleanly with ErrCouponExhausted instead of overshooting.
func (s *Service) Hold(ctx context.Context, code, eventID string, subtotal int64, now time.Time) (string, int64, error) {
	c, err := s.DB.GetByCode(ctx, eventID, models.CanonicalCouponCode(code))
	if err != nil {
		return "", 0, err
	}
	if err := s.validate(c, subtotal, now); err != nil {
		return "", 0, err
	}

	discount := ComputeDiscount(c, subtotal)
	hold := &models.CouponHold{
		ID:            uuid.NewString(),
		CouponID:      c.ID,
		DiscountMinor: discount,
		Status:        models.HoldHeld,
		ExpiresAt:     now.Add(s.HoldTTL),
		CreatedAt:     now,
	}

	ok, err := s.DB.ReserveUseAndHold(ctx, c.ID, hold)
	if err != nil {
		return "", 0, fmt.Errorf("failed to reserve coupon %s: %w", c.Code, err)
	}
	if !ok {
		return "", 0, ErrCouponExhausted
	}

	s.log.Info("COUPON", fmt.Sprintf("Held coupon %s (discount %d), hold %s", c.Code, discount, hold.ID))
	return hold.ID, discount, nil
}

// Confirm moves a reserved use into used_count. Idempotent.
func (s *Service) Confirm(ctx context.Context, holdID string) error {
	won, err := s.DB.ConfirmHold(ctx, holdID)
	if err != nil {
		return err
	}
	if !won {
		s.log.Debug("COUPON", fmt.Sprintf("Hold %s already resolved, confirm is a no-op", holdID))
	}
	return nil
}

// Release returns a reserved use to the pool. Idempotent; confirmed holds
// stay confirmed.
func (s *Service) Release(ctx context.Context, holdID string) error {
	won, err := s.DB.ReleaseHold(ctx, holdID)
	if err != nil {
		return err
	}
	if !won {
		s.log.Debug("COUPON", fmt.Sprintf("Hold %s already resolved, release is a no-op", holdID))
	}
	return nil
}
