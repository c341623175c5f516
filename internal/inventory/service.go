package inventory

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
	ErrInventoryExhausted    = errors.New("inventory exhausted")
	ErrSaleWindowClosed      = errors.New("sale window closed")
	ErrTierInactive          = errors.New("tier inactive")
	ErrPerBuyerLimitExceeded = errors.New("per-buyer limit exceeded")
	ErrTierNotFound          = errors.New("tier not found")
	ErrHoldNotFound          = errors.New("hold not found")
)

// DBLayer is the persistence surface the inventory manager needs. The
// capacity check in ReserveAndHold must be a single conditional update,
// never a read followed by a write.
type DBLayer interface {
	GetTier(ctx context.Context, tierID string) (*models.TicketTier, error)
	SumActiveHolds(ctx context.Context, tierID, buyerID string) (int64, error)
	ReserveAndHold(ctx context.Context, hold *models.ReservationHold) (bool, error)
	ConfirmHold(ctx context.Context, holdID string) (bool, error)
	ReleaseHold(ctx context.Context, holdID string) (bool, error)
	GetHold(ctx context.Context, holdID string) (*models.ReservationHold, error)
}

// Service owns per-tier capacity counters. No other component mutates
// quantity_sold or quantity_held.
type Service struct {
	DB      DBLayer
	HoldTTL time.Duration
	log     *logger.Logger
}

func NewService(db DBLayer, holdTTL time.Duration, log *logger.Logger) *Service {
	return &Service{DB: db, HoldTTL: holdTTL, log: log}
}

// GetTier exposes tier definitions (price snapshot, currency) to the
// orchestrator without granting it counter access.
func (s *Service) GetTier(ctx context.Context, tierID string) (*models.TicketTier, error) {
	return s.DB.GetTier(ctx, tierID)
}

// Reserve places a TTL-bound hold of quantity seats on the tier. Bounded
// tiers enforce quantity_sold + quantity_held + quantity <= capacity via a
// conditional update; unbounded tiers skip the capacity check but still
// enforce the sale window and per-buyer limit.
func (s *Service) Reserve(ctx context.Context, tierID string, quantity int64, buyerID string) (string, error) {
	if quantity < 1 {
		return "", fmt.Errorf("quantity must be positive, got %d", quantity)
	}

	tier, err := s.DB.GetTier(ctx, tierID)
	if err != nil {
		return "", err
	}

	if !tier.Active {
		return "", ErrTierInactive
	}
	now := time.Now()
	if !tier.OnSale(now) {
		return "", ErrSaleWindowClosed
	}
	if quantity > tier.MaxPerBuyer {
		return "", ErrPerBuyerLimitExceeded
	}

	held, err := s.DB.SumActiveHolds(ctx, tierID, buyerID)
	if err != nil {
		return "", fmt.Errorf("failed to sum holds for buyer %s: %w", buyerID, err)
	}
	if held+quantity > tier.MaxPerBuyer {
		return "", ErrPerBuyerLimitExceeded
	}

	hold := &models.ReservationHold{
		ID:        uuid.NewString(),
		TierID:    tierID,
		BuyerID:   buyerID,
		Quantity:  quantity,
		Status:    models.HoldHeld,
		ExpiresAt: now.Add(s.HoldTTL),
		CreatedAt: now,
	}

	ok, err := s.DB.ReserveAndHold(ctx, hold)
	if err != nil {
		return "", fmt.Errorf("failed to reserve tier %s: %w", tierID, err)
	}
	if !ok {
		s.log.Warn("INVENTORY", fmt.Sprintf("Tier %s exhausted (requested %d)", tierID, quantity))
		return "", ErrInventoryExhausted
	}

	s.log.Info("INVENTORY", fmt.Sprintf("Reserved %d on tier %s, hold %s", quantity, tierID, hold.ID))
	return hold.ID, nil
}

// Confirm moves a hold's quantity from held into sold. Idempotent: a hold
// already confirmed is a no-op; counters move exactly once.
func (s *Service) Confirm(ctx context.Context, holdID string) error {
	won, err := s.DB.ConfirmHold(ctx, holdID)
	if err != nil {
		return err
	}
	if !won {
		s.log.Debug("INVENTORY", fmt.Sprintf("Hold %s already resolved, confirm is a no-op", holdID))
	}
	return nil
}

// Release returns a hold's quantity to the pool. Idempotent; a confirmed
// hold cannot be released and the call is a no-op.
func (s *Service) Release(ctx context.Context, holdID string) error {
	won, err := s.DB.ReleaseHold(ctx, holdID)
	if err != nil {
		return err
	}
	if !won {
		s.log.Debug("INVENTORY", fmt.Sprintf("Hold %s already resolved, release is a no-op", holdID))
	}
	return nil
}
