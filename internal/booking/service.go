package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ms-booking/internal/logger"
	"ms-booking/internal/models"
	"ms-booking/internal/payment"
	"ms-booking/internal/ticketcode"

	"github.com/google/uuid"
)

var (
	ErrBookingNotFound        = errors.New("booking not found")
	ErrIllegalStateTransition = errors.New("illegal state transition")
	ErrDuplicateRequest       = errors.New("duplicate booking request in progress")
	ErrInvalidRequest         = errors.New("invalid booking request")
)

type DBLayer interface {
	CreateBooking(ctx context.Context, b *models.Booking) error
	GetBookingByID(ctx context.Context, id string) (*models.Booking, error)
	GetBookingByReference(ctx context.Context, reference string) (*models.Booking, error)
	SetPaymentReference(ctx context.Context, id, reference string) (bool, error)
	MarkPaid(ctx context.Context, id, ticketCode string) (won bool, codeConflict bool, err error)
	MarkTerminal(ctx context.Context, id, status string) (bool, error)
	ListExpiredPending(ctx context.Context, now time.Time, limit int) ([]models.Booking, error)
}

// InventoryManager is the slice of the inventory service the orchestrator
// needs. Holds are taken before any I/O-bound payment work and resolved
// only by the winner of a status CAS.
type InventoryManager interface {
	GetTier(ctx context.Context, tierID string) (*models.TicketTier, error)
	Reserve(ctx context.Context, tierID string, quantity int64, buyerID string) (string, error)
	Confirm(ctx context.Context, holdID string) error
	Release(ctx context.Context, holdID string) error
}

type CouponEngine interface {
	Hold(ctx context.Context, code, eventID string, subtotal int64, now time.Time) (string, int64, error)
	Confirm(ctx context.Context, holdID string) error
	Release(ctx context.Context, holdID string) error
}

// BookingLock guards against double-submitted booking requests.
type BookingLock interface {
	Acquire(tierID, buyerID string) (bool, error)
	Release(tierID, buyerID string) error
}

type Publisher interface {
	PublishBookingCreated(b models.Booking) error
	PublishBookingPaid(b models.Booking) error
	PublishBookingClosed(b models.Booking) error
}

type CodeGenerator interface {
	Generate() (string, error)
}

// Service composes inventory, coupons, payment, and persistence into the
// booking lifecycle. All transitions out of PENDING go through a
// compare-and-swap on the booking status, so concurrent reconcilers and
// sweepers cannot both win.
type Service struct {
	DB           DBLayer
	Inventory    InventoryManager
	Coupons      CouponEngine
	Gateway      payment.Gateway
	Codes        CodeGenerator
	Lock         BookingLock
	Kafka        Publisher
	HoldTTL      time.Duration
	CodeAttempts int
	log          *logger.Logger
}

func NewService(
	db DBLayer,
	inv InventoryManager,
	coupons CouponEngine,
	gateway payment.Gateway,
	codes CodeGenerator,
	lock BookingLock,
	kafka Publisher,
	holdTTL time.Duration,
	codeAttempts int,
	log *logger.Logger,
) *Service {
	return &Service{
		DB:           db,
		Inventory:    inv,
		Coupons:      coupons,
		Gateway:      gateway,
		Codes:        codes,
		Lock:         lock,
		Kafka:        kafka,
		HoldTTL:      holdTTL,
		CodeAttempts: codeAttempts,
		log:          log,
	}
}

func (s *Service) Get(ctx context.Context, id string) (*models.Booking, error) {
	return s.DB.GetBookingByID(ctx, id)
}

func (s *Service) GetByReference(ctx context.Context, reference string) (*models.Booking, error) {
	return s.DB.GetBookingByReference(ctx, reference)
}

// Create runs the booking sequence: reserve inventory, hold the coupon,
// persist the pending booking, then initiate payment. Every step releases
// whatever was already acquired on failure, so an aborted create leaves no
// counters moved.
func (s *Service) Create(ctx context.Context, req models.CreateBookingRequest) (*models.Booking, string, error) {
	if req.TierID == "" || req.BuyerEmail == "" || req.BuyerName == "" {
		return nil, "", fmt.Errorf("%w: tier_id, buyer_name and buyer_email are required", ErrInvalidRequest)
	}
	if req.Quantity < 1 {
		return nil, "", fmt.Errorf("%w: quantity must be at least 1", ErrInvalidRequest)
	}

	tier, err := s.Inventory.GetTier(ctx, req.TierID)
	if err != nil {
		return nil, "", err
	}
	// Cheap rejection before any shared state is touched.
	if req.Quantity > tier.MaxPerBuyer {
		return nil, "", fmt.Errorf("%w: quantity %d exceeds per-buyer limit %d", ErrInvalidRequest, req.Quantity, tier.MaxPerBuyer)
	}

	ok, err := s.Lock.Acquire(req.TierID, req.BuyerEmail)
	if err != nil {
		return nil, "", fmt.Errorf("booking lock error: %w", err)
	}
	if !ok {
		return nil, "", ErrDuplicateRequest
	}
	defer func() {
		if err := s.Lock.Release(req.TierID, req.BuyerEmail); err != nil {
			s.log.Warn("BOOKING", fmt.Sprintf("Failed to release booking lock for %s/%s: %v", req.TierID, req.BuyerEmail, err))
		}
	}()

	invHoldID, err := s.Inventory.Reserve(ctx, req.TierID, req.Quantity, req.BuyerEmail)
	if err != nil {
		return nil, "", err
	}

	now := time.Now()
	subtotal := req.Quantity * tier.UnitPriceMinor

	var couponHoldID string
	var discount int64
	if req.CouponCode != "" {
		couponHoldID, discount, err = s.Coupons.Hold(ctx, req.CouponCode, tier.EventID, subtotal, now)
		if err != nil {
			if relErr := s.Inventory.Release(ctx, invHoldID); relErr != nil {
				s.log.Error("BOOKING", fmt.Sprintf("Failed to release inventory hold %s after coupon failure: %v", invHoldID, relErr))
			}
			return nil, "", err
		}
	}

	total := subtotal - discount
	if total < 0 {
		total = 0
	}

	b := &models.Booking{
		ID:              uuid.NewString(),
		EventID:         tier.EventID,
		TierID:          tier.ID,
		BuyerName:       req.BuyerName,
		BuyerEmail:      req.BuyerEmail,
		BuyerPhone:      req.BuyerPhone,
		Quantity:        req.Quantity,
		UnitPriceMinor:  tier.UnitPriceMinor,
		DiscountMinor:   discount,
		TotalMinor:      total,
		Currency:        tier.Currency,
		CouponCode:      models.CanonicalCouponCode(req.CouponCode),
		Status:          models.StatusPending,
		InventoryHoldID: invHoldID,
		CouponHoldID:    couponHoldID,
		CreatedAt:       now,
		ExpiresAt:       now.Add(s.HoldTTL),
	}

	if err := s.DB.CreateBooking(ctx, b); err != nil {
		s.releaseHolds(ctx, b)
		return nil, "", fmt.Errorf("failed to persist booking: %w", err)
	}

	s.log.LogBooking("CREATE", b.ID, fmt.Sprintf("tier=%s qty=%d total=%d %s", b.TierID, b.Quantity, b.TotalMinor, b.Currency))
	if err := s.Kafka.PublishBookingCreated(*b); err != nil {
		s.log.Warn("KAFKA", fmt.Sprintf("Publish error (booking created): %v", err))
	}

	// Free tickets skip payment entirely.
	if total == 0 {
		paid, err := s.FinalizePaid(ctx, b.ID)
		if err != nil {
			return nil, "", err
		}
		return paid, "", nil
	}

	init, err := s.Gateway.Initiate(ctx, b.ID, total, tier.Currency)
	if err != nil {
		if _, failErr := s.FinalizeFailed(ctx, b.ID); failErr != nil {
			s.log.Error("BOOKING", fmt.Sprintf("Failed to close booking %s after initiation failure: %v", b.ID, failErr))
		}
		return nil, "", err
	}

	if _, err := s.DB.SetPaymentReference(ctx, b.ID, init.Reference); err != nil {
		return nil, "", fmt.Errorf("failed to store payment reference: %w", err)
	}
	b.PaymentRef = init.Reference

	return b, init.AuthorizationURL, nil
}

// FinalizePaid is the PENDING→PAID transition, invoked by the free-ticket
// shortcut and by the reconciliation worker. The winner of the status CAS
// confirms both holds and carries the freshly generated ticket code; a
// loser returns the now-terminal state untouched.
func (s *Service) FinalizePaid(ctx context.Context, id string) (*models.Booking, error) {
	b, err := s.DB.GetBookingByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if b.Status == models.StatusPaid {
		return b, nil
	}
	if b.IsTerminal() {
		return b, ErrIllegalStateTransition
	}

	for attempt := 0; attempt < s.CodeAttempts; attempt++ {
		code, err := s.Codes.Generate()
		if err != nil {
			return nil, fmt.Errorf("ticket code generation: %w", err)
		}

		won, conflict, err := s.DB.MarkPaid(ctx, id, code)
		if err != nil {
			return nil, err
		}
		if conflict {
			s.log.Warn("BOOKING", fmt.Sprintf("Ticket code collision for booking %s, regenerating", id))
			continue
		}
		if !won {
			current, err := s.DB.GetBookingByID(ctx, id)
			if err != nil {
				return nil, err
			}
			if current.Status != models.StatusPaid {
				s.log.Warn("BOOKING", fmt.Sprintf("Booking %s reached %s before payment confirmation", id, current.Status))
			}
			return current, nil
		}

		s.confirmHolds(ctx, b)

		paid, err := s.DB.GetBookingByID(ctx, id)
		if err != nil {
			return nil, err
		}
		s.log.LogBooking("PAID", id, fmt.Sprintf("ticket=%s", paid.TicketCode))
		if err := s.Kafka.PublishBookingPaid(*paid); err != nil {
			s.log.Warn("KAFKA", fmt.Sprintf("Publish error (booking paid): %v", err))
		}
		return paid, nil
	}

	return nil, ticketcode.ErrTicketCodeAllocationFailed
}

// FinalizeFailed is the PENDING→FAILED transition, triggered when the
// gateway reports failure.
func (s *Service) FinalizeFailed(ctx context.Context, id string) (*models.Booking, error) {
	b, _, err := s.closeAs(ctx, id, models.StatusFailed)
	return b, err
}

// Expire is the PENDING→EXPIRED transition, triggered by the sweeper once
// expires_at has lapsed.
func (s *Service) Expire(ctx context.Context, id string) (*models.Booking, error) {
	b, _, err := s.closeAs(ctx, id, models.StatusExpired)
	return b, err
}

// Cancel is the explicit buyer/operator PENDING→CANCELLED transition, with
// immediate resource release. Cancelling a terminal booking is rejected.
func (s *Service) Cancel(ctx context.Context, id string) (*models.Booking, error) {
	b, won, err := s.closeAs(ctx, id, models.StatusCancelled)
	if err != nil {
		return b, err
	}
	if !won && b.Status != models.StatusCancelled {
		return b, ErrIllegalStateTransition
	}
	return b, nil
}

// closeAs runs a CAS transition into a non-paid terminal state. The winner
// releases both holds; a repeat call on the same terminal state is an
// idempotent no-op returning the stored outcome.
func (s *Service) closeAs(ctx context.Context, id, status string) (*models.Booking, bool, error) {
	b, err := s.DB.GetBookingByID(ctx, id)
	if err != nil {
		return nil, false, err
	}
	if b.Status == status {
		return b, false, nil
	}
	if b.IsTerminal() {
		return b, false, ErrIllegalStateTransition
	}

	won, err := s.DB.MarkTerminal(ctx, id, status)
	if err != nil {
		return nil, false, err
	}
	if !won {
		current, err := s.DB.GetBookingByID(ctx, id)
		if err != nil {
			return nil, false, err
		}
		if current.Status == status {
			return current, false, nil
		}
		return current, false, ErrIllegalStateTransition
	}

	s.releaseHolds(ctx, b)
	b.Status = status

	s.log.LogBooking("CLOSE", id, fmt.Sprintf("status=%s", status))
	if err := s.Kafka.PublishBookingClosed(*b); err != nil {
		s.log.Warn("KAFKA", fmt.Sprintf("Publish error (booking closed): %v", err))
	}
	return b, true, nil
}

// ListExpiredPending exposes sweep candidates to the expiry sweeper.
func (s *Service) ListExpiredPending(ctx context.Context, now time.Time, limit int) ([]models.Booking, error) {
	return s.DB.ListExpiredPending(ctx, now, limit)
}

func (s *Service) confirmHolds(ctx context.Context, b *models.Booking) {
	if err := s.Inventory.Confirm(ctx, b.InventoryHoldID); err != nil {
		s.log.Error("BOOKING", fmt.Sprintf("Failed to confirm inventory hold %s: %v", b.InventoryHoldID, err))
	}
	if b.CouponHoldID != "" {
		if err := s.Coupons.Confirm(ctx, b.CouponHoldID); err != nil {
			s.log.Error("BOOKING", fmt.Sprintf("Failed to confirm coupon hold %s: %v", b.CouponHoldID, err))
		}
	}
}

func (s *Service) releaseHolds(ctx context.Context, b *models.Booking) {
	if err := s.Inventory.Release(ctx, b.InventoryHoldID); err != nil {
		s.log.Error("BOOKING", fmt.Sprintf("Failed to release inventory hold %s: %v", b.InventoryHoldID, err))
	}
	if b.CouponHoldID != "" {
		if err := s.Coupons.Release(ctx, b.CouponHoldID); err != nil {
			s.log.Error("BOOKING", fmt.Sprintf("Failed to release coupon hold %s: %v", b.CouponHoldID, err))
		}
	}
}
