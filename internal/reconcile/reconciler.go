package reconcile

import (
	"context"
	"fmt"
	"time"

	"ms-booking/internal/logger"
	"ms-booking/internal/models"
	"ms-booking/internal/payment"

	"github.com/cenkalti/backoff/v4"
)

// Orchestrator is the slice of the booking service the reconciler drives.
type Orchestrator interface {
	GetByReference(ctx context.Context, reference string) (*models.Booking, error)
	FinalizePaid(ctx context.Context, id string) (*models.Booking, error)
	FinalizeFailed(ctx context.Context, id string) (*models.Booking, error)
}

// Result pairs the booking with the provider's view of the reference.
// Payment is nil when the booking was already terminal and no provider
// call was made.
type Result struct {
	Booking *models.Booking
	Payment *payment.VerifyResult
}

// Reconciler aligns local booking state with the payment provider's
// authoritative status. It is invoked from buyer verification polls, the
// signature-checked webhook, and the payment-events consumer; all three
// paths converge here and are idempotent.
type Reconciler struct {
	Bookings    Orchestrator
	Gateway     payment.Gateway
	MaxRetries  int
	MaxInterval time.Duration
	log         *logger.Logger
}

func NewReconciler(bookings Orchestrator, gateway payment.Gateway, maxRetries int, maxInterval time.Duration, log *logger.Logger) *Reconciler {
	return &Reconciler{
		Bookings:    bookings,
		Gateway:     gateway,
		MaxRetries:  maxRetries,
		MaxInterval: maxInterval,
		log:         log,
	}
}

// Reconcile finalizes the booking behind a payment reference. An already
// terminal booking returns its stored outcome with no provider call and no
// counter movement; that is what makes duplicate webhook deliveries safe.
func (r *Reconciler) Reconcile(ctx context.Context, reference string) (*Result, error) {
	b, err := r.Bookings.GetByReference(ctx, reference)
	if err != nil {
		return nil, err
	}

	if b.IsTerminal() {
		r.log.Debug("RECONCILE", fmt.Sprintf("Booking %s already %s, returning stored outcome", b.ID, b.Status))
		return &Result{Booking: b}, nil
	}

	verified, err := r.verifyWithBackoff(ctx, reference)
	if err != nil {
		// Retries exhausted: the attempt is retryable-pending, never a
		// booking failure. Only an explicit failed status or TTL expiry
		// moves a booking out of PENDING without success.
		r.log.Warn("RECONCILE", fmt.Sprintf("Verification of %s gave up after %d retries: %v", reference, r.MaxRetries, err))
		return &Result{Booking: b}, fmt.Errorf("%w: %v", payment.ErrPaymentVerificationTimeout, err)
	}

	switch verified.Status {
	case payment.StatusSuccess:
		paid, err := r.Bookings.FinalizePaid(ctx, b.ID)
		if err != nil {
			return &Result{Booking: paid, Payment: verified}, err
		}
		return &Result{Booking: paid, Payment: verified}, nil

	case payment.StatusFailed:
		failed, err := r.Bookings.FinalizeFailed(ctx, b.ID)
		if err != nil {
			return &Result{Booking: failed, Payment: verified}, err
		}
		return &Result{Booking: failed, Payment: verified}, nil

	default:
		// Still pending at the provider. The hold stays in place until
		// expires_at; the caller should check again later.
		return &Result{Booking: b, Payment: verified}, nil
	}
}

func (r *Reconciler) verifyWithBackoff(ctx context.Context, reference string) (*payment.VerifyResult, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 500 * time.Millisecond
	bo.MaxInterval = r.MaxInterval

	policy := backoff.WithContext(backoff.WithMaxRetries(bo, uint64(r.MaxRetries)), ctx)

	var verified *payment.VerifyResult
	operation := func() error {
		res, err := r.Gateway.Verify(ctx, reference)
		if err != nil {
			return err
		}
		verified = res
		return nil
	}

	if err := backoff.Retry(operation, policy); err != nil {
		return nil, err
	}
	return verified, nil
}
