package payment

import (
	"context"
	"errors"
)

var (
	ErrPaymentInitiationFailed    = errors.New("payment initiation failed")
	ErrPaymentVerificationTimeout = errors.New("payment verification timed out")
)

// Status is the provider's tri-state view of a payment reference.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
	StatusPending Status = "pending"
)

// InitiateResult carries the provider reference and the hosted page the
// buyer completes payment on.
type InitiateResult struct {
	Reference        string
	AuthorizationURL string
}

// VerifyResult reflects the provider's authoritative current state for a
// reference, never a cached client guess.
type VerifyResult struct {
	Status      Status
	AmountMinor int64
	Currency    string
}

// Gateway abstracts the external payment provider. Initiate must carry an
// idempotency key derived from the booking id so provider-side retries are
// deduplicated; Verify is safe to call arbitrarily many times.
type Gateway interface {
	Initiate(ctx context.Context, bookingID string, amountMinor int64, currency string) (*InitiateResult, error)
	Verify(ctx context.Context, reference string) (*VerifyResult, error)
}
