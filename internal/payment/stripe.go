package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"ms-booking/internal/config"
	"ms-booking/internal/logger"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
)

var ErrStripeClientInitFailed = errors.New("failed to initialize Stripe client")

// StripeGateway implements Gateway on Stripe Checkout Sessions. The session
// id doubles as the payment reference; the hosted checkout URL is the
// authorization handle returned to the buyer.
type StripeGateway struct {
	client     *client.API
	successURL string
	cancelURL  string
	log        *logger.Logger
}

func NewStripeGateway(cfg config.StripeConfig, log *logger.Logger) (*StripeGateway, error) {
	if cfg.SecretKey == "" {
		log.Error("STRIPE", "STRIPE_SECRET_KEY environment variable not set")
		return nil, ErrStripeClientInitFailed
	}

	sc := client.New(cfg.SecretKey, nil)
	if sc == nil {
		log.Error("STRIPE", "Failed to initialize Stripe client")
		return nil, ErrStripeClientInitFailed
	}

	log.Info("STRIPE", "Stripe client initialized successfully")
	return &StripeGateway{
		client:     sc,
		successURL: cfg.SuccessURL,
		cancelURL:  cfg.CancelURL,
		log:        log,
	}, nil
}

// Initiate creates a Checkout Session for the booking total. The booking id
// is sent as the Stripe idempotency key, so a retried call returns the same
// session instead of opening a second one.
func (g *StripeGateway) Initiate(ctx context.Context, bookingID string, amountMinor int64, currency string) (*InitiateResult, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		ClientReferenceID: stripe.String(bookingID),
		SuccessURL:        stripe.String(g.successURL),
		CancelURL:         stripe.String(g.cancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(strings.ToLower(currency)),
					UnitAmount: stripe.Int64(amountMinor),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String("Ticket booking " + bookingID),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
	}
	params.Context = ctx
	params.SetIdempotencyKey("booking-" + bookingID)

	sess, err := g.client.CheckoutSessions.New(params)
	if err != nil {
		g.log.Error("STRIPE", fmt.Sprintf("Failed to create checkout session for booking %s: %v", bookingID, err))
		return nil, fmt.Errorf("%w: %v", ErrPaymentInitiationFailed, err)
	}

	g.log.Info("STRIPE", fmt.Sprintf("Created checkout session %s for booking %s", sess.ID, bookingID))
	return &InitiateResult{
		Reference:        sess.ID,
		AuthorizationURL: sess.URL,
	}, nil
}

// Verify fetches the session fresh from Stripe on every call and maps its
// state to the tri-state status.
func (g *StripeGateway) Verify(ctx context.Context, reference string) (*VerifyResult, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx

	sess, err := g.client.CheckoutSessions.Get(reference, params)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve checkout session %s: %w", reference, err)
	}

	result := &VerifyResult{
		AmountMinor: sess.AmountTotal,
		Currency:    strings.ToUpper(string(sess.Currency)),
	}

	switch {
	case sess.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid,
		sess.PaymentStatus == stripe.CheckoutSessionPaymentStatusNoPaymentRequired:
		result.Status = StatusSuccess
	case sess.Status == stripe.CheckoutSessionStatusExpired:
		result.Status = StatusFailed
	default:
		result.Status = StatusPending
	}

	return result, nil
}
