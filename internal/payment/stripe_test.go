package payment

import (
	"testing"

	"ms-booking/internal/config"
	"ms-booking/internal/logger"

	"github.com/stretchr/testify/assert"
)

func TestNewStripeGateway_MissingSecretKey(t *testing.T) {
	_, err := NewStripeGateway(config.StripeConfig{}, logger.NewLogger())
	assert.ErrorIs(t, err, ErrStripeClientInitFailed)
}

func TestNewStripeGateway_WithKey(t *testing.T) {
	g, err := NewStripeGateway(config.StripeConfig{
		SecretKey:  "sk_test_dummy",
		SuccessURL: "http://localhost/success",
		CancelURL:  "http://localhost/cancel",
	}, logger.NewLogger())
	assert.NoError(t, err)
	assert.NotNil(t, g)
}

func TestInitiate(t *testing.T) {
	// Exercising session creation needs stripe-mock or a test-mode account;
	// the reconciler tests cover the gateway contract through mocks instead.
	t.Skip("Skipping test that requires a Stripe backend")
}

func TestVerify(t *testing.T) {
	t.Skip("Skipping test that requires a Stripe backend")
}
