package inventory_test

import (
	"context"
	"testing"
	"time"

	"ms-booking/internal/inventory"
	"ms-booking/internal/logger"
	"ms-booking/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// Mock implementations
type MockDBLayer struct {
	mock.Mock
}

func (m *MockDBLayer) GetTier(ctx context.Context, tierID string) (*models.TicketTier, error) {
	args := m.Called(ctx, tierID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.TicketTier), args.Error(1)
}

func (m *MockDBLayer) SumActiveHolds(ctx context.Context, tierID, buyerID string) (int64, error) {
	args := m.Called(ctx, tierID, buyerID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockDBLayer) ReserveAndHold(ctx context.Context, hold *models.ReservationHold) (bool, error) {
	args := m.Called(ctx, hold)
	return args.Bool(0), args.Error(1)
}

func (m *MockDBLayer) ConfirmHold(ctx context.Context, holdID string) (bool, error) {
	args := m.Called(ctx, holdID)
	return args.Bool(0), args.Error(1)
}

func (m *MockDBLayer) ReleaseHold(ctx context.Context, holdID string) (bool, error) {
	args := m.Called(ctx, holdID)
	return args.Bool(0), args.Error(1)
}

func (m *MockDBLayer) GetHold(ctx context.Context, holdID string) (*models.ReservationHold, error) {
	args := m.Called(ctx, holdID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ReservationHold), args.Error(1)
}

func testTier() *models.TicketTier {
	now := time.Now()
	return &models.TicketTier{
		ID:             "tier-1",
		EventID:        "event-1",
		Name:           "VIP",
		UnitPriceMinor: 10000,
		Currency:       "USD",
		MaxPerBuyer:    4,
		SaleFrom:       now.Add(-time.Hour),
		SaleUntil:      now.Add(time.Hour),
		Active:         true,
	}
}

func TestReserve_SaleWindowClosed(t *testing.T) {
	mockDB := new(MockDBLayer)
	svc := inventory.NewService(mockDB, 15*time.Minute, logger.NewLogger())

	tier := testTier()
	tier.SaleFrom = time.Now().Add(time.Hour)
	tier.SaleUntil = time.Now().Add(2 * time.Hour)
	mockDB.On("GetTier", mock.Anything, "tier-1").Return(tier, nil)

	_, err := svc.Reserve(context.Background(), "tier-1", 1, "buyer@example.com")
	assert.ErrorIs(t, err, inventory.ErrSaleWindowClosed)

	mockDB.AssertNotCalled(t, "ReserveAndHold", mock.Anything, mock.Anything)
}

func TestReserve_InactiveTier(t *testing.T) {
	mockDB := new(MockDBLayer)
	svc := inventory.NewService(mockDB, 15*time.Minute, logger.NewLogger())

	tier := testTier()
	tier.Active = false
	mockDB.On("GetTier", mock.Anything, "tier-1").Return(tier, nil)

	_, err := svc.Reserve(context.Background(), "tier-1", 1, "buyer@example.com")
	assert.ErrorIs(t, err, inventory.ErrTierInactive)
}

func TestReserve_PerBuyerLimit(t *testing.T) {
	mockDB := new(MockDBLayer)
	svc := inventory.NewService(mockDB, 15*time.Minute, logger.NewLogger())

	mockDB.On("GetTier", mock.Anything, "tier-1").Return(testTier(), nil)

	// Requesting more than max_per_buyer in one go.
	_, err := svc.Reserve(context.Background(), "tier-1", 5, "buyer@example.com")
	assert.ErrorIs(t, err, inventory.ErrPerBuyerLimitExceeded)

	// Existing holds push the buyer over the limit.
	mockDB.On("SumActiveHolds", mock.Anything, "tier-1", "buyer@example.com").Return(int64(3), nil)

	_, err = svc.Reserve(context.Background(), "tier-1", 2, "buyer@example.com")
	assert.ErrorIs(t, err, inventory.ErrPerBuyerLimitExceeded)

	mockDB.AssertNotCalled(t, "ReserveAndHold", mock.Anything, mock.Anything)
}

func TestReserve_Exhausted(t *testing.T) {
	mockDB := new(MockDBLayer)
	svc := inventory.NewService(mockDB, 15*time.Minute, logger.NewLogger())

	mockDB.On("GetTier", mock.Anything, "tier-1").Return(testTier(), nil)
	mockDB.On("SumActiveHolds", mock.Anything, "tier-1", "buyer@example.com").Return(int64(0), nil)
	mockDB.On("ReserveAndHold", mock.Anything, mock.Anything).Return(false, nil)

	_, err := svc.Reserve(context.Background(), "tier-1", 2, "buyer@example.com")
	assert.ErrorIs(t, err, inventory.ErrInventoryExhausted)
}

func TestReserve_Success(t *testing.T) {
	mockDB := new(MockDBLayer)
	svc := inventory.NewService(mockDB, 15*time.Minute, logger.NewLogger())

	mockDB.On("GetTier", mock.Anything, "tier-1").Return(testTier(), nil)
	mockDB.On("SumActiveHolds", mock.Anything, "tier-1", "buyer@example.com").Return(int64(0), nil)
	mockDB.On("ReserveAndHold", mock.Anything, mock.MatchedBy(func(h *models.ReservationHold) bool {
		return h.TierID == "tier-1" && h.Quantity == 2 && h.Status == models.HoldHeld
	})).Return(true, nil)

	holdID, err := svc.Reserve(context.Background(), "tier-1", 2, "buyer@example.com")
	assert.NoError(t, err)
	assert.NotEmpty(t, holdID)

	mockDB.AssertExpectations(t)
}
