package db

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"ms-booking/internal/inventory"
	"ms-booking/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

func setupTestDB(t *testing.T) *DB {
	sqldb, err := sql.Open(sqliteshim.ShimName, "file::memory:?cache=shared")
	require.NoError(t, err)
	// Serialize access so concurrent tests don't hit SQLITE_BUSY.
	sqldb.SetMaxOpenConns(1)

	bunDB := bun.NewDB(sqldb, sqlitedialect.New())

	ctx := context.Background()
	require.NoError(t, bunDB.ResetModel(ctx, (*models.TicketTier)(nil)))
	require.NoError(t, bunDB.ResetModel(ctx, (*models.ReservationHold)(nil)))

	t.Cleanup(func() { bunDB.Close() })
	return &DB{Bun: bunDB}
}

func seedTier(t *testing.T, d *DB, capacity *int64) *models.TicketTier {
	now := time.Now()
	tier := &models.TicketTier{
		ID:             uuid.NewString(),
		EventID:        "event-1",
		Name:           "General Admission",
		UnitPriceMinor: 5000,
		Currency:       "USD",
		CapacityLimit:  capacity,
		MaxPerBuyer:    10,
		SaleFrom:       now.Add(-time.Hour),
		SaleUntil:      now.Add(time.Hour),
		Active:         true,
	}
	_, err := d.Bun.NewInsert().Model(tier).Exec(context.Background())
	require.NoError(t, err)
	return tier
}

func newHold(tierID string, quantity int64) *models.ReservationHold {
	return &models.ReservationHold{
		ID:        uuid.NewString(),
		TierID:    tierID,
		BuyerID:   "buyer@example.com",
		Quantity:  quantity,
		Status:    models.HoldHeld,
		ExpiresAt: time.Now().Add(15 * time.Minute),
		CreatedAt: time.Now(),
	}
}

func tierCounters(t *testing.T, d *DB, tierID string) (sold, held int64) {
	tier, err := d.GetTier(context.Background(), tierID)
	require.NoError(t, err)
	return tier.QuantitySold, tier.QuantityHeld
}

func TestReserveAndHold_BoundedCapacity(t *testing.T) {
	d := setupTestDB(t)
	cap := int64(3)
	tier := seedTier(t, d, &cap)
	ctx := context.Background()

	ok, err := d.ReserveAndHold(ctx, newHold(tier.ID, 2))
	require.NoError(t, err)
	assert.True(t, ok)

	// 2 held + 2 requested > 3: the conditional update must refuse.
	ok, err = d.ReserveAndHold(ctx, newHold(tier.ID, 2))
	require.NoError(t, err)
	assert.False(t, ok, "reservation beyond capacity should be refused")

	// The last seat is still takeable.
	ok, err = d.ReserveAndHold(ctx, newHold(tier.ID, 1))
	require.NoError(t, err)
	assert.True(t, ok)

	sold, held := tierCounters(t, d, tier.ID)
	assert.Equal(t, int64(0), sold)
	assert.Equal(t, int64(3), held)
}

func TestReserveAndHold_UnlimitedCapacity(t *testing.T) {
	d := setupTestDB(t)
	tier := seedTier(t, d, nil)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		ok, err := d.ReserveAndHold(ctx, newHold(tier.ID, 100))
		require.NoError(t, err)
		assert.True(t, ok, "unlimited tiers never refuse on capacity")
	}

	_, held := tierCounters(t, d, tier.ID)
	assert.Equal(t, int64(500), held)
}

func TestReserveAndHold_RefusedLeavesNoHoldRow(t *testing.T) {
	d := setupTestDB(t)
	cap := int64(1)
	tier := seedTier(t, d, &cap)
	ctx := context.Background()

	hold := newHold(tier.ID, 2)
	ok, err := d.ReserveAndHold(ctx, hold)
	require.NoError(t, err)
	require.False(t, ok)

	_, err = d.GetHold(ctx, hold.ID)
	assert.ErrorIs(t, err, inventory.ErrHoldNotFound)
}

func TestConfirmHold_MovesCountersExactlyOnce(t *testing.T) {
	d := setupTestDB(t)
	cap := int64(10)
	tier := seedTier(t, d, &cap)
	ctx := context.Background()

	hold := newHold(tier.ID, 4)
	ok, err := d.ReserveAndHold(ctx, hold)
	require.NoError(t, err)
	require.True(t, ok)

	won, err := d.ConfirmHold(ctx, hold.ID)
	require.NoError(t, err)
	assert.True(t, won)

	sold, held := tierCounters(t, d, tier.ID)
	assert.Equal(t, int64(4), sold)
	assert.Equal(t, int64(0), held)

	// Confirming again is a no-op; counters do not move twice.
	won, err = d.ConfirmHold(ctx, hold.ID)
	require.NoError(t, err)
	assert.False(t, won)

	sold, held = tierCounters(t, d, tier.ID)
	assert.Equal(t, int64(4), sold)
	assert.Equal(t, int64(0), held)
}

func TestReleaseHold_ReturnsQuantityToPool(t *testing.T) {
	d := setupTestDB(t)
	cap := int64(2)
	tier := seedTier(t, d, &cap)
	ctx := context.Background()

	hold := newHold(tier.ID, 2)
	ok, err := d.ReserveAndHold(ctx, hold)
	require.NoError(t, err)
	require.True(t, ok)

	// Pool is full until the hold is released.
	ok, err = d.ReserveAndHold(ctx, newHold(tier.ID, 1))
	require.NoError(t, err)
	require.False(t, ok)

	won, err := d.ReleaseHold(ctx, hold.ID)
	require.NoError(t, err)
	assert.True(t, won)

	ok, err = d.ReserveAndHold(ctx, newHold(tier.ID, 2))
	require.NoError(t, err)
	assert.True(t, ok, "released quantity should be reservable again")

	// Releasing again is a no-op.
	won, err = d.ReleaseHold(ctx, hold.ID)
	require.NoError(t, err)
	assert.False(t, won)
}

func TestConfirmThenRelease_ConfirmedHoldStaysConfirmed(t *testing.T) {
	d := setupTestDB(t)
	cap := int64(5)
	tier := seedTier(t, d, &cap)
	ctx := context.Background()

	hold := newHold(tier.ID, 3)
	ok, err := d.ReserveAndHold(ctx, hold)
	require.NoError(t, err)
	require.True(t, ok)

	won, err := d.ConfirmHold(ctx, hold.ID)
	require.NoError(t, err)
	require.True(t, won)

	won, err = d.ReleaseHold(ctx, hold.ID)
	require.NoError(t, err)
	assert.False(t, won, "a confirmed hold cannot be released")

	sold, held := tierCounters(t, d, tier.ID)
	assert.Equal(t, int64(3), sold)
	assert.Equal(t, int64(0), held)

	stored, err := d.GetHold(ctx, hold.ID)
	require.NoError(t, err)
	assert.Equal(t, models.HoldConfirmed, stored.Status)
}

func TestReserveAndHold_ConcurrentNeverOversells(t *testing.T) {
	d := setupTestDB(t)
	cap := int64(5)
	tier := seedTier(t, d, &cap)
	ctx := context.Background()

	const attempts = 20
	var wg sync.WaitGroup
	var mu sync.Mutex
	granted := 0

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := d.ReserveAndHold(ctx, newHold(tier.ID, 1))
			if err == nil && ok {
				mu.Lock()
				granted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 5, granted, "exactly capacity reservations should win")

	sold, held := tierCounters(t, d, tier.ID)
	assert.Equal(t, int64(0), sold)
	assert.Equal(t, int64(5), held)
}

func TestSumActiveHolds(t *testing.T) {
	d := setupTestDB(t)
	tier := seedTier(t, d, nil)
	ctx := context.Background()

	h1 := newHold(tier.ID, 2)
	h2 := newHold(tier.ID, 3)
	other := newHold(tier.ID, 4)
	other.BuyerID = "someone-else@example.com"

	for _, h := range []*models.ReservationHold{h1, h2, other} {
		ok, err := d.ReserveAndHold(ctx, h)
		require.NoError(t, err)
		require.True(t, ok)
	}

	// Confirmed holds still count against the buyer; released ones do not.
	_, err := d.ConfirmHold(ctx, h1.ID)
	require.NoError(t, err)

	total, err := d.SumActiveHolds(ctx, tier.ID, "buyer@example.com")
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)

	_, err = d.ReleaseHold(ctx, h2.ID)
	require.NoError(t, err)

	total, err = d.SumActiveHolds(ctx, tier.ID, "buyer@example.com")
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
}

func TestGetTier_NotFound(t *testing.T) {
	d := setupTestDB(t)

	_, err := d.GetTier(context.Background(), "no-such-tier")
	assert.ErrorIs(t, err, inventory.ErrTierNotFound)
}
