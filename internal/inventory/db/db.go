package db

import (
	"context"
	"database/sql"
	"errors"

	"ms-booking/internal/inventory"
	"ms-booking/internal/models"

	"github.com/uptrace/bun"
)

type DB struct {
	Bun *bun.DB
}

func (d *DB) GetTier(ctx context.Context, tierID string) (*models.TicketTier, error) {
	var tier models.TicketTier
	err := d.Bun.NewSelect().
		Model(&tier).
		Where("id = ?", tierID).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, inventory.ErrTierNotFound
	}
	if err != nil {
		return nil, err
	}
	return &tier, nil
}

func (d *DB) GetHold(ctx context.Context, holdID string) (*models.ReservationHold, error) {
	var hold models.ReservationHold
	err := d.Bun.NewSelect().
		Model(&hold).
		Where("id = ?", holdID).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, inventory.ErrHoldNotFound
	}
	if err != nil {
		return nil, err
	}
	return &hold, nil
}

// SumActiveHolds totals the quantity a buyer currently has held or confirmed
// against a tier, for per-buyer limit enforcement.
func (d *DB) SumActiveHolds(ctx context.Context, tierID, buyerID string) (int64, error) {
	var total int64
	err := d.Bun.NewSelect().
		Model((*models.ReservationHold)(nil)).
		ColumnExpr("COALESCE(SUM(quantity), 0)").
		Where("tier_id = ?", tierID).
		Where("buyer_id = ?", buyerID).
		Where("status IN (?)", bun.In([]string{models.HoldHeld, models.HoldConfirmed})).
		Scan(ctx, &total)
	return total, err
}

// ReserveAndHold increments quantity_held and inserts the hold row in one
// transaction. The capacity check is the conditional update itself: zero
// rows affected means the tier cannot fit the requested quantity, and the
// hold is not created.
func (d *DB) ReserveAndHold(ctx context.Context, hold *models.ReservationHold) (bool, error) {
	reserved := false
	err := d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewUpdate().
			Model((*models.TicketTier)(nil)).
			Set("quantity_held = quantity_held + ?", hold.Quantity).
			Where("id = ?", hold.TierID).
			Where("capacity IS NULL OR quantity_sold + quantity_held + ? <= capacity", hold.Quantity).
			Exec(ctx)
		if err != nil {
			return err
		}
		rows, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if rows == 0 {
			return nil
		}

		if _, err := tx.NewInsert().Model(hold).Exec(ctx); err != nil {
			return err
		}
		reserved = true
		return nil
	})
	return reserved, err
}

// ConfirmHold flips the hold held→confirmed and moves its quantity from
// held into sold. Returns false (no error) when the hold was already
// resolved; counters only move on the winning call.
func (d *DB) ConfirmHold(ctx context.Context, holdID string) (bool, error) {
	return d.resolveHold(ctx, holdID, models.HoldConfirmed)
}

// ReleaseHold flips the hold held→released and returns its quantity to the
// pool. Same idempotency contract as ConfirmHold; confirmed holds are never
// released.
func (d *DB) ReleaseHold(ctx context.Context, holdID string) (bool, error) {
	return d.resolveHold(ctx, holdID, models.HoldReleased)
}

func (d *DB) resolveHold(ctx context.Context, holdID, target string) (bool, error) {
	won := false
	err := d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var hold models.ReservationHold
		err := tx.NewSelect().
			Model(&hold).
			Where("id = ?", holdID).
			Limit(1).
			Scan(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			return inventory.ErrHoldNotFound
		}
		if err != nil {
			return err
		}

		res, err := tx.NewUpdate().
			Model((*models.ReservationHold)(nil)).
			Set("status = ?", target).
			Where("id = ?", holdID).
			Where("status = ?", models.HoldHeld).
			Exec(ctx)
		if err != nil {
			return err
		}
		rows, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if rows == 0 {
			// Already confirmed or released; counters moved on that call.
			return nil
		}

		upd := tx.NewUpdate().
			Model((*models.TicketTier)(nil)).
			Where("id = ?", hold.TierID)
		if target == models.HoldConfirmed {
			upd = upd.Set("quantity_held = quantity_held - ?", hold.Quantity).
				Set("quantity_sold = quantity_sold + ?", hold.Quantity)
		} else {
			upd = upd.Set("quantity_held = quantity_held - ?", hold.Quantity)
		}
		if _, err := upd.Exec(ctx); err != nil {
			return err
		}
		won = true
		return nil
	})
	return won, err
}
