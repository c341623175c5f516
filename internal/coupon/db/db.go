package db

import (
	"context"
	"database/sql"
	"errors"

	"ms-booking/internal/coupon"
	"ms-booking/internal/models"

	"github.com/uptrace/bun"
)

type DB struct {
	Bun *bun.DB
}

func (d *DB) GetByCode(ctx context.Context, eventID, code string) (*models.Coupon, error) {
	var c models.Coupon
	err := d.Bun.NewSelect().
		Model(&c).
		Where("event_id = ?", eventID).
		Where("code = ?", code).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, coupon.ErrCouponNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (d *DB) GetHold(ctx context.Context, holdID string) (*models.CouponHold, error) {
	var hold models.CouponHold
	err := d.Bun.NewSelect().
		Model(&hold).
		Where("id = ?", holdID).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, coupon.ErrHoldNotFound
	}
	if err != nil {
		return nil, err
	}
	return &hold, nil
}

// ReserveUseAndHold increments reserved_count and inserts the hold row in
// one transaction. The usage cap is enforced by the conditional update:
// zero rows affected means the coupon is exhausted.
func (d *DB) ReserveUseAndHold(ctx context.Context, couponID string, hold *models.CouponHold) (bool, error) {
	reserved := false
	err := d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewUpdate().
			Model((*models.Coupon)(nil)).
			Set("reserved_count = reserved_count + 1").
			Where("id = ?", couponID).
			Where("max_uses IS NULL OR used_count + reserved_count + 1 <= max_uses").
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

func (d *DB) ConfirmHold(ctx context.Context, holdID string) (bool, error) {
	return d.resolveHold(ctx, holdID, models.HoldConfirmed)
}

func (d *DB) ReleaseHold(ctx context.Context, holdID string) (bool, error) {
	return d.resolveHold(ctx, holdID, models.HoldReleased)
}

func (d *DB) resolveHold(ctx context.Context, holdID, target string) (bool, error) {
	won := false
	err := d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var hold models.CouponHold
		err := tx.NewSelect().
			Model(&hold).
			Where("id = ?", holdID).
			Limit(1).
			Scan(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			return coupon.ErrHoldNotFound
		}
		if err != nil {
			return err
		}

		res, err := tx.NewUpdate().
			Model((*models.CouponHold)(nil)).
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
			return nil
		}

		upd := tx.NewUpdate().
			Model((*models.Coupon)(nil)).
			Where("id = ?", hold.CouponID)
		if target == models.HoldConfirmed {
			upd = upd.Set("reserved_count = reserved_count - 1").
				Set("used_count = used_count + 1")
		} else {
			upd = upd.Set("reserved_count = reserved_count - 1")
		}
		if _, err := upd.Exec(ctx); err != nil {
			return err
		}
		won = true
		return nil
	})
	return won, err
}
