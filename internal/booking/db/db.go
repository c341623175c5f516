package db

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"ms-booking/internal/booking"
	"ms-booking/internal/models"

	"github.com/uptrace/bun"
)

type DB struct {
	Bun *bun.DB
}

func (d *DB) CreateBooking(ctx context.Context, b *models.Booking) error {
	_, err := d.Bun.NewInsert().Model(b).Exec(ctx)
	return err
}

func (d *DB) GetBookingByID(ctx context.Context, id string) (*models.Booking, error) {
	var b models.Booking
	err := d.Bun.NewSelect().
		Model(&b).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, booking.ErrBookingNotFound
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (d *DB) GetBookingByReference(ctx context.Context, reference string) (*models.Booking, error) {
	var b models.Booking
	err := d.Bun.NewSelect().
		Model(&b).
		Where("payment_reference = ?", reference).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, booking.ErrBookingNotFound
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// SetPaymentReference stores the provider reference, guarded on the booking
// still being pending so a slow initiate cannot clobber a terminal booking.
func (d *DB) SetPaymentReference(ctx context.Context, id, reference string) (bool, error) {
	res, err := d.Bun.NewUpdate().
		Model((*models.Booking)(nil)).
		Set("payment_reference = ?", reference).
		Where("id = ?", id).
		Where("status = ?", models.StatusPending).
		Exec(ctx)
	if err != nil {
		return false, err
	}
	rows, err := res.RowsAffected()
	return rows > 0, err
}

// MarkPaid is the PENDING→PAID compare-and-swap. It sets the terminal
// status and the ticket code in one statement; two concurrent confirmers
// cannot both win. codeConflict reports a ticket code uniqueness violation
// so the caller can regenerate and retry.
func (d *DB) MarkPaid(ctx context.Context, id, ticketCode string) (won bool, codeConflict bool, err error) {
	res, err := d.Bun.NewUpdate().
		Model((*models.Booking)(nil)).
		Set("status = ?", models.StatusPaid).
		Set("ticket_code = ?", ticketCode).
		Where("id = ?", id).
		Where("status = ?", models.StatusPending).
		Exec(ctx)
	if err != nil {
		if isUniqueViolation(err) {
			return false, true, nil
		}
		return false, false, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, false, err
	}
	return rows > 0, false, nil
}

// MarkTerminal is the PENDING→{FAILED,EXPIRED,CANCELLED} compare-and-swap.
func (d *DB) MarkTerminal(ctx context.Context, id, status string) (bool, error) {
	res, err := d.Bun.NewUpdate().
		Model((*models.Booking)(nil)).
		Set("status = ?", status).
		Where("id = ?", id).
		Where("status = ?", models.StatusPending).
		Exec(ctx)
	if err != nil {
		return false, err
	}
	rows, err := res.RowsAffected()
	return rows > 0, err
}

// ListExpiredPending returns pending bookings whose hold TTL has lapsed,
// oldest first, for the expiry sweeper.
func (d *DB) ListExpiredPending(ctx context.Context, now time.Time, limit int) ([]models.Booking, error) {
	var bookings []models.Booking
	err := d.Bun.NewSelect().
		Model(&bookings).
		Where("status = ?", models.StatusPending).
		Where("expires_at < ?", now).
		Order("expires_at ASC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return bookings, nil
}

// isUniqueViolation matches both the Postgres and SQLite phrasings, since
// tests run on the sqlite shim.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key value violates unique constraint") ||
		strings.Contains(msg, "UNIQUE constraint failed")
}
