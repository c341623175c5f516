package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"ms-booking/internal/booking"
	"ms-booking/internal/coupon"
	"ms-booking/internal/inventory"
	"ms-booking/internal/logger"
	"ms-booking/internal/models"
	"ms-booking/internal/payment"
	"ms-booking/internal/ticketcode"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Stub implementations backed by in-memory maps, enough to drive the
// handlers end to end without a database.

type stubBookingDB struct {
	bookings map[string]*models.Booking
}

func newStubBookingDB() *stubBookingDB {
	return &stubBookingDB{bookings: make(map[string]*models.Booking)}
}

func (s *stubBookingDB) CreateBooking(_ context.Context, b *models.Booking) error {
	copy := *b
	s.bookings[b.ID] = &copy
	return nil
}

func (s *stubBookingDB) GetBookingByID(_ context.Context, id string) (*models.Booking, error) {
	b, ok := s.bookings[id]
	if !ok {
		return nil, booking.ErrBookingNotFound
	}
	copy := *b
	return &copy, nil
}

func (s *stubBookingDB) GetBookingByReference(_ context.Context, reference string) (*models.Booking, error) {
	for _, b := range s.bookings {
		if b.PaymentRef == reference {
			copy := *b
			return &copy, nil
		}
	}
	return nil, booking.ErrBookingNotFound
}

func (s *stubBookingDB) SetPaymentReference(_ context.Context, id, reference string) (bool, error) {
	b, ok := s.bookings[id]
	if !ok || b.Status != models.StatusPending {
		return false, nil
	}
	b.PaymentRef = reference
	return true, nil
}

func (s *stubBookingDB) MarkPaid(_ context.Context, id, ticketCode string) (bool, bool, error) {
	b, ok := s.bookings[id]
	if !ok || b.Status != models.StatusPending {
		return false, false, nil
	}
	b.Status = models.StatusPaid
	b.TicketCode = ticketCode
	return true, false, nil
}

func (s *stubBookingDB) MarkTerminal(_ context.Context, id, status string) (bool, error) {
	b, ok := s.bookings[id]
	if !ok || b.Status != models.StatusPending {
		return false, nil
	}
	b.Status = status
	return true, nil
}

func (s *stubBookingDB) ListExpiredPending(_ context.Context, now time.Time, limit int) ([]models.Booking, error) {
	return nil, nil
}

type stubInventory struct {
	tier *models.TicketTier
}

func (s *stubInventory) GetTier(_ context.Context, tierID string) (*models.TicketTier, error) {
	if s.tier == nil || s.tier.ID != tierID {
		return nil, inventory.ErrTierNotFound
	}
	return s.tier, nil
}

func (s *stubInventory) Reserve(_ context.Context, _ string, _ int64, _ string) (string, error) {
	return "inv-hold-1", nil
}

func (s *stubInventory) Confirm(_ context.Context, _ string) error { return nil }
func (s *stubInventory) Release(_ context.Context, _ string) error { return nil }

type stubCouponDB struct {
	coupon *models.Coupon
}

func (s *stubCouponDB) GetByCode(_ context.Context, eventID, code string) (*models.Coupon, error) {
	if s.coupon == nil || s.coupon.EventID != eventID || s.coupon.Code != code {
		return nil, coupon.ErrCouponNotFound
	}
	return s.coupon, nil
}

func (s *stubCouponDB) ReserveUseAndHold(_ context.Context, _ string, _ *models.CouponHold) (bool, error) {
	return true, nil
}

func (s *stubCouponDB) ConfirmHold(_ context.Context, _ string) (bool, error) { return true, nil }
func (s *stubCouponDB) ReleaseHold(_ context.Context, _ string) (bool, error) { return true, nil }
func (s *stubCouponDB) GetHold(_ context.Context, _ string) (*models.CouponHold, error) {
	return nil, coupon.ErrHoldNotFound
}

type stubGateway struct{}

func (s *stubGateway) Initiate(_ context.Context, bookingID string, _ int64, _ string) (*payment.InitiateResult, error) {
	return &payment.InitiateResult{Reference: "cs_" + bookingID, AuthorizationURL: "https://pay.example/" + bookingID}, nil
}

func (s *stubGateway) Verify(_ context.Context, _ string) (*payment.VerifyResult, error) {
	return &payment.VerifyResult{Status: payment.StatusSuccess}, nil
}

type stubLock struct{}

func (s *stubLock) Acquire(_, _ string) (bool, error) { return true, nil }
func (s *stubLock) Release(_, _ string) error         { return nil }

type stubPublisher struct{}

func (s *stubPublisher) PublishBookingCreated(models.Booking) error { return nil }
func (s *stubPublisher) PublishBookingPaid(models.Booking) error    { return nil }
func (s *stubPublisher) PublishBookingClosed(models.Booking) error  { return nil }

func setupHandler(t *testing.T) (*Handler, *stubBookingDB) {
	now := time.Now()
	tier := &models.TicketTier{
		ID:             "tier-1",
		EventID:        "event-1",
		Name:           "General Admission",
		UnitPriceMinor: 5000,
		Currency:       "USD",
		MaxPerBuyer:    4,
		SaleFrom:       now.Add(-time.Hour),
		SaleUntil:      now.Add(time.Hour),
		Active:         true,
	}
	couponRow := &models.Coupon{
		ID:            "coupon-1",
		EventID:       "event-1",
		Code:          "SAVE10",
		DiscountKind:  models.DiscountPercentage,
		DiscountValue: 10,
		ValidFrom:     now.Add(-time.Hour),
		ValidUntil:    now.Add(time.Hour),
		Active:        true,
	}

	log := logger.NewLogger()
	db := newStubBookingDB()

	couponSvc := coupon.NewService(&stubCouponDB{coupon: couponRow}, 15*time.Minute, log)
	bookingSvc := booking.NewService(
		db, &stubInventory{tier: tier}, couponSvc, &stubGateway{},
		ticketcode.NewGenerator(), &stubLock{}, &stubPublisher{},
		15*time.Minute, 5, log,
	)

	return &Handler{
		Bookings: bookingSvc,
		Coupons:  couponSvc,
		QR:       ticketcode.NewQRGenerator("test-secret"),
		Logger:   log,
	}, db
}

func router(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Post("/bookings", h.CreateBooking)
	r.Get("/bookings/{bookingID}", h.GetBooking)
	r.Delete("/bookings/{bookingID}", h.CancelBooking)
	r.Get("/bookings/{bookingID}/qr", h.BookingQR)
	r.Post("/coupons/validate", h.ValidateCoupon)
	return r
}

func TestCreateBookingEndpoint(t *testing.T) {
	h, _ := setupHandler(t)
	r := router(h)

	body, _ := json.Marshal(models.CreateBookingRequest{
		TierID:     "tier-1",
		Quantity:   2,
		BuyerName:  "Ada Lovelace",
		BuyerEmail: "ada@example.com",
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/bookings", bytes.NewReader(body)))

	require.Equal(t, http.StatusCreated, rec.Code)

	var resp models.CreateBookingResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, models.StatusPending, resp.Booking.Status)
	assert.Equal(t, int64(10000), resp.Booking.TotalMinor)
	assert.NotEmpty(t, resp.AuthorizationURL)
}

func TestCreateBookingEndpoint_BadBody(t *testing.T) {
	h, _ := setupHandler(t)
	r := router(h)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/bookings", bytes.NewReader([]byte("{not json"))))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetBookingEndpoint_NotFound(t *testing.T) {
	h, _ := setupHandler(t)
	r := router(h)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/bookings/no-such-id", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCancelBookingEndpoint_TerminalConflict(t *testing.T) {
	h, db := setupHandler(t)
	r := router(h)

	db.bookings["b-1"] = &models.Booking{ID: "b-1", Status: models.StatusPaid, TicketCode: "TKT4567ABC"}

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/bookings/b-1", nil))

	// The stored outcome comes back with the conflict.
	require.Equal(t, http.StatusConflict, rec.Code)

	var b models.Booking
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&b))
	assert.Equal(t, models.StatusPaid, b.Status)
}

func TestBookingQREndpoint(t *testing.T) {
	h, db := setupHandler(t)
	r := router(h)

	db.bookings["b-1"] = &models.Booking{
		ID: "b-1", EventID: "event-1", TierID: "tier-1",
		Status: models.StatusPaid, TicketCode: "TKT4567ABC",
	}
	db.bookings["b-2"] = &models.Booking{ID: "b-2", Status: models.StatusPending}

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/bookings/b-1/qr", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))

	// Unpaid bookings have no ticket to render.
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/bookings/b-2/qr", nil))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestValidateCouponEndpoint(t *testing.T) {
	h, _ := setupHandler(t)
	r := router(h)

	body, _ := json.Marshal(models.ValidateCouponRequest{
		Code:    "save10",
		EventID: "event-1",
		Amount:  15000,
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/coupons/validate", bytes.NewReader(body)))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp models.ValidateCouponResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, int64(1500), resp.DiscountAmount)
	assert.Equal(t, int64(13500), resp.Total)
}

func TestValidateCouponEndpoint_UnknownCode(t *testing.T) {
	h, _ := setupHandler(t)
	r := router(h)

	body, _ := json.Marshal(models.ValidateCouponRequest{
		Code:    "NOPE",
		EventID: "event-1",
		Amount:  15000,
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/coupons/validate", bytes.NewReader(body)))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestValidateCouponEndpoint_MissingFields(t *testing.T) {
	h, _ := setupHandler(t)
	r := router(h)

	body, _ := json.Marshal(models.ValidateCouponRequest{Code: "SAVE10"})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/coupons/validate", bytes.NewReader(body)))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
