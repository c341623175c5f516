package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"ms-booking/internal/booking"
	"ms-booking/internal/coupon"
	"ms-booking/internal/inventory"
	"ms-booking/internal/logger"
	"ms-booking/internal/models"
	"ms-booking/internal/payment"
	"ms-booking/internal/reconcile"
	"ms-booking/internal/ticketcode"
	"ms-booking/internal/utils"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	Bookings      *booking.Service
	Coupons       *coupon.Service
	Reconciler    *reconcile.Reconciler
	QR            *ticketcode.QRGenerator
	WebhookSecret string
	Logger        *logger.Logger
}

func (h *Handler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	var req models.CreateBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	b, authURL, err := h.Bookings.Create(r.Context(), req)
	if err != nil {
		writeError(w, statusForError(err), "Could not place booking", err)
		return
	}

	writeJSON(w, http.StatusCreated, models.CreateBookingResponse{
		Booking:          b,
		AuthorizationURL: authURL,
	})
}

func (h *Handler) GetBooking(w http.ResponseWriter, r *http.Request) {
	bookingID := chi.URLParam(r, "bookingID")

	b, err := h.Bookings.Get(r.Context(), bookingID)
	if err != nil {
		writeError(w, statusForError(err), "Booking not found", err)
		return
	}

	writeJSON(w, http.StatusOK, b)
}

func (h *Handler) CancelBooking(w http.ResponseWriter, r *http.Request) {
	bookingID := chi.URLParam(r, "bookingID")

	b, err := h.Bookings.Cancel(r.Context(), bookingID)
	if err != nil {
		if errors.Is(err, booking.ErrIllegalStateTransition) && b != nil {
			// Terminal already; report the stored outcome.
			writeJSON(w, http.StatusConflict, b)
			return
		}
		writeError(w, statusForError(err), "Could not cancel booking", err)
		return
	}

	writeJSON(w, http.StatusOK, b)
}

// BookingQR renders the redemption QR for a paid booking.
func (h *Handler) BookingQR(w http.ResponseWriter, r *http.Request) {
	bookingID := chi.URLParam(r, "bookingID")

	b, err := h.Bookings.Get(r.Context(), bookingID)
	if err != nil {
		writeError(w, statusForError(err), "Booking not found", err)
		return
	}
	if b.Status != models.StatusPaid {
		writeError(w, http.StatusConflict, "Booking is not paid", booking.ErrIllegalStateTransition)
		return
	}

	png, err := h.QR.GenerateEncryptedQR(ticketcode.QRPayload{
		Code:      b.TicketCode,
		BookingID: b.ID,
		EventID:   b.EventID,
		TierID:    b.TierID,
		IssuedAt:  b.CreatedAt,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Could not render QR", err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	w.Write(png)
}

// ValidateCoupon re-derives a discount server-side; client totals are never
// trusted as input.
func (h *Handler) ValidateCoupon(w http.ResponseWriter, r *http.Request) {
	var req models.ValidateCouponRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Code == "" || req.EventID == "" {
		writeError(w, http.StatusBadRequest, "code and event_id are required", booking.ErrInvalidRequest)
		return
	}

	discount, err := h.Coupons.Preview(r.Context(), req.Code, req.EventID, req.Amount, time.Now())
	if err != nil {
		writeError(w, statusForError(err), "Coupon not applicable", err)
		return
	}

	writeJSON(w, http.StatusOK, models.ValidateCouponResponse{
		DiscountAmount: discount,
		Total:          req.Amount - discount,
	})
}

// VerifyPayment is the buyer-initiated verification poll after redirect.
func (h *Handler) VerifyPayment(w http.ResponseWriter, r *http.Request) {
	reference := r.URL.Query().Get("reference")
	if reference == "" {
		writeError(w, http.StatusBadRequest, "reference query parameter is required", booking.ErrInvalidRequest)
		return
	}

	result, err := h.Reconciler.Reconcile(r.Context(), reference)
	if err != nil {
		if errors.Is(err, payment.ErrPaymentVerificationTimeout) {
			// Not a failure; the provider was unreachable. Check again later.
			writeJSON(w, http.StatusAccepted, utils.ErrorResponse("Verification pending, check again later", err.Error()))
			return
		}
		writeError(w, statusForError(err), "Could not verify payment", err)
		return
	}

	resp := models.PaymentVerifyResponse{Booking: result.Booking}
	if result.Payment != nil {
		resp.Payment = &models.PaymentStatus{
			Reference:   reference,
			Status:      string(result.Payment.Status),
			AmountMinor: result.Payment.AmountMinor,
			Currency:    result.Payment.Currency,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(utils.ErrorResponse(message, err.Error()))
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, booking.ErrBookingNotFound),
		errors.Is(err, inventory.ErrTierNotFound),
		errors.Is(err, coupon.ErrCouponNotFound):
		return http.StatusNotFound
	case errors.Is(err, booking.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, inventory.ErrInventoryExhausted),
		errors.Is(err, coupon.ErrCouponExhausted),
		errors.Is(err, booking.ErrIllegalStateTransition),
		errors.Is(err, booking.ErrDuplicateRequest):
		return http.StatusConflict
	case errors.Is(err, inventory.ErrSaleWindowClosed),
		errors.Is(err, inventory.ErrTierInactive),
		errors.Is(err, inventory.ErrPerBuyerLimitExceeded),
		errors.Is(err, coupon.ErrCouponExpired),
		errors.Is(err, coupon.ErrMinPurchaseNotMet):
		return http.StatusUnprocessableEntity
	case errors.Is(err, payment.ErrPaymentInitiationFailed):
		return http.StatusBadGateway
	case errors.Is(err, ticketcode.ErrTicketCodeAllocationFailed):
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
