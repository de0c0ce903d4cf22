package handler

import (
	"encoding/json"
	"net/http"

	"app/internal/api/v1/dto"
	"app/internal/middleware"
	"app/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// BookingHandler accepts consultation inquiries and forwards them to the
// salon inbox.
type BookingHandler struct {
	bookings service.BookingService
	validate *validator.Validate
	logger   zerolog.Logger
}

// NewBookingHandler creates a new BookingHandler.
func NewBookingHandler(bookings service.BookingService, validate *validator.Validate, logger zerolog.Logger) *BookingHandler {
	return &BookingHandler{bookings: bookings, validate: validate, logger: logger}
}

// RegisterRoutes registers the booking endpoint. Booking is open to
// anonymous visitors, so it sits behind a rate limiter rather than auth.
func (h *BookingHandler) RegisterRoutes(mux *http.ServeMux, limitMiddleware func(http.Handler) http.Handler) {
	mux.Handle("/booking", limitMiddleware(http.HandlerFunc(h.Submit)))
}

func (h *BookingHandler) Submit(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.RequestIDFrom(r.Context())
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed", requestID)
		return
	}

	var req dto.BookingRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request payload", requestID)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "name, a valid email and service are required", requestID)
		return
	}

	inquiry := service.BookingInquiry{
		Name:    req.Name,
		Email:   req.Email,
		Phone:   req.Phone,
		Service: req.Service,
		Message: req.Message,
	}
	if err := h.bookings.Submit(r.Context(), inquiry); err != nil {
		h.logger.Error().Err(err).Msg("failed to forward booking inquiry")
		writeError(w, http.StatusBadGateway, "failed to submit booking inquiry", requestID)
		return
	}

	writeJSON(w, http.StatusOK, dto.BookingResponseDTO{OK: true, RequestID: requestID})
}
