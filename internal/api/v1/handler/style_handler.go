package handler

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"

	"app/internal/api/v1/dto"
	"app/internal/middleware"
	"app/internal/model"
	"app/internal/service"
	"app/internal/util"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// StyleHandler serves metered try-on generation requests.
type StyleHandler struct {
	generations service.GenerationService
	validate    *validator.Validate
	logger      zerolog.Logger
}

// NewStyleHandler creates a new StyleHandler.
func NewStyleHandler(generations service.GenerationService, validate *validator.Validate, logger zerolog.Logger) *StyleHandler {
	return &StyleHandler{generations: generations, validate: validate, logger: logger}
}

// RegisterRoutes registers the style endpoint.
func (h *StyleHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware func(http.Handler) http.Handler) {
	mux.Handle("/style", authMiddleware(http.HandlerFunc(h.Generate)))
}

// Generate runs one metered edit. The debit happens before the model call and
// is not refunded on model failure, so a 502 still consumes a unit.
func (h *StyleHandler) Generate(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.RequestIDFrom(r.Context())
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed", requestID)
		return
	}
	userID, ok := middleware.UserFrom(r.Context())
	if !ok || userID == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized", requestID)
		return
	}

	var req dto.StyleRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request payload", requestID)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "imageBase64, preset, shade and length are required", requestID)
		return
	}

	payload, mimeType := util.ExtractBase64Payload(req.ImageBase64)
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		writeError(w, http.StatusBadRequest, "imageBase64 is not valid base64 image data", requestID)
		return
	}

	result, err := h.generations.Generate(r.Context(), userID, requestID,
		model.InlineImage{Data: data, MimeType: mimeType},
		model.StyleParams{Preset: req.Preset, Shade: req.Shade, Length: req.Length})
	if err != nil {
		var exhausted *service.QuotaExhaustedError
		switch {
		case errors.As(err, &exhausted):
			writeJSON(w, http.StatusPaymentRequired, dto.QuotaExhaustedDTO{
				Error:         "quota_exhausted",
				PeriodStart:   exhausted.Snapshot.PeriodStart.Format("2006-01-02"),
				FreeLimit:     exhausted.Snapshot.FreeLimit,
				FreeUsed:      exhausted.Snapshot.FreeUsed,
				FreeRemaining: exhausted.Snapshot.FreeRemaining,
				PaidCredits:   exhausted.Snapshot.PaidCredits,
				RequestID:     requestID,
			})
		case errors.Is(err, service.ErrModelFailure):
			h.logger.Warn().Err(err).Str("user_id", userID).Msg("image model failed")
			writeError(w, http.StatusBadGateway, "image generation failed", requestID)
		default:
			h.logger.Error().Err(err).Str("user_id", userID).Msg("generation failed")
			writeError(w, http.StatusInternalServerError, "generation failed", requestID)
		}
		return
	}

	writeJSON(w, http.StatusOK, dto.StyleResponseDTO{
		URL:         result.URL,
		ImageBase64: result.ImageBase64,
		MimeType:    result.MimeType,
		Budget:      string(result.Budget),
		RequestID:   requestID,
	})
}
