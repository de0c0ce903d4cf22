package handler

import (
	"net/http"
	"time"

	"app/internal/api/v1/dto"
	"app/internal/middleware"
	"app/internal/service"

	"github.com/rs/zerolog"
)

// QuotaHandler serves the read-only entitlement snapshot.
type QuotaHandler struct {
	ents   service.EntitlementService
	logger zerolog.Logger
}

// NewQuotaHandler creates a new QuotaHandler.
func NewQuotaHandler(ents service.EntitlementService, logger zerolog.Logger) *QuotaHandler {
	return &QuotaHandler{ents: ents, logger: logger}
}

// RegisterRoutes registers the quota endpoint.
func (h *QuotaHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware func(http.Handler) http.Handler) {
	mux.Handle("/quota", authMiddleware(http.HandlerFunc(h.Get)))
}

// Get returns the caller's current-month quota snapshot. It never mutates the
// ledger; a user who has never generated sees a zeroed snapshot.
func (h *QuotaHandler) Get(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.RequestIDFrom(r.Context())
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed", requestID)
		return
	}
	userID, ok := middleware.UserFrom(r.Context())
	if !ok || userID == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized", requestID)
		return
	}

	snap, err := h.ents.Snapshot(r.Context(), userID, time.Now())
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", userID).Msg("failed to load quota snapshot")
		writeError(w, http.StatusInternalServerError, "failed to load quota", requestID)
		return
	}

	writeJSON(w, http.StatusOK, dto.QuotaResponseDTO{
		UserID:        snap.UserID,
		PeriodStart:   snap.PeriodStart,
		FreeLimit:     snap.FreeLimit,
		FreeUsed:      snap.FreeUsed,
		FreeRemaining: snap.FreeRemaining,
		PaidCredits:   snap.PaidCredits,
		RequestID:     requestID,
	})
}
