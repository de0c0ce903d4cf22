package handler

import (
	"net/http"
	"strconv"

	"app/internal/api/v1/dto"
	"app/internal/middleware"
	"app/internal/service"

	"github.com/rs/zerolog"
)

const (
	defaultGenerationLimit = 20
	maxGenerationLimit     = 50
)

// GenerationsHandler exposes the recent-generations audit feed to staff.
type GenerationsHandler struct {
	generations service.GenerationService
	adminToken  string
	logger      zerolog.Logger
}

// NewGenerationsHandler creates a new GenerationsHandler.
func NewGenerationsHandler(generations service.GenerationService, adminToken string, logger zerolog.Logger) *GenerationsHandler {
	return &GenerationsHandler{generations: generations, adminToken: adminToken, logger: logger}
}

// RegisterRoutes registers the admin generations endpoint.
func (h *GenerationsHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/generations", h.List)
}

// List returns the newest audit events. Guarded by a static admin token; the
// route is disabled entirely when no token is configured.
func (h *GenerationsHandler) List(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.RequestIDFrom(r.Context())
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed", requestID)
		return
	}
	if h.adminToken == "" || r.Header.Get("X-Admin-Token") != h.adminToken {
		writeError(w, http.StatusUnauthorized, "unauthorized", requestID)
		return
	}

	limit := defaultGenerationLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer", requestID)
			return
		}
		limit = n
	}
	if limit > maxGenerationLimit {
		limit = maxGenerationLimit
	}

	events, urls, err := h.generations.ListRecent(r.Context(), limit)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to list generations")
		writeError(w, http.StatusInternalServerError, "failed to list generations", requestID)
		return
	}

	items := make([]dto.GenerationItemDTO, 0, len(events))
	for i, ev := range events {
		item := dto.GenerationItemDTO{
			ID:             ev.ID,
			UserID:         ev.UserID,
			Kind:           string(ev.Kind),
			Preset:         ev.Preset,
			Shade:          ev.Shade,
			Length:         ev.Length,
			RequestID:      ev.RequestID,
			OutputMimeType: ev.OutputMimeType,
			StoragePath:    ev.StoragePath,
			CreatedAt:      ev.CreatedAt,
		}
		if i < len(urls) {
			item.URL = urls[i]
		}
		items = append(items, item)
	}

	writeJSON(w, http.StatusOK, dto.GenerationListResponseDTO{Items: items, RequestID: requestID})
}
