package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"app/internal/api/v1/dto"
	"app/internal/config"
	"app/internal/middleware"
	"app/internal/model"
	"app/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/stripe/stripe-go/v82/webhook"
)

// Stripe recommends tolerating payloads up to 64KB; cap reads well above that.
const maxWebhookBody = 1 << 20

// BillingHandler serves checkout creation, the purchasable catalog, and the
// Stripe webhook.
type BillingHandler struct {
	cfg      *config.Config
	stripe   *service.StripeService
	validate *validator.Validate
	logger   zerolog.Logger
}

// NewBillingHandler creates a new BillingHandler.
func NewBillingHandler(cfg *config.Config, stripe *service.StripeService, validate *validator.Validate, logger zerolog.Logger) *BillingHandler {
	return &BillingHandler{cfg: cfg, stripe: stripe, validate: validate, logger: logger}
}

// RegisterRoutes registers the billing endpoints. The webhook and catalog are
// unauthenticated; checkout requires a signed-in user.
func (h *BillingHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware func(http.Handler) http.Handler) {
	mux.Handle("/billing/checkout", authMiddleware(http.HandlerFunc(h.Checkout)))
	mux.HandleFunc("/billing/config", h.Config)
	mux.HandleFunc("/billing/webhook", h.Webhook)
}

// Checkout creates a Stripe Checkout session for a credit pack or
// subscription tier and returns its hosted URL.
func (h *BillingHandler) Checkout(w http.ResponseWriter, r *http.Request) {
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
	email := middleware.EmailFrom(r.Context())

	var req dto.CheckoutRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request payload", requestID)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "mode must be payment or subscription and priceId is required", requestID)
		return
	}
	if !h.knownPrice(req.PriceID) {
		writeError(w, http.StatusBadRequest, "unknown priceId", requestID)
		return
	}

	url, sessionID, err := h.stripe.CreateCheckoutSession(r.Context(), userID, email, req.Mode, req.PriceID, req.Quantity)
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", userID).Msg("failed to create checkout session")
		writeError(w, http.StatusInternalServerError, "failed to create checkout session", requestID)
		return
	}

	writeJSON(w, http.StatusOK, dto.CheckoutResponseDTO{CheckoutURL: url, SessionID: sessionID, RequestID: requestID})
}

// Config returns the purchasable catalog so the client renders prices from
// the same source of truth the webhook credits against.
func (h *BillingHandler) Config(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.RequestIDFrom(r.Context())
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed", requestID)
		return
	}
	packs := []model.CreditPack(h.cfg.CreditPacks)
	tiers := []model.SubscriptionTier(h.cfg.SubscriptionTiers)
	if packs == nil {
		packs = []model.CreditPack{}
	}
	if tiers == nil {
		tiers = []model.SubscriptionTier{}
	}
	writeJSON(w, http.StatusOK, dto.BillingConfigResponseDTO{Packs: packs, Tiers: tiers, RequestID: requestID})
}

// Webhook verifies the Stripe signature over the raw body and applies the
// event. Duplicate deliveries are acknowledged without re-crediting.
func (h *BillingHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.RequestIDFrom(r.Context())
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed", requestID)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body", requestID)
		return
	}

	event, err := webhook.ConstructEvent(body, r.Header.Get("Stripe-Signature"), h.cfg.StripeWebhookSecret)
	if err != nil {
		h.logger.Warn().Err(err).Msg("webhook signature verification failed")
		writeError(w, http.StatusBadRequest, "invalid signature", requestID)
		return
	}

	duplicate, err := h.stripe.ProcessEvent(r.Context(), event)
	if err != nil {
		if errors.Is(err, service.ErrInvalidEventPayload) {
			h.logger.Warn().Err(err).Str("event_id", event.ID).Msg("webhook payload did not parse")
			writeError(w, http.StatusBadRequest, "invalid event payload", requestID)
			return
		}
		// Non-2xx makes Stripe retry the delivery; nothing was marked
		// processed, so the retry starts clean.
		h.logger.Error().Err(err).Str("event_id", event.ID).Str("event_type", string(event.Type)).Msg("failed to process webhook event")
		writeError(w, http.StatusInternalServerError, "failed to process event", requestID)
		return
	}

	writeJSON(w, http.StatusOK, dto.WebhookAckDTO{Received: true, Duplicate: duplicate, RequestID: requestID})
}

func (h *BillingHandler) knownPrice(priceID string) bool {
	for _, p := range h.cfg.CreditPacks {
		if p.PriceID == priceID {
			return true
		}
	}
	for _, t := range h.cfg.SubscriptionTiers {
		if t.PriceID == priceID {
			return true
		}
	}
	return false
}
