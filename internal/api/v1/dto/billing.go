package dto

import "app/internal/model"

// CheckoutRequestDTO creates a Stripe checkout session.
type CheckoutRequestDTO struct {
	Mode     string `json:"mode" validate:"required,oneof=payment subscription"`
	PriceID  string `json:"priceId" validate:"required"`
	Quantity int64  `json:"quantity,omitempty" validate:"omitempty,min=1,max=99"`
}

type CheckoutResponseDTO struct {
	CheckoutURL string `json:"checkoutUrl"`
	SessionID   string `json:"sessionId"`
	RequestID   string `json:"request_id"`
}

// BillingConfigResponseDTO is the purchasable catalog for the client UI.
type BillingConfigResponseDTO struct {
	Packs     []model.CreditPack       `json:"packs"`
	Tiers     []model.SubscriptionTier `json:"tiers"`
	RequestID string                   `json:"request_id"`
}

// WebhookAckDTO acknowledges a webhook delivery.
type WebhookAckDTO struct {
	Received  bool   `json:"received"`
	Duplicate bool   `json:"duplicate,omitempty"`
	RequestID string `json:"request_id"`
}
