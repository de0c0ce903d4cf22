package config

import (
	"encoding/json"
	"fmt"

	"app/internal/model"

	"github.com/kelseyhightower/envconfig"
)

// CreditPackList decodes a JSON array of credit packs from the environment.
type CreditPackList []model.CreditPack

func (l *CreditPackList) Decode(value string) error {
	if value == "" {
		*l = nil
		return nil
	}
	return json.Unmarshal([]byte(value), (*[]model.CreditPack)(l))
}

// SubscriptionTierList decodes a JSON array of subscription tiers.
type SubscriptionTierList []model.SubscriptionTier

func (l *SubscriptionTierList) Decode(value string) error {
	if value == "" {
		*l = nil
		return nil
	}
	return json.Unmarshal([]byte(value), (*[]model.SubscriptionTier)(l))
}

type Config struct {
	Port        string `envconfig:"PORT" default:"8080"`
	Environment string `envconfig:"ENV" default:"production"`

	DBConnectionString string `envconfig:"DATABASE_URL" required:"true"`

	JWTSecret  string `envconfig:"JWT_SECRET" required:"true"`
	AdminToken string `envconfig:"ADMIN_TOKEN"`
	SiteOrigin string `envconfig:"PUBLIC_SITE_ORIGIN" default:"http://localhost:5173"`

	// Free-quota policy: generations per calendar month per user.
	FreeMonthlyLimit int `envconfig:"FREE_MONTHLY_LIMIT" default:"15"`

	GeminiAPIKey         string `envconfig:"GEMINI_API_KEY" required:"true"`
	GeminiModel          string `envconfig:"GEMINI_MODEL" default:"gemini-2.5-flash-image"`
	GenerationTimeoutSec int    `envconfig:"GENERATION_TIMEOUT_SEC" default:"60"`

	S3URL           string `envconfig:"S3_URL" required:"true"`
	S3Bucket        string `envconfig:"S3_BUCKET" required:"true"`
	S3Region        string `envconfig:"S3_REGION" required:"true"`
	S3AccessKey     string `envconfig:"S3_ACCESS_KEY" required:"true"`
	S3SecretKey     string `envconfig:"S3_SECRET_KEY" required:"true"`
	S3BucketPublic  bool   `envconfig:"S3_BUCKET_PUBLIC" default:"false"`
	SignedURLTTLSec int    `envconfig:"SIGNED_URL_TTL_SEC" default:"3600"`

	StripeSecretKey     string `envconfig:"STRIPE_SECRET_KEY" required:"true"`
	StripeWebhookSecret string `envconfig:"STRIPE_WEBHOOK_SECRET" required:"true"`

	// Billing catalog. The webhook price->credits maps are derived from these
	// at startup rather than parsed ad hoc per request.
	CreditPacks       CreditPackList       `envconfig:"STRIPE_CREDIT_PACKS_JSON"`
	SubscriptionTiers SubscriptionTierList `envconfig:"STRIPE_SUBSCRIPTION_TIERS_JSON"`

	// Booking inquiry email. Booking is disabled when SMTPHost is empty.
	SMTPHost     string `envconfig:"SMTP_HOST"`
	SMTPPort     int    `envconfig:"SMTP_PORT" default:"587"`
	SMTPUsername string `envconfig:"SMTP_USERNAME"`
	SMTPPassword string `envconfig:"SMTP_PASSWORD"`
	SMTPFrom     string `envconfig:"SMTP_FROM"`
	BookingInbox string `envconfig:"BOOKING_INBOX"`

	// Best-effort per-instance throttles, requests per minute per client IP.
	StyleRateLimitPerMin   int `envconfig:"STYLE_RATE_LIMIT_PER_MIN" default:"10"`
	BookingRateLimitPerMin int `envconfig:"BOOKING_RATE_LIMIT_PER_MIN" default:"5"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.FreeMonthlyLimit < 0 {
		return fmt.Errorf("FREE_MONTHLY_LIMIT must not be negative, got %d", c.FreeMonthlyLimit)
	}
	if c.GenerationTimeoutSec <= 0 {
		return fmt.Errorf("GENERATION_TIMEOUT_SEC must be positive, got %d", c.GenerationTimeoutSec)
	}
	for i, p := range c.CreditPacks {
		if p.PriceID == "" {
			return fmt.Errorf("credit pack %d: priceId is required", i)
		}
		if p.Credits <= 0 {
			return fmt.Errorf("credit pack %s: credits must be positive, got %d", p.PriceID, p.Credits)
		}
	}
	for i, t := range c.SubscriptionTiers {
		if t.PriceID == "" {
			return fmt.Errorf("subscription tier %d: priceId is required", i)
		}
		if t.MonthlyCredits <= 0 {
			return fmt.Errorf("subscription tier %s: monthlyCredits must be positive, got %d", t.PriceID, t.MonthlyCredits)
		}
	}
	return nil
}

// PackCredits maps a one-time price id to the credits it grants.
func (c *Config) PackCredits() map[string]int {
	m := make(map[string]int, len(c.CreditPacks))
	for _, p := range c.CreditPacks {
		m[p.PriceID] = p.Credits
	}
	return m
}

// TierCredits maps a subscription price id to its monthly credit grant.
func (c *Config) TierCredits() map[string]int {
	m := make(map[string]int, len(c.SubscriptionTiers))
	for _, t := range c.SubscriptionTiers {
		m[t.PriceID] = t.MonthlyCredits
	}
	return m
}
