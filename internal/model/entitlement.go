package model

import "time"

// Budget identifies which balance a generation draws down.
type Budget string

const (
	BudgetFree       Budget = "free"
	BudgetPaidCredit Budget = "paid_credit"
)

// UserEntitlement is the per-user quota row. FreeUsed only has meaning
// relative to PeriodStart: a row stamped with an earlier month reads as
// FreeUsed=0 until the next debit rewrites it.
type UserEntitlement struct {
	UserID      string    `db:"user_id" json:"user_id"`
	PeriodStart time.Time `db:"period_start" json:"period_start"`
	FreeUsed    int       `db:"free_used" json:"free_used"`
	PaidCredits int       `db:"paid_credits" json:"paid_credits"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// QuotaSnapshot is the read-only projection returned by the quota endpoint
// and embedded in quota-exhausted responses.
type QuotaSnapshot struct {
	UserID        string    `json:"user_id"`
	PeriodStart   time.Time `json:"period_start"`
	FreeLimit     int       `json:"free_limit"`
	FreeUsed      int       `json:"free_used"`
	FreeRemaining int       `json:"free_remaining"`
	PaidCredits   int       `json:"paid_credits"`
}

// CreditGrant is the financial effect of one payment event.
type CreditGrant struct {
	UserID      string
	Credits     int
	PeriodStart time.Time
}

// SubscriptionMapping attributes recurring invoice events (which only carry
// a subscription id) back to a user.
type SubscriptionMapping struct {
	SubscriptionID string    `db:"subscription_id" json:"subscription_id"`
	UserID         string    `db:"user_id" json:"user_id"`
	Status         string    `db:"status" json:"status"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// MonthStartUTC returns the first day (UTC midnight) of t's calendar month.
func MonthStartUTC(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), 1, 0, 0, 0, 0, time.UTC)
}
