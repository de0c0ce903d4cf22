package dto

import "time"

// QuotaResponseDTO is the read-only quota projection.
type QuotaResponseDTO struct {
	UserID        string    `json:"user_id"`
	PeriodStart   time.Time `json:"period_start"`
	FreeLimit     int       `json:"free_limit"`
	FreeUsed      int       `json:"free_used"`
	FreeRemaining int       `json:"free_remaining"`
	PaidCredits   int       `json:"paid_credits"`
	RequestID     string    `json:"request_id"`
}
