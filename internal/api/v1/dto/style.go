package dto

// StyleRequestDTO is a try-on generation request. ImageBase64 accepts a data
// URL or raw base64.
type StyleRequestDTO struct {
	ImageBase64 string `json:"imageBase64" validate:"required"`
	Preset      string `json:"preset" validate:"required,max=120"`
	Shade       string `json:"shade" validate:"required,max=120"`
	Length      string `json:"length" validate:"required,max=120"`
}

// StyleResponseDTO is the successful generation result. URL is empty when
// artifact persistence failed, in which case ImageBase64 carries the output.
type StyleResponseDTO struct {
	URL         string `json:"url,omitempty"`
	ImageBase64 string `json:"imageBase64,omitempty"`
	MimeType    string `json:"mimeType"`
	Budget      string `json:"budget"`
	RequestID   string `json:"request_id"`
}

// QuotaExhaustedDTO is the 402 body: the quota snapshot the client renders
// into a purchase prompt.
type QuotaExhaustedDTO struct {
	Error         string `json:"error"`
	PeriodStart   string `json:"period_start"`
	FreeLimit     int    `json:"free_limit"`
	FreeUsed      int    `json:"free_used"`
	FreeRemaining int    `json:"free_remaining"`
	PaidCredits   int    `json:"paid_credits"`
	RequestID     string `json:"request_id"`
}
