package dto

// ErrorResponseDTO is the uniform error body.
type ErrorResponseDTO struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id"`
}
