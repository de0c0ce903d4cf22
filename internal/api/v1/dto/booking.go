package dto

// BookingRequestDTO is a consultation inquiry forwarded to the salon inbox.
type BookingRequestDTO struct {
	Name    string `json:"name" validate:"required,max=200"`
	Email   string `json:"email" validate:"required,email"`
	Phone   string `json:"phone,omitempty" validate:"omitempty,max=40"`
	Service string `json:"service" validate:"required,max=200"`
	Message string `json:"message,omitempty" validate:"omitempty,max=4000"`
}

type BookingResponseDTO struct {
	OK        bool   `json:"ok"`
	RequestID string `json:"request_id"`
}
