package service

import (
	"context"
	"fmt"
	"html"

	"app/internal/email"

	"github.com/rs/zerolog"
)

// BookingInquiry is a visitor's consultation request, forwarded to the salon
// inbox. Nothing is persisted.
type BookingInquiry struct {
	Name    string
	Email   string
	Phone   string
	Service string
	Message string
}

// BookingService forwards booking inquiries by email.
type BookingService interface {
	Submit(ctx context.Context, inquiry BookingInquiry) error
}

type bookingService struct {
	sender email.Sender
	inbox  string
	logger zerolog.Logger
}

// NewBookingService creates a BookingService with a scoped logger.
func NewBookingService(sender email.Sender, inbox string, logger zerolog.Logger) BookingService {
	return &bookingService{
		sender: sender,
		inbox:  inbox,
		logger: logger.With().Str("service", "BookingService").Logger(),
	}
}

func (s *bookingService) Submit(ctx context.Context, inquiry BookingInquiry) error {
	subject := fmt.Sprintf("New booking inquiry: %s", inquiry.Service)
	body := fmt.Sprintf(
		`<h2>New booking inquiry</h2>
<p><strong>Name:</strong> %s</p>
<p><strong>Email:</strong> %s</p>
<p><strong>Phone:</strong> %s</p>
<p><strong>Service:</strong> %s</p>
<p><strong>Message:</strong></p>
<p>%s</p>`,
		html.EscapeString(inquiry.Name),
		html.EscapeString(inquiry.Email),
		html.EscapeString(inquiry.Phone),
		html.EscapeString(inquiry.Service),
		html.EscapeString(inquiry.Message),
	)

	if err := s.sender.Send(ctx, []string{s.inbox}, subject, body); err != nil {
		s.logger.Error().Err(err).Str("service_requested", inquiry.Service).Msg("Failed to deliver booking inquiry")
		return fmt.Errorf("deliver booking inquiry: %w", err)
	}
	return nil
}
