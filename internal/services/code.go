package services

import (
	"context"
	"fmt"

	"meal-voucher-backend/internal/qr"
)

// CodeService renders the QR code a diner shows at the checkpoint
type CodeService struct {
	tickets  *TicketService
	renderer CodeRenderer
}

// NewCodeService creates a new code service
func NewCodeService(tickets *TicketService, renderer CodeRenderer) *CodeService {
	return &CodeService{
		tickets:  tickets,
		renderer: renderer,
	}
}

// RenderTicket returns a PNG QR code carrying the ticket id.
// The ticket must exist before anything is encoded.
func (s *CodeService) RenderTicket(ctx context.Context, ticketID string) ([]byte, error) {
	if !qr.IsTicketID(ticketID) {
		return nil, ErrInvalidTicketID
	}

	ticket, err := s.tickets.GetTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	img, err := s.renderer.Render(ticket.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to render ticket %s: %w", ticket.ID, err)
	}

	return img, nil
}
