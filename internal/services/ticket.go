package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"meal-voucher-backend/internal/models"
	"meal-voucher-backend/internal/qr"
	"meal-voucher-backend/internal/repository"

	"github.com/google/uuid"
)

// TicketService issues and revokes meal tickets
type TicketService struct {
	ticketRepo TicketStore
	now        func() time.Time
}

// NewTicketService creates a new ticket service
func NewTicketService(ticketRepo TicketStore) *TicketService {
	return &TicketService{
		ticketRepo: ticketRepo,
		now:        time.Now,
	}
}

// IssueTicket creates the ticket of a user.
// Returns ErrUserNotFound for unknown users and ErrTicketExists when the
// user already holds one.
func (s *TicketService) IssueTicket(ctx context.Context, userID string) (*models.Ticket, error) {
	if _, err := uuid.Parse(userID); err != nil {
		return nil, ErrInvalidUserID
	}

	ticket := &models.Ticket{
		ID:      uuid.New().String(),
		UserID:  userID,
		Created: s.now().UTC().Truncate(time.Microsecond),
	}

	if err := s.ticketRepo.CreateForUser(ctx, ticket); err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return nil, ErrUserNotFound
		case errors.Is(err, repository.ErrAlreadyExists):
			return nil, ErrTicketExists
		}
		return nil, fmt.Errorf("failed to issue ticket: %w", err)
	}

	return ticket, nil
}

// ListTickets returns every issued ticket
func (s *TicketService) ListTickets(ctx context.Context) ([]*models.Ticket, error) {
	tickets, err := s.ticketRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list tickets: %w", err)
	}
	return tickets, nil
}

// GetTicket returns a ticket by id
func (s *TicketService) GetTicket(ctx context.Context, id string) (*models.Ticket, error) {
	if !qr.IsTicketID(id) {
		return nil, ErrTicketNotFound
	}

	ticket, err := s.ticketRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrTicketNotFound
		}
		return nil, fmt.Errorf("failed to get ticket: %w", err)
	}
	return ticket, nil
}

// RevokeTicket deletes a ticket together with its meals
func (s *TicketService) RevokeTicket(ctx context.Context, id string) error {
	if !qr.IsTicketID(id) {
		return ErrTicketNotFound
	}

	if err := s.ticketRepo.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrTicketNotFound
		}
		return fmt.Errorf("failed to revoke ticket: %w", err)
	}
	return nil
}
