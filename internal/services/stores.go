package services

import (
	"context"
	"time"

	"meal-voucher-backend/internal/models"
)

// UserStore persists users
type UserStore interface {
	Create(ctx context.Context, user *models.User) error
	Delete(ctx context.Context, id string) error
}

// TicketStore persists tickets. CreateForUser must check the owner and
// the one-ticket-per-user rule atomically with the insert.
type TicketStore interface {
	CreateForUser(ctx context.Context, ticket *models.Ticket) error
	GetByID(ctx context.Context, id string) (*models.Ticket, error)
	List(ctx context.Context) ([]*models.Ticket, error)
	Delete(ctx context.Context, id string) error
}

// MealStore persists meal redemptions. CreateWithinLimit must count and
// insert atomically per ticket.
type MealStore interface {
	CreateWithinLimit(ctx context.Context, ticketID string, at time.Time, limit int) (*models.Meal, int, error)
	GetByID(ctx context.Context, id int64) (*models.Meal, error)
	ListByTicket(ctx context.Context, ticketID string) ([]*models.Meal, error)
	UpdateScanKey(ctx context.Context, id int64, key string) error
	Delete(ctx context.Context, id int64) error
}

// ScanArchive keeps copies of accepted scan images
type ScanArchive interface {
	Put(ctx context.Context, key, contentType string, data []byte) error
	PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// MealNotifier is told about every redemption outcome
type MealNotifier interface {
	MealRedeemed(redemption *models.Redemption)
	MealRejected(ticketID, reason string)
}

// Notifiers passes every outcome to each notifier in order
type Notifiers []MealNotifier

// MealRedeemed implements MealNotifier
func (n Notifiers) MealRedeemed(redemption *models.Redemption) {
	for _, notifier := range n {
		notifier.MealRedeemed(redemption)
	}
}

// MealRejected implements MealNotifier
func (n Notifiers) MealRejected(ticketID, reason string) {
	for _, notifier := range n {
		notifier.MealRejected(ticketID, reason)
	}
}

// CodeRenderer turns text into a QR code image
type CodeRenderer interface {
	Render(text string) ([]byte, error)
}
