package repository

import (
	"context"
	"errors"
	"fmt"

	"meal-voucher-backend/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TicketRepository handles database operations for tickets
type TicketRepository struct {
	db *pgxpool.Pool
}

// NewTicketRepository creates a new ticket repository
func NewTicketRepository(db *pgxpool.Pool) *TicketRepository {
	return &TicketRepository{db: db}
}

// CreateForUser inserts a ticket for its user in one transaction.
// It returns ErrNotFound when the user does not exist and ErrAlreadyExists
// when the user already holds a ticket. The user row stays locked until
// commit, so concurrent calls for the same user are serialized.
func (r *TicketRepository) CreateForUser(ctx context.Context, ticket *models.Ticket) error {
	return pgx.BeginTxFunc(ctx, r.db, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(tx pgx.Tx) error {
		var userID string
		err := tx.QueryRow(ctx, `SELECT id FROM users WHERE id = $1 FOR UPDATE`, ticket.UserID).Scan(&userID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return fmt.Errorf("user %s: %w", ticket.UserID, ErrNotFound)
			}
			return fmt.Errorf("failed to lock user: %w", err)
		}

		var exists bool
		err = tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM tickets WHERE user_id = $1)`, ticket.UserID).Scan(&exists)
		if err != nil {
			return fmt.Errorf("failed to check ticket existence: %w", err)
		}
		if exists {
			return fmt.Errorf("ticket for user %s: %w", ticket.UserID, ErrAlreadyExists)
		}

		query := `
			INSERT INTO tickets (id, user_id, created)
			VALUES ($1, $2, $3)
		`
		if _, err := tx.Exec(ctx, query, ticket.ID, ticket.UserID, ticket.Created); err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("ticket for user %s: %w", ticket.UserID, ErrAlreadyExists)
			}
			return fmt.Errorf("failed to create ticket: %w", err)
		}
		return nil
	})
}

// GetByID retrieves a ticket by ID
func (r *TicketRepository) GetByID(ctx context.Context, id string) (*models.Ticket, error) {
	query := `
		SELECT id, user_id, created
		FROM tickets
		WHERE id = $1
	`
	var ticket models.Ticket
	err := r.db.QueryRow(ctx, query, id).Scan(&ticket.ID, &ticket.UserID, &ticket.Created)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("ticket %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get ticket: %w", err)
	}
	return &ticket, nil
}

// List retrieves all tickets, oldest first
func (r *TicketRepository) List(ctx context.Context) ([]*models.Ticket, error) {
	query := `
		SELECT id, user_id, created
		FROM tickets
		ORDER BY created, id
	`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list tickets: %w", err)
	}
	defer rows.Close()

	tickets := make([]*models.Ticket, 0)
	for rows.Next() {
		var ticket models.Ticket
		if err := rows.Scan(&ticket.ID, &ticket.UserID, &ticket.Created); err != nil {
			return nil, fmt.Errorf("failed to scan ticket: %w", err)
		}
		tickets = append(tickets, &ticket)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tickets: %w", err)
	}

	return tickets, nil
}

// Delete deletes a ticket by ID. Its meals cascade.
func (r *TicketRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.Exec(ctx, `DELETE FROM tickets WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete ticket: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("ticket %s: %w", id, ErrNotFound)
	}
	return nil
}
