package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"meal-voucher-backend/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// MealRepository handles database operations for meal redemptions
type MealRepository struct {
	db *pgxpool.Pool
}

// NewMealRepository creates a new meal repository
func NewMealRepository(db *pgxpool.Pool) *MealRepository {
	return &MealRepository{db: db}
}

// CreateWithinLimit records a meal for the ticket unless the ticket already
// has limit meals. It returns the new meal and the number of meals the
// ticket has after the insert.
//
// The ticket row is locked FOR UPDATE, so the count and the insert cannot
// interleave with another redemption of the same ticket.
func (r *MealRepository) CreateWithinLimit(ctx context.Context, ticketID string, at time.Time, limit int) (*models.Meal, int, error) {
	var (
		meal *models.Meal
		used int
	)

	err := pgx.BeginTxFunc(ctx, r.db, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(tx pgx.Tx) error {
		var id string
		err := tx.QueryRow(ctx, `SELECT id FROM tickets WHERE id = $1 FOR UPDATE`, ticketID).Scan(&id)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return fmt.Errorf("ticket %s: %w", ticketID, ErrNotFound)
			}
			return fmt.Errorf("failed to lock ticket: %w", err)
		}

		var count int
		if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM meals WHERE ticket_id = $1`, ticketID).Scan(&count); err != nil {
			return fmt.Errorf("failed to count meals: %w", err)
		}
		if count >= limit {
			return fmt.Errorf("ticket %s has %d of %d meals: %w", ticketID, count, limit, ErrLimitReached)
		}

		m := models.Meal{TicketID: ticketID, Time: at}
		query := `
			INSERT INTO meals (ticket_id, time)
			VALUES ($1, $2)
			RETURNING id
		`
		if err := tx.QueryRow(ctx, query, ticketID, at).Scan(&m.ID); err != nil {
			return fmt.Errorf("failed to create meal: %w", err)
		}

		meal = &m
		used = count + 1
		return nil
	})
	if err != nil {
		return nil, 0, err
	}

	return meal, used, nil
}

// GetByID retrieves a meal by ID
func (r *MealRepository) GetByID(ctx context.Context, id int64) (*models.Meal, error) {
	query := `
		SELECT id, ticket_id, time, scan_key
		FROM meals
		WHERE id = $1
	`
	var meal models.Meal
	err := r.db.QueryRow(ctx, query, id).Scan(&meal.ID, &meal.TicketID, &meal.Time, &meal.ScanKey)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("meal %d: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get meal: %w", err)
	}
	return &meal, nil
}

// ListByTicket retrieves the meals of a ticket, newest first
func (r *MealRepository) ListByTicket(ctx context.Context, ticketID string) ([]*models.Meal, error) {
	query := `
		SELECT id, ticket_id, time, scan_key
		FROM meals
		WHERE ticket_id = $1
		ORDER BY time DESC, id DESC
	`
	rows, err := r.db.Query(ctx, query, ticketID)
	if err != nil {
		return nil, fmt.Errorf("failed to list meals: %w", err)
	}
	defer rows.Close()

	meals := make([]*models.Meal, 0)
	for rows.Next() {
		var meal models.Meal
		if err := rows.Scan(&meal.ID, &meal.TicketID, &meal.Time, &meal.ScanKey); err != nil {
			return nil, fmt.Errorf("failed to scan meal: %w", err)
		}
		meals = append(meals, &meal)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating meals: %w", err)
	}

	return meals, nil
}

// UpdateScanKey stores the archive object key of the scan behind a meal
func (r *MealRepository) UpdateScanKey(ctx context.Context, id int64, key string) error {
	result, err := r.db.Exec(ctx, `UPDATE meals SET scan_key = $1 WHERE id = $2`, key, id)
	if err != nil {
		return fmt.Errorf("failed to update meal scan_key: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("meal %d: %w", id, ErrNotFound)
	}
	return nil
}

// Delete deletes a meal by ID
func (r *MealRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.Exec(ctx, `DELETE FROM meals WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete meal: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("meal %d: %w", id, ErrNotFound)
	}
	return nil
}
