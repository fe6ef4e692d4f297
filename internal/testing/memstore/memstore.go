// Package memstore provides in-memory stand-ins for the Postgres
// repositories and the S3 scan archive. They honor the same contracts
// (sentinel errors, cascades, atomic limit checks) and are meant for tests.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"meal-voucher-backend/internal/models"
	"meal-voucher-backend/internal/repository"
)

// Store holds users, tickets and meals behind one lock
type Store struct {
	mu         sync.Mutex
	users      map[string]models.User
	tickets    map[string]models.Ticket
	meals      map[int64]models.Meal
	nextMealID int64
}

// New creates an empty store
func New() *Store {
	return &Store{
		users:   make(map[string]models.User),
		tickets: make(map[string]models.Ticket),
		meals:   make(map[int64]models.Meal),
	}
}

// Users returns the user repository view of the store
func (s *Store) Users() *Users { return &Users{s: s} }

// Tickets returns the ticket repository view of the store
func (s *Store) Tickets() *Tickets { return &Tickets{s: s} }

// Meals returns the meal repository view of the store
func (s *Store) Meals() *Meals { return &Meals{s: s} }

// deleteTicketLocked removes a ticket and its meals. s.mu must be held.
func (s *Store) deleteTicketLocked(id string) {
	delete(s.tickets, id)
	for mealID, meal := range s.meals {
		if meal.TicketID == id {
			delete(s.meals, mealID)
		}
	}
}

// Users implements the user repository contract
type Users struct{ s *Store }

// Create stores a user; ErrAlreadyExists if the id is taken
func (u *Users) Create(_ context.Context, user *models.User) error {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()

	if _, ok := u.s.users[user.ID]; ok {
		return fmt.Errorf("user %s: %w", user.ID, repository.ErrAlreadyExists)
	}
	u.s.users[user.ID] = *user
	return nil
}

// GetByID returns a user or ErrNotFound
func (u *Users) GetByID(_ context.Context, id string) (*models.User, error) {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()

	user, ok := u.s.users[id]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", id, repository.ErrNotFound)
	}
	return &user, nil
}

// Delete removes a user together with its ticket and meals
func (u *Users) Delete(_ context.Context, id string) error {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()

	if _, ok := u.s.users[id]; !ok {
		return fmt.Errorf("user %s: %w", id, repository.ErrNotFound)
	}
	delete(u.s.users, id)
	for ticketID, ticket := range u.s.tickets {
		if ticket.UserID == id {
			u.s.deleteTicketLocked(ticketID)
		}
	}
	return nil
}

// Tickets implements the ticket repository contract
type Tickets struct{ s *Store }

// CreateForUser stores the ticket of an existing user that has none yet
func (t *Tickets) CreateForUser(_ context.Context, ticket *models.Ticket) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	if _, ok := t.s.users[ticket.UserID]; !ok {
		return fmt.Errorf("user %s: %w", ticket.UserID, repository.ErrNotFound)
	}
	for _, existing := range t.s.tickets {
		if existing.UserID == ticket.UserID {
			return fmt.Errorf("ticket for user %s: %w", ticket.UserID, repository.ErrAlreadyExists)
		}
	}
	t.s.tickets[ticket.ID] = *ticket
	return nil
}

// GetByID returns a ticket or ErrNotFound
func (t *Tickets) GetByID(_ context.Context, id string) (*models.Ticket, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	ticket, ok := t.s.tickets[id]
	if !ok {
		return nil, fmt.Errorf("ticket %s: %w", id, repository.ErrNotFound)
	}
	return &ticket, nil
}

// List returns every ticket ordered by creation time
func (t *Tickets) List(_ context.Context) ([]*models.Ticket, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	tickets := make([]*models.Ticket, 0, len(t.s.tickets))
	for _, ticket := range t.s.tickets {
		ticket := ticket
		tickets = append(tickets, &ticket)
	}
	sort.Slice(tickets, func(i, j int) bool {
		if tickets[i].Created.Equal(tickets[j].Created) {
			return tickets[i].ID < tickets[j].ID
		}
		return tickets[i].Created.Before(tickets[j].Created)
	})
	return tickets, nil
}

// Delete removes a ticket together with its meals
func (t *Tickets) Delete(_ context.Context, id string) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	if _, ok := t.s.tickets[id]; !ok {
		return fmt.Errorf("ticket %s: %w", id, repository.ErrNotFound)
	}
	t.s.deleteTicketLocked(id)
	return nil
}

// Meals implements the meal repository contract
type Meals struct{ s *Store }

// CreateWithinLimit records a meal unless the ticket has reached limit
func (m *Meals) CreateWithinLimit(_ context.Context, ticketID string, at time.Time, limit int) (*models.Meal, int, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	if _, ok := m.s.tickets[ticketID]; !ok {
		return nil, 0, fmt.Errorf("ticket %s: %w", ticketID, repository.ErrNotFound)
	}

	count := 0
	for _, meal := range m.s.meals {
		if meal.TicketID == ticketID {
			count++
		}
	}
	if count >= limit {
		return nil, 0, fmt.Errorf("ticket %s has %d of %d meals: %w", ticketID, count, limit, repository.ErrLimitReached)
	}

	m.s.nextMealID++
	meal := models.Meal{ID: m.s.nextMealID, TicketID: ticketID, Time: at}
	m.s.meals[meal.ID] = meal
	return &meal, count + 1, nil
}

// GetByID returns a meal or ErrNotFound
func (m *Meals) GetByID(_ context.Context, id int64) (*models.Meal, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	meal, ok := m.s.meals[id]
	if !ok {
		return nil, fmt.Errorf("meal %d: %w", id, repository.ErrNotFound)
	}
	return &meal, nil
}

// ListByTicket returns the meals of a ticket, newest first
func (m *Meals) ListByTicket(_ context.Context, ticketID string) ([]*models.Meal, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	meals := make([]*models.Meal, 0)
	for _, meal := range m.s.meals {
		meal := meal
		if meal.TicketID == ticketID {
			meals = append(meals, &meal)
		}
	}
	sort.Slice(meals, func(i, j int) bool { return meals[i].ID > meals[j].ID })
	return meals, nil
}

// UpdateScanKey remembers where the scan of a meal was archived
func (m *Meals) UpdateScanKey(_ context.Context, id int64, key string) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	meal, ok := m.s.meals[id]
	if !ok {
		return fmt.Errorf("meal %d: %w", id, repository.ErrNotFound)
	}
	meal.ScanKey = &key
	m.s.meals[id] = meal
	return nil
}

// Delete removes a meal
func (m *Meals) Delete(_ context.Context, id int64) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	if _, ok := m.s.meals[id]; !ok {
		return fmt.Errorf("meal %d: %w", id, repository.ErrNotFound)
	}
	delete(m.s.meals, id)
	return nil
}
