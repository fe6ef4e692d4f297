package models

import "time"

// NameMaxLength is the longest display name a user can have
const NameMaxLength = 250

// User represents a registered diner
type User struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Ticket represents the single meal voucher issued to a user
type Ticket struct {
	ID      string    `json:"id"`
	UserID  string    `json:"user_id"`
	Created time.Time `json:"created"`
}

// Meal represents one redemption of a ticket
type Meal struct {
	ID       int64     `json:"id"`
	TicketID string    `json:"ticket_id"`
	Time     time.Time `json:"time"`
	ScanKey  *string   `json:"-"`
}

// Redemption is the outcome of a successful meal redemption
type Redemption struct {
	Meal
	Used      int `json:"used"`
	Remaining int `json:"remaining"`
}
