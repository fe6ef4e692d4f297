package services

import "errors"

// Not found
var (
	ErrUserNotFound   = errors.New("user not found")
	ErrTicketNotFound = errors.New("ticket not found")
	ErrMealNotFound   = errors.New("meal not found")
	ErrScanNotFound   = errors.New("no archived scan for meal")
)

// Conflicts and limits
var (
	ErrTicketExists     = errors.New("user already has a ticket")
	ErrMealLimitReached = errors.New("meal limit reached for ticket")
)

// Validation
var (
	ErrInvalidName     = errors.New("name must be between 1 and 250 characters")
	ErrInvalidUserID   = errors.New("invalid user id")
	ErrInvalidTicketID = errors.New("invalid ticket id")
)
