package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"meal-voucher-backend/internal/models"
	"meal-voucher-backend/internal/repository"

	"github.com/google/uuid"
)

// UserService handles user-related business logic
type UserService struct {
	userRepo UserStore
}

// NewUserService creates a new user service
func NewUserService(userRepo UserStore) *UserService {
	return &UserService{
		userRepo: userRepo,
	}
}

// CreateUser registers a user under a fresh id
func (s *UserService) CreateUser(ctx context.Context, name string) (*models.User, error) {
	name = strings.TrimSpace(name)
	if name == "" || utf8.RuneCountInString(name) > models.NameMaxLength {
		return nil, ErrInvalidName
	}

	user := &models.User{
		ID:   uuid.New().String(),
		Name: name,
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return user, nil
}

// DeleteUser removes a user. Unknown and malformed ids are ErrUserNotFound.
func (s *UserService) DeleteUser(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrUserNotFound
	}

	if err := s.userRepo.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to delete user: %w", err)
	}

	return nil
}
