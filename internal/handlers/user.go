package handlers

import (
	"net/http"

	"meal-voucher-backend/internal/services"

	"github.com/rs/zerolog/log"
)

// UserHandler handles user-related HTTP requests
type UserHandler struct {
	userService *services.UserService
}

// NewUserHandler creates a new user handler
func NewUserHandler(userService *services.UserService) *UserHandler {
	return &UserHandler{
		userService: userService,
	}
}

// CreateUserRequest represents the request body for creating a user
type CreateUserRequest struct {
	Name string `json:"name"`
}

// CreateUser handles POST /api/v1/users
func (h *UserHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CreateUserRequest
	if err := decodeJSON(r, &req); err != nil {
		respondBodyError(w, err)
		return
	}

	user, err := h.userService.CreateUser(ctx, req.Name)
	if err != nil {
		respondServiceError(w, err, "Failed to create user", nil)
		return
	}

	log.Info().
		Str("user_id", user.ID).
		Msg("User created")

	respondJSON(w, http.StatusCreated, user)
}

// DeleteUser handles DELETE /api/v1/users/{id} and DELETE /api/v1/users
func (h *UserHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, err := stringID(r)
	if err != nil {
		respondBodyError(w, err)
		return
	}

	if err := h.userService.DeleteUser(ctx, userID); err != nil {
		respondServiceError(w, err, "Failed to delete user", map[string]interface{}{"user_id": userID})
		return
	}

	log.Info().
		Str("user_id", userID).
		Msg("User deleted")

	w.WriteHeader(http.StatusNoContent)
}
