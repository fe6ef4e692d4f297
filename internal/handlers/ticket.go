package handlers

import (
	"net/http"

	"meal-voucher-backend/internal/services"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

// TicketHandler handles ticket-related HTTP requests
type TicketHandler struct {
	ticketService *services.TicketService
	mealService   *services.MealService
}

// NewTicketHandler creates a new ticket handler
func NewTicketHandler(ticketService *services.TicketService, mealService *services.MealService) *TicketHandler {
	return &TicketHandler{
		ticketService: ticketService,
		mealService:   mealService,
	}
}

// IssueTicketRequest represents the request body for issuing a ticket
type IssueTicketRequest struct {
	UserID string `json:"user_id"`
}

// IssueTicket handles POST /api/v1/tickets
func (h *TicketHandler) IssueTicket(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req IssueTicketRequest
	if err := decodeJSON(r, &req); err != nil {
		respondBodyError(w, err)
		return
	}

	if req.UserID == "" {
		respondError(w, "user_id is required", http.StatusUnprocessableEntity)
		return
	}

	ticket, err := h.ticketService.IssueTicket(ctx, req.UserID)
	if err != nil {
		respondServiceError(w, err, "Failed to issue ticket", map[string]interface{}{"user_id": req.UserID})
		return
	}

	log.Info().
		Str("user_id", ticket.UserID).
		Str("ticket_id", ticket.ID).
		Msg("Ticket issued")

	respondJSON(w, http.StatusCreated, ticket)
}

// ListTickets handles GET /api/v1/tickets
func (h *TicketHandler) ListTickets(w http.ResponseWriter, r *http.Request) {
	tickets, err := h.ticketService.ListTickets(r.Context())
	if err != nil {
		respondServiceError(w, err, "Failed to list tickets", nil)
		return
	}

	respondJSON(w, http.StatusOK, tickets)
}

// GetTicket handles GET /api/v1/tickets/{id}
func (h *TicketHandler) GetTicket(w http.ResponseWriter, r *http.Request) {
	ticketID := chi.URLParam(r, "id")

	ticket, err := h.ticketService.GetTicket(r.Context(), ticketID)
	if err != nil {
		respondServiceError(w, err, "Failed to get ticket", map[string]interface{}{"ticket_id": ticketID})
		return
	}

	respondJSON(w, http.StatusOK, ticket)
}

// RevokeTicket handles DELETE /api/v1/tickets/{id} and DELETE /api/v1/tickets
func (h *TicketHandler) RevokeTicket(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	ticketID, err := stringID(r)
	if err != nil {
		respondBodyError(w, err)
		return
	}

	if err := h.ticketService.RevokeTicket(ctx, ticketID); err != nil {
		respondServiceError(w, err, "Failed to revoke ticket", map[string]interface{}{"ticket_id": ticketID})
		return
	}

	log.Info().
		Str("ticket_id", ticketID).
		Msg("Ticket revoked")

	w.WriteHeader(http.StatusNoContent)
}

// ListMeals handles GET /api/v1/tickets/{id}/meals
func (h *TicketHandler) ListMeals(w http.ResponseWriter, r *http.Request) {
	ticketID := chi.URLParam(r, "id")

	meals, err := h.mealService.ListMeals(r.Context(), ticketID)
	if err != nil {
		respondServiceError(w, err, "Failed to list meals", map[string]interface{}{"ticket_id": ticketID})
		return
	}

	respondJSON(w, http.StatusOK, meals)
}
