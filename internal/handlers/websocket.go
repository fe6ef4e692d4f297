package handlers

import (
	"net/http"

	"meal-voucher-backend/internal/services"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// MealFeedHandler streams redemption outcomes to checkpoint displays
type MealFeedHandler struct {
	hub *services.MealHub
}

// NewMealFeedHandler creates a new meal feed handler
func NewMealFeedHandler(hub *services.MealHub) *MealFeedHandler {
	return &MealFeedHandler{
		hub: hub,
	}
}

// HandleMealFeed handles GET /api/v1/ws/meals
func (h *MealFeedHandler) HandleMealFeed(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("Failed to upgrade WebSocket connection")
		return
	}

	displayID := uuid.New().String()
	h.hub.Register(displayID, conn)
	defer h.hub.Unregister(displayID)

	// Displays only listen. Reading keeps control frames flowing and
	// tells us when the peer goes away.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Error().Err(err).Str("display_id", displayID).Msg("WebSocket error")
			}
			return
		}
	}
}
