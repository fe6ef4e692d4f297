package services

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"meal-voucher-backend/internal/models"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	feedWriteTimeout = 5 * time.Second
	feedQueueSize    = 32
)

// Feed message types
const (
	EventMealRedeemed = "meal_redeemed"
	EventMealRejected = "meal_rejected"
)

// MealEvent is one message on the meal feed
type MealEvent struct {
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"`
	TicketID  string `json:"ticket_id,omitempty"`
	MealID    int64  `json:"meal_id,omitempty"`
	Remaining *int   `json:"remaining,omitempty"`
	Message   string `json:"message,omitempty"`
}

// feedConn is the part of *websocket.Conn the hub writes through
type feedConn interface {
	SetWriteDeadline(t time.Time) error
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// feedClient owns one display connection. Messages are queued and written
// by the client's own goroutine so a slow display never holds up a
// redemption.
type feedClient struct {
	id        string
	conn      feedConn
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func newFeedClient(id string, conn feedConn) *feedClient {
	return &feedClient{
		id:   id,
		conn: conn,
		send: make(chan []byte, feedQueueSize),
		done: make(chan struct{}),
	}
}

// enqueue reports false when the display is gone or too far behind
func (c *feedClient) enqueue(data []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

func (c *feedClient) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

func (c *feedClient) writeLoop(h *MealHub) {
	for {
		select {
		case <-c.done:
			return
		case data := <-c.send:
			if err := c.write(data); err != nil {
				log.Error().
					Err(err).
					Str("display_id", c.id).
					Msg("Failed to send meal event")
				h.remove(c)
				return
			}
		}
	}
}

func (c *feedClient) write(data []byte) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(feedWriteTimeout)); err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// MealHub fans redemption outcomes out to connected checkpoint displays
type MealHub struct {
	mu      sync.RWMutex
	clients map[string]*feedClient
}

// NewMealHub creates a new meal feed hub
func NewMealHub() *MealHub {
	return &MealHub{
		clients: make(map[string]*feedClient),
	}
}

// Register adds a display connection under id
func (h *MealHub) Register(id string, conn *websocket.Conn) {
	h.register(id, conn)
}

func (h *MealHub) register(id string, conn feedConn) {
	client := newFeedClient(id, conn)

	h.mu.Lock()
	// Close existing connection if any
	if existing, ok := h.clients[id]; ok {
		existing.close()
	}
	h.clients[id] = client
	h.mu.Unlock()

	go client.writeLoop(h)

	log.Info().Str("display_id", id).Msg("Meal feed connection registered")
}

// Unregister closes and removes a display connection
func (h *MealHub) Unregister(id string) {
	h.mu.Lock()
	client, ok := h.clients[id]
	if ok {
		delete(h.clients, id)
	}
	h.mu.Unlock()

	if ok {
		client.close()
		log.Info().Str("display_id", id).Msg("Meal feed connection unregistered")
	}
}

// remove drops client unless id has been taken over by a newer connection
func (h *MealHub) remove(client *feedClient) {
	h.mu.Lock()
	if current, ok := h.clients[client.id]; ok && current == client {
		delete(h.clients, client.id)
	}
	h.mu.Unlock()

	client.close()
}

// Close drops every display connection
func (h *MealHub) Close() {
	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[string]*feedClient)
	h.mu.Unlock()

	for _, client := range clients {
		client.close()
	}
}

// Count returns the number of connected displays
func (h *MealHub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast queues an event for every display without waiting for the
// writes. Displays whose queue is full are dropped.
func (h *MealHub) Broadcast(event MealEvent) error {
	if event.Timestamp == 0 {
		event.Timestamp = time.Now().UnixMilli()
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal meal event: %w", err)
	}

	h.mu.RLock()
	clients := make([]*feedClient, 0, len(h.clients))
	for _, client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	for _, client := range clients {
		if !client.enqueue(data) {
			log.Warn().
				Str("display_id", client.id).
				Str("type", event.Type).
				Msg("Meal feed display is not keeping up, dropping it")
			h.remove(client)
		}
	}

	return nil
}

// MealRedeemed announces an accepted redemption
func (h *MealHub) MealRedeemed(redemption *models.Redemption) {
	remaining := redemption.Remaining
	event := MealEvent{
		Type:      EventMealRedeemed,
		Timestamp: redemption.Time.UnixMilli(),
		TicketID:  redemption.TicketID,
		MealID:    redemption.ID,
		Remaining: &remaining,
	}
	if err := h.Broadcast(event); err != nil {
		log.Error().Err(err).Str("ticket_id", redemption.TicketID).Msg("Failed to broadcast redemption")
	}
}

// MealRejected announces a refused redemption
func (h *MealHub) MealRejected(ticketID, reason string) {
	event := MealEvent{
		Type:     EventMealRejected,
		TicketID: ticketID,
		Message:  reason,
	}
	if err := h.Broadcast(event); err != nil {
		log.Error().Err(err).Str("ticket_id", ticketID).Msg("Failed to broadcast rejection")
	}
}
