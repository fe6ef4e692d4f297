package handlers

import (
	"net/http"
	"strconv"

	"meal-voucher-backend/internal/services"
)

// CodeHandler serves ticket QR codes
type CodeHandler struct {
	codeService *services.CodeService
}

// NewCodeHandler creates a new code handler
func NewCodeHandler(codeService *services.CodeService) *CodeHandler {
	return &CodeHandler{
		codeService: codeService,
	}
}

// RenderCodeRequest represents the request body for rendering a ticket code
type RenderCodeRequest struct {
	TicketID string `json:"ticket_id"`
}

// RenderCode handles POST /api/v1/qr
func (h *CodeHandler) RenderCode(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req RenderCodeRequest
	if err := decodeJSON(r, &req); err != nil {
		respondBodyError(w, err)
		return
	}

	img, err := h.codeService.RenderTicket(ctx, req.TicketID)
	if err != nil {
		respondServiceError(w, err, "Failed to render ticket code", map[string]interface{}{"ticket_id": req.TicketID})
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(img)))
	w.WriteHeader(http.StatusOK)
	w.Write(img)
}
