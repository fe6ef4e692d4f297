package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"meal-voucher-backend/internal/qr"
	"meal-voucher-backend/internal/services"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var errMissingID = errors.New("id is required")

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error string `json:"error"`
}

// respondError sends an error response
func respondError(w http.ResponseWriter, message string, statusCode int) {
	respondJSON(w, statusCode, ErrorResponse{Error: message})
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, statusCode int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body)
}

// errorStatus maps service errors to a status code and a client message
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, services.ErrUserNotFound),
		errors.Is(err, services.ErrTicketNotFound),
		errors.Is(err, services.ErrMealNotFound),
		errors.Is(err, services.ErrScanNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, services.ErrTicketExists):
		return http.StatusConflict, err.Error()
	case errors.Is(err, services.ErrMealLimitReached):
		return http.StatusForbidden, err.Error()
	case errors.Is(err, services.ErrInvalidName),
		errors.Is(err, services.ErrInvalidUserID),
		errors.Is(err, services.ErrInvalidTicketID):
		return http.StatusUnprocessableEntity, err.Error()
	case errors.Is(err, qr.ErrEncode):
		return http.StatusUnprocessableEntity, "ticket id cannot be encoded"
	case errors.Is(err, qr.ErrDecode):
		return http.StatusUnprocessableEntity, "no readable QR code in image"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

// respondServiceError logs err and answers with its mapped status
func respondServiceError(w http.ResponseWriter, err error, msg string, fields map[string]interface{}) {
	status, message := errorStatus(err)

	var event *zerolog.Event
	if status >= http.StatusInternalServerError {
		event = log.Error()
	} else {
		event = log.Warn()
	}
	event.Err(err).Fields(fields).Int("status", status).Msg(msg)

	respondError(w, message, status)
}

// respondBodyError answers a request whose body could not be read
func respondBodyError(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		respondError(w, "Request body too large", http.StatusRequestEntityTooLarge)
		return
	}
	respondError(w, "Invalid request body", http.StatusUnprocessableEntity)
}

// decodeJSON reads a JSON request body into dst
func decodeJSON(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

type idRequest struct {
	ID string `json:"id"`
}

type mealIDRequest struct {
	ID int64 `json:"id"`
}

// stringID takes the id from the {id} URL parameter or, failing that,
// from a JSON body {"id": "..."}
func stringID(r *http.Request) (string, error) {
	if id := chi.URLParam(r, "id"); id != "" {
		return id, nil
	}

	var req idRequest
	if err := decodeJSON(r, &req); err != nil {
		return "", err
	}
	if req.ID == "" {
		return "", errMissingID
	}
	return req.ID, nil
}

func urlParamSet(r *http.Request, key string) bool {
	return chi.URLParam(r, key) != ""
}

// mealID is stringID for numeric meal ids
func mealID(r *http.Request) (int64, error) {
	if raw := chi.URLParam(r, "id"); raw != "" {
		return strconv.ParseInt(raw, 10, 64)
	}

	var req mealIDRequest
	if err := decodeJSON(r, &req); err != nil {
		return 0, err
	}
	if req.ID == 0 {
		return 0, errMissingID
	}
	return req.ID, nil
}
