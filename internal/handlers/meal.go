package handlers

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"

	"meal-voucher-backend/internal/models"
	"meal-voucher-backend/internal/services"

	"github.com/rs/zerolog/log"
)

const (
	scanFormField        = "file"
	multipartMemoryBytes = 1 << 20
)

// MealHandler handles meal redemption HTTP requests
type MealHandler struct {
	mealService *services.MealService
}

// NewMealHandler creates a new meal handler
func NewMealHandler(mealService *services.MealService) *MealHandler {
	return &MealHandler{
		mealService: mealService,
	}
}

// RedeemMealRequest represents a manual redemption by ticket id
type RedeemMealRequest struct {
	TicketID string `json:"ticket_id"`
}

// RedeemMeal handles POST /api/v1/meals.
// The body is either a multipart form with the scanned image in "file",
// a raw image body, or JSON {"ticket_id": "..."} for manual entry.
func (h *MealHandler) RedeemMeal(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	var (
		redemption *models.Redemption
		err        error
	)

	switch {
	case mediaType == "application/json":
		var req RedeemMealRequest
		if err := decodeJSON(r, &req); err != nil {
			respondBodyError(w, err)
			return
		}
		redemption, err = h.mealService.Redeem(ctx, req.TicketID)

	case mediaType == "multipart/form-data":
		image, readErr := readFormImage(r)
		if readErr != nil {
			respondUploadError(w, readErr)
			return
		}
		redemption, err = h.mealService.RedeemScan(ctx, image)

	case strings.HasPrefix(mediaType, "image/"):
		image, readErr := io.ReadAll(r.Body)
		if readErr != nil {
			respondUploadError(w, readErr)
			return
		}
		redemption, err = h.mealService.RedeemScan(ctx, image)

	default:
		respondError(w, "expected a scanned image or a JSON body", http.StatusUnsupportedMediaType)
		return
	}

	if err != nil {
		respondServiceError(w, err, "Failed to redeem meal", nil)
		return
	}

	log.Info().
		Str("ticket_id", redemption.TicketID).
		Int64("meal_id", redemption.ID).
		Int("remaining", redemption.Remaining).
		Msg("Meal served")

	respondJSON(w, http.StatusOK, redemption)
}

func readFormImage(r *http.Request) ([]byte, error) {
	if err := r.ParseMultipartForm(multipartMemoryBytes); err != nil {
		return nil, err
	}

	file, _, err := r.FormFile(scanFormField)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return io.ReadAll(file)
}

func respondUploadError(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		respondError(w, "image is too large", http.StatusRequestEntityTooLarge)
		return
	}
	respondError(w, "a scanned image is required in the \""+scanFormField+"\" field", http.StatusUnprocessableEntity)
}

// DeleteMeal handles DELETE /api/v1/meals/{id} and DELETE /api/v1/meals
func (h *MealHandler) DeleteMeal(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := mealID(r)
	if err != nil {
		respondMealIDError(w, r, err)
		return
	}

	if err := h.mealService.DeleteMeal(ctx, id); err != nil {
		respondServiceError(w, err, "Failed to delete meal", map[string]interface{}{"meal_id": id})
		return
	}

	log.Info().
		Int64("meal_id", id).
		Msg("Meal deleted")

	w.WriteHeader(http.StatusNoContent)
}

// GetScan handles GET /api/v1/meals/{id}/scan
func (h *MealHandler) GetScan(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := mealID(r)
	if err != nil {
		respondMealIDError(w, r, err)
		return
	}

	link, err := h.mealService.ScanURL(ctx, id)
	if err != nil {
		respondServiceError(w, err, "Failed to get scan url", map[string]interface{}{"meal_id": id})
		return
	}

	respondJSON(w, http.StatusOK, link)
}

// respondMealIDError answers 404 for a path id that cannot name a meal
// and 422 for a malformed body
func respondMealIDError(w http.ResponseWriter, r *http.Request, err error) {
	if urlParamSet(r, "id") {
		respondError(w, services.ErrMealNotFound.Error(), http.StatusNotFound)
		return
	}
	respondBodyError(w, err)
}
