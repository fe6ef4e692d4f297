package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"meal-voucher-backend/internal/models"
	"meal-voucher-backend/internal/qr"
	"meal-voucher-backend/internal/repository"

	"github.com/rs/zerolog/log"
)

const scanURLTTL = 5 * time.Minute

// MealService validates scanned tickets and records meal redemptions
type MealService struct {
	mealRepo MealStore
	tickets  *TicketService
	archive  ScanArchive
	notifier MealNotifier
	limit    int
	now      func() time.Time
}

// NewMealService creates a new meal service. archive and notifier may be nil.
func NewMealService(
	mealRepo MealStore,
	tickets *TicketService,
	archive ScanArchive,
	notifier MealNotifier,
	limit int,
) *MealService {
	return &MealService{
		mealRepo: mealRepo,
		tickets:  tickets,
		archive:  archive,
		notifier: notifier,
		limit:    limit,
		now:      time.Now,
	}
}

// ScanLink is a temporary download link for an archived scan
type ScanLink struct {
	URL       string `json:"url"`
	ExpiresIn int    `json:"expires_in"`
}

// Limit returns the number of meals a ticket is good for
func (s *MealService) Limit() int {
	return s.limit
}

// Redeem records one meal against a ticket id entered by hand
func (s *MealService) Redeem(ctx context.Context, ticketID string) (*models.Redemption, error) {
	if !qr.IsTicketID(ticketID) {
		s.rejected("", ErrInvalidTicketID)
		return nil, ErrInvalidTicketID
	}
	return s.redeem(ctx, ticketID)
}

// RedeemScan decodes the ticket id from a scanned image and records one
// meal against it. Accepted scans are archived when an archive is set.
func (s *MealService) RedeemScan(ctx context.Context, image []byte) (*models.Redemption, error) {
	text, err := qr.Decode(image)
	if err != nil {
		s.rejected("", qr.ErrDecode)
		return nil, err
	}

	if !qr.IsTicketID(text) {
		s.rejected("", ErrInvalidTicketID)
		return nil, ErrInvalidTicketID
	}

	redemption, err := s.redeem(ctx, text)
	if err != nil {
		return nil, err
	}

	s.archiveScan(ctx, &redemption.Meal, image)

	return redemption, nil
}

func (s *MealService) redeem(ctx context.Context, ticketID string) (*models.Redemption, error) {
	meal, used, err := s.mealRepo.CreateWithinLimit(ctx, ticketID, s.now().UTC().Truncate(time.Microsecond), s.limit)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			s.rejected(ticketID, ErrTicketNotFound)
			return nil, ErrTicketNotFound
		case errors.Is(err, repository.ErrLimitReached):
			s.rejected(ticketID, ErrMealLimitReached)
			return nil, ErrMealLimitReached
		}
		return nil, fmt.Errorf("failed to redeem ticket %s: %w", ticketID, err)
	}

	redemption := &models.Redemption{
		Meal:      *meal,
		Used:      used,
		Remaining: s.limit - used,
	}

	log.Info().
		Str("ticket_id", ticketID).
		Int64("meal_id", meal.ID).
		Int("used", used).
		Int("limit", s.limit).
		Msg("Meal redeemed")

	if s.notifier != nil {
		s.notifier.MealRedeemed(redemption)
	}

	return redemption, nil
}

func (s *MealService) rejected(ticketID string, reason error) {
	log.Warn().
		Str("ticket_id", ticketID).
		Str("reason", reason.Error()).
		Msg("Meal rejected")

	if s.notifier != nil {
		s.notifier.MealRejected(ticketID, reason.Error())
	}
}

// archiveScan copies the scan to the archive and remembers its key on the
// meal. Failures are logged; the redemption already happened.
func (s *MealService) archiveScan(ctx context.Context, meal *models.Meal, image []byte) {
	if s.archive == nil {
		return
	}

	contentType := http.DetectContentType(image)
	key := fmt.Sprintf("scans/%s/%d%s", meal.TicketID, meal.ID, scanExtension(contentType))

	if err := s.archive.Put(ctx, key, contentType, image); err != nil {
		log.Error().
			Err(err).
			Int64("meal_id", meal.ID).
			Str("key", key).
			Msg("Failed to archive scan")
		return
	}

	if err := s.mealRepo.UpdateScanKey(ctx, meal.ID, key); err != nil {
		log.Error().
			Err(err).
			Int64("meal_id", meal.ID).
			Str("key", key).
			Msg("Failed to store scan key")
		return
	}

	meal.ScanKey = &key
}

func scanExtension(contentType string) string {
	switch contentType {
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	case "image/gif":
		return ".gif"
	default:
		return ".bin"
	}
}

// ListMeals returns the meals of a ticket, newest first
func (s *MealService) ListMeals(ctx context.Context, ticketID string) ([]*models.Meal, error) {
	if _, err := s.tickets.GetTicket(ctx, ticketID); err != nil {
		return nil, err
	}

	meals, err := s.mealRepo.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, fmt.Errorf("failed to list meals: %w", err)
	}
	return meals, nil
}

// DeleteMeal removes a redemption, freeing one slot on its ticket
func (s *MealService) DeleteMeal(ctx context.Context, id int64) error {
	if err := s.mealRepo.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrMealNotFound
		}
		return fmt.Errorf("failed to delete meal: %w", err)
	}
	return nil
}

// ScanURL returns a pre-signed link to the archived scan behind a meal
func (s *MealService) ScanURL(ctx context.Context, id int64) (*ScanLink, error) {
	meal, err := s.mealRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrMealNotFound
		}
		return nil, fmt.Errorf("failed to get meal: %w", err)
	}

	if s.archive == nil || meal.ScanKey == nil {
		return nil, ErrScanNotFound
	}

	url, err := s.archive.PresignGet(ctx, *meal.ScanKey, scanURLTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to presign scan url: %w", err)
	}

	return &ScanLink{
		URL:       url,
		ExpiresIn: int(scanURLTTL.Seconds()),
	}, nil
}
