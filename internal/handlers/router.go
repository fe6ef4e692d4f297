package handlers

import (
	"net/http"

	"meal-voucher-backend/internal/metrics"
	"meal-voucher-backend/internal/middleware"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

// MaxJSONBodyBytes caps every request body except scan uploads
const MaxJSONBodyBytes = 64 << 10

// Handlers bundles everything the router serves
type Handlers struct {
	Users    *UserHandler
	Tickets  *TicketHandler
	Codes    *CodeHandler
	Meals    *MealHandler
	MealFeed *MealFeedHandler
	// Metrics is optional; when set requests are measured and /metrics is served
	Metrics *metrics.Metrics
}

// NewRouter builds the HTTP routes of the service
func NewRouter(h Handlers, maxUploadBytes int64) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.CORS)
	if h.Metrics != nil {
		r.Use(middleware.Metrics(h.Metrics))
		r.Method(http.MethodGet, "/metrics", h.Metrics.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		// JSON routes
		r.Group(func(r chi.Router) {
			r.Use(middleware.MaxBodySize(MaxJSONBodyBytes))

			r.Post("/users", h.Users.CreateUser)
			r.Delete("/users", h.Users.DeleteUser)
			r.Delete("/users/{id}", h.Users.DeleteUser)

			r.Post("/tickets", h.Tickets.IssueTicket)
			r.Get("/tickets", h.Tickets.ListTickets)
			r.Delete("/tickets", h.Tickets.RevokeTicket)
			r.Get("/tickets/{id}", h.Tickets.GetTicket)
			r.Delete("/tickets/{id}", h.Tickets.RevokeTicket)
			r.Get("/tickets/{id}/meals", h.Tickets.ListMeals)

			r.Post("/qr", h.Codes.RenderCode)

			r.Delete("/meals", h.Meals.DeleteMeal)
			r.Delete("/meals/{id}", h.Meals.DeleteMeal)
			r.Get("/meals/{id}/scan", h.Meals.GetScan)

			r.Get("/ws/meals", h.MealFeed.HandleMealFeed)
		})

		// Scans carry an image and get the upload limit instead
		r.With(middleware.MaxBodySize(maxUploadBytes)).Post("/meals", h.Meals.RedeemMeal)
	})

	return r
}
