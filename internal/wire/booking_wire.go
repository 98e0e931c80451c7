package wire

import (
	"tractor-rental/internal/adaptor"
	"tractor-rental/internal/data/repository"
	"tractor-rental/pkg/middleware"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

func wireBooking(
	r chi.Router,
	bookingHandler *adaptor.BookingHandler,
	repo *repository.Repository,
	log *zap.Logger,
) {
	// ==================== PROTECTED ROUTES (require auth) ====================
	r.Group(func(r chi.Router) {
		r.Use(middleware.AuthSession(repo.Session, repo.User, log))

		// POST /api/bookings - Request a tractor booking (client)
		r.Post("/api/bookings", bookingHandler.Create)

		// GET /api/user/bookings - Client's booking history
		r.Get("/api/user/bookings", bookingHandler.ListMine)

		// GET /api/bookings/{id} - Booking detail (any party)
		r.Get("/api/bookings/{id}", bookingHandler.Get)

		// PUT /api/bookings/{id}/cancel - Cancel (client, owner or admin)
		r.Put("/api/bookings/{id}/cancel", bookingHandler.Cancel)

		// Owner decisions and lifecycle
		r.Put("/api/bookings/{id}/accept", bookingHandler.Accept)
		r.Put("/api/bookings/{id}/reject", bookingHandler.Reject)
		r.Put("/api/bookings/{id}/start", bookingHandler.Start)
		r.Put("/api/bookings/{id}/complete", bookingHandler.Complete)

		// GET /api/owner/bookings - Requests on the owner's tractors
		r.Get("/api/owner/bookings", bookingHandler.ListOwned)
	})

	// ==================== ADMIN ROUTES ====================
	r.Route("/api/admin/bookings", func(r chi.Router) {
		r.Use(middleware.AuthSession(repo.Session, repo.User, log))
		r.Use(middleware.Admin(log))

		// GET /api/admin/bookings/stats - Marketplace settlement totals
		r.Get("/stats", bookingHandler.Stats)
	})
}
