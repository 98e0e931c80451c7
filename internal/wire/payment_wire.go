package wire

import (
	"tractor-rental/internal/adaptor"
	"tractor-rental/internal/data/repository"
	"tractor-rental/pkg/middleware"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

func wirePayment(
	r chi.Router,
	paymentHandler *adaptor.PaymentHandler,
	repo *repository.Repository,
	log *zap.Logger,
) {
	r.Group(func(r chi.Router) {
		r.Use(middleware.AuthSession(repo.Session, repo.User, log))

		// POST /api/payments/initiate - Start a payment for an accepted booking
		r.Post("/api/payments/initiate", paymentHandler.Initiate)

		// GET /api/payments/{id} - Payment detail (payer, recipient, admin)
		r.Get("/api/payments/{id}", paymentHandler.Get)

		// GET /api/payments/{id}/check - Poll the gateway for an outcome
		r.Get("/api/payments/{id}/check", paymentHandler.CheckStatus)
	})

	r.Route("/api/admin/payments", func(r chi.Router) {
		r.Use(middleware.AuthSession(repo.Session, repo.User, log))
		r.Use(middleware.Admin(log))

		// POST /api/admin/payments/{id}/refund - Reverse a completed payment
		r.Post("/{id}/refund", paymentHandler.Refund)
	})
}
