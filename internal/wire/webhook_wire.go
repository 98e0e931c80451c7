package wire

import (
	"tractor-rental/internal/adaptor"

	"github.com/go-chi/chi/v5"
)

// Webhook endpoints are unauthenticated at the session level; each payload
// is authenticated by its provider's signature scheme instead.
func wireWebhook(r chi.Router, webhookHandler *adaptor.WebhookHandler) {
	r.Route("/api/webhooks", func(r chi.Router) {
		r.Post("/wave", webhookHandler.Wave)
		r.Post("/orange-money", webhookHandler.OrangeMoney)
		r.Post("/paydunya", webhookHandler.Paydunya)
		r.Post("/card", webhookHandler.Card)
	})
}
