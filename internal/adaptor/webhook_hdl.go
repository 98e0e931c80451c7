package adaptor

import (
	"context"
	"io"
	"net/http"

	"tractor-rental/internal/usecase"
	"tractor-rental/pkg/apperr"
	"tractor-rental/pkg/utils"

	"go.uber.org/zap"
)

// maxWebhookBody bounds provider callback payloads.
const maxWebhookBody = 1 << 20

// WebhookHandler receives provider callbacks. Responses follow webhook
// conventions: duplicates and late deliveries are acknowledged with 200 so
// the provider stops retrying, signature failures answer 401, and internal
// failures answer 500 to request a retry.
type WebhookHandler struct {
	service usecase.WebhookService
	log     *zap.Logger
}

func NewWebhookHandler(service usecase.WebhookService, log *zap.Logger) *WebhookHandler {
	return &WebhookHandler{
		service: service,
		log:     log.With(zap.String("handler", "webhook")),
	}
}

// Wave handles POST /api/webhooks/wave
func (h *WebhookHandler) Wave(w http.ResponseWriter, r *http.Request) {
	h.handle(w, r, "wave", h.service.HandleWave)
}

// OrangeMoney handles POST /api/webhooks/orange-money
func (h *WebhookHandler) OrangeMoney(w http.ResponseWriter, r *http.Request) {
	h.handle(w, r, "orange_money", h.service.HandleOrangeMoney)
}

// Paydunya handles POST /api/webhooks/paydunya
func (h *WebhookHandler) Paydunya(w http.ResponseWriter, r *http.Request) {
	h.handle(w, r, "paydunya", h.service.HandlePaydunya)
}

// Card handles POST /api/webhooks/card
func (h *WebhookHandler) Card(w http.ResponseWriter, r *http.Request) {
	h.handle(w, r, "card", h.service.HandleCard)
}

func (h *WebhookHandler) handle(w http.ResponseWriter, r *http.Request, providerName string, process func(context.Context, http.Header, []byte) error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		utils.ResponseBadRequest(w, "Cannot read request body", nil)
		return
	}

	if err := process(r.Context(), r.Header, body); err != nil {
		switch apperr.KindOf(err) {
		case apperr.KindAuthenticity:
			h.log.Warn("Webhook signature rejected",
				zap.String("provider", providerName),
				zap.Error(err),
			)
			utils.ResponseUnauthorized(w, "Invalid signature")
		case apperr.KindValidation:
			h.log.Warn("Malformed webhook payload",
				zap.String("provider", providerName),
				zap.Error(err),
			)
			utils.ResponseBadRequest(w, "Malformed payload", nil)
		case apperr.KindNotFound:
			h.log.Warn("Webhook for unknown payment",
				zap.String("provider", providerName),
				zap.Error(err),
			)
			utils.ResponseNotFound(w, "Unknown payment reference")
		default:
			h.log.Error("Webhook processing failed",
				zap.String("provider", providerName),
				zap.Error(err),
			)
			utils.ResponseInternalError(w, "Processing failed")
		}
		return
	}

	utils.ResponseSuccess(w, "success", nil)
}
