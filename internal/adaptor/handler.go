package adaptor

import (
	"net/http"

	"tractor-rental/internal/usecase"
	"tractor-rental/pkg/apperr"
	"tractor-rental/pkg/utils"

	"go.uber.org/zap"
)

type Handler struct {
	Booking *BookingHandler
	Payment *PaymentHandler
	Webhook *WebhookHandler
}

func NewHandler(service *usecase.Service, log *zap.Logger) *Handler {
	return &Handler{
		Booking: NewBookingHandler(service.Booking, log),
		Payment: NewPaymentHandler(service.Payment, log),
		Webhook: NewWebhookHandler(service.Webhook, log),
	}
}

// handleServiceError maps the error taxonomy to HTTP responses. Anything
// without a kind is internal and answered generically.
func handleServiceError(w http.ResponseWriter, log *zap.Logger, err error, operation string) {
	switch apperr.KindOf(err) {
	case apperr.KindValidation:
		log.Warn(operation+" rejected", zap.Error(err))
		utils.ResponseBadRequest(w, err.Error(), nil)
	case apperr.KindNotFound:
		log.Warn(operation+" target not found", zap.Error(err))
		utils.ResponseNotFound(w, err.Error())
	case apperr.KindForbidden:
		log.Warn(operation+" forbidden", zap.Error(err))
		utils.ResponseForbidden(w, err.Error())
	case apperr.KindConflict, apperr.KindUnavailable:
		log.Warn(operation+" conflicted", zap.Error(err))
		utils.ResponseConflict(w, err.Error())
	case apperr.KindProvider:
		log.Error(operation+" provider failure", zap.Error(err))
		utils.ResponseUnprocessable(w, err.Error())
	case apperr.KindAuthenticity:
		log.Warn(operation+" authenticity failure", zap.Error(err))
		utils.ResponseUnauthorized(w, err.Error())
	default:
		log.Error(operation+" failed", zap.Error(err))
		utils.ResponseInternalError(w, "Internal server error")
	}
}
