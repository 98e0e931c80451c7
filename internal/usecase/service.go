package usecase

import (
	"tractor-rental/internal/data/repository"
	"tractor-rental/internal/payment/provider"
	"tractor-rental/pkg/redisstore"
	"tractor-rental/pkg/utils"

	"go.uber.org/zap"
)

type Service struct {
	Booking BookingService
	Payment PaymentService
	Webhook WebhookService
}

func NewService(
	repo *repository.Repository,
	config *utils.Config,
	adapters provider.Set,
	verifiers WebhookVerifiers,
	locker redisstore.Locker,
	deduper redisstore.Deduper,
	log *zap.Logger,
) *Service {
	notifier := NewAsyncNotifier(repo.Notification, log)

	booking := NewBookingService(repo, locker, notifier, log)
	payment := NewPaymentService(repo, adapters, booking, notifier, config.Payment, log)
	webhook := NewWebhookService(repo, payment, verifiers, deduper, log)

	return &Service{
		Booking: booking,
		Payment: payment,
		Webhook: webhook,
	}
}
