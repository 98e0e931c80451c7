// internal/wire/wire.go
package wire

import (
	"net/http"

	"tractor-rental/internal/adaptor"
	"tractor-rental/internal/data/repository"
	"tractor-rental/internal/payment/provider"
	"tractor-rental/internal/usecase"
	"tractor-rental/pkg/middleware"
	"tractor-rental/pkg/redisstore"
	"tractor-rental/pkg/utils"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// App holds the assembled application.
type App struct {
	Router  *chi.Mux
	Service *usecase.Service
}

// Wiring initializes services, handlers and routes.
func Wiring(
	repo *repository.Repository,
	config *utils.Config,
	locker redisstore.Locker,
	deduper redisstore.Deduper,
	logger *zap.Logger,
) *App {
	client := &http.Client{Timeout: config.Payment.ProviderTimeout}

	adapters := provider.NewSet(
		provider.NewWaveAdapter(config.Providers.Wave, client),
		provider.NewOrangeMoneyAdapter(config.Providers.OrangeMoney, client),
		provider.NewPaydunyaAdapter(config.Providers.Paydunya, client),
		provider.NewCardAdapter(config.Providers.Card, client),
		provider.NewCashAdapter(),
	)
	verifiers := usecase.WebhookVerifiers{
		Wave:        provider.NewWaveVerifier(config.Providers.Wave.WebhookSecret),
		OrangeMoney: provider.NewOrangeMoneyVerifier(),
		Paydunya:    provider.NewPaydunyaVerifier(config.Providers.Paydunya.MasterKey),
		Card:        provider.NewCardVerifier(),
	}

	service := usecase.NewService(repo, config, adapters, verifiers, locker, deduper, logger)
	handler := adaptor.NewHandler(service, logger)

	router := setupRouter(handler, repo, logger)

	return &App{
		Router:  router,
		Service: service,
	}
}

func setupRouter(
	handler *adaptor.Handler,
	repo *repository.Repository,
	logger *zap.Logger,
) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recover(logger))
	r.Use(middleware.CORS())

	wireBooking(r, handler.Booking, repo, logger)
	wirePayment(r, handler.Payment, repo, logger)
	wireWebhook(r, handler.Webhook)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	return r
}
