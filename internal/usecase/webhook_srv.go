package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"tractor-rental/internal/data/entity"
	"tractor-rental/internal/data/repository"
	"tractor-rental/internal/payment/provider"
	"tractor-rental/pkg/apperr"
	"tractor-rental/pkg/redisstore"

	"go.uber.org/zap"
)

// eventDedupTTL is how long a processed webhook event id is remembered.
// Providers retry for at most a couple of days.
const eventDedupTTL = 72 * time.Hour

// WebhookVerifiers groups the per-provider authenticity checks.
type WebhookVerifiers struct {
	Wave        provider.Verifier
	OrangeMoney provider.Verifier
	Paydunya    *provider.PaydunyaVerifier
	Card        provider.Verifier
}

// WebhookService reconciles provider callbacks against payments. Every
// handler follows the same pipeline: authenticate the raw payload, parse it,
// drop duplicate deliveries, resolve the payment by the provider's
// correlation token, and settle.
type WebhookService interface {
	HandleWave(ctx context.Context, header http.Header, body []byte) error
	HandleOrangeMoney(ctx context.Context, header http.Header, body []byte) error
	HandlePaydunya(ctx context.Context, header http.Header, body []byte) error
	HandleCard(ctx context.Context, header http.Header, body []byte) error
}

type webhookService struct {
	repo      *repository.Repository
	payments  PaymentService
	verifiers WebhookVerifiers
	deduper   redisstore.Deduper
	log       *zap.Logger
}

func NewWebhookService(
	repo *repository.Repository,
	payments PaymentService,
	verifiers WebhookVerifiers,
	deduper redisstore.Deduper,
	log *zap.Logger,
) WebhookService {
	return &webhookService{
		repo:      repo,
		payments:  payments,
		verifiers: verifiers,
		deduper:   deduper,
		log:       log.With(zap.String("service", "webhook")),
	}
}

type waveEvent struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		ID              string `json:"id"`
		PaymentStatus   string `json:"payment_status"`
		ClientReference string `json:"client_reference"`
		TransactionID   string `json:"transaction_id"`
	} `json:"data"`
}

func (s *webhookService) HandleWave(ctx context.Context, header http.Header, body []byte) error {
	if err := s.verifiers.Wave.Verify(header, body); err != nil {
		return err
	}

	var event waveEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return apperr.Wrap(apperr.KindValidation, err, "parse wave event")
	}
	if event.Data.ID == "" {
		return apperr.New(apperr.KindValidation, "wave event has no session id")
	}

	if s.isDuplicate(ctx, "wave", event.ID) {
		return nil
	}

	data := entity.ProviderData{
		TransactionID:   event.Data.TransactionID,
		ResponseMessage: event.Type,
	}

	switch event.Type {
	case "checkout.session.completed":
		return s.settle(ctx, "wave", event.Data.ID, true, data)
	case "checkout.session.payment_failed", "checkout.session.expired":
		return s.settle(ctx, "wave", event.Data.ID, false, data)
	default:
		s.log.Info("Ignoring wave event", zap.String("type", event.Type))
		return nil
	}
}

type orangeMoneyEvent struct {
	Status     string `json:"status"`
	NotifToken string `json:"notif_token"`
	TxnID      string `json:"txnid"`
	PayToken   string `json:"pay_token"`
}

func (s *webhookService) HandleOrangeMoney(ctx context.Context, header http.Header, body []byte) error {
	if err := s.verifiers.OrangeMoney.Verify(header, body); err != nil {
		return err
	}

	var event orangeMoneyEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return apperr.Wrap(apperr.KindValidation, err, "parse orange money event")
	}
	if event.PayToken == "" {
		return apperr.New(apperr.KindValidation, "orange money event has no pay token")
	}

	if s.isDuplicate(ctx, "orange_money", event.NotifToken) {
		return nil
	}

	data := entity.ProviderData{
		TransactionID:   event.TxnID,
		ResponseMessage: event.Status,
	}

	switch event.Status {
	case "SUCCESS", "SUCCESSFULL":
		return s.settle(ctx, "orange_money", event.PayToken, true, data)
	case "FAILED", "EXPIRED":
		return s.settle(ctx, "orange_money", event.PayToken, false, data)
	default:
		s.log.Info("Ignoring orange money event", zap.String("status", event.Status))
		return nil
	}
}

type paydunyaEvent struct {
	ResponseCode string `json:"response_code"`
	Hash         string `json:"hash"`
	Invoice      struct {
		Token  string `json:"token"`
		Status string `json:"status"`
	} `json:"invoice"`
}

func (s *webhookService) HandlePaydunya(ctx context.Context, header http.Header, body []byte) error {
	var event paydunyaEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return apperr.Wrap(apperr.KindValidation, err, "parse paydunya event")
	}

	// PayDunya authenticates with a hash inside the payload, not a header.
	if err := s.verifiers.Paydunya.VerifyHash(event.Hash); err != nil {
		return err
	}
	if event.Invoice.Token == "" {
		return apperr.New(apperr.KindValidation, "paydunya event has no invoice token")
	}

	if s.isDuplicate(ctx, "paydunya", event.Invoice.Token+":"+event.Invoice.Status) {
		return nil
	}

	data := entity.ProviderData{
		ResponseCode:    event.ResponseCode,
		ResponseMessage: event.Invoice.Status,
	}

	switch event.Invoice.Status {
	case "completed":
		return s.settle(ctx, "paydunya", event.Invoice.Token, true, data)
	case "cancelled", "failed":
		return s.settle(ctx, "paydunya", event.Invoice.Token, false, data)
	default:
		s.log.Info("Ignoring paydunya event", zap.String("status", event.Invoice.Status))
		return nil
	}
}

type cardEvent struct {
	EventID   string `json:"event_id"`
	SessionID string `json:"session_id"`
	Status    string `json:"status"`
}

func (s *webhookService) HandleCard(ctx context.Context, header http.Header, body []byte) error {
	if err := s.verifiers.Card.Verify(header, body); err != nil {
		return err
	}

	var event cardEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return apperr.Wrap(apperr.KindValidation, err, "parse card event")
	}
	if event.SessionID == "" {
		return apperr.New(apperr.KindValidation, "card event has no session id")
	}

	if s.isDuplicate(ctx, "card", event.EventID) {
		return nil
	}

	data := entity.ProviderData{ResponseMessage: event.Status}

	switch event.Status {
	case "succeeded", "paid":
		return s.settle(ctx, "card", event.SessionID, true, data)
	case "failed", "expired":
		return s.settle(ctx, "card", event.SessionID, false, data)
	default:
		s.log.Info("Ignoring card event", zap.String("status", event.Status))
		return nil
	}
}

// isDuplicate consults the redis fast path. Dedup failures never block the
// pipeline: the status guard on the payment row is the real protection.
func (s *webhookService) isDuplicate(ctx context.Context, providerName, eventID string) bool {
	if eventID == "" {
		return false
	}

	seen, err := s.deduper.MarkEvent(ctx, providerName, eventID, eventDedupTTL)
	if err != nil {
		s.log.Warn("Webhook dedup check failed, continuing",
			zap.Error(err),
			zap.String("provider", providerName),
		)
		return false
	}
	if seen {
		s.log.Info("Duplicate webhook delivery dropped",
			zap.String("provider", providerName),
			zap.String("event_id", eventID),
		)
	}
	return seen
}

// settle resolves the payment by the provider's correlation token and applies
// the outcome. Late deliveries for already settled payments are acknowledged.
func (s *webhookService) settle(ctx context.Context, providerName, providerRef string, succeeded bool, data entity.ProviderData) error {
	payment, err := s.repo.Payment.FindByProviderRef(ctx, providerRef)
	if err != nil {
		s.log.Error("Failed to resolve webhook payment",
			zap.Error(err),
			zap.String("provider", providerName),
			zap.String("provider_ref", providerRef),
		)
		return fmt.Errorf("resolve payment by provider ref: %w", err)
	}
	if payment == nil {
		return apperr.New(apperr.KindNotFound, "no payment for %s reference %s", providerName, providerRef)
	}

	if payment.Status.IsFinal() {
		s.log.Info("Webhook for settled payment acknowledged",
			zap.String("provider", providerName),
			zap.String("payment_id", payment.ID.String()),
			zap.String("status", string(payment.Status)),
		)
		return nil
	}

	if succeeded {
		_, err = s.payments.Confirm(ctx, payment.ID, data)
	} else {
		_, err = s.payments.Fail(ctx, payment.ID, data)
	}
	if err != nil {
		// A conflict means a concurrent delivery won the settle race.
		if apperr.KindOf(err) == apperr.KindConflict {
			return nil
		}
		return err
	}

	s.log.Info("Webhook settled payment",
		zap.String("provider", providerName),
		zap.String("payment_id", payment.ID.String()),
		zap.Bool("succeeded", succeeded),
	)
	return nil
}
