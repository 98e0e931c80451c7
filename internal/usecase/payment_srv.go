package usecase

import (
	"context"
	"fmt"
	"time"

	"tractor-rental/internal/data/entity"
	"tractor-rental/internal/data/repository"
	"tractor-rental/internal/dto/request"
	"tractor-rental/internal/dto/response"
	"tractor-rental/internal/payment/provider"
	"tractor-rental/pkg/apperr"
	"tractor-rental/pkg/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type PaymentService interface {
	Initiate(ctx context.Context, payerID string, req *request.InitiatePaymentRequest) (*response.PaymentResponse, error)
	GetByID(ctx context.Context, paymentID, actorID, actorRole string) (*response.PaymentResponse, error)

	// CheckStatus polls the gateway and settles the payment if the gateway
	// already reached an outcome the webhook has not delivered yet.
	CheckStatus(ctx context.Context, paymentID, actorID, actorRole string) (*response.PaymentResponse, error)

	// Confirm and Fail settle a payment from a trusted signal (webhook or
	// status poll). They are idempotent: a payment already settled the same
	// way is returned as-is.
	Confirm(ctx context.Context, paymentID uuid.UUID, data entity.ProviderData) (*entity.Payment, error)
	Fail(ctx context.Context, paymentID uuid.UUID, data entity.ProviderData) (*entity.Payment, error)

	// Refund reverses a completed payment and cancels the linked booking.
	Refund(ctx context.Context, paymentID, adminID string, req *request.RefundPaymentRequest) (*response.PaymentResponse, error)

	// ExpireStale fails payments stuck in pending past the configured
	// deadline. Returns how many were expired.
	ExpireStale(ctx context.Context) (int, error)
}

type paymentService struct {
	repo     *repository.Repository
	adapters provider.Set
	booking  BookingService
	notifier Notifier
	cfg      utils.PaymentConfig
	log      *zap.Logger
}

func NewPaymentService(
	repo *repository.Repository,
	adapters provider.Set,
	booking BookingService,
	notifier Notifier,
	cfg utils.PaymentConfig,
	log *zap.Logger,
) PaymentService {
	return &paymentService{
		repo:     repo,
		adapters: adapters,
		booking:  booking,
		notifier: notifier,
		cfg:      cfg,
		log:      log.With(zap.String("service", "payment")),
	}
}

func (s *paymentService) Initiate(ctx context.Context, payerID string, req *request.InitiatePaymentRequest) (*response.PaymentResponse, error) {
	if errs := utils.ValidateStruct(req); len(errs) > 0 {
		s.log.Warn("Initiate payment validation failed", zap.Any("errors", errs))
		return nil, apperr.New(apperr.KindValidation, "validation failed: %s", utils.FormatValidationErrors(errs))
	}

	payerUUID, err := uuid.Parse(payerID)
	if err != nil {
		return nil, apperr.New(apperr.KindValidation, "invalid payer ID format %s", payerID)
	}

	bookingID, err := uuid.Parse(req.BookingID)
	if err != nil {
		return nil, apperr.New(apperr.KindValidation, "invalid booking ID format %s", req.BookingID)
	}

	method := entity.PaymentMethod(req.Method)
	adapter, err := s.adapters.Get(method)
	if err != nil {
		return nil, err
	}

	booking, err := s.repo.Booking.FindByID(ctx, bookingID)
	if err != nil {
		s.log.Error("Failed to load booking", zap.Error(err), zap.String("booking_id", req.BookingID))
		return nil, fmt.Errorf("find booking %s: %w", req.BookingID, err)
	}
	if booking == nil {
		return nil, apperr.New(apperr.KindNotFound, "booking %s not found", req.BookingID)
	}
	if booking.ClientID != payerUUID {
		return nil, apperr.New(apperr.KindForbidden, "booking %s does not belong to this user", req.BookingID)
	}
	if booking.Status != entity.BookingStatusAccepted {
		return nil, apperr.New(apperr.KindConflict, "booking %s is not accepted, payment cannot start", booking.Reference)
	}

	// One active payment per booking. A failed or cancelled attempt frees
	// the slot; pending, processing and completed hold it. This pre-check
	// gives a precise error and skips the gateway; the exclusive insert
	// below is what actually holds the invariant under concurrency.
	active, err := s.repo.Payment.FindActiveByBookingID(ctx, bookingID)
	if err != nil {
		return nil, fmt.Errorf("find active payment for booking %s: %w", req.BookingID, err)
	}
	if active != nil {
		return nil, apperr.New(apperr.KindConflict, "booking %s already has a %s payment (%s)", booking.Reference, active.Status, active.Reference)
	}

	payerPhone := req.PayerPhone
	if payerPhone == "" {
		payerPhone = booking.ClientPhone
	}

	reference := utils.GeneratePaymentReference()
	result, err := adapter.Initiate(ctx, provider.InitiateRequest{
		Amount:     booking.TotalPrice,
		Currency:   s.cfg.Currency,
		Reference:  reference,
		BookingID:  booking.ID.String(),
		PayerPhone: payerPhone,
	})
	if err != nil {
		s.log.Error("Provider initiation failed",
			zap.Error(err),
			zap.String("method", req.Method),
			zap.String("booking_id", req.BookingID),
		)
		return nil, err
	}

	now := time.Now()
	payment := &entity.Payment{
		Base: entity.Base{
			ID:        uuid.New(),
			CreatedAt: now,
			UpdatedAt: now,
		},
		Reference:   reference,
		BookingID:   booking.ID,
		PayerID:     booking.ClientID,
		RecipientID: booking.OwnerID,
		Amount:      booking.TotalPrice,
		PlatformFee: booking.Commission,
		OwnerAmount: booking.OwnerEarnings,
		Currency:    s.cfg.Currency,
		Method:      method,
		Status:      entity.PaymentStatusPending,
		ProviderData: entity.ProviderData{
			TransactionID: result.TransactionID,
			ProviderRef:   result.ProviderRef,
			Phone:         payerPhone,
		},
		StatusHistory: []entity.StatusChange{{
			Status:    string(entity.PaymentStatusPending),
			ChangedAt: now,
			ActorID:   payerID,
		}},
	}

	inserted, err := s.repo.Payment.CreateExclusive(ctx, payment)
	if err != nil {
		s.log.Error("Failed to create payment",
			zap.Error(err),
			zap.String("booking_id", req.BookingID),
		)
		return nil, fmt.Errorf("create payment: %w", err)
	}
	if !inserted {
		return nil, apperr.New(apperr.KindConflict, "booking %s already has an active payment", booking.Reference)
	}

	if err := s.repo.Booking.UpdatePaymentMirror(ctx, booking.ID, method, entity.PaymentStatusPending, &payment.Reference, nil); err != nil {
		s.log.Error("Failed to mirror payment on booking", zap.Error(err), zap.String("payment_id", payment.ID.String()))
	}

	s.log.Info("Payment initiated",
		zap.String("payment_id", payment.ID.String()),
		zap.String("reference", reference),
		zap.String("method", req.Method),
		zap.Int64("amount", payment.Amount),
	)

	resp := response.PaymentToResponse(payment)
	resp.RedirectURL = result.RedirectURL
	return resp, nil
}

func (s *paymentService) GetByID(ctx context.Context, paymentID, actorID, actorRole string) (*response.PaymentResponse, error) {
	payment, err := s.loadPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}

	if err := s.authorize(payment, actorID, actorRole); err != nil {
		return nil, err
	}

	return response.PaymentToResponse(payment), nil
}

func (s *paymentService) CheckStatus(ctx context.Context, paymentID, actorID, actorRole string) (*response.PaymentResponse, error) {
	payment, err := s.loadPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}

	if err := s.authorize(payment, actorID, actorRole); err != nil {
		return nil, err
	}

	if payment.Status.IsFinal() {
		return response.PaymentToResponse(payment), nil
	}

	adapter, err := s.adapters.Get(payment.Method)
	if err != nil {
		return nil, err
	}

	ref := payment.ProviderData.ProviderRef
	if ref == "" {
		ref = payment.ProviderData.TransactionID
	}

	result, err := adapter.CheckStatus(ctx, ref)
	if err != nil {
		s.log.Error("Provider status check failed",
			zap.Error(err),
			zap.String("payment_id", paymentID),
		)
		return nil, err
	}

	data := payment.ProviderData
	data.ResponseCode = result.Code
	data.ResponseMessage = result.Message

	switch result.Status {
	case provider.StatusSucceeded:
		payment, err = s.Confirm(ctx, payment.ID, data)
	case provider.StatusFailed:
		payment, err = s.Fail(ctx, payment.ID, data)
	default:
		// Still pending at the gateway, nothing to settle.
	}
	if err != nil {
		return nil, err
	}

	return response.PaymentToResponse(payment), nil
}

func (s *paymentService) Confirm(ctx context.Context, paymentID uuid.UUID, data entity.ProviderData) (*entity.Payment, error) {
	payment, err := s.repo.Payment.FindByID(ctx, paymentID)
	if err != nil {
		return nil, fmt.Errorf("find payment %s: %w", paymentID, err)
	}
	if payment == nil {
		return nil, apperr.New(apperr.KindNotFound, "payment %s not found", paymentID)
	}
	if payment.Status == entity.PaymentStatusCompleted {
		return payment, nil
	}

	merged := mergeProviderData(payment.ProviderData, data)
	now := time.Now()
	change := entity.StatusChange{
		Status:    string(entity.PaymentStatusCompleted),
		ChangedAt: now,
		Note:      "provider confirmed",
	}

	ok, err := s.repo.Payment.MarkCompleted(ctx, paymentID, now, merged, change)
	if err != nil {
		s.log.Error("Failed to complete payment", zap.Error(err), zap.String("payment_id", paymentID.String()))
		return nil, fmt.Errorf("complete payment %s: %w", payment.Reference, err)
	}
	if !ok {
		return nil, apperr.New(apperr.KindConflict, "payment %s already settled as %s", payment.Reference, payment.Status)
	}

	payment.Status = entity.PaymentStatusCompleted
	payment.ProviderData = merged
	payment.PaidAt = &now
	payment.StatusHistory = append(payment.StatusHistory, change)

	if err := s.repo.Booking.UpdatePaymentMirror(ctx, payment.BookingID, payment.Method, entity.PaymentStatusCompleted, &payment.Reference, &now); err != nil {
		s.log.Error("Failed to mirror payment on booking", zap.Error(err), zap.String("payment_id", paymentID.String()))
	}

	// Payment kicks off the work: an accepted booking moves to in_progress.
	booking, err := s.repo.Booking.FindByID(ctx, payment.BookingID)
	if err == nil && booking != nil && booking.Status == entity.BookingStatusAccepted {
		moved, terr := s.repo.Booking.TransitionStatus(ctx, booking.ID, entity.BookingStatusAccepted, entity.BookingStatusInProgress, entity.StatusChange{
			Status:    string(entity.BookingStatusInProgress),
			ChangedAt: now,
			Note:      "payment completed",
		}, nil)
		if terr != nil {
			s.log.Error("Failed to start booking after payment", zap.Error(terr), zap.String("booking_id", booking.ID.String()))
		} else if !moved {
			s.log.Warn("Booking left accepted before payment confirmation landed", zap.String("booking_id", booking.ID.String()))
		}
	}

	s.notifier.Notify(payment.RecipientID, entity.NotificationPaymentReceived,
		"Payment received",
		fmt.Sprintf("Payment %s of %d %s was received.", payment.Reference, payment.Amount, payment.Currency),
		entity.NotificationRefs{BookingID: &payment.BookingID, PaymentID: &payment.ID},
	)

	s.log.Info("Payment completed",
		zap.String("payment_id", paymentID.String()),
		zap.String("reference", payment.Reference),
	)

	return payment, nil
}

func (s *paymentService) Fail(ctx context.Context, paymentID uuid.UUID, data entity.ProviderData) (*entity.Payment, error) {
	payment, err := s.repo.Payment.FindByID(ctx, paymentID)
	if err != nil {
		return nil, fmt.Errorf("find payment %s: %w", paymentID, err)
	}
	if payment == nil {
		return nil, apperr.New(apperr.KindNotFound, "payment %s not found", paymentID)
	}
	if payment.Status == entity.PaymentStatusFailed {
		return payment, nil
	}

	merged := mergeProviderData(payment.ProviderData, data)
	now := time.Now()
	change := entity.StatusChange{
		Status:    string(entity.PaymentStatusFailed),
		ChangedAt: now,
		Note:      data.ResponseMessage,
	}

	ok, err := s.repo.Payment.MarkFailed(ctx, paymentID, merged, change)
	if err != nil {
		s.log.Error("Failed to fail payment", zap.Error(err), zap.String("payment_id", paymentID.String()))
		return nil, fmt.Errorf("fail payment %s: %w", payment.Reference, err)
	}
	if !ok {
		return nil, apperr.New(apperr.KindConflict, "payment %s already settled as %s", payment.Reference, payment.Status)
	}

	payment.Status = entity.PaymentStatusFailed
	payment.ProviderData = merged
	payment.StatusHistory = append(payment.StatusHistory, change)

	if err := s.repo.Booking.UpdatePaymentMirror(ctx, payment.BookingID, payment.Method, entity.PaymentStatusFailed, &payment.Reference, nil); err != nil {
		s.log.Error("Failed to mirror payment on booking", zap.Error(err), zap.String("payment_id", paymentID.String()))
	}

	s.notifier.Notify(payment.PayerID, entity.NotificationPaymentFailed,
		"Payment failed",
		fmt.Sprintf("Payment %s did not go through. You can retry with another method.", payment.Reference),
		entity.NotificationRefs{BookingID: &payment.BookingID, PaymentID: &payment.ID},
	)

	return payment, nil
}

func (s *paymentService) Refund(ctx context.Context, paymentID, adminID string, req *request.RefundPaymentRequest) (*response.PaymentResponse, error) {
	if errs := utils.ValidateStruct(req); len(errs) > 0 {
		return nil, apperr.New(apperr.KindValidation, "validation failed: %s", utils.FormatValidationErrors(errs))
	}

	payment, err := s.loadPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}

	if payment.Status != entity.PaymentStatusCompleted {
		return nil, apperr.New(apperr.KindConflict, "payment %s is %s, only completed payments can be refunded", payment.Reference, payment.Status)
	}

	amount := req.Amount
	if amount == 0 {
		amount = payment.Amount
	}
	if amount < 0 || amount > payment.Amount {
		return nil, apperr.New(apperr.KindValidation, "refund amount %d exceeds payment amount %d", amount, payment.Amount)
	}

	now := time.Now()
	refund := entity.Refund{
		Amount:    amount,
		Reason:    req.Reason,
		Reference: utils.GenerateRefundReference(),
		At:        now,
	}
	change := entity.StatusChange{
		Status:    string(entity.PaymentStatusRefunded),
		ChangedAt: now,
		ActorID:   adminID,
		Note:      req.Reason,
	}

	ok, err := s.repo.Payment.MarkRefunded(ctx, payment.ID, refund, change)
	if err != nil {
		s.log.Error("Failed to refund payment", zap.Error(err), zap.String("payment_id", paymentID))
		return nil, fmt.Errorf("refund payment %s: %w", payment.Reference, err)
	}
	if !ok {
		return nil, apperr.New(apperr.KindConflict, "payment %s changed status, retry", payment.Reference)
	}

	payment.Status = entity.PaymentStatusRefunded
	payment.Refund = &refund
	payment.StatusHistory = append(payment.StatusHistory, change)

	if err := s.repo.Booking.UpdatePaymentMirror(ctx, payment.BookingID, payment.Method, entity.PaymentStatusRefunded, &payment.Reference, payment.PaidAt); err != nil {
		s.log.Error("Failed to mirror refund on booking", zap.Error(err), zap.String("payment_id", paymentID))
	}

	// A refunded payment voids the rental: cancel the booking unless it
	// already reached a terminal status.
	if _, err := s.booking.Cancel(ctx, payment.BookingID.String(), adminID, string(entity.RoleAdmin), "cancelled following refund"); err != nil {
		if apperr.KindOf(err) == apperr.KindConflict {
			s.log.Info("Booking already terminal, refund recorded without cancellation",
				zap.String("booking_id", payment.BookingID.String()))
		} else {
			s.log.Error("Failed to cancel booking after refund",
				zap.Error(err),
				zap.String("booking_id", payment.BookingID.String()),
			)
		}
	}

	s.notifier.Notify(payment.PayerID, entity.NotificationPaymentRefunded,
		"Payment refunded",
		fmt.Sprintf("Payment %s was refunded (%d %s): %s", payment.Reference, amount, payment.Currency, req.Reason),
		entity.NotificationRefs{BookingID: &payment.BookingID, PaymentID: &payment.ID},
	)

	s.log.Info("Payment refunded",
		zap.String("payment_id", paymentID),
		zap.Int64("amount", amount),
		zap.String("refund_reference", refund.Reference),
	)

	return response.PaymentToResponse(payment), nil
}

func (s *paymentService) ExpireStale(ctx context.Context) (int, error) {
	cutoff := time.Now().Add(-s.cfg.PendingExpiry)
	stale, err := s.repo.Payment.FindStalePending(ctx, cutoff)
	if err != nil {
		s.log.Error("Failed to list stale payments", zap.Error(err))
		return 0, fmt.Errorf("list stale payments: %w", err)
	}

	expired := 0
	for _, payment := range stale {
		data := payment.ProviderData
		data.ResponseMessage = "expired after pending deadline"
		if _, err := s.Fail(ctx, payment.ID, data); err != nil {
			// A conflict just means a webhook settled it first.
			if apperr.KindOf(err) != apperr.KindConflict {
				s.log.Error("Failed to expire payment", zap.Error(err), zap.String("payment_id", payment.ID.String()))
			}
			continue
		}
		expired++
	}

	if expired > 0 {
		s.log.Info("Expired stale payments", zap.Int("count", expired))
	}
	return expired, nil
}

func (s *paymentService) loadPayment(ctx context.Context, paymentID string) (*entity.Payment, error) {
	id, err := uuid.Parse(paymentID)
	if err != nil {
		return nil, apperr.New(apperr.KindValidation, "invalid payment ID format %s", paymentID)
	}

	payment, err := s.repo.Payment.FindByID(ctx, id)
	if err != nil {
		s.log.Error("Failed to load payment", zap.Error(err), zap.String("payment_id", paymentID))
		return nil, fmt.Errorf("find payment %s: %w", paymentID, err)
	}
	if payment == nil {
		return nil, apperr.New(apperr.KindNotFound, "payment %s not found", paymentID)
	}
	return payment, nil
}

func (s *paymentService) authorize(payment *entity.Payment, actorID, actorRole string) error {
	if actorRole == string(entity.RoleAdmin) {
		return nil
	}
	actorUUID, err := uuid.Parse(actorID)
	if err != nil {
		return apperr.New(apperr.KindValidation, "invalid actor ID format %s", actorID)
	}
	if payment.PayerID != actorUUID && payment.RecipientID != actorUUID {
		return apperr.New(apperr.KindForbidden, "not a party to payment %s", payment.Reference)
	}
	return nil
}

// mergeProviderData overlays non-empty webhook fields on the data captured at
// initiate time.
func mergeProviderData(base, update entity.ProviderData) entity.ProviderData {
	if update.TransactionID != "" {
		base.TransactionID = update.TransactionID
	}
	if update.ProviderRef != "" {
		base.ProviderRef = update.ProviderRef
	}
	if update.Phone != "" {
		base.Phone = update.Phone
	}
	if update.ResponseCode != "" {
		base.ResponseCode = update.ResponseCode
	}
	if update.ResponseMessage != "" {
		base.ResponseMessage = update.ResponseMessage
	}
	return base
}
