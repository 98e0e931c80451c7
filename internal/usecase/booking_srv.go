package usecase

import (
	"context"
	"fmt"
	"time"

	"tractor-rental/internal/data/entity"
	"tractor-rental/internal/data/repository"
	"tractor-rental/internal/dto/request"
	"tractor-rental/internal/dto/response"
	"tractor-rental/internal/pricing"
	"tractor-rental/pkg/apperr"
	"tractor-rental/pkg/redisstore"
	"tractor-rental/pkg/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	dateLayout = "2006-01-02"

	// availabilityLockTTL bounds a calendar mutation; long enough for the
	// re-check plus two writes, short enough to self-heal after a crash.
	availabilityLockTTL = 10 * time.Second
)

type BookingService interface {
	// Client endpoints
	Create(ctx context.Context, clientID string, req *request.CreateBookingRequest) (*response.BookingResponse, error)
	Cancel(ctx context.Context, bookingID, actorID, actorRole, reason string) (*response.BookingResponse, error)
	GetByID(ctx context.Context, bookingID, actorID, actorRole string) (*response.BookingResponse, error)
	GetClientBookings(ctx context.Context, clientID string, req *request.PaginatedRequest) (*response.PaginatedResponse[response.BookingResponse], error)

	// Owner endpoints
	Accept(ctx context.Context, bookingID, ownerID string) (*response.BookingResponse, error)
	Reject(ctx context.Context, bookingID, ownerID, reason string) (*response.BookingResponse, error)
	Start(ctx context.Context, bookingID, ownerID string) (*response.BookingResponse, error)
	Complete(ctx context.Context, bookingID, ownerID string) (*response.BookingResponse, error)
	GetOwnerBookings(ctx context.Context, ownerID string, req *request.PaginatedRequest) (*response.PaginatedResponse[response.BookingResponse], error)

	// Admin endpoints
	Stats(ctx context.Context) (*response.BookingStatsResponse, error)
}

type bookingService struct {
	repo     *repository.Repository
	locker   redisstore.Locker
	notifier Notifier
	log      *zap.Logger
}

func NewBookingService(repo *repository.Repository, locker redisstore.Locker, notifier Notifier, log *zap.Logger) BookingService {
	return &bookingService{
		repo:     repo,
		locker:   locker,
		notifier: notifier,
		log:      log.With(zap.String("service", "booking")),
	}
}

func (s *bookingService) Create(ctx context.Context, clientID string, req *request.CreateBookingRequest) (*response.BookingResponse, error) {
	if errs := utils.ValidateStruct(req); len(errs) > 0 {
		s.log.Warn("Create booking validation failed", zap.Any("errors", errs))
		return nil, apperr.New(apperr.KindValidation, "validation failed: %s", utils.FormatValidationErrors(errs))
	}

	clientUUID, err := uuid.Parse(clientID)
	if err != nil {
		return nil, apperr.New(apperr.KindValidation, "invalid client ID format %s", clientID)
	}

	tractorID, err := uuid.Parse(req.TractorID)
	if err != nil {
		return nil, apperr.New(apperr.KindValidation, "invalid tractor ID format %s", req.TractorID)
	}

	// Exactly one area field must be given.
	if (req.AreaHectares == nil) == (req.AreaSquareMeters == nil) {
		return nil, apperr.New(apperr.KindValidation, "provide exactly one of area_hectares or area_square_meters")
	}

	var hectares float64
	if req.AreaHectares != nil {
		hectares = *req.AreaHectares
	} else {
		hectares = pricing.HectaresFromSquareMeters(*req.AreaSquareMeters)
	}
	if hectares <= 0 {
		return nil, apperr.New(apperr.KindValidation, "area must be positive")
	}

	startDate, endDate, daysCount, err := parseBookingPeriod(req.StartDate, req.EndDate)
	if err != nil {
		return nil, err
	}

	tractor, err := s.repo.Tractor.FindByID(ctx, tractorID)
	if err != nil {
		s.log.Error("Failed to load tractor", zap.Error(err), zap.String("tractor_id", req.TractorID))
		return nil, fmt.Errorf("find tractor %s: %w", req.TractorID, err)
	}
	if tractor == nil {
		return nil, apperr.New(apperr.KindNotFound, "tractor %s not found", req.TractorID)
	}
	if !tractor.Approved || !tractor.Available {
		return nil, apperr.New(apperr.KindUnavailable, "tractor %s is not available for booking", req.TractorID)
	}
	if tractor.OwnerID == clientUUID {
		return nil, apperr.New(apperr.KindValidation, "cannot book your own tractor")
	}

	if startDate != nil && !tractor.IsAvailableForPeriod(*startDate, *endDate) {
		return nil, apperr.New(apperr.KindUnavailable, "tractor %s is already booked for this period", req.TractorID)
	}

	client, err := s.repo.User.FindByID(ctx, clientUUID)
	if err != nil {
		s.log.Error("Failed to load client", zap.Error(err), zap.String("client_id", clientID))
		return nil, fmt.Errorf("find client %s: %w", clientID, err)
	}
	if client == nil {
		return nil, apperr.New(apperr.KindNotFound, "client %s not found", clientID)
	}

	owner, err := s.repo.User.FindByID(ctx, tractor.OwnerID)
	if err != nil {
		s.log.Error("Failed to load owner", zap.Error(err), zap.String("owner_id", tractor.OwnerID.String()))
		return nil, fmt.Errorf("find owner %s: %w", tractor.OwnerID, err)
	}
	if owner == nil {
		return nil, apperr.New(apperr.KindNotFound, "owner of tractor %s not found", req.TractorID)
	}

	quote := pricing.Compute(tractor.PricePerHectare, hectares)

	now := time.Now()
	booking := &entity.Booking{
		Base: entity.Base{
			ID:        uuid.New(),
			CreatedAt: now,
			UpdatedAt: now,
		},
		Reference:        utils.GenerateBookingReference(),
		TractorID:        tractorID,
		ClientID:         clientUUID,
		OwnerID:          tractor.OwnerID,
		ClientPhone:      client.Phone,
		OwnerPhone:       owner.Phone,
		StartDate:        startDate,
		EndDate:          endDate,
		DaysCount:        daysCount,
		AreaHectares:     hectares,
		AreaSquareMeters: req.AreaSquareMeters,
		PricePerHectare:  tractor.PricePerHectare,
		TotalPrice:       quote.TotalPrice,
		Commission:       quote.Commission,
		OwnerEarnings:    quote.OwnerEarnings,
		PaymentMethod:    entity.PaymentMethod(req.PaymentMethod),
		PaymentStatus:    entity.PaymentStatusPending,
		Status:           entity.BookingStatusPending,
		StatusHistory: []entity.StatusChange{{
			Status:    string(entity.BookingStatusPending),
			ChangedAt: now,
			ActorID:   clientID,
		}},
	}

	if err := s.repo.Booking.Create(ctx, booking); err != nil {
		s.log.Error("Failed to create booking",
			zap.Error(err),
			zap.String("client_id", clientID),
			zap.String("tractor_id", req.TractorID),
		)
		return nil, fmt.Errorf("create booking: %w", err)
	}

	s.notifier.Notify(tractor.OwnerID, entity.NotificationBookingRequested,
		"New booking request",
		fmt.Sprintf("Booking %s requested for %s (%.2f ha, %d XOF)", booking.Reference, tractor.Name, hectares, quote.TotalPrice),
		entity.NotificationRefs{BookingID: &booking.ID},
	)

	s.log.Info("Booking created",
		zap.String("booking_id", booking.ID.String()),
		zap.String("reference", booking.Reference),
		zap.Int64("total_price", quote.TotalPrice),
	)

	return response.BookingToResponse(booking), nil
}

// Accept moves a pending booking to accepted and blocks the tractor's
// calendar for the booking window. The availability re-check and the calendar
// write run under a per-tractor lease so two owners accepting overlapping
// requests cannot both win.
func (s *bookingService) Accept(ctx context.Context, bookingID, ownerID string) (*response.BookingResponse, error) {
	booking, err := s.loadOwnedBooking(ctx, bookingID, ownerID)
	if err != nil {
		return nil, err
	}

	if booking.StartDate != nil {
		release, err := s.lockTractor(ctx, booking.TractorID)
		if err != nil {
			return nil, err
		}
		defer release()

		// Re-check under the lease: another booking may have taken the
		// window since this one was requested.
		tractor, err := s.repo.Tractor.FindByID(ctx, booking.TractorID)
		if err != nil || tractor == nil {
			return nil, fmt.Errorf("find tractor %s: %w", booking.TractorID, err)
		}
		if !tractor.IsAvailableForPeriod(*booking.StartDate, *booking.EndDate) {
			return nil, apperr.New(apperr.KindUnavailable, "tractor is no longer available for this period")
		}
	}

	booking, err = s.transition(ctx, booking, entity.BookingStatusAccepted, ownerID, "")
	if err != nil {
		return nil, err
	}

	if booking.StartDate != nil {
		if err := s.repo.Tractor.AddBlockedRange(ctx, booking.TractorID, entity.DateRange{
			BookingID: booking.ID,
			Start:     *booking.StartDate,
			End:       *booking.EndDate,
		}); err != nil {
			s.log.Error("Failed to block tractor calendar",
				zap.Error(err),
				zap.String("booking_id", booking.ID.String()),
			)
			return nil, fmt.Errorf("block tractor calendar: %w", err)
		}
	}

	s.notifier.Notify(booking.ClientID, entity.NotificationBookingAccepted,
		"Booking accepted",
		fmt.Sprintf("Booking %s was accepted. You can now proceed with payment.", booking.Reference),
		entity.NotificationRefs{BookingID: &booking.ID},
	)

	return response.BookingToResponse(booking), nil
}

func (s *bookingService) Reject(ctx context.Context, bookingID, ownerID, reason string) (*response.BookingResponse, error) {
	booking, err := s.loadOwnedBooking(ctx, bookingID, ownerID)
	if err != nil {
		return nil, err
	}

	booking, err = s.transition(ctx, booking, entity.BookingStatusRejected, ownerID, reason)
	if err != nil {
		return nil, err
	}

	message := fmt.Sprintf("Booking %s was rejected by the owner.", booking.Reference)
	if reason != "" {
		message = fmt.Sprintf("Booking %s was rejected: %s", booking.Reference, reason)
	}
	s.notifier.Notify(booking.ClientID, entity.NotificationBookingRejected,
		"Booking rejected", message,
		entity.NotificationRefs{BookingID: &booking.ID},
	)

	return response.BookingToResponse(booking), nil
}

// Cancel is shared by the client, the owner and admins. Cancelling an
// accepted or running booking frees the tractor's calendar.
func (s *bookingService) Cancel(ctx context.Context, bookingID, actorID, actorRole, reason string) (*response.BookingResponse, error) {
	if reason == "" {
		return nil, apperr.New(apperr.KindValidation, "cancellation reason is required")
	}

	booking, err := s.loadBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	actorUUID, err := uuid.Parse(actorID)
	if err != nil {
		return nil, apperr.New(apperr.KindValidation, "invalid actor ID format %s", actorID)
	}
	if actorRole != string(entity.RoleAdmin) && booking.ClientID != actorUUID && booking.OwnerID != actorUUID {
		return nil, apperr.New(apperr.KindForbidden, "not a party to booking %s", bookingID)
	}

	if !entity.CanTransition(booking.Status, entity.BookingStatusCancelled) {
		return nil, apperr.New(apperr.KindConflict, "booking %s cannot be cancelled from status %s", bookingID, booking.Status)
	}

	wasBlocked := booking.Status == entity.BookingStatusAccepted || booking.Status == entity.BookingStatusInProgress

	// Freeing the calendar shares the per-tractor lease with Accept's
	// append, so a cancellation cannot slip inside an acceptance in flight.
	if wasBlocked && booking.StartDate != nil {
		release, err := s.lockTractor(ctx, booking.TractorID)
		if err != nil {
			return nil, err
		}
		defer release()
	}

	now := time.Now()
	cancellation := &entity.Cancellation{
		CancelledBy: cancellerLabel(actorRole, booking, actorUUID),
		Reason:      reason,
		CancelledAt: now,
	}
	change := entity.StatusChange{
		Status:    string(entity.BookingStatusCancelled),
		ChangedAt: now,
		ActorID:   actorID,
		Note:      reason,
	}

	ok, err := s.repo.Booking.TransitionStatus(ctx, booking.ID, booking.Status, entity.BookingStatusCancelled, change, cancellation)
	if err != nil {
		s.log.Error("Failed to cancel booking", zap.Error(err), zap.String("booking_id", bookingID))
		return nil, fmt.Errorf("cancel booking %s: %w", bookingID, err)
	}
	if !ok {
		return nil, apperr.New(apperr.KindConflict, "booking %s changed status, retry", bookingID)
	}

	if wasBlocked && booking.StartDate != nil {
		if err := s.repo.Tractor.RemoveBlockedRange(ctx, booking.TractorID, booking.ID); err != nil {
			s.log.Error("Failed to free tractor calendar",
				zap.Error(err),
				zap.String("booking_id", bookingID),
			)
		}
	}

	booking.Status = entity.BookingStatusCancelled
	booking.StatusHistory = append(booking.StatusHistory, change)
	booking.Cancellation = cancellation

	// Notify the counterpart of whoever cancelled. An admin is neither
	// party, so both sides hear about it.
	recipients := []uuid.UUID{booking.OwnerID}
	switch {
	case booking.ClientID != actorUUID && booking.OwnerID != actorUUID:
		recipients = []uuid.UUID{booking.ClientID, booking.OwnerID}
	case booking.ClientID != actorUUID:
		recipients = []uuid.UUID{booking.ClientID}
	}
	for _, recipient := range recipients {
		s.notifier.Notify(recipient, entity.NotificationBookingCancelled,
			"Booking cancelled",
			fmt.Sprintf("Booking %s was cancelled: %s", booking.Reference, reason),
			entity.NotificationRefs{BookingID: &booking.ID},
		)
	}

	return response.BookingToResponse(booking), nil
}

func (s *bookingService) Start(ctx context.Context, bookingID, ownerID string) (*response.BookingResponse, error) {
	booking, err := s.loadOwnedBooking(ctx, bookingID, ownerID)
	if err != nil {
		return nil, err
	}

	booking, err = s.transition(ctx, booking, entity.BookingStatusInProgress, ownerID, "work started")
	if err != nil {
		return nil, err
	}

	s.notifier.Notify(booking.ClientID, entity.NotificationBookingStarted,
		"Work started",
		fmt.Sprintf("Work for booking %s has started.", booking.Reference),
		entity.NotificationRefs{BookingID: &booking.ID},
	)

	return response.BookingToResponse(booking), nil
}

func (s *bookingService) Complete(ctx context.Context, bookingID, ownerID string) (*response.BookingResponse, error) {
	booking, err := s.loadOwnedBooking(ctx, bookingID, ownerID)
	if err != nil {
		return nil, err
	}

	if booking.StartDate != nil {
		release, err := s.lockTractor(ctx, booking.TractorID)
		if err != nil {
			return nil, err
		}
		defer release()
	}

	booking, err = s.transition(ctx, booking, entity.BookingStatusCompleted, ownerID, "")
	if err != nil {
		return nil, err
	}

	if err := s.repo.Tractor.IncrementStats(ctx, booking.TractorID, booking.OwnerEarnings, booking.AreaHectares); err != nil {
		s.log.Error("Failed to update tractor stats",
			zap.Error(err),
			zap.String("booking_id", bookingID),
		)
	}

	if booking.StartDate != nil {
		if err := s.repo.Tractor.RemoveBlockedRange(ctx, booking.TractorID, booking.ID); err != nil {
			s.log.Error("Failed to free tractor calendar", zap.Error(err), zap.String("booking_id", bookingID))
		}
	}

	s.notifier.Notify(booking.ClientID, entity.NotificationBookingCompleted,
		"Work completed",
		fmt.Sprintf("Booking %s is complete.", booking.Reference),
		entity.NotificationRefs{BookingID: &booking.ID},
	)
	s.notifier.Notify(booking.ClientID, entity.NotificationReviewRequested,
		"How was the work?",
		fmt.Sprintf("Leave a review for booking %s.", booking.Reference),
		entity.NotificationRefs{BookingID: &booking.ID},
	)

	return response.BookingToResponse(booking), nil
}

func (s *bookingService) GetByID(ctx context.Context, bookingID, actorID, actorRole string) (*response.BookingResponse, error) {
	booking, err := s.loadBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	actorUUID, err := uuid.Parse(actorID)
	if err != nil {
		return nil, apperr.New(apperr.KindValidation, "invalid actor ID format %s", actorID)
	}
	if actorRole != string(entity.RoleAdmin) && booking.ClientID != actorUUID && booking.OwnerID != actorUUID {
		return nil, apperr.New(apperr.KindForbidden, "not a party to booking %s", bookingID)
	}

	return response.BookingToResponse(booking), nil
}

func (s *bookingService) GetClientBookings(ctx context.Context, clientID string, req *request.PaginatedRequest) (*response.PaginatedResponse[response.BookingResponse], error) {
	clientUUID, err := uuid.Parse(clientID)
	if err != nil {
		return nil, apperr.New(apperr.KindValidation, "invalid client ID format %s", clientID)
	}

	bookings, err := s.repo.Booking.FindByClientID(ctx, clientUUID, req.Limit(), req.Offset())
	if err != nil {
		s.log.Error("Failed to list client bookings", zap.Error(err), zap.String("client_id", clientID))
		return nil, fmt.Errorf("list client bookings: %w", err)
	}

	total, err := s.repo.Booking.CountByClientID(ctx, clientUUID)
	if err != nil {
		return nil, fmt.Errorf("count client bookings: %w", err)
	}

	return response.NewPaginatedResponse(response.BookingsToResponse(bookings), req.Page, req.Limit(), total), nil
}

func (s *bookingService) GetOwnerBookings(ctx context.Context, ownerID string, req *request.PaginatedRequest) (*response.PaginatedResponse[response.BookingResponse], error) {
	ownerUUID, err := uuid.Parse(ownerID)
	if err != nil {
		return nil, apperr.New(apperr.KindValidation, "invalid owner ID format %s", ownerID)
	}

	bookings, err := s.repo.Booking.FindByOwnerID(ctx, ownerUUID, req.Limit(), req.Offset())
	if err != nil {
		s.log.Error("Failed to list owner bookings", zap.Error(err), zap.String("owner_id", ownerID))
		return nil, fmt.Errorf("list owner bookings: %w", err)
	}

	total, err := s.repo.Booking.CountByOwnerID(ctx, ownerUUID)
	if err != nil {
		return nil, fmt.Errorf("count owner bookings: %w", err)
	}

	return response.NewPaginatedResponse(response.BookingsToResponse(bookings), req.Page, req.Limit(), total), nil
}

func (s *bookingService) Stats(ctx context.Context) (*response.BookingStatsResponse, error) {
	byStatus, err := s.repo.Booking.CountByStatus(ctx)
	if err != nil {
		s.log.Error("Failed to count bookings by status", zap.Error(err))
		return nil, fmt.Errorf("count bookings by status: %w", err)
	}

	total, commission, earnings, err := s.repo.Booking.SumCompletedAmounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("sum completed amounts: %w", err)
	}

	return &response.BookingStatsResponse{
		ByStatus:        byStatus,
		CompletedTotal:  total,
		TotalCommission: commission,
		TotalEarnings:   earnings,
	}, nil
}

// lockTractor takes the calendar lease shared by every blocked-range
// mutation. The caller must invoke the returned release func; a held lease
// surfaces as a conflict.
func (s *bookingService) lockTractor(ctx context.Context, tractorID uuid.UUID) (func(), error) {
	acquired, err := s.locker.AcquireTractorLock(ctx, tractorID.String(), availabilityLockTTL)
	if err != nil {
		s.log.Error("Failed to acquire tractor lock", zap.Error(err), zap.String("tractor_id", tractorID.String()))
		return nil, fmt.Errorf("acquire tractor lock: %w", err)
	}
	if !acquired {
		return nil, apperr.New(apperr.KindConflict, "tractor calendar is being updated, try again")
	}
	return func() {
		if err := s.locker.ReleaseTractorLock(ctx, tractorID.String()); err != nil {
			s.log.Warn("Failed to release tractor lock", zap.Error(err))
		}
	}, nil
}

// loadBooking fetches a booking or returns a not-found business error.
func (s *bookingService) loadBooking(ctx context.Context, bookingID string) (*entity.Booking, error) {
	id, err := uuid.Parse(bookingID)
	if err != nil {
		return nil, apperr.New(apperr.KindValidation, "invalid booking ID format %s", bookingID)
	}

	booking, err := s.repo.Booking.FindByID(ctx, id)
	if err != nil {
		s.log.Error("Failed to load booking", zap.Error(err), zap.String("booking_id", bookingID))
		return nil, fmt.Errorf("find booking %s: %w", bookingID, err)
	}
	if booking == nil {
		return nil, apperr.New(apperr.KindNotFound, "booking %s not found", bookingID)
	}
	return booking, nil
}

// loadOwnedBooking additionally checks the caller owns the tractor.
func (s *bookingService) loadOwnedBooking(ctx context.Context, bookingID, ownerID string) (*entity.Booking, error) {
	booking, err := s.loadBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	ownerUUID, err := uuid.Parse(ownerID)
	if err != nil {
		return nil, apperr.New(apperr.KindValidation, "invalid owner ID format %s", ownerID)
	}
	if booking.OwnerID != ownerUUID {
		return nil, apperr.New(apperr.KindForbidden, "booking %s does not belong to this owner", bookingID)
	}
	return booking, nil
}

// transition applies the conditional status update and mirrors the result on
// the in-memory entity. A losing race surfaces as a conflict.
func (s *bookingService) transition(ctx context.Context, booking *entity.Booking, next entity.BookingStatus, actorID, note string) (*entity.Booking, error) {
	if !entity.CanTransition(booking.Status, next) {
		return nil, apperr.New(apperr.KindConflict, "cannot move booking %s from %s to %s", booking.Reference, booking.Status, next)
	}

	change := entity.StatusChange{
		Status:    string(next),
		ChangedAt: time.Now(),
		ActorID:   actorID,
		Note:      note,
	}

	ok, err := s.repo.Booking.TransitionStatus(ctx, booking.ID, booking.Status, next, change, nil)
	if err != nil {
		s.log.Error("Failed to transition booking",
			zap.Error(err),
			zap.String("booking_id", booking.ID.String()),
			zap.String("next", string(next)),
		)
		return nil, fmt.Errorf("transition booking %s to %s: %w", booking.Reference, next, err)
	}
	if !ok {
		return nil, apperr.New(apperr.KindConflict, "booking %s changed status, retry", booking.Reference)
	}

	booking.Status = next
	booking.StatusHistory = append(booking.StatusHistory, change)
	booking.UpdatedAt = change.ChangedAt
	return booking, nil
}

func parseBookingPeriod(start, end *string) (*time.Time, *time.Time, int, error) {
	if (start == nil) != (end == nil) {
		return nil, nil, 0, apperr.New(apperr.KindValidation, "start_date and end_date must be given together")
	}
	if start == nil {
		return nil, nil, 0, nil
	}

	startDate, err := time.Parse(dateLayout, *start)
	if err != nil {
		return nil, nil, 0, apperr.New(apperr.KindValidation, "invalid start_date %s", *start)
	}
	endDate, err := time.Parse(dateLayout, *end)
	if err != nil {
		return nil, nil, 0, apperr.New(apperr.KindValidation, "invalid end_date %s", *end)
	}
	if endDate.Before(startDate) {
		return nil, nil, 0, apperr.New(apperr.KindValidation, "end_date is before start_date")
	}
	if startDate.Before(time.Now().Truncate(24 * time.Hour)) {
		return nil, nil, 0, apperr.New(apperr.KindValidation, "start_date is in the past")
	}

	days := int(endDate.Sub(startDate).Hours()/24) + 1
	return &startDate, &endDate, days, nil
}

func cancellerLabel(actorRole string, booking *entity.Booking, actorUUID uuid.UUID) string {
	switch {
	case actorRole == string(entity.RoleAdmin):
		return "admin"
	case booking.ClientID == actorUUID:
		return "client"
	default:
		return "owner"
	}
}
