package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"tractor-rental/internal/data/entity"
	"tractor-rental/internal/dto/request"
	"tractor-rental/pkg/apperr"
	"tractor-rental/pkg/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type bookingFixture struct {
	svc      BookingService
	bookings *mockBookingRepo
	tractors *mockTractorRepo
	users    *mockUserRepo
	notifier *recordingNotifier
	locker   *mockLocker

	clientID  uuid.UUID
	ownerID   uuid.UUID
	tractorID uuid.UUID
}

func newBookingFixture(t *testing.T) *bookingFixture {
	t.Helper()

	f := &bookingFixture{
		bookings: newMockBookingRepo(),
		tractors: newMockTractorRepo(),
		users:    newMockUserRepo(),
		notifier: &recordingNotifier{},
		locker:   &mockLocker{},

		clientID:  uuid.New(),
		ownerID:   uuid.New(),
		tractorID: uuid.New(),
	}

	f.users.Add(&entity.User{
		Base:     entity.Base{ID: f.clientID},
		Name:     "Moussa",
		Phone:    "+221770000001",
		Role:     entity.RoleClient,
		IsActive: true,
	})
	f.users.Add(&entity.User{
		Base:     entity.Base{ID: f.ownerID},
		Name:     "Abdou",
		Phone:    "+221770000002",
		Role:     entity.RoleOwner,
		IsActive: true,
	})
	f.tractors.Add(&entity.Tractor{
		Base:            entity.Base{ID: f.tractorID},
		OwnerID:         f.ownerID,
		Name:            "John Deere 5075E",
		PricePerHectare: 15000,
		Approved:        true,
		Available:       true,
	})

	repo := newTestRepository(f.bookings, newMockPaymentRepo(), f.tractors, f.users, newMockNotificationRepo())
	f.svc = NewBookingService(repo, f.locker, f.notifier, zap.NewNop())
	return f
}

func (f *bookingFixture) seedBooking(t *testing.T, status entity.BookingStatus, withDates bool) *entity.Booking {
	t.Helper()

	booking := &entity.Booking{
		Base: entity.Base{
			ID:        uuid.New(),
			CreatedAt: time.Now(),
			UpdatedAt: time.Now(),
		},
		Reference:       utils.GenerateBookingReference(),
		TractorID:       f.tractorID,
		ClientID:        f.clientID,
		OwnerID:         f.ownerID,
		AreaHectares:    2,
		PricePerHectare: 15000,
		TotalPrice:      30000,
		Commission:      3000,
		OwnerEarnings:   27000,
		Status:          status,
	}
	if withDates {
		start := time.Now().AddDate(0, 0, 7).Truncate(24 * time.Hour)
		end := start.AddDate(0, 0, 2)
		booking.StartDate = &start
		booking.EndDate = &end
		booking.DaysCount = 3
	}
	f.bookings.Add(booking)
	return booking
}

func strPtr(s string) *string { return &s }

func floatPtr(v float64) *float64 { return &v }

func TestBookingCreate(t *testing.T) {
	f := newBookingFixture(t)
	ctx := context.Background()

	start := time.Now().AddDate(0, 0, 10).Format("2006-01-02")
	end := time.Now().AddDate(0, 0, 12).Format("2006-01-02")

	resp, err := f.svc.Create(ctx, f.clientID.String(), &request.CreateBookingRequest{
		TractorID:     f.tractorID.String(),
		AreaHectares:  floatPtr(2),
		StartDate:     strPtr(start),
		EndDate:       strPtr(end),
		PaymentMethod: "wave",
	})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	if resp.TotalPrice != 30000 {
		t.Errorf("expected total 30000, got %d", resp.TotalPrice)
	}
	if resp.Commission != 3000 {
		t.Errorf("expected commission 3000, got %d", resp.Commission)
	}
	if resp.OwnerEarnings != 27000 {
		t.Errorf("expected owner earnings 27000, got %d", resp.OwnerEarnings)
	}
	if resp.Status != entity.BookingStatusPending {
		t.Errorf("expected status pending, got %s", resp.Status)
	}
	if resp.DaysCount != 3 {
		t.Errorf("expected 3 days, got %d", resp.DaysCount)
	}
	if resp.ClientPhone != "+221770000001" || resp.OwnerPhone != "+221770000002" {
		t.Errorf("contact phones not denormalized: %s / %s", resp.ClientPhone, resp.OwnerPhone)
	}
	if got := f.notifier.count(entity.NotificationBookingRequested); got != 1 {
		t.Errorf("expected 1 booking_requested notification, got %d", got)
	}
}

func TestBookingCreateSquareMeters(t *testing.T) {
	f := newBookingFixture(t)

	resp, err := f.svc.Create(context.Background(), f.clientID.String(), &request.CreateBookingRequest{
		TractorID:        f.tractorID.String(),
		AreaSquareMeters: floatPtr(25000),
		PaymentMethod:    "cash",
	})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	if resp.AreaHectares != 2.5 {
		t.Errorf("expected 2.5 ha from 25000 m2, got %g", resp.AreaHectares)
	}
	if resp.TotalPrice != 37500 {
		t.Errorf("expected total 37500, got %d", resp.TotalPrice)
	}
}

func TestBookingCreateRejections(t *testing.T) {
	f := newBookingFixture(t)
	ctx := context.Background()

	tests := []struct {
		name string
		req  request.CreateBookingRequest
		kind apperr.Kind
	}{
		{
			name: "both area fields",
			req: request.CreateBookingRequest{
				TractorID:        f.tractorID.String(),
				AreaHectares:     floatPtr(2),
				AreaSquareMeters: floatPtr(20000),
				PaymentMethod:    "wave",
			},
			kind: apperr.KindValidation,
		},
		{
			name: "no area field",
			req: request.CreateBookingRequest{
				TractorID:     f.tractorID.String(),
				PaymentMethod: "wave",
			},
			kind: apperr.KindValidation,
		},
		{
			name: "unknown tractor",
			req: request.CreateBookingRequest{
				TractorID:     uuid.New().String(),
				AreaHectares:  floatPtr(2),
				PaymentMethod: "wave",
			},
			kind: apperr.KindNotFound,
		},
		{
			name: "start date only",
			req: request.CreateBookingRequest{
				TractorID:     f.tractorID.String(),
				AreaHectares:  floatPtr(2),
				StartDate:     strPtr(time.Now().AddDate(0, 0, 5).Format("2006-01-02")),
				PaymentMethod: "wave",
			},
			kind: apperr.KindValidation,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.Create(ctx, f.clientID.String(), &tc.req)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if got := apperr.KindOf(err); got != tc.kind {
				t.Errorf("expected kind %s, got %s (%v)", tc.kind, got, err)
			}
		})
	}
}

func TestBookingCreateOverlap(t *testing.T) {
	f := newBookingFixture(t)

	start := time.Now().AddDate(0, 0, 7).Truncate(24 * time.Hour)
	end := start.AddDate(0, 0, 2)
	f.tractors.AddBlockedRange(context.Background(), f.tractorID, entity.DateRange{
		BookingID: uuid.New(),
		Start:     start,
		End:       end,
	})

	// Request ends on the day the blocked range starts: boundary overlap.
	_, err := f.svc.Create(context.Background(), f.clientID.String(), &request.CreateBookingRequest{
		TractorID:     f.tractorID.String(),
		AreaHectares:  floatPtr(1),
		StartDate:     strPtr(start.AddDate(0, 0, -1).Format("2006-01-02")),
		EndDate:       strPtr(start.Format("2006-01-02")),
		PaymentMethod: "wave",
	})
	if apperr.KindOf(err) != apperr.KindUnavailable {
		t.Fatalf("expected unavailable, got %v", err)
	}
}

func TestBookingAccept(t *testing.T) {
	f := newBookingFixture(t)
	booking := f.seedBooking(t, entity.BookingStatusPending, true)

	resp, err := f.svc.Accept(context.Background(), booking.ID.String(), f.ownerID.String())
	if err != nil {
		t.Fatalf("Accept returned error: %v", err)
	}
	if resp.Status != entity.BookingStatusAccepted {
		t.Errorf("expected accepted, got %s", resp.Status)
	}

	tractor, _ := f.tractors.FindByID(context.Background(), f.tractorID)
	if len(tractor.BlockedRanges) != 1 {
		t.Fatalf("expected 1 blocked range, got %d", len(tractor.BlockedRanges))
	}
	if tractor.BlockedRanges[0].BookingID != booking.ID {
		t.Error("blocked range not owned by the accepted booking")
	}
	if f.locker.acquired != 1 || f.locker.released != 1 {
		t.Errorf("expected lock acquired and released once, got %d/%d", f.locker.acquired, f.locker.released)
	}
	if got := f.notifier.count(entity.NotificationBookingAccepted); got != 1 {
		t.Errorf("expected 1 accepted notification, got %d", got)
	}
}

func TestBookingAcceptTwiceConflicts(t *testing.T) {
	f := newBookingFixture(t)
	booking := f.seedBooking(t, entity.BookingStatusPending, false)

	if _, err := f.svc.Accept(context.Background(), booking.ID.String(), f.ownerID.String()); err != nil {
		t.Fatalf("first accept failed: %v", err)
	}

	_, err := f.svc.Accept(context.Background(), booking.ID.String(), f.ownerID.String())
	if apperr.KindOf(err) != apperr.KindConflict {
		t.Fatalf("expected conflict on second accept, got %v", err)
	}
}

func TestBookingAcceptWrongOwner(t *testing.T) {
	f := newBookingFixture(t)
	booking := f.seedBooking(t, entity.BookingStatusPending, false)

	_, err := f.svc.Accept(context.Background(), booking.ID.String(), uuid.New().String())
	if apperr.KindOf(err) != apperr.KindForbidden {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestBookingAcceptLockDenied(t *testing.T) {
	f := newBookingFixture(t)
	booking := f.seedBooking(t, entity.BookingStatusPending, true)
	f.locker.Denied = true

	_, err := f.svc.Accept(context.Background(), booking.ID.String(), f.ownerID.String())
	if apperr.KindOf(err) != apperr.KindConflict {
		t.Fatalf("expected conflict when lock is held, got %v", err)
	}
}

func TestBookingAcceptPeriodTaken(t *testing.T) {
	f := newBookingFixture(t)
	booking := f.seedBooking(t, entity.BookingStatusPending, true)

	// Another booking already took the window.
	f.tractors.AddBlockedRange(context.Background(), f.tractorID, entity.DateRange{
		BookingID: uuid.New(),
		Start:     *booking.StartDate,
		End:       *booking.EndDate,
	})

	_, err := f.svc.Accept(context.Background(), booking.ID.String(), f.ownerID.String())
	if apperr.KindOf(err) != apperr.KindUnavailable {
		t.Fatalf("expected unavailable, got %v", err)
	}

	got, _ := f.bookings.FindByID(context.Background(), booking.ID)
	if got.Status != entity.BookingStatusPending {
		t.Errorf("booking must stay pending, got %s", got.Status)
	}
}

func TestBookingReject(t *testing.T) {
	f := newBookingFixture(t)
	booking := f.seedBooking(t, entity.BookingStatusPending, false)

	resp, err := f.svc.Reject(context.Background(), booking.ID.String(), f.ownerID.String(), "tractor under maintenance")
	if err != nil {
		t.Fatalf("Reject returned error: %v", err)
	}
	if resp.Status != entity.BookingStatusRejected {
		t.Errorf("expected rejected, got %s", resp.Status)
	}
	if got := f.notifier.count(entity.NotificationBookingRejected); got != 1 {
		t.Errorf("expected 1 rejected notification, got %d", got)
	}
}

func TestBookingCancel(t *testing.T) {
	f := newBookingFixture(t)
	booking := f.seedBooking(t, entity.BookingStatusAccepted, true)
	f.tractors.AddBlockedRange(context.Background(), f.tractorID, entity.DateRange{
		BookingID: booking.ID,
		Start:     *booking.StartDate,
		End:       *booking.EndDate,
	})

	resp, err := f.svc.Cancel(context.Background(), booking.ID.String(), f.clientID.String(), "client", "changed plans")
	if err != nil {
		t.Fatalf("Cancel returned error: %v", err)
	}
	if resp.Status != entity.BookingStatusCancelled {
		t.Errorf("expected cancelled, got %s", resp.Status)
	}
	if resp.Cancellation == nil || resp.Cancellation.CancelledBy != "client" {
		t.Errorf("cancellation block missing or wrong actor: %+v", resp.Cancellation)
	}

	tractor, _ := f.tractors.FindByID(context.Background(), f.tractorID)
	if len(tractor.BlockedRanges) != 0 {
		t.Errorf("expected calendar freed, got %d ranges", len(tractor.BlockedRanges))
	}
	if got := f.notifier.count(entity.NotificationBookingCancelled); got != 1 {
		t.Errorf("expected 1 cancelled notification, got %d", got)
	}
}

func TestBookingCancelGuards(t *testing.T) {
	f := newBookingFixture(t)

	t.Run("terminal status conflicts", func(t *testing.T) {
		booking := f.seedBooking(t, entity.BookingStatusCompleted, false)
		_, err := f.svc.Cancel(context.Background(), booking.ID.String(), f.clientID.String(), "client", "too late")
		if apperr.KindOf(err) != apperr.KindConflict {
			t.Fatalf("expected conflict, got %v", err)
		}
	})

	t.Run("stranger forbidden", func(t *testing.T) {
		booking := f.seedBooking(t, entity.BookingStatusPending, false)
		_, err := f.svc.Cancel(context.Background(), booking.ID.String(), uuid.New().String(), "client", "not mine")
		if apperr.KindOf(err) != apperr.KindForbidden {
			t.Fatalf("expected forbidden, got %v", err)
		}
	})

	t.Run("admin may cancel", func(t *testing.T) {
		booking := f.seedBooking(t, entity.BookingStatusPending, false)
		resp, err := f.svc.Cancel(context.Background(), booking.ID.String(), uuid.New().String(), "admin", "fraud review")
		if err != nil {
			t.Fatalf("admin cancel failed: %v", err)
		}
		if resp.Cancellation.CancelledBy != "admin" {
			t.Errorf("expected cancelled_by admin, got %s", resp.Cancellation.CancelledBy)
		}
	})

	t.Run("missing reason", func(t *testing.T) {
		booking := f.seedBooking(t, entity.BookingStatusPending, false)
		_, err := f.svc.Cancel(context.Background(), booking.ID.String(), f.clientID.String(), "client", "")
		if apperr.KindOf(err) != apperr.KindValidation {
			t.Fatalf("expected validation error, got %v", err)
		}
	})
}

func TestBookingCancelDuringAcceptIsDenied(t *testing.T) {
	f := newBookingFixture(t)
	booking := f.seedBooking(t, entity.BookingStatusPending, true)

	// Fire a cancellation while Accept holds the calendar lease, after its
	// status change but before the range append. It must not slip through
	// and leave the appended range orphaned.
	var cancelErr error
	f.tractors.AddRangeHook = func() {
		_, cancelErr = f.svc.Cancel(context.Background(), booking.ID.String(), f.clientID.String(), "client", "changed plans")
	}

	if _, err := f.svc.Accept(context.Background(), booking.ID.String(), f.ownerID.String()); err != nil {
		t.Fatalf("Accept returned error: %v", err)
	}
	if apperr.KindOf(cancelErr) != apperr.KindConflict {
		t.Fatalf("expected conflict for cancel during accept, got %v", cancelErr)
	}

	got, _ := f.bookings.FindByID(context.Background(), booking.ID)
	if got.Status != entity.BookingStatusAccepted {
		t.Errorf("expected booking accepted, got %s", got.Status)
	}
	tractor, _ := f.tractors.FindByID(context.Background(), f.tractorID)
	if len(tractor.BlockedRanges) != 1 {
		t.Fatalf("expected 1 blocked range after accept, got %d", len(tractor.BlockedRanges))
	}

	// With the lease free again the cancellation lands and frees the window.
	f.tractors.AddRangeHook = nil
	if _, err := f.svc.Cancel(context.Background(), booking.ID.String(), f.clientID.String(), "client", "changed plans"); err != nil {
		t.Fatalf("Cancel returned error: %v", err)
	}
	tractor, _ = f.tractors.FindByID(context.Background(), f.tractorID)
	if len(tractor.BlockedRanges) != 0 {
		t.Errorf("expected calendar freed, got %d ranges", len(tractor.BlockedRanges))
	}
}

func TestBookingCancelByAdminNotifiesBothParties(t *testing.T) {
	f := newBookingFixture(t)
	booking := f.seedBooking(t, entity.BookingStatusPending, false)

	if _, err := f.svc.Cancel(context.Background(), booking.ID.String(), uuid.New().String(), "admin", "fraud review"); err != nil {
		t.Fatalf("Cancel returned error: %v", err)
	}

	if got := f.notifier.count(entity.NotificationBookingCancelled); got != 2 {
		t.Fatalf("expected 2 cancelled notifications, got %d", got)
	}
	seen := make(map[uuid.UUID]bool)
	for _, e := range f.notifier.events {
		seen[e.UserID] = true
	}
	if !seen[f.clientID] || !seen[f.ownerID] {
		t.Error("client and owner must both be notified of an admin cancellation")
	}
}

func TestBookingCreateUserLookupFailure(t *testing.T) {
	f := newBookingFixture(t)
	f.users.FindError = errors.New("connection reset")

	_, err := f.svc.Create(context.Background(), f.clientID.String(), &request.CreateBookingRequest{
		TractorID:     f.tractorID.String(),
		AreaHectares:  floatPtr(2),
		PaymentMethod: "wave",
	})
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if apperr.KindOf(err) == apperr.KindNotFound {
		t.Fatalf("infrastructure failure must not read as not found: %v", err)
	}
}

func TestBookingStartAndComplete(t *testing.T) {
	f := newBookingFixture(t)
	booking := f.seedBooking(t, entity.BookingStatusAccepted, true)

	if _, err := f.svc.Start(context.Background(), booking.ID.String(), f.ownerID.String()); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}

	resp, err := f.svc.Complete(context.Background(), booking.ID.String(), f.ownerID.String())
	if err != nil {
		t.Fatalf("Complete returned error: %v", err)
	}
	if resp.Status != entity.BookingStatusCompleted {
		t.Errorf("expected completed, got %s", resp.Status)
	}

	tractor, _ := f.tractors.FindByID(context.Background(), f.tractorID)
	if tractor.TotalBookings != 1 {
		t.Errorf("expected 1 completed booking on tractor, got %d", tractor.TotalBookings)
	}
	if tractor.TotalEarnings != 27000 {
		t.Errorf("expected earnings 27000, got %d", tractor.TotalEarnings)
	}
	if tractor.TotalHectares != 2 {
		t.Errorf("expected 2 ha, got %g", tractor.TotalHectares)
	}
	if got := f.notifier.count(entity.NotificationReviewRequested); got != 1 {
		t.Errorf("expected review request notification, got %d", got)
	}
}

func TestBookingCompleteFromPending(t *testing.T) {
	f := newBookingFixture(t)
	booking := f.seedBooking(t, entity.BookingStatusPending, false)

	_, err := f.svc.Complete(context.Background(), booking.ID.String(), f.ownerID.String())
	if apperr.KindOf(err) != apperr.KindConflict {
		t.Fatalf("expected conflict completing a pending booking, got %v", err)
	}
}

func TestBookingListsAndStats(t *testing.T) {
	f := newBookingFixture(t)
	f.seedBooking(t, entity.BookingStatusPending, false)
	f.seedBooking(t, entity.BookingStatusCompleted, false)
	f.seedBooking(t, entity.BookingStatusCompleted, false)

	page, err := f.svc.GetClientBookings(context.Background(), f.clientID.String(), &request.PaginatedRequest{Page: 1, PerPage: 2})
	if err != nil {
		t.Fatalf("GetClientBookings returned error: %v", err)
	}
	if len(page.Data) != 2 {
		t.Errorf("expected 2 bookings on page, got %d", len(page.Data))
	}
	if page.Pagination.Total != 3 {
		t.Errorf("expected total 3, got %d", page.Pagination.Total)
	}

	stats, err := f.svc.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats returned error: %v", err)
	}
	if stats.ByStatus[entity.BookingStatusCompleted] != 2 {
		t.Errorf("expected 2 completed, got %d", stats.ByStatus[entity.BookingStatusCompleted])
	}
	if stats.CompletedTotal != 60000 {
		t.Errorf("expected completed total 60000, got %d", stats.CompletedTotal)
	}
	if stats.TotalCommission+stats.TotalEarnings != stats.CompletedTotal {
		t.Error("commission plus earnings must equal the completed total")
	}
}
