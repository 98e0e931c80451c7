package entity

import (
	"time"

	"github.com/google/uuid"
)

type BookingStatus string

const (
	BookingStatusPending    BookingStatus = "pending"
	BookingStatusAccepted   BookingStatus = "accepted"
	BookingStatusRejected   BookingStatus = "rejected"
	BookingStatusCancelled  BookingStatus = "cancelled"
	BookingStatusInProgress BookingStatus = "in_progress"
	BookingStatusCompleted  BookingStatus = "completed"
)

// bookingTransitions defines the allowed status graph. Terminal statuses map
// to an empty slice and can never be left.
var bookingTransitions = map[BookingStatus][]BookingStatus{
	BookingStatusPending:    {BookingStatusAccepted, BookingStatusRejected, BookingStatusCancelled},
	BookingStatusAccepted:   {BookingStatusInProgress, BookingStatusCancelled},
	BookingStatusInProgress: {BookingStatusCompleted, BookingStatusCancelled},
	BookingStatusCompleted:  {},
	BookingStatusRejected:   {},
	BookingStatusCancelled:  {},
}

// CanTransition reports whether from -> to is a legal booking transition.
func CanTransition(from, to BookingStatus) bool {
	allowed, ok := bookingTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether a booking in this status can no longer change.
func (s BookingStatus) IsTerminal() bool {
	allowed, ok := bookingTransitions[s]
	return ok && len(allowed) == 0
}

// StatusChange is one append-only history entry. Shared by Booking and Payment.
type StatusChange struct {
	Status    string    `json:"status"`
	ChangedAt time.Time `json:"changed_at"`
	ActorID   string    `json:"actor_id,omitempty"`
	Note      string    `json:"note,omitempty"`
}

type Cancellation struct {
	CancelledBy string    `json:"cancelled_by"`
	Reason      string    `json:"reason"`
	CancelledAt time.Time `json:"cancelled_at"`
}

type Booking struct {
	Base
	Reference string    `db:"reference"`
	TractorID uuid.UUID `db:"tractor_id"`
	ClientID  uuid.UUID `db:"client_id"`
	OwnerID   uuid.UUID `db:"owner_id"`

	// Contact phones are copied from both parties at creation time so the
	// record stays accurate even if a user changes their phone later.
	ClientPhone string `db:"client_phone"`
	OwnerPhone  string `db:"owner_phone"`

	// Optional scheduling window, used for planning and availability only,
	// never for pricing.
	StartDate *time.Time `db:"start_date"`
	EndDate   *time.Time `db:"end_date"`
	DaysCount int        `db:"days_count"`

	AreaHectares     float64  `db:"area_hectares"`
	AreaSquareMeters *float64 `db:"area_square_meters"`

	PricePerHectare int64 `db:"price_per_hectare"`
	TotalPrice      int64 `db:"total_price"`
	Commission      int64 `db:"commission"`
	OwnerEarnings   int64 `db:"owner_earnings"`

	// Mirror of the linked Payment, kept in sync by the payment service.
	PaymentMethod PaymentMethod `db:"payment_method"`
	PaymentStatus PaymentStatus `db:"payment_status"`
	PaymentRef    *string       `db:"payment_ref"`
	PaidAt        *time.Time    `db:"paid_at"`

	Status        BookingStatus  `db:"status"`
	StatusHistory []StatusChange `db:"status_history"`
	Cancellation  *Cancellation  `db:"cancellation"`
}
