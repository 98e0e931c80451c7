package entity

import (
	"time"

	"github.com/google/uuid"
)

// DateRange is one blocked interval on a tractor's calendar, owned by an
// accepted booking.
type DateRange struct {
	BookingID uuid.UUID `json:"booking_id"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
}

// Overlaps reports whether [start, end] intersects the range. Boundaries
// count as overlap: a booking ending on a day blocks a booking starting the
// same day.
func (r DateRange) Overlaps(start, end time.Time) bool {
	return !start.After(r.End) && !end.Before(r.Start)
}

type Tractor struct {
	Base
	OwnerID         uuid.UUID `db:"owner_id"`
	Name            string    `db:"name"`
	PricePerHectare int64     `db:"price_per_hectare"`
	Approved        bool      `db:"approved"`
	Available       bool      `db:"available"`

	BlockedRanges []DateRange `db:"blocked_ranges"`

	// Aggregates maintained on booking completion.
	TotalBookings int     `db:"total_bookings"`
	TotalEarnings int64   `db:"total_earnings"`
	TotalHectares float64 `db:"total_hectares"`
}

// IsAvailableForPeriod reports whether no blocked range intersects the window.
func (t *Tractor) IsAvailableForPeriod(start, end time.Time) bool {
	for _, r := range t.BlockedRanges {
		if r.Overlaps(start, end) {
			return false
		}
	}
	return true
}
