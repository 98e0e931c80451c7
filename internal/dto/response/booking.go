package response

import (
	"time"

	"tractor-rental/internal/data/entity"
)

type StatusChangeResponse struct {
	Status    string    `json:"status"`
	ChangedAt time.Time `json:"changed_at"`
	ActorID   string    `json:"actor_id,omitempty"`
	Note      string    `json:"note,omitempty"`
}

type CancellationResponse struct {
	CancelledBy string    `json:"cancelled_by"`
	Reason      string    `json:"reason"`
	CancelledAt time.Time `json:"cancelled_at"`
}

type BookingResponse struct {
	ID        string `json:"id"`
	Reference string `json:"reference"`
	TractorID string `json:"tractor_id"`
	ClientID  string `json:"client_id"`
	OwnerID   string `json:"owner_id"`

	ClientPhone string `json:"client_phone"`
	OwnerPhone  string `json:"owner_phone"`

	StartDate *string `json:"start_date,omitempty"`
	EndDate   *string `json:"end_date,omitempty"`
	DaysCount int     `json:"days_count,omitempty"`

	AreaHectares     float64  `json:"area_hectares"`
	AreaSquareMeters *float64 `json:"area_square_meters,omitempty"`

	PricePerHectare int64 `json:"price_per_hectare"`
	TotalPrice      int64 `json:"total_price"`
	Commission      int64 `json:"commission"`
	OwnerEarnings   int64 `json:"owner_earnings"`

	PaymentMethod entity.PaymentMethod `json:"payment_method,omitempty"`
	PaymentStatus entity.PaymentStatus `json:"payment_status,omitempty"`
	PaymentRef    *string              `json:"payment_ref,omitempty"`
	PaidAt        *time.Time           `json:"paid_at,omitempty"`

	Status        entity.BookingStatus   `json:"status"`
	StatusHistory []StatusChangeResponse `json:"status_history,omitempty"`
	Cancellation  *CancellationResponse  `json:"cancellation,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type BookingStatsResponse struct {
	ByStatus        map[entity.BookingStatus]int64 `json:"by_status"`
	CompletedTotal  int64                          `json:"completed_total"`
	TotalCommission int64                          `json:"total_commission"`
	TotalEarnings   int64                          `json:"total_earnings"`
}

func BookingToResponse(b *entity.Booking) *BookingResponse {
	resp := &BookingResponse{
		ID:               b.ID.String(),
		Reference:        b.Reference,
		TractorID:        b.TractorID.String(),
		ClientID:         b.ClientID.String(),
		OwnerID:          b.OwnerID.String(),
		ClientPhone:      b.ClientPhone,
		OwnerPhone:       b.OwnerPhone,
		DaysCount:        b.DaysCount,
		AreaHectares:     b.AreaHectares,
		AreaSquareMeters: b.AreaSquareMeters,
		PricePerHectare:  b.PricePerHectare,
		TotalPrice:       b.TotalPrice,
		Commission:       b.Commission,
		OwnerEarnings:    b.OwnerEarnings,
		PaymentMethod:    b.PaymentMethod,
		PaymentStatus:    b.PaymentStatus,
		PaymentRef:       b.PaymentRef,
		PaidAt:           b.PaidAt,
		Status:           b.Status,
		CreatedAt:        b.CreatedAt,
		UpdatedAt:        b.UpdatedAt,
	}

	if b.StartDate != nil {
		s := b.StartDate.Format("2006-01-02")
		resp.StartDate = &s
	}
	if b.EndDate != nil {
		e := b.EndDate.Format("2006-01-02")
		resp.EndDate = &e
	}

	if len(b.StatusHistory) > 0 {
		resp.StatusHistory = make([]StatusChangeResponse, len(b.StatusHistory))
		for i, c := range b.StatusHistory {
			resp.StatusHistory[i] = StatusChangeResponse{
				Status:    c.Status,
				ChangedAt: c.ChangedAt,
				ActorID:   c.ActorID,
				Note:      c.Note,
			}
		}
	}

	if b.Cancellation != nil {
		resp.Cancellation = &CancellationResponse{
			CancelledBy: b.Cancellation.CancelledBy,
			Reason:      b.Cancellation.Reason,
			CancelledAt: b.Cancellation.CancelledAt,
		}
	}

	return resp
}

func BookingsToResponse(bookings []*entity.Booking) []BookingResponse {
	out := make([]BookingResponse, len(bookings))
	for i, b := range bookings {
		out[i] = *BookingToResponse(b)
	}
	return out
}
