package request

type CreateBookingRequest struct {
	TractorID string `json:"tractor_id" validate:"required,uuid4"`

	// Exactly one of the two area fields is required. Square meters are
	// converted to hectares before pricing.
	AreaHectares     *float64 `json:"area_hectares,omitempty" validate:"omitempty,gt=0"`
	AreaSquareMeters *float64 `json:"area_square_meters,omitempty" validate:"omitempty,gt=0"`

	// Optional work window, format 2006-01-02. Both or neither.
	StartDate *string `json:"start_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	EndDate   *string `json:"end_date,omitempty" validate:"omitempty,datetime=2006-01-02"`

	PaymentMethod string `json:"payment_method" validate:"required,oneof=wave orange_money paydunya card cash"`
}

type CancelBookingRequest struct {
	Reason string `json:"reason" validate:"required,min=3,max=500"`
}

type RejectBookingRequest struct {
	Reason string `json:"reason,omitempty" validate:"omitempty,max=500"`
}
