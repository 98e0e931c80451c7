package request

type InitiatePaymentRequest struct {
	BookingID  string `json:"booking_id" validate:"required,uuid4"`
	Method     string `json:"method" validate:"required,oneof=wave orange_money paydunya card cash"`
	PayerPhone string `json:"payer_phone,omitempty" validate:"omitempty,e164"`
}

type RefundPaymentRequest struct {
	// Amount in XOF. Zero or omitted means full refund.
	Amount int64  `json:"amount,omitempty" validate:"omitempty,gt=0"`
	Reason string `json:"reason" validate:"required,min=3,max=500"`
}
