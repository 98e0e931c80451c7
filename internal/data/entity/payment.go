package entity

import (
	"time"

	"github.com/google/uuid"
)

type PaymentStatus string

const (
	PaymentStatusPending    PaymentStatus = "pending"
	PaymentStatusProcessing PaymentStatus = "processing"
	PaymentStatusCompleted  PaymentStatus = "completed"
	PaymentStatusFailed     PaymentStatus = "failed"
	PaymentStatusRefunded   PaymentStatus = "refunded"
	PaymentStatusCancelled  PaymentStatus = "cancelled"
)

// IsActive reports whether the payment still counts against the
// one-active-payment-per-booking rule. Failed and cancelled payments may be
// retried with a new payment; completed blocks any further initiation.
func (s PaymentStatus) IsActive() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusProcessing, PaymentStatusCompleted:
		return true
	}
	return false
}

// IsFinal reports whether a webhook may still move this payment.
func (s PaymentStatus) IsFinal() bool {
	switch s {
	case PaymentStatusCompleted, PaymentStatusFailed, PaymentStatusRefunded, PaymentStatusCancelled:
		return true
	}
	return false
}

type PaymentMethod string

const (
	PaymentMethodWave        PaymentMethod = "wave"
	PaymentMethodOrangeMoney PaymentMethod = "orange_money"
	PaymentMethodPaydunya    PaymentMethod = "paydunya"
	PaymentMethodCard        PaymentMethod = "card"
	PaymentMethodCash        PaymentMethod = "cash"
)

// ValidPaymentMethod reports whether m is one of the supported methods.
func ValidPaymentMethod(m PaymentMethod) bool {
	switch m {
	case PaymentMethodWave, PaymentMethodOrangeMoney, PaymentMethodPaydunya,
		PaymentMethodCard, PaymentMethodCash:
		return true
	}
	return false
}

// ProviderData carries the opaque per-provider correlation fields captured at
// initiate time and enriched by webhooks.
type ProviderData struct {
	TransactionID   string `json:"transaction_id,omitempty"`
	ProviderRef     string `json:"provider_ref,omitempty"`
	Phone           string `json:"phone,omitempty"`
	ResponseCode    string `json:"response_code,omitempty"`
	ResponseMessage string `json:"response_message,omitempty"`
}

type Refund struct {
	Amount    int64     `json:"amount"`
	Reason    string    `json:"reason"`
	Reference string    `json:"reference"`
	At        time.Time `json:"at"`
}

type Payment struct {
	Base
	Reference   string    `db:"reference"`
	BookingID   uuid.UUID `db:"booking_id"`
	PayerID     uuid.UUID `db:"payer_id"`
	RecipientID uuid.UUID `db:"recipient_id"`

	Amount      int64  `db:"amount"`
	PlatformFee int64  `db:"platform_fee"`
	OwnerAmount int64  `db:"owner_amount"`
	Currency    string `db:"currency"`

	Method PaymentMethod `db:"method"`
	Status PaymentStatus `db:"status"`

	ProviderData  ProviderData   `db:"provider_data"`
	Refund        *Refund        `db:"refund"`
	StatusHistory []StatusChange `db:"status_history"`
	PaidAt        *time.Time     `db:"paid_at"`
}
