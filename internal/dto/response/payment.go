package response

import (
	"time"

	"tractor-rental/internal/data/entity"
)

type RefundResponse struct {
	Amount    int64     `json:"amount"`
	Reason    string    `json:"reason"`
	Reference string    `json:"reference"`
	At        time.Time `json:"at"`
}

type PaymentResponse struct {
	ID          string `json:"id"`
	Reference   string `json:"reference"`
	BookingID   string `json:"booking_id"`
	PayerID     string `json:"payer_id"`
	RecipientID string `json:"recipient_id"`

	Amount      int64  `json:"amount"`
	PlatformFee int64  `json:"platform_fee"`
	OwnerAmount int64  `json:"owner_amount"`
	Currency    string `json:"currency"`

	Method entity.PaymentMethod `json:"method"`
	Status entity.PaymentStatus `json:"status"`

	TransactionID string `json:"transaction_id,omitempty"`
	// RedirectURL is only set on initiation for redirect-based providers.
	RedirectURL string `json:"redirect_url,omitempty"`

	Refund        *RefundResponse        `json:"refund,omitempty"`
	StatusHistory []StatusChangeResponse `json:"status_history,omitempty"`
	PaidAt        *time.Time             `json:"paid_at,omitempty"`
	CreatedAt     time.Time              `json:"created_at"`
}

func PaymentToResponse(p *entity.Payment) *PaymentResponse {
	resp := &PaymentResponse{
		ID:            p.ID.String(),
		Reference:     p.Reference,
		BookingID:     p.BookingID.String(),
		PayerID:       p.PayerID.String(),
		RecipientID:   p.RecipientID.String(),
		Amount:        p.Amount,
		PlatformFee:   p.PlatformFee,
		OwnerAmount:   p.OwnerAmount,
		Currency:      p.Currency,
		Method:        p.Method,
		Status:        p.Status,
		TransactionID: p.ProviderData.TransactionID,
		PaidAt:        p.PaidAt,
		CreatedAt:     p.CreatedAt,
	}

	if p.Refund != nil {
		resp.Refund = &RefundResponse{
			Amount:    p.Refund.Amount,
			Reason:    p.Refund.Reason,
			Reference: p.Refund.Reference,
			At:        p.Refund.At,
		}
	}

	if len(p.StatusHistory) > 0 {
		resp.StatusHistory = make([]StatusChangeResponse, len(p.StatusHistory))
		for i, c := range p.StatusHistory {
			resp.StatusHistory[i] = StatusChangeResponse{
				Status:    c.Status,
				ChangedAt: c.ChangedAt,
				ActorID:   c.ActorID,
				Note:      c.Note,
			}
		}
	}

	return resp
}
