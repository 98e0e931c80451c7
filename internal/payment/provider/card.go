package provider

import (
	"context"
	"fmt"
	"net/http"

	"tractor-rental/internal/data/entity"
	"tractor-rental/pkg/apperr"
	"tractor-rental/pkg/utils"
)

// CardAdapter drives the hosted card checkout gateway.
type CardAdapter struct {
	cfg    utils.CardConfig
	client *http.Client
}

func NewCardAdapter(cfg utils.CardConfig, client *http.Client) *CardAdapter {
	return &CardAdapter{cfg: cfg, client: client}
}

func (a *CardAdapter) Method() entity.PaymentMethod {
	return entity.PaymentMethodCard
}

type cardSessionRequest struct {
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
	Reference string `json:"reference"`
}

type cardSessionResponse struct {
	SessionID   string `json:"session_id"`
	CheckoutURL string `json:"checkout_url"`
	Status      string `json:"status"`
	Message     string `json:"message"`
}

func (a *CardAdapter) Initiate(ctx context.Context, req InitiateRequest) (*InitiateResult, error) {
	body := cardSessionRequest{
		Amount:    req.Amount,
		Currency:  req.Currency,
		Reference: req.Reference,
	}

	var resp cardSessionResponse
	err := doJSON(ctx, a.client, http.MethodPost, a.cfg.BaseURL+"/v1/sessions",
		map[string]string{"Authorization": "Bearer " + a.cfg.APIKey}, body, &resp)
	if err != nil {
		return nil, fmt.Errorf("card initiate %s: %w", req.Reference, err)
	}

	if resp.SessionID == "" {
		return nil, apperr.New(apperr.KindProvider, "card gateway returned no session: %s", resp.Message)
	}

	return &InitiateResult{
		TransactionID: resp.SessionID,
		ProviderRef:   resp.SessionID,
		RedirectURL:   resp.CheckoutURL,
	}, nil
}

func (a *CardAdapter) CheckStatus(ctx context.Context, providerRef string) (*StatusResult, error) {
	var resp cardSessionResponse
	err := doJSON(ctx, a.client, http.MethodGet, a.cfg.BaseURL+"/v1/sessions/"+providerRef,
		map[string]string{"Authorization": "Bearer " + a.cfg.APIKey}, nil, &resp)
	if err != nil {
		return nil, fmt.Errorf("card check status %s: %w", providerRef, err)
	}

	return &StatusResult{
		Status:  cardStatus(resp.Status),
		Message: resp.Message,
	}, nil
}

func cardStatus(s string) Status {
	switch s {
	case "paid", "succeeded":
		return StatusSucceeded
	case "failed", "expired", "cancelled":
		return StatusFailed
	default:
		return StatusPending
	}
}

// CardVerifier: the gateway only notifies with the session id; resolution
// against a stored payment is the authenticity check.
type CardVerifier struct{}

func NewCardVerifier() *CardVerifier {
	return &CardVerifier{}
}

func (v *CardVerifier) Verify(header http.Header, body []byte) error {
	return nil
}
