package provider

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"net/http"

	"tractor-rental/internal/data/entity"
	"tractor-rental/pkg/apperr"
	"tractor-rental/pkg/utils"
)

// PaydunyaAdapter drives PayDunya checkout invoices.
type PaydunyaAdapter struct {
	cfg    utils.PaydunyaConfig
	client *http.Client
}

func NewPaydunyaAdapter(cfg utils.PaydunyaConfig, client *http.Client) *PaydunyaAdapter {
	return &PaydunyaAdapter{cfg: cfg, client: client}
}

func (a *PaydunyaAdapter) Method() entity.PaymentMethod {
	return entity.PaymentMethodPaydunya
}

func (a *PaydunyaAdapter) headers() map[string]string {
	return map[string]string{
		"PAYDUNYA-MASTER-KEY":  a.cfg.MasterKey,
		"PAYDUNYA-PRIVATE-KEY": a.cfg.PrivateKey,
		"PAYDUNYA-TOKEN":       a.cfg.Token,
	}
}

type paydunyaInvoiceRequest struct {
	Invoice struct {
		TotalAmount int64  `json:"total_amount"`
		Description string `json:"description"`
	} `json:"invoice"`
	Store struct {
		Name string `json:"name"`
	} `json:"store"`
	CustomData map[string]string `json:"custom_data,omitempty"`
}

type paydunyaInvoiceResponse struct {
	ResponseCode string `json:"response_code"`
	ResponseText string `json:"response_text"`
	Token        string `json:"token"`
	Status       string `json:"status"`
}

func (a *PaydunyaAdapter) Initiate(ctx context.Context, req InitiateRequest) (*InitiateResult, error) {
	var body paydunyaInvoiceRequest
	body.Invoice.TotalAmount = req.Amount
	body.Invoice.Description = "Location tracteur " + req.Reference
	body.Store.Name = "tractor-rental"
	body.CustomData = map[string]string{
		"booking_id": req.BookingID,
		"reference":  req.Reference,
	}

	var resp paydunyaInvoiceResponse
	err := doJSON(ctx, a.client, http.MethodPost, a.cfg.BaseURL+"/checkout-invoice/create",
		a.headers(), body, &resp)
	if err != nil {
		return nil, fmt.Errorf("paydunya initiate %s: %w", req.Reference, err)
	}

	if resp.ResponseCode != "00" || resp.Token == "" {
		return nil, apperr.New(apperr.KindProvider, "paydunya refused invoice (%s): %s", resp.ResponseCode, resp.ResponseText)
	}

	return &InitiateResult{
		TransactionID: resp.Token,
		ProviderRef:   resp.Token,
		RedirectURL:   resp.ResponseText, // checkout URL
	}, nil
}

func (a *PaydunyaAdapter) CheckStatus(ctx context.Context, providerRef string) (*StatusResult, error) {
	var resp paydunyaInvoiceResponse
	err := doJSON(ctx, a.client, http.MethodGet, a.cfg.BaseURL+"/checkout-invoice/confirm/"+providerRef,
		a.headers(), nil, &resp)
	if err != nil {
		return nil, fmt.Errorf("paydunya check status %s: %w", providerRef, err)
	}

	return &StatusResult{
		Status:  paydunyaStatus(resp.Status),
		Code:    resp.ResponseCode,
		Message: resp.ResponseText,
	}, nil
}

func paydunyaStatus(s string) Status {
	switch s {
	case "completed":
		return StatusSucceeded
	case "cancelled", "failed":
		return StatusFailed
	default:
		return StatusPending
	}
}

// PaydunyaVerifier checks the hash field of the IPN payload, which must be
// the SHA-256 of the master key.
type PaydunyaVerifier struct {
	masterKey string
}

func NewPaydunyaVerifier(masterKey string) *PaydunyaVerifier {
	return &PaydunyaVerifier{masterKey: masterKey}
}

// VerifyHash compares the payload hash against the expected master-key hash.
// Exposed separately because the hash travels in the JSON body, not a header.
func (v *PaydunyaVerifier) VerifyHash(hash string) error {
	sum := sha256.Sum256([]byte(v.masterKey))
	expected := hex.EncodeToString(sum[:])

	if subtle.ConstantTimeCompare([]byte(hash), []byte(expected)) != 1 {
		return apperr.New(apperr.KindAuthenticity, "paydunya hash mismatch")
	}
	return nil
}

func (v *PaydunyaVerifier) Verify(header http.Header, body []byte) error {
	// the real check runs on the parsed body's hash field
	return nil
}
