// Package provider wraps the external payment gateways behind one adapter
// contract. Adding a payment method means adding one Adapter and, when the
// gateway signs its callbacks, one Verifier; the reconciliation logic never
// changes.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"tractor-rental/internal/data/entity"
	"tractor-rental/pkg/apperr"
)

// Status is the provider-neutral outcome of a status check.
type Status string

const (
	StatusPending   Status = "pending"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// InitiateRequest carries everything an adapter needs to start a collection.
type InitiateRequest struct {
	Amount     int64
	Currency   string
	Reference  string
	BookingID  string
	PayerPhone string
}

// InitiateResult is the provider's answer: a correlation id we can resolve
// webhooks against, and whatever the client needs to finish the payment.
type InitiateResult struct {
	TransactionID string
	ProviderRef   string
	RedirectURL   string
}

// StatusResult is the normalized answer of a CheckStatus poll.
type StatusResult struct {
	Status  Status
	Code    string
	Message string
}

type Adapter interface {
	Method() entity.PaymentMethod
	Initiate(ctx context.Context, req InitiateRequest) (*InitiateResult, error)
	CheckStatus(ctx context.Context, providerRef string) (*StatusResult, error)
}

// Verifier authenticates a raw webhook payload before it is parsed.
type Verifier interface {
	Verify(header http.Header, body []byte) error
}

// Set is the registry of configured adapters, keyed by payment method.
type Set map[entity.PaymentMethod]Adapter

func NewSet(adapters ...Adapter) Set {
	set := make(Set, len(adapters))
	for _, a := range adapters {
		set[a.Method()] = a
	}
	return set
}

func (s Set) Get(method entity.PaymentMethod) (Adapter, error) {
	adapter, ok := s[method]
	if !ok {
		return nil, apperr.New(apperr.KindValidation, "unsupported payment method %s", method)
	}
	return adapter, nil
}

// doJSON posts or gets JSON against a gateway and decodes the response body.
// Non-2xx responses surface as provider errors with the raw body attached.
func doJSON(ctx context.Context, client *http.Client, method, url string, headers map[string]string, reqBody, respBody any) error {
	var body io.Reader
	if reqBody != nil {
		payload, err := json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return apperr.Wrap(apperr.KindProvider, err, "call %s", url)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return apperr.Wrap(apperr.KindProvider, err, "read response from %s", url)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return apperr.New(apperr.KindProvider, "gateway returned %d: %s", resp.StatusCode, string(raw))
	}

	if respBody != nil {
		if err := json.Unmarshal(raw, respBody); err != nil {
			return apperr.Wrap(apperr.KindProvider, err, "decode response from %s", url)
		}
	}

	return nil
}
